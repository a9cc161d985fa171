package rules

// Phase is the turn engine state.
type Phase int8

const (
	WaitingForOpponent Phase = iota
	AwaitingRoll
	MovesRemaining
	AwaitingEndTurn
	GameOver
)

func (p Phase) String() string {
	switch p {
	case WaitingForOpponent:
		return "waiting_for_opponent"
	case AwaitingRoll:
		return "awaiting_roll"
	case MovesRemaining:
		return "moves_remaining"
	case AwaitingEndTurn:
		return "awaiting_end_turn"
	case GameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// EndReason records how a game finished.
type EndReason int8

const (
	EndBearOff EndReason = iota
	EndDeclined
	EndAbandoned
	EndVoid     // abandoned before it started
	EndImported // finished game restored from notation
)

func (r EndReason) String() string {
	switch r {
	case EndBearOff:
		return "bear_off"
	case EndDeclined:
		return "declined"
	case EndAbandoned:
		return "abandoned"
	case EndVoid:
		return "void"
	case EndImported:
		return "imported"
	default:
		return "unknown"
	}
}

// Win multipliers.
const (
	Single     = 1
	Gammon     = 2
	Backgammon = 3
)

// GameResult is the outcome of a finished game.
type GameResult struct {
	Winner     Color // None for a void game
	Multiplier int   // Single, Gammon or Backgammon
	CubeValue  int
	Stakes     int // CubeValue * Multiplier
	Reason     EndReason
}

// GameOptions configures a new game.
type GameOptions struct {
	FirstToMove Color // defaults to White
	Crawford    bool  // doubling disabled for this game
	MaxCube     int   // 0 = DefaultMaxCube
}

type undoEntry struct {
	pos   Position
	dice  Dice
	phase Phase
	legal []Move
}

// Game is the turn engine for a single game. It is not safe for concurrent
// use; the session layer serializes access.
type Game struct {
	pos      Position
	dice     Dice
	cube     Cube
	turn     Color
	phase    Phase
	crawford bool
	maxCube  int
	result   *GameResult

	legal  []Move
	undo   []undoEntry
	played []Move
}

// NewGame creates a game in the standard starting position waiting for the
// second player.
func NewGame(opts GameOptions) *Game {
	turn := opts.FirstToMove
	if !turn.Valid() {
		turn = White
	}
	maxCube := opts.MaxCube
	if maxCube <= 0 {
		maxCube = DefaultMaxCube
	}
	return &Game{
		pos:      StartingPosition(),
		cube:     NewCube(),
		turn:     turn,
		phase:    WaitingForOpponent,
		crawford: opts.Crawford,
		maxCube:  maxCube,
	}
}

func (g *Game) Position() Position { return g.pos }
func (g *Game) Dice() Dice         { return g.dice }
func (g *Game) Cube() Cube         { return g.cube }
func (g *Game) Turn() Color        { return g.turn }
func (g *Game) Phase() Phase       { return g.phase }
func (g *Game) Crawford() bool     { return g.crawford }

// Result returns the outcome once the game is over, nil before.
func (g *Game) Result() *GameResult {
	if g.result == nil {
		return nil
	}
	r := *g.result
	return &r
}

// LegalMoves returns the moves legal right now. Empty outside MovesRemaining.
func (g *Game) LegalMoves() []Move {
	out := make([]Move, len(g.legal))
	copy(out, g.legal)
	return out
}

// LegalDestinations lists where the checker on from may move next.
func (g *Game) LegalDestinations(from int) []int {
	return Destinations(g.legal, from)
}

// PlayedMoves returns the moves applied so far this turn.
func (g *Game) PlayedMoves() []Move {
	out := make([]Move, len(g.played))
	copy(out, g.played)
	return out
}

// CanUndo reports whether the current turn has moves to take back.
func (g *Game) CanUndo() bool {
	return len(g.undo) > 0 && (g.phase == MovesRemaining || g.phase == AwaitingEndTurn)
}

// Start moves the game from WaitingForOpponent to AwaitingRoll.
func (g *Game) Start() error {
	if g.phase != WaitingForOpponent {
		return conflictf("start", "game already started")
	}
	g.phase = AwaitingRoll
	return nil
}

func (g *Game) checkTurn(op string, c Color) error {
	if g.phase == GameOver {
		return conflictf(op, "game is over")
	}
	if !c.Valid() {
		return validationf(op, "invalid color")
	}
	if c != g.turn {
		return validationf(op, "not %s's turn", c)
	}
	return nil
}

// Roll throws the dice for c. If no move can be played the dice are burned
// and the game goes straight to AwaitingEndTurn.
func (g *Game) Roll(c Color, r Roller) (Dice, error) {
	const op = "roll"
	if err := g.checkTurn(op, c); err != nil {
		return Dice{}, err
	}
	if g.phase != AwaitingRoll {
		return Dice{}, validationf(op, "cannot roll while %s", g.phase)
	}
	if g.cube.OfferPending {
		return Dice{}, conflictf(op, "a double is pending")
	}

	a, b := r.Roll()
	d, err := NewDice(a, b)
	if err != nil {
		return Dice{}, invariantf("roller produced %d-%d", a, b)
	}

	g.dice = d
	g.undo = nil
	g.played = nil
	g.legal = LegalMoves(g.pos, c, d.Remaining())
	if len(g.legal) == 0 {
		g.phase = AwaitingEndTurn
	} else {
		g.phase = MovesRemaining
	}
	return d, nil
}

// pick finds the legal move from -> to. When two dice reach the same
// destination (bearing off) the smaller legal die is used.
func (g *Game) pick(from, to int) (Move, bool) {
	var found Move
	ok := false
	for _, m := range g.legal {
		if m.From != from || m.To != to {
			continue
		}
		if !ok || m.Die < found.Die {
			found = m
			ok = true
		}
	}
	return found, ok
}

// ApplyMove plays one checker from -> to for c. The move must be in the
// current legal set.
func (g *Game) ApplyMove(c Color, from, to int) (Move, error) {
	const op = "move"
	if err := g.checkTurn(op, c); err != nil {
		return Move{}, err
	}
	if g.phase != MovesRemaining {
		return Move{}, validationf(op, "no moves to play while %s", g.phase)
	}
	m, ok := g.pick(from, to)
	if !ok {
		return Move{}, validationf(op, "%s is not a legal move", Move{From: from, To: to})
	}

	next := g.pos
	next.apply(c, m)
	if err := next.Validate(); err != nil {
		return Move{}, err
	}
	dice := g.dice
	if !dice.use(m.Die) {
		return Move{}, invariantf("die %d not available", m.Die)
	}

	g.undo = append(g.undo, undoEntry{pos: g.pos, dice: g.dice, phase: g.phase, legal: g.legal})
	g.pos = next
	g.dice = dice
	g.played = append(g.played, m)

	if g.pos.Off[c.Index()] == NumCheckers {
		g.finishBearOff(c)
		return m, nil
	}

	g.legal = LegalMoves(g.pos, c, dice.Remaining())
	if len(g.legal) == 0 {
		g.phase = AwaitingEndTurn
	}
	return m, nil
}

// UndoLastMove takes back the most recent move of the current turn,
// restoring the exact prior position and dice.
func (g *Game) UndoLastMove(c Color) error {
	const op = "undo"
	if err := g.checkTurn(op, c); err != nil {
		return err
	}
	if !g.CanUndo() {
		return conflictf(op, "no moves to undo")
	}
	last := g.undo[len(g.undo)-1]
	g.undo = g.undo[:len(g.undo)-1]
	g.played = g.played[:len(g.played)-1]
	g.pos = last.pos
	g.dice = last.dice
	g.phase = last.phase
	g.legal = last.legal
	return nil
}

// EndTurn passes the dice to the opponent.
func (g *Game) EndTurn(c Color) error {
	const op = "end_turn"
	if err := g.checkTurn(op, c); err != nil {
		return err
	}
	if g.phase != AwaitingEndTurn {
		return validationf(op, "cannot end turn while %s", g.phase)
	}
	g.turn = c.Opponent()
	g.dice = Dice{}
	g.legal = nil
	g.undo = nil
	g.played = nil
	g.phase = AwaitingRoll
	return nil
}

// OfferDouble proposes doubling the stakes. Only the color to move may
// double, before rolling, with access to the cube, outside the Crawford game.
func (g *Game) OfferDouble(c Color) error {
	const op = "offer_double"
	if err := g.checkTurn(op, c); err != nil {
		return err
	}
	if g.crawford {
		return conflictf(op, "doubling is disabled during the Crawford game")
	}
	switch g.phase {
	case AwaitingRoll:
	case MovesRemaining, AwaitingEndTurn:
		return conflictf(op, "cannot double after rolling")
	default:
		return validationf(op, "cannot double while %s", g.phase)
	}
	return g.cube.offer(c, g.maxCube)
}

// AcceptDouble takes the pending double for c.
func (g *Game) AcceptDouble(c Color) error {
	const op = "accept_double"
	if g.phase == GameOver {
		return conflictf(op, "game is over")
	}
	if !c.Valid() {
		return validationf(op, "invalid color")
	}
	return g.cube.accept(c)
}

// DeclineDouble refuses the pending double; the offering color wins the
// game at the value the cube had before the offer.
func (g *Game) DeclineDouble(c Color) error {
	const op = "decline_double"
	if g.phase == GameOver {
		return conflictf(op, "game is over")
	}
	if !c.Valid() {
		return validationf(op, "invalid color")
	}
	winner, value, err := g.cube.decline(c)
	if err != nil {
		return err
	}
	g.finish(GameResult{Winner: winner, Multiplier: Single, CubeValue: value, Stakes: value, Reason: EndDeclined})
	return nil
}

// Abandon ends the game immediately; the other color wins at the current
// cube value. A game that never started is voided.
func (g *Game) Abandon(c Color) error {
	const op = "abandon"
	if g.phase == GameOver {
		return conflictf(op, "game is over")
	}
	if !c.Valid() {
		return validationf(op, "invalid color")
	}
	if g.phase == WaitingForOpponent {
		g.finish(GameResult{Winner: None, CubeValue: g.cube.Value, Reason: EndVoid})
		return nil
	}
	v := g.cube.Value
	g.finish(GameResult{Winner: c.Opponent(), Multiplier: Single, CubeValue: v, Stakes: v, Reason: EndAbandoned})
	return nil
}

func (g *Game) finishBearOff(winner Color) {
	mult := WinMultiplier(g.pos, winner)
	v := g.cube.Value
	g.finish(GameResult{Winner: winner, Multiplier: mult, CubeValue: v, Stakes: v * mult, Reason: EndBearOff})
}

func (g *Game) finish(r GameResult) {
	g.result = &r
	g.phase = GameOver
	g.legal = nil
	g.undo = nil
	g.cube.OfferPending = false
	g.cube.OfferedBy = None
}

// WinMultiplier scores a borne-off win: a gammon when the loser has borne
// nothing off, a backgammon when the loser also still has a checker on the
// bar or in the winner's home board.
func WinMultiplier(p Position, winner Color) int {
	loser := winner.Opponent()
	if p.Off[loser.Index()] > 0 {
		return Single
	}
	if p.Bar[loser.Index()] > 0 {
		return Backgammon
	}
	for rel := 1; rel <= HomePoints; rel++ {
		if p.Checkers(loser, absolute(winner, rel)) > 0 {
			return Backgammon
		}
	}
	return Gammon
}
