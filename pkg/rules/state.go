package rules

// State is the complete exchangeable state of a game in progress. The undo
// history of the current turn is not part of it.
type State struct {
	Position Position
	Dice     Dice
	Cube     Cube
	Turn     Color
	Phase    Phase
	Crawford bool
	Winner   Color // None unless Phase is GameOver
}

// State captures the game as a value.
func (g *Game) State() State {
	winner := None
	if g.result != nil {
		winner = g.result.Winner
	}
	return State{
		Position: g.pos,
		Dice:     g.dice,
		Cube:     g.cube,
		Turn:     g.turn,
		Phase:    g.phase,
		Crawford: g.crawford,
		Winner:   winner,
	}
}

// Validate checks that s is internally consistent.
func (s State) Validate() error {
	if err := s.Position.Validate(); err != nil {
		return err
	}
	if !s.Turn.Valid() {
		return validationf("state", "invalid color to move")
	}
	if err := s.Cube.validate(); err != nil {
		return err
	}
	if s.Crawford && (s.Cube.Value != 1 || s.Cube.OfferPending) {
		return validationf("state", "cube cannot be used in the Crawford game")
	}
	if s.Cube.OfferPending && (s.Phase != AwaitingRoll || s.Cube.OfferedBy != s.Turn) {
		return validationf("state", "a double can only be pending before the roll of the offering color")
	}
	if s.Winner != None && (s.Phase != GameOver || !s.Winner.Valid()) {
		return validationf("state", "winner set outside a finished game")
	}

	rolled := s.Dice.Rolled()
	left := len(s.Dice.Remaining())
	switch s.Phase {
	case WaitingForOpponent:
		if rolled || s.Cube != NewCube() {
			return validationf("state", "game not started but dice or cube in use")
		}
	case AwaitingRoll:
		if rolled {
			return validationf("state", "dice rolled while awaiting the roll")
		}
	case MovesRemaining:
		if !rolled || left == 0 {
			return validationf("state", "moves remaining without dice to play")
		}
	case AwaitingEndTurn:
		if !rolled {
			return validationf("state", "turn cannot end before rolling")
		}
	case GameOver:
		for _, c := range Colors {
			if s.Position.Off[c.Index()] == NumCheckers && s.Winner != c {
				return validationf("state", "%s bore off every checker but is not the winner", c)
			}
		}
	default:
		return validationf("state", "unknown phase %d", s.Phase)
	}
	return nil
}

// RestoreGame rebuilds a game from an exchanged state. maxCube 0 uses
// DefaultMaxCube.
func RestoreGame(s State, maxCube int) (*Game, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if maxCube <= 0 {
		maxCube = DefaultMaxCube
	}
	g := &Game{
		pos:      s.Position,
		dice:     s.Dice,
		cube:     s.Cube,
		turn:     s.Turn,
		phase:    s.Phase,
		crawford: s.Crawford,
		maxCube:  maxCube,
	}

	switch s.Phase {
	case MovesRemaining:
		g.legal = LegalMoves(g.pos, g.turn, g.dice.Remaining())
		if len(g.legal) == 0 {
			return nil, validationf("state", "no legal moves for the remaining dice")
		}
	case AwaitingEndTurn:
		if len(LegalMoves(g.pos, g.turn, g.dice.Remaining())) > 0 {
			return nil, validationf("state", "turn cannot end with playable dice")
		}
	case GameOver:
		r := GameResult{Winner: s.Winner, CubeValue: s.Cube.Value, Reason: EndImported}
		switch {
		case s.Winner == None:
			r.Reason = EndVoid
		case s.Position.Off[s.Winner.Index()] == NumCheckers:
			r.Multiplier = WinMultiplier(s.Position, s.Winner)
			r.Stakes = r.Multiplier * r.CubeValue
			r.Reason = EndBearOff
		default:
			r.Multiplier = Single
			r.Stakes = r.CubeValue
		}
		g.result = &r
	}
	return g, nil
}
