// Package transcript records played matches and reads/writes them in the
// Jellyfish MAT text format used by gnubg and most match archives.
package transcript

import (
	"github.com/yourusername/bgserver/pkg/rules"
)

// Match is the record of a sequence of games.
type Match struct {
	White       string // player name on the left column
	Red         string
	MatchLength int // 0 = unlimited session
	Date        string
	Event       string
	Games       []*Game
}

// Game is the record of a single game.
type Game struct {
	Number   int    // 1-indexed
	Score    [2]int // score at the start of the game
	Crawford bool
	Actions  []Action
	Winner   rules.Color // None while in progress or void
	Points   int
	Reason   rules.EndReason
	Finished bool
}

// ActionType is the kind of a recorded action.
type ActionType int

const (
	ActionRoll   ActionType = iota // dice thrown and the moves played with them
	ActionDouble                   // cube offered
	ActionTake                     // double accepted
	ActionDrop                     // double declined
	ActionResign                   // game abandoned
)

// Action is one entry of a game record. Rolls carry the full turn's moves;
// an empty Moves slice means the roll could not be played.
type Action struct {
	Type   ActionType
	Player rules.Color
	Dice   [2]int
	Moves  []rules.Move
	Value  int // cube value offered, ActionDouble only
}

// NewMatch creates an empty match record.
func NewMatch(white, red string, matchLength int) *Match {
	return &Match{White: white, Red: red, MatchLength: matchLength}
}

// AddGame appends a game starting at the given score.
func (m *Match) AddGame(score [2]int, crawford bool) *Game {
	g := &Game{
		Number:   len(m.Games) + 1,
		Score:    score,
		Crawford: crawford,
		Winner:   rules.None,
	}
	m.Games = append(m.Games, g)
	return g
}

// Current returns the latest game, nil if none was added.
func (m *Match) Current() *Game {
	if len(m.Games) == 0 {
		return nil
	}
	return m.Games[len(m.Games)-1]
}

// Clone returns a deep copy safe to hand to another goroutine.
func (m *Match) Clone() *Match {
	out := *m
	out.Games = make([]*Game, len(m.Games))
	for i, g := range m.Games {
		gc := *g
		gc.Actions = make([]Action, len(g.Actions))
		for j, a := range g.Actions {
			a.Moves = append([]rules.Move(nil), a.Moves...)
			gc.Actions[j] = a
		}
		out.Games[i] = &gc
	}
	return &out
}

// AddTurn records a roll and the moves played with it.
func (g *Game) AddTurn(player rules.Color, dice [2]int, moves []rules.Move) {
	g.Actions = append(g.Actions, Action{
		Type:   ActionRoll,
		Player: player,
		Dice:   dice,
		Moves:  append([]rules.Move(nil), moves...),
	})
}

// AddDouble records a cube offer to the given value.
func (g *Game) AddDouble(player rules.Color, value int) {
	g.Actions = append(g.Actions, Action{Type: ActionDouble, Player: player, Value: value})
}

// AddTake records an accepted double.
func (g *Game) AddTake(player rules.Color) {
	g.Actions = append(g.Actions, Action{Type: ActionTake, Player: player})
}

// AddDrop records a declined double.
func (g *Game) AddDrop(player rules.Color) {
	g.Actions = append(g.Actions, Action{Type: ActionDrop, Player: player})
}

// AddResign records an abandoned game.
func (g *Game) AddResign(player rules.Color) {
	g.Actions = append(g.Actions, Action{Type: ActionResign, Player: player})
}

// Finish stores the outcome.
func (g *Game) Finish(r rules.GameResult) {
	g.Winner = r.Winner
	g.Points = r.Stakes
	g.Reason = r.Reason
	g.Finished = true
}
