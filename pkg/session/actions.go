package session

import "github.com/yourusername/bgserver/pkg/rules"

// Action is a mutating request submitted to a session. The set is closed:
// only the types in this file implement it.
type Action interface {
	// Name is the wire name of the action.
	Name() string
	action()
}

// Join seats a player. Color None takes the first free seat, White first.
type Join struct {
	Player string
	Color  rules.Color
}

// Roll throws the dice.
type Roll struct{ Color rules.Color }

// Move plays one checker from -> to.
type Move struct {
	Color    rules.Color
	From, To int
}

// Undo takes back the last move of the current turn.
type Undo struct{ Color rules.Color }

// EndTurn passes the dice.
type EndTurn struct{ Color rules.Color }

// OfferDouble proposes doubling the stakes.
type OfferDouble struct{ Color rules.Color }

// AcceptDouble takes a pending double.
type AcceptDouble struct{ Color rules.Color }

// DeclineDouble refuses a pending double and concedes the game.
type DeclineDouble struct{ Color rules.Color }

// Abandon concedes the game and the match.
type Abandon struct{ Color rules.Color }

// NextGame starts the following game once the current one is over.
type NextGame struct{ Color rules.Color }

// ImportPosition replaces the current game state. Practice sessions only.
type ImportPosition struct{ Notation string }

func (Join) Name() string           { return "join" }
func (Roll) Name() string           { return "roll" }
func (Move) Name() string           { return "move" }
func (Undo) Name() string           { return "undo" }
func (EndTurn) Name() string        { return "end_turn" }
func (OfferDouble) Name() string    { return "offer_double" }
func (AcceptDouble) Name() string   { return "accept_double" }
func (DeclineDouble) Name() string  { return "decline_double" }
func (Abandon) Name() string        { return "abandon" }
func (NextGame) Name() string       { return "next_game" }
func (ImportPosition) Name() string { return "import_position" }

func (Join) action()           {}
func (Roll) action()           {}
func (Move) action()           {}
func (Undo) action()           {}
func (EndTurn) action()        {}
func (OfferDouble) action()    {}
func (AcceptDouble) action()   {}
func (DeclineDouble) action()  {}
func (Abandon) action()        {}
func (NextGame) action()       {}
func (ImportPosition) action() {}

// actor returns the color submitting a, None for actions without one.
func actor(a Action) rules.Color {
	switch a := a.(type) {
	case Join:
		return a.Color
	case Roll:
		return a.Color
	case Move:
		return a.Color
	case Undo:
		return a.Color
	case EndTurn:
		return a.Color
	case OfferDouble:
		return a.Color
	case AcceptDouble:
		return a.Color
	case DeclineDouble:
		return a.Color
	case Abandon:
		return a.Color
	case NextGame:
		return a.Color
	}
	return rules.None
}

// ParseAction builds an action from its wire name. from and to are used by
// "move", player by "join" and notation by "import_position".
func ParseAction(name string, color rules.Color, from, to int, player, notation string) (Action, error) {
	switch name {
	case "join":
		return Join{Player: player, Color: color}, nil
	case "roll":
		return Roll{Color: color}, nil
	case "move":
		return Move{Color: color, From: from, To: to}, nil
	case "undo":
		return Undo{Color: color}, nil
	case "end_turn":
		return EndTurn{Color: color}, nil
	case "offer_double":
		return OfferDouble{Color: color}, nil
	case "accept_double":
		return AcceptDouble{Color: color}, nil
	case "decline_double":
		return DeclineDouble{Color: color}, nil
	case "abandon":
		return Abandon{Color: color}, nil
	case "next_game":
		return NextGame{Color: color}, nil
	case "import_position":
		return ImportPosition{Notation: notation}, nil
	}
	return nil, &rules.Error{Kind: rules.ValidationError, Op: "action", Msg: "unknown action " + name}
}
