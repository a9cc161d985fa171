package transcript

import (
	"fmt"

	"github.com/yourusername/bgserver/pkg/rules"
)

// Replay plays every recorded game through the rules engine and checks
// each action is legal, that recorded outcomes agree with the engine and
// that the running score matches the game headers. It returns the final
// match state.
func Replay(m *Match) (*rules.Match, error) {
	tracker, err := rules.NewMatch(m.MatchLength)
	if err != nil {
		return nil, err
	}
	if err := tracker.Begin(); err != nil {
		return nil, err
	}

	for _, rec := range m.Games {
		if tracker.IsComplete() {
			return nil, fmt.Errorf("game %d: match already complete", rec.Number)
		}
		if rec.Score != tracker.Score {
			return nil, fmt.Errorf("game %d: header score %v, replayed score %v", rec.Number, rec.Score, tracker.Score)
		}
		res, err := replayGame(rec, tracker.Crawford)
		if err != nil {
			return nil, fmt.Errorf("game %d: %w", rec.Number, err)
		}
		if res == nil || !res.Winner.Valid() {
			continue
		}
		if rec.Finished && (rec.Winner != res.Winner || rec.Points != res.Stakes) {
			return nil, fmt.Errorf("game %d: recorded %s wins %d, replay gives %s wins %d",
				rec.Number, rec.Winner, rec.Points, res.Winner, res.Stakes)
		}
		if err := tracker.RecordGameResult(res.Winner, res.Stakes); err != nil {
			return nil, fmt.Errorf("game %d: %w", rec.Number, err)
		}
	}
	return tracker, nil
}

// replayGame returns the engine's result, nil for a game still in progress.
func replayGame(rec *Game, crawford bool) (*rules.GameResult, error) {
	if len(rec.Actions) == 0 {
		return nil, nil
	}
	g := rules.NewGame(rules.GameOptions{FirstToMove: rec.Actions[0].Player, Crawford: crawford})
	if err := g.Start(); err != nil {
		return nil, err
	}

	for i, a := range rec.Actions {
		if err := replayAction(g, a); err != nil {
			return nil, fmt.Errorf("action %d (%s): %w", i+1, formatAction(a), err)
		}
	}
	if r := g.Result(); r != nil {
		return r, nil
	}
	// A win recorded without a final roll, e.g. a resignation written only
	// as the result line.
	if rec.Finished && rec.Winner.Valid() {
		if err := g.Abandon(rec.Winner.Opponent()); err != nil {
			return nil, err
		}
		return g.Result(), nil
	}
	return nil, nil
}

func replayAction(g *rules.Game, a Action) error {
	switch a.Type {
	case ActionDouble:
		return g.OfferDouble(a.Player)
	case ActionTake:
		return g.AcceptDouble(a.Player)
	case ActionDrop:
		return g.DeclineDouble(a.Player)
	case ActionResign:
		return g.Abandon(a.Player)
	}

	if _, err := g.Roll(a.Player, rules.NewFixedRoller(a.Dice)); err != nil {
		return err
	}
	for _, m := range a.Moves {
		if _, err := g.ApplyMove(a.Player, m.From, m.To); err != nil {
			return err
		}
	}
	switch g.Phase() {
	case rules.GameOver:
		return nil
	case rules.MovesRemaining:
		return fmt.Errorf("turn recorded with dice left to play")
	}
	return g.EndTurn(a.Player)
}
