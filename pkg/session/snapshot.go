package session

import (
	"time"

	"github.com/yourusername/bgserver/internal/dicestats"
	"github.com/yourusername/bgserver/pkg/rules"
)

// Snapshot is an immutable view of a session published after every applied
// action. Readers must not modify it or its slices.
type Snapshot struct {
	MatchID    MatchID
	Version    uint64 // increases by one per applied action
	Practice   bool
	Players    [2]string
	Seated     [2]bool
	State      rules.State
	Match      rules.Match
	GameNumber int // 0 until the match begins
	Legal      []rules.Move
	Played     []rules.Move // moves of the current turn
	CanUndo    bool
	LastResult *rules.GameResult // latest finished game, nil before
	Notation   string
	GnubgID    string
	Dice       dicestats.Summary
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LegalDestinations lists where a checker on from may move now.
func (s *Snapshot) LegalDestinations(from int) []int {
	return rules.Destinations(s.Legal, from)
}

// ToAct returns the color expected to act next: the responder while a
// double is pending, otherwise the color to move. None before the game
// starts or once it is over.
func (s *Snapshot) ToAct() rules.Color {
	switch s.State.Phase {
	case rules.WaitingForOpponent, rules.GameOver:
		return rules.None
	}
	if s.State.Cube.OfferPending {
		return s.State.Cube.OfferedBy.Opponent()
	}
	return s.State.Turn
}

// Completed reports whether the match is over.
func (s *Snapshot) Completed() bool {
	return s.Match.Status == rules.Completed
}
