package session

import (
	"time"

	"github.com/yourusername/bgserver/pkg/rules"
)

// ResultSaver persists finished games and matches. Implementations are
// called from the session goroutine and should return promptly.
type ResultSaver interface {
	SaveGameResult(rec GameRecord) error
	SaveMatchResult(rec MatchRecord) error
}

// GameRecord is a finished game.
type GameRecord struct {
	MatchID    MatchID
	GameNumber int
	Winner     rules.Color // None for a void game
	Multiplier int
	CubeValue  int
	Stakes     int
	Reason     rules.EndReason
	Crawford   bool
	Position   string // final position in notation form
	EndedAt    time.Time
}

// MatchRecord is a finished match.
type MatchRecord struct {
	MatchID    MatchID
	Target     int
	Practice   bool
	Players    [2]string
	Score      [2]int
	Winner     rules.Color
	Forfeited  bool
	Games      int
	Transcript string // MAT text
	StartedAt  time.Time
	EndedAt    time.Time
}
