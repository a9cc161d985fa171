package rules

// MatchStatus is the lifecycle of a match.
type MatchStatus int8

const (
	WaitingForPlayer MatchStatus = iota
	InProgress
	Completed
)

func (s MatchStatus) String() string {
	switch s {
	case WaitingForPlayer:
		return "waiting_for_player"
	case InProgress:
		return "in_progress"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Match tracks the score of a sequence of games. Player 1 plays White and
// player 2 plays Red. A Target of 0 is an unlimited session: it never
// completes on points and has no Crawford game.
type Match struct {
	Target         int
	Score          [2]int
	Crawford       bool // the current/next game is the Crawford game
	CrawfordPlayed bool
	Status         MatchStatus
	Winner         Color
	Games          int  // games recorded
	Forfeited      bool // ended by abandonment rather than on points
}

// NewMatch creates a match waiting for its second player.
func NewMatch(target int) (*Match, error) {
	if target < 0 {
		return nil, validationf("new_match", "target score %d is negative", target)
	}
	return &Match{Target: target, Winner: None}, nil
}

// Begin marks the match in progress once both players are seated.
func (m *Match) Begin() error {
	if m.Status != WaitingForPlayer {
		return conflictf("begin", "match already %s", m.Status)
	}
	m.Status = InProgress
	return nil
}

// IsComplete reports whether the match has a final result.
func (m *Match) IsComplete() bool {
	return m.Status == Completed
}

// RecordGameResult adds stakes (cube value already folded in) to the
// winner's score, then updates Crawford state and completion.
func (m *Match) RecordGameResult(winner Color, stakes int) error {
	const op = "record_result"
	switch m.Status {
	case Completed:
		return conflictf(op, "match is already complete")
	case WaitingForPlayer:
		return conflictf(op, "match has not started")
	}
	if !winner.Valid() {
		return validationf(op, "invalid winner")
	}
	if stakes < 1 {
		return validationf(op, "stakes %d must be positive", stakes)
	}

	wasCrawford := m.Crawford
	m.Score[winner.Index()] += stakes
	m.Games++

	if m.Target > 0 && m.Score[winner.Index()] >= m.Target {
		m.Status = Completed
		m.Winner = winner
		m.Crawford = false
		if wasCrawford {
			m.CrawfordPlayed = true
		}
		return nil
	}
	m.updateCrawford(wasCrawford)
	return nil
}

func (m *Match) updateCrawford(wasCrawford bool) {
	if m.Target == 0 {
		return
	}
	if wasCrawford {
		m.Crawford = false
		m.CrawfordPlayed = true
		return
	}
	if m.CrawfordPlayed {
		return
	}
	for _, s := range m.Score {
		if s == m.Target-1 {
			m.Crawford = true
			return
		}
	}
}

// Forfeit ends the match because loser abandoned it. A match that never
// started has no winner.
func (m *Match) Forfeit(loser Color) error {
	if m.Status == Completed {
		return conflictf("forfeit", "match is already complete")
	}
	if m.Status == WaitingForPlayer {
		m.Winner = None
	} else {
		m.Winner = loser.Opponent()
	}
	m.Status = Completed
	m.Crawford = false
	m.Forfeited = true
	return nil
}
