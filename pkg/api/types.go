// Package api exposes match sessions over HTTP/JSON, Server-Sent Events and
// WebSocket.
package api

import (
	"time"

	"github.com/yourusername/bgserver/internal/dicestats"
	"github.com/yourusername/bgserver/internal/storage"
	"github.com/yourusername/bgserver/pkg/rules"
	"github.com/yourusername/bgserver/pkg/session"
)

// ============================================================================
// Request Types
// ============================================================================

// CreateMatchRequest is the body of POST /api/matches.
type CreateMatchRequest struct {
	Target   *int   `json:"target,omitempty"`   // match length, 0 = unlimited; omitted = server default
	Practice bool   `json:"practice,omitempty"` // allows import_position
	Bot      string `json:"bot,omitempty"`      // "white" or "red" seats a bot
	Player   string `json:"player,omitempty"`   // joins the creator when set
	Color    string `json:"color,omitempty"`    // seat for Player, any free seat if empty
}

// ActionRequest is the body of POST /api/matches/{id}/actions and the
// payload of a WebSocket "action" message.
type ActionRequest struct {
	Action   string `json:"action"`             // roll, move, undo, end_turn, ...
	Color    string `json:"color,omitempty"`    // "white" or "red"
	From     int    `json:"from,omitempty"`     // move source, 0 = bar
	To       int    `json:"to,omitempty"`       // move destination, 25 = off
	Player   string `json:"player,omitempty"`   // join
	Notation string `json:"notation,omitempty"` // import_position
}

// ============================================================================
// Response Types
// ============================================================================

// ErrorResponse is returned for every rejected request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the response for GET /api/health.
type HealthResponse struct {
	Status  string     `json:"status"`
	Version string     `json:"version"`
	Matches int        `json:"matches"`
	Pool    *PoolStats `json:"pool,omitempty"`
}

// MoveJSON is one checker move.
type MoveJSON struct {
	From int    `json:"from"`
	To   int    `json:"to"`
	Die  int    `json:"die"`
	Hit  bool   `json:"hit,omitempty"`
	Text string `json:"text"` // "13/8", "bar/22*"
}

// CubeJSON is the doubling cube.
type CubeJSON struct {
	Value        int    `json:"value"`
	Owner        string `json:"owner,omitempty"` // empty when centered
	OfferPending bool   `json:"offer_pending"`
	OfferedBy    string `json:"offered_by,omitempty"`
}

// BoardJSON is the checker layout. Points[i] is positive for White and
// negative for Red; index 0 is unused.
type BoardJSON struct {
	Points [25]int `json:"points"`
	Bar    [2]int  `json:"bar"` // [white, red]
	Off    [2]int  `json:"off"`
	Pips   [2]int  `json:"pips"`
}

// MatchJSON is the match score.
type MatchJSON struct {
	Target         int    `json:"target"`
	Score          [2]int `json:"score"`
	Crawford       bool   `json:"crawford"`
	CrawfordPlayed bool   `json:"crawford_played"`
	Status         string `json:"status"`
	Winner         string `json:"winner,omitempty"`
	Games          int    `json:"games"`
	Forfeited      bool   `json:"forfeited,omitempty"`
}

// ResultJSON is a finished game.
type ResultJSON struct {
	Winner     string `json:"winner,omitempty"`
	Multiplier int    `json:"multiplier"`
	CubeValue  int    `json:"cube_value"`
	Stakes     int    `json:"stakes"`
	Reason     string `json:"reason"`
}

// SnapshotResponse is the public view of a session.
type SnapshotResponse struct {
	MatchID    string            `json:"match_id"`
	Version    uint64            `json:"version"`
	Practice   bool              `json:"practice"`
	Players    [2]string         `json:"players"`
	Seated     [2]bool           `json:"seated"`
	Board      BoardJSON         `json:"board"`
	Dice       []int             `json:"dice,omitempty"` // rolled values
	Remaining  []int             `json:"remaining,omitempty"`
	Cube       CubeJSON          `json:"cube"`
	Turn       string            `json:"turn"`
	ToAct      string            `json:"to_act,omitempty"`
	Phase      string            `json:"phase"`
	Crawford   bool              `json:"crawford"`
	Match      MatchJSON         `json:"match"`
	GameNumber int               `json:"game_number"`
	Legal      []MoveJSON        `json:"legal"`
	Played     []MoveJSON        `json:"played"`
	CanUndo    bool              `json:"can_undo"`
	LastResult *ResultJSON       `json:"last_result,omitempty"`
	Notation   string            `json:"notation"`
	GnubgID    string            `json:"gnubg_id"`
	DiceStats  dicestats.Summary `json:"dice_stats"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// MatchSummary is one entry of GET /api/matches.
type MatchSummary struct {
	MatchID    string    `json:"match_id"`
	Players    [2]string `json:"players"`
	Target     int       `json:"target"`
	Score      [2]int    `json:"score"`
	Status     string    `json:"status"`
	Practice   bool      `json:"practice"`
	GameNumber int       `json:"game_number"`
	CreatedAt  time.Time `json:"created_at"`
}

// MatchListResponse is the response for GET /api/matches.
type MatchListResponse struct {
	Matches []MatchSummary `json:"matches"`
}

// LegalResponse is the response for GET /api/matches/{id}/legal.
type LegalResponse struct {
	From         int   `json:"from"`
	Destinations []int `json:"destinations"`
}

// ExportResponse is the response for GET /api/matches/{id}/export.
type ExportResponse struct {
	Notation string `json:"notation"`
	GnubgID  string `json:"gnubg_id"`
}

// RejectionJSON is the data of a "rejected" stream event.
type RejectionJSON struct {
	Action string `json:"action"`
	Color  string `json:"color,omitempty"`
	Error  string `json:"error"`
	Code   string `json:"code"`
}

// ============================================================================
// Helper Functions
// ============================================================================

func colorName(c rules.Color) string {
	if !c.Valid() {
		return ""
	}
	return c.String()
}

func movesJSON(moves []rules.Move) []MoveJSON {
	out := make([]MoveJSON, len(moves))
	for i, m := range moves {
		out[i] = MoveJSON{From: m.From, To: m.To, Die: m.Die, Hit: m.Hit, Text: m.String()}
	}
	return out
}

// SnapshotToResponse converts a session snapshot to its JSON form.
func SnapshotToResponse(s *session.Snapshot) *SnapshotResponse {
	st := s.State
	resp := &SnapshotResponse{
		MatchID:  string(s.MatchID),
		Version:  s.Version,
		Practice: s.Practice,
		Players:  s.Players,
		Seated:   s.Seated,
		Board: BoardJSON{
			Bar: [2]int{int(st.Position.Bar[rules.White.Index()]), int(st.Position.Bar[rules.Red.Index()])},
			Off: [2]int{int(st.Position.Off[rules.White.Index()]), int(st.Position.Off[rules.Red.Index()])},
			Pips: [2]int{
				st.Position.PipCount(rules.White),
				st.Position.PipCount(rules.Red),
			},
		},
		Cube: CubeJSON{
			Value:        st.Cube.Value,
			Owner:        colorName(st.Cube.Owner),
			OfferPending: st.Cube.OfferPending,
			OfferedBy:    colorName(st.Cube.OfferedBy),
		},
		Turn:     colorName(st.Turn),
		ToAct:    colorName(s.ToAct()),
		Phase:    st.Phase.String(),
		Crawford: st.Crawford,
		Match: MatchJSON{
			Target:         s.Match.Target,
			Score:          s.Match.Score,
			Crawford:       s.Match.Crawford,
			CrawfordPlayed: s.Match.CrawfordPlayed,
			Status:         s.Match.Status.String(),
			Winner:         colorName(s.Match.Winner),
			Games:          s.Match.Games,
			Forfeited:      s.Match.Forfeited,
		},
		GameNumber: s.GameNumber,
		Legal:      movesJSON(s.Legal),
		Played:     movesJSON(s.Played),
		CanUndo:    s.CanUndo,
		Notation:   s.Notation,
		GnubgID:    s.GnubgID,
		DiceStats:  s.Dice,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
	for i := 1; i <= 24; i++ {
		resp.Board.Points[i] = int(st.Position.Points[i])
	}
	if st.Dice.Rolled() {
		resp.Dice = st.Dice.Values[:]
		resp.Remaining = st.Dice.Remaining()
	}
	if r := s.LastResult; r != nil {
		resp.LastResult = &ResultJSON{
			Winner:     colorName(r.Winner),
			Multiplier: r.Multiplier,
			CubeValue:  r.CubeValue,
			Stakes:     r.Stakes,
			Reason:     r.Reason.String(),
		}
	}
	return resp
}

// SummaryOf converts a snapshot to a list entry.
func SummaryOf(s *session.Snapshot) MatchSummary {
	return MatchSummary{
		MatchID:    string(s.MatchID),
		Players:    s.Players,
		Target:     s.Match.Target,
		Score:      s.Match.Score,
		Status:     s.Match.Status.String(),
		Practice:   s.Practice,
		GameNumber: s.GameNumber,
		CreatedAt:  s.CreatedAt,
	}
}

// RejectionToJSON converts a rejection event.
func RejectionToJSON(e session.RejectionEvent) RejectionJSON {
	return RejectionJSON{
		Action: e.Action,
		Color:  colorName(e.Color),
		Error:  e.Message,
		Code:   e.Kind.String(),
	}
}

// HistoryEntry is a finished match read from storage.
type HistoryEntry struct {
	MatchID   string    `json:"match_id"`
	Target    int       `json:"target"`
	Practice  bool      `json:"practice"`
	Players   [2]string `json:"players"`
	Score     [2]int    `json:"score"`
	Winner    string    `json:"winner,omitempty"`
	Forfeited bool      `json:"forfeited,omitempty"`
	Games     int       `json:"games"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// HistoryResponse is the response for GET /api/history.
type HistoryResponse struct {
	Matches []HistoryEntry `json:"matches"`
}

// HistoryGame is one stored game of a finished match.
type HistoryGame struct {
	Number     int    `json:"number"`
	Winner     string `json:"winner,omitempty"`
	Multiplier int    `json:"multiplier"`
	CubeValue  int    `json:"cube_value"`
	Stakes     int    `json:"stakes"`
	Reason     string `json:"reason"`
	Crawford   bool   `json:"crawford,omitempty"`
	Position   string `json:"position"`
}

// HistoryDetail is the response for GET /api/history/{id}.
type HistoryDetail struct {
	HistoryEntry
	Games      []HistoryGame `json:"games"`
	Transcript string        `json:"transcript"`
}

func historyEntry(e storage.MatchEntry) HistoryEntry {
	return HistoryEntry{
		MatchID:   e.MatchID,
		Target:    e.Target,
		Practice:  e.Practice,
		Players:   [2]string{e.White, e.Red},
		Score:     e.Score,
		Winner:    colorName(e.Winner),
		Forfeited: e.Forfeited,
		Games:     e.Games,
		StartedAt: e.StartedAt,
		EndedAt:   e.EndedAt,
	}
}
