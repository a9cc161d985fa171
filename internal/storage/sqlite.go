// Package storage persists finished backgammon games and matches in SQLite.
// Uses the pure-Go modernc.org/sqlite driver to avoid CGO dependencies.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/yourusername/bgserver/pkg/rules"
	"github.com/yourusername/bgserver/pkg/session"
)

const timeLayout = "2006-01-02 15:04:05"

// Store manages the SQLite database connection.
type Store struct {
	db *sql.DB
}

// GameEntry is a stored game result.
type GameEntry struct {
	ID         int64
	MatchID    string
	GameNumber int
	Winner     rules.Color
	Multiplier int
	CubeValue  int
	Stakes     int
	Reason     rules.EndReason
	Crawford   bool
	Position   string
	EndedAt    time.Time
}

// MatchEntry is a stored match result.
type MatchEntry struct {
	ID         int64
	MatchID    string
	Target     int
	Practice   bool
	White      string
	Red        string
	Score      [2]int
	Winner     rules.Color
	Forfeited  bool
	Games      int
	Transcript string
	StartedAt  time.Time
	EndedAt    time.Time
}

// Open creates or opens a SQLite database at the given path.
// It creates the parent directories if needed and runs migrations.
func Open(dbPath string) (*Store, error) {
	if dbPath != "" && dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("storage: cannot expand home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}
	// Sessions save from their own goroutines; one connection keeps SQLite
	// from reporting SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}
	return store, nil
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS games (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			match_id TEXT NOT NULL,
			game_number INTEGER NOT NULL,
			winner TEXT,
			multiplier INTEGER NOT NULL DEFAULT 0,
			cube_value INTEGER NOT NULL DEFAULT 1,
			stakes INTEGER NOT NULL DEFAULT 0,
			reason TEXT NOT NULL,
			crawford INTEGER NOT NULL DEFAULT 0,
			position TEXT NOT NULL,
			ended_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(match_id, game_number)
		);
		CREATE INDEX IF NOT EXISTS idx_games_match_id ON games(match_id);

		CREATE TABLE IF NOT EXISTS matches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			match_id TEXT NOT NULL UNIQUE,
			target INTEGER NOT NULL,
			practice INTEGER NOT NULL DEFAULT 0,
			white TEXT NOT NULL,
			red TEXT NOT NULL,
			score_white INTEGER NOT NULL DEFAULT 0,
			score_red INTEGER NOT NULL DEFAULT 0,
			winner TEXT,
			forfeited INTEGER NOT NULL DEFAULT 0,
			games INTEGER NOT NULL DEFAULT 0,
			transcript TEXT NOT NULL,
			started_at DATETIME,
			ended_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_matches_ended_at ON matches(ended_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveGameResult implements session.ResultSaver.
func (s *Store) SaveGameResult(rec session.GameRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO games
		 (match_id, game_number, winner, multiplier, cube_value, stakes, reason, crawford, position, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(rec.MatchID),
		rec.GameNumber,
		colorValue(rec.Winner),
		rec.Multiplier,
		rec.CubeValue,
		rec.Stakes,
		rec.Reason.String(),
		rec.Crawford,
		rec.Position,
		formatTime(rec.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("storage: cannot save game: %w", err)
	}
	return nil
}

// SaveMatchResult implements session.ResultSaver. Saving the same match
// again replaces the earlier row.
func (s *Store) SaveMatchResult(rec session.MatchRecord) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO matches
		 (match_id, target, practice, white, red, score_white, score_red, winner, forfeited, games, transcript, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(rec.MatchID),
		rec.Target,
		rec.Practice,
		rec.Players[rules.White.Index()],
		rec.Players[rules.Red.Index()],
		rec.Score[rules.White.Index()],
		rec.Score[rules.Red.Index()],
		colorValue(rec.Winner),
		rec.Forfeited,
		rec.Games,
		rec.Transcript,
		formatTime(rec.StartedAt),
		formatTime(rec.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("storage: cannot save match: %w", err)
	}
	return nil
}

var _ session.ResultSaver = (*Store)(nil)

// GamesForMatch returns the stored games of a match in game order.
func (s *Store) GamesForMatch(matchID string) ([]GameEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, match_id, game_number, winner, multiplier, cube_value, stakes, reason, crawford, position, ended_at
		 FROM games
		 WHERE match_id = ?
		 ORDER BY game_number`,
		matchID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query games: %w", err)
	}
	defer rows.Close()

	var entries []GameEntry
	for rows.Next() {
		var (
			e       GameEntry
			winner  sql.NullString
			reason  string
			endedAt any
		)
		if err := rows.Scan(&e.ID, &e.MatchID, &e.GameNumber, &winner, &e.Multiplier, &e.CubeValue,
			&e.Stakes, &reason, &e.Crawford, &e.Position, &endedAt); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		e.Winner = parseColor(winner)
		e.Reason = parseReason(reason)
		e.EndedAt = parseTime(endedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return entries, nil
}

const matchColumns = `id, match_id, target, practice, white, red, score_white, score_red,
		        winner, forfeited, games, transcript, started_at, ended_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanMatch(row scanner) (*MatchEntry, error) {
	var (
		e                  MatchEntry
		winner             sql.NullString
		startedAt, endedAt any
	)
	if err := row.Scan(&e.ID, &e.MatchID, &e.Target, &e.Practice, &e.White, &e.Red,
		&e.Score[rules.White.Index()], &e.Score[rules.Red.Index()], &winner, &e.Forfeited, &e.Games,
		&e.Transcript, &startedAt, &endedAt); err != nil {
		return nil, err
	}
	e.Winner = parseColor(winner)
	e.StartedAt = parseTime(startedAt)
	e.EndedAt = parseTime(endedAt)
	return &e, nil
}

// MatchByID returns a stored match, nil if there is none.
func (s *Store) MatchByID(matchID string) (*MatchEntry, error) {
	row := s.db.QueryRow(`SELECT `+matchColumns+` FROM matches WHERE match_id = ?`, matchID)
	e, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query match: %w", err)
	}
	return e, nil
}

// RecentMatches returns the most recently finished matches.
func (s *Store) RecentMatches(limit int) ([]MatchEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT `+matchColumns+`
		 FROM matches
		 ORDER BY ended_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query matches: %w", err)
	}
	defer rows.Close()

	var entries []MatchEntry
	for rows.Next() {
		e, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return entries, nil
}

// PlayerRecord counts a player's finished matches.
type PlayerRecord struct {
	Player string
	Played int
	Won    int
}

// PlayerStats aggregates the matches a player took part in.
func (s *Store) PlayerStats(player string) (*PlayerRecord, error) {
	rec := &PlayerRecord{Player: player}
	err := s.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN (white = ? AND winner = 'white') OR (red = ? AND winner = 'red') THEN 1 ELSE 0 END), 0)
		 FROM matches
		 WHERE white = ? OR red = ?`,
		player, player, player, player,
	).Scan(&rec.Played, &rec.Won)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot get player stats: %w", err)
	}
	return rec, nil
}

func colorValue(c rules.Color) sql.NullString {
	if !c.Valid() {
		return sql.NullString{}
	}
	return sql.NullString{String: c.String(), Valid: true}
}

func parseColor(v sql.NullString) rules.Color {
	if !v.Valid {
		return rules.None
	}
	c, _ := rules.ParseColor(v.String)
	return c
}

var reasons = map[string]rules.EndReason{
	rules.EndBearOff.String():   rules.EndBearOff,
	rules.EndDeclined.String():  rules.EndDeclined,
	rules.EndAbandoned.String(): rules.EndAbandoned,
	rules.EndVoid.String():      rules.EndVoid,
	rules.EndImported.String():  rules.EndImported,
}

func parseReason(s string) rules.EndReason {
	return reasons[s]
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

// parseTime handles both time.Time and string column values.
func parseTime(v any) time.Time {
	switch v := v.(type) {
	case time.Time:
		return v
	case string:
		if parsed, err := time.Parse(timeLayout, v); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
