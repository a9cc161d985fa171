package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/yourusername/bgserver/internal/storage"
	"github.com/yourusername/bgserver/pkg/rules"
	"github.com/yourusername/bgserver/pkg/session"
	"github.com/yourusername/bgserver/pkg/transcript"
)

// History gives read access to finished matches.
type History interface {
	RecentMatches(limit int) ([]storage.MatchEntry, error)
	MatchByID(matchID string) (*storage.MatchEntry, error)
	GamesForMatch(matchID string) ([]storage.GameEntry, error)
}

// HandlerConfig configures Handlers.
type HandlerConfig struct {
	Version       string
	DefaultTarget int
	Pool          *WorkerPool     // nil = unbounded
	History       History         // nil disables /api/history
	Logger        *log.Logger     // nil = discard
	Chooser       session.Chooser // bot move choice, nil = first legal move
}

// Handlers holds the HTTP handlers and the session registry.
type Handlers struct {
	registry *session.Registry
	config   HandlerConfig
	pool     *WorkerPool
	logger   *log.Logger

	botCtx    context.Context
	stopBots  context.CancelFunc
	bots      sync.WaitGroup
	closeOnce sync.Once
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(registry *session.Registry, config HandlerConfig) *Handlers {
	logger := config.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handlers{
		registry: registry,
		config:   config,
		pool:     config.Pool,
		logger:   logger,
		botCtx:   ctx,
		stopBots: cancel,
	}
}

// Close stops every bot started by CreateMatch and waits for them.
func (h *Handlers) Close() {
	h.closeOnce.Do(func() {
		h.stopBots()
		h.bots.Wait()
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, msg string, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: msg,
		Code:  code,
	})
}

// statusFor maps an action error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone, "closed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "server_busy"
	}
	kind := rules.KindOf(err)
	switch kind {
	case rules.ValidationError:
		return http.StatusUnprocessableEntity, kind.String()
	case rules.StateConflictError:
		return http.StatusConflict, kind.String()
	case rules.ParseError:
		return http.StatusBadRequest, kind.String()
	}
	return http.StatusInternalServerError, rules.InvariantViolation.String()
}

func writeActionError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, err.Error(), code)
}

// acquire takes a request slot if a pool is configured. It writes the error
// response itself and reports whether the handler may continue.
func (h *Handlers) acquire(w http.ResponseWriter, r *http.Request) (release func(), ok bool) {
	if h.pool == nil {
		return func() {}, true
	}
	if err := h.pool.Acquire(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "server busy", "server_busy")
		return nil, false
	}
	return h.pool.Release, true
}

// lookup resolves the {id} path value.
func (h *Handlers) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.PathValue("id")
	s, ok := h.registry.Get(session.MatchID(id))
	if !ok {
		writeError(w, http.StatusNotFound, "match "+id+" not found", "not_found")
		return nil, false
	}
	return s, true
}

func parseColorParam(s string) (rules.Color, error) {
	if s == "" {
		return rules.None, nil
	}
	c, ok := rules.ParseColor(s)
	if !ok {
		return rules.None, &rules.Error{Kind: rules.ValidationError, Op: "color", Msg: "unknown color " + strconv.Quote(s)}
	}
	return c, nil
}

// Health handles GET /api/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: h.config.Version,
		Matches: h.registry.Count(),
	}
	if h.pool != nil {
		stats := h.pool.Stats()
		resp.Pool = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateMatch handles POST /api/matches
func (h *Handlers) CreateMatch(w http.ResponseWriter, r *http.Request) {
	release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	var req CreateMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON", "invalid_json")
		return
	}
	target := h.config.DefaultTarget
	if req.Target != nil {
		target = *req.Target
	}
	botColor, err := parseColorParam(req.Bot)
	if err != nil {
		writeActionError(w, err)
		return
	}
	playerColor, err := parseColorParam(req.Color)
	if err != nil {
		writeActionError(w, err)
		return
	}
	if botColor != rules.None && req.Player != "" && playerColor == botColor {
		writeError(w, http.StatusConflict, "player and bot cannot share a seat", rules.StateConflictError.String())
		return
	}

	s, err := h.registry.Create(session.Options{Target: target, Practice: req.Practice})
	if err != nil {
		writeActionError(w, err)
		return
	}

	if botColor != rules.None {
		if _, err := s.Do(r.Context(), session.Join{Player: "bot", Color: botColor}); err != nil {
			h.registry.Remove(s.ID())
			writeActionError(w, err)
			return
		}
		h.startBot(s, botColor)
	}
	snap := s.Snapshot()
	if req.Player != "" {
		if snap, err = s.Do(r.Context(), session.Join{Player: req.Player, Color: playerColor}); err != nil {
			h.registry.Remove(s.ID())
			writeActionError(w, err)
			return
		}
	}

	h.logger.Info("match created", "match", string(s.ID()), "target", target, "practice", req.Practice, "bot", colorName(botColor))
	writeJSON(w, http.StatusCreated, SnapshotToResponse(snap))
}

func (h *Handlers) startBot(s *session.Session, c rules.Color) {
	bot := session.NewBot(s, c, h.config.Chooser, h.logger)
	h.bots.Add(1)
	go func() {
		defer h.bots.Done()
		if err := bot.Run(h.botCtx); err != nil && !errors.Is(err, context.Canceled) {
			h.logger.Warn("bot stopped", "match", string(s.ID()), "error", err)
		}
	}()
}

// ListMatches handles GET /api/matches
func (h *Handlers) ListMatches(w http.ResponseWriter, r *http.Request) {
	snaps := h.registry.List()
	resp := MatchListResponse{Matches: make([]MatchSummary, len(snaps))}
	for i, s := range snaps {
		resp.Matches[i] = SummaryOf(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetMatch handles GET /api/matches/{id}
func (h *Handlers) GetMatch(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, SnapshotToResponse(s.Snapshot()))
}

// DeleteMatch handles DELETE /api/matches/{id}
func (h *Handlers) DeleteMatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.registry.Remove(session.MatchID(id)) {
		writeError(w, http.StatusNotFound, "match "+id+" not found", "not_found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// toAction converts a request body to a session action.
func toAction(req ActionRequest) (session.Action, error) {
	c, err := parseColorParam(req.Color)
	if err != nil {
		return nil, err
	}
	return session.ParseAction(req.Action, c, req.From, req.To, req.Player, req.Notation)
}

// SubmitAction handles POST /api/matches/{id}/actions
func (h *Handlers) SubmitAction(w http.ResponseWriter, r *http.Request) {
	release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", "invalid_json")
		return
	}
	a, err := toAction(req)
	if err != nil {
		writeActionError(w, err)
		return
	}
	snap, err := s.Do(r.Context(), a)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SnapshotToResponse(snap))
}

// Legal handles GET /api/matches/{id}/legal?from=N
func (h *Handlers) Legal(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	from, err := strconv.Atoi(r.URL.Query().Get("from"))
	if err != nil || from < rules.BarPoint || from > rules.NumPoints {
		writeError(w, http.StatusUnprocessableEntity, "from must be a point between 0 and 24", rules.ValidationError.String())
		return
	}
	dests := s.LegalDestinations(from)
	if dests == nil {
		dests = []int{}
	}
	writeJSON(w, http.StatusOK, LegalResponse{From: from, Destinations: dests})
}

// Export handles GET /api/matches/{id}/export
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	snap := s.Snapshot()
	writeJSON(w, http.StatusOK, ExportResponse{Notation: snap.Notation, GnubgID: snap.GnubgID})
}

// Transcript handles GET /api/matches/{id}/transcript and returns MAT text.
func (h *Handlers) Transcript(w http.ResponseWriter, r *http.Request) {
	release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	m, err := s.Transcript(r.Context())
	if err != nil {
		writeActionError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := transcript.WriteMAT(&buf, m); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "internal")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+string(s.ID())+`.mat"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// HistoryList handles GET /api/history?limit=N
func (h *Handlers) HistoryList(w http.ResponseWriter, r *http.Request) {
	if h.config.History == nil {
		writeError(w, http.StatusNotFound, "history is disabled", "not_found")
		return
	}
	limit := parseIntParam(r.URL.Query().Get("limit"), 20)
	entries, err := h.config.History.RecentMatches(limit)
	if err != nil {
		h.logger.Error("history query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "history unavailable", "internal")
		return
	}
	out := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		out[i] = historyEntry(e)
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Matches: out})
}

// HistoryMatch handles GET /api/history/{id}
func (h *Handlers) HistoryMatch(w http.ResponseWriter, r *http.Request) {
	if h.config.History == nil {
		writeError(w, http.StatusNotFound, "history is disabled", "not_found")
		return
	}
	id := r.PathValue("id")
	m, err := h.config.History.MatchByID(id)
	if err == nil && m == nil {
		writeError(w, http.StatusNotFound, "match "+id+" not found", "not_found")
		return
	}
	var games []storage.GameEntry
	if err == nil {
		games, err = h.config.History.GamesForMatch(id)
	}
	if err != nil {
		h.logger.Error("history query failed", "match", id, "error", err)
		writeError(w, http.StatusInternalServerError, "history unavailable", "internal")
		return
	}

	resp := HistoryDetail{HistoryEntry: historyEntry(*m), Transcript: m.Transcript}
	for _, g := range games {
		resp.Games = append(resp.Games, HistoryGame{
			Number:     g.GameNumber,
			Winner:     colorName(g.Winner),
			Multiplier: g.Multiplier,
			CubeValue:  g.CubeValue,
			Stakes:     g.Stakes,
			Reason:     g.Reason.String(),
			Crawford:   g.Crawford,
			Position:   g.Position,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseIntParam parses an integer from a string with a default value.
func parseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
