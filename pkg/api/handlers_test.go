package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/bgserver/internal/storage"
	"github.com/yourusername/bgserver/pkg/rules"
	"github.com/yourusername/bgserver/pkg/session"
)

type testEnv struct {
	server   *Server
	registry *session.Registry
	ts       *httptest.Server
}

func newTestEnv(t *testing.T, defaults session.Options, opts HandlerConfig) *testEnv {
	t.Helper()
	if defaults.Roller == nil {
		defaults.Roller = rules.NewFixedRoller([2]int{3, 1})
	}
	registry := session.NewRegistry(defaults)
	if opts.Version == "" {
		opts.Version = "test-version"
	}
	if opts.DefaultTarget == 0 {
		opts.DefaultTarget = 5
	}
	srv := NewServer(registry, DefaultConfig(), opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	// Runs before ts.Close so open streams end first.
	t.Cleanup(func() {
		srv.handlers.Close()
		registry.Close()
	})
	return &testEnv{server: srv, registry: registry, ts: ts}
}

func (e *testEnv) call(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (e *testEnv) snapshot(t *testing.T, method, path string, body any, wantStatus int) SnapshotResponse {
	t.Helper()
	resp, data := e.call(t, method, path, body)
	require.Equal(t, wantStatus, resp.StatusCode, string(data))
	var snap SnapshotResponse
	require.NoError(t, json.Unmarshal(data, &snap))
	return snap
}

func (e *testEnv) expectError(t *testing.T, method, path string, body any, wantStatus int, wantCode string) {
	t.Helper()
	resp, data := e.call(t, method, path, body)
	require.Equal(t, wantStatus, resp.StatusCode, string(data))
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(data, &er))
	assert.Equal(t, wantCode, er.Code)
	assert.NotEmpty(t, er.Error)
}

func (e *testEnv) seatedMatch(t *testing.T, req CreateMatchRequest) string {
	t.Helper()
	if req.Player == "" {
		req.Player = "alice"
	}
	snap := e.snapshot(t, "POST", "/api/matches", req, http.StatusCreated)
	e.snapshot(t, "POST", "/api/matches/"+snap.MatchID+"/actions",
		ActionRequest{Action: "join", Player: "bob"}, http.StatusOK)
	return snap.MatchID
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t, session.Options{}, HandlerConfig{})
	env.seatedMatch(t, CreateMatchRequest{})

	resp, data := env.call(t, "GET", "/api/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(data, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test-version", health.Version)
	assert.Equal(t, 1, health.Matches)
	require.NotNil(t, health.Pool)
	assert.Equal(t, 100, health.Pool.MaxRequests)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCreateAndGetMatch(t *testing.T) {
	env := newTestEnv(t, session.Options{}, HandlerConfig{})

	target := 3
	created := env.snapshot(t, "POST", "/api/matches",
		CreateMatchRequest{Target: &target, Player: "alice"}, http.StatusCreated)
	assert.NotEmpty(t, created.MatchID)
	assert.Equal(t, 3, created.Match.Target)
	assert.Equal(t, [2]bool{true, false}, created.Seated)
	assert.Equal(t, "waiting_for_player", created.Match.Status)

	got := env.snapshot(t, "GET", "/api/matches/"+created.MatchID, nil, http.StatusOK)
	assert.Equal(t, created.Version, got.Version)

	defaulted := env.snapshot(t, "POST", "/api/matches", nil, http.StatusCreated)
	assert.Equal(t, 5, defaulted.Match.Target)

	resp, data := env.call(t, "GET", "/api/matches", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list MatchListResponse
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list.Matches, 2)
	assert.Equal(t, created.MatchID, list.Matches[0].MatchID)

	env.expectError(t, "GET", "/api/matches/nope", nil, http.StatusNotFound, "not_found")
	env.expectError(t, "POST", "/api/matches", "{", http.StatusBadRequest, "invalid_json")
	env.expectError(t, "POST", "/api/matches", CreateMatchRequest{Bot: "blue"}, http.StatusUnprocessableEntity, "validation")
	env.expectError(t, "POST", "/api/matches",
		CreateMatchRequest{Bot: "red", Player: "alice", Color: "red"}, http.StatusConflict, "state_conflict")
	negative := -1
	env.expectError(t, "POST", "/api/matches", CreateMatchRequest{Target: &negative}, http.StatusUnprocessableEntity, "validation")
}

func TestSubmitActions(t *testing.T) {
	env := newTestEnv(t, session.Options{}, HandlerConfig{})
	id := env.seatedMatch(t, CreateMatchRequest{})
	actions := "/api/matches/" + id + "/actions"

	snap := env.snapshot(t, "POST", actions, ActionRequest{Action: "roll", Color: "white"}, http.StatusOK)
	assert.Equal(t, "moves_remaining", snap.Phase)
	assert.Equal(t, []int{3, 1}, snap.Dice)
	assert.NotEmpty(t, snap.Legal)

	resp, data := env.call(t, "GET", "/api/matches/"+id+"/legal?from=8", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var legal LegalResponse
	require.NoError(t, json.Unmarshal(data, &legal))
	assert.Contains(t, legal.Destinations, 5)

	resp, data = env.call(t, "GET", "/api/matches/"+id+"/legal?from=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"from":2,"destinations":[]}`, string(data))

	snap = env.snapshot(t, "POST", actions, ActionRequest{Action: "move", Color: "w", From: 8, To: 5}, http.StatusOK)
	assert.True(t, snap.CanUndo)
	require.Len(t, snap.Played, 1)
	assert.Equal(t, "8/5", snap.Played[0].Text)

	tests := []struct {
		name   string
		req    any
		status int
		code   string
	}{
		{"wrong color", ActionRequest{Action: "roll", Color: "red"}, http.StatusUnprocessableEntity, "validation"},
		{"illegal move", ActionRequest{Action: "move", Color: "white", From: 24, To: 20}, http.StatusUnprocessableEntity, "validation"},
		{"double after roll", ActionRequest{Action: "offer_double", Color: "white"}, http.StatusConflict, "state_conflict"},
		{"import outside practice", ActionRequest{Action: "import_position", Notation: "bgp1"}, http.StatusConflict, "state_conflict"},
		{"unknown action", ActionRequest{Action: "dance"}, http.StatusUnprocessableEntity, "validation"},
		{"unknown color", ActionRequest{Action: "roll", Color: "green"}, http.StatusUnprocessableEntity, "validation"},
		{"bad json", "[", http.StatusBadRequest, "invalid_json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.expectError(t, "POST", actions, tt.req, tt.status, tt.code)
		})
	}

	after := env.snapshot(t, "GET", "/api/matches/"+id, nil, http.StatusOK)
	assert.Equal(t, snap.Version, after.Version, "rejections must not change state")

	env.expectError(t, "GET", "/api/matches/"+id+"/legal?from=x", nil, http.StatusUnprocessableEntity, "validation")
	env.expectError(t, "POST", "/api/matches/nope/actions", ActionRequest{Action: "roll"}, http.StatusNotFound, "not_found")
}

func TestImportPositionParseError(t *testing.T) {
	env := newTestEnv(t, session.Options{}, HandlerConfig{})
	id := env.seatedMatch(t, CreateMatchRequest{Practice: true})
	actions := "/api/matches/" + id + "/actions"

	env.expectError(t, "POST", actions, ActionRequest{Action: "import_position", Notation: "bgp1;points=x"},
		http.StatusBadRequest, "parse")

	export := env.snapshot(t, "GET", "/api/matches/"+id, nil, http.StatusOK).Notation
	snap := env.snapshot(t, "POST", actions, ActionRequest{Action: "import_position", Notation: export}, http.StatusOK)
	assert.Equal(t, export, snap.Notation)
	assert.True(t, snap.Practice)
}

func TestExportAndTranscript(t *testing.T) {
	env := newTestEnv(t, session.Options{}, HandlerConfig{})
	target := 3
	id := env.seatedMatch(t, CreateMatchRequest{Target: &target})

	resp, data := env.call(t, "GET", "/api/matches/"+id+"/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var export ExportResponse
	require.NoError(t, json.Unmarshal(data, &export))
	assert.True(t, strings.HasPrefix(export.Notation, "bgp1;"))
	assert.Equal(t, "4HPwATDgc/ABMA", export.GnubgID)

	actions := "/api/matches/" + id + "/actions"
	env.snapshot(t, "POST", actions, ActionRequest{Action: "offer_double", Color: "white"}, http.StatusOK)
	env.snapshot(t, "POST", actions, ActionRequest{Action: "decline_double", Color: "red"}, http.StatusOK)

	resp, data = env.call(t, "GET", "/api/matches/"+id+"/transcript", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	text := string(data)
	assert.Contains(t, text, "3 point match")
	assert.Contains(t, text, "Doubles => 2")
	assert.Contains(t, text, "Drops")
}

func TestDeleteMatch(t *testing.T) {
	env := newTestEnv(t, session.Options{}, HandlerConfig{})
	id := env.seatedMatch(t, CreateMatchRequest{})

	resp, _ := env.call(t, "DELETE", "/api/matches/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	env.expectError(t, "DELETE", "/api/matches/"+id, nil, http.StatusNotFound, "not_found")
	env.expectError(t, "GET", "/api/matches/"+id, nil, http.StatusNotFound, "not_found")
}

func TestBotOpponent(t *testing.T) {
	env := newTestEnv(t, session.Options{}, HandlerConfig{})
	target := 3
	created := env.snapshot(t, "POST", "/api/matches",
		CreateMatchRequest{Target: &target, Player: "alice", Bot: "red"}, http.StatusCreated)
	require.Equal(t, "in_progress", created.Match.Status)
	assert.Equal(t, [2]string{"alice", "bot"}, created.Players)

	id := created.MatchID
	actions := "/api/matches/" + id + "/actions"
	env.snapshot(t, "POST", actions, ActionRequest{Action: "roll", Color: "white"}, http.StatusOK)
	env.snapshot(t, "POST", actions, ActionRequest{Action: "move", Color: "white", From: 8, To: 5}, http.StatusOK)
	env.snapshot(t, "POST", actions, ActionRequest{Action: "move", Color: "white", From: 6, To: 5}, http.StatusOK)
	env.snapshot(t, "POST", actions, ActionRequest{Action: "end_turn", Color: "white"}, http.StatusOK)

	require.Eventually(t, func() bool {
		snap := env.snapshot(t, "GET", "/api/matches/"+id, nil, http.StatusOK)
		return snap.ToAct == "white" && snap.Phase == "awaiting_roll"
	}, 5*time.Second, 10*time.Millisecond, "bot did not finish its turn")

	snap := env.snapshot(t, "GET", "/api/matches/"+id, nil, http.StatusOK)
	assert.Equal(t, [2]int{1, 1}, snap.DiceStats.Rolls)
}

func readSSE(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t, session.Options{}, HandlerConfig{})
	created := env.snapshot(t, "POST", "/api/matches", CreateMatchRequest{Player: "alice"}, http.StatusCreated)
	id := created.MatchID

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", env.ts.URL+"/api/matches/"+id+"/events", nil)
	require.NoError(t, err)
	resp, err := env.ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	name, data := readSSE(t, r)
	require.Equal(t, "snapshot", name)
	var snap SnapshotResponse
	require.NoError(t, json.Unmarshal([]byte(data), &snap))
	assert.Equal(t, created.Version, snap.Version)

	env.snapshot(t, "POST", "/api/matches/"+id+"/actions", ActionRequest{Action: "join", Player: "bob"}, http.StatusOK)
	name, data = readSSE(t, r)
	require.Equal(t, "snapshot", name)
	require.NoError(t, json.Unmarshal([]byte(data), &snap))
	assert.Equal(t, created.Version+1, snap.Version)
	assert.Equal(t, "in_progress", snap.Match.Status)

	env.expectError(t, "POST", "/api/matches/"+id+"/actions", ActionRequest{Action: "roll", Color: "red"},
		http.StatusUnprocessableEntity, "validation")
	name, data = readSSE(t, r)
	require.Equal(t, "rejected", name)
	var rej RejectionJSON
	require.NoError(t, json.Unmarshal([]byte(data), &rej))
	assert.Equal(t, "roll", rej.Action)
	assert.Equal(t, "red", rej.Color)
	assert.Equal(t, "validation", rej.Code)

	env.call(t, "DELETE", "/api/matches/"+id, nil)
	name, _ = readSSE(t, r)
	assert.Equal(t, "closed", name)
}

func TestEventStreamLimit(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxStreams: 1})
	env := newTestEnv(t, session.Options{}, HandlerConfig{Pool: pool})
	id := env.seatedMatch(t, CreateMatchRequest{})

	require.True(t, pool.TryAcquireStream())
	defer pool.ReleaseStream()
	env.expectError(t, "GET", "/api/matches/"+id+"/events", nil, http.StatusServiceUnavailable, "server_busy")
}

func dialWS(t *testing.T, env *testEnv, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + path
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { ws.Close() })
	return ws
}

// readWS returns the next message matching keep.
func readWS(t *testing.T, ws *websocket.Conn, keep func(map[string]any) bool) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg map[string]any
		require.NoError(t, ws.ReadJSON(&msg))
		if keep(msg) {
			return msg
		}
	}
}

func byID(id string) func(map[string]any) bool {
	return func(m map[string]any) bool { return m["id"] == id }
}

func TestWebSocketPlayer(t *testing.T) {
	env := newTestEnv(t, session.Options{}, HandlerConfig{})
	id := env.seatedMatch(t, CreateMatchRequest{})
	ws := dialWS(t, env, "/api/matches/"+id+"/ws?color=white")

	first := readWS(t, ws, func(map[string]any) bool { return true })
	assert.Equal(t, "event", first["type"])
	assert.Equal(t, "snapshot", first["event"])

	require.NoError(t, ws.WriteJSON(WSMessage{Type: "ping", ID: "p1"}))
	pong := readWS(t, ws, byID("p1"))
	assert.Equal(t, "pong", pong["type"])

	payload, _ := json.Marshal(ActionRequest{Action: "roll"})
	require.NoError(t, ws.WriteJSON(WSMessage{Type: "action", ID: "a1", Payload: payload}))
	res := readWS(t, ws, byID("a1"))
	require.Equal(t, "result", res["type"], res)
	snap := res["payload"].(map[string]any)
	assert.Equal(t, "moves_remaining", snap["phase"])

	payload, _ = json.Marshal(map[string]int{"from": 8})
	require.NoError(t, ws.WriteJSON(WSMessage{Type: "legal", ID: "l1", Payload: payload}))
	res = readWS(t, ws, byID("l1"))
	dests := res["payload"].(map[string]any)["destinations"].([]any)
	assert.Contains(t, dests, float64(5))

	payload, _ = json.Marshal(ActionRequest{Action: "roll", Color: "red"})
	require.NoError(t, ws.WriteJSON(WSMessage{Type: "action", ID: "a2", Payload: payload}))
	res = readWS(t, ws, byID("a2"))
	assert.Equal(t, "error", res["type"])
	assert.Equal(t, "validation", res["code"])

	require.NoError(t, ws.WriteJSON(WSMessage{Type: "bogus", ID: "b1"}))
	res = readWS(t, ws, byID("b1"))
	assert.Equal(t, "error", res["type"])

	// Actions from another client reach this connection as events.
	env.snapshot(t, "POST", "/api/matches/"+id+"/actions",
		ActionRequest{Action: "move", Color: "white", From: 8, To: 5}, http.StatusOK)
	evt := readWS(t, ws, func(m map[string]any) bool {
		if m["type"] != "event" || m["event"] != "snapshot" {
			return false
		}
		played, _ := m["payload"].(map[string]any)["played"].([]any)
		return len(played) == 1
	})
	assert.Equal(t, "snapshot", evt["event"])
}

func TestWebSocketClosedMatch(t *testing.T) {
	env := newTestEnv(t, session.Options{}, HandlerConfig{})
	id := env.seatedMatch(t, CreateMatchRequest{})
	ws := dialWS(t, env, "/api/matches/"+id+"/ws")

	env.call(t, "DELETE", "/api/matches/"+id, nil)
	closed := readWS(t, ws, func(m map[string]any) bool { return m["event"] == "closed" })
	assert.Equal(t, "event", closed["type"])
}

func TestWebSocketUnknownMatch(t *testing.T) {
	env := newTestEnv(t, session.Options{}, HandlerConfig{})
	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/api/matches/nope/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHistory(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	env := newTestEnv(t, session.Options{Saver: store}, HandlerConfig{History: store})
	target := 3
	id := env.seatedMatch(t, CreateMatchRequest{Target: &target})
	env.snapshot(t, "POST", "/api/matches/"+id+"/actions", ActionRequest{Action: "abandon", Color: "red"}, http.StatusOK)

	resp, data := env.call(t, "GET", "/api/history?limit=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list HistoryResponse
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list.Matches, 1)
	assert.Equal(t, id, list.Matches[0].MatchID)
	assert.Equal(t, "white", list.Matches[0].Winner)
	assert.True(t, list.Matches[0].Forfeited)

	resp, data = env.call(t, "GET", "/api/history/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var detail HistoryDetail
	require.NoError(t, json.Unmarshal(data, &detail))
	require.Len(t, detail.Games, 1)
	assert.Equal(t, "abandoned", detail.Games[0].Reason)
	assert.Contains(t, detail.Transcript, "3 point match")

	env.expectError(t, "GET", "/api/history/nope", nil, http.StatusNotFound, "not_found")
}

func TestHistoryDisabled(t *testing.T) {
	env := newTestEnv(t, session.Options{}, HandlerConfig{})
	env.expectError(t, "GET", "/api/history", nil, http.StatusNotFound, "not_found")
}

func TestServerBusy(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxRequests: 1})
	env := newTestEnv(t, session.Options{}, HandlerConfig{Pool: pool})
	require.NoError(t, pool.Acquire(context.Background()))
	defer pool.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest("POST", "/api/matches", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&rules.Error{Kind: rules.ValidationError}, http.StatusUnprocessableEntity, "validation"},
		{&rules.Error{Kind: rules.StateConflictError}, http.StatusConflict, "state_conflict"},
		{rules.NewParseError("x", "bad"), http.StatusBadRequest, "parse"},
		{&rules.Error{Kind: rules.InvariantViolation}, http.StatusInternalServerError, "invariant"},
		{session.ErrClosed, http.StatusGone, "closed"},
		{context.Canceled, http.StatusServiceUnavailable, "server_busy"},
		{errors.New("boom"), http.StatusInternalServerError, "invariant"},
	}
	for _, tt := range tests {
		status, code := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}

func TestServerShutdown(t *testing.T) {
	registry := session.NewRegistry(session.Options{})
	srv := NewServer(registry, DefaultConfig(), HandlerConfig{})
	_, err := registry.Create(session.Options{Target: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.Equal(t, 0, registry.Count())
}
