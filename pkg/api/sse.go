package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/yourusername/bgserver/pkg/session"
)

// KeepAliveInterval is how often an idle event stream sends a comment line.
var KeepAliveInterval = 15 * time.Second

// Events streams a match to a spectator as Server-Sent Events.
// GET /api/matches/{id}/events
//
// Event types: "snapshot" (SnapshotResponse), "rejected" (RejectionJSON) and
// "closed". The first event is always the current snapshot.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported", "internal")
		return
	}
	if h.pool != nil {
		if !h.pool.TryAcquireStream() {
			writeError(w, http.StatusServiceUnavailable, "too many streams", "server_busy")
			return
		}
		defer h.pool.ReleaseStream()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.Subscribe(0)
	defer sub.Close()
	h.logger.Debug("spectator attached", "match", string(s.ID()))

	keepAlive := time.NewTicker(KeepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case evt := <-sub.Events():
			name, data := streamEvent(evt)
			writeSSEEvent(w, name, data)
			flusher.Flush()
			if name == "closed" {
				return
			}
		case <-sub.Done():
			// Drain what the session sent before ending.
			for {
				select {
				case evt := <-sub.Events():
					name, data := streamEvent(evt)
					writeSSEEvent(w, name, data)
				default:
					flusher.Flush()
					return
				}
			}
		}
	}
}

// streamEvent converts a session event to its wire name and payload. It is
// shared by the SSE and WebSocket transports.
func streamEvent(evt session.Event) (string, any) {
	switch e := evt.(type) {
	case session.SnapshotEvent:
		return "snapshot", SnapshotToResponse(e.Snapshot)
	case session.RejectionEvent:
		return "rejected", RejectionToJSON(e)
	case session.ClosedEvent:
		return "closed", map[string]string{"match_id": string(e.MatchID)}
	}
	return "unknown", nil
}

// writeSSEEvent writes a Server-Sent Event to the response.
func writeSSEEvent(w http.ResponseWriter, event string, data any) {
	fmt.Fprintf(w, "event: %s\n", event)
	if data != nil {
		jsonData, _ := json.Marshal(data)
		fmt.Fprintf(w, "data: %s\n", jsonData)
	}
	fmt.Fprintf(w, "\n")
}
