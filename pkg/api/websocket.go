package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourusername/bgserver/pkg/rules"
	"github.com/yourusername/bgserver/pkg/session"
)

const wsWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins - configure properly in production
	},
}

// WSMessage is a client message.
type WSMessage struct {
	Type    string          `json:"type"`              // "action", "legal", "snapshot", "ping"
	ID      string          `json:"id,omitempty"`      // echoed in the reply
	Payload json.RawMessage `json:"payload,omitempty"` // ActionRequest for "action", {"from":N} for "legal"
}

// WSResponse is a server message. Replies carry the request ID; pushed
// session events have Type "event" and name the event in Event.
type WSResponse struct {
	Type    string `json:"type"`              // "result", "error", "event", "pong"
	ID      string `json:"id,omitempty"`      // request ID
	Event   string `json:"event,omitempty"`   // snapshot, rejected, closed
	Payload any    `json:"payload,omitempty"` // response data
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// WSClient is one player connection to a match. Actions without a color use
// the color the connection was opened with.
type WSClient struct {
	conn     *websocket.Conn
	handlers *Handlers
	session  *session.Session
	color    rules.Color
	sendChan chan WSResponse
	done     chan struct{}
}

// WebSocket handles GET /api/matches/{id}/ws?color=white|red
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	color, err := parseColorParam(r.URL.Query().Get("color"))
	if err != nil {
		writeActionError(w, err)
		return
	}
	if h.pool != nil {
		if !h.pool.TryAcquireStream() {
			writeError(w, http.StatusServiceUnavailable, "too many streams", "server_busy")
			return
		}
		defer h.pool.ReleaseStream()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	client := &WSClient{
		conn:     conn,
		handlers: h,
		session:  s,
		color:    color,
		sendChan: make(chan WSResponse, 256),
		done:     make(chan struct{}),
	}
	h.logger.Debug("player attached", "match", string(s.ID()), "color", colorName(color))

	sub := s.Subscribe(0)
	go client.writePump()
	go client.forward(sub)
	client.readPump()
	sub.Close()
}

// send queues msg unless the connection is gone.
func (c *WSClient) send(msg WSResponse) {
	select {
	case c.sendChan <- msg:
	case <-c.done:
	}
}

func (c *WSClient) writePump() {
	defer c.conn.Close()
	for {
		select {
		case msg := <-c.sendChan:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
			if msg.Type == "event" && msg.Event == "closed" {
				c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "match closed"),
					time.Now().Add(wsWriteWait))
				return
			}
		case <-c.done:
			return
		}
	}
}

// forward pushes session events to the client.
func (c *WSClient) forward(sub *session.Subscription) {
	for {
		select {
		case evt := <-sub.Events():
			name, data := streamEvent(evt)
			c.send(WSResponse{Type: "event", Event: name, Payload: data})
			if name == "closed" {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *WSClient) readPump() {
	defer func() { close(c.done); c.conn.Close() }()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		c.handleMessage(ctx, msg)
	}
}

func (c *WSClient) handleMessage(ctx context.Context, msg WSMessage) {
	switch msg.Type {
	case "action":
		c.handleAction(ctx, msg)
	case "legal":
		var req struct {
			From int `json:"from"`
		}
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			c.send(WSResponse{Type: "error", ID: msg.ID, Error: "invalid payload", Code: "invalid_json"})
			return
		}
		dests := c.session.LegalDestinations(req.From)
		if dests == nil {
			dests = []int{}
		}
		c.send(WSResponse{Type: "result", ID: msg.ID, Payload: LegalResponse{From: req.From, Destinations: dests}})
	case "snapshot":
		c.send(WSResponse{Type: "result", ID: msg.ID, Payload: SnapshotToResponse(c.session.Snapshot())})
	case "ping":
		c.send(WSResponse{Type: "pong", ID: msg.ID})
	default:
		c.send(WSResponse{Type: "error", ID: msg.ID, Error: "unknown message type", Code: "invalid_json"})
	}
}

func (c *WSClient) handleAction(ctx context.Context, msg WSMessage) {
	var req ActionRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.send(WSResponse{Type: "error", ID: msg.ID, Error: "invalid payload", Code: "invalid_json"})
		return
	}
	if req.Color == "" && c.color != rules.None {
		req.Color = c.color.String()
	}
	a, err := toAction(req)
	if err == nil {
		var snap *session.Snapshot
		if snap, err = c.session.Do(ctx, a); err == nil {
			c.send(WSResponse{Type: "result", ID: msg.ID, Payload: SnapshotToResponse(snap)})
			return
		}
	}
	_, code := statusFor(err)
	c.send(WSResponse{Type: "error", ID: msg.ID, Error: err.Error(), Code: code})
}
