package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/11-rizwan/health-mirror-stage-3/server/internal/alerts"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/analyzer"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/auth"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/config"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/metrics"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/shipper"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/store"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/vision"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 32

	// maxMessageBytes bounds one inbound message; frames are base64 images.
	maxMessageBytes = 8 << 20
)

// Client and server event names.
const (
	EventFrame           = "frame"
	EventSaveSession     = "save_session"
	EventAnalysisResults = "analysis_results"
	EventSessionSaved    = "session_saved"
	EventAlert           = "alert"
	EventError           = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 << 10,
	WriteBufferSize: 4096,
	// Allow all origins; the authenticating proxy in front owns CORS.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope of every event in both directions.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SaveStatus is the payload of a session_saved event.
type SaveStatus struct {
	Status  string `json:"status"` // "success" | "failure"
	Message string `json:"message,omitempty"`
}

// ErrorEvent is the payload of an error event.
type ErrorEvent struct {
	Message string `json:"message"`
}

// Deps are the collaborators a Hub drives. Alerts and Metrics may be nil.
type Deps struct {
	Sessions *analyzer.Registry
	Shipper  *shipper.Shipper
	Alerts   *alerts.Engine
	Metrics  *metrics.Metrics
	Identity config.IdentityConfig

	// NewID returns session IDs. Defaults to uuid.NewString.
	NewID func() string
}

// Hub serves /ws/monitor. Every connection is one monitoring session:
// frames go through that session's analyzer and results are written back
// on the same connection.
type Hub struct {
	deps Deps

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// client represents one connected WebSocket client.
type client struct {
	conn    *websocket.Conn
	id      auth.Identity
	session *analyzer.Analyzer

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// New creates a Hub.
func New(deps Deps) *Hub {
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	return &Hub{
		deps:    deps,
		clients: make(map[*client]struct{}),
	}
}

// Run blocks until ctx is cancelled, then closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// ServeHTTP checks the identity headers, upgrades the connection and serves
// one monitoring session until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := auth.Read(r, h.deps.Identity)
	switch {
	case id.UserID == "":
		http.Error(w, "missing "+h.deps.Identity.UserHeader+" header", http.StatusBadRequest)
		return
	case id.TeamID == "":
		http.Error(w, "missing "+h.deps.Identity.TeamHeader+" header", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	session, err := h.deps.Sessions.Open(h.deps.NewID())
	if err != nil {
		slog.Error("ws: open session", "user", id.UserID, "err", err)
		conn.Close()
		return
	}
	if h.deps.Metrics != nil {
		h.deps.Metrics.SessionOpened()
	}
	slog.Info("ws: session started", "session", session.ID(), "user", id.UserID, "team", id.TeamID)

	c := &client{
		conn:    conn,
		id:      id,
		session: session,
		send:    make(chan []byte, sendBufSize),
	}
	h.register(c)
	defer func() {
		h.unregister(c)
		h.deps.Sessions.Close(session.ID())
		if h.deps.Alerts != nil {
			h.deps.Alerts.Forget(session.ID())
		}
		slog.Info("ws: session ended", "session", session.ID())
	}()

	go c.writePump()
	h.readPump(r.Context(), c) // blocks until connection closes
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

// readPump reads events until the connection closes. Frames of one session
// are handled strictly in order on this goroutine.
func (h *Hub) readPump(ctx context.Context, c *client) {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("ws: read failed", "session", c.session.ID(), "err", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.emit(EventError, ErrorEvent{Message: "malformed message"})
			continue
		}
		switch msg.Event {
		case EventFrame:
			h.handleFrame(ctx, c, msg.Data)
		case EventSaveSession:
			h.handleSave(c, msg.Data)
		default:
			slog.Debug("ws: ignoring unknown event", "session", c.session.ID(), "event", msg.Event)
		}
	}
}

func (h *Hub) handleFrame(ctx context.Context, c *client, data json.RawMessage) {
	var dataURL string
	if err := json.Unmarshal(data, &dataURL); err != nil {
		c.emit(EventError, ErrorEvent{Message: "frame must be a data URL string"})
		return
	}
	frame, err := vision.DecodeDataURL(dataURL)
	if err != nil {
		slog.Warn("ws: dropping undecodable frame", "session", c.session.ID(), "err", err)
		if h.deps.Metrics != nil {
			h.deps.Metrics.Frame(analyzer.OutcomeError)
		}
		c.emit(EventError, ErrorEvent{Message: "malformed frame"})
		return
	}

	result := c.session.Process(ctx, frame)
	c.emit(EventAnalysisResults, result)

	if h.deps.Alerts == nil {
		return
	}
	for _, a := range h.deps.Alerts.Evaluate(c.session.ID(), c.id.TeamID, result) {
		c.emit(EventAlert, a)
	}
}

// handleSave persists the client's summary, or the server-side tally when
// the event carries no data. The acknowledgement is sent once the write
// has finished.
func (h *Hub) handleSave(c *client, data json.RawMessage) {
	payload := []byte(data)
	if len(payload) == 0 || string(payload) == "null" {
		var err error
		payload, err = json.Marshal(c.session.Summary())
		if err != nil {
			c.emit(EventSessionSaved, SaveStatus{Status: "failure", Message: err.Error()})
			return
		}
	}

	h.deps.Shipper.Ship(shipper.Job{
		Record: store.Record{
			UserID:  c.id.UserID,
			TeamID:  c.id.TeamID,
			Payload: payload,
		},
		Done: func(err error) {
			if h.deps.Metrics != nil {
				h.deps.Metrics.SummarySaved(err)
			}
			if err != nil {
				msg := "could not save session"
				switch {
				case errors.Is(err, shipper.ErrDropped):
					msg = "server busy, session not saved"
				case errors.Is(err, shipper.ErrStopped):
					msg = "server shutting down, session not saved"
				}
				c.emit(EventSessionSaved, SaveStatus{Status: "failure", Message: msg})
				return
			}
			c.emit(EventSessionSaved, SaveStatus{Status: "success"})
		},
	})
}

// emit encodes one event and queues it. A client whose buffer is full is
// disconnected.
func (c *client) emit(event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("ws: encode event", "event", event, "err", err)
		return
	}
	msg, _ := json.Marshal(Message{Event: event, Data: data})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		slog.Warn("ws: client too slow, disconnecting", "session", c.session.ID())
		c.closed = true
		close(c.send)
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writePump drains the client's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames. Runs in its own
// goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Channel was closed (hub is shutting down or client removed).
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
