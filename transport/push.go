// Package transport delivers pending interrupts to clients over either a
// push channel (websocket) or a pull channel (poll/acknowledge/approve),
// per the two delivery modes spec.md's interrupt transport section allows.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nexacrm/coordinator/interrupt"
	"github.com/nexacrm/coordinator/telemetry"
)

const heartbeatInterval = 30 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub manages one live websocket connection per session. A new connection
// for a session supersedes and closes any prior one, mirroring how a
// browser tab reconnecting after a refresh should not leave the old socket
// receiving events meant for the new one.
type Hub struct {
	mu      sync.Mutex
	conns   map[string]*conn
	logger  telemetry.Logger
	pending PendingLookup
}

// PendingLookup resolves the currently pending interrupt for a session, if
// any, so it can be delivered immediately on connect instead of waiting for
// the next Coordinator turn to republish it.
type PendingLookup func(ctx context.Context, sessionID string) (*interrupt.Interrupt, error)

type conn struct {
	ws     *websocket.Conn
	closed chan struct{}
	once   sync.Once
}

// NewHub constructs a Hub. logger and pending may be nil.
func NewHub(logger telemetry.Logger, pending PendingLookup) *Hub {
	return &Hub{conns: make(map[string]*conn), logger: logger, pending: pending}
}

// HandleWS upgrades the request to a websocket and registers it as the
// session's live connection, closing any previous one for the same session.
func (h *Hub) HandleWS(sessionID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logWarn(r.Context(), "transport: websocket upgrade failed", "error", err)
			return
		}
		c := &conn{ws: ws, closed: make(chan struct{})}
		h.register(sessionID, c)
		defer h.unregister(sessionID, c)

		if h.pending != nil {
			if pending, err := h.pending(r.Context(), sessionID); err == nil && pending != nil {
				_ = c.writeJSON(pending)
			}
		}

		go h.heartbeat(c)
		h.readLoop(r.Context(), sessionID, c)
	}
}

// Deliver pushes an interrupt to the session's live connection, if one is
// currently registered. It is a no-op (not an error) when the session has
// no open socket; the pull-mode store is the fallback for that case.
func (h *Hub) Deliver(sessionID string, i *interrupt.Interrupt) bool {
	h.mu.Lock()
	c, ok := h.conns[sessionID]
	h.mu.Unlock()
	if !ok {
		return false
	}
	return c.writeJSON(i) == nil
}

func (h *Hub) register(sessionID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if prior, ok := h.conns[sessionID]; ok {
		prior.close()
	}
	h.conns[sessionID] = c
}

func (h *Hub) unregister(sessionID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.conns[sessionID]; ok && current == c {
		delete(h.conns, sessionID)
	}
	c.close()
}

func (h *Hub) heartbeat(c *conn) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if c.ws.WriteMessage(websocket.PingMessage, nil) != nil {
				c.close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (h *Hub) readLoop(ctx context.Context, sessionID string, c *conn) {
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logWarn(ctx, "transport: websocket read error", "session_id", sessionID, "error", err)
			}
			return
		}
	}
}

func (c *conn) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
}

func (h *Hub) logWarn(ctx context.Context, msg string, kv ...any) {
	if h.logger != nil {
		h.logger.Warn(ctx, msg, kv...)
	}
}
