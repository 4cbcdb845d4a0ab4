// Package ws fans the coordinator's view out to browser tabs over the same
// change-feed wire contract the agent itself consumes upstream: JSON frames
// discriminated by type, with app-level heartbeats.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kovacsd/domainbid/internal/live"
	"github.com/kovacsd/domainbid/internal/platform/marketplace"
	dsync "github.com/kovacsd/domainbid/internal/sync"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// heartbeatPeriod is the interval between server heartbeats.
	heartbeatPeriod = 30 * time.Second

	// deadAfter drops a client that has not answered a heartbeat for this
	// long.
	deadAfter = 2*heartbeatPeriod + 5*time.Second

	// maxMessageSize is the maximum size of an incoming frame.
	maxMessageSize = 4096

	// sendBufferSize is the outgoing channel buffer per client.
	sendBufferSize = 64
)

// upgrader configures the WebSocket upgrade parameters. The hub serves only
// same-device UI surfaces, so all origins are allowed.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client is a single connected UI tab. lastSeen and closed are guarded by
// the hub mutex; closed marks that send has been closed, so goroutines
// holding a stale pointer (the client's own readPump) must not write to it.
type client struct {
	id       string
	conn     *websocket.Conn
	send     chan []byte
	lastSeen time.Time
	closed   bool
}

// Hub manages connected UI tabs and pushes every coordinator update to them.
type Hub struct {
	coord  *dsync.Coordinator
	logger *slog.Logger

	mu         sync.RWMutex
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
}

// NewHub creates a Hub over the given coordinator.
func NewHub(coord *dsync.Coordinator, logger *slog.Logger) *Hub {
	return &Hub{
		coord:      coord,
		logger:     logger.With(slog.String("component", "ws_hub")),
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Run subscribes to the coordinator and serves connected clients until the
// context is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	updates, cancel := h.coord.Subscribe()
	defer cancel()

	heartbeat := time.NewTicker(heartbeatPeriod)
	defer heartbeat.Stop()

	h.logger.Info("ws hub started")
	defer h.logger.Info("ws hub stopped")

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Debug("client connected", slog.String("client_id", c.id))

		case c := <-h.unregister:
			h.drop(c)

		case view, ok := <-updates:
			if !ok {
				h.closeAll()
				return nil
			}
			h.broadcastFrame(live.Envelope{
				Type:      live.MsgDomainsUpdate,
				Domains:   marketplace.FromDomainList(view),
				Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			})

		case <-heartbeat.C:
			h.broadcastFrame(live.Envelope{Type: live.MsgHeartbeat})
			h.reapDead()
		}
	}
}

// HandleWS upgrades an HTTP request to a hub connection.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		id:       uuid.New().String(),
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		lastSeen: time.Now(),
	}

	h.register <- c

	go c.writePump()
	go h.readPump(c)

	// Every new tab starts from the current authoritative view.
	h.sendTo(c, live.Envelope{
		Type:      live.MsgInitialData,
		Domains:   marketplace.FromDomainList(h.coord.Snapshot()),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// readPump consumes client frames: subscribe handshakes, snapshot requests,
// and heartbeat responses.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister <- c
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var env live.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.logger.Debug("dropped malformed client frame", slog.String("client_id", c.id))
			continue
		}

		switch env.Type {
		case live.MsgHeartbeatResponse:
			h.mu.Lock()
			c.lastSeen = time.Now()
			h.mu.Unlock()

		case live.MsgGetInitialData:
			h.sendTo(c, live.Envelope{
				Type:      live.MsgInitialData,
				Domains:   marketplace.FromDomainList(h.coord.Snapshot()),
				Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			})

		case live.MsgSubscribe:
			// Single logical channel; the handshake is accepted as-is.
			h.mu.Lock()
			c.lastSeen = time.Now()
			h.mu.Unlock()
		}
	}
}

// writePump serializes all writes to one connection.
func (c *client) writePump() {
	defer c.conn.Close()

	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}

	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
}

func (h *Hub) broadcastFrame(env live.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("marshal frame failed", slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Slow consumer; it will be reaped if it also misses heartbeats.
		}
	}
}

func (h *Hub) sendTo(c *client, env live.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("marshal frame failed", slog.String("error", err.Error()))
		return
	}
	// The reaper may have closed c.send after the caller picked up its
	// client pointer; the closed check must happen under the same lock.
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.closed = true
		close(c.send)
		h.logger.Debug("client disconnected", slog.String("client_id", c.id))
	}
}

func (h *Hub) reapDead() {
	h.mu.Lock()
	var dead []*client
	cutoff := time.Now().Add(-deadAfter)
	for c := range h.clients {
		if c.lastSeen.Before(cutoff) {
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		delete(h.clients, c)
		c.closed = true
		close(c.send)
	}
	h.mu.Unlock()

	for _, c := range dead {
		h.logger.Debug("reaped unresponsive client", slog.String("client_id", c.id))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.closed = true
		close(c.send)
	}
}

// ClientCount returns the number of connected tabs.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
