package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kovacsd/domainbid/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// handshakeTimeout bounds the websocket dial.
	handshakeTimeout = 15 * time.Second
)

// State is the connection state machine of the channel.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

// SnapshotHandler is called for every authoritative domain-list snapshot
// received on the feed.
type SnapshotHandler func(domains []domain.Domain, receivedAt time.Time)

// FailureHandler is called once when the channel exhausts its reconnect
// budget and gives up. The UI keeps rendering last-known-good state; only a
// forced resync brings the channel back.
type FailureHandler func(err error)

// Config holds channel tuning knobs.
type Config struct {
	// URL is the change-feed websocket endpoint.
	URL string

	// SubscribeChannel is the logical channel named in the subscribe
	// handshake.
	SubscribeChannel string

	// ReconnectDelay is the fixed wait between reconnect attempts.
	ReconnectDelay time.Duration

	// MaxReconnects caps consecutive failed reconnect attempts before the
	// channel surfaces a permanent failure.
	MaxReconnects int
}

// Channel is the client for the marketplace change feed. It owns its
// connection; there is no package-level connection state.
type Channel struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.RWMutex
	conn   *websocket.Conn
	state  State
	closed bool

	writeMu sync.Mutex

	handlerMu       sync.RWMutex
	snapshotHandler SnapshotHandler
	failureHandler  FailureHandler

	// done is closed when the channel is shut down.
	done chan struct{}
}

// NewChannel creates a change-feed channel. Defaults: 5s reconnect delay,
// 5 reconnect attempts.
func NewChannel(cfg Config, logger *slog.Logger) *Channel {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = 5
	}
	return &Channel{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "live_channel")),
		state:  StateDisconnected,
		done:   make(chan struct{}),
	}
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// OnSnapshot registers the handler for incoming snapshots. One handler; the
// coordinator is the only consumer.
func (c *Channel) OnSnapshot(h SnapshotHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.snapshotHandler = h
}

// OnFailure registers the permanent-failure handler.
func (c *Channel) OnFailure(h FailureHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.failureHandler = h
}

// Connect establishes the websocket connection, performs the subscribe
// handshake, requests the initial snapshot, and starts the read loop. It
// also resets a failed channel, so a forced resync can revive it.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.ErrChannelClosed
	}
	if c.conn != nil {
		return nil // already connected
	}

	c.state = StateConnecting

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		c.state = StateDisconnected
		return fmt.Errorf("live: connect %s: %w", c.cfg.URL, err)
	}

	c.conn = conn
	c.state = StateConnected

	if err := c.send(conn, Envelope{Type: MsgSubscribe, Channel: c.cfg.SubscribeChannel}); err != nil {
		conn.Close()
		c.conn = nil
		c.state = StateDisconnected
		return fmt.Errorf("live: subscribe handshake: %w", err)
	}
	if err := c.send(conn, Envelope{Type: MsgGetInitialData}); err != nil {
		conn.Close()
		c.conn = nil
		c.state = StateDisconnected
		return fmt.Errorf("live: request initial data: %w", err)
	}

	go c.readLoop(conn)

	c.logger.Info("change feed connected", slog.String("url", c.cfg.URL))
	return nil
}

// Close shuts the channel down. The connection is closed and no reconnect
// is attempted. Safe to call more than once.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	c.state = StateDisconnected

	if c.conn != nil {
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// send writes one envelope to conn. The caller supplies the connection it
// captured under c.mu, so a racing Close cannot null it out from under the
// write; writeMu serializes writers on the same connection.
func (c *Channel) send(conn *websocket.Conn, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads frames until the connection drops, then hands off to the
// reconnect policy. Runs in its own goroutine per connection.
func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}

			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
				c.state = StateReconnecting
			}
			c.mu.Unlock()

			c.logger.Warn("change feed dropped", slog.String("error", err.Error()))
			c.reconnect()
			return
		}

		c.handleFrame(raw)
	}
}

// handleFrame validates and routes one incoming frame. Malformed frames are
// dropped and logged, never applied.
func (c *Channel) handleFrame(raw []byte) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		c.logger.Warn("dropped invalid frame",
			slog.String("error", err.Error()),
			slog.Int("payload_len", len(raw)),
		)
		return
	}

	switch env.Type {
	case MsgHeartbeat:
		// The server closes connections that do not answer heartbeats.
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn != nil {
			if err := c.send(conn, Envelope{Type: MsgHeartbeatResponse}); err != nil {
				c.logger.Warn("heartbeat response failed", slog.String("error", err.Error()))
			}
		}

	case MsgDomainsUpdate, MsgInitialData:
		c.handlerMu.RLock()
		h := c.snapshotHandler
		c.handlerMu.RUnlock()
		if h != nil {
			h(env.Snapshot(), time.Now())
		}

	case MsgError:
		c.logger.Warn("change feed server error", slog.String("error", env.Error))
	}
}

// reconnect retries the connection a bounded number of times with a fixed
// delay. After the budget is spent the channel transitions to failed and
// stays there until Connect is called again.
func (c *Channel) reconnect() {
	for attempt := 1; attempt <= c.cfg.MaxReconnects; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(c.cfg.ReconnectDelay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		err := c.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		c.logger.Warn("reconnect attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max", c.cfg.MaxReconnects),
			slog.String("error", err.Error()),
		)
	}

	c.mu.Lock()
	c.state = StateFailed
	c.mu.Unlock()

	c.logger.Error("change feed gave up after max reconnect attempts",
		slog.Int("attempts", c.cfg.MaxReconnects),
	)

	c.handlerMu.RLock()
	h := c.failureHandler
	c.handlerMu.RUnlock()
	if h != nil {
		h(domain.ErrChannelGaveUp)
	}
}
