// Package broadcast propagates domain-list updates between agent processes
// on the same device over the signal bus, without a server round trip.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kovacsd/domainbid/internal/domain"
	"github.com/kovacsd/domainbid/internal/platform/marketplace"
)

// Message types on the broadcast channel.
const (
	TypeDomainsUpdated = "domains_updated"
	TypeDomainUpdate   = "domain_update"
)

// DefaultChannel is the bus channel name shared by all agents on a device.
const DefaultChannel = "domainbid:broadcast"

// DefaultThrottleWindow is the rolling window within which at most one
// broadcast is sent per sender. Sends inside the window are dropped, not
// queued; the change feed remains the authoritative resync path, so a
// dropped re-broadcast costs nothing but latency.
const DefaultThrottleWindow = time.Second

// Message is the JSON shape carried on the broadcast channel.
type Message struct {
	Type      string                  `json:"type"`
	Domains   []marketplace.APIDomain `json:"domains,omitempty"`
	Sender    string                  `json:"sender"`
	Timestamp string                  `json:"timestamp"`
}

// Handler receives messages broadcast by other senders on the channel.
type Handler func(msgType string, domains []domain.Domain, sentAt time.Time)

// Broadcaster publishes and receives domain-list updates on the bus. Each
// Broadcaster has a unique sender ID and never delivers its own messages to
// its handler.
type Broadcaster struct {
	bus     domain.SignalBus
	channel string
	sender  string
	window  time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	lastSent time.Time
}

// New creates a Broadcaster on the given channel. A zero window means
// DefaultThrottleWindow.
func New(bus domain.SignalBus, channel string, window time.Duration, logger *slog.Logger) *Broadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	if window <= 0 {
		window = DefaultThrottleWindow
	}
	return &Broadcaster{
		bus:     bus,
		channel: channel,
		sender:  uuid.New().String(),
		window:  window,
		logger:  logger.With(slog.String("component", "broadcast")),
	}
}

// SenderID returns this broadcaster's unique sender identity.
func (b *Broadcaster) SenderID() string {
	return b.sender
}

// Broadcast publishes a typed message to all other agents on the channel.
// At most one send per rolling throttle window; sends within the window are
// dropped. Callers must not assume delivery of every call.
func (b *Broadcaster) Broadcast(ctx context.Context, msgType string, domains []domain.Domain) error {
	b.mu.Lock()
	now := time.Now()
	if now.Sub(b.lastSent) < b.window {
		b.mu.Unlock()
		b.logger.Debug("broadcast throttled", slog.String("type", msgType))
		return nil
	}
	b.lastSent = now
	b.mu.Unlock()

	msg := Message{
		Type:      msgType,
		Domains:   marketplace.FromDomainList(domains),
		Sender:    b.sender,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("broadcast: marshal message: %w", err)
	}
	if err := b.bus.Publish(ctx, b.channel, payload); err != nil {
		return fmt.Errorf("broadcast: publish: %w", err)
	}
	return nil
}

// Listen subscribes to the channel and delivers every message from other
// senders to the handler, in arrival order, until the context is cancelled.
// Malformed messages are dropped and logged.
func (b *Broadcaster) Listen(ctx context.Context, handler Handler) error {
	ch, err := b.bus.Subscribe(ctx, b.channel)
	if err != nil {
		return fmt.Errorf("broadcast: subscribe: %w", err)
	}

	b.logger.Info("broadcast listener started", slog.String("channel", b.channel))
	defer b.logger.Info("broadcast listener stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-ch:
			if !ok {
				return nil
			}
			b.handlePayload(payload, handler)
		}
	}
}

func (b *Broadcaster) handlePayload(payload []byte, handler Handler) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.logger.Warn("dropped malformed broadcast", slog.String("error", err.Error()))
		return
	}

	switch msg.Type {
	case TypeDomainsUpdated, TypeDomainUpdate:
	default:
		b.logger.Warn("dropped broadcast with unknown type", slog.String("type", msg.Type))
		return
	}

	if msg.Sender == b.sender {
		return // own message echoed back by the bus
	}

	sentAt := time.Now()
	if t, err := time.Parse(time.RFC3339Nano, msg.Timestamp); err == nil {
		sentAt = t
	}

	handler(msg.Type, marketplace.ToDomainList(msg.Domains), sentAt)
}
