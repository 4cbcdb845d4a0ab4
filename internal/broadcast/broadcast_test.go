package broadcast

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kovacsd/domainbid/internal/domain"
)

// fakeBus is an in-memory SignalBus that records publishes and lets tests
// inject payloads into subscribers.
type fakeBus struct {
	mu        sync.Mutex
	published [][]byte
	sub       chan []byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{sub: make(chan []byte, 16)}
}

func (f *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, payload)
	return nil
}

func (f *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return f.sub, nil
}

func (f *fakeBus) publishedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleDomains() []domain.Domain {
	return []domain.Domain{{
		ID:         1,
		Name:       "example.com",
		CurrentBid: 100,
		Status:     domain.StatusActive,
		EndTime:    time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC),
	}}
}

func TestBroadcastThrottle(t *testing.T) {
	bus := newFakeBus()
	b := New(bus, "test:channel", 100*time.Millisecond, testLogger())
	ctx := context.Background()

	// First send goes out; immediate repeats inside the window are dropped
	// without error.
	require.NoError(t, b.Broadcast(ctx, TypeDomainsUpdated, sampleDomains()))
	require.NoError(t, b.Broadcast(ctx, TypeDomainsUpdated, sampleDomains()))
	require.NoError(t, b.Broadcast(ctx, TypeDomainsUpdated, sampleDomains()))
	assert.Equal(t, 1, bus.publishedCount())

	// After the window lapses the next send goes out again.
	time.Sleep(120 * time.Millisecond)
	require.NoError(t, b.Broadcast(ctx, TypeDomainsUpdated, sampleDomains()))
	assert.Equal(t, 2, bus.publishedCount())
}

func TestBroadcastPayloadShape(t *testing.T) {
	bus := newFakeBus()
	b := New(bus, "test:channel", time.Second, testLogger())

	require.NoError(t, b.Broadcast(context.Background(), TypeDomainsUpdated, sampleDomains()))
	require.Equal(t, 1, bus.publishedCount())

	var msg Message
	require.NoError(t, json.Unmarshal(bus.published[0], &msg))
	assert.Equal(t, TypeDomainsUpdated, msg.Type)
	assert.Equal(t, b.SenderID(), msg.Sender)
	assert.NotEmpty(t, msg.Timestamp)
	require.Len(t, msg.Domains, 1)
	assert.Equal(t, "example.com", msg.Domains[0].Name)
}

func TestListen(t *testing.T) {
	newMessage := func(sender, msgType string) []byte {
		payload, err := json.Marshal(Message{
			Type:      msgType,
			Sender:    sender,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
		require.NoError(t, err)
		return payload
	}

	t.Run("delivers messages from other senders", func(t *testing.T) {
		bus := newFakeBus()
		b := New(bus, "test:channel", time.Second, testLogger())

		got := make(chan string, 1)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = b.Listen(ctx, func(msgType string, domains []domain.Domain, sentAt time.Time) {
				got <- msgType
			})
		}()

		bus.sub <- newMessage("someone-else", TypeDomainsUpdated)

		select {
		case typ := <-got:
			assert.Equal(t, TypeDomainsUpdated, typ)
		case <-time.After(time.Second):
			t.Fatal("handler never called")
		}

		cancel()
		<-done
	})

	t.Run("filters own messages and junk", func(t *testing.T) {
		bus := newFakeBus()
		b := New(bus, "test:channel", time.Second, testLogger())

		var mu sync.Mutex
		var calls int
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = b.Listen(ctx, func(msgType string, domains []domain.Domain, sentAt time.Time) {
				mu.Lock()
				calls++
				mu.Unlock()
			})
		}()

		bus.sub <- newMessage(b.SenderID(), TypeDomainsUpdated) // own echo
		bus.sub <- []byte(`not json`)                           // malformed
		bus.sub <- newMessage("other", "mystery")               // unknown type
		bus.sub <- newMessage("other", TypeDomainsUpdated)      // the one to deliver

		assert.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return calls == 1
		}, time.Second, 10*time.Millisecond)

		cancel()
		<-done

		mu.Lock()
		assert.Equal(t, 1, calls)
		mu.Unlock()
	})
}
