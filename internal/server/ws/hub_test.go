package ws

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kovacsd/domainbid/internal/live"
)

func testHub() *Hub {
	return NewHub(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// addClient registers a client directly, the way Run does for h.register.
func addClient(h *Hub, lastSeen time.Time) *client {
	c := &client{
		id:       "test-client",
		send:     make(chan []byte, sendBufferSize),
		lastSeen: lastSeen,
	}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	return c
}

func TestHubSendAfterReap(t *testing.T) {
	h := testHub()
	c := addClient(h, time.Now().Add(-2*deadAfter))

	h.reapDead()
	assert.Equal(t, 0, h.ClientCount())

	// A snapshot request can race the reaper: readPump still holds the
	// client pointer after its send channel was closed. The reply must be
	// dropped, not panic.
	require.NotPanics(t, func() {
		h.sendTo(c, live.Envelope{Type: live.MsgInitialData})
	})

	// Same for a client torn down through the unregister path.
	c2 := addClient(h, time.Now())
	h.drop(c2)
	require.NotPanics(t, func() {
		h.sendTo(c2, live.Envelope{Type: live.MsgInitialData})
	})
}

func TestHubSendToLiveClient(t *testing.T) {
	h := testHub()
	c := addClient(h, time.Now())

	h.sendTo(c, live.Envelope{Type: live.MsgHeartbeat})

	select {
	case frame := <-c.send:
		assert.Contains(t, string(frame), live.MsgHeartbeat)
	default:
		t.Fatal("expected a frame in the client's send buffer")
	}
}

func TestHubReapKeepsResponsiveClients(t *testing.T) {
	h := testHub()
	addClient(h, time.Now())
	addClient(h, time.Now().Add(-2*deadAfter))

	h.reapDead()
	assert.Equal(t, 1, h.ClientCount())
}
