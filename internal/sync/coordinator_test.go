package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kovacsd/domainbid/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory DomainStore whose FetchAll can be forced to fail.
type fakeStore struct {
	mu       sync.Mutex
	domains  []domain.Domain
	fetchErr error
	fetches  int
}

func (f *fakeStore) FetchAll(ctx context.Context) ([]domain.Domain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return domain.CloneList(f.domains), nil
}

func (f *fakeStore) Insert(ctx context.Context, d domain.Domain) (domain.Domain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d.ID = int64(len(f.domains) + 1)
	f.domains = append(f.domains, d)
	return d, nil
}

func (f *fakeStore) Update(ctx context.Context, d domain.Domain) (domain.Domain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.domains {
		if f.domains[i].ID == d.ID {
			f.domains[i] = d
			return d, nil
		}
	}
	return domain.Domain{}, domain.ErrNotFound
}

func (f *fakeStore) UpsertBatch(ctx context.Context, domains []domain.Domain) error { return nil }

func (f *fakeStore) Delete(ctx context.Context, id int64) error { return nil }

// fakeCache is an in-memory SnapshotCache.
type fakeCache struct {
	mu      sync.Mutex
	snap    domain.StoredSnapshot
	has     bool
	readErr error
	writes  int
}

func (f *fakeCache) Read(ctx context.Context) (domain.StoredSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return domain.StoredSnapshot{}, f.readErr
	}
	if !f.has {
		return domain.StoredSnapshot{}, domain.ErrNotFound
	}
	return f.snap, nil
}

func (f *fakeCache) Write(ctx context.Context, domains []domain.Domain, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = domain.StoredSnapshot{Domains: domain.CloneList(domains), Timestamp: ts}
	f.has = true
	f.writes++
	return nil
}

// fakeRebro records broadcast calls.
type fakeRebro struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeRebro) Broadcast(ctx context.Context, msgType string, domains []domain.Domain) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeRebro) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeNotifier records events.
type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) Notify(ctx context.Context, event, title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeNotifier) got() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func listing(id int64, bid float64, bidder string) domain.Domain {
	return domain.Domain{
		ID:            id,
		Name:          "example.com",
		CurrentBid:    bid,
		CurrentBidder: bidder,
		Status:        domain.StatusActive,
		EndTime:       time.Now().Add(time.Hour),
	}
}

func TestCoordinatorStart(t *testing.T) {
	ctx := context.Background()

	t.Run("fetch replaces the view and persists the snapshot", func(t *testing.T) {
		store := &fakeStore{domains: []domain.Domain{listing(1, 100, "")}}
		cache := &fakeCache{}
		c := NewCoordinator(Config{}, store, cache, nil, nil, testLogger())

		require.NoError(t, c.Start(ctx))
		assert.True(t, c.Loaded())
		require.Len(t, c.Snapshot(), 1)
		assert.Equal(t, 1, cache.writes)
	})

	t.Run("fresh cached snapshot seeds the view before the fetch", func(t *testing.T) {
		store := &fakeStore{fetchErr: errors.New("backend down")}
		cache := &fakeCache{
			has:  true,
			snap: domain.StoredSnapshot{Domains: []domain.Domain{listing(1, 100, "")}, Timestamp: time.Now()},
		}
		c := NewCoordinator(Config{StaleAfter: 5 * time.Second}, store, cache, nil, nil, testLogger())

		err := c.Start(ctx)
		require.Error(t, err)

		// View was still seeded from the warm snapshot.
		assert.True(t, c.Loaded())
		assert.Len(t, c.Snapshot(), 1)
	})

	t.Run("stale snapshot is skipped on warm start but serves a failed fetch", func(t *testing.T) {
		store := &fakeStore{fetchErr: errors.New("backend down")}
		cache := &fakeCache{
			has:  true,
			snap: domain.StoredSnapshot{Domains: []domain.Domain{listing(1, 100, "")}, Timestamp: time.Now().Add(-time.Minute)},
		}
		c := NewCoordinator(Config{StaleAfter: 5 * time.Second}, store, cache, nil, nil, testLogger())

		err := c.Start(ctx)
		require.Error(t, err)

		// Fallback path applied the stale snapshot rather than nothing.
		assert.True(t, c.Loaded())
		assert.Len(t, c.Snapshot(), 1)
	})

	t.Run("nothing cached and fetch failing leaves the loading state", func(t *testing.T) {
		store := &fakeStore{fetchErr: errors.New("backend down")}
		c := NewCoordinator(Config{}, store, &fakeCache{}, nil, nil, testLogger())

		require.Error(t, c.Start(ctx))
		assert.False(t, c.Loaded())
		assert.Empty(t, c.Snapshot())
	})
}

func TestCoordinatorResyncKeepsLastKnownGood(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{domains: []domain.Domain{listing(1, 100, "")}}
	c := NewCoordinator(Config{}, store, &fakeCache{}, nil, nil, testLogger())
	require.NoError(t, c.Resync(ctx))

	store.mu.Lock()
	store.fetchErr = errors.New("backend down")
	store.mu.Unlock()

	require.Error(t, c.Resync(ctx))
	assert.True(t, c.Loaded())
	assert.Len(t, c.Snapshot(), 1, "failed resync must not clear the view")
}

func TestCoordinatorApply(t *testing.T) {
	ctx := context.Background()

	t.Run("last arrival wins wholesale", func(t *testing.T) {
		c := NewCoordinator(Config{}, &fakeStore{}, &fakeCache{}, nil, nil, testLogger())

		first := []domain.Domain{listing(1, 100, "bob"), listing(2, 60, "")}
		second := []domain.Domain{listing(1, 120, "carol")}

		c.ApplyIncoming(ctx, first, time.Now())
		c.ApplyIncoming(ctx, second, time.Now())

		view := c.Snapshot()
		require.Len(t, view, 1)
		assert.Equal(t, 120.0, view[0].CurrentBid)
		assert.Equal(t, "carol", view[0].CurrentBidder)
	})

	t.Run("feed updates re-broadcast, sibling broadcasts do not", func(t *testing.T) {
		rebro := &fakeRebro{}
		c := NewCoordinator(Config{}, &fakeStore{}, &fakeCache{}, rebro, nil, testLogger())

		c.ApplyIncoming(ctx, []domain.Domain{listing(1, 100, "")}, time.Now())
		assert.Equal(t, 1, rebro.count())

		c.ApplyBroadcast(ctx, []domain.Domain{listing(1, 110, "")}, time.Now())
		assert.Equal(t, 1, rebro.count(), "broadcast echo must not feed back onto the bus")

		c.ApplyLocal(ctx, []domain.Domain{listing(1, 120, "")})
		assert.Equal(t, 2, rebro.count())
	})

	t.Run("applying the same snapshot twice is harmless", func(t *testing.T) {
		c := NewCoordinator(Config{}, &fakeStore{}, &fakeCache{}, nil, nil, testLogger())
		snap := []domain.Domain{listing(1, 100, "bob")}
		ts := time.Now()

		c.ApplyIncoming(ctx, snap, ts)
		c.ApplyIncoming(ctx, snap, ts)

		view := c.Snapshot()
		require.Len(t, view, 1)
		assert.Equal(t, 100.0, view[0].CurrentBid)
	})

	t.Run("snapshot is a deep copy", func(t *testing.T) {
		c := NewCoordinator(Config{}, &fakeStore{}, &fakeCache{}, nil, nil, testLogger())
		c.ApplyIncoming(ctx, []domain.Domain{listing(1, 100, "bob")}, time.Now())

		view := c.Snapshot()
		view[0].CurrentBid = 999

		assert.Equal(t, 100.0, c.Snapshot()[0].CurrentBid)
	})
}

func TestCoordinatorSubscribe(t *testing.T) {
	ctx := context.Background()
	c := NewCoordinator(Config{}, &fakeStore{}, &fakeCache{}, nil, nil, testLogger())

	ch, cancel := c.Subscribe()
	defer cancel()

	c.ApplyIncoming(ctx, []domain.Domain{listing(1, 100, "")}, time.Now())

	select {
	case view := <-ch:
		require.Len(t, view, 1)
	case <-time.After(time.Second):
		t.Fatal("subscriber never notified")
	}

	// A slow subscriber gets the latest view, not a backlog.
	c.ApplyIncoming(ctx, []domain.Domain{listing(1, 110, "")}, time.Now())
	c.ApplyIncoming(ctx, []domain.Domain{listing(1, 120, "")}, time.Now())

	select {
	case view := <-ch:
		require.Len(t, view, 1)
		assert.Equal(t, 120.0, view[0].CurrentBid)
	case <-time.After(time.Second):
		t.Fatal("subscriber never notified")
	}

	cancel()
	_, open := <-ch
	assert.False(t, open, "cancel must close the channel")
}

func TestCoordinatorOutbidNotification(t *testing.T) {
	ctx := context.Background()

	t.Run("fires when the viewer loses the lead", func(t *testing.T) {
		notifier := &fakeNotifier{}
		c := NewCoordinator(Config{Viewer: "Bob"}, &fakeStore{}, &fakeCache{}, nil, notifier, testLogger())

		c.ApplyIncoming(ctx, []domain.Domain{listing(1, 100, "bob")}, time.Now())
		c.ApplyIncoming(ctx, []domain.Domain{listing(1, 120, "carol")}, time.Now())

		assert.Equal(t, []string{"outbid"}, notifier.got())
	})

	t.Run("silent when the viewer raises their own bid", func(t *testing.T) {
		notifier := &fakeNotifier{}
		c := NewCoordinator(Config{Viewer: "bob"}, &fakeStore{}, &fakeCache{}, nil, notifier, testLogger())

		c.ApplyIncoming(ctx, []domain.Domain{listing(1, 100, "bob")}, time.Now())
		c.ApplyIncoming(ctx, []domain.Domain{listing(1, 120, "BOB")}, time.Now())

		assert.Empty(t, notifier.got())
	})

	t.Run("silent when someone else is outbid", func(t *testing.T) {
		notifier := &fakeNotifier{}
		c := NewCoordinator(Config{Viewer: "bob"}, &fakeStore{}, &fakeCache{}, nil, notifier, testLogger())

		c.ApplyIncoming(ctx, []domain.Domain{listing(1, 100, "dave")}, time.Now())
		c.ApplyIncoming(ctx, []domain.Domain{listing(1, 120, "carol")}, time.Now())

		assert.Empty(t, notifier.got())
	})
}
