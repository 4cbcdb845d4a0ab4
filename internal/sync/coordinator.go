// Package sync owns the shared domain-list state. Every update, whatever its
// source (authoritative fetch, change feed, same-device broadcast, or a local
// transition), flows through the Coordinator, which serializes writes and
// fans the resulting view out to subscribers.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kovacsd/domainbid/internal/broadcast"
	"github.com/kovacsd/domainbid/internal/domain"
)

// Rebroadcaster is the slice of the broadcaster the coordinator needs.
type Rebroadcaster interface {
	Broadcast(ctx context.Context, msgType string, domains []domain.Domain) error
}

// Notifier is the slice of the notification system the coordinator needs.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config holds coordinator tuning knobs.
type Config struct {
	// StaleAfter is the snapshot staleness threshold for warm starts.
	StaleAfter time.Duration

	// Viewer is the identity whose outbid events are surfaced. Empty
	// disables outbid notifications.
	Viewer string
}

// Coordinator is the single point where domain-list state is written.
// Incoming updates replace the view wholesale; last writer wins by arrival
// order. Within one process, arrival order is lock-acquisition order.
type Coordinator struct {
	cfg      Config
	store    domain.DomainStore
	cache    domain.SnapshotCache
	rebro    Rebroadcaster
	notifier Notifier
	logger   *slog.Logger

	mu          sync.Mutex
	view        []domain.Domain
	lastUpdated time.Time
	loaded      bool

	subMu   sync.Mutex
	subs    map[int]chan []domain.Domain
	nextSub int
}

// NewCoordinator creates a Coordinator. rebro and notifier may be nil.
func NewCoordinator(cfg Config, store domain.DomainStore, cache domain.SnapshotCache, rebro Rebroadcaster, notifier Notifier, logger *slog.Logger) *Coordinator {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = domain.SnapshotStaleAfter
	}
	return &Coordinator{
		cfg:      cfg,
		store:    store,
		cache:    cache,
		rebro:    rebro,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "coordinator")),
		subs:     make(map[int]chan []domain.Domain),
	}
}

// Start seeds the view. A fresh cached snapshot is applied immediately so
// the UI has data while the authoritative fetch is in flight; the fetch then
// replaces it. A stale or missing snapshot leaves the view in the loading
// state until the fetch lands.
func (c *Coordinator) Start(ctx context.Context) error {
	if c.cache != nil {
		snap, err := c.cache.Read(ctx)
		switch {
		case err == nil && !snap.Stale(time.Now(), c.cfg.StaleAfter):
			c.apply(ctx, snap.Domains, snap.Timestamp, applyOpts{})
			c.logger.Info("warm start from cached snapshot",
				slog.Int("domains", len(snap.Domains)),
				slog.Time("snapshot_ts", snap.Timestamp),
			)
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			c.logger.Warn("snapshot read failed", slog.String("error", err.Error()))
		}
	}

	return c.Resync(ctx)
}

// Resync forces a fresh authoritative fetch and applies it. Called at start,
// when the agent regains foreground attention, and after the change feed
// surfaces a permanent failure. When the fetch fails, the last-known-good
// view is retained and the cached snapshot (even stale) is the fallback for
// a not-yet-loaded view.
func (c *Coordinator) Resync(ctx context.Context) error {
	domains, err := c.store.FetchAll(ctx)
	if err != nil {
		c.logger.Error("authoritative fetch failed", slog.String("error", err.Error()))

		c.mu.Lock()
		loaded := c.loaded
		c.mu.Unlock()

		if !loaded && c.cache != nil {
			if snap, cacheErr := c.cache.Read(ctx); cacheErr == nil {
				c.apply(ctx, snap.Domains, snap.Timestamp, applyOpts{})
				c.logger.Warn("serving stale snapshot after failed fetch",
					slog.Time("snapshot_ts", snap.Timestamp),
				)
			}
		}
		return fmt.Errorf("sync: resync: %w", err)
	}

	c.apply(ctx, domains, time.Now(), applyOpts{persist: true, rebroadcast: true})
	return nil
}

// ApplyIncoming replaces the view with a snapshot from the change feed.
// Every applied feed update is persisted to the snapshot cache and
// re-broadcast so sibling agents converge without their own server
// connection.
func (c *Coordinator) ApplyIncoming(ctx context.Context, domains []domain.Domain, sourceTimestamp time.Time) {
	c.apply(ctx, domains, sourceTimestamp, applyOpts{persist: true, rebroadcast: true})
}

// ApplyBroadcast replaces the view with a snapshot received from a sibling
// agent. Not re-broadcast: echoing a broadcast back onto the bus is how
// storms start.
func (c *Coordinator) ApplyBroadcast(ctx context.Context, domains []domain.Domain, sentAt time.Time) {
	c.apply(ctx, domains, sentAt, applyOpts{persist: true})
}

// ApplyLocal replaces the view after a local transition (bid, buy-now,
// submit, admin action). Persisted and re-broadcast like a feed update.
func (c *Coordinator) ApplyLocal(ctx context.Context, domains []domain.Domain) {
	c.apply(ctx, domains, time.Now(), applyOpts{persist: true, rebroadcast: true})
}

// Snapshot returns a deep copy of the current view.
func (c *Coordinator) Snapshot() []domain.Domain {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.CloneList(c.view)
}

// Loaded reports whether any snapshot has been applied yet; false means the
// UI should show a loading state.
func (c *Coordinator) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// LastUpdated returns the source timestamp of the current view.
func (c *Coordinator) LastUpdated() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUpdated
}

// Subscribe registers a view subscriber. Each applied update delivers a deep
// copy of the new view; a subscriber that falls behind misses intermediate
// states but always receives the latest. The returned func cancels the
// subscription.
func (c *Coordinator) Subscribe() (<-chan []domain.Domain, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan []domain.Domain, 1)
	c.subs[id] = ch

	cancel := func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

type applyOpts struct {
	persist     bool
	rebroadcast bool
}

// apply is the single write path. Wholesale replacement, last writer wins by
// arrival order; no timestamp reconciliation is attempted for out-of-order
// delivery across processes.
func (c *Coordinator) apply(ctx context.Context, domains []domain.Domain, sourceTimestamp time.Time, opts applyOpts) {
	next := domain.CloneList(domains)

	c.mu.Lock()
	prev := c.view
	c.view = next
	c.lastUpdated = sourceTimestamp
	c.loaded = true
	c.mu.Unlock()

	c.checkOutbid(ctx, prev, next)

	if opts.persist && c.cache != nil {
		if err := c.cache.Write(ctx, next, sourceTimestamp); err != nil {
			c.logger.Warn("snapshot write failed", slog.String("error", err.Error()))
		}
	}

	if opts.rebroadcast && c.rebro != nil {
		if err := c.rebro.Broadcast(ctx, broadcast.TypeDomainsUpdated, next); err != nil {
			c.logger.Warn("rebroadcast failed", slog.String("error", err.Error()))
		}
	}

	c.notifySubs(next)
}

func (c *Coordinator) notifySubs(view []domain.Domain) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for _, ch := range c.subs {
		snapshot := domain.CloneList(view)
		select {
		case ch <- snapshot:
		default:
			// Drop the stale pending view and replace it with the latest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

// checkOutbid notifies the viewer when an applied update overwrites their
// leading position on any listing.
func (c *Coordinator) checkOutbid(ctx context.Context, prev, next []domain.Domain) {
	if c.notifier == nil || c.cfg.Viewer == "" || len(prev) == 0 {
		return
	}

	prevByID := make(map[int64]domain.Domain, len(prev))
	for _, d := range prev {
		prevByID[d.ID] = d
	}

	for _, d := range next {
		old, ok := prevByID[d.ID]
		if !ok {
			continue
		}
		if domain.SameUser(old.CurrentBidder, c.cfg.Viewer) &&
			d.CurrentBidder != "" &&
			!domain.SameUser(d.CurrentBidder, c.cfg.Viewer) {
			msg := fmt.Sprintf("%s is now at %.2f, held by %s", d.Name, d.CurrentBid, d.CurrentBidder)
			if err := c.notifier.Notify(ctx, "outbid", "Outbid on "+d.Name, msg); err != nil {
				c.logger.Warn("outbid notification failed", slog.String("error", err.Error()))
			}
		}
	}
}
