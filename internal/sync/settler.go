package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kovacsd/domainbid/internal/domain"
)

// settleLockTTL bounds how long a crashed agent can block settlement of a
// record.
const settleLockTTL = 30 * time.Second

// Settler persists the implicit sale of expired auctions that received bids.
// Classification alone would show them as sold, but nothing would ever set
// FinalPrice and PurchaseDate; the settler closes that gap, at most once per
// record across all agents.
type Settler struct {
	coord    *Coordinator
	store    domain.DomainStore
	locks    domain.LockManager
	archiver domain.Archiver
	notifier Notifier
	interval time.Duration
	logger   *slog.Logger
}

// NewSettler creates a Settler scanning at the given interval. archiver and
// notifier may be nil.
func NewSettler(coord *Coordinator, store domain.DomainStore, locks domain.LockManager, archiver domain.Archiver, notifier Notifier, interval time.Duration, logger *slog.Logger) *Settler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Settler{
		coord:    coord,
		store:    store,
		locks:    locks,
		archiver: archiver,
		notifier: notifier,
		interval: interval,
		logger:   logger.With(slog.String("component", "settler")),
	}
}

// Run scans the coordinator's view periodically until the context is
// cancelled.
func (s *Settler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("settler started", slog.Duration("interval", s.interval))
	defer s.logger.Info("settler stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.SettlePass(ctx); err != nil {
				s.logger.Warn("settlement pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

// SettlePass settles every eligible record in the current view once. A lock
// held by a sibling agent means that agent is already settling the record;
// the pass skips it without error.
func (s *Settler) SettlePass(ctx context.Context) error {
	now := time.Now()
	view := s.coord.Snapshot()

	var settled []domain.Domain
	changed := false

	for i, d := range view {
		candidate, eligible := domain.SettleExpired(d, now)
		if !eligible {
			continue
		}

		unlock, err := s.locks.Acquire(ctx, fmt.Sprintf("settle:domain:%d", d.ID), settleLockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				continue
			}
			return fmt.Errorf("sync: settle lock %d: %w", d.ID, err)
		}

		persisted, err := s.store.Update(ctx, candidate)
		unlock()
		if err != nil {
			s.logger.Warn("settlement persist failed",
				slog.Int64("domain_id", d.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		view[i] = persisted
		settled = append(settled, persisted)
		changed = true

		s.logger.Info("settled expired auction",
			slog.Int64("domain_id", persisted.ID),
			slog.String("name", persisted.Name),
			slog.String("winner", persisted.CurrentBidder),
			slog.Float64("final_price", persisted.CurrentBid),
		)

		if s.notifier != nil {
			msg := fmt.Sprintf("%s sold to %s for %.2f", persisted.Name, persisted.CurrentBidder, persisted.CurrentBid)
			if err := s.notifier.Notify(ctx, "sale", "Auction settled", msg); err != nil {
				s.logger.Warn("sale notification failed", slog.String("error", err.Error()))
			}
		}
	}

	if !changed {
		return nil
	}

	if s.archiver != nil {
		if err := s.archiver.ArchiveSettled(ctx, settled); err != nil {
			s.logger.Warn("settlement archive failed", slog.String("error", err.Error()))
		}
	}

	s.coord.ApplyLocal(ctx, view)
	return nil
}
