// Package service exposes the user-facing operations of the agent: listing
// submission, bidding, buy-now, admin moderation, and identity. Services run
// the pure transition functions against the coordinator's view, persist the
// result, and feed it back through the coordinator so every surface and
// sibling agent sees it.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kovacsd/domainbid/internal/domain"
	dsync "github.com/kovacsd/domainbid/internal/sync"
)

// AuctionService handles submit, bid, proxy-bid, and buy-now.
type AuctionService struct {
	coord  *dsync.Coordinator
	store  domain.DomainStore
	logger *slog.Logger
}

// NewAuctionService creates an AuctionService.
func NewAuctionService(coord *dsync.Coordinator, store domain.DomainStore, logger *slog.Logger) *AuctionService {
	return &AuctionService{
		coord:  coord,
		store:  store,
		logger: logger.With(slog.String("component", "auction_service")),
	}
}

// Submit validates and persists a new pending listing.
func (s *AuctionService) Submit(ctx context.Context, sub domain.Submission, listedBy string) (domain.Domain, error) {
	view := s.coord.Snapshot()

	next, record, err := domain.Submit(view, sub, listedBy, time.Now())
	if err != nil {
		return domain.Domain{}, err
	}

	persisted, err := s.store.Insert(ctx, record)
	if err != nil {
		return domain.Domain{}, fmt.Errorf("auction_service: submit %q: %w", sub.Name, err)
	}

	// The backend assigned ID and CreatedAt; swap the provisional record.
	next[len(next)-1] = persisted
	s.coord.ApplyLocal(ctx, next)

	s.logger.InfoContext(ctx, "listing submitted",
		slog.Int64("domain_id", persisted.ID),
		slog.String("name", persisted.Name),
		slog.String("listed_by", listedBy),
	)
	return persisted, nil
}

// Bid places a bid as the given identity.
func (s *AuctionService) Bid(ctx context.Context, id int64, amount float64, bidder string) (domain.Domain, error) {
	return s.mutate(ctx, id, "bid", func(view []domain.Domain, now time.Time) ([]domain.Domain, domain.Domain, error) {
		return domain.PlaceBid(view, id, amount, bidder, now)
	})
}

// ProxyBid places an automatic incremental bid up to the given ceiling.
func (s *AuctionService) ProxyBid(ctx context.Context, id int64, ceiling float64, bidder string) (domain.Domain, error) {
	return s.mutate(ctx, id, "proxy_bid", func(view []domain.Domain, now time.Time) ([]domain.Domain, domain.Domain, error) {
		return domain.PlaceProxyBid(view, id, ceiling, bidder, now)
	})
}

// BuyNow closes a listing at its fixed price.
func (s *AuctionService) BuyNow(ctx context.Context, id int64, buyer string) (domain.Domain, error) {
	return s.mutate(ctx, id, "buy_now", func(view []domain.Domain, now time.Time) ([]domain.Domain, domain.Domain, error) {
		return domain.BuyNow(view, id, buyer, now)
	})
}

// mutate runs one transition, persists the changed record, and applies the
// new view. A failed persist leaves the coordinator at last-known-good.
func (s *AuctionService) mutate(ctx context.Context, id int64, op string, fn func([]domain.Domain, time.Time) ([]domain.Domain, domain.Domain, error)) (domain.Domain, error) {
	view := s.coord.Snapshot()

	next, record, err := fn(view, time.Now())
	if err != nil {
		return domain.Domain{}, err
	}

	persisted, err := s.store.Update(ctx, record)
	if err != nil {
		return domain.Domain{}, fmt.Errorf("auction_service: %s domain %d: %w", op, id, err)
	}

	for i := range next {
		if next[i].ID == persisted.ID {
			next[i] = persisted
			break
		}
	}
	s.coord.ApplyLocal(ctx, next)

	s.logger.InfoContext(ctx, "transition applied",
		slog.String("op", op),
		slog.Int64("domain_id", persisted.ID),
		slog.Float64("current_bid", persisted.CurrentBid),
		slog.String("status", string(persisted.Status)),
	)
	return persisted, nil
}
