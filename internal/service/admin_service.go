package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kovacsd/domainbid/internal/domain"
	dsync "github.com/kovacsd/domainbid/internal/sync"
)

// AdminService handles moderation: approve, reject, feature, delete.
type AdminService struct {
	coord  *dsync.Coordinator
	store  domain.DomainStore
	logger *slog.Logger
}

// NewAdminService creates an AdminService.
func NewAdminService(coord *dsync.Coordinator, store domain.DomainStore, logger *slog.Logger) *AdminService {
	return &AdminService{
		coord:  coord,
		store:  store,
		logger: logger.With(slog.String("component", "admin_service")),
	}
}

// Approve moves a pending listing to active.
func (s *AdminService) Approve(ctx context.Context, id int64, actor domain.Profile) (domain.Domain, error) {
	if !actor.IsAdmin() {
		return domain.Domain{}, domain.ErrForbidden
	}

	next, record, err := domain.Approve(s.coord.Snapshot(), id)
	if err != nil {
		return domain.Domain{}, err
	}

	persisted, err := s.store.Update(ctx, record)
	if err != nil {
		return domain.Domain{}, fmt.Errorf("admin_service: approve domain %d: %w", id, err)
	}

	replaceByID(next, persisted)
	s.coord.ApplyLocal(ctx, next)

	s.logger.InfoContext(ctx, "listing approved",
		slog.Int64("domain_id", id),
		slog.String("by", actor.Username),
	)
	return persisted, nil
}

// Reject hard-deletes a pending listing.
func (s *AdminService) Reject(ctx context.Context, id int64, actor domain.Profile) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}

	next, rejected, err := domain.Reject(s.coord.Snapshot(), id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("admin_service: reject domain %d: %w", id, err)
	}

	s.coord.ApplyLocal(ctx, next)

	s.logger.InfoContext(ctx, "listing rejected",
		slog.Int64("domain_id", id),
		slog.String("name", rejected.Name),
		slog.String("by", actor.Username),
	)
	return nil
}

// Feature toggles the featured flag on a listing.
func (s *AdminService) Feature(ctx context.Context, id int64, actor domain.Profile) (domain.Domain, error) {
	next, record, err := domain.ToggleFeatured(s.coord.Snapshot(), id, actor)
	if err != nil {
		return domain.Domain{}, err
	}

	persisted, err := s.store.Update(ctx, record)
	if err != nil {
		return domain.Domain{}, fmt.Errorf("admin_service: feature domain %d: %w", id, err)
	}

	replaceByID(next, persisted)
	s.coord.ApplyLocal(ctx, next)
	return persisted, nil
}

// Delete removes a listing unconditionally.
func (s *AdminService) Delete(ctx context.Context, id int64, actor domain.Profile) error {
	next, deleted, err := domain.Delete(s.coord.Snapshot(), id, actor)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("admin_service: delete domain %d: %w", id, err)
	}

	s.coord.ApplyLocal(ctx, next)

	s.logger.InfoContext(ctx, "listing deleted",
		slog.Int64("domain_id", id),
		slog.String("name", deleted.Name),
		slog.String("by", actor.Username),
	)
	return nil
}

func replaceByID(view []domain.Domain, d domain.Domain) {
	for i := range view {
		if view[i].ID == d.ID {
			view[i] = d
			return
		}
	}
}
