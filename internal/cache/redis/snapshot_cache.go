package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kovacsd/domainbid/internal/domain"
	"github.com/kovacsd/domainbid/internal/platform/marketplace"
)

// snapshotKey is the single key holding the stored snapshot. One snapshot,
// whole-list, overwritten on every write.
const snapshotKey = "domainbid:snapshot"

// snapshotTTL keeps an abandoned agent's snapshot from living forever. Well
// above the staleness threshold; staleness is judged by the embedded
// timestamp, not key expiry.
const snapshotTTL = 24 * time.Hour

// storedSnapshot is the persisted JSON shape, reusing the wire record
// representation.
type storedSnapshot struct {
	Domains   []marketplace.APIDomain `json:"domains"`
	Timestamp string                  `json:"timestamp"`
}

// SnapshotCache implements domain.SnapshotCache on a single Redis key.
type SnapshotCache struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
func NewSnapshotCache(c *Client, logger *slog.Logger) *SnapshotCache {
	return &SnapshotCache{
		rdb:    c.Underlying(),
		logger: logger.With(slog.String("component", "snapshot_cache")),
	}
}

// Read returns the stored snapshot. It fails soft: a missing key or an
// undecodable payload yields domain.ErrNotFound after logging; corruption
// never propagates to the caller.
func (sc *SnapshotCache) Read(ctx context.Context) (domain.StoredSnapshot, error) {
	data, err := sc.rdb.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.StoredSnapshot{}, domain.ErrNotFound
		}
		return domain.StoredSnapshot{}, fmt.Errorf("redis: read snapshot: %w", err)
	}

	var stored storedSnapshot
	if err := json.Unmarshal(data, &stored); err != nil {
		sc.logger.Warn("discarding undecodable snapshot", slog.String("error", err.Error()))
		return domain.StoredSnapshot{}, domain.ErrNotFound
	}

	ts, err := time.Parse(time.RFC3339Nano, stored.Timestamp)
	if err != nil {
		sc.logger.Warn("discarding snapshot with bad timestamp", slog.String("error", err.Error()))
		return domain.StoredSnapshot{}, domain.ErrNotFound
	}

	return domain.StoredSnapshot{
		Domains:   marketplace.ToDomainList(stored.Domains),
		Timestamp: ts,
	}, nil
}

// Write overwrites the stored snapshot. Side effect only; the caller does
// not depend on its success.
func (sc *SnapshotCache) Write(ctx context.Context, domains []domain.Domain, ts time.Time) error {
	stored := storedSnapshot{
		Domains:   marketplace.FromDomainList(domains),
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot: %w", err)
	}

	if err := sc.rdb.Set(ctx, snapshotKey, data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("redis: write snapshot: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SnapshotCache = (*SnapshotCache)(nil)
