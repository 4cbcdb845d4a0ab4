package domain

import (
	"context"
	"time"
)

// SnapshotCache holds the single stored snapshot of the domain list.
// Read fails soft: a missing or undecodable snapshot yields ErrNotFound,
// never a propagated deserialization error.
type SnapshotCache interface {
	Read(ctx context.Context) (StoredSnapshot, error)
	Write(ctx context.Context, domains []Domain, ts time.Time) error
}

// SignalBus provides same-device pub/sub between agent processes.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking, used to guard settlement so it
// runs at most once per record across agents.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
