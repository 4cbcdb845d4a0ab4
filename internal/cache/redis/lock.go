package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kovacsd/domainbid/internal/domain"
)

// unlockTimeout bounds the release call made from the unlock closure, which
// runs under its own context because the caller's may already be done.
const unlockTimeout = 5 * time.Second

// unlockLua deletes a lock key only when its value matches the holder's
// token, so one agent cannot release a lock another agent took over after a
// TTL expiry.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// LockManager implements domain.LockManager with SETNX plus a fencing token.
// The settler relies on it so at most one agent settles a given expired
// auction.
type LockManager struct {
	rdb    *redis.Client
	script *redis.Script
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:    c.Underlying(),
		script: redis.NewScript(unlockLua),
	}
}

// Acquire takes the named lock for at most ttl. It returns an idempotent
// unlock function on success and domain.ErrLockHeld when another holder has
// the lock.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	lockKey := "lock:" + key

	ok, err := lm.rdb.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
			defer cancel()
			_ = lm.script.Run(releaseCtx, lm.rdb, []string{lockKey}, token).Err()
		})
	}
	return unlock, nil
}

var _ domain.LockManager = (*LockManager)(nil)
