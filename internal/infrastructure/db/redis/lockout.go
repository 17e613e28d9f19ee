package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/identity-service/internal/core/ports"
)

// Lockout counts failed logins per key within a window of Duration that
// starts at the first failure. Reaching MaxAttempts locks the key for a full
// Duration from that moment.
//
// Keys:
//
//	identity:lockout:<key>  failure counter, TTL = counting window
//	identity:locked:<key>   "1", TTL = lockout duration
type Lockout struct {
	client      *redis.Client
	maxAttempts int
	duration    time.Duration
}

// NewLockout returns a Lockout; maxAttempts <= 0 disables locking.
func NewLockout(client *redis.Client, maxAttempts int, duration time.Duration) *Lockout {
	return &Lockout{client: client, maxAttempts: maxAttempts, duration: duration}
}

var _ ports.LoginThrottle = (*Lockout)(nil)

func (l *Lockout) IsLocked(ctx context.Context, key string) (bool, error) {
	if l.maxAttempts <= 0 {
		return false, nil
	}
	n, err := l.client.Exists(ctx, l.lockedKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("lockout check: %w", err)
	}
	return n > 0, nil
}

func (l *Lockout) RecordFailure(ctx context.Context, key string) (bool, error) {
	if l.maxAttempts <= 0 {
		return false, nil
	}
	counter := l.counterKey(key)

	// The counter never exists without its TTL.
	pipe := l.client.TxPipeline()
	pipe.SetNX(ctx, counter, 0, l.duration)
	incr := pipe.Incr(ctx, counter)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("lockout record: %w", err)
	}
	if incr.Val() < int64(l.maxAttempts) {
		return false, nil
	}

	pipe = l.client.TxPipeline()
	pipe.Set(ctx, l.lockedKey(key), "1", l.duration)
	pipe.Del(ctx, counter)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("lockout record: %w", err)
	}
	return true, nil
}

func (l *Lockout) Reset(ctx context.Context, key string) error {
	if l.maxAttempts <= 0 {
		return nil
	}
	if err := l.client.Del(ctx, l.counterKey(key), l.lockedKey(key)).Err(); err != nil {
		return fmt.Errorf("lockout reset: %w", err)
	}
	return nil
}

func (l *Lockout) counterKey(key string) string {
	return "identity:lockout:" + key
}

func (l *Lockout) lockedKey(key string) string {
	return "identity:locked:" + key
}
