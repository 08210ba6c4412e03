// Package ratelimit implements the Rate Limiter & Abuse Gate (C13): a
// Redis-backed fixed-window counter keyed by route family and caller
// identity, with escalating block durations for repeat offenders.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Family names a class of rate-limited routes. Each family carries its own
// counter namespace so a burst against one surface never exhausts another's
// budget.
type Family string

const (
	FamilyLogin             Family = "login"
	FamilyReservationCreate Family = "reservation_create"
	FamilyPaymentWebhook    Family = "payment_webhook"
	FamilyIdentitySubmit    Family = "identity_submit"
	FamilyNotificationSend  Family = "notification_send"
)

// Limiter enforces a max-attempts-per-window budget per (family, key), with
// a separate escalation counter: each block tripped while the violation
// streak counter is alive (it expires twice maxBlock after the first
// violation) doubles the previous block, up to maxBlock.
type Limiter struct {
	redis      *redis.Client
	maxAttempt int
	window     time.Duration
	maxBlock   time.Duration
}

// New creates a Limiter. maxAttempt is the number of attempts allowed per
// window before the caller is blocked for one window; maxBlock caps the
// escalated block duration after repeated violations.
func New(rdb *redis.Client, maxAttempt int, window, maxBlock time.Duration) *Limiter {
	return &Limiter{redis: rdb, maxAttempt: maxAttempt, window: window, maxBlock: maxBlock}
}

// Result describes the outcome of a Check.
type Result struct {
	Allowed   bool
	Remaining int
	RetryAt   time.Time
}

func counterKey(family Family, key string) string {
	return fmt.Sprintf("ratelimit:count:%s:%s", family, key)
}

func blockKey(family Family, key string) string {
	return fmt.Sprintf("ratelimit:block:%s:%s", family, key)
}

// Check reports whether the caller identified by key may proceed in family.
// It does not itself record an attempt — callers record via Record after
// the attempt resolves (so only genuine attempts, not preflight checks,
// consume budget).
func (l *Limiter) Check(ctx context.Context, family Family, key string) (*Result, error) {
	bk := blockKey(family, key)
	ttl, err := l.redis.TTL(ctx, bk).Result()
	if err != nil {
		return nil, fmt.Errorf("checking block ttl: %w", err)
	}
	if ttl > 0 {
		return &Result{Allowed: false, RetryAt: time.Now().Add(ttl)}, nil
	}

	count, err := l.redis.Get(ctx, counterKey(family, key)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("checking attempt count: %w", err)
	}
	if count >= l.maxAttempt {
		return nil, nil // window counter present but no block yet; caller should Record to trip it
	}
	return &Result{Allowed: true, Remaining: l.maxAttempt - count}, nil
}

// Record registers one attempt for (family, key). When the attempt count
// reaches maxAttempt within the window, it trips a block: the first trip
// blocks for one window, each subsequent trip while a violation streak is
// active doubles the block, capped at maxBlock.
func (l *Limiter) Record(ctx context.Context, family Family, key string) (*Result, error) {
	ck := counterKey(family, key)

	count, err := l.redis.Incr(ctx, ck).Result()
	if err != nil {
		return nil, fmt.Errorf("incrementing attempt count: %w", err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, ck, l.window).Err(); err != nil {
			return nil, fmt.Errorf("setting counter expiry: %w", err)
		}
	}

	if count < int64(l.maxAttempt) {
		return &Result{Allowed: true, Remaining: l.maxAttempt - int(count)}, nil
	}

	block, err := l.escalateBlock(ctx, family, key)
	if err != nil {
		return nil, err
	}
	return &Result{Allowed: false, RetryAt: time.Now().Add(block)}, nil
}

// escalateBlock doubles the previous block duration (tracked by a streak
// counter with a TTL twice the max block, so a quiet caller eventually
// resets to the base window) and applies the new block.
func (l *Limiter) escalateBlock(ctx context.Context, family Family, key string) (time.Duration, error) {
	streakKey := fmt.Sprintf("ratelimit:streak:%s:%s", family, key)
	streak, err := l.redis.Incr(ctx, streakKey).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing violation streak: %w", err)
	}
	if streak == 1 {
		l.redis.Expire(ctx, streakKey, l.maxBlock*2)
	}

	block := l.window
	for i := int64(1); i < streak; i++ {
		block *= 2
		if block >= l.maxBlock {
			block = l.maxBlock
			break
		}
	}

	if err := l.redis.Set(ctx, blockKey(family, key), 1, block).Err(); err != nil {
		return 0, fmt.Errorf("setting block: %w", err)
	}
	return block, nil
}

// Reset clears the attempt counter and any active block for (family, key) —
// called on a successful login or other attempt that should not continue to
// count against the caller.
func (l *Limiter) Reset(ctx context.Context, family Family, key string) error {
	if err := l.redis.Del(ctx, counterKey(family, key), blockKey(family, key)).Err(); err != nil {
		return fmt.Errorf("resetting rate limit: %w", err)
	}
	return nil
}
