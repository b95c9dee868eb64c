// Package ratelimit bounds per-user uploads with fixed time windows kept in a cache.Store.
//
// Windows are fixed, not sliding: a burst straddling a boundary can admit up
// to twice the limit. The read-then-write is not atomic, so concurrent
// requests from one user may briefly over-admit. Both are accepted for an
// abuse bound.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/abduss/filedrive/internal/cache"
	"go.uber.org/zap"
)

const keyPrefix = "upload_rate_limit"

// Result reports the outcome of CheckAndIncrement.
type Result struct {
	Allowed      bool
	CurrentCount int
}

// UploadLimiter counts uploads per user and window.
type UploadLimiter struct {
	store  cache.Store
	max    int
	window time.Duration
	now    func() time.Time
	log    *zap.Logger
}

// NewUploadLimiter creates a limiter admitting maxPerWindow operations per window.
func NewUploadLimiter(store cache.Store, maxPerWindow int, window time.Duration, log *zap.Logger) *UploadLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &UploadLimiter{
		store:  store,
		max:    maxPerWindow,
		window: window,
		now:    time.Now,
		log:    log,
	}
}

// Limit returns the number of operations admitted per window.
func (l *UploadLimiter) Limit() int { return l.max }

// Window returns the window size.
func (l *UploadLimiter) Window() time.Duration { return l.window }

// CheckAndIncrement admits the operation when count+incrementBy stays within
// the limit and records the new count. A rejected call writes nothing and
// reports the unchanged count. Store failures deny with a zero count.
// An incrementBy below 1 counts as a single operation.
func (l *UploadLimiter) CheckAndIncrement(ctx context.Context, userID string, incrementBy int) Result {
	if incrementBy <= 0 {
		incrementBy = 1
	}
	key := l.bucketKey(userID)

	count, err := l.read(ctx, key)
	if err != nil {
		l.log.Error("rate limiter read failed", zap.String("key", key), zap.Error(err))
		return Result{Allowed: false, CurrentCount: 0}
	}

	if count+incrementBy > l.max {
		return Result{Allowed: false, CurrentCount: count}
	}

	next := count + incrementBy
	if err := l.store.Set(ctx, key, strconv.Itoa(next), l.window); err != nil {
		l.log.Error("rate limiter write failed", zap.String("key", key), zap.Error(err))
		return Result{Allowed: false, CurrentCount: 0}
	}

	return Result{Allowed: true, CurrentCount: next}
}

// CurrentCount returns the count in the current window, or 0 on any error.
func (l *UploadLimiter) CurrentCount(ctx context.Context, userID string) int {
	key := l.bucketKey(userID)
	count, err := l.read(ctx, key)
	if err != nil {
		l.log.Warn("rate limiter count lookup failed", zap.String("key", key), zap.Error(err))
		return 0
	}
	return count
}

func (l *UploadLimiter) read(ctx context.Context, key string) (int, error) {
	raw, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse counter %q: %w", raw, err)
	}
	return count, nil
}

// bucketKey is upload_rate_limit:{user}:{floor(nowMs / windowMs)}.
func (l *UploadLimiter) bucketKey(userID string) string {
	windowMs := l.window.Milliseconds()
	if windowMs <= 0 {
		windowMs = 1
	}
	index := l.now().UnixMilli() / windowMs
	return fmt.Sprintf("%s:%s:%d", keyPrefix, userID, index)
}
