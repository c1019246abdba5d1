// Package ratelimit throttles per-user request rates over two sliding
// windows: a short per-minute window and a long daily window. The counter
// store is pluggable so a single process can use local memory while a
// load-balanced deployment shares counters through redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"cortex-rag/internal/pkg/logger"
)

// Scope identifies which window rejected a request.
type Scope string

const (
	ScopePerMinute Scope = "per_minute"
	ScopeDaily     Scope = "daily"
)

const (
	shortWindow = time.Minute
	longWindow  = 24 * time.Hour
)

// LimitError reports an exceeded window and when it is worth retrying.
type LimitError struct {
	Scope      Scope
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (%s), retry after %s", e.Scope, e.RetryAfter.Round(time.Second))
}

// Usage is a snapshot of one user's request counts and the time until each
// window frees up capacity.
type Usage struct {
	Minute      int
	Day         int
	MinuteReset time.Duration
	DayReset    time.Duration
}

// Store tracks request counts per user. Usage must reflect only requests
// inside the current windows; Record adds the current request to both.
type Store interface {
	Usage(ctx context.Context, userID string) (Usage, error)
	Record(ctx context.Context, userID string) error
}

// Limiter enforces the two-window policy on top of a Store.
type Limiter struct {
	store     Store
	perMinute int
	perDay    int
	log       *logger.Logger
}

func NewLimiter(store Store, perMinute, perDay int, log *logger.Logger) *Limiter {
	if log == nil {
		log = logger.NewNop()
	}
	return &Limiter{
		store:     store,
		perMinute: perMinute,
		perDay:    perDay,
		log:       log,
	}
}

// Allow admits or rejects one request. The daily window is evaluated first,
// then the per-minute window; the request is recorded in both windows only
// when admitted. An unreachable store fails open so a counter outage does
// not take the API down with it.
func (l *Limiter) Allow(ctx context.Context, userID string) error {
	usage, err := l.store.Usage(ctx, userID)
	if err != nil {
		l.log.Warn("rate limit store unreachable, failing open", "user_id", userID, "error", err)
		return nil
	}

	if usage.Day >= l.perDay {
		return &LimitError{Scope: ScopeDaily, RetryAfter: usage.DayReset}
	}
	if usage.Minute >= l.perMinute {
		return &LimitError{Scope: ScopePerMinute, RetryAfter: usage.MinuteReset}
	}

	if err := l.store.Record(ctx, userID); err != nil {
		l.log.Warn("rate limit record failed, failing open", "user_id", userID, "error", err)
	}
	return nil
}
