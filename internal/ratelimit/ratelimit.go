// Package ratelimit ограничивает число запросов одного клиента в окне времени.
package ratelimit

import (
	"context"
	"time"
)

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter округляет время до сброса вверх до секунд.
func (r Result) RetryAfter(now time.Time) int {
	d := r.ResetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
	Ping(ctx context.Context) error
	Close() error
}
