package ratelimit

import (
	"context"
	"sync"
	"time"
)

type clientInfo struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter считает запросы в фиксированном окне внутри процесса.
type MemoryLimiter struct {
	limit   int
	window  time.Duration
	now     func() time.Time
	mtx     sync.Mutex
	clients map[string]*clientInfo
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*clientInfo),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now()

	l.mtx.Lock()
	defer l.mtx.Unlock()

	info, exists := l.clients[key]
	switch {
	case !exists:
		info = &clientInfo{count: 1, resetAt: now.Add(l.window)}
		l.clients[key] = info
	case now.After(info.resetAt):
		info.count = 1
		info.resetAt = now.Add(l.window)
	case info.count >= l.limit:
		return Result{Allowed: false, Limit: l.limit, Remaining: 0, ResetAt: info.resetAt}, nil
	default:
		info.count++
	}

	// чтобы карта не росла бесконечно, просроченные окна выбрасываются
	if len(l.clients) > 10000 {
		l.evict(now)
	}

	return Result{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: max(l.limit-info.count, 0),
		ResetAt:   info.resetAt,
	}, nil
}

func (l *MemoryLimiter) evict(now time.Time) {
	for k, info := range l.clients {
		if now.After(info.resetAt) {
			delete(l.clients, k)
		}
	}
}

func (l *MemoryLimiter) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (l *MemoryLimiter) Close() error {
	return nil
}
