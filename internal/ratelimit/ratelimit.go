// Package ratelimit provides the sliding-window limiter the admission
// guard uses to throttle public booking attempts per request origin.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether an origin may spend one more admission attempt.
// Allow records the attempt when it returns true; a false result records
// nothing, so rejected attempts do not extend the window.
type Limiter interface {
	Allow(ctx context.Context, originKey string) (bool, error)
}

// MemoryLimiter keeps per-origin attempt timestamps in process. Expired
// attempts are purged on each check and idle origins are dropped from
// the map; there is no background sweep.
type MemoryLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	origins map[string][]time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:     max,
		window:  window,
		now:     time.Now,
		origins: make(map[string][]time.Time),
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, originKey string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.purgeLocked(now.Add(-l.window))

	attempts := l.origins[originKey]
	if len(attempts) >= l.max {
		return false, nil
	}

	l.origins[originKey] = append(attempts, now)
	return true, nil
}

// purgeLocked drops attempts older than the cutoff and forgets origins
// with none left, so the map does not grow with every origin ever seen.
func (l *MemoryLimiter) purgeLocked(cutoff time.Time) {
	for origin, attempts := range l.origins {
		kept := attempts[:0]
		for _, ts := range attempts {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(l.origins, origin)
			continue
		}
		l.origins[origin] = kept
	}
}

var _ Limiter = (*MemoryLimiter)(nil)
