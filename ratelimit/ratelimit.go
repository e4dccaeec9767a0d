// Package ratelimit enforces a per-session request budget in front of the
// Coordinator. Limits are process-local: each API process tracks its own
// sessions, so the limit is a mitigation against runaway clients rather
// than a cluster-wide guarantee.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// PerMinute is the default sustained rate every session is allotted.
const PerMinute = 10

// cleanupSampleRate means roughly 1% of Allow calls trigger a sweep of
// idle entries, bounding the map's growth without a dedicated goroutine.
const cleanupSampleRate = 100

// Limiter tracks one token bucket per session.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	newEvery time.Duration
	burst    int
	idleTTL  time.Duration
	calls    uint64
}

type entry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// New returns a Limiter allowing PerMinute requests/minute/session with a
// burst equal to PerMinute, evicting sessions idle for more than idleTTL.
func New(idleTTL time.Duration) *Limiter {
	if idleTTL == 0 {
		idleTTL = 10 * time.Minute
	}
	return &Limiter{
		limiters: make(map[string]*entry),
		newEvery: time.Minute / PerMinute,
		burst:    PerMinute,
		idleTTL:  idleTTL,
	}
}

// Allow reports whether sessionID may make another request right now.
func (l *Limiter) Allow(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%cleanupSampleRate == 0 {
		l.sweepLocked()
	}

	e, ok := l.limiters[sessionID]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Every(l.newEvery), l.burst)}
		l.limiters[sessionID] = e
	}
	e.lastUse = time.Now()
	return e.limiter.Allow()
}

func (l *Limiter) sweepLocked() {
	cutoff := time.Now().Add(-l.idleTTL)
	for id, e := range l.limiters {
		if e.lastUse.Before(cutoff) {
			delete(l.limiters, id)
		}
	}
}
