package memory

import (
	"sync"
	"time"
)

// breaker is a minimal closed/open/half-open circuit breaker over the
// memory recall call. Half-open allows exactly one trial call through;
// success closes the circuit, failure reopens it for another OpenDuration.
type breaker struct {
	mu               sync.Mutex
	state            string
	failures         int
	threshold        int
	openedAt         time.Time
	openDuration     time.Duration
	halfOpenInFlight bool
}

const (
	stateClosed   = "closed"
	stateOpen     = "open"
	stateHalfOpen = "half-open"
)

func newBreaker(threshold int, openDuration time.Duration) *breaker {
	return &breaker{state: stateClosed, threshold: threshold, openDuration: openDuration}
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if time.Since(b.openedAt) < b.openDuration {
			return false
		}
		b.state = stateHalfOpen
		b.halfOpenInFlight = true
		return true
	case stateHalfOpen:
		return !b.halfOpenInFlight
	default:
		return true
	}
}

func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = stateClosed
	b.halfOpenInFlight = false
}

func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.halfOpenInFlight = false
	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.openedAt = time.Now()
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.state = stateOpen
		b.openedAt = time.Now()
	}
}

// current returns the current breaker state string.
func (b *breaker) current() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
