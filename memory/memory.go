// Package memory wraps the external memory service behind a recall/synthesis
// interface. The service's storage internals are out of scope; this package
// only owns the timeout, circuit breaker, and best-effort framing the
// Coordinator's recall_memory and finalize_response nodes rely on.
package memory

import (
	"context"
	"time"
)

// Item is one recalled memory entry.
type Item struct {
	Text      string
	Relevance float64
	Metadata  map[string]any
}

// Context is the read-only memory context merged into planning input. It
// must never be treated as ground truth for side effects.
type Context struct {
	Items []Item
}

// Service is the opaque external recall/synthesis backend.
type Service interface {
	Recall(ctx context.Context, sessionID, query string) ([]Item, error)
	Synthesize(ctx context.Context, sessionID string, messages []Message) error
}

// Message is one turn of conversation handed to synthesis.
type Message struct {
	Role string
	Text string
}

const (
	recallTimeout = 3 * time.Second
)

// Client is the Coordinator-facing wrapper: best-effort recall with a
// timeout and circuit breaker, and fire-and-forget synthesis.
type Client struct {
	service Service
	breaker *breaker
	logger  Logger
}

// Logger is the minimal logging seam this package needs.
type Logger interface {
	Warn(msg string, fields map[string]any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, map[string]any) {}

// Options configures a Client.
type Options struct {
	Service Service
	Logger  Logger
	// FailureThreshold is consecutive recall failures before the breaker
	// opens. Zero uses the default of 5.
	FailureThreshold int
	// OpenDuration is how long the breaker stays open before allowing a
	// single trial recall through. Zero uses the default of 30s.
	OpenDuration time.Duration
}

// New builds a Client. A nil Service disables memory entirely: Recall
// always returns an empty Context, Synthesize is a no-op, matching the
// spec's "MEMORY_API_KEY absent disables memory" behavior.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	threshold := opts.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	openDuration := opts.OpenDuration
	if openDuration == 0 {
		openDuration = 30 * time.Second
	}
	return &Client{
		service: opts.Service,
		breaker: newBreaker(threshold, openDuration),
		logger:  logger,
	}
}

// Recall is best-effort: any failure, timeout, or open breaker yields an
// empty Context rather than blocking or failing the turn.
func (c *Client) Recall(ctx context.Context, sessionID, query string) Context {
	if c.service == nil {
		return Context{}
	}
	if !c.breaker.allow() {
		c.logger.Warn("[MEMORY:recall] circuit open, skipping", map[string]any{"session_id": sessionID})
		return Context{}
	}

	ctx, cancel := context.WithTimeout(ctx, recallTimeout)
	defer cancel()

	items, err := c.service.Recall(ctx, sessionID, query)
	if err != nil {
		c.breaker.recordFailure()
		c.logger.Warn("[MEMORY:recall] failed", map[string]any{"session_id": sessionID, "error": err.Error()})
		return Context{}
	}
	c.breaker.recordSuccess()
	return Context{Items: items}
}

// Synthesize fires memory synthesis for a completed turn. Callers invoke
// this asynchronously (e.g. via `go client.Synthesize(...)`); failures are
// logged, never surfaced to the user.
func (c *Client) Synthesize(ctx context.Context, sessionID string, messages []Message) {
	if c.service == nil {
		return
	}
	if err := c.service.Synthesize(ctx, sessionID, messages); err != nil {
		c.logger.Warn("[MEMORY:synthesize] failed", map[string]any{"session_id": sessionID, "error": err.Error()})
	}
}

// BreakerState reports the circuit breaker's current state, exposed for the
// /api/health/memory endpoint.
func (c *Client) BreakerState() string {
	return c.breaker.current()
}
