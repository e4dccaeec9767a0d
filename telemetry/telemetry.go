// Package telemetry defines the logging, metrics, and tracing seams shared
// by every component of the coordinator runtime. Components depend on the
// interfaces, not on any concrete backend, so tests can substitute no-op
// implementations and production wiring can substitute OpenTelemetry-backed
// ones without touching call sites.
package telemetry

import (
	"context"
	"time"
)

type (
	// Logger emits structured log lines. Every call site is expected to
	// prefix its message with a "[MODULE:STAGE]" tag per the runtime's log
	// convention; Logger implementations must never be handed a credential
	// token as an argument.
	Logger interface {
		Debug(ctx context.Context, msg string, kv ...any)
		Info(ctx context.Context, msg string, kv ...any)
		Warn(ctx context.Context, msg string, kv ...any)
		Error(ctx context.Context, msg string, kv ...any)
	}

	// Metrics records counters and timers scoped to the coordinator runtime.
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, d time.Duration, tags ...string)
	}

	// Tracer creates spans for tracing request flow across the Coordinator,
	// the domain tool layer, and the credential refresher.
	Tracer interface {
		Start(ctx context.Context, name string) (context.Context, Span)
	}

	// Span represents a single unit of traced work.
	Span interface {
		End()
		SetError(err error)
		SetAttribute(key string, value any)
	}
)
