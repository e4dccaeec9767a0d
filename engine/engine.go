// Package engine defines the durable-execution abstraction the Coordinator
// graph runs on. It lets the Coordinator target Temporal in production and
// an in-process engine in tests without the Coordinator package importing
// a workflow SDK directly.
package engine

import (
	"context"
	"time"
)

type (
	// Engine registers and starts workflows. Exactly one Engine backs the
	// Coordinator graph per process; domain subgraphs never see an Engine
	// directly, since they compile without a checkpointer of their own.
	Engine interface {
		// RegisterWorkflow registers a workflow definition. Must be called
		// during process initialization, before any StartWorkflow call.
		RegisterWorkflow(ctx context.Context, def WorkflowDefinition) error

		// StartWorkflow begins (or, for an existing thread, resumes against)
		// a workflow execution and returns a handle to it.
		StartWorkflow(ctx context.Context, req WorkflowStartRequest) (WorkflowHandle, error)
	}

	// WorkflowDefinition binds a workflow handler to a logical name and task
	// queue.
	WorkflowDefinition struct {
		Name      string
		TaskQueue string
		Handler   WorkflowFunc
	}

	// WorkflowFunc is the entry point the engine invokes for a run. It must
	// be deterministic: the same inputs and the same sequence of signal/
	// activity results must produce the same sequence of engine calls, since
	// Temporal replays workflow history from the beginning on every worker
	// restart.
	WorkflowFunc func(ctx WorkflowContext, input any) (any, error)

	// WorkflowContext exposes engine operations to a running workflow.
	// Implementations must preserve Temporal's determinism constraints: no
	// direct I/O, no system clock, no goroutines outside of workflow-safe
	// primitives.
	WorkflowContext interface {
		// Context returns a Go context usable for ExecuteActivity calls.
		Context() context.Context

		// WorkflowID returns the durable identifier for this execution
		// (the Coordinator sets this to the thread id).
		WorkflowID() string

		// ExecuteActivity schedules an activity and blocks for its result.
		ExecuteActivity(ctx context.Context, req ActivityRequest, result any) error

		// SignalChannel returns a channel for receiving a named signal
		// (used by the interrupt controller to deliver approval decisions).
		SignalChannel(name string) SignalChannel

		// Now returns the current time in a replay-safe manner.
		Now() time.Time

		// Sleep suspends the workflow for d in a replay-safe manner.
		Sleep(ctx context.Context, d time.Duration) error
	}

	// SignalChannel delivers values sent to a named workflow signal.
	SignalChannel interface {
		// Receive blocks until a signal value is available and decodes it
		// into dest.
		Receive(ctx context.Context, dest any) error
		// ReceiveAsync attempts a non-blocking receive; it returns false if
		// no value was available.
		ReceiveAsync(dest any) bool
	}

	// ActivityRequest describes a single activity invocation.
	ActivityRequest struct {
		Name        string
		Input       any
		Timeout     time.Duration
		RetryPolicy RetryPolicy
	}

	// RetryPolicy configures activity retry behavior. Zero-valued fields
	// mean "use the engine's default."
	RetryPolicy struct {
		MaxAttempts        int
		InitialInterval    time.Duration
		BackoffCoefficient float64
		MaxInterval        time.Duration
	}

	// WorkflowStartRequest describes how to start (or attach to) a workflow
	// execution.
	WorkflowStartRequest struct {
		// ID is the workflow identifier. The Coordinator sets this to the
		// thread id, so starting a workflow for a thread that is already
		// running attaches to (rather than duplicates) that execution.
		ID       string
		Workflow string
		TaskQueue string
		Input    any
	}

	// WorkflowHandle lets callers interact with a started (or resumed)
	// workflow execution.
	WorkflowHandle interface {
		// Wait blocks until the run reaches a terminal or suspended state,
		// populating result with the workflow's return value.
		Wait(ctx context.Context, result any) error
		// Signal delivers a named signal payload to the running workflow.
		Signal(ctx context.Context, name string, payload any) error
	}
)
