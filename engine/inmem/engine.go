// Package inmem implements engine.Engine entirely in process memory. It is
// not replay-safe or durable across process restarts; it exists for local
// development and the coordinator package's own test suite, mirroring the
// role the teacher's runtime/agent/engine/inmem package plays for its
// runtime tests.
package inmem

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/nexacrm/coordinator/engine"
)

type (
	eng struct {
		mu        sync.RWMutex
		workflows map[string]engine.WorkflowDefinition
		runs      map[string]*run
	}

	run struct {
		mu     sync.Mutex
		done   chan struct{}
		err    error
		result any
		wfCtx  *wfCtx
	}

	wfCtx struct {
		ctx   context.Context
		id    string
		sigMu sync.Mutex
		sigs  map[string]*signalChan
	}

	signalChan struct {
		mu sync.Mutex
		ch chan any
	}
)

// New returns an Engine that executes workflows as goroutines, suitable for
// tests and single-process development deployments.
func New() engine.Engine {
	return &eng{
		workflows: make(map[string]engine.WorkflowDefinition),
		runs:      make(map[string]*run),
	}
}

func (e *eng) RegisterWorkflow(_ context.Context, def engine.WorkflowDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return errors.New("inmem: invalid workflow definition")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.workflows[def.Name]; dup {
		return fmt.Errorf("inmem: workflow %q already registered", def.Name)
	}
	e.workflows[def.Name] = def
	return nil
}

func (e *eng) StartWorkflow(ctx context.Context, req engine.WorkflowStartRequest) (engine.WorkflowHandle, error) {
	if req.ID == "" {
		return nil, errors.New("inmem: workflow id is required")
	}
	e.mu.Lock()
	if existing, ok := e.runs[req.ID]; ok {
		e.mu.Unlock()
		return existing, nil
	}
	def, ok := e.workflows[req.Workflow]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("inmem: workflow %q not registered", req.Workflow)
	}
	r := &run{done: make(chan struct{})}
	r.wfCtx = &wfCtx{
		ctx:  ctx,
		id:   req.ID,
		sigs: make(map[string]*signalChan),
	}
	e.runs[req.ID] = r
	e.mu.Unlock()

	go func() {
		result, err := def.Handler(r.wfCtx, req.Input)
		r.mu.Lock()
		r.result, r.err = result, err
		r.mu.Unlock()
		close(r.done)
	}()
	return r, nil
}

func (r *run) Wait(ctx context.Context, result any) error {
	select {
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	return assign(result, r.result)
}

func (r *run) Signal(_ context.Context, name string, payload any) error {
	ch := r.wfCtx.signalChannel(name)
	ch.mu.Lock()
	defer ch.mu.Unlock()
	select {
	case ch.ch <- payload:
	default:
		// The channel buffers 4 signals; once it is full, a goroutine
		// completes the send later, so a signal sent before the workflow is
		// ready to receive it waits rather than being dropped, matching
		// Temporal's signal-queuing semantics.
		go func() { ch.ch <- payload }()
	}
	return nil
}

func (w *wfCtx) Context() context.Context { return w.ctx }
func (w *wfCtx) WorkflowID() string       { return w.id }
func (w *wfCtx) Now() time.Time           { return time.Now() }

func (w *wfCtx) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *wfCtx) ExecuteActivity(ctx context.Context, req engine.ActivityRequest, result any) error {
	fn, ok := req.Input.(func(context.Context) (any, error))
	if !ok {
		return fmt.Errorf("inmem: activity %q input must be a func(context.Context) (any, error)", req.Name)
	}
	out, err := fn(ctx)
	if err != nil {
		return err
	}
	return assign(result, out)
}

func (w *wfCtx) SignalChannel(name string) engine.SignalChannel {
	return w.signalChannel(name)
}

func (w *wfCtx) signalChannel(name string) *signalChan {
	w.sigMu.Lock()
	defer w.sigMu.Unlock()
	ch, ok := w.sigs[name]
	if !ok {
		ch = &signalChan{ch: make(chan any, 4)}
		w.sigs[name] = ch
	}
	return ch
}

func (s *signalChan) Receive(ctx context.Context, dest any) error {
	select {
	case v := <-s.ch:
		return assign(dest, v)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *signalChan) ReceiveAsync(dest any) bool {
	select {
	case v := <-s.ch:
		_ = assign(dest, v)
		return true
	default:
		return false
	}
}

// assign copies src into the value dest points to. Activities and signals
// pass results as any, so the destination pointer's concrete type is only
// known at the call site; reflection bridges the two without forcing every
// caller through a type switch.
func assign(dest, src any) error {
	if dest == nil || src == nil {
		return nil
	}
	if d, ok := dest.(*any); ok {
		*d = src
		return nil
	}
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return fmt.Errorf("inmem: destination must be a non-nil pointer, got %T", dest)
	}
	sv := reflect.ValueOf(src)
	if !sv.Type().AssignableTo(dv.Elem().Type()) {
		return fmt.Errorf("inmem: cannot assign %T into %T", src, dest)
	}
	dv.Elem().Set(sv)
	return nil
}
