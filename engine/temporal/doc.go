// Package temporal implements the coordinator's engine.Engine interface on
// top of Temporal (https://temporal.io), giving the Coordinator graph a
// durable execution backend.
//
// # Why Temporal
//
// The Coordinator graph can suspend for minutes while waiting on a human
// approval decision, and a worker process can restart at any point during a
// turn. Temporal persists workflow event history and replays it deterministically
// on worker restart, so a suspended turn resumes exactly where it left off
// instead of being lost.
//
// # Determinism
//
// The workflow handler registered with this engine must be deterministic:
// given the same inputs and signal history, it must make the same sequence
// of ExecuteActivity/SignalChannel/Sleep calls. All CRM calls, LLM calls, and
// memory recall happen inside activities, which run outside the determinism
// constraint; the coordinator package itself only branches on activity
// results and signal values.
//
// # Worker vs client mode
//
// cmd/server starts workflows against an Engine in client mode (it never
// registers workflows for local execution). cmd/worker registers the
// coordinator workflow, then starts the worker so it polls the configured
// task queue.
package temporal
