// Package checkpoint defines the durable snapshot store the Coordinator
// graph checkpoints into. The Coordinator writes a checkpoint when a turn
// suspends on an approval interrupt; it does not write one after every
// node. A checkpoint captures enough of the graph's state to resume a
// suspended turn: the channel values a later node reads, keyed by the
// thread the turn belongs to and a namespace (empty for the Coordinator's
// own lineage).
package checkpoint

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no checkpoint exists for the requested
// thread/namespace pair.
var ErrNotFound = errors.New("checkpoint: not found")

// Tuple is a single checkpoint snapshot. Sequence is a monotonically
// increasing counter scoped to (ThreadID, Namespace); it orders checkpoints
// within a namespace without depending on wall-clock time, since clock skew
// across worker processes would otherwise make "latest" ambiguous.
type Tuple struct {
	ThreadID  string
	Namespace string
	Sequence  int64
	Values    map[string]any
	CreatedAt time.Time
}

// Store persists and retrieves checkpoint tuples. Implementations must make
// Put safe to call concurrently for different namespaces of the same thread
// and must never reorder Sequence values once written.
type Store interface {
	// Put appends a new checkpoint tuple. Callers supply the next Sequence
	// value; Put must reject a tuple whose sequence is not strictly greater
	// than the last one stored for the same (ThreadID, Namespace).
	Put(ctx context.Context, tuple Tuple) error

	// GetTuple returns the highest-sequence tuple for (threadID, namespace).
	// Returns ErrNotFound if none exists.
	GetTuple(ctx context.Context, threadID, namespace string) (Tuple, error)

	// ListByThread returns the latest tuple for every namespace checkpointed
	// under threadID.
	ListByThread(ctx context.Context, threadID string) ([]Tuple, error)

	// Reset atomically deletes every checkpoint across every namespace for
	// threadID. Used by the reset-conversation operation; a partial delete
	// would leave some namespaces resumable and others not, corrupting the
	// next turn's state reconstruction.
	Reset(ctx context.Context, threadID string) error
}

// NextSequence returns the sequence value to use for a new tuple given the
// current latest one observed (0 if none exists yet).
func NextSequence(latest int64) int64 {
	return latest + 1
}
