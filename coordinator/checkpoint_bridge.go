package coordinator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nexacrm/coordinator/checkpoint"
	"github.com/nexacrm/coordinator/domain"
	"github.com/nexacrm/coordinator/memory"
	"github.com/nexacrm/coordinator/planner"
)

// namespace is empty for the parent Coordinator's own checkpoint lineage,
// per spec.md's "namespace (default empty, or <domain>_subgraph)" —
// subgraph sub-threads are never checkpointed since subgraphs compile
// without a checkpointer of their own.
const namespace = ""

// snapshot is the serializable projection of state a checkpoint persists.
// A checkpoint.Store is free to round-trip Tuple.Values through a generic
// encoding (Mongo decodes a nested document back into bson.M, never into a
// concrete Go type), so state itself — a pointer-heavy, package-private
// struct — can never be stashed in Values directly and recovered by type
// assertion. snapshot only holds plain, JSON-safe fields, and
// saveCheckpoint/loadCheckpoint marshal through it explicitly.
type snapshot struct {
	MemoryContext memory.Context                `json:"memory_context"`
	Entities      []domain.Entity                `json:"entities"`
	Plan          *planner.Plan                  `json:"plan"`
	Pending       *pendingApproval               `json:"pending"`
	Results       map[domain.Name]domain.Result  `json:"results"`
}

func (c *Coordinator) saveCheckpoint(ctx context.Context, st *state) error {
	if c.Checkpoints == nil {
		return nil
	}
	latest, err := c.Checkpoints.GetTuple(ctx, st.ThreadID, namespace)
	seq := int64(1)
	if err == nil {
		seq = checkpoint.NextSequence(latest.Sequence)
	} else if err != checkpoint.ErrNotFound {
		return err
	}

	values, err := snapshotToValues(snapshot{
		MemoryContext: st.MemoryContext,
		Entities:      st.Entities,
		Plan:          st.Plan,
		Pending:       st.Pending,
		Results:       st.Results,
	})
	if err != nil {
		return fmt.Errorf("coordinator: encoding checkpoint for thread %q: %w", st.ThreadID, err)
	}

	return c.Checkpoints.Put(ctx, checkpoint.Tuple{
		ThreadID:  st.ThreadID,
		Namespace: namespace,
		Sequence:  seq,
		Values:    values,
	})
}

func (c *Coordinator) loadCheckpoint(ctx context.Context, st *state) error {
	if c.Checkpoints == nil {
		return fmt.Errorf("coordinator: no checkpoint store configured, cannot resume")
	}
	tuple, err := c.Checkpoints.GetTuple(ctx, st.ThreadID, namespace)
	if err != nil {
		return err
	}
	snap, err := valuesToSnapshot(tuple.Values)
	if err != nil {
		return fmt.Errorf("coordinator: checkpoint for thread %q is malformed: %w", st.ThreadID, err)
	}

	st.MemoryContext = snap.MemoryContext
	st.Entities = snap.Entities
	st.Plan = snap.Plan
	st.Pending = snap.Pending
	st.Results = snap.Results
	if st.Results == nil {
		st.Results = map[domain.Name]domain.Result{}
	}
	return nil
}

// snapshotToValues encodes snap into a Tuple.Values map containing only
// JSON-primitive data (maps, slices, strings, numbers, bools), so it
// survives any Store's serialization unchanged, live in-process or through
// Mongo's BSON codec alike.
func snapshotToValues(snap snapshot) (map[string]any, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return map[string]any{"state": fields}, nil
}

func valuesToSnapshot(values map[string]any) (snapshot, error) {
	raw, err := json.Marshal(values["state"])
	if err != nil {
		return snapshot{}, err
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}
