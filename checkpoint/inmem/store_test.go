package inmem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexacrm/coordinator/checkpoint"
)

func TestPutAndGetTupleReturnsLatest(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, checkpoint.Tuple{ThreadID: "t1", Namespace: "", Sequence: 1, Values: map[string]any{"x": 1}}))
	require.NoError(t, s.Put(ctx, checkpoint.Tuple{ThreadID: "t1", Namespace: "", Sequence: 2, Values: map[string]any{"x": 2}}))

	tuple, err := s.GetTuple(ctx, "t1", "")
	require.NoError(t, err)
	require.Equal(t, int64(2), tuple.Sequence)
}

func TestGetTupleNotFound(t *testing.T) {
	s := New()
	_, err := s.GetTuple(context.Background(), "missing", "")
	require.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestPutRejectsNonIncreasingSequence(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, checkpoint.Tuple{ThreadID: "t1", Namespace: "", Sequence: 2}))
	require.ErrorIs(t, s.Put(ctx, checkpoint.Tuple{ThreadID: "t1", Namespace: "", Sequence: 1}), ErrSequenceConflict)
}

func TestResetDeletesAllNamespacesForThread(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, checkpoint.Tuple{ThreadID: "t1", Namespace: "", Sequence: 1}))
	require.NoError(t, s.Put(ctx, checkpoint.Tuple{ThreadID: "t1", Namespace: "contact_subgraph", Sequence: 1}))
	require.NoError(t, s.Reset(ctx, "t1"))
	_, err := s.GetTuple(ctx, "t1", "")
	require.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestListByThreadReturnsLatestPerNamespace(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, checkpoint.Tuple{ThreadID: "t1", Namespace: "", Sequence: 1}))
	require.NoError(t, s.Put(ctx, checkpoint.Tuple{ThreadID: "t1", Namespace: "contact_subgraph", Sequence: 1}))
	tuples, err := s.ListByThread(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, tuples, 2)
}
