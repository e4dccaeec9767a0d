// Package inmem implements checkpoint.Store entirely in process memory,
// for tests and local development without a Mongo instance.
package inmem

import (
	"context"
	"errors"
	"sync"

	"github.com/nexacrm/coordinator/checkpoint"
)

// ErrSequenceConflict is returned when Put receives a sequence that is not
// strictly greater than the last one stored for the same thread/namespace.
var ErrSequenceConflict = errors.New("inmem: checkpoint sequence conflict")

type key struct {
	threadID  string
	namespace string
}

// Store is a process-local checkpoint.Store.
type Store struct {
	mu    sync.Mutex
	byKey map[key][]checkpoint.Tuple
}

// New returns an empty Store.
func New() *Store {
	return &Store{byKey: make(map[key][]checkpoint.Tuple)}
}

func (s *Store) Put(_ context.Context, tuple checkpoint.Tuple) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{tuple.ThreadID, tuple.Namespace}
	existing := s.byKey[k]
	if len(existing) > 0 && tuple.Sequence <= existing[len(existing)-1].Sequence {
		return ErrSequenceConflict
	}
	s.byKey[k] = append(existing, tuple)
	return nil
}

func (s *Store) GetTuple(_ context.Context, threadID, namespace string) (checkpoint.Tuple, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.byKey[key{threadID, namespace}]
	if len(existing) == 0 {
		return checkpoint.Tuple{}, checkpoint.ErrNotFound
	}
	return existing[len(existing)-1], nil
}

func (s *Store) ListByThread(_ context.Context, threadID string) ([]checkpoint.Tuple, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []checkpoint.Tuple
	for k, tuples := range s.byKey {
		if k.threadID == threadID && len(tuples) > 0 {
			out = append(out, tuples[len(tuples)-1])
		}
	}
	return out, nil
}

func (s *Store) Reset(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.byKey {
		if k.threadID == threadID {
			delete(s.byKey, k)
		}
	}
	return nil
}
