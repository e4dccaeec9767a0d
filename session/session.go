// Package session tracks the durable session-to-thread association the
// HTTP layer needs to recover which checkpoint lineage a bare session_id
// maps to, e.g. for /api/reset-conversation requests that carry no org_id
// or thread_id of their own.
package session

import (
	"context"
	"time"
)

// Record is one session's last-known thread association.
type Record struct {
	SessionID    string
	ThreadID     string
	CreatedAt    time.Time
	LastActiveAt time.Time
}

// Store persists session-to-thread associations across process restarts.
type Store interface {
	// Touch upserts sessionID's current thread, refreshing LastActiveAt.
	Touch(ctx context.Context, sessionID, threadID string) error
	// ThreadFor returns the thread most recently associated with
	// sessionID. ok is false if the session has no recorded thread.
	ThreadFor(ctx context.Context, sessionID string) (threadID string, ok bool, err error)
}
