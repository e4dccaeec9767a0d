package crm

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

// dedupeWindow is how long a mutation fingerprint is remembered. A second
// identical mutation request within this window (the same organization,
// method, and payload) is almost always a retry from an upstream timeout or
// a duplicate planner step, not a deliberate repeat action.
const dedupeWindow = 5 * time.Minute

// dedupeTable tracks recently seen mutation fingerprints per turn so the
// client can short-circuit a duplicate create/update before it reaches the
// CRM. It is process-local: coordination across processes is unnecessary
// because the Coordinator pins a given thread's turn to a single worker
// activity at a time.
type dedupeTable struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func newDedupeTable() *dedupeTable {
	return &dedupeTable{entries: make(map[string]time.Time), now: time.Now}
}

// Fingerprint returns a stable hash for (organizationID, method, payload),
// used as the dedupe key.
func Fingerprint(organizationID, method string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(organizationID))
	h.Write([]byte{0})
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SeenRecently reports whether fingerprint was recorded within dedupeWindow
// and, if not, records it now.
func (t *dedupeTable) SeenRecently(fingerprint string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.sweep(now)
	if seenAt, ok := t.entries[fingerprint]; ok && now.Sub(seenAt) < dedupeWindow {
		return true
	}
	t.entries[fingerprint] = now
	return false
}

// sweep evicts entries older than dedupeWindow. Called with the lock held.
func (t *dedupeTable) sweep(now time.Time) {
	for fp, seenAt := range t.entries {
		if now.Sub(seenAt) >= dedupeWindow {
			delete(t.entries, fp)
		}
	}
}
