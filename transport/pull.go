package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nexacrm/coordinator/interrupt"
	"github.com/nexacrm/coordinator/telemetry"
)

// PendingTTL is how long a pending interrupt survives in Redis before the
// key expires.
const PendingTTL = 5 * time.Minute

// ErrNotPending is returned when a poll, acknowledge, or approve call
// targets a session with no pending interrupt.
var ErrNotPending = errors.New("transport: no pending interrupt for session")

// Store is the pull-mode counterpart to Hub: clients without a live
// websocket poll for a pending interrupt, acknowledge receipt, and submit
// approval decisions, all backed by TTL'd Redis keys.
type Store struct {
	client *redis.Client
	logger telemetry.Logger
}

// NewStore constructs a Store against redisURL (a redis:// or rediss:// DSN).
func NewStore(redisURL string, logger telemetry.Logger) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid redis url: %w", err)
	}
	return &Store{client: redis.NewClient(opt), logger: logger}, nil
}

// Put stores i as the pending interrupt for sessionID, expiring after
// PendingTTL unless acknowledged or resolved sooner.
func (s *Store) Put(ctx context.Context, sessionID string, i *interrupt.Interrupt) error {
	data, err := json.Marshal(i)
	if err != nil {
		return fmt.Errorf("transport: marshal interrupt: %w", err)
	}
	return s.client.Set(ctx, pendingKey(sessionID), data, PendingTTL).Err()
}

// Poll returns the pending interrupt for sessionID, or ErrNotPending if
// none is stored (already resolved, never created, or expired).
func (s *Store) Poll(ctx context.Context, sessionID string) (*interrupt.Interrupt, error) {
	data, err := s.client.Get(ctx, pendingKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotPending
	}
	if err != nil {
		return nil, fmt.Errorf("transport: poll: %w", err)
	}
	var i interrupt.Interrupt
	if err := json.Unmarshal(data, &i); err != nil {
		return nil, fmt.Errorf("transport: unmarshal pending interrupt: %w", err)
	}
	return &i, nil
}

// Acknowledge records that the client has seen the pending interrupt,
// refreshing its TTL so a slow-to-decide human doesn't lose the prompt
// mid-read.
func (s *Store) Acknowledge(ctx context.Context, sessionID string) error {
	ok, err := s.client.Expire(ctx, pendingKey(sessionID), PendingTTL).Result()
	if err != nil {
		return fmt.Errorf("transport: acknowledge: %w", err)
	}
	if !ok {
		return ErrNotPending
	}
	return nil
}

// Resolve removes the pending interrupt once a decision has been recorded
// against it by the Coordinator's resumed turn.
func (s *Store) Resolve(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, pendingKey(sessionID)).Err()
}

// Sweep scans the pending-interrupt keys and removes every one whose TTL is
// not positive (a key stored without an expiry), logging each as orphaned.
// Keys that still carry a TTL are left to Redis's own expiry, which is what
// evicts an interrupt PendingTTL after it was stored or last acknowledged.
func (s *Store) Sweep(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, pendingKey("*"), 100).Iterator()
	now := time.Now()
	for iter.Next(ctx) {
		key := iter.Val()
		ttl, err := s.client.TTL(ctx, key).Result()
		if err != nil || ttl > 0 {
			continue
		}
		if err := s.client.Del(ctx, key).Err(); err != nil {
			s.logWarn(ctx, "transport: sweep delete failed", "key", key, "error", err)
			continue
		}
		s.logWarn(ctx, "transport: swept orphaned interrupt", "key", key, "swept_at", now)
	}
	return iter.Err()
}

func pendingKey(sessionID string) string {
	return "coordinator:interrupt:" + sessionID
}

// Name identifies this store in a health.Checker's report.
func (s *Store) Name() string { return "transport_redis" }

// Ping reports whether the backing Redis deployment is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) logWarn(ctx context.Context, msg string, kv ...any) {
	if s.logger != nil {
		s.logger.Warn(ctx, msg, kv...)
	}
}
