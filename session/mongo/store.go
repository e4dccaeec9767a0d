// Package mongo implements session.Store on MongoDB, adapted from the
// teacher's session-metadata client down to the single session/thread
// association the Coordinator's HTTP layer needs, using the same
// collection-wrapper idiom as checkpoint/mongo and credential/mongo.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/nexacrm/coordinator/session"
)

const (
	defaultCollection = "sessions"
	defaultOpTimeout  = 5 * time.Second
)

// Options configures the Mongo-backed session store.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

type store struct {
	client  *mongodriver.Client
	coll    *mongodriver.Collection
	timeout time.Duration
}

// New returns a session.Store backed by MongoDB.
func New(ctx context.Context, opts Options) (session.Store, error) {
	if opts.Client == nil {
		return nil, errors.New("session/mongo: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("session/mongo: database is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(collName)

	ictx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	idx := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := coll.Indexes().CreateOne(ictx, idx); err != nil {
		return nil, err
	}
	return &store{client: opts.Client, coll: coll, timeout: timeout}, nil
}

// Name identifies this store in a health.Checker's report.
func (s *store) Name() string { return "session_mongo" }

// Ping reports whether the backing Mongo deployment is reachable.
func (s *store) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.client.Ping(ctx, readpref.Primary())
}

type sessionDocument struct {
	SessionID    string    `bson:"session_id"`
	ThreadID     string    `bson:"thread_id"`
	CreatedAt    time.Time `bson:"created_at"`
	LastActiveAt time.Time `bson:"last_active_at"`
}

func (s *store) Touch(ctx context.Context, sessionID, threadID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{
			"$set":         bson.M{"thread_id": threadID, "last_active_at": now},
			"$setOnInsert": bson.M{"session_id": sessionID, "created_at": now},
		},
		options.UpdateOne().SetUpsert(true),
	)
	return err
}

func (s *store) ThreadFor(ctx context.Context, sessionID string) (string, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc sessionDocument
	err := s.coll.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return doc.ThreadID, true, nil
}

func (s *store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}
