// Package mongo implements checkpoint.Store on MongoDB, following the
// collection-wrapper idiom the teacher uses for its session store: a thin
// Client wraps concrete mongo.Collection behind small interfaces so tests
// can substitute fakes, indexes are created once at construction, and every
// operation runs under a bounded context timeout.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/nexacrm/coordinator/checkpoint"
)

const (
	defaultCollection = "coordinator_checkpoints"
	defaultOpTimeout   = 5 * time.Second
)

// Options configures the Mongo-backed checkpoint store.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

type store struct {
	client  *mongodriver.Client
	coll    collection
	timeout time.Duration
}

// New returns a checkpoint.Store backed by MongoDB. It creates the unique
// compound index on (thread_id, namespace, sequence) that Put relies on to
// reject out-of-order writes.
func New(ctx context.Context, opts Options) (checkpoint.Store, error) {
	if opts.Client == nil {
		return nil, errors.New("checkpoint/mongo: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("checkpoint/mongo: database is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	coll := mongoCollection{coll: opts.Client.Database(opts.Database).Collection(collName)}

	ictx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := ensureIndexes(ictx, coll); err != nil {
		return nil, err
	}
	return &store{client: opts.Client, coll: coll, timeout: timeout}, nil
}

// Name identifies this store in a health.Checker's report.
func (s *store) Name() string { return "checkpoint_mongo" }

// Ping reports whether the backing Mongo deployment is reachable, so
// api.Runtime's /health handler can surface it via goa.design/clue/health.
func (s *store) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *store) Put(ctx context.Context, tuple checkpoint.Tuple) error {
	if tuple.ThreadID == "" {
		return errors.New("checkpoint/mongo: thread id is required")
	}
	if tuple.CreatedAt.IsZero() {
		tuple.CreatedAt = time.Now().UTC()
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	latest, err := s.GetTuple(ctx, tuple.ThreadID, tuple.Namespace)
	if err == nil && tuple.Sequence <= latest.Sequence {
		return errors.New("checkpoint/mongo: sequence conflict, reread latest and retry")
	}
	if err != nil && !errors.Is(err, checkpoint.ErrNotFound) {
		return err
	}

	doc := checkpointDocument{
		ThreadID:  tuple.ThreadID,
		Namespace: tuple.Namespace,
		Sequence:  tuple.Sequence,
		Values:    tuple.Values,
		CreatedAt: tuple.CreatedAt.UTC(),
	}
	// Unique index rejects this insert outright if Sequence was already used
	// for (ThreadID, Namespace); the caller is expected to have derived
	// Sequence from the latest tuple it observed, so a collision means a
	// concurrent writer raced it and the caller should retry against the
	// new latest.
	_, err = s.coll.InsertOne(ctx, doc)
	if mongodriver.IsDuplicateKeyError(err) {
		return errors.New("checkpoint/mongo: sequence conflict, reread latest and retry")
	}
	return err
}

func (s *store) GetTuple(ctx context.Context, threadID, namespace string) (checkpoint.Tuple, error) {
	if threadID == "" {
		return checkpoint.Tuple{}, errors.New("checkpoint/mongo: thread id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"thread_id": threadID, "namespace": namespace}
	opts := options.FindOne().SetSort(bson.D{{Key: "sequence", Value: -1}})
	var doc checkpointDocument
	if err := s.coll.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return checkpoint.Tuple{}, checkpoint.ErrNotFound
		}
		return checkpoint.Tuple{}, err
	}
	return doc.toTuple(), nil
}

func (s *store) ListByThread(ctx context.Context, threadID string) ([]checkpoint.Tuple, error) {
	if threadID == "" {
		return nil, errors.New("checkpoint/mongo: thread id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	pipeline := bson.A{
		bson.M{"$match": bson.M{"thread_id": threadID}},
		bson.M{"$sort": bson.M{"namespace": 1, "sequence": -1}},
		bson.M{"$group": bson.M{
			"_id":   "$namespace",
			"doc":   bson.M{"$first": "$$ROOT"},
		}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []checkpoint.Tuple
	for cur.Next(ctx) {
		var row struct {
			Doc checkpointDocument `bson:"doc"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out = append(out, row.Doc.toTuple())
	}
	return out, cur.Err()
}

// Reset deletes every row for threadID, across all namespaces, with one
// DeleteMany. The delete does not run inside a transaction, so a failure
// partway through can leave some of the thread's rows in place.
func (s *store) Reset(ctx context.Context, threadID string) error {
	if threadID == "" {
		return errors.New("checkpoint/mongo: thread id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.coll.DeleteMany(ctx, bson.M{"thread_id": threadID})
	return err
}

func (s *store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.timeout)
}

type checkpointDocument struct {
	ThreadID  string         `bson:"thread_id"`
	Namespace string         `bson:"namespace"`
	Sequence  int64          `bson:"sequence"`
	Values    map[string]any `bson:"values"`
	CreatedAt time.Time      `bson:"created_at"`
}

func (doc checkpointDocument) toTuple() checkpoint.Tuple {
	return checkpoint.Tuple{
		ThreadID:  doc.ThreadID,
		Namespace: doc.Namespace,
		Sequence:  doc.Sequence,
		Values:    doc.Values,
		CreatedAt: doc.CreatedAt,
	}
}

func ensureIndexes(ctx context.Context, coll collection) error {
	unique := mongodriver.IndexModel{
		Keys: bson.D{
			{Key: "thread_id", Value: 1},
			{Key: "namespace", Value: 1},
			{Key: "sequence", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}
	if _, err := coll.Indexes().CreateOne(ctx, unique); err != nil {
		return err
	}
	byThread := mongodriver.IndexModel{
		Keys: bson.D{{Key: "thread_id", Value: 1}},
	}
	_, err := coll.Indexes().CreateOne(ctx, byThread)
	return err
}

// collection narrows *mongodriver.Collection to the operations this store
// uses, so tests can substitute an in-memory fake without a live server.
type collection interface {
	InsertOne(ctx context.Context, doc any) (*mongodriver.InsertOneResult, error)
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult
	Aggregate(ctx context.Context, pipeline any) (cursor, error)
	DeleteMany(ctx context.Context, filter any) (*mongodriver.DeleteResult, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error)
}

type singleResult interface {
	Decode(val any) error
}

type cursor interface {
	Close(ctx context.Context) error
	Decode(val any) error
	Err() error
	Next(ctx context.Context) bool
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) InsertOne(ctx context.Context, doc any) (*mongodriver.InsertOneResult, error) {
	return c.coll.InsertOne(ctx, doc)
}

func (c mongoCollection) FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult {
	return c.coll.FindOne(ctx, filter, opts...)
}

func (c mongoCollection) Aggregate(ctx context.Context, pipeline any) (cursor, error) {
	cur, err := c.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	return cur, nil
}

func (c mongoCollection) DeleteMany(ctx context.Context, filter any) (*mongodriver.DeleteResult, error) {
	return c.coll.DeleteMany(ctx, filter)
}

func (c mongoCollection) Indexes() indexView {
	return c.coll.Indexes()
}
