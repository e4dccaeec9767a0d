// Package mongo implements credential.Store on MongoDB using the same
// collection-wrapper idiom as checkpoint/mongo. The access and refresh
// tokens are stored as opaque strings and never included in any log line.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/nexacrm/coordinator/credential"
)

const (
	defaultCollection = "credentials"
	defaultOpTimeout   = 5 * time.Second
)

// Options configures the Mongo-backed credential store.
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

// New returns a credential.Store backed by MongoDB.
func New(ctx context.Context, opts Options) (credential.Store, error) {
	if opts.Client == nil {
		return nil, errors.New("credential/mongo: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("credential/mongo: database is required")
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
func (s *store) Name() string { return "credential_mongo" }

// Ping reports whether the backing Mongo deployment is reachable.
func (s *store) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *store) Get(ctx context.Context, sessionID string) (credential.Credential, error) {
	if sessionID == "" {
		return credential.Credential{}, errors.New("credential/mongo: session id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc credentialDocument
	if err := s.coll.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return credential.Credential{}, credential.ErrNotFound
		}
		return credential.Credential{}, err
	}
	return doc.toCredential(), nil
}

func (s *store) Put(ctx context.Context, cred credential.Credential) error {
	if cred.SessionID == "" {
		return errors.New("credential/mongo: session id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	now := time.Now().UTC()
	if cred.UpdatedAt.IsZero() {
		cred.UpdatedAt = now
	}
	filter := bson.M{"session_id": cred.SessionID}
	update := bson.M{
		"$set": bson.M{
			"user_id":       cred.UserID,
			"token":         cred.Token,
			"refresh_token": cred.RefreshToken,
			"expires_at":    cred.ExpiresAt.UTC(),
			"updated_at":    cred.UpdatedAt.UTC(),
		},
		"$setOnInsert": bson.M{
			"session_id": cred.SessionID,
		},
	}
	_, err := s.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

func (s *store) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("credential/mongo: session id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.coll.DeleteOne(ctx, bson.M{"session_id": sessionID})
	return err
}

func (s *store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.timeout)
}

// credentialDocument never surfaces Token/RefreshToken through a String or
// log-friendly method; only bson (un)marshaling touches these fields.
type credentialDocument struct {
	SessionID    string    `bson:"session_id"`
	UserID       string    `bson:"user_id"`
	Token        string    `bson:"token"`
	RefreshToken string    `bson:"refresh_token"`
	ExpiresAt    time.Time `bson:"expires_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (doc credentialDocument) toCredential() credential.Credential {
	return credential.Credential{
		SessionID:    doc.SessionID,
		UserID:       doc.UserID,
		Token:        doc.Token,
		RefreshToken: doc.RefreshToken,
		ExpiresAt:    doc.ExpiresAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}
