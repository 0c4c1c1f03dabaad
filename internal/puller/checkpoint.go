package puller

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CheckpointStore persists change stream resume tokens.
type CheckpointStore interface {
	// Save persists the resume token.
	Save(ctx context.Context, token bson.Raw) error
	// Load returns the last saved token, or nil if there is none.
	Load(ctx context.Context) (bson.Raw, error)
}

// Policy defines when to save checkpoints.
type Policy struct {
	Interval   time.Duration
	EventCount int
}

// Tracker decides when the position reached so far should be saved.
type Tracker struct {
	policy         Policy
	lastCheckpoint time.Time
	eventsSince    int
	lastToken      bson.Raw
	dirty          bool
}

// NewTracker creates a new Tracker.
func NewTracker(policy Policy) *Tracker {
	return &Tracker{policy: policy, lastCheckpoint: time.Now()}
}

// RecordEvent records a handled event and reports whether a checkpoint is due.
func (t *Tracker) RecordEvent(token bson.Raw) bool {
	t.lastToken = token
	t.eventsSince++
	t.dirty = true
	return t.eventsSince >= t.policy.EventCount || time.Since(t.lastCheckpoint) >= t.policy.Interval
}

// MarkCheckpointed marks that the last token was saved.
func (t *Tracker) MarkCheckpointed() {
	t.lastCheckpoint = time.Now()
	t.eventsSince = 0
	t.dirty = false
}

// Pending returns the last token if it has not been saved yet.
func (t *Tracker) Pending() (bson.Raw, bool) {
	return t.lastToken, t.dirty && t.lastToken != nil
}

// MongoStore keeps resume tokens in a MongoDB collection, one document per
// puller id.
type MongoStore struct {
	collection *mongo.Collection
	id         string
}

type checkpointDoc struct {
	ID        string    `bson:"_id"`
	Token     string    `bson:"token"` // base64 resume token
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoStore creates a MongoDB-backed checkpoint store.
func NewMongoStore(db *mongo.Database, collection, id string) *MongoStore {
	return &MongoStore{collection: db.Collection(collection), id: id}
}

func (s *MongoStore) Save(ctx context.Context, token bson.Raw) error {
	if token == nil {
		return nil
	}
	doc := checkpointDoc{
		ID:        s.id,
		Token:     base64.StdEncoding.EncodeToString(token),
		UpdatedAt: time.Now(),
	}
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": s.id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

func (s *MongoStore) Load(ctx context.Context) (bson.Raw, error) {
	var doc checkpointDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": s.id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	token, err := base64.StdEncoding.DecodeString(doc.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint token: %w", err)
	}
	return bson.Raw(token), nil
}
