// Package puller watches the record store's change log through a MongoDB
// change stream and publishes a change event for every new entry.
package puller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/syntrixbase/searchsync/internal/changelog"
	"github.com/syntrixbase/searchsync/internal/listener"
	"github.com/syntrixbase/searchsync/internal/metrics"
	"github.com/syntrixbase/searchsync/internal/puller/config"
)

// ChangeStream is the subset of *mongo.ChangeStream the puller reads.
type ChangeStream interface {
	Next(ctx context.Context) bool
	Decode(val interface{}) error
	ResumeToken() bson.Raw
	Err() error
	Close(ctx context.Context) error
}

var _ ChangeStream = (*mongo.ChangeStream)(nil)

// Source opens change streams over the change log.
type Source interface {
	// Watch opens a stream of change log inserts, resuming after token when
	// it is not nil.
	Watch(ctx context.Context, resumeAfter bson.Raw) (ChangeStream, error)
}

// Publisher publishes change events.
type Publisher interface {
	Publish(ctx context.Context, ev *listener.Event) error
}

var _ Publisher = (*listener.Publisher)(nil)

// MongoSource watches a change log collection.
type MongoSource struct {
	collection *mongo.Collection
}

// NewMongoSource creates a Source over the given change log collection.
func NewMongoSource(collection *mongo.Collection) *MongoSource {
	return &MongoSource{collection: collection}
}

func (s *MongoSource) Watch(ctx context.Context, resumeAfter bson.Raw) (ChangeStream, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"operationType": "insert"}}},
	}
	opts := options.ChangeStream()
	if resumeAfter != nil {
		opts.SetResumeAfter(resumeAfter)
	}
	stream, err := s.collection.Watch(ctx, pipeline, opts)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// changeEvent is a change stream insert of one change log entry.
type changeEvent struct {
	OperationType string   `bson:"operationType"`
	FullDocument  logEntry `bson:"fullDocument"`
}

type logEntry struct {
	Table string               `bson:"table"`
	RowID int64                `bson:"row_id"`
	Type  changelog.ChangeType `bson:"type"`
}

// toEvent maps a change log entry to the event that reindexes its record.
func toEvent(e logEntry) (*listener.Event, error) {
	ev := &listener.Event{Table: e.Table, RowID: e.RowID}
	switch e.Type {
	case changelog.Insert, changelog.Update:
		ev.Kind = listener.KindSave
	case changelog.Delete:
		ev.Kind = listener.KindDelete
	default:
		return nil, fmt.Errorf("unknown change type %q", e.Type)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

// Puller publishes change log entries as change events. Delivery is at least
// once: after a restart or reconnect the stream resumes from the last saved
// checkpoint.
type Puller struct {
	source    Source
	store     CheckpointStore
	publisher Publisher
	cfg       config.Config
	tracker   *Tracker
	logger    *slog.Logger
}

// New creates a Puller.
func New(source Source, store CheckpointStore, publisher Publisher, cfg config.Config, logger *slog.Logger) *Puller {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Puller{
		source:    source,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		tracker:   NewTracker(Policy{Interval: cfg.CheckpointInterval, EventCount: cfg.CheckpointEvents}),
		logger:    logger.With("component", "puller", "id", cfg.ID),
	}
}

// Run watches the change log until ctx is cancelled, reopening the stream
// after failures.
func (p *Puller) Run(ctx context.Context) error {
	p.logger.Info("Puller started")
	for {
		err := p.watch(ctx)
		if ctx.Err() != nil {
			p.saveOnShutdown()
			p.logger.Info("Puller stopped")
			return nil
		}
		p.logger.Error("Change stream error, reconnecting", "error", err, "delay", p.cfg.ReconnectDelay)

		select {
		case <-ctx.Done():
			p.saveOnShutdown()
			p.logger.Info("Puller stopped")
			return nil
		case <-time.After(p.cfg.ReconnectDelay):
		}
	}
}

func (p *Puller) watch(ctx context.Context) error {
	// An unsaved position survives a reconnect in the tracker.
	token, pending := p.tracker.Pending()
	if !pending {
		var err error
		token, err = p.store.Load(ctx)
		if err != nil {
			p.logger.Warn("Failed to load checkpoint", "error", err)
		}
	}
	if token != nil {
		p.logger.Info("Resuming from checkpoint")
	} else {
		p.logger.Info("Starting fresh (no checkpoint)")
	}

	stream, err := p.source.Watch(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to open change stream: %w", err)
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var raw changeEvent
		if err := stream.Decode(&raw); err != nil {
			p.logger.Error("Failed to decode change", "error", err)
			p.record(ctx, stream.ResumeToken())
			continue
		}
		metrics.ChangesPulled.WithLabelValues(string(raw.FullDocument.Type)).Inc()

		ev, err := toEvent(raw.FullDocument)
		if err != nil {
			p.logger.Warn("Skipping change log entry", "table", raw.FullDocument.Table, "row_id", raw.FullDocument.RowID, "error", err)
			p.record(ctx, stream.ResumeToken())
			continue
		}

		if err := p.publisher.Publish(ctx, ev); err != nil {
			return fmt.Errorf("failed to publish %s: %w", ev.Key(), err)
		}
		p.record(ctx, stream.ResumeToken())
	}
	if err := stream.Err(); err != nil {
		return err
	}
	return fmt.Errorf("change stream closed")
}

// record advances the tracked position past a handled change and saves it
// when the policy says so.
func (p *Puller) record(ctx context.Context, token bson.Raw) {
	if !p.tracker.RecordEvent(token) {
		return
	}
	if err := p.store.Save(ctx, token); err != nil {
		metrics.Checkpoints.WithLabelValues("failed").Inc()
		p.logger.Warn("Failed to save checkpoint", "error", err)
		return
	}
	metrics.Checkpoints.WithLabelValues("ok").Inc()
	p.tracker.MarkCheckpointed()
}

func (p *Puller) saveOnShutdown() {
	token, pending := p.tracker.Pending()
	if !pending {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.store.Save(ctx, token); err != nil {
		metrics.Checkpoints.WithLabelValues("failed").Inc()
		p.logger.Error("Failed to save final checkpoint", "error", err)
		return
	}
	metrics.Checkpoints.WithLabelValues("ok").Inc()
	p.tracker.MarkCheckpointed()
}
