// Package indexer keeps search index documents in sync with records. A Session
// collects the fields of each record into a WriteBuffer and flushes it through
// a CommitEngine in bulk.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/syntrixbase/searchsync/internal/fieldtype"
	"github.com/syntrixbase/searchsync/internal/indexer/config"
	"github.com/syntrixbase/searchsync/internal/metrics"
	"github.com/syntrixbase/searchsync/internal/searchindex"
	"github.com/syntrixbase/searchsync/pkg/model"
)

// Session is one unit of indexing work: a full reindex run, or the changes
// of one record transaction. It owns its WriteBuffer and record cache and must
// not be shared between goroutines.
type Session struct {
	id         string
	cfg        config.Config
	prefix     string
	reindexing bool

	client   searchindex.Client
	registry *fieldtype.Registry
	engine   *CommitEngine
	logger   *slog.Logger

	buffer *WriteBuffer
	cache  map[model.RowKey]cachedRecord

	row     *model.RowKey
	content Document
}

type cachedRecord struct {
	doc   Document
	found bool
}

// Option configures a Session.
type Option func(*Session)

// WithReindexing marks a bulk reindex run: documents are assumed not to
// exist, so no existence fetches are made, and indices are not refreshed
// after flushes.
func WithReindexing() Option {
	return func(s *Session) {
		s.reindexing = true
	}
}

// WithChangeLog merges change history into every written document.
func WithChangeLog(changes ChangeLog) Option {
	return func(s *Session) {
		s.engine.changes = changes
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession creates a session writing to the indices of prefix.
func NewSession(client searchindex.Client, registry *fieldtype.Registry, prefix string, cfg config.Config, opts ...Option) *Session {
	cfg.ApplyDefaults()
	s := &Session{
		id:       uuid.NewString(),
		cfg:      cfg,
		prefix:   prefix,
		client:   client,
		registry: registry,
		logger:   slog.Default(),
		buffer:   NewWriteBuffer(),
		cache:    make(map[model.RowKey]cachedRecord),
	}
	s.engine = NewCommitEngine(client, prefix, nil, nil)
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "indexer", "session", s.id)
	s.engine.logger = s.logger.With("component", "commit")
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Reindexing reports whether the session runs a bulk reindex.
func (s *Session) Reindexing() bool {
	return s.reindexing
}

// Buffer returns the session's write buffer.
func (s *Session) Buffer() *WriteBuffer {
	return s.buffer
}

// Pending returns the number of entries waiting for the next flush.
func (s *Session) Pending() int {
	return s.buffer.Len()
}

// StartRowIndexing begins collecting the fields of a record. Fields collected
// for a previous row that was never committed are discarded.
func (s *Session) StartRowIndexing(table string, rowID int64) {
	s.row = &model.RowKey{Table: table, ID: rowID}
	s.content = make(Document)
}

// IndexField encodes content of a field of contentTable and adds it to the
// current record under contentRowID. content may be a single value or a
// slice; the values of a slice are all attributed to contentRowID.
//
// Fields of records that already exist in the index are patched in place:
// the values previously produced by contentRowID are replaced and all other
// values are kept. New records are collected and written as a whole on commit.
func (s *Session) IndexField(ctx context.Context, contentTable, contentField string, contentRowID int64, content any, opts fieldtype.Options) error {
	if s.row == nil {
		return ErrNoRowInProgress
	}
	ft, err := s.registry.Get(contentTable, contentField)
	if err != nil {
		return fmt.Errorf("failed to resolve %s.%s: %w", contentTable, contentField, err)
	}

	id := SourceID(contentRowID)
	values := make(map[string][]fieldtype.Values)
	for _, item := range contentItems(content) {
		frag := fieldtype.Encode(ctx, ft, item, opts)
		for key, vals := range frag {
			values[key] = append(values[key], vals)
		}
	}

	if s.exists(ctx, *s.row) {
		// Content that now encodes to nothing clears what this row produced.
		if _, ok := values[ft.Key()]; !ok {
			values[ft.Key()] = nil
		}
		for key, vals := range values {
			s.updateField(ctx, *s.row, key, id, vals)
		}
		return nil
	}

	for key, vals := range values {
		s.content.Field(key).Set(id, vals...)
	}
	return nil
}

// CommitRowIndexing hands the collected fields of the current record to the
// write buffer and flushes if the buffer is full.
func (s *Session) CommitRowIndexing(ctx context.Context) error {
	if s.row == nil {
		return nil
	}
	if len(s.content) > 0 {
		s.buffer.QueueInsert(*s.row, s.content)
	}
	s.row = nil
	s.content = nil
	return s.flushWhenFull(ctx)
}

// RemoveRowIndexing queues the document of a record for deletion. Pending
// changes to the same record are discarded.
func (s *Session) RemoveRowIndexing(ctx context.Context, table string, rowID int64) error {
	row := model.RowKey{Table: table, ID: rowID}
	s.buffer.QueueDelete(row)
	s.cache[row] = cachedRecord{}
	return s.flushWhenFull(ctx)
}

// RemoveFieldIndexing removes the values contentRowID produced for the given
// fields of fieldTable from a record's document, leaving all other values in
// place.
func (s *Session) RemoveFieldIndexing(ctx context.Context, table string, rowID int64, fieldTable string, fields []string, contentRowID int64) error {
	row := model.RowKey{Table: table, ID: rowID}
	id := SourceID(contentRowID)
	for _, name := range fields {
		ft, err := s.registry.Get(fieldTable, name)
		if err != nil {
			return fmt.Errorf("failed to resolve %s.%s: %w", fieldTable, name, err)
		}
		key := ft.Key()

		if doc, ok := s.buffer.Insert(row); ok {
			if a, ok := doc[key]; ok {
				a.Remove(id)
			}
			continue
		}

		if _, ok := s.record(ctx, row); !ok {
			s.buffer.DropUpdate(row)
			continue
		}
		s.updateField(ctx, row, key, id, nil)
	}
	return s.flushWhenFull(ctx)
}

// Flush writes all pending work and clears the record cache.
func (s *Session) Flush(ctx context.Context) error {
	defer clear(s.cache)
	refresh := s.cfg.RefreshAfterFlush && !s.reindexing
	return s.engine.Flush(ctx, s.buffer, refresh)
}

// Discard drops all pending work without writing it.
func (s *Session) Discard() {
	s.buffer.Reset()
	clear(s.cache)
	s.row = nil
	s.content = nil
}

func (s *Session) flushWhenFull(ctx context.Context) error {
	if s.buffer.Len() <= s.cfg.MaxBufferSize {
		return nil
	}
	metrics.AutoFlushes.Inc()
	s.logger.Debug("write buffer full, flushing", "pending", s.buffer.Len())
	return s.Flush(ctx)
}

// updateField sets the values of content row id in the pending update of key,
// starting from what the index holds for the record.
func (s *Session) updateField(ctx context.Context, row model.RowKey, key, id string, vals []fieldtype.Values) {
	if update, ok := s.buffer.PendingUpdate(row); ok {
		if a, ok := update[key]; ok {
			a.Set(id, vals...)
			return
		}
	}
	stored, _ := s.record(ctx, row)
	if stored[key] == nil && len(vals) == 0 {
		return
	}
	a := stored[key].Clone()
	a.Set(id, vals...)
	s.buffer.Update(row)[key] = a
}

func (s *Session) exists(ctx context.Context, row model.RowKey) bool {
	if s.reindexing {
		return false
	}
	_, found := s.record(ctx, row)
	return found
}

// record returns the tracked fields of a stored document. Read failures are
// treated as a missing document.
func (s *Session) record(ctx context.Context, row model.RowKey) (Document, bool) {
	if rec, ok := s.cache[row]; ok {
		return rec.doc, rec.found
	}

	src, err := s.client.Get(ctx, searchindex.IndexName(s.prefix, row.Table), row.DocID())
	switch {
	case errors.Is(err, searchindex.ErrNotFound):
		s.remember(row, cachedRecord{})
		return nil, false
	case err != nil:
		s.logger.Warn("failed to fetch document, treating as missing", "row", row.String(), "error", err)
		return nil, false
	}
	rec := cachedRecord{doc: DocumentFromSource(src), found: true}
	s.remember(row, rec)
	return rec.doc, true
}

func (s *Session) remember(row model.RowKey, rec cachedRecord) {
	if len(s.cache) >= s.cfg.RecordCacheSize {
		return
	}
	s.cache[row] = rec
}

func contentItems(content any) []any {
	switch v := content.(type) {
	case []any:
		return v
	case []string:
		items := make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return items
	}
	return []any{content}
}
