package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/syntrixbase/searchsync/internal/fieldtype"
	"github.com/syntrixbase/searchsync/internal/indexer"
	"github.com/syntrixbase/searchsync/internal/recordstore"
	"github.com/syntrixbase/searchsync/internal/schema"
	"github.com/syntrixbase/searchsync/pkg/model"
)

// Session is the part of an indexing session events are applied through.
type Session interface {
	recordstore.Session
	RemoveRowIndexing(ctx context.Context, table string, rowID int64) error
	RemoveFieldIndexing(ctx context.Context, table string, rowID int64, fieldTable string, fields []string, contentRowID int64) error
	Flush(ctx context.Context) error
	Discard()
}

var _ Session = (*indexer.Session)(nil)

// FatalError marks an event that will fail on every redelivery.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err should stop redelivery of its event.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// Handler applies change events to indexing sessions.
type Handler struct {
	loader recordstore.Loader
	logger *slog.Logger
}

// NewHandler creates a Handler that loads saved records through loader.
func NewHandler(loader recordstore.Loader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{loader: loader, logger: logger}
}

// Apply applies ev through s and flushes s. On error s is left empty so the
// event can be applied again from scratch.
func (h *Handler) Apply(ctx context.Context, s Session, ev *Event) error {
	if err := ev.Validate(); err != nil {
		return &FatalError{Err: err}
	}
	if err := h.apply(ctx, s, ev); err != nil {
		s.Discard()
		return classify(err)
	}
	if err := s.Flush(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (h *Handler) apply(ctx context.Context, s Session, ev *Event) error {
	switch ev.Kind {
	case KindSave:
		rec, err := h.loader.LoadRecord(ctx, ev.Table, ev.RowID)
		if errors.Is(err, model.ErrNotFound) {
			h.logger.Debug("Saved record is gone, removing it", "row", ev.Key())
			return s.RemoveRowIndexing(ctx, ev.Table, ev.RowID)
		}
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", ev.Key(), err)
		}
		return recordstore.IndexRecord(ctx, s, rec)

	case KindDelete:
		return s.RemoveRowIndexing(ctx, ev.Table, ev.RowID)

	case KindRemoveField:
		fieldTable := ev.FieldTable
		if fieldTable == "" {
			fieldTable = ev.Table
		}
		return s.RemoveFieldIndexing(ctx, ev.Table, ev.RowID, fieldTable, ev.Fields, ev.ContentRowID)

	case KindAttribute:
		attr := ev.Attribute
		table := attr.Table
		if table == "" {
			table = ev.Table
		}
		s.StartRowIndexing(ev.Table, ev.RowID)
		if err := s.IndexField(ctx, table, attr.Field, attr.ID, attr.Value, fieldtype.ParseOptions(attr.Options)); err != nil {
			return err
		}
		return s.CommitRowIndexing(ctx)
	}
	return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, ev.Kind)
}

// classify marks errors a redelivery cannot fix: unknown fields and documents
// the search index rejected.
func classify(err error) error {
	switch {
	case errors.Is(err, schema.ErrUnknownField),
		errors.Is(err, ErrInvalidEvent),
		errors.Is(err, indexer.ErrBulkPartialFailure):
		return &FatalError{Err: err}
	}
	return err
}
