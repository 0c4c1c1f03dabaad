package recordstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/syntrixbase/searchsync/internal/fieldtype"
)

// Session is the part of an indexing session a record is written through.
type Session interface {
	StartRowIndexing(table string, rowID int64)
	IndexField(ctx context.Context, contentTable, contentField string, contentRowID int64, content any, opts fieldtype.Options) error
	CommitRowIndexing(ctx context.Context) error
}

// IndexRecord writes every intrinsic field and attribute of rec through s.
// Intrinsic fields are tracked under the record's own id.
func IndexRecord(ctx context.Context, s Session, rec *Record) error {
	s.StartRowIndexing(rec.Table, rec.ID)

	names := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.IndexField(ctx, rec.Table, name, rec.ID, rec.Fields[name], fieldtype.Options{}); err != nil {
			return fmt.Errorf("failed to index %s field %s: %w", rec.Key(), name, err)
		}
	}

	for _, attr := range rec.Attributes {
		table := attr.Table
		if table == "" {
			table = rec.Table
		}
		opts := fieldtype.ParseOptions(attr.Options)
		if err := s.IndexField(ctx, table, attr.Field, attr.ID, attr.Value, opts); err != nil {
			return fmt.Errorf("failed to index %s attribute %d: %w", rec.Key(), attr.ID, err)
		}
	}

	return s.CommitRowIndexing(ctx)
}
