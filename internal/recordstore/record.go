// Package recordstore describes records as they are read from the record store
// and drives their indexing.
package recordstore

import (
	"context"

	"github.com/syntrixbase/searchsync/pkg/model"
)

// Attribute is one value contributing to a record's document: a metadata
// element value, a label, or any other content row attached to the record.
type Attribute struct {
	// ID is the content row id the value is tracked under.
	ID int64 `bson:"id" json:"id"`
	// Table is the content table; empty means the record's own table.
	Table string `bson:"table,omitempty" json:"table,omitempty"`
	// Field is the content field, an element code or intrinsic name.
	Field   string   `bson:"field" json:"field"`
	Value   any      `bson:"value" json:"value"`
	Options []string `bson:"options,omitempty" json:"options,omitempty"`
}

// Record is a row of the record store with its attached values.
type Record struct {
	Table      string         `bson:"table" json:"table"`
	ID         int64          `bson:"row_id" json:"row_id"`
	Fields     map[string]any `bson:"fields" json:"fields"`
	Attributes []Attribute    `bson:"attributes,omitempty" json:"attributes,omitempty"`
}

// Key returns the record's row key.
func (r *Record) Key() model.RowKey {
	return model.RowKey{Table: r.Table, ID: r.ID}
}

// Loader reads records. LoadRecord returns model.ErrNotFound for missing rows.
type Loader interface {
	LoadRecord(ctx context.Context, table string, id int64) (*Record, error)
}

// Scanner enumerates the records of a table in ascending id order, starting
// after afterID.
type Scanner interface {
	Scan(ctx context.Context, table string, afterID int64, limit int) ([]*Record, error)
}
