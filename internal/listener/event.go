package listener

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syntrixbase/searchsync/internal/recordstore"
	"github.com/syntrixbase/searchsync/pkg/model"
)

// Kind is the kind of a record change event.
type Kind string

const (
	// KindSave reindexes a whole record from the record store.
	KindSave Kind = "save"
	// KindDelete removes a record's document.
	KindDelete Kind = "delete"
	// KindRemoveField removes the values a content row produced for some fields.
	KindRemoveField Kind = "remove_field"
	// KindAttribute indexes one value into an existing record.
	KindAttribute Kind = "attribute"
)

// ErrInvalidEvent is returned for events that can never be applied.
var ErrInvalidEvent = errors.New("invalid event")

// Event is a record change published by the record store.
type Event struct {
	Kind  Kind   `json:"kind"`
	Table string `json:"table"`
	RowID int64  `json:"row_id"`

	// FieldTable, Fields and ContentRowID describe a remove_field event.
	// FieldTable defaults to Table.
	FieldTable   string   `json:"field_table,omitempty"`
	Fields       []string `json:"fields,omitempty"`
	ContentRowID int64    `json:"content_row_id,omitempty"`

	// Attribute is the value of an attribute event.
	Attribute *recordstore.Attribute `json:"attribute,omitempty"`
}

// Key returns the key of the record the event changes.
func (e *Event) Key() model.RowKey {
	return model.RowKey{Table: e.Table, ID: e.RowID}
}

// Subject returns the subject the event is published to under prefix.
func (e *Event) Subject(prefix string) string {
	return fmt.Sprintf("%s.%s.%s", prefix, e.Table, e.Kind)
}

// Validate checks that the event carries what its kind needs.
func (e *Event) Validate() error {
	if e.Table == "" || strings.ContainsAny(e.Table, ".*> ") {
		return fmt.Errorf("%w: bad table %q", ErrInvalidEvent, e.Table)
	}
	if e.RowID <= 0 {
		return fmt.Errorf("%w: bad row id %d", ErrInvalidEvent, e.RowID)
	}
	switch e.Kind {
	case KindSave, KindDelete:
	case KindRemoveField:
		if len(e.Fields) == 0 {
			return fmt.Errorf("%w: remove_field without fields", ErrInvalidEvent)
		}
	case KindAttribute:
		if e.Attribute == nil || e.Attribute.Field == "" {
			return fmt.Errorf("%w: attribute event without attribute", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	return nil
}
