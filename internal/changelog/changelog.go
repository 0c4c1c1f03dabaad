// Package changelog turns the change history of a record into the
// "created"/"modified" metadata stored with its search document.
package changelog

import (
	"context"
	"sort"
	"time"

	"github.com/syntrixbase/searchsync/internal/fieldtype"
	"github.com/syntrixbase/searchsync/pkg/model"
)

// ChangeType is the kind of change recorded.
type ChangeType string

const (
	Insert ChangeType = "I"
	Update ChangeType = "U"
	Delete ChangeType = "D"
)

// Entry is one change log entry of a record.
type Entry struct {
	Type      ChangeType `bson:"type" json:"type"`
	Timestamp time.Time  `bson:"timestamp" json:"timestamp"`
	User      string     `bson:"user,omitempty" json:"user,omitempty"`
}

// Source loads the change log entries of a record.
type Source interface {
	Entries(ctx context.Context, table string, rowID int64) ([]Entry, error)
}

// Builder builds change log fragments from a Source.
type Builder struct {
	source   Source
	registry *fieldtype.Registry
}

// NewBuilder creates a builder encoding through registry.
func NewBuilder(source Source, registry *fieldtype.Registry) *Builder {
	return &Builder{source: source, registry: registry}
}

// Fragment returns the change log fragment of row: when it was created, when
// it was last modified and by whom.
func (b *Builder) Fragment(ctx context.Context, row model.RowKey) (fieldtype.Fragment, error) {
	entries, err := b.source.Entries(ctx, row.Table, row.ID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	entries = append([]Entry(nil), entries...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	var created time.Time
	for _, e := range entries {
		if e.Type == Insert {
			created = e.Timestamp
			break
		}
	}
	if created.IsZero() {
		created = entries[0].Timestamp
	}
	last := entries[len(entries)-1]

	frag := make(fieldtype.Fragment)
	b.add(ctx, frag, "created", created)
	b.add(ctx, frag, "modified", last.Timestamp)
	if last.User != "" {
		b.add(ctx, frag, "modified_by", last.User)
	}
	return frag, nil
}

func (b *Builder) add(ctx context.Context, frag fieldtype.Fragment, name string, content any) {
	for key, vals := range b.registry.ChangeLog(name).Encode(ctx, content, fieldtype.Options{}) {
		frag[key] = vals
	}
}
