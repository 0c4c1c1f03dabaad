package indexer

import (
	"github.com/syntrixbase/searchsync/internal/metrics"
	"github.com/syntrixbase/searchsync/pkg/model"
)

// WriteBuffer collects pending work between flushes: full documents to insert,
// partial documents to update and rows to delete. A row queued for deletion
// never also has a pending update. Entries keep the order they were queued in.
//
// A WriteBuffer is owned by one session and is not safe for concurrent use.
type WriteBuffer struct {
	inserts     map[model.RowKey]Document
	insertOrder []model.RowKey
	updates     map[model.RowKey]Document
	updateOrder []model.RowKey
	deletes     map[model.RowKey]bool
	deleteOrder []model.RowKey
}

// NewWriteBuffer creates an empty buffer.
func NewWriteBuffer() *WriteBuffer {
	return &WriteBuffer{
		inserts: make(map[model.RowKey]Document),
		updates: make(map[model.RowKey]Document),
		deletes: make(map[model.RowKey]bool),
	}
}

// Len returns the number of pending entries across all three classes.
func (b *WriteBuffer) Len() int {
	return len(b.inserts) + len(b.updates) + len(b.deletes)
}

// Empty reports whether nothing is pending.
func (b *WriteBuffer) Empty() bool {
	return b.Len() == 0
}

// QueueInsert merges doc into the pending insert of row.
func (b *WriteBuffer) QueueInsert(row model.RowKey, doc Document) {
	if existing, ok := b.inserts[row]; ok {
		existing.Merge(doc)
		return
	}
	b.inserts[row] = doc
	b.insertOrder = append(b.insertOrder, row)
	metrics.PendingItems.WithLabelValues("insert").Inc()
}

// Insert returns the pending insert of row.
func (b *WriteBuffer) Insert(row model.RowKey) (Document, bool) {
	doc, ok := b.inserts[row]
	return doc, ok
}

// Update returns the pending partial document of row, creating it if needed.
func (b *WriteBuffer) Update(row model.RowKey) Document {
	if doc, ok := b.updates[row]; ok {
		return doc
	}
	doc := make(Document)
	b.updates[row] = doc
	b.updateOrder = append(b.updateOrder, row)
	metrics.PendingItems.WithLabelValues("update").Inc()
	return doc
}

// PendingUpdate returns the pending partial document of row, if any.
func (b *WriteBuffer) PendingUpdate(row model.RowKey) (Document, bool) {
	doc, ok := b.updates[row]
	return doc, ok
}

// DropUpdate discards the pending update of row.
func (b *WriteBuffer) DropUpdate(row model.RowKey) {
	if _, ok := b.updates[row]; !ok {
		return
	}
	delete(b.updates, row)
	b.updateOrder = without(b.updateOrder, row)
	metrics.PendingItems.WithLabelValues("update").Dec()
}

// DropInsert discards the pending insert of row.
func (b *WriteBuffer) DropInsert(row model.RowKey) {
	if _, ok := b.inserts[row]; !ok {
		return
	}
	delete(b.inserts, row)
	b.insertOrder = without(b.insertOrder, row)
	metrics.PendingItems.WithLabelValues("insert").Dec()
}

// QueueDelete queues row for deletion and discards any pending update or
// insert queued for it before.
func (b *WriteBuffer) QueueDelete(row model.RowKey) {
	b.DropUpdate(row)
	b.DropInsert(row)
	if b.deletes[row] {
		return
	}
	b.deletes[row] = true
	b.deleteOrder = append(b.deleteOrder, row)
	metrics.PendingItems.WithLabelValues("delete").Inc()
}

// Deleted reports whether row is queued for deletion.
func (b *WriteBuffer) Deleted(row model.RowKey) bool {
	return b.deletes[row]
}

// Deletes returns the rows queued for deletion.
func (b *WriteBuffer) Deletes() []model.RowKey {
	return append([]model.RowKey(nil), b.deleteOrder...)
}

// Inserts calls fn for every pending insert in queue order.
func (b *WriteBuffer) Inserts(fn func(row model.RowKey, doc Document)) {
	for _, row := range b.insertOrder {
		fn(row, b.inserts[row])
	}
}

// Updates calls fn for every pending update in queue order.
func (b *WriteBuffer) Updates(fn func(row model.RowKey, doc Document)) {
	for _, row := range b.updateOrder {
		fn(row, b.updates[row])
	}
}

// Reset clears all three classes together.
func (b *WriteBuffer) Reset() {
	metrics.PendingItems.WithLabelValues("insert").Sub(float64(len(b.inserts)))
	metrics.PendingItems.WithLabelValues("update").Sub(float64(len(b.updates)))
	metrics.PendingItems.WithLabelValues("delete").Sub(float64(len(b.deletes)))

	clear(b.inserts)
	clear(b.updates)
	clear(b.deletes)
	b.insertOrder = nil
	b.updateOrder = nil
	b.deleteOrder = nil
}

func without(rows []model.RowKey, row model.RowKey) []model.RowKey {
	for i, r := range rows {
		if r == row {
			return append(rows[:i:i], rows[i+1:]...)
		}
	}
	return rows
}
