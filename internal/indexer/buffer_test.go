package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syntrixbase/searchsync/pkg/model"
)

func TestWriteBuffer_DeleteWinsOverUpdate(t *testing.T) {
	b := NewWriteBuffer()
	row := model.RowKey{Table: "ca_objects", ID: 1}
	other := model.RowKey{Table: "ca_objects", ID: 2}

	b.Update(row).Field("ca_objects/description").Set("1", text("a"))
	b.Update(other).Field("ca_objects/description").Set("2", text("b"))
	assert.Equal(t, 2, b.Len())

	b.QueueDelete(row)

	_, pending := b.PendingUpdate(row)
	assert.False(t, pending)
	assert.True(t, b.Deleted(row))
	assert.Equal(t, []model.RowKey{row}, b.Deletes())

	var updated []model.RowKey
	b.Updates(func(r model.RowKey, _ Document) { updated = append(updated, r) })
	assert.Equal(t, []model.RowKey{other}, updated)
	assert.Equal(t, 2, b.Len())
}

func TestWriteBuffer_DeleteDropsInsertAndDedupes(t *testing.T) {
	b := NewWriteBuffer()
	row := model.RowKey{Table: "ca_objects", ID: 1}

	doc := make(Document)
	doc.Field("k").Set("1", text("a"))
	b.QueueInsert(row, doc)

	b.QueueDelete(row)
	b.QueueDelete(row)

	_, ok := b.Insert(row)
	assert.False(t, ok)
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, []model.RowKey{row}, b.Deletes())
}

func TestWriteBuffer_QueueInsertMerges(t *testing.T) {
	b := NewWriteBuffer()
	row := model.RowKey{Table: "ca_objects", ID: 1}

	first := make(Document)
	first.Field("k").Set("1", text("a"))
	first.Field("k").Set("2", text("b"))
	b.QueueInsert(row, first)

	second := make(Document)
	second.Field("k").Set("2", text("B"))
	second.Field("j").Set("3", text("c"))
	b.QueueInsert(row, second)

	doc, ok := b.Insert(row)
	assert.True(t, ok)
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, []string{"1", "2"}, doc["k"].IDs())
	assert.Equal(t, text("B"), doc["k"].Values()[1])
	assert.Equal(t, []string{"3"}, doc["j"].IDs())
}

func TestWriteBuffer_Reset(t *testing.T) {
	b := NewWriteBuffer()
	b.QueueInsert(model.RowKey{Table: "a", ID: 1}, make(Document))
	b.Update(model.RowKey{Table: "a", ID: 2})
	b.QueueDelete(model.RowKey{Table: "a", ID: 3})
	assert.Equal(t, 3, b.Len())

	b.Reset()
	assert.True(t, b.Empty())
	assert.Empty(t, b.Deletes())

	calls := 0
	b.Inserts(func(model.RowKey, Document) { calls++ })
	b.Updates(func(model.RowKey, Document) { calls++ })
	assert.Zero(t, calls)
}
