package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/searchsync/internal/changelog"
	"github.com/syntrixbase/searchsync/internal/recordstore"
	"github.com/syntrixbase/searchsync/internal/storage/config"
	"github.com/syntrixbase/searchsync/pkg/model"
)

// setupTestBackend connects to the MongoDB named by SEARCHSYNC_TEST_MONGO_URI
// (default localhost) and skips the test when none is reachable.
func setupTestBackend(t *testing.T) *Backend {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database = "searchsync_test"
	cfg.Timeout = 2 * time.Second
	if uri := os.Getenv("SEARCHSYNC_TEST_MONGO_URI"); uri != "" {
		cfg.URI = uri
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	backend, err := NewBackend(ctx, cfg)
	if err != nil {
		t.Skipf("mongodb not available: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close(context.Background()) })

	// Clean up test database before starting
	require.NoError(t, backend.db.Drop(context.Background()))
	require.NoError(t, backend.EnsureIndexes(context.Background()))
	return backend
}

func TestBackend_Records(t *testing.T) {
	b := setupTestBackend(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		_, err := b.records.InsertOne(ctx, recordstore.Record{
			Table:  "ca_objects",
			ID:     i,
			Fields: map[string]any{"idno": "2024." + string(rune('0'+i))},
			Attributes: []recordstore.Attribute{
				{ID: i * 10, Field: "description", Value: "chair"},
			},
		})
		require.NoError(t, err)
	}

	rec, err := b.LoadRecord(ctx, "ca_objects", 2)
	require.NoError(t, err)
	assert.Equal(t, "2024.2", rec.Fields["idno"])
	require.Len(t, rec.Attributes, 1)
	assert.Equal(t, int64(20), rec.Attributes[0].ID)

	_, err = b.LoadRecord(ctx, "ca_objects", 99)
	assert.ErrorIs(t, err, model.ErrNotFound)

	recs, err := b.Scan(ctx, "ca_objects", 1, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(2), recs[0].ID)
	assert.Equal(t, int64(3), recs[1].ID)

	recs, err = b.Scan(ctx, "ca_objects", 0, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(1), recs[0].ID)
}

func TestBackend_ChangeLogAndLabels(t *testing.T) {
	b := setupTestBackend(t)
	ctx := context.Background()

	created := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := b.changeLog.InsertMany(ctx, []any{
		map[string]any{"table": "ca_objects", "row_id": int64(1), "type": "U", "timestamp": created.Add(time.Hour), "user": "editor"},
		map[string]any{"table": "ca_objects", "row_id": int64(1), "type": "I", "timestamp": created, "user": "admin"},
		map[string]any{"table": "ca_objects", "row_id": int64(2), "type": "I", "timestamp": created},
	})
	require.NoError(t, err)

	entries, err := b.Entries(ctx, "ca_objects", 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, changelog.Insert, entries[0].Type)
	assert.Equal(t, "editor", entries[1].User)
	assert.True(t, entries[0].Timestamp.Equal(created))

	_, err = b.listItems.InsertOne(ctx, map[string]any{"list_code": "materials", "item_id": int64(5), "idno": "wood", "label": "Wood"})
	require.NoError(t, err)

	label, err := b.Label(ctx, "materials", "5")
	require.NoError(t, err)
	assert.Equal(t, "Wood", label)

	label, err = b.Label(ctx, "materials", "wood")
	require.NoError(t, err)
	assert.Equal(t, "Wood", label)

	_, err = b.Label(ctx, "materials", "stone")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
