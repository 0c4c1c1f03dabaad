package changelog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/searchsync/internal/fieldtype"
	"github.com/syntrixbase/searchsync/pkg/model"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) Entries(ctx context.Context, table string, rowID int64) ([]Entry, error) {
	args := m.Called(ctx, table, rowID)
	entries, _ := args.Get(0).([]Entry)
	return entries, args.Error(1)
}

func TestBuilder_Fragment(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2023, 3, 1, 9, 30, 0, 0, time.UTC)
	modified := time.Date(2024, 5, 2, 17, 0, 5, 0, time.UTC)

	src := new(MockSource)
	src.On("Entries", ctx, "ca_objects", int64(1)).Return([]Entry{
		{Type: Update, Timestamp: modified, User: "editor"},
		{Type: Insert, Timestamp: created, User: "admin"},
		{Type: Update, Timestamp: created.Add(time.Hour), User: "admin"},
	}, nil)

	b := NewBuilder(src, fieldtype.NewRegistry(&fieldtype.Env{}))
	frag, err := b.Fragment(ctx, model.RowKey{Table: "ca_objects", ID: 1})
	require.NoError(t, err)

	assert.Equal(t, fieldtype.Fragment{
		"changeLog/created":     {"-dt": "2023-03-01T09:30:00Z"},
		"changeLog/modified":    {"-dt": "2024-05-02T17:00:05Z"},
		"changeLog/modified_by": {"-s": "editor"},
	}, frag)
}

func TestBuilder_FragmentWithoutInsert(t *testing.T) {
	ctx := context.Background()
	first := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	src := new(MockSource)
	src.On("Entries", ctx, "ca_objects", int64(2)).Return([]Entry{{Type: Update, Timestamp: first}}, nil)
	src.On("Entries", ctx, "ca_objects", int64(3)).Return(nil, nil)
	src.On("Entries", ctx, "ca_objects", int64(4)).Return(nil, errors.New("db down"))

	b := NewBuilder(src, fieldtype.NewRegistry(&fieldtype.Env{}))

	frag, err := b.Fragment(ctx, model.RowKey{Table: "ca_objects", ID: 2})
	require.NoError(t, err)
	assert.Equal(t, fieldtype.Values{"-dt": "2020-01-01T00:00:00Z"}, frag["changeLog/created"])
	assert.Equal(t, fieldtype.Values{"-dt": "2020-01-01T00:00:00Z"}, frag["changeLog/modified"])
	assert.NotContains(t, frag, "changeLog/modified_by")

	frag, err = b.Fragment(ctx, model.RowKey{Table: "ca_objects", ID: 3})
	require.NoError(t, err)
	assert.Nil(t, frag)

	_, err = b.Fragment(ctx, model.RowKey{Table: "ca_objects", ID: 4})
	assert.EqualError(t, err, "db down")
}
