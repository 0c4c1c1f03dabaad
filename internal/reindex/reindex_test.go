package reindex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/searchsync/internal/fieldtype"
	indexercfg "github.com/syntrixbase/searchsync/internal/indexer/config"
	"github.com/syntrixbase/searchsync/internal/mapping"
	"github.com/syntrixbase/searchsync/internal/recordstore"
	"github.com/syntrixbase/searchsync/internal/reindex/config"
	"github.com/syntrixbase/searchsync/internal/schema"
	"github.com/syntrixbase/searchsync/internal/searchindex"
	"github.com/syntrixbase/searchsync/internal/searchindex/mem_store"
)

// fakeScanner serves records from memory in id order.
type fakeScanner struct {
	mu      sync.Mutex
	records map[string][]*recordstore.Record
	calls   int
	err     error
}

func (f *fakeScanner) Scan(ctx context.Context, table string, afterID int64, limit int) ([]*recordstore.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []*recordstore.Record
	for _, rec := range f.records[table] {
		if rec.ID <= afterID {
			continue
		}
		out = append(out, rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func objects(n int) []*recordstore.Record {
	recs := make([]*recordstore.Record, 0, n)
	for i := 1; i <= n; i++ {
		id := int64(i)
		recs = append(recs, &recordstore.Record{
			Table:  "ca_objects",
			ID:     id,
			Fields: map[string]any{"idno": fmt.Sprintf("2024.%d", i)},
			Attributes: []recordstore.Attribute{
				{ID: 100 + id, Field: "description", Value: fmt.Sprintf("object %d", i)},
			},
		})
	}
	return recs
}

type failingBulk struct {
	*mem_store.Store
}

func (f failingBulk) Bulk(ctx context.Context, ops []searchindex.BulkOp) (*searchindex.BulkResponse, error) {
	return nil, &searchindex.ResponseError{Status: 503, Type: "unavailable", Reason: "cluster down"}
}

type fixture struct {
	store    *mem_store.Store
	scanner  *fakeScanner
	progress *ProgressStore
	deps     Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sch, err := schema.New(schema.Config{
		Tables: []schema.Table{
			{Name: "ca_objects", IdnoField: "idno", Fields: []schema.Field{{Name: "idno"}}},
			{Name: "ca_entities", IdnoField: "idno", Fields: []schema.Field{{Name: "idno"}}},
			{Name: "ca_object_labels", IsLabel: true, Fields: []schema.Field{{Name: "name"}}},
		},
		Elements: []schema.Element{
			{ID: 10, Code: "description", Datatype: schema.DatatypeText},
		},
	})
	require.NoError(t, err)

	progress, err := OpenProgressStore(t.TempDir(), 1<<20)
	require.NoError(t, err)
	t.Cleanup(func() { progress.Close() })

	store := mem_store.New()
	scanner := &fakeScanner{records: map[string][]*recordstore.Record{
		"ca_objects": objects(5),
		"ca_entities": {
			{Table: "ca_entities", ID: 1, Fields: map[string]any{"idno": "E1"}},
		},
	}}
	return &fixture{
		store:    store,
		scanner:  scanner,
		progress: progress,
		deps: Deps{
			Client:   store,
			Registry: fieldtype.NewRegistry(&fieldtype.Env{Schema: sch}),
			Mapping:  mapping.NewManager(store, sch, "ca", nil),
			Scanner:  scanner,
			Progress: progress,
			Indexing: indexercfg.DefaultConfig(),
		},
	}
}

func testConfig() config.Config {
	return config.Config{Workers: 3, BatchSize: 2}
}

func TestReindexer_RunAllTables(t *testing.T) {
	f := newFixture(t)
	r := New(testConfig(), f.deps)

	jobs, err := r.Run(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "ca_objects", jobs[0].Table)
	assert.Equal(t, StatusCompleted, jobs[0].Status)
	assert.Equal(t, int64(5), jobs[0].RowsTotal)
	assert.Equal(t, int64(5), jobs[0].RowsIndexed)
	assert.Zero(t, jobs[0].Failures)
	assert.Equal(t, StatusCompleted, jobs[1].Status)

	assert.Equal(t, 5, f.store.Index("ca_ca_objects").Len())
	assert.Equal(t, 1, f.store.Index("ca_ca_entities").Len())
	doc, ok := f.store.Index("ca_ca_objects").Get("4")
	require.True(t, ok)
	assert.NotEmpty(t, doc)

	cp, ok, err := f.progress.Load("ca_objects")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, cp.Status)
	assert.Equal(t, int64(5), cp.LastID)
	assert.Equal(t, int64(5), cp.Rows)

	assert.Len(t, r.Jobs(), 2)
}

func TestReindexer_SelectedTables(t *testing.T) {
	f := newFixture(t)
	r := New(testConfig(), f.deps)

	jobs, err := r.Run(context.Background(), Options{Tables: []string{"ca_entities"}})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 0, f.store.Index("ca_ca_objects").Len())
	assert.Equal(t, 1, f.store.Index("ca_ca_entities").Len())
}

func TestReindexer_Resume(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.progress.Save(Checkpoint{Table: "ca_objects", LastID: 3, Rows: 3, Status: StatusRunning}))
	require.NoError(t, f.progress.Save(Checkpoint{Table: "ca_entities", LastID: 1, Rows: 1, Status: StatusCompleted}))
	r := New(testConfig(), f.deps)

	jobs, err := r.Run(context.Background(), Options{Resume: true})
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, int64(2), jobs[0].RowsIndexed)
	_, ok := f.store.Index("ca_ca_objects").Get("3")
	assert.False(t, ok)
	_, ok = f.store.Index("ca_ca_objects").Get("4")
	assert.True(t, ok)

	// completed tables are skipped
	assert.Equal(t, StatusCompleted, jobs[1].Status)
	assert.Zero(t, jobs[1].RowsTotal)
	assert.Equal(t, 0, f.store.Index("ca_ca_entities").Len())

	cp, _, err := f.progress.Load("ca_objects")
	require.NoError(t, err)
	assert.Equal(t, int64(5), cp.Rows)
}

func TestReindexer_WithoutResumeStartsOver(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.progress.Save(Checkpoint{Table: "ca_objects", LastID: 3, Status: StatusRunning}))
	r := New(testConfig(), f.deps)

	jobs, err := r.Run(context.Background(), Options{Tables: []string{"ca_objects"}})
	require.NoError(t, err)
	assert.Equal(t, int64(5), jobs[0].RowsIndexed)
}

func TestReindexer_Truncate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.deps.Mapping.RefreshMapping(ctx, false))
	f.store.Index("ca_ca_objects").Put("99", map[string]any{"stale": true})
	require.NoError(t, f.progress.Save(Checkpoint{Table: "ca_objects", LastID: 5, Status: StatusCompleted}))

	r := New(testConfig(), f.deps)
	jobs, err := r.Run(ctx, Options{Tables: []string{"ca_objects"}, Truncate: true, Resume: true})
	require.NoError(t, err)

	// the checkpoint went with the index, so every row is indexed again
	assert.Equal(t, int64(5), jobs[0].RowsIndexed)
	_, ok := f.store.Index("ca_ca_objects").Get("99")
	assert.False(t, ok)
	assert.Equal(t, 5, f.store.Index("ca_ca_objects").Len())
	assert.NotNil(t, f.store.Template("ca"))
}

func TestReindexer_PartialFailureContinues(t *testing.T) {
	f := newFixture(t)
	f.store.SetBulkHook(func(op searchindex.BulkOp) *searchindex.ErrorCause {
		if op.Index == "ca_ca_objects" && op.ID == "2" {
			return &searchindex.ErrorCause{Type: "mapper_parsing_exception", Reason: "failed to parse"}
		}
		return nil
	})
	r := New(testConfig(), f.deps)

	jobs, err := r.Run(context.Background(), Options{Tables: []string{"ca_objects"}})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, jobs[0].Status)
	assert.Equal(t, int64(1), jobs[0].Failures)
	assert.Equal(t, 4, f.store.Index("ca_ca_objects").Len())
}

func TestReindexer_TransportFailure(t *testing.T) {
	f := newFixture(t)
	f.deps.Client = failingBulk{f.store}
	r := New(testConfig(), f.deps)

	jobs, err := r.Run(context.Background(), Options{})
	require.Error(t, err)
	require.Len(t, jobs, 1, "stops at the first failed table")
	assert.Equal(t, StatusFailed, jobs[0].Status)
	assert.Contains(t, jobs[0].Error, "cluster down")

	_, ok, err := f.progress.Load("ca_objects")
	require.NoError(t, err)
	assert.False(t, ok, "no checkpoint past unflushed rows")
}

func TestReindexer_ScanFailure(t *testing.T) {
	f := newFixture(t)
	f.scanner.err = errors.New("connection reset")
	r := New(testConfig(), f.deps)

	jobs, err := r.Run(context.Background(), Options{Tables: []string{"ca_objects"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record scan failed")
	assert.Equal(t, StatusFailed, jobs[0].Status)
}

func TestReindexer_Canceled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(testConfig(), f.deps)

	job := r.newJob("ca_objects")
	err := r.runJob(ctx, job, false)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusCanceled, job.Progress().Status)
	assert.Zero(t, f.scanner.calls)
}

func TestReindexer_WithoutProgressStore(t *testing.T) {
	f := newFixture(t)
	f.deps.Progress = nil
	r := New(config.Config{}, f.deps)

	jobs, err := r.Run(context.Background(), Options{Tables: []string{"ca_objects"}, Truncate: true, Resume: true})
	require.NoError(t, err)
	assert.Equal(t, int64(5), jobs[0].RowsIndexed)
}

func TestPool_PartitionIsStable(t *testing.T) {
	f := newFixture(t)
	r := New(testConfig(), f.deps)
	p := r.newPool()
	defer p.discard()
	require.Len(t, p.sessions, 3)

	for _, rec := range objects(20) {
		i := p.partition(rec)
		assert.GreaterOrEqual(t, i, 0)
		assert.Less(t, i, 3)
		assert.Equal(t, i, p.partition(rec))
	}
}
