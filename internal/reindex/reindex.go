// Package reindex rebuilds search index documents from the record store.
//
// Reindex flow, per table:
//  1. Optionally drop and recreate the index (truncate)
//  2. Resume from the table checkpoint, if one exists
//  3. Scan the record store in id order with pagination (throttled)
//  4. Index each batch on a pool of sessions, partitioned by row
//  5. Flush every session, then advance the checkpoint
//  6. Refresh the index and mark the table completed
package reindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/syntrixbase/searchsync/internal/fieldtype"
	"github.com/syntrixbase/searchsync/internal/indexer"
	indexercfg "github.com/syntrixbase/searchsync/internal/indexer/config"
	"github.com/syntrixbase/searchsync/internal/mapping"
	"github.com/syntrixbase/searchsync/internal/metrics"
	"github.com/syntrixbase/searchsync/internal/recordstore"
	"github.com/syntrixbase/searchsync/internal/reindex/config"
	"github.com/syntrixbase/searchsync/internal/searchindex"
)

// Status represents the current status of a reindex job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Job is the reindex of one table.
type Job struct {
	ID    string
	Table string

	Status      Status
	StartTime   time.Time
	EndTime     time.Time
	RowsTotal   int64 // rows read from the record store
	RowsIndexed int64 // rows handed to a session without error
	Failures    int64 // bulk items the search index rejected
	Error       string

	mu sync.Mutex
}

// Progress returns a snapshot of the job progress.
func (j *Job) Progress() JobProgress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobProgress{
		ID:          j.ID,
		Table:       j.Table,
		Status:      j.Status,
		RowsTotal:   j.RowsTotal,
		RowsIndexed: j.RowsIndexed,
		Failures:    j.Failures,
		StartTime:   j.StartTime,
		EndTime:     j.EndTime,
		Error:       j.Error,
	}
}

// JobProgress is a snapshot of job progress.
type JobProgress struct {
	ID          string
	Table       string
	Status      Status
	RowsTotal   int64
	RowsIndexed int64
	Failures    int64
	StartTime   time.Time
	EndTime     time.Time
	Error       string
}

// Options select what a run reindexes.
type Options struct {
	// Tables to reindex. Empty means every indexed table.
	Tables []string
	// Truncate drops and recreates the indices first. Checkpoints are discarded.
	Truncate bool
	// Resume continues from stored checkpoints instead of starting over.
	Resume bool
}

// Deps are the collaborators of a Reindexer.
type Deps struct {
	Client   searchindex.Client
	Registry *fieldtype.Registry
	Mapping  *mapping.Manager
	Scanner  recordstore.Scanner
	// ChangeLog adds created/modified dates to documents. Optional.
	ChangeLog indexer.ChangeLog
	// Progress stores checkpoints. Optional.
	Progress *ProgressStore
	Indexing indexercfg.Config
	Logger   *slog.Logger
}

// Reindexer rebuilds indices from the record store.
type Reindexer struct {
	cfg    config.Config
	deps   Deps
	logger *slog.Logger

	mu   sync.Mutex
	jobs map[string]*Job // jobID -> Job
}

// New creates a Reindexer.
func New(cfg config.Config, deps Deps) *Reindexer {
	cfg.ApplyDefaults()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reindexer{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With("component", "reindex"),
		jobs:   make(map[string]*Job),
	}
}

// Run reindexes the selected tables one after another. It stops at the first
// table that fails and returns the progress of every job started.
func (r *Reindexer) Run(ctx context.Context, opts Options) ([]JobProgress, error) {
	tables := opts.Tables
	if len(tables) == 0 {
		tables = r.deps.Mapping.Tables()
	}

	if opts.Truncate {
		if err := r.deps.Mapping.Truncate(ctx, tables...); err != nil {
			return nil, fmt.Errorf("truncate failed: %w", err)
		}
		if r.deps.Progress != nil {
			if err := r.deps.Progress.Clear(tables...); err != nil {
				return nil, err
			}
		}
	} else if err := r.deps.Mapping.RefreshMapping(ctx, false); err != nil {
		return nil, fmt.Errorf("mapping refresh failed: %w", err)
	}

	var results []JobProgress
	for _, table := range tables {
		job := r.newJob(table)
		err := r.runJob(ctx, job, opts.Resume)
		results = append(results, job.Progress())
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// Jobs returns all jobs of this Reindexer.
func (r *Reindexer) Jobs() []JobProgress {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]JobProgress, 0, len(r.jobs))
	for _, job := range r.jobs {
		result = append(result, job.Progress())
	}
	return result
}

func (r *Reindexer) newJob(table string) *Job {
	job := &Job{ID: uuid.NewString(), Table: table, Status: StatusPending}
	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()
	return job
}

func (r *Reindexer) runJob(ctx context.Context, job *Job, resume bool) error {
	job.mu.Lock()
	job.Status = StatusRunning
	job.StartTime = time.Now()
	job.mu.Unlock()

	r.logger.Info("starting reindex job", "jobID", job.ID, "table", job.Table)

	err := r.reindexTable(ctx, job, resume)

	job.mu.Lock()
	job.EndTime = time.Now()
	if err != nil {
		if ctx.Err() != nil {
			job.Status = StatusCanceled
		} else {
			job.Status = StatusFailed
		}
		job.Error = err.Error()
		r.logger.Error("reindex job failed", "jobID", job.ID, "table", job.Table, "error", err)
	} else {
		job.Status = StatusCompleted
		r.logger.Info("reindex job completed",
			"jobID", job.ID,
			"table", job.Table,
			"duration", job.EndTime.Sub(job.StartTime),
			"rows", job.RowsIndexed,
			"failures", job.Failures)
	}
	job.mu.Unlock()
	return err
}

func (r *Reindexer) reindexTable(ctx context.Context, job *Job, resume bool) error {
	cp := Checkpoint{Table: job.Table}
	if resume && r.deps.Progress != nil {
		saved, ok, err := r.deps.Progress.Load(job.Table)
		if err != nil {
			return err
		}
		if ok && saved.Status == StatusCompleted {
			r.logger.Info("table already reindexed, skipping", "table", job.Table)
			return nil
		}
		if ok {
			cp = saved
			r.logger.Info("resuming reindex", "table", job.Table, "afterID", cp.LastID)
		}
	}

	pool := r.newPool()
	defer pool.discard()

	// Simple rate limiter: delay between batches
	var batchDelay time.Duration
	if r.cfg.QPSLimit > 0 {
		batchDelay = time.Duration(float64(r.cfg.BatchSize) / float64(r.cfg.QPSLimit) * float64(time.Second))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		recs, err := r.deps.Scanner.Scan(ctx, job.Table, cp.LastID, r.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("record scan failed: %w", err)
		}
		if len(recs) == 0 {
			break
		}

		indexed, failures, err := pool.index(ctx, recs)
		job.mu.Lock()
		job.RowsTotal += int64(len(recs))
		job.RowsIndexed += indexed
		job.Failures += failures
		job.mu.Unlock()
		metrics.RowsReindexed.WithLabelValues(job.Table).Add(float64(indexed))
		if err != nil {
			return err
		}

		cp.LastID = recs[len(recs)-1].ID
		cp.Rows += int64(len(recs))
		cp.Status = StatusRunning
		if err := r.checkpoint(cp); err != nil {
			return err
		}

		if batchDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(batchDelay):
			}
		}
	}

	if err := r.deps.Client.Refresh(ctx, r.deps.Mapping.IndexName(job.Table)); err != nil {
		r.logger.Warn("refresh after reindex failed", "table", job.Table, "error", err)
	}
	cp.Status = StatusCompleted
	return r.checkpoint(cp)
}

func (r *Reindexer) checkpoint(cp Checkpoint) error {
	if r.deps.Progress == nil {
		return nil
	}
	return r.deps.Progress.Save(cp)
}

// pool is a set of reindexing sessions. A row always goes to the same
// session, chosen by a hash of its key.
type pool struct {
	sessions []*indexer.Session
	logger   *slog.Logger
}

func (r *Reindexer) newPool() *pool {
	opts := []indexer.Option{indexer.WithReindexing(), indexer.WithLogger(r.logger)}
	if r.deps.ChangeLog != nil {
		opts = append(opts, indexer.WithChangeLog(r.deps.ChangeLog))
	}
	p := &pool{logger: r.logger}
	for i := 0; i < r.cfg.Workers; i++ {
		p.sessions = append(p.sessions, indexer.NewSession(r.deps.Client, r.deps.Registry, r.deps.Mapping.Prefix(), r.deps.Indexing, opts...))
	}
	return p
}

func (p *pool) partition(rec *recordstore.Record) int {
	return int(xxhash.Sum64String(rec.Key().String()) % uint64(len(p.sessions)))
}

// index indexes recs on the pool's sessions concurrently and flushes them.
// Rows the index rejects are counted as failures and do not stop the run;
// any other error does.
func (p *pool) index(ctx context.Context, recs []*recordstore.Record) (indexed, failures int64, err error) {
	parts := make([][]*recordstore.Record, len(p.sessions))
	for _, rec := range recs {
		i := p.partition(rec)
		parts[i] = append(parts[i], rec)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i, part := range parts {
		if len(part) == 0 {
			continue
		}
		wg.Add(1)
		go func(s *indexer.Session, part []*recordstore.Record) {
			defer wg.Done()
			n, f, err := p.indexPart(ctx, s, part)
			mu.Lock()
			defer mu.Unlock()
			indexed += n
			failures += f
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}(p.sessions[i], part)
	}
	wg.Wait()
	return indexed, failures, firstErr
}

func (p *pool) indexPart(ctx context.Context, s *indexer.Session, recs []*recordstore.Record) (indexed, failures int64, err error) {
	for _, rec := range recs {
		if err := recordstore.IndexRecord(ctx, s, rec); err != nil {
			if !errors.Is(err, indexer.ErrBulkPartialFailure) {
				return indexed, failures, err
			}
			failures += bulkFailures(err)
			p.logger.Warn("Rows rejected during reindex", "error", err)
		}
		indexed++
	}
	if err := s.Flush(ctx); err != nil {
		if !errors.Is(err, indexer.ErrBulkPartialFailure) {
			return indexed, failures, err
		}
		failures += bulkFailures(err)
		p.logger.Warn("Rows rejected during reindex", "error", err)
	}
	return indexed, failures, nil
}

func bulkFailures(err error) int64 {
	var be *indexer.BulkError
	if errors.As(err, &be) {
		return int64(len(be.Failures))
	}
	return 1
}

func (p *pool) discard() {
	for _, s := range p.sessions {
		s.Discard()
	}
}
