package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/syntrixbase/searchsync/internal/fieldtype"
	"github.com/syntrixbase/searchsync/internal/metrics"
	"github.com/syntrixbase/searchsync/internal/searchindex"
	"github.com/syntrixbase/searchsync/pkg/model"
)

// ChangeLog provides the change history fragment merged into every written
// document.
type ChangeLog interface {
	Fragment(ctx context.Context, row model.RowKey) (fieldtype.Fragment, error)
}

// CommitEngine turns a WriteBuffer into one bulk request.
type CommitEngine struct {
	client  searchindex.Client
	prefix  string
	changes ChangeLog
	logger  *slog.Logger
}

// NewCommitEngine creates an engine writing to the indices of prefix. changes
// may be nil.
func NewCommitEngine(client searchindex.Client, prefix string, changes ChangeLog, logger *slog.Logger) *CommitEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommitEngine{
		client:  client,
		prefix:  prefix,
		changes: changes,
		logger:  logger.With("component", "commit"),
	}
}

// Flush writes everything pending in buf in one bulk request: deletes first,
// then inserts, then updates. buf is reset when Flush returns, whether or not
// the request succeeded; failed operations are reported, not retried.
//
// A rejected item yields a *BulkError after the rest of the request was
// applied. A failed request yields an error wrapping ErrIndexing. With refresh
// the touched indices are refreshed after a successful request.
func (e *CommitEngine) Flush(ctx context.Context, buf *WriteBuffer, refresh bool) error {
	defer buf.Reset()

	ops := e.operations(ctx, buf)
	if len(ops) == 0 {
		return nil
	}

	start := time.Now()
	resp, err := e.client.Bulk(ctx, ops)
	metrics.FlushLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Flushes.WithLabelValues("error").Inc()
		e.logger.Error("bulk request failed", "operations", len(ops), "error", err)
		return fmt.Errorf("%w: %w", ErrIndexing, err)
	}

	for _, op := range ops {
		metrics.BulkOperations.WithLabelValues(string(op.Type)).Inc()
	}

	if failures := resp.Failures(); len(failures) > 0 {
		metrics.Flushes.WithLabelValues("partial").Inc()
		metrics.BulkItemFailures.Add(float64(len(failures)))
		bulkErr := &BulkError{Total: len(resp.Items), Failures: failures}
		e.logger.Error("bulk operations failed", "failed", len(failures), "total", len(resp.Items), "error", bulkErr)
		return bulkErr
	}
	metrics.Flushes.WithLabelValues("ok").Inc()
	e.logger.Debug("flushed", "operations", len(ops), "duration", time.Since(start))

	if refresh {
		e.refresh(ctx, ops)
	}
	return nil
}

func (e *CommitEngine) operations(ctx context.Context, buf *WriteBuffer) []searchindex.BulkOp {
	var ops []searchindex.BulkOp

	for _, row := range buf.Deletes() {
		ops = append(ops, searchindex.BulkOp{
			Type:  searchindex.OpDelete,
			Index: searchindex.IndexName(e.prefix, row.Table),
			ID:    row.DocID(),
		})
	}

	upsert := func(row model.RowKey, doc Document) {
		src := doc.Source()
		e.addChangeLog(ctx, row, src)
		ops = append(ops, searchindex.BulkOp{
			Type:  searchindex.OpUpdate,
			Index: searchindex.IndexName(e.prefix, row.Table),
			ID:    row.DocID(),
			Doc:   src,
		})
	}
	buf.Inserts(upsert)
	buf.Updates(upsert)
	return ops
}

func (e *CommitEngine) addChangeLog(ctx context.Context, row model.RowKey, src map[string]any) {
	if e.changes == nil {
		return
	}
	frag, err := e.changes.Fragment(ctx, row)
	if err != nil {
		e.logger.Warn("failed to load change log", "row", row.String(), "error", err)
		return
	}
	addFragment(src, frag)
}

func (e *CommitEngine) refresh(ctx context.Context, ops []searchindex.BulkOp) {
	seen := make(map[string]bool)
	var indices []string
	for _, op := range ops {
		if !seen[op.Index] {
			seen[op.Index] = true
			indices = append(indices, op.Index)
		}
	}
	if err := e.client.Refresh(ctx, indices...); err != nil {
		e.logger.Warn("failed to refresh indices", "indices", indices, "error", err)
	}
}
