// Package query builds and runs searches against the search index. Free-text
// expressions are parsed, fielded clauses are rewritten through their field
// types and structured filters are added alongside.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/syntrixbase/searchsync/internal/fieldtype"
	"github.com/syntrixbase/searchsync/internal/metrics"
	"github.com/syntrixbase/searchsync/internal/query/config"
	"github.com/syntrixbase/searchsync/internal/searchindex"
	"github.com/syntrixbase/searchsync/pkg/model"
)

// ErrSearchFailed is returned when the index rejects a search. The result
// returned alongside it is empty.
var ErrSearchFailed = errors.New("search failed")

// Request is one search against a subject table.
type Request struct {
	Table      string
	Expression string
	Filters    model.Filters
	Params     Params
}

// Result holds the hits of one page.
type Result struct {
	IDs      []int64
	Hits     []searchindex.Hit
	Total    int64
	Sort     Sort
	Page     Paginator
	Warnings []string
	Took     time.Duration
}

// Paginator describes where a page sits in the full result set.
type Paginator struct {
	Total int64
	From  int
	Size  int
}

// Pages returns the number of pages.
func (p Paginator) Pages() int {
	if p.Size <= 0 || p.Total <= 0 {
		return 0
	}
	return int((p.Total + int64(p.Size) - 1) / int64(p.Size))
}

// Page returns the 1-based number of the current page.
func (p Paginator) Page() int {
	if p.Size <= 0 {
		return 1
	}
	return p.From/p.Size + 1
}

// HasNext reports whether hits remain after the current page.
func (p Paginator) HasNext() bool {
	return int64(p.From+p.Size) < p.Total
}

// Searcher runs searches for the tables of one index prefix.
type Searcher struct {
	client   searchindex.Client
	registry *fieldtype.Registry
	prefix   string
	cfg      config.Config
	logger   *slog.Logger
}

// NewSearcher creates a Searcher.
func NewSearcher(client searchindex.Client, registry *fieldtype.Registry, prefix string, cfg config.Config, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.ApplyDefaults()
	return &Searcher{
		client:   client,
		registry: registry,
		prefix:   prefix,
		cfg:      cfg,
		logger:   logger.With("component", "query"),
	}
}

// Body builds the search request body for req.
func (s *Searcher) Body(req Request) (map[string]any, Sort, []string, error) {
	c := NewCompiler(s.registry, req.Table)
	q, err := c.Compile(req.Expression)
	if err != nil {
		return nil, Sort{}, nil, err
	}
	filters, err := c.Filters(req.Filters)
	if err != nil {
		return nil, Sort{}, nil, err
	}

	var warnings []string
	sort, ok := c.ResolveSort(req.Params.Sort, req.Params.Direction)
	if !ok {
		warnings = append(warnings, fmt.Sprintf("Cannot sort results by [%s]. Sorting by relevance.", req.Params.Sort))
	}

	must := []any{q}
	for _, f := range filters {
		must = append(must, f)
	}
	from, size := req.Params.Window(s.cfg)
	body := map[string]any{
		"query":            map[string]any{"bool": map[string]any{"must": must}},
		"from":             from,
		"size":             size,
		"track_total_hits": true,
		"_source":          false,
	}
	if clause := sort.Clause(); clause != nil {
		body["sort"] = clause
	}
	return body, sort, warnings, nil
}

// Search runs req. A sort on a field the index has no mapping for is dropped
// and the search reissued once; the result then carries a warning. Any other
// failure yields an empty result and an error.
func (s *Searcher) Search(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res := &Result{}

	body, sort, warnings, err := s.Body(req)
	if err != nil {
		metrics.Searches.WithLabelValues("invalid").Inc()
		return res, err
	}
	res.Sort = sort
	res.Warnings = warnings
	index := searchindex.IndexName(s.prefix, req.Table)

	resp, err := s.client.Search(ctx, index, body)
	if field, unmapped := searchindex.UnmappedSortField(err); unmapped && !sort.Relevance() {
		msg := fmt.Sprintf("Cannot sort results by [%s]. Reverting to sorting by relevance.", field)
		s.logger.Warn(msg, "table", req.Table)
		res.Warnings = append(res.Warnings, msg)
		metrics.SortRetries.Inc()

		res.Sort = Sort{}
		delete(body, "sort")
		resp, err = s.client.Search(ctx, index, body)
	}
	if err != nil {
		s.logger.Error("Search failed", "table", req.Table, "expression", req.Expression, "error", err)
		metrics.Searches.WithLabelValues("error").Inc()
		return res, fmt.Errorf("%w: %w", ErrSearchFailed, model.WrapError(err))
	}

	res.Total = resp.Total
	res.Hits = resp.Hits
	res.IDs = hitIDs(resp.Hits)
	from, size := req.Params.Window(s.cfg)
	res.Page = Paginator{Total: resp.Total, From: from, Size: size}
	res.Took = time.Since(start)
	if len(res.Warnings) > 0 {
		metrics.Searches.WithLabelValues("degraded").Inc()
	} else {
		metrics.Searches.WithLabelValues("ok").Inc()
	}
	return res, nil
}

// QuickSearch returns the ids of records of table matching text, by relevance.
// A limit of zero or less returns every match.
func (s *Searcher) QuickSearch(ctx context.Context, table, text string, limit int) ([]int64, error) {
	params := Params{Limit: limit}
	if limit <= 0 {
		params.Mode = ModeFromResults
	}
	cfg := s.cfg
	if limit > cfg.MaxPageSize {
		cfg.MaxPageSize = limit
	}
	searcher := *s
	searcher.cfg = cfg

	res, err := searcher.Search(ctx, Request{Table: table, Expression: text, Params: params})
	if err != nil {
		return nil, err
	}
	ids := res.IDs
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func hitIDs(hits []searchindex.Hit) []int64 {
	ids := make([]int64, 0, len(hits))
	for _, h := range hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
