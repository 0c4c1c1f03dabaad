// Package searchindex defines the document search index surface used for syncing
// and searching, and the errors it reports.
package searchindex

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/syntrixbase/searchsync/pkg/model"
)

// ErrNotFound is returned by Get for missing documents.
var ErrNotFound = model.ErrNotFound

// Client is a document search index.
type Client interface {
	// Get returns the stored source of a document.
	Get(ctx context.Context, index, id string) (map[string]any, error)
	// Bulk applies operations in one request. A nil error means the request
	// was accepted; individual items may still have failed.
	Bulk(ctx context.Context, ops []BulkOp) (*BulkResponse, error)
	// Search runs a search request body against index.
	Search(ctx context.Context, index string, body map[string]any) (*SearchResponse, error)
	// Refresh makes recent writes visible to search.
	Refresh(ctx context.Context, indices ...string) error

	CreateIndex(ctx context.Context, index string, body map[string]any) error
	IndexExists(ctx context.Context, index string) (bool, error)
	DeleteIndices(ctx context.Context, indices ...string) error
	PutSettings(ctx context.Context, index string, settings map[string]any) error
	PutMapping(ctx context.Context, index string, mapping map[string]any) error
	PutTemplate(ctx context.Context, name string, body map[string]any) error
	ForceMerge(ctx context.Context, indices ...string) error
	Ping(ctx context.Context) error
}

// OpType is a bulk operation type.
type OpType string

const (
	OpIndex  OpType = "index"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// BulkOp is one operation of a bulk request. Updates are partial documents
// applied with upsert semantics.
type BulkOp struct {
	Type  OpType
	Index string
	ID    string
	Doc   map[string]any
}

// ErrorCause is an error reported by the search index.
type ErrorCause struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func (c ErrorCause) String() string {
	if c.Type == "" {
		return c.Reason
	}
	return c.Type + ": " + c.Reason
}

// BulkItemResult is the outcome of one bulk operation.
type BulkItemResult struct {
	Type   OpType
	Index  string
	ID     string
	Status int
	Error  *ErrorCause
}

// Failed reports whether the item was rejected. Deleting a missing document
// is not a failure.
func (r BulkItemResult) Failed() bool {
	return r.Error != nil
}

// BulkResponse is the result of a bulk request.
type BulkResponse struct {
	Items []BulkItemResult
}

// Failures returns the rejected items.
func (r *BulkResponse) Failures() []BulkItemResult {
	if r == nil {
		return nil
	}
	var failed []BulkItemResult
	for _, it := range r.Items {
		if it.Failed() {
			failed = append(failed, it)
		}
	}
	return failed
}

// Hit is one search result.
type Hit struct {
	Index  string
	ID     string
	Score  float64
	Source map[string]any
}

// SearchResponse is the result of a search.
type SearchResponse struct {
	Total int64
	Hits  []Hit
}

// ResponseError is an error response from the search index.
type ResponseError struct {
	Status     int
	Type       string
	Reason     string
	RootCauses []ErrorCause
}

func (e *ResponseError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "search index error [%d]", e.Status)
	if e.Type != "" {
		sb.WriteString(" " + e.Type)
	}
	if e.Reason != "" {
		sb.WriteString(": " + e.Reason)
	}
	for _, c := range e.RootCauses {
		sb.WriteString("; " + c.String())
	}
	return sb.String()
}

var reUnmappedSort = regexp.MustCompile(`No mapping found for \[(.+?)\] in order to sort on`)

const queryShardException = "query_shard_exception"

// UnmappedSortField reports whether err says a sort field has no mapping in the
// index, and returns that field. Structured root causes are checked before the
// error message.
func UnmappedSortField(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var re *ResponseError
	if errors.As(err, &re) {
		for _, c := range re.RootCauses {
			if c.Type != "" && c.Type != queryShardException {
				continue
			}
			if m := reUnmappedSort.FindStringSubmatch(c.Reason); m != nil {
				return m[1], true
			}
		}
	}
	if m := reUnmappedSort.FindStringSubmatch(err.Error()); m != nil {
		return m[1], true
	}
	return "", false
}

// IndexName returns the index holding documents of table.
func IndexName(prefix, table string) string {
	if prefix == "" {
		return table
	}
	return prefix + "_" + table
}
