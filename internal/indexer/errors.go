package indexer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syntrixbase/searchsync/internal/searchindex"
)

var (
	// ErrIndexing wraps failures of a whole bulk request.
	ErrIndexing = errors.New("indexing error")

	// ErrBulkPartialFailure is matched by a *BulkError.
	ErrBulkPartialFailure = errors.New("bulk operations failed")

	// ErrNoRowInProgress is returned by IndexField outside of a
	// StartRowIndexing / CommitRowIndexing cycle.
	ErrNoRowInProgress = errors.New("no row indexing in progress")
)

// BulkError reports the items of a bulk request that the search index
// rejected. Every other item of the request was applied.
type BulkError struct {
	Total    int
	Failures []searchindex.BulkItemResult
}

func (e *BulkError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		kind := "Indexing error"
		switch f.Type {
		case searchindex.OpUpdate:
			kind = "Update error"
		case searchindex.OpDelete:
			kind = "Delete error"
		}
		cause := ""
		if f.Error != nil {
			cause = f.Error.String()
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s/%s: %s", kind, f.Index, f.ID, cause))
	}
	return fmt.Sprintf("%d out of %d bulk operation(s) failed. Errors: %s.",
		len(e.Failures), e.Total, strings.Join(msgs, "; "))
}

func (e *BulkError) Is(target error) bool {
	return target == ErrBulkPartialFailure
}
