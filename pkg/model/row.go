package model

import (
	"fmt"
	"strconv"
	"strings"
)

// RowKey addresses one record in the record store and its document in the search index.
type RowKey struct {
	Table string
	ID    int64
}

// String renders the key as "table/id".
func (k RowKey) String() string {
	return k.Table + "/" + strconv.FormatInt(k.ID, 10)
}

// DocID is the search index document id for the row.
func (k RowKey) DocID() string {
	return strconv.FormatInt(k.ID, 10)
}

// ParseRowKey parses a "table/id" string.
func ParseRowKey(s string) (RowKey, error) {
	idx := strings.LastIndex(s, "/")
	if idx <= 0 || idx == len(s)-1 {
		return RowKey{}, fmt.Errorf("%w: %q", ErrInvalidRow, s)
	}
	id, err := strconv.ParseInt(s[idx+1:], 10, 64)
	if err != nil {
		return RowKey{}, fmt.Errorf("%w: %q", ErrInvalidRow, s)
	}
	return RowKey{Table: s[:idx], ID: id}, nil
}
