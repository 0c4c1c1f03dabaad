package indexer

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/syntrixbase/searchsync/internal/fieldtype"
)

// TrackedArray holds the values of one document field together with the
// content row ids that produced them. Both sequences always have the same
// length; position i of ids identifies the row that produced values[i].
// A content row may own several adjacent positions when its content was a
// list.
type TrackedArray struct {
	values []fieldtype.Values
	ids    []string
}

// NewTrackedArray creates an empty array.
func NewTrackedArray() *TrackedArray {
	return &TrackedArray{}
}

// Len returns the number of values.
func (a *TrackedArray) Len() int {
	if a == nil {
		return 0
	}
	return len(a.values)
}

// Values returns the values in order.
func (a *TrackedArray) Values() []fieldtype.Values {
	if a == nil {
		return nil
	}
	return slices.Clone(a.values)
}

// IDs returns the content row ids in order.
func (a *TrackedArray) IDs() []string {
	if a == nil {
		return nil
	}
	return slices.Clone(a.ids)
}

// Get returns the values produced by content row id.
func (a *TrackedArray) Get(id string) []fieldtype.Values {
	var out []fieldtype.Values
	for i, got := range a.ids {
		if got == id {
			out = append(out, a.values[i])
		}
	}
	return out
}

// Set makes vals the values of content row id. If the row already owns
// positions, the first of them is reused and every other position keeps its
// place; otherwise the values are appended. Set with no values removes the row.
func (a *TrackedArray) Set(id string, vals ...fieldtype.Values) {
	first := slices.Index(a.ids, id)
	if first < 0 {
		for _, v := range vals {
			a.values = append(a.values, v)
			a.ids = append(a.ids, id)
		}
		return
	}

	values := make([]fieldtype.Values, 0, len(a.values)-1+len(vals))
	ids := make([]string, 0, cap(values))
	for i := range a.ids {
		switch {
		case i == first:
			for _, v := range vals {
				values = append(values, v)
				ids = append(ids, id)
			}
		case a.ids[i] == id:
		default:
			values = append(values, a.values[i])
			ids = append(ids, a.ids[i])
		}
	}
	a.values, a.ids = values, ids
}

// Remove drops every value of content row id and reports whether any existed.
func (a *TrackedArray) Remove(id string) bool {
	if !slices.Contains(a.ids, id) {
		return false
	}
	a.Set(id)
	return true
}

// Merge applies the rows of other on top of a, row by row.
func (a *TrackedArray) Merge(other *TrackedArray) {
	seen := make(map[string]bool)
	for _, id := range other.ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		a.Set(id, other.Get(id)...)
	}
}

// Clone returns a copy that can be changed independently. Values maps are
// shared; they are never modified in place.
func (a *TrackedArray) Clone() *TrackedArray {
	if a == nil {
		return NewTrackedArray()
	}
	return &TrackedArray{values: slices.Clone(a.values), ids: slices.Clone(a.ids)}
}

func (a *TrackedArray) encode() (values []any, ids []any) {
	values = make([]any, len(a.values))
	ids = make([]any, len(a.ids))
	for i := range a.values {
		values[i] = map[string]any(a.values[i])
		ids[i] = a.ids[i]
	}
	return values, ids
}

// decodeTrackedArray rebuilds an array from a stored document. Stored values
// without a matching id are dropped.
func decodeTrackedArray(rawValues, rawIDs any) (*TrackedArray, bool) {
	ids, ok := rawIDs.([]any)
	if !ok {
		return nil, false
	}
	values, _ := rawValues.([]any)
	a := NewTrackedArray()
	for i, id := range ids {
		if i >= len(values) {
			break
		}
		v, ok := values[i].(map[string]any)
		if !ok {
			continue
		}
		a.values = append(a.values, fieldtype.Values(v))
		a.ids = append(a.ids, sourceID(id))
	}
	return a, true
}

// SourceID renders a content row id.
func SourceID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func sourceID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int64:
		return SourceID(id)
	case int:
		return strconv.Itoa(id)
	}
	return fmt.Sprint(v)
}
