package indexer

import (
	"sort"

	"github.com/syntrixbase/searchsync/internal/fieldtype"
	"github.com/syntrixbase/searchsync/internal/mapping"
)

// Document holds tracked fields of one index document by field key.
type Document map[string]*TrackedArray

// Field returns the tracked array of key, creating it if needed.
func (d Document) Field(key string) *TrackedArray {
	a, ok := d[key]
	if !ok {
		a = NewTrackedArray()
		d[key] = a
	}
	return a
}

// Merge applies other on top of d row by row.
func (d Document) Merge(other Document) {
	for key, a := range other {
		d.Field(key).Merge(a)
	}
}

// Keys returns the field keys in sorted order.
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Source renders the document as stored in the index. Each field becomes an
// array of value objects, and the producing row ids are kept under
// mapping.SourceIDsField.
func (d Document) Source() map[string]any {
	src := make(map[string]any, len(d)+1)
	ids := make(map[string]any, len(d))
	for key, a := range d {
		src[key], ids[key] = a.encode()
	}
	src[mapping.SourceIDsField] = ids
	return src
}

// DocumentFromSource rebuilds the tracked fields of a stored document. Fields
// stored without row ids are not tracked and are left out.
func DocumentFromSource(src map[string]any) Document {
	doc := make(Document)
	ids, _ := src[mapping.SourceIDsField].(map[string]any)
	for key, rawIDs := range ids {
		if a, ok := decodeTrackedArray(src[key], rawIDs); ok {
			doc[key] = a
		}
	}
	return doc
}

// addFragment merges fragment values into src. Used for untracked fields
// such as change log metadata.
func addFragment(src map[string]any, frag fieldtype.Fragment) {
	for key, vals := range frag {
		src[key] = map[string]any(vals)
	}
}
