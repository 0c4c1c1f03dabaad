// Package mem_store provides an in-memory searchindex.Client for development
// and tests. It evaluates the structured part of the query DSL (bool, ids,
// term, terms, exists, range, match); query_string clauses match everything.
package mem_store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/btree"

	"github.com/syntrixbase/searchsync/internal/searchindex"
)

// BulkHook can reject individual bulk operations.
type BulkHook func(op searchindex.BulkOp) *searchindex.ErrorCause

// Store holds indices in memory.
type Store struct {
	mu        sync.RWMutex
	indices   map[string]*Index
	templates map[string]map[string]any
	hook      BulkHook
	bulkCalls int
}

var _ searchindex.Client = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		indices:   make(map[string]*Index),
		templates: make(map[string]map[string]any),
	}
}

// SetBulkHook installs a hook consulted for every bulk operation.
func (s *Store) SetBulkHook(h BulkHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = h
}

// BulkCalls returns the number of bulk requests served.
func (s *Store) BulkCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bulkCalls
}

// Index returns an index by name, or nil.
func (s *Store) Index(name string) *Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indices[name]
}

// Template returns a stored index template, or nil.
func (s *Store) Template(name string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.templates[name]
}

func (s *Store) getOrCreate(name string) *Index {
	// Fast path: check with read lock
	s.mu.RLock()
	if idx, ok := s.indices[name]; ok {
		s.mu.RUnlock()
		return idx
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indices[name]; ok {
		return idx
	}
	idx := NewIndex(name)
	s.indices[name] = idx
	return idx
}

func (s *Store) Get(ctx context.Context, index, id string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx := s.Index(index)
	if idx == nil {
		return nil, searchindex.ErrNotFound
	}
	doc, ok := idx.Get(id)
	if !ok {
		return nil, searchindex.ErrNotFound
	}
	return doc, nil
}

func (s *Store) Bulk(ctx context.Context, ops []searchindex.BulkOp) (*searchindex.BulkResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.bulkCalls++
	hook := s.hook
	s.mu.Unlock()

	resp := &searchindex.BulkResponse{Items: make([]searchindex.BulkItemResult, 0, len(ops))}
	for _, op := range ops {
		item := searchindex.BulkItemResult{Type: op.Type, Index: op.Index, ID: op.ID, Status: 200}
		if hook != nil {
			if cause := hook(op); cause != nil {
				item.Status = 400
				item.Error = cause
				resp.Items = append(resp.Items, item)
				continue
			}
		}

		switch op.Type {
		case searchindex.OpIndex, searchindex.OpUpdate:
			doc, err := normalize(op.Doc)
			if err != nil {
				item.Status = 400
				item.Error = &searchindex.ErrorCause{Type: "mapper_parsing_exception", Reason: err.Error()}
				break
			}
			idx := s.getOrCreate(op.Index)
			if op.Type == searchindex.OpIndex {
				item.Status = idx.Put(op.ID, doc)
			} else {
				item.Status = idx.Merge(op.ID, doc)
			}
		case searchindex.OpDelete:
			item.Status = 404
			if idx := s.Index(op.Index); idx != nil && idx.Delete(op.ID) {
				item.Status = 200
			}
		default:
			item.Status = 400
			item.Error = &searchindex.ErrorCause{Type: "illegal_argument_exception", Reason: fmt.Sprintf("unknown operation %q", op.Type)}
		}
		resp.Items = append(resp.Items, item)
	}
	return resp, nil
}

// normalize round-trips a document through JSON so stored sources look the
// same as they would coming back from a real index.
func normalize(doc map[string]any) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func (s *Store) Search(ctx context.Context, index string, body map[string]any) (*searchindex.SearchResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx := s.Index(index)
	if idx == nil {
		return nil, &searchindex.ResponseError{
			Status: 404,
			Type:   "index_not_found_exception",
			Reason: "no such index [" + index + "]",
		}
	}
	return idx.Search(body)
}

func (s *Store) Refresh(ctx context.Context, indices ...string) error {
	for _, name := range indices {
		if idx := s.Index(name); idx != nil {
			idx.markRefreshed()
		}
	}
	return nil
}

func (s *Store) CreateIndex(ctx context.Context, index string, body map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indices[index]; ok {
		return &searchindex.ResponseError{Status: 400, Type: "resource_already_exists_exception", Reason: "index [" + index + "] already exists"}
	}
	idx := NewIndex(index)
	if settings, ok := body["settings"].(map[string]any); ok {
		idx.settings = settings
	}
	if mappings, ok := body["mappings"].(map[string]any); ok {
		idx.mappings = mappings
	}
	s.indices[index] = idx
	return nil
}

func (s *Store) IndexExists(ctx context.Context, index string) (bool, error) {
	return s.Index(index) != nil, nil
}

func (s *Store) DeleteIndices(ctx context.Context, indices ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range indices {
		delete(s.indices, name)
	}
	return nil
}

func (s *Store) PutSettings(ctx context.Context, index string, settings map[string]any) error {
	idx := s.Index(index)
	if idx == nil {
		return &searchindex.ResponseError{Status: 404, Type: "index_not_found_exception", Reason: "no such index [" + index + "]"}
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.settings = mergeMaps(idx.settings, settings)
	return nil
}

func (s *Store) PutMapping(ctx context.Context, index string, mapping map[string]any) error {
	idx := s.Index(index)
	if idx == nil {
		return &searchindex.ResponseError{Status: 404, Type: "index_not_found_exception", Reason: "no such index [" + index + "]"}
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.mappings = mergeMaps(idx.mappings, mapping)
	return nil
}

func (s *Store) PutTemplate(ctx context.Context, name string, body map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[name] = body
	return nil
}

func (s *Store) ForceMerge(ctx context.Context, indices ...string) error {
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Index is one in-memory index. Document ids are kept in a btree so that
// unsorted searches return them in a stable order.
type Index struct {
	Name string

	mu        sync.RWMutex
	tree      *btree.BTreeG[string]
	docs      map[string]map[string]any
	paths     map[string]bool // field paths seen in any document
	settings  map[string]any
	mappings  map[string]any
	refreshes int
}

// lessID orders numeric ids numerically and everything else lexically.
func lessID(a, b string) bool {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	if (aerr == nil) != (berr == nil) {
		return aerr == nil
	}
	return a < b
}

// NewIndex creates an empty index.
func NewIndex(name string) *Index {
	return &Index{
		Name:  name,
		tree:  btree.NewG[string](32, lessID),
		docs:  make(map[string]map[string]any),
		paths: make(map[string]bool),
	}
}

// Len returns the number of documents.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Refreshes returns how often the index was refreshed.
func (idx *Index) Refreshes() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.refreshes
}

// Settings returns the index settings.
func (idx *Index) Settings() map[string]any {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.settings
}

// Mappings returns the index mappings.
func (idx *Index) Mappings() map[string]any {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.mappings
}

func (idx *Index) markRefreshed() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.refreshes++
}

// Get returns a copy-free view of a stored document.
func (idx *Index) Get(id string) (map[string]any, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	doc, ok := idx.docs[id]
	return doc, ok
}

// Put replaces a document and returns the HTTP-style status.
func (idx *Index) Put(id string, doc map[string]any) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	status := 200
	if _, ok := idx.docs[id]; !ok {
		status = 201
		idx.tree.ReplaceOrInsert(id)
	}
	idx.docs[id] = doc
	idx.recordPaths(doc)
	return status
}

// Merge applies a partial document, creating the document if missing.
func (idx *Index) Merge(id string, partial map[string]any) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	existing, ok := idx.docs[id]
	if !ok {
		idx.tree.ReplaceOrInsert(id)
		idx.docs[id] = partial
		idx.recordPaths(partial)
		return 201
	}
	idx.docs[id] = mergeMaps(existing, partial)
	idx.recordPaths(partial)
	return 200
}

// Delete removes a document and reports whether it existed.
func (idx *Index) Delete(id string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.docs[id]; !ok {
		return false
	}
	delete(idx.docs, id)
	idx.tree.Delete(id)
	return true
}

// recordPaths remembers the dotted paths present in doc; text sub-fields also
// get the keyword view the mapping adds beneath them.
func (idx *Index) recordPaths(doc map[string]any) {
	var walk func(prefix string, v any)
	walk = func(prefix string, v any) {
		switch t := v.(type) {
		case map[string]any:
			for k, child := range t {
				p := k
				if prefix != "" {
					p = prefix + "." + k
				}
				idx.paths[p] = true
				if k == "-s" {
					idx.paths[p+".sort"] = true
				}
				walk(p, child)
			}
		case []any:
			for _, child := range t {
				walk(prefix, child)
			}
		}
	}
	walk("", doc)
}

// mergeMaps merges src into dst recursively; non-object values are replaced.
func mergeMaps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		sm, sok := v.(map[string]any)
		dm, dok := dst[k].(map[string]any)
		if sok && dok {
			dst[k] = mergeMaps(dm, sm)
			continue
		}
		dst[k] = v
	}
	return dst
}
