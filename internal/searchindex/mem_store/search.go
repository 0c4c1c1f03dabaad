package mem_store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/syntrixbase/searchsync/internal/searchindex"
)

const defaultSize = 10

type sortSpec struct {
	field string
	desc  bool
}

// Search evaluates a search body against the index.
func (idx *Index) Search(body map[string]any) (*searchindex.SearchResponse, error) {
	body, err := normalize(body)
	if err != nil {
		return nil, &searchindex.ResponseError{Status: 400, Type: "parsing_exception", Reason: err.Error()}
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	specs, err := idx.parseSort(body["sort"])
	if err != nil {
		return nil, err
	}

	query, _ := body["query"].(map[string]any)
	var ids []string
	idx.tree.Ascend(func(id string) bool {
		if query == nil || matches(id, idx.docs[id], query) {
			ids = append(ids, id)
		}
		return true
	})

	if len(specs) > 0 {
		sort.SliceStable(ids, func(i, j int) bool {
			return lessDocs(idx.docs[ids[i]], idx.docs[ids[j]], specs)
		})
	}

	resp := &searchindex.SearchResponse{Total: int64(len(ids))}
	from := intValue(body["from"], 0)
	size := intValue(body["size"], defaultSize)
	if from > len(ids) {
		from = len(ids)
	}
	end := len(ids)
	if size >= 0 && from+size < end {
		end = from + size
	}
	for _, id := range ids[from:end] {
		resp.Hits = append(resp.Hits, searchindex.Hit{Index: idx.Name, ID: id, Score: 1, Source: idx.docs[id]})
	}
	return resp, nil
}

func intValue(v any, def int) int {
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return def
}

// parseSort reads sort clauses and rejects fields the index has never seen,
// unless an unmapped_type is given, the way a real index does.
func (idx *Index) parseSort(raw any) ([]sortSpec, error) {
	var clauses []any
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		clauses = t
	default:
		clauses = []any{t}
	}

	var specs []sortSpec
	for _, c := range clauses {
		var spec sortSpec
		unmappedType := ""
		switch t := c.(type) {
		case string:
			spec.field = t
		case map[string]any:
			for field, opts := range t {
				spec.field = field
				switch o := opts.(type) {
				case string:
					spec.desc = o == "desc"
				case map[string]any:
					spec.desc = o["order"] == "desc"
					unmappedType, _ = o["unmapped_type"].(string)
				}
			}
		default:
			return nil, &searchindex.ResponseError{Status: 400, Type: "parsing_exception", Reason: fmt.Sprintf("malformed sort %v", c)}
		}
		if spec.field == "_score" || spec.field == "_doc" {
			continue
		}
		if !idx.paths[spec.field] && unmappedType == "" {
			return nil, &searchindex.ResponseError{
				Status: 400,
				Type:   "search_phase_execution_exception",
				Reason: "all shards failed",
				RootCauses: []searchindex.ErrorCause{{
					Type:   "query_shard_exception",
					Reason: "No mapping found for [" + spec.field + "] in order to sort on",
				}},
			}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func lessDocs(a, b map[string]any, specs []sortSpec) bool {
	for _, s := range specs {
		av, bv := values(a, s.field), values(b, s.field)
		switch {
		case len(av) == 0 && len(bv) == 0:
			continue
		case len(av) == 0:
			return false // missing values sort last
		case len(bv) == 0:
			return true
		}
		c := compare(av[0], bv[0])
		if c == 0 {
			continue
		}
		if s.desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

// values collects the values at a dotted path, flattening arrays of objects.
func values(doc map[string]any, path string) []any {
	segs := strings.Split(path, ".")
	cur := []any{doc}
	for i, seg := range segs {
		if seg == "sort" && i > 0 && segs[i-1] == "-s" {
			continue
		}
		var next []any
		for _, c := range cur {
			m, ok := c.(map[string]any)
			if !ok {
				continue
			}
			switch v := m[seg].(type) {
			case nil:
			case []any:
				next = append(next, v...)
			default:
				next = append(next, v)
			}
		}
		cur = next
	}
	return cur
}

func compare(a, b any) int {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(strings.ToLower(fmt.Sprint(a)), strings.ToLower(fmt.Sprint(b)))
}

func equal(a, b any) bool {
	return compare(a, b) == 0
}

func matches(id string, doc map[string]any, q map[string]any) bool {
	for typ, raw := range q {
		body, _ := raw.(map[string]any)
		if !matchClause(id, doc, typ, body) {
			return false
		}
	}
	return true
}

func matchClause(id string, doc map[string]any, typ string, body map[string]any) bool {
	switch typ {
	case "match_none":
		return false
	case "bool":
		return matchBool(id, doc, body)
	case "ids":
		vals, _ := body["values"].([]any)
		for _, v := range vals {
			if fmt.Sprint(v) == id {
				return true
			}
		}
		return false
	case "term":
		for field, want := range body {
			if m, ok := want.(map[string]any); ok {
				want = m["value"]
			}
			if !anyEqual(values(doc, field), want) {
				return false
			}
		}
		return true
	case "terms":
		for field, want := range body {
			list, _ := want.([]any)
			found := false
			for _, w := range list {
				if anyEqual(values(doc, field), w) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	case "exists":
		field, _ := body["field"].(string)
		return len(values(doc, field)) > 0
	case "range":
		for field, raw := range body {
			bounds, _ := raw.(map[string]any)
			if !anyInRange(values(doc, field), bounds) {
				return false
			}
		}
		return true
	case "match", "match_phrase":
		for field, want := range body {
			if m, ok := want.(map[string]any); ok {
				want = m["query"]
			}
			needle := strings.ToLower(fmt.Sprint(want))
			found := false
			for _, v := range values(doc, field) {
				if strings.Contains(strings.ToLower(fmt.Sprint(v)), needle) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}
	// match_all, query_string and anything not evaluated here
	return true
}

func matchBool(id string, doc map[string]any, body map[string]any) bool {
	clauses := func(key string) []map[string]any {
		var out []map[string]any
		switch t := body[key].(type) {
		case map[string]any:
			out = append(out, t)
		case []any:
			for _, c := range t {
				if m, ok := c.(map[string]any); ok {
					out = append(out, m)
				}
			}
		}
		return out
	}

	for _, key := range []string{"must", "filter"} {
		for _, c := range clauses(key) {
			if !matches(id, doc, c) {
				return false
			}
		}
	}
	for _, c := range clauses("must_not") {
		if matches(id, doc, c) {
			return false
		}
	}

	should := clauses("should")
	if len(should) == 0 {
		return true
	}
	need := 0
	if len(clauses("must")) == 0 && len(clauses("filter")) == 0 {
		need = 1
	}
	if v, ok := body["minimum_should_match"].(float64); ok {
		need = int(v)
	}
	n := 0
	for _, c := range should {
		if matches(id, doc, c) {
			n++
		}
	}
	return n >= need
}

func anyEqual(vals []any, want any) bool {
	for _, v := range vals {
		if equal(v, want) {
			return true
		}
	}
	return false
}

// anyInRange checks scalar values against the bounds; range objects (as
// stored for date ranges) match when they intersect the bounds.
func anyInRange(vals []any, bounds map[string]any) bool {
	for _, v := range vals {
		lo, hi := v, v
		if m, ok := v.(map[string]any); ok {
			lo, hi = m["gte"], m["lte"]
		}
		if inRange(lo, hi, bounds) {
			return true
		}
	}
	return false
}

func inRange(lo, hi any, bounds map[string]any) bool {
	for op, b := range bounds {
		switch op {
		case "gte":
			if hi != nil && compare(hi, b) < 0 {
				return false
			}
		case "gt":
			if hi != nil && compare(hi, b) <= 0 {
				return false
			}
		case "lte":
			if lo != nil && compare(lo, b) > 0 {
				return false
			}
		case "lt":
			if lo != nil && compare(lo, b) >= 0 {
				return false
			}
		}
	}
	return true
}
