package query

import (
	"strings"

	"github.com/syntrixbase/searchsync/internal/schema"
)

// Symbolic sort names.
const (
	SortRelevance = "relevance"
	SortNatural   = "_natural"
	SortIdno      = "idno"
	SortName      = "name"
)

// Sort is a resolved sort clause. An empty Field sorts by relevance.
type Sort struct {
	Field string
	Desc  bool
}

// Relevance reports whether the sort is by score.
func (s Sort) Relevance() bool {
	return s.Field == ""
}

// Clause returns the sort clause of a search body, or nil for relevance
// ordering, which the search service applies when a body has no sort.
func (s Sort) Clause() []any {
	if s.Relevance() {
		return nil
	}
	order := "asc"
	if s.Desc {
		order = "desc"
	}
	return []any{map[string]any{s.Field: map[string]any{"order": order}}}
}

// ResolveSort maps a sort name to the sub-field holding sortable values.
// Symbolic names go through the table's idno and label definitions; other
// names are "table.field" references. Names that cannot be resolved sort by
// relevance, and ok is false.
func (c *Compiler) ResolveSort(name, direction string) (s Sort, ok bool) {
	s.Desc = strings.EqualFold(strings.TrimSpace(direction), "desc")
	name = strings.TrimSpace(name)

	switch name {
	case "", SortRelevance, SortNatural, "_score":
		return s, true
	case SortIdno:
		tbl, found := c.schemaTable(c.table)
		if !found || tbl.IdnoField == "" {
			return s, false
		}
		name = tbl.IdnoField
	case SortName, c.table + ".preferred_labels", "preferred_labels":
		tbl, found := c.schemaTable(c.table)
		if !found || tbl.LabelTable == "" {
			return s, false
		}
		sortField := tbl.LabelSortField
		if labels, ok := c.schemaTable(tbl.LabelTable); ok && labels.LabelSortField != "" {
			sortField = labels.LabelSortField
		}
		if sortField == "" {
			return s, false
		}
		name = tbl.LabelTable + "." + sortField
	}

	ft, err := c.resolve(name)
	if err != nil {
		return s, false
	}
	field := ft.SortField()
	if field == "" {
		return s, false
	}
	s.Field = field
	return s, true
}

func (c *Compiler) schemaTable(name string) (*schema.Table, bool) {
	env := c.registry.Env()
	if env == nil || env.Schema == nil {
		return nil, false
	}
	return env.Schema.Table(name)
}
