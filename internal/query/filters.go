package query

import (
	"fmt"
	"strings"

	"github.com/syntrixbase/searchsync/internal/fieldtype"
	"github.com/syntrixbase/searchsync/pkg/model"
)

// Filters compiles structured filters into index clauses, one per filter.
func (c *Compiler) Filters(filters model.Filters) ([]fieldtype.Query, error) {
	out := make([]fieldtype.Query, 0, len(filters))
	for _, f := range filters {
		q, err := c.filter(f)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func (c *Compiler) filter(f model.Filter) (fieldtype.Query, error) {
	if !f.Validate() {
		return nil, fmt.Errorf("%w: filter %q %q", model.ErrInvalidQuery, f.Field, f.Op)
	}
	ft, err := c.resolve(f.Field)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidQuery, err)
	}

	if s, ok := f.Value.(string); ok && (f.Op == model.OpEq || f.Op == model.OpNe) {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case fieldtype.TextSet:
			return existence(ft.Key(), f.Op == model.OpEq), nil
		case fieldtype.TextBlank:
			return existence(ft.Key(), f.Op == model.OpNe), nil
		}
	}

	if fa, ok := ft.(fieldtype.FilterAlterer); ok {
		value := f.Value
		if f, err = fa.AlterFilter(f); err != nil {
			return nil, userError(fieldtype.WithDateContext(err, ft.Key(), fmt.Sprint(value)))
		}
	} else if path := ft.SortField(); path != "" {
		f.Field = path
	} else {
		f.Field = ft.Key()
	}

	switch f.Op {
	case model.OpEq:
		return termQuery(f.Field, f.Value), nil
	case model.OpNe:
		return not(termQuery(f.Field, f.Value)), nil
	case model.OpIn:
		vals, ok := f.Value.([]any)
		if !ok {
			vals = []any{f.Value}
		}
		return fieldtype.Query{"terms": map[string]any{f.Field: vals}}, nil
	}
	bound := map[model.FilterOp]string{
		model.OpGt:  "gt",
		model.OpGte: "gte",
		model.OpLt:  "lt",
		model.OpLte: "lte",
	}[f.Op]
	return fieldtype.Query{"range": map[string]any{f.Field: map[string]any{bound: f.Value}}}, nil
}

func termQuery(field string, value any) fieldtype.Query {
	if vals, ok := value.([]any); ok {
		return fieldtype.Query{"terms": map[string]any{field: vals}}
	}
	return fieldtype.Query{"term": map[string]any{field: value}}
}

func not(q fieldtype.Query) fieldtype.Query {
	return fieldtype.Query{"bool": map[string]any{"must_not": []any{q}}}
}

func existence(field string, present bool) fieldtype.Query {
	q := fieldtype.ExistsQuery(field)
	if present {
		return q
	}
	return not(q)
}
