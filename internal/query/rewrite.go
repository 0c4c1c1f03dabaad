package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syntrixbase/searchsync/internal/fieldtype"
	"github.com/syntrixbase/searchsync/pkg/model"
)

// Compiler turns parsed expressions into index queries for one subject table.
type Compiler struct {
	registry *fieldtype.Registry
	table    string
}

// NewCompiler returns a compiler that resolves unqualified fields against table.
func NewCompiler(registry *fieldtype.Registry, table string) *Compiler {
	return &Compiler{registry: registry, table: table}
}

// clause is a compiled node: query-string text, a structured query, or
// nothing when the node was dropped.
type clause struct {
	text  string
	query fieldtype.Query
}

func (c clause) empty() bool {
	return c.text == "" && c.query == nil
}

// asQuery returns the clause as a structured query.
func (c clause) asQuery() fieldtype.Query {
	if c.query != nil {
		return c.query
	}
	return queryString(c.text)
}

func queryString(text string) fieldtype.Query {
	return fieldtype.Query{"query_string": map[string]any{
		"query":            text,
		"analyze_wildcard": true,
		"default_operator": "AND",
	}}
}

// Compile parses expr and compiles it. An empty expression matches everything.
func (c *Compiler) Compile(expr string) (fieldtype.Query, error) {
	n, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	return c.CompileNode(n)
}

// CompileNode compiles a parsed expression. Clauses the field types turn into
// structured filters are pulled out of the query string and ANDed with it.
func (c *Compiler) CompileNode(n Node) (fieldtype.Query, error) {
	if n == nil {
		return matchAll(), nil
	}
	cl, err := c.compile(n)
	if err != nil {
		return nil, err
	}
	if cl.empty() {
		return matchAll(), nil
	}
	return cl.asQuery(), nil
}

func matchAll() fieldtype.Query {
	return fieldtype.Query{"match_all": map[string]any{}}
}

func (c *Compiler) compile(n Node) (clause, error) {
	switch n := n.(type) {
	case *TermNode:
		return c.compileTerm(n)
	case *RangeNode:
		return c.compileRange(n)
	case *NotNode:
		child, err := c.compile(n.Child)
		if err != nil || child.empty() {
			return child, err
		}
		if child.query == nil {
			return clause{text: "NOT " + child.text}, nil
		}
		return clause{query: fieldtype.Query{"bool": map[string]any{"must_not": []any{child.query}}}}, nil
	case *BoolNode:
		return c.compileBool(n)
	}
	return clause{}, fmt.Errorf("%w: unsupported node %T", model.ErrInvalidQuery, n)
}

func (c *Compiler) compileBool(n *BoolNode) (clause, error) {
	var children []clause
	structured := false
	for _, child := range n.Children {
		cl, err := c.compile(child)
		if err != nil {
			return clause{}, err
		}
		if cl.empty() {
			continue
		}
		structured = structured || cl.query != nil
		children = append(children, cl)
	}
	switch len(children) {
	case 0:
		return clause{}, nil
	case 1:
		return children[0], nil
	}

	op := " AND "
	if n.Op == Or {
		op = " OR "
	}
	if !structured {
		texts := make([]string, len(children))
		for i, ch := range children {
			texts[i] = ch.text
		}
		return clause{text: "(" + strings.Join(texts, op) + ")"}, nil
	}

	if n.Op == Or {
		should := make([]any, len(children))
		for i, ch := range children {
			should[i] = ch.asQuery()
		}
		return clause{query: fieldtype.Query{"bool": map[string]any{
			"should":               should,
			"minimum_should_match": 1,
		}}}, nil
	}

	// Text children stay together in one query string.
	var texts []string
	var must []any
	for _, ch := range children {
		if ch.query != nil {
			must = append(must, ch.query)
			continue
		}
		texts = append(texts, ch.text)
	}
	if len(texts) > 0 {
		must = append([]any{queryString(strings.Join(texts, op))}, must...)
	}
	return clause{query: fieldtype.Query{"bool": map[string]any{"must": must}}}, nil
}

// resolve looks up the field type of a "table.field" or "table/field" name.
// Unqualified names belong to the subject table.
func (c *Compiler) resolve(name string) (fieldtype.FieldType, error) {
	table, field := c.table, name
	if i := strings.IndexAny(name, "./"); i > 0 {
		table, field = name[:i], name[i+1:]
	}
	if table == fieldtype.ChangeLogTable {
		return c.registry.ChangeLog(field), nil
	}
	return c.registry.Get(table, field)
}

func (c *Compiler) compileTerm(n *TermNode) (clause, error) {
	if n.Field == "" {
		t := fieldtype.Term{Text: n.Text, Quoted: n.Quoted}
		return clause{text: t.String()}, nil
	}
	ft, err := c.resolve(n.Field)
	if err != nil {
		// unknown fields are left for the index to interpret
		t := fieldtype.Term{Field: n.Field, Text: n.Text, Quoted: n.Quoted}
		return clause{text: t.String()}, nil
	}

	term := fieldtype.NewTerm(ft.Key(), n.Text)
	term.Quoted = n.Quoted

	if tf, ok := ft.(fieldtype.TermFilterer); ok {
		filters, handled, err := tf.TermFilters(term)
		if err != nil {
			return clause{}, userError(fieldtype.WithDateContext(err, ft.Key(), n.Text))
		}
		if handled {
			return clause{query: conjunction(filters)}, nil
		}
	}

	rewritten, err := ft.RewriteTerm(term)
	if err != nil {
		return clause{}, userError(fieldtype.WithDateContext(err, ft.Key(), n.Text))
	}
	if rewritten == nil {
		return clause{}, nil
	}
	text := rewritten.String()
	if at, ok := ft.(fieldtype.AdditionalTermer); ok {
		parts := []string{text}
		for _, extra := range at.AdditionalTerms(term) {
			parts = append(parts, extra.String())
		}
		if len(parts) > 1 {
			text = "(" + strings.Join(parts, " AND ") + ")"
		}
	}
	return clause{text: text}, nil
}

func (c *Compiler) compileRange(n *RangeNode) (clause, error) {
	ft, err := c.resolve(n.Field)
	if err != nil {
		return clause{text: rangeText(fieldtype.EscapeField(n.Field), n)}, nil
	}
	lower := fieldtype.NewTerm(ft.Key(), n.Lower)
	lower.Exclusive = !n.IncludeLower
	upper := fieldtype.NewTerm(ft.Key(), n.Upper)
	upper.Exclusive = !n.IncludeUpper

	if rf, ok := ft.(fieldtype.RangeFilterer); ok {
		q, err := rf.RangeFilter(lower, upper)
		if err != nil {
			return clause{}, userError(fieldtype.WithDateContext(err, ft.Key(), n.Lower+" TO "+n.Upper))
		}
		return clause{query: q}, nil
	}

	path := ft.Key()
	if rewritten, err := ft.RewriteTerm(lower); err == nil && rewritten != nil && rewritten.Field != "" {
		path = rewritten.Field
	}
	return clause{text: rangeText(fieldtype.EscapeField(path), n)}, nil
}

func rangeText(field string, n *RangeNode) string {
	open, closing := "{", "}"
	if n.IncludeLower {
		open = "["
	}
	if n.IncludeUpper {
		closing = "]"
	}
	return fmt.Sprintf("%s:%s%s TO %s%s", field, open, rangeBound(n.Lower), rangeBound(n.Upper), closing)
}

func rangeBound(s string) string {
	if s == "" || s == "*" {
		return "*"
	}
	if strings.ContainsAny(s, " /:") {
		return `"` + s + `"`
	}
	return s
}

func conjunction(filters []fieldtype.Query) fieldtype.Query {
	if len(filters) == 1 {
		return filters[0]
	}
	must := make([]any, len(filters))
	for i, f := range filters {
		must[i] = f
	}
	return fieldtype.Query{"bool": map[string]any{"must": must}}
}

// userError marks a field type error as a problem with the search expression.
func userError(err error) error {
	if errors.Is(err, model.ErrInvalidQuery) {
		return err
	}
	return fmt.Errorf("%w: %w", model.ErrInvalidQuery, err)
}
