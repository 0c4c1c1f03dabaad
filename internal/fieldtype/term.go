package fieldtype

import (
	"strings"
)

// Existence marks a term that asks whether a field has any value at all.
type Existence int

const (
	ExistsAny Existence = iota // an ordinary term
	ExistsSet                  // "[set]"
	ExistsBlank                // "[blank]"
)

// Sentinel texts recognized as existence checks.
const (
	TextBlank = "[blank]"
	TextSet   = "[set]"
)

// Term is a single field:value clause of a query.
type Term struct {
	Field     string   // resolved field key or sub-field path; empty for unfielded terms
	Also      []string // further paths the text may match
	Text      string
	Quoted    bool // match as a phrase
	Existence Existence
	Exclusive bool // range bound that is itself excluded, as in "{a TO b}"
}

// NewTerm returns a term for text on field, detecting the existence sentinels.
func NewTerm(field, text string) Term {
	t := Term{Field: field, Text: text}
	switch strings.ToLower(strings.TrimSpace(text)) {
	case TextBlank:
		t.Existence = ExistsBlank
	case TextSet:
		t.Existence = ExistsSet
	}
	return t
}

// HasWildcard reports whether the term text contains a wildcard.
func (t Term) HasWildcard() bool {
	return strings.ContainsAny(t.Text, "*?")
}

// String renders the term in query-string syntax.
func (t Term) String() string {
	field := EscapeField(t.Field)
	switch t.Existence {
	case ExistsSet:
		return "_exists_:" + field
	case ExistsBlank:
		return "(*:* AND NOT _exists_:" + field + ")"
	}
	var text string
	if t.Quoted {
		text = `"` + strings.ReplaceAll(t.Text, `"`, `\"`) + `"`
	} else {
		text = strings.ReplaceAll(t.Text, "/", `\/`)
	}
	if field == "" {
		return text
	}
	if len(t.Also) == 0 {
		return field + ":" + text
	}
	clauses := []string{field + ":" + text}
	for _, f := range t.Also {
		clauses = append(clauses, EscapeField(f)+":"+text)
	}
	return "(" + strings.Join(clauses, " OR ") + ")"
}

// EscapeField escapes a field key for use in query-string syntax.
func EscapeField(field string) string {
	return strings.ReplaceAll(field, "/", `\/`)
}

// Query is a structured query clause in the search index's JSON form.
type Query map[string]any

// ExistsQuery returns a clause matching documents that have field.
func ExistsQuery(field string) Query {
	return Query{"exists": map[string]any{"field": field}}
}
