package fieldtype

import (
	"context"
	"strings"

	"github.com/syntrixbase/searchsync/pkg/model"
)

// Generic stores the raw value under a fixed suffix. It is the fallback for
// datatypes without a dedicated encoder.
type Generic struct {
	base
	suffix Suffix
}

// NewGeneric returns a text encoder for a field.
func NewGeneric(env *Env, table, name string) *Generic {
	return newGeneric(env, table, name, "generic", SuffixText)
}

func newGeneric(env *Env, table, name, kind string, suffix Suffix) *Generic {
	return &Generic{base: newBase(env, table, name, kind), suffix: suffix}
}

func (g *Generic) Encode(ctx context.Context, content any, opts Options) Fragment {
	return g.fragment(strings.TrimSpace(toText(content)), opts)
}

func (g *Generic) fragment(text string, opts Options) Fragment {
	if text == "" {
		return nil
	}
	suffix := g.suffix
	if opts.DontTokenize && suffix == SuffixText {
		suffix = SuffixKeyword
	}
	return single(g.Key(), suffix, text)
}

func (g *Generic) RewriteTerm(term Term) (*Term, error) {
	if ex, ok := g.existence(term); ok {
		return ex, nil
	}
	return g.textTerm(term), nil
}

// textTerm addresses the analyzed and exact-match views of a text value.
// Wildcard terms are never quoted.
func (g *Generic) textTerm(term Term) *Term {
	t := &Term{Field: g.suffix.Path(g.Key()), Text: term.Text, Quoted: term.Quoted && !term.HasWildcard()}
	if g.suffix == SuffixText {
		t.Also = []string{SuffixKeyword.Path(g.Key())}
	}
	return t
}

func (g *Generic) AlterFilter(f model.Filter) (model.Filter, error) {
	f.Field = g.SortField()
	return f, nil
}

func (g *Generic) SortField() string {
	if g.suffix == SuffixText {
		return g.suffix.Path(g.Key()) + "." + SortSubField
	}
	return g.suffix.Path(g.Key())
}
