package fieldtype

import (
	"context"
	"strings"

	"github.com/syntrixbase/searchsync/pkg/model"
)

// ListItem stores a vocabulary item id for exact matching and its label as text.
type ListItem struct {
	base
	listCode string
}

// NewListItem returns the encoder for list-valued fields.
func NewListItem(env *Env, table, name, listCode string) *ListItem {
	return &ListItem{base: newBase(env, table, name, "list"), listCode: listCode}
}

func (l *ListItem) Encode(ctx context.Context, content any, opts Options) Fragment {
	id := strings.TrimSpace(toText(content))
	if id == "" {
		return nil
	}
	label := id
	if l.env != nil && l.env.Vocabulary != nil {
		v, err := l.env.Vocabulary.Label(ctx, l.listCode, id)
		switch {
		case err != nil:
			l.log.Warn("Could not resolve list item label", "list", l.listCode, "item", id, "error", err)
		case v != "":
			label = v
		}
	}
	return Fragment{l.Key(): Values{
		SuffixKeyword.Name(): id,
		SuffixText.Name():    label,
	}}
}

func (l *ListItem) RewriteTerm(term Term) (*Term, error) {
	if ex, ok := l.existence(term); ok {
		return ex, nil
	}
	return &Term{
		Field:  SuffixText.Path(l.Key()),
		Also:   []string{SuffixKeyword.Path(l.Key())},
		Text:   term.Text,
		Quoted: term.Quoted && !term.HasWildcard(),
	}, nil
}

func (l *ListItem) AlterFilter(f model.Filter) (model.Filter, error) {
	f.Field = SuffixKeyword.Path(l.Key())
	return f, nil
}

func (l *ListItem) SortField() string {
	return SuffixText.Path(l.Key()) + "." + SortSubField
}
