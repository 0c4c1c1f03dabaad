package fieldtype

import (
	"context"
	"fmt"
	"strings"
)

// Currency stores the amount under the currency suffix and the ISO code as text.
// Text that is not a currency amount falls back to plain text.
type Currency struct {
	*Generic
}

// NewCurrency returns the currency encoder.
func NewCurrency(env *Env, table, name string) *Currency {
	return &Currency{Generic: newGeneric(env, table, name, "currency", SuffixText)}
}

func (c *Currency) Encode(ctx context.Context, content any, opts Options) Fragment {
	text := strings.TrimSpace(toText(content))
	if text == "" {
		return nil
	}
	m, err := ParseCurrency(text)
	if err != nil {
		c.log.Debug("Value is not a currency amount, indexing as text", "value", text)
		return c.Generic.fragment(text, opts)
	}
	return Fragment{c.Key(): Values{
		SuffixCurrency.Name(): m.Amount,
		SuffixText.Name():     m.Code,
	}}
}

func (c *Currency) RewriteTerm(term Term) (*Term, error) {
	if ex, ok := c.existence(term); ok {
		return ex, nil
	}
	m, err := ParseCurrency(term.Text)
	if err != nil {
		return c.textTerm(term), nil
	}
	return &Term{Field: SuffixCurrency.Path(c.Key()), Text: formatFloat(m.Amount)}, nil
}

// AdditionalTerms requires the currency code to match as well as the amount.
func (c *Currency) AdditionalTerms(term Term) []Term {
	if term.Existence != ExistsAny {
		return nil
	}
	m, err := ParseCurrency(term.Text)
	if err != nil {
		return nil
	}
	return []Term{{Field: SuffixText.Path(c.Key()), Text: m.Code}}
}

// RangeFilter requires both bounds to share a currency.
func (c *Currency) RangeFilter(lower, upper Term) (Query, error) {
	var code string
	r, err := rangeQuery(SuffixCurrency.Path(c.Key()), lower, upper, func(s string) (any, error) {
		m, err := ParseCurrency(s)
		if err != nil {
			return nil, err
		}
		if code != "" && m.Code != code {
			return nil, fmt.Errorf("%w: range mixes %s and %s", ErrInvalidMeasurement, code, m.Code)
		}
		code = m.Code
		return m.Amount, nil
	})
	if err != nil {
		return nil, err
	}
	if code == "" {
		return r, nil
	}
	return Query{"bool": map[string]any{
		"filter": []Query{r, {"match": map[string]any{SuffixText.Path(c.Key()): code}}},
	}}, nil
}

func (c *Currency) SortField() string {
	return SuffixCurrency.Path(c.Key())
}
