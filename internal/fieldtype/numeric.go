package fieldtype

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/syntrixbase/searchsync/internal/metrics"
	"github.com/syntrixbase/searchsync/pkg/model"
)

// Numeric stores values as floats. Text that is not a number is kept as text.
type Numeric struct {
	*Generic
	stored  Suffix
	integer bool
}

// NewNumeric returns the float encoder.
func NewNumeric(env *Env, table, name string) *Numeric {
	return &Numeric{Generic: newGeneric(env, table, name, "numeric", SuffixText), stored: SuffixFloat}
}

// NewInteger returns the integer encoder.
func NewInteger(env *Env, table, name string) *Numeric {
	return &Numeric{Generic: newGeneric(env, table, name, "integer", SuffixText), stored: SuffixInteger, integer: true}
}

func (n *Numeric) value(content any) (any, bool) {
	f, ok := toFloat(content)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	if n.integer {
		return int64(math.Trunc(f)), true
	}
	return f, true
}

func (n *Numeric) Encode(ctx context.Context, content any, opts Options) Fragment {
	text := strings.TrimSpace(toText(content))
	if text == "" {
		return n.Generic.fragment(text, opts)
	}
	v, ok := n.value(content)
	if !ok {
		n.log.Debug("Value is not numeric, indexing as text", "value", text)
		return n.Generic.fragment(text, opts)
	}
	return single(n.Key(), n.stored, v)
}

func (n *Numeric) RewriteTerm(term Term) (*Term, error) {
	if ex, ok := n.existence(term); ok {
		return ex, nil
	}
	v, ok := n.value(strings.TrimSpace(term.Text))
	if !ok {
		return n.textTerm(term), nil
	}
	return &Term{Field: n.stored.Path(n.Key()), Text: fmt.Sprint(v)}, nil
}

func (n *Numeric) RangeFilter(lower, upper Term) (Query, error) {
	return rangeQuery(n.stored.Path(n.Key()), lower, upper, func(s string) (any, error) {
		v, ok := n.value(s)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidMeasurement, s)
		}
		return v, nil
	})
}

func (n *Numeric) AlterFilter(f model.Filter) (model.Filter, error) {
	f.Field = n.stored.Path(n.Key())
	return f, nil
}

func (n *Numeric) SortField() string {
	return n.stored.Path(n.Key())
}

// Measurement stores physical quantities converted to a base unit as floats
// rounded to six decimals.
type Measurement struct {
	base
	datatype string
	parse    func(string) (float64, error)
}

// NewWeight returns the encoder for weights, in kilograms.
func NewWeight(env *Env, table, name string) *Measurement {
	return &Measurement{base: newBase(env, table, name, "weight"), datatype: "weight", parse: ParseWeight}
}

// NewLength returns the encoder for lengths, in metres.
func NewLength(env *Env, table, name string) *Measurement {
	return &Measurement{base: newBase(env, table, name, "length"), datatype: "length", parse: ParseLength}
}

// NewTimecode returns the encoder for durations, in seconds.
func NewTimecode(env *Env, table, name string) *Measurement {
	return &Measurement{base: newBase(env, table, name, "timecode"), datatype: "timecode", parse: ParseTimecode}
}

func (m *Measurement) normalize(text string) (float64, error) {
	v, err := m.parse(text)
	if err != nil {
		return 0, err
	}
	return RoundTo(v, 6), nil
}

func (m *Measurement) Encode(ctx context.Context, content any, opts Options) Fragment {
	text := strings.TrimSpace(toText(content))
	if text == "" {
		return nil
	}
	v, err := m.normalize(text)
	if err != nil {
		m.log.Warn("Could not parse measurement, value not indexed", "value", text, "error", err)
		metrics.EncodingFailures.WithLabelValues(m.datatype).Inc()
		return nil
	}
	return single(m.Key(), SuffixFloat, v)
}

func (m *Measurement) RewriteTerm(term Term) (*Term, error) {
	if ex, ok := m.existence(term); ok {
		return ex, nil
	}
	v, err := m.normalize(term.Text)
	if err != nil {
		m.log.Debug("Could not parse measurement in query", "value", term.Text, "error", err)
		t := term
		return &t, nil
	}
	return &Term{Field: SuffixFloat.Path(m.Key()), Text: formatFloat(v)}, nil
}

func (m *Measurement) RangeFilter(lower, upper Term) (Query, error) {
	return rangeQuery(SuffixFloat.Path(m.Key()), lower, upper, func(s string) (any, error) {
		return m.normalize(s)
	})
}

func (m *Measurement) SortField() string {
	return SuffixFloat.Path(m.Key())
}

// rangeQuery builds a range clause; "*" or an empty bound leaves that side open.
func rangeQuery(path string, lower, upper Term, parse func(string) (any, error)) (Query, error) {
	bounds := map[string]any{}
	for _, b := range []struct {
		term      Term
		incl, exc string
	}{{lower, "gte", "gt"}, {upper, "lte", "lt"}} {
		text := strings.TrimSpace(b.term.Text)
		if text == "" || text == "*" {
			continue
		}
		v, err := parse(text)
		if err != nil {
			return nil, err
		}
		if b.term.Exclusive {
			bounds[b.exc] = v
		} else {
			bounds[b.incl] = v
		}
	}
	return Query{"range": map[string]any{path: bounds}}, nil
}
