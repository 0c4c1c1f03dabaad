package fieldtype

import (
	"context"
	"strings"
	"time"
)

// DateRange stores free-form date text next to its parsed interval.
type DateRange struct {
	base
}

// NewDateRange returns the date range encoder.
func NewDateRange(env *Env, table, name string) *DateRange {
	return &DateRange{base: newBase(env, table, name, "daterange")}
}

func (d *DateRange) Encode(ctx context.Context, content any, opts Options) Fragment {
	return d.dateRangeFragment(content, false)
}

func (d *DateRange) RewriteTerm(term Term) (*Term, error) {
	if ex, ok := d.existence(term); ok {
		return ex, nil
	}
	return &Term{Field: SuffixText.Path(d.Key()), Text: term.Text, Quoted: term.Quoted}, nil
}

func (d *DateRange) TermFilters(term Term) ([]Query, bool, error) {
	if term.Existence != ExistsAny {
		return nil, false, nil
	}
	filters, err := dateFilters(SuffixDateRange.Path(d.Key()), term.Text, false)
	if err != nil {
		return nil, true, err
	}
	return filters, true, nil
}

func (d *DateRange) RangeFilter(lower, upper Term) (Query, error) {
	return intervalRange(SuffixDateRange.Path(d.Key()), lower, upper)
}

func (d *DateRange) SortField() string {
	return ""
}

// intervalRange spans from the start of lower to the end of upper. An
// exclusive bound leaves out its whole interval: the range then starts after
// the end of lower or stops before the start of upper.
func intervalRange(path string, lower, upper Term) (Query, error) {
	bounds := map[string]any{}
	if l := strings.TrimSpace(lower.Text); l != "" && l != "*" {
		iv, err := ParseInterval(l)
		if err != nil {
			return nil, err
		}
		if lower.Exclusive {
			bounds["gt"] = iv.EndOrMax()
		} else {
			bounds["gte"] = iv.StartOrMin()
		}
	}
	if u := strings.TrimSpace(upper.Text); u != "" && u != "*" {
		iv, err := ParseInterval(u)
		if err != nil {
			return nil, err
		}
		if upper.Exclusive {
			bounds["lt"] = iv.StartOrMin()
		} else {
			bounds["lte"] = iv.EndOrMax()
		}
	}
	return Query{"range": map[string]any{path: bounds}}, nil
}

// ChangeLogTable is the pseudo table change log fields are keyed under.
const ChangeLogTable = "changeLog"

// ChangeLogDate stores change log timestamps as dates.
type ChangeLogDate struct {
	base
}

// NewChangeLogDate returns the encoder for a change log date such as "created".
func NewChangeLogDate(env *Env, name string) *ChangeLogDate {
	return &ChangeLogDate{base: newBase(env, ChangeLogTable, name, "changelog")}
}

func (c *ChangeLogDate) Encode(ctx context.Context, content any, opts Options) Fragment {
	var iso string
	switch v := content.(type) {
	case nil:
		return nil
	case time.Time:
		if v.IsZero() {
			return nil
		}
		iso = formatISO(v)
	case int64:
		iso = formatISO(time.Unix(v, 0))
	default:
		iv, err := ParseInterval(toText(content))
		if err != nil {
			c.log.Warn("Could not parse change log date", "value", content, "error", err)
			return nil
		}
		iso = iv.StartOrMin()
	}
	return single(c.Key(), SuffixDate, iso)
}

func (c *ChangeLogDate) RewriteTerm(term Term) (*Term, error) {
	if ex, ok := c.existence(term); ok {
		return ex, nil
	}
	return nil, nil
}

func (c *ChangeLogDate) TermFilters(term Term) ([]Query, bool, error) {
	if term.Existence != ExistsAny {
		return nil, false, nil
	}
	filters, err := dateFilters(SuffixDate.Path(c.Key()), term.Text, false)
	if err != nil {
		return nil, true, err
	}
	return filters, true, nil
}

func (c *ChangeLogDate) RangeFilter(lower, upper Term) (Query, error) {
	return intervalRange(SuffixDate.Path(c.Key()), lower, upper)
}

func (c *ChangeLogDate) SortField() string {
	return SuffixDate.Path(c.Key())
}
