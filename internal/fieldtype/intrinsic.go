package fieldtype

import (
	"context"
	"fmt"
	"strings"

	"github.com/syntrixbase/searchsync/internal/schema"
	"github.com/syntrixbase/searchsync/pkg/model"
)

var intrinsicSuffixes = map[schema.IntrinsicType]Suffix{
	schema.TypeBit:               SuffixBool,
	schema.TypeTime:              SuffixTime,
	schema.TypeNumber:            SuffixInteger,
	schema.TypeTimeRange:         SuffixTimeRange,
	schema.TypeTimecode:          SuffixTime,
	schema.TypeDate:              SuffixDate,
	schema.TypeDateTime:          SuffixDate,
	schema.TypeDateRange:         SuffixDateRange,
	schema.TypeHistoricDate:      SuffixDate,
	schema.TypeHistoricDateTime:  SuffixDate,
	schema.TypeHistoricDateRange: SuffixDateRange,
	schema.TypeTimestamp:         SuffixDate,
}

// Hierarchy bounds are stored as doubles; they are not integers.
var hierarchyFields = map[string]bool{"hier_left": true, "hier_right": true}

// Intrinsic encodes table columns.
type Intrinsic struct {
	base
	table     *schema.Table
	field     *schema.Field
	numbering IDNumbering
}

// NewIntrinsic returns the encoder for an intrinsic field. Fields missing from
// the datamodel are handled as text.
func NewIntrinsic(env *Env, table, name string) *Intrinsic {
	t := &Intrinsic{base: newBase(env, table, name, "intrinsic")}
	if env != nil && env.Schema != nil {
		t.table, _ = env.Schema.Table(table)
		t.field, _ = env.Schema.Field(table, name)
	}
	sep := ""
	if t.table != nil {
		sep = t.table.IdnoSeparator
	}
	t.numbering = SeparatorNumbering{Separator: sep}
	return t
}

func (t *Intrinsic) fieldType() schema.IntrinsicType {
	if t.field == nil {
		return schema.TypeText
	}
	return t.field.Type
}

func (t *Intrinsic) isIdno() bool {
	return t.table != nil && t.table.IdnoField != "" && t.table.IdnoField == t.name
}

func isDateType(ft schema.IntrinsicType) bool {
	switch ft {
	case schema.TypeDate, schema.TypeDateTime, schema.TypeDateRange, schema.TypeTimestamp,
		schema.TypeHistoricDate, schema.TypeHistoricDateTime, schema.TypeHistoricDateRange:
		return true
	}
	return false
}

func isHistoricType(ft schema.IntrinsicType) bool {
	switch ft {
	case schema.TypeHistoricDate, schema.TypeHistoricDateTime, schema.TypeHistoricDateRange:
		return true
	}
	return false
}

func isNumericType(ft schema.IntrinsicType) bool {
	switch ft {
	case schema.TypeNumber, schema.TypeTime, schema.TypeTimeRange, schema.TypeTimecode:
		return true
	}
	return false
}

// suffix is the sub-field values of this field are stored under.
func (t *Intrinsic) suffix() Suffix {
	ft := t.fieldType()
	s, ok := intrinsicSuffixes[ft]
	if !ok {
		s = SuffixText
	}
	if ft == schema.TypeNumber && hierarchyFields[t.name] {
		s = SuffixDouble
	}
	if isNumericType(ft) && t.field.ListCode != "" && s != SuffixDouble {
		s = SuffixKeyword
	}
	return s
}

func (t *Intrinsic) Encode(ctx context.Context, content any, opts Options) Fragment {
	if content == nil {
		return nil
	}
	ft := t.fieldType()
	if isDateType(ft) {
		return t.dateRangeFragment(content, isHistoricType(ft))
	}

	suffix := t.suffix()
	text := strings.TrimSpace(toText(content))
	var value any = text

	switch {
	case ft == schema.TypeBit:
		value = toBool(content)
	case isNumericType(ft) && suffix != SuffixKeyword:
		if text == "" {
			return nil
		}
		f, ok := toFloat(content)
		if !ok && ft == schema.TypeTimecode {
			var err error
			f, err = ParseTimecode(text)
			ok = err == nil
		}
		if !ok {
			t.log.Warn("Dropping non-numeric value", "value", text)
			return nil
		}
		value = f
	default:
		if text == "" {
			return nil
		}
	}

	if opts.DontTokenize && suffix.Tokenizes() {
		suffix = SuffixKeyword
	}
	vals := Values{suffix.Name(): value}
	if t.isIdno() || opts.IndexAsIdno {
		vals[SuffixIdno.Name()] = t.numbering.IndexValues(text)
	}
	return Fragment{t.Key(): vals}
}

func (t *Intrinsic) RewriteTerm(term Term) (*Term, error) {
	suffix := t.suffix()
	if isDateType(t.fieldType()) {
		suffix = SuffixText
	}
	if term.Existence == ExistsBlank && t.table != nil && t.table.IsLabel {
		// label tables index blank labels as the literal placeholder
		return &Term{Field: suffix.Path(t.Key()), Also: t.alternates(suffix), Text: TextBlank, Quoted: true}, nil
	}
	if ex, ok := t.existence(term); ok {
		return ex, nil
	}

	raw := strings.TrimRight(term.Text, "|")
	if t.isIdno() {
		path := SuffixIdno.Path(t.Key())
		if strings.Contains(raw, "*") {
			return &Term{Field: path, Text: raw}, nil
		}
		return &Term{Field: path, Text: raw, Quoted: true}, nil
	}
	if t.fieldType() == schema.TypeBit {
		raw = fmt.Sprint(toBool(raw))
	}
	return &Term{Field: suffix.Path(t.Key()), Also: t.alternates(suffix), Text: raw, Quoted: term.Quoted && !term.HasWildcard()}, nil
}

// alternates adds the exact-match sub-field to text terms, which is where
// don't-tokenize values end up.
func (t *Intrinsic) alternates(suffix Suffix) []string {
	if suffix != SuffixText {
		return nil
	}
	return []string{SuffixKeyword.Path(t.Key())}
}

// TermFilters turns terms on date fields into range filters.
func (t *Intrinsic) TermFilters(term Term) ([]Query, bool, error) {
	ft := t.fieldType()
	if !isDateType(ft) || term.Existence != ExistsAny {
		return nil, false, nil
	}
	filters, err := dateFilters(SuffixDateRange.Path(t.Key()), term.Text, isHistoricType(ft))
	if err != nil {
		return nil, true, err
	}
	return filters, true, nil
}

// AlterFilter points a structured filter at the stored sub-field and casts its value.
func (t *Intrinsic) AlterFilter(f model.Filter) (model.Filter, error) {
	suffix := t.suffix()
	switch {
	case t.isIdno():
		f.Field = SuffixIdno.Path(t.Key())
	case isDateType(t.fieldType()):
		f.Field = SuffixDateRange.Path(t.Key())
	case suffix == SuffixText:
		f.Field = suffix.Path(t.Key()) + "." + SortSubField
	default:
		f.Field = suffix.Path(t.Key())
	}
	if suffix == SuffixBool {
		f.Value = castBoolValue(f.Value)
	}
	return f, nil
}

func castBoolValue(v any) any {
	if vs, ok := v.([]any); ok {
		out := make([]any, len(vs))
		for i, x := range vs {
			out[i] = toBool(x)
		}
		return out
	}
	return toBool(v)
}

func (t *Intrinsic) SortField() string {
	if t.isIdno() && t.table.IdnoSortField != "" {
		return SuffixText.Path(FieldKey(t.table.Name, t.table.IdnoSortField)) + "." + SortSubField
	}
	suffix := t.suffix()
	switch suffix {
	case SuffixText:
		return suffix.Path(t.Key()) + "." + SortSubField
	case SuffixDateRange, SuffixTimeRange:
		return ""
	}
	if isDateType(t.fieldType()) {
		return ""
	}
	return suffix.Path(t.Key())
}
