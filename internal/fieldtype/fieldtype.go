// Package fieldtype encodes record content into typed index fragments and rewrites
// query terms so that they address the sub-fields those fragments were stored under.
package fieldtype

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/syntrixbase/searchsync/internal/schema"
	"github.com/syntrixbase/searchsync/pkg/model"
)

// FieldType encodes values of one field and rewrites query terms against it.
type FieldType interface {
	// Key is the document key values are stored under, "table/field".
	Key() string
	// Encode returns the fragment for content. Encoders never fail: content
	// that cannot be encoded is logged and yields an empty fragment.
	Encode(ctx context.Context, content any, opts Options) Fragment
	// RewriteTerm returns the term addressing the right sub-field, or nil when
	// the term should be dropped from the query string.
	RewriteTerm(term Term) (*Term, error)
	// SortField returns the path to sort on, or "" when values cannot be sorted.
	SortField() string
}

// TermFilterer is implemented by types whose terms become structured filters
// instead of query-string clauses. ok is false when the term is not handled.
type TermFilterer interface {
	TermFilters(term Term) (filters []Query, ok bool, err error)
}

// RangeFilterer builds a filter for a "[lower TO upper]" range clause.
type RangeFilterer interface {
	RangeFilter(lower, upper Term) (Query, error)
}

// AdditionalTermer contributes extra clauses that must also match.
type AdditionalTermer interface {
	AdditionalTerms(term Term) []Term
}

// FilterAlterer rewrites a structured filter on the field into index terms.
type FilterAlterer interface {
	AlterFilter(f model.Filter) (model.Filter, error)
}

// Vocabulary resolves list item identifiers to display labels.
type Vocabulary interface {
	Label(ctx context.Context, listCode, item string) (string, error)
}

// Env carries the collaborators encoders need.
type Env struct {
	Schema     *schema.Schema
	Vocabulary Vocabulary
	Logger     *slog.Logger
}

func (e *Env) logger() *slog.Logger {
	if e == nil || e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// FieldKey returns the document key for a field of a table.
func FieldKey(table, field string) string {
	return table + "/" + field
}

type base struct {
	env   *Env
	table string
	name  string
	log   *slog.Logger
}

func newBase(env *Env, table, name, kind string) base {
	return base{
		env:   env,
		table: table,
		name:  name,
		log:   env.logger().With("component", "fieldtype", "type", kind, "field", FieldKey(table, name)),
	}
}

func (b base) Key() string {
	return FieldKey(b.table, b.name)
}

// existence rewrites "[blank]"/"[set]" terms against the whole field key.
func (b base) existence(term Term) (*Term, bool) {
	if term.Existence == ExistsAny {
		return nil, false
	}
	return &Term{Field: b.Key(), Existence: term.Existence}, true
}

// toText renders content the way it is stored in the record store.
func toText(content any) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(content)
}

// toFloat casts content to a number; non-numeric text yields false.
func toFloat(content any) (float64, bool) {
	switch v := content.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(toText(content)), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// toBool follows record-store conventions: "", "0" and "false" are false.
func toBool(content any) bool {
	if b, ok := content.(bool); ok {
		return b
	}
	s := strings.TrimSpace(toText(content))
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s != "" && s != "0"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
