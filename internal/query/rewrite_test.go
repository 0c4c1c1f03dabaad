package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/searchsync/internal/fieldtype"
	"github.com/syntrixbase/searchsync/internal/schema"
	"github.com/syntrixbase/searchsync/pkg/model"
)

func testRegistry(t *testing.T) *fieldtype.Registry {
	t.Helper()
	s, err := schema.LoadFromFile("../schema/testdata/datamodel.yaml")
	require.NoError(t, err)
	return fieldtype.NewRegistry(&fieldtype.Env{Schema: s})
}

func testCompiler(t *testing.T) *Compiler {
	t.Helper()
	return NewCompiler(testRegistry(t), "ca_objects")
}

func queryText(t *testing.T, q fieldtype.Query) string {
	t.Helper()
	qs, ok := q["query_string"].(map[string]any)
	require.True(t, ok, "not a query_string: %v", q)
	return qs["query"].(string)
}

func TestCompile_QueryString(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want string
	}{
		{"bare word", "foo", "foo"},
		{"phrase", `"foo bar"`, `"foo bar"`},
		{"text element", "description:foo", `(ca_objects\/description.-s:foo OR ca_objects\/description.-kw:foo)`},
		{"qualified with slash", "ca_objects/description:foo", `(ca_objects\/description.-s:foo OR ca_objects\/description.-kw:foo)`},
		{"blank", "description:[BLANK]", `(*:* AND NOT _exists_:ca_objects\/description)`},
		{"set", "ca_objects.description:[set]", `_exists_:ca_objects\/description`},
		{"idno phrase", "idno:2020.1", `ca_objects\/idno.-idno:"2020.1"`},
		{"weight normalized", "dimensions_weight:1000g", `ca_objects\/dimensions_weight.-f:1`},
		{"text range", "extent:[1 TO 5]", `ca_objects\/extent.-i:[1 TO 5]`},
		{"boolean text", "foo OR NOT bar", "(foo OR NOT bar)"},
		{"currency adds code", "price:$12", `(ca_objects\/price.-currency:12 AND ca_objects\/price.-s:USD)`},
	}
	c := testCompiler(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := c.Compile(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, queryText(t, q))
		})
	}
}

func TestCompile_Empty(t *testing.T) {
	q, err := testCompiler(t).Compile("")
	require.NoError(t, err)
	assert.Contains(t, q, "match_all")
}

func TestCompile_DateTermBecomesFilter(t *testing.T) {
	q, err := testCompiler(t).Compile("dates_value:2001")
	require.NoError(t, err)

	rng, ok := q["range"].(map[string]any)
	require.True(t, ok, "%v", q)
	bounds := rng["ca_objects/dates_value.-dtr"].(map[string]any)
	assert.Contains(t, bounds, "gte")
	assert.Contains(t, bounds, "lte")
}

func TestCompile_MixedAnd(t *testing.T) {
	q, err := testCompiler(t).Compile("foo dates_value:2001 bar")
	require.NoError(t, err)

	must := q["bool"].(map[string]any)["must"].([]any)
	require.Len(t, must, 2)
	assert.Equal(t, "foo AND bar", queryText(t, must[0].(fieldtype.Query)))
	assert.Contains(t, must[1].(fieldtype.Query), "range")
}

func TestCompile_MixedOr(t *testing.T) {
	q, err := testCompiler(t).Compile("foo OR dates_value:2001")
	require.NoError(t, err)

	b := q["bool"].(map[string]any)
	assert.Equal(t, 1, b["minimum_should_match"])
	should := b["should"].([]any)
	require.Len(t, should, 2)
	assert.Equal(t, "foo", queryText(t, should[0].(fieldtype.Query)))
}

func TestCompile_NotFilter(t *testing.T) {
	q, err := testCompiler(t).Compile("NOT dates_value:2001")
	require.NoError(t, err)

	mustNot := q["bool"].(map[string]any)["must_not"].([]any)
	require.Len(t, mustNot, 1)
	assert.Contains(t, mustNot[0].(fieldtype.Query), "range")
}

func TestCompile_RangeFilter(t *testing.T) {
	q, err := testCompiler(t).Compile("dimensions_weight:[1kg TO 2000g]")
	require.NoError(t, err)

	rng := q["range"].(map[string]any)
	assert.Equal(t, map[string]any{"gte": 1.0, "lte": 2.0}, rng["ca_objects/dimensions_weight.-f"])
}

func TestCompile_RangeBounds(t *testing.T) {
	y2019, err := fieldtype.ParseInterval("2019")
	require.NoError(t, err)
	y2021, err := fieldtype.ParseInterval("2021")
	require.NoError(t, err)

	tests := []struct {
		name  string
		expr  string
		field string
		want  map[string]any
	}{
		{"integer inclusive", "page_count:[10 TO 20]", "ca_objects/page_count.-i", map[string]any{"gte": int64(10), "lte": int64(20)}},
		{"integer exclusive", "page_count:{10 TO 20}", "ca_objects/page_count.-i", map[string]any{"gt": int64(10), "lt": int64(20)}},
		{"integer half open", "page_count:[10 TO 20}", "ca_objects/page_count.-i", map[string]any{"gte": int64(10), "lt": int64(20)}},
		{"open upper", "page_count:{10 TO *]", "ca_objects/page_count.-i", map[string]any{"gt": int64(10)}},
		{"weight exclusive", "dimensions_weight:{1kg TO 2000g}", "ca_objects/dimensions_weight.-f", map[string]any{"gt": 1.0, "lt": 2.0}},
		{"date inclusive", "dates_value:[2019 TO 2021]", "ca_objects/dates_value.-dtr", map[string]any{"gte": y2019.StartOrMin(), "lte": y2021.EndOrMax()}},
		{"date exclusive", "dates_value:{2019 TO 2021}", "ca_objects/dates_value.-dtr", map[string]any{"gt": y2019.EndOrMax(), "lt": y2021.StartOrMin()}},
	}
	c := testCompiler(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := c.Compile(tt.expr)
			require.NoError(t, err)
			rng, ok := q["range"].(map[string]any)
			require.True(t, ok, "%v", q)
			assert.Equal(t, tt.want, rng[tt.field])
		})
	}

	q, err := c.Compile("price:{$10 TO $20}")
	require.NoError(t, err)
	filter := q["bool"].(map[string]any)["filter"].([]fieldtype.Query)
	assert.Equal(t, map[string]any{"gt": 10.0, "lt": 20.0}, filter[0]["range"].(map[string]any)["ca_objects/price.-currency"])
}

func TestCompile_ChangeLog(t *testing.T) {
	c := testCompiler(t)

	q, err := c.Compile("changeLog.created:2020")
	require.NoError(t, err)
	rng := q["range"].(map[string]any)
	assert.Contains(t, rng, "changeLog/created.-dt")

	q, err = c.Compile("changeLog.modified:[set]")
	require.NoError(t, err)
	assert.Equal(t, `_exists_:changeLog\/modified`, queryText(t, q))
}

func TestCompile_ExistenceSentinels(t *testing.T) {
	fields := []struct {
		field string
		key   string
	}{
		{"description", "ca_objects/description"},
		{"price", "ca_objects/price"},
		{"dimensions_weight", "ca_objects/dimensions_weight"},
		{"dimensions_length", "ca_objects/dimensions_length"},
		{"runtime", "ca_objects/runtime"},
		{"page_count", "ca_objects/page_count"},
		{"ratio", "ca_objects/ratio"},
		{"material", "ca_objects/material"},
		{"website", "ca_objects/website"},
		{"dates_value", "ca_objects/dates_value"},
		{"georeference", "ca_objects/georeference"},
		{"changeLog.created", "changeLog/created"},
		{"idno", "ca_objects/idno"},
		{"extent", "ca_objects/extent"},
		{"last_inspected", "ca_objects/last_inspected"},
		{"is_deaccessioned", "ca_objects/is_deaccessioned"},
	}
	sentinels := []struct {
		text    string
		present bool
	}{
		{"[blank]", false},
		{"[BLANK]", false},
		{"[Blank]", false},
		{"[set]", true},
		{"[SET]", true},
		{"[Set]", true},
	}
	c := testCompiler(t)
	for _, f := range fields {
		for _, s := range sentinels {
			t.Run(f.field+":"+s.text, func(t *testing.T) {
				want := `(*:* AND NOT _exists_:` + fieldtype.EscapeField(f.key) + `)`
				if s.present {
					want = `_exists_:` + fieldtype.EscapeField(f.key)
				}
				q, err := c.Compile(f.field + ":" + s.text)
				require.NoError(t, err)
				assert.Equal(t, want, queryText(t, q))

				field := f.field
				if !strings.Contains(field, ".") {
					field = "ca_objects." + field
				}
				fq, err := c.Filters(model.Filters{{Field: field, Op: model.OpEq, Value: s.text}})
				require.NoError(t, err)
				require.Len(t, fq, 1)
				exists := fieldtype.ExistsQuery(f.key)
				if s.present {
					assert.Equal(t, exists, fq[0])
				} else {
					assert.Equal(t, fieldtype.Query{"bool": map[string]any{"must_not": []any{exists}}}, fq[0])
				}
			})
		}
	}
}

func TestCompile_DateErrorNamesTermAndField(t *testing.T) {
	c := testCompiler(t)
	tests := []struct {
		expr string
		text string
	}{
		{"dates_value:gibberishxyz", "gibberishxyz"},
		{"dates_value:[gibberishxyz TO 2020]", "gibberishxyz TO 2020"},
		{"changeLog.created:gibberishxyz", "gibberishxyz"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := c.Compile(tt.expr)
			require.ErrorIs(t, err, fieldtype.ErrInvalidDate)
			assert.ErrorIs(t, err, model.ErrInvalidQuery)

			var de *fieldtype.DateError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.text, de.Text)
			assert.Contains(t, err.Error(), `"`+tt.text+`"`)
			assert.Contains(t, err.Error(), `"`+de.Field+`"`)
			assert.Contains(t, err.Error(), fieldtype.DateFormatsURL)
		})
	}

	_, err := c.Compile("dates_value:gibberishxyz")
	var de *fieldtype.DateError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "ca_objects/dates_value", de.Field)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr error
	}{
		{"bad date", "dates_value:xyzzy", fieldtype.ErrInvalidDate},
		{"bad date is invalid query", "dates_value:xyzzy", model.ErrInvalidQuery},
		{"bad range", "dimensions_weight:[heavy TO 2kg]", model.ErrInvalidQuery},
		{"syntax", "(foo", model.ErrInvalidQuery},
	}
	c := testCompiler(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compile(tt.expr)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFilters(t *testing.T) {
	tests := []struct {
		name   string
		filter model.Filter
		want   fieldtype.Query
	}{
		{
			"bool cast",
			model.Filter{Field: "ca_objects.is_deaccessioned", Op: model.OpEq, Value: "1"},
			fieldtype.Query{"term": map[string]any{"ca_objects/is_deaccessioned.-b": true}},
		},
		{
			"set",
			model.Filter{Field: "ca_objects.description", Op: model.OpEq, Value: "[set]"},
			fieldtype.ExistsQuery("ca_objects/description"),
		},
		{
			"not blank",
			model.Filter{Field: "ca_objects.description", Op: model.OpNe, Value: "[blank]"},
			fieldtype.ExistsQuery("ca_objects/description"),
		},
		{
			"blank",
			model.Filter{Field: "ca_objects.description", Op: model.OpEq, Value: "[blank]"},
			fieldtype.Query{"bool": map[string]any{"must_not": []any{fieldtype.ExistsQuery("ca_objects/description")}}},
		},
		{
			"list in",
			model.Filter{Field: "ca_objects.material", Op: model.OpIn, Value: []any{"12", "13"}},
			fieldtype.Query{"terms": map[string]any{"ca_objects/material.-kw": []any{"12", "13"}}},
		},
		{
			"integer range",
			model.Filter{Field: "ca_objects.page_count", Op: model.OpGt, Value: 3},
			fieldtype.Query{"range": map[string]any{"ca_objects/page_count.-i": map[string]any{"gt": 3}}},
		},
		{
			"text not equal",
			model.Filter{Field: "ca_objects.description", Op: model.OpNe, Value: "x"},
			fieldtype.Query{"bool": map[string]any{"must_not": []any{
				fieldtype.Query{"term": map[string]any{"ca_objects/description.-s.sort": "x"}},
			}}},
		},
	}
	c := testCompiler(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Filters(model.Filters{tt.filter})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0])
		})
	}
}

func TestFilters_Invalid(t *testing.T) {
	_, err := testCompiler(t).Filters(model.Filters{{Field: "ca_objects.idno", Op: "~", Value: "x"}})
	assert.ErrorIs(t, err, model.ErrInvalidQuery)
}
