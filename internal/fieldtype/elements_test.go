package fieldtype

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/searchsync/internal/metrics"
)

func TestElements_Encode(t *testing.T) {
	r := testRegistry(t, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		field   string
		content any
		opts    Options
		want    Fragment
	}{
		{"generic", "description", "A small vase", Options{},
			Fragment{"ca_objects/description": {"-s": "A small vase"}}},
		{"generic dont tokenize", "description", "A small vase", Options{DontTokenize: true},
			Fragment{"ca_objects/description": {"-kw": "A small vase"}}},
		{"url", "website", "https://example.org/a", Options{},
			Fragment{"ca_objects/website": {"-kw": "https://example.org/a"}}},
		{"weight", "dimensions_weight", "2 lb", Options{},
			Fragment{"ca_objects/dimensions_weight": {"-f": 0.907185}}},
		{"length", "dimensions_length", "12 in", Options{},
			Fragment{"ca_objects/dimensions_length": {"-f": 0.3048}}},
		{"timecode", "runtime", "1h 30m", Options{},
			Fragment{"ca_objects/runtime": {"-f": 5400.0}}},
		{"numeric", "ratio", "3.5", Options{},
			Fragment{"ca_objects/ratio": {"-f": 3.5}}},
		{"numeric text kept as text", "ratio", "n/a", Options{},
			Fragment{"ca_objects/ratio": {"-s": "n/a"}}},
		{"integer truncates", "page_count", "7.9", Options{},
			Fragment{"ca_objects/page_count": {"-i": int64(7)}}},
		{"currency", "price", "USD 12.50", Options{},
			Fragment{"ca_objects/price": {"-currency": 12.5, "-s": "USD"}}},
		{"currency falls back to text", "price", "priceless", Options{},
			Fragment{"ca_objects/price": {"-s": "priceless"}}},
		{"date range", "dates_value", "1950s", Options{},
			Fragment{"ca_objects/dates_value": {
				"-s":   "1950s",
				"-dtr": map[string]any{"gte": "1950-01-01T00:00:00Z", "lte": "1959-12-31T23:59:59Z"},
			}}},
		{"date range text only", "dates_value", "undated", Options{},
			Fragment{"ca_objects/dates_value": {"-s": "undated"}}},
		{"geo point", "georeference", "48.85,2.35", Options{},
			Fragment{"ca_objects/georeference": {
				"-s":  "48.85,2.35",
				"-gp": map[string]any{"type": "Point", "coordinates": []float64{2.35, 48.85}},
			}}},
		{"geo polygon is closed", "georeference", "0,0:0,1;1,1", Options{},
			Fragment{"ca_objects/georeference": {
				"-s": "0,0:0,1;1,1",
				"-gs": map[string]any{"type": "Polygon", "coordinates": [][][]float64{{
					{0, 0}, {1, 0}, {1, 1}, {0, 0},
				}}},
			}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := mustGet(t, r, "ca_objects", tt.field)
			assert.Equal(t, tt.want, ft.Encode(ctx, tt.content, tt.opts))
		})
	}
}

func TestElements_EncodeEmpty(t *testing.T) {
	r := testRegistry(t, nil)
	ctx := context.Background()

	for _, code := range []string{"description", "dimensions_weight", "ratio", "price", "georeference", "dates_value"} {
		assert.Empty(t, mustGet(t, r, "ca_objects", code).Encode(ctx, "", Options{}), code)
	}
}

func TestMeasurement_EncodeFailureIsCounted(t *testing.T) {
	r := testRegistry(t, nil)
	before := testutil.ToFloat64(metrics.EncodingFailures.WithLabelValues("weight"))

	frag := mustGet(t, r, "ca_objects", "dimensions_weight").Encode(context.Background(), "heavy", Options{})

	assert.Empty(t, frag)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.EncodingFailures.WithLabelValues("weight")))
}

func TestMeasurement_UnparsableTermLogsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := NewRegistry(&Env{Schema: testSchema(t), Logger: logger})

	for _, name := range []string{"dimensions_weight", "dimensions_length", "runtime"} {
		buf.Reset()
		term, err := mustGet(t, r, "ca_objects", name).RewriteTerm(NewTerm("", "heavy"))
		require.NoError(t, err)
		require.NotNil(t, term)
		assert.Equal(t, "heavy", term.Text)
		assert.Contains(t, buf.String(), "level=DEBUG", name)
		assert.NotContains(t, buf.String(), "level=WARN", name)
	}
}

func TestElements_RewriteTerm(t *testing.T) {
	r := testRegistry(t, nil)

	tests := []struct {
		name  string
		field string
		term  Term
		want  *Term
	}{
		{"weight normalized", "dimensions_weight", NewTerm("", "500 g"),
			&Term{Field: "ca_objects/dimensions_weight.-f", Text: "0.5"}},
		{"weight unparsable unchanged", "dimensions_weight", NewTerm("ca_objects/dimensions_weight", "heavy"),
			&Term{Field: "ca_objects/dimensions_weight", Text: "heavy"}},
		{"currency", "price", NewTerm("", "$12"),
			&Term{Field: "ca_objects/price.-currency", Text: "12"}},
		{"numeric", "ratio", NewTerm("", "2.50"),
			&Term{Field: "ca_objects/ratio.-f", Text: "2.5"}},
		{"geocode dropped", "georeference", NewTerm("", "48.85,2.35"), nil},
		{"geocode existence kept", "georeference", NewTerm("", "[set]"),
			&Term{Field: "ca_objects/georeference", Existence: ExistsSet}},
		{"generic wildcard", "description", Term{Text: "va*", Quoted: true},
			&Term{Field: "ca_objects/description.-s", Also: []string{"ca_objects/description.-kw"}, Text: "va*"}},
		{"date range text", "dates_value", NewTerm("", "[blank]"),
			&Term{Field: "ca_objects/dates_value", Existence: ExistsBlank}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mustGet(t, r, "ca_objects", tt.field).RewriteTerm(tt.term)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCurrency_AdditionalTermsAndRange(t *testing.T) {
	r := testRegistry(t, nil)
	ft := mustGet(t, r, "ca_objects", "price")

	extra := ft.(AdditionalTermer).AdditionalTerms(NewTerm("", "EUR 5"))
	assert.Equal(t, []Term{{Field: "ca_objects/price.-s", Text: "EUR"}}, extra)
	assert.Nil(t, ft.(AdditionalTermer).AdditionalTerms(NewTerm("", "cheap")))

	q, err := ft.(RangeFilterer).RangeFilter(NewTerm("", "EUR 5"), NewTerm("", "EUR 10"))
	require.NoError(t, err)
	assert.Equal(t, Query{"bool": map[string]any{"filter": []Query{
		{"range": map[string]any{"ca_objects/price.-currency": map[string]any{"gte": 5.0, "lte": 10.0}}},
		{"match": map[string]any{"ca_objects/price.-s": "EUR"}},
	}}}, q)

	_, err = ft.(RangeFilterer).RangeFilter(NewTerm("", "EUR 5"), NewTerm("", "USD 10"))
	assert.ErrorIs(t, err, ErrInvalidMeasurement)
}

func TestMeasurement_RangeFilter(t *testing.T) {
	r := testRegistry(t, nil)
	ft := mustGet(t, r, "ca_objects", "dimensions_length").(RangeFilterer)

	q, err := ft.RangeFilter(NewTerm("", "10 cm"), NewTerm("", "*"))
	require.NoError(t, err)
	assert.Equal(t, Query{"range": map[string]any{"ca_objects/dimensions_length.-f": map[string]any{"gte": 0.1}}}, q)
}

func TestDateRange_Filters(t *testing.T) {
	r := testRegistry(t, nil)
	ft := mustGet(t, r, "ca_objects", "dates_value")

	filters, ok, err := ft.(TermFilterer).TermFilters(NewTerm("", "< 1900"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []Query{{"range": map[string]any{
		"ca_objects/dates_value.-dtr": map[string]any{"lt": "1900-01-01T00:00:00Z"},
	}}}, filters)

	_, _, err = ft.(TermFilterer).TermFilters(NewTerm("", "someday"))
	assert.ErrorIs(t, err, ErrInvalidDate)

	q, err := ft.(RangeFilterer).RangeFilter(NewTerm("", "1950"), NewTerm("", "1960"))
	require.NoError(t, err)
	assert.Equal(t, Query{"range": map[string]any{"ca_objects/dates_value.-dtr": map[string]any{
		"gte": "1950-01-01T00:00:00Z", "lte": "1960-12-31T23:59:59Z",
	}}}, q)
}

func TestGeocode_Filters(t *testing.T) {
	r := testRegistry(t, nil)
	ft := mustGet(t, r, "ca_objects", "georeference")

	filters, ok, err := ft.(TermFilterer).TermFilters(NewTerm("", "10,20 to 0,30"))
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, filters, 1)
	should := filters[0]["bool"].(map[string]any)["should"].([]Query)
	require.Len(t, should, 2)
	assert.Equal(t, map[string]any{
		"ca_objects/georeference.-gs": map[string]any{
			"shape": map[string]any{
				"type":        "envelope",
				"coordinates": [][]float64{{20, 10}, {30, 0}},
			},
		},
	}, should[1]["geo_shape"])

	_, ok, _ = ft.(TermFilterer).TermFilters(NewTerm("", "[blank]"))
	assert.False(t, ok)

	_, err = ft.(RangeFilterer).RangeFilter(NewTerm("", "north"), NewTerm("", "0,0"))
	assert.Error(t, err)
}

func TestListItem(t *testing.T) {
	vocab := new(MockVocabulary)
	vocab.On("Label", mock.Anything, "materials", "12").Return("Bronze", nil)
	vocab.On("Label", mock.Anything, "materials", "99").Return("", errors.New("no such item"))
	r := testRegistry(t, vocab)
	ft := mustGet(t, r, "ca_objects", "material")
	ctx := context.Background()

	assert.Equal(t, Fragment{"ca_objects/material": {"-kw": "12", "-s": "Bronze"}}, ft.Encode(ctx, "12", Options{}))
	assert.Equal(t, Fragment{"ca_objects/material": {"-kw": "99", "-s": "99"}}, ft.Encode(ctx, "99", Options{}))
	assert.Equal(t, "ca_objects/material.-s.sort", ft.SortField())
	vocab.AssertExpectations(t)
}

func TestChangeLogFields(t *testing.T) {
	r := testRegistry(t, nil)
	ctx := context.Background()

	created := r.ChangeLog("created")
	assert.Equal(t, "changeLog/created", created.Key())
	assert.Equal(t, Fragment{"changeLog/created": {"-dt": "2024-01-02T03:04:05Z"}},
		created.Encode(ctx, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), Options{}))
	assert.Equal(t, Fragment{"changeLog/created": {"-dt": "1970-01-01T00:01:00Z"}},
		created.Encode(ctx, int64(60), Options{}))
	assert.Empty(t, created.Encode(ctx, time.Time{}, Options{}))
	assert.Same(t, created, r.ChangeLog("created"))

	filters, ok, err := created.(TermFilterer).TermFilters(NewTerm("", ">= 2024-01-01"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []Query{{"range": map[string]any{
		"changeLog/created.-dt": map[string]any{"gte": "2024-01-01T00:00:00Z"},
	}}}, filters)

	user := r.ChangeLog("modified_by")
	assert.Equal(t, Fragment{"changeLog/modified_by": {"-s": "admin"}}, user.Encode(ctx, "admin", Options{}))
}
