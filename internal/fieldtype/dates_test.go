package fieldtype

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Interval
	}{
		{"year", "1950", Interval{"1950-01-01T00:00:00Z", "1950-12-31T23:59:59Z"}},
		{"decade", "1950s", Interval{"1950-01-01T00:00:00Z", "1959-12-31T23:59:59Z"}},
		{"century as decade form", "1900s", Interval{"1900-01-01T00:00:00Z", "1999-12-31T23:59:59Z"}},
		{"century", "20th century", Interval{"1901-01-01T00:00:00Z", "2000-12-31T23:59:59Z"}},
		{"year range", "1950 - 1960", Interval{"1950-01-01T00:00:00Z", "1960-12-31T23:59:59Z"}},
		{"year range without spaces", "1950-1960", Interval{"1950-01-01T00:00:00Z", "1960-12-31T23:59:59Z"}},
		{"month", "1950-05", Interval{"1950-05-01T00:00:00Z", "1950-05-31T23:59:59Z"}},
		{"day", "1950-05-03", Interval{"1950-05-03T00:00:00Z", "1950-05-03T23:59:59Z"}},
		{"text date", "March 5, 1950", Interval{"1950-03-05T00:00:00Z", "1950-03-05T23:59:59Z"}},
		{"bc year", "500 BC", Interval{"-0500-01-01T00:00:00Z", "-0500-12-31T23:59:59Z"}},
		{"circa", "circa 1920", Interval{"1920-01-01T00:00:00Z", "1920-12-31T23:59:59Z"}},
		{"to range", "1950-05-03 to 1951", Interval{"1950-05-03T00:00:00Z", "1951-12-31T23:59:59Z"}},
		{"before", "before 1950", Interval{"", "1949-12-31T23:59:59Z"}},
		{"after", "After 1950", Interval{"1951-01-01T00:00:00Z", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInterval(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInterval_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "not a date", "1960 - 1950", "1950-13"} {
		_, err := ParseInterval(input)
		assert.ErrorIs(t, err, ErrInvalidDate, input)
	}
}

func TestInterval_OpenBounds(t *testing.T) {
	iv := Interval{}
	assert.Equal(t, MinDate, iv.StartOrMin())
	assert.Equal(t, MaxDate, iv.EndOrMax())
}

func TestParseHistoric(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Interval
	}{
		{"single", "1950.0503120000", Interval{"1950-05-03T12:00:00Z", "1950-05-03T12:00:00Z"}},
		{"range", "1950.0101 - 1960.1231235959", Interval{"1950-01-01T00:00:00Z", "1960-12-31T23:59:59Z"}},
		{"zero month and day", "1950.0000", Interval{"1950-01-01T00:00:00Z", "1950-01-01T00:00:00Z"}},
		{"far future clamps", "2000000000.0", Interval{MaxDate, MaxDate}},
		{"far past clamps", "-2000000000.0", Interval{MinDate, MinDate}},
		{"text falls back", "1950", Interval{"1950-01-01T00:00:00Z", "1950-12-31T23:59:59Z"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHistoric(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatISO(t *testing.T) {
	assert.Equal(t, "0042-07-01T10:00:00Z", formatISO(time.Date(42, 7, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "-0044-03-15T00:00:00Z", formatISO(time.Date(-44, 3, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, MaxDate, formatISO(time.Date(12000, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, MinDate, formatISO(time.Date(-12000, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDateFilters(t *testing.T) {
	tests := []struct {
		input  string
		bounds map[string]any
	}{
		{"1950", map[string]any{"gte": "1950-01-01T00:00:00Z", "lte": "1950-12-31T23:59:59Z"}},
		{"# 1950", map[string]any{"gte": "1950-01-01T00:00:00Z", "lte": "1950-12-31T23:59:59Z"}},
		{"< 1950", map[string]any{"lt": "1950-01-01T00:00:00Z"}},
		{"<=1950", map[string]any{"lte": "1950-12-31T23:59:59Z"}},
		{"> 1950", map[string]any{"gt": "1950-12-31T23:59:59Z"}},
		{">= 1950", map[string]any{"gte": "1950-01-01T00:00:00Z"}},
		{"before 1950", map[string]any{"gte": MinDate, "lte": "1949-12-31T23:59:59Z"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			filters, err := dateFilters("f.-dtr", tt.input, false)
			require.NoError(t, err)
			require.Len(t, filters, 1)
			assert.Equal(t, Query{"range": map[string]any{"f.-dtr": tt.bounds}}, filters[0])
		})
	}

	_, err := dateFilters("f.-dtr", "<= sometime", false)
	assert.ErrorIs(t, err, ErrInvalidDate)
}
