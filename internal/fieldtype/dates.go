package fieldtype

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Bounds substituted for open-ended ranges.
const (
	MinDate = "-9999-01-01T00:00:00Z"
	MaxDate = "9999-12-31T23:59:59Z"
)

const maxYear = 9999

// ErrInvalidDate is returned when date text cannot be understood. It is user facing.
var ErrInvalidDate = errors.New("unparsable date")

// DateFormatsURL documents the date expressions searches accept.
const DateFormatsURL = "https://providence.readthedocs.io/en/latest/dataModelling/metadata/dateTime.html"

// DateError is an unparsable date in a search filter.
type DateError struct {
	Text  string
	Field string
	Err   error
}

func (e *DateError) Error() string {
	return fmt.Sprintf("unable to parse valid date %q for filter %q, see %s for valid formats", e.Text, e.Field, DateFormatsURL)
}

func (e *DateError) Unwrap() error {
	return e.Err
}

// WithDateContext attaches the offending text and field to date errors and
// returns other errors unchanged.
func WithDateContext(err error, field, text string) error {
	var de *DateError
	if !errors.Is(err, ErrInvalidDate) || errors.As(err, &de) {
		return err
	}
	return &DateError{Text: text, Field: field, Err: err}
}

// Interval is a parsed date expression as ISO-8601 bounds. An empty bound is open.
type Interval struct {
	Start string
	End   string
}

// StartOrMin returns the start bound, or MinDate when open.
func (iv Interval) StartOrMin() string {
	if iv.Start == "" {
		return MinDate
	}
	return iv.Start
}

// EndOrMax returns the end bound, or MaxDate when open.
func (iv Interval) EndOrMax() string {
	if iv.End == "" {
		return MaxDate
	}
	return iv.End
}

var (
	reYearRange = regexp.MustCompile(`^(\d{3,4})\s*[-–]\s*(\d{3,4})$`)
	reDecade    = regexp.MustCompile(`^(\d{2,3}0)'?s$`)
	reCentury   = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)\s+century(?:\s+(bc|bce|ad|ce))?$`)
	reYear      = regexp.MustCompile(`^(-?\d{1,4})(?:\s*(bc|bce|ad|ce))?$`)
	reYearMonth = regexp.MustCompile(`^(-?\d{1,4})-(\d{1,2})$`)
	reDay       = regexp.MustCompile(`^(-?\d{1,4})-(\d{1,2})-(\d{1,2})$`)
	reUnix      = regexp.MustCompile(`^\d{9,}$`)
	reHistoric  = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)
	reQualifier = regexp.MustCompile(`^(<=|>=|<|>|#)\s*(.+)$`)
)

var rangeSeparators = []string{" - ", " – ", " to ", " until ", " through ", "/"}

var circaPrefixes = []string{"circa ", "ca. ", "c. ", "about "}

// ParseInterval parses free-form date text: single dates, years, decades,
// centuries, explicit ranges and "before"/"after" open ranges.
func ParseInterval(text string) (Interval, error) {
	s := strings.TrimSpace(text)
	l := lowerSameLength(s)
	if s == "" {
		return Interval{}, ErrInvalidDate
	}

	if strings.HasPrefix(l, "before ") {
		start, _, err := parseExpression(s[len("before "):])
		if err != nil {
			return Interval{}, err
		}
		return Interval{End: formatISO(start.Add(-time.Second))}, nil
	}
	if strings.HasPrefix(l, "after ") {
		_, end, err := parseExpression(s[len("after "):])
		if err != nil {
			return Interval{}, err
		}
		return Interval{Start: formatISO(end.Add(time.Second))}, nil
	}

	if m := reYearRange.FindStringSubmatch(l); m != nil {
		from, _ := strconv.Atoi(m[1])
		to, _ := strconv.Atoi(m[2])
		if from <= to {
			return interval(yearStart(from), yearEnd(to)), nil
		}
	}

	for _, sep := range rangeSeparators {
		idx := strings.Index(l, sep)
		if idx < 0 {
			continue
		}
		if sep == "/" && (strings.Count(l, "/") != 1 || idx < 4) {
			continue
		}
		start, _, err := parseExpression(s[:idx])
		if err != nil {
			continue
		}
		_, end, err := parseExpression(s[idx+len(sep):])
		if err != nil {
			continue
		}
		if end.Before(start) {
			return Interval{}, fmt.Errorf("%w: range ends before it starts: %q", ErrInvalidDate, text)
		}
		return interval(start, end), nil
	}

	start, end, err := parseExpression(s)
	if err != nil {
		return Interval{}, err
	}
	return interval(start, end), nil
}

// lowerSameLength lowercases s when that keeps byte offsets stable, so that
// matches found in the lowered text can slice the original.
func lowerSameLength(s string) string {
	l := strings.ToLower(s)
	if len(l) != len(s) {
		return s
	}
	return l
}

// parseExpression parses a single date expression into its first and last second.
func parseExpression(s string) (time.Time, time.Time, error) {
	s = strings.TrimSpace(s)
	l := lowerSameLength(s)
	for _, p := range circaPrefixes {
		if strings.HasPrefix(l, p) {
			s, l = strings.TrimSpace(s[len(p):]), strings.TrimSpace(l[len(p):])
		}
	}
	if s == "" {
		return time.Time{}, time.Time{}, ErrInvalidDate
	}

	switch l {
	case "now", "today", "present":
		now := time.Now().UTC()
		d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return d, dayEnd(d), nil
	}

	if m := reDecade.FindStringSubmatch(l); m != nil {
		y, _ := strconv.Atoi(m[1])
		if y%100 == 0 {
			return yearStart(y), yearEnd(y + 99), nil
		}
		return yearStart(y), yearEnd(y + 9), nil
	}
	if m := reCentury.FindStringSubmatch(l); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n == 0 {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		if m[2] == "bc" || m[2] == "bce" {
			return yearStart(-n * 100), yearEnd(-(n-1)*100 - 1), nil
		}
		return yearStart((n-1)*100 + 1), yearEnd(n * 100), nil
	}
	if m := reYear.FindStringSubmatch(l); m != nil {
		y, _ := strconv.Atoi(m[1])
		if m[2] == "bc" || m[2] == "bce" {
			y = -y
		}
		return yearStart(y), yearEnd(y), nil
	}
	if m := reYearMonth.FindStringSubmatch(l); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		if mo < 1 || mo > 12 {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		start := time.Date(y, time.Month(mo), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0).Add(-time.Second), nil
	}
	if m := reDay.FindStringSubmatch(l); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		start := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
		if start.Month() != time.Month(mo) || start.Day() != d {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		return start, dayEnd(start), nil
	}
	if reUnix.MatchString(l) {
		if sec, err := strconv.ParseInt(l, 10, 64); err == nil {
			t := time.Unix(sec, 0).UTC()
			return t, t, nil
		}
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	t = t.UTC()
	if strings.Contains(s, ":") {
		return t, t, nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return d, dayEnd(d), nil
}

// ParseHistoric parses historic date values. Stored historic values are floats of
// the form YYYY.MMDDhhmmss, optionally paired as "start - end"; anything else is
// treated as free-form date text.
func ParseHistoric(text string) (Interval, error) {
	s := strings.TrimSpace(text)
	if reHistoric.MatchString(s) && strings.Contains(s, ".") {
		v := decodeHistoric(s)
		return Interval{Start: v, End: v}, nil
	}
	for _, sep := range []string{" - ", "/"} {
		left, right, ok := strings.Cut(s, sep)
		if !ok {
			continue
		}
		left, right = strings.TrimSpace(left), strings.TrimSpace(right)
		if reHistoric.MatchString(left) && reHistoric.MatchString(right) {
			return Interval{Start: decodeHistoric(left), End: decodeHistoric(right)}, nil
		}
	}
	return ParseInterval(s)
}

// decodeHistoric converts a YYYY.MMDDhhmmss value to ISO-8601, clamping to the
// supported year range.
func decodeHistoric(s string) string {
	whole, frac, _ := strings.Cut(s, ".")
	year, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return MinDate
	}
	if year > maxYear {
		return MaxDate
	}
	if year < -maxYear {
		return MinDate
	}
	if len(frac) < 10 {
		frac += strings.Repeat("0", 10-len(frac))
	}
	part := func(i int) int {
		n, _ := strconv.Atoi(frac[i : i+2])
		return n
	}
	month, day := max(part(0), 1), max(part(2), 1)
	t := time.Date(int(year), time.Month(min(month, 12)), 1, min(part(4), 23), min(part(6), 59), min(part(8), 59), 0, time.UTC)
	last := t.AddDate(0, 1, -1).Day()
	t = t.AddDate(0, 0, min(day, last)-1)
	return formatISO(t)
}

func interval(start, end time.Time) Interval {
	return Interval{Start: formatISO(start), End: formatISO(end)}
}

func yearStart(y int) time.Time {
	return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func yearEnd(y int) time.Time {
	return time.Date(y, time.December, 31, 23, 59, 59, 0, time.UTC)
}

func dayEnd(d time.Time) time.Time {
	return d.Add(24*time.Hour - time.Second)
}

// formatISO formats t as ISO-8601 in UTC, keeping signed four-digit years and
// clamping to MinDate and MaxDate.
func formatISO(t time.Time) string {
	t = t.UTC()
	y := t.Year()
	switch {
	case y > maxYear:
		return MaxDate
	case y < -maxYear:
		return MinDate
	}
	sign := ""
	if y < 0 {
		sign = "-"
		y = -y
	}
	return fmt.Sprintf("%s%04d-%02d-%02dT%02d:%02d:%02dZ", sign, y, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// dateRangeFragment stores the raw text next to the parsed range. Text that is not
// a date keeps only the raw value.
func (b base) dateRangeFragment(content any, historic bool) Fragment {
	text := strings.TrimSpace(toText(content))
	if text == "" {
		return nil
	}
	parse := ParseInterval
	if historic {
		parse = ParseHistoric
	}
	vals := Values{SuffixText.Name(): text}
	iv, err := parse(text)
	if err != nil {
		b.log.Debug("Date value not parsable, indexing text only", "value", text, "error", err)
		return Fragment{b.Key(): vals}
	}
	vals[SuffixDateRange.Name()] = map[string]any{
		"gte": iv.StartOrMin(),
		"lte": iv.EndOrMax(),
	}
	return Fragment{b.Key(): vals}
}

// dateFilters turns a date term, optionally prefixed by one of the qualifiers
// "<", "<=", ">", ">=" or "#", into range filters on path.
func dateFilters(path, text string, historic bool) ([]Query, error) {
	text = strings.TrimSpace(text)
	qualifier := "#"
	if m := reQualifier.FindStringSubmatch(text); m != nil {
		qualifier, text = m[1], m[2]
	}
	parse := ParseInterval
	if historic {
		parse = ParseHistoric
	}
	iv, err := parse(text)
	if err != nil {
		return nil, err
	}
	start, end := iv.StartOrMin(), iv.EndOrMax()

	var bounds map[string]any
	switch qualifier {
	case "<":
		bounds = map[string]any{"lt": start}
	case "<=":
		bounds = map[string]any{"lte": end}
	case ">":
		bounds = map[string]any{"gt": end}
	case ">=":
		bounds = map[string]any{"gte": start}
	default:
		bounds = map[string]any{"gte": start, "lte": end}
	}
	return []Query{{"range": map[string]any{path: bounds}}}, nil
}
