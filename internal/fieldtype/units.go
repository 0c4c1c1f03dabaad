package fieldtype

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidMeasurement is returned for quantity text that cannot be parsed.
var ErrInvalidMeasurement = errors.New("unparsable measurement")

// Conversion factors to kilograms.
var weightUnits = map[string]float64{
	"kg": 1, "kgs": 1, "kilo": 1, "kilos": 1, "kilogram": 1, "kilograms": 1,
	"g": 0.001, "gr": 0.001, "gram": 0.001, "grams": 0.001,
	"mg": 1e-6, "milligram": 1e-6, "milligrams": 1e-6,
	"t": 1000, "ton": 1000, "tons": 1000, "tonne": 1000, "tonnes": 1000,
	"lb": 0.45359237, "lbs": 0.45359237, "pound": 0.45359237, "pounds": 0.45359237, "#": 0.45359237,
	"oz": 0.028349523125, "ounce": 0.028349523125, "ounces": 0.028349523125,
	"st": 6.35029318, "stone": 6.35029318, "stones": 6.35029318,
}

// Conversion factors to metres.
var lengthUnits = map[string]float64{
	"m": 1, "meter": 1, "meters": 1, "metre": 1, "metres": 1,
	"cm": 0.01, "centimeter": 0.01, "centimeters": 0.01, "centimetre": 0.01, "centimetres": 0.01,
	"mm": 0.001, "millimeter": 0.001, "millimeters": 0.001, "millimetre": 0.001, "millimetres": 0.001,
	"km": 1000, "kilometer": 1000, "kilometers": 1000, "kilometre": 1000, "kilometres": 1000,
	"in": 0.0254, "inch": 0.0254, "inches": 0.0254, `"`: 0.0254, "″": 0.0254,
	"ft": 0.3048, "foot": 0.3048, "feet": 0.3048, "'": 0.3048, "′": 0.3048,
	"yd": 0.9144, "yard": 0.9144, "yards": 0.9144,
	"mi": 1609.344, "mile": 1609.344, "miles": 1609.344,
	"pt": 0.0254 / 72, "point": 0.0254 / 72, "points": 0.0254 / 72,
}

// Unit fractions written as a single rune.
var vulgarFractions = map[rune]float64{
	'½': 0.5, '⅓': 1.0 / 3, '⅔': 2.0 / 3, '¼': 0.25, '¾': 0.75,
	'⅛': 0.125, '⅜': 0.375, '⅝': 0.625, '⅞': 0.875,
}

// ParseWeight parses text such as "2.5 kg", "3 lb 4 oz" or "1/2 lb" into kilograms.
func ParseWeight(text string) (float64, error) {
	return parseQuantity(text, weightUnits)
}

// ParseLength parses text such as "12 cm", "5' 3\"" or "2 1/2 in" into metres.
func ParseLength(text string) (float64, error) {
	return parseQuantity(text, lengthUnits)
}

// RoundTo rounds f to the given number of decimals.
func RoundTo(f float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(f*p) / p
}

// parseQuantity sums "<number> <unit>" segments. Every number needs a unit.
func parseQuantity(text string, units map[string]float64) (float64, error) {
	rs := []rune(strings.TrimSpace(text))
	if len(rs) == 0 {
		return 0, ErrInvalidMeasurement
	}
	var total float64
	i := 0
	for i < len(rs) {
		i = skipSpace(rs, i)
		if i >= len(rs) {
			break
		}
		n, next, err := scanNumber(rs, i)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidMeasurement, text)
		}
		i = skipSpace(rs, next)
		unit, next := scanUnit(rs, i)
		factor, ok := units[unit]
		if !ok {
			return 0, fmt.Errorf("%w: unknown unit %q in %q", ErrInvalidMeasurement, unit, text)
		}
		total += n * factor
		i = next
		// separators between compound segments
		for i < len(rs) && (rs[i] == ',' || rs[i] == '+') {
			i++
		}
	}
	return total, nil
}

func skipSpace(rs []rune, i int) int {
	for i < len(rs) && unicode.IsSpace(rs[i]) {
		i++
	}
	return i
}

// scanNumber reads a decimal, a fraction ("1/2"), a mixed number ("2 1/2" or
// "2½") or a vulgar fraction starting at i.
func scanNumber(rs []rune, i int) (float64, int, error) {
	if f, ok := vulgarFractions[rs[i]]; ok {
		return f, i + 1, nil
	}
	whole, next, ok := scanDecimal(rs, i)
	if !ok {
		return 0, i, ErrInvalidMeasurement
	}
	if next < len(rs) && rs[next] == '/' {
		den, end, ok := scanDecimal(rs, next+1)
		if !ok || den == 0 {
			return 0, i, ErrInvalidMeasurement
		}
		return whole / den, end, nil
	}
	if next < len(rs) {
		if f, ok := vulgarFractions[rs[next]]; ok {
			return whole + f, next + 1, nil
		}
	}
	// mixed number: "2 1/2"
	j := skipSpace(rs, next)
	if j > next && j < len(rs) && unicode.IsDigit(rs[j]) {
		num, k, ok := scanDecimal(rs, j)
		if ok && k < len(rs) && rs[k] == '/' {
			den, end, ok := scanDecimal(rs, k+1)
			if ok && den != 0 {
				return whole + num/den, end, nil
			}
		}
	}
	return whole, next, nil
}

// scanDecimal reads digits with an optional fractional part. A lone comma is
// accepted as the decimal mark.
func scanDecimal(rs []rune, i int) (float64, int, bool) {
	start := i
	for i < len(rs) && unicode.IsDigit(rs[i]) {
		i++
	}
	if i < len(rs) && (rs[i] == '.' || rs[i] == ',') && i+1 < len(rs) && unicode.IsDigit(rs[i+1]) {
		i++
		for i < len(rs) && unicode.IsDigit(rs[i]) {
			i++
		}
	}
	if i == start {
		return 0, start, false
	}
	f, err := strconv.ParseFloat(strings.Replace(string(rs[start:i]), ",", ".", 1), 64)
	if err != nil {
		return 0, start, false
	}
	return f, i, true
}

func scanUnit(rs []rune, i int) (string, int) {
	if i < len(rs) {
		switch rs[i] {
		case '"', '\'', '″', '′', '#':
			return string(rs[i]), i + 1
		}
	}
	start := i
	for i < len(rs) && (unicode.IsLetter(rs[i]) || rs[i] == '.') {
		i++
	}
	return strings.TrimRight(strings.ToLower(string(rs[start:i])), "."), i
}

var (
	reClock     = regexp.MustCompile(`^(?:(\d+):)?(\d{1,2}):(\d{1,2}(?:\.\d+)?)$`)
	reDuration  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(hours?|hrs|hr|h|minutes?|mins|min|m|seconds?|secs|sec|s)`)
	reSeconds   = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
	reCurrency  = regexp.MustCompile(`^([A-Za-z]{3}|[$€£¥])?\s*(-?\d[\d,]*(?:\.\d+)?)\s*([A-Za-z]{3}|[$€£¥])?$`)
	reCoordPair = regexp.MustCompile(`^(-?\d+(?:\.\d+)?)\s*[, ]\s*(-?\d+(?:\.\d+)?)$`)
	reRadius    = regexp.MustCompile(`^(.+?)\s*~\s*(\d+(?:\.\d+)?)\s*(km|m|mi)?$`)
)

// ParseTimecode parses "hh:mm:ss", "mm:ss", "1h 30m 15s" or plain seconds into seconds.
func ParseTimecode(text string) (float64, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return 0, fmt.Errorf("%w: empty timecode", ErrInvalidMeasurement)
	}
	if reSeconds.MatchString(s) {
		return strconv.ParseFloat(s, 64)
	}
	if m := reClock.FindStringSubmatch(s); m != nil {
		var h float64
		if m[1] != "" {
			h, _ = strconv.ParseFloat(m[1], 64)
		}
		mi, _ := strconv.ParseFloat(m[2], 64)
		sec, _ := strconv.ParseFloat(m[3], 64)
		return h*3600 + mi*60 + sec, nil
	}
	matches := reDuration.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMeasurement, text)
	}
	var total float64
	for _, m := range matches {
		n, _ := strconv.ParseFloat(m[1], 64)
		switch m[2][0] {
		case 'h':
			total += n * 3600
		case 'm':
			total += n * 60
		default:
			total += n
		}
	}
	return total, nil
}

var currencySymbols = map[string]string{"$": "USD", "€": "EUR", "£": "GBP", "¥": "JPY"}

// Money is a parsed currency amount.
type Money struct {
	Amount float64
	Code   string
}

// ParseCurrency parses "USD 12.50", "12.50 EUR" or "$12.50".
func ParseCurrency(text string) (Money, error) {
	m := reCurrency.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil || (m[1] == "" && m[3] == "") || (m[1] != "" && m[3] != "") {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidMeasurement, text)
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidMeasurement, text)
	}
	code := m[1] + m[3]
	if c, ok := currencySymbols[code]; ok {
		code = c
	}
	return Money{Amount: amount, Code: strings.ToUpper(code)}, nil
}

// LatLon is a WGS84 coordinate.
type LatLon struct {
	Lat float64
	Lon float64
}

// lonLat returns the coordinate in GeoJSON order.
func (p LatLon) lonLat() []float64 {
	return []float64{p.Lon, p.Lat}
}

// ParseCoordinates parses one or more "lat,lon" points separated by ":" or ";".
// A bracketed part such as "Paris [48.85,2.35]" is preferred when present.
func ParseCoordinates(text string) ([]LatLon, error) {
	s := strings.TrimSpace(text)
	if open := strings.Index(s, "["); open >= 0 {
		if end := strings.Index(s[open:], "]"); end > 0 {
			s = s[open+1 : open+end]
		}
	}
	var points []LatLon
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ':' || r == ';' }) {
		part = strings.TrimSpace(part)
		if idx := strings.Index(part, "~"); idx >= 0 {
			part = strings.TrimSpace(part[:idx])
		}
		if part == "" {
			continue
		}
		p, err := parsePoint(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidMeasurement, text)
		}
		points = append(points, p)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMeasurement, text)
	}
	return points, nil
}

func parsePoint(s string) (LatLon, error) {
	m := reCoordPair.FindStringSubmatch(s)
	if m == nil {
		return LatLon{}, ErrInvalidMeasurement
	}
	lat, _ := strconv.ParseFloat(m[1], 64)
	lon, _ := strconv.ParseFloat(m[2], 64)
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return LatLon{}, ErrInvalidMeasurement
	}
	return LatLon{Lat: lat, Lon: lon}, nil
}

// BoundingBox is a lat/lon rectangle.
type BoundingBox struct {
	TopLeft     LatLon
	BottomRight LatLon
}

// boxFromCorners returns the box spanned by two arbitrary corners.
func boxFromCorners(a, b LatLon) BoundingBox {
	return BoundingBox{
		TopLeft:     LatLon{Lat: math.Max(a.Lat, b.Lat), Lon: math.Min(a.Lon, b.Lon)},
		BottomRight: LatLon{Lat: math.Min(a.Lat, b.Lat), Lon: math.Max(a.Lon, b.Lon)},
	}
}

const metresPerDegree = 111320.0

// ParseGISSearch parses a geographic search expression: "lat,lon to lat,lon"
// (a box), "lat,lon ~ 5km" (a radius, approximated by its box) or a single point.
func ParseGISSearch(text string) (BoundingBox, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	for _, sep := range []string{" to ", " - "} {
		if left, right, ok := strings.Cut(s, sep); ok {
			a, err := parsePoint(strings.TrimSpace(left))
			if err != nil {
				return BoundingBox{}, fmt.Errorf("%w: %q", ErrInvalidMeasurement, text)
			}
			b, err := parsePoint(strings.TrimSpace(right))
			if err != nil {
				return BoundingBox{}, fmt.Errorf("%w: %q", ErrInvalidMeasurement, text)
			}
			return boxFromCorners(a, b), nil
		}
	}

	radius := 0.0
	if m := reRadius.FindStringSubmatch(s); m != nil {
		s = m[1]
		radius, _ = strconv.ParseFloat(m[2], 64)
		switch m[3] {
		case "km":
			radius *= 1000
		case "mi":
			radius *= 1609.344
		}
	}
	p, err := parsePoint(s)
	if err != nil {
		return BoundingBox{}, fmt.Errorf("%w: %q", ErrInvalidMeasurement, text)
	}
	if radius == 0 {
		radius = 1
	}
	dLat := radius / metresPerDegree
	dLon := radius / (metresPerDegree * math.Max(math.Cos(p.Lat*math.Pi/180), 1e-6))
	return boxFromCorners(
		LatLon{Lat: math.Min(p.Lat+dLat, 90), Lon: math.Max(p.Lon-dLon, -180)},
		LatLon{Lat: math.Max(p.Lat-dLat, -90), Lon: math.Min(p.Lon+dLon, 180)},
	), nil
}
