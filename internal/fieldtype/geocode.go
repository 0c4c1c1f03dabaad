package fieldtype

import (
	"context"
	"strings"

	"github.com/syntrixbase/searchsync/internal/metrics"
)

// Geocode stores a single coordinate as a geo point and several as a shape:
// a line for two points, a closed polygon for more.
type Geocode struct {
	base
}

// NewGeocode returns the geocode encoder.
func NewGeocode(env *Env, table, name string) *Geocode {
	return &Geocode{base: newBase(env, table, name, "geocode")}
}

func (g *Geocode) Encode(ctx context.Context, content any, opts Options) Fragment {
	text := strings.TrimSpace(toText(content))
	if text == "" {
		return nil
	}
	vals := Values{SuffixText.Name(): text}
	points, err := ParseCoordinates(text)
	if err != nil {
		g.log.Warn("Could not parse coordinates, indexing text only", "value", text, "error", err)
		metrics.EncodingFailures.WithLabelValues("geocode").Inc()
		return Fragment{g.Key(): vals}
	}

	switch len(points) {
	case 1:
		vals[SuffixGeoPoint.Name()] = map[string]any{
			"type":        "Point",
			"coordinates": points[0].lonLat(),
		}
	case 2:
		vals[SuffixGeoShape.Name()] = map[string]any{
			"type":        "LineString",
			"coordinates": [][]float64{points[0].lonLat(), points[1].lonLat()},
		}
	default:
		ring := make([][]float64, 0, len(points)+1)
		for _, p := range points {
			ring = append(ring, p.lonLat())
		}
		if points[0] != points[len(points)-1] {
			ring = append(ring, points[0].lonLat())
		}
		vals[SuffixGeoShape.Name()] = map[string]any{
			"type":        "Polygon",
			"coordinates": [][][]float64{ring},
		}
	}
	return Fragment{g.Key(): vals}
}

// RewriteTerm keeps only existence checks; coordinates are matched by filters.
func (g *Geocode) RewriteTerm(term Term) (*Term, error) {
	if ex, ok := g.existence(term); ok {
		return ex, nil
	}
	return nil, nil
}

// TermFilters parses a geographic search expression into a box filter.
func (g *Geocode) TermFilters(term Term) ([]Query, bool, error) {
	if term.Existence != ExistsAny {
		return nil, false, nil
	}
	box, err := ParseGISSearch(term.Text)
	if err != nil {
		return nil, true, err
	}
	return []Query{g.boxQuery(box)}, true, nil
}

// RangeFilter treats the bounds as opposite corners of a box.
func (g *Geocode) RangeFilter(lower, upper Term) (Query, error) {
	a, err := parsePoint(strings.TrimSpace(lower.Text))
	if err != nil {
		return nil, err
	}
	b, err := parsePoint(strings.TrimSpace(upper.Text))
	if err != nil {
		return nil, err
	}
	return g.boxQuery(boxFromCorners(a, b)), nil
}

// boxQuery matches points inside the box and shapes intersecting it.
func (g *Geocode) boxQuery(box BoundingBox) Query {
	return Query{"bool": map[string]any{
		"should": []Query{
			{"geo_bounding_box": map[string]any{
				SuffixGeoPoint.Path(g.Key()): map[string]any{
					"top_left":     map[string]float64{"lat": box.TopLeft.Lat, "lon": box.TopLeft.Lon},
					"bottom_right": map[string]float64{"lat": box.BottomRight.Lat, "lon": box.BottomRight.Lon},
				},
			}},
			{"geo_shape": map[string]any{
				SuffixGeoShape.Path(g.Key()): map[string]any{
					"shape": map[string]any{
						"type":        "envelope",
						"coordinates": [][]float64{box.TopLeft.lonLat(), box.BottomRight.lonLat()},
					},
				},
			}},
		},
		"minimum_should_match": 1,
	}}
}

func (g *Geocode) SortField() string {
	return ""
}
