package route

import (
	"errors"
	"fmt"

	"github.com/twpayne/go-polyline"

	"vessel-tracker/internal/geo"
)

var ErrEmptyPolyline = errors.New("encoded polyline is empty")

// Route is an immutable planned path with precomputed arc lengths.
type Route struct {
	points geo.Path
	cum    []float64
}

// New builds a Route from ordered points. The slice is copied.
func New(points geo.Path) (*Route, error) {
	if err := points.Validate(); err != nil {
		return nil, fmt.Errorf("route: %w", err)
	}
	pts := append(geo.Path(nil), points...)
	return &Route{points: pts, cum: geo.CumulativeDistances(pts)}, nil
}

// FromPolyline decodes a Google encoded polyline (precision 1e5).
func FromPolyline(encoded string) (*Route, error) {
	if encoded == "" {
		return nil, ErrEmptyPolyline
	}
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}
	pts := make(geo.Path, len(coords))
	for i, c := range coords {
		pts[i] = geo.Point{Lat: c[0], Lon: c[1]}
	}
	return New(pts)
}

// Polyline encodes the route as a Google encoded polyline.
func (r *Route) Polyline() string {
	coords := make([][]float64, len(r.points))
	for i, p := range r.points {
		coords[i] = []float64{p.Lat, p.Lon}
	}
	return string(polyline.EncodeCoords(coords))
}

// Points returns a copy of the route geometry.
func (r *Route) Points() geo.Path {
	if r == nil {
		return nil
	}
	return append(geo.Path(nil), r.points...)
}

func (r *Route) Len() int {
	if r == nil {
		return 0
	}
	return len(r.points)
}

// Length is the total route length in km.
func (r *Route) Length() float64 {
	if r.Len() == 0 {
		return 0
	}
	return r.cum[len(r.cum)-1]
}

// Nearest projects p onto the route.
func (r *Route) Nearest(p geo.Point) geo.Projection {
	if r.Len() == 0 {
		return geo.Projection{}
	}
	return geo.ProjectOntoPath(r.points, r.cum, p)
}

// PointAt returns the point arcKm along the route and the course there.
func (r *Route) PointAt(arcKm float64) (geo.Point, float64) {
	if r.Len() == 0 {
		return geo.Point{}, 0
	}
	return geo.PointAtDistance(r.points, r.cum, arcKm)
}

// Slice returns the route geometry between two arc-length offsets in km.
func (r *Route) Slice(startKm, endKm float64) geo.Path {
	if r.Len() == 0 {
		return nil
	}
	return geo.SliceMeasured(r.points, r.cum, startKm, endKm)
}

// Densify returns a new Route whose segments are at most maxSegmentKm long.
func (r *Route) Densify(maxSegmentKm float64) (*Route, error) {
	pts, err := geo.Densify(r.Points(), maxSegmentKm)
	if err != nil {
		return nil, fmt.Errorf("densify route: %w", err)
	}
	return &Route{points: pts, cum: geo.CumulativeDistances(pts)}, nil
}
