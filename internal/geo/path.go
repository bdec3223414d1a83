package geo

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var ErrInvalidSegmentLength = errors.New("max segment length must be positive and finite")

// Projection is the result of projecting a point onto a path.
type Projection struct {
	Point     Point   // closest point on the path
	ArcLength float64 // km from the path start to Point
	Distance  float64 // km from the query point to Point
	Segment   int     // index of the segment start vertex
}

// CumulativeDistances returns, for every vertex, the great-circle distance in
// km travelled along the path from its first point.
func CumulativeDistances(path Path) []float64 {
	n := len(path)
	if n == 0 {
		return nil
	}
	cum := make([]float64, n)
	sum := 0.0
	for i := 1; i < n; i++ {
		sum += Distance(path[i-1], path[i])
		cum[i] = sum
	}
	return cum
}

// PathLength is the total great-circle length of path in km.
func PathLength(path Path) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += Distance(path[i-1], path[i])
	}
	return total
}

// Densify inserts great-circle points so that no segment is longer than
// maxSegmentKm. Original points are kept in order. Segments whose endpoints
// are antipodal cannot be subdivided and are left as they are.
func Densify(path Path, maxSegmentKm float64) (Path, error) {
	if !(maxSegmentKm > 0) || math.IsInf(maxSegmentKm, 1) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSegmentLength, maxSegmentKm)
	}
	if len(path) < 2 {
		return append(Path(nil), path...), nil
	}
	out := make(Path, 0, len(path))
	out = append(out, path[0])
	for i := 1; i < len(path); i++ {
		a, b := path[i-1], path[i]
		if d := Distance(a, b); d > maxSegmentKm {
			n := int(math.Ceil(d / maxSegmentKm))
			out = append(out, InterpolateGreatCircle(a, b, n)...)
		}
		out = append(out, b)
	}
	return out, nil
}

// PointAtDistance returns the point lying arcKm along path and the course
// there. arcKm is clamped to the path. cum must come from
// CumulativeDistances(path); it is recomputed when it does not match.
func PointAtDistance(path Path, cum []float64, arcKm float64) (Point, float64) {
	n := len(path)
	if n == 0 {
		return Point{}, 0
	}
	if n == 1 {
		return path[0], 0
	}
	if len(cum) != n {
		cum = CumulativeDistances(path)
	}
	total := cum[n-1]
	if math.IsNaN(arcKm) || arcKm <= 0 {
		return path[0], InitialBearing(path[0], path[1])
	}
	if arcKm >= total {
		return path[n-1], FinalBearing(path[n-2], path[n-1])
	}
	i := sort.Search(n, func(i int) bool { return cum[i] >= arcKm })
	a, b := path[i-1], path[i]
	seg := cum[i] - cum[i-1]
	if seg <= 0 || cum[i] == arcKm {
		return b, FinalBearing(a, b)
	}
	p := Interpolate(a, b, (arcKm-cum[i-1])/seg)
	return p, InitialBearing(p, b)
}

// NearestPointOnPath projects p onto the closest point of path.
func NearestPointOnPath(path Path, p Point) Projection {
	return ProjectOntoPath(path, CumulativeDistances(path), p)
}

// ProjectOntoPath is NearestPointOnPath with precomputed cumulative distances.
// Each segment is projected exactly on the sphere; the first of several
// equally close candidates wins.
func ProjectOntoPath(path Path, cum []float64, p Point) Projection {
	n := len(path)
	switch n {
	case 0:
		return Projection{}
	case 1:
		return Projection{Point: path[0], Distance: Distance(p, path[0])}
	}
	if len(cum) != n {
		cum = CumulativeDistances(path)
	}
	pv := toVec(p)
	best := Projection{Distance: math.Inf(1)}
	for i := 1; i < n; i++ {
		a, b := path[i-1], path[i]
		f := segmentFraction(toVec(a), toVec(b), pv)
		var q Point
		switch {
		case f <= 0:
			q = a
		case f >= 1:
			q = b
		default:
			q = Interpolate(a, b, f)
		}
		if d := Distance(p, q); d < best.Distance {
			best = Projection{
				Point:     q,
				ArcLength: cum[i-1] + f*(cum[i]-cum[i-1]),
				Distance:  d,
				Segment:   i - 1,
			}
		}
	}
	return best
}

// SlicePath returns the part of path between two arc-length offsets (km).
func SlicePath(path Path, startKm, endKm float64) Path {
	return SliceMeasured(path, CumulativeDistances(path), startKm, endKm)
}

// SliceMeasured is SlicePath with precomputed cumulative distances. Offsets
// are clamped to the path and an inverted range collapses to its start. The
// result begins exactly at the point at startKm and ends exactly at the point
// at endKm; an empty range yields that single point.
func SliceMeasured(path Path, cum []float64, startKm, endKm float64) Path {
	n := len(path)
	if n == 0 {
		return nil
	}
	if n == 1 {
		return Path{path[0]}
	}
	if len(cum) != n {
		cum = CumulativeDistances(path)
	}
	total := cum[n-1]
	startKm = clamp(startKm, 0, total)
	endKm = clamp(endKm, 0, total)
	if endKm < startKm {
		endKm = startKm
	}
	start, _ := PointAtDistance(path, cum, startKm)
	if endKm == startKm {
		return Path{start}
	}
	out := Path{start}
	for i := 0; i < n; i++ {
		if cum[i] > startKm && cum[i] < endKm {
			out = append(out, path[i])
		}
	}
	end, _ := PointAtDistance(path, cum, endKm)
	return append(out, end)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
