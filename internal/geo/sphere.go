package geo

import "math"

// vec3 is a point on the unit sphere in earth-centered coordinates.
type vec3 [3]float64

// degenerate angle below which two unit vectors are treated as coincident
const epsAngle = 1e-12

func toVec(p Point) vec3 {
	lat, lon := toRad(p.Lat), toRad(p.Lon)
	return vec3{math.Cos(lat) * math.Cos(lon), math.Cos(lat) * math.Sin(lon), math.Sin(lat)}
}

func (v vec3) point() Point {
	lat := math.Atan2(v[2], math.Hypot(v[0], v[1]))
	lon := math.Atan2(v[1], v[0])
	return Point{Lat: toDeg(lat), Lon: NormalizeLon(toDeg(lon))}
}

func dot(a, b vec3) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

func cross(a, b vec3) vec3 {
	return vec3{a[1]*b[2] - a[2]*b[1], a[2]*b[0] - a[0]*b[2], a[0]*b[1] - a[1]*b[0]}
}

func (v vec3) norm() float64 { return math.Sqrt(dot(v, v)) }

func (v vec3) scale(s float64) vec3 { return vec3{v[0] * s, v[1] * s, v[2] * s} }

func (v vec3) add(w vec3) vec3 { return vec3{v[0] + w[0], v[1] + w[1], v[2] + w[2]} }

func (v vec3) sub(w vec3) vec3 { return vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]} }

// angle is the central angle between two unit vectors, stable for small and
// near-antipodal separations.
func angle(a, b vec3) float64 {
	return math.Atan2(cross(a, b).norm(), dot(a, b))
}

// slerp walks fraction f of the arc from a to b. It returns a unchanged when
// the arc is undefined (coincident or antipodal endpoints).
func slerp(a, b vec3, f float64) vec3 {
	theta := angle(a, b)
	s := math.Sin(theta)
	if theta < epsAngle || s < epsAngle {
		return a
	}
	wa := math.Sin((1-f)*theta) / s
	wb := math.Sin(f*theta) / s
	return a.scale(wa).add(b.scale(wb))
}

// Interpolate returns the point at fraction f (0..1) of the great-circle arc
// from a to b.
func Interpolate(a, b Point, f float64) Point {
	if f <= 0 || a == b {
		return a
	}
	if f >= 1 {
		return b
	}
	return slerp(toVec(a), toVec(b), f).point()
}

// InterpolateGreatCircle returns the n-1 evenly spaced interior points of the
// great-circle arc from a to b, endpoints excluded. The result is empty when
// n < 2 or when the arc is undefined (a == b, or a and b antipodal).
func InterpolateGreatCircle(a, b Point, n int) []Point {
	if n < 2 || a == b {
		return nil
	}
	va, vb := toVec(a), toVec(b)
	theta := angle(va, vb)
	if theta < epsAngle || math.Sin(theta) < epsAngle {
		return nil
	}
	out := make([]Point, 0, n-1)
	for i := 1; i < n; i++ {
		out = append(out, slerp(va, vb, float64(i)/float64(n)).point())
	}
	return out
}

// segmentFraction projects p onto the great-circle segment a-b and returns
// the arc fraction of the foot point, clamped to the nearer endpoint when the
// foot falls outside the segment.
func segmentFraction(a, b, p vec3) float64 {
	theta := angle(a, b)
	if theta < epsAngle {
		return 0
	}
	n := cross(a, b)
	nn := n.norm()
	if nn < epsAngle {
		// antipodal endpoints: no unique great circle
		if angle(p, a) <= angle(p, b) {
			return 0
		}
		return 1
	}
	n = n.scale(1 / nn)
	foot := p.sub(n.scale(dot(p, n)))
	fn := foot.norm()
	if fn < epsAngle {
		// p is a pole of the segment's great circle; all points are equidistant
		return 0
	}
	foot = foot.scale(1 / fn)
	along := math.Atan2(dot(cross(a, foot), n), dot(a, foot))
	if along >= 0 && along <= theta {
		return along / theta
	}
	if angle(p, a) <= angle(p, b) {
		return 0
	}
	return 1
}
