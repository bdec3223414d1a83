package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusKm is the mean spherical Earth radius used for all distances.
const EarthRadiusKm = 6371.0

var ErrInvalidPoint = errors.New("invalid coordinate")

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Path is an ordered polyline. Consecutive points are joined by great-circle arcs.
type Path []Point

func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidPoint, p.Lat, p.Lon)
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: lat=%v lon=%v out of range", ErrInvalidPoint, p.Lat, p.Lon)
	}
	return nil
}

// Validate checks every point of the path.
func (p Path) Validate() error {
	for i, pt := range p {
		if err := pt.Validate(); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}
	return nil
}

// NormalizeLon wraps a longitude (or longitude delta) into [-180, 180].
func NormalizeLon(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

func toRad(d float64) float64 { return d * math.Pi / 180 }
func toDeg(r float64) float64 { return r * 180 / math.Pi }

// Distance returns the haversine great-circle distance in kilometers.
func Distance(a, b Point) float64 {
	if a == b {
		return 0
	}
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := lat2 - lat1
	dLon := toRad(NormalizeLon(b.Lon - a.Lon))
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	if h > 1 {
		h = 1
	}
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// DistanceMeters is Distance in meters.
func DistanceMeters(a, b Point) float64 {
	return Distance(a, b) * 1000
}

// InitialBearing returns the forward azimuth from a to b in degrees [0, 360).
func InitialBearing(a, b Point) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLon := toRad(NormalizeLon(b.Lon - a.Lon))
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return normalizeBearing(toDeg(math.Atan2(y, x)))
}

// FinalBearing returns the azimuth on arrival at b when travelling from a.
func FinalBearing(a, b Point) float64 {
	return normalizeBearing(InitialBearing(b, a) + 180)
}

func normalizeBearing(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
