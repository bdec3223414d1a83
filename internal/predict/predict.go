package predict

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"vessel-tracker/internal/geo"
	"vessel-tracker/internal/route"
	"vessel-tracker/internal/vessel"
)

const (
	KmPerNauticalMile = 1.852
	// one nautical mile is one minute of latitude
	nmPerDegree = 60.0
	// below this |cos(lat)| the fix is treated as polar and longitude is held
	polarCosEpsilon = 1e-9
)

var (
	ErrNoRoute     = errors.New("route-aware prediction needs a route")
	ErrUnknownMode = errors.New("unknown prediction mode")
)

type Mode string

const (
	ModeRoute         Mode = "route"
	ModeDeadReckoning Mode = "dead-reckoning"
)

// ParseMode accepts the configuration spelling of a strategy; empty selects
// the route-aware strategy.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "route", "route-aware":
		return ModeRoute, nil
	case "dead-reckoning", "deadreckoning", "dr":
		return ModeDeadReckoning, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Prediction is an advisory estimate derived from one source fix.
type Prediction struct {
	Mode   Mode
	Source vessel.Fix
	Fix    vessel.Fix // Predicted is always true
	// Path runs from the raw source position along the route to Fix.
	// Only the route-aware strategy sets it.
	Path       geo.Path
	DistanceKm float64
	StartArcKm float64
	EndArcKm   float64
}

// Strategy predicts where a vessel is now. A nil Prediction with a nil error
// means there is nothing to predict.
type Strategy interface {
	Mode() Mode
	Predict(fix vessel.Fix, now time.Time, rt *route.Route) (*Prediction, error)
}

func New(mode Mode) (Strategy, error) {
	switch mode {
	case ModeRoute:
		return RouteAware{}, nil
	case ModeDeadReckoning:
		return DeadReckoning{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// DeadReckoning extrapolates speed and course, ignoring the route.
type DeadReckoning struct{}

func (DeadReckoning) Mode() Mode { return ModeDeadReckoning }

func (DeadReckoning) Predict(fix vessel.Fix, now time.Time, _ *route.Route) (*Prediction, error) {
	pf, err := PredictPosition(fix, now)
	if err != nil {
		return nil, err
	}
	return &Prediction{
		Mode:       ModeDeadReckoning,
		Source:     fix,
		Fix:        pf,
		DistanceKm: distanceNm(fix, now) * KmPerNauticalMile,
	}, nil
}

// RouteAware advances the fix along the known route. Without a route it
// falls back to dead reckoning.
type RouteAware struct{}

func (RouteAware) Mode() Mode { return ModeRoute }

func (RouteAware) Predict(fix vessel.Fix, now time.Time, rt *route.Route) (*Prediction, error) {
	if rt.Len() == 0 {
		return DeadReckoning{}.Predict(fix, now, nil)
	}
	return PredictPath(fix, rt, now)
}

// elapsedHours clamps clock skew (now before the fix) to zero.
func elapsedHours(fix vessel.Fix, now time.Time) float64 {
	d := now.Sub(fix.Timestamp)
	if d <= 0 {
		return 0
	}
	return d.Hours()
}

func distanceNm(fix vessel.Fix, now time.Time) float64 {
	return fix.SpeedOverGround * elapsedHours(fix, now)
}

// PredictPosition is flat-earth dead reckoning: one nautical mile per minute
// of latitude, with the longitude step widened by 1/cos(latitude). At the
// poles the longitude is held; the result is clamped and wrapped into range.
func PredictPosition(fix vessel.Fix, now time.Time) (vessel.Fix, error) {
	if err := fix.Validate(); err != nil {
		return vessel.Fix{}, err
	}
	nm := distanceNm(fix, now)
	course := fix.CourseOverGround * math.Pi / 180

	lat := fix.Lat + nm*math.Cos(course)/nmPerDegree
	dLon := 0.0
	if c := math.Cos(fix.Lat * math.Pi / 180); math.Abs(c) > polarCosEpsilon {
		dLon = nm * math.Sin(course) / (nmPerDegree * c)
	}
	lat = math.Max(-90, math.Min(90, lat))
	lon := geo.NormalizeLon(fix.Lon + dLon)
	return predictedFix(fix, geo.Point{Lat: lat, Lon: lon}, now), nil
}

// PredictPath projects the fix onto rt and advances it by the dead-reckoned
// distance, never past the end of the route. It returns nil when the vessel
// has not moved (no elapsed time or zero speed).
func PredictPath(fix vessel.Fix, rt *route.Route, now time.Time) (*Prediction, error) {
	if err := fix.Validate(); err != nil {
		return nil, err
	}
	if rt.Len() == 0 {
		return nil, ErrNoRoute
	}
	distKm := distanceNm(fix, now) * KmPerNauticalMile
	if distKm <= 0 {
		return nil, nil
	}

	proj := rt.Nearest(fix.Position())
	start := proj.ArcLength
	end := math.Max(start, math.Min(start+distKm, rt.Length()))
	endPoint, course := rt.PointAt(end)

	path := append(geo.Path{fix.Position()}, rt.Slice(start, end)...)

	pf := predictedFix(fix, endPoint, now)
	if rt.Len() > 1 {
		pf.CourseOverGround = course
	}
	return &Prediction{
		Mode:       ModeRoute,
		Source:     fix,
		Fix:        pf,
		Path:       path,
		DistanceKm: end - start,
		StartArcKm: start,
		EndArcKm:   end,
	}, nil
}

func predictedFix(src vessel.Fix, p geo.Point, now time.Time) vessel.Fix {
	out := src
	out.ID = src.ID + vessel.PredictedIDSuffix
	out.Lat = p.Lat
	out.Lon = p.Lon
	out.Timestamp = now.UTC()
	out.Predicted = true
	return out
}
