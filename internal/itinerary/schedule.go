package itinerary

import (
	"math"
	"time"

	"vessel-tracker/internal/geo"
	"vessel-tracker/internal/vessel"
)

const (
	// AtWaypointRadiusMeters is the hard cutoff for "the vessel is at a waypoint".
	AtWaypointRadiusMeters = 1000.0
	// StaleAfter is how old the last fix must be before prediction is worth running.
	StaleAfter = 5 * time.Minute
)

// ClosestWaypoint returns the waypoint nearest to fix and its distance in
// meters. The first of equally distant waypoints wins; nil for an empty list.
func ClosestWaypoint(wps []vessel.Waypoint, fix vessel.Fix) (*vessel.Waypoint, float64) {
	pos := fix.Position()
	best := -1
	bestDist := math.Inf(1)
	for i := range wps {
		if d := geo.DistanceMeters(pos, wps[i].Position()); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return nil, 0
	}
	return &wps[best], bestDist
}

// IsAtWaypoint reports whether fix lies within AtWaypointRadiusMeters of any waypoint.
func IsAtWaypoint(wps []vessel.Waypoint, fix vessel.Fix) bool {
	return CurrentWaypoint(wps, fix) != nil
}

// CurrentWaypoint returns the waypoint the vessel is at, if any.
func CurrentWaypoint(wps []vessel.Waypoint, fix vessel.Fix) *vessel.Waypoint {
	wp, d := ClosestWaypoint(wps, fix)
	if wp == nil || d >= AtWaypointRadiusMeters {
		return nil
	}
	return wp
}

// NextWaypoint returns the first waypoint, in list order, scheduled to depart
// strictly after the fix was taken. Nil means the journey is complete.
func NextWaypoint(wps []vessel.Waypoint, fix vessel.Fix) *vessel.Waypoint {
	for i := range wps {
		if dep := wps[i].Departure; dep != nil && dep.After(fix.Timestamp) {
			return &wps[i]
		}
	}
	return nil
}

// ShouldPredict gates the predictor: there is nothing to predict while the
// vessel sits at a waypoint, or while the last fix is still fresh.
func ShouldPredict(wps []vessel.Waypoint, fix vessel.Fix, now time.Time) bool {
	if IsAtWaypoint(wps, fix) {
		return false
	}
	return now.Sub(fix.Timestamp) > StaleAfter
}
