package vessel

import (
	"errors"
	"fmt"
	"math"
	"time"

	"vessel-tracker/internal/geo"
)

// PredictedIDSuffix is appended to a source fix ID to name its prediction.
const PredictedIDSuffix = "-predicted"

// HeadingNotAvailable is the AIS sentinel for an unknown true heading.
const HeadingNotAvailable = 511

var ErrInvalidFix = errors.New("invalid fix")

// Fix is a single reported vessel state.
type Fix struct {
	ID               string           `json:"id"`
	MMSI             string           `json:"mmsi"`
	Lat              float64          `json:"latitude"`
	Lon              float64          `json:"longitude"`
	Timestamp        time.Time        `json:"timestamp"` // UTC
	NavigationStatus NavigationStatus `json:"navigationStatus"`
	SpeedOverGround  float64          `json:"speedOverGround"`  // knots
	CourseOverGround float64          `json:"courseOverGround"` // degrees true
	Heading          float64          `json:"heading"`          // degrees true
	Predicted        bool             `json:"predicted"`
}

func (f Fix) Position() geo.Point { return geo.Point{Lat: f.Lat, Lon: f.Lon} }

// Validate rejects fixes that indicate an upstream data-quality problem.
func (f Fix) Validate() error {
	if err := f.Position().Validate(); err != nil {
		return fmt.Errorf("%w %s: %w", ErrInvalidFix, f.ID, err)
	}
	if math.IsNaN(f.SpeedOverGround) || math.IsInf(f.SpeedOverGround, 0) || f.SpeedOverGround < 0 {
		return fmt.Errorf("%w %s: speed over ground %v", ErrInvalidFix, f.ID, f.SpeedOverGround)
	}
	if math.IsNaN(f.CourseOverGround) || f.CourseOverGround < 0 || f.CourseOverGround >= 360 {
		return fmt.Errorf("%w %s: course over ground %v", ErrInvalidFix, f.ID, f.CourseOverGround)
	}
	if f.Timestamp.IsZero() {
		return fmt.Errorf("%w %s: missing timestamp", ErrInvalidFix, f.ID)
	}
	return nil
}

// Waypoint is a scheduled stop on the itinerary.
type Waypoint struct {
	ID        string     `json:"id" yaml:"id" validate:"required"`
	Title     string     `json:"title" yaml:"title" validate:"required"`
	Lat       float64    `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lon       float64    `json:"lon" yaml:"lon" validate:"gte=-180,lte=180"`
	Departure *time.Time `json:"departure,omitempty" yaml:"departure"` // nil for the final stop
	Day       string     `json:"day,omitempty" yaml:"day"`
	Country   string     `json:"country,omitempty" yaml:"country"`
	Flag      string     `json:"flag,omitempty" yaml:"flag"`
	Timezone  string     `json:"timezone,omitempty" yaml:"timezone"`
}

func (w Waypoint) Position() geo.Point { return geo.Point{Lat: w.Lat, Lon: w.Lon} }
