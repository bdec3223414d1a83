package itinerary

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"vessel-tracker/internal/geo"
	"vessel-tracker/internal/route"
	"vessel-tracker/internal/vessel"
)

var ErrNoRoute = errors.New("itinerary has no route geometry")

// File is the on-disk YAML layout of an itinerary.
type File struct {
	Vessel    VesselInfo        `yaml:"vessel"`
	Route     RouteSpec         `yaml:"route"`
	Waypoints []vessel.Waypoint `yaml:"waypoints" validate:"dive"`
}

type VesselInfo struct {
	MMSI      string     `yaml:"mmsi" json:"mmsi" validate:"omitempty,numeric,len=9"`
	Name      string     `yaml:"name" json:"name"`
	StartDate *time.Time `yaml:"start_date" json:"startDate,omitempty"`
}

// RouteSpec holds the route either as an encoded polyline or as [lon, lat] pairs.
type RouteSpec struct {
	Polyline    string       `yaml:"polyline"`
	Coordinates [][2]float64 `yaml:"coordinates"`
}

// Itinerary is the static reference data a tracker works against.
type Itinerary struct {
	Vessel    VesselInfo
	Route     *route.Route
	Waypoints []vessel.Waypoint
}

// LoadFile reads, validates and builds an itinerary. Waypoints are ordered by
// scheduled departure; the stop without a departure goes last.
func LoadFile(path string) (*Itinerary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Itinerary, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse itinerary: %w", err)
	}
	v := validator.New()
	if err := v.Struct(f); err != nil {
		return nil, fmt.Errorf("validate itinerary: %w", err)
	}
	for _, wp := range f.Waypoints {
		if wp.Timezone == "" {
			continue
		}
		if _, err := time.LoadLocation(wp.Timezone); err != nil {
			return nil, fmt.Errorf("waypoint %s: invalid timezone: %w", wp.ID, err)
		}
	}

	rt, err := f.Route.build()
	if err != nil {
		return nil, err
	}

	wps := append([]vessel.Waypoint(nil), f.Waypoints...)
	sort.SliceStable(wps, func(i, j int) bool {
		a, b := wps[i].Departure, wps[j].Departure
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return &Itinerary{Vessel: f.Vessel, Route: rt, Waypoints: wps}, nil
}

func (s RouteSpec) build() (*route.Route, error) {
	if s.Polyline != "" {
		return route.FromPolyline(s.Polyline)
	}
	if len(s.Coordinates) == 0 {
		return nil, ErrNoRoute
	}
	pts := make(geo.Path, len(s.Coordinates))
	for i, c := range s.Coordinates {
		pts[i] = geo.Point{Lon: c[0], Lat: c[1]}
	}
	return route.New(pts)
}

// Densified replaces the route with a densified copy; maxSegmentKm <= 0 is a no-op.
func (it *Itinerary) Densified(maxSegmentKm float64) (*Itinerary, error) {
	if maxSegmentKm <= 0 || it.Route == nil {
		return it, nil
	}
	rt, err := it.Route.Densify(maxSegmentKm)
	if err != nil {
		return nil, err
	}
	out := *it
	out.Route = rt
	return &out, nil
}
