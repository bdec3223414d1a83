package itinerary

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vessel-tracker/internal/geo"
	"vessel-tracker/internal/vessel"
)

func at(hhmm string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", "2026-01-06 "+hhmm)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(t time.Time) *time.Time { return &t }

func ports() []vessel.Waypoint {
	return []vessel.Waypoint{
		{ID: "bcn", Title: "Barcelona", Lat: 41.3520, Lon: 2.1700, Departure: ptr(at("10:00"))},
		{ID: "mrs", Title: "Marseille", Lat: 43.2965, Lon: 5.3698, Departure: ptr(at("14:00"))},
		{ID: "gen", Title: "Genoa", Lat: 44.4056, Lon: 8.9463},
	}
}

// offsetNorth returns a fix the given number of meters due north of p.
func offsetNorth(p geo.Point, meters float64, ts time.Time) vessel.Fix {
	dLat := meters / 1000 / (geo.EarthRadiusKm * math.Pi / 180)
	return vessel.Fix{ID: "1", Lat: p.Lat + dLat, Lon: p.Lon, Timestamp: ts, SpeedOverGround: 12}
}

func TestIsAtWaypoint(t *testing.T) {
	wps := ports()

	exact := vessel.Fix{Lat: wps[1].Lat, Lon: wps[1].Lon, Timestamp: at("11:00")}
	assert.True(t, IsAtWaypoint(wps, exact))

	near := offsetNorth(wps[1].Position(), 900, at("11:00"))
	assert.True(t, IsAtWaypoint(wps, near))

	away := offsetNorth(wps[1].Position(), 2000, at("11:00"))
	assert.False(t, IsAtWaypoint(wps, away))

	assert.False(t, IsAtWaypoint(nil, exact), "no waypoints means never at one")
}

func TestClosestWaypoint(t *testing.T) {
	wps := ports()

	wp, d := ClosestWaypoint(wps, offsetNorth(wps[2].Position(), 5000, at("11:00")))
	require.NotNil(t, wp)
	assert.Equal(t, "gen", wp.ID)
	assert.InDelta(t, 5000, d, 1)

	wp, _ = ClosestWaypoint(nil, vessel.Fix{})
	assert.Nil(t, wp)
}

func TestClosestWaypointTieKeepsInputOrder(t *testing.T) {
	wps := []vessel.Waypoint{
		{ID: "first", Lat: 0, Lon: 1},
		{ID: "second", Lat: 0, Lon: -1},
	}
	wp, _ := ClosestWaypoint(wps, vessel.Fix{Lat: 0, Lon: 0})
	require.NotNil(t, wp)
	assert.Equal(t, "first", wp.ID)
}

func TestCurrentWaypoint(t *testing.T) {
	wps := ports()
	wp := CurrentWaypoint(wps, offsetNorth(wps[0].Position(), 500, at("09:00")))
	require.NotNil(t, wp)
	assert.Equal(t, "bcn", wp.ID)

	assert.Nil(t, CurrentWaypoint(wps, offsetNorth(wps[0].Position(), 1001, at("09:00"))))
}

func TestNextWaypoint(t *testing.T) {
	wps := ports()

	tests := []struct {
		name string
		ts   time.Time
		want string
	}{
		{"before first departure", at("08:00"), "bcn"},
		{"between departures", at("11:00"), "mrs"},
		{"exactly at departure", at("10:00"), "mrs"},
		{"after last departure", at("15:00"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wp := NextWaypoint(wps, vessel.Fix{Timestamp: tt.ts})
			if tt.want == "" {
				assert.Nil(t, wp)
				return
			}
			require.NotNil(t, wp)
			assert.Equal(t, tt.want, wp.ID)
		})
	}

	assert.Nil(t, NextWaypoint(nil, vessel.Fix{Timestamp: at("08:00")}))
}

func TestShouldPredict(t *testing.T) {
	wps := ports()
	fixTime := at("12:00")
	atSea := offsetNorth(wps[0].Position(), 50000, fixTime)

	assert.False(t, ShouldPredict(wps, atSea, fixTime.Add(4*time.Minute)), "fix is still fresh")
	assert.False(t, ShouldPredict(wps, atSea, fixTime.Add(5*time.Minute)), "threshold is exclusive")
	assert.True(t, ShouldPredict(wps, atSea, fixTime.Add(6*time.Minute)))

	docked := offsetNorth(wps[0].Position(), 100, fixTime)
	assert.False(t, ShouldPredict(wps, docked, fixTime.Add(time.Hour)), "no prediction while at a waypoint")

	assert.True(t, ShouldPredict(nil, atSea, fixTime.Add(6*time.Minute)))
}
