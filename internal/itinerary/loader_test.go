package itinerary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleItinerary = `
vessel:
  mmsi: "352594000"
  name: MSC Magnifica
  start_date: 2026-01-05T12:45:11-05:00
route:
  coordinates:
    - [2.17, 41.352]
    - [5.3698, 43.2965]
    - [8.9463, 44.4056]
waypoints:
  - id: gen
    title: Genoa
    lat: 44.4056
    lon: 8.9463
    day: Day 3
    country: Italy
    flag: it
    timezone: Europe/Rome
  - id: mrs
    title: Marseille
    lat: 43.2965
    lon: 5.3698
    departure: 2026-01-07T18:00:00+01:00
    day: Day 2
    country: France
    flag: fr
    timezone: Europe/Paris
  - id: bcn
    title: Barcelona
    lat: 41.352
    lon: 2.17
    departure: 2026-01-06T17:00:00+01:00
    day: Day 1
    country: Spain
    flag: es
    timezone: Europe/Madrid
`

func TestParse(t *testing.T) {
	it, err := Parse([]byte(sampleItinerary))
	require.NoError(t, err)

	assert.Equal(t, "352594000", it.Vessel.MMSI)
	assert.Equal(t, "MSC Magnifica", it.Vessel.Name)
	require.NotNil(t, it.Vessel.StartDate)

	require.Equal(t, 3, it.Route.Len())
	assert.InDelta(t, 41.352, it.Route.Points()[0].Lat, 1e-9)
	assert.InDelta(t, 2.17, it.Route.Points()[0].Lon, 1e-9)

	require.Len(t, it.Waypoints, 3)
	ids := []string{it.Waypoints[0].ID, it.Waypoints[1].ID, it.Waypoints[2].ID}
	assert.Equal(t, []string{"bcn", "mrs", "gen"}, ids, "ordered by departure, open-ended stop last")
	assert.Nil(t, it.Waypoints[2].Departure)
}

func TestParsePolylineRoute(t *testing.T) {
	it, err := Parse([]byte(`
route:
  polyline: "_p~iF~ps|U_ulLnnqC_mqNvxq` + "`" + `@"
`))
	require.NoError(t, err)
	assert.Equal(t, 3, it.Route.Len())
	assert.Empty(t, it.Waypoints)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no route", "waypoints: []\n"},
		{"bad latitude", "route:\n  coordinates: [[0, 0], [1, 1]]\nwaypoints:\n  - {id: x, title: X, lat: 95, lon: 0}\n"},
		{"missing title", "route:\n  coordinates: [[0, 0], [1, 1]]\nwaypoints:\n  - {id: x, lat: 1, lon: 0}\n"},
		{"bad timezone", "route:\n  coordinates: [[0, 0], [1, 1]]\nwaypoints:\n  - {id: x, title: X, lat: 1, lon: 0, timezone: Mars/Olympus}\n"},
		{"bad mmsi", "vessel:\n  mmsi: abc\nroute:\n  coordinates: [[0, 0], [1, 1]]\n"},
		{"route out of range", "route:\n  coordinates: [[0, 0], [1, 100]]\n"},
		{"not yaml", "route: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("waypoints: []\n"))
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "itinerary.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleItinerary), 0o644))

	it, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, it.Waypoints, 3)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDensified(t *testing.T) {
	it, err := Parse([]byte(sampleItinerary))
	require.NoError(t, err)

	same, err := it.Densified(0)
	require.NoError(t, err)
	assert.Same(t, it, same)

	dense, err := it.Densified(20)
	require.NoError(t, err)
	assert.Greater(t, dense.Route.Len(), it.Route.Len())
	assert.InDelta(t, it.Route.Length(), dense.Route.Length(), 1e-6)
	assert.Equal(t, it.Waypoints, dense.Waypoints)
	assert.Equal(t, 3, it.Route.Len(), "original itinerary is untouched")
}
