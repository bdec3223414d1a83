package predict

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vessel-tracker/internal/geo"
	"vessel-tracker/internal/route"
	"vessel-tracker/internal/vessel"
)

var fixTime = time.Date(2026, 1, 6, 12, 0, 0, 0, time.UTC)

var kmPerDegree = geo.EarthRadiusKm * math.Pi / 180

func sampleFix(lat, lon, sog, cog float64) vessel.Fix {
	return vessel.Fix{
		ID:               "42",
		MMSI:             "352594000",
		Lat:              lat,
		Lon:              lon,
		Timestamp:        fixTime,
		NavigationStatus: vessel.UnderwayUsingEngine,
		SpeedOverGround:  sog,
		CourseOverGround: cog,
		Heading:          cog,
	}
}

func equatorRoute(t *testing.T) *route.Route {
	t.Helper()
	rt, err := route.New(geo.Path{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 10}})
	require.NoError(t, err)
	return rt
}

func TestPredictPositionDueNorth(t *testing.T) {
	fix := sampleFix(0, 0, 60, 0)
	pf, err := PredictPosition(fix, fixTime.Add(time.Hour))
	require.NoError(t, err)

	assert.InDelta(t, 1.0, pf.Lat, 1e-9)
	assert.InDelta(t, 0.0, pf.Lon, 1e-12)
	assert.True(t, pf.Predicted)
	assert.Equal(t, "42"+vessel.PredictedIDSuffix, pf.ID)
	assert.Equal(t, fixTime.Add(time.Hour), pf.Timestamp)
	assert.False(t, fix.Predicted, "source fix is never mutated")
}

func TestPredictPositionMeridianConvergence(t *testing.T) {
	fix := sampleFix(60, 10, 60, 90)
	pf, err := PredictPosition(fix, fixTime.Add(time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 60, pf.Lat, 1e-9)
	assert.InDelta(t, 12, pf.Lon, 1e-9, "one degree of arc spans two degrees of longitude at 60N")
}

func TestPredictPositionAntimeridian(t *testing.T) {
	fix := sampleFix(0, 179.9, 60, 90)
	pf, err := PredictPosition(fix, fixTime.Add(time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, -179.1, pf.Lon, 1e-9)
}

func TestPredictPositionPolar(t *testing.T) {
	pole := sampleFix(90, 25, 20, 90)
	pf, err := PredictPosition(pole, fixTime.Add(time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 25, pf.Lon, 1e-12, "longitude is held at the pole")
	assert.False(t, math.IsNaN(pf.Lat) || math.IsInf(pf.Lon, 0))

	nearPole := sampleFix(89.99, 0, 60, 0)
	pf, err = PredictPosition(nearPole, fixTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 90.0, pf.Lat, "latitude is clamped")
}

func TestPredictPositionClockSkew(t *testing.T) {
	fix := sampleFix(41.2, 2.9, 12.9, 89.3)
	pf, err := PredictPosition(fix, fixTime.Add(-2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, fix.Lat, pf.Lat)
	assert.Equal(t, fix.Lon, pf.Lon)
	assert.True(t, pf.Predicted)
}

func TestPredictPositionInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		fix  vessel.Fix
	}{
		{"nan latitude", sampleFix(math.NaN(), 0, 10, 0)},
		{"latitude out of range", sampleFix(91, 0, 10, 0)},
		{"longitude out of range", sampleFix(0, 181, 10, 0)},
		{"negative speed", sampleFix(0, 0, -1, 0)},
		{"nan course", sampleFix(0, 0, 10, math.NaN())},
		{"course 360", sampleFix(10, 10, 12, 360)},
		{"course above 360", sampleFix(10, 10, 12, 400)},
		{"negative course", sampleFix(10, 10, 12, -30)},
		{"infinite course", sampleFix(0, 0, 10, math.Inf(1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PredictPosition(tt.fix, fixTime.Add(time.Hour))
			assert.ErrorIs(t, err, vessel.ErrInvalidFix)

			_, err = PredictPath(tt.fix, equatorRoute(t), fixTime.Add(time.Hour))
			assert.ErrorIs(t, err, vessel.ErrInvalidFix)
		})
	}
}

func TestPredictPathAlongRoute(t *testing.T) {
	rt := equatorRoute(t)
	// slightly north of the route, heading east at 60 knots
	fix := sampleFix(0.01, 1, 60, 80)
	now := fixTime.Add(time.Hour)

	pred, err := PredictPath(fix, rt, now)
	require.NoError(t, err)
	require.NotNil(t, pred)

	wantKm := 60 * KmPerNauticalMile
	assert.Equal(t, ModeRoute, pred.Mode)
	assert.InDelta(t, kmPerDegree, pred.StartArcKm, 1e-6)
	assert.InDelta(t, wantKm, pred.DistanceKm, 1e-9)
	assert.InDelta(t, pred.StartArcKm+wantKm, pred.EndArcKm, 1e-9)

	assert.InDelta(t, 0, pred.Fix.Lat, 1e-9, "prediction stays on the route")
	assert.InDelta(t, 1+wantKm/kmPerDegree, pred.Fix.Lon, 1e-9)
	assert.InDelta(t, 90, pred.Fix.CourseOverGround, 1e-9, "course follows the route")
	assert.Equal(t, now, pred.Fix.Timestamp)
	assert.True(t, pred.Fix.Predicted)

	require.GreaterOrEqual(t, len(pred.Path), 3)
	assert.Equal(t, fix.Position(), pred.Path[0], "path starts at the raw fix")
	assert.InDelta(t, 0, pred.Path[1].Lat, 1e-9)
	assert.InDelta(t, 1, pred.Path[1].Lon, 1e-9)
	assert.Equal(t, pred.Fix.Position(), pred.Path[len(pred.Path)-1])
}

func TestPredictPathFollowsCorner(t *testing.T) {
	rt, err := route.New(geo.Path{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}})
	require.NoError(t, err)

	// 0.5 degrees before the corner, 1 degree to travel
	fix := sampleFix(0, 0.5, 60, 90)
	hours := kmPerDegree / KmPerNauticalMile / 60
	now := fixTime.Add(time.Duration(hours * float64(time.Hour)))

	pred, err := PredictPath(fix, rt, now)
	require.NoError(t, err)
	require.NotNil(t, pred)
	assert.InDelta(t, 0.5, pred.Fix.Lat, 1e-6)
	assert.InDelta(t, 1, pred.Fix.Lon, 1e-6)
	assert.Len(t, pred.Path, 4, "raw fix, projected start, corner, end")
	assert.Equal(t, geo.Point{Lat: 0, Lon: 1}, pred.Path[2])
}

func TestPredictPathClampsToRouteEnd(t *testing.T) {
	rt := equatorRoute(t)
	fix := sampleFix(0, 9.5, 20, 90)

	pred, err := PredictPath(fix, rt, fixTime.Add(24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, pred)
	assert.Equal(t, geo.Point{Lat: 0, Lon: 10}, pred.Fix.Position())
	assert.InDelta(t, rt.Length(), pred.EndArcKm, 1e-9)
	assert.InDelta(t, 0.5*kmPerDegree, pred.DistanceKm, 1e-6)
}

func TestPredictPathNoMovement(t *testing.T) {
	rt := equatorRoute(t)

	pred, err := PredictPath(sampleFix(0, 1, 0, 90), rt, fixTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, pred, "zero speed has nothing to predict")

	pred, err = PredictPath(sampleFix(0, 1, 12, 90), rt, fixTime)
	require.NoError(t, err)
	assert.Nil(t, pred, "no elapsed time has nothing to predict")

	pred, err = PredictPath(sampleFix(0, 1, 12, 90), rt, fixTime.Add(-time.Hour))
	require.NoError(t, err)
	assert.Nil(t, pred, "fix from the future is treated as no elapsed time")
}

func TestPredictPathDegenerateRoutes(t *testing.T) {
	fix := sampleFix(0, 1, 12, 90)
	now := fixTime.Add(time.Hour)

	_, err := PredictPath(fix, nil, now)
	assert.ErrorIs(t, err, ErrNoRoute)

	only := geo.Point{Lat: 0.5, Lon: 1.5}
	single, err := route.New(geo.Path{only})
	require.NoError(t, err)
	pred, err := PredictPath(fix, single, now)
	require.NoError(t, err)
	require.NotNil(t, pred)
	assert.Equal(t, only, pred.Fix.Position())
	assert.Equal(t, geo.Path{fix.Position(), only}, pred.Path)
	assert.Zero(t, pred.DistanceKm)
	assert.Equal(t, fix.CourseOverGround, pred.Fix.CourseOverGround)
}

func TestStrategies(t *testing.T) {
	rt := equatorRoute(t)
	fix := sampleFix(0.2, 1, 60, 45)
	now := fixTime.Add(time.Hour)

	ra, err := New(ModeRoute)
	require.NoError(t, err)
	pred, err := ra.Predict(fix, now, rt)
	require.NoError(t, err)
	require.NotNil(t, pred)
	assert.Equal(t, ModeRoute, pred.Mode)
	assert.NotEmpty(t, pred.Path)

	fallback, err := ra.Predict(fix, now, nil)
	require.NoError(t, err)
	require.NotNil(t, fallback)
	assert.Equal(t, ModeDeadReckoning, fallback.Mode, "no route falls back to dead reckoning")

	dr, err := New(ModeDeadReckoning)
	require.NoError(t, err)
	pred, err = dr.Predict(fix, now, rt)
	require.NoError(t, err)
	require.NotNil(t, pred)
	assert.Equal(t, ModeDeadReckoning, pred.Mode)
	assert.Nil(t, pred.Path)
	assert.InDelta(t, 60*KmPerNauticalMile, pred.DistanceKm, 1e-9)
	want, err := PredictPosition(fix, now)
	require.NoError(t, err)
	assert.Equal(t, want, pred.Fix)

	_, err = New("teleport")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeRoute, false},
		{"route", ModeRoute, false},
		{" Route-Aware ", ModeRoute, false},
		{"dead-reckoning", ModeDeadReckoning, false},
		{"DR", ModeDeadReckoning, false},
		{"straight-line", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownMode, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
