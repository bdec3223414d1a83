package db

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vessel-tracker/internal/vessel"
)

func TestNullTime(t *testing.T) {
	assert.False(t, nullTime(time.Time{}).Valid)

	local := time.Date(2026, 1, 6, 13, 0, 0, 0, time.FixedZone("CET", 3600))
	nt := nullTime(local)
	assert.True(t, nt.Valid)
	assert.Equal(t, time.UTC, nt.Time.Location())
	assert.True(t, nt.Time.Equal(local))
}

// openTestStore connects to TEST_DATABASE_URL; the test is skipped without it.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	sqlDB, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, Ping(context.Background(), sqlDB))

	s := NewStore(sqlDB)
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mmsi := fmt.Sprintf("9%08d", time.Now().UnixNano()%1e8)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(context.Background(), `DELETE FROM positions WHERE mmsi = $1`, mmsi)
	})

	_, err := s.LatestFix(ctx, mmsi)
	assert.ErrorIs(t, err, ErrNoPosition)

	base := time.Date(2026, 1, 6, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		f, err := s.InsertFix(ctx, vessel.Fix{
			MMSI:             mmsi,
			Lat:              41 + float64(i)*0.1,
			Lon:              2.9,
			Timestamp:        base.Add(time.Duration(i) * time.Minute),
			NavigationStatus: vessel.UnderwayUsingEngine,
			SpeedOverGround:  12.5,
			CourseOverGround: 88,
			Heading:          vessel.HeadingNotAvailable,
		})
		require.NoError(t, err)
		require.NotEmpty(t, f.ID)
		ids = append(ids, f.ID)
	}

	latest, err := s.LatestFix(ctx, mmsi)
	require.NoError(t, err)
	assert.Equal(t, ids[2], latest.ID)
	assert.Equal(t, base.Add(2*time.Minute), latest.Timestamp)
	assert.InDelta(t, vessel.HeadingNotAvailable, latest.Heading, 0)

	newest, err := s.FixesInRange(ctx, mmsi, base.Add(time.Minute), time.Time{})
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, ids[2], newest[0].ID)

	oldest, err := s.FixesSince(ctx, mmsi, base)
	require.NoError(t, err)
	require.Len(t, oldest, 3)
	assert.Equal(t, ids[0], oldest[0].ID)
}
