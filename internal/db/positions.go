package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"vessel-tracker/internal/vessel"
)

var ErrNoPosition = errors.New("no position found")

const positionColumns = `id, mmsi, latitude, longitude, timestamp, navigation_status,
       speed_over_ground, course_over_ground, heading`

// Store persists raw AIS fixes in the positions table.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Ping(ctx context.Context) error { return Ping(ctx, s.db) }

// EnsureSchema creates the positions table and its index when missing and
// adds columns introduced after the first release.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS positions (
  id                 BIGSERIAL PRIMARY KEY,
  mmsi               TEXT NOT NULL,
  latitude           DOUBLE PRECISION NOT NULL,
  longitude          DOUBLE PRECISION NOT NULL,
  timestamp          TIMESTAMPTZ NOT NULL,
  navigation_status  INTEGER NOT NULL DEFAULT 15,
  speed_over_ground  DOUBLE PRECISION NOT NULL,
  course_over_ground DOUBLE PRECISION NOT NULL,
  heading            DOUBLE PRECISION NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS positions_mmsi_timestamp_idx ON positions (mmsi, timestamp DESC)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure positions schema: %w", err)
		}
	}
	cols, err := hasColumns(ctx, s.db, "public", "positions", "created_at")
	if err != nil {
		return fmt.Errorf("introspect positions columns: %w", err)
	}
	if !cols["created_at"] {
		if _, err := s.db.ExecContext(ctx, `ALTER TABLE positions ADD COLUMN created_at TIMESTAMPTZ NOT NULL DEFAULT now()`); err != nil {
			return fmt.Errorf("add positions.created_at: %w", err)
		}
	}
	return nil
}

// InsertFix stores fix and returns it with the database id assigned.
func (s *Store) InsertFix(ctx context.Context, fix vessel.Fix) (vessel.Fix, error) {
	q := `INSERT INTO positions (mmsi, latitude, longitude, timestamp, navigation_status,
                       speed_over_ground, course_over_ground, heading)
      VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
      RETURNING id`
	var id int64
	err := s.db.QueryRowContext(ctx, q,
		fix.MMSI, fix.Lat, fix.Lon, fix.Timestamp.UTC(), int(fix.NavigationStatus),
		fix.SpeedOverGround, fix.CourseOverGround, fix.Heading,
	).Scan(&id)
	if err != nil {
		return vessel.Fix{}, fmt.Errorf("insert position: %w", err)
	}
	fix.ID = strconv.FormatInt(id, 10)
	return fix, nil
}

// LatestFix returns the newest stored fix for mmsi, or ErrNoPosition.
func (s *Store) LatestFix(ctx context.Context, mmsi string) (vessel.Fix, error) {
	q := `SELECT ` + positionColumns + `
FROM positions WHERE mmsi = $1
ORDER BY timestamp DESC, id DESC
LIMIT 1`
	fix, err := scanFix(s.db.QueryRowContext(ctx, q, mmsi))
	if errors.Is(err, sql.ErrNoRows) {
		return vessel.Fix{}, ErrNoPosition
	}
	if err != nil {
		return vessel.Fix{}, fmt.Errorf("query latest position: %w", err)
	}
	return fix, nil
}

// FixesInRange returns fixes for mmsi newest first. A zero from or to leaves
// that side of the range open.
func (s *Store) FixesInRange(ctx context.Context, mmsi string, from, to time.Time) ([]vessel.Fix, error) {
	q := `SELECT ` + positionColumns + `
FROM positions
WHERE mmsi = $1
  AND ($2::timestamptz IS NULL OR timestamp >= $2)
  AND ($3::timestamptz IS NULL OR timestamp <= $3)
ORDER BY timestamp DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, q, mmsi, nullTime(from), nullTime(to))
	if err != nil {
		return nil, fmt.Errorf("query positions in range: %w", err)
	}
	return collectFixes(rows)
}

// FixesSince returns fixes for mmsi at or after since, oldest first.
func (s *Store) FixesSince(ctx context.Context, mmsi string, since time.Time) ([]vessel.Fix, error) {
	q := `SELECT ` + positionColumns + `
FROM positions
WHERE mmsi = $1 AND timestamp >= $2
ORDER BY timestamp ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, q, mmsi, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query positions since: %w", err)
	}
	return collectFixes(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFix(r rowScanner) (vessel.Fix, error) {
	var (
		f      vessel.Fix
		id     int64
		status int
	)
	if err := r.Scan(&id, &f.MMSI, &f.Lat, &f.Lon, &f.Timestamp, &status,
		&f.SpeedOverGround, &f.CourseOverGround, &f.Heading); err != nil {
		return vessel.Fix{}, err
	}
	f.ID = strconv.FormatInt(id, 10)
	f.Timestamp = f.Timestamp.UTC()
	f.NavigationStatus = vessel.ParseNavigationStatus(status)
	return f, nil
}

func collectFixes(rows *sql.Rows) ([]vessel.Fix, error) {
	defer rows.Close()
	var out []vessel.Fix
	for rows.Next() {
		f, err := scanFix(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
