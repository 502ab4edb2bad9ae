// Package journal stores labelled observations gathered on the device so the
// local model can later be adapted to them.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	models "github.com/MustardWombat/BitByteAI"
)

// ErrInvalidObservation indicates a non-finite feature value or label.
var ErrInvalidObservation = errors.New("journal: invalid observation")

// Observation is one recorded sample.
type Observation struct {
	ID         string            `json:"id"`
	RecordedAt time.Time         `json:"recorded_at"`
	Features   models.FeatureMap `json:"features"`
	Label      float64           `json:"label"`
}

// Store is a SQLite-backed observation journal.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS observations (
  id TEXT PRIMARY KEY,
  recorded_at INTEGER NOT NULL,
  day_of_week REAL NOT NULL DEFAULT 0,
  hour_of_day REAL NOT NULL DEFAULT 0,
  minute_of_hour REAL NOT NULL DEFAULT 0,
  device_activity REAL NOT NULL DEFAULT 0,
  device_battery_level REAL NOT NULL DEFAULT 0,
  label REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS observations_recorded_at ON observations(recorded_at);
`)
	return err
}

// Record stores features and label. Missing features are stored as 0.
func (s *Store) Record(ctx context.Context, features models.FeatureMap, label float64) (Observation, error) {
	row := features.Row()
	for i, v := range row {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Observation{}, fmt.Errorf("%w: %s is not finite", ErrInvalidObservation, models.FeatureNames[i])
		}
	}
	if math.IsNaN(label) || math.IsInf(label, 0) {
		return Observation{}, fmt.Errorf("%w: label is not finite", ErrInvalidObservation)
	}

	obs := Observation{
		ID:         uuid.NewString(),
		RecordedAt: s.now().UTC(),
		Features:   rowToMap(row),
		Label:      label,
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO observations(id, recorded_at, day_of_week, hour_of_day, minute_of_hour, device_activity, device_battery_level, label)
VALUES(?, ?, ?, ?, ?, ?, ?, ?);
`, obs.ID, obs.RecordedAt.UnixNano(), row[0], row[1], row[2], row[3], row[4], obs.Label)
	if err != nil {
		return Observation{}, err
	}
	return obs, nil
}

// List returns up to limit observations, newest first. A non-positive limit
// returns all of them.
func (s *Store) List(ctx context.Context, limit int) ([]Observation, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, recorded_at, day_of_week, hour_of_day, minute_of_hour, device_activity, device_battery_level, label
FROM observations ORDER BY recorded_at DESC, id LIMIT ?;
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		var (
			o  Observation
			ns int64
			r  = make([]float64, len(models.FeatureNames))
		)
		if err := rows.Scan(&o.ID, &ns, &r[0], &r[1], &r[2], &r[3], &r[4], &o.Label); err != nil {
			return nil, err
		}
		o.RecordedAt = time.Unix(0, ns).UTC()
		o.Features = rowToMap(r)
		out = append(out, o)
	}
	return out, rows.Err()
}

// TrainingSet returns all observations, oldest first, as ordered feature
// rows and labels ready for Manager.UpdateWithLocalData.
func (s *Store) TrainingSet(ctx context.Context) ([][]float64, []float64, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT day_of_week, hour_of_day, minute_of_hour, device_activity, device_battery_level, label
FROM observations ORDER BY recorded_at, id;
`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var (
		X [][]float64
		y []float64
	)
	for rows.Next() {
		r := make([]float64, len(models.FeatureNames))
		var label float64
		if err := rows.Scan(&r[0], &r[1], &r[2], &r[3], &r[4], &label); err != nil {
			return nil, nil, err
		}
		X = append(X, r)
		y = append(y, label)
	}
	return X, y, rows.Err()
}

// Count returns the number of stored observations.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM observations;").Scan(&n)
	return n, err
}

// Clear deletes every observation and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM observations;")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func rowToMap(row []float64) models.FeatureMap {
	m := make(models.FeatureMap, len(models.FeatureNames))
	for i, name := range models.FeatureNames {
		m[name] = row[i]
	}
	return m
}
