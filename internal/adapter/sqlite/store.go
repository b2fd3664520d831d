package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/metar-etl-service/internal/metar"
)

const schema = `
CREATE TABLE IF NOT EXISTS observations (
	station         TEXT PRIMARY KEY,
	id              TEXT NOT NULL,
	observed_at     TEXT NOT NULL,
	flight_category TEXT NOT NULL DEFAULT '',
	payload         TEXT NOT NULL
)`

const upsert = `
INSERT INTO observations (station, id, observed_at, flight_category, payload)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(station) DO UPDATE SET
	id = excluded.id,
	observed_at = excluded.observed_at,
	flight_category = excluded.flight_category,
	payload = excluded.payload`

// Store keeps the most recent decoded observation per station.
// It implements pipeline.BatchLoader.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (creating if needed) the SQLite database at path.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// :memory: databases exist per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}

	logger.Info("sqlite store opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Name identifies the sink in logs and metrics.
func (s *Store) Name() string { return "sqlite" }

// LoadBatch upserts each observation in one transaction. A newer event for a
// station always replaces the stored one.
func (s *Store) LoadBatch(ctx context.Context, events []metar.OutputEvent) (err error) {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsert)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		var obs metar.Observation
		if err = json.Unmarshal(ev.Value, &obs); err != nil {
			return fmt.Errorf("decode observation %s: %w", ev.Key, err)
		}
		if _, err = stmt.ExecContext(ctx,
			obs.Station,
			obs.ID,
			ev.Headers[metar.HeaderObservedAt],
			obs.FlightCategory,
			string(ev.Value),
		); err != nil {
			return fmt.Errorf("upsert %s: %w", obs.Station, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Latest returns the stored observation for station, or metar.ErrStationNotFound.
func (s *Store) Latest(ctx context.Context, station string) (metar.Observation, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM observations WHERE station = ?`, station).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return metar.Observation{}, fmt.Errorf("%w: %s", metar.ErrStationNotFound, station)
	}
	if err != nil {
		return metar.Observation{}, fmt.Errorf("query latest %s: %w", station, err)
	}

	var obs metar.Observation
	if err := json.Unmarshal([]byte(payload), &obs); err != nil {
		return metar.Observation{}, fmt.Errorf("decode stored observation %s: %w", station, err)
	}
	return obs, nil
}

// Stations lists the stations with a stored observation, sorted.
func (s *Store) Stations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT station FROM observations ORDER BY station`)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var station string
		if err := rows.Scan(&station); err != nil {
			return nil, err
		}
		out = append(out, station)
	}
	return out, rows.Err()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
