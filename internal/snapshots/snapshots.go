// Package snapshots provides the DuckDB-backed history store for
// per-category traffic snapshots. The detector only reads; rows are
// appended by the external collectors at a fixed cadence.
package snapshots

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/streampulse/detector/internal/models"
)

// Key identifies a (platform, category) pair across query results.
type Key struct {
	Platform string
	Category string
}

// CurrentRow is one category's measurement at the newest tick.
type CurrentRow struct {
	Platform     string
	CategoryName string
	Viewers      int
	OpenLives    int
	TopStreamers []models.StreamerSample
}

// TrailingStats aggregates a (platform, category) over the trailing
// short-term window: the median viewer count plus the earliest row's
// values, which stand in for "one hour ago".
type TrailingStats struct {
	MedianViewers        float64
	EarliestViewers      int
	EarliestOpenLives    int
	EarliestTopStreamers []models.StreamerSample
}

// Store wraps a DuckDB database holding the snapshot history.
type Store struct {
	db *sql.DB
}

// New opens or creates the DuckDB database at dbPath. An empty dbPath
// opens an in-memory database.
func New(dbPath string) (*Store, error) {
	if dbPath != "" {
		if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create snapshot schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS traffic_category_snapshot (
			ts_utc               TIMESTAMP NOT NULL,
			platform             VARCHAR NOT NULL,
			category_id          VARCHAR NOT NULL,
			category_name        VARCHAR NOT NULL,
			viewers              INTEGER NOT NULL,
			open_lives           INTEGER NOT NULL,
			top_streamers_detail VARCHAR NOT NULL
		)`)
	return err
}

// Insert appends a batch of snapshots.
func (s *Store) Insert(batch []models.Snapshot) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT INTO traffic_category_snapshot
			(ts_utc, platform, category_id, category_name, viewers, open_lives, top_streamers_detail)
		VALUES (?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, snap := range batch {
		_, err := stmt.Exec(
			snap.TS, snap.Platform, snap.CategoryID, snap.CategoryName,
			snap.Viewers, snap.OpenLives,
			models.EncodeStreamerDetail(snap.TopStreamers),
		)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}
	}
	return tx.Commit()
}

// LatestTimestamp returns the newest snapshot instant. ok is false
// when the store holds no data yet.
func (s *Store) LatestTimestamp() (ts time.Time, ok bool, err error) {
	var latest sql.NullTime
	row := s.db.QueryRow(`SELECT MAX(ts_utc) FROM traffic_category_snapshot`)
	if err := row.Scan(&latest); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query latest timestamp: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	return latest.Time, true, nil
}

// Current returns every category row at ts with at least minViewers
// viewers. Categories below the cutoff are too small to reason about.
func (s *Store) Current(ts time.Time, minViewers int) ([]CurrentRow, error) {
	rows, err := s.db.Query(`
		SELECT platform, category_name, viewers, open_lives, top_streamers_detail
		FROM traffic_category_snapshot
		WHERE ts_utc = ? AND viewers >= ?
		ORDER BY platform, category_name`, ts, minViewers)
	if err != nil {
		return nil, fmt.Errorf("failed to query current snapshots: %w", err)
	}
	defer rows.Close()

	var out []CurrentRow
	for rows.Next() {
		var r CurrentRow
		var detail string
		if err := rows.Scan(&r.Platform, &r.CategoryName, &r.Viewers, &r.OpenLives, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan current snapshot: %w", err)
		}
		r.TopStreamers = models.DecodeStreamerDetail(detail)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Trailing aggregates the window (ts-window, ts] per (platform,
// category): the viewer median and the earliest row's viewers,
// open-live count, and top-streamer payload.
func (s *Store) Trailing(ts time.Time, window time.Duration) (map[Key]TrailingStats, error) {
	rows, err := s.db.Query(`
		SELECT platform, category_name,
		       MEDIAN(viewers),
		       FIRST(viewers ORDER BY ts_utc),
		       FIRST(open_lives ORDER BY ts_utc),
		       FIRST(top_streamers_detail ORDER BY ts_utc)
		FROM traffic_category_snapshot
		WHERE ts_utc > ? AND ts_utc <= ?
		GROUP BY platform, category_name`, ts.Add(-window), ts)
	if err != nil {
		return nil, fmt.Errorf("failed to query trailing stats: %w", err)
	}
	defer rows.Close()

	out := make(map[Key]TrailingStats)
	for rows.Next() {
		var k Key
		var t TrailingStats
		var detail string
		if err := rows.Scan(&k.Platform, &k.Category, &t.MedianViewers, &t.EarliestViewers, &t.EarliestOpenLives, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan trailing stats: %w", err)
		}
		t.EarliestTopStreamers = models.DecodeStreamerDetail(detail)
		out[k] = t
	}
	return out, rows.Err()
}

// SeasonalAvg averages viewers per (platform, category) over the
// window centered ago before ts, widened by tolerance on both sides.
// Pairs with no rows in the window are simply absent from the map.
func (s *Store) SeasonalAvg(ts time.Time, ago, tolerance time.Duration) (map[Key]float64, error) {
	rows, err := s.db.Query(`
		SELECT platform, category_name, AVG(viewers)
		FROM traffic_category_snapshot
		WHERE ts_utc BETWEEN ? AND ?
		GROUP BY platform, category_name`,
		ts.Add(-ago-tolerance), ts.Add(-ago+tolerance))
	if err != nil {
		return nil, fmt.Errorf("failed to query seasonal average: %w", err)
	}
	defer rows.Close()

	out := make(map[Key]float64)
	for rows.Next() {
		var k Key
		var avg float64
		if err := rows.Scan(&k.Platform, &k.Category, &avg); err != nil {
			return nil, fmt.Errorf("failed to scan seasonal average: %w", err)
		}
		out[k] = avg
	}
	return out, rows.Err()
}
