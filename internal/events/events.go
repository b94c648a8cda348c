// Package events provides SQLite-backed persistence for signal events
// and the cooldown lookups that gate new ones.
package events

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/streampulse/detector/internal/models"
)

// Store wraps a SQLite database for signal-event persistence.
type Store struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/streampulse/events.db.
func New(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "streampulse", "events.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signal_events (
			event_id        TEXT PRIMARY KEY,
			created_at      INTEGER NOT NULL,
			platform        TEXT NOT NULL,
			category_name   TEXT NOT NULL,
			event_type      TEXT NOT NULL,
			growth_rate     REAL NOT NULL,
			signal_level    TEXT NOT NULL,
			stats           TEXT NOT NULL DEFAULT '{}',
			market          TEXT NOT NULL DEFAULT '{}',
			clues           TEXT NOT NULL DEFAULT '[]',
			analysis_status TEXT NOT NULL,
			analysis_tier   TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cooldown ON signal_events(platform, category_name, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_status ON signal_events(analysis_status, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Insert appends a new signal event. Events are insert-once; the
// detector never updates a row after this.
func (s *Store) Insert(ev *models.SignalEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid signal event: %w", err)
	}
	statsJSON, err := json.Marshal(ev.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	marketJSON, err := json.Marshal(ev.Market)
	if err != nil {
		return fmt.Errorf("failed to marshal market evidence: %w", err)
	}
	cluesJSON := models.EncodeStreamerDetail(ev.Clues)

	_, err = s.db.Exec(`
		INSERT INTO signal_events
			(event_id, created_at, platform, category_name, event_type, growth_rate,
			 signal_level, stats, market, clues, analysis_status, analysis_tier)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		ev.EventID, ev.CreatedAt.UnixNano(), ev.Platform, ev.CategoryName,
		string(ev.EventType), ev.GrowthRate, string(ev.SignalLevel),
		string(statsJSON), string(marketJSON), cluesJSON,
		string(ev.AnalysisStatus), ev.AnalysisTier,
	)
	if err != nil {
		return fmt.Errorf("failed to insert signal event: %w", err)
	}
	return nil
}

// HasRecent reports whether any event for (platform, category) was
// created at or after since. This check is advisory: it is not atomic
// with the subsequent insert, so concurrent detector instances can
// both pass it. Single-writer deployment is assumed.
func (s *Store) HasRecent(platform, category string, since time.Time) (bool, error) {
	var one int
	err := s.db.QueryRow(`
		SELECT 1 FROM signal_events
		WHERE platform = ? AND category_name = ? AND created_at >= ?
		LIMIT 1`, platform, category, since.UnixNano()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query cooldown: %w", err)
	}
	return true, nil
}

// ListPending returns up to limit events awaiting downstream research,
// oldest first. This is the research collaborator's poll entry point;
// the detector itself never calls it.
func (s *Store) ListPending(limit int) ([]models.SignalEvent, error) {
	rows, err := s.db.Query(`
		SELECT `+eventCols+`
		FROM signal_events
		WHERE analysis_status = ?
		ORDER BY created_at ASC
		LIMIT ?`, string(models.AnalysisPending), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer rows.Close()

	var out []models.SignalEvent
	for rows.Next() {
		ev, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal event: %w", err)
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

// SetAnalysis updates an event's research lifecycle fields. Owned by
// the downstream worker; exposed here because the schema is this
// store's contract.
func (s *Store) SetAnalysis(eventID string, status models.AnalysisStatus, tier string) error {
	res, err := s.db.Exec(`
		UPDATE signal_events SET analysis_status = ?, analysis_tier = ?
		WHERE event_id = ?`, string(status), tier, eventID)
	if err != nil {
		return fmt.Errorf("failed to update analysis status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("signal event not found: %s", eventID)
	}
	return nil
}

// GetEvent returns a single event by ID.
func (s *Store) GetEvent(eventID string) (*models.SignalEvent, error) {
	row := s.db.QueryRow(`SELECT `+eventCols+` FROM signal_events WHERE event_id = ?`, eventID)
	ev, err := scanEvent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("signal event not found: %s", eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get signal event: %w", err)
	}
	return ev, nil
}

const eventCols = `event_id, created_at, platform, category_name, event_type, growth_rate,
	signal_level, stats, market, clues, analysis_status, analysis_tier`

func scanEvent(scan func(...any) error) (*models.SignalEvent, error) {
	var ev models.SignalEvent
	var createdAtNano int64
	var eventType, signalLevel, status string
	var statsJSON, marketJSON, cluesJSON string

	err := scan(
		&ev.EventID, &createdAtNano, &ev.Platform, &ev.CategoryName,
		&eventType, &ev.GrowthRate, &signalLevel,
		&statsJSON, &marketJSON, &cluesJSON,
		&status, &ev.AnalysisTier,
	)
	if err != nil {
		return nil, err
	}
	ev.CreatedAt = time.Unix(0, createdAtNano)
	ev.EventType = models.EventType(eventType)
	ev.SignalLevel = models.SignalLevel(signalLevel)
	ev.AnalysisStatus = models.AnalysisStatus(status)
	if err := json.Unmarshal([]byte(statsJSON), &ev.Stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
	}
	if err := json.Unmarshal([]byte(marketJSON), &ev.Market); err != nil {
		return nil, fmt.Errorf("failed to unmarshal market evidence: %w", err)
	}
	ev.Clues = models.DecodeStreamerDetail(cluesJSON)
	return &ev, nil
}
