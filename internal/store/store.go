// Package store persists session history and intervention events to a local
// sqlite database for analytics and assistant context.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"focusd/internal/activity"
	"focusd/internal/mind"
)

// SessionRecord is a finished session row, as fed to the assistant prompt
type SessionRecord struct {
	AppName     string
	WindowTitle string
	ContextType string
	Duration    time.Duration
	StartedAt   time.Time
}

// Store wraps the sqlite connection
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			app_name TEXT NOT NULL,
			window_title TEXT,
			context_type TEXT,
			context_id TEXT NOT NULL,
			started_at REAL NOT NULL,
			ended_at REAL,
			duration_seconds REAL,
			created_at REAL DEFAULT (strftime('%s', 'now'))
		);

		CREATE TABLE IF NOT EXISTS intervention_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER,
			event_type TEXT NOT NULL,
			duration_at_trigger REAL,
			mental_state TEXT,
			message TEXT,
			follow_up INTEGER DEFAULT 0,
			created_at REAL DEFAULT (strftime('%s', 'now')),
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_context ON sessions(context_id);
		CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

// StartSession records the start of a session and returns its id
func (s *Store) StartSession(ctx *activity.Context) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO sessions (app_name, window_title, context_type, context_id, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		ctx.AppName, ctx.WindowTitle, string(ctx.Type), ctx.ID,
		float64(ctx.DetectedAt.UnixMilli())/1000.0,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}
	return res.LastInsertId()
}

// EndSession closes a session with its final duration
func (s *Store) EndSession(id int64, duration time.Duration) error {
	_, err := s.db.Exec(
		"UPDATE sessions SET ended_at = ?, duration_seconds = ? WHERE id = ?",
		float64(time.Now().UnixMilli())/1000.0, duration.Seconds(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// RecordIntervention records a gate decision. sessionID 0 means no open
// session row was known at trigger time.
func (s *Store) RecordIntervention(sessionID int64, eventType string, durationAtTrigger time.Duration, state mind.State, message string, followUp bool) error {
	var sid any
	if sessionID > 0 {
		sid = sessionID
	}
	var stateVal any
	if state != mind.StateUnknown {
		stateVal = string(state)
	}
	_, err := s.db.Exec(`
		INSERT INTO intervention_events (session_id, event_type, duration_at_trigger, mental_state, message, follow_up)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sid, eventType, durationAtTrigger.Seconds(), stateVal, message, boolToInt(followUp),
	)
	if err != nil {
		return fmt.Errorf("failed to record intervention: %w", err)
	}
	return nil
}

// RecentSessions returns the most recently finished sessions, newest first
func (s *Store) RecentSessions(limit int) ([]SessionRecord, error) {
	rows, err := s.db.Query(`
		SELECT app_name, window_title, context_type, duration_seconds, started_at
		FROM sessions WHERE ended_at IS NOT NULL
		ORDER BY ended_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var result []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var ctxType sql.NullString
		var duration sql.NullFloat64
		var startedAt float64
		if err := rows.Scan(&rec.AppName, &rec.WindowTitle, &ctxType, &duration, &startedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		rec.ContextType = ctxType.String
		rec.Duration = time.Duration(duration.Float64 * float64(time.Second))
		rec.StartedAt = time.Unix(int64(startedAt), 0)
		result = append(result, rec)
	}
	return result, rows.Err()
}

// OpenSession returns the still-running session if one exists, with duration
// measured up to now. Nil when every session is closed.
func (s *Store) OpenSession() (*SessionRecord, error) {
	row := s.db.QueryRow(`
		SELECT app_name, window_title, context_type, started_at
		FROM sessions WHERE ended_at IS NULL
		ORDER BY started_at DESC LIMIT 1`)

	var rec SessionRecord
	var ctxType sql.NullString
	var startedAt float64
	if err := row.Scan(&rec.AppName, &rec.WindowTitle, &ctxType, &startedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query open session: %w", err)
	}
	rec.ContextType = ctxType.String
	rec.StartedAt = time.Unix(int64(startedAt), 0)
	rec.Duration = time.Since(rec.StartedAt)
	return &rec, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
