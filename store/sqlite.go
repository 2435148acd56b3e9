package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/xiaot623/sessionlog/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			language TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			started_at DATETIME NOT NULL,
			ended_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			event_id TEXT NOT NULL,
			type TEXT NOT NULL,
			payload TEXT,
			ts INTEGER NOT NULL,
			UNIQUE (session_id, event_id),
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session_ts ON events(session_id, ts)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// isUniqueViolation reports whether err is a unique-constraint failure.
func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateOrGetSession inserts the session if absent and returns the stored
// record. A duplicate-key failure from a concurrent identical create is
// resolved by re-reading the winning row; it is never surfaced.
func (s *SQLiteStore) CreateOrGetSession(ctx context.Context, sessionID, language string) (*domain.Session, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, language, status, started_at) VALUES (?, ?, ?, ?)`,
		sessionID, language, domain.SessionStatusActive, time.Now().UTC())
	if err != nil && !isUniqueViolation(err) {
		return nil, err
	}
	return s.mustGetSession(ctx, sessionID)
}

// GetSession retrieves a session by ID. Returns (nil, nil) when absent.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	var endedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, language, status, started_at, ended_at FROM sessions WHERE session_id = ?`,
		sessionID).Scan(&session.SessionID, &session.Language, &session.Status, &session.StartedAt, &endedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		session.EndedAt = &endedAt.Time
	}
	return &session, nil
}

// mustGetSession re-reads a session that a write just touched.
func (s *SQLiteStore) mustGetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("session %s missing after write", sessionID)
	}
	return session, nil
}

// CompleteSession marks the session completed with a direct field-set, so
// repeat calls are safe; ended_at reflects the most recent call.
func (s *SQLiteStore) CompleteSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, ended_at = ? WHERE session_id = ?`,
		domain.SessionStatusCompleted, time.Now().UTC(), sessionID)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, domain.ErrSessionNotFound
	}
	return s.mustGetSession(ctx, sessionID)
}

// AppendEvent inserts the event, or returns the already-stored event when the
// (session_id, event_id) key exists. Callers cannot tell a fresh write from a
// replay; the first write wins even if a retry carries different fields.
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *domain.Event) (*domain.Event, error) {
	session, err := s.GetSession(ctx, event.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}

	payload := ""
	if event.Payload != nil {
		payload = string(event.Payload)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (session_id, event_id, type, payload, ts) VALUES (?, ?, ?, ?, ?)`,
		event.SessionID, event.EventID, event.Type, payload, event.Timestamp)
	if err != nil && !isUniqueViolation(err) {
		return nil, err
	}
	return s.getEvent(ctx, event.SessionID, event.EventID)
}

func (s *SQLiteStore) getEvent(ctx context.Context, sessionID, eventID string) (*domain.Event, error) {
	var event domain.Event
	var payload sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT seq, session_id, event_id, type, payload, ts FROM events WHERE session_id = ? AND event_id = ?`,
		sessionID, eventID).Scan(&event.Seq, &event.SessionID, &event.EventID, &event.Type, &payload, &event.Timestamp)
	if err != nil {
		return nil, err
	}
	if payload.Valid && payload.String != "" {
		event.Payload = json.RawMessage(payload.String)
	}
	return &event, nil
}

// ListEvents returns a page of events ordered by timestamp; ties are broken
// by insertion sequence so pagination stays stable.
func (s *SQLiteStore) ListEvents(ctx context.Context, sessionID string, limit, offset int) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, session_id, event_id, type, payload, ts FROM events
		 WHERE session_id = ?
		 ORDER BY ts ASC, seq ASC
		 LIMIT ? OFFSET ?`,
		sessionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var payload sql.NullString
		if err := rows.Scan(&event.Seq, &event.SessionID, &event.EventID, &event.Type, &payload, &event.Timestamp); err != nil {
			return nil, err
		}
		if payload.Valid && payload.String != "" {
			event.Payload = json.RawMessage(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// CountEvents returns the exact number of events for a session.
func (s *SQLiteStore) CountEvents(ctx context.Context, sessionID string) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE session_id = ?`, sessionID).Scan(&total)
	return total, err
}
