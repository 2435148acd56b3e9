package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xiaot623/sessionlog/domain"
)

// PostgresStore implements Store using PostgreSQL via pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and prepares the schema.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate runs database migrations.
func (s *PostgresStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			language TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			seq BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(session_id),
			event_id TEXT NOT NULL,
			type TEXT NOT NULL,
			payload TEXT,
			ts BIGINT NOT NULL,
			UNIQUE (session_id, event_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session_ts ON events(session_id, ts)`,
	}

	for _, m := range migrations {
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// isPgUniqueViolation reports whether err is a unique-constraint failure
// (SQLSTATE 23505).
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// CreateOrGetSession inserts the session if absent and returns the stored
// record. A duplicate-key failure from a concurrent identical create is
// resolved by re-reading the winning row; it is never surfaced.
func (s *PostgresStore) CreateOrGetSession(ctx context.Context, sessionID, language string) (*domain.Session, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (session_id, language, status, started_at) VALUES ($1, $2, $3, $4)`,
		sessionID, language, domain.SessionStatusActive, time.Now().UTC())
	if err != nil && !isPgUniqueViolation(err) {
		return nil, err
	}
	return s.mustGetSession(ctx, sessionID)
}

// GetSession retrieves a session by ID. Returns (nil, nil) when absent.
func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	var endedAt *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT session_id, language, status, started_at, ended_at FROM sessions WHERE session_id = $1`,
		sessionID).Scan(&session.SessionID, &session.Language, &session.Status, &session.StartedAt, &endedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	session.EndedAt = endedAt
	return &session, nil
}

func (s *PostgresStore) mustGetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
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
func (s *PostgresStore) CompleteSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET status = $1, ended_at = $2 WHERE session_id = $3`,
		domain.SessionStatusCompleted, time.Now().UTC(), sessionID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrSessionNotFound
	}
	return s.mustGetSession(ctx, sessionID)
}

// AppendEvent inserts the event, or returns the already-stored event when the
// (session_id, event_id) key exists. Callers cannot tell a fresh write from a
// replay; the first write wins even if a retry carries different fields.
func (s *PostgresStore) AppendEvent(ctx context.Context, event *domain.Event) (*domain.Event, error) {
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
	_, err = s.pool.Exec(ctx,
		`INSERT INTO events (session_id, event_id, type, payload, ts) VALUES ($1, $2, $3, $4, $5)`,
		event.SessionID, event.EventID, event.Type, payload, event.Timestamp)
	if err != nil && !isPgUniqueViolation(err) {
		return nil, err
	}
	return s.getEvent(ctx, event.SessionID, event.EventID)
}

func (s *PostgresStore) getEvent(ctx context.Context, sessionID, eventID string) (*domain.Event, error) {
	var event domain.Event
	var payload *string
	err := s.pool.QueryRow(ctx,
		`SELECT seq, session_id, event_id, type, payload, ts FROM events WHERE session_id = $1 AND event_id = $2`,
		sessionID, eventID).Scan(&event.Seq, &event.SessionID, &event.EventID, &event.Type, &payload, &event.Timestamp)
	if err != nil {
		return nil, err
	}
	if payload != nil && *payload != "" {
		event.Payload = json.RawMessage(*payload)
	}
	return &event, nil
}

// ListEvents returns a page of events ordered by timestamp; ties are broken
// by insertion sequence so pagination stays stable.
func (s *PostgresStore) ListEvents(ctx context.Context, sessionID string, limit, offset int) ([]domain.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT seq, session_id, event_id, type, payload, ts FROM events
		 WHERE session_id = $1
		 ORDER BY ts ASC, seq ASC
		 LIMIT $2 OFFSET $3`,
		sessionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var payload *string
		if err := rows.Scan(&event.Seq, &event.SessionID, &event.EventID, &event.Type, &payload, &event.Timestamp); err != nil {
			return nil, err
		}
		if payload != nil && *payload != "" {
			event.Payload = json.RawMessage(*payload)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// CountEvents returns the exact number of events for a session.
func (s *PostgresStore) CountEvents(ctx context.Context, sessionID string) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM events WHERE session_id = $1`, sessionID).Scan(&total)
	return total, err
}
