// Package store defines the storage interface and implementations.
package store

import (
	"context"
	"fmt"

	"github.com/xiaot623/sessionlog/domain"
)

// Store defines the interface for data persistence.
//
// Implementations rely on storage-level unique constraints for every
// idempotency guarantee: concurrent identical writes converge on a single
// record and all callers observe it. No method performs a read-then-
// conditionally-write cycle against a record it is mutating.
type Store interface {
	// Session operations
	CreateOrGetSession(ctx context.Context, sessionID, language string) (*domain.Session, error)
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	CompleteSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// Event operations
	AppendEvent(ctx context.Context, event *domain.Event) (*domain.Event, error)
	ListEvents(ctx context.Context, sessionID string, limit, offset int) ([]domain.Event, error)
	CountEvents(ctx context.Context, sessionID string) (int, error)

	// Lifecycle
	Close() error
}

// Open creates a Store for the given driver.
func Open(ctx context.Context, driver, url string) (Store, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return NewSQLiteStore(url)
	case "postgres", "pgx":
		return NewPostgresStore(ctx, url)
	default:
		return nil, fmt.Errorf("unsupported db driver: %q", driver)
	}
}
