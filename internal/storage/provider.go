package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"lototrak/internal/config"
)

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("record not found")

// EventFilter narrows audit log listings. Zero values mean no filter.
type EventFilter struct {
	LockID string
	UserID string
	Type   EventType
	Limit  int
}

type Provider interface {
	Close() error
	GetSchemaVersion(ctx context.Context) (int, error)

	// Lock methods
	GetLock(ctx context.Context, id string) (*Lock, error)
	GetLockByCode(ctx context.Context, code string) (*Lock, error)
	ListLocks(ctx context.Context) ([]Lock, error)
	ListAssignedLocks(ctx context.Context, userID string) ([]Lock, error)
	CreateLock(ctx context.Context, lock Lock) error
	UpdateLock(ctx context.Context, lock Lock) error
	// CodeInUse checks access code uniqueness across all locks, soft-deleted
	// included. excludeID is skipped so a lock can keep its own code on update.
	CodeInUse(ctx context.Context, code string, excludeID string) (bool, error)

	// Atomic lock transitions. Each bundles the row update with exactly one
	// event insert in a single transaction, and returns the number of lock
	// rows updated so callers can detect lost races on the status guard.
	AssignLock(ctx context.Context, lockID string, userID string, event Event) (int64, error)
	ReleaseLock(ctx context.Context, lockID string, userID string, event Event) (int64, error)
	SetLockStatus(ctx context.Context, lockID string, status LockStatus, clearAssignment bool, event Event) (int64, error)
	SoftDeleteLock(ctx context.Context, lockID string, event Event) (int64, error)

	// User methods
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUserRole(ctx context.Context, userID string, role Role) error
	CountUsersByRole(ctx context.Context, role Role) (int, error)

	// Audit log methods
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)

	// Nonce methods (auth token invalidation)
	CreateNonce(ctx context.Context, nonce string, expiresAt time.Time) error
	ExistsNonce(ctx context.Context, nonce string) (bool, error)
	ConsumeNonce(ctx context.Context, nonce string) (bool, error)
	ExpireNonces(ctx context.Context, now time.Time) error
}

func NewProvider(config *config.Storage) Provider {
	switch {
	case config.SQLite != nil:
		provider := NewSQLiteProvider(config)
		if err := provider.runMigrations("sqlite3"); err != nil {
			slog.Error("Failed to run migrations", "error", err)
			return nil
		}
		return provider

	default:
		slog.Error("Unsupported storage configuration", "config", config)
	}

	return nil
}
