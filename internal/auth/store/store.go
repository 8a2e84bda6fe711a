package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement this.
// It exposes sub-repositories to keep concerns tidy and testable, and so a
// Tx-scoped Store cannot start a transaction within a transaction.
type Store interface {
	Users() Users
	Settings() Settings
	APIKeys() APIKeys

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// A duplicate email is ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePassword stores a new hash and stamps password_updated_at.
	UpdatePassword(ctx context.Context, userID, passwordHash string, at time.Time) error

	// UpdateRole changes the authoritative role.
	UpdateRole(ctx context.Context, userID, role string) error

	// IsEmpty returns true if there are no users.
	IsEmpty(ctx context.Context) (bool, error)
}

type Settings interface {
	// GetSettings fetches a settings record by collection name.
	GetSettings(ctx context.Context, collection string) (domain.Settings, error)

	// PutSettings replaces (or creates) the record for s.Collection.
	PutSettings(ctx context.Context, s domain.Settings) error
}

type APIKeys interface {
	CreateAPIKey(ctx context.Context, k domain.APIKey) error

	// GetAPIKeyByHash looks a key up by fingerprint, revoked or not.
	GetAPIKeyByHash(ctx context.Context, keyHash string) (domain.APIKey, error)

	// ListAPIKeys returns every key, newest first.
	ListAPIKeys(ctx context.Context) ([]domain.APIKey, error)

	RevokeAPIKey(ctx context.Context, id string) error

	// TouchAPIKey records the last successful use.
	TouchAPIKey(ctx context.Context, id string, at time.Time) error

	// DeleteExpiredAPIKeys is housekeeping; it returns the number removed.
	DeleteExpiredAPIKeys(ctx context.Context, now time.Time) (int64, error)
}
