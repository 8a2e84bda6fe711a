package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	_ "modernc.org/sqlite"
)

// dbtx is the subset of database/sql the repos use. Both *sql.DB and *sql.Tx
// satisfy it.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db  *sql.DB
	dsn string
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", withTimeFormat(dsn))
	if err != nil {
		return nil, err
	}

	// SQLite has a single writer, and every :memory: connection is its own
	// database, so keep exactly one connection.
	db.SetMaxOpenConns(1)

	// Enforce FKs
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:  db,
		dsn: dsn,
	}, nil
}

// withTimeFormat makes the driver write DATETIME values in a layout that
// sorts lexically, so expiry comparisons can run in SQL.
func withTimeFormat(dsn string) string {
	if strings.Contains(dsn, "_time_format=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_time_format=sqlite"
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store. With a
// single connection the outer Store blocks until the Tx finishes, so work
// inside a Tx must go through the Tx.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return newTx(tx), nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) Users() store.Users       { return &usersRepo{q: s.db} }
func (s *Store) Settings() store.Settings { return &settingsRepo{q: s.db} }
func (s *Store) APIKeys() store.APIKeys   { return &apiKeysRepo{q: s.db} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func mapConstraint(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

// expectOne turns a zero-row update into ErrNotFound.
func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func mapStringNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func mapNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func mapNullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		val := nt.Time.UTC()
		return &val
	}
	return nil
}

func mapOptionalTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, email, password_hash, salt, role, password_updated_at, created_at, updated_at`

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u    domain.User
		pwAt sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Salt, &u.Role, &pwAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return domain.User{}, err
	}
	u.PasswordUpdatedAt = mapNullTimePtr(pwAt)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

const apiKeyColumns = `id, name, key_hash, scopes, expires_at, revoked, created_by, created_at, last_used_at`

func scanAPIKey(row rowScanner) (domain.APIKey, error) {
	var (
		k          domain.APIKey
		scopes     string
		expiresAt  sql.NullTime
		createdBy  sql.NullString
		lastUsedAt sql.NullTime
	)
	if err := row.Scan(&k.ID, &k.Name, &k.KeyHash, &scopes, &expiresAt, &k.Revoked, &createdBy, &k.CreatedAt, &lastUsedAt); err != nil {
		return domain.APIKey{}, err
	}
	k.Scopes = splitAndFilter(scopes)
	k.ExpiresAt = mapNullTimePtr(expiresAt)
	k.CreatedBy = mapNullString(createdBy)
	k.CreatedAt = k.CreatedAt.UTC()
	k.LastUsedAt = mapNullTimePtr(lastUsedAt)
	return k, nil
}

func splitAndFilter(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Fields(s)
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		if _, ok := seen[part]; ok {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}
