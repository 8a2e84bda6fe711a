package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
)

type apiKeysRepo struct {
	q dbtx
}

func (r *apiKeysRepo) CreateAPIKey(ctx context.Context, k domain.APIKey) error {
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now()
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO api_keys (`+apiKeyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		k.ID, k.Name, k.KeyHash, strings.Join(k.Scopes, " "),
		mapOptionalTime(k.ExpiresAt), k.Revoked, mapStringNull(k.CreatedBy),
		k.CreatedAt.UTC(), mapOptionalTime(k.LastUsedAt),
	)
	return mapConstraint(err)
}

func (r *apiKeysRepo) GetAPIKeyByHash(ctx context.Context, keyHash string) (domain.APIKey, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash = ?`, keyHash)
	k, err := scanAPIKey(row)
	if err != nil {
		return domain.APIKey{}, mapNotFound(err)
	}
	return k, nil
}

func (r *apiKeysRepo) ListAPIKeys(ctx context.Context) ([]domain.APIKey, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *apiKeysRepo) RevokeAPIKey(ctx context.Context, id string) error {
	return expectOne(r.q.ExecContext(ctx, `UPDATE api_keys SET revoked = 1 WHERE id = ?`, id))
}

func (r *apiKeysRepo) TouchAPIKey(ctx context.Context, id string, at time.Time) error {
	return expectOne(r.q.ExecContext(ctx, `UPDATE api_keys SET last_used_at = ? WHERE id = ?`, at.UTC(), id))
}

func (r *apiKeysRepo) DeleteExpiredAPIKeys(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM api_keys WHERE expires_at IS NOT NULL AND expires_at <= ?`, now.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
