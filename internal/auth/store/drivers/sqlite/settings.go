package sqlite

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
)

type settingsRepo struct {
	q dbtx
}

func (r *settingsRepo) GetSettings(ctx context.Context, collection string) (domain.Settings, error) {
	var (
		s    domain.Settings
		data string
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT collection, data, updated_at FROM settings WHERE collection = ?`, collection,
	).Scan(&s.Collection, &data, &s.UpdatedAt)
	if err != nil {
		return domain.Settings{}, mapNotFound(err)
	}
	s.Data = json.RawMessage(data)
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

func (r *settingsRepo) PutSettings(ctx context.Context, s domain.Settings) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	data := string(s.Data)
	if data == "" {
		data = "{}"
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO settings (collection, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(collection) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		s.Collection, data, s.UpdatedAt.UTC(),
	)
	return err
}
