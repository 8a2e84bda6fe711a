package domain

import "time"

// APIKey is an integration key. Only the SHA-256 fingerprint of the raw key
// is kept.
type APIKey struct {
	ID         string
	Name       string
	KeyHash    string
	Scopes     []string
	ExpiresAt  *time.Time
	Revoked    bool
	CreatedBy  string
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// Active reports whether the key can still authenticate at now.
func (k APIKey) Active(now time.Time) bool {
	if k.Revoked {
		return false
	}
	return k.ExpiresAt == nil || now.Before(*k.ExpiresAt)
}
