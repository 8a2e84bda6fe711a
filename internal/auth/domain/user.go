package domain

import "time"

type User struct {
	ID                string
	Email             string
	PasswordHash      string // scrypt, lowercase hex
	Salt              string // hex, fed to the KDF as-is
	Role              string // "user" or "admin"
	PasswordUpdatedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
