package authsdk

import (
	"encoding/json"
	"time"
)

// Envelope is the body of every response. Data holds the typed payload.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    T      `json:"data,omitempty"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status" example:"ok"`
	Uptime  string        `json:"uptime" example:"1h2m3s"`
	Version string        `json:"version" example:"v0.1.0"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks lists the readiness of critical dependencies.
type HealthChecks struct {
	Database string `json:"database" example:"ok"`
	Verifier string `json:"verifier" example:"ok"`
	Limiter  string `json:"limiter,omitempty" example:"ok"`
}

// ============================================================================
// Account Types
// ============================================================================

// ProfileResponse is the signed-in user's profile. It never carries
// credential material.
type ProfileResponse struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	Role              string     `json:"role" example:"user"`
	PasswordUpdatedAt *time.Time `json:"passwordUpdatedAt,omitempty"`
}

// ChangePasswordRequest changes the signed-in user's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"` // at least 8 characters
}

// ============================================================================
// Verification Types
// ============================================================================

// EncryptedCodeResponse carries a sealed code. The plain code only ever goes
// to the mailer.
type EncryptedCodeResponse struct {
	EncryptedCode string `json:"encryptedCode"`
}

// VerifyCodeRequest submits a code together with the sealed original.
type VerifyCodeRequest struct {
	Code          string `json:"code" example:"482913"`
	EncryptedCode string `json:"encryptedCode"`
}

// ForgotPasswordRequest starts password recovery.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest completes password recovery.
type ResetPasswordRequest struct {
	Email         string `json:"email"`
	Code          string `json:"code"`
	EncryptedCode string `json:"encryptedCode"`
	NewPassword   string `json:"newPassword"`
}

// ============================================================================
// CSRF and Integration Types
// ============================================================================

// CSRFResponse returns the token also set as a cookie.
type CSRFResponse struct {
	Token  string `json:"token"`
	Header string `json:"header" example:"X-CSRF-Token"`
}

// ScopeResponse describes the API key presented on the request.
type ScopeResponse struct {
	KeyID  string   `json:"keyId"`
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

// ============================================================================
// Admin Types
// ============================================================================

// ClearCacheRequest clears one user's cached role, or every role when UserID
// is empty.
type ClearCacheRequest struct {
	UserID string `json:"userId,omitempty"`
}

// ClearCacheResponse reports when the cache was cleared.
type ClearCacheResponse struct {
	ClearedAt time.Time `json:"clearedAt"`
	UserID    string    `json:"userId,omitempty"`
}

// SettingsResponse is one settings collection.
type SettingsResponse struct {
	Collection string          `json:"collection"`
	Data       json.RawMessage `json:"data" swaggertype:"object"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// MintAPIKeyRequest creates an integration key. TTLSeconds of 0 never expires.
type MintAPIKeyRequest struct {
	Name       string   `json:"name"`
	Scopes     []string `json:"scopes"`
	TTLSeconds int64    `json:"ttlSeconds,omitempty"`
}

// APIKeyInfo describes a key without its secret.
type APIKeyInfo struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Scopes     []string   `json:"scopes"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	Revoked    bool       `json:"revoked"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

// MintAPIKeyResponse carries the raw key. It is shown exactly once.
type MintAPIKeyResponse struct {
	APIKeyInfo
	Key string `json:"key"`
}

// ListAPIKeysResponse lists every key, newest first.
type ListAPIKeysResponse struct {
	Keys []APIKeyInfo `json:"keys"`
}

// SetRoleRequest changes a user's stored role.
type SetRoleRequest struct {
	Role string `json:"role" example:"admin"`
}
