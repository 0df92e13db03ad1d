package model

import "time"

// User represents an account record as stored in the `users` table.
// The json tags are omitted here because these structs are primarily used
// internally by the repository and service layers; handlers define separate
// response types so that PasswordHash never leaves the process.
//
// Fields:
//
//	ID           – uuid primary key.
//	Email        – unique email address, matched exactly as stored.
//	PasswordHash – bcrypt hashed password.
//	CreatedAt    – timestamp of creation.
type User struct {
	ID           string    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	CreatedAt    time.Time // users.created_at
}

// RefreshToken models an entry in the `refresh_tokens` table (or a key in
// the Redis token store). Each record represents one issued, still
// redeemable refresh token. The raw token is never stored; only the
// base64 SHA‑256 digest of it.
//
// Fields:
//
//	UserID    – owner of the token.
//	TokenHash – base64 SHA‑256 digest of the raw token.
//	ExpiresAt – absolute expiry; re-checked on every lookup.
//	CreatedAt – timestamp of issuance.
type RefreshToken struct {
	UserID    string    // refresh_tokens.user_id
	TokenHash string    // refresh_tokens.token_hash
	ExpiresAt time.Time // refresh_tokens.expires_at
	CreatedAt time.Time // refresh_tokens.created_at
}

// Expired reports whether the record is past its expiry at the given instant.
func (t RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
