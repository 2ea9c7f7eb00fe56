package models

import "time"

// RefreshToken is a ledger record. TokenHash is the SHA-256 of the issued
// refresh credential; the credential itself is never stored.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the record's stored expiry is at or before now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// OAuthProfile is what a completed third-party handshake tells us about the
// caller.
type OAuthProfile struct {
	ProviderID    string
	Email         string
	Name          string
	EmailVerified bool
}
