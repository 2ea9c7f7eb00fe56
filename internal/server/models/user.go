// Package models holds the identity service's domain types.
package models

import (
	"strings"
	"time"
)

// User is a storefront account. PasswordHash and the reset fields never leave
// the service; transport layers render their own view of a User.
type User struct {
	ID            string
	Email         string
	Name          string
	PasswordHash  string
	Role          Role
	EmailVerified bool
	ProviderID    string
	Phone         string
	Address       string

	// ResetTokenHash and ResetExpiresAt are set together or both empty.
	ResetTokenHash string
	ResetExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity returns the verified request identity for u.
func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
}

// Profile carries the optional profile fields a user may change. Nil means
// "leave as is".
type Profile struct {
	Name    *string
	Phone   *string
	Address *string
}

// Apply copies the non-nil fields of p onto u.
func (p Profile) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Address != nil {
		u.Address = *p.Address
	}
}

// NormalizeEmail case-folds and trims an address. Emails are stored and
// compared in this form only.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
