// Package domain contains core domain types for the Genie application.
package domain

import (
	"strings"
	"time"
)

// User is an account that can sign in with email and password.
type User struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	LastSeenAt   time.Time `json:"last_seen_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NormalizeEmail lower-cases and trims an email address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsAdmin reports whether the user is the configured administrator.
func (u *User) IsAdmin(adminEmail string) bool {
	if u == nil || adminEmail == "" {
		return false
	}
	return NormalizeEmail(u.Email) == NormalizeEmail(adminEmail)
}

// DisplayName returns the local part of the email address.
func (u *User) DisplayName() string {
	if i := strings.IndexByte(u.Email, '@'); i > 0 {
		return u.Email[:i]
	}
	return u.Email
}
