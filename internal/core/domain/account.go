package domain

import (
	"strings"
	"time"
)

// Account models a registered identity. Roles holds role names, order irrelevant.
type Account struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	NormalizedEmail    string    `json:"-"`
	Username           string    `json:"username"`
	NormalizedUsername string    `json:"-"`
	FullName           string    `json:"full_name"`
	PasswordHash       string    `json:"-"`
	Roles              []string  `json:"roles"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// HasRole reports whether the account already carries the named role.
func (a *Account) HasRole(name string) bool {
	for _, r := range a.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// NormalizeEmail folds an email address for case-insensitive lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername folds a username for case-insensitive lookups.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
