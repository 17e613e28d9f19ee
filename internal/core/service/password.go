package service

import (
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const maxPasswordBytes = 72

// PasswordPolicy holds the password strength rules applied on registration
// and password change.
type PasswordPolicy struct {
	MinLength              int
	RequireDigit           bool
	RequireLowercase       bool
	RequireUppercase       bool
	RequireNonAlphanumeric bool
}

// DefaultPasswordPolicy: at least 8 characters, one uppercase letter and one symbol.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:              8,
		RequireUppercase:       true,
		RequireNonAlphanumeric: true,
	}
}

// Validate returns one message per violated rule; nil means the password is acceptable.
func (p PasswordPolicy) Validate(password string) []string {
	var hasDigit, hasLower, hasUpper, hasSymbol bool
	length := 0
	for _, r := range password {
		length++
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case !unicode.IsLetter(r) && !unicode.IsNumber(r):
			hasSymbol = true
		}
	}

	var violations []string
	if length < p.MinLength {
		violations = append(violations, fmt.Sprintf("password must be at least %d characters", p.MinLength))
	}
	// bcrypt only reads the first 72 bytes.
	if len(password) > maxPasswordBytes {
		violations = append(violations, fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}
	if p.RequireDigit && !hasDigit {
		violations = append(violations, "password must contain a digit")
	}
	if p.RequireLowercase && !hasLower {
		violations = append(violations, "password must contain a lowercase letter")
	}
	if p.RequireUppercase && !hasUpper {
		violations = append(violations, "password must contain an uppercase letter")
	}
	if p.RequireNonAlphanumeric && !hasSymbol {
		violations = append(violations, "password must contain a non-alphanumeric character")
	}
	return violations
}

// BcryptHasher implements ports.PasswordHasher with bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher falls back to bcrypt.DefaultCost when cost is out of range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (h *BcryptHasher) Verify(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
