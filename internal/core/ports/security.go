package ports

import (
	"context"
	"time"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// PasswordHasher hashes and verifies account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// IssuedToken is a signed bearer token plus the metadata needed to track it.
type IssuedToken struct {
	Token     string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenClaims is the verified content of a bearer token.
type TokenClaims struct {
	TokenID   string
	AccountID string
	Email     string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies bearer tokens.
type TokenIssuer interface {
	Issue(account *domain.Account) (*IssuedToken, error)
	Parse(token string) (*TokenClaims, error)
}

// TokenStore tracks the reference ids of issued tokens per account so they can
// be invalidated before expiry.
type TokenStore interface {
	Track(ctx context.Context, accountID string, token *IssuedToken) error
	// RevokeAll denylists every tracked token of the account and forgets them.
	RevokeAll(ctx context.Context, accountID string) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// LoginThrottle counts failed logins and locks the key out once the
// configured threshold is reached.
type LoginThrottle interface {
	IsLocked(ctx context.Context, key string) (bool, error)
	RecordFailure(ctx context.Context, key string) (locked bool, err error)
	Reset(ctx context.Context, key string) error
}
