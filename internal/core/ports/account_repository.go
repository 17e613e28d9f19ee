package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// AccountRepository is the credential store. Lookups are case-insensitive
// and return domain.ErrUserNotFound when nothing matches.
type AccountRepository interface {
	// Create persists a new account. A clash on email or username yields
	// domain.ErrUserExists, so concurrent registrations resolve at the store.
	Create(ctx context.Context, account *domain.Account) error
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
	UpdatePasswordHash(ctx context.Context, accountID, passwordHash string) error
	Delete(ctx context.Context, accountID string) error
}
