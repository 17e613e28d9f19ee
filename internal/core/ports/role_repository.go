package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// RoleRepository persists named roles and attaches them to accounts.
type RoleRepository interface {
	Exists(ctx context.Context, name string) (bool, error)
	// Create inserts a role record; an existing name yields domain.ErrRoleExists.
	Create(ctx context.Context, role *domain.Role) error
	// AssignToAccount adds the role to the account's role set. Assigning a role
	// the account already holds is a no-op.
	AssignToAccount(ctx context.Context, accountID, roleName string) error
}
