package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// BootstrapAdmin describes the SuperAdmin account created on first start.
type BootstrapAdmin struct {
	Username string
	Email    string
	Password string
}

// Seeder runs the one-time initialisation at process start: the closed role
// set and a bootstrap SuperAdmin. Running it again changes nothing.
type Seeder struct {
	identity *IdentityService
	accounts ports.AccountRepository
	admin    BootstrapAdmin
	log      zerolog.Logger
}

func NewSeeder(identity *IdentityService, admin BootstrapAdmin, log zerolog.Logger) *Seeder {
	return &Seeder{
		identity: identity,
		accounts: identity.accounts,
		admin:    admin,
		log:      log,
	}
}

func (s *Seeder) Seed(ctx context.Context) error {
	for _, role := range domain.Roles {
		if err := s.identity.EnsureRole(ctx, role); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	if s.admin.Username == "" {
		return nil
	}
	exists, err := s.taken(ctx, s.accounts.FindByUsername, s.admin.Username)
	if err != nil || exists {
		return err
	}
	// The bootstrap email may belong to an unrelated account.
	exists, err = s.taken(ctx, s.accounts.FindByEmail, s.admin.Email)
	if err != nil {
		return err
	}
	if exists {
		s.log.Warn().Str("username", s.admin.Username).Str("email", s.admin.Email).
			Msg("bootstrap email already in use, SuperAdmin not created")
		return nil
	}

	// The bootstrap password must satisfy the configured password policy.
	res, err := s.identity.RegisterWithFixedRole(ctx, ports.FixedRoleInput{
		Email:    s.admin.Email,
		Username: s.admin.Username,
		FullName: s.admin.Username,
		Password: s.admin.Password,
	}, domain.RoleSuperAdmin)
	if err != nil {
		return fmt.Errorf("seed: create bootstrap admin: %w", err)
	}
	if !res.Success {
		return fmt.Errorf("seed: create bootstrap admin: %s", res.Message)
	}

	s.log.Info().Str("username", s.admin.Username).Str("email", s.admin.Email).Msg("bootstrap SuperAdmin created")
	return nil
}

func (s *Seeder) taken(ctx context.Context, find func(context.Context, string) (*domain.Account, error), value string) (bool, error) {
	_, err := find(ctx, value)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrUserNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("seed: find bootstrap admin: %w", err)
	}
}
