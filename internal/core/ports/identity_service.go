package ports

import (
	"context"
	"time"
)

// FailureReason classifies a business-rule failure so the transport layer can
// map it deterministically.
type FailureReason string

const (
	FailureConflict           FailureReason = "conflict"
	FailureInvalidRole        FailureReason = "invalid_role"
	FailureInvalidCredentials FailureReason = "invalid_credentials"
	FailureNotFound           FailureReason = "not_found"
	FailureValidation         FailureReason = "validation"
	FailureWeakPassword       FailureReason = "weak_password"
	FailureLockedOut          FailureReason = "locked_out"
	FailureError              FailureReason = "error"
)

// Result is embedded in every workflow result. Reason is empty on success.
type Result struct {
	Success bool
	Message string
	Reason  FailureReason
}

// RegisterInput carries a general registration with caller-chosen roles.
// Username defaults to Email when empty.
type RegisterInput struct {
	Email    string
	Username string
	FullName string
	Password string
	Roles    []string
}

// FixedRoleInput carries a registration whose role is decided by the endpoint.
type FixedRoleInput struct {
	Email    string
	Username string
	FullName string
	Password string
}

type RegisterResult struct {
	Result
	UserID string
}

// CredentialsInput is the email/password pair used by login, logout and deletion.
type CredentialsInput struct {
	Email    string
	Password string
}

type LoginResult struct {
	Result
	UserID      string
	Email       string
	AccessToken string
	ExpiresAt   time.Time
}

type ChangePasswordInput struct {
	Email       string
	OldPassword string
	NewPassword string
}

type ChangePasswordResult struct {
	Result
	AccessToken string
	ExpiresAt   time.Time
}

// IdentityService is the credential and role-management workflow.
type IdentityService interface {
	Register(ctx context.Context, in RegisterInput) (*RegisterResult, error)
	RegisterUser(ctx context.Context, in FixedRoleInput) (*RegisterResult, error)
	RegisterAdmin(ctx context.Context, in FixedRoleInput) (*RegisterResult, error)
	RegisterSuperAdmin(ctx context.Context, in FixedRoleInput) (*RegisterResult, error)
	Login(ctx context.Context, in CredentialsInput) (*LoginResult, error)
	ChangePassword(ctx context.Context, in ChangePasswordInput) (*ChangePasswordResult, error)
	Logout(ctx context.Context, in CredentialsInput) (*Result, error)
	DeleteAccount(ctx context.Context, in CredentialsInput) (*Result, error)
}
