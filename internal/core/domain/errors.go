package domain

import "errors"

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
	ErrRoleExists   = errors.New("role already exists")
	ErrForbidden    = errors.New("access forbidden")
	ErrTokenRevoked = errors.New("token revoked")
)
