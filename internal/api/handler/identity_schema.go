package handler

import "time"

type registerRequest struct {
	Email           string   `json:"email"           validate:"required,email"`
	Username        string   `json:"username"        validate:"omitempty,max=256"`
	FullName        string   `json:"fullName"        validate:"required,max=256"`
	Password        string   `json:"password"        validate:"required"`
	ConfirmPassword string   `json:"confirmPassword" validate:"omitempty,eqfield=Password"`
	Roles           []string `json:"roles"`
}

// fixedRoleRequest is the body of register-user, create-admin and
// create-super-admin; the role comes from the route.
type fixedRoleRequest struct {
	Email           string `json:"email"           validate:"required,email"`
	Username        string `json:"username"        validate:"omitempty,max=256"`
	FullName        string `json:"fullName"        validate:"required,max=256"`
	Password        string `json:"password"        validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"omitempty,eqfield=Password"`
}

type credentialsRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	Email       string `json:"email"       validate:"required,email"`
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type resultResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

type registerResponse struct {
	resultResponse
	UserID string `json:"userId,omitempty"`
}

type loginResponse struct {
	resultResponse
	UserID      string     `json:"userId,omitempty"`
	Email       string     `json:"email,omitempty"`
	AccessToken string     `json:"accessToken,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

type changePasswordResponse struct {
	resultResponse
	AccessToken string     `json:"accessToken,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

type meResponse struct {
	UserID    string     `json:"userId"`
	Email     string     `json:"email"`
	Roles     []string   `json:"roles"`
	TokenID   string     `json:"tokenId"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type auditQueryRequest struct {
	Email string `query:"email" validate:"omitempty,email"`
	Limit int    `query:"limit" validate:"omitempty,min=1,max=200"`
}

type auditEventResponse struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Email      string    `json:"email"`
	UserID     string    `json:"userId,omitempty"`
	Success    bool      `json:"success"`
	Reason     string    `json:"reason,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type auditListResponse struct {
	Events []auditEventResponse `json:"events"`
	Count  int                  `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}
