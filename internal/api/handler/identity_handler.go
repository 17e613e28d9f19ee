package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/api/metrics"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// IdentityHandler exposes the identity workflows over HTTP.
type IdentityHandler struct {
	identity ports.IdentityService
}

func NewIdentityHandler(identity ports.IdentityService) *IdentityHandler {
	return &IdentityHandler{identity: identity}
}

// statusFor maps a workflow failure to its HTTP status.
func statusFor(reason ports.FailureReason) int {
	switch reason {
	case ports.FailureConflict:
		return http.StatusConflict
	case ports.FailureInvalidCredentials:
		return http.StatusUnauthorized
	case ports.FailureNotFound:
		return http.StatusNotFound
	case ports.FailureLockedOut:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}

func toResult(r ports.Result) resultResponse {
	return resultResponse{Success: r.Success, Message: r.Message, Reason: string(r.Reason)}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// bindAndValidate decodes the body into req and runs the struct validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// Register creates an account with the roles named in the request.
//
// @Summary      Register an account
// @Tags         authentication
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Registration details"
// @Success      200   {object}  registerResponse
// @Failure      400   {object}  registerResponse
// @Failure      409   {object}  registerResponse
// @Failure      500   {object}  errorResponse
// @Router       /api/authentication/register [post]
func (h *IdentityHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.identity.Register(c.Request().Context(), ports.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		FullName: req.FullName,
		Password: req.Password,
		Roles:    req.Roles,
	})
	if err != nil {
		metrics.ObserveOperation("register", string(ports.FailureError))
		return err
	}
	return h.registered(c, "register", res)
}

// RegisterUser creates an account holding the User role.
//
// @Summary      Register a User
// @Tags         authentication
// @Accept       json
// @Produce      json
// @Param        body  body      fixedRoleRequest  true  "Registration details"
// @Success      200   {object}  registerResponse
// @Failure      400   {object}  registerResponse
// @Failure      409   {object}  registerResponse
// @Router       /api/authentication/register-user [post]
func (h *IdentityHandler) RegisterUser(c echo.Context) error {
	return h.fixedRole(c, "register_user", h.identity.RegisterUser)
}

// CreateAdmin creates an account holding the Admin role. SuperAdmin only.
//
// @Summary      Create an Admin
// @Tags         authentication
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      fixedRoleRequest  true  "Registration details"
// @Success      200   {object}  registerResponse
// @Failure      400   {object}  registerResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  registerResponse
// @Router       /api/authentication/create-admin [post]
func (h *IdentityHandler) CreateAdmin(c echo.Context) error {
	return h.fixedRole(c, "register_admin", h.identity.RegisterAdmin)
}

// CreateSuperAdmin creates an account holding the SuperAdmin role. SuperAdmin only.
//
// @Summary      Create a SuperAdmin
// @Tags         authentication
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      fixedRoleRequest  true  "Registration details"
// @Success      200   {object}  registerResponse
// @Failure      400   {object}  registerResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  registerResponse
// @Router       /api/authentication/create-super-admin [post]
func (h *IdentityHandler) CreateSuperAdmin(c echo.Context) error {
	return h.fixedRole(c, "register_super_admin", h.identity.RegisterSuperAdmin)
}

type fixedRoleFunc func(ctx context.Context, in ports.FixedRoleInput) (*ports.RegisterResult, error)

func (h *IdentityHandler) fixedRole(c echo.Context, op string, register fixedRoleFunc) error {
	var req fixedRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := register(c.Request().Context(), ports.FixedRoleInput{
		Email:    req.Email,
		Username: req.Username,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		metrics.ObserveOperation(op, string(ports.FailureError))
		return err
	}
	return h.registered(c, op, res)
}

func (h *IdentityHandler) registered(c echo.Context, op string, res *ports.RegisterResult) error {
	metrics.ObserveOperation(op, string(res.Reason))
	body := registerResponse{resultResponse: toResult(res.Result), UserID: res.UserID}
	if !res.Success {
		return c.JSON(statusFor(res.Reason), body)
	}
	return c.JSON(http.StatusOK, body)
}

// Login verifies credentials and returns an access token.
//
// @Summary      Login
// @Tags         authentication
// @Accept       json
// @Produce      json
// @Param        body  body      credentialsRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  loginResponse
// @Failure      429   {object}  loginResponse
// @Router       /api/authentication/login [post]
func (h *IdentityHandler) Login(c echo.Context) error {
	var req credentialsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.identity.Login(c.Request().Context(), ports.CredentialsInput{Email: req.Email, Password: req.Password})
	if err != nil {
		metrics.ObserveOperation("login", string(ports.FailureError))
		return err
	}
	metrics.ObserveOperation("login", string(res.Reason))

	body := loginResponse{resultResponse: toResult(res.Result)}
	if !res.Success {
		return c.JSON(statusFor(res.Reason), body)
	}
	metrics.TokensIssuedTotal.Inc()
	body.UserID = res.UserID
	body.Email = res.Email
	body.AccessToken = res.AccessToken
	body.ExpiresAt = timePtr(res.ExpiresAt)
	return c.JSON(http.StatusOK, body)
}

// ChangePassword replaces the password and returns a fresh token. Every
// token issued before the change stops working.
//
// @Summary      Change password
// @Tags         authentication
// @Accept       json
// @Produce      json
// @Param        body  body      changePasswordRequest  true  "Old and new password"
// @Success      200   {object}  changePasswordResponse
// @Failure      400   {object}  changePasswordResponse
// @Failure      404   {object}  changePasswordResponse
// @Router       /api/authentication/change-password [patch]
func (h *IdentityHandler) ChangePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.identity.ChangePassword(c.Request().Context(), ports.ChangePasswordInput{
		Email:       req.Email,
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		metrics.ObserveOperation("change_password", string(ports.FailureError))
		return err
	}
	metrics.ObserveOperation("change_password", string(res.Reason))

	body := changePasswordResponse{resultResponse: toResult(res.Result)}
	if !res.Success {
		status := statusFor(res.Reason)
		if res.Reason == ports.FailureInvalidCredentials {
			status = http.StatusBadRequest
		}
		return c.JSON(status, body)
	}
	metrics.TokensIssuedTotal.Inc()
	body.AccessToken = res.AccessToken
	body.ExpiresAt = timePtr(res.ExpiresAt)
	return c.JSON(http.StatusOK, body)
}

// Logout revokes every token issued to the account.
//
// @Summary      Logout
// @Tags         authentication
// @Accept       json
// @Produce      json
// @Param        body  body      credentialsRequest  true  "Credentials"
// @Success      204
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  resultResponse
// @Router       /api/authentication/logout [delete]
func (h *IdentityHandler) Logout(c echo.Context) error {
	return h.credentialsAction(c, "logout", h.identity.Logout)
}

// DeleteAccount removes the account after verifying its password.
//
// @Summary      Delete account
// @Tags         authentication
// @Accept       json
// @Produce      json
// @Param        body  body      credentialsRequest  true  "Credentials"
// @Success      204
// @Failure      400   {object}  resultResponse
// @Failure      401   {object}  resultResponse
// @Failure      404   {object}  resultResponse
// @Router       /api/authentication/delete-account [delete]
func (h *IdentityHandler) DeleteAccount(c echo.Context) error {
	return h.credentialsAction(c, "delete_account", h.identity.DeleteAccount)
}

type credentialsFunc func(ctx context.Context, in ports.CredentialsInput) (*ports.Result, error)

func (h *IdentityHandler) credentialsAction(c echo.Context, op string, action credentialsFunc) error {
	var req credentialsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := action(c.Request().Context(), ports.CredentialsInput{Email: req.Email, Password: req.Password})
	if err != nil {
		metrics.ObserveOperation(op, string(ports.FailureError))
		return err
	}
	metrics.ObserveOperation(op, string(res.Reason))
	if !res.Success {
		return c.JSON(statusFor(res.Reason), toResult(*res))
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the identity carried by the bearer token.
//
// @Summary      Current identity
// @Tags         authentication
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  meResponse
// @Failure      401  {object}  errorResponse
// @Router       /api/authentication/me [get]
func (h *IdentityHandler) Me(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	roles := claims.Roles
	if roles == nil {
		roles = []string{}
	}
	return c.JSON(http.StatusOK, meResponse{
		UserID:    claims.AccountID,
		Email:     claims.Email,
		Roles:     roles,
		TokenID:   claims.TokenID,
		ExpiresAt: timePtr(claims.ExpiresAt),
	})
}
