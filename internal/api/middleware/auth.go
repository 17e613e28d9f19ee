package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// Context keys set by Auth for downstream handlers.
const (
	ContextKeyClaims    = "claims"
	ContextKeyAccountID = "account_id"
	ContextKeyEmail     = "email"
	ContextKeyRoles     = "roles"
)

// TokenParser verifies a bearer token and returns its claims.
type TokenParser interface {
	Parse(token string) (*ports.TokenClaims, error)
}

// RevocationChecker reports whether a token id has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Auth validates the bearer token, rejects revoked ones and injects the
// claims into the context. When the revocation store cannot be reached
// the request is refused with 503.
func Auth(parser TokenParser, revocations RevocationChecker, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims, err := parser.Parse(strings.TrimSpace(parts[1]))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			if revocations != nil {
				revoked, err := revocations.IsRevoked(c.Request().Context(), claims.TokenID)
				if err != nil {
					log.Error().Err(err).Str("token_id", claims.TokenID).Msg("revocation check failed")
					return echo.NewHTTPError(http.StatusServiceUnavailable, "token could not be verified")
				}
				if revoked {
					return echo.NewHTTPError(http.StatusUnauthorized, "token revoked").SetInternal(domain.ErrTokenRevoked)
				}
			}

			c.Set(ContextKeyClaims, claims)
			c.Set(ContextKeyAccountID, claims.AccountID)
			c.Set(ContextKeyEmail, claims.Email)
			c.Set(ContextKeyRoles, claims.Roles)

			return next(c)
		}
	}
}
