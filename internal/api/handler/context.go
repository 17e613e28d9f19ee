package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/api/middleware"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// ctxClaims extracts the claims injected by the Auth middleware. A missing
// account id means the route was mounted without the middleware.
func ctxClaims(c echo.Context) (*ports.TokenClaims, error) {
	claims, ok := c.Get(middleware.ContextKeyClaims).(*ports.TokenClaims)
	if !ok || claims == nil || claims.AccountID == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return claims, nil
}
