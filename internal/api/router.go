package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/99minutos/identity-service/internal/api/handler"
	"github.com/99minutos/identity-service/internal/api/middleware"
	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"

	_ "github.com/99minutos/identity-service/docs"
)

const basePath = "/api/authentication"

// RouterDeps carries everything the HTTP layer needs.
type RouterDeps struct {
	Identity    ports.IdentityService
	Audit       ports.AuditService
	Tokens      middleware.TokenParser
	Revocations middleware.RevocationChecker
	Health      map[string]handler.HealthCheck
	CORSOrigins []string
	Log         zerolog.Logger

	// Registry receives the HTTP metrics and serves /metrics. The default
	// Prometheus registry is used when nil.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps RouterDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if deps.Registry != nil {
		registerer, gatherer = deps.Registry, deps.Registry
	}

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(deps.Log))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: origins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "identity",
		Subsystem:  "http",
		Registerer: registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	// --- Handlers ---
	identity := handler.NewIdentityHandler(deps.Identity)
	audit := handler.NewAuditHandler(deps.Audit)
	health := handler.NewHealthHandler(deps.Health)
	authn := middleware.Auth(deps.Tokens, deps.Revocations, deps.Log)
	superAdmin := middleware.RequireRole(domain.RoleSuperAdmin)

	// --- Identity routes ---
	g := e.Group(basePath)
	g.POST("/register", identity.Register)
	g.POST("/register-user", identity.RegisterUser)
	g.POST("/create-admin", identity.CreateAdmin, authn, superAdmin)
	g.POST("/create-super-admin", identity.CreateSuperAdmin, authn, superAdmin)
	g.POST("/login", identity.Login)
	g.PATCH("/change-password", identity.ChangePassword)
	g.DELETE("/logout", identity.Logout)
	g.DELETE("/delete-account", identity.DeleteAccount)
	g.GET("/me", identity.Me, authn)
	g.GET("/audit-events", audit.List, authn, superAdmin)

	// --- Infrastructure ---
	e.GET("/health", health.Liveness)
	e.GET("/health/ready", health.Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
