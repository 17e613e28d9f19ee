// Command identity-api runs the identity HTTP service.
//
// @title                       Identity Service API
// @version                     1.0
// @description                 Registration, login, password management and role assignment over a closed role set.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/99minutos/identity-service/internal/api"
	"github.com/99minutos/identity-service/internal/api/handler"
	"github.com/99minutos/identity-service/internal/core/service"
	mongodb "github.com/99minutos/identity-service/internal/infrastructure/db/mongo"
	redisdb "github.com/99minutos/identity-service/internal/infrastructure/db/redis"
	"github.com/99minutos/identity-service/internal/infrastructure/queue"
	"github.com/99minutos/identity-service/internal/infrastructure/token"
	"github.com/99minutos/identity-service/internal/pkg/config"
	"github.com/99minutos/identity-service/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "identity-service",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = client.Disconnect(dctx)
	}()
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("mongo index creation failed")
	}

	rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer rdb.Close()

	issuer, err := token.NewJWTIssuer(token.Config{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		TTL:      cfg.JWT.TTL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("token issuer setup failed")
	}
	tokens := redisdb.NewTokenStore(rdb, cfg.JWT.TTL)

	// The audit workers outlive the signal context so queued events are
	// still written while the server drains.
	auditService := service.NewAuditService(mongodb.NewAuditRepository(db), logger.Component("audit"))
	dispatcher := queue.NewDispatcher(cfg.Audit.Workers, auditService, logger.Component("audit-dispatcher"))
	dispatcher.Start(context.Background())

	identity := service.NewIdentityService(service.IdentityDeps{
		Accounts: mongodb.NewAccountRepository(db),
		Roles:    mongodb.NewRoleRepository(db),
		Issuer:   issuer,
		Tokens:   tokens,
		Throttle: redisdb.NewLockout(rdb, cfg.Lockout.MaxAttempts, cfg.Lockout.Duration),
		Hasher:   service.NewBcryptHasher(cfg.Password.BcryptCost),
		Audit:    dispatcher,
		Policy: service.PasswordPolicy{
			MinLength:              cfg.Password.MinLength,
			RequireDigit:           cfg.Password.RequireDigit,
			RequireLowercase:       cfg.Password.RequireLowercase,
			RequireUppercase:       cfg.Password.RequireUppercase,
			RequireNonAlphanumeric: cfg.Password.RequireNonAlphanumeric,
		},
	}, logger.Component("identity"))

	seeder := service.NewSeeder(identity, service.BootstrapAdmin{
		Username: cfg.Seed.Username,
		Email:    cfg.Seed.Email,
		Password: cfg.Seed.Password,
	}, logger.Component("seeder"))
	if err := seeder.Seed(ctx); err != nil {
		log.Fatal().Err(err).Msg("seeding failed")
	}

	e := api.NewRouter(api.RouterDeps{
		Identity:    identity,
		Audit:       auditService,
		Tokens:      issuer,
		Revocations: tokens,
		Health: map[string]handler.HealthCheck{
			"mongodb": func(ctx context.Context) error {
				return db.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
			},
			"redis": func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		},
		CORSOrigins: cfg.CORS.AllowedOrigins,
		Log:         log,
	})

	go func() {
		log.Info().Str("port", cfg.Port).Msg("identity service listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	dispatcher.Close()
}
