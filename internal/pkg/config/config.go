package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	JWT      JWTConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Password PasswordConfig
	Lockout  LockoutConfig
	Seed     SeedConfig
	Audit    AuditConfig
	CORS     CORSConfig
}

type JWTConfig struct {
	Secret   string        `env:"JWT_SECRET"`
	Issuer   string        `env:"JWT_ISSUER,   default=identity-service"`
	Audience string        `env:"JWT_AUDIENCE, default=identity-clients"`
	TTL      time.Duration `env:"JWT_TTL,      default=3h"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=identity_service"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	DB       int    `env:"REDIS_DB,       default=0"`
	Password string `env:"REDIS_PASSWORD"`
}

// PasswordConfig mirrors service.PasswordPolicy plus the bcrypt work factor.
type PasswordConfig struct {
	MinLength              int  `env:"PASSWORD_MIN_LENGTH,               default=8"`
	RequireDigit           bool `env:"PASSWORD_REQUIRE_DIGIT,            default=false"`
	RequireLowercase       bool `env:"PASSWORD_REQUIRE_LOWERCASE,        default=false"`
	RequireUppercase       bool `env:"PASSWORD_REQUIRE_UPPERCASE,        default=true"`
	RequireNonAlphanumeric bool `env:"PASSWORD_REQUIRE_NON_ALPHANUMERIC, default=true"`
	BcryptCost             int  `env:"BCRYPT_COST,                       default=10"`
}

type LockoutConfig struct {
	MaxAttempts int           `env:"LOCKOUT_MAX_ATTEMPTS, default=5"`
	Duration    time.Duration `env:"LOCKOUT_DURATION,     default=10m"`
}

// SeedConfig describes the bootstrap SuperAdmin. An empty username skips it.
type SeedConfig struct {
	Username string `env:"SEED_SUPERADMIN_USERNAME, default=SuperAdmin"`
	Email    string `env:"SEED_SUPERADMIN_EMAIL,    default=superadmin@example.com"`
	Password string `env:"SEED_SUPERADMIN_PASSWORD, default=Admin.123$"`
}

type AuditConfig struct {
	Workers int `env:"AUDIT_WORKERS, default=4"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS, default=*"`
}

// IsDevelopment reports whether the service runs in a local development
// environment, which switches logs to console output.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWT.Secret) == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	if c.Password.MinLength < 1 {
		errs = append(errs, errors.New("PASSWORD_MIN_LENGTH must be at least 1"))
	}
	if c.Lockout.MaxAttempts > 0 && c.Lockout.Duration <= 0 {
		errs = append(errs, errors.New("LOCKOUT_DURATION must be positive when lockout is enabled"))
	}
	return errors.Join(errs...)
}

// Load reads configuration from environment variables using go-envconfig.
// It panics when the environment cannot be parsed or fails validation.
func Load() *Config {
	cfg, err := LoadWith(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadWith reads configuration from the given lookuper and validates it.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
