package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// InsecureDefaultJWTSecret is the historical fallback secret. It is only used
// when ALLOW_INSECURE_JWT_SECRET=true.
const InsecureDefaultJWTSecret = "supersecretkey"

var ErrMissingJWTSecret = errors.New("config: JWT_SECRET is required (set ALLOW_INSECURE_JWT_SECRET=true to use the built-in default)")

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Auth  AuthConfig
	Mongo MongoConfig
	Redis RedisConfig
}

type AuthConfig struct {
	JWTSecret           string        `env:"JWT_SECRET"`
	AllowInsecureSecret bool          `env:"ALLOW_INSECURE_JWT_SECRET, default=false"`
	RegisterTokenTTL    time.Duration `env:"REGISTER_TOKEN_TTL,        default=168h"`
	LoginTokenTTL       time.Duration `env:"LOGIN_TOKEN_TTL,           default=1h"`
	BcryptCost          int           `env:"BCRYPT_COST,               default=10"`
	HashWorkers         int           `env:"HASH_WORKERS,              default=0"`

	// UsingInsecureSecret is set by Validate when the fallback secret was applied.
	UsingInsecureSecret bool
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=storefront"`
}

type RedisConfig struct {
	Addr            string        `env:"REDIS_ADDR,        default=localhost:6379"`
	Password        string        `env:"REDIS_PASSWORD"`
	DB              int           `env:"REDIS_DB,          default=0"`
	ProductCacheTTL time.Duration `env:"PRODUCT_CACHE_TTL, default=5m"`
}

// Load reads configuration from environment variables using go-envconfig and
// validates it.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, nil)
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects a missing signing secret unless the insecure fallback was
// explicitly allowed.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		if !c.Auth.AllowInsecureSecret {
			return ErrMissingJWTSecret
		}
		c.Auth.JWTSecret = InsecureDefaultJWTSecret
		c.Auth.UsingInsecureSecret = true
	}
	if c.Auth.RegisterTokenTTL <= 0 || c.Auth.LoginTokenTTL <= 0 {
		return fmt.Errorf("config: token TTLs must be positive")
	}
	return nil
}

// IsDevelopment reports whether human-friendly logging should be used.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
