package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppPort  string `env:"APP_PORT" envDefault:"8080" validate:"required,numeric"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFile  string `env:"LOG_FILE"`

	OAuth   OAuthConfig
	Session SessionConfig

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	DatabaseDSN string `env:"DATABASE_DSN" validate:"required"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// OAuthConfig describes the authorization server and this client's
// registration with it. It is immutable once loaded.
type OAuthConfig struct {
	RoutePrefix string `env:"OAUTH_ROUTE_PREFIX" envDefault:"/oauth" validate:"startswith=/"`

	Issuer   string `env:"OAUTH_ISSUER" validate:"omitempty,url"`
	AuthURL  string `env:"OAUTH_AUTH_URL" validate:"required_without=Issuer,omitempty,url"`
	TokenURL string `env:"OAUTH_TOKEN_URL" validate:"required_without=Issuer,omitempty,url"`

	ClientID     string `env:"OAUTH_CLIENT_ID" validate:"required"`
	ClientSecret string `env:"OAUTH_SECRET_ID" validate:"required"`
	CallbackURL  string `env:"OAUTH_CALLBACK_URL" validate:"required,url"`
	Scopes       string `env:"OAUTH_SCOPES"`

	// TokenOrigin overrides the Origin header sent to the token endpoint.
	TokenOrigin string `env:"OAUTH_TOKEN_ORIGIN" validate:"omitempty,url"`

	ErrorURL string `env:"OAUTH_ERROR_URL" validate:"required"`
	HomeURL  string `env:"OAUTH_HOME_URL" validate:"required"`

	TokenTimeout time.Duration `env:"OAUTH_TOKEN_TIMEOUT" envDefault:"3s" validate:"gt=0"`
	PKCE         bool          `env:"OAUTH_PKCE" envDefault:"false"`
}

// ScopeList splits the space separated scope string.
func (c OAuthConfig) ScopeList() []string {
	return strings.Fields(c.Scopes)
}

type SessionConfig struct {
	TTL          time.Duration `env:"SESSION_TTL" envDefault:"24h" validate:"gt=0"`
	CookieName   string        `env:"SESSION_COOKIE_NAME" envDefault:"__Host-session" validate:"required"`
	CookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"true"`
}

// Load reads the optional dotenv files (".env" when none are given),
// then the process environment, and validates the result.
func Load(files ...string) (Config, error) {
	var cfg Config
	if err := load(&cfg, files); err != nil {
		return Config{}, err
	}

	cfg.OAuth.RoutePrefix = strings.TrimSuffix(cfg.OAuth.RoutePrefix, "/")

	return cfg, nil
}

// DatabaseConfig is the subset used by the admin tooling.
type DatabaseConfig struct {
	DatabaseDSN string `env:"DATABASE_DSN" validate:"required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"warn" validate:"oneof=trace debug info warn warning error fatal panic"`
}

// LoadDatabase is Load for tools that only talk to the database.
func LoadDatabase(files ...string) (DatabaseConfig, error) {
	var cfg DatabaseConfig
	if err := load(&cfg, files); err != nil {
		return DatabaseConfig{}, err
	}
	return cfg, nil
}

func load(cfg any, files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load %s: %w", file, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}

	return nil
}
