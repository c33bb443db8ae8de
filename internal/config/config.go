// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor
// principles, optionally layered over a flat TOML file named by CONFIG_FILE.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v10"
)

// MinJWTSecretLength is the minimum accepted HMAC secret size in bytes.
const MinJWTSecretLength = 32

// Config holds all application configuration.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL   string        `env:"DATABASE_URL,required"`
	DBMaxConns    int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns    int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	RunMigrations bool          `env:"RUN_MIGRATIONS" envDefault:"true"`
	StoreTimeout  time.Duration `env:"STORE_TIMEOUT" envDefault:"3s"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Session tokens
	JWTSecret string        `env:"JWT_SECRET,required"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"30m"`
	JWTIssuer string        `env:"JWT_ISSUER" envDefault:"tasktrack"`

	// Task listing
	DefaultPageSize int `env:"DEFAULT_PAGE_SIZE" envDefault:"10"`
	MaxPageSize     int `env:"MAX_PAGE_SIZE" envDefault:"100"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting
	RateLimitEnabled        bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitLoginPerMinute int  `env:"RATE_LIMIT_LOGIN_PER_MINUTE" envDefault:"10"`
	RateLimitLoginBurst     int  `env:"RATE_LIMIT_LOGIN_BURST" envDefault:"5"`
	RateLimitAPIPerMinute   int  `env:"RATE_LIMIT_API_PER_MINUTE" envDefault:"600"`
	RateLimitAPIBurst       int  `env:"RATE_LIMIT_API_BURST" envDefault:"60"`

	// TrustProxyHeaders takes the client address from X-Forwarded-For / X-Real-IP.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load reads CONFIG_FILE (if set) and the process environment.
// Environment variables win over file values.
func Load() (*Config, error) {
	return LoadFrom(environ())
}

// LoadFrom builds a Config from the given variables, reading the TOML
// file named by vars["CONFIG_FILE"] underneath them.
func LoadFrom(vars map[string]string) (*Config, error) {
	merged := make(map[string]string, len(vars))
	if path := vars["CONFIG_FILE"]; path != "" {
		fileVars, err := readFile(path)
		if err != nil {
			return nil, err
		}
		for k, v := range fileVars {
			merged[k] = v
		}
	}
	for k, v := range vars {
		merged[k] = v
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: merged}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	if len(c.JWTSecret) < MinJWTSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretLength))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT must be positive"))
	}
	if c.AppPort <= 0 || c.AppPort > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT %d out of range", c.AppPort))
	}
	if c.DefaultPageSize <= 0 || c.MaxPageSize <= 0 || c.DefaultPageSize > c.MaxPageSize {
		errs = append(errs, errors.New("DEFAULT_PAGE_SIZE must be positive and not exceed MAX_PAGE_SIZE"))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat))
	}
	if c.RateLimitLoginPerMinute < 0 || c.RateLimitAPIPerMinute < 0 || c.RateLimitLoginBurst < 0 || c.RateLimitAPIBurst < 0 {
		errs = append(errs, errors.New("rate limits must not be negative"))
	}
	if c.MaxRequestBodySize <= 0 {
		errs = append(errs, errors.New("MAX_REQUEST_BODY_SIZE must be positive"))
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		errs = append(errs, errors.New("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// readFile decodes a flat TOML table of KEY = value pairs into strings.
func readFile(path string) (map[string]string, error) {
	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	vars := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case map[string]any, []map[string]any:
			return nil, fmt.Errorf("config file %s: key %q must be a scalar", path, key)
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			vars[strings.ToUpper(key)] = strings.Join(parts, ",")
		default:
			vars[strings.ToUpper(key)] = fmt.Sprint(v)
		}
	}
	return vars, nil
}

func environ() map[string]string {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return vars
}
