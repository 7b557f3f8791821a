package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // history zones must resolve on hosts without zoneinfo

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment names.
const (
	EnvPrefix     = "PQ_"
	EnvConfigFile = "PQ_CONFIG"

	minJWTSecretLen = 16
	minBcryptCost   = 4
	maxBcryptCost   = 31
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if PQ_CONFIG is set
//  3. env (prefix PQ_)
//
// The provider keys GROQ_API_KEY and GEMINI_API_KEY are honored when the
// prefixed variants are unset.
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// PQ_JWT_SECRET -> jwt_secret
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if cfg.GroqAPIKey == "" {
		cfg.GroqAPIKey = os.Getenv("GROQ_API_KEY")
	}
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case len(c.JWTSecret) < minJWTSecretLen:
		return invalid("jwt_secret must be at least %d characters", minJWTSecretLen)
	case c.JWTTTL <= 0:
		return invalid("jwt_ttl must be positive")
	case c.BcryptCost < minBcryptCost || c.BcryptCost > maxBcryptCost:
		return invalid("bcrypt_cost must be within [%d, %d]", minBcryptCost, maxBcryptCost)
	case c.MaxBodyBytes <= 0:
		return invalid("max_body_bytes must be positive")
	case c.RefillQueueSize < 1 || c.RefillWorkers < 1:
		return invalid("refill_queue_size and refill_workers must be at least 1")
	case c.RefillThreshold < 0:
		return invalid("refill_threshold must not be negative")
	case c.RateLimitRequests < 1 || c.RateLimitAuthRequests < 1 || c.RateLimitClients < 1:
		return invalid("rate limit budgets must be at least 1")
	case c.RateLimitWindow <= 0:
		return invalid("rate_limit_window must be positive")
	case c.ProfileLookupLimit < 1:
		return invalid("profile_lookup_limit must be at least 1")
	}

	switch c.StorageDriver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.DatabaseURL == "" {
			return invalid("database_url is required for %s", c.StorageDriver)
		}
	default:
		return invalid("unknown storage_driver %q", c.StorageDriver)
	}

	if _, err := time.LoadLocation(c.HistoryTimezone); err != nil {
		return invalid("history_timezone: %v", err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
