// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keys are flat snake_case names shared by YAML files and PQ_* env vars.
// - New(ctx) returns the defaults; Load(ctx) layers file and env on top and validates.
package config

import (
	"context"
	"runtime"
	"strings"
	"time"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// MaxBodyBytes caps request bodies; avatar uploads arrive as base64 data URLs.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`
	// CORSOrigins is a comma separated allow list; "*" reflects any origin.
	CORSOrigins string `koanf:"cors_origins"`

	// StorageDriver is one of memory, sqlite, postgres.
	StorageDriver string `koanf:"storage_driver"`
	// DatabaseURL is a file path for sqlite or a DSN for postgres.
	DatabaseURL        string `koanf:"database_url"`
	StorageAutoMigrate bool   `koanf:"storage_auto_migrate"`
	DBMaxConns         int    `koanf:"db_max_conns"`

	JWTSecret  string        `koanf:"jwt_secret"`
	JWTTTL     time.Duration `koanf:"jwt_ttl"`
	BcryptCost int           `koanf:"bcrypt_cost"`

	GroqAPIKey       string        `koanf:"groq_api_key"`
	GroqBaseURL      string        `koanf:"groq_base_url"`
	GroqQuestModel   string        `koanf:"groq_quest_model"`
	GroqPersonaModel string        `koanf:"groq_persona_model"`
	GeminiAPIKey     string        `koanf:"gemini_api_key"`
	GeminiImageModel string        `koanf:"gemini_image_model"`
	DiceBearURL      string        `koanf:"dicebear_url"`
	AITimeout        time.Duration `koanf:"ai_timeout"`
	AIMaxRetries     int           `koanf:"ai_max_retries"`

	// RefillThreshold triggers a background refill when available quests drop below it.
	RefillThreshold int           `koanf:"refill_threshold"`
	RefillQueueSize int           `koanf:"refill_queue_size"`
	RefillWorkers   int           `koanf:"refill_workers"`
	RefillDedupeTTL time.Duration `koanf:"refill_dedupe_ttl"`

	RateLimitRequests     int           `koanf:"rate_limit_requests"`
	RateLimitAuthRequests int           `koanf:"rate_limit_auth_requests"`
	RateLimitWindow       time.Duration `koanf:"rate_limit_window"`
	RateLimitClients      int           `koanf:"rate_limit_clients"`
	// TrustedProxies lists comma separated proxy IPs whose X-Forwarded-For is honored.
	TrustedProxies string `koanf:"trusted_proxies"`

	// HistoryTimezone is the IANA zone used when a history request carries none.
	HistoryTimezone    string `koanf:"history_timezone"`
	ProfileLookupLimit int    `koanf:"profile_lookup_limit"`
}

// New returns the default configuration.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",

		Addr:            ":8787",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    90 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		MaxBodyBytes:    15 << 20,
		CORSOrigins:     "*",

		StorageDriver:      DriverSQLite,
		DatabaseURL:        "profilequest.db",
		StorageAutoMigrate: true,
		DBMaxConns:         10,

		JWTTTL:     7 * 24 * time.Hour,
		BcryptCost: 12,

		GroqBaseURL:      "https://api.groq.com/openai/v1",
		GroqQuestModel:   "llama-3.3-70b-versatile",
		GroqPersonaModel: "openai/gpt-oss-20b",
		GeminiImageModel: "gemini-2.5-flash-image",
		DiceBearURL:      "https://api.dicebear.com/7.x/thumbs/png",
		AITimeout:        60 * time.Second,
		AIMaxRetries:     3,

		RefillThreshold: 3,
		RefillQueueSize: 1024,
		RefillWorkers:   runtime.NumCPU(),
		RefillDedupeTTL: 5 * time.Minute,

		RateLimitRequests:     120,
		RateLimitAuthRequests: 10,
		RateLimitWindow:       time.Minute,
		RateLimitClients:      10_000,

		HistoryTimezone:    "UTC",
		ProfileLookupLimit: 20,
	}
}

// TrustedProxyList splits TrustedProxies.
func (c *Config) TrustedProxyList() []string { return splitList(c.TrustedProxies) }

// CORSOriginList splits CORSOrigins.
func (c *Config) CORSOriginList() []string { return splitList(c.CORSOrigins) }

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
