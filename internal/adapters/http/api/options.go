package api

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/profilequest/pkg/logger"
)

const defaultRateWindow = time.Minute

type options struct {
	maxBodyBytes     int64
	corsOrigins      []string
	rateLimit        int
	authRateLimit    int
	rateWindow       time.Duration
	rateLimitClients int
	trustedProxies   []string
	clock            clockwork.Clock
	logger           logger.Logger
}

// Option configures a Server.
type Option func(*options)

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBodyBytes = n
		}
	}
}

// WithCORSOrigins restricts reflected origins. Empty or "*" reflects any origin.
func WithCORSOrigins(origins []string) Option {
	return func(o *options) { o.corsOrigins = origins }
}

// WithRateLimit sets per-client budgets per window for API and auth routes.
func WithRateLimit(requests, authRequests int, window time.Duration) Option {
	return func(o *options) {
		if requests > 0 {
			o.rateLimit = requests
		}
		if authRequests > 0 {
			o.authRateLimit = authRequests
		}
		if window > 0 {
			o.rateWindow = window
		}
	}
}

// WithRateLimitClients bounds how many client windows are tracked.
func WithRateLimitClients(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.rateLimitClients = n
		}
	}
}

// WithTrustedProxies lists proxy addresses whose X-Forwarded-For is honored.
func WithTrustedProxies(proxies []string) Option {
	return func(o *options) { o.trustedProxies = proxies }
}

// WithClock sets the clock used by rate limiting.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}
