package auth

import (
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"
)

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets how long issued tokens stay valid.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(m *Manager) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			m.cost = cost
		}
	}
}

// WithIssuer sets the iss claim.
func WithIssuer(issuer string) Option {
	return func(m *Manager) {
		if issuer != "" {
			m.issuer = issuer
		}
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}
