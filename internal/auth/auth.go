// Package auth hashes passwords and issues the bearer tokens that identify
// users to the API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/profilequest/internal/domain/model"
)

// Password length bounds in bytes; bcrypt ignores anything past 72.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

const (
	defaultTTL    = 7 * 24 * time.Hour
	defaultIssuer = "profilequest"
)

// Claims carried by a session token. Subject is the user ID.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// UserID returns the subject.
func (c Claims) UserID() string { return c.Subject }

// Manager issues and verifies credentials.
type Manager struct {
	secret []byte
	ttl    time.Duration
	cost   int
	issuer string
	clock  clockwork.Clock
	parser *jwt.Parser
}

// NewManager creates a Manager signing HS256 tokens with secret.
func NewManager(secret string, opts ...Option) *Manager {
	m := &Manager{
		secret: []byte(secret),
		ttl:    defaultTTL,
		cost:   bcrypt.DefaultCost,
		issuer: defaultIssuer,
		clock:  clockwork.NewRealClock(),
		// Time-based claims are checked against the injected clock instead.
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation()),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// HashPassword validates the length of pw and returns its bcrypt hash.
func (m *Manager) HashPassword(pw string) (string, error) {
	if len(pw) < MinPasswordLength || len(pw) > MaxPasswordLength {
		return "", ErrWeakPassword
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), m.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// CheckPassword compares pw with a stored hash.
func (m *Manager) CheckPassword(hash, pw string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrInvalidCredentials
	}
	return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
}

// IssueToken signs a session token for u and returns it with its expiry.
func (m *Manager) IssueToken(u model.User) (string, time.Time, error) {
	now := m.clock.Now().UTC().Truncate(time.Second)
	exp := now.Add(m.ttl)
	claims := Claims{
		Email: u.Email,
		Name:  u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tok, exp, nil
}

// ParseToken verifies signature, issuer and expiry.
func (m *Manager) ParseToken(tok string) (Claims, error) {
	var c Claims
	_, err := m.parser.ParseWithClaims(tok, &c, func(*jwt.Token) (any, error) { return m.secret, nil })
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	now := m.clock.Now()
	switch {
	case c.Subject == "":
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	case !c.VerifyIssuer(m.issuer, true):
		return Claims{}, fmt.Errorf("%w: issuer", ErrInvalidToken)
	case !c.VerifyExpiresAt(now, true):
		return Claims{}, fmt.Errorf("%w: expired", ErrInvalidToken)
	case !c.VerifyIssuedAt(now, false):
		return Claims{}, fmt.Errorf("%w: issued in the future", ErrInvalidToken)
	}
	return c, nil
}
