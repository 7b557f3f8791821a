package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/profilequest/internal/adapters/repository"
	"github.com/okian/profilequest/internal/auth"
	"github.com/okian/profilequest/internal/domain/model"
	"github.com/okian/profilequest/pkg/logger"
	"github.com/okian/profilequest/pkg/metrics"
)

// Credentials identify an account at signup or login.
type Credentials struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"max=100"`
	Password string `json:"password" validate:"required"`
}

// Session is an issued token with the profile it belongs to.
type Session struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      model.Profile `json:"user"`
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

// Signup creates an account and opens a session. A taken email is
// repository.ErrConflict.
func (s *Service) Signup(ctx context.Context, c Credentials) (Session, error) {
	c.Email = normalizeEmail(c.Email)
	c.Name = strings.TrimSpace(c.Name)
	if err := validate.Struct(c); err != nil {
		return Session{}, validationError(err)
	}
	if c.Name == "" {
		c.Name, _, _ = strings.Cut(c.Email, "@")
	}
	hash, err := s.auth.HashPassword(c.Password)
	if err != nil {
		return Session{}, err
	}
	u, err := s.store.CreateUser(ctx, model.User{Email: c.Email, Name: c.Name, PasswordHash: hash})
	if err != nil {
		return Session{}, fmt.Errorf("create user: %w", err)
	}
	metrics.RecordSignup()
	s.logger.Info(ctx, "user signed up", logger.String("user_id", u.ID))
	return s.session(u)
}

// Login checks the password and opens a session. Unknown emails and wrong
// passwords are both auth.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, c Credentials) (Session, error) {
	u, err := s.store.UserByEmail(ctx, normalizeEmail(c.Email))
	if errors.Is(err, repository.ErrNotFound) {
		metrics.RecordAuthFailure("unknown_email")
		return Session{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	if err := s.auth.CheckPassword(u.PasswordHash, c.Password); err != nil {
		metrics.RecordAuthFailure("bad_password")
		return Session{}, err
	}
	return s.session(u)
}

func (s *Service) session(u model.User) (Session, error) {
	p, err := model.NewProfile(u)
	if err != nil {
		return Session{}, err
	}
	tok, exp, err := s.auth.IssueToken(u)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: tok, ExpiresAt: exp, User: p}, nil
}

// Authenticate resolves a bearer token to its user id.
func (s *Service) Authenticate(_ context.Context, token string) (string, error) {
	c, err := s.auth.ParseToken(token)
	if err != nil {
		metrics.RecordAuthFailure("invalid_token")
		return "", err
	}
	return c.UserID(), nil
}

// Me returns the profile of userID.
func (s *Service) Me(ctx context.Context, userID string) (model.Profile, error) {
	u, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return model.Profile{}, fmt.Errorf("load user: %w", err)
	}
	return model.NewProfile(u)
}

// FindProfiles looks users up by exact email and/or name. At least one
// filter is required.
func (s *Service) FindProfiles(ctx context.Context, email, name string) ([]model.Profile, error) {
	email, name = normalizeEmail(email), strings.TrimSpace(name)
	if email == "" && name == "" {
		return nil, fmt.Errorf("%w: email or name is required", ErrInvalidInput)
	}
	users, err := s.store.FindUsers(ctx, email, name, s.lookupLimit)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	out := make([]model.Profile, 0, len(users))
	for _, u := range users {
		p, err := model.NewProfile(u)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
