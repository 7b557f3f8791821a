// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/okian/profilequest/internal/adapters/ai"
	"github.com/okian/profilequest/internal/adapters/repository"
	service "github.com/okian/profilequest/internal/app"
	"github.com/okian/profilequest/internal/auth"
	"github.com/okian/profilequest/internal/domain/history"
	"github.com/okian/profilequest/internal/domain/leveling"
	"github.com/okian/profilequest/internal/domain/model"
	"github.com/okian/profilequest/internal/domain/questgen"
	"github.com/okian/profilequest/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	Health(ctx context.Context) error

	Signup(ctx context.Context, c service.Credentials) (service.Session, error)
	Login(ctx context.Context, c service.Credentials) (service.Session, error)
	// Authenticate resolves a bearer token to a user id.
	Authenticate(ctx context.Context, token string) (string, error)
	Me(ctx context.Context, userID string) (model.Profile, error)
	FindProfiles(ctx context.Context, email, name string) ([]model.Profile, error)

	GeneratePersona(ctx context.Context, userID string, req service.PersonaRequest) (service.GeneratedPersona, error)
	SavePersona(ctx context.Context, userID string, up service.PersonaUpdate) (model.Persona, error)
	Persona(ctx context.Context, userID string) (model.Persona, error)
	GenerateAvatar(ctx context.Context, userID string, req service.AvatarInput) (service.GeneratedAvatar, error)

	GenerateQuests(ctx context.Context, userID, personaType string) (service.GeneratedQuests, error)
	SaveQuests(ctx context.Context, userID string, drafts []model.QuestDraft) ([]model.Quest, error)
	ListQuests(ctx context.Context, userID, status string) ([]model.Quest, error)
	DeleteQuest(ctx context.Context, userID, title string) error
	CompleteQuest(ctx context.Context, userID, title string) (service.CompletionResult, error)

	Progress(ctx context.Context, userID string) (service.Progress, error)
	History(ctx context.Context, userID, rangeName, tz string) (service.History, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps        Dependencies
	opts        options
	limiter     *RateLimiter
	authLimiter *RateLimiter
	logger      logger.Logger
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, opts ...Option) *Server {
	o := options{
		maxBodyBytes:     15 << 20,
		rateLimit:        120,
		authRateLimit:    10,
		rateWindow:       defaultRateWindow,
		rateLimitClients: 10000,
		clock:            clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("api")
	}
	return &Server{
		deps:        deps,
		opts:        o,
		limiter:     NewRateLimiter(o.rateLimit, o.rateWindow, o.rateLimitClients, o.clock),
		authLimiter: NewRateLimiter(o.authRateLimit, o.rateWindow, o.rateLimitClients, o.clock),
		logger:      o.logger,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	public := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(s.rateLimit("api", s.limiter, h), endpoint))
	}
	authRoute := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(s.rateLimit("auth", s.authLimiter, h), endpoint))
	}
	private := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(s.rateLimit("api", s.limiter, s.requireUser(h)), endpoint))
	}

	mux.Handle("GET /metrics", MetricsHandler())
	public("GET /api/health", "health", s.handleHealth)

	authRoute("POST /api/auth/signup", "auth_signup", s.handleSignup)
	authRoute("POST /api/auth/login", "auth_login", s.handleLogin)
	private("GET /api/auth/me", "auth_me", s.handleMe)

	private("GET /api/profiles/by", "profiles_by", s.handleFindProfiles)

	private("POST /api/persona/generate", "persona_generate", s.handleGeneratePersona)
	private("POST /api/persona/save", "persona_save", s.handleSavePersona)
	private("GET /api/persona", "persona_get", s.handleGetPersona)
	private("POST /api/avatar/generate", "avatar_generate", s.handleGenerateAvatar)

	private("POST /api/quests/generate", "quests_generate", s.handleGenerateQuests)
	private("POST /api/quests/save", "quests_save", s.handleSaveQuests)
	private("GET /api/quests", "quests_list", s.handleListQuests)
	private("POST /api/quests/delete", "quests_delete", s.handleDeleteQuest)
	private("POST /api/quests/complete", "quests_complete", s.handleCompleteQuest)

	private("GET /api/progress", "progress", s.handleProgress)
	private("GET /api/xp/history", "xp_history", s.handleHistory)
}

// Handler wraps mux with the request-wide middleware.
func (s *Server) Handler(mux http.Handler) http.Handler {
	return CORS(s.opts.corsOrigins, BodyLimit(s.opts.maxBodyBytes, mux))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeJSON reads one JSON object from the body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: body exceeds %d bytes", ErrTooLarge, tooLarge.Limit)
		}
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

// classify maps domain errors onto a status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, history.ErrInvalidRange):
		return http.StatusBadRequest, "invalid_range"
	case errors.Is(err, service.ErrInvalidTimezone):
		return http.StatusBadRequest, "invalid_timezone"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, leveling.ErrInvalidAmount),
		errors.Is(err, ai.ErrBadDataURL):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrAlreadyCompleted):
		return http.StatusConflict, "already_completed"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, questgen.ErrGeneration):
		return http.StatusBadGateway, "upstream_error"
	}
	return http.StatusInternalServerError, "internal"
}

// fail writes err with its mapped status. Server errors are logged and
// their details withheld from the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", logger.String("op", op), logger.Error(err))
		if status == http.StatusInternalServerError {
			err = nil
		}
	}
	writeError(w, status, code, err)
}

func requireField(name, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%w: %s is required", ErrBadRequest, name)
	}
	return nil
}
