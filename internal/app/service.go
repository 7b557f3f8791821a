// Package service provides the ProfileQuest business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"

	"github.com/okian/profilequest/internal/adapters/ai"
	refillqueue "github.com/okian/profilequest/internal/adapters/mq/queue"
	workerpool "github.com/okian/profilequest/internal/adapters/mq/worker"
	"github.com/okian/profilequest/internal/adapters/repository"
	"github.com/okian/profilequest/internal/auth"
	"github.com/okian/profilequest/internal/domain/dedupe"
	"github.com/okian/profilequest/internal/domain/model"
	"github.com/okian/profilequest/internal/domain/questgen"
	"github.com/okian/profilequest/pkg/logger"
)

// Generator produces quests and personas.
type Generator interface {
	GenerateQuests(ctx context.Context, req questgen.Request) ([]model.QuestDraft, questgen.Source, error)
	GeneratePersona(ctx context.Context, in questgen.PersonaInput) (questgen.PersonaResult, questgen.Source, error)
}

// Avatars produces avatar images. It never fails; an empty image means no
// source was available.
type Avatars interface {
	Generate(ctx context.Context, req ai.AvatarRequest) ai.Image
}

// Service implements the API dependencies for ProfileQuest.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	auth    *auth.Manager
	gen     Generator
	avatars Avatars
	deduper dedupe.Deduper
	queue   *refillqueue.InMemoryQueue
	pool    *workerpool.Pool
	clock   clockwork.Clock

	// Configuration
	refillThreshold int
	workerCount     int
	queueSize       int
	dedupeTTL       time.Duration
	historyLoc      *time.Location
	lookupLimit     int

	// State
	started bool

	logger logger.Logger
}

// New constructs a Service over store and the auth manager.
func New(store repository.Store, am *auth.Manager, opts ...Option) *Service {
	s := &Service{
		store:           store,
		auth:            am,
		clock:           clockwork.NewRealClock(),
		refillThreshold: 3,
		workerCount:     runtime.NumCPU(),
		queueSize:       1024,
		dedupeTTL:       dedupe.DefaultTTL,
		historyLoc:      time.UTC,
		lookupLimit:     20,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.gen == nil {
		s.gen = questgen.NewGenerator(nil)
	}
	if s.avatars == nil {
		s.avatars = ai.NewAvatarClient(ai.WithDiceBearURL(""))
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithTTL(s.dedupeTTL))
	return s
}

// Start launches the refill pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting profilequest service...")

	s.queue = refillqueue.NewInMemoryQueue(refillqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "profilequest service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("refillThreshold", s.refillThreshold),
	)
	return nil
}

// Stop drains pending refills until ctx ends. The store is owned by the
// caller and stays open.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping profilequest service...")
	err := s.pool.Shutdown(ctx)
	s.started = false
	if err != nil {
		return fmt.Errorf("stop refill pool: %w", err)
	}
	s.logger.Info(ctx, "profilequest service stopped")
	return nil
}

// Health reports whether the store is reachable.
func (s *Service) Health(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":          s.started,
		"refill_threshold": s.refillThreshold,
		"refills_inflight": s.deduper.Size(),
	}
	if s.started {
		stats["workers"] = s.pool.Size()
		stats["queue_length"] = s.queue.Len(ctx)
	}
	return stats
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	e := verrs[0]
	return fmt.Errorf("%w: %s fails %q", ErrInvalidInput, e.Field(), e.Tag())
}
