package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/okian/profilequest/internal/adapters/ai"
	"github.com/okian/profilequest/internal/adapters/http/api"
	"github.com/okian/profilequest/internal/adapters/http/swagger"
	"github.com/okian/profilequest/internal/adapters/repository"
	service "github.com/okian/profilequest/internal/app"
	"github.com/okian/profilequest/internal/auth"
	"github.com/okian/profilequest/internal/config"
	"github.com/okian/profilequest/internal/domain/questgen"
	"github.com/okian/profilequest/pkg/logger"
)

const (
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the quest refill workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	store, err := repository.Open(ctx, repository.OpenConfig{
		Driver:      cfg.StorageDriver,
		URL:         cfg.DatabaseURL,
		MaxConns:    cfg.DBMaxConns,
		AutoMigrate: cfg.StorageAutoMigrate,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "store close failed", logger.Error(err))
		}
	}()

	svc, err := newService(ctx, cfg, store)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	apiServer := api.NewServer(svc,
		api.WithMaxBodyBytes(cfg.MaxBodyBytes),
		api.WithCORSOrigins(cfg.CORSOriginList()),
		api.WithRateLimit(cfg.RateLimitRequests, cfg.RateLimitAuthRequests, cfg.RateLimitWindow),
		api.WithRateLimitClients(cfg.RateLimitClients),
		api.WithTrustedProxies(cfg.TrustedProxyList()),
	)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Handler(mux),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		runEvery(gctx, systemMetricsInterval, updateSystemMetrics)
		return nil
	})
	g.Go(func() error {
		runEvery(gctx, serviceMetricsInterval, func() { updateServiceMetrics(gctx, svc) })
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(ctx, "shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := svc.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("service stop: %w", err))
		}
		return errors.Join(errs...)
	})

	err = g.Wait()
	log.Info(ctx, "server stopped")
	return err
}

// newService wires the AI clients, token manager and store into the service.
func newService(ctx context.Context, cfg *config.Config, store repository.Store) (*service.Service, error) {
	log := logger.Get()

	loc, err := time.LoadLocation(cfg.HistoryTimezone)
	if err != nil {
		return nil, fmt.Errorf("history timezone: %w", err)
	}

	chat := ai.NewGroqClient(cfg.GroqAPIKey,
		ai.WithBaseURL(cfg.GroqBaseURL),
		ai.WithTimeout(cfg.AITimeout),
		ai.WithRetries(cfg.AIMaxRetries, 0),
	)
	if !chat.Enabled() {
		log.Warn(ctx, "no Groq API key configured; serving fallback quests")
	}
	gen := questgen.NewGenerator(chat,
		questgen.WithQuestModel(cfg.GroqQuestModel),
		questgen.WithPersonaModel(cfg.GroqPersonaModel),
		questgen.WithLogger(log.Named("questgen")),
	)

	avatarOpts := []ai.AvatarOption{ai.WithDiceBearURL(cfg.DiceBearURL)}
	if cfg.GeminiAPIKey != "" {
		imager, err := ai.NewGeminiImager(ctx, cfg.GeminiAPIKey, cfg.GeminiImageModel, "")
		if err != nil {
			log.Warn(ctx, "gemini image client unavailable; using placeholder avatars", logger.Error(err))
		} else {
			avatarOpts = append(avatarOpts, ai.WithImageGenerator(imager))
		}
	}

	am := auth.NewManager(cfg.JWTSecret, auth.WithTTL(cfg.JWTTTL), auth.WithBcryptCost(cfg.BcryptCost))

	return service.New(store, am,
		service.WithGenerator(gen),
		service.WithAvatars(ai.NewAvatarClient(avatarOpts...)),
		service.WithRefillThreshold(cfg.RefillThreshold),
		service.WithWorkerCount(cfg.RefillWorkers),
		service.WithQueueSize(cfg.RefillQueueSize),
		service.WithDedupeTTL(cfg.RefillDedupeTTL),
		service.WithHistoryLocation(loc),
		service.WithLookupLimit(cfg.ProfileLookupLimit),
		service.WithLogger(log.Named("service")),
	), nil
}
