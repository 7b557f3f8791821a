package questsim

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/profilequest/pkg/logger"
)

// Run signs up cfg.Users accounts, saves their quests and completes every
// quest twice concurrently. Exactly one of each pair must win; the other
// must be rejected with 409. Afterwards each profile is verified.
func Run(ctx context.Context, cfg *Config) (*Report, error) {
	log := logger.Get().Named("questsim")
	start := time.Now()

	if cfg.Users < 1 || cfg.QuestsPerUser < 1 {
		return nil, errors.New("users and quests per user must be at least 1")
	}
	workers := max(cfg.Workers, 1)
	client := NewClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting simulation",
		logger.String("base_url", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("quests_per_user", cfg.QuestsPerUser),
		logger.Int("workers", workers))

	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	plans := buildPlans(cfg)
	rep := &Report{Users: len(plans)}

	// Accounts and quest lists.
	var saved atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range plans {
		g.Go(func() error {
			sess, err := client.Signup(gctx, p.Email, p.Name, simPassword)
			if err != nil {
				return fmt.Errorf("signup %s: %w", p.Email, err)
			}
			p.token = sess.Token
			qs, err := client.SaveQuests(gctx, p.token, p.Quests)
			if err != nil {
				return fmt.Errorf("save quests for %s: %w", p.Email, err)
			}
			saved.Add(int64(len(qs)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	rep.QuestsSaved = int(saved.Load())

	// Racing completions.
	var completions, denied, levelUps atomic.Int64
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range plans {
		for _, q := range p.Quests {
			for range 2 {
				g.Go(func() error {
					res, err := client.Complete(gctx, p.token, q.Title)
					switch {
					case err == nil:
						completions.Add(1)
						if res.LeveledUp {
							levelUps.Add(1)
						}
						if cfg.Verbose {
							log.Debug(gctx, "quest completed",
								logger.String("user", p.Email),
								logger.String("title", q.Title),
								logger.Int("level", res.Profile.Level))
						}
						return nil
					case IsStatus(err, http.StatusConflict):
						denied.Add(1)
						return nil
					default:
						return fmt.Errorf("complete %q for %s: %w", q.Title, p.Email, err)
					}
				})
			}
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	rep.Completions = int(completions.Load())
	rep.DuplicatesDenied = int(denied.Load())
	rep.LevelUps = int(levelUps.Load())

	if err := verify(ctx, client, cfg, plans, rep); err != nil {
		return rep, err
	}

	rep.Duration = time.Since(start)
	log.Info(ctx, "simulation finished",
		logger.Int("users", rep.Users),
		logger.Int("completions", rep.Completions),
		logger.Int("duplicates_denied", rep.DuplicatesDenied),
		logger.Int("level_ups", rep.LevelUps),
		logger.Int64("total_xp", rep.TotalXP),
		logger.Duration("duration", rep.Duration))
	return rep, nil
}
