package questsim

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/profilequest/internal/domain/history"
	"github.com/okian/profilequest/internal/domain/leveling"
)

// ErrMismatch reports a profile whose server state disagrees with the plan.
var ErrMismatch = errors.New("state mismatch")

func verify(ctx context.Context, client *Client, cfg *Config, plans []*userPlan, rep *Report) error {
	var planned int
	for _, p := range plans {
		planned += len(p.Quests)
	}
	if rep.Completions != planned || rep.DuplicatesDenied != planned {
		return fmt.Errorf("%w: %d completions and %d denials for %d quests",
			ErrMismatch, rep.Completions, rep.DuplicatesDenied, planned)
	}

	var errs []error
	for _, p := range plans {
		if err := verifyUser(ctx, client, cfg, p); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Email, err))
			continue
		}
		rep.TotalXP += p.expectedXP()
	}
	return errors.Join(errs...)
}

func verifyUser(ctx context.Context, client *Client, cfg *Config, p *userPlan) error {
	want := p.expectedXP()
	st, err := leveling.ComputeLevel(want)
	if err != nil {
		return err
	}

	prog, err := client.Progress(ctx, p.token)
	if err != nil {
		return fmt.Errorf("progress: %w", err)
	}
	switch {
	case prog.TotalXP != want:
		return fmt.Errorf("%w: total_xp %d, want %d", ErrMismatch, prog.TotalXP, want)
	case prog.Level != st.Level || prog.XP != st.XP || prog.NextLevelXP != st.NextLevelXP:
		return fmt.Errorf("%w: level state (%d, %d, %d), want (%d, %d, %d)", ErrMismatch,
			prog.Level, prog.XP, prog.NextLevelXP, st.Level, st.XP, st.NextLevelXP)
	case prog.Completed != len(p.Quests) || prog.Available != 0:
		return fmt.Errorf("%w: %d completed and %d available quests, want %d and 0", ErrMismatch,
			prog.Completed, prog.Available, len(p.Quests))
	}

	// Every completion happened just now, so each range must account for all of it.
	for _, r := range history.Ranges() {
		h, err := client.History(ctx, p.token, string(r), cfg.Timezone)
		if err != nil {
			return fmt.Errorf("%s history: %w", r, err)
		}
		var sum int64
		for _, b := range h.Buckets {
			sum += b.XP
		}
		if sum != h.Total || h.Total != want {
			return fmt.Errorf("%w: %s history buckets sum to %d with total %d, want %d", ErrMismatch, r, sum, h.Total, want)
		}
	}
	return nil
}
