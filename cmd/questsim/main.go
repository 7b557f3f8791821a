// Command questsim exercises a running ProfileQuest API with concurrent
// users and verifies the resulting levels and XP history.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/profilequest/internal/questsim"
	"github.com/okian/profilequest/pkg/logger"
)

const (
	defaultUsers   = 20
	defaultQuests  = 10
	defaultReward  = 500
	defaultTimeout = 30 * time.Second
	runTimeout     = 10 * time.Minute
)

func main() {
	if err := newCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "questsim: "+err.Error())
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	cfg := &questsim.Config{}
	var logLevel string

	cmd := &cobra.Command{
		Use:           "questsim",
		Short:         "Drive a ProfileQuest API with concurrent quest completions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithLevel(logLevel)); err != nil {
				return err
			}
			if cfg.Verbose {
				_ = logger.SetLevelString("debug")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, runTimeout)
			defer cancel()

			rep, err := questsim.Run(ctx, cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d users, %d completions, %d duplicates denied, %d level-ups, %d xp in %s\n",
				rep.Users, rep.Completions, rep.DuplicatesDenied, rep.LevelUps, rep.TotalXP, rep.Duration.Round(time.Millisecond))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:8787", "base URL of the service")
	f.IntVar(&cfg.Users, "users", defaultUsers, "number of accounts to create")
	f.IntVar(&cfg.QuestsPerUser, "quests", defaultQuests, "quests saved and completed per user")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*2, "concurrent requests")
	f.Int64Var(&cfg.MaxReward, "max-reward", defaultReward, "largest XP reward per quest")
	f.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	f.StringVar(&cfg.Timezone, "tz", "", "IANA zone for history requests (server default when empty)")
	f.BoolVar(&cfg.Verbose, "verbose", false, "log every completion")
	f.StringVar(&logLevel, "log-level", "info", "log level")
	return cmd
}
