package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/okian/profilequest/internal/domain/leveling"
)

func newLevelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "level <total-xp>",
		Short: "Print the level state for a total XP value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("total xp: %w", err)
			}
			st, err := leveling.ComputeLevel(total)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "level %d: %d/%d xp\n", st.Level, st.XP, st.NextLevelXP)

			if upTo, _ := cmd.Flags().GetInt("table"); upTo > 0 {
				for lvl := leveling.FirstLevel; lvl <= upTo; lvl++ {
					cum, err := leveling.CumulativeXPForLevel(lvl)
					if err != nil {
						return err
					}
					th, err := leveling.Threshold(lvl)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%d\t%d\n", lvl, cum, th)
				}
			}
			return nil
		},
	}
	cmd.Flags().Int("table", 0, "also print cumulative XP and threshold for levels 1..N")
	return cmd
}
