package main

import (
	"fmt"

	"github.com/Veraticus/quest/internal/cli"
	"github.com/Veraticus/quest/internal/leaderboard"
	"github.com/spf13/cobra"
)

func leaderboardCmd() *cobra.Command {
	var (
		by    string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank every user on this database",
		Example: `  quest leaderboard
  quest leaderboard --by achievements --limit 5`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			measure, err := leaderboard.ParseBy(by)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			userID, err := a.user(ctx)
			if err != nil {
				return err
			}

			entries, err := a.store.GetLeaderboardEntries(ctx)
			if err != nil {
				return err
			}
			ranked, err := leaderboard.Rank(entries, measure, a.scorer.LevelOf)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := cli.RenderLeaderboard(out, leaderboard.Top(ranked, limit), measure, userID); err != nil {
				return err
			}
			if pos, ok := leaderboard.Find(ranked, userID); ok {
				_, err = fmt.Fprintf(out, "\nYou are #%d of %d (top %.0f%%)\n", pos.Rank, pos.Total, float64(pos.Rank)/float64(pos.Total)*100)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&by, "by", string(leaderboard.ByXP), "rank by xp or achievements")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "entries to show (0 for all)")

	return cmd
}
