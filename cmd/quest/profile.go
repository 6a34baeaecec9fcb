package main

import (
	"github.com/Veraticus/quest/internal/cli"
	"github.com/spf13/cobra"
)

func profileCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show level, XP and application stats",
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			profile, err := a.tracker.Profile(ctx, userID)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), profile)
			}
			return cli.RenderProfile(cmd.OutOrStdout(), profile)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func achievementsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "achievements",
		Aliases: []string{"badges"},
		Short:   "List achievements and which are unlocked",
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			catalog, err := a.tracker.Achievements(ctx, userID)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), catalog)
			}
			return cli.RenderCatalog(cmd.OutOrStdout(), catalog)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
