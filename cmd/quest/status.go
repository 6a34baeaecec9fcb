package main

import (
	"github.com/Veraticus/quest/internal/cli"
	"github.com/Veraticus/quest/internal/model"
	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move an application to a new status",
		Long: `Move an application to a new status. Each status pays its XP reward once
per application, so moving back and forth does not pay twice.

Statuses: ` + model.StatusNames(),
		Example: `  quest status 12 interviewing
  quest status 12 offer`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
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

			result, err := a.tracker.UpdateStatus(ctx, userID, id, args[1])
			if err = tolerateCycle(err); err != nil {
				return userFacing(err)
			}
			return cli.RenderResult(cmd.OutOrStdout(), "Updated", result)
		},
	}
}
