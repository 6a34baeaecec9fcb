package main

import (
	"fmt"

	"github.com/Veraticus/quest/internal/cli"
	"github.com/spf13/cobra"
)

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Stop tracking an application",
		Long:    `Delete an application. XP and achievements already earned are kept.`,
		Args:    cobra.ExactArgs(1),
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

			st, err := a.tracker.Delete(ctx, userID, id)
			if err != nil {
				return userFacing(err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
				fmt.Sprintf("Deleted application %d (%d remaining, %d XP kept)", id, len(st.Applications), st.Progress.XP)))
			return err
		},
	}
}
