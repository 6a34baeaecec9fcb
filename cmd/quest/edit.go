package main

import (
	"github.com/Veraticus/quest/internal/cli"
	"github.com/Veraticus/quest/internal/common"
	"github.com/Veraticus/quest/internal/tracker"
	"github.com/spf13/cobra"
)

func editCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit an application's details",
		Long: `Change the company, position, applied date or notes of an application.
Only the flags given are changed. Pass --date "" to clear the applied date.
Use "quest status" to change the status.`,
		Example: `  quest edit 12 --notes "onsite on Friday"
  quest edit 12 --company "Alphabet" --date 2024-02-01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var patch tracker.Patch
			for flag, dst := range map[string]**string{
				"company":  &patch.Company,
				"position": &patch.Position,
				"date":     &patch.AppliedDate,
				"notes":    &patch.Notes,
			} {
				if cmd.Flags().Changed(flag) {
					v, _ := cmd.Flags().GetString(flag)
					*dst = &v
				}
			}
			if patch == (tracker.Patch{}) {
				return common.NewUserError("Nothing to change; pass at least one of --company, --position, --date, --notes", nil)
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

			result, err := a.tracker.Update(ctx, userID, id, patch)
			if err = tolerateCycle(err); err != nil {
				return userFacing(err)
			}
			return cli.RenderResult(cmd.OutOrStdout(), "Edited", result)
		},
	}

	cmd.Flags().StringP("company", "c", "", "company name")
	cmd.Flags().StringP("position", "p", "", "position title")
	cmd.Flags().StringP("date", "d", "", "applied date")
	cmd.Flags().String("notes", "", "free-form notes")

	return cmd
}
