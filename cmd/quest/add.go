package main

import (
	"github.com/Veraticus/quest/internal/cli"
	"github.com/Veraticus/quest/internal/model"
	"github.com/Veraticus/quest/internal/record"
	"github.com/spf13/cobra"
)

func addCmd() *cobra.Command {
	var (
		company  string
		position string
		status   string
		applied  string
		notes    string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Track a new application",
		Example: `  quest add --company Google --position "Software Engineer Co-op" --date 2024-01-15
  quest add -c Shopify -p "Backend Intern" -s interview --notes "referral from Sam"`,
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

			result, err := a.tracker.Create(ctx, userID, record.RawRow{
				record.FieldCompany:     company,
				record.FieldPosition:    position,
				record.FieldStatus:      status,
				record.FieldAppliedDate: applied,
				record.FieldNotes:       notes,
			})
			if err = tolerateCycle(err); err != nil {
				return userFacing(err)
			}
			return cli.RenderResult(cmd.OutOrStdout(), "Added", result)
		},
	}

	cmd.Flags().StringVarP(&company, "company", "c", "", "company name (required)")
	cmd.Flags().StringVarP(&position, "position", "p", "", "position title (required)")
	cmd.Flags().StringVarP(&status, "status", "s", string(model.StatusApplied), "status: "+model.StatusNames())
	cmd.Flags().StringVarP(&applied, "date", "d", "", "applied date (YYYY-MM-DD, MM/DD/YYYY or MM/DD)")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")

	return cmd
}
