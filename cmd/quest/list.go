package main

import (
	"github.com/Veraticus/quest/internal/cli"
	"github.com/Veraticus/quest/internal/common"
	"github.com/Veraticus/quest/internal/model"
	"github.com/Veraticus/quest/internal/view"
	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	var (
		filter   view.Filter
		from, to string
		sortKey  string
		order    string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List applications",
		Example: `  quest list --status Interviewing
  quest list --company goo --sort company --order asc
  quest list --from 2024-01-01 --to 2024-03-31 --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, bound := range []struct {
				dst **model.Date
				arg string
			}{{&filter.DateFrom, from}, {&filter.DateTo, to}} {
				if bound.arg == "" {
					continue
				}
				d, err := model.ParseDate(bound.arg)
				if err != nil {
					return common.NewUserError("Dates must be YYYY-MM-DD", err)
				}
				*bound.dst = &d
			}
			if err := filter.Validate(); err != nil {
				return err
			}
			key, err := view.ParseSortKey(sortKey)
			if err != nil {
				return err
			}
			dir, err := view.ParseSortOrder(order)
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

			st, err := a.tracker.Snapshot(ctx, userID)
			if err != nil {
				return err
			}

			apps := view.View(st.Applications, filter, key, dir)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), apps)
			}
			return cli.RenderApplications(cmd.OutOrStdout(), apps)
		},
	}

	cmd.Flags().StringVarP(&filter.Status, "status", "s", "", "only this status ("+model.StatusNames()+" or all)")
	cmd.Flags().StringVarP(&filter.Company, "company", "c", "", "company contains (case-insensitive)")
	cmd.Flags().StringVarP(&filter.Position, "position", "p", "", "position contains (case-insensitive)")
	cmd.Flags().StringVar(&from, "from", "", "applied on or after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "applied on or before (YYYY-MM-DD)")
	cmd.Flags().StringVar(&sortKey, "sort", string(view.SortByAppliedDate), "sort by company, position, status or applied_date")
	cmd.Flags().StringVar(&order, "order", string(view.Descending), "asc or desc")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	return cmd
}
