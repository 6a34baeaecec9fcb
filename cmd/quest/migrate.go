package main

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/quest/internal/cli"
	"github.com/Veraticus/quest/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

Other commands migrate automatically; this is useful after an upgrade
or to create the database ahead of time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}

			slog.Info("Running database migrations", "database", cfg.Database.Path)
			store, err := openStorage(cmd.Context(), cfg.Database.Path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Database migrations completed: "+cfg.Database.Path))
			return err
		},
	}
}
