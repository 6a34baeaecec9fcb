package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Veraticus/quest/internal/cli"
	"github.com/Veraticus/quest/internal/common"
	"github.com/Veraticus/quest/internal/config"
	"github.com/Veraticus/quest/internal/importer"
	"github.com/Veraticus/quest/internal/model"
	"github.com/Veraticus/quest/internal/sheets"
	"github.com/Veraticus/quest/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func importCmd() *cobra.Command {
	var (
		format       string
		fromSheet    bool
		sheetID      string
		sheetRange   string
		noCheckpoint bool
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import applications in bulk",
		Long: `Import applications from a CSV, Excel or JSON file, or from a Google Sheets range.

Each row is validated on its own. Rows that fail validation or duplicate an
existing application are reported and skipped; the rest are created and earn
XP as if added one by one. Achievements are checked after every accepted row.
Blank lines are skipped but keep their row number, so reported rows match the file.

A checkpoint of the database is taken before the import unless --no-checkpoint
is given. Use "quest checkpoint restore" to undo an import.`,
		Example: `  quest import applications.csv
  quest import tracker.xlsx
  quest import export.txt --format csv
  quest import --sheet --spreadsheet 1AbC... --range "Applications!A:E"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromSheet == (len(args) == 1) {
				return common.NewUserError("Pass either a file or --sheet", nil)
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			userID, err := a.user(cmd.Context())
			if err != nil {
				return err
			}

			if !noCheckpoint {
				autoCheckpoint(cmd, a.store)
			}

			interrupt := cli.NewInterruptHandler(cmd.ErrOrStderr(), "Import")
			interrupt.KeepMessage("Rows imported so far are kept")
			ctx, stop := interrupt.HandleInterrupts(cmd.Context())
			defer stop()

			rec := a.importer(importer.WithProgress(cli.NewImportProgress(cmd.ErrOrStderr())))

			var report *model.ImportReport
			if fromSheet {
				report, err = importSheet(ctx, cmd, rec, userID, sheetID, sheetRange)
			} else {
				report, err = importFile(ctx, rec, userID, args[0], format)
			}
			if err = tolerateCycle(err); err != nil {
				if interrupt.WasInterrupted() {
					return common.NewUserError("Import interrupted", err)
				}
				return importFailure(err)
			}

			common.LogInfo("Import finished", common.Fields{
				"import_id":  report.ImportID,
				"successful": report.Summary.Successful,
				"failed":     report.Summary.Failed,
				"duplicates": report.DuplicatesSkipped,
				"xp":         report.TotalXPGained + report.AchievementXP,
			})
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			return cli.RenderImportReport(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "payload format: csv, xlsx or json (default: from the file extension)")
	cmd.Flags().BoolVar(&fromSheet, "sheet", false, "read rows from Google Sheets instead of a file")
	cmd.Flags().StringVar(&sheetID, "spreadsheet", "", "spreadsheet id (overrides sheets.spreadsheet_id)")
	cmd.Flags().StringVar(&sheetRange, "range", "", "A1 range to read (overrides sheets.range)")
	cmd.Flags().BoolVar(&noCheckpoint, "no-checkpoint", false, "skip the automatic checkpoint")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")

	return cmd
}

func importFile(ctx context.Context, rec *importer.Reconciler, userID, path, format string) (*model.ImportReport, error) {
	f := importer.Format(strings.ToLower(format))
	if f == "" {
		var err error
		if f, err = importer.FormatFromFilename(path); err != nil {
			return nil, common.NewUserError("Cannot tell the file format; pass --format csv, xlsx or json", err)
		}
	}

	file, err := os.Open(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("Cannot open %s", path), err)
	}
	defer func() { _ = file.Close() }()

	slog.Info("Importing applications", "file", path, "format", f)
	return rec.ImportPayload(ctx, userID, f, file)
}

func importSheet(ctx context.Context, cmd *cobra.Command, rec *importer.Reconciler, userID, sheetID, sheetRange string) (*model.ImportReport, error) {
	v := viper.GetViper()
	if sheetID != "" {
		v.Set("sheets.spreadsheet_id", sheetID)
	}
	if sheetRange != "" {
		v.Set("sheets.range", sheetRange)
	}

	cfg, err := config.LoadSheetsConfig(v)
	if err != nil {
		return nil, common.NewUserError("Google Sheets is not configured; see \"quest auth sheets\"", err)
	}

	reader, err := sheets.NewReader(ctx, cfg, slog.Default())
	if err != nil {
		return nil, err
	}

	slog.Info("Importing applications", "spreadsheet", cfg.SpreadsheetID, "range", cfg.Range)
	_, _ = fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatInfo("Reading "+cfg.Range+" from Google Sheets"))
	return rec.ImportSource(ctx, userID, reader)
}

// autoCheckpoint snapshots the database before a bulk change. Failure only warns.
func autoCheckpoint(cmd *cobra.Command, store *storage.SQLiteStorage) {
	manager, err := store.NewCheckpointManager()
	if err == nil {
		var info *storage.CheckpointInfo
		if info, err = manager.AutoCheckpoint(cmd.Context(), "import"); err == nil {
			slog.Debug("Created checkpoint", "id", info.ID, "size", formatFileSize(info.FileSize))
			return
		}
	}
	if errors.Is(err, storage.ErrInMemoryDatabase) {
		return
	}
	slog.Warn("Failed to create checkpoint before import", "error", err)
	_, _ = fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatWarning("Could not create a checkpoint; continuing without one"))
}

func importFailure(err error) error {
	switch {
	case errors.Is(err, importer.ErrTooManyRows):
		return common.NewUserError(err.Error(), err)
	case common.IsRetryable(err):
		return common.NewUserError("Google Sheets is busy; try again in a minute", err)
	case errors.Is(err, importer.ErrPayloadParse):
		return common.NewUserError("Could not read the import file: "+err.Error(), err)
	default:
		return err
	}
}
