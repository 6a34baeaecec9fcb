package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Veraticus/quest/internal/cli"
	"github.com/Veraticus/quest/internal/common"
	"github.com/Veraticus/quest/internal/config"
	"github.com/Veraticus/quest/internal/importer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func templateCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Print an import template",
		Long: `Print a template for "quest import".

csv and xlsx write a header row and one example application. json describes
the columns, accepted statuses and the row limit.`,
		Example: `  quest template > applications.csv
  quest template --format xlsx -o tracker.xlsx
  quest template --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var write func(io.Writer) error
			switch importer.Format(strings.ToLower(format)) {
			case importer.FormatCSV:
				write = importer.WriteTemplate
			case importer.FormatXLSX:
				if output == "" {
					return common.NewUserError("Excel templates need an output file; pass -o tracker.xlsx", nil)
				}
				write = importer.WriteTemplateXLSX
			case importer.FormatJSON:
				cfg, err := config.Load(viper.GetViper())
				if err != nil {
					return err
				}
				write = func(w io.Writer) error { return writeJSON(w, importer.Template(cfg.Import.MaxRows)) }
			default:
				return common.NewUserError(fmt.Sprintf("Unknown template format %q; use csv, xlsx or json", format), importer.ErrUnknownFormat)
			}

			if output == "" {
				return write(cmd.OutOrStdout())
			}

			f, err := os.Create(output) //nolint:gosec // path comes from the command line
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			if err := write(f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Wrote template to "+output))
			return err
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(importer.FormatCSV), "csv, xlsx or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")

	return cmd
}
