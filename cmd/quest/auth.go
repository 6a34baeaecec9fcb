package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Veraticus/quest/internal/cli"
	"github.com/Veraticus/quest/internal/common"
	"github.com/Veraticus/quest/internal/config"
	"github.com/Veraticus/quest/internal/sheets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with external services",
	}
	cmd.AddCommand(authSheetsCmd())
	return cmd
}

func authSheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Authenticate with Google Sheets",
		Long: `Authenticate with Google Sheets using OAuth2.

This opens a browser consent page, waits for the redirect on a local port and
saves the token to sheets.token_file. Run it once before "quest import --sheet".`,
		RunE: runAuthSheets,
	}

	cmd.Flags().String("client-id", "", "OAuth2 Client ID (overrides config)")
	cmd.Flags().String("client-secret", "", "OAuth2 Client Secret (overrides config)")

	return cmd
}

func runAuthSheets(cmd *cobra.Command, _ []string) error {
	clientID := viper.GetString("sheets.client_id")
	clientSecret := viper.GetString("sheets.client_secret")
	if flagID, _ := cmd.Flags().GetString("client-id"); flagID != "" {
		clientID = flagID
	}
	if flagSecret, _ := cmd.Flags().GetString("client-secret"); flagSecret != "" {
		clientSecret = flagSecret
	}
	if clientID == "" {
		clientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
	}
	if clientID == "" || clientSecret == "" {
		return common.NewUserError("OAuth2 credentials not found; set sheets.client_id and sheets.client_secret or pass --client-id and --client-secret", common.ErrMissingConfig)
	}

	tokenFile := config.ResolvePath(viper.GetViper(), "sheets.token_file")
	if tokenFile == "" {
		tokenFile = config.DefaultTokenFile()
	}

	slog.Info("Starting Google Sheets authentication", "token_file", tokenFile)
	token, err := sheets.GetOrCreateToken(cmd.Context(), sheets.OAuth2Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenFile:    tokenFile,
	})
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	slog.Debug("Token ready", "expiry", token.Expiry)

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, cli.FormatSuccess("Google Sheets authentication saved to "+tokenFile))
	if viper.GetString("sheets.token_file") == "" {
		_, _ = fmt.Fprintf(out, "Add this to your config.yaml:\n\nsheets:\n  token_file: %q\n", tokenFile)
	}
	return nil
}
