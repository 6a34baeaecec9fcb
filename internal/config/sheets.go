package config

import (
	"github.com/Veraticus/quest/internal/sheets"
	"github.com/spf13/viper"
)

// LoadSheetsConfig builds the spreadsheet reader configuration.
// Precedence: viper (config file or QUEST_ env vars), then GOOGLE_SHEETS_* variables, then defaults.
func LoadSheetsConfig(v *viper.Viper) (sheets.Config, error) {
	config := sheets.DefaultConfig()

	config.ServiceAccountPath = ResolvePath(v, "sheets.service_account_path")
	config.TokenFile = ResolvePath(v, "sheets.token_file")
	config.ClientID = v.GetString("sheets.client_id")
	config.ClientSecret = v.GetString("sheets.client_secret")
	config.RefreshToken = v.GetString("sheets.refresh_token")
	config.SpreadsheetID = v.GetString("sheets.spreadsheet_id")
	if rng := v.GetString("sheets.range"); rng != "" {
		config.Range = rng
	}
	if v.IsSet("sheets.retry_attempts") {
		config.RetryAttempts = v.GetInt("sheets.retry_attempts")
	}
	if v.IsSet("sheets.retry_delay") {
		config.RetryDelay = v.GetDuration("sheets.retry_delay")
	}

	config.LoadFromEnv()
	config.ServiceAccountPath = ExpandPath(config.ServiceAccountPath)

	if err := config.Validate(); err != nil {
		return sheets.Config{}, err
	}
	return config, nil
}
