// Package sheets reads application rows from a Google Sheets range.
package sheets

import (
	"fmt"
	"os"
	"time"

	"github.com/Veraticus/quest/internal/common"
)

// DefaultRange is read when no range is configured: the first five columns of the first sheet.
const DefaultRange = "A:E"

// Config holds the configuration for the Google Sheets reader.
type Config struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	TokenFile          string
	ServiceAccountPath string
	SpreadsheetID      string
	Range              string
	RetryAttempts      int
	RetryDelay         time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Range:         DefaultRange,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
	}
}

// LoadFromEnv fills unset fields from GOOGLE_SHEETS_* environment variables.
func (c *Config) LoadFromEnv() {
	set := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
		}
	}
	set(&c.ClientID, "GOOGLE_SHEETS_CLIENT_ID")
	set(&c.ClientSecret, "GOOGLE_SHEETS_CLIENT_SECRET")
	set(&c.RefreshToken, "GOOGLE_SHEETS_REFRESH_TOKEN")
	set(&c.ServiceAccountPath, "GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH")
	set(&c.SpreadsheetID, "GOOGLE_SHEETS_SPREADSHEET_ID")
}

// hasOAuth reports whether OAuth2 client credentials are present.
// A refresh token or a saved token file completes them.
func (c *Config) hasOAuth() bool {
	return c.ClientID != "" && c.ClientSecret != "" && (c.RefreshToken != "" || c.TokenFile != "")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	hasOAuth := c.hasOAuth()
	hasServiceAccount := c.ServiceAccountPath != ""

	if !hasOAuth && !hasServiceAccount {
		return fmt.Errorf("%w: no Google Sheets authentication method configured", common.ErrMissingConfig)
	}
	if hasOAuth && hasServiceAccount {
		return fmt.Errorf("%w: multiple authentication methods configured; use either OAuth2 or service account", common.ErrInvalidConfig)
	}
	if c.SpreadsheetID == "" {
		return fmt.Errorf("%w: spreadsheet id is required", common.ErrMissingConfig)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("%w: retry attempts cannot be negative", common.ErrInvalidConfig)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: retry delay cannot be negative", common.ErrInvalidConfig)
	}
	return nil
}
