package sheets

import (
	"testing"
	"time"

	"github.com/Veraticus/quest/internal/common"
	"github.com/stretchr/testify/assert"
)

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		wantIs error
		name   string
		errMsg string
		config Config
	}{
		{
			name: "partial oauth credentials",
			config: Config{
				ClientID:      "test-client",
				RefreshToken:  "test-token",
				SpreadsheetID: "sheet",
			},
			wantIs: common.ErrMissingConfig,
			errMsg: "no Google Sheets authentication method configured",
		},
		{
			name: "oauth with a token file",
			config: Config{
				ClientID:      "test-client",
				ClientSecret:  "secret",
				TokenFile:     "/tmp/token.json",
				SpreadsheetID: "sheet",
			},
		},
		{
			name: "both methods",
			config: Config{
				ClientID:           "test-client",
				ClientSecret:       "secret",
				RefreshToken:       "token",
				ServiceAccountPath: "/path/to/key.json",
				SpreadsheetID:      "sheet",
			},
			wantIs: common.ErrInvalidConfig,
			errMsg: "multiple authentication methods",
		},
		{
			name:   "missing spreadsheet",
			config: Config{ServiceAccountPath: "/path/to/key.json"},
			wantIs: common.ErrMissingConfig,
			errMsg: "spreadsheet id",
		},
		{
			name: "zero retry delay is valid",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				SpreadsheetID:      "sheet",
			},
		},
		{
			name: "negative retry delay",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				SpreadsheetID:      "sheet",
				RetryAttempts:      3,
				RetryDelay:         -1 * time.Second,
			},
			wantIs: common.ErrInvalidConfig,
			errMsg: "retry delay cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantIs == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantIs)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_SHEETS_SPREADSHEET_ID", "from-env")
	t.Setenv("GOOGLE_SHEETS_CLIENT_ID", "env-client")

	c := DefaultConfig()
	c.ClientID = "configured"
	c.LoadFromEnv()

	assert.Equal(t, "from-env", c.SpreadsheetID)
	assert.Equal(t, "configured", c.ClientID, "configured values win")
	assert.Equal(t, DefaultRange, c.Range)
}
