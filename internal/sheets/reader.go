package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Veraticus/quest/internal/common"
	"github.com/Veraticus/quest/internal/importer"
	"github.com/Veraticus/quest/internal/record"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const maxRetryDelay = 30 * time.Second

// Reader reads application rows from one spreadsheet range.
type Reader struct {
	service       *sheets.Service
	logger        *slog.Logger
	spreadsheetID string
	rng           string
	retry         common.RetryOptions
}

var _ importer.Source = (*Reader)(nil)

// NewReader creates a reader authenticated with config.
func NewReader(ctx context.Context, config Config, logger *slog.Logger) (*Reader, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	service, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return newReader(service, config, logger), nil
}

func newReader(service *sheets.Service, config Config, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	rng := config.Range
	if rng == "" {
		rng = DefaultRange
	}
	return &Reader{
		service:       service,
		logger:        logger,
		spreadsheetID: config.SpreadsheetID,
		rng:           rng,
		retry: common.RetryOptions{
			MaxAttempts:  config.RetryAttempts + 1,
			InitialDelay: config.RetryDelay,
			MaxDelay:     maxRetryDelay,
			Multiplier:   2.0,
		},
	}
}

// ReadTable returns the formatted cell values of the range. Transient API failures are retried.
func (r *Reader) ReadTable(ctx context.Context) ([][]string, error) {
	var resp *sheets.ValueRange
	err := common.WithRetry(ctx, func() error {
		var getErr error
		resp, getErr = r.service.Spreadsheets.Values.Get(r.spreadsheetID, r.rng).
			ValueRenderOption("FORMATTED_VALUE").
			Context(ctx).
			Do()
		return classify(getErr)
	}, r.retry)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from spreadsheet %s: %w", r.rng, r.spreadsheetID, err)
	}

	table := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = fmt.Sprint(v)
			}
		}
		table[i] = cells
	}

	r.logger.Info("Read spreadsheet range",
		"spreadsheet_id", r.spreadsheetID,
		"range", resp.Range,
		"rows", len(table))
	return table, nil
}

// ReadRows reads the range and maps its header row to application fields.
func (r *Reader) ReadRows(ctx context.Context) ([]record.RawRow, error) {
	table, err := r.ReadTable(ctx)
	if err != nil {
		return nil, err
	}
	return importer.ParseTable(importer.FormatSheets, table)
}

// classify marks API errors as retryable or permanent.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return &common.RetryableError{Err: fmt.Errorf("%w: %v", common.ErrRateLimit, err), Retryable: true}
	case apiErr.Code >= 500:
		return &common.RetryableError{Err: err, Retryable: true}
	default:
		return &common.RetryableError{Err: err, Retryable: false}
	}
}

// createSheetsService creates a read-only Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		oauthConfig := OAuth2Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			TokenFile:    config.TokenFile,
		}

		token := &oauth2.Token{RefreshToken: config.RefreshToken, TokenType: "Bearer"}
		if config.RefreshToken == "" {
			saved, err := GetOrCreateToken(ctx, oauthConfig)
			if err != nil {
				return nil, err
			}
			token = saved
		}

		tokenSource = oauthConfig.oauth2().TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}
	return srv, nil
}
