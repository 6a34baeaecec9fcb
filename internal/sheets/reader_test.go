package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/quest/internal/common"
	"github.com/Veraticus/quest/internal/importer"
	"github.com/Veraticus/quest/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const valuesResponse = `{
  "range": "Sheet1!A1:E4",
  "majorDimension": "ROWS",
  "values": [
    ["Company", "Job Title", "Status", "Date Applied", "Notes"],
    ["Acme", "SWE Intern", "Applied", "2025-01-10", "referral"],
    [],
    ["Globex", "PM", "Interviewing"]
  ]
}`

func newTestReader(t *testing.T, handler http.HandlerFunc) *Reader {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	service, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.SpreadsheetID = "sheet-1"
	cfg.RetryAttempts = 2
	cfg.RetryDelay = time.Millisecond
	return newReader(service, cfg, nil)
}

func TestReader_ReadRows(t *testing.T) {
	var gotPath, gotRender string
	reader := newTestReader(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRender = r.URL.Query().Get("valueRenderOption")
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, valuesResponse)
	})

	rows, err := reader.ReadRows(context.Background())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(gotPath, "/v4/spreadsheets/sheet-1/values/"), gotPath)
	assert.Equal(t, "FORMATTED_VALUE", gotRender)

	require.Len(t, rows, 3)
	assert.Equal(t, "Acme", rows[0].Get(record.FieldCompany))
	assert.Equal(t, "SWE Intern", rows[0].Get(record.FieldPosition))
	assert.Equal(t, "2025-01-10", rows[0].Get(record.FieldAppliedDate))
	assert.Nil(t, rows[1], "blank rows keep their position")
	assert.Equal(t, "Globex", rows[2].Get(record.FieldCompany))
	assert.Equal(t, "", rows[2].Get(record.FieldNotes))
}

func TestReader_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	reader := newTestReader(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, `{"error":{"code":503,"message":"backend unavailable"}}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, valuesResponse)
	})

	table, err := reader.ReadTable(context.Background())
	require.NoError(t, err)
	assert.Len(t, table, 4)
	assert.Equal(t, int32(3), calls.Load())
}

func TestReader_GivesUpOnClientErrors(t *testing.T) {
	var calls atomic.Int32
	reader := newTestReader(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"code":404,"message":"Requested entity was not found."}}`, http.StatusNotFound)
	})

	_, err := reader.ReadRows(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, err.Error(), "sheet-1")

	var apiErr *googleapi.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Code)
}

func TestReader_EmptyRangeIsAParseError(t *testing.T) {
	reader := newTestReader(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"range":"Sheet1!A1:E1"}`)
	})

	_, err := reader.ReadRows(context.Background())
	require.ErrorIs(t, err, importer.ErrPayloadParse)

	var parseErr *importer.PayloadParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, importer.FormatSheets, parseErr.Format)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err           error
		name          string
		wantRetryable bool
		wantRateLimit bool
	}{
		{name: "rate limited", err: &googleapi.Error{Code: http.StatusTooManyRequests}, wantRetryable: true, wantRateLimit: true},
		{name: "server error", err: &googleapi.Error{Code: http.StatusBadGateway}, wantRetryable: true},
		{name: "forbidden", err: &googleapi.Error{Code: http.StatusForbidden}},
		{name: "bad request", err: &googleapi.Error{Code: http.StatusBadRequest}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err)

			var retryable *common.RetryableError
			require.ErrorAs(t, err, &retryable)
			assert.Equal(t, tt.wantRetryable, retryable.Retryable)
			assert.Equal(t, tt.wantRateLimit, errors.Is(err, common.ErrRateLimit))
		})
	}

	assert.NoError(t, classify(nil))

	plain := errors.New("connection reset")
	assert.Same(t, plain, classify(plain))
}
