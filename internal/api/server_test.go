package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/quest/internal/achievement"
	"github.com/Veraticus/quest/internal/certs"
	"github.com/Veraticus/quest/internal/importer"
	"github.com/Veraticus/quest/internal/leaderboard"
	"github.com/Veraticus/quest/internal/model"
	"github.com/Veraticus/quest/internal/scoring"
	"github.com/Veraticus/quest/internal/testutil"
	"github.com/Veraticus/quest/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testServer struct {
	*Server
	db *testutil.TestDB
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	db := testutil.SetupTestDB(t)
	scorer := scoring.New()
	engine, err := achievement.NewEngine(achievement.DefaultRules(), scorer)
	require.NoError(t, err)

	srv, err := NewServer(Deps{
		Users:       db.Storage,
		Leaderboard: db.Storage,
		Tracker:     tracker.NewService(db.Storage, scorer, engine, nil),
		Importer:    importer.New(db.Storage, scorer, engine, importer.WithMaxRows(5)),
		Scorer:      scorer,
	}, opts...)
	require.NoError(t, err)
	return &testServer{Server: srv, db: db}
}

func (ts *testServer) do(t *testing.T, method, path, user string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if user != "" {
		req.Header.Set(HeaderUserID, user)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) doJSON(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	return ts.do(t, method, path, user, r, "application/json")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNewServer_RequiresDeps(t *testing.T) {
	_, err := NewServer(Deps{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAPI_RequiresUser(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/applications", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error, HeaderUserID)
}

func TestCreateAndListApplications(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.doJSON(t, http.MethodPost, "/api/applications", "u1", map[string]string{
		"company":      "Acme",
		"position":     "SWE Intern",
		"status":       "applied",
		"applied_date": "2025-01-10",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[mutationResponse](t, rec)
	assert.Positive(t, created.Application.ID)
	assert.Equal(t, model.StatusApplied, created.Application.Status)
	assert.Equal(t, 10, created.XPGained)
	assert.Equal(t, 25, created.AchievementXP)
	assert.Equal(t, 35, created.Progress.XP)
	require.Len(t, created.NewAchievements, 1)
	assert.Equal(t, "First Steps", created.NewAchievements[0].Name)

	ts.doJSON(t, http.MethodPost, "/api/applications", "u1", map[string]string{
		"company": "Globex", "position": "PM", "status": "Offer", "applied_date": "2025-02-01",
	})
	ts.doJSON(t, http.MethodPost, "/api/applications", "u2", map[string]string{
		"company": "Initech", "position": "QA", "status": "Applied",
	})

	rec = ts.do(t, http.MethodGet, "/api/applications?sort=applied_date&order=asc", "u1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Applications []model.Application `json:"applications"`
		Total        int                 `json:"total"`
	}](t, rec)
	require.Equal(t, 2, list.Total)
	assert.Equal(t, "Acme", list.Applications[0].Company)
	assert.Equal(t, "Globex", list.Applications[1].Company)

	rec = ts.do(t, http.MethodGet, "/api/applications?status=Offer", "u1", nil, "")
	list = decode[struct {
		Applications []model.Application `json:"applications"`
		Total        int                 `json:"total"`
	}](t, rec)
	assert.Equal(t, 1, list.Total)
}

func TestListApplications_BadQuery(t *testing.T) {
	ts := newTestServer(t)

	for _, q := range []string{"sort=salary", "order=sideways", "status=Hired", "from=yesterday", "from=2025-02-01&to=2025-01-01"} {
		t.Run(q, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, "/api/applications?"+q, "u1", nil, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateApplication_Invalid(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.doJSON(t, http.MethodPost, "/api/applications", "u1", map[string]string{
		"position": "SWE",
		"status":   "Hired",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[errorResponse](t, rec)
	fields := make([]string, len(resp.Fields))
	for i, f := range resp.Fields {
		fields[i] = f.Field
	}
	assert.ElementsMatch(t, []string{"company", "status"}, fields)

	rec = ts.do(t, http.MethodPost, "/api/applications", "u1", strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateApplication(t *testing.T) {
	ts := newTestServer(t)

	created := decode[mutationResponse](t, ts.doJSON(t, http.MethodPost, "/api/applications", "u1", map[string]string{
		"company": "Acme", "position": "SWE", "status": "Applied",
	}))
	path := "/api/applications/" + itoa(created.Application.ID)

	rec := ts.doJSON(t, http.MethodPut, path, "u1", map[string]string{
		"notes":  "recruiter call",
		"status": "interviewing",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated := decode[mutationResponse](t, rec)
	assert.Equal(t, model.StatusInterviewing, updated.Application.Status)
	assert.Equal(t, "recruiter call", updated.Application.Notes)
	assert.Equal(t, 20, updated.XPGained)

	t.Run("empty body", func(t *testing.T) {
		rec := ts.doJSON(t, http.MethodPut, path, "u1", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("other user", func(t *testing.T) {
		rec := ts.doJSON(t, http.MethodPut, path, "u2", map[string]string{"status": "Offer"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDeleteApplication(t *testing.T) {
	ts := newTestServer(t)

	created := decode[mutationResponse](t, ts.doJSON(t, http.MethodPost, "/api/applications", "u1", map[string]string{
		"company": "Acme", "position": "SWE", "status": "Applied",
	}))
	path := "/api/applications/" + itoa(created.Application.ID)

	rec := ts.do(t, http.MethodDelete, path, "u1", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodDelete, path, "u1", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 35, ts.db.MustXP("u1"), "deleting keeps xp")
}

func TestImport_JSON(t *testing.T) {
	ts := newTestServer(t)

	body := `[
		{"company": "Acme", "position": "SWE", "status": "Applied"},
		{"company": "acme", "position": "swe", "status": "Applied"},
		{"company": "", "position": "PM", "status": "Applied"}
	]`
	rec := ts.do(t, http.MethodPost, "/api/applications/import", "u1", strings.NewReader(body), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	report := decode[model.ImportReport](t, rec)
	assert.Equal(t, 3, report.Summary.TotalProcessed)
	assert.Equal(t, 1, report.Summary.Successful)
	assert.Equal(t, 1, report.Summary.Failed)
	assert.Equal(t, 1, report.DuplicatesSkipped)
	require.Len(t, report.FailedImports, 1)
	assert.Equal(t, 3, report.FailedImports[0].Row)
}

func TestImport_MultipartCSV(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "apps.csv")
	require.NoError(t, err)
	_, err = io.WriteString(fw, "Company Name,Job Title,Status\nAcme,SWE,Applied\nGlobex,PM,Offer\n")
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := ts.do(t, http.MethodPost, "/api/applications/import", "u1", &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	report := decode[model.ImportReport](t, rec)
	assert.Equal(t, 2, report.Summary.Successful)
	assert.Len(t, ts.db.MustApplications("u1"), 2)
}

func TestImport_Errors(t *testing.T) {
	ts := newTestServer(t, WithMaxUploadBytes(512))

	tests := []struct {
		name        string
		body        string
		contentType string
		wantStatus  int
	}{
		{name: "malformed json", body: `{"company":`, contentType: "application/json", wantStatus: http.StatusBadRequest},
		{name: "too many rows", body: "company,position,status\n" + strings.Repeat("A,B,Applied\n", 6), contentType: "text/csv", wantStatus: http.StatusRequestEntityTooLarge},
		{name: "body too large", body: "company,position,status\n" + strings.Repeat("Acme Corporation,Engineer,Applied\n", 40), contentType: "text/csv", wantStatus: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/applications/import", "u1", strings.NewReader(tt.body), tt.contentType)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
	assert.Empty(t, ts.db.MustApplications("u1"))
}

func TestTemplate(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/applications/import/template", "u1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[importer.TemplateInfo](t, rec)
	assert.Equal(t, 5, info.MaxRows)

	rec = ts.do(t, http.MethodGet, "/api/applications/import/template?format=csv", "u1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "company,position,status,applied_date,notes"))

	rec = ts.do(t, http.MethodGet, "/api/applications/import/template?format=xlsx", "u1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotZero(t, rec.Body.Len())

	rec = ts.do(t, http.MethodGet, "/api/applications/import/template?format=pdf", "u1", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfileAndAchievements(t *testing.T) {
	ts := newTestServer(t)
	ts.db.SeedApplications("u1",
		model.Application{Company: "Acme", Position: "SWE", Status: model.StatusInterviewing},
		model.Application{Company: "Globex", Position: "SWE", Status: model.StatusApplied},
	)
	ts.db.SeedProgress("u1", 130)
	ts.db.SeedUnlocked("u1", "First Steps")

	rec := ts.do(t, http.MethodGet, "/api/profile", "u1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[tracker.Profile](t, rec)
	assert.Equal(t, 2, profile.Level)
	assert.Equal(t, 70, profile.XPToNextLevel)
	assert.InDelta(t, 50.0, profile.Stats.InterviewRate, 0.001)

	rec = ts.do(t, http.MethodGet, "/api/achievements", "u1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	catalog := decode[tracker.Catalog](t, rec)
	assert.Equal(t, 1, catalog.EarnedCount)
	assert.Equal(t, len(achievement.DefaultRules()), catalog.TotalCount)
}

func TestLeaderboard(t *testing.T) {
	ts := newTestServer(t)
	ts.db.SeedUser("u1", "Ada")
	ts.db.SeedUser("u2", "Bea")
	ts.db.SeedUser("u3", "Cy")
	ts.db.SeedProgress("u1", 40)
	ts.db.SeedProgress("u2", 250)
	ts.db.SeedProgress("u3", 40)
	ts.db.SeedUnlocked("u1", "First Steps", "Getting There")

	rec := ts.do(t, http.MethodGet, "/api/leaderboard?limit=2", "u3", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[leaderboardResponse](t, rec)
	assert.Equal(t, leaderboard.ByXP, resp.By)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "Bea", resp.Entries[0].Name)
	assert.Equal(t, 3, resp.Entries[0].Level)
	assert.Equal(t, "Ada", resp.Entries[1].Name, "ties break by name")
	require.NotNil(t, resp.You)
	assert.Equal(t, 3, resp.You.Rank)

	rec = ts.do(t, http.MethodGet, "/api/leaderboard?by=achievements", "u3", nil, "")
	resp = decode[leaderboardResponse](t, rec)
	assert.Equal(t, "Ada", resp.Entries[0].Name)

	for _, q := range []string{"by=salary", "limit=0", "limit=abc", "limit=1000"} {
		rec := ts.do(t, http.MethodGet, "/api/leaderboard?"+q, "u3", nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestUserNameHeaderRegistersUser(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil)
	req.Header.Set(HeaderUserID, "u9")
	req.Header.Set(HeaderUserName, "Nia")
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[leaderboardResponse](t, rec)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "Nia", resp.Entries[0].Name)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.doJSON(t, http.MethodPost, "/api/applications", "u1", map[string]string{
		"company": "Acme", "position": "SWE", "status": "Applied",
	})

	rec := ts.do(t, http.MethodGet, "/metrics", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "quest_xp_awarded_total 35")
	assert.Contains(t, body, `quest_http_requests_total{method="POST",path="/api/applications",status="201"} 1`)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ts := newTestServer(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.Serve(ctx, l) }()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + l.Addr().String() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	client.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServe_TLS(t *testing.T) {
	cfg, err := certs.NewFileManager(t.TempDir()).TLSConfig()
	require.NoError(t, err)
	ts := newTestServer(t, WithTLS(cfg))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.Serve(ctx, l) }()

	leaf, err := x509.ParseCertificate(cfg.Certificates[0].Certificate[0])
	require.NoError(t, err)
	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	transport := &http.Transport{TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}}
	client := &http.Client{Timeout: 5 * time.Second, Transport: transport}

	resp, err := client.Get("https://" + l.Addr().String() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	transport.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
