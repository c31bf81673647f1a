package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/attachments"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/auth"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/config"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/database"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/metrics"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/services"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/store/sqlstore"
)

type testApp struct {
	handler http.Handler
	store   *sqlstore.Store
}

func newTestApp(t *testing.T, rateLimit int) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQL("sqlite", ":memory:", zap.NewNop())
	require.NoError(t, err)
	st, err := sqlstore.New(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	files, err := attachments.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{
		Environment:     "test",
		CorsOrigins:     []string{"http://localhost:3000"},
		RateLimit:       rateLimit,
		RateLimitWindow: time.Minute,
		EnableMetrics:   true,
	}
	logger := zap.NewNop()
	collector := metrics.NewCollector()
	policy := services.DefaultAccessPolicy()

	svc := Services{
		Policy:    policy,
		Users:     services.NewUserService(st, auth.NewTokenManager("test-secret", time.Hour), policy, "bowie.edu", logger),
		Reports:   services.NewReportService(st, services.NewAnalyzer("bowie.edu"), files, policy, services.AttachmentLimits{MaxFiles: 5, MaxFileSize: 1 << 20}, logger),
		Dashboard: services.NewDashboardService(st, collector, policy, logger),
		Export:    services.NewExportService(st, st, policy, logger),
		Education: services.NewEducationService(st, policy, logger),
		Chat:      services.NewChatService("", "", logger),
	}
	return &testApp{handler: NewServer(cfg, svc, collector, logger).Handler(), store: st}
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

// register signs up a student and returns its token and user id.
func (a *testApp) register(t *testing.T, email string) (string, string) {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"firstName": "Test",
		"lastName":  "User",
		"email":     email,
		"password":  "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token, resp.User.ID
}

func (a *testApp) promote(t *testing.T, userID, role string) {
	t.Helper()
	_, err := a.store.UpdateUserRole(context.Background(), userID, role)
	require.NoError(t, err)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

var sampleSubmission = map[string]string{
	"emailSubject": "URGENT: verify your account",
	"senderEmail":  "it-support@bowie-secure.com",
	"emailContent": "Your password expires today. Click here: http://bit.ly/reset",
	"reportType":   "phishing",
}

func submitReport(t *testing.T, app *testApp, token string) string {
	t.Helper()
	rec := app.do(t, http.MethodPost, "/api/v1/reports/submit", token, sampleSubmission)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		ReportID string `json:"reportId"`
	}
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.ReportID)
	return resp.ReportID
}

func TestSubmitResponseCarriesSummaryFields(t *testing.T) {
	app := newTestApp(t, 0)
	token, _ := app.register(t, "student@bowie.edu")

	rec := app.do(t, http.MethodPost, "/api/v1/reports/submit", token, sampleSubmission)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]interface{}
	decode(t, rec, &resp)
	require.Contains(t, resp, "reportId")
	require.Contains(t, resp, "status")
	require.Contains(t, resp, "riskScore")
	assert.Equal(t, "pending", resp["status"])

	report := resp["report"].(map[string]interface{})
	assert.Equal(t, report["id"], resp["reportId"])
	analysis := report["analysisResults"].(map[string]interface{})
	assert.Equal(t, analysis["riskScore"], resp["riskScore"])
}

func TestTrendingRequiresReviewer(t *testing.T) {
	app := newTestApp(t, 0)
	studentToken, _ := app.register(t, "student@bowie.edu")
	staffToken, staffID := app.register(t, "analyst@bowie.edu")
	app.promote(t, staffID, auth.RoleStaff)
	submitReport(t, app, studentToken)

	rec := app.do(t, http.MethodGet, "/api/v1/reports/analytics/trending", studentToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/reports/analytics/trending?days=7", staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "it-support@bowie-secure.com")
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t, 0)

	rec := app.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	decode(t, rec, &resp)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "connected", resp.Database)
}

func TestRegisterAndLogin(t *testing.T) {
	app := newTestApp(t, 0)
	app.register(t, "jdoe@bowie.edu")

	rec := app.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "jdoe@bowie.edu", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	decode(t, rec, &login)
	assert.NotEmpty(t, login.Token)

	rec = app.do(t, http.MethodGet, "/api/v1/auth/profile", login.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"student"`)

	rec = app.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "jdoe@bowie.edu", "password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var errResp ErrorResponse
	decode(t, rec, &errResp)
	assert.Equal(t, "Invalid credentials", errResp.Error)

	rec = app.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"firstName": "Test", "lastName": "User", "email": "jdoe@bowie.edu", "password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterRejectsOutsideDomain(t *testing.T) {
	app := newTestApp(t, 0)

	rec := app.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"firstName": "Test", "lastName": "User", "email": "someone@gmail.com", "password": "secret123",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	decode(t, rec, &errResp)
	assert.Equal(t, "Validation failed", errResp.Error)
	assert.Contains(t, errResp.Details, "email")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := newTestApp(t, 0)

	rec := app.do(t, http.MethodGet, "/api/v1/reports/my-reports", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/reports/my-reports", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReportWorkflow(t *testing.T) {
	app := newTestApp(t, 0)
	studentToken, _ := app.register(t, "student@bowie.edu")
	otherToken, _ := app.register(t, "other@bowie.edu")
	staffToken, staffID := app.register(t, "analyst@bowie.edu")
	app.promote(t, staffID, auth.RoleStaff)

	id := submitReport(t, app, studentToken)

	rec := app.do(t, http.MethodGet, "/api/v1/reports/"+id, studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"pending"`)

	rec = app.do(t, http.MethodGet, "/api/v1/reports/"+id, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/reports/my-reports", studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine services.ReportPage
	decode(t, rec, &mine)
	assert.Len(t, mine.Reports, 1)
	assert.Equal(t, int64(1), mine.Pagination.Total)

	update := map[string]string{"status": "investigating", "notes": "looking into it"}
	rec = app.do(t, http.MethodPut, "/api/v1/reports/"+id+"/status", studentToken, update)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodPut, "/api/v1/reports/"+id+"/status", staffToken, update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated struct {
		Report struct {
			Status     string `json:"status"`
			AdminNotes []struct {
				Note string `json:"note"`
			} `json:"adminNotes"`
		} `json:"report"`
	}
	decode(t, rec, &updated)
	assert.Equal(t, "investigating", updated.Report.Status)
	require.Len(t, updated.Report.AdminNotes, 1)
	assert.Equal(t, "Status changed to investigating: looking into it", updated.Report.AdminNotes[0].Note)

	rec = app.do(t, http.MethodPut, "/api/v1/reports/"+id+"/verdict", staffToken, map[string]string{"verdict": "malicious"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodPut, "/api/v1/reports/missing-id/status", staffToken, update)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBulkUpdateReportsPerItemResults(t *testing.T) {
	app := newTestApp(t, 0)
	studentToken, _ := app.register(t, "student@bowie.edu")
	staffToken, staffID := app.register(t, "analyst@bowie.edu")
	app.promote(t, staffID, auth.RoleStaff)
	id := submitReport(t, app, studentToken)

	rec := app.do(t, http.MethodPut, "/api/v1/reports/bulk-update", staffToken, map[string]interface{}{
		"reportIds": []string{id, "missing-id"},
		"status":    "resolved",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Successful int                       `json:"successful"`
		Failed     int                       `json:"failed"`
		Results    []services.BulkItemResult `json:"results"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, 1, resp.Successful)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "Report not found", resp.Results[1].Error)
}

func TestBindingErrorsReportFieldDetails(t *testing.T) {
	app := newTestApp(t, 0)
	studentToken, _ := app.register(t, "student@bowie.edu")
	staffToken, staffID := app.register(t, "analyst@bowie.edu")
	app.promote(t, staffID, auth.RoleStaff)

	rec := app.do(t, http.MethodPost, "/api/v1/reports/submit", studentToken, map[string]string{"reportType": "phishing"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp ErrorResponse
	decode(t, rec, &errResp)
	assert.Contains(t, errResp.Details, "emailSubject")
	assert.Contains(t, errResp.Details, "senderEmail")

	rec = app.do(t, http.MethodPut, "/api/v1/reports/any/status", staffToken, map[string]string{"notes": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errResp = ErrorResponse{}
	decode(t, rec, &errResp)
	assert.Equal(t, "is required", errResp.Details["status"])
}

func TestAdminRoutesRequireReviewer(t *testing.T) {
	app := newTestApp(t, 0)
	studentToken, _ := app.register(t, "student@bowie.edu")
	staffToken, staffID := app.register(t, "analyst@bowie.edu")
	app.promote(t, staffID, auth.RoleStaff)
	submitReport(t, app, studentToken)

	rec := app.do(t, http.MethodGet, "/api/v1/admin/dashboard", studentToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/admin/dashboard", staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var overview services.DashboardOverview
	decode(t, rec, &overview)
	assert.Equal(t, int64(1), overview.Reports.Total)
	assert.Equal(t, int64(1), overview.Reports.Pending)
	assert.Len(t, overview.Reports.Trends, 30)

	rec = app.do(t, http.MethodGet, "/api/v1/admin/reports?status=pending", staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page services.ReportPage
	decode(t, rec, &page)
	assert.Len(t, page.Reports, 1)

	rec = app.do(t, http.MethodGet, "/api/v1/admin/reports?startDate=yesterday", staffToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// user management is admin only even past the reviewer gate
	rec = app.do(t, http.MethodGet, "/api/v1/admin/users", staffToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExportReportsCSV(t *testing.T) {
	app := newTestApp(t, 0)
	studentToken, _ := app.register(t, "student@bowie.edu")
	staffToken, staffID := app.register(t, "analyst@bowie.edu")
	app.promote(t, staffID, auth.RoleStaff)
	submitReport(t, app, studentToken)

	rec := app.do(t, http.MethodGet, "/api/v1/admin/reports/export?format=csv", staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "phishing_reports_")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[1], "it-support@bowie-secure.com")

	rec = app.do(t, http.MethodGet, "/api/v1/admin/reports/export?format=xml", staffToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMultipartSubmissionAndDownload(t *testing.T) {
	app := newTestApp(t, 0)
	token, _ := app.register(t, "student@bowie.edu")

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range sampleSubmission {
		require.NoError(t, w.WriteField(k, v))
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="attachments"; filename="original.txt"`)
	header.Set("Content-Type", "text/plain")
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("raw message body"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports/submit", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Report struct {
			ID          string `json:"id"`
			Attachments []struct {
				OriginalName string `json:"originalName"`
			} `json:"attachments"`
		} `json:"report"`
	}
	decode(t, rec, &resp)
	require.Len(t, resp.Report.Attachments, 1)
	assert.Equal(t, "original.txt", resp.Report.Attachments[0].OriginalName)

	rec = app.do(t, http.MethodGet, "/api/v1/reports/"+resp.Report.ID+"/attachments/0", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "raw message body", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "original.txt")

	rec = app.do(t, http.MethodGet, "/api/v1/reports/"+resp.Report.ID+"/attachments/3", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatFallsBackWithoutAPIKey(t *testing.T) {
	app := newTestApp(t, 0)
	token, _ := app.register(t, "student@bowie.edu")

	rec := app.do(t, http.MethodPost, "/api/v1/chat", token, map[string]string{"message": "How do I report a phishing email?"})
	require.Equal(t, http.StatusOK, rec.Code)
	var reply services.ChatReply
	decode(t, rec, &reply)
	assert.Equal(t, "rules", reply.Source)
	assert.NotEmpty(t, reply.Reply)

	rec = app.do(t, http.MethodPost, "/api/v1/chat", token, map[string]string{"message": "Can I talk to a person?"})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &reply)
	assert.Equal(t, services.EscalationReply, reply.Reply)
}

func TestRequestIDIsEchoed(t *testing.T) {
	app := newTestApp(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))

	rec = app.do(t, http.MethodGet, "/health", "", nil)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRateLimitRejectsExcessRequests(t *testing.T) {
	app := newTestApp(t, 2)

	for i := 0; i < 2; i++ {
		rec := app.do(t, http.MethodGet, "/api/v1/health", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := app.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// the root health check sits outside the limited group
	rec = app.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApp(t, 0)
	rec := app.do(t, http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimiterWindow(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"))

	now = now.Add(time.Minute)
	assert.True(t, rl.allow("a"))
}
