package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/models"
)

func TestExportReportsCSV(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.CreateUser(ctx, &models.User{ID: student.ID, FirstName: "Ada", LastName: "Lovelace", Email: student.Email, Role: "student"}))
	now := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	r := seedReport(t, st, "bad@evil.com", models.ReportTypePhishing, models.StatusConfirmed, now)

	svc := NewExportService(st, st, DefaultAccessPolicy(), zap.NewNop())
	svc.now = fixedClock(now)

	_, err := svc.ExportReports(ctx, student, ExportRequest{Format: FormatCSV})
	assert.ErrorIs(t, err, ErrForbidden)

	out, err := svc.ExportReports(ctx, staff, ExportRequest{})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", out.ContentType)
	assert.Equal(t, "phishing_reports_2026-04-02_09-30-00.csv", out.Filename)
	assert.Equal(t, 1, out.Count)

	records, err := csv.NewReader(strings.NewReader(string(out.Content))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Report ID", records[0][0])
	assert.Equal(t, []string{
		r.ID, "Ada Lovelace", student.Email, "subject", "bad@evil.com",
		"phishing", "medium", "confirmed", "0", "2026-04-02T09:30:00Z",
	}, records[1])
}

func TestExportReportsJSONWithRange(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	seedReport(t, st, "old@evil.com", models.ReportTypeSpam, models.StatusPending, now.AddDate(0, -2, 0))
	seedReport(t, st, "new@evil.com", models.ReportTypeSpam, models.StatusPending, now)

	svc := NewExportService(st, st, DefaultAccessPolicy(), zap.NewNop())
	from := now.AddDate(0, 0, -7)
	out, err := svc.ExportReports(ctx, admin, ExportRequest{Format: FormatJSON, DateFrom: &from})
	require.NoError(t, err)
	assert.Equal(t, "application/json", out.ContentType)

	var payload struct {
		Reports []struct {
			SenderEmail string `json:"senderEmail"`
			ReportedBy  string `json:"reportedBy"`
		} `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(out.Content, &payload))
	require.Len(t, payload.Reports, 1)
	assert.Equal(t, "new@evil.com", payload.Reports[0].SenderEmail)
	assert.Equal(t, "Unknown", payload.Reports[0].ReportedBy)
}

func TestValidateExportRequest(t *testing.T) {
	svc := NewExportService(nil, nil, DefaultAccessPolicy(), zap.NewNop())
	from := time.Now()
	to := from.Add(-time.Hour)

	err := svc.ValidateExportRequest(ExportRequest{Format: "xml", Status: "gone", DateFrom: &from, DateTo: &to})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 3)

	assert.NoError(t, svc.ValidateExportRequest(ExportRequest{Format: FormatJSON}))
}
