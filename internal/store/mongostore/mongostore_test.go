package mongostore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/models"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/store"
)

// newTestStore needs a reachable server; set MONGODB_TEST_URI to run.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	db := client.Database("guardbulldog_test_" + uuid.NewString()[:8])
	require.NoError(t, EnsureIndexes(ctx, db))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return New(client, db)
}

func TestMalformedIDIsNotFound(t *testing.T) {
	_, err := objectID("not-hex")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReportFilterBuildsDateRange(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	filter := reportFilter(store.ReportFilter{
		ReportedBy:  "u1",
		Statuses:    []models.ReportStatus{models.StatusConfirmed},
		CreatedFrom: &from,
	})

	assert.Equal(t, "u1", filter["reportedBy"])
	assert.Contains(t, filter, "status")
	assert.Contains(t, filter, "createdAt")
	assert.NotContains(t, filter, "severity")
}

func TestReportLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	report := &models.Report{
		ReportedBy:   "u1",
		EmailSubject: "Win a prize",
		SenderEmail:  "x@gmail.com",
		EmailContent: "winner",
		ReportType:   models.ReportTypeSpam,
		Severity:     models.SeverityMedium,
		Status:       models.StatusPending,
		AnalysisResults: models.AnalysisResults{
			RiskScore:  50,
			Verdict:    models.VerdictSuspicious,
			AnalyzedBy: "system",
			AnalyzedAt: now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, st.CreateReport(ctx, report))

	note := &models.AdminNote{Note: "Status changed to confirmed: yes", AddedBy: "rev", AddedAt: now}
	updated, err := st.UpdateReportStatus(ctx, report.ID, models.StatusConfirmed, note)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, updated.Status)
	require.Len(t, updated.AdminNotes, 1)

	senders, err := st.TopSenders(ctx, store.SenderQuery{Statuses: []models.ReportStatus{models.StatusConfirmed}, Limit: 10})
	require.NoError(t, err)
	require.Len(t, senders, 1)
	assert.Equal(t, int64(1), senders[0].Count)

	entries, total, err := st.ListAdminNotes(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, report.ID, entries[0].ReportID)

	_, err = st.UpdateReportStatus(ctx, "000000000000000000000000", models.StatusResolved, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDuplicateUser(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, st.CreateUser(ctx, &models.User{Email: "a@bowie.edu", Role: "student", CreatedAt: now, UpdatedAt: now}))
	err := st.CreateUser(ctx, &models.User{Email: "A@bowie.edu", Role: "student", CreatedAt: now, UpdatedAt: now})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}
