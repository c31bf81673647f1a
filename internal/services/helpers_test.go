package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/attachments"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/auth"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/database"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/store/sqlstore"
)

var (
	student = Actor{ID: "student-1", Role: auth.RoleStudent, Email: "student@bowie.edu"}
	other   = Actor{ID: "student-2", Role: auth.RoleStudent, Email: "other@bowie.edu"}
	faculty = Actor{ID: "faculty-1", Role: auth.RoleFaculty, Email: "prof@bowie.edu"}
	staff   = Actor{ID: "staff-1", Role: auth.RoleStaff, Email: "staff@bowie.edu"}
	admin   = Actor{ID: "admin-1", Role: auth.RoleAdmin, Email: "admin@bowie.edu"}
)

func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	db, err := database.OpenSQL("sqlite", ":memory:", zap.NewNop())
	require.NoError(t, err)
	st, err := sqlstore.New(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	return st
}

func newTestReportService(t *testing.T) (*ReportService, *sqlstore.Store) {
	t.Helper()
	st := newTestStore(t)
	files, err := attachments.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	svc := NewReportService(st, NewAnalyzer("bowie.edu"), files, DefaultAccessPolicy(),
		AttachmentLimits{MaxFiles: 5, MaxFileSize: 10 << 20}, zap.NewNop())
	return svc, st
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
