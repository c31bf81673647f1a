// Package store defines the persistence contracts shared by the MongoDB and
// SQL backends. Implementations return ErrNotFound and ErrDuplicate for the
// two conditions callers branch on and wrap every other driver error.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/models"
)

var (
	ErrNotFound  = errors.New("store: record not found")
	ErrDuplicate = errors.New("store: duplicate record")
)

// ReportFilter narrows report listings and counts. Zero values match all.
type ReportFilter struct {
	ReportedBy  string
	Statuses    []models.ReportStatus
	ReportType  models.ReportType
	Severity    models.Severity
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type TypeCount struct {
	ReportType models.ReportType `json:"reportType"`
	Count      int64             `json:"count"`
}

type SenderQuery struct {
	Since    *time.Time
	Statuses []models.ReportStatus
	Limit    int
}

type SenderCount struct {
	SenderEmail  string          `json:"senderEmail"`
	Count        int64           `json:"count"`
	LatestReport time.Time       `json:"latestReport"`
	Severity     models.Severity `json:"severity"`
}

// NoteEntry is an admin note flattened out of its report, used for audit views.
type NoteEntry struct {
	ReportID     string           `json:"reportId"`
	EmailSubject string           `json:"emailSubject"`
	Note         models.AdminNote `json:"note"`
}

type ReportStore interface {
	CreateReport(ctx context.Context, report *models.Report) error
	FindReportByID(ctx context.Context, id string) (*models.Report, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]models.Report, int64, error)
	CountReports(ctx context.Context, filter ReportFilter) (int64, error)
	// UpdateReportStatus sets the status and, when note is non-nil, appends
	// it in the same write.
	UpdateReportStatus(ctx context.Context, id string, status models.ReportStatus, note *models.AdminNote) (*models.Report, error)
	AppendReportNote(ctx context.Context, id string, note models.AdminNote) (*models.Report, error)
	UpdateReportVerdict(ctx context.Context, id string, verdict models.Verdict, note models.AdminNote) (*models.Report, error)
	DailyReportCounts(ctx context.Context, since time.Time) ([]DailyCount, error)
	ReportTypeCounts(ctx context.Context) ([]TypeCount, error)
	TopSenders(ctx context.Context, query SenderQuery) ([]SenderCount, error)
	ListAdminNotes(ctx context.Context, limit, offset int) ([]NoteEntry, int64, error)
}

type UserFilter struct {
	Role       string
	Department string
	Search     string
	Limit      int
	Offset     int
}

type UserCountQuery struct {
	LastLoginSince *time.Time
	CreatedSince   *time.Time
}

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]models.User, int64, error)
	UpdateUserRole(ctx context.Context, id, role string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	CountUsers(ctx context.Context, query UserCountQuery) (int64, error)
}

type ModuleFilter struct {
	Category   string
	Difficulty string
	ActiveOnly bool
}

type CompletionFilter struct {
	UserID   string
	ModuleID string
}

type ModuleStore interface {
	CreateModule(ctx context.Context, module *models.EducationModule) error
	FindModuleByID(ctx context.Context, id string) (*models.EducationModule, error)
	ListModules(ctx context.Context, filter ModuleFilter) ([]models.EducationModule, error)
	UpdateModule(ctx context.Context, module *models.EducationModule) error
	SetModuleActive(ctx context.Context, id string, active bool) error
	UpdateModuleStatistics(ctx context.Context, id string, stats models.ModuleStatistics) error
	CountModules(ctx context.Context, activeOnly bool) (int64, error)
	RecordCompletion(ctx context.Context, completion *models.ModuleCompletion) error
	FindCompletion(ctx context.Context, userID, moduleID string) (*models.ModuleCompletion, error)
	ListCompletions(ctx context.Context, filter CompletionFilter) ([]models.ModuleCompletion, error)
	CountCompletions(ctx context.Context) (int64, error)
}

// Store is the full backend handed to the services.
type Store interface {
	ReportStore
	UserStore
	ModuleStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
