// Package sqlstore implements store.Store on GORM. It runs unchanged on
// PostgreSQL and SQLite, so aggregations that need dialect-specific date
// functions are folded in Go over narrow column selections.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/models"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/store"
)

type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// New migrates the schema and returns a ready store.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(
		&reportRow{},
		&indicatorRow{},
		&noteRow{},
		&attachmentRow{},
		&userRow{},
		&moduleRow{},
		&completionRow{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type reportRow struct {
	ID           string `gorm:"primaryKey;size:36"`
	ReportedBy   string `gorm:"size:36;index"`
	EmailSubject string `gorm:"size:500"`
	SenderEmail  string `gorm:"size:320;index"`
	SenderName   string `gorm:"size:200"`
	EmailContent string `gorm:"type:text"`
	EmailHeaders string `gorm:"type:text"`
	ReportType   string `gorm:"size:20;index"`
	Severity     string `gorm:"size:20"`
	Status       string `gorm:"size:20;index"`
	RiskScore    int
	Verdict      string `gorm:"size:20"`
	AnalyzedBy   string `gorm:"size:50"`
	AnalyzedAt   time.Time
	IPAddress    string `gorm:"size:64"`
	UserAgent    string `gorm:"size:500"`
	CreatedAt    time.Time `gorm:"index"`
	UpdatedAt    time.Time

	Indicators  []indicatorRow  `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE"`
	Notes       []noteRow       `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE"`
	Attachments []attachmentRow `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE"`
}

func (reportRow) TableName() string { return "reports" }

type indicatorRow struct {
	ID          uint   `gorm:"primaryKey"`
	ReportID    string `gorm:"size:36;index"`
	Position    int
	Type        string `gorm:"size:50"`
	Description string `gorm:"size:500"`
	Severity    string `gorm:"size:20"`
}

func (indicatorRow) TableName() string { return "report_indicators" }

type noteRow struct {
	ID       uint      `gorm:"primaryKey"`
	ReportID string    `gorm:"size:36;index"`
	Note     string    `gorm:"type:text"`
	AddedBy  string    `gorm:"size:36"`
	AddedAt  time.Time `gorm:"index"`
}

func (noteRow) TableName() string { return "report_notes" }

type attachmentRow struct {
	ID           uint   `gorm:"primaryKey"`
	ReportID     string `gorm:"size:36;index"`
	Position     int
	Filename     string `gorm:"size:255"`
	OriginalName string `gorm:"size:255"`
	Mimetype     string `gorm:"size:100"`
	Size         int64
	StorageKey   string `gorm:"size:500"`
}

func (attachmentRow) TableName() string { return "report_attachments" }

func newID() string {
	return uuid.NewString()
}

// translate maps gorm sentinel errors onto the store contract.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return store.ErrDuplicate
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func toReportRow(r *models.Report) reportRow {
	row := reportRow{
		ID:           r.ID,
		ReportedBy:   r.ReportedBy,
		EmailSubject: r.EmailSubject,
		SenderEmail:  r.SenderEmail,
		SenderName:   r.SenderName,
		EmailContent: r.EmailContent,
		EmailHeaders: r.EmailHeaders,
		ReportType:   string(r.ReportType),
		Severity:     string(r.Severity),
		Status:       string(r.Status),
		RiskScore:    r.AnalysisResults.RiskScore,
		Verdict:      string(r.AnalysisResults.Verdict),
		AnalyzedBy:   r.AnalysisResults.AnalyzedBy,
		AnalyzedAt:   r.AnalysisResults.AnalyzedAt,
		IPAddress:    r.IPAddress,
		UserAgent:    r.UserAgent,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	for i, ind := range r.AnalysisResults.Indicators {
		row.Indicators = append(row.Indicators, indicatorRow{
			Position:    i,
			Type:        ind.Type,
			Description: ind.Description,
			Severity:    string(ind.Severity),
		})
	}
	for _, n := range r.AdminNotes {
		row.Notes = append(row.Notes, noteRow{Note: n.Note, AddedBy: n.AddedBy, AddedAt: n.AddedAt})
	}
	for i, a := range r.Attachments {
		row.Attachments = append(row.Attachments, attachmentRow{
			Position:     i,
			Filename:     a.Filename,
			OriginalName: a.OriginalName,
			Mimetype:     a.Mimetype,
			Size:         a.Size,
			StorageKey:   a.StorageKey,
		})
	}
	return row
}

func (row reportRow) toModel() models.Report {
	r := models.Report{
		ID:           row.ID,
		ReportedBy:   row.ReportedBy,
		EmailSubject: row.EmailSubject,
		SenderEmail:  row.SenderEmail,
		SenderName:   row.SenderName,
		EmailContent: row.EmailContent,
		EmailHeaders: row.EmailHeaders,
		ReportType:   models.ReportType(row.ReportType),
		Severity:     models.Severity(row.Severity),
		Status:       models.ReportStatus(row.Status),
		AnalysisResults: models.AnalysisResults{
			RiskScore:  row.RiskScore,
			Indicators: []models.Indicator{},
			Verdict:    models.Verdict(row.Verdict),
			AnalyzedBy: row.AnalyzedBy,
			AnalyzedAt: row.AnalyzedAt,
		},
		AdminNotes: []models.AdminNote{},
		IPAddress:  row.IPAddress,
		UserAgent:  row.UserAgent,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	for _, ind := range row.Indicators {
		r.AnalysisResults.Indicators = append(r.AnalysisResults.Indicators, models.Indicator{
			Type:        ind.Type,
			Description: ind.Description,
			Severity:    models.Severity(ind.Severity),
		})
	}
	for _, n := range row.Notes {
		r.AdminNotes = append(r.AdminNotes, models.AdminNote{Note: n.Note, AddedBy: n.AddedBy, AddedAt: n.AddedAt})
	}
	for _, a := range row.Attachments {
		r.Attachments = append(r.Attachments, models.Attachment{
			Filename:     a.Filename,
			OriginalName: a.OriginalName,
			Mimetype:     a.Mimetype,
			Size:         a.Size,
			StorageKey:   a.StorageKey,
		})
	}
	return r
}
