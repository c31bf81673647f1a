package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/models"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/store"
)

const maxExportRows = 10000

// ExportService handles report export for reviewers
type ExportService struct {
	reports store.ReportStore
	users   store.UserStore
	policy  AccessPolicy
	logger  *zap.Logger
	now     func() time.Time
}

type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

type ExportRequest struct {
	Format   ExportFormat
	DateFrom *time.Time
	DateTo   *time.Time
	Status   string
}

type ExportResponse struct {
	Content     []byte    `json:"-"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Count       int       `json:"count"`
	ExportedAt  time.Time `json:"exportedAt"`
}

// exportRow is one report joined with its submitter.
type exportRow struct {
	ReportID     string              `json:"reportId"`
	ReportedBy   string              `json:"reportedBy"`
	ReporterMail string              `json:"reporterEmail"`
	EmailSubject string              `json:"emailSubject"`
	SenderEmail  string              `json:"senderEmail"`
	ReportType   models.ReportType   `json:"reportType"`
	Severity     models.Severity     `json:"severity"`
	Status       models.ReportStatus `json:"status"`
	RiskScore    int                 `json:"riskScore"`
	Verdict      models.Verdict      `json:"verdict"`
	CreatedAt    time.Time           `json:"createdAt"`
}

func NewExportService(reports store.ReportStore, users store.UserStore, policy AccessPolicy, logger *zap.Logger) *ExportService {
	return &ExportService{
		reports: reports,
		users:   users,
		policy:  policy,
		logger:  logger.With(zap.String("service", "export")),
		now:     time.Now,
	}
}

// ExportReports renders every matching report, newest first, up to maxExportRows.
func (e *ExportService) ExportReports(ctx context.Context, actor Actor, req ExportRequest) (*ExportResponse, error) {
	if err := e.policy.requireReviewer(actor); err != nil {
		return nil, err
	}
	if req.Format == "" {
		req.Format = FormatCSV
	}
	if err := e.ValidateExportRequest(req); err != nil {
		return nil, err
	}

	filter := store.ReportFilter{CreatedFrom: req.DateFrom, CreatedTo: req.DateTo, Limit: maxExportRows}
	if req.Status != "" {
		filter.Statuses = []models.ReportStatus{models.ReportStatus(req.Status)}
	}
	reports, _, err := e.reports.ListReports(ctx, filter)
	if err != nil {
		return nil, storeError("list reports for export", err)
	}

	rows, err := e.joinReporters(ctx, reports)
	if err != nil {
		return nil, err
	}

	exportedAt := e.now().UTC()
	var content []byte
	switch req.Format {
	case FormatCSV:
		content, err = e.generateCSV(rows)
	case FormatJSON:
		content, err = e.generateJSON(rows, exportedAt)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info("reports exported",
		zap.String("actor", actor.ID),
		zap.String("format", string(req.Format)),
		zap.Int("count", len(rows)))

	return &ExportResponse{
		Content:     content,
		Filename:    e.generateFilename(req.Format, exportedAt),
		ContentType: e.getContentType(req.Format),
		Count:       len(rows),
		ExportedAt:  exportedAt,
	}, nil
}

func (e *ExportService) joinReporters(ctx context.Context, reports []models.Report) ([]exportRow, error) {
	reporters := make(map[string]*models.User)
	rows := make([]exportRow, 0, len(reports))
	for _, r := range reports {
		user, seen := reporters[r.ReportedBy]
		if !seen {
			found, err := e.users.FindUserByID(ctx, r.ReportedBy)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, storeError("find reporter", err)
			}
			user = found
			reporters[r.ReportedBy] = user
		}

		row := exportRow{
			ReportID:     r.ID,
			ReportedBy:   "Unknown",
			EmailSubject: r.EmailSubject,
			SenderEmail:  r.SenderEmail,
			ReportType:   r.ReportType,
			Severity:     r.Severity,
			Status:       r.Status,
			RiskScore:    r.AnalysisResults.RiskScore,
			Verdict:      r.AnalysisResults.Verdict,
			CreatedAt:    r.CreatedAt,
		}
		if user != nil {
			row.ReportedBy = user.FullName()
			row.ReporterMail = user.Email
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (e *ExportService) generateCSV(rows []exportRow) ([]byte, error) {
	var buf strings.Builder
	writer := csv.NewWriter(&buf)

	header := []string{
		"Report ID",
		"Reported By",
		"Email",
		"Subject",
		"Sender Email",
		"Report Type",
		"Severity",
		"Status",
		"Risk Score",
		"Created At",
	}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.ReportID,
			row.ReportedBy,
			row.ReporterMail,
			row.EmailSubject,
			row.SenderEmail,
			string(row.ReportType),
			string(row.Severity),
			string(row.Status),
			strconv.Itoa(row.RiskScore),
			row.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return []byte(buf.String()), nil
}

func (e *ExportService) generateJSON(rows []exportRow, exportedAt time.Time) ([]byte, error) {
	payload := map[string]interface{}{
		"export_info": map[string]interface{}{
			"exported_at": exportedAt,
			"format":      "json",
			"count":       len(rows),
		},
		"reports": rows,
	}
	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return out, nil
}

func (e *ExportService) generateFilename(format ExportFormat, at time.Time) string {
	return fmt.Sprintf("phishing_reports_%s.%s", at.Format("2006-01-02_15-04-05"), string(format))
}

func (e *ExportService) getContentType(format ExportFormat) string {
	switch format {
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	default:
		return "text/plain"
	}
}

func (e *ExportService) GetSupportedFormats() []ExportFormat {
	return []ExportFormat{FormatCSV, FormatJSON}
}

func (e *ExportService) ValidateExportRequest(req ExportRequest) error {
	verr := &ValidationError{Message: "Validation failed"}
	if req.Format != FormatCSV && req.Format != FormatJSON {
		verr.add("format", "unsupported format, use csv or json")
	}
	if req.Status != "" && !models.ReportStatus(req.Status).Valid() {
		verr.add("status", "unknown status")
	}
	if req.DateFrom != nil && req.DateTo != nil && req.DateFrom.After(*req.DateTo) {
		verr.add("startDate", "must not be after endDate")
	}
	return verr.orNil()
}
