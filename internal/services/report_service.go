package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/attachments"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/models"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/store"
)

const maxBulkUpdate = 100

var allowedAttachmentTypes = map[string]bool{
	"text/plain":      true,
	"text/html":       true,
	"message/rfc822":  true,
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
}

type AttachmentLimits struct {
	MaxFiles    int
	MaxFileSize int64
}

type ReportService struct {
	reports  store.ReportStore
	analyzer Scorer
	files    attachments.Store
	policy   AccessPolicy
	limits   AttachmentLimits
	logger   *zap.Logger
	now      func() time.Time
}

func NewReportService(reports store.ReportStore, analyzer Scorer, files attachments.Store, policy AccessPolicy, limits AttachmentLimits, logger *zap.Logger) *ReportService {
	return &ReportService{
		reports:  reports,
		analyzer: analyzer,
		files:    files,
		policy:   policy,
		limits:   limits,
		logger:   logger.With(zap.String("service", "reports")),
		now:      time.Now,
	}
}

type AttachmentUpload struct {
	OriginalName string
	Mimetype     string
	Size         int64
	Content      io.Reader
}

type SubmitReportInput struct {
	EmailSubject string `json:"emailSubject" validate:"required,max=500"`
	SenderEmail  string `json:"senderEmail" validate:"required,email"`
	SenderName   string `json:"senderName" validate:"max=200"`
	EmailContent string `json:"emailContent" validate:"required"`
	EmailHeaders string `json:"emailHeaders"`
	ReportType   string `json:"reportType" validate:"required,oneof=phishing spam malware suspicious other"`
	Severity     string `json:"severity" validate:"omitempty,oneof=low medium high critical"`

	IPAddress   string             `json:"-"`
	UserAgent   string             `json:"-"`
	Attachments []AttachmentUpload `json:"-"`
}

type ReportPage struct {
	Reports    []models.Report `json:"reports"`
	Pagination Pagination      `json:"pagination"`
}

type ReportQuery struct {
	Status     string
	ReportType string
	Severity   string
	StartDate  *time.Time
	EndDate    *time.Time
	Page       int
	Limit      int
}

type BulkItemResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type BulkUpdateResult struct {
	Results    []BulkItemResult `json:"results"`
	Successful int              `json:"successful"`
	Failed     int              `json:"failed"`
}

// Submit validates the report, scores it and persists it with its
// attachments. The analysis is written once here and never recomputed.
func (s *ReportService) Submit(ctx context.Context, actor Actor, in SubmitReportInput) (*models.Report, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}

	in.EmailSubject = strings.TrimSpace(in.EmailSubject)
	in.SenderEmail = strings.ToLower(strings.TrimSpace(in.SenderEmail))
	in.SenderName = strings.TrimSpace(in.SenderName)
	in.ReportType = strings.ToLower(strings.TrimSpace(in.ReportType))
	in.Severity = strings.ToLower(strings.TrimSpace(in.Severity))
	if strings.TrimSpace(in.EmailContent) == "" {
		in.EmailContent = ""
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := s.checkAttachments(in.Attachments); err != nil {
		return nil, err
	}

	severity := models.Severity(in.Severity)
	if severity == "" {
		severity = models.SeverityMedium
	}

	now := s.now().UTC()
	results := s.analyzer.Evaluate(in.EmailSubject, in.EmailContent, in.SenderEmail, now)
	if _, escalate := Classify(results.RiskScore); escalate {
		severity = models.SeverityHigh
	}

	stored, err := s.storeAttachments(ctx, in.Attachments, now)
	if err != nil {
		return nil, err
	}

	report := &models.Report{
		ReportedBy:      actor.ID,
		EmailSubject:    in.EmailSubject,
		SenderEmail:     in.SenderEmail,
		SenderName:      in.SenderName,
		EmailContent:    in.EmailContent,
		EmailHeaders:    in.EmailHeaders,
		ReportType:      models.ReportType(in.ReportType),
		Severity:        severity,
		Status:          models.StatusPending,
		AnalysisResults: results,
		AdminNotes:      []models.AdminNote{},
		Attachments:     stored,
		IPAddress:       in.IPAddress,
		UserAgent:       in.UserAgent,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.reports.CreateReport(ctx, report); err != nil {
		s.discardAttachments(ctx, stored)
		return nil, storeError("create report", err)
	}

	s.logger.Info("report submitted",
		zap.String("report_id", report.ID),
		zap.String("reported_by", actor.ID),
		zap.Int("risk_score", results.RiskScore),
		zap.String("verdict", string(results.Verdict)),
		zap.Int("attachments", len(stored)))
	return report, nil
}

func (s *ReportService) checkAttachments(uploads []AttachmentUpload) error {
	if len(uploads) == 0 {
		return nil
	}
	if s.limits.MaxFiles > 0 && len(uploads) > s.limits.MaxFiles {
		return invalid("attachments", fmt.Sprintf("at most %d files are allowed", s.limits.MaxFiles))
	}
	verr := &ValidationError{Message: "Validation failed"}
	for i, up := range uploads {
		field := fmt.Sprintf("attachments[%d]", i)
		mimetype := strings.ToLower(strings.TrimSpace(strings.SplitN(up.Mimetype, ";", 2)[0]))
		switch {
		case !allowedAttachmentTypes[mimetype]:
			verr.add(field, "file type not allowed")
		case s.limits.MaxFileSize > 0 && up.Size > s.limits.MaxFileSize:
			verr.add(field, fmt.Sprintf("file exceeds %d bytes", s.limits.MaxFileSize))
		case up.Content == nil:
			verr.add(field, "file is empty")
		}
	}
	return verr.orNil()
}

func (s *ReportService) storeAttachments(ctx context.Context, uploads []AttachmentUpload, now time.Time) ([]models.Attachment, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	if s.files == nil {
		return nil, fmt.Errorf("store attachments: %w: no attachment store configured", ErrPersistence)
	}

	stored := make([]models.Attachment, 0, len(uploads))
	for _, up := range uploads {
		key := attachments.ObjectKey(up.OriginalName, now)
		mimetype := strings.ToLower(strings.TrimSpace(strings.SplitN(up.Mimetype, ";", 2)[0]))
		if err := s.files.Put(ctx, key, up.Content, up.Size, mimetype); err != nil {
			s.discardAttachments(ctx, stored)
			return nil, fmt.Errorf("store attachment: %w: %w", ErrPersistence, err)
		}
		stored = append(stored, models.Attachment{
			Filename:     path.Base(key),
			OriginalName: path.Base(strings.ReplaceAll(up.OriginalName, "\\", "/")),
			Mimetype:     mimetype,
			Size:         up.Size,
			StorageKey:   key,
		})
	}
	return stored, nil
}

// discardAttachments removes blobs whose report was never created. It runs
// detached from ctx so a cancelled request still cleans up.
func (s *ReportService) discardAttachments(ctx context.Context, stored []models.Attachment) {
	if len(stored) == 0 || s.files == nil {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	for _, att := range stored {
		if err := s.files.Delete(cleanupCtx, att.StorageKey); err != nil {
			s.logger.Warn("failed to remove orphaned attachment", zap.String("key", att.StorageKey), zap.Error(err))
		}
	}
}

// Get returns a report to its submitter or to any reviewer.
func (s *ReportService) Get(ctx context.Context, actor Actor, id string) (*models.Report, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	report, err := s.reports.FindReportByID(ctx, id)
	if err != nil {
		return nil, storeError("find report", err)
	}
	if report.ReportedBy != actor.ID && !s.policy.CanReview(actor) {
		return nil, ErrForbidden
	}
	return report, nil
}

func (s *ReportService) ListMine(ctx context.Context, actor Actor, page, limit int) (*ReportPage, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	page, limit = normalizePage(page, limit, 10, 100)
	return s.list(ctx, store.ReportFilter{ReportedBy: actor.ID}, page, limit)
}

// List is the reviewer view over every report.
func (s *ReportService) List(ctx context.Context, actor Actor, q ReportQuery) (*ReportPage, error) {
	if err := s.policy.requireReviewer(actor); err != nil {
		return nil, err
	}

	filter := store.ReportFilter{CreatedFrom: q.StartDate, CreatedTo: q.EndDate}
	verr := &ValidationError{Message: "Validation failed"}
	if q.Status != "" {
		status := models.ReportStatus(q.Status)
		if !status.Valid() {
			verr.add("status", "unknown status")
		}
		filter.Statuses = []models.ReportStatus{status}
	}
	if q.ReportType != "" {
		filter.ReportType = models.ReportType(q.ReportType)
		if !filter.ReportType.Valid() {
			verr.add("reportType", "unknown report type")
		}
	}
	if q.Severity != "" {
		filter.Severity = models.Severity(q.Severity)
		if !filter.Severity.Valid() {
			verr.add("severity", "unknown severity")
		}
	}
	if q.StartDate != nil && q.EndDate != nil && q.StartDate.After(*q.EndDate) {
		verr.add("startDate", "must not be after endDate")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	page, limit := normalizePage(q.Page, q.Limit, 20, 100)
	return s.list(ctx, filter, page, limit)
}

func (s *ReportService) list(ctx context.Context, filter store.ReportFilter, page, limit int) (*ReportPage, error) {
	filter.Limit = limit
	filter.Offset = (page - 1) * limit
	reports, total, err := s.reports.ListReports(ctx, filter)
	if err != nil {
		return nil, storeError("list reports", err)
	}
	summaries := make([]models.Report, 0, len(reports))
	for _, r := range reports {
		summaries = append(summaries, r.Summary())
	}
	return &ReportPage{Reports: summaries, Pagination: newPagination(page, limit, total)}, nil
}

// UpdateStatus moves a report to any status. Non-blank notes are recorded
// as "Status changed to <status>: <notes>" in the same write.
func (s *ReportService) UpdateStatus(ctx context.Context, actor Actor, id string, status models.ReportStatus, notes string) (*models.Report, error) {
	if err := s.policy.requireReviewer(actor); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, invalid("status", "unknown status")
	}
	var text string
	if notes = strings.TrimSpace(notes); notes != "" {
		text = fmt.Sprintf("Status changed to %s: %s", status, notes)
	}
	return s.applyStatus(ctx, actor, id, status, text)
}

func (s *ReportService) applyStatus(ctx context.Context, actor Actor, id string, status models.ReportStatus, noteText string) (*models.Report, error) {
	var note *models.AdminNote
	if noteText != "" {
		note = &models.AdminNote{Note: noteText, AddedBy: actor.ID, AddedAt: s.now().UTC()}
	}
	report, err := s.reports.UpdateReportStatus(ctx, id, status, note)
	if err != nil {
		return nil, storeError("update report status", err)
	}
	s.logger.Info("report status changed",
		zap.String("report_id", id),
		zap.String("status", string(status)),
		zap.String("actor", actor.ID))
	return report, nil
}

func (s *ReportService) AddNote(ctx context.Context, actor Actor, id, text string) (*models.Report, error) {
	if err := s.policy.requireReviewer(actor); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("note", "is required")
	}
	report, err := s.reports.AppendReportNote(ctx, id, models.AdminNote{Note: text, AddedBy: actor.ID, AddedAt: s.now().UTC()})
	if err != nil {
		return nil, storeError("append report note", err)
	}
	return report, nil
}

// SetVerdict lets a reviewer override the analyzer verdict. It is the only
// way a report becomes safe; score and indicators stay as analyzed.
func (s *ReportService) SetVerdict(ctx context.Context, actor Actor, id string, verdict models.Verdict, reason string) (*models.Report, error) {
	if err := s.policy.requireReviewer(actor); err != nil {
		return nil, err
	}
	if !verdict.Valid() {
		return nil, invalid("verdict", "unknown verdict")
	}
	text := fmt.Sprintf("Verdict set to %s", verdict)
	if reason = strings.TrimSpace(reason); reason != "" {
		text += ": " + reason
	}
	report, err := s.reports.UpdateReportVerdict(ctx, id, verdict, models.AdminNote{Note: text, AddedBy: actor.ID, AddedAt: s.now().UTC()})
	if err != nil {
		return nil, storeError("update report verdict", err)
	}
	return report, nil
}

// BulkUpdateStatus applies the status to each id in order. Failures are
// reported per id and never roll back earlier successes.
func (s *ReportService) BulkUpdateStatus(ctx context.Context, actor Actor, ids []string, status models.ReportStatus, notes string) (*BulkUpdateResult, error) {
	if err := s.policy.requireReviewer(actor); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, invalid("reportIds", "at least one report id is required")
	}
	if len(ids) > maxBulkUpdate {
		return nil, invalid("reportIds", fmt.Sprintf("at most %d reports per request", maxBulkUpdate))
	}
	if !status.Valid() {
		return nil, invalid("status", "unknown status")
	}

	var noteText string
	if notes = strings.TrimSpace(notes); notes != "" {
		noteText = "Bulk update: " + notes
	}

	result := &BulkUpdateResult{Results: make([]BulkItemResult, 0, len(ids))}
	for _, id := range ids {
		item := BulkItemResult{ID: id}
		if err := ctx.Err(); err != nil {
			item.Error = err.Error()
		} else if _, err := s.applyStatus(ctx, actor, id, status, noteText); err != nil {
			item.Error = bulkErrorMessage(err)
			if errors.Is(err, ErrPersistence) {
				s.logger.Error("bulk status update failed", zap.String("report_id", id), zap.Error(err))
			}
		} else {
			item.Success = true
		}

		if item.Success {
			result.Successful++
		} else {
			result.Failed++
		}
		result.Results = append(result.Results, item)
	}
	return result, nil
}

func bulkErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "Report not found"
	case errors.Is(err, ErrPersistence):
		return "Failed to update report"
	default:
		return err.Error()
	}
}

// Trending lists the most reported senders over the last days. It spans
// every user's reports, so it is limited to reviewers.
func (s *ReportService) Trending(ctx context.Context, actor Actor, days int) ([]store.SenderCount, error) {
	if err := s.policy.requireReviewer(actor); err != nil {
		return nil, err
	}
	if days < 1 {
		days = 30
	}
	if days > 365 {
		days = 365
	}
	since := s.now().UTC().AddDate(0, 0, -days)
	senders, err := s.reports.TopSenders(ctx, store.SenderQuery{Since: &since, Limit: 10})
	if err != nil {
		return nil, storeError("trending senders", err)
	}
	return senders, nil
}

// OpenAttachment streams the index-th attachment of a report the actor may read.
func (s *ReportService) OpenAttachment(ctx context.Context, actor Actor, id string, index int) (*models.Attachment, io.ReadCloser, error) {
	report, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	if index < 0 || index >= len(report.Attachments) || s.files == nil {
		return nil, nil, ErrNotFound
	}
	att := report.Attachments[index]
	rc, err := s.files.Get(ctx, att.StorageKey)
	if errors.Is(err, attachments.ErrNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open attachment: %w: %w", ErrPersistence, err)
	}
	return &att, rc, nil
}
