package sqlstore

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/models"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/store"
)

func (s *Store) CreateReport(ctx context.Context, report *models.Report) error {
	if report.ID == "" {
		report.ID = newID()
	}
	row := toReportRow(report)
	row.CreatedAt = row.CreatedAt.UTC()
	row.UpdatedAt = row.UpdatedAt.UTC()
	row.AnalyzedAt = row.AnalyzedAt.UTC()

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translate("create report", err)
	}
	return nil
}

func (s *Store) FindReportByID(ctx context.Context, id string) (*models.Report, error) {
	return findReport(s.db.WithContext(ctx), id)
}

func findReport(db *gorm.DB, id string) (*models.Report, error) {
	var row reportRow
	if err := withChildren(db).First(&row, "id = ?", id).Error; err != nil {
		return nil, translate("find report", err)
	}
	report := row.toModel()
	return &report, nil
}

func withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Indicators", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Notes", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("position") })
}

func applyReportFilter(q *gorm.DB, f store.ReportFilter) *gorm.DB {
	if f.ReportedBy != "" {
		q = q.Where("reported_by = ?", f.ReportedBy)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.ReportType != "" {
		q = q.Where("report_type = ?", string(f.ReportType))
	}
	if f.Severity != "" {
		q = q.Where("severity = ?", string(f.Severity))
	}
	if f.CreatedFrom != nil {
		q = q.Where("created_at >= ?", f.CreatedFrom.UTC())
	}
	if f.CreatedTo != nil {
		q = q.Where("created_at <= ?", f.CreatedTo.UTC())
	}
	return q
}

func (s *Store) ListReports(ctx context.Context, filter store.ReportFilter) ([]models.Report, int64, error) {
	total, err := s.CountReports(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	q := withChildren(applyReportFilter(s.db.WithContext(ctx), filter)).Order("created_at DESC").Order("id DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var rows []reportRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, translate("list reports", err)
	}

	reports := make([]models.Report, 0, len(rows))
	for _, row := range rows {
		reports = append(reports, row.toModel())
	}
	return reports, total, nil
}

func (s *Store) CountReports(ctx context.Context, filter store.ReportFilter) (int64, error) {
	var total int64
	err := applyReportFilter(s.db.WithContext(ctx).Model(&reportRow{}), filter).Count(&total).Error
	if err != nil {
		return 0, translate("count reports", err)
	}
	return total, nil
}

func (s *Store) UpdateReportStatus(ctx context.Context, id string, status models.ReportStatus, note *models.AdminNote) (*models.Report, error) {
	var updated *models.Report
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.Model(&reportRow{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":     string(status),
			"updated_at": now,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if note != nil {
			if err := tx.Create(&noteRow{ReportID: id, Note: note.Note, AddedBy: note.AddedBy, AddedAt: note.AddedAt.UTC()}).Error; err != nil {
				return err
			}
		}
		report, err := findReport(tx, id)
		updated = report
		return err
	})
	if err != nil {
		return nil, translate("update report status", err)
	}
	return updated, nil
}

func (s *Store) AppendReportNote(ctx context.Context, id string, note models.AdminNote) (*models.Report, error) {
	var updated *models.Report
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&reportRow{}).Where("id = ?", id).Update("updated_at", time.Now().UTC())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Create(&noteRow{ReportID: id, Note: note.Note, AddedBy: note.AddedBy, AddedAt: note.AddedAt.UTC()}).Error; err != nil {
			return err
		}
		report, err := findReport(tx, id)
		updated = report
		return err
	})
	if err != nil {
		return nil, translate("append report note", err)
	}
	return updated, nil
}

func (s *Store) UpdateReportVerdict(ctx context.Context, id string, verdict models.Verdict, note models.AdminNote) (*models.Report, error) {
	var updated *models.Report
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&reportRow{}).Where("id = ?", id).Updates(map[string]interface{}{
			"verdict":    string(verdict),
			"updated_at": time.Now().UTC(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Create(&noteRow{ReportID: id, Note: note.Note, AddedBy: note.AddedBy, AddedAt: note.AddedAt.UTC()}).Error; err != nil {
			return err
		}
		report, err := findReport(tx, id)
		updated = report
		return err
	})
	if err != nil {
		return nil, translate("update report verdict", err)
	}
	return updated, nil
}

func (s *Store) DailyReportCounts(ctx context.Context, since time.Time) ([]store.DailyCount, error) {
	var stamps []time.Time
	err := s.db.WithContext(ctx).Model(&reportRow{}).
		Where("created_at >= ?", since.UTC()).
		Pluck("created_at", &stamps).Error
	if err != nil {
		return nil, translate("daily report counts", err)
	}

	buckets := make(map[string]int64)
	for _, ts := range stamps {
		buckets[ts.UTC().Format("2006-01-02")]++
	}
	counts := make([]store.DailyCount, 0, len(buckets))
	for day, n := range buckets {
		counts = append(counts, store.DailyCount{Date: day, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Date < counts[j].Date })
	return counts, nil
}

func (s *Store) ReportTypeCounts(ctx context.Context) ([]store.TypeCount, error) {
	var rows []struct {
		ReportType string
		Total      int64
	}
	err := s.db.WithContext(ctx).Model(&reportRow{}).
		Select("report_type, COUNT(*) AS total").
		Group("report_type").
		Scan(&rows).Error
	if err != nil {
		return nil, translate("report type counts", err)
	}

	counts := make([]store.TypeCount, 0, len(rows))
	for _, row := range rows {
		counts = append(counts, store.TypeCount{ReportType: models.ReportType(row.ReportType), Count: row.Total})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].ReportType < counts[j].ReportType
	})
	return counts, nil
}

// TopSenders groups by sender address. Severity is taken from each sender's
// most recent report.
func (s *Store) TopSenders(ctx context.Context, query store.SenderQuery) ([]store.SenderCount, error) {
	var rows []struct {
		SenderEmail string
		Severity    string
		CreatedAt   time.Time
	}
	q := s.db.WithContext(ctx).Model(&reportRow{}).Select("sender_email, severity, created_at")
	q = applyReportFilter(q, store.ReportFilter{Statuses: query.Statuses, CreatedFrom: query.Since})
	if err := q.Order("created_at DESC").Scan(&rows).Error; err != nil {
		return nil, translate("top senders", err)
	}

	index := make(map[string]int)
	var senders []store.SenderCount
	for _, row := range rows {
		if i, ok := index[row.SenderEmail]; ok {
			senders[i].Count++
			continue
		}
		index[row.SenderEmail] = len(senders)
		senders = append(senders, store.SenderCount{
			SenderEmail:  row.SenderEmail,
			Count:        1,
			LatestReport: row.CreatedAt,
			Severity:     models.Severity(row.Severity),
		})
	}

	sort.SliceStable(senders, func(i, j int) bool { return senders[i].Count > senders[j].Count })
	if query.Limit > 0 && len(senders) > query.Limit {
		senders = senders[:query.Limit]
	}
	return senders, nil
}

func (s *Store) ListAdminNotes(ctx context.Context, limit, offset int) ([]store.NoteEntry, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&noteRow{}).Count(&total).Error; err != nil {
		return nil, 0, translate("count notes", err)
	}

	q := s.db.WithContext(ctx).Order("added_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var notes []noteRow
	if err := q.Find(&notes).Error; err != nil {
		return nil, 0, translate("list notes", err)
	}
	if len(notes) == 0 {
		return []store.NoteEntry{}, total, nil
	}

	ids := make([]string, 0, len(notes))
	for _, n := range notes {
		ids = append(ids, n.ReportID)
	}
	var reports []reportRow
	if err := s.db.WithContext(ctx).Select("id", "email_subject").Where("id IN ?", ids).Find(&reports).Error; err != nil {
		return nil, 0, translate("note subjects", err)
	}
	subjects := make(map[string]string, len(reports))
	for _, r := range reports {
		subjects[r.ID] = r.EmailSubject
	}

	entries := make([]store.NoteEntry, 0, len(notes))
	for _, n := range notes {
		entries = append(entries, store.NoteEntry{
			ReportID:     n.ReportID,
			EmailSubject: subjects[n.ReportID],
			Note:         models.AdminNote{Note: n.Note, AddedBy: n.AddedBy, AddedAt: n.AddedAt},
		})
	}
	return entries, total, nil
}
