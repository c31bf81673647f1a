package services

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/metrics"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/models"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/store"
)

const trendDays = 30

// DashboardService builds the read-only rollups behind the admin views.
// Every call re-reads the stores; nothing is cached.
type DashboardService struct {
	store   store.Store
	metrics *metrics.Collector
	policy  AccessPolicy
	logger  *zap.Logger
	now     func() time.Time
}

type ReportOverview struct {
	Total          int64               `json:"total"`
	Last30Days     int64               `json:"last30Days"`
	Last7Days      int64               `json:"last7Days"`
	Pending        int64               `json:"pending"`
	Investigating  int64               `json:"investigating"`
	Confirmed      int64               `json:"confirmed"`
	FalsePositives int64               `json:"falsePositives"`
	Resolved       int64               `json:"resolved"`
	Trends         []store.DailyCount  `json:"trends"`
	Distribution   []store.TypeCount   `json:"distribution"`
	TopSources     []store.SenderCount `json:"topSources"`
}

type UserOverview struct {
	Total         int64 `json:"total"`
	Active        int64 `json:"active"`
	NewLast30Days int64 `json:"newLast30Days"`
}

type EducationOverview struct {
	TotalModules     int64 `json:"totalModules"`
	ActiveModules    int64 `json:"activeModules"`
	TotalCompletions int64 `json:"totalCompletions"`
}

type DashboardOverview struct {
	Reports     ReportOverview    `json:"reports"`
	Users       UserOverview      `json:"users"`
	Education   EducationOverview `json:"education"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

type AuditPage struct {
	Entries    []store.NoteEntry `json:"entries"`
	Pagination Pagination        `json:"pagination"`
}

type MemoryStats struct {
	AllocMB      float64 `json:"allocMb"`
	TotalAllocMB float64 `json:"totalAllocMb"`
	SysMB        float64 `json:"sysMb"`
	NumGC        uint32  `json:"numGc"`
}

type HealthReport struct {
	Status        string      `json:"status"`
	Database      string      `json:"database"`
	Uptime        string      `json:"uptime"`
	UptimeSeconds float64     `json:"uptimeSeconds"`
	Goroutines    int         `json:"goroutines"`
	Memory        MemoryStats `json:"memory"`
	Timestamp     time.Time   `json:"timestamp"`
}

type MetricsSnapshot struct {
	Counters      map[string]map[string]int64   `json:"counters"`
	Latencies     map[string]map[string]float64 `json:"latencies"`
	UptimeSeconds float64                       `json:"uptimeSeconds"`
}

func NewDashboardService(st store.Store, collector *metrics.Collector, policy AccessPolicy, logger *zap.Logger) *DashboardService {
	return &DashboardService{
		store:   st,
		metrics: collector,
		policy:  policy,
		logger:  logger.With(zap.String("service", "dashboard")),
		now:     time.Now,
	}
}

func (d *DashboardService) Overview(ctx context.Context, actor Actor) (*DashboardOverview, error) {
	if err := d.policy.requireReviewer(actor); err != nil {
		return nil, err
	}

	now := d.now().UTC()
	since30 := now.AddDate(0, 0, -30)
	since7 := now.AddDate(0, 0, -7)

	reports, err := d.reportOverview(ctx, now, since30, since7)
	if err != nil {
		return nil, err
	}

	var users UserOverview
	if users.Total, err = d.store.CountUsers(ctx, store.UserCountQuery{}); err != nil {
		return nil, storeError("count users", err)
	}
	if users.Active, err = d.store.CountUsers(ctx, store.UserCountQuery{LastLoginSince: &since30}); err != nil {
		return nil, storeError("count active users", err)
	}
	if users.NewLast30Days, err = d.store.CountUsers(ctx, store.UserCountQuery{CreatedSince: &since30}); err != nil {
		return nil, storeError("count new users", err)
	}

	var education EducationOverview
	if education.TotalModules, err = d.store.CountModules(ctx, false); err != nil {
		return nil, storeError("count modules", err)
	}
	if education.ActiveModules, err = d.store.CountModules(ctx, true); err != nil {
		return nil, storeError("count active modules", err)
	}
	if education.TotalCompletions, err = d.store.CountCompletions(ctx); err != nil {
		return nil, storeError("count completions", err)
	}

	return &DashboardOverview{Reports: *reports, Users: users, Education: education, GeneratedAt: now}, nil
}

func (d *DashboardService) reportOverview(ctx context.Context, now, since30, since7 time.Time) (*ReportOverview, error) {
	var (
		out ReportOverview
		err error
	)
	if out.Total, err = d.store.CountReports(ctx, store.ReportFilter{}); err != nil {
		return nil, storeError("count reports", err)
	}
	if out.Last30Days, err = d.store.CountReports(ctx, store.ReportFilter{CreatedFrom: &since30}); err != nil {
		return nil, storeError("count recent reports", err)
	}
	if out.Last7Days, err = d.store.CountReports(ctx, store.ReportFilter{CreatedFrom: &since7}); err != nil {
		return nil, storeError("count weekly reports", err)
	}

	byStatus := map[models.ReportStatus]*int64{
		models.StatusPending:       &out.Pending,
		models.StatusInvestigating: &out.Investigating,
		models.StatusConfirmed:     &out.Confirmed,
		models.StatusFalsePositive: &out.FalsePositives,
		models.StatusResolved:      &out.Resolved,
	}
	for _, status := range models.AllStatuses() {
		n, err := d.store.CountReports(ctx, store.ReportFilter{Statuses: []models.ReportStatus{status}})
		if err != nil {
			return nil, storeError("count reports by status", err)
		}
		*byStatus[status] = n
	}

	firstDay := now.Truncate(24*time.Hour).AddDate(0, 0, -(trendDays - 1))
	daily, err := d.store.DailyReportCounts(ctx, firstDay)
	if err != nil {
		return nil, storeError("daily report counts", err)
	}
	out.Trends = fillTrend(daily, firstDay, trendDays)

	if out.Distribution, err = d.store.ReportTypeCounts(ctx); err != nil {
		return nil, storeError("report type counts", err)
	}
	out.TopSources, err = d.store.TopSenders(ctx, store.SenderQuery{
		Statuses: []models.ReportStatus{models.StatusConfirmed, models.StatusInvestigating},
		Limit:    10,
	})
	if err != nil {
		return nil, storeError("top sources", err)
	}
	if out.Distribution == nil {
		out.Distribution = []store.TypeCount{}
	}
	if out.TopSources == nil {
		out.TopSources = []store.SenderCount{}
	}
	return &out, nil
}

// fillTrend returns one entry per day starting at first, zero where the store
// had no reports.
func fillTrend(counts []store.DailyCount, first time.Time, days int) []store.DailyCount {
	byDay := make(map[string]int64, len(counts))
	for _, c := range counts {
		byDay[c.Date] = c.Count
	}
	trend := make([]store.DailyCount, 0, days)
	for i := 0; i < days; i++ {
		day := first.AddDate(0, 0, i).Format("2006-01-02")
		trend = append(trend, store.DailyCount{Date: day, Count: byDay[day]})
	}
	return trend
}

// AuditLog lists reviewer notes across all reports, newest first.
func (d *DashboardService) AuditLog(ctx context.Context, actor Actor, page, limit int) (*AuditPage, error) {
	if err := d.policy.requireAdmin(actor); err != nil {
		return nil, err
	}
	page, limit = normalizePage(page, limit, 50, 200)
	entries, total, err := d.store.ListAdminNotes(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, storeError("list admin notes", err)
	}
	return &AuditPage{Entries: entries, Pagination: newPagination(page, limit, total)}, nil
}

// Ping reports whether the backing store is reachable.
func (d *DashboardService) Ping(ctx context.Context) error {
	return d.store.Ping(ctx)
}

func (d *DashboardService) Health(ctx context.Context, actor Actor) (*HealthReport, error) {
	if err := d.policy.requireAdmin(actor); err != nil {
		return nil, err
	}

	report := &HealthReport{
		Status:     "healthy",
		Database:   "connected",
		Goroutines: runtime.NumGoroutine(),
		Timestamp:  d.now().UTC(),
	}
	if err := d.store.Ping(ctx); err != nil {
		d.logger.Warn("store ping failed", zap.Error(err))
		report.Status = "degraded"
		report.Database = "disconnected"
	}

	if d.metrics != nil {
		uptime := d.metrics.Uptime()
		report.Uptime = uptime.Round(time.Second).String()
		report.UptimeSeconds = uptime.Seconds()
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	report.Memory = MemoryStats{
		AllocMB:      bytesToMB(mem.Alloc),
		TotalAllocMB: bytesToMB(mem.TotalAlloc),
		SysMB:        bytesToMB(mem.Sys),
		NumGC:        mem.NumGC,
	}
	return report, nil
}

func (d *DashboardService) Metrics(actor Actor) (*MetricsSnapshot, error) {
	if err := d.policy.requireAdmin(actor); err != nil {
		return nil, err
	}
	if d.metrics == nil {
		return &MetricsSnapshot{Counters: map[string]map[string]int64{}, Latencies: map[string]map[string]float64{}}, nil
	}
	return &MetricsSnapshot{
		Counters:      d.metrics.Counters(),
		Latencies:     d.metrics.Latencies(),
		UptimeSeconds: d.metrics.Uptime().Seconds(),
	}, nil
}

func bytesToMB(b uint64) float64 {
	return float64(b) / 1024 / 1024
}
