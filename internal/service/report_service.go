package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
)

const reportDateLayout = "2006-01-02"

// Export formats.
const (
	ExportFormatJSON = "json"
	ExportFormatXLSX = "xlsx"
)

// SeverityBreakdown counts reports per severity.
type SeverityBreakdown struct {
	Mild     int `json:"mild"`
	Moderate int `json:"moderate"`
	Severe   int `json:"severe"`
}

// MonthlyStats summarizes the reports of one calendar month.
type MonthlyStats struct {
	Month              int               `json:"month"`
	Year               int               `json:"year"`
	TotalReports       int               `json:"totalReports"`
	DiagnosticReports  int               `json:"diagnosticReports"`
	ReferralReports    int               `json:"referralReports"`
	CompletedCases     int               `json:"completedCases"`
	AverageConfidence  int               `json:"averageConfidence"`
	SeverityBreakdown  SeverityBreakdown `json:"severityBreakdown"`
	ConditionBreakdown map[string]int    `json:"conditionBreakdown"`
}

// WeeklyStats summarizes the reports of the last seven days.
type WeeklyStats struct {
	TotalReports        int     `json:"totalReports"`
	NewCases            int     `json:"newCases"`
	AveragePerDay       float64 `json:"averagePerDay"`
	MostCommonCondition string  `json:"mostCommonCondition"`
}

// DateRange is an inclusive YYYY-MM-DD range.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ExportRequest selects reports for export.
type ExportRequest struct {
	Format     string     `json:"format"`
	DateRange  *DateRange `json:"dateRange"`
	Conditions []string   `json:"conditions"`
}

// ExportResult carries the selected reports and, for xlsx, the workbook.
type ExportResult struct {
	Format      string           `json:"format"`
	Count       int              `json:"exportedCount"`
	Reports     []*domain.Report `json:"data"`
	File        []byte           `json:"-"`
	FileName    string           `json:"-"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

// ReportService serves diagnostic and referral reports.
type ReportService struct {
	reports domain.ReportRepository
	logger  *logrus.Logger
	now     func() time.Time
}

// NewReportService creates a new report service
func NewReportService(reports domain.ReportRepository, logger *logrus.Logger) *ReportService {
	return &ReportService{
		reports: reports,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// List returns a filtered page of reports and the filtered total.
func (s *ReportService) List(ctx context.Context, filter domain.ReportFilter) ([]*domain.Report, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 10
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.reports.List(ctx, filter)
}

// Get returns one report.
func (s *ReportService) Get(ctx context.Context, id int64) (*domain.Report, error) {
	return s.reports.FindByID(ctx, id)
}

// Monthly computes statistics for the current calendar month.
func (s *ReportService) Monthly(ctx context.Context) (*MonthlyStats, error) {
	all, err := s.reports.All(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	stats := &MonthlyStats{
		Month:              int(now.Month()),
		Year:               now.Year(),
		ConditionBreakdown: map[string]int{},
	}

	confidenceSum := 0
	for _, r := range all {
		date, ok := parseReportDate(r.Date)
		if !ok || date.Year() != now.Year() || date.Month() != now.Month() {
			continue
		}
		stats.TotalReports++
		switch r.Type {
		case domain.ReportTypeDiagnostic:
			stats.DiagnosticReports++
		case domain.ReportTypeReferral:
			stats.ReferralReports++
		}
		if r.Status == string(domain.StatusCompleted) {
			stats.CompletedCases++
		}
		switch r.Severity {
		case domain.SeverityMild:
			stats.SeverityBreakdown.Mild++
		case domain.SeverityModerate:
			stats.SeverityBreakdown.Moderate++
		case domain.SeveritySevere:
			stats.SeverityBreakdown.Severe++
		}
		stats.ConditionBreakdown[r.Condition]++
		confidenceSum += r.Confidence
	}
	if stats.TotalReports > 0 {
		stats.AverageConfidence = int(math.Round(float64(confidenceSum) / float64(stats.TotalReports)))
	}
	return stats, nil
}

// Weekly computes statistics over reports dated within the last seven days.
func (s *ReportService) Weekly(ctx context.Context) (*WeeklyStats, error) {
	all, err := s.reports.All(ctx)
	if err != nil {
		return nil, err
	}

	weekAgo := s.now().AddDate(0, 0, -7)
	counts := map[string]int{}
	var order []string
	stats := &WeeklyStats{MostCommonCondition: "None"}
	for _, r := range all {
		date, ok := parseReportDate(r.Date)
		if !ok || !date.After(weekAgo) {
			continue
		}
		stats.TotalReports++
		if counts[r.Condition] == 0 {
			order = append(order, r.Condition)
		}
		counts[r.Condition]++
	}
	stats.NewCases = stats.TotalReports
	stats.AveragePerDay = math.Round(float64(stats.TotalReports)/7*10) / 10

	best := 0
	for _, condition := range order {
		if counts[condition] > best {
			best = counts[condition]
			stats.MostCommonCondition = condition
		}
	}
	return stats, nil
}

// Export selects reports by date range and condition and renders them in the
// requested format.
func (s *ReportService) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = ExportFormatJSON
	}
	if format != ExportFormatJSON && format != ExportFormatXLSX {
		return nil, domain.NewValidationError("format", "must be json or xlsx", req.Format)
	}

	var start, end time.Time
	hasRange := req.DateRange != nil && req.DateRange.Start != "" && req.DateRange.End != ""
	if hasRange {
		var ok bool
		if start, ok = parseReportDate(req.DateRange.Start); !ok {
			return nil, domain.NewValidationError("dateRange.start", "must be a YYYY-MM-DD date", req.DateRange.Start)
		}
		if end, ok = parseReportDate(req.DateRange.End); !ok {
			return nil, domain.NewValidationError("dateRange.end", "must be a YYYY-MM-DD date", req.DateRange.End)
		}
	}

	conditions := map[string]bool{}
	for _, c := range req.Conditions {
		conditions[c] = true
	}

	all, err := s.reports.All(ctx)
	if err != nil {
		return nil, err
	}

	selected := make([]*domain.Report, 0, len(all))
	for _, r := range all {
		if hasRange {
			date, ok := parseReportDate(r.Date)
			if !ok || date.Before(start) || date.After(end) {
				continue
			}
		}
		if len(conditions) > 0 && !conditions[r.Condition] {
			continue
		}
		selected = append(selected, r)
	}
	sort.SliceStable(selected, func(i, j int) bool { return selected[i].ID < selected[j].ID })

	now := s.now()
	result := &ExportResult{
		Format:      format,
		Count:       len(selected),
		Reports:     selected,
		GeneratedAt: now,
	}

	if format == ExportFormatXLSX {
		file, err := renderReportsWorkbook(selected)
		if err != nil {
			return nil, err
		}
		result.File = file
		result.FileName = "reports-" + now.Format("20060102-150405") + ".xlsx"
	}

	s.logger.WithFields(logrus.Fields{
		"format": format,
		"count":  result.Count,
	}).Info("Reports exported")
	return result, nil
}

func parseReportDate(s string) (time.Time, bool) {
	t, err := time.Parse(reportDateLayout, s)
	return t, err == nil
}
