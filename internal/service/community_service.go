package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
)

// VillageRiskFactors are the standing risk factors reported for every village.
var VillageRiskFactors = []string{
	"Population density",
	"Water quality",
	"Sanitation facilities",
	"Healthcare access",
}

// CommunityOverview aggregates case counts over all villages.
type CommunityOverview struct {
	TotalCases      int `json:"totalCases"`
	ActiveCases     int `json:"activeCases"`
	RecoveredCases  int `json:"recoveredCases"`
	OutbreakAlerts  int `json:"outbreakAlerts"`
	VillagesCovered int `json:"villagesCovered"`
	TotalPopulation int `json:"totalPopulation"`
}

// RiskDistribution counts villages per risk level.
type RiskDistribution struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// CommunityStats is the community dashboard payload.
type CommunityStats struct {
	Overview         CommunityOverview `json:"overview"`
	Villages         []domain.Village  `json:"villages"`
	RiskDistribution RiskDistribution  `json:"riskDistribution"`
}

// VillageDetail is one village with its outbreaks.
type VillageDetail struct {
	domain.Village
	Outbreaks   []domain.Outbreak `json:"outbreaks"`
	RiskFactors []string          `json:"riskFactors"`
}

// Recommendations groups suggested actions by horizon.
type Recommendations struct {
	Immediate []string `json:"immediate"`
	Weekly    []string `json:"weekly"`
	Monthly   []string `json:"monthly"`
}

// OutbreakInput carries a new outbreak report.
type OutbreakInput struct {
	Condition      string `json:"condition"`
	Village        string `json:"village"`
	Cases          int    `json:"cases"`
	Severity       string `json:"severity"`
	Recommendation string `json:"recommendation"`
}

// CommunityService serves village, outbreak and trend data.
type CommunityService struct {
	community domain.CommunityRepository
	logger    *logrus.Logger
	now       func() time.Time
}

// NewCommunityService creates a new community service
func NewCommunityService(community domain.CommunityRepository, logger *logrus.Logger) *CommunityService {
	return &CommunityService{
		community: community,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Stats computes the community overview.
func (s *CommunityService) Stats(ctx context.Context) (*CommunityStats, error) {
	villages, err := s.community.Villages(ctx)
	if err != nil {
		return nil, err
	}
	outbreaks, err := s.community.Outbreaks(ctx)
	if err != nil {
		return nil, err
	}

	stats := &CommunityStats{Villages: villages}
	for _, v := range villages {
		stats.Overview.ActiveCases += v.ActiveCases
		stats.Overview.RecoveredCases += v.RecoveredCases
		stats.Overview.TotalPopulation += v.Population
		switch v.RiskLevel {
		case "High":
			stats.RiskDistribution.High++
		case "Medium":
			stats.RiskDistribution.Medium++
		case "Low":
			stats.RiskDistribution.Low++
		}
	}
	stats.Overview.TotalCases = stats.Overview.ActiveCases + stats.Overview.RecoveredCases
	stats.Overview.VillagesCovered = len(villages)
	for _, o := range outbreaks {
		if o.Status == domain.OutbreakActive {
			stats.Overview.OutbreakAlerts++
		}
	}
	return stats, nil
}

// Outbreaks returns outbreaks with the given status. An empty status means
// Active and "all" disables the filter.
func (s *CommunityService) Outbreaks(ctx context.Context, status string) ([]domain.Outbreak, error) {
	if status == "" {
		status = domain.OutbreakActive
	}
	outbreaks, err := s.community.Outbreaks(ctx)
	if err != nil {
		return nil, err
	}
	if status == "all" {
		return outbreaks, nil
	}

	filtered := make([]domain.Outbreak, 0, len(outbreaks))
	for _, o := range outbreaks {
		if o.Status == status {
			filtered = append(filtered, o)
		}
	}
	return filtered, nil
}

// ReportOutbreak records a new Active outbreak.
func (s *CommunityService) ReportOutbreak(ctx context.Context, in OutbreakInput) (*domain.Outbreak, error) {
	if strings.TrimSpace(in.Condition) == "" {
		return nil, domain.NewValidationError("condition", "is required", in.Condition)
	}
	if strings.TrimSpace(in.Village) == "" {
		return nil, domain.NewValidationError("village", "is required", in.Village)
	}
	if in.Cases <= 0 {
		return nil, domain.NewValidationError("cases", "must be greater than zero", in.Cases)
	}

	outbreak := &domain.Outbreak{
		Condition:      strings.TrimSpace(in.Condition),
		Village:        strings.TrimSpace(in.Village),
		Cases:          in.Cases,
		Severity:       in.Severity,
		Recommendation: in.Recommendation,
		ReportedDate:   s.now().Format("2006-01-02"),
		Status:         domain.OutbreakActive,
	}
	if outbreak.Severity == "" {
		outbreak.Severity = "Medium"
	}
	if outbreak.Recommendation == "" {
		outbreak.Recommendation = "Monitor situation closely"
	}

	if err := s.community.CreateOutbreak(ctx, outbreak); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"outbreak_id": outbreak.ID,
		"village":     outbreak.Village,
		"cases":       outbreak.Cases,
	}).Warn("Outbreak reported")
	return outbreak, nil
}

// UpdateOutbreakStatus moves an outbreak to a new status.
func (s *CommunityService) UpdateOutbreakStatus(ctx context.Context, id int64, status string) (*domain.Outbreak, error) {
	if !domain.ValidOutbreakStatus(status) {
		return nil, domain.NewValidationError("status", "must be one of Active, Monitoring, Resolved, Escalated", status)
	}
	return s.community.UpdateOutbreakStatus(ctx, id, status, s.now().Format(time.RFC3339))
}

// Trends returns condition trends.
func (s *CommunityService) Trends(ctx context.Context) ([]domain.Trend, error) {
	return s.community.Trends(ctx)
}

// Village returns one village with its outbreaks. Names match case-insensitively.
func (s *CommunityService) Village(ctx context.Context, name string) (*VillageDetail, error) {
	village, err := s.community.Village(ctx, name)
	if err != nil {
		return nil, err
	}
	outbreaks, err := s.community.Outbreaks(ctx)
	if err != nil {
		return nil, err
	}

	detail := &VillageDetail{
		Village:     *village,
		Outbreaks:   []domain.Outbreak{},
		RiskFactors: append([]string(nil), VillageRiskFactors...),
	}
	for _, o := range outbreaks {
		if strings.EqualFold(o.Village, village.Name) {
			detail.Outbreaks = append(detail.Outbreaks, o)
		}
	}
	return detail, nil
}

// Recommendations derives suggested actions from the current outbreaks and
// village risk levels.
func (s *CommunityService) Recommendations(ctx context.Context) (*Recommendations, error) {
	villages, err := s.community.Villages(ctx)
	if err != nil {
		return nil, err
	}
	outbreaks, err := s.community.Outbreaks(ctx)
	if err != nil {
		return nil, err
	}

	rec := &Recommendations{}
	for _, o := range outbreaks {
		if o.Status == domain.OutbreakActive || o.Status == domain.OutbreakEscalated {
			rec.Immediate = append(rec.Immediate, fmt.Sprintf("%s: %s in %s", o.Recommendation, strings.ToLower(o.Condition), o.Village))
		}
	}
	rec.Immediate = append(rec.Immediate, "Distribute hygiene education materials")
	for _, v := range villages {
		switch v.RiskLevel {
		case "High":
			rec.Immediate = append(rec.Immediate, fmt.Sprintf("Follow up with high-risk patients in %s", v.Name))
		case "Medium":
			rec.Weekly = append(rec.Weekly, fmt.Sprintf("Monitor %s trends in %s", strings.ToLower(v.CommonCondition), v.Name))
		}
	}
	rec.Weekly = append(rec.Weekly,
		"Report weekly statistics to PHC",
		"Update community health records",
		"Conduct village health meetings",
	)
	rec.Monthly = []string{
		"Review outbreak response protocols",
		"Analyze disease pattern trends",
		"Update risk assessments for all villages",
		"Coordinate with district health office",
	}
	return rec, nil
}
