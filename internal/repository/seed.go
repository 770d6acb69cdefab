package repository

import (
	"context"
	"time"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
)

var now = func() time.Time { return time.Now().UTC() }

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func phone(s string) *string { return &s }

// SeedPatients are the demo patients loaded at startup.
func SeedPatients() []*domain.Patient {
	return []*domain.Patient{
		{
			Name:      "Rajesh Kumar",
			Age:       45,
			Gender:    "Male",
			Village:   "Rampur",
			Phone:     phone("+91-9876543210"),
			CreatedAt: mustTime("2024-01-10T10:00:00Z"),
			UpdatedAt: mustTime("2024-01-15T14:30:00Z"),
		},
		{
			Name:      "Priya Sharma",
			Age:       32,
			Gender:    "Female",
			Village:   "Rampur",
			Phone:     phone("+91-9876543211"),
			CreatedAt: mustTime("2024-01-12T09:15:00Z"),
			UpdatedAt: mustTime("2024-01-14T16:45:00Z"),
		},
	}
}

// SeedReports are the demo reports loaded at startup.
func SeedReports() []*domain.Report {
	return []*domain.Report{
		{
			PatientName: "Rajesh Kumar",
			Condition:   "Fungal Infection",
			Date:        "2024-01-15",
			Status:      "Completed",
			Type:        domain.ReportTypeDiagnostic,
			Confidence:  87,
			Severity:    domain.SeverityModerate,
		},
		{
			PatientName: "Priya Sharma",
			Condition:   "Contact Dermatitis",
			Date:        "2024-01-14",
			Status:      "Under Review",
			Type:        domain.ReportTypeDiagnostic,
			Confidence:  78,
			Severity:    domain.SeverityMild,
		},
	}
}

// SeedVillages are the demo villages loaded at startup.
func SeedVillages() []domain.Village {
	return []domain.Village{
		{Name: "Rampur", Population: 1200, ActiveCases: 5, RecoveredCases: 12, CommonCondition: "Fungal Infections", RiskLevel: "Medium", LastUpdated: "2024-01-15"},
		{Name: "Mohalla", Population: 800, ActiveCases: 3, RecoveredCases: 8, CommonCondition: "Contact Dermatitis", RiskLevel: "Low", LastUpdated: "2024-01-14"},
		{Name: "Khalilabad", Population: 950, ActiveCases: 7, RecoveredCases: 5, CommonCondition: "Scabies", RiskLevel: "High", LastUpdated: "2024-01-15"},
	}
}

// SeedOutbreaks are the demo outbreaks loaded at startup.
func SeedOutbreaks() []*domain.Outbreak {
	return []*domain.Outbreak{
		{Condition: "Scabies outbreak", Village: "Khalilabad", Cases: 7, Severity: "High", Recommendation: "Immediate mass screening recommended", ReportedDate: "2024-01-15", Status: domain.OutbreakActive},
		{Condition: "Fungal infections cluster", Village: "Rampur", Cases: 4, Severity: "Medium", Recommendation: "Monitor hygiene practices", ReportedDate: "2024-01-14", Status: domain.OutbreakMonitoring},
	}
}

// SeedTrends are the demo condition trends loaded at startup.
func SeedTrends() []domain.Trend {
	return []domain.Trend{
		{Condition: "Fungal Infections", Trend: "increasing", Change: "+15%", Period: "This week", CurrentCases: 8, PreviousCases: 7},
		{Condition: "Contact Dermatitis", Trend: "stable", Change: "0%", Period: "This week", CurrentCases: 3, PreviousCases: 3},
		{Condition: "Bacterial Infections", Trend: "decreasing", Change: "-20%", Period: "This week", CurrentCases: 2, PreviousCases: 3},
	}
}

// SeedCommunity loads the demo villages, outbreaks and trends.
func SeedCommunity(ctx context.Context, store *MemoryCommunityStore) error {
	for _, v := range SeedVillages() {
		store.AddVillage(v)
	}
	for _, o := range SeedOutbreaks() {
		if err := store.CreateOutbreak(ctx, o); err != nil {
			return err
		}
	}
	store.SetTrends(SeedTrends())
	return nil
}

// SeedPatientStore inserts the demo patients, skipping ones that already exist.
func SeedPatientStore(ctx context.Context, store domain.PatientRepository) error {
	for _, p := range SeedPatients() {
		if _, err := store.FindByNameAndVillage(ctx, p.Name, p.Village); err == nil {
			continue
		}
		if err := store.Create(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// SeedReportStore inserts the demo reports into an empty store.
func SeedReportStore(ctx context.Context, store domain.ReportRepository) error {
	existing, err := store.All(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, r := range SeedReports() {
		if err := store.Create(ctx, r); err != nil {
			return err
		}
	}
	return nil
}
