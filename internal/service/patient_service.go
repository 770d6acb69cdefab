package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
)

// CreatePatientInput carries the fields of a new patient.
type CreatePatientInput struct {
	Name    string  `json:"name"`
	Age     int     `json:"age"`
	Gender  string  `json:"gender"`
	Village string  `json:"village"`
	Phone   *string `json:"phone"`
}

// UpdatePatientInput is a partial update. Nil fields are left unchanged.
type UpdatePatientInput struct {
	Name    *string `json:"name"`
	Age     *int    `json:"age"`
	Gender  *string `json:"gender"`
	Village *string `json:"village"`
	Phone   *string `json:"phone"`
}

// PatientService manages registered patients.
type PatientService struct {
	patients  domain.PatientRepository
	diagnoses domain.DiagnosisRepository
	logger    *logrus.Logger
	now       func() time.Time
}

// NewPatientService creates a new patient service
func NewPatientService(patients domain.PatientRepository, diagnoses domain.DiagnosisRepository, logger *logrus.Logger) *PatientService {
	return &PatientService{
		patients:  patients,
		diagnoses: diagnoses,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns a filtered page of patients and the filtered total.
func (s *PatientService) List(ctx context.Context, filter domain.PatientFilter) ([]*domain.Patient, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 10
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.patients.List(ctx, filter)
}

// Get returns one patient.
func (s *PatientService) Get(ctx context.Context, id int64) (*domain.Patient, error) {
	return s.patients.FindByID(ctx, id)
}

// Create registers a patient. A patient with the same name in the same village
// is rejected with domain.ErrConflict.
func (s *PatientService) Create(ctx context.Context, in CreatePatientInput) (*domain.Patient, error) {
	required := []struct {
		field string
		value string
	}{
		{"name", in.Name},
		{"gender", in.Gender},
		{"village", in.Village},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, domain.NewValidationError(r.field, "is required", r.value)
		}
	}
	if in.Age <= 0 || in.Age > 150 {
		return nil, domain.NewValidationError("age", "must be between 1 and 150", in.Age)
	}

	now := s.now()
	patient := &domain.Patient{
		Name:      strings.TrimSpace(in.Name),
		Age:       in.Age,
		Gender:    strings.TrimSpace(in.Gender),
		Village:   strings.TrimSpace(in.Village),
		Phone:     in.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.patients.Create(ctx, patient); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"patient_id": patient.ID,
		"village":    patient.Village,
	}).Info("Patient registered")
	return patient, nil
}

// Update applies a partial update.
func (s *PatientService) Update(ctx context.Context, id int64, in UpdatePatientInput) (*domain.Patient, error) {
	patient, err := s.patients.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		patient.Name = strings.TrimSpace(*in.Name)
	}
	if in.Age != nil {
		if *in.Age <= 0 || *in.Age > 150 {
			return nil, domain.NewValidationError("age", "must be between 1 and 150", *in.Age)
		}
		patient.Age = *in.Age
	}
	if in.Gender != nil && strings.TrimSpace(*in.Gender) != "" {
		patient.Gender = strings.TrimSpace(*in.Gender)
	}
	if in.Village != nil && strings.TrimSpace(*in.Village) != "" {
		patient.Village = strings.TrimSpace(*in.Village)
	}
	if in.Phone != nil {
		patient.Phone = in.Phone
	}
	patient.UpdatedAt = s.now()

	if err := s.patients.Update(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

// History returns the patient's past diagnoses, newest first.
func (s *PatientService) History(ctx context.Context, id int64) (*domain.Patient, []domain.PatientHistoryEntry, error) {
	patient, err := s.patients.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	diagnoses, err := s.diagnoses.FindByPatientName(ctx, patient.Name)
	if err != nil {
		return nil, nil, err
	}
	sort.SliceStable(diagnoses, func(i, j int) bool {
		return diagnoses[i].CreatedAt.After(diagnoses[j].CreatedAt)
	})

	history := make([]domain.PatientHistoryEntry, 0, len(diagnoses))
	for _, d := range diagnoses {
		history = append(history, domain.PatientHistoryEntry{
			ID:        d.ID,
			Condition: d.Analysis.PrimaryCondition,
			Date:      d.CreatedAt.Format("2006-01-02"),
			Status:    d.Status,
			Severity:  d.Analysis.Severity,
		})
	}
	return patient, history, nil
}

// Stats summarizes registered patients.
func (s *PatientService) Stats(ctx context.Context) (*domain.PatientStats, error) {
	patients, err := s.patients.All(ctx)
	if err != nil {
		return nil, err
	}

	stats := &domain.PatientStats{
		Total:     len(patients),
		ByGender:  map[string]int{"male": 0, "female": 0},
		ByVillage: map[string]int{},
	}
	weekAgo := s.now().AddDate(0, 0, -7)
	for _, p := range patients {
		stats.ByGender[strings.ToLower(p.Gender)]++
		stats.ByVillage[p.Village]++
		if p.CreatedAt.After(weekAgo) {
			stats.RecentlyAdded++
		}
	}
	return stats, nil
}
