package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
)

// EventDiagnosisReferred is published whenever a diagnosis enters the Referred state.
const EventDiagnosisReferred = "diagnosis.referred"

// SubmitRequest is one diagnosis submission from a health worker.
type SubmitRequest struct {
	Patient domain.PatientContext
	Image   []byte
}

// ReferralEvent is the payload of EventDiagnosisReferred.
type ReferralEvent struct {
	DiagnosisID      int64            `json:"diagnosisId"`
	PatientName      string           `json:"patientName"`
	PatientAge       int              `json:"patientAge"`
	PrimaryCondition string           `json:"primaryCondition"`
	Severity         domain.Severity  `json:"severity"`
	RiskLevel        domain.RiskLevel `json:"riskLevel"`
	FollowUp         string           `json:"followUp"`
	ImageURL         string           `json:"imageUrl"`
	OccurredAt       time.Time        `json:"occurredAt"`
}

// DiagnosisService runs the diagnosis pipeline: image intake, model analysis
// with keyword fallback, record assembly and persistence.
type DiagnosisService struct {
	analyzer  domain.ImageAnalyzer
	processor domain.ImageProcessor
	images    domain.ImageStore
	diagnoses domain.DiagnosisRepository
	reports   domain.ReportRepository
	publisher domain.EventPublisher
	logger    *logrus.Logger
	now       func() time.Time
}

// NewDiagnosisService creates a new diagnosis service. A nil analyzer means
// every analysis comes from the fallback classifier.
func NewDiagnosisService(
	analyzer domain.ImageAnalyzer,
	processor domain.ImageProcessor,
	images domain.ImageStore,
	diagnoses domain.DiagnosisRepository,
	reports domain.ReportRepository,
	publisher domain.EventPublisher,
	logger *logrus.Logger,
) *DiagnosisService {
	return &DiagnosisService{
		analyzer:  analyzer,
		processor: processor,
		images:    images,
		diagnoses: diagnoses,
		reports:   reports,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Analyze asks the model for an analysis and falls back to the keyword
// classifier on any failure. It never fails.
func (s *DiagnosisService) Analyze(ctx context.Context, image []byte, mimeType string, patient domain.PatientContext) domain.DiagnosisAnalysis {
	if s.analyzer == nil {
		return Classify(patient)
	}

	raw, err := s.analyzer.AnalyzeImage(ctx, image, mimeType, patient)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"reason": "model_unavailable",
			"error":  err.Error(),
		}).Warn("Using fallback classifier")
		return Classify(patient)
	}

	analysis, err := ParseAnalysis(raw)
	if err != nil {
		reason := "unparseable_output"
		if errors.Is(err, domain.ErrIncompleteAnalysis) {
			reason = "incomplete_output"
		}
		s.logger.WithFields(logrus.Fields{
			"reason": reason,
			"error":  err.Error(),
		}).Warn("Using fallback classifier")
		return Classify(patient)
	}

	return *analysis
}

// Assemble combines an analysis with its patient context into a new record.
// The id is assigned by the repository on insert.
func Assemble(patient domain.PatientContext, analysis domain.DiagnosisAnalysis, imageRef string, now time.Time) *domain.Diagnosis {
	status := domain.StatusCompleted
	if analysis.ReferralNeeded {
		status = domain.StatusReferred
	}
	return &domain.Diagnosis{
		PatientData: patient,
		ImageRef:    imageRef,
		Analysis:    analysis,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Submit validates, analyzes and persists one submission.
func (s *DiagnosisService) Submit(ctx context.Context, req SubmitRequest) (*domain.Diagnosis, error) {
	if err := req.Patient.Validate(); err != nil {
		return nil, err
	}
	if len(req.Image) == 0 {
		return nil, domain.NewValidationError("image", "is required", nil)
	}

	img, err := s.processor.Process(req.Image)
	if err != nil {
		return nil, err
	}

	imageRef, err := s.images.Save(ctx, img.Name, img.ContentType, bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	analysis := s.Analyze(ctx, img.Data, img.ContentType, req.Patient)
	diagnosis := Assemble(req.Patient, analysis, imageRef, s.now())

	if err := s.diagnoses.Insert(ctx, diagnosis); err != nil {
		if derr := s.images.Delete(context.WithoutCancel(ctx), img.Name); derr != nil {
			s.logger.WithError(derr).WithField("image", img.Name).Warn("Failed to remove image of unsaved diagnosis")
		}
		return nil, fmt.Errorf("failed to store diagnosis: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"diagnosis_id": diagnosis.ID,
		"condition":    diagnosis.Analysis.PrimaryCondition,
		"risk_level":   diagnosis.Analysis.RiskLevel,
		"status":       diagnosis.Status,
		"source":       diagnosis.Analysis.Source,
	}).Info("Diagnosis recorded")

	s.recordReport(ctx, diagnosis)
	if diagnosis.Status == domain.StatusReferred {
		s.publishReferral(ctx, diagnosis)
	}

	return diagnosis, nil
}

// Get returns one diagnosis.
func (s *DiagnosisService) Get(ctx context.Context, id int64) (*domain.Diagnosis, error) {
	return s.diagnoses.FindByID(ctx, id)
}

// List returns a page of diagnoses, newest first, and the total count.
func (s *DiagnosisService) List(ctx context.Context, limit, offset int) ([]*domain.Diagnosis, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return s.diagnoses.List(ctx, limit, offset)
}

// UpdateStatus moves a diagnosis to any known status.
func (s *DiagnosisService) UpdateStatus(ctx context.Context, id int64, label string) (*domain.Diagnosis, error) {
	status, ok := domain.ParseDiagnosisStatus(label)
	if !ok {
		return nil, domain.NewValidationError("status", "must be one of Pending, Completed, Referred, Under Treatment", label)
	}

	diagnosis, err := s.diagnoses.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"diagnosis_id": id,
		"status":       status,
	}).Info("Diagnosis status updated")

	if status == domain.StatusReferred {
		s.publishReferral(ctx, diagnosis)
	}
	return diagnosis, nil
}

// Ping checks the diagnosis store.
func (s *DiagnosisService) Ping(ctx context.Context) error {
	return s.diagnoses.Ping(ctx)
}

func (s *DiagnosisService) recordReport(ctx context.Context, d *domain.Diagnosis) {
	if s.reports == nil {
		return
	}
	reportType := domain.ReportTypeDiagnostic
	if d.Status == domain.StatusReferred {
		reportType = domain.ReportTypeReferral
	}
	report := &domain.Report{
		DiagnosisID: d.ID,
		PatientName: d.PatientData.Name,
		Condition:   d.Analysis.PrimaryCondition,
		Date:        d.CreatedAt.Format("2006-01-02"),
		Status:      string(d.Status),
		Type:        reportType,
		Confidence:  d.Analysis.Confidence,
		Severity:    d.Analysis.Severity,
	}
	if err := s.reports.Create(ctx, report); err != nil {
		s.logger.WithError(err).WithField("diagnosis_id", d.ID).Error("Failed to record report")
	}
}

func (s *DiagnosisService) publishReferral(ctx context.Context, d *domain.Diagnosis) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(ReferralEvent{
		DiagnosisID:      d.ID,
		PatientName:      d.PatientData.Name,
		PatientAge:       d.PatientData.Age,
		PrimaryCondition: d.Analysis.PrimaryCondition,
		Severity:         d.Analysis.Severity,
		RiskLevel:        d.Analysis.RiskLevel,
		FollowUp:         d.Analysis.FollowUp,
		ImageURL:         d.ImageRef,
		OccurredAt:       s.now(),
	})
	if err != nil {
		return
	}
	key := fmt.Sprintf("%d", d.ID)
	if err := s.publisher.Publish(ctx, EventDiagnosisReferred, payload, key); err != nil {
		s.logger.WithError(err).WithField("diagnosis_id", d.ID).Error("Failed to publish referral event")
	}
}
