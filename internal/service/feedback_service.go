package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/feedback"
)

// ReviewInput is a clinician's verdict on a diagnosis. An empty
// ConfirmedCondition confirms the suggested one.
type ReviewInput struct {
	ConfirmedCondition string `json:"confirmedCondition"`
	Reviewer           string `json:"reviewer"`
	Notes              string `json:"notes"`
}

// ReviewSummary aggregates all reviews.
type ReviewSummary struct {
	Total         int64   `json:"total"`
	Agreed        int     `json:"agreed"`
	AgreementRate float64 `json:"agreementRate"`
	// Corrections counts suggested -> confirmed pairs where the reviewer disagreed.
	Corrections map[string]int `json:"corrections"`
}

// FeedbackService records clinician reviews of diagnoses.
type FeedbackService struct {
	store     feedback.Store
	diagnoses domain.DiagnosisRepository
	logger    *logrus.Logger
}

// NewFeedbackService creates a new feedback service
func NewFeedbackService(store feedback.Store, diagnoses domain.DiagnosisRepository, logger *logrus.Logger) *FeedbackService {
	return &FeedbackService{store: store, diagnoses: diagnoses, logger: logger}
}

// Review stores the verdict for a diagnosis, replacing any earlier one.
func (s *FeedbackService) Review(ctx context.Context, diagnosisID int64, in ReviewInput) (*feedback.Feedback, error) {
	diagnosis, err := s.diagnoses.FindByID(ctx, diagnosisID)
	if err != nil {
		return nil, err
	}

	suggested := diagnosis.Analysis.PrimaryCondition
	confirmed := strings.TrimSpace(in.ConfirmedCondition)
	if confirmed == "" {
		confirmed = suggested
	}

	fb := &feedback.Feedback{
		DiagnosisID:        diagnosisID,
		SuggestedCondition: suggested,
		ConfirmedCondition: confirmed,
		Agreed:             strings.EqualFold(confirmed, suggested),
		Reviewer:           strings.TrimSpace(in.Reviewer),
		Notes:              strings.TrimSpace(in.Notes),
	}
	if err := s.store.Save(ctx, fb); err != nil {
		return nil, fmt.Errorf("saving review of diagnosis %d: %w", diagnosisID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"diagnosis_id": diagnosisID,
		"agreed":       fb.Agreed,
	}).Info("Diagnosis reviewed")
	return fb, nil
}

// Get returns the review of a diagnosis.
func (s *FeedbackService) Get(ctx context.Context, diagnosisID int64) (*feedback.Feedback, error) {
	fb, err := s.store.Get(ctx, diagnosisID)
	if err != nil {
		return nil, err
	}
	if fb == nil {
		return nil, fmt.Errorf("review of diagnosis %d: %w", diagnosisID, domain.ErrNotFound)
	}
	return fb, nil
}

// List returns a page of reviews and the total count.
func (s *FeedbackService) List(ctx context.Context, limit, offset int) ([]*feedback.Feedback, int64, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	items, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Summary computes the agreement rate over all reviews.
func (s *FeedbackService) Summary(ctx context.Context) (*ReviewSummary, error) {
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	all, err := s.store.List(ctx, int(total), 0)
	if err != nil {
		return nil, err
	}

	summary := &ReviewSummary{Total: total, Corrections: map[string]int{}}
	for _, fb := range all {
		if fb.Agreed {
			summary.Agreed++
			continue
		}
		summary.Corrections[fb.SuggestedCondition+" -> "+fb.ConfirmedCondition]++
	}
	if len(all) > 0 {
		summary.AgreementRate = float64(summary.Agreed) / float64(len(all))
	}
	return summary, nil
}

// Export writes all reviews as JSON.
func (s *FeedbackService) Export(ctx context.Context, w io.Writer) error {
	return s.store.ExportJSON(ctx, w)
}
