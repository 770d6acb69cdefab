// Package feedback stores clinician reviews of diagnoses: whether the reviewing
// PHC doctor agreed with the suggested condition, and what they confirmed instead.
package feedback

import (
	"context"
	"io"
	"time"
)

// Feedback is one review of a diagnosis. There is at most one per diagnosis;
// saving again replaces it.
type Feedback struct {
	ID                 int64     `json:"id,omitempty"`
	DiagnosisID        int64     `json:"diagnosisId"`
	SuggestedCondition string    `json:"suggestedCondition"`
	ConfirmedCondition string    `json:"confirmedCondition"`
	Agreed             bool      `json:"agreed"`
	Reviewer           string    `json:"reviewer,omitempty"`
	Notes              string    `json:"notes,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Store defines the interface for feedback storage operations.
type Store interface {
	// Save inserts feedback or replaces the existing review of the same diagnosis.
	Save(ctx context.Context, feedback *Feedback) error

	// Get returns the review of a diagnosis, or nil when there is none.
	Get(ctx context.Context, diagnosisID int64) (*Feedback, error)

	// List returns reviews newest first.
	List(ctx context.Context, limit, offset int) ([]*Feedback, error)

	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id int64) error

	// ExportJSON writes every review as a FeedbackExport document.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON reads a FeedbackExport document. Reviews of diagnoses that
	// already have one are skipped.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	Close() error
}

// FeedbackExport represents the JSON export format.
type FeedbackExport struct {
	Version    string      `json:"version"`
	ExportedAt time.Time   `json:"exportedAt"`
	Count      int         `json:"count"`
	Feedback   []*Feedback `json:"feedback"`
}

const exportVersion = "1.0"

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

const feedbackColumns = `id, diagnosis_id, suggested_condition, confirmed_condition, agreed, reviewer, notes, created_at, updated_at`

func scanFeedback(s scanner) (*Feedback, error) {
	fb := &Feedback{}
	err := s.Scan(
		&fb.ID, &fb.DiagnosisID, &fb.SuggestedCondition, &fb.ConfirmedCondition,
		&fb.Agreed, &fb.Reviewer, &fb.Notes, &fb.CreatedAt, &fb.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return fb, nil
}

// importAll saves every entry of an export whose diagnosis has no review yet.
func importAll(ctx context.Context, store Store, export *FeedbackExport) (imported int, skipped int, err error) {
	for _, fb := range export.Feedback {
		existing, err := store.Get(ctx, fb.DiagnosisID)
		if err != nil {
			return imported, skipped, err
		}
		if existing != nil {
			skipped++
			continue
		}
		if err := store.Save(ctx, fb); err != nil {
			return imported, skipped, err
		}
		imported++
	}
	return imported, skipped, nil
}
