package service

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/feedback"
	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/repository"
)

func newFeedbackService(t *testing.T) (*FeedbackService, *repository.MemoryDiagnosisStore) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store, err := feedback.NewSQLiteStore(filepath.Join(t.TempDir(), "feedback.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	diagnoses := repository.NewMemoryDiagnosisStore()
	for _, condition := range []string{"Scabies", "Contact Dermatitis", "Scabies"} {
		require.NoError(t, diagnoses.Insert(context.Background(), &domain.Diagnosis{
			PatientData: domain.PatientContext{Name: "Patient"},
			Analysis:    domain.DiagnosisAnalysis{PrimaryCondition: condition},
			Status:      domain.StatusCompleted,
		}))
	}
	return NewFeedbackService(store, diagnoses, logger), diagnoses
}

func TestFeedbackService_Review(t *testing.T) {
	svc, _ := newFeedbackService(t)
	ctx := context.Background()

	agreed, err := svc.Review(ctx, 1, ReviewInput{Reviewer: "Dr. Rao"})
	require.NoError(t, err)
	assert.True(t, agreed.Agreed)
	assert.Equal(t, "Scabies", agreed.ConfirmedCondition)

	corrected, err := svc.Review(ctx, 2, ReviewInput{ConfirmedCondition: "Psoriasis", Notes: "silvery plaques"})
	require.NoError(t, err)
	assert.False(t, corrected.Agreed)
	assert.Equal(t, "Contact Dermatitis", corrected.SuggestedCondition)

	caseOnly, err := svc.Review(ctx, 3, ReviewInput{ConfirmedCondition: "scabies"})
	require.NoError(t, err)
	assert.True(t, caseOnly.Agreed)

	_, err = svc.Review(ctx, 99, ReviewInput{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := svc.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "silvery plaques", got.Notes)

	_, err = svc.Get(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFeedbackService_SummaryListExport(t *testing.T) {
	svc, _ := newFeedbackService(t)
	ctx := context.Background()

	_, err := svc.Review(ctx, 1, ReviewInput{})
	require.NoError(t, err)
	_, err = svc.Review(ctx, 2, ReviewInput{ConfirmedCondition: "Psoriasis"})
	require.NoError(t, err)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Total)
	assert.Equal(t, 1, summary.Agreed)
	assert.InDelta(t, 0.5, summary.AgreementRate, 0.0001)
	assert.Equal(t, map[string]int{"Contact Dermatitis -> Psoriasis": 1}, summary.Corrections)

	items, total, err := svc.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)

	var buf bytes.Buffer
	require.NoError(t, svc.Export(ctx, &buf))
	assert.Contains(t, buf.String(), `"confirmedCondition": "Psoriasis"`)
}

func TestFeedbackService_SummaryEmpty(t *testing.T) {
	svc, _ := newFeedbackService(t)

	summary, err := svc.Summary(context.Background())

	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Zero(t, summary.AgreementRate)
}
