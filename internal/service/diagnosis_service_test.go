package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/repository"
)

type fakeAnalyzer struct {
	raw   string
	err   error
	calls int
}

func (f *fakeAnalyzer) AnalyzeImage(ctx context.Context, image []byte, mimeType string, patient domain.PatientContext) (string, error) {
	f.calls++
	return f.raw, f.err
}

type fakeProcessor struct{ err error }

func (f fakeProcessor) Process(data []byte) (*domain.ProcessedImage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ProcessedImage{Name: "abc.jpg", ContentType: "image/jpeg", Data: data, Width: 10, Height: 10}, nil
}

type fakeImageStore struct {
	saved     map[string][]byte
	deleted   []string
	err       error
	deleteErr error
}

func (f *fakeImageStore) Save(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[name] = data
	return "/uploads/" + name, nil
}

func (f *fakeImageStore) Delete(ctx context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	delete(f.saved, name)
	return f.deleteErr
}

type publishedEvent struct {
	eventType string
	payload   []byte
	key       string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType string, payload []byte, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{eventType, payload, key})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type diagnosisFixture struct {
	svc       *DiagnosisService
	analyzer  *fakeAnalyzer
	images    *fakeImageStore
	diagnoses *repository.MemoryDiagnosisStore
	reports   *repository.MemoryReportStore
	publisher *recordingPublisher
	hook      *test.Hook
}

func newDiagnosisFixture(t *testing.T, analyzer *fakeAnalyzer) *diagnosisFixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	f := &diagnosisFixture{
		analyzer:  analyzer,
		images:    &fakeImageStore{},
		diagnoses: repository.NewMemoryDiagnosisStore(),
		reports:   repository.NewMemoryReportStore(),
		publisher: &recordingPublisher{},
		hook:      hook,
	}
	var a domain.ImageAnalyzer
	if analyzer != nil {
		a = analyzer
	}
	f.svc = NewDiagnosisService(a, fakeProcessor{}, f.images, f.diagnoses, f.reports, f.publisher, logger)
	f.svc.now = func() time.Time { return time.Date(2024, 3, 5, 8, 30, 0, 0, time.UTC) }
	return f
}

func ringwormPatient() domain.PatientContext {
	return domain.PatientContext{
		Name:     "Sunita Devi",
		Age:      34,
		Gender:   "Female",
		Symptoms: "red itchy ring-shaped rash spreading on arm",
		Duration: "2 weeks",
	}
}

func TestDiagnosisService_Submit_FallsBackWhenModelFails(t *testing.T) {
	f := newDiagnosisFixture(t, &fakeAnalyzer{err: errors.New("connection refused")})

	d, err := f.svc.Submit(context.Background(), SubmitRequest{Patient: ringwormPatient(), Image: []byte("jpeg-bytes")})

	require.NoError(t, err)
	assert.Equal(t, int64(1), d.ID)
	assert.Equal(t, "Fungal Infection (Dermatophytosis)", d.Analysis.PrimaryCondition)
	assert.Equal(t, domain.RiskYellow, d.Analysis.RiskLevel)
	assert.Equal(t, domain.StatusCompleted, d.Status)
	assert.Equal(t, domain.SourceFallback, d.Analysis.Source)
	assert.Equal(t, "/uploads/abc.jpg", d.ImageRef)
	assert.Equal(t, []byte("jpeg-bytes"), f.images.saved["abc.jpg"])

	stored, err := f.diagnoses.FindByID(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Analysis, stored.Analysis)

	entry := findLogEntry(f.hook, "Using fallback classifier")
	require.NotNil(t, entry)
	assert.Equal(t, "model_unavailable", entry.Data["reason"])

	reports, err := f.reports.All(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, domain.ReportTypeDiagnostic, reports[0].Type)
	assert.Equal(t, "2024-03-05", reports[0].Date)
	assert.Equal(t, d.ID, reports[0].DiagnosisID)
	assert.Empty(t, f.publisher.events)
}

func TestDiagnosisService_Submit_UsesModelAnalysis(t *testing.T) {
	f := newDiagnosisFixture(t, &fakeAnalyzer{raw: validModelJSON})

	d, err := f.svc.Submit(context.Background(), SubmitRequest{Patient: ringwormPatient(), Image: []byte("img")})

	require.NoError(t, err)
	assert.Equal(t, "Tinea Corporis", d.Analysis.PrimaryCondition)
	assert.Equal(t, domain.SourceModel, d.Analysis.Source)
	assert.Equal(t, 1, f.analyzer.calls)
	assert.Nil(t, findLogEntry(f.hook, "Using fallback classifier"))
}

func TestDiagnosisService_Submit_RedRiskIsReferredAndPublished(t *testing.T) {
	raw := `{"primaryCondition":"Cellulitis","confidence":88,"severity":"Severe","riskLevel":"RED","treatment":"Refer for IV antibiotics","followUp":"Refer to PHC immediately"}`
	f := newDiagnosisFixture(t, &fakeAnalyzer{raw: raw})

	d, err := f.svc.Submit(context.Background(), SubmitRequest{Patient: ringwormPatient(), Image: []byte("img")})

	require.NoError(t, err)
	assert.True(t, d.Analysis.ReferralNeeded)
	assert.Equal(t, domain.StatusReferred, d.Status)

	require.Len(t, f.publisher.events, 1)
	event := f.publisher.events[0]
	assert.Equal(t, EventDiagnosisReferred, event.eventType)
	assert.Equal(t, "1", event.key)
	assert.JSONEq(t, `{
		"diagnosisId": 1,
		"patientName": "Sunita Devi",
		"patientAge": 34,
		"primaryCondition": "Cellulitis",
		"severity": "Severe",
		"riskLevel": "RED",
		"followUp": "Refer to PHC immediately",
		"imageUrl": "/uploads/abc.jpg",
		"occurredAt": "2024-03-05T08:30:00Z"
	}`, string(event.payload))

	reports, _ := f.reports.All(context.Background())
	require.Len(t, reports, 1)
	assert.Equal(t, domain.ReportTypeReferral, reports[0].Type)
}

func TestDiagnosisService_Analyze_FallbackReasons(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{"no json", "I am not sure.", "unparseable_output"},
		{"missing treatment", `{"primaryCondition":"X","confidence":50,"severity":"Mild","riskLevel":"GREEN"}`, "incomplete_output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDiagnosisFixture(t, &fakeAnalyzer{raw: tt.raw})

			got := f.svc.Analyze(context.Background(), []byte("img"), "image/jpeg", ringwormPatient())

			assert.Equal(t, domain.SourceFallback, got.Source)
			entry := findLogEntry(f.hook, "Using fallback classifier")
			require.NotNil(t, entry)
			assert.Equal(t, tt.reason, entry.Data["reason"])
		})
	}
}

func TestDiagnosisService_Analyze_NilAnalyzerUsesFallback(t *testing.T) {
	f := newDiagnosisFixture(t, nil)

	got := f.svc.Analyze(context.Background(), nil, "", ringwormPatient())

	assert.Equal(t, domain.SourceFallback, got.Source)
}

func TestDiagnosisService_Submit_Validation(t *testing.T) {
	f := newDiagnosisFixture(t, &fakeAnalyzer{raw: validModelJSON})
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, SubmitRequest{Patient: domain.PatientContext{Name: "A"}, Image: []byte("img")})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)

	_, err = f.svc.Submit(ctx, SubmitRequest{Patient: ringwormPatient()})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "image", vErr.Field)

	f.svc.processor = fakeProcessor{err: domain.ErrInvalidImage}
	_, err = f.svc.Submit(ctx, SubmitRequest{Patient: ringwormPatient(), Image: []byte("not an image")})
	assert.ErrorIs(t, err, domain.ErrInvalidImage)

	assert.Zero(t, f.analyzer.calls, "invalid submissions never reach the model")
	_, total, _ := f.diagnoses.List(ctx, 10, 0)
	assert.Zero(t, total)
}

func TestDiagnosisService_Submit_ImageStoreFailure(t *testing.T) {
	f := newDiagnosisFixture(t, &fakeAnalyzer{raw: validModelJSON})
	f.images.err = errors.New("bucket not found")

	_, err := f.svc.Submit(context.Background(), SubmitRequest{Patient: ringwormPatient(), Image: []byte("img")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store image")
}

type failingDiagnosisStore struct {
	*repository.MemoryDiagnosisStore
	err error
}

func (s failingDiagnosisStore) Insert(ctx context.Context, d *domain.Diagnosis) error {
	return s.err
}

func TestDiagnosisService_Submit_InsertFailureRemovesImage(t *testing.T) {
	tests := []struct {
		name      string
		deleteErr error
		wantWarn  bool
	}{
		{"image removed", nil, false},
		{"removal failure is logged", errors.New("disk gone"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDiagnosisFixture(t, &fakeAnalyzer{raw: validModelJSON})
			f.images.deleteErr = tt.deleteErr
			store := failingDiagnosisStore{MemoryDiagnosisStore: f.diagnoses, err: errors.New("database is locked")}
			f.svc.diagnoses = store

			_, err := f.svc.Submit(context.Background(), SubmitRequest{Patient: ringwormPatient(), Image: []byte("img")})

			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to store diagnosis")
			assert.Equal(t, []string{"abc.jpg"}, f.images.deleted)
			assert.NotContains(t, f.images.saved, "abc.jpg")
			assert.Empty(t, f.publisher.events)

			entry := findLogEntry(f.hook, "Failed to remove image of unsaved diagnosis")
			assert.Equal(t, tt.wantWarn, entry != nil)
		})
	}
}

func TestDiagnosisService_UpdateStatus(t *testing.T) {
	f := newDiagnosisFixture(t, &fakeAnalyzer{raw: validModelJSON})
	ctx := context.Background()
	d, err := f.svc.Submit(ctx, SubmitRequest{Patient: ringwormPatient(), Image: []byte("img")})
	require.NoError(t, err)

	updated, err := f.svc.UpdateStatus(ctx, d.ID, "UnderTreatment")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderTreatment, updated.Status)
	assert.Empty(t, f.publisher.events)

	updated, err = f.svc.UpdateStatus(ctx, d.ID, "referred")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReferred, updated.Status)
	assert.Len(t, f.publisher.events, 1)

	_, err = f.svc.UpdateStatus(ctx, d.ID, "Archived")
	var vErr *domain.ValidationError
	assert.ErrorAs(t, err, &vErr)

	_, err = f.svc.UpdateStatus(ctx, 404, "Completed")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDiagnosisService_List(t *testing.T) {
	f := newDiagnosisFixture(t, nil)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		_, err := f.svc.Submit(ctx, SubmitRequest{Patient: ringwormPatient(), Image: []byte("img")})
		require.NoError(t, err)
	}

	items, total, err := f.svc.List(ctx, 0, -3)
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	assert.Len(t, items, 10, "default page size")
	assert.Equal(t, int64(12), items[0].ID)
}

func TestAssemble(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	analysis := domain.DiagnosisAnalysis{PrimaryCondition: "Scabies", ReferralNeeded: true}

	d := Assemble(ringwormPatient(), analysis, "/uploads/x.jpg", now)

	assert.Zero(t, d.ID)
	assert.Equal(t, domain.StatusReferred, d.Status)
	assert.Equal(t, now, d.CreatedAt)
	assert.Equal(t, now, d.UpdatedAt)

	analysis.ReferralNeeded = false
	assert.Equal(t, domain.StatusCompleted, Assemble(ringwormPatient(), analysis, "", now).Status)
}

func findLogEntry(hook *test.Hook, message string) *logrus.Entry {
	for _, e := range hook.AllEntries() {
		if e.Message == message {
			return e
		}
	}
	return nil
}
