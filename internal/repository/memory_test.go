package repository

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
)

func newTestDiagnosis(name string, created time.Time) *domain.Diagnosis {
	return &domain.Diagnosis{
		PatientData: domain.PatientContext{Name: name, Age: 30, Gender: "Female", Symptoms: "itchy rash", Duration: "2 weeks"},
		ImageRef:    "/uploads/test.jpg",
		Analysis: domain.DiagnosisAnalysis{
			PrimaryCondition: "Fungal Infection",
			Confidence:       70,
			Severity:         domain.SeverityMild,
			RiskLevel:        domain.RiskGreen,
			Treatment:        "Topical antifungal",
			Recommendations:  []string{"Keep dry"},
			WarningSigns:     []string{"Spreading"},
		},
		Status:    domain.StatusCompleted,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestMemoryDiagnosisStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDiagnosisStore()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	first := newTestDiagnosis("Asha Devi", base)
	second := newTestDiagnosis("asha devi", base.Add(time.Hour))
	third := newTestDiagnosis("Ravi", base.Add(2*time.Hour))
	for _, d := range []*domain.Diagnosis{first, second, third} {
		require.NoError(t, store.Insert(ctx, d))
	}
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(3), third.ID)

	t.Run("list newest first", func(t *testing.T) {
		items, total, err := store.List(ctx, 2, 0)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, items, 2)
		assert.Equal(t, int64(3), items[0].ID)
		assert.Equal(t, int64(2), items[1].ID)

		items, _, err = store.List(ctx, 10, 5)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("find by patient name ignores case", func(t *testing.T) {
		items, err := store.FindByPatientName(ctx, "ASHA DEVI")
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("returned records are copies", func(t *testing.T) {
		got, err := store.FindByID(ctx, 1)
		require.NoError(t, err)
		got.Analysis.Recommendations[0] = "changed"
		again, err := store.FindByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Keep dry", again.Analysis.Recommendations[0])
	})

	t.Run("update status", func(t *testing.T) {
		updated, err := store.UpdateStatus(ctx, 2, domain.StatusReferred)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusReferred, updated.Status)
		assert.True(t, updated.UpdatedAt.After(second.UpdatedAt))

		_, err = store.UpdateStatus(ctx, 99, domain.StatusReferred)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := store.FindByID(ctx, 42)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestPaginate_LargeLimits(t *testing.T) {
	items := []int{1, 2, 3}

	tests := []struct {
		name   string
		limit  int
		offset int
		want   []int
	}{
		{"max limit with offset", math.MaxInt, 1, []int{2, 3}},
		{"max limit at end", math.MaxInt, 3, []int{}},
		{"limit past end", 5, 2, []int{3}},
		{"no limit", 0, 0, []int{1, 2, 3}},
		{"negative offset", 2, -4, []int{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int
			require.NotPanics(t, func() { got = paginate(items, tt.limit, tt.offset) })
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMemoryStores_ListWithHugeLimit(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	diagnoses := NewMemoryDiagnosisStore()
	for i := 0; i < 3; i++ {
		require.NoError(t, diagnoses.Insert(ctx, newTestDiagnosis("Ravi", base.Add(time.Duration(i)*time.Hour))))
	}
	items, total, err := diagnoses.List(ctx, math.MaxInt, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, items, 2)

	reports := NewMemoryReportStore()
	for _, r := range SeedReports() {
		require.NoError(t, reports.Create(ctx, r))
	}
	got, _, err := reports.List(ctx, domain.ReportFilter{Limit: math.MaxInt, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryDiagnosisStore_ConcurrentInsertsGetDistinctIDs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDiagnosisStore()

	const n = 50
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := newTestDiagnosis("Concurrent", time.Now())
			assert.NoError(t, store.Insert(ctx, d))
			ids <- d.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestMemoryPatientStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryPatientStore()
	require.NoError(t, SeedPatientStore(ctx, store))
	// seeding twice does not duplicate
	require.NoError(t, SeedPatientStore(ctx, store))

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].ID)

	t.Run("conflict on same name and village", func(t *testing.T) {
		err := store.Create(ctx, &domain.Patient{Name: "rajesh kumar", Age: 40, Gender: "Male", Village: "RAMPUR"})
		assert.ErrorIs(t, err, domain.ErrConflict)

		err = store.Create(ctx, &domain.Patient{Name: "Rajesh Kumar", Age: 40, Gender: "Male", Village: "Mohalla"})
		assert.NoError(t, err)
	})

	tests := []struct {
		name   string
		filter domain.PatientFilter
		want   int
		total  int
	}{
		{"no filter", domain.PatientFilter{}, 3, 3},
		{"search by name", domain.PatientFilter{Search: "priya"}, 1, 1},
		{"search by village", domain.PatientFilter{Search: "rampur"}, 2, 2},
		{"exact village", domain.PatientFilter{Village: "mohalla"}, 1, 1},
		{"paginated", domain.PatientFilter{Limit: 1, Offset: 1}, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := store.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, items, tt.want)
			assert.Equal(t, tt.total, total)
		})
	}

	t.Run("update rejects a rename onto an existing patient", func(t *testing.T) {
		p, err := store.FindByID(ctx, 2)
		require.NoError(t, err)
		p.Name = "Rajesh Kumar"
		assert.ErrorIs(t, store.Update(ctx, p), domain.ErrConflict)

		p.Name = "Priya S."
		require.NoError(t, store.Update(ctx, p))
		got, err := store.FindByID(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, "Priya S.", got.Name)
	})

	t.Run("update unknown id", func(t *testing.T) {
		err := store.Update(ctx, &domain.Patient{ID: 77, Name: "X", Village: "Y"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestMemoryReportStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReportStore()
	require.NoError(t, SeedReportStore(ctx, store))
	require.NoError(t, SeedReportStore(ctx, store))

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	items, total, err := store.List(ctx, domain.ReportFilter{Status: "Completed"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Rajesh Kumar", items[0].PatientName)

	items, total, err = store.List(ctx, domain.ReportFilter{Type: domain.ReportTypeReferral})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)

	_, err = store.FindByID(ctx, 3)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryCommunityStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCommunityStore()
	require.NoError(t, SeedCommunity(ctx, store))

	villages, err := store.Villages(ctx)
	require.NoError(t, err)
	assert.Len(t, villages, 3)

	v, err := store.Village(ctx, "khalilabad")
	require.NoError(t, err)
	assert.Equal(t, "High", v.RiskLevel)

	_, err = store.Village(ctx, "Atlantis")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	outbreaks, err := store.Outbreaks(ctx)
	require.NoError(t, err)
	require.Len(t, outbreaks, 2)
	assert.Equal(t, int64(1), outbreaks[0].ID)

	o := &domain.Outbreak{Condition: "Impetigo", Village: "Mohalla", Cases: 3, Status: domain.OutbreakActive}
	require.NoError(t, store.CreateOutbreak(ctx, o))
	assert.Equal(t, int64(3), o.ID)

	updated, err := store.UpdateOutbreakStatus(ctx, 3, domain.OutbreakResolved, "2024-02-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, domain.OutbreakResolved, updated.Status)
	assert.Equal(t, "2024-02-01T00:00:00Z", updated.LastUpdated)

	_, err = store.UpdateOutbreakStatus(ctx, 9, domain.OutbreakResolved, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	trends, err := store.Trends(ctx)
	require.NoError(t, err)
	assert.Len(t, trends, 3)
}
