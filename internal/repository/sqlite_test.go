package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func openTestSQLite(t *testing.T) (*SQLiteDiagnosisStore, *SQLitePatientStore, *SQLiteReportStore) {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := quietLogger()
	return NewSQLiteDiagnosisStore(db, logger), NewSQLitePatientStore(db, logger), NewSQLiteReportStore(db, logger)
}

func TestSQLiteDiagnosisStore(t *testing.T) {
	ctx := context.Background()
	diagnoses, _, _ := openTestSQLite(t)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	first := newTestDiagnosis("Meena", base)
	second := newTestDiagnosis("Arjun", base.Add(time.Minute))
	require.NoError(t, diagnoses.Insert(ctx, first))
	require.NoError(t, diagnoses.Insert(ctx, second))
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)

	got, err := diagnoses.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.PatientData, got.PatientData)
	assert.Equal(t, first.Analysis, got.Analysis)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.True(t, first.CreatedAt.Equal(got.CreatedAt))

	items, total, err := diagnoses.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID)

	byName, err := diagnoses.FindByPatientName(ctx, "meena")
	require.NoError(t, err)
	require.Len(t, byName, 1)

	updated, err := diagnoses.UpdateStatus(ctx, second.ID, domain.StatusUnderTreatment)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderTreatment, updated.Status)

	_, err = diagnoses.UpdateStatus(ctx, 404, domain.StatusReferred)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = diagnoses.FindByID(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, diagnoses.Ping(ctx))
}

func TestSQLitePatientStore(t *testing.T) {
	ctx := context.Background()
	_, patients, _ := openTestSQLite(t)
	require.NoError(t, SeedPatientStore(ctx, patients))

	all, err := patients.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.NotNil(t, all[0].Phone)
	assert.Equal(t, "+91-9876543210", *all[0].Phone)

	err = patients.Create(ctx, &domain.Patient{Name: "PRIYA SHARMA", Age: 33, Gender: "Female", Village: "rampur"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	noPhone := &domain.Patient{Name: "Sunil", Age: 60, Gender: "Male", Village: "Mohalla"}
	require.NoError(t, patients.Create(ctx, noPhone))
	got, err := patients.FindByID(ctx, noPhone.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Phone)

	found, err := patients.FindByNameAndVillage(ctx, "sunil", "MOHALLA")
	require.NoError(t, err)
	assert.Equal(t, noPhone.ID, found.ID)

	items, total, err := patients.List(ctx, domain.PatientFilter{Search: "ram", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 1)

	items, total, err = patients.List(ctx, domain.PatientFilter{Village: "mohalla"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Sunil", items[0].Name)

	got.Age = 61
	require.NoError(t, patients.Update(ctx, got))
	got.Name = "Rajesh Kumar"
	got.Village = "Rampur"
	assert.ErrorIs(t, patients.Update(ctx, got), domain.ErrConflict)
	assert.ErrorIs(t, patients.Update(ctx, &domain.Patient{ID: 99, Name: "Nobody", Village: "Nowhere"}), domain.ErrNotFound)
}

func TestSQLiteReportStore(t *testing.T) {
	ctx := context.Background()
	_, _, reports := openTestSQLite(t)
	require.NoError(t, SeedReportStore(ctx, reports))

	referral := &domain.Report{
		DiagnosisID: 7,
		PatientName: "Arjun",
		Condition:   "Cellulitis",
		Date:        "2024-03-02",
		Status:      string(domain.StatusReferred),
		Type:        domain.ReportTypeReferral,
		Confidence:  81,
		Severity:    domain.SeveritySevere,
	}
	require.NoError(t, reports.Create(ctx, referral))
	assert.Equal(t, int64(3), referral.ID)

	got, err := reports.FindByID(ctx, referral.ID)
	require.NoError(t, err)
	assert.Equal(t, referral, got)

	seeded, err := reports.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, seeded.DiagnosisID)

	items, total, err := reports.List(ctx, domain.ReportFilter{Type: domain.ReportTypeDiagnostic})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)

	_, err = reports.FindByID(ctx, 50)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOpenSQLite_InMemory(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLiteReportStore(db, quietLogger())
	require.NoError(t, SeedReportStore(context.Background(), store))
	all, err := store.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLiteStores_DatabaseErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk I/O error")

	t.Run("insert diagnosis", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("INSERT INTO diagnoses").WillReturnError(boom)

		err = NewSQLiteDiagnosisStore(db, quietLogger()).Insert(ctx, newTestDiagnosis("X", time.Now()))
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("count failure aborts list", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT COUNT").WillReturnError(boom)

		_, _, err = NewSQLiteDiagnosisStore(db, quietLogger()).List(ctx, 10, 0)
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("corrupt analysis column", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		rows := sqlmock.NewRows([]string{"id", "patient_data", "image_ref", "analysis", "status", "created_at", "updated_at"}).
			AddRow(1, `{"name":"X"}`, "", "not json", "Completed", time.Now(), time.Now())
		mock.ExpectQuery("SELECT (.+) FROM diagnoses WHERE id").WithArgs(1).WillReturnRows(rows)

		_, err = NewSQLiteDiagnosisStore(db, quietLogger()).FindByID(ctx, 1)
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrNotFound)
		assert.Contains(t, err.Error(), "decoding analysis")
	})

	t.Run("update patient", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("UPDATE patients").WillReturnError(boom)

		err = NewSQLitePatientStore(db, quietLogger()).Update(ctx, &domain.Patient{ID: 1, Name: "A", Village: "B"})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("report rows error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		rows := sqlmock.NewRows([]string{"id", "diagnosis_id", "patient_name", "condition", "date", "status", "type", "confidence", "severity"}).
			AddRow(1, nil, "A", "Scabies", "2024-01-01", "Completed", domain.ReportTypeDiagnostic, 80, "Mild").
			RowError(0, boom)
		mock.ExpectQuery("SELECT (.+) FROM reports").WillReturnRows(rows)

		_, err = NewSQLiteReportStore(db, quietLogger()).All(ctx)
		assert.ErrorIs(t, err, boom)
	})
}
