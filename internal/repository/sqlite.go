package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS diagnoses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	patient_name TEXT NOT NULL,
	patient_data TEXT NOT NULL,
	image_ref TEXT NOT NULL DEFAULT '',
	analysis TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_diagnoses_patient_name ON diagnoses(patient_name COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS patients (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	age INTEGER NOT NULL,
	gender TEXT NOT NULL,
	village TEXT NOT NULL,
	phone TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_patients_name_village ON patients(lower(name), lower(village));

CREATE TABLE IF NOT EXISTS reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	diagnosis_id INTEGER,
	patient_name TEXT NOT NULL,
	condition TEXT NOT NULL,
	date TEXT NOT NULL,
	status TEXT NOT NULL,
	type TEXT NOT NULL,
	confidence INTEGER NOT NULL DEFAULT 0,
	severity TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_reports_date ON reports(date);
`

// OpenSQLite opens (creating if needed) the SQLite database at path and
// applies the schema. ":memory:" is accepted for tests.
func OpenSQLite(path string) (*sql.DB, error) {
	inMemory := path == ":memory:"
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if inMemory {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return db, nil
}

// scanner is satisfied by *sql.Row, *sql.Rows and pgx.Row.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDiagnosis(s scanner) (*domain.Diagnosis, error) {
	var (
		d                     domain.Diagnosis
		patientJSON, analysis string
		status                string
	)
	if err := s.Scan(&d.ID, &patientJSON, &d.ImageRef, &analysis, &status, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(patientJSON), &d.PatientData); err != nil {
		return nil, fmt.Errorf("decoding patient data of diagnosis %d: %w", d.ID, err)
	}
	if err := json.Unmarshal([]byte(analysis), &d.Analysis); err != nil {
		return nil, fmt.Errorf("decoding analysis of diagnosis %d: %w", d.ID, err)
	}
	d.Status = domain.DiagnosisStatus(status)
	return &d, nil
}

func encodeDiagnosis(d *domain.Diagnosis) (patientJSON, analysisJSON string, err error) {
	p, err := json.Marshal(d.PatientData)
	if err != nil {
		return "", "", fmt.Errorf("encoding patient data: %w", err)
	}
	a, err := json.Marshal(d.Analysis)
	if err != nil {
		return "", "", fmt.Errorf("encoding analysis: %w", err)
	}
	return string(p), string(a), nil
}

func scanPatient(s scanner) (*domain.Patient, error) {
	var (
		p     domain.Patient
		phone sql.NullString
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Age, &p.Gender, &p.Village, &phone, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if phone.Valid {
		p.Phone = &phone.String
	}
	return &p, nil
}

func scanReport(s scanner) (*domain.Report, error) {
	var (
		r           domain.Report
		diagnosisID sql.NullInt64
		severity    string
	)
	if err := s.Scan(&r.ID, &diagnosisID, &r.PatientName, &r.Condition, &r.Date, &r.Status, &r.Type, &r.Confidence, &severity); err != nil {
		return nil, err
	}
	r.DiagnosisID = diagnosisID.Int64
	r.Severity = domain.Severity(severity)
	return &r, nil
}

func nullableID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// sqlLimit maps a non-positive limit to "no limit".
func sqlLimit(limit int) int {
	if limit <= 0 {
		return 1<<31 - 1
	}
	return limit
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// SQLiteDiagnosisStore persists diagnoses in SQLite. Ids come from AUTOINCREMENT.
type SQLiteDiagnosisStore struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewSQLiteDiagnosisStore wraps an open database.
func NewSQLiteDiagnosisStore(db *sql.DB, logger *logrus.Logger) *SQLiteDiagnosisStore {
	return &SQLiteDiagnosisStore{db: db, log: logger}
}

const diagnosisColumns = `id, patient_data, image_ref, analysis, status, created_at, updated_at`

// Insert stores d and sets its id.
func (s *SQLiteDiagnosisStore) Insert(ctx context.Context, d *domain.Diagnosis) error {
	d.CreatedAt = stamp(d.CreatedAt)
	d.UpdatedAt = stamp(d.UpdatedAt)
	patientJSON, analysisJSON, err := encodeDiagnosis(d)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO diagnoses (patient_name, patient_data, image_ref, analysis, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.PatientData.Name, patientJSON, d.ImageRef, analysisJSON, string(d.Status), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"patient": d.PatientData.Name,
			"error":   err,
		}).Error("Failed to insert diagnosis")
		return fmt.Errorf("inserting diagnosis: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	d.ID = id
	return nil
}

// FindByID loads one diagnosis.
func (s *SQLiteDiagnosisStore) FindByID(ctx context.Context, id int64) (*domain.Diagnosis, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+diagnosisColumns+` FROM diagnoses WHERE id = ?`, id)
	d, err := scanDiagnosis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("diagnosis %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting diagnosis: %w", err)
	}
	return d, nil
}

// List returns diagnoses newest first with the total count.
func (s *SQLiteDiagnosisStore) List(ctx context.Context, limit, offset int) ([]*domain.Diagnosis, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM diagnoses`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting diagnoses: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+diagnosisColumns+` FROM diagnoses ORDER BY id DESC LIMIT ? OFFSET ?`,
		sqlLimit(limit), offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing diagnoses: %w", err)
	}
	defer rows.Close()

	out, err := collectDiagnoses(rows)
	return out, total, err
}

// FindByPatientName matches names case-insensitively, newest first.
func (s *SQLiteDiagnosisStore) FindByPatientName(ctx context.Context, name string) ([]*domain.Diagnosis, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+diagnosisColumns+` FROM diagnoses WHERE patient_name = ? COLLATE NOCASE ORDER BY id DESC`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("finding diagnoses by patient: %w", err)
	}
	defer rows.Close()
	return collectDiagnoses(rows)
}

// UpdateStatus sets the status and returns the updated record.
func (s *SQLiteDiagnosisStore) UpdateStatus(ctx context.Context, id int64, status domain.DiagnosisStatus) (*domain.Diagnosis, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE diagnoses SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating diagnosis status: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("diagnosis %d: %w", id, domain.ErrNotFound)
	}
	return s.FindByID(ctx, id)
}

// Ping checks the database connection.
func (s *SQLiteDiagnosisStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func collectDiagnoses(rows *sql.Rows) ([]*domain.Diagnosis, error) {
	out := []*domain.Diagnosis{}
	for rows.Next() {
		d, err := scanDiagnosis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SQLitePatientStore persists patients in SQLite.
type SQLitePatientStore struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewSQLitePatientStore wraps an open database.
func NewSQLitePatientStore(db *sql.DB, logger *logrus.Logger) *SQLitePatientStore {
	return &SQLitePatientStore{db: db, log: logger}
}

const patientColumns = `id, name, age, gender, village, phone, created_at, updated_at`

// Create inserts p. A duplicate name+village yields domain.ErrConflict.
func (s *SQLitePatientStore) Create(ctx context.Context, p *domain.Patient) error {
	p.CreatedAt = stamp(p.CreatedAt)
	p.UpdatedAt = stamp(p.UpdatedAt)
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO patients (name, age, gender, village, phone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Age, p.Gender, p.Village, nullableString(p.Phone), p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("patient %q in %q: %w", p.Name, p.Village, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("inserting patient: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	p.ID = id
	return nil
}

// FindByID loads one patient.
func (s *SQLitePatientStore) FindByID(ctx context.Context, id int64) (*domain.Patient, error) {
	p, err := scanPatient(s.db.QueryRowContext(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("patient %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting patient: %w", err)
	}
	return p, nil
}

// FindByNameAndVillage matches both fields case-insensitively.
func (s *SQLitePatientStore) FindByNameAndVillage(ctx context.Context, name, village string) (*domain.Patient, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE lower(name) = lower(?) AND lower(village) = lower(?)`,
		name, village,
	)
	p, err := scanPatient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("patient %q in %q: %w", name, village, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting patient: %w", err)
	}
	return p, nil
}

// List filters by search and village.
func (s *SQLitePatientStore) List(ctx context.Context, filter domain.PatientFilter) ([]*domain.Patient, int, error) {
	var (
		where []string
		args  []interface{}
	)
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		where = append(where, "(lower(name) LIKE ? OR lower(village) LIKE ?)")
		args = append(args, "%"+search+"%", "%"+search+"%")
	}
	if filter.Village != "" {
		where = append(where, "lower(village) = lower(?)")
		args = append(args, filter.Village)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM patients`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting patients: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+patientColumns+` FROM patients`+clause+` ORDER BY id LIMIT ? OFFSET ?`,
		append(args, sqlLimit(filter.Limit), filter.Offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing patients: %w", err)
	}
	defer rows.Close()

	out, err := collectPatients(rows)
	return out, total, err
}

// All returns every patient.
func (s *SQLitePatientStore) All(ctx context.Context) ([]*domain.Patient, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+patientColumns+` FROM patients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing patients: %w", err)
	}
	defer rows.Close()
	return collectPatients(rows)
}

// Update writes all mutable fields of p.
func (s *SQLitePatientStore) Update(ctx context.Context, p *domain.Patient) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE patients SET name = ?, age = ?, gender = ?, village = ?, phone = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Age, p.Gender, p.Village, nullableString(p.Phone), p.UpdatedAt, p.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("patient %q in %q: %w", p.Name, p.Village, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("updating patient: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("patient %d: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

func collectPatients(rows *sql.Rows) ([]*domain.Patient, error) {
	out := []*domain.Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SQLiteReportStore persists reports in SQLite.
type SQLiteReportStore struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewSQLiteReportStore wraps an open database.
func NewSQLiteReportStore(db *sql.DB, logger *logrus.Logger) *SQLiteReportStore {
	return &SQLiteReportStore{db: db, log: logger}
}

const reportColumns = `id, diagnosis_id, patient_name, condition, date, status, type, confidence, severity`

// Create inserts r and sets its id.
func (s *SQLiteReportStore) Create(ctx context.Context, r *domain.Report) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (diagnosis_id, patient_name, condition, date, status, type, confidence, severity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableID(r.DiagnosisID), r.PatientName, r.Condition, r.Date, r.Status, r.Type, r.Confidence, string(r.Severity),
	)
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	r.ID = id
	return nil
}

// FindByID loads one report.
func (s *SQLiteReportStore) FindByID(ctx context.Context, id int64) (*domain.Report, error) {
	r, err := scanReport(s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting report: %w", err)
	}
	return r, nil
}

// List filters by exact status and type.
func (s *SQLiteReportStore) List(ctx context.Context, filter domain.ReportFilter) ([]*domain.Report, int, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting reports: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM reports`+clause+` ORDER BY id LIMIT ? OFFSET ?`,
		append(args, sqlLimit(filter.Limit), filter.Offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	out, err := collectReports(rows)
	return out, total, err
}

// All returns every report.
func (s *SQLiteReportStore) All(ctx context.Context) ([]*domain.Report, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+reportColumns+` FROM reports ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()
	return collectReports(rows)
}

func collectReports(rows *sql.Rows) ([]*domain.Report, error) {
	out := []*domain.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// stamp fills a zero timestamp with the current time.
func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return now()
	}
	return t
}
