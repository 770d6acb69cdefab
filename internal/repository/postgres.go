package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
)

const pgUniqueViolation = "23505"

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// PostgresDiagnosisStore persists diagnoses in Postgres. Ids come from BIGSERIAL.
type PostgresDiagnosisStore struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPostgresDiagnosisStore creates a new diagnosis repository
func NewPostgresDiagnosisStore(db *pgxpool.Pool, logger *logrus.Logger) *PostgresDiagnosisStore {
	return &PostgresDiagnosisStore{db: db, log: logger}
}

// Insert stores d and sets its id.
func (r *PostgresDiagnosisStore) Insert(ctx context.Context, d *domain.Diagnosis) error {
	d.CreatedAt = stamp(d.CreatedAt)
	d.UpdatedAt = stamp(d.UpdatedAt)
	patientJSON, analysisJSON, err := encodeDiagnosis(d)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO diagnoses (patient_name, patient_data, image_ref, analysis, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err = r.db.QueryRow(ctx, query,
		d.PatientData.Name, patientJSON, d.ImageRef, analysisJSON, string(d.Status), d.CreatedAt, d.UpdatedAt,
	).Scan(&d.ID)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"patient": d.PatientData.Name,
			"error":   err,
		}).Error("Failed to create diagnosis")
		return fmt.Errorf("creating diagnosis: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"diagnosis_id": d.ID,
		"status":       d.Status,
	}).Debug("Diagnosis created")
	return nil
}

// FindByID loads one diagnosis.
func (r *PostgresDiagnosisStore) FindByID(ctx context.Context, id int64) (*domain.Diagnosis, error) {
	d, err := scanDiagnosis(r.db.QueryRow(ctx, `SELECT `+diagnosisColumns+` FROM diagnoses WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("diagnosis %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting diagnosis: %w", err)
	}
	return d, nil
}

// List returns diagnoses newest first with the total count.
func (r *PostgresDiagnosisStore) List(ctx context.Context, limit, offset int) ([]*domain.Diagnosis, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM diagnoses`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting diagnoses: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+diagnosisColumns+` FROM diagnoses ORDER BY id DESC LIMIT $1 OFFSET $2`,
		sqlLimit(limit), offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing diagnoses: %w", err)
	}
	defer rows.Close()

	out, err := collectPgDiagnoses(rows)
	return out, total, err
}

// FindByPatientName matches names case-insensitively, newest first.
func (r *PostgresDiagnosisStore) FindByPatientName(ctx context.Context, name string) ([]*domain.Diagnosis, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+diagnosisColumns+` FROM diagnoses WHERE lower(patient_name) = lower($1) ORDER BY id DESC`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("finding diagnoses by patient: %w", err)
	}
	defer rows.Close()
	return collectPgDiagnoses(rows)
}

// UpdateStatus sets the status and returns the updated record.
func (r *PostgresDiagnosisStore) UpdateStatus(ctx context.Context, id int64, status domain.DiagnosisStatus) (*domain.Diagnosis, error) {
	query := `
		UPDATE diagnoses SET status = $1, updated_at = $2
		WHERE id = $3
		RETURNING ` + diagnosisColumns

	d, err := scanDiagnosis(r.db.QueryRow(ctx, query, string(status), now(), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("diagnosis %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("updating diagnosis status: %w", err)
	}
	return d, nil
}

// Ping checks the pool.
func (r *PostgresDiagnosisStore) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func collectPgDiagnoses(rows pgx.Rows) ([]*domain.Diagnosis, error) {
	out := []*domain.Diagnosis{}
	for rows.Next() {
		d, err := scanDiagnosis(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning diagnosis: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// PostgresPatientStore persists patients in Postgres.
type PostgresPatientStore struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPostgresPatientStore creates a new patient repository
func NewPostgresPatientStore(db *pgxpool.Pool, logger *logrus.Logger) *PostgresPatientStore {
	return &PostgresPatientStore{db: db, log: logger}
}

// Create inserts p. A duplicate name+village yields domain.ErrConflict.
func (r *PostgresPatientStore) Create(ctx context.Context, p *domain.Patient) error {
	p.CreatedAt = stamp(p.CreatedAt)
	p.UpdatedAt = stamp(p.UpdatedAt)

	query := `
		INSERT INTO patients (name, age, gender, village, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		p.Name, p.Age, p.Gender, p.Village, nullableString(p.Phone), p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if isPgUniqueViolation(err) {
		return fmt.Errorf("patient %q in %q: %w", p.Name, p.Village, domain.ErrConflict)
	}
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"village": p.Village,
			"error":   err,
		}).Error("Failed to create patient")
		return fmt.Errorf("creating patient: %w", err)
	}
	return nil
}

// FindByID loads one patient.
func (r *PostgresPatientStore) FindByID(ctx context.Context, id int64) (*domain.Patient, error) {
	p, err := scanPatient(r.db.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("patient %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting patient: %w", err)
	}
	return p, nil
}

// FindByNameAndVillage matches both fields case-insensitively.
func (r *PostgresPatientStore) FindByNameAndVillage(ctx context.Context, name, village string) (*domain.Patient, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE lower(name) = lower($1) AND lower(village) = lower($2)`,
		name, village,
	)
	p, err := scanPatient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("patient %q in %q: %w", name, village, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting patient: %w", err)
	}
	return p, nil
}

// List filters by search and village.
func (r *PostgresPatientStore) List(ctx context.Context, filter domain.PatientFilter) ([]*domain.Patient, int, error) {
	var (
		where []string
		args  []interface{}
	)
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		args = append(args, "%"+search+"%")
		where = append(where, fmt.Sprintf("(lower(name) LIKE $%d OR lower(village) LIKE $%d)", len(args), len(args)))
	}
	if filter.Village != "" {
		args = append(args, filter.Village)
		where = append(where, fmt.Sprintf("lower(village) = lower($%d)", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM patients`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting patients: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM patients%s ORDER BY id LIMIT $%d OFFSET $%d`,
		patientColumns, clause, len(args)+1, len(args)+2)
	rows, err := r.db.Query(ctx, query, append(args, sqlLimit(filter.Limit), filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing patients: %w", err)
	}
	defer rows.Close()

	out, err := collectPgPatients(rows)
	return out, total, err
}

// All returns every patient.
func (r *PostgresPatientStore) All(ctx context.Context) ([]*domain.Patient, error) {
	rows, err := r.db.Query(ctx, `SELECT `+patientColumns+` FROM patients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing patients: %w", err)
	}
	defer rows.Close()
	return collectPgPatients(rows)
}

// Update writes all mutable fields of p.
func (r *PostgresPatientStore) Update(ctx context.Context, p *domain.Patient) error {
	query := `
		UPDATE patients SET name = $1, age = $2, gender = $3, village = $4, phone = $5, updated_at = $6
		WHERE id = $7`

	tag, err := r.db.Exec(ctx, query,
		p.Name, p.Age, p.Gender, p.Village, nullableString(p.Phone), p.UpdatedAt, p.ID,
	)
	if isPgUniqueViolation(err) {
		return fmt.Errorf("patient %q in %q: %w", p.Name, p.Village, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("updating patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("patient %d: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

func collectPgPatients(rows pgx.Rows) ([]*domain.Patient, error) {
	out := []*domain.Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning patient: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PostgresReportStore persists reports in Postgres.
type PostgresReportStore struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPostgresReportStore creates a new report repository
func NewPostgresReportStore(db *pgxpool.Pool, logger *logrus.Logger) *PostgresReportStore {
	return &PostgresReportStore{db: db, log: logger}
}

// Create inserts rep and sets its id.
func (r *PostgresReportStore) Create(ctx context.Context, rep *domain.Report) error {
	query := `
		INSERT INTO reports (diagnosis_id, patient_name, condition, date, status, type, confidence, severity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		nullableID(rep.DiagnosisID), rep.PatientName, rep.Condition, rep.Date, rep.Status, rep.Type, rep.Confidence, string(rep.Severity),
	).Scan(&rep.ID)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	return nil
}

// FindByID loads one report.
func (r *PostgresReportStore) FindByID(ctx context.Context, id int64) (*domain.Report, error) {
	rep, err := scanReport(r.db.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("report %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting report: %w", err)
	}
	return rep, nil
}

// List filters by exact status and type.
func (r *PostgresReportStore) List(ctx context.Context, filter domain.ReportFilter) ([]*domain.Report, int, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM reports`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting reports: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM reports%s ORDER BY id LIMIT $%d OFFSET $%d`,
		reportColumns, clause, len(args)+1, len(args)+2)
	rows, err := r.db.Query(ctx, query, append(args, sqlLimit(filter.Limit), filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	out, err := collectPgReports(rows)
	return out, total, err
}

// All returns every report.
func (r *PostgresReportStore) All(ctx context.Context) ([]*domain.Report, error) {
	rows, err := r.db.Query(ctx, `SELECT `+reportColumns+` FROM reports ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()
	return collectPgReports(rows)
}

func collectPgReports(rows pgx.Rows) ([]*domain.Report, error) {
	out := []*domain.Report{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}
