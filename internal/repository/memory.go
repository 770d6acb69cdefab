package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
)

// MemoryDiagnosisStore keeps diagnoses in process memory. Ids come from a
// mutex-guarded counter starting at 1.
type MemoryDiagnosisStore struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]*domain.Diagnosis
}

// NewMemoryDiagnosisStore creates an empty store.
func NewMemoryDiagnosisStore() *MemoryDiagnosisStore {
	return &MemoryDiagnosisStore{nextID: 1, items: make(map[int64]*domain.Diagnosis)}
}

// Insert assigns the next id and stores a copy of d.
func (s *MemoryDiagnosisStore) Insert(ctx context.Context, d *domain.Diagnosis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d.ID = s.nextID
	s.nextID++
	s.items[d.ID] = cloneDiagnosis(d)
	return nil
}

// FindByID returns a copy of the diagnosis.
func (s *MemoryDiagnosisStore) FindByID(ctx context.Context, id int64) (*domain.Diagnosis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("diagnosis %d: %w", id, domain.ErrNotFound)
	}
	return cloneDiagnosis(d), nil
}

// List returns diagnoses newest first.
func (s *MemoryDiagnosisStore) List(ctx context.Context, limit, offset int) ([]*domain.Diagnosis, int, error) {
	s.mu.RLock()
	all := make([]*domain.Diagnosis, 0, len(s.items))
	for _, d := range s.items {
		all = append(all, cloneDiagnosis(d))
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, limit, offset), len(all), nil
}

// FindByPatientName matches names case-insensitively.
func (s *MemoryDiagnosisStore) FindByPatientName(ctx context.Context, name string) ([]*domain.Diagnosis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Diagnosis
	for _, d := range s.items {
		if strings.EqualFold(d.PatientData.Name, name) {
			out = append(out, cloneDiagnosis(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// UpdateStatus sets the status and bumps UpdatedAt.
func (s *MemoryDiagnosisStore) UpdateStatus(ctx context.Context, id int64, status domain.DiagnosisStatus) (*domain.Diagnosis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("diagnosis %d: %w", id, domain.ErrNotFound)
	}
	d.Status = status
	d.UpdatedAt = now()
	return cloneDiagnosis(d), nil
}

// Ping always succeeds.
func (s *MemoryDiagnosisStore) Ping(ctx context.Context) error { return nil }

// MemoryPatientStore keeps patients in process memory.
type MemoryPatientStore struct {
	mu     sync.RWMutex
	nextID int64
	items  []*domain.Patient
}

// NewMemoryPatientStore creates an empty store.
func NewMemoryPatientStore() *MemoryPatientStore {
	return &MemoryPatientStore{nextID: 1}
}

// Create stores p, rejecting a duplicate name within the same village.
func (s *MemoryPatientStore) Create(ctx context.Context, p *domain.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findDuplicate(p.Name, p.Village, 0) != nil {
		return fmt.Errorf("patient %q in %q: %w", p.Name, p.Village, domain.ErrConflict)
	}
	p.ID = s.nextID
	s.nextID++
	cp := *p
	s.items = append(s.items, &cp)
	return nil
}

// FindByID returns a copy of the patient.
func (s *MemoryPatientStore) FindByID(ctx context.Context, id int64) (*domain.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.items {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("patient %d: %w", id, domain.ErrNotFound)
}

// FindByNameAndVillage matches both fields case-insensitively.
func (s *MemoryPatientStore) FindByNameAndVillage(ctx context.Context, name, village string) (*domain.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p := s.findDuplicate(name, village, 0); p != nil {
		cp := *p
		return &cp, nil
	}
	return nil, fmt.Errorf("patient %q in %q: %w", name, village, domain.ErrNotFound)
}

// List filters by search (name or village substring) and exact village.
func (s *MemoryPatientStore) List(ctx context.Context, filter domain.PatientFilter) ([]*domain.Patient, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var matched []*domain.Patient
	for _, p := range s.items {
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Village), search) {
			continue
		}
		if filter.Village != "" && !strings.EqualFold(p.Village, filter.Village) {
			continue
		}
		cp := *p
		matched = append(matched, &cp)
	}
	return paginate(matched, filter.Limit, filter.Offset), len(matched), nil
}

// All returns every patient.
func (s *MemoryPatientStore) All(ctx context.Context) ([]*domain.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Patient, 0, len(s.items))
	for _, p := range s.items {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// Update replaces the stored patient.
func (s *MemoryPatientStore) Update(ctx context.Context, p *domain.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findDuplicate(p.Name, p.Village, p.ID) != nil {
		return fmt.Errorf("patient %q in %q: %w", p.Name, p.Village, domain.ErrConflict)
	}
	for i, existing := range s.items {
		if existing.ID == p.ID {
			cp := *p
			s.items[i] = &cp
			return nil
		}
	}
	return fmt.Errorf("patient %d: %w", p.ID, domain.ErrNotFound)
}

func (s *MemoryPatientStore) findDuplicate(name, village string, exceptID int64) *domain.Patient {
	for _, p := range s.items {
		if p.ID != exceptID && strings.EqualFold(p.Name, name) && strings.EqualFold(p.Village, village) {
			return p
		}
	}
	return nil
}

// MemoryReportStore keeps reports in process memory.
type MemoryReportStore struct {
	mu     sync.RWMutex
	nextID int64
	items  []*domain.Report
}

// NewMemoryReportStore creates an empty store.
func NewMemoryReportStore() *MemoryReportStore {
	return &MemoryReportStore{nextID: 1}
}

// Create assigns the next id and stores r.
func (s *MemoryReportStore) Create(ctx context.Context, r *domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.nextID
	s.nextID++
	cp := *r
	s.items = append(s.items, &cp)
	return nil
}

// FindByID returns a copy of the report.
func (s *MemoryReportStore) FindByID(ctx context.Context, id int64) (*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.items {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("report %d: %w", id, domain.ErrNotFound)
}

// List filters by exact status and type.
func (s *MemoryReportStore) List(ctx context.Context, filter domain.ReportFilter) ([]*domain.Report, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.Report
	for _, r := range s.items {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		cp := *r
		matched = append(matched, &cp)
	}
	return paginate(matched, filter.Limit, filter.Offset), len(matched), nil
}

// All returns every report.
func (s *MemoryReportStore) All(ctx context.Context) ([]*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Report, 0, len(s.items))
	for _, r := range s.items {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

// MemoryCommunityStore keeps village, outbreak and trend data in process memory.
type MemoryCommunityStore struct {
	mu        sync.RWMutex
	nextID    int64
	villages  []domain.Village
	outbreaks []domain.Outbreak
	trends    []domain.Trend
}

// NewMemoryCommunityStore creates an empty store.
func NewMemoryCommunityStore() *MemoryCommunityStore {
	return &MemoryCommunityStore{nextID: 1}
}

// Villages returns all villages.
func (s *MemoryCommunityStore) Villages(ctx context.Context) ([]domain.Village, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Village{}, s.villages...), nil
}

// Village finds a village by name, case-insensitively.
func (s *MemoryCommunityStore) Village(ctx context.Context, name string) (*domain.Village, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.villages {
		if strings.EqualFold(v.Name, name) {
			cp := v
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("village %q: %w", name, domain.ErrNotFound)
}

// AddVillage adds or replaces a village.
func (s *MemoryCommunityStore) AddVillage(v domain.Village) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.villages {
		if strings.EqualFold(existing.Name, v.Name) {
			s.villages[i] = v
			return
		}
	}
	s.villages = append(s.villages, v)
}

// Outbreaks returns all outbreaks in report order.
func (s *MemoryCommunityStore) Outbreaks(ctx context.Context) ([]domain.Outbreak, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Outbreak{}, s.outbreaks...), nil
}

// CreateOutbreak assigns the next id and stores o.
func (s *MemoryCommunityStore) CreateOutbreak(ctx context.Context, o *domain.Outbreak) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o.ID = s.nextID
	s.nextID++
	s.outbreaks = append(s.outbreaks, *o)
	return nil
}

// UpdateOutbreakStatus sets the status and last-updated stamp.
func (s *MemoryCommunityStore) UpdateOutbreakStatus(ctx context.Context, id int64, status, updatedAt string) (*domain.Outbreak, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbreaks {
		if s.outbreaks[i].ID == id {
			s.outbreaks[i].Status = status
			s.outbreaks[i].LastUpdated = updatedAt
			cp := s.outbreaks[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("outbreak %d: %w", id, domain.ErrNotFound)
}

// Trends returns all trends.
func (s *MemoryCommunityStore) Trends(ctx context.Context) ([]domain.Trend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Trend{}, s.trends...), nil
}

// SetTrends replaces the trend table.
func (s *MemoryCommunityStore) SetTrends(trends []domain.Trend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trends = append([]domain.Trend(nil), trends...)
}

func cloneDiagnosis(d *domain.Diagnosis) *domain.Diagnosis {
	cp := *d
	cp.Analysis.Recommendations = append([]string(nil), d.Analysis.Recommendations...)
	cp.Analysis.WarningSigns = append([]string(nil), d.Analysis.WarningSigns...)
	return &cp
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && limit < end-offset {
		end = offset + limit
	}
	return items[offset:end]
}
