package domain

import (
	"context"
	"io"
)

// ImageAnalyzer sends an image and patient context to the external model and
// returns its raw text output.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, image []byte, mimeType string, patient PatientContext) (string, error)
}

// DiagnosisRepository persists diagnosis records. Insert assigns the next id
// from a monotonic sequence owned by the backend.
type DiagnosisRepository interface {
	Insert(ctx context.Context, d *Diagnosis) error
	FindByID(ctx context.Context, id int64) (*Diagnosis, error)
	List(ctx context.Context, limit, offset int) ([]*Diagnosis, int, error)
	FindByPatientName(ctx context.Context, name string) ([]*Diagnosis, error)
	UpdateStatus(ctx context.Context, id int64, status DiagnosisStatus) (*Diagnosis, error)
	Ping(ctx context.Context) error
}

// PatientRepository persists registered patients.
type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	FindByID(ctx context.Context, id int64) (*Patient, error)
	FindByNameAndVillage(ctx context.Context, name, village string) (*Patient, error)
	List(ctx context.Context, filter PatientFilter) ([]*Patient, int, error)
	All(ctx context.Context) ([]*Patient, error)
	Update(ctx context.Context, p *Patient) error
}

// ReportRepository persists report rows.
type ReportRepository interface {
	Create(ctx context.Context, r *Report) error
	FindByID(ctx context.Context, id int64) (*Report, error)
	List(ctx context.Context, filter ReportFilter) ([]*Report, int, error)
	All(ctx context.Context) ([]*Report, error)
}

// CommunityRepository holds village, outbreak and trend data.
type CommunityRepository interface {
	Villages(ctx context.Context) ([]Village, error)
	Village(ctx context.Context, name string) (*Village, error)
	Outbreaks(ctx context.Context) ([]Outbreak, error)
	CreateOutbreak(ctx context.Context, o *Outbreak) error
	UpdateOutbreakStatus(ctx context.Context, id int64, status, updatedAt string) (*Outbreak, error)
	Trends(ctx context.Context) ([]Trend, error)
}

// ProcessedImage is an upload after validation and re-encoding.
type ProcessedImage struct {
	Name        string
	ContentType string
	Data        []byte
	Width       int
	Height      int
}

// ImageProcessor validates, downsizes and re-encodes an uploaded image.
type ImageProcessor interface {
	Process(data []byte) (*ProcessedImage, error)
}

// ImageStore saves processed images and returns the public reference.
type ImageStore interface {
	Save(ctx context.Context, name string, contentType string, body io.Reader) (string, error)
	// Delete removes a saved image by name. Deleting a missing image is not an error.
	Delete(ctx context.Context, name string) error
}

// EventPublisher publishes domain events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
	Close() error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetInferenceConfig() *InferenceConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	IsProduction() bool
	IsDevelopment() bool
}
