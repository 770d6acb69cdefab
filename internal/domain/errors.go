package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput   = "INVALID_INPUT"
	ErrDatabaseError  = "DATABASE_ERROR"
	ErrExternalAPI    = "EXTERNAL_API_ERROR"
	ErrNotFoundCode   = "NOT_FOUND"
	ErrConflictCode   = "CONFLICT"
	ErrInternalServer = "INTERNAL_SERVER_ERROR"
	ErrValidation     = "VALIDATION_ERROR"
	ErrUpload         = "UPLOAD_ERROR"
)

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a record would duplicate an existing one.
	ErrConflict = errors.New("conflict")
	// ErrInvalidImage is returned for uploads that are not a decodable image or exceed the size limit.
	ErrInvalidImage = errors.New("invalid image")

	// ErrAnalysisUnavailable covers network failures, non-2xx responses and
	// timeouts of the inference service.
	ErrAnalysisUnavailable = errors.New("analysis unavailable")
	// ErrNoStructuredOutput means the model text held no decodable JSON object.
	ErrNoStructuredOutput = errors.New("no structured output in model response")
	// ErrIncompleteAnalysis means required analysis fields were absent or invalid.
	ErrIncompleteAnalysis = errors.New("incomplete analysis")
)

// IncompleteAnalysisError names the required analysis fields that were missing.
type IncompleteAnalysisError struct {
	Missing []string
}

func (e *IncompleteAnalysisError) Error() string {
	return fmt.Sprintf("%s: missing required fields: %s", ErrIncompleteAnalysis, strings.Join(e.Missing, ", "))
}

// Is lets errors.Is match ErrIncompleteAnalysis.
func (e *IncompleteAnalysisError) Is(target error) bool {
	return target == ErrIncompleteAnalysis
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
