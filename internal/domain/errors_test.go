package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Validation error",
			code:      ErrValidation,
			message:   "Missing required fields",
			details:   "name is required",
			requestID: "req-123",
		},
		{
			name:      "Database error",
			code:      ErrDatabaseError,
			message:   "Database connection failed",
			details:   "Unable to connect to PostgreSQL",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAPIError(tt.code, tt.message, tt.details, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}

			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}

			if err.Details != tt.details {
				t.Errorf("Expected details %s, got %s", tt.details, err.Details)
			}

			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}

			// Check that timestamp is recent (within last minute)
			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		message string
		value   interface{}
	}{
		{
			name:    "String validation error",
			field:   "symptoms",
			message: "is required",
			value:   "",
		},
		{
			name:    "Integer validation error",
			field:   "age",
			message: "must be between 1 and 150",
			value:   -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message, tt.value)

			if err.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, err.Field)
			}

			if err.Value != tt.value {
				t.Errorf("Expected value %v, got %v", tt.value, err.Value)
			}

			expectedError := "validation error for field '" + tt.field + "': " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestIncompleteAnalysisError(t *testing.T) {
	err := &IncompleteAnalysisError{Missing: []string{"severity", "treatment"}}

	if !errors.Is(err, ErrIncompleteAnalysis) {
		t.Fatal("Expected IncompleteAnalysisError to match ErrIncompleteAnalysis")
	}

	wrapped := fmt.Errorf("parse: %w", err)
	var target *IncompleteAnalysisError
	if !errors.As(wrapped, &target) {
		t.Fatal("Expected errors.As to unwrap IncompleteAnalysisError")
	}
	if len(target.Missing) != 2 || target.Missing[1] != "treatment" {
		t.Errorf("Unexpected missing fields: %v", target.Missing)
	}

	expected := "incomplete analysis: missing required fields: severity, treatment"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}

func TestErrorConstants(t *testing.T) {
	constants := map[string]string{
		"ErrInvalidInput":   ErrInvalidInput,
		"ErrDatabaseError":  ErrDatabaseError,
		"ErrExternalAPI":    ErrExternalAPI,
		"ErrNotFoundCode":   ErrNotFoundCode,
		"ErrConflictCode":   ErrConflictCode,
		"ErrInternalServer": ErrInternalServer,
		"ErrValidation":     ErrValidation,
		"ErrUpload":         ErrUpload,
	}

	expectedValues := map[string]string{
		"ErrInvalidInput":   "INVALID_INPUT",
		"ErrDatabaseError":  "DATABASE_ERROR",
		"ErrExternalAPI":    "EXTERNAL_API_ERROR",
		"ErrNotFoundCode":   "NOT_FOUND",
		"ErrConflictCode":   "CONFLICT",
		"ErrInternalServer": "INTERNAL_SERVER_ERROR",
		"ErrValidation":     "VALIDATION_ERROR",
		"ErrUpload":         "UPLOAD_ERROR",
	}

	for name, actual := range constants {
		expected := expectedValues[name]
		if actual != expected {
			t.Errorf("Expected %s to be %s, got %s", name, expected, actual)
		}
	}
}
