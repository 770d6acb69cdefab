package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseRiskLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected RiskLevel
		ok       bool
	}{
		{"GREEN", RiskGreen, true},
		{"yellow", RiskYellow, true},
		{" Red ", RiskRed, true},
		{"ORANGE", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseRiskLevel(tt.input)
			if ok != tt.ok || got != tt.expected {
				t.Errorf("ParseRiskLevel(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		input    string
		expected Severity
		ok       bool
	}{
		{"Mild", SeverityMild, true},
		{"moderate", SeverityModerate, true},
		{"SEVERE", SeveritySevere, true},
		{"Critical", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseSeverity(tt.input)
			if ok != tt.ok || got != tt.expected {
				t.Errorf("ParseSeverity(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestParseDiagnosisStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected DiagnosisStatus
		ok       bool
	}{
		{"Pending", StatusPending, true},
		{"completed", StatusCompleted, true},
		{"Referred", StatusReferred, true},
		{"Under Treatment", StatusUnderTreatment, true},
		{"UnderTreatment", StatusUnderTreatment, true},
		{"Discharged", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseDiagnosisStatus(tt.input)
			if ok != tt.ok || got != tt.expected {
				t.Errorf("ParseDiagnosisStatus(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestEscalationNeverLowers(t *testing.T) {
	if got := SeverityMild.AtLeast(SeverityModerate); got != SeverityModerate {
		t.Errorf("Expected Moderate, got %s", got)
	}
	if got := SeveritySevere.AtLeast(SeverityModerate); got != SeveritySevere {
		t.Errorf("Expected Severe, got %s", got)
	}
	if got := RiskGreen.AtLeast(RiskYellow); got != RiskYellow {
		t.Errorf("Expected YELLOW, got %s", got)
	}
	if got := RiskRed.AtLeast(RiskYellow); got != RiskRed {
		t.Errorf("Expected RED, got %s", got)
	}
}

func TestClampConfidence(t *testing.T) {
	for input, expected := range map[int]int{-20: 0, 0: 0, 55: 55, 100: 100, 250: 100} {
		if got := ClampConfidence(input); got != expected {
			t.Errorf("ClampConfidence(%d) = %d, want %d", input, got, expected)
		}
	}
}

func TestPatientContextValidate(t *testing.T) {
	valid := PatientContext{Name: "Asha", Age: 30, Gender: "Female", Symptoms: "itchy rash", Duration: "1 week"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Expected valid context, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(p *PatientContext)
		field  string
	}{
		{"missing name", func(p *PatientContext) { p.Name = " " }, "name"},
		{"missing gender", func(p *PatientContext) { p.Gender = "" }, "gender"},
		{"missing symptoms", func(p *PatientContext) { p.Symptoms = "" }, "symptoms"},
		{"missing duration", func(p *PatientContext) { p.Duration = "" }, "duration"},
		{"zero age", func(p *PatientContext) { p.Age = 0 }, "age"},
		{"absurd age", func(p *PatientContext) { p.Age = 400 }, "age"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, vErr.Field)
			}
		})
	}
}

func TestDiagnosisProjections(t *testing.T) {
	created := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	d := &Diagnosis{
		ID:          7,
		PatientData: PatientContext{Name: "Rajesh Kumar"},
		ImageRef:    "/uploads/a.jpg",
		Analysis: DiagnosisAnalysis{
			PrimaryCondition: "Scabies",
			Confidence:       85,
			Severity:         SeverityModerate,
			RiskLevel:        RiskYellow,
			Treatment:        "Permethrin",
		},
		Status:    StatusCompleted,
		CreatedAt: created,
	}

	summary := d.Summary()
	if summary.PatientName != "Rajesh Kumar" || summary.ImageURL != "/uploads/a.jpg" || summary.Confidence != 85 {
		t.Errorf("Unexpected summary: %+v", summary)
	}

	item := d.ListItem()
	if item.Status != StatusCompleted || item.PrimaryCondition != "Scabies" || !item.CreatedAt.Equal(created) {
		t.Errorf("Unexpected list item: %+v", item)
	}
}
