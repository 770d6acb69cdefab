// Package domain contains the core entities of the rural-health diagnostic aid:
// patient context captured by an ASHA worker, the AI (or fallback) analysis of a
// skin condition, and the diagnosis record that combines them.
package domain

import (
	"strings"
	"time"
)

// Severity is the clinical severity bucket of an analysis.
type Severity string

const (
	SeverityMild     Severity = "Mild"
	SeverityModerate Severity = "Moderate"
	SeveritySevere   Severity = "Severe"
)

// RiskLevel is the coarse triage bucket that drives referral decisions.
type RiskLevel string

const (
	RiskGreen  RiskLevel = "GREEN"
	RiskYellow RiskLevel = "YELLOW"
	RiskRed    RiskLevel = "RED"
)

// DiagnosisStatus is the lifecycle state of a diagnosis record.
type DiagnosisStatus string

const (
	StatusPending        DiagnosisStatus = "Pending"
	StatusCompleted      DiagnosisStatus = "Completed"
	StatusReferred       DiagnosisStatus = "Referred"
	StatusUnderTreatment DiagnosisStatus = "Under Treatment"
)

var severityRank = map[Severity]int{
	SeverityMild:     1,
	SeverityModerate: 2,
	SeveritySevere:   3,
}

var riskRank = map[RiskLevel]int{
	RiskGreen:  1,
	RiskYellow: 2,
	RiskRed:    3,
}

// ParseSeverity normalizes a severity label case-insensitively.
func ParseSeverity(s string) (Severity, bool) {
	for sev := range severityRank {
		if strings.EqualFold(strings.TrimSpace(s), string(sev)) {
			return sev, true
		}
	}
	return "", false
}

// ParseRiskLevel normalizes a risk level label case-insensitively.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	candidate := RiskLevel(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := riskRank[candidate]; ok {
		return candidate, true
	}
	return "", false
}

// ParseDiagnosisStatus validates a status label. "UnderTreatment" is accepted as
// an alias of "Under Treatment".
func ParseDiagnosisStatus(s string) (DiagnosisStatus, bool) {
	trimmed := strings.TrimSpace(s)
	switch {
	case strings.EqualFold(trimmed, string(StatusPending)):
		return StatusPending, true
	case strings.EqualFold(trimmed, string(StatusCompleted)):
		return StatusCompleted, true
	case strings.EqualFold(trimmed, string(StatusReferred)):
		return StatusReferred, true
	case strings.EqualFold(trimmed, string(StatusUnderTreatment)), strings.EqualFold(trimmed, "UnderTreatment"):
		return StatusUnderTreatment, true
	}
	return "", false
}

// AtLeast returns the higher of the two severities.
func (s Severity) AtLeast(floor Severity) Severity {
	if severityRank[s] < severityRank[floor] {
		return floor
	}
	return s
}

// AtLeast returns the higher of the two risk levels.
func (r RiskLevel) AtLeast(floor RiskLevel) RiskLevel {
	if riskRank[r] < riskRank[floor] {
		return floor
	}
	return r
}

// PatientContext is the transient patient input to one diagnosis request.
type PatientContext struct {
	Name        string `json:"name"`
	Age         int    `json:"age"`
	Gender      string `json:"gender"`
	Symptoms    string `json:"symptoms"`
	Duration    string `json:"duration"`
	Severity    string `json:"severity,omitempty"`
	Fever       string `json:"fever,omitempty"`
	NearbyCases string `json:"nearbyCases,omitempty"`
}

// Validate checks the required patient fields.
func (p PatientContext) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"name", p.Name},
		{"gender", p.Gender},
		{"symptoms", p.Symptoms},
		{"duration", p.Duration},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return NewValidationError(r.field, "is required", r.value)
		}
	}
	if p.Age <= 0 || p.Age > 150 {
		return NewValidationError("age", "must be between 1 and 150", p.Age)
	}
	return nil
}

// DiagnosisAnalysis is the normalized output of the model or the fallback classifier.
type DiagnosisAnalysis struct {
	PrimaryCondition string    `json:"primaryCondition"`
	Confidence       int       `json:"confidence"`
	Severity         Severity  `json:"severity"`
	RiskLevel        RiskLevel `json:"riskLevel"`
	Treatment        string    `json:"treatment"`
	ReferralNeeded   bool      `json:"referralNeeded"`
	Reasoning        string    `json:"reasoning"`
	Recommendations  []string  `json:"recommendations"`
	FollowUp         string    `json:"followUp"`
	WarningSigns     []string  `json:"warningSigns"`
	Source           string    `json:"source,omitempty"`
}

// Analysis sources recorded on DiagnosisAnalysis.Source.
const (
	SourceModel    = "model"
	SourceFallback = "fallback"
)

// ClampConfidence bounds a confidence value into [0,100].
func ClampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

// Diagnosis is a persisted diagnosis record.
type Diagnosis struct {
	ID          int64             `json:"id"`
	PatientData PatientContext    `json:"patientData"`
	ImageRef    string            `json:"imageUrl"`
	Analysis    DiagnosisAnalysis `json:"aiAnalysis"`
	Status      DiagnosisStatus   `json:"status"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// DiagnosisSummary is the public projection returned after a submission.
type DiagnosisSummary struct {
	ID               int64     `json:"id"`
	PatientName      string    `json:"patientName"`
	PrimaryCondition string    `json:"primaryCondition"`
	Confidence       int       `json:"confidence"`
	Severity         Severity  `json:"severity"`
	RiskLevel        RiskLevel `json:"riskLevel"`
	Treatment        string    `json:"treatment"`
	ReferralNeeded   bool      `json:"referralNeeded"`
	Recommendations  []string  `json:"recommendations"`
	FollowUp         string    `json:"followUp"`
	WarningSigns     []string  `json:"warningSigns"`
	Reasoning        string    `json:"reasoning"`
	ImageURL         string    `json:"imageUrl"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Summary projects the record to its public shape.
func (d *Diagnosis) Summary() DiagnosisSummary {
	return DiagnosisSummary{
		ID:               d.ID,
		PatientName:      d.PatientData.Name,
		PrimaryCondition: d.Analysis.PrimaryCondition,
		Confidence:       d.Analysis.Confidence,
		Severity:         d.Analysis.Severity,
		RiskLevel:        d.Analysis.RiskLevel,
		Treatment:        d.Analysis.Treatment,
		ReferralNeeded:   d.Analysis.ReferralNeeded,
		Recommendations:  d.Analysis.Recommendations,
		FollowUp:         d.Analysis.FollowUp,
		WarningSigns:     d.Analysis.WarningSigns,
		Reasoning:        d.Analysis.Reasoning,
		ImageURL:         d.ImageRef,
		CreatedAt:        d.CreatedAt,
	}
}

// DiagnosisListItem is the projection used by list endpoints.
type DiagnosisListItem struct {
	ID               int64           `json:"id"`
	PatientName      string          `json:"patientName"`
	PrimaryCondition string          `json:"primaryCondition"`
	Severity         Severity        `json:"severity"`
	RiskLevel        RiskLevel       `json:"riskLevel"`
	Status           DiagnosisStatus `json:"status"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// ListItem projects the record for list responses.
func (d *Diagnosis) ListItem() DiagnosisListItem {
	return DiagnosisListItem{
		ID:               d.ID,
		PatientName:      d.PatientData.Name,
		PrimaryCondition: d.Analysis.PrimaryCondition,
		Severity:         d.Analysis.Severity,
		RiskLevel:        d.Analysis.RiskLevel,
		Status:           d.Status,
		CreatedAt:        d.CreatedAt,
	}
}

// FallbackCondition is one entry of the static keyword table.
type FallbackCondition struct {
	ConditionName  string
	BaseConfidence int
	BaseSeverity   Severity
	BaseRiskLevel  RiskLevel
	TreatmentText  string
	Keywords       []string
}
