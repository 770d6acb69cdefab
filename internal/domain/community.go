package domain

import "time"

// Patient is a registered patient of the ASHA worker's catchment area.
type Patient struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Gender    string    `json:"gender"`
	Village   string    `json:"village"`
	Phone     *string   `json:"phone"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PatientFilter narrows patient listings.
type PatientFilter struct {
	Search  string
	Village string
	Limit   int
	Offset  int
}

// PatientStats summarizes the registered patients.
type PatientStats struct {
	Total         int            `json:"total"`
	ByGender      map[string]int `json:"byGender"`
	ByVillage     map[string]int `json:"byVillage"`
	RecentlyAdded int            `json:"recentlyAdded"`
}

// PatientHistoryEntry is one past case of a patient.
type PatientHistoryEntry struct {
	ID        int64           `json:"id"`
	Condition string          `json:"condition"`
	Date      string          `json:"date"`
	Status    DiagnosisStatus `json:"status"`
	Severity  Severity        `json:"severity"`
}

// Report types.
const (
	ReportTypeDiagnostic = "Diagnostic Report"
	ReportTypeReferral   = "Referral Report"
)

// Report is a diagnostic or referral report row.
type Report struct {
	ID          int64    `json:"id"`
	DiagnosisID int64    `json:"diagnosisId,omitempty"`
	PatientName string   `json:"patientName"`
	Condition   string   `json:"condition"`
	Date        string   `json:"date"`
	Status      string   `json:"status"`
	Type        string   `json:"type"`
	Confidence  int      `json:"confidence"`
	Severity    Severity `json:"severity"`
}

// ReportFilter narrows report listings.
type ReportFilter struct {
	Status string
	Type   string
	Limit  int
	Offset int
}

// Village is community-level case data for one village.
type Village struct {
	Name            string `json:"name"`
	Population      int    `json:"population"`
	ActiveCases     int    `json:"activeCases"`
	RecoveredCases  int    `json:"recoveredCases"`
	CommonCondition string `json:"commonCondition"`
	RiskLevel       string `json:"riskLevel"`
	LastUpdated     string `json:"lastUpdated"`
}

// Outbreak statuses.
const (
	OutbreakActive     = "Active"
	OutbreakMonitoring = "Monitoring"
	OutbreakResolved   = "Resolved"
	OutbreakEscalated  = "Escalated"
)

// ValidOutbreakStatus reports whether s is a known outbreak status.
func ValidOutbreakStatus(s string) bool {
	switch s {
	case OutbreakActive, OutbreakMonitoring, OutbreakResolved, OutbreakEscalated:
		return true
	}
	return false
}

// Outbreak is a reported cluster of cases in a village.
type Outbreak struct {
	ID             int64  `json:"id"`
	Condition      string `json:"condition"`
	Village        string `json:"village"`
	Cases          int    `json:"cases"`
	Severity       string `json:"severity"`
	Recommendation string `json:"recommendation"`
	ReportedDate   string `json:"reportedDate"`
	Status         string `json:"status"`
	LastUpdated    string `json:"lastUpdated,omitempty"`
}

// Trend is a week-over-week condition trend.
type Trend struct {
	Condition     string `json:"condition"`
	Trend         string `json:"trend"`
	Change        string `json:"change"`
	Period        string `json:"period"`
	CurrentCases  int    `json:"currentCases"`
	PreviousCases int    `json:"previousCases"`
}
