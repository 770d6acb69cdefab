package service

import (
	"fmt"
	"strings"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
)

// FallbackConditions is the keyword table, in tie-break order.
var FallbackConditions = []domain.FallbackCondition{
	{
		ConditionName:  "Fungal Infection (Dermatophytosis)",
		BaseConfidence: 75,
		BaseSeverity:   domain.SeverityModerate,
		BaseRiskLevel:  domain.RiskYellow,
		TreatmentText:  "Apply antifungal cream (Clotrimazole) twice daily for 2-3 weeks",
		Keywords:       []string{"itchy", "ring", "circular", "scaling", "red"},
	},
	{
		ConditionName:  "Contact Dermatitis",
		BaseConfidence: 70,
		BaseSeverity:   domain.SeverityMild,
		BaseRiskLevel:  domain.RiskGreen,
		TreatmentText:  "Avoid irritants, apply moisturizer, use mild soap",
		Keywords:       []string{"rash", "irritation", "contact", "soap", "detergent"},
	},
	{
		ConditionName:  "Bacterial Skin Infection",
		BaseConfidence: 80,
		BaseSeverity:   domain.SeverityModerate,
		BaseRiskLevel:  domain.RiskYellow,
		TreatmentText:  "Clean with antiseptic, apply antibiotic ointment",
		Keywords:       []string{"pus", "wound", "cut", "swollen", "warm", "fever"},
	},
	{
		ConditionName:  "Scabies",
		BaseConfidence: 85,
		BaseSeverity:   domain.SeverityModerate,
		BaseRiskLevel:  domain.RiskYellow,
		TreatmentText:  "Apply permethrin cream, wash all clothing and bedding",
		Keywords:       []string{"itchy", "night", "burrow", "family", "spread"},
	},
}

var fallbackRecommendations = []string{
	"Keep the affected area clean and dry",
	"Follow prescribed treatment regimen",
	"Monitor for improvement over 3-5 days",
	"Return if condition worsens or spreads",
}

var fallbackWarningSigns = []string{
	"Spreading rash or infection",
	"Development of fever",
	"Increased pain or swelling",
	"No improvement after 5 days of treatment",
}

// Classify produces a deterministic analysis from symptom keywords. It is used
// whenever the model is unavailable or its output cannot be used.
func Classify(patient domain.PatientContext) domain.DiagnosisAnalysis {
	symptoms := strings.ToLower(patient.Symptoms)

	best := FallbackConditions[0]
	bestScore := 0
	var matched []string
	for _, condition := range FallbackConditions {
		score := 0
		var hits []string
		for _, kw := range condition.Keywords {
			if strings.Contains(symptoms, kw) {
				score++
				hits = append(hits, kw)
			}
		}
		if score > bestScore {
			best, bestScore, matched = condition, score, hits
		}
	}

	severity := best.BaseSeverity
	risk := best.BaseRiskLevel
	var escalations []string

	fever := strings.ToLower(strings.TrimSpace(patient.Fever))
	if fever != "" && fever != "none" {
		severity = severity.AtLeast(domain.SeverityModerate)
		risk = risk.AtLeast(domain.RiskYellow)
		escalations = append(escalations, "fever reported")
	}
	if strings.Contains(strings.ToLower(patient.Duration), "month") {
		severity = severity.AtLeast(domain.SeverityModerate)
		risk = risk.AtLeast(domain.RiskYellow)
		escalations = append(escalations, "symptoms lasting months")
	}

	followUp := "Review in 3-5 days"
	if risk == domain.RiskRed {
		followUp = "Refer to PHC immediately"
	}

	return domain.DiagnosisAnalysis{
		PrimaryCondition: best.ConditionName,
		Confidence:       best.BaseConfidence,
		Severity:         severity,
		RiskLevel:        risk,
		Treatment:        best.TreatmentText,
		ReferralNeeded:   risk == domain.RiskRed,
		Reasoning:        fallbackReasoning(matched, escalations),
		Recommendations:  append([]string(nil), fallbackRecommendations...),
		FollowUp:         followUp,
		WarningSigns:     append([]string(nil), fallbackWarningSigns...),
		Source:           domain.SourceFallback,
	}
}

func fallbackReasoning(matched, escalations []string) string {
	var b strings.Builder
	b.WriteString("Analysis based on symptom patterns and clinical guidelines (AI service temporarily unavailable)")
	if len(matched) > 0 {
		fmt.Fprintf(&b, ". Matched symptom keywords: %s", strings.Join(matched, ", "))
	} else {
		b.WriteString(". No symptom keywords matched; defaulting to the most common condition")
	}
	if len(escalations) > 0 {
		fmt.Fprintf(&b, ". Risk raised because of %s", strings.Join(escalations, " and "))
	}
	return b.String()
}
