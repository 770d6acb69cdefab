package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
)

const (
	defaultReasoning = "AI analysis completed"
	defaultFollowUp  = "Follow up as needed"
)

var requiredAnalysisFields = []string{"primaryCondition", "confidence", "severity", "riskLevel", "treatment"}

// ParseAnalysis extracts the first JSON object from free-form model text and
// normalizes it into a DiagnosisAnalysis. It never returns a partial analysis
// alongside an error.
func ParseAnalysis(raw string) (*domain.DiagnosisAnalysis, error) {
	object, ok := extractFirstObject(raw)
	if !ok {
		return nil, domain.ErrNoStructuredOutput
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(object)))
	dec.UseNumber()
	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoStructuredOutput, err)
	}

	analysis := &domain.DiagnosisAnalysis{Source: domain.SourceModel}
	var missing []string

	for _, name := range requiredAnalysisFields {
		value := fields[name]
		valid := false
		switch name {
		case "primaryCondition":
			analysis.PrimaryCondition, valid = nonEmptyString(value)
		case "confidence":
			var c int
			c, valid = parseConfidence(value)
			analysis.Confidence = domain.ClampConfidence(c)
		case "severity":
			if s, ok := nonEmptyString(value); ok {
				analysis.Severity, valid = domain.ParseSeverity(s)
			}
		case "riskLevel":
			if s, ok := nonEmptyString(value); ok {
				analysis.RiskLevel, valid = domain.ParseRiskLevel(s)
			}
		case "treatment":
			analysis.Treatment, valid = nonEmptyString(value)
		}
		if !valid {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return nil, &domain.IncompleteAnalysisError{Missing: missing}
	}

	analysis.ReferralNeeded = truthy(fields["referralNeeded"]) || analysis.RiskLevel == domain.RiskRed

	if s, ok := nonEmptyString(fields["reasoning"]); ok {
		analysis.Reasoning = s
	} else {
		analysis.Reasoning = defaultReasoning
	}
	if s, ok := nonEmptyString(fields["followUp"]); ok {
		analysis.FollowUp = s
	} else {
		analysis.FollowUp = defaultFollowUp
	}
	analysis.Recommendations = stringList(fields["recommendations"])
	analysis.WarningSigns = stringList(fields["warningSigns"])

	return analysis, nil
}

// extractFirstObject returns the first balanced {...} span of s. Braces inside
// JSON string literals are ignored.
func extractFirstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func nonEmptyString(v interface{}) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func parseConfidence(v interface{}) (int, bool) {
	var f float64
	switch val := v.(type) {
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(val), "%"), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	// Clamp before converting so huge values cannot overflow int.
	f = math.Max(-1, math.Min(101, f))
	return int(math.Round(f)), true
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		return err == nil && b
	}
	return false
}

func stringList(v interface{}) []string {
	out := []string{}
	switch val := v.(type) {
	case []interface{}:
		for _, item := range val {
			if s, ok := nonEmptyString(item); ok {
				out = append(out, s)
			}
		}
	case string:
		if s, ok := nonEmptyString(val); ok {
			out = append(out, s)
		}
	}
	return out
}
