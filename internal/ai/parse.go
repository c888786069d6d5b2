package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/plancheckhq/plancheck/pkg/models"
)

// analysisJSON is the JSON shape providers are prompted to return.
type analysisJSON struct {
	ComplianceStatus         string   `json:"compliance_status"`
	Confidence               float64  `json:"confidence"`
	Reasoning                string   `json:"reasoning"`
	Violations               []string `json:"violations"`
	CompliantAspects         []string `json:"compliant_aspects"`
	Recommendations          []string `json:"recommendations"`
	AdditionalEvidenceNeeded []string `json:"additional_evidence_needed"`
}

var validStatuses = map[string]bool{
	models.ComplianceCompliant:    true,
	models.ComplianceNonCompliant: true,
	models.ComplianceNeedsReview:  true,
}

// ParseAnalysis extracts the structured verdict from raw model output.
// Models often wrap the JSON in prose or code fences, so we parse the
// outermost brace-delimited object. Malformed output is a retryable failure,
// not a silent needs_review.
func ParseAnalysis(raw string) (models.AnalysisResult, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return models.AnalysisResult{}, fmt.Errorf("%w: no JSON object in output", ErrInvalidResponse)
	}

	var parsed analysisJSON
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if !validStatuses[parsed.ComplianceStatus] {
		return models.AnalysisResult{}, fmt.Errorf("%w: unknown compliance_status %q",
			ErrInvalidResponse, parsed.ComplianceStatus)
	}

	if parsed.Confidence < 0 {
		parsed.Confidence = 0
	}
	if parsed.Confidence > 1.0 {
		parsed.Confidence = 1.0
	}

	return models.AnalysisResult{
		Raw:                      raw,
		ComplianceStatus:         parsed.ComplianceStatus,
		Confidence:               parsed.Confidence,
		Reasoning:                parsed.Reasoning,
		Violations:               parsed.Violations,
		CompliantAspects:         parsed.CompliantAspects,
		Recommendations:          parsed.Recommendations,
		AdditionalEvidenceNeeded: parsed.AdditionalEvidenceNeeded,
	}, nil
}
