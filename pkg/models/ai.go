package models

import "context"

// Compliance verdicts returned by AI analysis.
const (
	ComplianceCompliant    = "compliant"
	ComplianceNonCompliant = "non_compliant"
	ComplianceNeedsReview  = "needs_review"
)

// ComplianceAnalyzer is the core interface all AI integrations must implement.
// Never call specific AI providers directly; always inject this interface.
type ComplianceAnalyzer interface {
	// Analyze assesses one code check against screenshot evidence.
	Analyze(ctx context.Context, req AnalysisRequest) (AnalysisResult, error)
	// Name returns the provider identifier (e.g., "anthropic", "openai").
	Name() string
}

// AnalysisRequest is the input to an AI compliance analysis.
type AnalysisRequest struct {
	Prompt   string
	Evidence []Evidence
	Provider string
}

// Evidence is one screenshot cropped from the drawings, supporting a check.
type Evidence struct {
	ScreenshotID string `json:"screenshot_id"`
	PageNumber   int    `json:"page_number"`
	Caption      string `json:"caption,omitempty"`
	ImageBase64  string `json:"image_base64"`
}

// AnalysisResult is the parsed output of one AI compliance analysis.
type AnalysisResult struct {
	Model                    string   `json:"model"`
	Raw                      string   `json:"raw,omitempty"`
	ComplianceStatus         string   `json:"compliance_status"`
	Confidence               float64  `json:"confidence"`
	Reasoning                string   `json:"reasoning"`
	Violations               []string `json:"violations"`
	CompliantAspects         []string `json:"compliant_aspects"`
	Recommendations          []string `json:"recommendations"`
	AdditionalEvidenceNeeded []string `json:"additional_evidence_needed"`
}
