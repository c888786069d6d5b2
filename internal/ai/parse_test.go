package ai

import (
	"testing"

	"github.com/plancheckhq/plancheck/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnalysis_PlainJSON(t *testing.T) {
	raw := `{
		"compliance_status": "compliant",
		"confidence": 0.92,
		"reasoning": "Door width exceeds the 32 inch minimum.",
		"compliant_aspects": ["clear width", "threshold height"]
	}`

	result, err := ParseAnalysis(raw)
	require.NoError(t, err)
	assert.Equal(t, models.ComplianceCompliant, result.ComplianceStatus)
	assert.Equal(t, 0.92, result.Confidence)
	assert.Equal(t, raw, result.Raw)
	assert.Len(t, result.CompliantAspects, 2)
}

func TestParseAnalysis_JSONWrappedInProse(t *testing.T) {
	raw := "Here is my analysis:\n```json\n" +
		`{"compliance_status": "non_compliant", "confidence": 0.8, "violations": ["corridor too narrow"]}` +
		"\n```\nLet me know if you need more detail."

	result, err := ParseAnalysis(raw)
	require.NoError(t, err)
	assert.Equal(t, models.ComplianceNonCompliant, result.ComplianceStatus)
	assert.Equal(t, []string{"corridor too narrow"}, result.Violations)
}

func TestParseAnalysis_ConfidenceClamped(t *testing.T) {
	result, err := ParseAnalysis(`{"compliance_status": "needs_review", "confidence": 1.7}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Confidence)

	result, err = ParseAnalysis(`{"compliance_status": "needs_review", "confidence": -0.3}`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Confidence)
}

func TestParseAnalysis_NoJSONObject(t *testing.T) {
	_, err := ParseAnalysis("I could not determine compliance.")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestParseAnalysis_MalformedJSON(t *testing.T) {
	_, err := ParseAnalysis(`{"compliance_status": "compliant", "confidence": }`)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestParseAnalysis_UnknownStatus(t *testing.T) {
	_, err := ParseAnalysis(`{"compliance_status": "probably_fine", "confidence": 0.9}`)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}
