// Package ai selects and adapts the AI providers that perform compliance
// analysis. The pipeline only ever sees models.ComplianceAnalyzer.
package ai

import "errors"

var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
)
