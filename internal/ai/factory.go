package ai

import (
	"fmt"

	"github.com/plancheckhq/plancheck/internal/ai/mock"
	"github.com/plancheckhq/plancheck/internal/config"
	"github.com/plancheckhq/plancheck/pkg/models"
)

// NewAnalyzer constructs the appropriate AI provider based on config.
// Called once at server startup.
func NewAnalyzer(cfg config.AIConfig) (models.ComplianceAnalyzer, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicProvider(cfg.Anthropic), nil
	case "openai":
		return NewOpenAIProvider(cfg.OpenAI), nil
	case "mock":
		return mock.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of anthropic, openai, mock", cfg.Provider)
	}
}
