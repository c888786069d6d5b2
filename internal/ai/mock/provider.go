// Package mock provides a ComplianceAnalyzer for tests and local development.
package mock

import (
	"context"

	"github.com/plancheckhq/plancheck/pkg/models"
)

// MockProvider satisfies models.ComplianceAnalyzer for testing.
type MockProvider struct {
	Name_       string
	AnalyzeFunc func(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, req)
	}
	return models.AnalysisResult{}, nil
}

// NewProvider returns a MockProvider with sensible default responses.
func NewProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		AnalyzeFunc: func(_ context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
			return models.AnalysisResult{
				Model:            "mock-v1",
				ComplianceStatus: models.ComplianceCompliant,
				Confidence:       0.85,
				Reasoning:        "Simulated compliance reasoning from mock provider",
				CompliantAspects: []string{"All requirements satisfied in the provided evidence"},
			}, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		AnalyzeFunc: func(_ context.Context, _ models.AnalysisRequest) (models.AnalysisResult, error) {
			return models.AnalysisResult{}, err
		},
	}
}

// NewBlockingProvider returns a MockProvider that blocks until its context
// is cancelled.
func NewBlockingProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-blocking",
		AnalyzeFunc: func(ctx context.Context, _ models.AnalysisRequest) (models.AnalysisResult, error) {
			<-ctx.Done()
			return models.AnalysisResult{}, ctx.Err()
		},
	}
}

// Compile-time check that MockProvider implements ComplianceAnalyzer.
var _ models.ComplianceAnalyzer = (*MockProvider)(nil)
