package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/plancheckhq/plancheck/internal/config"
	"github.com/plancheckhq/plancheck/pkg/models"
)

const anthropicBaseURL = "https://api.anthropic.com"

// AnthropicProvider implements models.ComplianceAnalyzer using the Anthropic
// Messages API with base64 image blocks for screenshot evidence.
type AnthropicProvider struct {
	cfg     config.AnthropicConfig
	baseURL string
	client  *http.Client
}

func NewAnthropicProvider(cfg config.AnthropicConfig) *AnthropicProvider {
	return &AnthropicProvider{
		cfg:     cfg,
		baseURL: anthropicBaseURL,
		client:  &http.Client{},
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

type anthropicContentBlock struct {
	Type   string              `json:"type"`
	Text   string              `json:"text,omitempty"`
	Source *anthropicImgSource `json:"source,omitempty"`
}

type anthropicImgSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Messages  []struct {
		Role    string                  `json:"role"`
		Content []anthropicContentBlock `json:"content"`
	} `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model string `json:"model"`
}

func (p *AnthropicProvider) Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
	content := []anthropicContentBlock{{Type: "text", Text: req.Prompt}}
	for _, ev := range req.Evidence {
		content = append(content, anthropicContentBlock{
			Type: "image",
			Source: &anthropicImgSource{
				Type:      "base64",
				MediaType: "image/png",
				Data:      ev.ImageBase64,
			},
		})
	}

	body := anthropicRequest{Model: p.cfg.Model, MaxTokens: 4096}
	body.Messages = append(body.Messages, struct {
		Role    string                  `json:"role"`
		Content []anthropicContentBlock `json:"content"`
	}{Role: "user", Content: content})

	payload, err := json.Marshal(body)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return models.AnalysisResult{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.AnalysisResult{}, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var decoded anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(decoded.Content) == 0 {
		return models.AnalysisResult{}, fmt.Errorf("%w: empty content", ErrInvalidResponse)
	}

	result, err := ParseAnalysis(decoded.Content[0].Text)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	result.Model = decoded.Model
	return result, nil
}

// classifyTransportError maps HTTP transport failures onto the provider
// error taxonomy so callers can retry appropriately.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}

var _ models.ComplianceAnalyzer = (*AnthropicProvider)(nil)
