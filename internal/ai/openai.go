package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/plancheckhq/plancheck/internal/config"
	"github.com/plancheckhq/plancheck/pkg/models"
)

const openAIBaseURL = "https://api.openai.com"

// OpenAIProvider implements models.ComplianceAnalyzer using the OpenAI chat
// completions API with data-URI image parts for screenshot evidence.
type OpenAIProvider struct {
	cfg     config.OpenAIConfig
	baseURL string
	client  *http.Client
}

func NewOpenAIProvider(cfg config.OpenAIConfig) *OpenAIProvider {
	return &OpenAIProvider{
		cfg:     cfg,
		baseURL: openAIBaseURL,
		client:  &http.Client{},
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string              `json:"role"`
		Content []openAIContentPart `json:"content"`
	} `json:"messages"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *OpenAIProvider) Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
	parts := []openAIContentPart{{Type: "text", Text: req.Prompt}}
	for _, ev := range req.Evidence {
		parts = append(parts, openAIContentPart{
			Type:     "image_url",
			ImageURL: &openAIImageURL{URL: "data:image/png;base64," + ev.ImageBase64},
		})
	}

	body := openAIRequest{Model: p.cfg.Model}
	body.Messages = append(body.Messages, struct {
		Role    string              `json:"role"`
		Content []openAIContentPart `json:"content"`
	}{Role: "user", Content: parts})

	payload, err := json.Marshal(body)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return models.AnalysisResult{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.AnalysisResult{}, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var decoded openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(decoded.Choices) == 0 {
		return models.AnalysisResult{}, fmt.Errorf("%w: no choices", ErrInvalidResponse)
	}

	result, err := ParseAnalysis(decoded.Choices[0].Message.Content)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	result.Model = decoded.Model
	return result, nil
}

var _ models.ComplianceAnalyzer = (*OpenAIProvider)(nil)
