package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Sentinel errors for blob gateway failures.
var (
	ErrGatewayUnreachable = errors.New("blob gateway unreachable")
	ErrGatewayError       = errors.New("blob gateway error")
)

// Store is the interface for blob-storage operations.
type Store interface {
	// PresignUpload returns a time-limited URL the client can PUT image
	// bytes to, for the given object key.
	PresignUpload(ctx context.Context, key string) (string, error)
	// Delete removes the object at key. Deleting a missing object is not
	// an error.
	Delete(ctx context.Context, key string) error
}

// HTTPClient implements Store against the storage gateway's HTTP API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a new blob gateway client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type presignResponse struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
}

func (c *HTTPClient) PresignUpload(ctx context.Context, key string) (string, error) {
	u := fmt.Sprintf("%s/v1/presign?key=%s", c.baseURL, url.QueryEscape(key))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrGatewayError, resp.StatusCode)
	}

	var decoded presignResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decoding presign response: %w", err)
	}
	return decoded.URL, nil
}

func (c *HTTPClient) Delete(ctx context.Context, key string) error {
	u := fmt.Sprintf("%s/v1/objects?key=%s", c.baseURL, url.QueryEscape(key))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: status %d", ErrGatewayError, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

var _ Store = (*HTTPClient)(nil)
