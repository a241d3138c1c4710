package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient is the production Client: a thin JSON-over-HTTP adapter to
// whatever OpenAI-compatible completion endpoint BaseURL points at. It
// carries no provider-specific SDK because spec.md §1 scopes the concrete
// transport out of the core — only the request/response shape a generic
// completion endpoint accepts is assumed here.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewHTTPClient builds an HTTPClient. httpClient may be nil, in which case
// a client with a generous default timeout is used (the orchestrator's own
// per-call timeout, not this one, is what actually bounds a completion).
func NewHTTPClient(baseURL, apiKey, model string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPClient{baseURL: baseURL, apiKey: apiKey, model: model, httpClient: httpClient}
}

type completionRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

type completionResponse struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Complete posts prompt to the configured endpoint and maps the response
// into an Output. Network and non-2xx errors wrap ErrTransport; network
// errors also keep their cause in the chain, so the agentrunner package's
// retry classification (TIMEOUT vs LLM_TRANSPORT) can detect a context
// deadline with errors.Is.
func (c *HTTPClient) Complete(ctx context.Context, prompt string, opts Options) (Output, error) {
	if opts.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	reqBody, err := json.Marshal(completionRequest{
		Model:     c.model,
		Prompt:    prompt,
		MaxTokens: opts.MaxTokens,
	})
	if err != nil {
		return Output{}, fmt.Errorf("llmclient: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/completions", bytes.NewReader(reqBody))
	if err != nil {
		return Output{}, fmt.Errorf("llmclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Output{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Output{}, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		return Output{}, fmt.Errorf("%w: status %d: %s", ErrTransport, resp.StatusCode, string(body))
	}

	var parsed completionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Output{}, fmt.Errorf("%w: decode response: %v", ErrTransport, err)
	}

	return Output{Text: parsed.Text, SelfConfidence: parsed.Confidence}, nil
}
