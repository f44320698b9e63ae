package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 60 * time.Second
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// OpenAI calls the Responses API with strict json_schema output.
type OpenAI struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOpenAI creates a client for model using the public API endpoint.
func NewOpenAI(apiKey, model string) *OpenAI {
	return &OpenAI{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewOpenAIWithBaseURL creates a client pointing at a custom base URL
// (OpenAI-compatible gateways, tests).
func NewOpenAIWithBaseURL(apiKey, model, baseURL string) *OpenAI {
	c := NewOpenAI(apiKey, model)
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// WithTimeout overrides the transport timeout.
func (c *OpenAI) WithTimeout(d time.Duration) *OpenAI {
	if d > 0 {
		c.httpClient.Timeout = d
	}
	return c
}

type responsesRequest struct {
	Model           string    `json:"model"`
	Instructions    string    `json:"instructions,omitempty"`
	Input           []Message `json:"input"`
	Text            *textOpts `json:"text,omitempty"`
	MaxOutputTokens int       `json:"max_output_tokens,omitempty"`
	Temperature     *float64  `json:"temperature,omitempty"`
	Store           bool      `json:"store"`
}

type textOpts struct {
	Format map[string]any `json:"format"`
}

type responsesResponse struct {
	OutputText string `json:"output_text,omitempty"`
	Output     []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type    string `json:"type"`
			Text    string `json:"text,omitempty"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
}

// firstMessageText returns the first non-empty text chunk of the first
// assistant message, so multi-item outputs are never concatenated.
func firstMessageText(resp responsesResponse) (string, error) {
	if t := strings.TrimSpace(resp.OutputText); t != "" {
		return t, nil
	}
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			switch c.Type {
			case "output_text", "text":
				if t := strings.TrimSpace(c.Text); t != "" {
					return t, nil
				}
			case "refusal":
				if c.Refusal != "" {
					return "", fmt.Errorf("model refused: %s", c.Refusal)
				}
			}
		}
	}
	return "", nil
}

// Complete implements Oracle.
func (c *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	rr := responsesRequest{
		Model:           c.model,
		Instructions:    req.Instructions,
		Input:           req.Messages,
		MaxOutputTokens: req.MaxOutputTokens,
		Temperature:     req.Temperature,
	}
	if req.Schema != nil {
		rr.Text = &textOpts{Format: map[string]any{
			"type":   "json_schema",
			"name":   req.Name,
			"strict": true,
			"schema": req.Schema,
		}}
	}

	body, err := json.Marshal(rr)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := range maxRetries {
		text, err := c.doResponses(ctx, body)
		if err == nil {
			return text, nil
		}
		if !isRateLimit(err) {
			return "", err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return "", fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

// rateLimitError is returned on HTTP 429.
type rateLimitError struct {
	status int
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d)", e.status)
}

func isRateLimit(err error) bool {
	var rl *rateLimitError
	return errors.As(err, &rl)
}

func (c *OpenAI) doResponses(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &rateLimitError{status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var out responsesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return firstMessageText(out)
}
