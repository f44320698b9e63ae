package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Ollama talks to a local Ollama instance. Developer messages are sent as
// system messages; the schema is passed through as the structured format.
type Ollama struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllama creates a client targeting baseURL.
func NewOllama(baseURL, model string, timeout time.Duration) *Ollama {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Ollama{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   any             `json:"format,omitempty"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
}

// Complete implements Oracle.
func (c *Ollama) Complete(ctx context.Context, req Request) (string, error) {
	msgs := make([]ollamaMessage, 0, len(req.Messages)+1)
	if req.Instructions != "" {
		msgs = append(msgs, ollamaMessage{Role: "system", Content: req.Instructions})
	}
	for _, m := range req.Messages {
		role := string(m.Role)
		if m.Role == RoleDeveloper {
			role = "system"
		}
		msgs = append(msgs, ollamaMessage{Role: role, Content: m.Content})
	}

	cr := ollamaChatRequest{Model: c.model, Messages: msgs}
	if req.Schema != nil {
		cr.Format = req.Schema
	}
	opts := map[string]any{}
	if req.MaxOutputTokens > 0 {
		opts["num_predict"] = req.MaxOutputTokens
	}
	if req.Temperature != nil {
		opts["temperature"] = *req.Temperature
	}
	if len(opts) > 0 {
		cr.Options = opts
	}

	body, err := json.Marshal(cr)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat: unexpected status %d", resp.StatusCode)
	}

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	return result.Message.Content, nil
}
