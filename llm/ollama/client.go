// Package ollama provides a multistep.LLMProvider for a local Ollama server
// using its /api/generate endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smhanov/multistep"
	"github.com/smhanov/multistep/llm"
)

// DefaultEndpoint is where Ollama listens by default.
const DefaultEndpoint = "localhost:11434"

// Client implements multistep.LLMProvider using the Ollama API.
type Client struct {
	endpoint string
	model    string
	think    bool
	client   *http.Client
}

var _ multistep.LLMProvider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Client) {
		if c != nil {
			o.client = c
		}
	}
}

// WithThinking asks thinking-capable models to return their reasoning
// separately; it is surfaced as LLMResponse.Reasoning.
func WithThinking(enabled bool) Option {
	return func(o *Client) { o.think = enabled }
}

// New builds a client for model served at endpoint (host:port or URL).
func New(endpoint, model string, opts ...Option) (*Client, error) {
	if model == "" {
		return nil, errors.New("model is required")
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "http://" + endpoint
	}
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		client:   &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
	Think  bool   `json:"think,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Thinking string `json:"thinking"`
	Done     bool   `json:"done"`
}

// Generate runs a single non-streaming completion.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (multistep.LLMResponse, error) {
	payload, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: userPrompt,
		System: systemPrompt,
		Think:  c.think,
	})
	if err != nil {
		return multistep.LLMResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return multistep.LLMResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return multistep.LLMResponse{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("ollama API error: %s - %s", resp.Status, strings.TrimSpace(string(body)))
		return multistep.LLMResponse{}, llm.WithStatus(resp.StatusCode, err)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return multistep.LLMResponse{}, fmt.Errorf("failed to parse response: %w", err)
	}
	return multistep.LLMResponse{
		Text:      strings.TrimSpace(out.Response),
		Reasoning: strings.TrimSpace(out.Thinking),
	}, nil
}
