// Package openai provides a multistep.LLMProvider backed by the OpenAI Chat
// Completions API, or any OpenAI-compatible endpoint, using
// github.com/sashabaranov/go-openai.
package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/smhanov/multistep"
	"github.com/smhanov/multistep/llm"
)

// ChatClient captures the subset of the go-openai client used by the adapter.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (
		openai.ChatCompletionResponse, error)
}

// Options configures the OpenAI adapter.
type Options struct {
	Client ChatClient
	Model  string
	// Temperature is sent when positive.
	Temperature float32
	// MaxTokens is sent when positive.
	MaxTokens int
}

// Client implements multistep.LLMProvider via Chat Completions.
type Client struct {
	chat   ChatClient
	model  string
	temp   float32
	maxTok int
}

var _ multistep.LLMProvider = (*Client)(nil)

// New builds an OpenAI-backed provider from the provided options.
func New(opts Options) (*Client, error) {
	if opts.Client == nil {
		return nil, errors.New("openai client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("model is required")
	}
	return &Client{chat: opts.Client, model: opts.Model, temp: opts.Temperature, maxTok: opts.MaxTokens}, nil
}

// NewFromAPIKey constructs a provider using the default go-openai HTTP client.
func NewFromAPIKey(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	return New(Options{Client: openai.NewClient(apiKey), Model: model})
}

// NewFromBaseURL targets an OpenAI-compatible server such as vLLM or LM
// Studio. The API key may be empty for servers that do not check it.
func NewFromBaseURL(baseURL, apiKey, model string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base url is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return New(Options{Client: openai.NewClientWithConfig(cfg), Model: model})
}

// Generate sends the system and user prompts as a two-message chat and
// returns the first choice. Reasoning models that return reasoning_content
// have it surfaced as Reasoning.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (multistep.LLMResponse, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userPrompt})

	request := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	}
	if c.temp > 0 {
		request.Temperature = c.temp
	}
	if c.maxTok > 0 {
		request.MaxTokens = c.maxTok
	}
	response, err := c.chat.CreateChatCompletion(ctx, request)
	if err != nil {
		return multistep.LLMResponse{}, translateError(err)
	}
	if len(response.Choices) == 0 {
		return multistep.LLMResponse{}, errors.New("openai: response has no choices")
	}
	msg := response.Choices[0].Message
	return multistep.LLMResponse{Text: msg.Content, Reasoning: msg.ReasoningContent}, nil
}

func translateError(err error) error {
	var status int
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	return fmt.Errorf("openai chat completion: %w", llm.WithStatus(status, err))
}
