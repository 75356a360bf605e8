// Package anthropic provides a multistep.LLMProvider backed by the Anthropic
// Claude Messages API using github.com/anthropics/anthropic-sdk-go. Text
// blocks become the response text; thinking blocks become Reasoning.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/smhanov/multistep"
	"github.com/smhanov/multistep/llm"
)

const defaultMaxTokens = 1024

type (
	// MessagesClient captures the subset of the Anthropic SDK client used by the
	// adapter. It is satisfied by *sdk.MessageService.
	MessagesClient interface {
		New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	}

	// Options configures the Anthropic adapter.
	Options struct {
		// Model is the Claude model identifier.
		Model string
		// MaxTokens caps each completion. Defaults to 1024.
		MaxTokens int
		// Temperature is sent when positive.
		Temperature float64
		// ThinkingBudget enables extended thinking when positive. It must be at
		// least 1024 and below MaxTokens.
		ThinkingBudget int64
	}

	// Client implements multistep.LLMProvider on top of Claude Messages.
	Client struct {
		msg    MessagesClient
		model  string
		maxTok int
		temp   float64
		think  int64
	}
)

var _ multistep.LLMProvider = (*Client)(nil)

// New builds an Anthropic-backed provider from the Messages client and options.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("model identifier is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if opts.ThinkingBudget > 0 {
		if opts.ThinkingBudget < 1024 {
			return nil, fmt.Errorf("anthropic: thinking budget %d must be >= 1024", opts.ThinkingBudget)
		}
		if opts.ThinkingBudget >= int64(maxTokens) {
			return nil, fmt.Errorf("anthropic: thinking budget %d must be less than max_tokens %d", opts.ThinkingBudget, maxTokens)
		}
	}
	return &Client{msg: msg, model: opts.Model, maxTok: maxTokens, temp: opts.Temperature, think: opts.ThinkingBudget}, nil
}

// NewFromAPIKey constructs a provider using the default Anthropic HTTP client.
func NewFromAPIKey(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, Options{Model: model})
}

// Generate sends one user turn with the system prompt and joins the text
// blocks of the reply.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (multistep.LLMResponse, error) {
	params := sdk.MessageNewParams{
		MaxTokens: int64(c.maxTok),
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(userPrompt))},
		Model:     sdk.Model(c.model),
	}
	if systemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: systemPrompt}}
	}
	if c.temp > 0 {
		params.Temperature = sdk.Float(c.temp)
	}
	if c.think > 0 {
		params.Thinking = sdk.ThinkingConfigParamOfEnabled(c.think)
	}

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return multistep.LLMResponse{}, translateError(err)
	}
	if msg == nil {
		return multistep.LLMResponse{}, errors.New("anthropic: response message is nil")
	}
	var text, reasoning []string
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				text = append(text, block.Text)
			}
		case "thinking":
			if block.Thinking != "" {
				reasoning = append(reasoning, block.Thinking)
			}
		}
	}
	return multistep.LLMResponse{
		Text:      strings.Join(text, "\n"),
		Reasoning: strings.Join(reasoning, "\n"),
	}, nil
}

func translateError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		err = llm.WithStatus(apiErr.StatusCode, err)
	}
	return fmt.Errorf("anthropic messages: %w", err)
}
