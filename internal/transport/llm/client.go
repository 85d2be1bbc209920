// Package llm adapts an OpenAI-compatible chat completion API for the
// answer engine, with token-level streaming.
package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/lattica-ai/ragline/internal/domain"
)

// Config holds the chat model settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Client streams chat completions from the configured model.
type Client struct {
	model llms.Model
}

// New creates a chat completion client.
func New(cfg *Config) (*Client, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return &Client{model: model}, nil
}

// Stream generates a completion for the system prompt plus message history,
// invoking onDelta for every token batch. Returns the full response text.
func (c *Client) Stream(
	ctx context.Context,
	system string,
	history []domain.Message,
	temperature float64,
	maxTokens int,
	onDelta func(ctx context.Context, chunk []byte) error,
) (string, error) {
	content := make([]llms.MessageContent, 0, len(history)+1)
	if system != "" {
		content = append(content, llms.TextParts(schema.ChatMessageTypeSystem, system))
	}
	for _, msg := range history {
		role := schema.ChatMessageTypeHuman
		if msg.Role == domain.RoleAssistant {
			role = schema.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, msg.Content))
	}

	resp, err := c.model.GenerateContent(ctx, content,
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(maxTokens),
		llms.WithStreamingFunc(onDelta),
	)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Content, nil
}
