// Package ai wraps the external completion and embedding services.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/1weso1/aw-nexus-folio-sub001/internal/metrics"
)

// ErrEmptyResponse is returned when the service answers without content.
var ErrEmptyResponse = errors.New("empty response from AI service")

// ChatConfig configures a ChatClient.
type ChatConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// ChatClient issues single-turn chat completions against an
// OpenAI-compatible /chat/completions endpoint.
type ChatClient struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewChatClient creates a ChatClient. Every request is bounded by
// cfg.Timeout so a hung upstream surfaces as an error.
func NewChatClient(cfg ChatConfig) *ChatClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &ChatClient{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
}

// Model returns the model name sent with every request.
func (c *ChatClient) Model() string {
	return c.model
}

// Complete sends a system and a user message and returns the text of the
// first choice.
func (c *ChatClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
	})
	metrics.AIRequestDuration.WithLabelValues("chat").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
