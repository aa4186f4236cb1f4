package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyCompletion is returned when the service answers without any choice
var ErrEmptyCompletion = errors.New("no completion choices")

// Completer turns a system and user prompt into a free-text reply
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config holds chat-completion settings
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// OpenAIClient implements Completer against the OpenAI chat completions API
type OpenAIClient struct {
	api    *openai.Client
	config Config
}

// NewOpenAIClient creates a completion client
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		apiCfg.BaseURL = base
	}

	return &OpenAIClient{
		api:    openai.NewClientWithConfig(apiCfg),
		config: cfg,
	}, nil
}

// Model returns the configured model name
func (c *OpenAIClient) Model() string { return c.config.Model }

// Complete sends one chat completion request and returns the first choice's content
func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}

	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); !ok {
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ErrNotConfigured is returned by Unconfigured
var ErrNotConfigured = errors.New("completion service not configured")

// Unconfigured is a Completer used when no API key is set; every call fails
type Unconfigured struct{}

func (Unconfigured) Complete(ctx context.Context, system, user string) (string, error) {
	return "", ErrNotConfigured
}
