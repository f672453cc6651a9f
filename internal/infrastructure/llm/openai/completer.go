package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
	"github.com/kirillkom/jeonse-legal-assistant/internal/infrastructure/resilience"
)

const (
	systemPrompt = "당신은 법률 전문가 AI입니다."

	// A rewrite is cached for the process lifetime.
	rewriteTemperature = 0.1
	rewriteMaxTokens   = 200
)

// Config holds the chat-completion settings.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Executor *resilience.Executor
}

// Completer answers single-turn prompts through an OpenAI-compatible
// chat completion endpoint.
type Completer struct {
	client   *openai.Client
	model    string
	executor *resilience.Executor
}

func NewCompleter(cfg Config) *Completer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}
	return &Completer{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    model,
		executor: cfg.Executor,
	}
}

func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: rewriteTemperature,
		MaxTokens:   rewriteMaxTokens,
	}

	resp, err := resilience.Call(ctx, c.executor, "openai.chat", func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		return c.client.CreateChatCompletion(ctx, req)
	}, classifyOpenAIError)
	if err != nil {
		return "", wrapAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat: empty choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func statusOf(err error) (int, bool) {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, true
	}
	return 0, false
}

func classifyOpenAIError(err error) resilience.ErrorClassification {
	return resilience.ClassifyTransport(err, statusOf)
}

func wrapAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		err = fmt.Errorf("openai chat error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, err)
	} else {
		err = fmt.Errorf("openai chat: %w", err)
	}
	if classifyOpenAIError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "openai chat", err)
	}
	return err
}
