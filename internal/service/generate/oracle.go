package generate

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"queryguard/internal/config"
)

// Oracle is one raw call to the external text-generation backend. It must be
// side-effect free so callers can retry safely.
type Oracle interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// OpenAIOracle is an Oracle backed by an OpenAI-compatible chat endpoint.
type OpenAIOracle struct {
	logger      *slog.Logger
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIOracle creates an OpenAIOracle from the LLM configuration.
func NewOpenAIOracle(logger *slog.Logger, cfg config.LLMConfig) (*OpenAIOracle, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("LLM API key is not configured")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIOracle{
		logger:      logger.With("component", "openai_oracle"),
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Complete sends one chat completion request and returns the raw text.
func (o *OpenAIOracle) Complete(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		o.logger.Error("chat completion failed", "error", err)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	o.logger.Debug("chat completion ok", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}
