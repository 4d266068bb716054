// Package lmstudio talks to an OpenAI-compatible chat completion endpoint,
// such as the local server LM Studio exposes.
package lmstudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"sageagent"
)

var ErrNoChoices = errors.New("completion returned no choices")

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type ClientOpts struct {
	BaseURL    string
	APIKey     string
	ModelID    string
	HTTPClient sageagent.HTTPClient
}

type Client struct {
	chat  chatClient
	model string
}

func NewClient(opts ClientOpts) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if opts.ModelID == "" {
		opts.ModelID = sageagent.DefaultModel
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = opts.BaseURL
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	return &Client{chat: openai.NewClientWithConfig(cfg), model: opts.ModelID}, nil
}

// Invoke sends the prompt to the chat completion endpoint and returns the first choice verbatim.
func (c *Client) Invoke(ctx context.Context, prompt sageagent.Prompt) (string, error) {
	slog.Info("LLM_CLIENT: Invoked", "messages_len", len(prompt.Messages), "model", c.model)

	msgs := make([]openai.ChatCompletionMessage, 0, len(prompt.Messages))
	for _, m := range prompt.Messages {
		role := m.Role
		switch role {
		case openai.ChatMessageRoleSystem, openai.ChatMessageRoleUser, openai.ChatMessageRoleAssistant:
		default:
			slog.Warn("LLM_CLIENT: unknown role, coercing to user", "role", role)
			role = openai.ChatMessageRoleUser
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: prompt.Temperature,
		MaxTokens:   int(prompt.MaxTokens),
	})
	if err != nil {
		slog.Error("LLM_CLIENT: chat completion failed", "error", err)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	slog.Info("LLM_CLIENT: chat completion succeeded",
		"finish_reason", resp.Choices[0].FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	return resp.Choices[0].Message.Content, nil
}
