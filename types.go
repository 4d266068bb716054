package sageagent

import (
	"context"
	"net/http"

	"sageagent/tools"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type SlackClient interface {
	PostMessage(ctx context.Context, channel string, message string) error
}

type ToolProvider interface {
	GetTools() []tools.Tool
	GetTool(name string) (tools.Tool, error)
}

type Coordinator interface {
	Run(ctx context.Context, question string) (string, error)
}

// LLMClient sends a prompt to a chat model and returns the reply text.
type LLMClient interface {
	Invoke(ctx context.Context, prompt Prompt) (string, error)
}

// Message is one chat turn. Role is "system", "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Prompt is a provider-neutral chat request.
type Prompt struct {
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature"`
	MaxTokens   int32     `json:"max_tokens"`
}

// System returns the concatenated system messages.
func (p Prompt) System() string {
	var out string
	for _, m := range p.Messages {
		if m.Role != "system" {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += m.Content
	}
	return out
}
