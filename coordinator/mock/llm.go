// Package mock provides model clients that need no network: a scripted client
// for tests and a deterministic demo client for offline runs.
package mock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"sageagent"
	"sageagent/toolcall"
)

var ErrScriptExhausted = errors.New("mock: no scripted reply left")

// LLMClient returns scripted replies in order and records every prompt.
type LLMClient struct {
	mu      sync.Mutex
	replies []string
	errs    map[int]error
	prompts []sageagent.Prompt
}

func NewLLMClient(replies ...string) *LLMClient {
	return &LLMClient{replies: replies, errs: map[int]error{}}
}

// FailOn makes the n-th call (starting at 0) return err.
func (m *LLMClient) FailOn(n int, err error) *LLMClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[n] = err
	return m
}

func (m *LLMClient) Invoke(ctx context.Context, prompt sageagent.Prompt) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.prompts)
	m.prompts = append(m.prompts, prompt)
	slog.Info("LLM_CLIENT: Invoked", "messages_len", len(prompt.Messages), "call", n)

	if err, ok := m.errs[n]; ok {
		return "", err
	}
	if n >= len(m.replies) {
		return "", fmt.Errorf("call %d: %w", n, ErrScriptExhausted)
	}
	return m.replies[n], nil
}

// Prompts returns the prompts received so far.
func (m *LLMClient) Prompts() []sageagent.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sageagent.Prompt, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// DemoClient is deterministic and only serves as a learning aid to see how
// the coordinator handles the two turns. Real LLMs may not be so kind :)
type DemoClient struct {
	root string
}

func NewDemoClient(root string) *DemoClient {
	return &DemoClient{root: root}
}

func (d *DemoClient) Invoke(ctx context.Context, prompt sageagent.Prompt) (string, error) {
	slog.Info("LLM_CLIENT: Invoked", "messages_len", len(prompt.Messages))

	// follow-up turn: echo the evidence back
	for _, m := range prompt.Messages {
		if results, ok := strings.CutPrefix(m.Content, "Tool results: "); ok {
			return "Here is what I found in your recipe files:\n" + strings.TrimSpace(results), nil
		}
	}

	return fmt.Sprintf(`Let me check which recipes you have.
%s {"name": "list_directory", "parameters": {"path": %q}}`, toolcall.Marker, d.root), nil
}
