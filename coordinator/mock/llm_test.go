package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sageagent"
	"sageagent/toolcall"
)

func TestLLMClient_Invoke(t *testing.T) {
	m := NewLLMClient("first", "second")
	ctx := context.Background()

	got, err := m.Invoke(ctx, sageagent.Prompt{Messages: []sageagent.Message{{Role: "user", Content: "a"}}})
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	got, err = m.Invoke(ctx, sageagent.Prompt{})
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	_, err = m.Invoke(ctx, sageagent.Prompt{})
	assert.ErrorIs(t, err, ErrScriptExhausted)

	prompts := m.Prompts()
	require.Len(t, prompts, 3)
	assert.Equal(t, "a", prompts[0].Messages[0].Content)
}

func TestLLMClient_FailOn(t *testing.T) {
	boom := errors.New("connection refused")
	m := NewLLMClient("ok", "unused").FailOn(1, boom)

	_, err := m.Invoke(context.Background(), sageagent.Prompt{})
	require.NoError(t, err)
	_, err = m.Invoke(context.Background(), sageagent.Prompt{})
	assert.ErrorIs(t, err, boom)
}

func TestDemoClient(t *testing.T) {
	d := NewDemoClient("/recipes")

	first, err := d.Invoke(context.Background(), sageagent.Prompt{Messages: []sageagent.Message{
		{Role: "system", Content: "..."},
		{Role: "user", Content: "what can I cook?"},
	}})
	require.NoError(t, err)

	calls, found, err := toolcall.ParseAll(first)
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, calls, 1)
	assert.Equal(t, "list_directory", calls[0].Name)
	assert.Equal(t, map[string]any{"path": "/recipes"}, calls[0].Parameters)

	second, err := d.Invoke(context.Background(), sageagent.Prompt{Messages: []sageagent.Message{
		{Role: "user", Content: "User asked: what can I cook?"},
		{Role: "user", Content: "Tool results: Recipe files found (1): dal.md"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "Here is what I found in your recipe files:\nRecipe files found (1): dal.md", second)
}
