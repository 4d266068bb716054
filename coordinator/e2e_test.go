package coordinator_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sageagent"
	"sageagent/coordinator"
	"sageagent/coordinator/lmstudio"
	"sageagent/tools"
	"sageagent/tools/storage"
)

// spyTool counts and records the runs of the tool it wraps.
type spyTool struct {
	tools.Tool

	mu     sync.Mutex
	params []map[string]any
}

func (s *spyTool) Run(ctx context.Context, params map[string]any) tools.Result {
	s.mu.Lock()
	s.params = append(s.params, params)
	s.mu.Unlock()
	return s.Tool.Run(ctx, params)
}

// scriptedServer serves an OpenAI-compatible chat completion endpoint that
// answers with replies in order.
func scriptedServer(t *testing.T, replies ...string) (*httptest.Server, *[]openai.ChatCompletionRequest) {
	t.Helper()

	var (
		mu       sync.Mutex
		requests []openai.ChatCompletionRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}

		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		mu.Lock()
		n := len(requests)
		requests = append(requests, req)
		mu.Unlock()

		if n >= len(replies) {
			http.Error(w, "no reply scripted", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:    fmt.Sprintf("chatcmpl-%d", n),
			Model: req.Model,
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: replies[n]},
				FinishReason: openai.FinishReasonStop,
			}},
		})
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func TestCoordinator_ListDirectoryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cashew-alfredo.md"), []byte("# Cashew Alfredo"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lentil-soup.md"), []byte("# Lentil Soup"), 0o644))

	first := fmt.Sprintf(`TOOL_CALL: {"name": "list_directory", "parameters": {"path": %q}}`, dir)
	second := "You have two recipes: cashew-alfredo.md and lentil-soup.md."
	server, requests := scriptedServer(t, first, second)

	llm, err := lmstudio.NewClient(lmstudio.ClientOpts{BaseURL: server.URL + "/v1", APIKey: "lm-studio"})
	require.NoError(t, err)

	spy := &spyTool{Tool: tools.NewListDirectory(storage.NewFileStore(), tools.Options{RootDirectory: dir})}
	registry := tools.Registry{}
	require.NoError(t, registry.Register(spy))

	events := sageagent.NewMemoryEventLogger()
	c := coordinator.NewCoordinator(llm, &registry, nil, events, coordinator.Options{RootDirectory: dir})

	answer, err := c.Run(context.Background(), "What recipes do I have?")
	require.NoError(t, err)
	assert.Equal(t, second, answer)

	require.Len(t, spy.params, 1)
	assert.Equal(t, map[string]any{"path": dir}, spy.params[0])

	require.Len(t, *requests, 2)
	followUp := (*requests)[1].Messages
	require.Len(t, followUp, 4)
	assert.Equal(t, "Tool results: Recipe files found (2): cashew-alfredo.md, lentil-soup.md", followUp[2].Content)

	results := events.OfType(sageagent.EventToolResult)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, "lentil-soup.md")
}
