package coordinator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"sageagent"
	"sageagent/coordinator/mock"
	"sageagent/tools"
	"sageagent/tools/storage"
	"sageagent/validate"
)

func recipeRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	store := storage.NewTestStore(map[string]string{
		"/recipes/cashew-alfredo.md": "# Cashew Alfredo\n- cashews\n- garlic\n- nutritional yeast",
		"/recipes/lentil-soup.md":    "# Lentil Soup\n- red lentils\n- carrot\n- cumin",
		"/recipes/notes.txt":         "shopping list",
	})
	registry, err := tools.NewRegistry(store, tools.Options{RootDirectory: "/recipes"})
	require.NoError(t, err)
	return registry
}

func lastUserContents(p sageagent.Prompt) []string {
	var out []string
	for _, m := range p.Messages {
		if m.Role == "user" {
			out = append(out, m.Content)
		}
	}
	return out
}

func TestCoordinator_Run(t *testing.T) {
	tests := []struct {
		name        string
		question    string
		replies     []string
		opts        Options
		validator   validate.Validator
		want        string
		wantCalls   int
		wantEvents  []string
		checkPrompt func(t *testing.T, prompts []sageagent.Prompt)
	}{
		{
			name:      "no marker returns reply verbatim",
			replies:   []string{"Hello! I'm Sage. Ask me about your recipes."},
			want:      "Hello! I'm Sage. Ask me about your recipes.",
			wantCalls: 1,
		},
		{
			name:       "malformed tool call returns reply verbatim",
			replies:    []string{`TOOL_CALL: {"name": "read_file"}`},
			want:       `TOOL_CALL: {"name": "read_file"}`,
			wantCalls:  1,
			wantEvents: []string{sageagent.EventParseError},
		},
		{
			name: "tool results feed the follow-up",
			replies: []string{
				`Let me check. TOOL_CALL: {"name": "list_directory", "parameters": {}}`,
				"You have two recipes: cashew-alfredo.md and lentil-soup.md.",
			},
			want:       "You have two recipes: cashew-alfredo.md and lentil-soup.md.",
			wantCalls:  2,
			wantEvents: []string{sageagent.EventToolCall, sageagent.EventToolResult},
			checkPrompt: func(t *testing.T, prompts []sageagent.Prompt) {
				users := lastUserContents(prompts[1])
				require.Len(t, users, 3)
				assert.Equal(t, "User asked: what recipes do I have?", users[0])
				assert.Equal(t, "Tool results: Recipe files found (2): cashew-alfredo.md, lentil-soup.md", users[1])
				assert.InDelta(t, DefaultTemperature, prompts[1].Temperature, 1e-6)
				assert.Equal(t, DefaultMaxTokens, prompts[1].MaxTokens)
			},
		},
		{
			name: "multiple calls execute in order and failures become text",
			replies: []string{
				"TOOL_CALL: {\"name\": \"read_file\", \"parameters\": {\"path\": \"lentil-soup.md\"}}\n" +
					"TOOL_CALL: {\"name\": \"read_file\", \"parameters\": {\"path\": \"pad-thai.md\"}}\n" +
					"TOOL_CALL: {\"name\": \"search_web\", \"parameters\": {\"q\": \"cumin\"}}",
				"Lentil soup uses cumin.",
			},
			want:       "Lentil soup uses cumin.",
			wantCalls:  2,
			wantEvents: []string{sageagent.EventToolResult, sageagent.EventToolError, sageagent.EventToolError},
			checkPrompt: func(t *testing.T, prompts []sageagent.Prompt) {
				evidence := lastUserContents(prompts[1])[1]
				assert.Equal(t, "Tool results: === File: lentil-soup.md ===\n# Lentil Soup\n- red lentils\n- carrot\n- cumin\n"+
					"File not found: pad-thai.md\n"+
					"Unknown tool: search_web", evidence)
			},
		},
		{
			name: "batch read renders one labelled segment per path",
			replies: []string{
				`TOOL_CALL: {"name": "read_multiple_files", "parameters": {"paths": ["cashew-alfredo.md", "ghost.md"]}}`,
				"done",
			},
			want:      "done",
			wantCalls: 2,
			checkPrompt: func(t *testing.T, prompts []sageagent.Prompt) {
				evidence := lastUserContents(prompts[1])[1]
				assert.Equal(t, "Tool results: \n=== cashew-alfredo.md ===\n# Cashew Alfredo\n- cashews\n- garlic\n- nutritional yeast\n=== ghost.md ===\nFile not found", evidence)
			},
		},
		{
			name: "fact extraction adds a stage",
			replies: []string{
				`TOOL_CALL: {"name": "read_file", "parameters": {"path": "lentil-soup.md"}}`,
				"FACT: lentil-soup.md lists cumin",
				"Lentil soup contains cumin.",
			},
			opts:       Options{FactExtraction: true},
			want:       "Lentil soup contains cumin.",
			wantCalls:  3,
			wantEvents: []string{sageagent.EventFacts},
			checkPrompt: func(t *testing.T, prompts []sageagent.Prompt) {
				assert.Contains(t, prompts[1].Messages[0].Content, "EXTRACT ONLY FACTUAL INFORMATION")
				assert.Contains(t, prompts[1].Messages[0].Content, "- cumin")
				assert.Equal(t, "Factual information available: FACT: lentil-soup.md lists cumin", prompts[2].Messages[2].Content)
			},
		},
		{
			name:     "high risk answer regenerated once",
			question: "which recipes contain turmeric?",
			replies: []string{
				`TOOL_CALL: {"name": "read_file", "parameters": {"path": "cashew-alfredo.md"}}`,
				"Cashew alfredo contains turmeric and garlic.",
				"I could not find turmeric in the recipe files. Cashew alfredo has garlic.",
			},
			opts:       Options{RegeneratePolicy: validate.Once},
			validator:  validate.NewKeywordValidator(nil, nil),
			want:       "I could not find turmeric in the recipe files. Cashew alfredo has garlic.",
			wantCalls:  3,
			wantEvents: []string{sageagent.EventValidation, sageagent.EventRegeneration},
			checkPrompt: func(t *testing.T, prompts []sageagent.Prompt) {
				assert.InDelta(t, DefaultStrictTemperature, prompts[2].Temperature, 1e-6)
				assert.Contains(t, prompts[2].Messages[0].Content, "EMERGENCY ACCURACY MODE")
			},
		},
		{
			name:     "never policy keeps flagged answer",
			question: "which recipes contain turmeric?",
			replies: []string{
				`TOOL_CALL: {"name": "read_file", "parameters": {"path": "cashew-alfredo.md"}}`,
				"Cashew alfredo contains turmeric.",
			},
			validator:  validate.NewKeywordValidator(nil, nil),
			want:       "Cashew alfredo contains turmeric.",
			wantCalls:  2,
			wantEvents: []string{sageagent.EventValidation},
		},
		{
			name: "single round returns follow-up markers verbatim",
			replies: []string{
				`TOOL_CALL: {"name": "list_directory", "parameters": {}}`,
				`TOOL_CALL: {"name": "read_file", "parameters": {"path": "lentil-soup.md"}}`,
			},
			want:      `TOOL_CALL: {"name": "read_file", "parameters": {"path": "lentil-soup.md"}}`,
			wantCalls: 2,
		},
		{
			name: "extra rounds execute follow-up calls",
			replies: []string{
				`TOOL_CALL: {"name": "list_directory", "parameters": {}}`,
				`TOOL_CALL: {"name": "read_file", "parameters": {"path": "lentil-soup.md"}}`,
				"Lentil soup needs red lentils, carrot and cumin.",
			},
			opts:      Options{MaxToolRounds: 3},
			want:      "Lentil soup needs red lentils, carrot and cumin.",
			wantCalls: 3,
			checkPrompt: func(t *testing.T, prompts []sageagent.Prompt) {
				assert.Contains(t, prompts[1].Messages[0].Content, composeMoreRoundsHint)
				evidence := lastUserContents(prompts[2])[1]
				assert.True(t, strings.HasPrefix(evidence, "Tool results: Recipe files found (2)"))
				assert.Contains(t, evidence, "=== File: lentil-soup.md ===")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := mock.NewLLMClient(tt.replies...)
			events := sageagent.NewMemoryEventLogger()
			c := NewCoordinator(llm, recipeRegistry(t), tt.validator, events, tt.opts)

			question := tt.question
			if question == "" {
				question = "what recipes do I have?"
			}
			got, err := c.Run(context.Background(), question)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, llm.Prompts(), tt.wantCalls)

			for _, typ := range tt.wantEvents {
				assert.NotEmpty(t, events.OfType(typ), "expected %s event", typ)
			}
			all := events.Events()
			require.NotEmpty(t, all)
			assert.Equal(t, sageagent.EventUserInput, all[0].Type)
			assert.Equal(t, sageagent.EventFinalResponse, all[len(all)-1].Type)
			for _, e := range all {
				assert.Equal(t, all[0].RunID, e.RunID)
			}

			if tt.checkPrompt != nil {
				tt.checkPrompt(t, llm.Prompts())
			}
		})
	}
}

func TestCoordinator_RunErrors(t *testing.T) {
	boom := errors.New("connection refused")

	tests := []struct {
		name string
		llm  *mock.LLMClient
	}{
		{
			name: "first call fails",
			llm:  mock.NewLLMClient().FailOn(0, boom),
		},
		{
			name: "follow-up fails",
			llm:  mock.NewLLMClient(`TOOL_CALL: {"name": "list_directory", "parameters": {}}`).FailOn(1, boom),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := sageagent.NewMemoryEventLogger()
			c := NewCoordinator(tt.llm, recipeRegistry(t), nil, events, Options{})

			got, err := c.Run(context.Background(), "anything with garlic?")
			assert.ErrorIs(t, err, boom)
			assert.Empty(t, got)
			assert.NotEmpty(t, events.OfType(sageagent.EventLLMError))
			assert.Empty(t, events.OfType(sageagent.EventFinalResponse))
		})
	}
}

func TestNewPrompt(t *testing.T) {
	p, err := NewPrompt("what has cumin?", recipeRegistry(t), Options{RootDirectory: "/recipes"})
	require.NoError(t, err)

	require.Len(t, p.Messages, 2)
	sys := p.Messages[0].Content
	assert.Equal(t, "system", p.Messages[0].Role)
	assert.Contains(t, sys, `TOOL_CALL: {"name": "tool_name", "parameters": {"param": "value"}}`)
	assert.Contains(t, sys, "- list_directory:")
	assert.Contains(t, sys, "- read_file:")
	assert.Contains(t, sys, "- read_multiple_files:")
	assert.Contains(t, sys, `"required":["path"]`)
	assert.Contains(t, sys, "The recipe directory is /recipes.")
	assert.Equal(t, sageagent.Message{Role: "user", Content: "what has cumin?"}, p.Messages[1])
	assert.InDelta(t, DefaultTemperature, p.Temperature, 1e-6)
}

func TestCoordinator_Telemetry(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	llm := mock.NewLLMClient(
		`TOOL_CALL: {"name": "read_file", "parameters": {"path": "lentil-soup.md"}} TOOL_CALL: {"name": "read_file", "parameters": {"path": "nope.md"}}`,
		"Lentil soup.",
	)
	c := NewInstrumentedCoordinator(llm, recipeRegistry(t), nil, nil, Options{}, tp.Tracer("test"), mp.Meter("test"))

	_, err := c.Run(context.Background(), "soup?")
	require.NoError(t, err)

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{
		"Coordinator.InvokeLLM",
		"Coordinator.ExecuteTool",
		"Coordinator.ExecuteTool",
		"Coordinator.InvokeLLM",
		"Coordinator.Run",
	}, names)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(1), sums["coordinator_runs_total"])
	assert.Equal(t, int64(2), sums["tool_calls_total"])
	assert.Equal(t, int64(1), sums["tool_rounds_total"])
	assert.Zero(t, sums["coordinator_runs_failed_total"])
}
