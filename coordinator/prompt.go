package coordinator

import (
	"encoding/json"
	"fmt"
	"strings"

	"sageagent"
	"sageagent/toolcall"
)

// NewPrompt creates the first-turn prompt: a system prompt teaching the
// TOOL_CALL format and the available tools, followed by the user question.
func NewPrompt(question string, tp sageagent.ToolProvider, opts Options) (sageagent.Prompt, error) {
	opts = opts.withDefaults()

	var toolLines strings.Builder
	for _, tool := range tp.GetTools() {
		schema, err := json.Marshal(tool.InputSchema())
		if err != nil {
			return sageagent.Prompt{}, fmt.Errorf("failed to marshal input schema for %s: %w", tool.Name(), err)
		}
		fmt.Fprintf(&toolLines, "- %s: %s\n  parameters schema: %s\n", tool.Name(), tool.Description(), schema)
	}

	system := fmt.Sprintf(systemPrompt, toolcall.Marker, toolLines.String(), opts.RootDirectory)

	return sageagent.Prompt{
		Messages: []sageagent.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: question},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}, nil
}

func composePrompt(question, evidence string, moreRounds bool, opts Options) sageagent.Prompt {
	system := composeSystemPrompt
	if moreRounds {
		system += " " + composeMoreRoundsHint
	}
	return sageagent.Prompt{
		Messages: []sageagent.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: "User asked: " + question},
			{Role: "user", Content: "Tool results: " + evidence},
			{Role: "user", Content: "Based ONLY on these tool results, what is your response to the user?"},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
}

func factsPrompt(question, evidence string, opts Options) sageagent.Prompt {
	return sageagent.Prompt{
		Messages: []sageagent.Message{
			{Role: "user", Content: fmt.Sprintf(factsExtractionPrompt, evidence, question)},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
}

func composeFromFactsPrompt(question, facts string, opts Options) sageagent.Prompt {
	return sageagent.Prompt{
		Messages: []sageagent.Message{
			{Role: "system", Content: "You are Sage. Provide a helpful response based ONLY on the factual information provided. Do not add any information not explicitly stated in the facts."},
			{Role: "user", Content: "User query: " + question},
			{Role: "user", Content: "Factual information available: " + facts},
			{Role: "user", Content: "Provide a helpful response based only on these facts:"},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
}

func strictPrompt(question, evidence string, opts Options) sageagent.Prompt {
	return sageagent.Prompt{
		Messages: []sageagent.Message{
			{Role: "system", Content: "EMERGENCY ACCURACY MODE: Only state facts explicitly present in the tool results. If information is not found, say 'I could not find [X] in the recipe files.' Never make assumptions."},
			{Role: "user", Content: "User asked: " + question},
			{Role: "user", Content: "Tool results: " + evidence},
			{Role: "user", Content: "Provide an honest response about what you found (or didn't find):"},
		},
		Temperature: opts.StrictTemperature,
		MaxTokens:   opts.MaxTokens,
	}
}

const systemPrompt = `You are Sage, a precise culinary assistant. You answer questions about the user's recipe collection using file tools.

ACCURACY
1. ONLY state information that is EXPLICITLY present in tool results.
2. NEVER add ingredients, cooking methods, or details not found in the actual file contents.
3. When information is not found, say so clearly: "I could not find [X] in any of the recipe files".
4. Base ALL answers on tool results, not on general culinary knowledge.

TOOL CALL FORMAT
When you need data, reply with one line per call:
%[1]s {"name": "tool_name", "parameters": {"param": "value"}}
You may emit several calls in one reply. The results will be sent back to you.

AVAILABLE TOOLS
%[2]s
WORKFLOW
1. Use list_directory first to see which recipe files actually exist.
2. Then read files using the exact names from the listing.
3. Never make up filenames.

The recipe directory is %[3]s. Relative paths are resolved against it.`

const composeSystemPrompt = "You are Sage. Provide a response based ONLY on the tool results below. Do not add any information not explicitly stated in the tool results. If the requested information is not found in the tool results, state this clearly."

const composeMoreRoundsHint = "If you must read more files before answering, reply only with TOOL_CALL lines instead."

const factsExtractionPrompt = `EXTRACT ONLY FACTUAL INFORMATION from the tool results below.

Tool Results:
%s

User Query: %s

RULES:
1. Only extract information that EXPLICITLY appears in the tool results
2. Do NOT add any information not present in the tool results
3. If the requested information is not found, state "NOT FOUND"
4. Be specific about what you found and what you didn't find

Extract the facts:`
