package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"sageagent/toolcall"
)

type toolLookup interface {
	GetTool(name string) (Tool, error)
}

// Executor runs decoded tool calls against a set of tools, validating their
// parameters against each tool's input schema first.
type Executor struct {
	tools toolLookup

	mu      sync.Mutex
	schemas map[string]*gojsonschema.Schema
}

func NewExecutor(tools toolLookup) *Executor {
	return &Executor{tools: tools, schemas: map[string]*gojsonschema.Schema{}}
}

// Execute runs one call. Unknown tools and schema violations are reported as
// results, never as errors.
func (e *Executor) Execute(ctx context.Context, call toolcall.Call) Result {
	tool, err := e.tools.GetTool(call.Name)
	if err != nil {
		slog.Warn("TOOLS: Unknown tool requested", "name", call.Name)
		return UnknownTool(call.Name)
	}

	params := call.Parameters
	if params == nil {
		params = map[string]any{}
	}

	if reason, ok := e.validate(tool, params); !ok {
		slog.Warn("TOOLS: Invalid parameters", "name", call.Name, "reason", reason)
		return Invalid(tool.Name(), "%s", reason)
	}

	res := tool.Run(ctx, params)
	if res.Tool == "" {
		res.Tool = tool.Name()
	}
	return res
}

func (e *Executor) validate(tool Tool, params map[string]any) (string, bool) {
	schema, err := e.schema(tool)
	if err != nil {
		// a tool with a broken schema is still runnable
		slog.Error("TOOLS: Failed to compile input schema", "name", tool.Name(), "error", err)
		return "", true
	}
	if schema == nil {
		return "", true
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return fmt.Sprintf("schema validation failed: %v", err), false
	}
	if !result.Valid() {
		var errs []string
		for _, re := range result.Errors() {
			errs = append(errs, re.String())
		}
		return strings.Join(errs, "; "), false
	}
	return "", true
}

func (e *Executor) schema(tool Tool) (*gojsonschema.Schema, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.schemas[tool.Name()]; ok {
		return s, nil
	}

	in := tool.InputSchema()
	if in == nil {
		e.schemas[tool.Name()] = nil
		return nil, nil
	}

	b, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal input schema: %w", err)
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
	if err != nil {
		return nil, fmt.Errorf("compile input schema: %w", err)
	}
	e.schemas[tool.Name()] = s
	return s, nil
}
