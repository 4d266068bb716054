package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

// Tool is an operation the model can request through a tool call. Run never
// returns an error; every failure is folded into the Result.
type Tool interface {
	Name() string
	Title() string
	Description() string
	InputSchema() *jsonschema.Schema
	Run(ctx context.Context, params map[string]any) Result
}
