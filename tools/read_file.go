package tools

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"sageagent/tools/storage"
)

type readFileParams struct {
	Path string `json:"path"`
}

// ReadFile returns the full contents of one recipe file.
type ReadFile struct {
	store storage.Store
	root  string
}

func NewReadFile(store storage.Store, opts Options) *ReadFile {
	opts = opts.withDefaults()
	return &ReadFile{store: store, root: opts.RootDirectory}
}

func (t *ReadFile) Name() string        { return "read_file" }
func (t *ReadFile) Title() string       { return "Read File" }
func (t *ReadFile) Description() string { return "Reads the full contents of a recipe file." }

func (t *ReadFile) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"path": {
				Type:        "string",
				Description: "File to read, absolute or relative to the recipe root. Use names returned by list_directory.",
			},
		},
		Required: []string{"path"},
	}
}

func (t *ReadFile) Run(ctx context.Context, params map[string]any) Result {
	var in readFileParams
	if err := decodeParams(params, &in); err != nil {
		return Invalid(t.Name(), "%v", err)
	}
	if in.Path == "" {
		return Invalid(t.Name(), "missing required parameter %q", "path")
	}
	return readOne(ctx, t.store, t.Name(), in.Path, resolve(t.root, in.Path))
}

// readOne reads a single file, labelling the result with the path as the model supplied it.
func readOne(ctx context.Context, store storage.Store, tool, label, full string) Result {
	b, err := store.Read(ctx, full)
	if errors.Is(err, storage.ErrNotFound) {
		slog.Info("TOOLS: File not found", "tool", tool, "path", full)
		return NotFound(tool, label)
	}
	if err != nil {
		slog.Warn("TOOLS: Failed to read file", "tool", tool, "path", full, "error", err)
		return IOError(tool, label, err)
	}

	slog.Info("TOOLS: Read file", "tool", tool, "path", full, "bytes", len(b))
	return Result{Tool: tool, Kind: KindOK, Path: label, Content: string(b)}
}
