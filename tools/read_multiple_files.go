package tools

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"sageagent/tools/storage"
)

type readMultipleFilesParams struct {
	Paths    []string `json:"paths"`
	BasePath string   `json:"base_path"`
}

// ReadMultipleFiles reads a capped batch of files in one call.
type ReadMultipleFiles struct {
	store    storage.Store
	root     string
	maxFiles int
}

func NewReadMultipleFiles(store storage.Store, opts Options) *ReadMultipleFiles {
	opts = opts.withDefaults()
	return &ReadMultipleFiles{store: store, root: opts.RootDirectory, maxFiles: opts.MaxFilesPerBatch}
}

func (t *ReadMultipleFiles) Name() string  { return "read_multiple_files" }
func (t *ReadMultipleFiles) Title() string { return "Read Multiple Files" }
func (t *ReadMultipleFiles) Description() string {
	return "Reads several recipe files at once. Only the first few paths of a batch are read."
}

func (t *ReadMultipleFiles) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"paths": {
				Type:        "array",
				Items:       &jsonschema.Schema{Type: "string"},
				Description: "Files to read, absolute or relative to base_path.",
			},
			"base_path": {
				Type:        "string",
				Description: "Directory relative paths resolve against. Defaults to the recipe root.",
			},
		},
		Required: []string{"paths"},
	}
}

func (t *ReadMultipleFiles) Run(ctx context.Context, params map[string]any) Result {
	var in readMultipleFilesParams
	if err := decodeParams(params, &in); err != nil {
		return Invalid(t.Name(), "%v", err)
	}

	base := resolve(t.root, in.BasePath)

	paths := in.Paths
	skipped := 0
	if len(paths) > t.maxFiles {
		skipped = len(paths) - t.maxFiles
		paths = paths[:t.maxFiles]
		slog.Info("TOOLS: Batch capped", "tool", t.Name(), "requested", len(in.Paths), "max", t.maxFiles)
	}

	files := make([]Result, 0, len(paths))
	for _, p := range paths {
		files = append(files, readOne(ctx, t.store, t.Name(), p, resolve(base, p)))
	}

	return Result{Tool: t.Name(), Kind: KindOK, Path: in.BasePath, Files: files, Skipped: skipped}
}
