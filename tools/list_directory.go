package tools

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"sageagent/tools/storage"
)

type listDirectoryParams struct {
	Path string `json:"path"`
}

// ListDirectory reports the current entries of a directory under the recipe root.
type ListDirectory struct {
	store  storage.Store
	root   string
	filter entryFilter
}

func NewListDirectory(store storage.Store, opts Options) *ListDirectory {
	opts = opts.withDefaults()
	return &ListDirectory{store: store, root: opts.RootDirectory, filter: newEntryFilter(opts)}
}

func (t *ListDirectory) Name() string  { return "list_directory" }
func (t *ListDirectory) Title() string { return "List Directory" }
func (t *ListDirectory) Description() string {
	return "Lists the recipe files in a directory. Defaults to the recipe root when path is omitted."
}

func (t *ListDirectory) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"path": {
				Type:        "string",
				Description: "Directory to list, absolute or relative to the recipe root.",
			},
		},
	}
}

func (t *ListDirectory) Run(ctx context.Context, params map[string]any) Result {
	var in listDirectoryParams
	if err := decodeParams(params, &in); err != nil {
		return Invalid(t.Name(), "%v", err)
	}

	dir := resolve(t.root, in.Path)
	display := in.Path
	if display == "" {
		display = t.root
	}

	names, err := t.store.List(ctx, dir)
	if errors.Is(err, storage.ErrNotFound) {
		slog.Info("TOOLS: Directory not found", "tool", t.Name(), "path", dir)
		return NotFound(t.Name(), display)
	}
	if err != nil {
		slog.Warn("TOOLS: Failed to list directory", "tool", t.Name(), "path", dir, "error", err)
		return IOError(t.Name(), display, err)
	}

	entries := make([]string, 0, len(names))
	for _, name := range names {
		if t.filter.keep(name) {
			entries = append(entries, name)
		}
	}

	slog.Info("TOOLS: Listed directory", "tool", t.Name(), "path", dir, "entries", len(entries), "total", len(names))
	return Result{Tool: t.Name(), Kind: KindOK, Path: display, Entries: entries}
}
