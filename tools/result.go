package tools

import "fmt"

// Kind classifies the outcome of a tool execution.
type Kind string

const (
	KindOK          Kind = "ok"
	KindNotFound    Kind = "not_found"
	KindIOError     Kind = "io_error"
	KindInvalid     Kind = "invalid"
	KindUnknownTool Kind = "unknown_tool"
)

// Result is the tagged outcome of running a tool.
//
// Entries is populated by list_directory, Content by read_file, and Files by
// read_multiple_files (one per attempted path, in input order). Skipped counts
// paths dropped by the batch cap.
type Result struct {
	Tool    string   `json:"tool"`
	Kind    Kind     `json:"kind"`
	Path    string   `json:"path,omitempty"`
	Content string   `json:"content,omitempty"`
	Entries []string `json:"entries,omitempty"`
	Files   []Result `json:"files,omitempty"`
	Skipped int      `json:"skipped,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

func (r Result) OK() bool { return r.Kind == KindOK }

func NotFound(tool, path string) Result {
	return Result{Tool: tool, Kind: KindNotFound, Path: path}
}

func IOError(tool, path string, err error) Result {
	return Result{Tool: tool, Kind: KindIOError, Path: path, Reason: err.Error()}
}

func Invalid(tool, format string, args ...any) Result {
	return Result{Tool: tool, Kind: KindInvalid, Reason: fmt.Sprintf(format, args...)}
}

func UnknownTool(name string) Result {
	return Result{Tool: name, Kind: KindUnknownTool, Reason: fmt.Sprintf("tool %q not found in registry", name)}
}
