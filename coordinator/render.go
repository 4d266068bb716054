package coordinator

import (
	"fmt"
	"path/filepath"
	"strings"

	"sageagent/tools"
)

// renderResult turns a tool result into the text fed back to the model.
func renderResult(r tools.Result) string {
	switch r.Kind {
	case tools.KindUnknownTool:
		return "Unknown tool: " + r.Tool
	case tools.KindInvalid:
		return fmt.Sprintf("Invalid parameters for %s: %s", r.Tool, r.Reason)
	}

	switch r.Tool {
	case "list_directory":
		switch r.Kind {
		case tools.KindOK:
			return fmt.Sprintf("Recipe files found (%d): %s", len(r.Entries), strings.Join(r.Entries, ", "))
		case tools.KindNotFound:
			return "Directory not found: " + r.Path
		default:
			return fmt.Sprintf("Error listing directory %s: %s", r.Path, r.Reason)
		}

	case "read_file":
		if r.Kind == tools.KindNotFound {
			return "File not found: " + r.Path
		}
		return renderFile(r, "=== File: "+filepath.Base(r.Path)+" ===")

	case "read_multiple_files":
		var b strings.Builder
		for _, f := range r.Files {
			b.WriteString("\n")
			b.WriteString(renderFile(f, "=== "+f.Path+" ==="))
		}
		if r.Skipped > 0 {
			fmt.Fprintf(&b, "\n(%d more files skipped; request them in another call)", r.Skipped)
		}
		return b.String()
	}

	if r.Kind == tools.KindOK {
		return r.Content
	}
	return fmt.Sprintf("Tool %s failed: %s", r.Tool, r.Reason)
}

func renderFile(r tools.Result, header string) string {
	switch r.Kind {
	case tools.KindOK:
		return header + "\n" + r.Content
	case tools.KindNotFound:
		return header + "\nFile not found"
	default:
		return fmt.Sprintf("%s\nError reading file: %s", header, r.Reason)
	}
}
