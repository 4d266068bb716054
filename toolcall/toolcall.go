// Package toolcall finds and decodes TOOL_CALL markers embedded in model text.
//
// Models that lack native tool calling are taught to emit lines of the form
//
//	TOOL_CALL: {"name": "read_file", "parameters": {"path": "tofu-scramble.md"}}
//
// anywhere in their reply. The JSON payload is delimited by brace balancing, so
// parameters may nest to any depth and trailing prose is ignored.
package toolcall

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
)

// Marker is the literal prefix that introduces a tool call.
const Marker = "TOOL_CALL:"

// Span is a raw JSON candidate found after a marker. Start and End are byte
// offsets into the scanned text; Raw is empty when no balanced object followed
// the marker.
type Span struct {
	Start int
	End   int
	Raw   string
}

// Call is a decoded tool invocation.
type Call struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

var (
	ErrEmptySpan         = errors.New("no JSON object after marker")
	ErrMissingName       = errors.New("tool call has no name")
	ErrMissingParameters = errors.New("tool call has no parameters")
)

// HasMarker reports whether text contains at least one marker.
func HasMarker(text string) bool {
	return strings.Contains(text, Marker)
}

// Spans yields every candidate after a marker, left to right. The sequence is
// stateless and can be ranged over more than once.
func Spans(text string) iter.Seq[Span] {
	return func(yield func(Span) bool) {
		pos := 0
		for pos < len(text) {
			idx := strings.Index(text[pos:], Marker)
			if idx == -1 {
				return
			}
			after := pos + idx + len(Marker)

			span := scanObject(text, after)
			if !yield(span) {
				return
			}

			if span.Raw == "" {
				pos = after
				continue
			}
			pos = span.End
		}
	}
}

// Extract collects Spans eagerly.
func Extract(text string) []Span {
	var out []Span
	for s := range Spans(text) {
		out = append(out, s)
	}
	return out
}

// scanObject finds the first '{' at or after from and returns the balanced
// object starting there. Braces inside JSON strings are not counted.
func scanObject(text string, from int) Span {
	open := strings.IndexByte(text[from:], '{')
	if open == -1 {
		return Span{Start: from, End: from}
	}
	start := from + open

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return Span{Start: start, End: i + 1, Raw: text[start : i+1]}
			}
		}
	}

	// unbalanced
	return Span{Start: start, End: start}
}

// Parse decodes a span into a Call.
func Parse(span Span) (Call, error) {
	if strings.TrimSpace(span.Raw) == "" {
		return Call{}, ErrEmptySpan
	}

	var probe struct {
		Name       string          `json:"name"`
		Parameters json.RawMessage `json:"parameters"`
	}
	if err := json.Unmarshal([]byte(span.Raw), &probe); err != nil {
		return Call{}, fmt.Errorf("decode tool call: %w", err)
	}
	if probe.Name == "" {
		return Call{}, ErrMissingName
	}
	if probe.Parameters == nil {
		return Call{}, fmt.Errorf("%s: %w", probe.Name, ErrMissingParameters)
	}

	params := map[string]any{}
	if string(probe.Parameters) != "null" {
		if err := json.Unmarshal(probe.Parameters, &params); err != nil {
			return Call{}, fmt.Errorf("decode parameters for %s: %w", probe.Name, err)
		}
		if params == nil {
			params = map[string]any{}
		}
	}

	return Call{Name: probe.Name, Parameters: params}, nil
}

// ParseAll decodes every call in text. found reports whether any marker was
// present. Decoding stops at the first malformed call, whose error is returned
// alongside the calls decoded before it.
func ParseAll(text string) (calls []Call, found bool, err error) {
	for span := range Spans(text) {
		found = true
		call, perr := Parse(span)
		if perr != nil {
			return calls, true, perr
		}
		calls = append(calls, call)
	}
	return calls, found, nil
}
