package sageagent

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types recorded while answering a question.
const (
	EventUserInput     = "USER_INPUT"
	EventLLMCall       = "LLM_CALL"
	EventLLMResponse   = "LLM_RESPONSE"
	EventLLMError      = "LLM_ERROR"
	EventToolCall      = "TOOL_CALL"
	EventToolResult    = "TOOL_RESULT"
	EventToolError     = "TOOL_ERROR"
	EventParseError    = "PARSE_ERROR"
	EventFacts         = "FACTS"
	EventValidation    = "VALIDATION"
	EventRegeneration  = "REGENERATION"
	EventFinalResponse = "FINAL_RESPONSE"
)

// EventLogger records the conversation log.
type EventLogger interface {
	LogEvent(event Event) error
}

// NewEventLogFilePath returns a file path based on a cleaned up model name or id to make easier to identify specific logs produced with various models.
func NewEventLogFilePath(model string) string {
	r := strings.NewReplacer(":", "_", "/", "_")
	return fmt.Sprintf(
		"./logs/%d.%s.json",
		time.Now().Unix(),
		r.Replace(strings.ToLower(model)),
	)
}

// Event is a single timestamped entry in the conversation log.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id,omitempty"`
	Type      string         `json:"type"`
	Content   string         `json:"content"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// NewRunID returns an identifier correlating the events of one question.
func NewRunID() string {
	return uuid.NewString()
}

// FileEventLogger accumulates events and writes them as one JSON document on Flush.
type FileEventLogger struct {
	mu        sync.Mutex
	sessionID string
	events    []Event
	writer    io.Writer
}

func NewFileEventLogger(writer io.Writer) *FileEventLogger {
	return &FileEventLogger{
		sessionID: uuid.NewString(),
		events:    make([]Event, 0),
		writer:    writer,
	}
}

// LogEvent buffers the event (does not flush immediately)
func (l *FileEventLogger) LogEvent(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

// Flush writes all buffered events and clears the buffer.
func (l *FileEventLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writer == nil {
		return nil
	}

	data, err := json.MarshalIndent(map[string]any{
		"conversation_session": map[string]any{
			"session_id": l.sessionID,
			"timestamp":  time.Now(),
			"events":     l.events,
		},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation log: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write conversation log: %w", err)
	}

	l.events = l.events[:0]
	return nil
}

// MemoryEventLogger keeps events in memory for inspection.
type MemoryEventLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryEventLogger() *MemoryEventLogger {
	return &MemoryEventLogger{}
}

func (l *MemoryEventLogger) LogEvent(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (l *MemoryEventLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// OfType returns the recorded events with the given type.
func (l *MemoryEventLogger) OfType(typ string) []Event {
	var out []Event
	for _, e := range l.Events() {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops the recorded events.
func (l *MemoryEventLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

// MultiEventLogger fans each event out to several loggers.
type MultiEventLogger []EventLogger

func NewMultiEventLogger(loggers ...EventLogger) MultiEventLogger {
	return MultiEventLogger(loggers)
}

func (m MultiEventLogger) LogEvent(event Event) error {
	var errs []error
	for _, l := range m {
		errs = append(errs, l.LogEvent(event))
	}
	return errors.Join(errs...)
}

// ZerologEventLogger writes each event as a JSON line (for Lambda/CloudWatch).
type ZerologEventLogger struct {
	logger zerolog.Logger
}

func NewZerologEventLogger(w io.Writer) *ZerologEventLogger {
	return &ZerologEventLogger{logger: zerolog.New(w).With().Str("component", "sage").Logger()}
}

func (l *ZerologEventLogger) LogEvent(event Event) error {
	e := l.logger.Info()
	if event.Type == EventLLMError || event.Type == EventToolError || event.Type == EventParseError {
		e = l.logger.Warn()
	}
	e.Time("timestamp", event.Timestamp).
		Str("run_id", event.RunID).
		Str("type", event.Type).
		Fields(event.Extra).
		Msg(event.Content)
	return nil
}

// NoOpEventLogger is a logger that discards all events
type NoOpEventLogger struct{}

func NewNoOpEventLogger() *NoOpEventLogger {
	return &NoOpEventLogger{}
}

func (nop *NoOpEventLogger) LogEvent(event Event) error {
	return nil
}
