// Package coordinator runs the tool-call dispatch loop: ask the model, execute
// the TOOL_CALL markers in its reply, then ask again with the results.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"sageagent"
	"sageagent/toolcall"
	"sageagent/tools"
	"sageagent/validate"
)

const (
	DefaultTemperature       float32 = 0.1
	DefaultStrictTemperature float32 = 0.05
	DefaultMaxTokens         int32   = 1000
	DefaultMaxToolRounds             = 1
)

// Options tunes a Coordinator. Zero values select the defaults.
type Options struct {
	Temperature       float32
	StrictTemperature float32
	MaxTokens         int32
	// MaxToolRounds bounds how many times tool calls are executed per question.
	// With the default of 1 the follow-up reply is always the answer.
	MaxToolRounds    int
	FactExtraction   bool
	RegeneratePolicy validate.RegeneratePolicy
	// RootDirectory is shown to the model in the system prompt.
	RootDirectory string
}

func (o Options) withDefaults() Options {
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.StrictTemperature == 0 {
		o.StrictTemperature = DefaultStrictTemperature
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.MaxToolRounds <= 0 {
		o.MaxToolRounds = DefaultMaxToolRounds
	}
	if o.RegeneratePolicy == "" {
		o.RegeneratePolicy = validate.Never
	}
	if o.RootDirectory == "" {
		o.RootDirectory = "."
	}
	return o
}

// Coordinator is responsible for managing the interaction between the LLM and the tools.
type Coordinator struct {
	llm          sageagent.LLMClient
	toolProvider sageagent.ToolProvider
	executor     *tools.Executor
	validator    validate.Validator
	logger       sageagent.EventLogger
	opts         Options
	tracer       trace.Tracer
	metrics      instruments
}

// NewCoordinator initializes a coordinator reporting to the global OpenTelemetry providers.
func NewCoordinator(llm sageagent.LLMClient, tp sageagent.ToolProvider, v validate.Validator, log sageagent.EventLogger, opts Options) *Coordinator {
	return NewInstrumentedCoordinator(llm, tp, v, log, opts,
		otel.Tracer(sageagent.TracerName), otel.Meter(sageagent.MeterName))
}

// NewInstrumentedCoordinator initializes a coordinator with an explicit tracer and meter.
func NewInstrumentedCoordinator(llm sageagent.LLMClient, tp sageagent.ToolProvider, v validate.Validator, log sageagent.EventLogger, opts Options, tracer trace.Tracer, meter metric.Meter) *Coordinator {
	if v == nil {
		v = validate.Nop{}
	}
	if log == nil {
		log = sageagent.NewNoOpEventLogger()
	}
	return &Coordinator{
		llm:          llm,
		toolProvider: tp,
		executor:     tools.NewExecutor(tp),
		validator:    v,
		logger:       log,
		opts:         opts.withDefaults(),
		tracer:       tracer,
		metrics:      newInstruments(meter),
	}
}

type run struct {
	id       string
	question string
	evidence []string
}

func (r *run) evidenceText() string {
	return strings.Join(r.evidence, "\n")
}

// Run answers one question. Missing files, unknown tools and malformed tool
// calls never produce an error; only a failed model call does.
func (c *Coordinator) Run(ctx context.Context, question string) (string, error) {
	r := &run{id: sageagent.NewRunID(), question: question}

	ctx, span := c.tracer.Start(ctx, "Coordinator.Run", trace.WithAttributes(attribute.String("sage.run_id", r.id)))
	defer span.End()

	start := time.Now()
	c.metrics.runs.Add(ctx, 1)
	defer func() {
		c.metrics.runDuration.Record(ctx, time.Since(start).Seconds())
	}()

	slog.Info("COORDINATOR: Starting run", "run_id", r.id, "question", question)
	c.logEvent(r, sageagent.EventUserInput, question, nil)

	answer, err := c.answer(ctx, r)
	if err != nil {
		c.metrics.runsFailed.Add(ctx, 1)
		span.SetStatus(codes.Error, "run failed")
		span.RecordError(err)
		return "", err
	}

	c.logEvent(r, sageagent.EventFinalResponse, answer, map[string]any{"evidence_chars": len(r.evidenceText())})
	slog.Info("COORDINATOR: Run complete", "run_id", r.id, "answer_length", len(answer), "tool_results", len(r.evidence))
	return answer, nil
}

func (c *Coordinator) answer(ctx context.Context, r *run) (string, error) {
	prompt, err := NewPrompt(r.question, c.toolProvider, c.opts)
	if err != nil {
		return "", fmt.Errorf("failed to apply system prompt: %w", err)
	}

	reply, err := c.invoke(ctx, r, "initial", prompt)
	if err != nil {
		return "", err
	}

	calls, ok := c.parse(ctx, r, reply)
	if !ok {
		return reply, nil
	}

	var answer string
	for round := 1; ; round++ {
		c.metrics.toolRounds.Add(ctx, 1)
		c.execute(ctx, r, calls)

		moreRounds := round < c.opts.MaxToolRounds
		answer, err = c.compose(ctx, r, moreRounds)
		if err != nil {
			return "", err
		}

		if !moreRounds {
			break
		}
		calls, ok = c.parse(ctx, r, answer)
		if !ok {
			break
		}
		slog.Info("COORDINATOR: Follow-up requested more tools", "run_id", r.id, "round", round+1, "calls", len(calls))
	}

	return c.validate(ctx, r, answer)
}

// parse decodes the tool calls in reply. ok is false when the reply should be
// returned verbatim: it has no markers, or they could not be decoded.
func (c *Coordinator) parse(ctx context.Context, r *run, reply string) ([]toolcall.Call, bool) {
	calls, found, err := toolcall.ParseAll(reply)
	if !found {
		return nil, false
	}
	if err != nil {
		c.metrics.parseFailures.Add(ctx, 1)
		slog.Warn("COORDINATOR: Failed to parse tool call, returning raw reply", "run_id", r.id, "error", err)
		c.logEvent(r, sageagent.EventParseError, err.Error(), map[string]any{"reply_preview": preview(reply)})
		return nil, false
	}
	return calls, true
}

func (c *Coordinator) execute(ctx context.Context, r *run, calls []toolcall.Call) {
	for _, call := range calls {
		ctx, span := c.tracer.Start(ctx, "Coordinator.ExecuteTool", trace.WithAttributes(attribute.String("tool.name", call.Name)))

		slog.Info("COORDINATOR: Handling tool call", "run_id", r.id, "name", call.Name)
		c.logEvent(r, sageagent.EventToolCall, "Executing "+call.Name, map[string]any{"parameters": call.Parameters})

		result := c.executor.Execute(ctx, call)
		rendered := renderResult(result)
		r.evidence = append(r.evidence, rendered)

		c.metrics.toolCalls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", call.Name),
			attribute.String("kind", string(result.Kind)),
		))
		span.SetAttributes(attribute.String("tool.result_kind", string(result.Kind)))

		extra := map[string]any{"kind": string(result.Kind), "result_chars": len(rendered)}
		if result.OK() {
			c.logEvent(r, sageagent.EventToolResult, rendered, extra)
		} else {
			c.logEvent(r, sageagent.EventToolError, rendered, extra)
		}
		span.End()
	}
}

func (c *Coordinator) compose(ctx context.Context, r *run, moreRounds bool) (string, error) {
	evidence := r.evidenceText()

	if !c.opts.FactExtraction {
		return c.invoke(ctx, r, "compose", composePrompt(r.question, evidence, moreRounds, c.opts))
	}

	facts, err := c.invoke(ctx, r, "facts", factsPrompt(r.question, evidence, c.opts))
	if err != nil {
		return "", err
	}
	c.logEvent(r, sageagent.EventFacts, facts, nil)

	prompt := composeFromFactsPrompt(r.question, facts, c.opts)
	if moreRounds {
		prompt.Messages[0].Content += " " + composeMoreRoundsHint
	}
	return c.invoke(ctx, r, "compose", prompt)
}

func (c *Coordinator) validate(ctx context.Context, r *run, answer string) (string, error) {
	evidence := r.evidenceText()
	warnings := c.validator.Validate(r.question, answer, evidence)
	risk := validate.Risk(warnings)

	for _, w := range warnings {
		c.metrics.warnings.Add(ctx, 1, metric.WithAttributes(attribute.String("severity", w.Severity.String())))
	}
	if len(warnings) > 0 {
		slog.Warn("COORDINATOR: Validator flagged answer", "run_id", r.id, "risk", risk.String(), "warnings", len(warnings))
	}
	c.logEvent(r, sageagent.EventValidation, risk.String(), map[string]any{"warnings": warnings})

	if !c.opts.RegeneratePolicy.ShouldRegenerate(warnings) {
		return answer, nil
	}

	c.metrics.regenerations.Add(ctx, 1)
	c.logEvent(r, sageagent.EventRegeneration, "Regenerating with strict accuracy prompt", map[string]any{"temperature": c.opts.StrictTemperature})
	return c.invoke(ctx, r, "strict", strictPrompt(r.question, evidence, c.opts))
}

func (c *Coordinator) invoke(ctx context.Context, r *run, stage string, prompt sageagent.Prompt) (string, error) {
	ctx, span := c.tracer.Start(ctx, "Coordinator.InvokeLLM", trace.WithAttributes(attribute.String("llm.stage", stage)))
	defer span.End()

	promptChars := 0
	for _, m := range prompt.Messages {
		promptChars += len(m.Content)
	}
	c.logEvent(r, sageagent.EventLLMCall, fmt.Sprintf("Calling model (stage: %s, temp: %.2f)", stage, prompt.Temperature), map[string]any{
		"message_count": len(prompt.Messages),
		"total_chars":   promptChars,
	})

	start := time.Now()
	reply, err := c.llm.Invoke(ctx, prompt)
	c.metrics.llmResponseTime.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
	if err != nil {
		span.SetStatus(codes.Error, "llm invoke failed")
		span.RecordError(err)
		c.logEvent(r, sageagent.EventLLMError, err.Error(), map[string]any{"stage": stage})
		return "", fmt.Errorf("failed to invoke LLM: %w", err)
	}

	slog.Info("COORDINATOR: LLM response received", "run_id", r.id, "stage", stage, "content_length", len(reply))
	c.logEvent(r, sageagent.EventLLMResponse, reply, map[string]any{"stage": stage, "response_length": len(reply)})
	return reply, nil
}

// logEvent records an event using the configured logger, handling errors gracefully
func (c *Coordinator) logEvent(r *run, typ, content string, extra map[string]any) {
	err := c.logger.LogEvent(sageagent.Event{
		Timestamp: time.Now(),
		RunID:     r.id,
		Type:      typ,
		Content:   content,
		Extra:     extra,
	})
	if err != nil {
		slog.Error("Failed to log conversation event", "error", err, "type", typ)
	}
}

func preview(s string) string {
	if len(s) > 100 {
		return s[:97] + "..."
	}
	return s
}
