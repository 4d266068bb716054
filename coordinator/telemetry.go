package coordinator

import (
	"go.opentelemetry.io/otel/metric"
)

type instruments struct {
	runs            metric.Int64Counter
	runsFailed      metric.Int64Counter
	toolCalls       metric.Int64Counter
	parseFailures   metric.Int64Counter
	warnings        metric.Int64Counter
	regenerations   metric.Int64Counter
	toolRounds      metric.Int64Counter
	llmResponseTime metric.Float64Histogram
	runDuration     metric.Float64Histogram
}

// newInstruments creates the coordinator metrics. Names are static, so
// creation errors are ignored.
func newInstruments(meter metric.Meter) instruments {
	var in instruments
	in.runs, _ = meter.Int64Counter("coordinator_runs_total",
		metric.WithDescription("Total number of questions handled"))
	in.runsFailed, _ = meter.Int64Counter("coordinator_runs_failed_total",
		metric.WithDescription("Total number of questions that ended in an error"))
	in.toolCalls, _ = meter.Int64Counter("tool_calls_total",
		metric.WithDescription("Total number of tool calls executed, by tool and result kind"))
	in.parseFailures, _ = meter.Int64Counter("tool_call_parse_failures_total",
		metric.WithDescription("Total number of replies whose tool calls could not be decoded"))
	in.warnings, _ = meter.Int64Counter("validator_warnings_total",
		metric.WithDescription("Total number of hallucination warnings, by severity"))
	in.regenerations, _ = meter.Int64Counter("regenerations_total",
		metric.WithDescription("Total number of answers regenerated under the strict prompt"))
	in.toolRounds, _ = meter.Int64Counter("tool_rounds_total",
		metric.WithDescription("Total number of tool execution rounds"))
	in.llmResponseTime, _ = meter.Float64Histogram("llm_response_time_seconds",
		metric.WithDescription("Time taken to receive response from LLM in seconds"))
	in.runDuration, _ = meter.Float64Histogram("coordination_duration_seconds",
		metric.WithDescription("Total duration of answering one question in seconds"))
	return in
}
