// Package bedrock invokes chat models through the AWS Bedrock Converse API.
// Only text content is exchanged; tool calls travel inside the text as
// TOOL_CALL markers like with any other provider.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"sageagent"
)

const (
	// defaultModelID is an inference profile ID, not the foundation model's ID.
	// See https://docs.aws.amazon.com/bedrock/latest/userguide/inference-profiles.html.
	defaultModelID = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"

	defaultMaxTokens = 1000

	// Controls the diversity of the model's output. Low top_p keeps outputs more focused, which suits strict answers.
	defaultTopP = 0.9
)

var (
	ErrMaxTokens = errors.New("model hit MaxTokens limit; consider increasing MaxTokens")
	ErrFiltered  = errors.New("model response blocked by Bedrock safety filters")
)

type bedrockRuntimeClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type LLMOptions struct {
	ModelID   string
	MaxTokens int32
	TopP      float32
}

type LLMClient struct {
	brc  bedrockRuntimeClient
	opts LLMOptions
}

func NewLLMClient(brc bedrockRuntimeClient, opts LLMOptions) *LLMClient {
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}
	return &LLMClient{
		brc:  brc,
		opts: opts,
	}
}

// Invoke sends the prompt to Converse. The prompt's temperature is used as
// given and its MaxTokens, when set, overrides the client default.
func (c *LLMClient) Invoke(ctx context.Context, prompt sageagent.Prompt) (string, error) {
	slog.Info("LLM_CLIENT: Invoked", "messages_len", len(prompt.Messages))

	var sys []types.SystemContentBlock
	if s := prompt.System(); s != "" {
		sys = append(sys, &types.SystemContentBlockMemberText{Value: s})
	}

	msgs := buildMessages(prompt.Messages)
	if len(msgs) == 0 {
		return "", fmt.Errorf("prompt has no user messages")
	}

	maxTokens := c.opts.MaxTokens
	if prompt.MaxTokens > 0 {
		maxTokens = prompt.MaxTokens
	}

	in := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(c.opts.ModelID),
		System:   sys,
		Messages: msgs,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(maxTokens),
			Temperature: aws.Float32(prompt.Temperature),
			TopP:        aws.Float32(c.opts.TopP),
		},
	}
	out, err := c.brc.Converse(ctx, in)
	if err != nil {
		inPayload, _ := json.Marshal(in)
		slog.Error("LLM_CLIENT: Bedrock invoke failed", "error", err, "input", string(inPayload))
		return "", err
	}

	attrs := []any{"stop_reason", out.StopReason}
	if out.Metrics != nil {
		attrs = append(attrs, "latency_ms", aws.ToInt64(out.Metrics.LatencyMs))
	}
	if out.Usage != nil {
		attrs = append(attrs,
			"input_tokens", aws.ToInt32(out.Usage.InputTokens),
			"output_tokens", aws.ToInt32(out.Usage.OutputTokens))
	}
	slog.Info("LLM_CLIENT: Bedrock invoke succeeded", attrs...)

	switch out.StopReason {
	case types.StopReasonMaxTokens:
		slog.Warn("LLM_CLIENT: Model hit MaxTokens limit")
		return "", ErrMaxTokens
	case types.StopReasonGuardrailIntervened, types.StopReasonContentFiltered:
		slog.Warn("LLM_CLIENT: Model response blocked by Bedrock safety filters")
		return "", ErrFiltered
	}

	return textFromOutput(out), nil
}

// buildMessages converts user and assistant turns into Converse messages.
// Converse requires alternating roles, so consecutive turns of the same role
// are merged into one message with several text blocks.
func buildMessages(in []sageagent.Message) []types.Message {
	var msgs []types.Message
	for _, m := range in {
		var role types.ConversationRole
		switch m.Role {
		case "system":
			continue
		case "assistant":
			role = types.ConversationRoleAssistant
		default:
			role = types.ConversationRoleUser
		}

		block := &types.ContentBlockMemberText{Value: m.Content}
		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content = append(msgs[n-1].Content, block)
			continue
		}
		msgs = append(msgs, types.Message{Role: role, Content: []types.ContentBlock{block}})
	}
	return msgs
}

// textFromOutput joins the assistant's text blocks with '\n'.
func textFromOutput(out *bedrockruntime.ConverseOutput) string {
	if out == nil || out.Output == nil {
		return ""
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return ""
	}

	texts := make([]string, 0, len(msg.Value.Content))
	for _, cb := range msg.Value.Content {
		if t, ok := cb.(*types.ContentBlockMemberText); ok && t != nil && t.Value != "" {
			texts = append(texts, t.Value)
		}
	}
	return strings.Join(texts, "\n")
}
