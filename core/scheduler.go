package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// FunctionInvoker is the seam the Tool Scheduler calls through for each
// ToolCall. The Function Middleware Pipeline (C3) implements this
// interface; a scheduler used without middleware can pass a trivial
// invoker that calls the tool directly.
type FunctionInvoker interface {
	Invoke(ctx context.Context, call ToolCall) ToolResult
}

// directInvoker calls a Tool with no middleware wrapping, used by tests and
// by callers that don't need C3.
type directInvoker struct {
	tools map[string]Tool
}

func NewDirectInvoker(tools []Tool) FunctionInvoker {
	m := make(map[string]Tool, len(tools))
	for _, t := range tools {
		m[t.Name()] = t
	}
	return &directInvoker{tools: m}
}

func (d *directInvoker) Invoke(ctx context.Context, call ToolCall) ToolResult {
	tool, ok := d.tools[call.Name]
	if !ok {
		return ToolResult{CallID: call.CallID, Payload: fmt.Sprintf("unknown tool %q", call.Name), IsError: true}
	}
	payload, err := tool.Invoke(ctx, call.Arguments)
	if err != nil {
		return ToolResult{CallID: call.CallID, Payload: err.Error(), IsError: true}
	}
	return ToolResult{CallID: call.CallID, Payload: string(payload)}
}

// Scheduler is the C2 Tool Scheduler: it executes a batch of ToolCalls
// either sequentially or concurrently depending on AgentOptions'
// ParallelToolThreshold, aggregates results in call order, and captures
// per-call failures without losing siblings — grounded on
// tools/invoker.go's SerialInvoker/ConcurrentInvoker split, unified behind
// one entry point per §4.2's contract (one execute call, not two invoker
// types the caller must pick between).
type Scheduler struct {
	invoker        FunctionInvoker
	maxConcurrency int // 0 = unbounded, capped to len(calls)
}

func NewScheduler(invoker FunctionInvoker, maxConcurrency int) *Scheduler {
	return &Scheduler{invoker: invoker, maxConcurrency: maxConcurrency}
}

// Execute runs calls and aggregates them into one tool Message, per §4.2.
func (s *Scheduler) Execute(ctx context.Context, calls []ToolCall, opts AgentOptions) Message {
	if len(calls) == 0 {
		return Message{Role: RoleTool}
	}

	var results []ToolResult
	if len(calls) < opts.ParallelToolThreshold || len(calls) <= 1 {
		results = s.executeSequential(ctx, calls)
	} else {
		results = s.executeConcurrent(ctx, calls)
	}

	return aggregate(calls, results)
}

func (s *Scheduler) executeSequential(ctx context.Context, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))
	for i, call := range calls {
		select {
		case <-ctx.Done():
			results[i] = ToolResult{CallID: call.CallID, Payload: ctx.Err().Error(), IsError: true}
			continue
		default:
		}
		results[i] = s.invoker.Invoke(ctx, call)
	}
	return results
}

// executeConcurrent fans out one goroutine per call, capturing failures
// without cancelling siblings ("capture, don't cancel", Design Notes §9),
// and writes into a pre-sized slice indexed by original position so
// aggregation order matches calls regardless of completion order —
// grounded directly on tools/invoker.go's ConcurrentInvoker.
func (s *Scheduler) executeConcurrent(ctx context.Context, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))

	limit := s.maxConcurrency
	if limit <= 0 || limit > len(calls) {
		limit = len(calls)
	}
	sem := make(chan struct{}, limit)

	var wg sync.WaitGroup
	for i, call := range calls {
		i, call := i, call
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = ToolResult{CallID: call.CallID, Payload: ctx.Err().Error(), IsError: true}
				return
			}
			results[i] = s.invoker.Invoke(ctx, call)
		}()
	}
	wg.Wait()
	return results
}

// aggregate merges per-call results into one tool Message in call order,
// appending a trailing "Tool Execution Errors: ..." summary line when any
// call failed, per §4.2.
func aggregate(calls []ToolCall, results []ToolResult) Message {
	content := make([]ContentBlock, 0, len(results))
	var failures []string
	for i, r := range results {
		content = append(content, ToolResultBlock(r))
		if r.IsError {
			failures = append(failures, fmt.Sprintf("%s: %s", calls[i].Name, r.Payload))
		}
	}

	msg := Message{Role: RoleTool, Content: content}
	if len(failures) > 0 {
		msg.Content = append(msg.Content, TextBlock("Tool Execution Errors: "+strings.Join(failures, "; ")))
	}
	return msg
}

// MarshalArguments is a small convenience used by demo tools and tests to
// build a ToolCall's JSON arguments from a Go value.
func MarshalArguments(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}
