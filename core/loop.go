package core

import (
	"context"
	"math"
	"time"
)

// ToolSelector is the C6 contract the loop consumes to narrow the tool set
// per iteration. The concrete vector-similarity implementation lives in
// package selector.
type ToolSelector interface {
	Select(ctx context.Context, messages []Message, tools []Tool, opts AgentOptions) ([]Tool, FallbackPolicy, error)
}

// ErrorClassifier is the C7 contract used to decide whether a provider
// error is retryable and how long to wait before retrying.
type ErrorClassifier interface {
	Classify(err error) Classification
}

// LoopConfig wires every collaborator the agent loop (C5) needs. It is the
// Go analog of the teacher's LoopConfig (agentcore/types.go), narrowed and
// renamed to the components this spec actually names.
type LoopConfig struct {
	AgentName string
	Provider  ChatProvider
	Tools     []Tool
	Scheduler *Scheduler
	Selector  ToolSelector
	Pipeline  *IterationPipeline
	Thread    Thread
	Options   AgentOptions
	Classifier ErrorClassifier
}

// Run drives one turn end-to-end, returning the outward event stream.
// State machine: Start → IterateN → EvalToolCalls → ExecuteTools →
// NextOrStop → End, exactly as §4.5 specifies.
func Run(ctx context.Context, cfg LoopConfig, userMessage Message) <-chan Event {
	out := make(chan Event, 64)

	go func() {
		defer close(out)

		emit := func(e Event) { out <- e }
		drainPoll := func(coord *Coordinator) {
			for _, e := range coord.Poll() {
				out <- e
			}
		}

		coord := NewCoordinator()
		cancelCh := make(chan struct{})
		coord.StartDrainer(cancelCh)
		defer func() {
			close(cancelCh)
			coord.Shutdown()
		}()

		// Before a terminal event, shut the coordinator down and poll once
		// more (suspension point 5: the final drain), so every queued
		// middleware event is delivered and the terminal event stays last.
		emit = func(e Event) {
			if e.Type == EventRunFinished || e.Type == EventRunError {
				coord.Shutdown()
				drainPoll(coord)
			}
			out <- e
		}

		emit(RunStarted())

		if cfg.Thread == nil || cfg.Scheduler == nil || cfg.Provider == nil {
			emit(RunError("core: loop missing required collaborator", false))
			return
		}

		cfg.Thread.Append(userMessage)
		messages := cfg.Thread.Snapshot()

		grantedExtensions := 0
		i := 0
		// turnProperties is shared across iterations (the same map handed
		// to every IterationContext) so an afterIteration hook can arrange
		// to skip the *next* iteration's LLM call via properties, per
		// §4.4's "circuit breaker concludes the turn" example.
		turnProperties := map[string]interface{}{}

		for {
			effectiveMax := cfg.Options.MaxIterations + grantedExtensions
			if i >= effectiveMax {
				emit(RunFinished(FinishIterationLimit))
				return
			}

			drainPoll(coord) // suspension point 1

			select {
			case <-ctx.Done():
				emit(RunFinished(FinishCancelled))
				return
			default:
			}

			emit(StepStarted(i))

			itCtx := &IterationContext{
				IterationIndex: i,
				AgentName:      cfg.AgentName,
				Messages:       messages,
				Options:        cfg.Options,
				Properties:     turnProperties,
			}
			// A prior iteration's afterIteration hook may have asked to
			// skip this iteration's LLM call (e.g. a circuit breaker that
			// tripped). Consume the flag here so it only applies once.
			if skip, ok := turnProperties["skipLLMCall"]; ok {
				if b, ok := skip.(bool); ok && b {
					itCtx.SkipLLMCall = true
				}
				delete(turnProperties, "skipLLMCall")
			}
			if err := cfg.Pipeline.RunBeforeIteration(itCtx); err != nil {
				emit(RunError(err.Error(), false))
				return
			}
			cfg.Options = itCtx.Options
			// beforeIteration hooks may have replaced the message list (e.g.
			// a truncator); selection and the provider call use their result.
			callMessages := itCtx.Messages

			var assistantMsg Message
			if itCtx.SkipLLMCall {
				assistantMsg = Message{ID: NewID(), Role: RoleAssistant}
			} else {
				tools, err := cfg.selectTools(ctx, callMessages, coord, emit)
				if err != nil {
					emit(RunError(err.Error(), false))
					return
				}

				msg, err := cfg.callProviderWithRetry(ctx, coord, callMessages, tools, out)
				if err != nil {
					if IsCancelled(err) {
						emit(RunFinished(FinishCancelled))
						return
					}
					emit(RunError(err.Error(), false))
					return
				}
				assistantMsg = msg
			}
			itCtx.Response = &assistantMsg

			calls := assistantMsg.ToolCalls()
			if len(calls) == 0 {
				messages = append(messages, assistantMsg)
				cfg.Thread.Append(assistantMsg)
				if err := cfg.Pipeline.RunAfterIteration(itCtx); err != nil {
					emit(RunError(err.Error(), false))
					return
				}
				emit(StepFinished(i))
				emit(RunFinished(FinishCompleted))
				return
			}

			itCtx.ToolCalls = calls
			if err := cfg.Pipeline.RunBeforeToolExecution(itCtx); err != nil {
				emit(RunError(err.Error(), false))
				return
			}
			// BeforeToolExecution hooks (e.g. a circuit breaker) may have
			// rewritten itCtx.ToolCalls — always execute what the pipeline
			// left behind, not the model's original call list.
			calls = itCtx.ToolCalls
			drainPoll(coord) // suspension point 3

			messages = append(messages, assistantMsg)
			cfg.Thread.Append(assistantMsg)

			var toolMsg Message
			if itCtx.SkipToolExecution {
				toolMsg = skippedToolMessage(calls)
			} else {
				toolMsg = cfg.Scheduler.Execute(ctx, calls, cfg.Options)
			}
			for _, block := range toolMsg.Content {
				if block.Type == ContentToolResult {
					e := newEvent(EventToolResult)
					e.ToolResult = block.ToolResult
					emit(e)
				}
			}
			itCtx.ToolResults = toolResultsOf(toolMsg)
			messages = append(messages, toolMsg)
			cfg.Thread.Append(toolMsg)
			drainPoll(coord) // suspension point 4

			if err := cfg.Pipeline.RunAfterIteration(itCtx); err != nil {
				emit(RunError(err.Error(), false))
				return
			}
			emit(StepFinished(i))

			if itCtx.SkipToolExecution {
				emit(RunFinished(FinishToolsSkipped))
				return
			}

			next := i + 1
			if next == effectiveMax {
				requestID := NewID()
				emit(ContinuationRequest(requestID))
				resp, err := coord.WaitForResponse(requestID, EventContinuationResponse, cfg.Options.ContinuationTimeout, ctx.Done())
				if err != nil || !resp.Approved {
					emit(RunFinished(FinishIterationLimit))
					return
				}
				grant := resp.Extensions
				if grant > cfg.Options.ContinuationExtension {
					grant = cfg.Options.ContinuationExtension
				}
				if grant < 0 {
					grant = 0
				}
				grantedExtensions += grant
				// grant == 0 ("approved=true, extensions=0"): effectiveMax is
				// unchanged, so the top-of-loop check fires again on the very
				// next pass and terminates with iterationLimit, per the Open
				// Question decision recorded in DESIGN.md.
			}
			i = next
		}
	}()

	return out
}

func (cfg *LoopConfig) selectTools(ctx context.Context, messages []Message, coord *Coordinator, emit func(Event)) ([]Tool, error) {
	if cfg.Selector == nil || cfg.Options.ToolSelection != SelectionContextual {
		return cfg.Tools, nil
	}
	selected, fallback, err := cfg.Selector.Select(ctx, messages, cfg.Tools, cfg.Options)
	if err != nil {
		emit(Event{Type: EventFilterError, Timestamp: nowMS(), Error: err.Error()})
		switch fallback {
		case FallbackUseAll:
			return cfg.Tools, nil
		case FallbackUseNone:
			return nil, nil
		default:
			return nil, err
		}
	}
	return selected, nil
}

func skippedToolMessage(calls []ToolCall) Message {
	content := make([]ContentBlock, 0, len(calls))
	for _, c := range calls {
		content = append(content, ToolResultBlock(ToolResult{CallID: c.CallID, Payload: "skipped by iteration middleware", IsError: false}))
	}
	return Message{Role: RoleTool, Content: content}
}

func toolResultsOf(msg Message) []ToolResult {
	var out []ToolResult
	for _, b := range msg.Content {
		if b.Type == ContentToolResult && b.ToolResult != nil {
			out = append(out, *b.ToolResult)
		}
	}
	return out
}

// callProviderWithRetry wraps one provider streaming call with the
// exponential-backoff retry policy of §4.7, grounded on loop.go's
// callLLMWithRetry/retryDelay.
func (cfg *LoopConfig) callProviderWithRetry(ctx context.Context, coord *Coordinator, messages []Message, tools []Tool, out chan<- Event) (Message, error) {
	policy := cfg.Options.RetryPolicy
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		msg, err := cfg.streamOnce(ctx, coord, messages, tools, out)
		if err == nil {
			return msg, nil
		}
		lastErr = err

		class := Classification{Category: CategoryUnknown}
		if cfg.Classifier != nil {
			class = cfg.Classifier.Classify(err)
		}
		if !class.Category.Retryable() || attempt == maxAttempts-1 {
			return Message{}, err
		}

		delay := retryDelay(policy, attempt, class)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Message{}, ErrCancelled
		}
	}
	return Message{}, lastErr
}

func retryDelay(policy RetryPolicy, attempt int, class Classification) time.Duration {
	if class.Category == CategoryRateLimitRetryable && class.RetryAfter > 0 {
		return time.Duration(class.RetryAfter) * time.Second
	}
	d := time.Duration(float64(policy.InitialDelay) * math.Pow(policy.Multiplier, float64(attempt)))
	if policy.MaxDelay > 0 && d > policy.MaxDelay {
		d = policy.MaxDelay
	}
	return d
}

// streamOnce consumes one provider stream, translating each ResponseUpdate
// into AgentEvents and assembling the assistant Message, draining
// middleware-emitted events between updates so "within a single polling
// pass, all queued middleware events are emitted before the next provider
// update" (§5) holds.
func (cfg *LoopConfig) streamOnce(ctx context.Context, coord *Coordinator, messages []Message, tools []Tool, out chan<- Event) (Message, error) {
	updates, errs := cfg.Provider.StreamResponse(ctx, messages, tools, cfg.Options)

	msg := Message{ID: NewID(), Role: RoleAssistant}
	textOpen, reasoningOpen := false, false
	argBuffers := map[string]*[]byte{}
	callOrder := []string{}
	callNames := map[string]string{}

	flushQueued := func() {
		for _, e := range coord.Poll() {
			out <- e
		}
	}

	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return finalizeMessage(msg, callOrder, callNames, argBuffers), nil
			}

			switch {
			case u.TextDelta != "":
				if !textOpen {
					out <- newEvent(EventTextMessageStart)
					textOpen = true
				}
				e := newEvent(EventTextMessageDelta)
				e.Delta = u.TextDelta
				out <- e
				msg.Content = append(msg.Content, TextBlock(u.TextDelta))

			case u.ReasoningDelta != "":
				if !reasoningOpen {
					out <- newEvent(EventReasoningStart)
					reasoningOpen = true
				}
				e := newEvent(EventReasoningDelta)
				e.Delta = u.ReasoningDelta
				out <- e
				msg.Content = append(msg.Content, ReasoningBlock(u.ReasoningDelta))

			case u.ToolCallStart != nil:
				e := newEvent(EventToolCallStart)
				e.CallID = u.ToolCallStart.CallID
				e.Name = u.ToolCallStart.Name
				out <- e
				callOrder = append(callOrder, u.ToolCallStart.CallID)
				callNames[u.ToolCallStart.CallID] = u.ToolCallStart.Name
				buf := []byte{}
				argBuffers[u.ToolCallStart.CallID] = &buf

			case u.ToolCallArgsDelta != nil:
				e := newEvent(EventToolCallArgsDelta)
				e.CallID = u.ToolCallArgsDelta.CallID
				e.Delta = u.ToolCallArgsDelta.Delta
				out <- e
				if buf, ok := argBuffers[u.ToolCallArgsDelta.CallID]; ok {
					*buf = append(*buf, u.ToolCallArgsDelta.Delta...)
				}

			case u.ToolCallEnd != nil:
				e := newEvent(EventToolCallEnd)
				e.CallID = u.ToolCallEnd.CallID
				out <- e

			case u.Finish != nil:
				if textOpen {
					out <- newEvent(EventTextMessageEnd)
				}
				if reasoningOpen {
					out <- newEvent(EventReasoningEnd)
				}
				msg.StopReason = u.Finish.Reason
				msg.Usage = u.Finish.Usage
			}

			flushQueued() // suspension point 2: between provider updates

		case err := <-errs:
			if err != nil {
				return Message{}, err
			}

		case <-ctx.Done():
			return Message{}, ErrCancelled
		}
	}
}

func finalizeMessage(msg Message, callOrder []string, callNames map[string]string, argBuffers map[string]*[]byte) Message {
	for _, id := range callOrder {
		args := []byte("{}")
		if buf, ok := argBuffers[id]; ok && len(*buf) > 0 {
			args = *buf
		}
		msg.Content = append(msg.Content, ToolCallBlock(ToolCall{CallID: id, Name: callNames[id], Arguments: args}))
	}
	if len(msg.Content) > 0 && msg.StopReason == "" {
		if len(callOrder) > 0 {
			msg.StopReason = StopToolUse
		} else {
			msg.StopReason = StopEndTurn
		}
	}
	return msg
}

func nowMS() int64 { return time.Now().UnixMilli() }
