package middleware

import (
	"fmt"
	"sync"

	"github.com/HPD-AI/agentrt/core"
)

// CircuitBreaker disables a tool after it has failed MaxConsecutiveErrors
// times in a row, short-circuiting further calls to it with a synthetic
// error result instead of invoking it again. Grounded on loop.go's
// toolErrors map[string]int + LoopConfig.MaxToolErrors, generalized from a
// single closure-scoped map into a reusable C4 iteration middleware so it
// can be composed with other iteration hooks via core.IterationPipeline.
//
// State persists for the lifetime of the CircuitBreaker value, so one
// instance should back one agent loop's Run call (matching the teacher's
// toolErrors map, which is allocated once per Run and not shared across
// turns).
type CircuitBreaker struct {
	MaxConsecutiveErrors int

	mu       sync.Mutex
	failures map[string]int
	tripped  map[string]bool
}

func NewCircuitBreaker(maxConsecutiveErrors int) *CircuitBreaker {
	return &CircuitBreaker{
		MaxConsecutiveErrors: maxConsecutiveErrors,
		failures:             make(map[string]int),
		tripped:              make(map[string]bool),
	}
}

// BeforeToolExecution removes calls to tools that have already tripped the
// breaker from itCtx.ToolCalls, replacing each with a synthetic error
// result appended directly to itCtx.ToolResults — mirroring
// executeToolCalls' "skip if tool has exceeded consecutive failure
// threshold" branch, but at the scheduling boundary rather than inside one
// call's execution.
func (b *CircuitBreaker) BeforeToolExecution(ctx *core.IterationContext) error {
	if b.MaxConsecutiveErrors <= 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	kept := ctx.ToolCalls[:0:0]
	for _, call := range ctx.ToolCalls {
		if b.tripped[call.Name] {
			ctx.ToolResults = append(ctx.ToolResults, core.ToolResult{
				CallID:  call.CallID,
				Payload: fmt.Sprintf("tool %q disabled after %d consecutive errors", call.Name, b.MaxConsecutiveErrors),
				IsError: true,
			})
			continue
		}
		kept = append(kept, call)
	}
	ctx.ToolCalls = kept
	return nil
}

// AfterIteration updates the per-tool consecutive-failure count from this
// iteration's results, tripping the breaker for any tool that just crossed
// the threshold. Any result with IsError set counts as a failure. A
// PermissionMiddleware denial (IsError false), a skipped-execution result
// and the breaker's own synthetic results (their calls are no longer in
// ToolCalls) are not counted; an Allowlist refusal or a permission timeout
// is an error result and does count.
func (b *CircuitBreaker) AfterIteration(ctx *core.IterationContext) error {
	if b.MaxConsecutiveErrors <= 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	byName := map[string]string{}
	for _, call := range ctx.ToolCalls {
		byName[call.CallID] = call.Name
	}

	for _, result := range ctx.ToolResults {
		name, ok := byName[result.CallID]
		if !ok {
			continue
		}
		if result.IsError {
			b.failures[name]++
			if b.failures[name] >= b.MaxConsecutiveErrors {
				b.tripped[name] = true
			}
		} else {
			delete(b.failures, name)
			delete(b.tripped, name)
		}
	}
	return nil
}

// AllTripped reports whether every tool named in names is currently
// disabled (false for an empty list), a signal callers can use to end the
// turn early
// instead of burning remaining iterations on a model that keeps retrying
// a dead tool.
func (b *CircuitBreaker) AllTripped(names []string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(names) == 0 {
		return false
	}
	for _, n := range names {
		if !b.tripped[n] {
			return false
		}
	}
	return true
}

// RecentMessageTruncator caps the Messages slice an iteration hands to the
// provider to the last N entries plus any leading system message, grounded
// on memory/conversation.go's fast-memory recent-history retention (clear
// and re-add only the last fastLimit messages), wired as a
// BeforeIterationHook so it runs ahead of tool selection and the provider
// call each iteration.
type RecentMessageTruncator struct {
	MaxMessages int
}

func NewRecentMessageTruncator(maxMessages int) *RecentMessageTruncator {
	return &RecentMessageTruncator{MaxMessages: maxMessages}
}

func (t *RecentMessageTruncator) BeforeIteration(ctx *core.IterationContext) error {
	if t.MaxMessages <= 0 || len(ctx.Messages) <= t.MaxMessages {
		return nil
	}

	var head []core.Message
	if len(ctx.Messages) > 0 && ctx.Messages[0].Role == core.RoleSystem {
		head = ctx.Messages[:1]
	}
	tail := ctx.Messages[len(ctx.Messages)-t.MaxMessages:]

	trimmed := make([]core.Message, 0, len(head)+len(tail))
	trimmed = append(trimmed, head...)
	trimmed = append(trimmed, tail...)
	ctx.Messages = trimmed
	return nil
}

var (
	_ core.BeforeToolExecutionHook = (*CircuitBreaker)(nil)
	_ core.AfterIterationHook      = (*CircuitBreaker)(nil)
	_ core.BeforeIterationHook     = (*RecentMessageTruncator)(nil)
)
