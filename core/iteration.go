package core

// IterationContext is the mutable per-iteration record shared with
// middleware, per §3. The loop creates one at iteration start and disposes
// it at iteration end; only the loop may replace Response, middleware may
// mutate Options.Instructions, SkipLLMCall, SkipToolExecution, Properties.
type IterationContext struct {
	IterationIndex int
	AgentName      string
	Messages       []Message
	Options        AgentOptions

	Response    *Message
	ToolCalls   []ToolCall
	ToolResults []ToolResult

	SkipLLMCall       bool
	SkipToolExecution bool

	Properties map[string]interface{}
}

// IterationMiddleware is a marker interface; a concrete middleware
// implements whichever of the three optional hook interfaces below apply
// to it, following the teacher's runner.Middleware marker-interface +
// optional-interface composition (runner/runner.go's BeforeLLM/AfterLLM).
type IterationMiddleware interface{}

type BeforeIterationHook interface {
	BeforeIteration(ctx *IterationContext) error
}

type BeforeToolExecutionHook interface {
	BeforeToolExecution(ctx *IterationContext) error
}

type AfterIterationHook interface {
	AfterIteration(ctx *IterationContext) error
}

// IterationPipeline runs the three C4 hook points over an ordered list of
// middleware. Ordering decision (Open Question in §9): all three hooks run
// in forward registration order — see DESIGN.md for the rationale; the
// onion/reverse-order shape is reserved for the function pipeline (C3),
// where "next" truly wraps a nested call.
type IterationPipeline struct {
	middlewares []IterationMiddleware
}

func NewIterationPipeline(mw ...IterationMiddleware) *IterationPipeline {
	return &IterationPipeline{middlewares: mw}
}

func (p *IterationPipeline) RunBeforeIteration(ctx *IterationContext) error {
	for _, mw := range p.middlewares {
		if hook, ok := mw.(BeforeIterationHook); ok {
			if err := hook.BeforeIteration(ctx); err != nil {
				return err
			}
		}
		if ctx.SkipLLMCall {
			break
		}
	}
	return nil
}

func (p *IterationPipeline) RunBeforeToolExecution(ctx *IterationContext) error {
	for _, mw := range p.middlewares {
		if hook, ok := mw.(BeforeToolExecutionHook); ok {
			if err := hook.BeforeToolExecution(ctx); err != nil {
				return err
			}
		}
		if ctx.SkipToolExecution {
			break
		}
	}
	return nil
}

func (p *IterationPipeline) RunAfterIteration(ctx *IterationContext) error {
	for _, mw := range p.middlewares {
		if hook, ok := mw.(AfterIterationHook); ok {
			if err := hook.AfterIteration(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}
