package core

import (
	"context"
	"sort"
	"time"
)

// Scope restricts which calls a Function Middleware applies to, per §4.3's
// registration scoping: global → plugin:<name> → skill:<name> →
// function:<name>. The teacher's own Middleware has no scoping concept at
// all (runner/runner.go's middlewares apply to every call); this is spec
// surface added on top of that pattern, not taken from it.
type Scope string

const (
	ScopeGlobal = Scope("global")
)

func PluginScope(name string) Scope   { return Scope("plugin:" + name) }
func SkillScope(name string) Scope    { return Scope("skill:" + name) }
func FunctionScope(name string) Scope { return Scope("function:" + name) }

func (s Scope) rank() int {
	switch {
	case s == ScopeGlobal:
		return 0
	case len(s) >= 7 && s[:7] == "plugin:":
		return 1
	case len(s) >= 6 && s[:6] == "skill:":
		return 2
	case len(s) >= 9 && s[:9] == "function:":
		return 3
	default:
		return 4
	}
}

// Matches reports whether scope s applies to a call made in the given
// plugin/skill/function context.
func (s Scope) Matches(pluginName, skillName, functionName string) bool {
	switch {
	case s == ScopeGlobal:
		return true
	case s == PluginScope(pluginName):
		return pluginName != ""
	case s == SkillScope(skillName):
		return skillName != ""
	case s == FunctionScope(functionName):
		return functionName != ""
	default:
		return false
	}
}

// FunctionCallContext is a function descriptor: which plugin/skill owns
// the tool being called, used only for scope matching.
type FunctionCallContext struct {
	PluginName   string
	SkillName    string
	FunctionName string
}

// FunctionContext is threaded through a Function Middleware Pipeline
// invocation of one ToolCall, per §4.3's contract.
type FunctionContext struct {
	context.Context

	Call        ToolCall
	Descriptor  FunctionCallContext
	Result      ToolResult
	IsTerminated bool

	coordinator *Coordinator
	properties  map[string]interface{}
}

func (fc *FunctionContext) Emit(e Event) {
	if fc.coordinator != nil {
		fc.coordinator.Emit(e)
	}
}

func (fc *FunctionContext) WaitForResponse(requestID string, expectedType EventType, timeout time.Duration) (Event, error) {
	if fc.coordinator == nil {
		return Event{}, ErrProviderNotFound
	}
	return fc.coordinator.WaitForResponse(requestID, expectedType, timeout, fc.Done())
}

func (fc *FunctionContext) Properties() map[string]interface{} {
	if fc.properties == nil {
		fc.properties = make(map[string]interface{})
	}
	return fc.properties
}

// FunctionMiddleware wraps a single ToolCall's invocation. next invokes the
// inner middleware or, if this is the last in the chain, the tool
// implementation itself — grounded on runner/runner.go's Middleware +
// onion composition in callLLM, adapted here to wrap tool calls instead of
// LLM calls.
type FunctionMiddleware interface {
	Scope() Scope
	Invoke(ctx *FunctionContext, next func(*FunctionContext) ToolResult) ToolResult
}

// FunctionPipeline composes an ordered, scoped list of FunctionMiddleware
// into one FunctionInvoker, implementing core.FunctionInvoker so the
// Scheduler (C2) can call it like any other invoker.
type FunctionPipeline struct {
	middlewares []FunctionMiddleware
	tools       map[string]Tool
	coordinator *Coordinator
}

func NewFunctionPipeline(coordinator *Coordinator, tools []Tool, middlewares ...FunctionMiddleware) *FunctionPipeline {
	m := make(map[string]Tool, len(tools))
	for _, t := range tools {
		m[t.Name()] = t
	}
	return &FunctionPipeline{middlewares: middlewares, tools: m, coordinator: coordinator}
}

// applicable returns the middlewares whose scope matches desc, ordered by
// scope rank (global → plugin → skill → function) then registration order,
// per §4.3.
func (p *FunctionPipeline) applicable(desc FunctionCallContext) []FunctionMiddleware {
	var out []FunctionMiddleware
	for _, mw := range p.middlewares {
		if mw.Scope().Matches(desc.PluginName, desc.SkillName, desc.FunctionName) {
			out = append(out, mw)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Scope().rank() < out[j].Scope().rank()
	})
	return out
}

func (p *FunctionPipeline) Invoke(ctx context.Context, call ToolCall) ToolResult {
	desc := FunctionCallContext{FunctionName: call.Name}
	fctx := &FunctionContext{Context: ctx, Call: call, Descriptor: desc, coordinator: p.coordinator}

	chain := p.applicable(desc)

	var invokeTool func(*FunctionContext) ToolResult
	invokeTool = func(fc *FunctionContext) ToolResult {
		tool, ok := p.tools[fc.Call.Name]
		if !ok {
			return ToolResult{CallID: fc.Call.CallID, Payload: ErrUnknownTool.Error(), IsError: true}
		}
		payload, err := tool.Invoke(fc.Context, fc.Call.Arguments)
		if err != nil {
			return ToolResult{CallID: fc.Call.CallID, Payload: err.Error(), IsError: true}
		}
		return ToolResult{CallID: fc.Call.CallID, Payload: string(payload)}
	}

	// Build the chain innermost-first so index 0 (global) is outermost,
	// matching §4.3's "global → plugin → skill → function" execution order.
	next := invokeTool
	for i := len(chain) - 1; i >= 0; i-- {
		mw := chain[i]
		innerNext := next
		next = func(fc *FunctionContext) ToolResult {
			return mw.Invoke(fc, innerNext)
		}
	}

	result := next(fctx)
	if fctx.IsTerminated {
		return fctx.Result
	}
	return result
}

var _ FunctionInvoker = (*FunctionPipeline)(nil)
