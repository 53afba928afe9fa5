// Package middleware provides concrete Function (C3) and Iteration (C4)
// middleware built on core's pipeline engines.
package middleware

import (
	"time"

	"github.com/HPD-AI/agentrt/core"
)

// PermissionMiddleware awaits an out-of-band approval before letting a
// tool call proceed, short-circuiting with a synthetic denial result when
// refused. Grounded on middleware/hitl.go's HITLMiddleware, adapted from
// its synchronous Approver.ApproveTool call into the async
// emit(PermissionRequest) + waitForResponse<PermissionResponse> rendezvous
// §4.1/§4.3 require — the decision vocabulary (allow/deny with reason) is
// the teacher's, the delivery mechanism is the spec's.
type PermissionMiddleware struct {
	ScopeValue core.Scope
	Timeout    time.Duration
}

func NewPermissionMiddleware(scope core.Scope, timeout time.Duration) *PermissionMiddleware {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &PermissionMiddleware{ScopeValue: scope, Timeout: timeout}
}

func (m *PermissionMiddleware) Scope() core.Scope { return m.ScopeValue }

func (m *PermissionMiddleware) Invoke(ctx *core.FunctionContext, next func(*core.FunctionContext) core.ToolResult) core.ToolResult {
	requestID := core.NewID()
	ctx.Emit(core.PermissionRequest(requestID, ctx.Call.CallID))

	resp, err := ctx.WaitForResponse(requestID, core.EventPermissionResponse, m.Timeout)
	if err != nil {
		ctx.IsTerminated = true
		ctx.Result = core.ToolResult{CallID: ctx.Call.CallID, Payload: "permission request " + err.Error(), IsError: true}
		return ctx.Result
	}
	if !resp.Approved {
		ctx.IsTerminated = true
		ctx.Result = core.ToolResult{CallID: ctx.Call.CallID, Payload: "permission denied", IsError: false}
		return ctx.Result
	}
	return next(ctx)
}

// Allowlist denies any call whose tool name isn't in the set, grounded on
// middleware/allowlist.go's ToolAllowlist.
type Allowlist struct {
	ScopeValue core.Scope
	Allowed    map[string]struct{}
}

func NewAllowlist(scope core.Scope, names ...string) *Allowlist {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return &Allowlist{ScopeValue: scope, Allowed: set}
}

func (a *Allowlist) Scope() core.Scope { return a.ScopeValue }

func (a *Allowlist) Invoke(ctx *core.FunctionContext, next func(*core.FunctionContext) core.ToolResult) core.ToolResult {
	if len(a.Allowed) > 0 {
		if _, ok := a.Allowed[ctx.Call.Name]; !ok {
			ctx.IsTerminated = true
			ctx.Result = core.ToolResult{CallID: ctx.Call.CallID, Payload: "tool not allowed: " + ctx.Call.Name, IsError: true}
			return ctx.Result
		}
	}
	return next(ctx)
}

var (
	_ core.FunctionMiddleware = (*PermissionMiddleware)(nil)
	_ core.FunctionMiddleware = (*Allowlist)(nil)
)
