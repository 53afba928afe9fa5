package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/HPD-AI/agentrt/core"
)

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echoes its arguments" }
func (echoTool) JSONSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}
func (echoTool) Invoke(ctx context.Context, args []byte) ([]byte, error) {
	return args, nil
}

func TestAllowlistDeniesUnlistedTool(t *testing.T) {
	coord := core.NewCoordinator()
	pipeline := core.NewFunctionPipeline(coord, []core.Tool{echoTool{}}, NewAllowlist(core.ScopeGlobal, "other"))

	result := pipeline.Invoke(context.Background(), core.ToolCall{CallID: "c1", Name: "echo", Arguments: []byte(`{}`)})
	if !result.IsError {
		t.Fatalf("expected denial for a tool not in the allowlist")
	}
}

func TestAllowlistPermitsListedTool(t *testing.T) {
	coord := core.NewCoordinator()
	pipeline := core.NewFunctionPipeline(coord, []core.Tool{echoTool{}}, NewAllowlist(core.ScopeGlobal, "echo"))

	result := pipeline.Invoke(context.Background(), core.ToolCall{CallID: "c1", Name: "echo", Arguments: []byte(`{"x":1}`)})
	if result.IsError {
		t.Fatalf("expected success for an allowlisted tool, got %+v", result)
	}
	if result.Payload != `{"x":1}` {
		t.Fatalf("expected echoed payload, got %q", result.Payload)
	}
}

func TestPermissionMiddlewareDeniesOnRefusal(t *testing.T) {
	coord := core.NewCoordinator()
	cancel := make(chan struct{})
	coord.StartDrainer(cancel)
	defer func() {
		close(cancel)
		coord.Shutdown()
	}()

	pipeline := core.NewFunctionPipeline(coord, []core.Tool{echoTool{}}, NewPermissionMiddleware(core.ScopeGlobal, time.Second))

	go func() {
		for {
			events := coord.Poll()
			for _, e := range events {
				if e.Type == core.EventPermissionRequest {
					coord.SendResponse(e.RequestID, core.PermissionResponse(e.RequestID, false))
					return
				}
			}
			time.Sleep(time.Millisecond)
		}
	}()

	result := pipeline.Invoke(context.Background(), core.ToolCall{CallID: "c1", Name: "echo", Arguments: []byte(`{}`)})
	if result.IsError {
		t.Fatalf("a denial is not an error result, got IsError=true: %+v", result)
	}
	if result.Payload != "permission denied" {
		t.Fatalf("expected denial payload, got %q", result.Payload)
	}
}

func TestPermissionMiddlewareProceedsOnApproval(t *testing.T) {
	coord := core.NewCoordinator()
	cancel := make(chan struct{})
	coord.StartDrainer(cancel)
	defer func() {
		close(cancel)
		coord.Shutdown()
	}()

	pipeline := core.NewFunctionPipeline(coord, []core.Tool{echoTool{}}, NewPermissionMiddleware(core.ScopeGlobal, time.Second))

	go func() {
		for {
			events := coord.Poll()
			for _, e := range events {
				if e.Type == core.EventPermissionRequest {
					coord.SendResponse(e.RequestID, core.PermissionResponse(e.RequestID, true))
					return
				}
			}
			time.Sleep(time.Millisecond)
		}
	}()

	result := pipeline.Invoke(context.Background(), core.ToolCall{CallID: "c1", Name: "echo", Arguments: []byte(`{"ok":true}`)})
	if result.IsError {
		t.Fatalf("expected success after approval, got %+v", result)
	}
	if result.Payload != `{"ok":true}` {
		t.Fatalf("expected echoed payload, got %q", result.Payload)
	}
}
