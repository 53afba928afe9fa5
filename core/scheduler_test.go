package core

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubTool struct {
	name string
	fail bool
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub tool " + s.name }
func (s *stubTool) JSONSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}
func (s *stubTool) Invoke(ctx context.Context, args []byte) ([]byte, error) {
	if s.fail {
		return nil, errStubToolFailed
	}
	return []byte(`"ok:` + s.name + `"`), nil
}

var errStubToolFailed = errors.New("stub tool failed")

func TestSchedulerExecuteEmptyCalls(t *testing.T) {
	s := NewScheduler(NewDirectInvoker(nil), 4)
	msg := s.Execute(context.Background(), nil, DefaultAgentOptions())
	if msg.Role != RoleTool || len(msg.Content) != 0 {
		t.Fatalf("expected empty tool message, got %+v", msg)
	}
}

func TestSchedulerSequentialBelowThreshold(t *testing.T) {
	tools := []Tool{&stubTool{name: "a"}}
	s := NewScheduler(NewDirectInvoker(tools), 4)
	opts := DefaultAgentOptions()
	opts.ParallelToolThreshold = 2

	calls := []ToolCall{{CallID: "c1", Name: "a"}}
	msg := s.Execute(context.Background(), calls, opts)

	if len(msg.Content) != 1 {
		t.Fatalf("expected 1 result block, got %d", len(msg.Content))
	}
	if msg.Content[0].ToolResult == nil || msg.Content[0].ToolResult.IsError {
		t.Fatalf("expected a successful result")
	}
}

func TestSchedulerConcurrentAggregatesInOrderWithFailureSummary(t *testing.T) {
	tools := []Tool{
		&stubTool{name: "a"},
		&stubTool{name: "b", fail: true},
		&stubTool{name: "c"},
	}
	s := NewScheduler(NewDirectInvoker(tools), 4)
	opts := DefaultAgentOptions()
	opts.ParallelToolThreshold = 2

	calls := []ToolCall{
		{CallID: "c1", Name: "a"},
		{CallID: "c2", Name: "b"},
		{CallID: "c3", Name: "c"},
	}
	msg := s.Execute(context.Background(), calls, opts)

	if len(msg.Content) != 4 { // 3 results + 1 failure summary
		t.Fatalf("expected 4 content blocks, got %d", len(msg.Content))
	}
	for i, want := range []string{"c1", "c2", "c3"} {
		if msg.Content[i].ToolResult == nil || msg.Content[i].ToolResult.CallID != want {
			t.Fatalf("result %d: expected call id %s, got %+v", i, want, msg.Content[i])
		}
	}
	if !msg.Content[1].ToolResult.IsError {
		t.Fatalf("expected c2's result to be an error")
	}
	summary := msg.Content[3]
	if summary.Type != ContentText || !strings.Contains(summary.Text, "Tool Execution Errors") {
		t.Fatalf("expected trailing failure summary block, got %+v", summary)
	}
}

func TestSchedulerUnknownToolProducesErrorResult(t *testing.T) {
	s := NewScheduler(NewDirectInvoker(nil), 4)
	calls := []ToolCall{{CallID: "c1", Name: "missing"}}
	msg := s.Execute(context.Background(), calls, DefaultAgentOptions())

	if len(msg.Content) == 0 || !msg.Content[0].ToolResult.IsError {
		t.Fatalf("expected an error result for an unknown tool, got %+v", msg)
	}
}
