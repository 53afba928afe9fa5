package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

// memThread is a minimal Thread double local to this test file — loop_test.go
// lives in package core itself, so it cannot import package thread (that
// would be an import cycle, since thread imports core).
type memThread struct {
	mu   sync.Mutex
	msgs []Message
}

func (t *memThread) Append(m Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = append(t.msgs, m.Clone())
}

func (t *memThread) Snapshot() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

func (t *memThread) CreateCheckpoint(int) (string, error) { return "", nil }

var _ Thread = (*memThread)(nil)

// scriptedProvider replays one canned ResponseUpdate sequence per call to
// StreamResponse, advancing through a list of turns each time it's invoked —
// lets a test script "the model calls a tool, then finishes" deterministically.
type scriptedProvider struct {
	mu     sync.Mutex
	turns  [][]ResponseUpdate
	called int
}

func (p *scriptedProvider) StreamResponse(ctx context.Context, messages []Message, tools []Tool, opts AgentOptions) (<-chan ResponseUpdate, <-chan error) {
	p.mu.Lock()
	idx := p.called
	p.called++
	p.mu.Unlock()

	updates := make(chan ResponseUpdate, 16)
	errs := make(chan error, 1)
	go func() {
		defer close(updates)
		defer close(errs)
		if idx >= len(p.turns) {
			updates <- ResponseUpdate{Finish: &struct {
				Reason StopReason
				Usage  Usage
			}{Reason: StopEndTurn}}
			return
		}
		for _, u := range p.turns[idx] {
			updates <- u
		}
	}()
	return updates, errs
}

type echoCore struct{}

func (echoCore) Name() string        { return "echo" }
func (echoCore) Description() string { return "echoes input" }
func (echoCore) JSONSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}
func (echoCore) Invoke(ctx context.Context, args []byte) ([]byte, error) {
	return []byte(`"done"`), nil
}

func toolCallTurn(callID, name string) []ResponseUpdate {
	return []ResponseUpdate{
		{ToolCallStart: &struct {
			CallID string
			Name   string
		}{CallID: callID, Name: name}},
		{ToolCallArgsDelta: &struct {
			CallID string
			Delta  string
		}{CallID: callID, Delta: "{}"}},
		{ToolCallEnd: &struct{ CallID string }{CallID: callID}},
		{Finish: &struct {
			Reason StopReason
			Usage  Usage
		}{Reason: StopToolUse}},
	}
}

func textTurn(text string) []ResponseUpdate {
	return []ResponseUpdate{
		{TextDelta: text},
		{Finish: &struct {
			Reason StopReason
			Usage  Usage
		}{Reason: StopEndTurn}},
	}
}

func drainEvents(t *testing.T, ch <-chan Event, timeout time.Duration) []Event {
	t.Helper()
	var events []Event
	deadline := time.After(timeout)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, e)
		case <-deadline:
			t.Fatalf("timed out waiting for the event stream to close")
			return events
		}
	}
}

func TestRunCompletesAfterToolCallThenFinalText(t *testing.T) {
	provider := &scriptedProvider{turns: [][]ResponseUpdate{
		toolCallTurn("call-1", "echo"),
		textTurn("all done"),
	}}

	cfg := LoopConfig{
		AgentName: "test-agent",
		Provider:  provider,
		Tools:     []Tool{echoCore{}},
		Scheduler: NewScheduler(NewDirectInvoker([]Tool{echoCore{}}), 4),
		Pipeline:  NewIterationPipeline(),
		Thread:    &memThread{},
		Options:   DefaultAgentOptions(),
	}

	events := drainEvents(t, Run(context.Background(), cfg, UserMessage("u1", "please echo")), 2*time.Second)

	var finish *Event
	sawToolResult := false
	for i := range events {
		if events[i].Type == EventToolResult {
			sawToolResult = true
		}
		if events[i].Type == EventRunFinished {
			finish = &events[i]
		}
	}
	if !sawToolResult {
		t.Fatalf("expected a tool_result event")
	}
	if finish == nil {
		t.Fatalf("expected a run_finished event")
	}
	if finish.FinishReason != FinishCompleted {
		t.Fatalf("expected FinishCompleted, got %s", finish.FinishReason)
	}
}

func TestRunTerminatesAtIterationLimitWithoutContinuation(t *testing.T) {
	// Every turn asks for the same tool again, so the loop never reaches a
	// natural end_turn — it must stop at MaxIterations instead of looping
	// forever.
	turns := make([][]ResponseUpdate, 0, 5)
	for i := 0; i < 5; i++ {
		turns = append(turns, toolCallTurn("call", "echo"))
	}
	provider := &scriptedProvider{turns: turns}

	opts := DefaultAgentOptions()
	opts.MaxIterations = 2
	opts.ContinuationTimeout = 20 * time.Millisecond

	cfg := LoopConfig{
		AgentName: "test-agent",
		Provider:  provider,
		Tools:     []Tool{echoCore{}},
		Scheduler: NewScheduler(NewDirectInvoker([]Tool{echoCore{}}), 4),
		Pipeline:  NewIterationPipeline(),
		Thread:    &memThread{},
		Options:   opts,
	}

	events := drainEvents(t, Run(context.Background(), cfg, UserMessage("u1", "keep going")), 2*time.Second)

	var finish *Event
	for i := range events {
		if events[i].Type == EventRunFinished {
			finish = &events[i]
		}
	}
	if finish == nil {
		t.Fatalf("expected a run_finished event")
	}
	if finish.FinishReason != FinishIterationLimit {
		t.Fatalf("expected FinishIterationLimit (continuation request times out and is treated as denied), got %s", finish.FinishReason)
	}
}

func TestRunEmitsRunErrorWhenCollaboratorsMissing(t *testing.T) {
	cfg := LoopConfig{Options: DefaultAgentOptions()}
	events := drainEvents(t, Run(context.Background(), cfg, UserMessage("u1", "hi")), time.Second)

	if len(events) < 2 {
		t.Fatalf("expected at least run_started and run_error, got %d events", len(events))
	}
	if events[0].Type != EventRunStarted {
		t.Fatalf("expected the first event to be run_started, got %s", events[0].Type)
	}
	last := events[len(events)-1]
	if last.Type != EventRunError {
		t.Fatalf("expected the last event to be run_error, got %s", last.Type)
	}
}

// blockingProvider never produces an update or closes its channels, so the
// only way streamOnce's select can proceed is via ctx.Done() — this makes a
// cancellation test deterministic instead of racing a fast scripted reply
// against the cancellation signal.
type blockingProvider struct{}

func (blockingProvider) StreamResponse(ctx context.Context, messages []Message, tools []Tool, opts AgentOptions) (<-chan ResponseUpdate, <-chan error) {
	return make(chan ResponseUpdate), make(chan error)
}

func TestRunCancellationStopsTheLoop(t *testing.T) {
	cfg := LoopConfig{
		AgentName: "test-agent",
		Provider:  blockingProvider{},
		Tools:     []Tool{echoCore{}},
		Scheduler: NewScheduler(NewDirectInvoker([]Tool{echoCore{}}), 4),
		Pipeline:  NewIterationPipeline(),
		Thread:    &memThread{},
		Options:   DefaultAgentOptions(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch := Run(ctx, cfg, UserMessage("u1", "go"))
	time.Sleep(20 * time.Millisecond) // let the loop enter streamOnce before cancelling
	cancel()
	events := drainEvents(t, ch, 2*time.Second)

	found := false
	for _, e := range events {
		if e.Type == EventRunFinished && e.FinishReason == FinishCancelled {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a run_finished(cancelled) event after context cancellation, got %+v", events)
	}
}
