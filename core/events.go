package core

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// EventType discriminates AgentEvent. Values are the wire's snake_case
// discriminator, matching §6's serialization contract directly rather than
// translating at encode time.
type EventType string

const (
	EventRunStarted  EventType = "run_started"
	EventRunFinished EventType = "run_finished"
	EventRunError    EventType = "run_error"
	EventStepStarted EventType = "step_started"
	EventStepFinished EventType = "step_finished"

	EventTextMessageStart EventType = "text_message_start"
	EventTextMessageDelta EventType = "text_message_delta"
	EventTextMessageEnd   EventType = "text_message_end"

	EventReasoningStart EventType = "reasoning_start"
	EventReasoningDelta EventType = "reasoning_delta"
	EventReasoningEnd   EventType = "reasoning_end"

	EventToolCallStart     EventType = "tool_call_start"
	EventToolCallArgsDelta EventType = "tool_call_args_delta"
	EventToolCallEnd       EventType = "tool_call_end"
	EventToolResult        EventType = "tool_result"

	EventPermissionRequest    EventType = "permission_request"
	EventPermissionResponse   EventType = "permission_response"
	EventContinuationRequest  EventType = "continuation_request"
	EventContinuationResponse EventType = "continuation_response"
	EventFilterProgress       EventType = "filter_progress"
	EventFilterError          EventType = "filter_error"
	EventCustom               EventType = "custom_event"

	EventStateSnapshot    EventType = "state_snapshot"
	EventStateDelta       EventType = "state_delta"
	EventMessagesSnapshot EventType = "messages_snapshot"
)

// FinishReason is carried on RunFinished.
type FinishReason string

const (
	FinishCompleted     FinishReason = "completed"
	FinishToolsSkipped  FinishReason = "toolsSkipped"
	FinishIterationLimit FinishReason = "iterationLimit"
	FinishError         FinishReason = "error"
	FinishCancelled     FinishReason = "cancelled"
)

// Event is the tagged-union record flowing through the event plane. Every
// event carries Type and a monotonic Timestamp; the rest of the fields are
// populated according to Type, mirroring how the teacher's agentcore.Event
// carries a superset of fields for every variant rather than modeling each
// as a distinct Go type (which would make the single ordered channel of
// mixed types awkward to express without an interface{} anyway).
type Event struct {
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`

	RequestID string `json:"requestId,omitempty"`

	IterationIndex int `json:"iterationIndex,omitempty"`

	MessageID string `json:"messageId,omitempty"`
	Delta     string `json:"delta,omitempty"`

	CallID string `json:"callId,omitempty"`
	Name   string `json:"name,omitempty"`

	ToolResult *ToolResult `json:"toolResult,omitempty"`

	FinishReason FinishReason `json:"finishReason,omitempty"`
	Error        string       `json:"error,omitempty"`
	Recoverable  bool         `json:"recoverable,omitempty"`

	Approved   bool `json:"approved,omitempty"`
	Extensions int  `json:"extensions,omitempty"`

	Messages []Message `json:"messages,omitempty"`

	Properties map[string]interface{} `json:"properties,omitempty"`
}

func newEvent(t EventType) Event {
	return Event{Type: t, Timestamp: time.Now().UnixMilli()}
}

func RunStarted() Event  { return newEvent(EventRunStarted) }
func RunFinished(reason FinishReason) Event {
	e := newEvent(EventRunFinished)
	e.FinishReason = reason
	return e
}
func RunError(message string, recoverable bool) Event {
	e := newEvent(EventRunError)
	e.Error = message
	e.Recoverable = recoverable
	return e
}
func StepStarted(iteration int) Event {
	e := newEvent(EventStepStarted)
	e.IterationIndex = iteration
	return e
}
func StepFinished(iteration int) Event {
	e := newEvent(EventStepFinished)
	e.IterationIndex = iteration
	return e
}

func PermissionRequest(requestID, callID string) Event {
	e := newEvent(EventPermissionRequest)
	e.RequestID = requestID
	e.CallID = callID
	return e
}

func PermissionResponse(requestID string, approved bool) Event {
	e := newEvent(EventPermissionResponse)
	e.RequestID = requestID
	e.Approved = approved
	return e
}

func ContinuationRequest(requestID string) Event {
	e := newEvent(EventContinuationRequest)
	e.RequestID = requestID
	return e
}

func ContinuationResponse(requestID string, approved bool, extensions int) Event {
	e := newEvent(EventContinuationResponse)
	e.RequestID = requestID
	e.Approved = approved
	e.Extensions = extensions
	return e
}

// EncodeSSE writes the event in the two-line Server-Sent-Event framing
// mandated by §6: "event: <type>\n" + "data: <json>\n\n", with the data
// payload kept on a single line regardless of size.
func (e Event) EncodeSSE(w io.Writer) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("core: encode event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", e.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
