// Package core implements the agent runtime: the iteration loop, the event
// plane, the tool scheduler, and the data model they share.
package core

import (
	"context"
	"time"
)

// Role identifies who produced a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentType discriminates the variants of ContentBlock.
type ContentType string

const (
	ContentText       ContentType = "text"
	ContentReasoning  ContentType = "reasoning"
	ContentToolCall   ContentType = "tool_call"
	ContentToolResult ContentType = "tool_result"
)

// ContentBlock is a tagged union over a Message's parts. Go has no sum
// types; a discriminated struct with type-specific optional fields is the
// idiomatic stand-in, matching how the source repo represents it.
type ContentBlock struct {
	Type ContentType `json:"type"`

	Text string `json:"text,omitempty"`

	Reasoning string `json:"reasoning,omitempty"`

	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentText, Text: text}
}

func ReasoningBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentReasoning, Reasoning: text}
}

func ToolCallBlock(call ToolCall) ContentBlock {
	return ContentBlock{Type: ContentToolCall, ToolCall: &call}
}

func ToolResultBlock(result ToolResult) ContentBlock {
	return ContentBlock{Type: ContentToolResult, ToolResult: &result}
}

// ThinkingLevel controls how much reasoning effort a provider is asked for.
type ThinkingLevel string

const (
	ThinkingOff    ThinkingLevel = "off"
	ThinkingLow    ThinkingLevel = "low"
	ThinkingMedium ThinkingLevel = "medium"
	ThinkingHigh   ThinkingLevel = "high"
)

// Usage accumulates token accounting across a turn.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	CacheRead    int `json:"cache_read,omitempty"`
	CacheWrite   int `json:"cache_write,omitempty"`
}

func (u *Usage) Add(other Usage) {
	if u == nil {
		return
	}
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheRead += other.CacheRead
	u.CacheWrite += other.CacheWrite
}

func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// StopReason explains why an assistant message stopped generating.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
	StopError     StopReason = "error"
)

// Message is one entry in a Thread. ID is unique within a turn.
type Message struct {
	ID         string         `json:"id"`
	Role       Role           `json:"role"`
	Content    []ContentBlock `json:"content"`
	StopReason StopReason     `json:"stop_reason,omitempty"`
	Usage      Usage          `json:"usage,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

func (m Message) TextContent() string {
	var out string
	for _, b := range m.Content {
		if b.Type == ContentText {
			out += b.Text
		}
	}
	return out
}

func (m Message) ReasoningContent() string {
	var out string
	for _, b := range m.Content {
		if b.Type == ContentReasoning {
			out += b.Reasoning
		}
	}
	return out
}

func (m Message) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, b := range m.Content {
		if b.Type == ContentToolCall && b.ToolCall != nil {
			calls = append(calls, *b.ToolCall)
		}
	}
	return calls
}

func (m Message) HasToolCalls() bool {
	for _, b := range m.Content {
		if b.Type == ContentToolCall {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so the thread's history can be read concurrently
// with an iteration appending to it.
func (m Message) Clone() Message {
	out := m
	out.Content = append([]ContentBlock(nil), m.Content...)
	for i, b := range out.Content {
		if b.ToolCall != nil {
			cp := *b.ToolCall
			cp.Arguments = append([]byte(nil), b.ToolCall.Arguments...)
			out.Content[i].ToolCall = &cp
		}
		if b.ToolResult != nil {
			cp := *b.ToolResult
			out.Content[i].ToolResult = &cp
		}
	}
	return out
}

func UserMessage(id, text string) Message {
	return Message{ID: id, Role: RoleUser, Content: []ContentBlock{TextBlock(text)}, Timestamp: time.Now()}
}

func SystemMessage(id, text string) Message {
	return Message{ID: id, Role: RoleSystem, Content: []ContentBlock{TextBlock(text)}, Timestamp: time.Now()}
}

// ToolCall is a structured request from the model to invoke a named
// function with JSON arguments. CallID is unique within a turn.
type ToolCall struct {
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments []byte `json:"arguments"`
}

// ToolResult is the outcome of invoking a ToolCall. Exactly one is produced
// per ToolCall in a completed iteration, unless a middleware short-circuited
// it with a synthetic result.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Payload string `json:"payload"`
	IsError bool   `json:"is_error"`
}

// Tool is the invocation surface the scheduler calls through; its
// implementation is outside the runtime core.
type Tool interface {
	Name() string
	Description() string
	JSONSchema() map[string]interface{}
	Invoke(ctx context.Context, argumentsJSON []byte) (payloadJSON []byte, err error)
}
