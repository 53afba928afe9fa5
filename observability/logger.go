// Package observability provides structured logging and span tracing over
// the core event stream, playing the same ambient role the teacher's
// observer package plays over its own runner.Observer/Tracer hooks — but
// grounded on github.com/rs/zerolog instead of the teacher's bare *log.Logger
// (see DESIGN.md's ambient-stack section for why zerolog was picked from
// the rest of the retrieval pack rather than carried over unchanged).
package observability

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/HPD-AI/agentrt/core"
)

// EventLogger logs every core.Event it observes, mirroring
// observer/logger.go's LoggerObserver's one-line-per-lifecycle-point style
// but keyed off the spec's own event vocabulary (run/step/tool/etc.)
// instead of the teacher's llm.Request/runner.State shapes.
type EventLogger struct {
	log zerolog.Logger
}

// NewEventLogger builds a logger writing to out, defaulting to io.Discard
// like the teacher's NewLoggerObserver(nil).
func NewEventLogger(out io.Writer) *EventLogger {
	if out == nil {
		out = io.Discard
	}
	return &EventLogger{log: zerolog.New(out).With().Timestamp().Str("component", "agentrt").Logger()}
}

// Observe drains ch, logging one structured line per event, until ch closes.
// Intended to run in its own goroutine alongside core.Run's returned
// channel, the same "observer watches the stream, doesn't drive it" shape
// the teacher's Observer hooks have.
func (l *EventLogger) Observe(ch <-chan core.Event) {
	for e := range ch {
		l.logOne(e)
	}
}

func (l *EventLogger) logOne(e core.Event) {
	evt := l.log.Info()
	if e.Error != "" {
		evt = l.log.Error()
	}
	evt = evt.Str("event", string(e.Type)).Int64("ts", e.Timestamp)
	if e.IterationIndex != 0 {
		evt = evt.Int("iteration", e.IterationIndex)
	}
	if e.RequestID != "" {
		evt = evt.Str("request_id", e.RequestID)
	}
	if e.Name != "" {
		evt = evt.Str("tool", e.Name)
	}
	if e.CallID != "" {
		evt = evt.Str("call_id", e.CallID)
	}
	if e.FinishReason != "" {
		evt = evt.Str("finish_reason", string(e.FinishReason))
	}
	if e.Error != "" {
		evt = evt.Str("error", e.Error).Bool("recoverable", e.Recoverable)
	}
	if e.ToolResult != nil {
		evt = evt.Bool("is_error", e.ToolResult.IsError)
	}
	evt.Msg(string(e.Type))
}
