package observability

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Tracer times named spans, grounded on observer/logger.go's
// SimpleTimerTracer.StartSpan, adapted to zerolog fields instead of a
// formatted attrs map.
type Tracer struct {
	log zerolog.Logger
}

func NewTracer(out io.Writer) *Tracer {
	if out == nil {
		out = io.Discard
	}
	return &Tracer{log: zerolog.New(out).With().Timestamp().Str("component", "agentrt").Logger()}
}

// StartSpan logs a span start and returns a function to call on completion;
// pass the span's terminal error, or nil on success.
func (t *Tracer) StartSpan(name string, attrs map[string]string) func(err error) {
	start := time.Now()
	evt := t.log.Debug().Str("span", name)
	for k, v := range attrs {
		evt = evt.Str(k, v)
	}
	evt.Msg("span start")

	return func(err error) {
		evt := t.log.Debug().Str("span", name).Dur("duration", time.Since(start))
		if err != nil {
			evt = evt.Err(err)
		}
		evt.Msg("span end")
	}
}
