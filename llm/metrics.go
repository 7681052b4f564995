// Metrics accumulation - timing math shared by all vendor adapters.
//
// The state machine, identical for every vendor:
//   - t0 is taken when the request starts.
//   - The first text OR reasoning event sets time_first_token once.
//   - The first text event after at least one reasoning event marks the end
//     of thinking; time_thinking = that instant - t0.
//   - Every snapshot recomputes time_completion = now - t0.

package llm

import (
	"time"

	"github.com/richinex/relay/model"
)

// Stopwatch accumulates completion timing across rounds. Not safe for
// concurrent use; one completion call owns one stopwatch.
type Stopwatch struct {
	now func() time.Time

	start        time.Time
	firstToken   time.Duration
	hasFirst     bool
	hasReasoning bool
	firstContent time.Time
}

// NewStopwatch starts timing at the moment of the call.
func NewStopwatch() *Stopwatch {
	return newStopwatchAt(time.Now)
}

func newStopwatchAt(now func() time.Time) *Stopwatch {
	return &Stopwatch{now: now, start: now()}
}

// OnReasoning records a reasoning event.
func (s *Stopwatch) OnReasoning() {
	s.hasReasoning = true
	s.markFirstToken()
}

// OnText records a user-visible text event.
func (s *Stopwatch) OnText() {
	s.markFirstToken()
	if s.hasReasoning && s.firstContent.IsZero() {
		s.firstContent = s.now()
	}
}

func (s *Stopwatch) markFirstToken() {
	if !s.hasFirst {
		s.firstToken = s.now().Sub(s.start)
		s.hasFirst = true
	}
}

// Metrics returns a snapshot with time_completion recomputed to now.
func (s *Stopwatch) Metrics(completionTokens int) *model.Metrics {
	thinking := int64(0)
	if !s.firstContent.IsZero() {
		thinking = s.firstContent.Sub(s.start).Milliseconds()
	}
	return &model.Metrics{
		CompletionTokens:      completionTokens,
		TimeFirstTokenMillsec: s.firstToken.Milliseconds(),
		TimeCompletionMillsec: s.now().Sub(s.start).Milliseconds(),
		TimeThinkingMillsec:   thinking,
	}
}
