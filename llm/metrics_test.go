package llm

import (
	"testing"
	"time"
)

// fakeClock advances a fixed amount on every reading.
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) read() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func TestStopwatchFirstTokenSetOnce(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0), step: 100 * time.Millisecond}
	sw := newStopwatchAt(clock.read)

	sw.OnText() // t=100ms
	sw.OnText() // t=200ms, must not move first token

	m := sw.Metrics(0)
	if m.TimeFirstTokenMillsec != 100 {
		t.Errorf("expected first token at 100ms, got %d", m.TimeFirstTokenMillsec)
	}
}

func TestStopwatchReasoningSetsFirstToken(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0), step: 50 * time.Millisecond}
	sw := newStopwatchAt(clock.read)

	sw.OnReasoning() // t=50ms
	sw.OnText()      // t=100ms

	m := sw.Metrics(0)
	if m.TimeFirstTokenMillsec != 50 {
		t.Errorf("expected first token at 50ms, got %d", m.TimeFirstTokenMillsec)
	}
}

func TestStopwatchThinkingTime(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0), step: 100 * time.Millisecond}
	sw := newStopwatchAt(clock.read)

	sw.OnReasoning() // t=100ms
	sw.OnReasoning() // t=200ms
	sw.OnText()      // t=300ms, thinking ends here
	sw.OnText()      // t=400ms, must not move it

	m := sw.Metrics(0)
	if m.TimeThinkingMillsec != 300 {
		t.Errorf("expected thinking time 300ms, got %d", m.TimeThinkingMillsec)
	}
}

func TestStopwatchNoReasoningNoThinkingTime(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0), step: 100 * time.Millisecond}
	sw := newStopwatchAt(clock.read)

	sw.OnText()
	sw.OnText()

	if m := sw.Metrics(0); m.TimeThinkingMillsec != 0 {
		t.Errorf("expected zero thinking time, got %d", m.TimeThinkingMillsec)
	}
}

func TestStopwatchCompletionTimeAdvances(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0), step: 100 * time.Millisecond}
	sw := newStopwatchAt(clock.read)

	sw.OnText()
	first := sw.Metrics(0).TimeCompletionMillsec
	second := sw.Metrics(0).TimeCompletionMillsec

	if second <= first {
		t.Errorf("completion time should advance across snapshots: %d then %d", first, second)
	}
}

func TestStopwatchCompletionTokensPassthrough(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0), step: time.Millisecond}
	sw := newStopwatchAt(clock.read)

	if m := sw.Metrics(42); m.CompletionTokens != 42 {
		t.Errorf("expected 42 completion tokens, got %d", m.CompletionTokens)
	}
}

func TestReasoningBudget(t *testing.T) {
	tests := []struct {
		name      string
		maxTokens int
		effort    string
		want      int
		wantOK    bool
	}{
		{"high effort", 10000, "high", 8000, true},
		{"medium effort", 10000, "medium", 5000, true},
		{"low effort", 10000, "low", 2000, true},
		{"floor clamp", 2000, "low", 1024, true},
		{"ceiling clamp", 100000, "high", 32000, true},
		{"zero max tokens uses default", 0, "medium", 2048, true},
		{"unknown effort disabled", 10000, "extreme", 0, false},
		{"empty effort disabled", 10000, "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ReasoningBudget(tt.maxTokens, tt.effort)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if got != tt.want {
				t.Errorf("expected budget %d, got %d", tt.want, got)
			}
		})
	}
}
