package chat

import (
	"time"

	"github.com/germanamz/nanobanana/pkg/chats/content"
)

// ReasoningTimer measures the initial reasoning phase of a streamed model
// turn. While the last part of a snapshot is a thought, the elapsed time
// since Start is recorded as a candidate; the first non-empty snapshot whose
// last part is not a thought freezes the candidate for good, even when no
// thought preceded it.
//
// ReasoningTimer is not safe for concurrent use.
type ReasoningTimer struct {
	start     time.Time
	candidate time.Duration
	recorded  bool
	frozen    bool

	// nowFunc is used for testing; defaults to time.Now.
	nowFunc func() time.Time
}

// NewReasoningTimer starts a timer at the current time.
func NewReasoningTimer() *ReasoningTimer {
	return NewReasoningTimerAt(time.Now(), time.Now)
}

// NewReasoningTimerAt starts a timer at start using now as its clock.
func NewReasoningTimerAt(start time.Time, now func() time.Time) *ReasoningTimer {
	return &ReasoningTimer{start: start, nowFunc: now}
}

// Observe inspects one snapshot and returns the current duration and whether
// one has been recorded at all.
func (r *ReasoningTimer) Observe(parts []content.Part) (time.Duration, bool) {
	if r.frozen || len(parts) == 0 {
		return r.candidate, r.recorded
	}

	if content.IsThought(parts[len(parts)-1]) {
		r.candidate = r.nowFunc().Sub(r.start)
		r.recorded = true
		return r.candidate, true
	}

	r.frozen = true
	return r.candidate, r.recorded
}

// Frozen reports whether the reasoning phase has ended.
func (r *ReasoningTimer) Frozen() bool { return r.frozen }

// Elapsed returns the time since the timer started.
func (r *ReasoningTimer) Elapsed() time.Duration {
	return r.nowFunc().Sub(r.start)
}
