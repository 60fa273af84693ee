// Package usage accumulates token counts reported by the model endpoint.
package usage

import (
	"fmt"
	"sync"
)

// TokenCount holds the token counts reported for a single response.
type TokenCount struct {
	PromptTokens    int // Tokens in the request, history included.
	CandidateTokens int // Tokens in the visible answer, images included.
	ThoughtTokens   int // Tokens spent on reasoning.
}

// Total returns the sum of all token kinds.
func (tc TokenCount) Total() int {
	return tc.PromptTokens + tc.CandidateTokens + tc.ThoughtTokens
}

// IsZero reports whether no tokens were counted.
func (tc TokenCount) IsZero() bool {
	return tc == TokenCount{}
}

func (tc TokenCount) String() string {
	return fmt.Sprintf("in %d · out %d · thought %d", tc.PromptTokens, tc.CandidateTokens, tc.ThoughtTokens)
}

// Tracker accumulates usage across responses.
// It is safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	last  TokenCount
	total TokenCount
	count int
}

// Add records the usage of one response.
func (t *Tracker) Add(tc TokenCount) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = tc
	t.total.PromptTokens += tc.PromptTokens
	t.total.CandidateTokens += tc.CandidateTokens
	t.total.ThoughtTokens += tc.ThoughtTokens
	t.count++
}

// Last returns the most recently recorded usage.
// The bool is false when nothing has been recorded.
func (t *Tracker) Last() (TokenCount, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.last, t.count > 0
}

// Total returns the aggregate usage across all responses.
func (t *Tracker) Total() TokenCount {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.total
}

// Count returns the number of recorded responses.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.count
}

// Reset clears all recorded usage.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last, t.total, t.count = TokenCount{}, TokenCount{}, 0
}
