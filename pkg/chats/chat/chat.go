// Package chat provides the mutable conversation log.
//
// The log is at the same time the view-model read by frontends and the
// source of the payload resent to the model on every turn.
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/germanamz/nanobanana/pkg/chats/content"
	"github.com/germanamz/nanobanana/pkg/chats/role"
	"github.com/germanamz/nanobanana/pkg/chats/turn"
)

// Chat is an ordered, mutable sequence of turns. The zero value is ready to
// use. Chat supports a single writer and any number of concurrent readers;
// every mutation bumps Version and wakes goroutines blocked in Wait.
type Chat struct {
	mu      sync.RWMutex
	turns   []turn.Turn
	version uint64
	changed chan struct{}
}

// New creates a Chat pre-populated with the given turns.
func New(turns ...turn.Turn) *Chat {
	return &Chat{turns: turns}
}

// Append adds turns to the end of the log.
func (c *Chat) Append(turns ...turn.Turn) {
	if len(turns) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = append(c.turns, turns...)
	c.bump()
}

// UpdateOption adjusts the final turn during UpdateLast.
type UpdateOption func(*turn.Turn)

// WithError sets the error flag of the updated turn.
func WithError(failed bool) UpdateOption {
	return func(t *turn.Turn) { t.Err = failed }
}

// WithReasoning sets the reasoning duration of the updated turn. A zero
// duration leaves the current value untouched.
func WithReasoning(d time.Duration) UpdateOption {
	return func(t *turn.Turn) {
		if d > 0 {
			t.Reasoning = d
		}
	}
}

// UpdateLast replaces the part list of the final turn wholesale and applies
// opts. The final turn is replaced by a new Turn value with the same
// identifier. It is a no-op when the log is empty.
func (c *Chat) UpdateLast(parts []content.Part, opts ...UpdateOption) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.updateLastLocked("", parts, opts)
}

// UpdateLastOf is UpdateLast restricted to a final turn with the given
// identifier. It reports whether the update was applied; once the turn has
// been deleted or the log cleared, updates for it are dropped.
func (c *Chat) UpdateLastOf(id string, parts []content.Part, opts ...UpdateOption) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.updateLastLocked(id, parts, opts)
}

func (c *Chat) updateLastLocked(id string, parts []content.Part, opts []UpdateOption) bool {
	n := len(c.turns)
	if n == 0 {
		return false
	}
	if id != "" && c.turns[n-1].ID != id {
		return false
	}

	next := c.turns[n-1].WithParts(parts)
	for _, opt := range opts {
		opt(&next)
	}

	c.turns[n-1] = next
	c.bump()
	return true
}

// Delete removes the turn with the given identifier and reports whether it
// was found. Other turns keep their identifiers and order.
func (c *Chat) Delete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id)
	if i < 0 {
		return false
	}

	c.turns = append(c.turns[:i:i], c.turns[i+1:]...)
	c.bump()
	return true
}

// TruncateAfter keeps turns [0, index] and drops the rest. A negative index
// empties the log; an index past the end leaves it unchanged.
func (c *Chat) TruncateAfter(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keep := max(index+1, 0)
	if keep >= len(c.turns) {
		return
	}

	c.turns = c.turns[:keep:keep]
	c.bump()
}

// Clear empties the log.
func (c *Chat) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = nil
	c.bump()
}

// Len returns the number of turns in the log.
func (c *Chat) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.turns)
}

// At returns the turn at the given index.
// It panics if the index is out of range.
func (c *Chat) At(index int) turn.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.turns[index]
}

// Last returns the most recent turn and true, or a zero Turn and false if
// the log is empty.
func (c *Chat) Last() (turn.Turn, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.turns) == 0 {
		return turn.Turn{}, false
	}
	return c.turns[len(c.turns)-1], true
}

// Turns returns a copy of all turns in the log.
func (c *Chat) Turns() []turn.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cp := make([]turn.Turn, len(c.turns))
	copy(cp, c.turns)
	return cp
}

// Index returns the position of the turn with the given identifier, or -1.
func (c *Chat) Index(id string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.indexLocked(id)
}

// Get returns the turn with the given identifier.
func (c *Chat) Get(id string) (turn.Turn, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := c.indexLocked(id)
	if i < 0 {
		return turn.Turn{}, false
	}
	return c.turns[i], true
}

// History derives the payload resent to the model: thought parts are removed
// from model turns, turns left without parts are dropped, and order is
// preserved. It is computed fresh on every call.
func (c *Chat) History() []turn.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]turn.Turn, 0, len(c.turns))
	for _, t := range c.turns {
		parts := t.Parts
		if t.Role == role.Model {
			parts = content.Visible(parts)
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, t.WithParts(parts))
	}
	return out
}

// Version returns a counter incremented on every mutation.
func (c *Chat) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.version
}

// Wait blocks until the log's version exceeds since or ctx is done. It
// returns the current version.
func (c *Chat) Wait(ctx context.Context, since uint64) (uint64, error) {
	for {
		c.mu.Lock()
		if c.version > since {
			v := c.version
			c.mu.Unlock()
			return v, nil
		}
		if c.changed == nil {
			c.changed = make(chan struct{})
		}
		ch := c.changed
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return c.Version(), ctx.Err()
		case <-ch:
		}
	}
}

func (c *Chat) indexLocked(id string) int {
	for i, t := range c.turns {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// bump must be called with mu held.
func (c *Chat) bump() {
	c.version++
	if c.changed != nil {
		close(c.changed)
		c.changed = nil
	}
}
