// Package turn defines the Turn type, one message in a conversation log.
package turn

import (
	"strings"
	"time"

	"github.com/germanamz/nanobanana/pkg/chats/content"
	"github.com/germanamz/nanobanana/pkg/chats/role"
	"github.com/google/uuid"
)

// Turn is one exchange unit authored by the user or the model. The ID is
// assigned at creation and stays the same for the turn's whole lifetime,
// including every in-place update of a streaming model turn.
type Turn struct {
	ID        string
	Role      role.Role
	Parts     []content.Part
	CreatedAt time.Time
	// Err marks a model turn whose generation failed.
	Err bool
	// Reasoning is the duration of the initial reasoning phase. It is only
	// set on model turns that contain a thought part.
	Reasoning time.Duration
}

// New creates a Turn with a fresh identifier and the current time.
func New(r role.Role, parts ...content.Part) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      r,
		Parts:     parts,
		CreatedAt: time.Now(),
	}
}

// WithParts returns a copy of t whose part list is replaced by a copy of
// parts. The receiver is not modified.
func (t Turn) WithParts(parts []content.Part) Turn {
	t.Parts = content.Clone(parts)
	return t
}

// TextContent concatenates the text of all non-thought text parts.
func (t Turn) TextContent() string {
	var sb strings.Builder
	for _, p := range t.Parts {
		if tp, ok := p.(content.Text); ok && !tp.Thought {
			sb.WriteString(tp.Text)
		}
	}
	return sb.String()
}

// ThoughtContent concatenates the text of all thought parts.
func (t Turn) ThoughtContent() string {
	var sb strings.Builder
	for _, p := range t.Parts {
		if tp, ok := p.(content.Text); ok && tp.Thought {
			sb.WriteString(tp.Text)
		}
	}
	return sb.String()
}

// FirstText returns the text of the first text part, or "" when there is
// none.
func (t Turn) FirstText() string {
	for _, p := range t.Parts {
		if tp, ok := p.(content.Text); ok {
			return tp.Text
		}
	}
	return ""
}

// Attachments returns the inline parts of the turn in order.
func (t Turn) Attachments() []content.Inline {
	var out []content.Inline
	for _, p := range t.Parts {
		if ip, ok := p.(content.Inline); ok {
			out = append(out, ip)
		}
	}
	return out
}

// HasThought reports whether any part of the turn is a thought.
func (t Turn) HasThought() bool {
	for _, p := range t.Parts {
		if content.IsThought(p) {
			return true
		}
	}
	return false
}

// ReasoningSeconds returns the reasoning duration in seconds.
func (t Turn) ReasoningSeconds() float64 {
	return t.Reasoning.Seconds()
}
