// Package fragment models the raw pieces a model response arrives in and
// folds them into the minimal ordered list of content parts.
//
// Adjacent text fragments of the same kind (thought or answer) are coalesced
// into one part; inline binary fragments always start a new part.
package fragment

import (
	"fmt"

	"github.com/germanamz/nanobanana/pkg/chats/content"
)

// Kind discriminates the payload carried by a Fragment.
type Kind int

const (
	KindText Kind = iota + 1
	KindInline
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInline:
		return "inline"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Fragment is one incoming piece of a response. Exactly one payload is
// meaningful: Text for KindText, MediaType and Data for KindInline.
type Fragment struct {
	Kind      Kind
	Text      string
	MediaType string
	Data      string // standard base64
	Thought   bool
	Signature string
}

// Text returns a text fragment.
func Text(s string, thought bool) Fragment {
	return Fragment{Kind: KindText, Text: s, Thought: thought}
}

// Inline returns an inline binary fragment.
func Inline(mediaType, data string, thought bool) Fragment {
	return Fragment{Kind: KindInline, MediaType: mediaType, Data: data, Thought: thought}
}

// WithSignature returns a copy of f carrying the given continuation token.
func (f Fragment) WithSignature(sig string) Fragment {
	f.Signature = sig
	return f
}

// Validate reports whether f is a well-formed fragment. Inline fragments must
// carry a MIME type and a decodable payload.
func (f Fragment) Validate() error {
	switch f.Kind {
	case KindText:
		return nil
	case KindInline:
		if err := f.inline().Validate(); err != nil {
			return fmt.Errorf("fragment: %w", err)
		}
		return nil
	}
	return fmt.Errorf("fragment: unknown kind %s", f.Kind)
}

func (f Fragment) inline() content.Inline {
	return content.Inline{
		MediaType: f.MediaType,
		Data:      f.Data,
		Thought:   f.Thought,
		Signature: f.Signature,
	}
}

// Merge folds f into parts and returns the updated list. The input slice is
// never modified; the last element is replaced when text is coalesced.
func Merge(parts []content.Part, f Fragment) []content.Part {
	out := make([]content.Part, len(parts), len(parts)+1)
	copy(out, parts)

	if f.Kind == KindInline {
		return append(out, f.inline())
	}

	if n := len(out); n > 0 {
		if last, ok := out[n-1].(content.Text); ok && last.Thought == f.Thought {
			last.Text += f.Text
			if f.Signature != "" {
				last.Signature = f.Signature
			}
			out[n-1] = last
			return out
		}
	}

	return append(out, content.Text{
		Text:      f.Text,
		Thought:   f.Thought,
		Signature: f.Signature,
	})
}

// Merger accumulates fragments of a single response. The zero value is ready
// to use. Merger is not safe for concurrent use.
type Merger struct {
	parts       []content.Part
	sawThought  bool
	thoughtDone bool
}

// Add folds f into the accumulated parts.
func (m *Merger) Add(f Fragment) {
	m.parts = Merge(m.parts, f)

	if f.Thought {
		m.sawThought = true
	} else if m.sawThought {
		m.thoughtDone = true
	}
}

// Parts returns a copy of the accumulated parts.
func (m *Merger) Parts() []content.Part {
	return content.Clone(m.parts)
}

// Len returns the number of accumulated parts.
func (m *Merger) Len() int { return len(m.parts) }

// ThoughtClosed reports whether a non-thought fragment has followed a thought
// fragment, which ends the initial reasoning phase.
func (m *Merger) ThoughtClosed() bool { return m.thoughtDone }

// Reset discards all accumulated state.
func (m *Merger) Reset() {
	*m = Merger{}
}
