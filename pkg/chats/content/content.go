// Package content defines the content parts of a conversation turn.
package content

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// Part is a piece of content within a turn. Exactly two kinds exist: [Text]
// and [Inline]. A part never mixes text and binary payloads.
type Part interface {
	PartKind() string
}

// Text is a text content part. Thought marks it as part of the model's
// reasoning trace rather than the visible answer. Signature is the opaque
// continuation token issued by the model; it is forwarded verbatim and never
// interpreted.
type Text struct {
	Text      string
	Thought   bool
	Signature string
}

func (t Text) PartKind() string { return "text" }

// Inline is an inline binary part (typically an image) carried as a MIME type
// and a base64-encoded payload. Inline parts are complete, independently
// decodable units and are never merged with other parts.
type Inline struct {
	MediaType string
	Data      string // standard base64
	Thought   bool
	Signature string
}

func (i Inline) PartKind() string { return "inline" }

// ErrMissingMediaType is returned by [Inline.Validate] when no MIME type is set.
var ErrMissingMediaType = errors.New("content: inline part has no media type")

// Validate checks that the part has a MIME type and a well-formed, non-empty
// base64 payload.
func (i Inline) Validate() error {
	if i.MediaType == "" {
		return ErrMissingMediaType
	}
	if i.Data == "" {
		return fmt.Errorf("content: inline part %s has an empty payload", i.MediaType)
	}
	if _, err := base64.StdEncoding.DecodeString(i.Data); err != nil {
		return fmt.Errorf("content: inline part %s: malformed payload: %w", i.MediaType, err)
	}
	return nil
}

// Bytes decodes the base64 payload.
func (i Inline) Bytes() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(i.Data)
	if err != nil {
		return nil, fmt.Errorf("content: decode %s payload: %w", i.MediaType, err)
	}
	return b, nil
}

// Size returns the decoded payload size in bytes without decoding it.
func (i Inline) Size() int {
	return base64.StdEncoding.DecodedLen(len(i.Data)) - paddingLen(i.Data)
}

func paddingLen(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0 && n < 2 && s[i] == '='; i-- {
		n++
	}
	return n
}

// NewInline builds an Inline part from raw bytes.
func NewInline(mediaType string, data []byte) Inline {
	return Inline{
		MediaType: mediaType,
		Data:      base64.StdEncoding.EncodeToString(data),
	}
}

// IsThought reports whether p belongs to the model's reasoning trace.
func IsThought(p Part) bool {
	switch v := p.(type) {
	case Text:
		return v.Thought
	case Inline:
		return v.Thought
	}
	return false
}

// SignatureOf returns the continuation token carried by p, if any.
func SignatureOf(p Part) string {
	switch v := p.(type) {
	case Text:
		return v.Signature
	case Inline:
		return v.Signature
	}
	return ""
}

// Visible returns the parts of ps that are not thoughts, preserving order.
// The result is nil when nothing remains.
func Visible(ps []Part) []Part {
	var out []Part
	for _, p := range ps {
		if !IsThought(p) {
			out = append(out, p)
		}
	}
	return out
}

// Clone returns a shallow copy of ps. Parts are values, so the copy shares
// no mutable state with ps.
func Clone(ps []Part) []Part {
	if ps == nil {
		return nil
	}
	cp := make([]Part, len(ps))
	copy(cp, ps)
	return cp
}
