package modeladapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/germanamz/nanobanana/pkg/chats/content"
	"github.com/germanamz/nanobanana/pkg/chats/turn"
	"github.com/germanamz/nanobanana/pkg/settings"
)

// ErrCanceled is returned by a Stream or Responder when the caller raised the
// cancellation signal. It matches context.Canceled through errors.Is.
var ErrCanceled = fmt.Errorf("modeladapter: generation canceled: %w", context.Canceled)

// IsCanceled reports whether err represents a caller-requested cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// APIError is a non-rate-limit failure reported by the endpoint, or a
// response that could not be interpreted.
type APIError struct {
	StatusCode int // Zero when the failure is not tied to an HTTP status.
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
	}
	return e.Message
}

// Input is the content of a fresh user turn.
type Input struct {
	Text        string
	Attachments []content.Inline
}

// Empty reports whether the input has neither non-blank text nor attachments.
func (in Input) Empty() bool {
	return strings.TrimSpace(in.Text) == "" && len(in.Attachments) == 0
}

// Request carries everything needed to produce one model turn. History must
// already be filtered of thought parts; it never includes the fresh turn.
type Request struct {
	APIKey   string
	History  []turn.Turn
	Input    Input
	Settings settings.Settings
}

// Stream yields successive snapshots of the model turn being generated.
// Every snapshot is the full accumulated part list, not a delta.
type Stream interface {
	// Next returns the next snapshot. It returns io.EOF once the response is
	// complete, ErrCanceled when ctx is canceled, and any other error on
	// failure.
	Next(ctx context.Context) ([]content.Part, error)
	Close() error
}

// Responder produces model turns from a request.
type Responder interface {
	// Stream opens a streaming generation.
	Stream(ctx context.Context, req Request) (Stream, error)
	// Generate performs a single non-streaming call and returns the full
	// part list.
	Generate(ctx context.Context, req Request) ([]content.Part, error)
}

// SliceStream is a Stream over precomputed snapshots. It is mostly useful in
// tests and for adapting batch responses to the streaming contract.
type SliceStream struct {
	Snapshots [][]content.Part
	Err       error // Returned after the snapshots instead of io.EOF when set.

	pos    int
	closed bool
}

var _ Stream = (*SliceStream)(nil)

// Next implements Stream.
func (s *SliceStream) Next(ctx context.Context) ([]content.Part, error) {
	if ctx.Err() != nil {
		return nil, ErrCanceled
	}
	if s.closed {
		return nil, errStreamClosed
	}
	if s.pos < len(s.Snapshots) {
		snap := s.Snapshots[s.pos]
		s.pos++
		return content.Clone(snap), nil
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return nil, io.EOF
}

// Close implements Stream.
func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}

var errStreamClosed = errors.New("modeladapter: stream closed")
