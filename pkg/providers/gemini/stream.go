package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/germanamz/nanobanana/pkg/chats/content"
	"github.com/germanamz/nanobanana/pkg/chats/fragment"
	"github.com/germanamz/nanobanana/pkg/modeladapter"
	"github.com/germanamz/nanobanana/pkg/modeladapter/usage"
)

var _ modeladapter.Stream = (*eventStream)(nil)

// eventStream turns a streamGenerateContent SSE body into accumulated
// snapshots. Each event is decoded in full before any of its parts are merged.
type eventStream struct {
	body    io.ReadCloser
	events  *modeladapter.EventReader
	merger  fragment.Merger
	tracker *usage.Tracker
	last    *apiUsageMeta

	closeOnce sync.Once
	done      bool
}

func newEventStream(body io.ReadCloser, tracker *usage.Tracker) *eventStream {
	return &eventStream{
		body:    body,
		events:  modeladapter.NewEventReader(body),
		tracker: tracker,
	}
}

// Next implements modeladapter.Stream.
func (s *eventStream) Next(ctx context.Context) ([]content.Part, error) {
	if s.done {
		return nil, io.EOF
	}

	for {
		if ctx.Err() != nil {
			_ = s.Close()
			return nil, modeladapter.ErrCanceled
		}

		data, err := s.events.Next()
		if errors.Is(err, io.EOF) {
			s.finish()
			if s.merger.Len() == 0 {
				return nil, errNoContent()
			}
			return nil, io.EOF
		}
		if err != nil {
			_ = s.Close()
			if ctx.Err() != nil {
				return nil, modeladapter.ErrCanceled
			}
			return nil, fmt.Errorf("gemini: read stream: %w", err)
		}

		var chunk apiResponse
		if err := json.Unmarshal(data, &chunk); err != nil {
			_ = s.Close()
			return nil, &modeladapter.APIError{Message: fmt.Sprintf("malformed stream event: %v", err)}
		}

		if chunk.UsageMetadata != nil {
			s.last = chunk.UsageMetadata
		}
		if chunk.Error != nil {
			_ = s.Close()
			return nil, chunk.Error.err()
		}

		if len(chunk.Candidates) == 0 {
			continue
		}

		if c := chunk.Candidates[0].Content; c != nil {
			if err := ingest(&s.merger, c.Parts); err != nil {
				_ = s.Close()
				return nil, err
			}
		}

		return s.merger.Parts(), nil
	}
}

// finish records the final usage report and releases the body.
func (s *eventStream) finish() {
	s.done = true
	if s.last != nil && s.tracker != nil {
		s.tracker.Add(s.last.tokenCount())
		s.last = nil
	}
	_ = s.Close()
}

// Close implements modeladapter.Stream.
func (s *eventStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.events.Close()
		err = s.body.Close()
	})
	return err
}
