package modeladapter

import (
	"io"
	"iter"

	sse "github.com/tmaxmax/go-sse"
)

// maxEventSize bounds a single server-sent event. Inline image payloads at
// the largest resolution tier are tens of megabytes once base64 encoded.
const maxEventSize = 64 << 20

// EventReader pulls the data payloads of a text/event-stream body one event
// at a time. Multi-line data fields arrive joined with "\n"; comments and
// events without data are skipped by the parser.
type EventReader struct {
	next func() (sse.Event, error, bool)
	stop func()
}

// NewEventReader wraps r. Call Close to release the parser when the body is
// abandoned before the end.
func NewEventReader(r io.Reader) *EventReader {
	seq := iter.Seq2[sse.Event, error](sse.Read(r, &sse.ReadConfig{MaxEventSize: maxEventSize}))
	next, stop := iter.Pull2(seq)
	return &EventReader{next: next, stop: stop}
}

// Next returns the data of the next complete event, or io.EOF once the body
// ends.
func (e *EventReader) Next() ([]byte, error) {
	ev, err, ok := e.next()
	if !ok {
		return nil, io.EOF
	}
	if err != nil {
		e.stop()
		return nil, err
	}
	return []byte(ev.Data), nil
}

// Close stops the parser. It is safe to call more than once.
func (e *EventReader) Close() { e.stop() }
