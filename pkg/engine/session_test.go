package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/germanamz/nanobanana/pkg/chats/content"
	"github.com/germanamz/nanobanana/pkg/chats/role"
	"github.com/germanamz/nanobanana/pkg/chats/turn"
	"github.com/germanamz/nanobanana/pkg/modeladapter"
	"github.com/germanamz/nanobanana/pkg/providers/gemini"
	"github.com/germanamz/nanobanana/pkg/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const imgData = "iVBORw0KGgo="

// scriptedResponder replays fixed snapshots and records every request.
type scriptedResponder struct {
	mu       sync.Mutex
	requests []modeladapter.Request

	snapshots [][]content.Part
	openErr   error // returned by Stream
	finalErr  error // returned after the snapshots instead of io.EOF
	batch     []content.Part
	batchErr  error

	// beforeYield runs before snapshot i is returned.
	beforeYield func(i int)
}

func (r *scriptedResponder) record(req modeladapter.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requests = append(r.requests, req)
}

func (r *scriptedResponder) lastRequest() modeladapter.Request {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.requests[len(r.requests)-1]
}

func (r *scriptedResponder) requestCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.requests)
}

func (r *scriptedResponder) Stream(_ context.Context, req modeladapter.Request) (modeladapter.Stream, error) {
	r.record(req)
	if r.openErr != nil {
		return nil, r.openErr
	}
	return &scriptedStream{r: r}, nil
}

func (r *scriptedResponder) Generate(ctx context.Context, req modeladapter.Request) ([]content.Part, error) {
	r.record(req)
	if r.beforeYield != nil {
		r.beforeYield(0)
	}
	if ctx.Err() != nil {
		return nil, modeladapter.ErrCanceled
	}
	return content.Clone(r.batch), r.batchErr
}

type scriptedStream struct {
	r      *scriptedResponder
	pos    int
	closed bool
}

func (s *scriptedStream) Next(ctx context.Context) ([]content.Part, error) {
	if ctx.Err() != nil {
		return nil, modeladapter.ErrCanceled
	}
	if s.pos >= len(s.r.snapshots) {
		if s.r.finalErr != nil {
			return nil, s.r.finalErr
		}
		return nil, io.EOF
	}
	if s.r.beforeYield != nil {
		s.r.beforeYield(s.pos)
	}
	if ctx.Err() != nil {
		return nil, modeladapter.ErrCanceled
	}
	snap := s.r.snapshots[s.pos]
	s.pos++
	return content.Clone(snap), nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func newTestSession(t *testing.T, r modeladapter.Responder) *Session {
	t.Helper()

	s := newSession("test", r, settings.NewStore(settings.Default()), NewEventBus(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.SetAPIKey("key")
	return s
}

func txt(s string) content.Part     { return content.Text{Text: s} }
func thought(s string) content.Part { return content.Text{Text: s, Thought: true} }
func img() content.Inline           { return content.Inline{MediaType: "image/png", Data: imgData} }

// --- preconditions ---

func TestSend_SkipsWithoutAPIKey(t *testing.T) {
	r := &scriptedResponder{}
	s := newTestSession(t, r)
	s.SetAPIKey("")

	assert.Equal(t, OutcomeSkipped, s.Send(context.Background(), "hello"))
	assert.Equal(t, 0, s.Chat().Len())
	assert.Equal(t, 0, r.requestCount())
	assert.Equal(t, StateIdle, s.State())
}

func TestSend_SkipsEmptyInput(t *testing.T) {
	r := &scriptedResponder{}
	s := newTestSession(t, r)

	assert.Equal(t, OutcomeSkipped, s.Send(context.Background(), ""))
	assert.Equal(t, OutcomeSkipped, s.Send(context.Background(), "  \n "))
	assert.Equal(t, 0, s.Chat().Len())
}

func TestSend_SkipsWhileLoading(t *testing.T) {
	r := &scriptedResponder{}
	s := newTestSession(t, r)
	s.loading.Store(true)

	assert.Equal(t, OutcomeSkipped, s.Send(context.Background(), "hello"))
	assert.Equal(t, 0, s.Chat().Len())
	assert.True(t, s.Loading(), "a skipped send must not clear someone else's flag")
}

func TestSend_ConcurrentSendIsSkipped(t *testing.T) {
	blocking := &blockingResponder{opened: make(chan struct{})}
	s := newTestSession(t, blocking)

	done := make(chan Outcome, 1)
	go func() { done <- s.Send(context.Background(), "first") }()
	<-blocking.opened

	assert.True(t, s.Loading())
	assert.Equal(t, OutcomeSkipped, s.Send(context.Background(), "second"))
	assert.Equal(t, 2, s.Chat().Len())

	assert.True(t, s.Stop())
	assert.Equal(t, OutcomeCanceled, <-done)
	assert.False(t, s.Loading())
}

// --- orchestration ---

func TestSend_EndToEnd(t *testing.T) {
	snaps := [][]content.Part{
		{txt("Here")},
		{txt("Here is")},
		{txt("Here is it"), img()},
	}
	r := &scriptedResponder{snapshots: snaps}
	s := newTestSession(t, r)

	var sawPlaceholder bool
	r.beforeYield = func(i int) {
		if i == 0 {
			assert.Equal(t, 2, s.Chat().Len(), "user turn and placeholder are visible before any snapshot")
			last, _ := s.Chat().Last()
			sawPlaceholder = last.Role == role.Model && len(last.Parts) == 0
			assert.True(t, s.Loading())
		}
	}

	out := s.Send(context.Background(), "describe this", img())

	assert.Equal(t, OutcomeSucceeded, out)
	assert.True(t, sawPlaceholder)

	turns := s.Chat().Turns()
	require.Len(t, turns, 2)

	user := turns[0]
	assert.Equal(t, role.User, user.Role)
	assert.Equal(t, []content.Part{img(), txt("describe this")}, user.Parts)

	model := turns[1]
	assert.Equal(t, role.Model, model.Role)
	assert.Equal(t, snaps[2], model.Parts)
	assert.False(t, model.Err)

	assert.False(t, s.Loading())
	assert.Equal(t, StateSettled, s.State())
}

func TestSend_PlaceholderKeepsIdentity(t *testing.T) {
	r := &scriptedResponder{snapshots: [][]content.Part{{txt("a")}, {txt("ab")}}}
	s := newTestSession(t, r)

	var ids []string
	r.beforeYield = func(int) {
		last, _ := s.Chat().Last()
		ids = append(ids, last.ID)
	}

	s.Send(context.Background(), "hi")

	last, _ := s.Chat().Last()
	require.Len(t, ids, 2)
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[0], last.ID)
}

func TestSend_HistoryExcludesFreshTurnAndThoughts(t *testing.T) {
	r := &scriptedResponder{snapshots: [][]content.Part{{thought("hmm"), txt("first answer")}}}
	s := newTestSession(t, r)

	require.Equal(t, OutcomeSucceeded, s.Send(context.Background(), "one"))
	assert.Empty(t, r.lastRequest().History)
	assert.Equal(t, "one", r.lastRequest().Input.Text)

	require.Equal(t, OutcomeSucceeded, s.Send(context.Background(), "two"))

	hist := r.lastRequest().History
	require.Len(t, hist, 2)
	assert.Equal(t, "one", hist[0].TextContent())
	assert.Equal(t, []content.Part{txt("first answer")}, hist[1].Parts)
	assert.Equal(t, "two", r.lastRequest().Input.Text)

	// The log keeps the thought for display.
	assert.True(t, s.Chat().At(1).HasThought())
}

func TestSend_UsesCurrentSettingsAndKey(t *testing.T) {
	r := &scriptedResponder{snapshots: [][]content.Part{{txt("ok")}}}
	s := newTestSession(t, r)

	require.NoError(t, s.Settings().Update(func(st *settings.Settings) {
		st.Resolution = settings.Resolution4K
		st.Grounding = true
	}))
	s.SetAPIKey("other-key")

	s.Send(context.Background(), "hi")

	req := r.lastRequest()
	assert.Equal(t, settings.Resolution4K, req.Settings.Resolution)
	assert.True(t, req.Settings.Grounding)
	assert.Equal(t, "other-key", req.APIKey)
}

func TestSend_AttachmentOnly(t *testing.T) {
	r := &scriptedResponder{snapshots: [][]content.Part{{txt("nice")}}}
	s := newTestSession(t, r)

	assert.Equal(t, OutcomeSucceeded, s.Send(context.Background(), "", img()))
	assert.Equal(t, []content.Part{img()}, s.Chat().At(0).Parts)
}

func TestSend_ReasoningDurationFreezes(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	r := &scriptedResponder{snapshots: [][]content.Part{
		{thought("a")},
		{thought("ab")},
		{thought("ab"), txt("answer")},
		{thought("ab"), txt("answer"), thought("again")},
	}}
	s := newTestSession(t, r)
	s.nowFunc = clk.Now

	steps := []time.Duration{time.Second, time.Second, time.Second, 5 * time.Second}
	r.beforeYield = func(i int) { clk.advance(steps[i]) }

	require.Equal(t, OutcomeSucceeded, s.Send(context.Background(), "think"))

	last, _ := s.Chat().Last()
	assert.Equal(t, 2*time.Second, last.Reasoning)
}

func TestSend_NoThoughtsNoReasoning(t *testing.T) {
	r := &scriptedResponder{snapshots: [][]content.Part{{txt("plain")}}}
	s := newTestSession(t, r)

	s.Send(context.Background(), "hi")

	last, _ := s.Chat().Last()
	assert.Zero(t, last.Reasoning)
}

func TestSend_CancellationKeepsPartial(t *testing.T) {
	r := &scriptedResponder{snapshots: [][]content.Part{
		{txt("partial")},
		{txt("partial answer")},
		{txt("partial answer done")},
	}}
	s := newTestSession(t, r)

	r.beforeYield = func(i int) {
		if i == 1 {
			s.Stop()
		}
	}

	out := s.Send(context.Background(), "go")

	assert.Equal(t, OutcomeCanceled, out)
	last, _ := s.Chat().Last()
	assert.Equal(t, []content.Part{txt("partial")}, last.Parts)
	assert.False(t, last.Err)
	assert.False(t, s.Loading())
	assert.Equal(t, StateSettled, s.State())
	assert.False(t, s.Stop(), "cancel handle is released after settling")
}

func TestSend_ParentContextCanceled(t *testing.T) {
	r := &scriptedResponder{snapshots: [][]content.Part{{txt("a")}, {txt("ab")}}}
	s := newTestSession(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	r.beforeYield = func(i int) {
		if i == 1 {
			cancel()
		}
	}

	assert.Equal(t, OutcomeCanceled, s.Send(ctx, "go"))
	last, _ := s.Chat().Last()
	assert.Equal(t, []content.Part{txt("a")}, last.Parts)
}

func TestSend_FailureOnOpen(t *testing.T) {
	var buf bytes.Buffer
	r := &scriptedResponder{openErr: &modeladapter.APIError{StatusCode: 400, Message: "API key not valid"}}
	s := newTestSession(t, r)
	s.log = slog.New(slog.NewTextHandler(&buf, nil))

	out := s.Send(context.Background(), "hi")

	assert.Equal(t, OutcomeFailed, out)
	last, _ := s.Chat().Last()
	assert.True(t, last.Err)
	assert.Equal(t, []content.Part{txt("Error generating response: status 400: API key not valid")}, last.Parts)
	assert.False(t, s.Loading())
	assert.Contains(t, buf.String(), "send failed")
}

func TestSend_FailureMidStreamReplacesPartial(t *testing.T) {
	r := &scriptedResponder{
		snapshots: [][]content.Part{{txt("half")}},
		finalErr:  errors.New("connection reset"),
	}
	s := newTestSession(t, r)

	assert.Equal(t, OutcomeFailed, s.Send(context.Background(), "hi"))

	last, _ := s.Chat().Last()
	assert.True(t, last.Err)
	require.Len(t, last.Parts, 1)
	assert.Equal(t, "Error generating response: connection reset", last.TextContent())
}

func TestSend_FailedTurnStaysInHistory(t *testing.T) {
	r := &scriptedResponder{openErr: errors.New("boom")}
	s := newTestSession(t, r)
	s.Send(context.Background(), "one")

	r.openErr = nil
	r.snapshots = [][]content.Part{{txt("ok")}}
	s.Send(context.Background(), "two")

	hist := r.lastRequest().History
	require.Len(t, hist, 2)
	assert.Equal(t, role.Model, hist[1].Role)
}

func TestSend_Batch(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	r := &scriptedResponder{batch: []content.Part{thought("plan"), txt("done"), img()}}
	s := newTestSession(t, r)
	s.nowFunc = clk.Now
	require.NoError(t, s.Settings().Update(func(st *settings.Settings) { st.Streaming = false }))

	r.beforeYield = func(int) { clk.advance(3 * time.Second) }

	out := s.Send(context.Background(), "draw")

	assert.Equal(t, OutcomeSucceeded, out)
	last, _ := s.Chat().Last()
	assert.Equal(t, []content.Part{thought("plan"), txt("done"), img()}, last.Parts)
	assert.Equal(t, 3*time.Second, last.Reasoning)
}

func TestSend_BatchFailure(t *testing.T) {
	r := &scriptedResponder{batchErr: &modeladapter.APIError{Message: "no content generated"}}
	s := newTestSession(t, r)
	require.NoError(t, s.Settings().Update(func(st *settings.Settings) { st.Streaming = false }))

	assert.Equal(t, OutcomeFailed, s.Send(context.Background(), "draw"))
	last, _ := s.Chat().Last()
	assert.Equal(t, "Error generating response: no content generated", last.TextContent())
}

func TestSend_BatchCanceled(t *testing.T) {
	r := &scriptedResponder{batch: []content.Part{txt("late")}}
	s := newTestSession(t, r)
	require.NoError(t, s.Settings().Update(func(st *settings.Settings) { st.Streaming = false }))
	r.beforeYield = func(int) { s.Stop() }

	assert.Equal(t, OutcomeCanceled, s.Send(context.Background(), "draw"))
	last, _ := s.Chat().Last()
	assert.Empty(t, last.Parts)
	assert.False(t, last.Err)
}

func TestSend_PublishesEvents(t *testing.T) {
	r := &scriptedResponder{snapshots: [][]content.Part{{txt("a")}, {txt("ab")}}}
	s := newTestSession(t, r)

	sub := s.events.Subscribe(32)
	defer s.events.Unsubscribe(sub)

	s.Send(context.Background(), "hi")

	var kinds []EventKind
	var settled Event
	for len(sub.C) > 0 {
		ev := <-sub.C
		kinds = append(kinds, ev.Kind)
		if ev.Kind == EventSendSettled {
			settled = ev
		}
	}

	assert.Equal(t, []EventKind{
		EventLoadingChanged,
		EventTurnAppended,
		EventTurnAppended,
		EventTurnUpdated,
		EventTurnUpdated,
		EventLoadingChanged,
		EventSendSettled,
	}, kinds)
	assert.Equal(t, OutcomeSucceeded, settled.Data)
}

func TestSend_EventTimestampsFollowClock(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	r := &scriptedResponder{snapshots: [][]content.Part{{txt("a")}}}
	s := newTestSession(t, r)
	s.nowFunc = clk.Now

	sub := s.events.Subscribe(32)
	defer s.events.Unsubscribe(sub)

	s.Send(context.Background(), "hi")

	require.NotEmpty(t, sub.C)
	for len(sub.C) > 0 {
		assert.Equal(t, clk.now, (<-sub.C).Timestamp)
	}
}

func TestSend_LateThoughtRecordsNoReasoning(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	r := &scriptedResponder{snapshots: [][]content.Part{
		{txt("answer")},
		{txt("answer"), thought("late")},
	}}
	s := newTestSession(t, r)
	s.nowFunc = clk.Now
	r.beforeYield = func(int) { clk.advance(3 * time.Second) }

	require.Equal(t, OutcomeSucceeded, s.Send(context.Background(), "hi"))

	last, _ := s.Chat().Last()
	assert.Zero(t, last.Reasoning)
}

// --- log integrity while a send is in flight ---

func TestDeleteTurn_RefusedWhileLoading(t *testing.T) {
	r := &scriptedResponder{snapshots: [][]content.Part{
		{thought("t")},
		{thought("t"), txt("answer")},
	}}
	s := newTestSession(t, r)

	var deleted bool
	r.beforeYield = func(i int) {
		if i != 1 {
			return
		}
		last, _ := s.Chat().Last()
		deleted = s.DeleteTurn(last.ID)
	}

	require.Equal(t, OutcomeSucceeded, s.Send(context.Background(), "q"))
	assert.False(t, deleted)

	turns := s.Chat().Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, role.User, turns[0].Role)
	assert.Equal(t, []content.Part{txt("q")}, turns[0].Parts)
	assert.Equal(t, []content.Part{thought("t"), txt("answer")}, turns[1].Parts)

	for _, h := range s.Chat().History() {
		for _, p := range h.Parts {
			assert.False(t, content.IsThought(p))
		}
	}
}

func TestSend_ClearMidStreamDropsLaterSnapshots(t *testing.T) {
	r := &scriptedResponder{snapshots: [][]content.Part{
		{txt("a")},
		{thought("t"), txt("ab")},
	}}
	s := newTestSession(t, r)
	r.beforeYield = func(i int) {
		if i == 1 {
			s.Clear()
		}
	}

	s.Send(context.Background(), "q")

	assert.Equal(t, 0, s.Chat().Len())
	assert.Empty(t, s.Chat().History())
}

func TestSend_FailureAfterClearLeavesLogEmpty(t *testing.T) {
	r := &scriptedResponder{
		snapshots: [][]content.Part{{txt("a")}},
		finalErr:  errors.New("boom"),
	}
	s := newTestSession(t, r)
	r.beforeYield = func(int) { s.Clear() }

	assert.Equal(t, OutcomeFailed, s.Send(context.Background(), "q"))
	assert.Equal(t, 0, s.Chat().Len())
}

// --- Gemini streaming failures surface as error turns ---

func newGeminiSession(t *testing.T, body string) *Session {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	a := gemini.New(srv.URL, "")
	a.Client = srv.Client()

	return newTestSession(t, a)
}

func TestSend_GeminiErrorEventFails(t *testing.T) {
	s := newGeminiSession(t, "data: {\"error\":{\"code\":500,\"message\":\"internal\"}}\n\n")

	assert.Equal(t, OutcomeFailed, s.Send(context.Background(), "draw"))

	last, _ := s.Chat().Last()
	assert.True(t, last.Err)
	assert.Equal(t, []content.Part{txt(ErrorPrefix + "status 500: internal")}, last.Parts)
}

func TestSend_GeminiEmptyStreamFails(t *testing.T) {
	s := newGeminiSession(t, "data: {\"usageMetadata\":{\"promptTokenCount\":3}}\n\n")

	assert.Equal(t, OutcomeFailed, s.Send(context.Background(), "draw"))

	last, _ := s.Chat().Last()
	assert.True(t, last.Err)
	assert.Equal(t, role.Model, last.Role)
	assert.Equal(t, []content.Part{txt(ErrorPrefix + "no content generated")}, last.Parts)
}

// --- regeneration ---

// seed fills the log with completed exchanges without calling a responder.
func seed(s *Session, turns ...turn.Turn) {
	s.chat.Append(turns...)
}

func TestRegenerate_ModelTarget(t *testing.T) {
	r := &scriptedResponder{snapshots: [][]content.Part{{txt("new answer")}}}
	s := newTestSession(t, r)

	u0 := turn.New(role.User, txt("first"))
	m0 := turn.New(role.Model, txt("first answer"))
	u1 := turn.New(role.User, img(), txt("second"))
	m1 := turn.New(role.Model, thought("t"), txt("second answer"))
	seed(s, u0, m0, u1, m1)

	out := s.Regenerate(context.Background(), m1.ID)

	assert.Equal(t, OutcomeSucceeded, out)

	turns := s.Chat().Turns()
	require.Len(t, turns, 4)
	assert.Equal(t, u0.ID, turns[0].ID)
	assert.Equal(t, m0.ID, turns[1].ID)
	assert.NotEqual(t, u1.ID, turns[2].ID, "a fresh user turn is appended")
	assert.Equal(t, []content.Part{img(), txt("second")}, turns[2].Parts)
	assert.Equal(t, []content.Part{txt("new answer")}, turns[3].Parts)

	req := r.lastRequest()
	require.Len(t, req.History, 2)
	assert.Equal(t, u0.ID, req.History[0].ID)
	assert.Equal(t, m0.ID, req.History[1].ID)
	assert.Equal(t, "second", req.Input.Text)
	assert.Equal(t, []content.Inline{img()}, req.Input.Attachments)
}

func TestRegenerate_UserTarget(t *testing.T) {
	r := &scriptedResponder{snapshots: [][]content.Part{{txt("again")}}}
	s := newTestSession(t, r)

	u0 := turn.New(role.User, txt("first"))
	m0 := turn.New(role.Model, txt("answer"))
	seed(s, u0, m0)

	assert.Equal(t, OutcomeSucceeded, s.Regenerate(context.Background(), u0.ID))

	turns := s.Chat().Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "first", turns[0].TextContent())
	assert.Equal(t, "again", turns[1].TextContent())
	assert.Empty(t, r.lastRequest().History)
}

func TestRegenerate_StripsAttachmentMetadata(t *testing.T) {
	r := &scriptedResponder{snapshots: [][]content.Part{{txt("ok")}}}
	s := newTestSession(t, r)

	u := turn.New(role.User, content.Inline{MediaType: "image/jpeg", Data: imgData, Signature: "sig"}, txt("a"), txt("b"))
	seed(s, u)

	s.Regenerate(context.Background(), u.ID)

	req := r.lastRequest()
	assert.Equal(t, "a", req.Input.Text, "only the first text part is resent")
	assert.Equal(t, []content.Inline{{MediaType: "image/jpeg", Data: imgData}}, req.Input.Attachments)
}

func TestRegenerate_ModelWithoutPrecedingUser(t *testing.T) {
	r := &scriptedResponder{}
	s := newTestSession(t, r)

	u0 := turn.New(role.User, txt("q"))
	m0 := turn.New(role.Model, txt("a"))
	seed(s, u0, m0)
	s.DeleteTurn(u0.ID)

	assert.Equal(t, OutcomeSkipped, s.Regenerate(context.Background(), m0.ID))
	assert.Equal(t, 1, s.Chat().Len())
	assert.Equal(t, 0, r.requestCount())
}

func TestRegenerate_FirstTurnIsModel(t *testing.T) {
	s := newTestSession(t, &scriptedResponder{})
	m := turn.New(role.Model, txt("a"))
	seed(s, m)

	assert.Equal(t, OutcomeSkipped, s.Regenerate(context.Background(), m.ID))
}

func TestRegenerate_UnknownTurn(t *testing.T) {
	s := newTestSession(t, &scriptedResponder{})
	seed(s, turn.New(role.User, txt("q")))

	assert.Equal(t, OutcomeSkipped, s.Regenerate(context.Background(), "missing"))
	assert.Equal(t, 1, s.Chat().Len())
}

func TestRegenerate_WhileLoading(t *testing.T) {
	s := newTestSession(t, &scriptedResponder{})
	u := turn.New(role.User, txt("q"))
	seed(s, u)
	s.loading.Store(true)

	assert.Equal(t, OutcomeSkipped, s.Regenerate(context.Background(), u.ID))
	assert.Equal(t, 1, s.Chat().Len())
}

func TestRegenerate_NoKeyLeavesLogIntact(t *testing.T) {
	s := newTestSession(t, &scriptedResponder{})
	u := turn.New(role.User, txt("q"))
	m := turn.New(role.Model, txt("a"))
	seed(s, u, m)
	s.SetAPIKey("")

	assert.Equal(t, OutcomeSkipped, s.Regenerate(context.Background(), m.ID))
	assert.Equal(t, 2, s.Chat().Len())
}

// --- log edits ---

func TestDeleteTurn(t *testing.T) {
	s := newTestSession(t, &scriptedResponder{})
	u := turn.New(role.User, txt("q"))
	seed(s, u)

	sub := s.events.Subscribe(4)
	defer s.events.Unsubscribe(sub)

	assert.True(t, s.DeleteTurn(u.ID))
	assert.False(t, s.DeleteTurn(u.ID))
	assert.Equal(t, 0, s.Chat().Len())

	ev := <-sub.C
	assert.Equal(t, EventTurnDeleted, ev.Kind)
	assert.Equal(t, u.ID, ev.TurnID)
	assert.Empty(t, sub.C)
}

func TestClear(t *testing.T) {
	s := newTestSession(t, &scriptedResponder{})
	seed(s, turn.New(role.User, txt("q")), turn.New(role.Model, txt("a")))

	sub := s.events.Subscribe(4)
	defer s.events.Unsubscribe(sub)

	s.Clear()

	assert.Equal(t, 0, s.Chat().Len())
	assert.Equal(t, EventLogCleared, (<-sub.C).Kind)
}

func TestStop_NothingInFlight(t *testing.T) {
	s := newTestSession(t, &scriptedResponder{})
	assert.False(t, s.Stop())
}

func TestSetAPIKey_TrimsAndRemoves(t *testing.T) {
	s := newTestSession(t, &scriptedResponder{})

	s.SetAPIKey("  abc \n")
	assert.Equal(t, "abc", s.APIKey())

	s.SetAPIKey("")
	assert.Empty(t, s.APIKey())
}

func TestStateAndOutcomeStrings(t *testing.T) {
	assert.Equal(t, "awaiting-first-fragment", StateAwaitingFirstFragment.String())
	assert.Equal(t, "state(42)", State(42).String())
	assert.Equal(t, "canceled", OutcomeCanceled.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}
