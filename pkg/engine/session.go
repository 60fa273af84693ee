package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/germanamz/nanobanana/pkg/chats/chat"
	"github.com/germanamz/nanobanana/pkg/chats/content"
	"github.com/germanamz/nanobanana/pkg/chats/role"
	"github.com/germanamz/nanobanana/pkg/chats/turn"
	"github.com/germanamz/nanobanana/pkg/modeladapter"
	"github.com/germanamz/nanobanana/pkg/settings"
)

// ErrorPrefix starts the text of the synthetic part that replaces a failed
// model turn.
const ErrorPrefix = "Error generating response: "

// Session represents one conversation. It is the only writer of its chat.
// Only one send may be in flight at a time; the loading flag gates the rest.
type Session struct {
	id        string
	chat      *chat.Chat
	settings  *settings.Store
	responder modeladapter.Responder
	events    *EventBus
	log       *slog.Logger

	loading atomic.Bool
	state   atomic.Int32

	mu     sync.Mutex
	apiKey string
	cancel context.CancelFunc

	// nowFunc is used for testing; defaults to time.Now.
	nowFunc func() time.Time
}

func newSession(id string, r modeladapter.Responder, st *settings.Store, events *EventBus, log *slog.Logger) *Session {
	return &Session{
		id:        id,
		chat:      chat.New(),
		settings:  st,
		responder: r,
		events:    events,
		log:       log,
		nowFunc:   time.Now,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Chat returns the conversation log for observation (Turns, Wait). Callers
// must not mutate it; use the Session methods instead.
func (s *Session) Chat() *chat.Chat { return s.chat }

// Settings returns the settings store read on every send.
func (s *Session) Settings() *settings.Store { return s.settings }

// Loading reports whether a send is in flight.
func (s *Session) Loading() bool { return s.loading.Load() }

// State returns the phase of the current or most recent send.
func (s *Session) State() State { return State(s.state.Load()) }

// APIKey returns the key sent with every request.
func (s *Session) APIKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.apiKey
}

// SetAPIKey replaces the key. An empty key removes it, which makes every
// subsequent send a no-op.
func (s *Session) SetAPIKey(key string) {
	s.mu.Lock()
	s.apiKey = strings.TrimSpace(key)
	s.mu.Unlock()
}

// Send appends a user turn built from text and attachments plus an empty
// model turn, then fills the model turn from the responder. It blocks until
// the response completes, fails, or is stopped. Failures are recorded in the
// log rather than returned.
func (s *Session) Send(ctx context.Context, text string, attachments ...content.Inline) Outcome {
	in := modeladapter.Input{Text: text, Attachments: attachments}

	key, ok := s.precheck(in)
	if !ok {
		return OutcomeSkipped
	}
	if !s.loading.CompareAndSwap(false, true) {
		s.log.Debug("send skipped: already loading")
		return OutcomeSkipped
	}

	return s.run(ctx, key, in)
}

// Regenerate discards the exchange containing turnID and everything after
// it, then resends the user input of that exchange. A user turn is resent
// directly; a model turn requires its immediate predecessor to be a user
// turn. Unresolvable targets are a no-op.
func (s *Session) Regenerate(ctx context.Context, turnID string) Outcome {
	if s.Loading() {
		s.log.Debug("regenerate skipped: already loading", "turn", turnID)
		return OutcomeSkipped
	}

	turns := s.chat.Turns()
	idx := -1
	for i, t := range turns {
		if t.ID == turnID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.log.Debug("regenerate skipped: unknown turn", "turn", turnID)
		return OutcomeSkipped
	}

	userIdx := idx
	if turns[idx].Role == role.Model {
		if idx == 0 || turns[idx-1].Role != role.User {
			s.log.Debug("regenerate skipped: no preceding user turn", "turn", turnID)
			return OutcomeSkipped
		}
		userIdx = idx - 1
	}

	in := inputFrom(turns[userIdx])

	key, ok := s.precheck(in)
	if !ok {
		return OutcomeSkipped
	}
	if !s.loading.CompareAndSwap(false, true) {
		s.log.Debug("regenerate skipped: already loading", "turn", turnID)
		return OutcomeSkipped
	}

	s.chat.TruncateAfter(userIdx - 1)
	s.publish(EventLogTruncated, "", userIdx)

	return s.run(ctx, key, in)
}

// inputFrom rebuilds send inputs from a logged user turn: the first text
// part and every inline part reduced to its MIME type and payload.
func inputFrom(t turn.Turn) modeladapter.Input {
	in := modeladapter.Input{Text: t.FirstText()}
	for _, a := range t.Attachments() {
		in.Attachments = append(in.Attachments, content.Inline{MediaType: a.MediaType, Data: a.Data})
	}
	return in
}

// Stop raises the cancellation signal of the in-flight send. It reports
// whether there was one.
func (s *Session) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// DeleteTurn removes a single turn. Unknown IDs are ignored, and nothing is
// deleted while a send is in flight.
func (s *Session) DeleteTurn(id string) bool {
	if s.Loading() {
		s.log.Debug("delete skipped: loading", "turn", id)
		return false
	}
	if !s.chat.Delete(id) {
		return false
	}
	s.publish(EventTurnDeleted, id, nil)
	return true
}

// Clear empties the log.
func (s *Session) Clear() {
	s.chat.Clear()
	s.publish(EventLogCleared, "", nil)
}

func (s *Session) precheck(in modeladapter.Input) (string, bool) {
	key := s.APIKey()
	if key == "" {
		s.log.Debug("send skipped: no api key")
		return "", false
	}
	if in.Empty() {
		s.log.Debug("send skipped: nothing to send")
		return "", false
	}
	return key, true
}

// run drives one request/response cycle. The caller must hold the loading
// flag.
func (s *Session) run(ctx context.Context, key string, in modeladapter.Input) (outcome Outcome) {
	ctx, cancel := context.WithCancel(ctx)
	s.setCancel(cancel)
	s.setState(StateBuildingRequest)
	s.publish(EventLoadingChanged, "", true)

	defer func() {
		cancel()
		s.setCancel(nil)
		s.setState(StateSettled)
		s.loading.Store(false)
		s.publish(EventLoadingChanged, "", false)
		s.publish(EventSendSettled, "", outcome)
	}()

	cfg := s.settings.Get()

	// History is captured before the new turns exist so the fresh user turn
	// is never sent twice.
	history := s.chat.History()

	user := turn.New(role.User, userParts(in)...)
	placeholder := turn.New(role.Model)
	s.chat.Append(user, placeholder)
	s.publish(EventTurnAppended, user.ID, nil)
	s.publish(EventTurnAppended, placeholder.ID, nil)

	req := modeladapter.Request{
		APIKey:   key,
		History:  history,
		Input:    in,
		Settings: cfg,
	}

	s.log.Info("send started",
		"turn", placeholder.ID,
		"history", len(history),
		"attachments", len(in.Attachments),
		"streaming", cfg.Streaming,
		"model", cfg.ModelName(),
	)

	start := s.nowFunc()

	var err error
	if cfg.Streaming {
		err = s.drainStream(ctx, req, placeholder.ID, start)
	} else {
		err = s.drainBatch(ctx, req, placeholder.ID, start)
	}

	switch {
	case err == nil:
		s.log.Info("send completed", "turn", placeholder.ID, "elapsed", s.nowFunc().Sub(start))
		return OutcomeSucceeded
	case modeladapter.IsCanceled(err):
		s.log.Info("send canceled", "turn", placeholder.ID)
		return OutcomeCanceled
	default:
		s.log.Error("send failed", "turn", placeholder.ID, "error", err)
		if s.chat.UpdateLastOf(placeholder.ID, []content.Part{content.Text{Text: ErrorPrefix + err.Error()}}, chat.WithError(true)) {
			s.publish(EventTurnUpdated, placeholder.ID, nil)
		}
		s.publish(EventError, placeholder.ID, err)
		return OutcomeFailed
	}
}

func (s *Session) drainStream(ctx context.Context, req modeladapter.Request, turnID string, start time.Time) error {
	s.setState(StateAwaitingFirstFragment)

	stream, err := s.responder.Stream(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()

	timer := chat.NewReasoningTimerAt(start, s.nowFunc)

	for {
		if ctx.Err() != nil {
			return modeladapter.ErrCanceled
		}

		parts, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		s.setState(StateDraining)

		d, _ := timer.Observe(parts)
		if s.chat.UpdateLastOf(turnID, parts, chat.WithReasoning(d)) {
			s.publish(EventTurnUpdated, turnID, nil)
		}
	}
}

func (s *Session) drainBatch(ctx context.Context, req modeladapter.Request, turnID string, start time.Time) error {
	s.setState(StateAwaitingFirstFragment)

	parts, err := s.responder.Generate(ctx, req)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return modeladapter.ErrCanceled
	}

	s.setState(StateDraining)

	// Without intermediate snapshots the whole call counts as reasoning.
	var opts []chat.UpdateOption
	for _, p := range parts {
		if content.IsThought(p) {
			opts = append(opts, chat.WithReasoning(s.nowFunc().Sub(start)))
			break
		}
	}

	if s.chat.UpdateLastOf(turnID, parts, opts...) {
		s.publish(EventTurnUpdated, turnID, nil)
	}

	return nil
}

// userParts lays out a user turn the way it is sent: attachments first,
// then the text unless it is blank.
func userParts(in modeladapter.Input) []content.Part {
	parts := make([]content.Part, 0, len(in.Attachments)+1)
	for _, a := range in.Attachments {
		parts = append(parts, a)
	}
	if strings.TrimSpace(in.Text) != "" {
		parts = append(parts, content.Text{Text: in.Text})
	}
	return parts
}

func (s *Session) setCancel(c context.CancelFunc) {
	s.mu.Lock()
	s.cancel = c
	s.mu.Unlock()
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

func (s *Session) publish(kind EventKind, turnID string, data any) {
	s.events.Publish(Event{
		Kind:      kind,
		SessionID: s.id,
		TurnID:    turnID,
		Timestamp: s.nowFunc(),
		Data:      data,
	})
}
