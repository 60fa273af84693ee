package engine

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/germanamz/nanobanana/pkg/modeladapter"
	"github.com/germanamz/nanobanana/pkg/modeladapter/usage"
	"github.com/germanamz/nanobanana/pkg/settings"
)

// Engine is the composition root that assembles the responder, settings
// store and event bus from configuration and exposes them through a
// frontend-agnostic API.
type Engine struct {
	cfg       Config
	events    *EventBus
	responder modeladapter.Responder
	settings  *settings.Store
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	nextID   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used by the engine and its sessions.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithResponder bypasses the provider registry and uses r directly.
func WithResponder(r modeladapter.Responder) Option {
	return func(e *Engine) { e.responder = r }
}

// New creates an Engine from the given configuration.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		events:   NewEventBus(),
		settings: settings.NewStore(cfg.Settings.Normalize()),
		sessions: make(map[string]*Session),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if e.responder == nil {
		r, err := buildResponder(cfg)
		if err != nil {
			return nil, err
		}
		e.responder = r
	}

	e.settings.OnChange(func(s settings.Settings) {
		e.logger.Debug("settings changed",
			"resolution", s.Resolution,
			"aspect_ratio", s.AspectRatio,
			"grounding", s.Grounding,
			"show_thoughts", s.ShowThoughts,
			"streaming", s.Streaming,
			"model", s.ModelName(),
		)
		e.events.Publish(Event{Kind: EventSettings, Timestamp: time.Now(), Data: s})
	})

	return e, nil
}

// Events returns the engine's event bus.
func (e *Engine) Events() *EventBus { return e.events }

// Settings returns the process-wide settings store shared by all sessions.
func (e *Engine) Settings() *settings.Store { return e.settings }

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Config returns the configuration the engine was built from.
func (e *Engine) Config() Config { return e.cfg }

// Usage returns the token usage tracker of the responder, or nil when the
// responder does not report usage.
func (e *Engine) Usage() *usage.Tracker {
	if ur, ok := e.responder.(modeladapter.UsageReporter); ok {
		return ur.UsageTracker()
	}
	return nil
}

// NewSession creates a new conversation seeded with the configured API key.
func (e *Engine) NewSession() *Session {
	e.mu.Lock()
	e.nextID++
	id := fmt.Sprintf("session-%d", e.nextID)
	e.mu.Unlock()

	s := newSession(id, e.responder, e.settings, e.events, e.logger.With("session", id))
	s.SetAPIKey(e.cfg.APIKey)

	e.mu.Lock()
	e.sessions[id] = s
	e.mu.Unlock()

	return s
}

// Session returns an existing session by ID.
func (e *Engine) Session(id string) (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[id]
	return s, ok
}

// RemoveSession stops the session's in-flight send and forgets it. It
// reports whether the session existed.
func (e *Engine) RemoveSession(id string) bool {
	e.mu.Lock()
	s, ok := e.sessions[id]
	delete(e.sessions, id)
	e.mu.Unlock()

	if ok {
		s.Stop()
	}
	return ok
}

// Close cancels any in-flight sends.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, s := range e.sessions {
		s.Stop()
	}
	return nil
}
