package webbridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/germanamz/nanobanana/pkg/engine"
	"github.com/germanamz/nanobanana/pkg/settings"
)

const writeTimeout = 10 * time.Second

// Handler upgrades requests to WebSocket connections bound to a fresh
// engine session.
type Handler struct {
	eng     *engine.Engine
	log     *slog.Logger
	origins []string
}

var _ http.Handler = (*Handler)(nil)

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// WithOriginPatterns allows cross-origin connections from hosts matching the
// given patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Handler) { h.origins = append(h.origins, patterns...) }
}

// New creates a Handler serving sessions of eng.
func New(eng *engine.Engine, opts ...Option) *Handler {
	h := &Handler{eng: eng}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return h
}

// Mux returns a ServeMux with the handler mounted at /ws.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	return mux
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.log.Warn("websocket accept failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	sess := h.eng.NewSession()
	defer h.eng.RemoveSession(sess.ID())

	log := h.log.With("session", sess.ID())
	log.Info("client connected", "remote", r.RemoteAddr)

	h.applyQuery(sess, r, log)

	c := &client{
		h:    h,
		conn: conn,
		sess: sess,
		log:  log,
	}

	err = c.serve(r.Context())

	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		log.Info("client disconnected")
	default:
		log.Info("client disconnected", "error", err)
	}
}

// applyQuery layers settings and the API key carried in the connection URL
// over the current values. Malformed values are ignored.
func (h *Handler) applyQuery(sess *engine.Session, r *http.Request, log *slog.Logger) {
	cur := h.eng.Settings().Get()
	next, key := settings.FromQuery(cur, r.URL.Query())

	if next != cur {
		if err := h.eng.Settings().Set(next); err != nil {
			log.Warn("query settings rejected", "error", err)
		}
	}
	if key != "" {
		sess.SetAPIKey(key)
	}
}

type client struct {
	h    *Handler
	conn *websocket.Conn
	sess *engine.Session
	log  *slog.Logger

	wg sync.WaitGroup
}

// serve pushes snapshots and executes commands until the connection closes.
func (c *client) serve(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer func() {
		cancel()
		c.sess.Stop()
		c.wg.Wait()
	}()

	events := c.h.eng.Events()
	sub := events.Subscribe(64)

	// Coalesces bursts of events into one pending snapshot.
	dirty := make(chan struct{}, 1)
	dirty <- struct{}{}

	c.wg.Go(func() {
		defer events.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				if ev.SessionID != c.sess.ID() && ev.Kind != engine.EventSettings {
					continue
				}
				select {
				case dirty <- struct{}{}:
				default:
				}
			}
		}
	})

	c.wg.Go(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-dirty:
				if err := c.write(ctx, c.snapshot()); err != nil {
					cancel()
					return
				}
			}
		}
	})

	for {
		var cmd Command
		if err := wsjson.Read(ctx, c.conn, &cmd); err != nil {
			return err
		}
		if err := c.handle(ctx, cmd); err != nil {
			c.log.Debug("command rejected", "type", cmd.Type, "error", err)
			if werr := c.write(ctx, Frame{Type: FrameError, Error: err.Error()}); werr != nil {
				return werr
			}
		}
	}
}

func (c *client) handle(ctx context.Context, cmd Command) error {
	switch cmd.Type {
	case CmdSend:
		atts, err := inlines(cmd.Attachments)
		if err != nil {
			return fmt.Errorf("send: %w", err)
		}
		c.wg.Go(func() { c.sess.Send(ctx, cmd.Text, atts...) })

	case CmdRegenerate:
		c.wg.Go(func() { c.sess.Regenerate(ctx, cmd.ID) })

	case CmdStop:
		c.sess.Stop()

	case CmdDelete:
		if c.sess.Loading() {
			return errors.New("delete: a response is in progress")
		}
		c.sess.DeleteTurn(cmd.ID)

	case CmdClear:
		c.sess.Clear()

	case CmdSettings:
		if cmd.Settings == nil {
			return errors.New("settings: missing settings")
		}
		if err := c.h.eng.Settings().Set(*cmd.Settings); err != nil {
			return err
		}

	case CmdAPIKey:
		c.sess.SetAPIKey(cmd.Key)
		c.poke(ctx)

	default:
		return fmt.Errorf("unknown command %q", cmd.Type)
	}
	return nil
}

// poke sends a snapshot for changes that publish no event.
func (c *client) poke(ctx context.Context) {
	if err := c.write(ctx, c.snapshot()); err != nil {
		c.log.Debug("snapshot write failed", "error", err)
	}
}

func (c *client) snapshot() Frame {
	st := c.h.eng.Settings().Get()
	return Frame{
		Type:     FrameSnapshot,
		Session:  c.sess.ID(),
		Turns:    viewTurns(c.sess.Chat().Turns()),
		Loading:  c.sess.Loading(),
		HasKey:   c.sess.APIKey() != "",
		Settings: &st,
	}
}

func (c *client) write(ctx context.Context, f Frame) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return wsjson.Write(ctx, c.conn, f)
}
