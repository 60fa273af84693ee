package main

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/nanobanana/pkg/engine"
	"github.com/germanamz/nanobanana/pkg/settings"
)

// startBridge forwards engine events concerning sess to the program. The
// goroutine only calls p.Send; it never touches model state. The returned
// function stops it and waits for it to exit.
func startBridge(ctx context.Context, p *tea.Program, sess *engine.Session, events *engine.EventBus) context.CancelFunc {
	bridgeCtx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	sub := events.Subscribe(256)

	wg.Go(func() {
		defer events.Unsubscribe(sub)
		for {
			select {
			case <-bridgeCtx.Done():
				return
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				if msg := bridgeMsg(ev, sess.ID()); msg != nil {
					p.Send(msg)
				}
			}
		}
	})

	return func() {
		cancel()
		wg.Wait()
	}
}

// bridgeMsg maps an engine event to a program message, or nil when the event
// is irrelevant to the session.
func bridgeMsg(ev engine.Event, sessionID string) tea.Msg {
	if ev.Kind == engine.EventSettings {
		s, ok := ev.Data.(settings.Settings)
		if !ok {
			return nil
		}
		return settingsChangedMsg{settings: s}
	}

	if ev.SessionID != sessionID {
		return nil
	}

	switch ev.Kind {
	case engine.EventSendSettled, engine.EventError:
		// Followed or preceded by log and loading events.
		return nil
	}
	return logChangedMsg{}
}
