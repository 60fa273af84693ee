package main

import (
	"testing"

	"github.com/germanamz/nanobanana/pkg/engine"
	"github.com/germanamz/nanobanana/pkg/settings"
	"github.com/stretchr/testify/assert"
)

func TestBridgeMsg(t *testing.T) {
	s := settings.Default()

	tests := []struct {
		name string
		ev   engine.Event
		want any
	}{
		{"settings", engine.Event{Kind: engine.EventSettings, Data: s}, settingsChangedMsg{settings: s}},
		{"settings without payload", engine.Event{Kind: engine.EventSettings}, nil},
		{"other session", engine.Event{Kind: engine.EventTurnUpdated, SessionID: "other"}, nil},
		{"turn updated", engine.Event{Kind: engine.EventTurnUpdated, SessionID: "me"}, logChangedMsg{}},
		{"loading", engine.Event{Kind: engine.EventLoadingChanged, SessionID: "me"}, logChangedMsg{}},
		{"settled", engine.Event{Kind: engine.EventSendSettled, SessionID: "me"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bridgeMsg(tt.ev, "me")
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
