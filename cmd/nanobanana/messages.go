package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/nanobanana/pkg/engine"
	"github.com/germanamz/nanobanana/pkg/settings"
)

// programReadyMsg passes the *tea.Program to the model so it can start the
// bridge.
type programReadyMsg struct {
	program *tea.Program
}

// logChangedMsg signals that the session log or loading flag changed.
type logChangedMsg struct{}

// settingsChangedMsg carries the new process-wide settings.
type settingsChangedMsg struct {
	settings settings.Settings
}

// inputSubmitMsg carries the text the user submitted from the input box.
type inputSubmitMsg struct {
	text string
}

// sendDoneMsg is returned by the tea.Cmd that runs a send or regeneration.
type sendDoneMsg struct {
	outcome  engine.Outcome
	duration time.Duration
}

// initDrainMsg fires after a short delay so that stale terminal responses
// (e.g. OSC 11 background-color replies) are discarded before focusing input.
type initDrainMsg struct{}
