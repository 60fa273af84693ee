package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/germanamz/nanobanana/pkg/modeladapter/usage"
	"github.com/germanamz/nanobanana/pkg/settings"
)

// statusBarModel shows the active settings, pending attachments, token
// usage and the outcome of the last command.
type statusBarModel struct {
	settings settings.Settings
	tracker  *usage.Tracker
	pending  int
	hasKey   bool
	duration time.Duration
	notice   string
	warn     bool
}

func newStatusBar(s settings.Settings, tracker *usage.Tracker) statusBarModel {
	return statusBarModel{settings: s, tracker: tracker}
}

func (m statusBarModel) View() string {
	fields := []string{settingsSummary(m.settings)}

	if !m.hasKey {
		fields = append(fields, "no API key (/key)")
	}
	if m.pending > 0 {
		fields = append(fields, fmt.Sprintf("📎 %d", m.pending))
	}
	if u := usageSummary(m.tracker); u != "" {
		fields = append(fields, u)
	}
	if m.duration > 0 {
		fields = append(fields, fmtDuration(m.duration))
	}

	line := statusStyle.Render(" " + strings.Join(fields, " · "))
	if m.notice == "" {
		return line
	}

	style := noticeStyle
	if m.warn {
		style = warnStyle
	}
	return line + "  " + style.Render(m.notice)
}

func settingsSummary(s settings.Settings) string {
	parts := []string{string(s.Resolution), string(s.AspectRatio)}
	if s.Streaming {
		parts = append(parts, "stream")
	} else {
		parts = append(parts, "batch")
	}
	if s.ShowThoughts {
		parts = append(parts, "thoughts")
	}
	if s.Grounding {
		parts = append(parts, "search")
	}
	return strings.Join(parts, " ")
}

func usageSummary(t *usage.Tracker) string {
	if t == nil || t.Count() == 0 {
		return ""
	}

	last, _ := t.Last()
	total := t.Total()

	return fmt.Sprintf("last ↑%s ↓%s · total ↑%s ↓%s",
		fmtTokens(last.PromptTokens),
		fmtTokens(last.CandidateTokens+last.ThoughtTokens),
		fmtTokens(total.PromptTokens),
		fmtTokens(total.CandidateTokens+total.ThoughtTokens),
	)
}
