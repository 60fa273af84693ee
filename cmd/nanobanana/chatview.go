package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/nanobanana/pkg/chats/content"
	"github.com/germanamz/nanobanana/pkg/chats/role"
	"github.com/germanamz/nanobanana/pkg/chats/turn"
)

// chatViewModel renders the conversation log into a scrollable viewport.
type chatViewModel struct {
	viewport viewport.Model
	spinner  spinner.Model

	turns        []turn.Turn
	showThoughts bool
	loading      bool
	waitingMsg   string
	width        int
}

func newChatView() chatViewModel {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = spinnerStyle

	return chatViewModel{
		viewport:     viewport.New(0, 0),
		spinner:      sp,
		showThoughts: true,
	}
}

func (m chatViewModel) Update(msg tea.Msg) (chatViewModel, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	case tea.KeyMsg, tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m chatViewModel) View() string {
	return m.viewport.View()
}

func (m *chatViewModel) setSize(w, h int) {
	m.width = w
	m.viewport.Width = w
	m.viewport.Height = h
	m.refresh()
}

// setTurns replaces the rendered log. The view follows the bottom unless
// the user scrolled up.
func (m *chatViewModel) setTurns(turns []turn.Turn) {
	m.turns = turns
	m.refresh()
}

// setLoading toggles the waiting indicator and returns the spinner's tick
// command when loading starts.
func (m *chatViewModel) setLoading(loading bool) tea.Cmd {
	if loading == m.loading {
		return nil
	}
	m.loading = loading
	m.refresh()
	if loading {
		m.waitingMsg = randomThinkingMessage()
		return m.spinner.Tick
	}
	return nil
}

func (m *chatViewModel) setShowThoughts(show bool) {
	m.showThoughts = show
	m.refresh()
}

func (m *chatViewModel) refresh() {
	follow := m.viewport.AtBottom() || m.viewport.TotalLineCount() == 0
	m.viewport.SetContent(m.render())
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m chatViewModel) render() string {
	width := max(m.width-2, 20)

	blocks := make([]string, 0, len(m.turns)+1)
	for i, t := range m.turns {
		blocks = append(blocks, renderTurn(i+1, t, m.showThoughts, width))
	}

	if m.loading && m.awaitingFirstFragment() {
		blocks = append(blocks, fmt.Sprintf("  %s %s", m.spinner.View(), spinnerStyle.Render(m.waitingMsg)))
	}

	if len(blocks) == 0 {
		return dimStyle.Render("No messages yet. Type a prompt, or /attach an image first.")
	}
	return strings.Join(blocks, "\n\n")
}

func (m chatViewModel) awaitingFirstFragment() bool {
	if len(m.turns) == 0 {
		return true
	}
	last := m.turns[len(m.turns)-1]
	return last.Role == role.Model && len(last.Parts) == 0
}

// renderTurn renders turn number n. Thought parts are shown only when
// showThoughts is set; the log itself always keeps them.
func renderTurn(n int, t turn.Turn, showThoughts bool, width int) string {
	var sb strings.Builder

	if t.Role == role.User {
		sb.WriteString(userPrefixStyle.Render(fmt.Sprintf("#%d You", n)))
		for _, a := range t.Attachments() {
			sb.WriteString("\n")
			sb.WriteString(attachmentStyle.Render(fmt.Sprintf("📎 %s · %s", a.MediaType, fmtBytes(a.Size()))))
		}
		if text := t.TextContent(); text != "" {
			sb.WriteString("\n")
			sb.WriteString(text)
		}
		return userBlockStyle.Width(width).Render(sb.String())
	}

	sb.WriteString(answerPrefixStyle.Render(fmt.Sprintf("#%d Gemini", n)))

	if t.Err {
		sb.WriteString("\n")
		sb.WriteString(errorBlockStyle.Render(t.TextContent()))
		return answerBlockStyle.Render(sb.String())
	}

	if showThoughts && t.HasThought() && t.Reasoning > 0 {
		sb.WriteString("\n")
		sb.WriteString(thinkingFooterStyle.Render("Thought for " + fmtDuration(t.Reasoning)))
	}

	image := 0
	var pending []string
	flush := func() {
		if len(pending) == 0 {
			return
		}
		sb.WriteString("\n")
		sb.WriteString(renderMarkdown(strings.Join(pending, "")))
		pending = pending[:0]
	}

	for _, p := range t.Parts {
		thought := content.IsThought(p)
		if thought && !showThoughts {
			continue
		}

		switch pt := p.(type) {
		case content.Text:
			if thought {
				flush()
				if pt.Text != "" {
					sb.WriteString("\n")
					sb.WriteString(thinkingTextStyle.Width(width).Render(pt.Text))
				}
				continue
			}
			pending = append(pending, pt.Text)

		case content.Inline:
			flush()
			label := "thought image"
			if !thought {
				image++
				label = fmt.Sprintf("image %d", image)
			}
			sb.WriteString("\n")
			sb.WriteString(imageStyle.Render(fmt.Sprintf("🖼  %s · %s · %s", label, pt.MediaType, fmtBytes(pt.Size()))))
		}
	}
	flush()

	if image > 0 {
		sb.WriteString("\n")
		sb.WriteString(dimStyle.Render(fmt.Sprintf("/save %d to write %s to disk", n, plural(image, "the image", "images"))))
	}

	return answerBlockStyle.Render(sb.String())
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return fmt.Sprintf("%d %s", n, many)
}
