package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/germanamz/nanobanana/pkg/appdir"
	"github.com/germanamz/nanobanana/pkg/chats/content"
	"github.com/germanamz/nanobanana/pkg/engine"
	"github.com/germanamz/nanobanana/pkg/settings"
)

// formKind identifies the huh form currently replacing the input box.
type formKind int

const (
	formNone formKind = iota
	formSettings
	formKey
)

// appModel is the root bubbletea model.
type appModel struct {
	ctx  context.Context
	eng  *engine.Engine
	sess *engine.Session
	dir  appdir.Dir

	chatView  chatViewModel
	inputBox  inputModel
	statusBar statusBarModel

	// pending attachments go out with the next prompt.
	pending []content.Inline

	form          *huh.Form
	formKind      formKind
	settingsDraft *settings.Settings
	keyDraft      *string

	showHelp     bool
	cancelBridge context.CancelFunc
	width        int
	height       int
}

func newAppModel(ctx context.Context, eng *engine.Engine, sess *engine.Session, dir appdir.Dir) appModel {
	st := eng.Settings().Get()

	cv := newChatView()
	cv.showThoughts = st.ShowThoughts

	sb := newStatusBar(st, eng.Usage())
	sb.hasKey = sess.APIKey() != ""

	return appModel{
		ctx:       ctx,
		eng:       eng,
		sess:      sess,
		dir:       dir,
		chatView:  cv,
		inputBox:  newInput(),
		statusBar: sb,
	}
}

func (m appModel) Init() tea.Cmd {
	// Delay focusing the input so that stale terminal escape-sequence
	// responses (e.g. OSC 11 background-color) are drained first.
	return tea.Tick(200*time.Millisecond, func(time.Time) tea.Msg {
		return initDrainMsg{}
	})
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case initDrainMsg:
		var cmd tea.Cmd
		if m.sess.APIKey() == "" {
			cmd = m.openKeyForm()
		} else {
			cmd = m.inputBox.enable()
		}
		return m, cmd

	case programReadyMsg:
		m.cancelBridge = startBridge(m.ctx, msg.program, m.sess, m.eng.Events())
		return m, nil

	case inputSubmitMsg:
		return m.handleSubmit(msg)

	case logChangedMsg:
		cmd := m.syncLog()
		return m, cmd

	case settingsChangedMsg:
		m.statusBar.settings = msg.settings
		m.chatView.setShowThoughts(msg.settings.ShowThoughts)
		return m, nil

	case sendDoneMsg:
		m.statusBar.duration = msg.duration
		switch msg.outcome {
		case engine.OutcomeFailed:
			m.setWarn("generation failed")
		case engine.OutcomeCanceled:
			m.setNotice("stopped")
		case engine.OutcomeSkipped:
			m.setWarn("nothing sent")
		}
		cmd := m.syncLog()
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		return m, cmd
	}

	if m.form != nil {
		return m.updateForm(msg)
	}

	var cmd tea.Cmd
	m.inputBox, cmd = m.inputBox.Update(msg)
	return m, cmd
}

func (m appModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	chatSection := m.chatView.View()
	if m.showHelp {
		chatSection = lipgloss.NewStyle().Height(m.chatView.viewport.Height).Render(dimStyle.Render(helpText()))
	}

	inputSection := m.inputBox.View()
	if m.form != nil {
		inputSection = m.form.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		chatSection,
		inputSection,
		m.statusBar.View(),
	)
}

func (m *appModel) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	initMarkdownRenderer(m.width - 4)
	m.inputBox.setWidth(m.width)
	if m.form != nil {
		m.form = m.form.WithWidth(m.width)
	}
	m.recalcLayout()

	return m, nil
}

func (m *appModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, m.quit()
	}

	if m.form != nil {
		if msg.Type == tea.KeyEsc {
			return m, m.closeForm(false)
		}
		return m.updateForm(msg)
	}

	switch msg.Type {
	case tea.KeyEsc:
		m.showHelp = false
		if m.sess.Stop() {
			m.setNotice("stopping...")
		}
		return m, nil
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.inputBox, cmd = m.inputBox.Update(msg)
	return m, cmd
}

func (m *appModel) handleSubmit(msg inputSubmitMsg) (tea.Model, tea.Cmd) {
	m.showHelp = false
	m.clearNotice()

	if cmd, ok := parseCommand(msg.text); ok {
		return m.handleCommand(cmd)
	}

	if msg.text == "" && len(m.pending) == 0 {
		return m, nil
	}
	if m.sess.Loading() {
		m.setWarn("still generating; /stop first")
		return m, nil
	}
	if m.sess.APIKey() == "" {
		m.setWarn("set an API key first")
		return m, m.openKeyForm()
	}

	text := msg.text
	atts := m.pending
	m.pending = nil
	m.statusBar.pending = 0

	sess := m.sess
	return m, m.startSend(func(ctx context.Context) engine.Outcome {
		return sess.Send(ctx, text, atts...)
	})
}

// startSend runs fn on a tea.Cmd goroutine and reports its outcome.
func (m *appModel) startSend(fn func(context.Context) engine.Outcome) tea.Cmd {
	ctx := m.ctx
	start := time.Now()

	run := func() tea.Msg {
		out := fn(ctx)
		return sendDoneMsg{outcome: out, duration: time.Since(start)}
	}

	return tea.Batch(run, m.chatView.setLoading(true))
}

func (m *appModel) handleCommand(cmd command) (tea.Model, tea.Cmd) {
	switch cmd.name {
	case "/quit", "/exit":
		return m, m.quit()

	case "/help":
		m.showHelp = true

	case "/stop":
		if !m.sess.Stop() {
			m.setWarn("nothing to stop")
		}

	case "/clear":
		if m.sess.Loading() {
			m.setWarn("still generating; /stop first")
			break
		}
		m.sess.Clear()
		if u := m.eng.Usage(); u != nil {
			u.Reset()
		}
		m.setNotice("conversation cleared")

	case "/delete":
		if m.sess.Loading() {
			m.setWarn("still generating; /stop first")
			break
		}
		turns := m.sess.Chat().Turns()
		i, err := turnArg(cmd.args, len(turns))
		if err != nil {
			m.setWarn(err.Error())
			break
		}
		m.sess.DeleteTurn(turns[i].ID)
		m.setNotice(fmt.Sprintf("deleted #%d", i+1))

	case "/regen":
		return m.handleRegen(cmd)

	case "/attach":
		path := strings.Join(cmd.args, " ")
		if path == "" {
			m.setWarn("usage: /attach <path>")
			break
		}
		in, err := readAttachment(path)
		if err != nil {
			m.setWarn(err.Error())
			break
		}
		m.pending = append(m.pending, in)
		m.statusBar.pending = len(m.pending)
		m.setNotice(fmt.Sprintf("attached %s (%s, %s)", filepath.Base(path), in.MediaType, fmtBytes(in.Size())))

	case "/detach":
		m.pending = nil
		m.statusBar.pending = 0
		m.setNotice("attachments dropped")

	case "/save":
		m.handleSave(cmd)

	case "/settings":
		return m, m.openSettingsForm()

	case "/key":
		return m, m.openKeyForm()

	default:
		m.setWarn(fmt.Sprintf("unknown command %s (/help)", cmd.name))
	}

	return m, nil
}

func (m *appModel) handleRegen(cmd command) (tea.Model, tea.Cmd) {
	if m.sess.Loading() {
		m.setWarn("still generating; /stop first")
		return m, nil
	}

	turns := m.sess.Chat().Turns()
	i, err := turnArg(cmd.args, len(turns))
	if err != nil {
		m.setWarn(err.Error())
		return m, nil
	}

	id := turns[i].ID
	sess := m.sess
	return m, m.startSend(func(ctx context.Context) engine.Outcome {
		return sess.Regenerate(ctx, id)
	})
}

func (m *appModel) handleSave(cmd command) {
	turns := m.sess.Chat().Turns()
	i, err := turnArg(cmd.args, len(turns))
	if err != nil {
		m.setWarn(err.Error())
		return
	}

	dir := m.dir.ImagesDir()
	if len(cmd.args) > 1 {
		dir = strings.Join(cmd.args[1:], " ")
	}

	prefix := fmt.Sprintf("turn%d-%s", i+1, time.Now().Format("20060102-150405"))
	paths, err := saveImages(turns[i], dir, prefix)
	if err != nil {
		m.setWarn(err.Error())
		return
	}

	m.setNotice(fmt.Sprintf("saved %d file(s) to %s", len(paths), dir))
}

// syncLog re-reads the session log and loading flag.
func (m *appModel) syncLog() tea.Cmd {
	m.chatView.setTurns(m.sess.Chat().Turns())
	m.statusBar.hasKey = m.sess.APIKey() != ""
	return m.chatView.setLoading(m.sess.Loading())
}

func (m *appModel) openSettingsForm() tea.Cmd {
	draft := m.eng.Settings().Get().Normalize()
	m.settingsDraft = &draft

	return m.openForm(formSettings, huh.NewForm(settingsGroup(m.settingsDraft)))
}

func (m *appModel) openKeyForm() tea.Cmd {
	key := m.sess.APIKey()
	m.keyDraft = &key

	return m.openForm(formKey, huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Gemini API key").
			Description("Leave empty to remove the key. Esc to cancel.").
			EchoMode(huh.EchoModePassword).
			Value(m.keyDraft),
	)))
}

func (m *appModel) openForm(kind formKind, f *huh.Form) tea.Cmd {
	m.form = f.WithShowHelp(true).WithWidth(max(m.width, 40))
	m.formKind = kind
	m.inputBox.disable()
	m.recalcLayout()

	return m.form.Init()
}

func (m *appModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	fm, cmd := m.form.Update(msg)
	if f, ok := fm.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m, tea.Batch(cmd, m.closeForm(true))
	case huh.StateAborted:
		return m, tea.Batch(cmd, m.closeForm(false))
	}

	m.recalcLayout()
	return m, cmd
}

// closeForm dismisses the active form, applying its values when apply is
// set, and gives focus back to the input box.
func (m *appModel) closeForm(apply bool) tea.Cmd {
	if apply {
		switch m.formKind {
		case formSettings:
			if err := m.eng.Settings().Set(*m.settingsDraft); err != nil {
				m.setWarn(err.Error())
			} else {
				m.setNotice("settings saved")
			}
		case formKey:
			m.sess.SetAPIKey(*m.keyDraft)
			m.statusBar.hasKey = m.sess.APIKey() != ""
			if m.statusBar.hasKey {
				m.setNotice("API key set")
			} else {
				m.setNotice("API key removed")
			}
		}
	}

	m.form = nil
	m.formKind = formNone
	m.settingsDraft = nil
	m.keyDraft = nil

	cmd := m.inputBox.enable()
	m.recalcLayout()
	return cmd
}

func (m *appModel) quit() tea.Cmd {
	m.sess.Stop()
	if m.cancelBridge != nil {
		m.cancelBridge()
	}
	return tea.Quit
}

func (m *appModel) setNotice(s string) {
	m.statusBar.notice = s
	m.statusBar.warn = false
}

func (m *appModel) setWarn(s string) {
	m.statusBar.notice = s
	m.statusBar.warn = true
}

func (m *appModel) clearNotice() {
	m.statusBar.notice = ""
	m.statusBar.warn = false
}

func (m *appModel) recalcLayout() {
	if m.width == 0 || m.height == 0 {
		return
	}

	statusHeight := 1
	inputHeight := lipgloss.Height(m.inputBox.View())
	if m.form != nil {
		inputHeight = lipgloss.Height(m.form.View())
	}

	chatHeight := max(m.height-inputHeight-statusHeight, 1)
	m.chatView.setSize(m.width, chatHeight)
}
