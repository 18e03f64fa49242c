package tui

import (
	"context"
	"image/color"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"
	"github.com/hylla/morfo/internal/app"
	"github.com/hylla/morfo/internal/domain"
)

// Service is the form controller surface used by the model. The controller
// owns the active mode and the pending submission; the model only renders them.
type Service interface {
	Mode() domain.Mode
	SwitchMode(domain.Mode) error
	VisibleSections() map[domain.Mode]bool
	Pending() bool
	Prepare(domain.FormInput) (app.Ticket, domain.Outcome, bool)
	Finish(seq uint64) bool
}

// formField identifies a focusable field.
type formField int

// fieldCredential and related constants define focus order.
const (
	fieldCredential formField = iota
	fieldModeInput
)

// pendingText is shown in the output region while a request is in flight.
const pendingText = "Analyzing..."

// Model represents model data used by this package.
type Model struct {
	svc Service

	width  int
	height int
	status string

	help help.Model
	keys keyMap

	focus formField

	credentialInput textinput.Model
	wordInput       textinput.Model
	wordsInput      textarea.Model
	fileInput       textinput.Model

	output     string
	outputKind domain.OutcomeKind

	renderMarkdown bool
	highlighter    *jsonHighlighter

	copyText     CopyFunc
	reloadConfig ReloadConfigFunc
}

// submittedMsg carries one finished submission.
type submittedMsg struct {
	seq     uint64
	outcome domain.Outcome
}

// copiedMsg reports the clipboard result.
type copiedMsg struct {
	err error
}

// ConfigChangedMsg asks the form to reload runtime settings after the config file changed on disk.
type ConfigChangedMsg struct{}

// configReloadedMsg carries runtime settings loaded through the reload callback.
type configReloadedMsg struct {
	config RuntimeConfig
	err    error
}

// NewModel constructs a new value for this package.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false

	credentialInput := textinput.New()
	credentialInput.Prompt = "api key: "
	credentialInput.Placeholder = "your API key"
	credentialInput.EchoMode = textinput.EchoPassword
	credentialInput.EchoCharacter = '•'
	credentialInput.CharLimit = 512

	wordInput := textinput.New()
	wordInput.Prompt = "word: "
	wordInput.Placeholder = "kitablar"
	wordInput.CharLimit = 256

	wordsInput := textarea.New()
	wordsInput.Placeholder = "one word per line"
	wordsInput.ShowLineNumbers = false
	wordsInput.SetHeight(6)

	fileInput := textinput.New()
	fileInput.Prompt = "file: "
	fileInput.Placeholder = "path/to/words.txt"
	fileInput.CharLimit = 1024

	if svc == nil {
		svc = app.NewService(nil, nil, nil, nil, app.ServiceConfig{})
	}

	m := Model{
		svc:             svc,
		status:          "ready",
		help:            h,
		keys:            newKeyMap(),
		focus:           fieldCredential,
		credentialInput: credentialInput,
		wordInput:       wordInput,
		wordsInput:      wordsInput,
		fileInput:       fileInput,
		renderMarkdown:  true,
		highlighter:     newJSONHighlighter(defaultOutputStyle),
		copyText:        clipboard.WriteAll,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	if strings.TrimSpace(m.credentialInput.Value()) != "" {
		m.focus = fieldModeInput
	}
	m.applyFocus()
	return m
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.wordsInput.SetWidth(max(20, msg.Width-4))
		return m, nil

	case submittedMsg:
		if !m.svc.Finish(msg.seq) {
			// A newer submission owns the output region.
			return m, nil
		}
		m.output = msg.outcome.Text
		m.outputKind = msg.outcome.Kind
		m.status = string(msg.outcome.Kind)
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.status = "copy failed: " + msg.err.Error()
			return m, nil
		}
		m.status = "output copied"
		return m, nil

	case ConfigChangedMsg:
		return m, m.reloadConfigCmd()

	case configReloadedMsg:
		if msg.err != nil {
			m.status = "reload failed: " + msg.err.Error()
			return m, nil
		}
		m.applyRuntimeConfig(msg.config)
		m.status = "config reloaded"
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	default:
		return m.updateFocused(msg)
	}
}

// handleKey routes one key press to form actions or the focused field.
func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.modeSingle):
		return m, m.switchMode(domain.ModeSingle)
	case key.Matches(msg, m.keys.modeBatch):
		return m, m.switchMode(domain.ModeBatch)
	case key.Matches(msg, m.keys.modeFile):
		return m, m.switchMode(domain.ModeFile)
	case key.Matches(msg, m.keys.nextMode):
		return m, m.switchMode(m.svc.Mode().Next(1))
	case key.Matches(msg, m.keys.prevMode):
		return m, m.switchMode(m.svc.Mode().Next(-1))
	case key.Matches(msg, m.keys.nextField), key.Matches(msg, m.keys.prevField):
		if m.focus == fieldCredential {
			m.focus = fieldModeInput
		} else {
			m.focus = fieldCredential
		}
		return m, m.applyFocus()
	case key.Matches(msg, m.keys.copyOutput):
		return m, m.copyOutputCmd()
	case key.Matches(msg, m.keys.reload):
		return m, m.reloadConfigCmd()
	case key.Matches(msg, m.keys.submit):
		// Enter inserts a newline in the batch textarea; ctrl+s always submits.
		if msg.String() == "enter" && m.svc.Mode() == domain.ModeBatch && m.focus == fieldModeInput {
			return m.updateFocused(msg)
		}
		return m.submit()
	}
	return m.updateFocused(msg)
}

// updateFocused forwards one message to the focused field.
func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.focus == fieldCredential {
		m.credentialInput, cmd = m.credentialInput.Update(msg)
		return m, cmd
	}
	switch m.svc.Mode() {
	case domain.ModeSingle:
		m.wordInput, cmd = m.wordInput.Update(msg)
	case domain.ModeBatch:
		m.wordsInput, cmd = m.wordsInput.Update(msg)
	case domain.ModeFile:
		m.fileInput, cmd = m.fileInput.Update(msg)
	}
	return m, cmd
}

// switchMode changes the active tab and keeps the controller in sync.
func (m *Model) switchMode(mode domain.Mode) tea.Cmd {
	if err := m.svc.SwitchMode(mode); err != nil {
		m.status = err.Error()
		return nil
	}
	m.status = "mode: " + string(mode)
	return m.applyFocus()
}

// applyFocus focuses exactly one field and blurs the rest.
func (m *Model) applyFocus() tea.Cmd {
	m.credentialInput.Blur()
	m.wordInput.Blur()
	m.wordsInput.Blur()
	m.fileInput.Blur()
	if m.focus == fieldCredential {
		return m.credentialInput.Focus()
	}
	switch m.svc.Mode() {
	case domain.ModeSingle:
		return m.wordInput.Focus()
	case domain.ModeBatch:
		return m.wordsInput.Focus()
	case domain.ModeFile:
		return m.fileInput.Focus()
	}
	return nil
}

// formInput snapshots the current field values.
func (m Model) formInput() domain.FormInput {
	return domain.FormInput{
		Credential: m.credentialInput.Value(),
		Word:       m.wordInput.Value(),
		WordsText:  m.wordsInput.Value(),
		FilePath:   m.fileInput.Value(),
	}
}

// submit asks the controller to validate the form and starts the request it prepares.
func (m Model) submit() (tea.Model, tea.Cmd) {
	ticket, out, ok := m.svc.Prepare(m.formInput())
	if !ok {
		m.output = out.Text
		m.outputKind = out.Kind
		m.status = string(out.Kind)
		return m, nil
	}
	m.output = ""
	m.outputKind = ""
	m.status = "analyzing"
	return m, func() tea.Msg {
		return submittedMsg{seq: ticket.Seq(), outcome: ticket.Run(context.Background())}
	}
}

// copyOutputCmd copies the current output text.
func (m Model) copyOutputCmd() tea.Cmd {
	text := m.output
	if strings.TrimSpace(text) == "" || m.svc.Pending() {
		return nil
	}
	copyText := m.copyText
	return func() tea.Msg {
		return copiedMsg{err: copyText(text)}
	}
}

// reloadConfigCmd reloads runtime settings through the configured callback.
func (m Model) reloadConfigCmd() tea.Cmd {
	if m.reloadConfig == nil {
		return nil
	}
	reload := m.reloadConfig
	return func() tea.Msg {
		cfg, err := reload()
		return configReloadedMsg{config: cfg, err: err}
	}
}

// applyRuntimeConfig applies reloadable settings; an empty credential keeps the typed one.
func (m *Model) applyRuntimeConfig(cfg RuntimeConfig) {
	m.renderMarkdown = cfg.RenderMarkdown
	if m.highlighter != nil {
		m.highlighter.setStyle(cfg.OutputStyle)
	}
	if credential := strings.TrimSpace(cfg.Credential); credential != "" {
		m.credentialInput.SetValue(credential)
	}
}

// View handles view.
func (m Model) View() tea.View {
	v := tea.NewView(m.renderContent())
	v.AltScreen = true
	return v
}

// renderContent renders the full form as one string.
func (m Model) renderContent() string {
	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	labelStyle := lipgloss.NewStyle().Foreground(muted)
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	sections := []string{
		titleStyle.Render("morfo") + " " + labelStyle.Render("word analysis"),
		"",
		m.renderTabs(accent, muted),
		"",
		m.credentialInput.View(),
		"",
		m.renderModeSection(labelStyle),
		"",
		m.renderOutput(),
	}
	if strings.TrimSpace(m.status) != "" {
		sections = append(sections, "", statusStyle.Render(m.status))
	}

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))
	sections = append(sections, helpLine)
	return strings.Join(sections, "\n")
}

// renderTabs renders the mode tabs with the active one highlighted.
func (m Model) renderTabs(accent, muted color.Color) string {
	activeStyle := lipgloss.NewStyle().Bold(true).Foreground(accent).Underline(true).Padding(0, 1)
	inactiveStyle := lipgloss.NewStyle().Foreground(muted).Padding(0, 1)
	visible := m.svc.VisibleSections()
	tabs := make([]string, 0, len(domain.Modes()))
	for _, mode := range domain.Modes() {
		if visible[mode] {
			tabs = append(tabs, activeStyle.Render(mode.Label()))
			continue
		}
		tabs = append(tabs, inactiveStyle.Render(mode.Label()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// renderModeSection renders only the active mode's input section.
func (m Model) renderModeSection(labelStyle lipgloss.Style) string {
	visible := m.svc.VisibleSections()
	switch {
	case visible[domain.ModeBatch]:
		return labelStyle.Render("Words (one per line)") + "\n" + m.wordsInput.View()
	case visible[domain.ModeFile]:
		return labelStyle.Render("Text file (.txt, one word per line)") + "\n" + m.fileInput.View()
	default:
		return labelStyle.Render("Single word") + "\n" + m.wordInput.View()
	}
}

// renderOutput renders the output region for the latest outcome.
func (m Model) renderOutput() string {
	if m.svc.Pending() {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render(pendingText)
	}
	if m.output == "" {
		return ""
	}
	switch m.outputKind {
	case domain.OutcomeSuccess:
		if m.renderMarkdown && m.highlighter != nil {
			if rendered := m.highlighter.highlight(m.output, m.width-4); rendered != "" {
				return rendered
			}
		}
		return m.output
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(m.output)
	}
}
