// Package tui is a terminal presentation layer for bandit trials built on
// bubbletea. The Model owns only what is on screen; choices go back to the
// trial controller through the callbacks it was handed.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/danielpatrickdp/bandit-task/internal/trial"
)

// #region messages
type layoutMsg struct{ total int }

type choicesMsg struct {
	stimulus [2]string
	onSelect func(int)
}

type disableMsg struct{}

type feedbackMsg struct{ fb trial.Feedback }

type tallyMsg struct{ total int }

type continueMsg struct{ onContinue func() }

type clearMsg struct{}

type doneMsg struct{ summary string }
// #endregion messages

// #region model
// Model renders one trial at a time.
type Model struct {
	keys   keyMap
	help   help.Model
	styles styles
	title  string
	width  int

	total      int
	stimulus   [2]string
	shown      bool
	onSelect   func(int)
	chosen     int
	feedback   *trial.Feedback
	onContinue func()
	summary    string
	done       bool
	onQuit     func()
}

// NewModel returns a model titled title. onQuit runs when the participant
// quits, typically to cancel the running session.
func NewModel(title string, onQuit func()) Model {
	return Model{
		keys:   defaultKeyMap(),
		help:   help.New(),
		styles: defaultStyles(),
		title:  title,
		onQuit: onQuit,
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
	case layoutMsg:
		m = m.reset()
		m.total = msg.total
	case choicesMsg:
		m.stimulus = msg.stimulus
		m.shown = true
		m.onSelect = msg.onSelect
	case disableMsg:
		m.onSelect = nil
	case feedbackMsg:
		fb := msg.fb
		m.feedback = &fb
		m.chosen = fb.Option
	case tallyMsg:
		m.total = msg.total
	case continueMsg:
		m.onContinue = msg.onContinue
	case clearMsg:
		total := m.total
		m = m.reset()
		m.total = total
	case doneMsg:
		m = m.reset()
		m.summary = msg.summary
		m.done = true
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		return m.handleMouse(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, m.quit()
	case m.done:
		return m, nil
	case key.Matches(msg, m.keys.Option1):
		return m.choose(1)
	case key.Matches(msg, m.keys.Option2):
		return m.choose(2)
	case key.Matches(msg, m.keys.Next):
		return m.next()
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft || m.done {
		return m, nil
	}
	if m.onContinue != nil {
		return m.next()
	}
	if m.width <= 0 {
		return m, nil
	}
	if msg.X < m.width/2 {
		return m.choose(1)
	}
	return m.choose(2)
}

// choose closes the click window before the controller hears about it so a
// second key press in the same frame goes nowhere.
func (m Model) choose(option int) (tea.Model, tea.Cmd) {
	fire := m.onSelect
	if fire == nil {
		return m, nil
	}
	m.onSelect = nil
	m.chosen = option
	return m, func() tea.Msg {
		fire(option)
		return nil
	}
}

func (m Model) next() (tea.Model, tea.Cmd) {
	fire := m.onContinue
	if fire == nil {
		return m, nil
	}
	m.onContinue = nil
	return m, func() tea.Msg {
		fire()
		return nil
	}
}

func (m Model) quit() tea.Cmd {
	if m.onQuit != nil {
		m.onQuit()
	}
	return tea.Quit
}

func (m Model) reset() Model {
	return Model{
		keys:   m.keys,
		help:   m.help,
		styles: m.styles,
		title:  m.title,
		width:  m.width,
		onQuit: m.onQuit,
	}
}
// #endregion model

// #region view
func (m Model) View() string {
	var b strings.Builder
	if m.title != "" {
		b.WriteString(m.styles.Title.Render(m.title))
		b.WriteString("\n")
	}
	if m.done {
		b.WriteString(m.summary)
		b.WriteString("\n\n")
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.Quit}))
		return b.String()
	}

	b.WriteString(m.styles.Tally.Render(fmt.Sprintf("Total Points: %d", m.total)))
	b.WriteString("\n")
	if m.shown {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.panel(1), "  ", m.panel(2)))
		b.WriteString("\n")
	}
	if m.onContinue != nil {
		b.WriteString("\n")
		b.WriteString(m.styles.Next.Render("NEXT"))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) panel(option int) string {
	body := m.stimulus[option-1]
	if m.feedback != nil && m.feedback.Option == option {
		switch m.feedback.Style {
		case trial.FeedbackHighlight:
		case trial.FeedbackCue:
			body += "\n\n" + m.styles.Feedback.Render("cue: "+m.feedback.CueImage)
		default:
			body += "\n\n" + m.styles.Feedback.Render(m.feedback.Value.String()+" points")
		}
	}
	style := m.styles.Panel
	switch {
	case m.chosen == option:
		style = m.styles.Chosen
	case m.chosen != 0:
		style = m.styles.NotChosen
	}
	return style.Render(body)
}
// #endregion view
