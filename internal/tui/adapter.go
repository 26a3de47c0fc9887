package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/danielpatrickdp/bandit-task/internal/trial"
)

// Sender delivers messages to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Adapter implements trial.View by forwarding every call to the program as a
// message, so the controller never touches model state directly.
type Adapter struct {
	p Sender
}

var _ trial.View = (*Adapter)(nil)

// NewAdapter returns a view that drives p.
func NewAdapter(p Sender) *Adapter { return &Adapter{p: p} }

func (a *Adapter) Layout(total int) { a.p.Send(layoutMsg{total: total}) }

func (a *Adapter) ShowChoices(stimulus1, stimulus2 string, onSelect func(option int)) {
	a.p.Send(choicesMsg{stimulus: [2]string{stimulus1, stimulus2}, onSelect: onSelect})
}

func (a *Adapter) DisableChoices() { a.p.Send(disableMsg{}) }

func (a *Adapter) ShowFeedback(fb trial.Feedback) { a.p.Send(feedbackMsg{fb: fb}) }

func (a *Adapter) ShowTally(total int) { a.p.Send(tallyMsg{total: total}) }

func (a *Adapter) ShowContinue(onContinue func()) { a.p.Send(continueMsg{onContinue: onContinue}) }

func (a *Adapter) Clear() { a.p.Send(clearMsg{}) }

// Finish switches the program to the end-of-session screen.
func (a *Adapter) Finish(summary string) { a.p.Send(doneMsg{summary: summary}) }
