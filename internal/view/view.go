// Package view draws a bandit trial into a display.Element using the grid
// markup of the browser task.
package view

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/danielpatrickdp/bandit-task/internal/display"
	"github.com/danielpatrickdp/bandit-task/internal/trial"
)

// #region markup
const gridMarkup = `<div class="grid-item tally">Total Points: %d</div>` +
	`<div id="option1" class="grid-item options"></div>` +
	`<div id="option2" class="grid-item options"></div>` +
	`<div class="grid-item next"></div>`

const nextButtonMarkup = `<button id="next-button" class="next-button hvr-grow" draggable="false">NEXT</button>`

func stimulusMarkup(option int, src string) string {
	return fmt.Sprintf(`<img id="stimulus%d" class="stimuli" src="%s" draggable="false">`, option, html.EscapeString(src))
}

func pointsMarkup(option int, v string) string {
	return fmt.Sprintf(`<div id="feedback%d" class="feedback"><p>%s points</p></div>`, option, html.EscapeString(v))
}

func cueMarkup(option int, src string) string {
	return fmt.Sprintf(`<img id="cue%d" class="cue" src="%s" draggable="false">`, option, html.EscapeString(src))
}

func tallyText(total int) string { return fmt.Sprintf("Total Points: %d", total) }

func stimulusSel(option int) string { return fmt.Sprintf("#stimulus%d", option) }
func optionSel(option int) string   { return fmt.Sprintf("#option%d", option) }
// #endregion markup

// #region html-view
// HTMLView implements trial.View over a display element. Render failures are
// logged; the view has no way to fail a trial.
type HTMLView struct {
	el  *display.Element
	log *zap.Logger
}

var _ trial.View = (*HTMLView)(nil)

// New returns a view drawing into el. A nil logger discards.
func New(el *display.Element, logger *zap.Logger) *HTMLView {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTMLView{el: el, log: logger.Named("view")}
}

// Layout replaces everything in the element with an empty grid, dropping any
// listener left by a previous trial.
func (v *HTMLView) Layout(total int) {
	v.check("layout", v.el.SetInnerHTML(fmt.Sprintf(gridMarkup, total)))
}

// ShowChoices draws both stimuli and attaches one click handler to each. The
// first click detaches both handlers before the choice is reported.
func (v *HTMLView) ShowChoices(stimulus1, stimulus2 string, onSelect func(option int)) {
	var once sync.Once
	choose := func(option int) {
		once.Do(func() {
			v.DisableChoices()
			onSelect(option)
		})
	}
	for i, src := range []string{stimulus1, stimulus2} {
		option := i + 1
		v.check("draw stimulus", v.el.SetInner(optionSel(option), stimulusMarkup(option, src)))
		v.check("listen stimulus", v.el.AddListener(stimulusSel(option), func() { choose(option) }))
	}
}

// DisableChoices removes both stimulus handlers together.
func (v *HTMLView) DisableChoices() {
	v.el.RemoveListener(stimulusSel(1))
	v.el.RemoveListener(stimulusSel(2))
}

// ShowFeedback marks the chosen stimulus and draws the feedback next to it.
func (v *HTMLView) ShowFeedback(fb trial.Feedback) {
	other := 3 - fb.Option
	v.el.AddClass(stimulusSel(fb.Option), "chosen")
	v.el.AddClass(stimulusSel(other), "notChosen")

	switch fb.Style {
	case trial.FeedbackHighlight:
	case trial.FeedbackCue:
		v.check("draw cue", v.el.Append(optionSel(fb.Option), cueMarkup(fb.Option, fb.CueImage)))
	default:
		v.check("draw feedback", v.el.Append(optionSel(fb.Option), pointsMarkup(fb.Option, fb.Value.String())))
	}
}

// ShowTally redraws the running total.
func (v *HTMLView) ShowTally(total int) {
	v.check("draw tally", v.el.SetInner(".tally", html.EscapeString(tallyText(total))))
}

// ShowContinue draws the NEXT button. The handler sits on the grid cell so a
// click anywhere in it counts.
func (v *HTMLView) ShowContinue(onContinue func()) {
	v.check("draw next", v.el.Append(".next", nextButtonMarkup))
	v.check("listen next", v.el.AddListener(".next", onContinue))
}

// Clear empties the element and every listener in it.
func (v *HTMLView) Clear() { v.el.Clear() }

func (v *HTMLView) check(op string, err error) {
	if err != nil {
		v.log.Warn("render failed", zap.String("op", op), zap.Error(err))
	}
}
// #endregion html-view
