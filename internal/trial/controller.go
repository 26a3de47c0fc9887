// Package trial runs the lifecycle of one two-armed-bandit trial: present two
// options, accept exactly one choice, sample and show feedback, update the
// session tally, and report a Result.
package trial

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// #region controller
// Controller owns a single trial. Inputs may be delivered from any goroutine;
// every state change happens on the goroutine that calls Run.
type Controller struct {
	cfg    Config
	deps   Deps
	log    *zap.Logger
	events  chan Event
	done    chan struct{}
	ran     atomic.Bool
	offered atomic.Bool // choices have been handed to the view

	mu    sync.Mutex
	state State
	resp  ResponseRecord

	// owned by the Run goroutine
	index    int
	timer    clockwork.Timer
	choiceAt time.Time
	tally    *int
	aborted  bool
	runErr   error
}

// New validates cfg and returns a controller ready to Run. Configuration
// problems are reported here, before anything is drawn.
func New(cfg Config, deps Deps) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Session == nil || deps.Sampler == nil || deps.View == nil {
		return nil, errors.New("new controller: session, sampler and view are required")
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Controller{
		cfg:    cfg,
		deps:   deps,
		log:    deps.Logger,
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}, nil
}
// #endregion controller

// #region inputs
// Select delivers a click on option 1 or 2.
func (c *Controller) Select(option int) { c.Dispatch(Event{Kind: OptionSelected, Option: option}) }

// Continue delivers a click on the NEXT control.
func (c *Controller) Continue() { c.Dispatch(Event{Kind: ContinueClicked}) }

// Abort ends the trial early from any state.
func (c *Controller) Abort() { c.Dispatch(Event{Kind: AbortRequested}) }

// Dispatch queues ev for the controller. Events sent after the trial has
// finished are dropped, and a selection sent before the choices were offered
// is marked so it can never be accepted.
func (c *Controller) Dispatch(ev Event) {
	if ev.Kind == OptionSelected {
		ev.offered = c.offered.Load()
	}
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.events <- ev:
	case <-c.done:
	}
}
// #endregion inputs

// #region accessors
// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Response returns a copy of the response recorded so far.
func (c *Controller) Response() ResponseRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resp
}
// #endregion accessors

// #region run
// Run drives the trial until it finishes and returns its Result. The Result
// is always usable; the error is ErrAborted for a forced end or the runtime
// failure that ended the trial early.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	if !c.ran.CompareAndSwap(false, true) {
		return Result{}, errors.New("run: trial already started")
	}
	defer close(c.done)

	c.index = c.deps.Session.BeginTrial()
	c.log = c.deps.Logger.With(zap.Int("trial", c.index), zap.String("variant", c.cfg.Variant.Name))
	c.deps.View.Layout(c.deps.Session.Total())

	c.transition(AwaitingPreTrialDelay)
	if c.cfg.PreTrialInterval <= 0 {
		c.presentChoice()
	} else {
		c.schedule(c.cfg.PreTrialInterval)
	}

	for c.State() != Finished {
		var timerC <-chan time.Time
		if c.timer != nil {
			timerC = c.timer.Chan()
		}
		select {
		case <-ctx.Done():
			c.aborted = true
			c.finish(ErrAborted)
		case <-timerC:
			c.timer = nil
			c.onTimer()
		case ev := <-c.events:
			c.handle(ev)
		}
	}

	return c.result(), c.runErr
}

func (c *Controller) onTimer() {
	switch c.State() {
	case AwaitingPreTrialDelay:
		c.presentChoice()
	case AwaitingOutcomeDelay:
		if c.cfg.Variant.AutoAdvance {
			c.finish(nil)
			return
		}
		c.deps.View.ShowContinue(c.Continue)
		c.transition(AwaitingContinue)
	}
}

func (c *Controller) handle(ev Event) {
	state := c.State()
	switch ev.Kind {
	case AbortRequested:
		c.aborted = true
		c.finish(ErrAborted)
	case OptionSelected:
		if state != PresentingChoice || !ev.offered || (ev.Option != 1 && ev.Option != 2) {
			c.ignore(ev, state)
			return
		}
		c.choose(ev.Option)
	case ContinueClicked:
		if state != AwaitingContinue {
			c.ignore(ev, state)
			return
		}
		c.finish(nil)
	default:
		c.ignore(ev, state)
	}
}

func (c *Controller) ignore(ev Event, state State) {
	c.log.Debug("input ignored", zap.Error(&InvalidSelectionError{Event: ev, State: state}))
}
// #endregion run

// #region steps
func (c *Controller) presentChoice() {
	c.offered.Store(true)
	c.deps.View.ShowChoices(c.cfg.Stimulus1, c.cfg.Stimulus2, c.Select)
	c.choiceAt = c.deps.Clock.Now()
	c.transition(PresentingChoice)
}

// choose runs the accepted click. The order is fixed: close the choice
// window, sample, draw feedback, update the tally, start the outcome delay.
func (c *Controller) choose(option int) {
	now := c.deps.Clock.Now()
	c.transition(AwaitingOutcomeDelay)
	c.deps.View.DisableChoices()

	rt := now.Sub(c.choiceAt)
	if rt < 0 {
		rt = 0
	}
	c.mu.Lock()
	c.resp.Choice = &option
	c.resp.ReactionTime = &rt
	c.mu.Unlock()

	value, err := c.deps.Sampler.Sample(c.cfg.Distribution(option))
	if err != nil {
		c.fail(fmt.Errorf("sample option %d: %w", option, err))
		return
	}
	c.mu.Lock()
	c.resp.Feedback = &value
	c.mu.Unlock()
	c.log.Info("choice",
		zap.Int("option", option),
		zap.String("feedback", value.String()),
		zap.Int64("rt_ms", rt.Milliseconds()))

	c.deps.View.ShowFeedback(Feedback{
		Option:   option,
		Value:    value,
		Style:    c.cfg.Style(option),
		CueImage: c.cfg.Cue(option),
	})

	if c.cfg.Variant.HasTally {
		total, err := c.deps.Session.Add(value)
		if err != nil {
			c.fail(fmt.Errorf("update tally: %w", err))
			return
		}
		c.tally = &total
		c.deps.View.ShowTally(total)
	}

	c.schedule(c.outcomeDelay())
}

func (c *Controller) outcomeDelay() time.Duration {
	if c.deps.OutcomeDelay > 0 {
		return c.deps.OutcomeDelay
	}
	return c.cfg.FeedbackDuration
}

func (c *Controller) schedule(d time.Duration) {
	c.stopTimer()
	c.timer = c.deps.Clock.NewTimer(d)
}

func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) fail(err error) {
	c.log.Error("trial failed", zap.Error(err))
	c.finish(err)
}

// finish is the one-way exit: cancel pending timers, clear the view, and
// mark the trial Finished.
func (c *Controller) finish(err error) {
	if c.State() == Finished {
		return
	}
	c.stopTimer()
	if c.runErr == nil {
		c.runErr = err
	}
	c.deps.View.Clear()
	c.transition(Finished)
}

func (c *Controller) transition(to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.mu.Unlock()

	c.log.Debug("transition", zap.String("from", from.String()), zap.String("to", to.String()))
	if c.deps.Observer != nil {
		c.deps.Observer.Transition(c.index, from, to, c.deps.Clock.Now())
	}
}
// #endregion steps

// #region result
func (c *Controller) result() Result {
	resp := c.Response()
	r := Result{
		TrialIndex: c.index,
		Variant:    c.cfg.Variant.Name,
		Aborted:    c.aborted,
		Tally:      c.tally,
	}
	if resp.Choice != nil {
		choice := *resp.Choice
		r.Choice = &choice
	}
	if resp.Feedback != nil {
		fb := *resp.Feedback
		r.Feedback = &fb
	}
	if resp.ReactionTime != nil {
		ms := resp.ReactionTime.Milliseconds()
		r.ReactionTimeMs = &ms
	}
	if c.runErr != nil && !errors.Is(c.runErr, ErrAborted) {
		r.Error = c.runErr.Error()
	}
	return r
}
// #endregion result
