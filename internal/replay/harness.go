// Package replay drives real trial controllers with simulated participants on
// simulated time, for bulk simulation and for regression fixtures.
package replay

import (
	"context"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/danielpatrickdp/bandit-task/internal/outcome"
	"github.com/danielpatrickdp/bandit-task/internal/session"
	"github.com/danielpatrickdp/bandit-task/internal/timeline"
	"github.com/danielpatrickdp/bandit-task/internal/trial"
)

// #region sim-clock
// simClock is a fake clock on which every timer fires as soon as it is armed,
// moving simulated time forward by the timer's duration.
type simClock struct {
	*clockwork.FakeClock
}

func (c simClock) NewTimer(d time.Duration) clockwork.Timer {
	t := c.FakeClock.NewTimer(d)
	c.FakeClock.Advance(d)
	return t
}
// #endregion sim-clock

// #region participant
// participant is the view and observer a simulated run plugs into each
// controller: it keeps the handlers the controller hands out and answers
// them according to the policy.
type participant struct {
	policy  Policy
	configs []trial.Config
	clock   simClock
	log     *zap.Logger

	n          int
	ctrl       *trial.Controller
	onSelect   func(int)
	onContinue func()
}

func (p *participant) started(c *trial.Controller) { p.ctrl = c }

func (p *participant) Layout(int) { p.n++ }

func (p *participant) ShowChoices(_, _ string, onSelect func(int)) { p.onSelect = onSelect }

func (p *participant) DisableChoices() { p.onSelect = nil }

func (p *participant) ShowFeedback(trial.Feedback) {}

func (p *participant) ShowTally(int) {}

func (p *participant) ShowContinue(onContinue func()) { p.onContinue = onContinue }

func (p *participant) Clear() {
	p.onSelect = nil
	p.onContinue = nil
}

// Transition runs on the controller goroutine, after the state change.
func (p *participant) Transition(index int, _, to trial.State, _ time.Time) {
	switch to {
	case trial.PresentingChoice:
		c := p.policy.Choose(p.n-1, p.configs[p.n-1])
		if c.Option != 1 && c.Option != 2 {
			p.log.Warn("policy gave no usable choice, aborting trial", zap.Int("trial", index), zap.Int("option", c.Option))
			p.ctrl.Abort()
			return
		}
		if c.ReactionTime > 0 {
			p.clock.Advance(c.ReactionTime)
		}
		if p.onSelect != nil {
			p.onSelect(c.Option)
		}
	case trial.AwaitingContinue:
		if p.onContinue != nil {
			p.onContinue()
		}
	}
}
// #endregion participant

// #region harness
// Harness runs configs against a session with a simulated participant.
type Harness struct {
	Sampler  *outcome.Sampler
	Policy   Policy
	Logger   *zap.Logger
	Observer trial.Observer
	Sink     timeline.Sink

	// OutcomeDelay overrides every trial's feedback duration when positive.
	OutcomeDelay time.Duration
}

// Run plays every config in order. Delays cost no wall-clock time.
func (h *Harness) Run(ctx context.Context, configs []trial.Config, sess *session.State) ([]trial.Result, error) {
	logger := h.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := simClock{clockwork.NewFakeClock()}
	p := &participant{policy: h.Policy, configs: configs, clock: clock, log: logger}

	seq := &timeline.Sequencer{
		Configs:      configs,
		Sampler:      h.Sampler,
		View:         p,
		Clock:        clock,
		Logger:       logger,
		Observer:     trial.Observers{p, h.Observer},
		Sink:         h.Sink,
		OutcomeDelay: h.OutcomeDelay,
		Started:      p.started,
	}
	return seq.Run(ctx, sess)
}
// #endregion harness

// #region summarize
// Summarize computes aggregate stats from results. Non-numeric feedback is
// left out of the feedback means.
func Summarize(results []trial.Result) Summary {
	s := Summary{Trials: len(results)}
	s.Options[0].Option = 1
	s.Options[1].Option = 2

	var feedback [2][]float64
	var rts []float64
	for _, r := range results {
		if r.Aborted {
			s.Aborted++
		}
		if r.Error != "" {
			s.Errors++
		}
		if r.Tally != nil {
			tally := *r.Tally
			s.FinalTally = &tally
		}
		if r.ReactionTimeMs != nil {
			rts = append(rts, float64(*r.ReactionTimeMs))
		}
		if r.Choice == nil || (*r.Choice != 1 && *r.Choice != 2) {
			continue
		}
		i := *r.Choice - 1
		s.Options[i].Count++
		if r.Feedback != nil {
			if f, ok := r.Feedback.Float(); ok {
				feedback[i] = append(feedback[i], f)
			}
		}
	}
	for i := range s.Options {
		s.Options[i].MeanFeedback, s.Options[i].SDFeedback = meanSD(feedback[i])
	}
	s.MeanRTMs, _ = meanSD(rts)
	return s
}

func meanSD(xs []float64) (float64, float64) {
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	}
	mean, sd := stat.MeanStdDev(xs, nil)
	if math.IsNaN(sd) {
		sd = 0
	}
	return mean, sd
}
// #endregion summarize
