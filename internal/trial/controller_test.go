package trial

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/danielpatrickdp/bandit-task/internal/outcome"
	"github.com/danielpatrickdp/bandit-task/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// #region helpers
type recordingView struct {
	mu         sync.Mutex
	calls      []string
	feedback   []Feedback
	onSelect   func(int)
	onContinue func()
}

func (v *recordingView) record(call string) {
	v.calls = append(v.calls, call)
}

func (v *recordingView) Layout(total int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.record(fmt.Sprintf("layout %d", total))
}

func (v *recordingView) ShowChoices(s1, s2 string, onSelect func(int)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onSelect = onSelect
	v.record("choices " + s1 + " " + s2)
}

func (v *recordingView) DisableChoices() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onSelect = nil
	v.record("disable")
}

func (v *recordingView) ShowFeedback(fb Feedback) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.feedback = append(v.feedback, fb)
	v.record(fmt.Sprintf("feedback %d %s", fb.Option, fb.Value))
}

func (v *recordingView) ShowTally(total int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.record(fmt.Sprintf("tally %d", total))
}

func (v *recordingView) ShowContinue(onContinue func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onContinue = onContinue
	v.record("continue")
}

func (v *recordingView) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onSelect = nil
	v.onContinue = nil
	v.record("clear")
}

func (v *recordingView) selectHandler() func(int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.onSelect
}

func (v *recordingView) continueHandler() func() {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.onContinue
}

func (v *recordingView) Calls() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.calls...)
}

type runOutcome struct {
	result Result
	err    error
}

type harness struct {
	t      *testing.T
	clock  *clockwork.FakeClock
	view   *recordingView
	sess   *session.State
	ctrl   *Controller
	states chan State
	out    chan runOutcome
	cancel context.CancelFunc
}

func baseConfig(v Variant) Config {
	return Config{
		Stimulus1:        "img/blue.png",
		Stimulus2:        "img/orange.png",
		Outcomes1:        outcome.Constant("10"),
		Outcomes2:        outcome.Constant("5"),
		FeedbackDuration: DefaultFeedbackDuration,
		Variant:          v,
	}
}

// start runs a controller on a fake clock. Nil session and clock get fresh ones.
func start(t *testing.T, cfg Config, deps Deps) *harness {
	t.Helper()
	h := prepare(t, cfg, deps)
	h.run()
	return h
}

// prepare builds the controller without running it.
func prepare(t *testing.T, cfg Config, deps Deps) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		view:   &recordingView{},
		states: make(chan State, 64),
		out:    make(chan runOutcome, 1),
	}
	if deps.Session == nil {
		deps.Session = session.New(0)
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewFakeClock()
	}
	h.clock = deps.Clock.(*clockwork.FakeClock)
	h.sess = deps.Session
	deps.Sampler = outcome.NewSampler(7)
	deps.View = h.view
	deps.Observer = Observers{deps.Observer, ObserverFunc(func(_ int, _, to State, _ time.Time) {
		h.states <- to
	})}

	ctrl, err := New(cfg, deps)
	require.NoError(t, err)
	h.ctrl = ctrl
	return h
}

func (h *harness) run() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.t.Cleanup(cancel)
	go func() {
		r, err := h.ctrl.Run(ctx)
		h.out <- runOutcome{result: r, err: err}
	}()
}

func (h *harness) waitFor(want State) {
	h.t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s := <-h.states:
			if s == want {
				return
			}
		case <-timeout:
			h.t.Fatalf("timed out waiting for %s, controller is %s", want, h.ctrl.State())
		}
	}
}

// advance moves the clock once the controller has armed its timer.
func (h *harness) advance(d time.Duration) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(h.t, h.clock.BlockUntilContext(ctx, 1), "no timer armed")
	h.clock.Advance(d)
}

func (h *harness) noTimerArmed() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	return h.clock.BlockUntilContext(ctx, 1) != nil
}

func (h *harness) wait() runOutcome {
	h.t.Helper()
	select {
	case o := <-h.out:
		return o
	case <-time.After(2 * time.Second):
		h.t.Fatalf("trial did not finish, controller is %s", h.ctrl.State())
	}
	return runOutcome{}
}
// #endregion helpers

func TestScenarioA_ConstantOutcome(t *testing.T) {
	h := start(t, baseConfig(CueInfoOutcome), Deps{})
	h.waitFor(PresentingChoice)
	h.ctrl.Select(1)
	h.waitFor(AwaitingOutcomeDelay)
	h.advance(DefaultFeedbackDuration)

	o := h.wait()
	require.NoError(t, o.err)
	require.NotNil(t, o.result.Choice)
	require.NotNil(t, o.result.Feedback)
	assert.Equal(t, 1, *o.result.Choice)
	assert.Equal(t, outcome.Value("10"), *o.result.Feedback)
	assert.Equal(t, 1, o.result.TrialIndex)
	assert.False(t, o.result.Aborted)
	assert.Nil(t, o.result.Tally)
	assert.Equal(t, 0, h.sess.Total(), "cue variant leaves the tally alone")
	assert.NotContains(t, h.view.Calls(), "continue")
}

func TestScenarioC_ReactionTime(t *testing.T) {
	h := start(t, baseConfig(CueInfoOutcome), Deps{})
	h.waitFor(PresentingChoice)
	h.clock.Advance(250 * time.Millisecond)
	h.ctrl.Select(2)
	h.waitFor(AwaitingOutcomeDelay)
	h.advance(DefaultFeedbackDuration)

	o := h.wait()
	require.NoError(t, o.err)
	require.NotNil(t, o.result.ReactionTimeMs)
	rt := *o.result.ReactionTimeMs
	assert.GreaterOrEqual(t, rt, int64(250))
	assert.Less(t, rt, int64(300))
	assert.Equal(t, outcome.Value("5"), *o.result.Feedback)
}

func TestSelectBeforeRunIsIgnored(t *testing.T) {
	h := prepare(t, baseConfig(CueInfoOutcome), Deps{})
	h.ctrl.Select(2)
	h.run()
	h.waitFor(PresentingChoice)

	assert.True(t, h.noTimerArmed(), "early click must not start the outcome delay")
	assert.Equal(t, PresentingChoice, h.ctrl.State())
	assert.Nil(t, h.ctrl.Response().Choice)

	h.clock.Advance(250 * time.Millisecond)
	h.ctrl.Select(1)
	h.waitFor(AwaitingOutcomeDelay)
	h.advance(DefaultFeedbackDuration)

	o := h.wait()
	require.NoError(t, o.err)
	assert.Equal(t, 1, *o.result.Choice)
	assert.Equal(t, int64(250), *o.result.ReactionTimeMs)
}

func TestSelectDuringPreTrialDelayIsIgnored(t *testing.T) {
	cfg := baseConfig(CueInfoOutcome)
	cfg.PreTrialInterval = 500 * time.Millisecond
	h := start(t, cfg, Deps{})
	h.waitFor(AwaitingPreTrialDelay)
	h.ctrl.Select(2)
	h.advance(cfg.PreTrialInterval)
	h.waitFor(PresentingChoice)

	assert.True(t, h.noTimerArmed(), "click before the choices were offered must not count")
	assert.Nil(t, h.ctrl.Response().Choice)
	h.ctrl.Abort()
	o := h.wait()
	assert.ErrorIs(t, o.err, ErrAborted)
	assert.Nil(t, o.result.Choice)
}

func TestTallyVariant_SideEffectOrder(t *testing.T) {
	cfg := baseConfig(InfoCue)
	h := start(t, cfg, Deps{Session: session.New(3)})
	h.waitFor(PresentingChoice)
	h.ctrl.Select(1)
	h.waitFor(AwaitingOutcomeDelay)
	h.advance(cfg.FeedbackDuration)
	h.waitFor(AwaitingContinue)

	next := h.view.continueHandler()
	require.NotNil(t, next)
	next()

	o := h.wait()
	require.NoError(t, o.err)
	require.NotNil(t, o.result.Tally)
	assert.Equal(t, 13, *o.result.Tally)
	assert.Equal(t, 13, h.sess.Total())
	assert.Equal(t, []string{
		"layout 3",
		"choices img/blue.png img/orange.png",
		"disable",
		"feedback 1 10",
		"tally 13",
		"continue",
		"clear",
	}, h.view.Calls())
}

func TestDoubleClick_OnlyFirstAccepted(t *testing.T) {
	h := start(t, baseConfig(InfoCue), Deps{})
	h.waitFor(PresentingChoice)

	onSelect := h.view.selectHandler()
	require.NotNil(t, onSelect)
	onSelect(1)
	onSelect(2)
	onSelect(2)

	h.waitFor(AwaitingOutcomeDelay)
	h.advance(DefaultFeedbackDuration)
	h.waitFor(AwaitingContinue)
	h.ctrl.Continue()

	o := h.wait()
	require.NoError(t, o.err)
	assert.Equal(t, 1, *o.result.Choice)
	assert.Equal(t, 10, h.sess.Total(), "tally updated once")
	h.view.mu.Lock()
	assert.Len(t, h.view.feedback, 1)
	h.view.mu.Unlock()
}

func TestContinueIgnoredOutsideAwaitingContinue(t *testing.T) {
	h := start(t, baseConfig(InfoCue), Deps{})
	h.waitFor(PresentingChoice)
	h.ctrl.Continue()
	h.ctrl.Select(3)
	h.ctrl.Select(2)
	h.waitFor(AwaitingOutcomeDelay)
	h.ctrl.Continue()
	assert.NotEqual(t, Finished, h.ctrl.State())

	h.advance(DefaultFeedbackDuration)
	h.waitFor(AwaitingContinue)
	h.ctrl.Continue()
	o := h.wait()
	require.NoError(t, o.err)
	assert.Equal(t, 2, *o.result.Choice)
}

func TestPreTrialDelay(t *testing.T) {
	cfg := baseConfig(CueInfoOutcome)
	cfg.PreTrialInterval = 500 * time.Millisecond
	h := start(t, cfg, Deps{})
	h.waitFor(AwaitingPreTrialDelay)
	h.ctrl.Select(1)
	assert.Nil(t, h.view.selectHandler(), "choices not drawn before the delay")

	h.advance(cfg.PreTrialInterval)
	h.waitFor(PresentingChoice)
	h.clock.Advance(40 * time.Millisecond)
	h.ctrl.Select(2)
	h.waitFor(AwaitingOutcomeDelay)
	h.advance(cfg.FeedbackDuration)

	o := h.wait()
	require.NoError(t, o.err)
	assert.Equal(t, 2, *o.result.Choice, "early click was dropped")
	assert.Equal(t, int64(40), *o.result.ReactionTimeMs, "rt is measured from choice presentation")
}

func TestOutcomeDelayOverride(t *testing.T) {
	h := start(t, baseConfig(InfoCue), Deps{OutcomeDelay: 5 * time.Second})
	h.waitFor(PresentingChoice)
	h.ctrl.Select(1)
	h.waitFor(AwaitingOutcomeDelay)

	h.advance(DefaultFeedbackDuration)
	assert.False(t, h.noTimerArmed(), "outcome delay still pending")
	assert.Equal(t, AwaitingOutcomeDelay, h.ctrl.State())

	h.advance(5*time.Second - DefaultFeedbackDuration)
	h.waitFor(AwaitingContinue)
	h.ctrl.Abort()
	h.wait()
}

func TestCueVariant_SamplesChosenOption(t *testing.T) {
	cfg := baseConfig(CueInfoOutcome)
	cfg.Cue2 = "img/cue2.png"
	cfg.Outcomes2 = outcome.Discrete([]outcome.Value{"1", "2", "3"}, outcome.EqualWeights())
	h := start(t, cfg, Deps{})
	h.waitFor(PresentingChoice)
	h.ctrl.Select(2)
	h.waitFor(AwaitingOutcomeDelay)
	h.advance(cfg.FeedbackDuration)

	o := h.wait()
	require.NoError(t, o.err)
	assert.Contains(t, []outcome.Value{"1", "2", "3"}, *o.result.Feedback)
	h.view.mu.Lock()
	defer h.view.mu.Unlock()
	require.Len(t, h.view.feedback, 1)
	assert.Equal(t, FeedbackPoints, h.view.feedback[0].Style)
	assert.Equal(t, "img/cue2.png", h.view.feedback[0].CueImage)
}

func TestAbortDuringOutcomeDelay_NoStaleTimer(t *testing.T) {
	sess := session.New(0)
	clock := clockwork.NewFakeClock()

	first := start(t, baseConfig(InfoCue), Deps{Session: sess, Clock: clock})
	first.waitFor(PresentingChoice)
	first.ctrl.Select(1)
	first.waitFor(AwaitingOutcomeDelay)
	first.ctrl.Abort()

	o := first.wait()
	require.ErrorIs(t, o.err, ErrAborted)
	assert.True(t, o.result.Aborted)
	assert.Empty(t, o.result.Error)
	assert.Equal(t, 1, *o.result.Choice)
	assert.True(t, first.noTimerArmed(), "outcome delay timer cancelled")

	second := start(t, baseConfig(InfoCue), Deps{Session: sess, Clock: clock})
	second.waitFor(PresentingChoice)
	clock.Advance(10 * time.Second)
	assert.Equal(t, PresentingChoice, second.ctrl.State())
	assert.Nil(t, second.ctrl.Response().Choice)

	second.ctrl.Select(2)
	second.waitFor(AwaitingOutcomeDelay)
	second.advance(DefaultFeedbackDuration)
	second.waitFor(AwaitingContinue)
	second.ctrl.Continue()
	o2 := second.wait()
	require.NoError(t, o2.err)
	assert.Equal(t, 2, o2.result.TrialIndex)
	assert.Equal(t, 15, sess.Total())
}

func TestContextCancel(t *testing.T) {
	h := start(t, baseConfig(InfoCue), Deps{})
	h.waitFor(PresentingChoice)
	h.cancel()

	o := h.wait()
	require.ErrorIs(t, o.err, ErrAborted)
	assert.True(t, o.result.Aborted)
	assert.Nil(t, o.result.Choice)
	assert.Nil(t, o.result.Feedback)
	assert.Nil(t, o.result.ReactionTimeMs)
	assert.Equal(t, "clear", h.view.Calls()[len(h.view.Calls())-1])
}

func TestInputsAfterFinishAreDropped(t *testing.T) {
	h := start(t, baseConfig(CueInfoOutcome), Deps{})
	h.waitFor(PresentingChoice)
	h.ctrl.Abort()
	h.wait()

	for i := 0; i < 50; i++ {
		h.ctrl.Select(1)
		h.ctrl.Continue()
	}
	assert.Equal(t, Finished, h.ctrl.State())
	assert.Nil(t, h.ctrl.Response().Choice)

	_, err := h.ctrl.Run(context.Background())
	assert.Error(t, err, "a controller runs once")
}

func TestNumericCoercionFailure(t *testing.T) {
	cfg := baseConfig(InfoCue)
	cfg.Outcomes1 = outcome.Constant("lots")
	h := start(t, cfg, Deps{Session: session.New(4)})
	h.waitFor(PresentingChoice)
	h.ctrl.Select(1)

	o := h.wait()
	var numErr *outcome.NumericCoercionError
	require.ErrorAs(t, o.err, &numErr)
	assert.False(t, o.result.Aborted)
	assert.NotEmpty(t, o.result.Error)
	assert.Equal(t, outcome.Value("lots"), *o.result.Feedback)
	assert.Nil(t, o.result.Tally)
	assert.Equal(t, 4, h.sess.Total())
	assert.True(t, h.noTimerArmed())
}

func TestNew_ConfigurationError(t *testing.T) {
	cfg := baseConfig(InfoCue)
	cfg.Stimulus2 = ""
	cfg.Outcomes1 = outcome.Discrete([]outcome.Value{"0", "10"}, outcome.Explicit(1))
	view := &recordingView{}

	_, err := New(cfg, Deps{Session: session.New(0), Sampler: outcome.NewSampler(1), View: view})
	var cfgErr *outcome.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "stimulus2")
	assert.Contains(t, err.Error(), "outcomes1")
	assert.Empty(t, view.Calls(), "nothing rendered")

	_, err = New(baseConfig(InfoCue), Deps{})
	assert.Error(t, err)
}

func TestConfigStyle(t *testing.T) {
	cfg := baseConfig(InfoCue)
	assert.Equal(t, FeedbackPoints, cfg.Style(1))
	cfg.Cue1 = "img/cue1.png"
	assert.Equal(t, FeedbackCue, cfg.Style(1))
	assert.Equal(t, FeedbackPoints, cfg.Style(2))

	cfg.FeedbackStyle = FeedbackHighlight
	assert.Equal(t, FeedbackHighlight, cfg.Style(1))

	cfg.Variant = CueInfoOutcome
	cfg.FeedbackStyle = FeedbackAuto
	assert.Equal(t, FeedbackPoints, cfg.Style(1))

	_, err := ParseFeedbackStyle("bold")
	assert.Error(t, err)
}

func TestObserverSeesEveryTransition(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	obs := ObserverFunc(func(index int, from, to State, _ time.Time) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, fmt.Sprintf("%d:%s>%s", index, from, to))
	})
	h := start(t, baseConfig(CueInfoOutcome), Deps{Observer: obs})
	h.waitFor(PresentingChoice)
	h.ctrl.Select(1)
	h.waitFor(AwaitingOutcomeDelay)
	h.advance(DefaultFeedbackDuration)
	h.wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"1:idle>awaiting_pre_trial_delay",
		"1:awaiting_pre_trial_delay>presenting_choice",
		"1:presenting_choice>awaiting_outcome_delay",
		"1:awaiting_outcome_delay>finished",
	}, seen)
}
