package trial

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/bandit-task/internal/outcome"
	"github.com/danielpatrickdp/bandit-task/internal/session"
)

// #region variant
// Variant selects the behaviour that differs between the two bandit tasks.
type Variant struct {
	Name        string
	HasTally    bool // add feedback to the session tally and show the running total
	AutoAdvance bool // end after the outcome delay instead of waiting for NEXT
}

var (
	// InfoCue adds to the tally and waits for the participant to press NEXT.
	InfoCue = Variant{Name: "info-cue", HasTally: true}
	// CueInfoOutcome shows the sampled cue and ends on its own.
	CueInfoOutcome = Variant{Name: "cue-info-outcome", AutoAdvance: true}
)

// VariantByName looks up a preset by its task name.
func VariantByName(name string) (Variant, bool) {
	switch name {
	case InfoCue.Name:
		return InfoCue, true
	case CueInfoOutcome.Name:
		return CueInfoOutcome, true
	}
	return Variant{}, false
}
// #endregion variant

// #region feedback-style
// FeedbackStyle controls how feedback is drawn next to the chosen stimulus.
type FeedbackStyle string

const (
	FeedbackAuto      FeedbackStyle = "auto"
	FeedbackPoints    FeedbackStyle = "points"    // "<value> points" text
	FeedbackCue       FeedbackStyle = "cue"       // the option's cue image
	FeedbackHighlight FeedbackStyle = "highlight" // chosen/notChosen marking only
)

// ParseFeedbackStyle validates s. The empty string means auto.
func ParseFeedbackStyle(s string) (FeedbackStyle, error) {
	switch FeedbackStyle(s) {
	case "", FeedbackAuto:
		return FeedbackAuto, nil
	case FeedbackPoints, FeedbackCue, FeedbackHighlight:
		return FeedbackStyle(s), nil
	}
	return "", &outcome.ConfigurationError{Field: "feedback_style", Reason: fmt.Sprintf("unknown style %q", s)}
}
// #endregion feedback-style

// #region config
// DefaultFeedbackDuration is the feedback display time used when a timeline
// does not set one.
const DefaultFeedbackDuration = 1500 * time.Millisecond

// Config is the per-trial parameter set supplied by the sequencer. The
// controller never modifies it.
type Config struct {
	Stimulus1        string
	Stimulus2        string
	Cue1             string
	Cue2             string
	Outcomes1        outcome.Distribution
	Outcomes2        outcome.Distribution
	FeedbackDuration time.Duration
	PreTrialInterval time.Duration
	Variant          Variant
	FeedbackStyle    FeedbackStyle
}

// Validate reports every problem with the config.
func (c Config) Validate() error {
	var errs []error
	if c.Stimulus1 == "" {
		errs = append(errs, &outcome.ConfigurationError{Field: "stimulus1", Reason: "required"})
	}
	if c.Stimulus2 == "" {
		errs = append(errs, &outcome.ConfigurationError{Field: "stimulus2", Reason: "required"})
	}
	if err := c.Outcomes1.Validate("outcomes1"); err != nil {
		errs = append(errs, err)
	}
	if err := c.Outcomes2.Validate("outcomes2"); err != nil {
		errs = append(errs, err)
	}
	if c.FeedbackDuration < 0 {
		errs = append(errs, &outcome.ConfigurationError{Field: "feedback_duration", Reason: "must not be negative"})
	}
	if c.PreTrialInterval < 0 {
		errs = append(errs, &outcome.ConfigurationError{Field: "pre_trial_interval", Reason: "must not be negative"})
	}
	if _, err := ParseFeedbackStyle(string(c.FeedbackStyle)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Distribution returns the outcome distribution of option 1 or 2.
func (c Config) Distribution(option int) outcome.Distribution {
	if option == 2 {
		return c.Outcomes2
	}
	return c.Outcomes1
}

// Cue returns the cue image of option 1 or 2.
func (c Config) Cue(option int) string {
	if option == 2 {
		return c.Cue2
	}
	return c.Cue1
}

// Style resolves the feedback style for the chosen option.
func (c Config) Style(option int) FeedbackStyle {
	switch c.FeedbackStyle {
	case FeedbackPoints, FeedbackHighlight:
		return c.FeedbackStyle
	case FeedbackCue:
		if c.Cue(option) != "" {
			return FeedbackCue
		}
		return FeedbackPoints
	}
	if c.Variant.HasTally && c.Cue(option) != "" {
		return FeedbackCue
	}
	return FeedbackPoints
}
// #endregion config

// #region state
// State is a trial's lifecycle position.
type State int

const (
	Idle State = iota
	AwaitingPreTrialDelay
	PresentingChoice
	AwaitingOutcomeDelay
	AwaitingContinue
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingPreTrialDelay:
		return "awaiting_pre_trial_delay"
	case PresentingChoice:
		return "presenting_choice"
	case AwaitingOutcomeDelay:
		return "awaiting_outcome_delay"
	case AwaitingContinue:
		return "awaiting_continue"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("state(%d)", int(s))
}
// #endregion state

// #region events
// EventKind tags an input event.
type EventKind int

const (
	OptionSelected EventKind = iota + 1
	ContinueClicked
	AbortRequested
)

func (k EventKind) String() string {
	switch k {
	case OptionSelected:
		return "option_selected"
	case ContinueClicked:
		return "continue_clicked"
	case AbortRequested:
		return "abort_requested"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is an input delivered to the controller. Option is 1 or 2 for
// OptionSelected and zero otherwise.
type Event struct {
	Kind   EventKind
	Option int

	offered bool
}
// #endregion events

// #region records
// ResponseRecord is what the participant did in this trial. Fields stay nil
// until known.
type ResponseRecord struct {
	Choice       *int
	Feedback     *outcome.Value
	ReactionTime *time.Duration
}

// Result is the record handed to the sequencer when a trial ends. Nil fields
// could not be determined, for example after a forced end.
type Result struct {
	TrialIndex     int            `json:"banditTrial"`
	Choice         *int           `json:"choice"`
	Feedback       *outcome.Value `json:"feedback"`
	ReactionTimeMs *int64         `json:"rt"`
	Tally          *int           `json:"tally,omitempty"`
	Variant        string         `json:"variant"`
	Aborted        bool           `json:"aborted,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// Feedback is what the view draws after a choice.
type Feedback struct {
	Option   int
	Value    outcome.Value
	Style    FeedbackStyle
	CueImage string
}
// #endregion records

// #region ports
// View is the presentation layer. It owns no decision state; the two
// callbacks are its only way back into the controller.
type View interface {
	Layout(total int)
	ShowChoices(stimulus1, stimulus2 string, onSelect func(option int))
	DisableChoices()
	ShowFeedback(fb Feedback)
	ShowTally(total int)
	ShowContinue(onContinue func())
	Clear()
}

// Observer is told about every state transition.
type Observer interface {
	Transition(index int, from, to State, at time.Time)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(index int, from, to State, at time.Time)

func (f ObserverFunc) Transition(index int, from, to State, at time.Time) { f(index, from, to, at) }

// Observers fans a transition out to each observer in order.
type Observers []Observer

func (obs Observers) Transition(index int, from, to State, at time.Time) {
	for _, o := range obs {
		if o != nil {
			o.Transition(index, from, to, at)
		}
	}
}

// Deps are the collaborators of a controller. Session, Sampler and View are
// required.
type Deps struct {
	Session  *session.State
	Sampler  *outcome.Sampler
	View     View
	Clock    clockwork.Clock
	Logger   *zap.Logger
	Observer Observer

	// OutcomeDelay replaces the trial's FeedbackDuration when positive.
	OutcomeDelay time.Duration
}
// #endregion ports

// #region errors
// ErrAborted is returned by Run when the trial was ended by the host.
var ErrAborted = errors.New("trial aborted")

// InvalidSelectionError describes an input that arrived in a state that does
// not accept it. The controller logs and ignores it.
type InvalidSelectionError struct {
	Event Event
	State State
}

func (e *InvalidSelectionError) Error() string {
	return fmt.Sprintf("%s (option %d) not accepted in state %s", e.Event.Kind, e.Event.Option, e.State)
}
// #endregion errors
