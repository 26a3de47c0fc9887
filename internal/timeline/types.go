package timeline

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/bandit-task/internal/outcome"
)

// #region duration
// Duration accepts a bare integer of milliseconds or a Go duration string.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration: expected scalar, got %s", node.Tag)
	}
	if ms, err := strconv.ParseInt(node.Value, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }
// #endregion duration

// #region block
// Block is one timeline entry. Repeat copies it that many times in a row.
type Block struct {
	Type             string          `yaml:"type,omitempty"`
	Stimulus1        string          `yaml:"stimulus1,omitempty"`
	Stimulus2        string          `yaml:"stimulus2,omitempty"`
	Cue1             string          `yaml:"cue1,omitempty"`
	Cue2             string          `yaml:"cue2,omitempty"`
	Outcomes1        outcome.Values  `yaml:"outcomes1,omitempty"`
	Outcomes2        outcome.Values  `yaml:"outcomes2,omitempty"`
	Prob1            outcome.Weights `yaml:"prob1,omitempty"`
	Prob2            outcome.Weights `yaml:"prob2,omitempty"`
	FeedbackDuration *Duration       `yaml:"feedback_duration,omitempty"`
	PreTrialInterval *Duration       `yaml:"pre_trial_interval,omitempty"`
	FeedbackStyle    string          `yaml:"feedback_style,omitempty"`
	HasTally         *bool           `yaml:"has_tally,omitempty"`
	AutoAdvance      *bool           `yaml:"auto_advance,omitempty"`
	Repeat           int             `yaml:"repeat,omitempty"`
}
// #endregion block

// #region timeline
// Timeline is a whole experiment file.
type Timeline struct {
	Name           string  `yaml:"name"`
	StartingPoints int     `yaml:"starting_points,omitempty"`
	Seed           uint64  `yaml:"seed,omitempty"`
	Defaults       Block   `yaml:"defaults,omitempty"`
	Trials         []Block `yaml:"trials"`
}
// #endregion timeline
