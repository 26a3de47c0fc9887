// Package timeline loads experiment files and runs their trials in order
// against one session.
package timeline

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/bandit-task/internal/outcome"
	"github.com/danielpatrickdp/bandit-task/internal/trial"
)

// #region load
// Load reads and validates a timeline file.
func Load(path string) (*Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read timeline: %w", err)
	}
	tl, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tl, nil
}

// Parse decodes and validates a timeline document.
func Parse(data []byte) (*Timeline, error) {
	var tl Timeline
	if err := yaml.Unmarshal(data, &tl); err != nil {
		return nil, fmt.Errorf("parse timeline: %w", err)
	}
	if err := tl.Validate(); err != nil {
		return nil, err
	}
	return &tl, nil
}
// #endregion load

// #region validate
// Validate checks every block and reports all problems at once.
func (tl *Timeline) Validate() error {
	var problems []string
	if len(tl.Trials) == 0 {
		problems = append(problems, "no trials")
	}
	if tl.StartingPoints < 0 {
		problems = append(problems, "starting_points must not be negative")
	}
	for i, b := range tl.Trials {
		b = b.merge(tl.Defaults)
		if b.Repeat < 0 {
			problems = append(problems, fmt.Sprintf("trials[%d]: repeat must not be negative", i))
		}
		cfg, err := b.Config()
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			for _, msg := range flatten(err) {
				problems = append(problems, fmt.Sprintf("trials[%d]: %s", i, msg))
			}
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return &outcome.ConfigurationError{Field: "timeline", Reason: strings.Join(problems, "; ")}
}

func flatten(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, flatten(e)...)
		}
		return out
	}
	var cfgErr *outcome.ConfigurationError
	if errors.As(err, &cfgErr) {
		return []string{cfgErr.Field + ": " + cfgErr.Reason}
	}
	return []string{err.Error()}
}
// #endregion validate

// #region expand
// Configs expands the timeline into one trial config per trial, in order.
func (tl *Timeline) Configs() ([]trial.Config, error) {
	var out []trial.Config
	for i, b := range tl.Trials {
		b = b.merge(tl.Defaults)
		cfg, err := b.Config()
		if err != nil {
			return nil, fmt.Errorf("trials[%d]: %w", i, err)
		}
		n := b.Repeat
		if n == 0 {
			n = 1
		}
		for j := 0; j < n; j++ {
			out = append(out, cfg)
		}
	}
	return out, nil
}

// Config converts a merged block into a trial config, applying the task
// defaults for anything left out.
func (b Block) Config() (trial.Config, error) {
	name := b.Type
	if name == "" {
		name = trial.InfoCue.Name
	}
	variant, ok := trial.VariantByName(name)
	if !ok {
		return trial.Config{}, &outcome.ConfigurationError{Field: "type", Reason: fmt.Sprintf("unknown trial type %q", b.Type)}
	}
	if b.HasTally != nil {
		variant.HasTally = *b.HasTally
	}
	if b.AutoAdvance != nil {
		variant.AutoAdvance = *b.AutoAdvance
	}
	style, err := trial.ParseFeedbackStyle(b.FeedbackStyle)
	if err != nil {
		return trial.Config{}, err
	}

	cfg := trial.Config{
		Stimulus1:        b.Stimulus1,
		Stimulus2:        b.Stimulus2,
		Cue1:             b.Cue1,
		Cue2:             b.Cue2,
		Outcomes1:        outcome.Distribution{Values: b.Outcomes1, Weights: b.Prob1},
		Outcomes2:        outcome.Distribution{Values: b.Outcomes2, Weights: b.Prob2},
		FeedbackDuration: trial.DefaultFeedbackDuration,
		Variant:          variant,
		FeedbackStyle:    style,
	}
	if b.FeedbackDuration != nil {
		cfg.FeedbackDuration = b.FeedbackDuration.Std()
	}
	if b.PreTrialInterval != nil {
		cfg.PreTrialInterval = b.PreTrialInterval.Std()
	}
	return cfg, nil
}

// merge fills unset fields of b from def.
func (b Block) merge(def Block) Block {
	str := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	str(&b.Type, def.Type)
	str(&b.Stimulus1, def.Stimulus1)
	str(&b.Stimulus2, def.Stimulus2)
	str(&b.Cue1, def.Cue1)
	str(&b.Cue2, def.Cue2)
	str(&b.FeedbackStyle, def.FeedbackStyle)
	if b.Outcomes1 == nil {
		b.Outcomes1 = def.Outcomes1
	}
	if b.Outcomes2 == nil {
		b.Outcomes2 = def.Outcomes2
	}
	if !b.Prob1.Equal && b.Prob1.List == nil {
		b.Prob1 = def.Prob1
	}
	if !b.Prob2.Equal && b.Prob2.List == nil {
		b.Prob2 = def.Prob2
	}
	if b.FeedbackDuration == nil {
		b.FeedbackDuration = def.FeedbackDuration
	}
	if b.PreTrialInterval == nil {
		b.PreTrialInterval = def.PreTrialInterval
	}
	if b.HasTally == nil {
		b.HasTally = def.HasTally
	}
	if b.AutoAdvance == nil {
		b.AutoAdvance = def.AutoAdvance
	}
	if b.Repeat == 0 {
		b.Repeat = def.Repeat
	}
	return b
}
// #endregion expand
