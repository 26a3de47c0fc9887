package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/danielpatrickdp/bandit-task/internal/outcome"
	"github.com/danielpatrickdp/bandit-task/internal/timeline"
	"github.com/danielpatrickdp/bandit-task/internal/trial"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture. Trials come
// either from a timeline file (relative to the fixture) or inline, written
// in the timeline block format.
type Fixture struct {
	Description     string                  `json:"description"`
	Seed            uint64                  `json:"seed"`
	StartingPoints  int                     `json:"starting_points"`
	Timeline        string                  `json:"timeline,omitempty"`
	Trials          json.RawMessage         `json:"trials,omitempty"`
	Choices         []FixtureChoice         `json:"choices"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
	ExpectedTotal   *int                    `json:"expected_total,omitempty"`

	dir string
}

// FixtureChoice is one scripted response.
type FixtureChoice struct {
	Option int   `json:"option"`
	RTMs   int64 `json:"rt_ms"`
}

// FixtureExpectedResult is the expected record of one trial. Nil fields are
// not checked.
type FixtureExpectedResult struct {
	TrialIndex int            `json:"banditTrial"`
	Choice     *int           `json:"choice,omitempty"`
	Feedback   *outcome.Value `json:"feedback,omitempty"`
	RTMs       *int64         `json:"rt,omitempty"`
	Tally      *int           `json:"tally,omitempty"`
	Aborted    bool           `json:"aborted,omitempty"`
	Failed     bool           `json:"failed,omitempty"`
}
// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	f.dir = filepath.Dir(path)
	return &f, nil
}

// Configs resolves the fixture's trials.
func (f *Fixture) Configs() ([]trial.Config, error) {
	var tl *timeline.Timeline
	var err error
	switch {
	case f.Timeline != "" && len(f.Trials) > 0:
		return nil, fmt.Errorf("fixture: set timeline or trials, not both")
	case f.Timeline != "":
		path := f.Timeline
		if !filepath.IsAbs(path) {
			path = filepath.Join(f.dir, path)
		}
		tl, err = timeline.Load(path)
	case len(f.Trials) > 0:
		// JSON is valid YAML, so inline blocks go through the timeline parser.
		doc := append(append([]byte(`{"trials": `), f.Trials...), '}')
		tl, err = timeline.Parse(doc)
	default:
		return nil, fmt.Errorf("fixture: no trials")
	}
	if err != nil {
		return nil, fmt.Errorf("fixture: %w", err)
	}
	return tl.Configs()
}

// Policy returns the scripted participant.
func (f *Fixture) Policy() ScriptedPolicy {
	choices := make([]Choice, len(f.Choices))
	for i, c := range f.Choices {
		choices[i] = Choice{Option: c.Option, ReactionTime: time.Duration(c.RTMs) * time.Millisecond}
	}
	return ScriptedPolicy{Choices: choices}
}
// #endregion fixture-loader

// #region fixture-check

// Check compares results and the final session total with the expectations
// and returns one line per mismatch.
func (f *Fixture) Check(results []trial.Result, total int) []string {
	var diffs []string
	if len(results) != len(f.ExpectedResults) {
		diffs = append(diffs, fmt.Sprintf("expected %d results, got %d", len(f.ExpectedResults), len(results)))
	}
	for i, exp := range f.ExpectedResults {
		if i >= len(results) {
			break
		}
		got := results[i]
		where := fmt.Sprintf("trial %d", i+1)
		if exp.TrialIndex != 0 && exp.TrialIndex != got.TrialIndex {
			diffs = append(diffs, fmt.Sprintf("%s: banditTrial want %d got %d", where, exp.TrialIndex, got.TrialIndex))
		}
		if exp.Choice != nil && !equalPtr(exp.Choice, got.Choice) {
			diffs = append(diffs, fmt.Sprintf("%s: choice want %d got %s", where, *exp.Choice, show(got.Choice)))
		}
		if exp.Feedback != nil && !equalPtr(exp.Feedback, got.Feedback) {
			diffs = append(diffs, fmt.Sprintf("%s: feedback want %s got %s", where, *exp.Feedback, show(got.Feedback)))
		}
		if exp.RTMs != nil && !equalPtr(exp.RTMs, got.ReactionTimeMs) {
			diffs = append(diffs, fmt.Sprintf("%s: rt want %d got %s", where, *exp.RTMs, show(got.ReactionTimeMs)))
		}
		if exp.Tally != nil && !equalPtr(exp.Tally, got.Tally) {
			diffs = append(diffs, fmt.Sprintf("%s: tally want %d got %s", where, *exp.Tally, show(got.Tally)))
		}
		if exp.Aborted != got.Aborted {
			diffs = append(diffs, fmt.Sprintf("%s: aborted want %t got %t", where, exp.Aborted, got.Aborted))
		}
		if exp.Failed != (got.Error != "") {
			diffs = append(diffs, fmt.Sprintf("%s: failed want %t got error %q", where, exp.Failed, got.Error))
		}
	}
	if f.ExpectedTotal != nil && *f.ExpectedTotal != total {
		diffs = append(diffs, fmt.Sprintf("total want %d got %d", *f.ExpectedTotal, total))
	}
	return diffs
}

func equalPtr[T comparable](want, got *T) bool {
	return got != nil && *want == *got
}

func show[T any](p *T) string {
	if p == nil {
		return "null"
	}
	return fmt.Sprint(*p)
}
// #endregion fixture-check
