package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/bandit-task/internal/outcome"
	"github.com/danielpatrickdp/bandit-task/internal/replay"
	"github.com/danielpatrickdp/bandit-task/internal/trial"
)

func sample() []trial.Result {
	one, two := 1, 2
	ten, five := outcome.Value("10"), outcome.Value("5")
	rt := int64(420)
	t1, t2 := 10, 15
	return []trial.Result{
		{TrialIndex: 1, Choice: &one, Feedback: &ten, ReactionTimeMs: &rt, Tally: &t1},
		{TrialIndex: 2, Choice: &two, Feedback: &five, ReactionTimeMs: &rt, Tally: &t2},
		{TrialIndex: 3, Aborted: true},
		{TrialIndex: 4, Choice: &one, Error: "sample | broken"},
	}
}

func TestMarkdown(t *testing.T) {
	results := sample()
	md := Markdown(replay.Summarize(results), Options{Title: "Pilot", SessionID: "abc", Results: results})

	assert.Contains(t, md, "# Pilot")
	assert.Contains(t, md, "Session `abc`")
	assert.Contains(t, md, "- Trials: **4**")
	assert.Contains(t, md, "- Total points: **15**")
	assert.Contains(t, md, "- Aborted: 1")
	assert.Contains(t, md, "- Failed: 1")
	assert.Contains(t, md, "| 1 | 2 | 66.7% | 10.00 | 0.00 |")
	assert.Contains(t, md, "| 2 | 2 | 5 | 420 | 15 |  |")
	assert.Contains(t, md, "| 3 | - | - | - | - | aborted |")
	assert.Contains(t, md, `sample \| broken`)
}

func TestMarkdown_MaxRows(t *testing.T) {
	results := sample()
	md := Markdown(replay.Summarize(results), Options{Results: results, MaxRows: 1})
	assert.Contains(t, md, "# Session summary")
	assert.NotContains(t, md, "| 1 | 1 | 10 |")
	assert.Contains(t, md, "| 4 | 1 |")
}

func TestRender(t *testing.T) {
	md := Markdown(replay.Summarize(sample()), Options{Title: "Pilot"})
	out, err := Render(md, 60, "notty")
	require.NoError(t, err)
	assert.Contains(t, out, "Pilot")
	assert.Contains(t, out, "Trials")

	_, err = Render(md, 0, "no-such-style.json")
	assert.Error(t, err)
}
