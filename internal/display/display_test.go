package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const grid = `
<div class="grid-item tally">Total Points: 0</div>
<div id="option1" class="grid-item options"></div>
<div id="option2" class="grid-item options"></div>
<div class="grid-item next"></div>`

func TestSelectorsAndText(t *testing.T) {
	e := New()
	require.NoError(t, e.SetInnerHTML(grid))

	assert.True(t, e.Exists("#option1"))
	assert.True(t, e.Exists(".next"))
	assert.False(t, e.Exists("#stimulus1"))
	assert.Equal(t, "Total Points: 0", e.Text(".tally"))

	require.NoError(t, e.SetInner(".tally", "Total Points: 12"))
	assert.Equal(t, "Total Points: 12", e.Text(".tally"))

	require.NoError(t, e.SetInner("#option1", `<img id="stimulus1" class="stimuli" src="a.png">`))
	assert.Equal(t, "a.png", e.Attr("#stimulus1", "src"))
	assert.True(t, e.AddClass("#stimulus1", "chosen"))
	assert.True(t, e.HasClass("#stimulus1", "stimuli"))
	assert.True(t, e.HasClass("#stimulus1", "chosen"))

	require.Error(t, e.SetInner("#missing", "x"))
}

func TestAppend(t *testing.T) {
	e := New()
	require.NoError(t, e.SetInnerHTML(grid))
	require.NoError(t, e.SetInner("#option1", `<img id="stimulus1">`))
	require.NoError(t, e.Append("#option1", `<div id="feedback1" class="feedback"><p>10 points</p></div>`))

	assert.True(t, e.Exists("#stimulus1"), "append keeps existing content")
	assert.Equal(t, "10 points", e.Text("#feedback1"))
	assert.Contains(t, e.HTML(), `<div id="feedback1" class="feedback"><p>10 points</p></div>`)
}

func TestListeners(t *testing.T) {
	e := New()
	require.NoError(t, e.SetInnerHTML(grid))
	require.NoError(t, e.SetInner("#option1", `<img id="stimulus1">`))

	var clicks int
	require.NoError(t, e.AddListener("#stimulus1", func() { clicks++ }))
	assert.True(t, e.Listening("#stimulus1"))
	assert.True(t, e.Click("#stimulus1"))
	assert.Equal(t, 1, clicks)

	e.RemoveListener("#stimulus1")
	assert.False(t, e.Click("#stimulus1"))
	assert.Equal(t, 1, clicks)

	require.Error(t, e.AddListener("#nope", func() {}))
}

func TestClickBubbles(t *testing.T) {
	e := New()
	require.NoError(t, e.SetInnerHTML(grid))
	require.NoError(t, e.Append(".next", `<button id="next-button">NEXT</button>`))

	var next int
	require.NoError(t, e.AddListener(".next", func() { next++ }))
	assert.True(t, e.Click("#next-button"))
	assert.Equal(t, 1, next)
}

func TestRerenderDropsListeners(t *testing.T) {
	e := New()
	require.NoError(t, e.SetInnerHTML(grid))
	require.NoError(t, e.SetInner("#option1", `<img id="stimulus1">`))
	require.NoError(t, e.AddListener("#stimulus1", func() { t.Fatal("stale listener fired") }))

	// A fresh trial renders a new stimulus with the same id.
	require.NoError(t, e.SetInnerHTML(grid))
	require.NoError(t, e.SetInner("#option1", `<img id="stimulus1">`))
	assert.False(t, e.Click("#stimulus1"))

	e.Clear()
	assert.Empty(t, e.HTML())
	assert.False(t, e.Exists("#option1"))
}
