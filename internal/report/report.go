// Package report renders session summaries as Markdown, styled for the
// terminal with glamour.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/danielpatrickdp/bandit-task/internal/replay"
	"github.com/danielpatrickdp/bandit-task/internal/trial"
)

// Options controls what goes into a report.
type Options struct {
	Title     string
	SessionID string
	Results   []trial.Result // listed row by row when non-empty
	MaxRows   int            // 0 means all rows
}

// #region markdown
// Markdown writes the summary, and optionally the results, as Markdown.
func Markdown(s replay.Summary, opts Options) string {
	var b strings.Builder
	title := opts.Title
	if title == "" {
		title = "Session summary"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if opts.SessionID != "" {
		fmt.Fprintf(&b, "Session `%s`\n\n", opts.SessionID)
	}

	fmt.Fprintf(&b, "- Trials: **%d**\n", s.Trials)
	if s.FinalTally != nil {
		fmt.Fprintf(&b, "- Total points: **%d**\n", *s.FinalTally)
	}
	fmt.Fprintf(&b, "- Mean reaction time: %.0f ms\n", s.MeanRTMs)
	if s.Aborted > 0 {
		fmt.Fprintf(&b, "- Aborted: %d\n", s.Aborted)
	}
	if s.Errors > 0 {
		fmt.Fprintf(&b, "- Failed: %d\n", s.Errors)
	}

	b.WriteString("\n| Option | Chosen | Share | Mean feedback | SD |\n")
	b.WriteString("|---|---:|---:|---:|---:|\n")
	chosen := s.Options[0].Count + s.Options[1].Count
	for _, o := range s.Options {
		share := 0.0
		if chosen > 0 {
			share = float64(o.Count) / float64(chosen) * 100
		}
		fmt.Fprintf(&b, "| %d | %d | %.1f%% | %.2f | %.2f |\n", o.Option, o.Count, share, o.MeanFeedback, o.SDFeedback)
	}

	if len(opts.Results) > 0 {
		b.WriteString("\n## Trials\n\n")
		b.WriteString("| # | Choice | Feedback | RT (ms) | Tally | Note |\n")
		b.WriteString("|---:|---:|---:|---:|---:|---|\n")
		rows := opts.Results
		if opts.MaxRows > 0 && len(rows) > opts.MaxRows {
			rows = rows[len(rows)-opts.MaxRows:]
		}
		for _, r := range rows {
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n",
				r.TrialIndex, cell(r.Choice), cell(r.Feedback), cell(r.ReactionTimeMs), cell(r.Tally), note(r))
		}
	}
	return b.String()
}

func cell[T any](p *T) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprint(*p)
}

func note(r trial.Result) string {
	switch {
	case r.Aborted:
		return "aborted"
	case r.Error != "":
		return strings.ReplaceAll(r.Error, "|", `\|`)
	}
	return ""
}
// #endregion markdown

// #region render
// Render styles markdown for a terminal of the given width. An empty style
// picks light or dark from the terminal background.
func Render(markdown string, width int, style string) (string, error) {
	if width <= 0 {
		width = 80
	}
	styleOpt := glamour.WithAutoStyle()
	if style != "" {
		styleOpt = glamour.WithStylePath(style)
	}
	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("new renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return out, nil
}
// #endregion render
