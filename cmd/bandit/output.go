package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/bandit-task/internal/replay"
	"github.com/danielpatrickdp/bandit-task/internal/report"
	"github.com/danielpatrickdp/bandit-task/internal/trial"
)

// sessionReport is the --json shape of a report.
type sessionReport struct {
	SessionID string         `json:"session_id,omitempty"`
	Summary   replay.Summary `json:"summary"`
	Results   []trial.Result `json:"results,omitempty"`
}

func printReport(cmd *cobra.Command, title, sessionID string, results []trial.Result) error {
	summary := replay.Summarize(results)
	if outJSON {
		return printJSON(cmd, sessionReport{SessionID: sessionID, Summary: summary, Results: results})
	}

	opts := report.Options{Title: title, SessionID: sessionID}
	if outRows != 0 {
		opts.Results = results
		if outRows > 0 {
			opts.MaxRows = outRows
		}
	}
	return printMarkdown(cmd, report.Markdown(summary, opts))
}

func printMarkdown(cmd *cobra.Command, md string) error {
	if outPlain {
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	}
	out, err := report.Render(md, 80, "")
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
