package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/bandit-task/internal/store"
	"github.com/danielpatrickdp/bandit-task/internal/trial"
)

var (
	inspectSession string
	inspectLast    int

	validateTimeline string
)

// inspectCmd reads stored sessions
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show recorded sessions and their trials",
	Long: `List the most recent sessions in the data sink, or show one session's
summary and trials with --session.`,
	RunE: runInspect,
}

// validateCmd checks a timeline without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a timeline file for configuration errors",
	RunE:  runValidate,
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectSession, "session", "s", "", "Session ID to show")
	inspectCmd.Flags().IntVarP(&inspectLast, "last", "n", 10, "Number of sessions to list")
	addOutputFlags(inspectCmd)

	validateCmd.Flags().StringVarP(&validateTimeline, "timeline", "t", "", "Timeline file (required)")
	validateCmd.MarkFlagRequired("timeline")
}

func runInspect(cmd *cobra.Command, args []string) error {
	if cfg.Store.Path == "" {
		return fmt.Errorf("inspect: no database (set --db, BANDIT_DB or store.path)")
	}
	st, err := store.NewStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if inspectSession != "" {
		rec, err := st.GetSession(ctx, inspectSession)
		if err != nil {
			return err
		}
		records, err := st.Results(ctx, inspectSession)
		if err != nil {
			return err
		}
		results := make([]trial.Result, len(records))
		for i, r := range records {
			results[i] = r.Result
		}
		if outRows == 0 {
			outRows = -1
		}
		return printReport(cmd, "Session "+rec.Timeline, rec.ID, results)
	}

	sessions, err := st.ListSessions(ctx, inspectLast)
	if err != nil {
		return err
	}
	if outJSON {
		return printJSON(cmd, sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No recorded sessions.")
		return nil
	}
	return printMarkdown(cmd, sessionTable(sessions))
}

func sessionTable(sessions []store.SessionRecord) string {
	var b strings.Builder
	b.WriteString("# Sessions\n\n")
	b.WriteString("| Session | Timeline | Started | Trials | Start | Total |\n")
	b.WriteString("|---|---|---|---:|---:|---:|\n")
	for _, s := range sessions {
		total := "running"
		if s.FinalTotal != nil {
			total = fmt.Sprint(*s.FinalTotal)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %d | %d | %s |\n",
			s.ID, s.Timeline, s.StartedAt.Local().Format(time.DateTime), s.Trials, s.StartingPoints, total)
	}
	return b.String()
}

func runValidate(cmd *cobra.Command, args []string) error {
	tl, configs, err := loadTimeline(validateTimeline)
	if err != nil {
		return err
	}
	counts := map[string]int{}
	for _, c := range configs {
		counts[c.Variant.Name]++
	}
	name := tl.Name
	if name == "" {
		name = validateTimeline
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, %d trials", name, len(configs))
	for _, v := range []string{trial.InfoCue.Name, trial.CueInfoOutcome.Name} {
		if counts[v] > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), ", %d %s", counts[v], v)
		}
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
