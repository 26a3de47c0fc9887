package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/bandit-task/internal/outcome"
	"github.com/danielpatrickdp/bandit-task/internal/replay"
	"github.com/danielpatrickdp/bandit-task/internal/session"
	"github.com/danielpatrickdp/bandit-task/internal/trial"
)

var (
	simTimeline string
	simPolicy   string
	simTrials   int
	simRT       time.Duration

	replayFixture string

	// output flags shared by simulate, replay and inspect
	outPlain bool
	outJSON  bool
	outRows  int
)

// simulateCmd plays a timeline with a simulated participant
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a timeline headless with a simulated participant",
	Long: `Run a timeline without a terminal UI. A policy stands in for the
participant and delays cost no wall-clock time, so long sessions finish
instantly.

Policies:
  fixed:1, fixed:2   always choose that option
  random[:seed]      choose either option with equal probability`,
	RunE: runSimulate,
}

// replayCmd replays a fixture and checks its expected results
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay scripted choices from a fixture and compare the results",
	RunE:  runReplay,
}

func init() {
	simulateCmd.Flags().StringVarP(&simTimeline, "timeline", "t", "", "Timeline file (required)")
	simulateCmd.Flags().StringVarP(&simPolicy, "policy", "p", "fixed:1", "Participant policy")
	simulateCmd.Flags().IntVarP(&simTrials, "trials", "n", 0, "Number of trials, cycling the timeline (0 plays it once)")
	simulateCmd.Flags().DurationVar(&simRT, "rt", 500*time.Millisecond, "Typical reaction time")
	simulateCmd.MarkFlagRequired("timeline")
	addOutputFlags(simulateCmd)

	replayCmd.Flags().StringVarP(&replayFixture, "fixture", "f", "", "Fixture file (required)")
	replayCmd.MarkFlagRequired("fixture")
	addOutputFlags(replayCmd)
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&outPlain, "plain", false, "Print raw markdown")
	cmd.Flags().BoolVar(&outJSON, "json", false, "Print JSON")
	cmd.Flags().IntVar(&outRows, "rows", 0, "Also list the last N trials (-1 for all)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	tl, configs, err := loadTimeline(simTimeline)
	if err != nil {
		return err
	}
	if simTrials > 0 {
		configs = cycle(configs, simTrials)
	}
	policy, err := replay.ParsePolicy(simPolicy, simRT)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	sess := newSession(tl)
	st, err := openStore(ctx, sess, tl.Name)
	if err != nil {
		return err
	}
	defer closeStore(ctx, st, sess)
	observer, sink := recording(st, sess)

	h := &replay.Harness{
		Sampler:      newSampler(tl),
		Policy:       policy,
		Logger:       logger,
		Observer:     observer,
		Sink:         sink,
		OutcomeDelay: cfg.OutcomeDelay(),
	}
	start := time.Now()
	results, err := h.Run(ctx, configs, sess)
	if err != nil {
		return fmt.Errorf("simulate: %w", err)
	}
	logger.Info("simulation complete",
		zap.Int("trials", len(results)),
		zap.Int("total", sess.Total()),
		zap.Duration("elapsed", time.Since(start)),
	)

	title := tl.Name
	if title == "" {
		title = "Simulation"
	}
	return printReport(cmd, title, sess.ID(), results)
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := replay.LoadFixture(replayFixture)
	if err != nil {
		return err
	}
	configs, err := f.Configs()
	if err != nil {
		return err
	}
	cfg.ApplyDefaults(configs)

	sess := session.New(f.StartingPoints)
	h := &replay.Harness{
		Sampler: outcome.NewSampler(f.Seed),
		Policy:  f.Policy(),
		Logger:  logger,
	}
	results, err := h.Run(cmd.Context(), configs, sess)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	title := f.Description
	if title == "" {
		title = "Replay"
	}
	if err := printReport(cmd, title, sess.ID(), results); err != nil {
		return err
	}

	problems := f.Check(results, sess.Total())
	for _, p := range problems {
		fmt.Fprintln(cmd.ErrOrStderr(), "MISMATCH", p)
	}
	if len(problems) > 0 {
		return fmt.Errorf("replay: %d mismatches against %s", len(problems), replayFixture)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "replay matches fixture")
	return nil
}

// cycle repeats configs in order until there are n of them.
func cycle(configs []trial.Config, n int) []trial.Config {
	if len(configs) == 0 {
		return nil
	}
	out := make([]trial.Config, n)
	for i := range out {
		out[i] = configs[i%len(configs)]
	}
	return out
}
