package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/bandit-task/internal/replay"
	"github.com/danielpatrickdp/bandit-task/internal/report"
	"github.com/danielpatrickdp/bandit-task/internal/timeline"
	"github.com/danielpatrickdp/bandit-task/internal/trial"
	"github.com/danielpatrickdp/bandit-task/internal/tui"
)

var runTimeline string

// runCmd runs a timeline with a participant at the terminal
var runCmd = &cobra.Command{
	Use:         "run",
	Short:       "Run a timeline interactively in the terminal",
	Annotations: map[string]string{"tui": "true"},
	RunE:        runSession,
}

func init() {
	runCmd.Flags().StringVarP(&runTimeline, "timeline", "t", "", "Timeline file (required)")
	runCmd.MarkFlagRequired("timeline")
}

func runSession(cmd *cobra.Command, args []string) error {
	tl, configs, err := loadTimeline(runTimeline)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sess := newSession(tl)
	st, err := openStore(ctx, sess, tl.Name)
	if err != nil {
		return err
	}
	defer closeStore(ctx, st, sess)
	observer, sink := recording(st, sess)

	title := tl.Name
	if title == "" {
		title = "Bandit task"
	}
	program := tea.NewProgram(tui.NewModel(title, cancel), tea.WithAltScreen(), tea.WithMouseCellMotion())
	adapter := tui.NewAdapter(program)

	seq := &timeline.Sequencer{
		Configs:      configs,
		Sampler:      newSampler(tl),
		View:         adapter,
		Logger:       logger,
		Observer:     observer,
		Sink:         sink,
		OutcomeDelay: cfg.OutcomeDelay(),
	}

	var results []trial.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// closing the window ends the session
		defer cancel()
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("terminal ui: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		program.Quit()
		return nil
	})
	g.Go(func() error {
		var err error
		results, err = seq.Run(gctx, sess)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		summary := replay.Summarize(results)
		md := report.Markdown(summary, report.Options{Title: title + " complete", SessionID: sess.ID()})
		text, rerr := report.Render(md, 72, "dark")
		if rerr != nil {
			text = md
		}
		adapter.Finish(text)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("session ended",
		zap.String("session", sess.ID()),
		zap.Int("trials", len(results)),
		zap.Int("total", sess.Total()),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Session %s: %d trials, %d points\n", sess.ID(), len(results), sess.Total())
	return nil
}
