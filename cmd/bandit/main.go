package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/bandit-task/internal/config"
	"github.com/danielpatrickdp/bandit-task/internal/logging"
	"github.com/danielpatrickdp/bandit-task/internal/outcome"
	"github.com/danielpatrickdp/bandit-task/internal/session"
	"github.com/danielpatrickdp/bandit-task/internal/store"
	"github.com/danielpatrickdp/bandit-task/internal/timeline"
	"github.com/danielpatrickdp/bandit-task/internal/trial"
)

var (
	// Global flags
	configPath string
	dbPath     string
	seed       uint64
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "bandit",
	Short: "Two-armed bandit task runner",
	Long: `bandit runs two-armed bandit choice experiments.

A timeline file lists the trials. Each trial shows two stimuli, waits for a
choice, samples the chosen option's outcome distribution and reveals it.
Results can be stored in SQLite and inspected afterwards.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("db") {
			loaded.Store.Path = dbPath
		}
		if cmd.Flags().Changed("seed") {
			loaded.Sampler.Seed = seed
		}
		if verbose {
			loaded.Log.Level = "debug"
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		// the terminal belongs to the task while it runs
		if cmd.Annotations["tui"] == "true" && loaded.Log.File == "" {
			loaded.Log.File = "bandit.log"
		}

		logger, err = logging.New(loaded.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "bandit.yaml", "Config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite data sink (or set BANDIT_DB)")
	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", 0, "Sampler seed, 0 for the timeline's or a random one")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(validateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// #region helpers
// loadTimeline reads a timeline and applies the configured feedback style.
func loadTimeline(path string) (*timeline.Timeline, []trial.Config, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("no timeline given (use --timeline)")
	}
	tl, err := timeline.Load(path)
	if err != nil {
		return nil, nil, err
	}
	configs, err := tl.Configs()
	if err != nil {
		return nil, nil, fmt.Errorf("timeline %s: %w", path, err)
	}
	cfg.ApplyDefaults(configs)
	return tl, configs, nil
}

// newSampler seeds from flags, env or config first, then the timeline.
func newSampler(tl *timeline.Timeline) *outcome.Sampler {
	s := cfg.Sampler.Seed
	if s == 0 && tl.Seed != 0 {
		s = tl.Seed
	}
	if s == 0 {
		s = cfg.Seed()
	}
	logger.Debug("sampler seeded", zap.Uint64("seed", s))
	return outcome.NewSampler(s)
}

func newSession(tl *timeline.Timeline) *session.State {
	points := cfg.Session.StartingPoints
	if tl.StartingPoints != 0 {
		points = tl.StartingPoints
	}
	return session.New(points)
}

// openStore opens the data sink and records the session start. It returns
// nil when no store is configured.
func openStore(ctx context.Context, sess *session.State, timelineName string) (*store.Store, error) {
	if cfg.Store.Path == "" {
		return nil, nil
	}
	st, err := store.NewStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	snap := sess.Snapshot()
	if err := st.BeginSession(ctx, snap, timelineName, snap.Total); err != nil {
		st.Close()
		return nil, err
	}
	logger.Info("recording session", zap.String("session", snap.ID), zap.String("db", cfg.Store.Path))
	return st, nil
}

// recording returns the observer and sink for st, both nil without a store.
func recording(st *store.Store, sess *session.State) (trial.Observer, timeline.Sink) {
	if st == nil {
		return nil, nil
	}
	return st.Observer(sess.ID(), logger), st
}

func closeStore(ctx context.Context, st *store.Store, sess *session.State) {
	if st == nil {
		return
	}
	if err := st.FinishSession(context.WithoutCancel(ctx), sess.ID(), sess.Total()); err != nil {
		logger.Error("finish session", zap.Error(err))
	}
	if err := st.Close(); err != nil {
		logger.Error("close store", zap.Error(err))
	}
}
// #endregion helpers
