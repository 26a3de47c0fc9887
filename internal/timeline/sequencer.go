package timeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/bandit-task/internal/outcome"
	"github.com/danielpatrickdp/bandit-task/internal/session"
	"github.com/danielpatrickdp/bandit-task/internal/trial"
)

// #region sink
// Sink receives each trial result as soon as the trial ends.
type Sink interface {
	SaveResult(ctx context.Context, sessionID string, r trial.Result) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, sessionID string, r trial.Result) error

func (f SinkFunc) SaveResult(ctx context.Context, sessionID string, r trial.Result) error {
	return f(ctx, sessionID, r)
}
// #endregion sink

// #region sequencer
// Sequencer runs trials one after another against a single session. Each
// trial gets a fresh controller; the view is reused and re-laid-out.
type Sequencer struct {
	Configs  []trial.Config
	Sampler  *outcome.Sampler
	View     trial.View
	Clock    clockwork.Clock
	Logger   *zap.Logger
	Observer trial.Observer
	Sink     Sink

	// OutcomeDelay overrides every trial's feedback duration when positive.
	OutcomeDelay time.Duration

	// Started, when set, is called with each controller just before it runs.
	Started func(c *trial.Controller)
}

// Run executes every configured trial in order. Runtime failures inside a
// trial are recorded and the sequence moves on; cancelling ctx stops after
// the current trial and returns what was collected.
func (s *Sequencer) Run(ctx context.Context, sess *session.State) ([]trial.Result, error) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("session", sess.ID()))

	results := make([]trial.Result, 0, len(s.Configs))
	for i, cfg := range s.Configs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		ctrl, err := trial.New(cfg, trial.Deps{
			Session:      sess,
			Sampler:      s.Sampler,
			View:         s.View,
			Clock:        s.Clock,
			Logger:       logger,
			Observer:     s.Observer,
			OutcomeDelay: s.OutcomeDelay,
		})
		if err != nil {
			return results, fmt.Errorf("trial %d: %w", i+1, err)
		}

		if s.Started != nil {
			s.Started(ctrl)
		}
		res, err := ctrl.Run(ctx)
		results = append(results, res)
		s.save(ctx, logger, sess.ID(), res)

		switch {
		case err == nil:
		case errors.Is(err, trial.ErrAborted):
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			logger.Info("trial aborted", zap.Int("trial", res.TrialIndex))
		default:
			logger.Warn("trial ended with error", zap.Int("trial", res.TrialIndex), zap.Error(err))
		}
	}
	logger.Info("timeline complete", zap.Int("trials", len(results)), zap.Int("total", sess.Total()))
	return results, nil
}

func (s *Sequencer) save(ctx context.Context, logger *zap.Logger, sessionID string, r trial.Result) {
	if s.Sink == nil {
		return
	}
	// the result must land even when the session is being cancelled
	if err := s.Sink.SaveResult(context.WithoutCancel(ctx), sessionID, r); err != nil {
		logger.Error("save result", zap.Int("trial", r.TrialIndex), zap.Error(err))
	}
}
// #endregion sequencer
