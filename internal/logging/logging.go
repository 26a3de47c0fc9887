// Package logging builds the process logger and writes the trial lifecycle
// audit trail.
package logging

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// #region new
// New builds a zap logger from cfg. Development mode uses the console encoder.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if cfg.File != "" {
		zc.OutputPaths = []string{cfg.File}
		zc.ErrorOutputPaths = []string{cfg.File}
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
// #endregion new

// #region log-transition
// LogTransition writes one state change to the trial_events table.
func LogTransition(db *sql.DB, entry TransitionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO trial_events (session_id, trial_index, from_state, to_state, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.SessionID,
		entry.TrialIndex,
		entry.FromState,
		entry.ToState,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log transition: %w", err)
	}
	return nil
}
// #endregion log-transition
