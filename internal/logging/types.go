package logging

import "time"

// #region log-config
// Config selects the logger encoding and level.
type Config struct {
	Level       string `yaml:"level"` // debug | info | warn | error
	Development bool   `yaml:"development"`
	File        string `yaml:"file"` // empty logs to stderr
}

// DefaultConfig logs JSON at info level.
func DefaultConfig() Config {
	return Config{Level: "info"}
}
// #endregion log-config

// #region transition-entry
// TransitionEntry is a single row in the trial_events table.
type TransitionEntry struct {
	SessionID  string
	TrialIndex int
	FromState  string
	ToState    string
	CreatedAt  time.Time
}
// #endregion transition-entry
