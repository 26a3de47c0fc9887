// Package config loads the bandit application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/bandit-task/internal/logging"
	"github.com/danielpatrickdp/bandit-task/internal/timeline"
	"github.com/danielpatrickdp/bandit-task/internal/trial"
)

// #region types
// Config holds all application configuration.
type Config struct {
	Log     logging.Config `yaml:"log"`
	Store   StoreConfig    `yaml:"store"`
	Sampler SamplerConfig  `yaml:"sampler"`
	Trial   TrialConfig    `yaml:"trial"`
	Session SessionConfig  `yaml:"session"`
}

// StoreConfig points at the SQLite data sink. An empty path disables it.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// SamplerConfig seeds outcome sampling. Zero seeds from the clock.
type SamplerConfig struct {
	Seed uint64 `yaml:"seed"`
}

// TrialConfig holds overrides applied to every trial.
type TrialConfig struct {
	OutcomeDelay  timeline.Duration   `yaml:"outcome_delay"`
	FeedbackStyle trial.FeedbackStyle `yaml:"feedback_style"`
}

// SessionConfig seeds the running tally.
type SessionConfig struct {
	StartingPoints int `yaml:"starting_points"`
}
// #endregion types

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log:   logging.DefaultConfig(),
		Trial: TrialConfig{FeedbackStyle: trial.FeedbackAuto},
	}
}

// #region load
// Load reads a YAML config file. A missing file yields the defaults.
// Environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if path := os.Getenv("BANDIT_DB"); path != "" {
		c.Store.Path = path
	}
	if s := os.Getenv("BANDIT_SEED"); s != "" {
		seed, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("parse BANDIT_SEED: %w", err)
		}
		c.Sampler.Seed = seed
	}
	if level := os.Getenv("BANDIT_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if style := os.Getenv("BANDIT_FEEDBACK_STYLE"); style != "" {
		c.Trial.FeedbackStyle = trial.FeedbackStyle(style)
	}
	return nil
}
// #endregion load

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	if _, err := trial.ParseFeedbackStyle(string(c.Trial.FeedbackStyle)); err != nil {
		return fmt.Errorf("invalid feedback style: %w", err)
	}
	if c.Trial.OutcomeDelay < 0 {
		return fmt.Errorf("invalid outcome delay %s: must not be negative", c.Trial.OutcomeDelay.Std())
	}
	return nil
}

// OutcomeDelay returns the fixed outcome delay, or zero to use each trial's
// feedback duration.
func (c *Config) OutcomeDelay() time.Duration { return c.Trial.OutcomeDelay.Std() }

// Seed returns the configured sampler seed, falling back to the wall clock.
func (c *Config) Seed() uint64 {
	if c.Sampler.Seed != 0 {
		return c.Sampler.Seed
	}
	return uint64(time.Now().UnixNano())
}

// ApplyDefaults fills trial settings left at auto with the configured style.
func (c *Config) ApplyDefaults(configs []trial.Config) {
	if c.Trial.FeedbackStyle == "" || c.Trial.FeedbackStyle == trial.FeedbackAuto {
		return
	}
	for i := range configs {
		if configs[i].FeedbackStyle == "" || configs[i].FeedbackStyle == trial.FeedbackAuto {
			configs[i].FeedbackStyle = c.Trial.FeedbackStyle
		}
	}
}
