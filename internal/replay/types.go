package replay

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danielpatrickdp/bandit-task/internal/trial"
)

// #region choice
// Choice is a simulated participant response.
type Choice struct {
	Option       int
	ReactionTime time.Duration
}
// #endregion choice

// #region policies
// Policy decides the response to the n-th trial of a run (0-based).
type Policy interface {
	Choose(n int, cfg trial.Config) Choice
}

// FixedPolicy always picks the same option after the same delay.
type FixedPolicy struct {
	Option       int
	ReactionTime time.Duration
}

func (p FixedPolicy) Choose(int, trial.Config) Choice {
	return Choice{Option: p.Option, ReactionTime: p.ReactionTime}
}

// RandomPolicy picks either option with equal probability and a reaction
// time uniform in [MinRT, MaxRT].
type RandomPolicy struct {
	MinRT time.Duration
	MaxRT time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomPolicy returns a seeded random policy.
func NewRandomPolicy(seed uint64, minRT, maxRT time.Duration) *RandomPolicy {
	return &RandomPolicy{MinRT: minRT, MaxRT: maxRT, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (p *RandomPolicy) Choose(int, trial.Config) Choice {
	p.mu.Lock()
	defer p.mu.Unlock()
	rt := p.MinRT
	if span := p.MaxRT - p.MinRT; span > 0 {
		rt += time.Duration(p.rng.Int64N(int64(span) + 1))
	}
	return Choice{Option: 1 + p.rng.IntN(2), ReactionTime: rt}
}

// ScriptedPolicy replays recorded choices in order. Past the end of the
// script it defers to Fallback, or returns option 0 when there is none.
type ScriptedPolicy struct {
	Choices  []Choice
	Fallback Policy
}

func (p ScriptedPolicy) Choose(n int, cfg trial.Config) Choice {
	if n < len(p.Choices) {
		return p.Choices[n]
	}
	if p.Fallback != nil {
		return p.Fallback.Choose(n, cfg)
	}
	return Choice{}
}

// ParsePolicy reads "fixed:1", "fixed:2" or "random[:seed]".
func ParsePolicy(spec string, rt time.Duration) (Policy, error) {
	name, arg, _ := strings.Cut(spec, ":")
	switch name {
	case "fixed":
		option, err := strconv.Atoi(arg)
		if err != nil || (option != 1 && option != 2) {
			return nil, fmt.Errorf("policy %q: fixed needs option 1 or 2", spec)
		}
		return FixedPolicy{Option: option, ReactionTime: rt}, nil
	case "random":
		var seed uint64
		if arg != "" {
			parsed, err := strconv.ParseUint(arg, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("policy %q: bad seed: %w", spec, err)
			}
			seed = parsed
		} else {
			seed = uint64(time.Now().UnixNano())
		}
		return NewRandomPolicy(seed, rt/2, rt*3/2), nil
	}
	return nil, fmt.Errorf("unknown policy %q", spec)
}
// #endregion policies

// #region summary
// OptionSummary aggregates the trials where one option was chosen.
type OptionSummary struct {
	Option       int     `json:"option"`
	Count        int     `json:"count"`
	MeanFeedback float64 `json:"mean_feedback"`
	SDFeedback   float64 `json:"sd_feedback"`
}

// Summary provides aggregate stats from a run.
type Summary struct {
	Trials     int              `json:"trials"`
	Options    [2]OptionSummary `json:"options"`
	MeanRTMs   float64          `json:"mean_rt_ms"`
	FinalTally *int             `json:"final_tally,omitempty"`
	Aborted    int              `json:"aborted"`
	Errors     int              `json:"errors"`
}
// #endregion summary
