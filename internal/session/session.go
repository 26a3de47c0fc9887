// Package session holds the state that outlives a single trial: the running
// point tally and the trial counter of one participant's experiment session.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/bandit-task/internal/outcome"
)

// #region state
// State is created once per session and passed into every trial controller.
// Only the active trial mutates it; readers such as the presentation layer
// take snapshots.
type State struct {
	mu        sync.Mutex
	id        string
	total     int
	trials    int
	startedAt time.Time
}

// Snapshot is a read-only copy of State.
type Snapshot struct {
	ID        string    `json:"session_id"`
	Total     int       `json:"total"`
	Trials    int       `json:"trials"`
	StartedAt time.Time `json:"started_at"`
}

// New starts a session with the given tally.
func New(startingPoints int) *State {
	return &State{
		id:        uuid.New().String(),
		total:     startingPoints,
		startedAt: time.Now().UTC(),
	}
}
// #endregion state

// #region accessors
// ID returns the session identifier.
func (s *State) ID() string {
	return s.id
}

// Total returns the current tally.
func (s *State) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Trials returns how many trials have begun.
func (s *State) Trials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trials
}

// Snapshot copies the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{ID: s.id, Total: s.total, Trials: s.trials, StartedAt: s.startedAt}
}
// #endregion accessors

// #region mutators
// BeginTrial advances the trial counter and returns the new 1-based index.
func (s *State) BeginTrial() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trials++
	return s.trials
}

// Add coerces points to an integer and adds it to the tally, returning the new
// total. Negative points decrease the tally. A value that cannot be coerced
// leaves the tally unchanged.
func (s *State) Add(points outcome.Value) (int, error) {
	n, err := points.Integer()
	if err != nil {
		return s.Total(), fmt.Errorf("add to tally: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total += n
	return s.total, nil
}
// #endregion mutators
