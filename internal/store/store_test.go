package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/bandit-task/internal/outcome"
	"github.com/danielpatrickdp/bandit-task/internal/session"
	"github.com/danielpatrickdp/bandit-task/internal/timeline"
	"github.com/danielpatrickdp/bandit-task/internal/trial"
)

var _ timeline.Sink = (*Store)(nil)

func tempDB(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func intp(v int) *int       { return &v }
func int64p(v int64) *int64 { return &v }

func TestSessionLifecycle(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	sess := session.New(5)

	require.NoError(t, s.BeginSession(ctx, sess.Snapshot(), "pilot", 5))
	rec, err := s.GetSession(ctx, sess.ID())
	require.NoError(t, err)
	assert.Equal(t, "pilot", rec.Timeline)
	assert.Equal(t, 5, rec.StartingPoints)
	assert.Nil(t, rec.FinalTotal)
	assert.Nil(t, rec.FinishedAt)
	assert.WithinDuration(t, sess.Snapshot().StartedAt, rec.StartedAt, time.Millisecond)

	require.NoError(t, s.FinishSession(ctx, sess.ID(), 42))
	rec, err = s.GetSession(ctx, sess.ID())
	require.NoError(t, err)
	require.NotNil(t, rec.FinalTotal)
	assert.Equal(t, 42, *rec.FinalTotal)
	assert.NotNil(t, rec.FinishedAt)

	assert.Error(t, s.FinishSession(ctx, "missing", 1))
	_, err = s.GetSession(ctx, "missing")
	assert.Error(t, err)
}

func TestSaveAndListResults(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	sess := session.New(0)
	require.NoError(t, s.BeginSession(ctx, sess.Snapshot(), "pilot", 0))

	fb := outcome.Value("10")
	full := trial.Result{
		TrialIndex:     1,
		Choice:         intp(1),
		Feedback:       &fb,
		ReactionTimeMs: int64p(412),
		Tally:          intp(10),
		Variant:        "info-cue",
	}
	aborted := trial.Result{TrialIndex: 2, Variant: "info-cue", Aborted: true}
	failed := trial.Result{TrialIndex: 3, Choice: intp(2), Variant: "info-cue", Error: "update tally: bad"}

	for _, r := range []trial.Result{failed, full, aborted} {
		require.NoError(t, s.SaveResult(ctx, sess.ID(), r))
	}
	assert.Error(t, s.SaveResult(ctx, sess.ID(), full), "trial index is unique per session")
	assert.Error(t, s.SaveResult(ctx, "no-such-session", full), "foreign key enforced")

	got, err := s.Results(ctx, sess.ID())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, full, got[0].Result)
	assert.Equal(t, aborted, got[1].Result)
	assert.Equal(t, failed, got[2].Result)
	assert.Equal(t, sess.ID(), got[0].SessionID)

	rec, err := s.GetSession(ctx, sess.ID())
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Trials)
}

func TestListSessions(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		sess := session.New(0)
		require.NoError(t, s.BeginSession(ctx, sess.Snapshot(), "pilot", 0))
	}
	list, err := s.ListSessions(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestObserverWritesEvents(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	sess := session.New(0)
	require.NoError(t, s.BeginSession(ctx, sess.Snapshot(), "pilot", 0))

	obs := s.Observer(sess.ID(), nil)
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	obs.Transition(1, trial.Idle, trial.AwaitingPreTrialDelay, at)
	obs.Transition(1, trial.AwaitingPreTrialDelay, trial.PresentingChoice, at.Add(time.Second))
	s.Observer("unknown", nil).Transition(1, trial.Idle, trial.Finished, at)

	events, err := s.Events(ctx, sess.ID())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "idle", events[0].FromState)
	assert.Equal(t, "presenting_choice", events[1].ToState)
	assert.Equal(t, at.Add(time.Second), events[1].CreatedAt)
}
