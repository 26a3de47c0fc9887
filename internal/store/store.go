// Package store persists sessions, trial results and lifecycle events in
// SQLite. It is an optional host-side data sink; the trial core never needs it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/bandit-task/internal/logging"
	"github.com/danielpatrickdp/bandit-task/internal/outcome"
	"github.com/danielpatrickdp/bandit-task/internal/session"
	"github.com/danielpatrickdp/bandit-task/internal/trial"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id              TEXT PRIMARY KEY,
	timeline        TEXT NOT NULL,
	starting_points INTEGER NOT NULL,
	final_total     INTEGER,
	started_at      TEXT NOT NULL,
	finished_at     TEXT
);

CREATE TABLE IF NOT EXISTS trial_results (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	trial_index INTEGER NOT NULL,
	choice      INTEGER,
	feedback    TEXT,
	rt_ms       INTEGER,
	tally       INTEGER,
	variant     TEXT NOT NULL,
	aborted     INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	created_at  TEXT NOT NULL,
	UNIQUE (session_id, trial_index),
	FOREIGN KEY (session_id) REFERENCES sessions(id)
);

CREATE TABLE IF NOT EXISTS trial_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	trial_index INTEGER NOT NULL,
	from_state  TEXT NOT NULL,
	to_state    TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(id)
);
`
// #endregion schema

// #region store-struct
// Store manages experiment data in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion constructor

// #region sessions
// BeginSession records the start of a session.
func (s *Store) BeginSession(ctx context.Context, snap session.Snapshot, timelineName string, startingPoints int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, timeline, starting_points, started_at) VALUES (?, ?, ?, ?)`,
		snap.ID, timelineName, startingPoints, snap.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}
	return nil
}

// FinishSession stores the final tally.
func (s *Store) FinishSession(ctx context.Context, sessionID string, total int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET final_total = ?, finished_at = ? WHERE id = ?`,
		total, time.Now().UTC().Format(time.RFC3339Nano), sessionID,
	)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish session: session %s not found", sessionID)
	}
	return nil
}

const sessionColumns = `s.id, s.timeline, s.starting_points, s.final_total, s.started_at, s.finished_at,
	(SELECT COUNT(*) FROM trial_results r WHERE r.session_id = s.id)`

// GetSession reads one session.
func (s *Store) GetSession(ctx context.Context, id string) (SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions s WHERE s.id = ?`, id)
	rec, err := scanSession(row)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return rec, nil
}

// ListSessions returns the most recent sessions first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions s ORDER BY s.started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (SessionRecord, error) {
	var rec SessionRecord
	var final sql.NullInt64
	var started string
	var finished sql.NullString
	if err := sc.Scan(&rec.ID, &rec.Timeline, &rec.StartingPoints, &final, &started, &finished, &rec.Trials); err != nil {
		return SessionRecord{}, err
	}
	if final.Valid {
		v := int(final.Int64)
		rec.FinalTotal = &v
	}
	rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if finished.Valid {
		t, _ := time.Parse(time.RFC3339Nano, finished.String)
		rec.FinishedAt = &t
	}
	return rec, nil
}
// #endregion sessions

// #region results
// SaveResult stores one trial result. It satisfies timeline.Sink.
func (s *Store) SaveResult(ctx context.Context, sessionID string, r trial.Result) error {
	var feedback interface{}
	if r.Feedback != nil {
		feedback = r.Feedback.String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trial_results (session_id, trial_index, choice, feedback, rt_ms, tally, variant, aborted, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, r.TrialIndex, nullInt(r.Choice), feedback, nullInt64(r.ReactionTimeMs), nullInt(r.Tally),
		r.Variant, r.Aborted, nullIfEmpty(r.Error), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save result %d: %w", r.TrialIndex, err)
	}
	return nil
}

// Results returns a session's results in trial order.
func (s *Store) Results(ctx context.Context, sessionID string) ([]ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, trial_index, choice, feedback, rt_ms, tally, variant, aborted, error, created_at
		 FROM trial_results WHERE session_id = ? ORDER BY trial_index`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []ResultRecord
	for rows.Next() {
		var rec ResultRecord
		var choice, rt, tally sql.NullInt64
		var feedback, errText sql.NullString
		var created string
		if err := rows.Scan(&rec.SessionID, &rec.TrialIndex, &choice, &feedback, &rt, &tally,
			&rec.Variant, &rec.Aborted, &errText, &created); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if choice.Valid {
			v := int(choice.Int64)
			rec.Choice = &v
		}
		if feedback.Valid {
			v := outcome.Value(feedback.String)
			rec.Feedback = &v
		}
		if rt.Valid {
			v := rt.Int64
			rec.ReactionTimeMs = &v
		}
		if tally.Valid {
			v := int(tally.Int64)
			rec.Tally = &v
		}
		rec.Error = errText.String
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, rec)
	}
	return out, rows.Err()
}
// #endregion results

// #region events
// Events returns a session's lifecycle transitions in write order.
func (s *Store) Events(ctx context.Context, sessionID string) ([]logging.TransitionEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, trial_index, from_state, to_state, created_at
		 FROM trial_events WHERE session_id = ? ORDER BY id`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []logging.TransitionEntry
	for rows.Next() {
		var e logging.TransitionEntry
		var created string
		if err := rows.Scan(&e.SessionID, &e.TrialIndex, &e.FromState, &e.ToState, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Observer returns a trial observer that writes every transition of
// sessionID to trial_events. Write failures are logged, never returned.
func (s *Store) Observer(sessionID string, logger *zap.Logger) trial.Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return trial.ObserverFunc(func(index int, from, to trial.State, at time.Time) {
		err := logging.LogTransition(s.db, logging.TransitionEntry{
			SessionID:  sessionID,
			TrialIndex: index,
			FromState:  from.String(),
			ToState:    to.String(),
			CreatedAt:  at,
		})
		if err != nil {
			logger.Warn("record transition", zap.Int("trial", index), zap.Error(err))
		}
	})
}
// #endregion events

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func nullInt64(p *int64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
// #endregion helpers
