package store

import (
	"time"

	"github.com/danielpatrickdp/bandit-task/internal/trial"
)

// #region session-record
// SessionRecord is a row of the sessions table.
type SessionRecord struct {
	ID             string
	Timeline       string
	StartingPoints int
	FinalTotal     *int
	Trials         int
	StartedAt      time.Time
	FinishedAt     *time.Time
}
// #endregion session-record

// #region result-record
// ResultRecord is a stored trial result with its session and write time.
type ResultRecord struct {
	SessionID string
	trial.Result
	CreatedAt time.Time
}
// #endregion result-record
