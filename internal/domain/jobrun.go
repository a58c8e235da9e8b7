package domain

import "time"

// JobRun is the append-only audit trail for one scheduled job invocation.
type JobRun struct {
	ID         int64
	JobName    string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Outcome    JobOutcome
	Error      string // empty on success
}
