package models

import "time"

type RunOutcome string

const (
	RunOutcomeCompleted RunOutcome = "completed"
	RunOutcomeFailed    RunOutcome = "failed"
	RunOutcomeError     RunOutcome = "error"
)

// RunRecord is the journal entry written for every dispatched chat request.
// It carries identifiers and timing only, never message text.
type RunRecord struct {
	ID          string     `bson:"_id"`
	ThreadID    string     `bson:"thread_id"`
	RunID       string     `bson:"run_id,omitempty"`
	AssistantID string     `bson:"assistant_id"`
	Variant     string     `bson:"variant,omitempty"`
	NewThread   bool       `bson:"new_thread"`
	Outcome     RunOutcome `bson:"outcome"`
	Error       string     `bson:"error,omitempty"`
	Polls       int        `bson:"polls"`
	StartedAt   time.Time  `bson:"started_at"`
	FinishedAt  time.Time  `bson:"finished_at"`
}

func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
