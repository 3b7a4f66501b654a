package models

import "time"

// Job outcomes.
const (
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// Step statuses.
const (
	StepPending   = "pending"
	StepSucceeded = "succeeded"
	StepFailed    = "failed"
)

// Job is the persisted record of one event delivery through the job engine.
// Rows are created on dispatch and mutated only by the engine; once Outcome
// leaves JobRunning the row is terminal and serves as the audit trail.
type Job struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Event     string    `gorm:"not null;index" json:"event"`
	Payload   string    `gorm:"not null" json:"payload"`
	Outcome   string    `gorm:"not null;default:running;index" json:"outcome"`
	Result    string    `json:"result,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Steps     []JobStep `gorm:"foreignKey:JobID" json:"steps,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobStep is the checkpoint row for one named step of a job. A succeeded
// step's Result is replayed instead of re-running the step, which is what
// keeps side effects from repeating when a job is retried.
type JobStep struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	JobID     string    `gorm:"not null;size:36;uniqueIndex:idx_job_step" json:"job_id"`
	Name      string    `gorm:"not null;uniqueIndex:idx_job_step" json:"name"`
	Status    string    `gorm:"not null;default:pending" json:"status"`
	Attempt   int       `gorm:"not null;default:0" json:"attempt"`
	Result    string    `json:"result,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
