package models

import (
	"context"
	"time"
)

// SyncStrategy declares what a job is allowed to do.
type SyncStrategy string

const (
	// StrategyProgressive refreshes known content and then discovers new
	// content, subject to the account's creator type.
	StrategyProgressive SyncStrategy = "progressive"
	// StrategyRefreshOnly skips discovery entirely.
	StrategyRefreshOnly SyncStrategy = "refresh_only"
)

// JobTrigger records how a job was requested. It determines the snapshot
// reason tag for non-initial snapshots.
type JobTrigger string

const (
	TriggerManual    JobTrigger = "manual"
	TriggerScheduled JobTrigger = "scheduled"
)

// SnapshotReason maps the trigger to the reason tag written on refresh
// snapshots.
func (t JobTrigger) SnapshotReason() SnapshotReason {
	if t == TriggerScheduled {
		return SnapshotReasonScheduledRefresh
	}
	return SnapshotReasonManualRefresh
}

// JobStatus tracks a sync job through its lifecycle.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// DefaultMaxAttempts is the retry cap applied when a job doesn't set one.
const DefaultMaxAttempts = 3

// SyncJob is one durable unit of sync work. Deleted on success; reset to
// pending with an incremented attempt count on transient failure; marked
// failed once attempts reach the cap.
type SyncJob struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	ProjectID string `json:"project_id"`
	// SessionID links the job to a batch session, empty for standalone syncs.
	SessionID   string       `json:"session_id,omitempty"`
	Strategy    SyncStrategy `json:"strategy"`
	Trigger     JobTrigger   `json:"trigger"`
	Status      JobStatus    `json:"status"`
	Attempts    int          `json:"attempts"`
	MaxAttempts int          `json:"max_attempts"`
	LastError   string       `json:"last_error,omitempty"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// JobRepository defines persistence operations for sync jobs.
type JobRepository interface {
	// Create stores a new job.
	Create(ctx context.Context, job *SyncJob) error

	// GetByID retrieves a job by ID. Returns nil when absent.
	GetByID(ctx context.Context, id string) (*SyncJob, error)

	// ClaimPending atomically claims up to limit jobs for execution: pending
	// jobs, plus running jobs whose start timestamp is older than staleAfter
	// (their worker is presumed dead). Claimed jobs are marked running with
	// a fresh start timestamp. No job is ever claimed by two callers.
	ClaimPending(ctx context.Context, limit int, staleAfter time.Duration) ([]*SyncJob, error)

	// Requeue puts a job back to pending after a transient failure,
	// recording the attempt count and error and clearing the start timestamp.
	Requeue(ctx context.Context, id string, attempts int, lastError string) error

	// MarkFailed terminally fails a job.
	MarkFailed(ctx context.Context, id string, attempts int, lastError string) error

	// Delete removes a job. Completed jobs leave no trace.
	Delete(ctx context.Context, id string) error

	// ListByAccount returns jobs targeting an account.
	ListByAccount(ctx context.Context, accountID string) ([]*SyncJob, error)
}
