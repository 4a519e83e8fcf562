package models

import (
	"context"
	"time"
)

// SyncSession is the fan-in counter for a batch of account syncs that share
// one completion notification. The completed counter is only ever advanced
// through an atomic increment in the store, never read-then-written.
type SyncSession struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	// Expected is the number of accounts the batch contains.
	Expected  int `json:"expected"`
	Completed int `json:"completed"`
	// ItemsSynced accumulates the item counts reported by finished jobs.
	ItemsSynced int64      `json:"items_synced"`
	Closed      bool       `json:"closed"`
	CreatedAt   time.Time  `json:"created_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

// SessionProgress is the result of one completion report.
type SessionProgress struct {
	Expected    int
	Completed   int
	ItemsSynced int64
	// JustClosed is true for exactly one report per session: the one whose
	// increment made completed reach expected.
	JustClosed bool
}

// SessionRepository defines persistence operations for sync sessions.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *SyncSession) error

	// GetByID retrieves a session by ID. Returns nil when absent.
	GetByID(ctx context.Context, id string) (*SyncSession, error)

	// ReportCompletion atomically increments the completed counter and adds
	// to the accumulated totals. The increment and the comparison against
	// the expected count happen in a single conditional write; the call
	// whose increment closes the session gets JustClosed=true. Reports to a
	// closed or missing session return nil progress and no error.
	ReportCompletion(ctx context.Context, sessionID string, items int64) (*SessionProgress, error)
}
