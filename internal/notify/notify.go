// Package notify holds the narrow contracts for external collaborators:
// failure reporting, session summary delivery and thumbnail persistence.
// Production implementations live outside this service; the log-backed
// defaults here keep the engine fully runnable without them.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// ErrorReport is a structured failure report for the error collaborator.
type ErrorReport struct {
	JobID      string    `json:"job_id,omitempty"`
	AccountID  string    `json:"account_id"`
	Platform   string    `json:"platform"`
	Username   string    `json:"username"`
	Stage      string    `json:"stage"`
	Message    string    `json:"message"`
	Attempts   int       `json:"attempts"`
	Terminal   bool      `json:"terminal"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ErrorReporter receives structured failure reports, fire-and-forget.
type ErrorReporter interface {
	NotifyError(ctx context.Context, report ErrorReport)
}

// SessionSummary describes one completed batch sync.
type SessionSummary struct {
	SessionID   string    `json:"session_id"`
	ProjectID   string    `json:"project_id"`
	Accounts    int       `json:"accounts"`
	ItemsSynced int64     `json:"items_synced"`
	ClosedAt    time.Time `json:"closed_at"`
}

// SummaryNotifier emits the single end-of-session notification.
type SummaryNotifier interface {
	NotifySummary(ctx context.Context, summary SessionSummary)
}

// ImageUploader persists a thumbnail from its source URL to permanent
// storage and returns the permanent URL. Best-effort: implementations
// return an empty string instead of an error for unsupported content
// (HEIC input is transcoded before upload; a failed transcode yields "").
type ImageUploader interface {
	Upload(ctx context.Context, sourceURL, destinationKey string) (string, error)
}

// LogReporter writes failure reports to the structured log. Used when no
// external error collaborator is configured.
type LogReporter struct {
	logger *slog.Logger
}

func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (r *LogReporter) NotifyError(ctx context.Context, report ErrorReport) {
	r.logger.Error("sync failure report",
		"job_id", report.JobID,
		"account_id", report.AccountID,
		"platform", report.Platform,
		"username", report.Username,
		"stage", report.Stage,
		"message", report.Message,
		"attempts", report.Attempts,
		"terminal", report.Terminal,
	)
}

// LogNotifier writes session summaries to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifySummary(ctx context.Context, summary SessionSummary) {
	n.logger.Info("sync session completed",
		"session_id", summary.SessionID,
		"project_id", summary.ProjectID,
		"accounts", summary.Accounts,
		"items_synced", summary.ItemsSynced,
	)
}

// NoopUploader leaves thumbnails untouched.
type NoopUploader struct{}

func (NoopUploader) Upload(ctx context.Context, sourceURL, destinationKey string) (string, error) {
	return "", nil
}
