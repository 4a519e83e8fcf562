package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/creatorpulse/creatorpulse/internal/models"
	"github.com/creatorpulse/creatorpulse/internal/notify"
)

// SessionAggregator is the fan-in coordinator for batch syncs: many accounts
// sync independently and concurrently, but the user gets one summary, sent
// by whichever job finishes last. The increment-and-compare runs as a single
// conditional write in the store, so the close transition is observed by
// exactly one reporter even under concurrent out-of-order completions.
type SessionAggregator struct {
	sessions models.SessionRepository
	notifier notify.SummaryNotifier
	obs      Observer
	logger   *slog.Logger
}

func NewSessionAggregator(sessions models.SessionRepository, notifier notify.SummaryNotifier, logger *slog.Logger) *SessionAggregator {
	return &SessionAggregator{
		sessions: sessions,
		notifier: notifier,
		obs:      nopObserver{},
		logger:   logger,
	}
}

// SetObserver attaches a metrics observer.
func (a *SessionAggregator) SetObserver(obs Observer) {
	if obs != nil {
		a.obs = obs
	}
}

// StartSession opens a fan-in session expecting the given number of account
// completions.
func (a *SessionAggregator) StartSession(ctx context.Context, projectID string, expected int) (*models.SyncSession, error) {
	if expected <= 0 {
		return nil, fmt.Errorf("session expected count must be positive, got %d", expected)
	}

	session := &models.SyncSession{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Expected:  expected,
	}

	if err := a.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create sync session: %w", err)
	}

	a.logger.Info("sync session started",
		"session_id", session.ID,
		"project_id", projectID,
		"expected", expected,
	)

	return session, nil
}

// ReportCompletion records one finished account sync. Reports against a
// closed or unknown session are no-ops. The report whose increment reaches
// the expected count emits the summary.
func (a *SessionAggregator) ReportCompletion(ctx context.Context, sessionID, accountID string, itemCount int64) error {
	progress, err := a.sessions.ReportCompletion(ctx, sessionID, itemCount)
	if err != nil {
		return fmt.Errorf("report session completion: %w", err)
	}
	if progress == nil {
		a.logger.Debug("completion report against closed session ignored",
			"session_id", sessionID,
			"account_id", accountID,
		)
		return nil
	}

	if progress.JustClosed {
		session, err := a.sessions.GetByID(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("load closed session: %w", err)
		}

		summary := notify.SessionSummary{
			SessionID:   sessionID,
			Accounts:    progress.Expected,
			ItemsSynced: progress.ItemsSynced,
			ClosedAt:    time.Now().UTC(),
		}
		if session != nil {
			summary.ProjectID = session.ProjectID
			if session.ClosedAt != nil {
				summary.ClosedAt = *session.ClosedAt
			}
		}

		a.obs.ObserveSessionClosed()
		a.notifier.NotifySummary(ctx, summary)
	}

	return nil
}
