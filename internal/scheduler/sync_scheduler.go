package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/models"
	"github.com/creatorpulse/creatorpulse/internal/sync"
)

// SyncScheduler manages automatic refresh of tracked accounts. Each account
// carries its own fetch interval; every tick the scheduler finds the accounts
// that are due, opens one session per project so the batch produces a single
// summary, and enqueues scheduled jobs for the queue to pick up.
type SyncScheduler struct {
	accounts      models.AccountRepository
	queue         *sync.QueueManager
	sessions      *sync.SessionAggregator
	logger        *slog.Logger
	stopChan      chan struct{}
	checkInterval time.Duration
}

// NewSyncScheduler creates a new sync scheduler.
func NewSyncScheduler(
	accounts models.AccountRepository,
	queue *sync.QueueManager,
	sessions *sync.SessionAggregator,
	checkInterval time.Duration,
	logger *slog.Logger,
) *SyncScheduler {
	if checkInterval <= 0 {
		checkInterval = time.Minute
	}

	return &SyncScheduler{
		accounts:      accounts,
		queue:         queue,
		sessions:      sessions,
		logger:        logger,
		stopChan:      make(chan struct{}),
		checkInterval: checkInterval,
	}
}

// Start begins the scheduler loop
func (s *SyncScheduler) Start(ctx context.Context) {
	s.logger.Info("Starting sync scheduler", "check_interval", s.checkInterval)
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	// Run once immediately on start
	s.checkAndEnqueue(ctx)

	for {
		select {
		case <-ticker.C:
			s.checkAndEnqueue(ctx)
		case <-s.stopChan:
			s.logger.Info("Sync scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Sync scheduler stopping due to context cancellation")
			return
		}
	}
}

// Stop stops the scheduler
func (s *SyncScheduler) Stop() {
	close(s.stopChan)
}

// checkAndEnqueue finds due accounts and enqueues scheduled sync jobs,
// grouped into one session per project.
func (s *SyncScheduler) checkAndEnqueue(ctx context.Context) {
	due, err := s.accounts.ListDue(ctx, time.Now())
	if err != nil {
		s.logger.Error("Failed to list due accounts", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	byProject := make(map[string][]*models.TrackedAccount)
	for _, account := range due {
		byProject[account.ProjectID] = append(byProject[account.ProjectID], account)
	}

	for projectID, accounts := range byProject {
		session, err := s.sessions.StartSession(ctx, projectID, len(accounts))
		if err != nil {
			s.logger.Error("Failed to start scheduled session",
				"project_id", projectID,
				"error", err,
			)
			continue
		}

		enqueued := 0
		for _, account := range accounts {
			strategy := models.StrategyRefreshOnly
			if account.CreatorType.DiscoveryEnabled() {
				strategy = models.StrategyProgressive
			}

			_, err := s.queue.Enqueue(ctx, account.ID, projectID, session.ID, strategy, models.TriggerScheduled)
			if err != nil {
				s.logger.Error("Failed to enqueue scheduled sync",
					"account_id", account.ID,
					"platform", account.Platform,
					"error", err,
				)
				// Report the slot as done so the session can still close.
				if rerr := s.sessions.ReportCompletion(ctx, session.ID, account.ID, 0); rerr != nil {
					s.logger.Error("Failed to release session slot",
						"session_id", session.ID,
						"account_id", account.ID,
						"error", rerr,
					)
				}
				continue
			}
			enqueued++
		}

		s.logger.Info("Scheduled sync batch enqueued",
			"project_id", projectID,
			"session_id", session.ID,
			"accounts", enqueued,
		)
	}
}
