package sync

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

// QueueConfig holds queue manager tuning.
type QueueConfig struct {
	// SweepInterval is how often pending jobs are claimed and run.
	SweepInterval time.Duration
	// ClaimBatch bounds how many jobs one sweep claims.
	ClaimBatch int
	// StaleRunningAfter is when a running job's worker is presumed dead and
	// the job becomes claimable again.
	StaleRunningAfter time.Duration
	// ConcurrentJobs bounds how many claimed jobs run at once.
	ConcurrentJobs int
}

// DefaultQueueConfig returns sensible defaults.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		SweepInterval:     15 * time.Second,
		ClaimBatch:        10,
		StaleRunningAfter: 15 * time.Minute,
		ConcurrentJobs:    3,
	}
}

// QueueManager turns sync requests into durable job records and drives them
// through the orchestrator with the retry policy: transient failures requeue
// with an incremented attempt count; once attempts reach the cap the job is
// terminally failed. Successful jobs are deleted, so the queue's steady
// state is bounded by in-flight work.
type QueueManager struct {
	jobs   models.JobRepository
	orch   *Orchestrator
	config QueueConfig
	obs    Observer
	logger *slog.Logger
}

func NewQueueManager(jobs models.JobRepository, orch *Orchestrator, config QueueConfig, logger *slog.Logger) *QueueManager {
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultQueueConfig().SweepInterval
	}
	if config.ClaimBatch <= 0 {
		config.ClaimBatch = DefaultQueueConfig().ClaimBatch
	}
	if config.StaleRunningAfter <= 0 {
		config.StaleRunningAfter = DefaultQueueConfig().StaleRunningAfter
	}
	if config.ConcurrentJobs <= 0 {
		config.ConcurrentJobs = 1
	}

	return &QueueManager{
		jobs:   jobs,
		orch:   orch,
		config: config,
		obs:    nopObserver{},
		logger: logger,
	}
}

// SetObserver attaches a metrics observer.
func (m *QueueManager) SetObserver(obs Observer) {
	if obs != nil {
		m.obs = obs
	}
}

// Enqueue creates one pending sync job.
func (m *QueueManager) Enqueue(ctx context.Context, accountID, projectID, sessionID string, strategy models.SyncStrategy, trigger models.JobTrigger) (*models.SyncJob, error) {
	job := &models.SyncJob{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		ProjectID:   projectID,
		SessionID:   sessionID,
		Strategy:    strategy,
		Trigger:     trigger,
		Status:      models.JobStatusPending,
		MaxAttempts: models.DefaultMaxAttempts,
	}

	if err := m.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue sync job: %w", err)
	}

	m.logger.Info("sync job enqueued",
		"job_id", job.ID,
		"account_id", accountID,
		"strategy", strategy,
		"trigger", trigger,
	)

	return job, nil
}

// Start runs the sweep loop until the context is cancelled.
func (m *QueueManager) Start(ctx context.Context) {
	m.logger.Info("starting sync queue",
		"sweep_interval", m.config.SweepInterval,
		"concurrent_jobs", m.config.ConcurrentJobs,
	)

	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	m.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("sync queue shutting down")
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep claims a batch of runnable jobs and executes them.
func (m *QueueManager) Sweep(ctx context.Context) {
	claimed, err := m.jobs.ClaimPending(ctx, m.config.ClaimBatch, m.config.StaleRunningAfter)
	if err != nil {
		m.logger.Error("failed to claim pending jobs", "error", err)
		return
	}
	if len(claimed) == 0 {
		return
	}

	var wg gosync.WaitGroup
	semaphore := make(chan struct{}, m.config.ConcurrentJobs)

	for _, job := range claimed {
		wg.Add(1)

		go func(job *models.SyncJob) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			m.runJob(ctx, job)
		}(job)
	}

	wg.Wait()
}

func (m *QueueManager) runJob(ctx context.Context, job *models.SyncJob) {
	start := time.Now()
	result, err := m.orch.Run(ctx, job)
	duration := time.Since(start)

	if err != nil {
		m.HandleFailure(ctx, job, err)
		outcome := "retried"
		if job.Attempts >= job.MaxAttempts {
			outcome = "failed"
		}
		m.obs.ObserveJob(string(result.Platform), outcome, duration)
		return
	}

	if result.Skipped {
		m.logger.Info("sync job skipped",
			"job_id", job.ID,
			"account_id", job.AccountID,
		)
		m.obs.ObserveJob(string(result.Platform), "skipped", duration)
		return
	}

	m.obs.ObserveJob(string(result.Platform), "completed", duration)
	m.obs.ObserveItems(result.ItemsCreated, result.ItemsUpdated, result.QuotaSkipped)
}

// HandleFailure applies the retry policy to a failed job: increment the
// attempt count, requeue below the cap, terminally fail at it. Terminal
// failures stay visible on the account's error state, not in the queue.
func (m *QueueManager) HandleFailure(ctx context.Context, job *models.SyncJob, cause error) {
	job.Attempts++

	if job.Attempts >= job.MaxAttempts {
		if err := m.jobs.MarkFailed(ctx, job.ID, job.Attempts, cause.Error()); err != nil {
			m.logger.Error("failed to mark job failed", "job_id", job.ID, "error", err)
			return
		}

		m.logger.Error("sync job failed terminally",
			"job_id", job.ID,
			"account_id", job.AccountID,
			"attempts", job.Attempts,
			"error", cause,
		)
		return
	}

	if err := m.jobs.Requeue(ctx, job.ID, job.Attempts, cause.Error()); err != nil {
		m.logger.Error("failed to requeue job", "job_id", job.ID, "error", err)
		return
	}

	m.logger.Warn("sync job requeued",
		"job_id", job.ID,
		"account_id", job.AccountID,
		"attempts", job.Attempts,
		"max_attempts", job.MaxAttempts,
		"error", cause,
	)
}
