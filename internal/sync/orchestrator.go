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

// DefaultDiscoveryQuota applies when an account doesn't configure MaxVideos.
const DefaultDiscoveryQuota = 100

// Result summarizes one orchestrator invocation.
type Result struct {
	// Skipped is true when lock contention short-circuited the job. It is
	// a success outcome: someone else is already doing the work.
	Skipped      bool
	Platform     models.Platform
	Refreshed    int
	Discovered   int
	ItemsCreated int
	ItemsUpdated int
	ItemsWritten int
	QuotaSkipped int
}

// Orchestrator runs one sync job end to end:
//
//	start → locking → syncing(refresh) → syncing(discover) → persisting → finalizing
//
// Every invocation is stateless; all coordination state lives in the store.
type Orchestrator struct {
	accounts       models.AccountRepository
	content        models.ContentRepository
	jobs           models.JobRepository
	adapters       AdapterRegistry
	locks          *LockService
	writer         *StorageWriter
	sessions       *SessionAggregator
	reporter       notify.ErrorReporter
	obs            Observer
	discoveryQuota int
	logger         *slog.Logger
}

func NewOrchestrator(
	accounts models.AccountRepository,
	content models.ContentRepository,
	jobs models.JobRepository,
	adapters AdapterRegistry,
	locks *LockService,
	writer *StorageWriter,
	sessions *SessionAggregator,
	reporter notify.ErrorReporter,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		accounts:       accounts,
		content:        content,
		jobs:           jobs,
		adapters:       adapters,
		locks:          locks,
		writer:         writer,
		sessions:       sessions,
		reporter:       reporter,
		obs:            nopObserver{},
		discoveryQuota: DefaultDiscoveryQuota,
		logger:         logger,
	}
}

// SetObserver attaches a metrics observer.
func (o *Orchestrator) SetObserver(obs Observer) {
	if obs != nil {
		o.obs = obs
	}
}

// SetDiscoveryQuota overrides the default discovery quota applied to accounts
// that don't configure MaxVideos.
func (o *Orchestrator) SetDiscoveryQuota(quota int) {
	if quota > 0 {
		o.discoveryQuota = quota
	}
}

// Run executes one sync job. Lock contention returns a skipped Result and no
// error (the job is deleted: the holder is doing the same work). Any other
// failure marks the account errored, releases the lock and returns the error
// so the queue manager can apply its retry policy.
func (o *Orchestrator) Run(ctx context.Context, job *models.SyncJob) (Result, error) {
	var result Result

	account, err := o.accounts.GetByID(ctx, job.AccountID)
	if err != nil {
		return result, fmt.Errorf("load account: %w", err)
	}
	if account == nil {
		// Account was deleted after the job was enqueued; nothing to do.
		if err := o.jobs.Delete(ctx, job.ID); err != nil {
			return result, fmt.Errorf("delete orphaned job: %w", err)
		}
		result.Skipped = true
		return result, nil
	}

	result.Platform = account.Platform

	adapter, ok := o.adapters.ForAccount(account)
	if !ok {
		return result, fmt.Errorf("no adapter registered for platform %s", account.Platform)
	}

	// Refresh-only strategies and manual/static creator types skip discovery.
	discoveryEnabled := job.Strategy == models.StrategyProgressive && account.CreatorType.DiscoveryEnabled()

	token := uuid.NewString()
	lock, err := o.locks.Acquire(ctx, account.ID, token)
	if err != nil {
		return result, fmt.Errorf("acquire lock: %w", err)
	}
	if !lock.Acquired {
		// Duplicate-prevented: discard the job so it isn't retried.
		o.obs.ObserveLockContention()
		if err := o.jobs.Delete(ctx, job.ID); err != nil {
			return result, fmt.Errorf("delete duplicate job: %w", err)
		}
		result.Skipped = true
		return result, nil
	}
	defer o.locks.Release(ctx, account.ID, token)

	result, err = o.runLocked(ctx, job, account, adapter, discoveryEnabled)
	if err != nil {
		o.failJob(ctx, job, account, err)
		return result, err
	}

	return result, nil
}

func (o *Orchestrator) runLocked(ctx context.Context, job *models.SyncJob, account *models.TrackedAccount, adapter PlatformAdapter, discoveryEnabled bool) (Result, error) {
	result := Result{Platform: account.Platform}

	if err := o.accounts.UpdateSyncStatus(ctx, account.ID, models.SyncStatusSyncing); err != nil {
		return result, fmt.Errorf("mark account syncing: %w", err)
	}

	knownIDs, err := o.content.ListNativeIDs(ctx, account.ID)
	if err != nil {
		return result, fmt.Errorf("list known native IDs: %w", err)
	}

	knownSet := make(map[string]struct{}, len(knownIDs))
	for _, id := range knownIDs {
		knownSet[id] = struct{}{}
	}

	var combined []models.NormalizedContent

	// Refresh phase. Always runs first when the account has content.
	if len(knownSet) > 0 {
		refreshed, err := adapter.Refresh(ctx, account, knownSet)
		if err != nil {
			return result, fmt.Errorf("refresh phase: %w", err)
		}
		for i := range refreshed {
			refreshed[i].Origin = models.OriginRefresh
		}
		combined = append(combined, refreshed...)
		result.Refreshed = len(refreshed)
	}

	// Discovery phase, only after refresh completed.
	if discoveryEnabled {
		quota := account.MaxVideos
		if quota <= 0 {
			quota = o.discoveryQuota
		}

		// First-time sync (never synced, or zero tracked content) passes an
		// empty known set so discovery fills the whole quota. Later syncs
		// pass the full set so the adapter can early-stop while paging.
		discoveryKnown := knownSet
		if account.LastSyncedAt == nil || len(knownSet) == 0 {
			discoveryKnown = map[string]struct{}{}
		}

		discovery, err := adapter.Discover(ctx, account, discoveryKnown, quota)
		if err != nil {
			return result, fmt.Errorf("discovery phase: %w", err)
		}
		for i := range discovery.Videos {
			discovery.Videos[i].Origin = models.OriginDiscovery
		}
		combined = append(combined, discovery.Videos...)
		result.Discovered = len(discovery.Videos)

		// Profile data is advisory; a failed merge never aborts the sync.
		if discovery.Profile != nil {
			if err := o.accounts.UpdateProfile(ctx, account.ID, *discovery.Profile); err != nil {
				o.logger.Warn("profile merge failed",
					"account_id", account.ID,
					"error", err,
				)
			}
		}
	}

	// Persist.
	deduped := NewDeduplicator(o.logger).Dedupe(combined)
	written, err := o.writer.SaveContent(ctx, deduped, account, job.Trigger.SnapshotReason())
	if err != nil {
		return result, fmt.Errorf("persist content: %w", err)
	}
	result.ItemsCreated = written.Created
	result.ItemsUpdated = written.Updated
	result.ItemsWritten = written.Count()
	result.QuotaSkipped = written.QuotaSkipped

	// Finalize: full re-sum of aggregates to self-heal drift.
	if err := o.finalize(ctx, job, account, result); err != nil {
		return result, err
	}

	o.logger.Info("sync completed",
		"job_id", job.ID,
		"account_id", account.ID,
		"platform", account.Platform,
		"username", account.Username,
		"refreshed", result.Refreshed,
		"discovered", result.Discovered,
		"written", result.ItemsWritten,
	)

	return result, nil
}

func (o *Orchestrator) finalize(ctx context.Context, job *models.SyncJob, account *models.TrackedAccount, result Result) error {
	items, err := o.content.ListByAccount(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("list content for aggregates: %w", err)
	}

	var agg models.AccountAggregates
	for _, item := range items {
		agg.VideoCount++
		agg.ViewCount += item.Views
		agg.LikeCount += item.Likes
		agg.CommentCount += item.Comments
		agg.ShareCount += item.Shares
	}

	if err := o.accounts.FinishSync(ctx, account.ID, agg, time.Now().UTC()); err != nil {
		return fmt.Errorf("finish sync: %w", err)
	}

	if job.SessionID != "" && o.sessions != nil {
		if err := o.sessions.ReportCompletion(ctx, job.SessionID, account.ID, int64(result.ItemsWritten)); err != nil {
			// The batch summary may undercount, but the account sync itself
			// succeeded; don't fail the job over it.
			o.logger.Error("session completion report failed",
				"session_id", job.SessionID,
				"account_id", account.ID,
				"error", err,
			)
		}
	}

	if err := o.jobs.Delete(ctx, job.ID); err != nil {
		return fmt.Errorf("delete completed job: %w", err)
	}

	return nil
}

func (o *Orchestrator) failJob(ctx context.Context, job *models.SyncJob, account *models.TrackedAccount, cause error) {
	if err := o.accounts.MarkSyncError(ctx, account.ID, cause.Error()); err != nil {
		o.logger.Error("failed to mark account errored",
			"account_id", account.ID,
			"error", err,
		)
	}

	if o.reporter != nil {
		o.reporter.NotifyError(ctx, notify.ErrorReport{
			JobID:      job.ID,
			AccountID:  account.ID,
			Platform:   string(account.Platform),
			Username:   account.Username,
			Stage:      "sync",
			Message:    cause.Error(),
			Attempts:   job.Attempts + 1,
			Terminal:   job.Attempts+1 >= job.MaxAttempts,
			OccurredAt: time.Now().UTC(),
		})
	}
}
