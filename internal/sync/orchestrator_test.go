package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	gosync "sync"
	"testing"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/models"
	"github.com/creatorpulse/creatorpulse/internal/notify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAdapter serves canned refresh and discovery results for tests.
type fakeAdapter struct {
	platform   models.Platform
	refresh    []models.NormalizedContent
	discovery  DiscoveryResult
	refreshErr error
	discErr    error

	mu            gosync.Mutex
	refreshCalls  int
	discoverCalls int
	lastKnownIDs  map[string]struct{}
	lastQuota     int
}

func (a *fakeAdapter) Platform() models.Platform {
	return a.platform
}

func (a *fakeAdapter) Refresh(ctx context.Context, account *models.TrackedAccount, knownIDs map[string]struct{}) ([]models.NormalizedContent, error) {
	a.mu.Lock()
	a.refreshCalls++
	a.mu.Unlock()
	if a.refreshErr != nil {
		return nil, a.refreshErr
	}
	return append([]models.NormalizedContent(nil), a.refresh...), nil
}

func (a *fakeAdapter) Discover(ctx context.Context, account *models.TrackedAccount, knownIDs map[string]struct{}, quota int) (DiscoveryResult, error) {
	a.mu.Lock()
	a.discoverCalls++
	a.lastKnownIDs = knownIDs
	a.lastQuota = quota
	a.mu.Unlock()
	if a.discErr != nil {
		return DiscoveryResult{}, a.discErr
	}
	result := DiscoveryResult{Profile: a.discovery.Profile}
	result.Videos = append(result.Videos, a.discovery.Videos...)
	return result, nil
}

func (a *fakeAdapter) GetProfile(ctx context.Context, username string) (*models.ProfileUpdate, error) {
	return nil, nil
}

// captureReporter records failure reports.
type captureReporter struct {
	mu      gosync.Mutex
	reports []notify.ErrorReport
}

func (r *captureReporter) NotifyError(ctx context.Context, report notify.ErrorReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
}

func (r *captureReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

// captureNotifier records session summaries.
type captureNotifier struct {
	mu        gosync.Mutex
	summaries []notify.SessionSummary
}

func (n *captureNotifier) NotifySummary(ctx context.Context, summary notify.SessionSummary) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, summary)
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.summaries)
}

type testEnv struct {
	accounts *MemoryAccountRepository
	content  *MemoryContentRepository
	quota    *MemoryQuotaRepository
	jobs     *MemoryJobRepository
	sessions *MemorySessionRepository
	adapter  *fakeAdapter
	reporter *captureReporter
	notifier *captureNotifier
	orch     *Orchestrator
}

func newTestEnv(t *testing.T, adapter *fakeAdapter) *testEnv {
	t.Helper()

	logger := testLogger()
	env := &testEnv{
		accounts: NewMemoryAccountRepository(),
		content:  NewMemoryContentRepository(),
		quota:    NewMemoryQuotaRepository(10000),
		jobs:     NewMemoryJobRepository(),
		sessions: NewMemorySessionRepository(),
		adapter:  adapter,
		reporter: &captureReporter{},
		notifier: &captureNotifier{},
	}

	locks := NewLockService(env.accounts, time.Minute, logger)
	writer := NewStorageWriter(env.content, env.quota, nil, logger, 0)
	aggregator := NewSessionAggregator(env.sessions, env.notifier, logger)
	env.orch = NewOrchestrator(env.accounts, env.content, env.jobs, AdapterRegistry{adapter.platform: adapter}, locks, writer, aggregator, env.reporter, logger)

	return env
}

func (e *testEnv) addAccount(t *testing.T, account *models.TrackedAccount) *models.TrackedAccount {
	t.Helper()
	if account.ID == "" {
		account.ID = "acc-1"
	}
	if account.OrganizationID == "" {
		account.OrganizationID = "org-1"
	}
	if account.ProjectID == "" {
		account.ProjectID = "proj-1"
	}
	if account.Platform == "" {
		account.Platform = models.PlatformTikTok
	}
	if account.Username == "" {
		account.Username = "creator"
	}
	if account.CreatorType == "" {
		account.CreatorType = models.CreatorTypeAutomatic
	}
	account.Enabled = true
	if err := e.accounts.Store(context.Background(), account); err != nil {
		t.Fatalf("store account: %v", err)
	}
	return account
}

func (e *testEnv) enqueue(t *testing.T, accountID, sessionID string, strategy models.SyncStrategy) *models.SyncJob {
	t.Helper()
	job := &models.SyncJob{
		ID:          "job-" + accountID,
		AccountID:   accountID,
		ProjectID:   "proj-1",
		SessionID:   sessionID,
		Strategy:    strategy,
		Trigger:     models.TriggerManual,
		Status:      models.JobStatusPending,
		MaxAttempts: models.DefaultMaxAttempts,
	}
	if err := e.jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func video(nativeID string, views int64) models.NormalizedContent {
	return models.NormalizedContent{
		NativeID:   nativeID,
		Views:      views,
		Likes:      views / 10,
		Comments:   views / 100,
		Shares:     views / 200,
		UploadedAt: time.Now().Add(-24 * time.Hour),
	}
}

func TestRunFirstSyncDiscoversContent(t *testing.T) {
	adapter := &fakeAdapter{
		platform: models.PlatformTikTok,
		discovery: DiscoveryResult{
			Videos: []models.NormalizedContent{
				video("v1", 1000),
				video("v2", 2000),
				video("v3", 3000),
			},
			Profile: &models.ProfileUpdate{DisplayName: "Creator", FollowerCount: 500},
		},
	}
	env := newTestEnv(t, adapter)
	account := env.addAccount(t, &models.TrackedAccount{})
	job := env.enqueue(t, account.ID, "", models.StrategyProgressive)

	result, err := env.orch.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Skipped {
		t.Fatal("first sync should not be skipped")
	}
	if result.Discovered != 3 {
		t.Errorf("Discovered = %d, want 3", result.Discovered)
	}
	if result.ItemsWritten != 3 {
		t.Errorf("ItemsWritten = %d, want 3", result.ItemsWritten)
	}
	if result.Refreshed != 0 {
		t.Errorf("Refreshed = %d, want 0 on first sync", result.Refreshed)
	}

	// A first-time sync passes an empty known set so discovery fills the quota.
	if len(adapter.lastKnownIDs) != 0 {
		t.Errorf("discovery knownIDs = %d entries, want 0 on first sync", len(adapter.lastKnownIDs))
	}
	if adapter.lastQuota != DefaultDiscoveryQuota {
		t.Errorf("discovery quota = %d, want %d", adapter.lastQuota, DefaultDiscoveryQuota)
	}

	items, err := env.content.ListByAccount(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("ListByAccount: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("stored %d items, want 3", len(items))
	}
	for _, item := range items {
		snaps, err := env.content.ListSnapshots(context.Background(), item.ID, 0)
		if err != nil {
			t.Fatalf("ListSnapshots: %v", err)
		}
		if len(snaps) != 1 {
			t.Fatalf("item %s has %d snapshots, want 1", item.NativeID, len(snaps))
		}
		if snaps[0].Reason != models.SnapshotReasonInitial {
			t.Errorf("snapshot reason = %s, want initial", snaps[0].Reason)
		}
	}

	updated, err := env.accounts.GetByID(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.SyncStatus != models.SyncStatusCompleted {
		t.Errorf("sync status = %s, want completed", updated.SyncStatus)
	}
	if updated.VideoCount != 3 {
		t.Errorf("VideoCount = %d, want 3", updated.VideoCount)
	}
	if updated.ViewCount != 6000 {
		t.Errorf("ViewCount = %d, want 6000", updated.ViewCount)
	}
	if updated.LastSyncedAt == nil {
		t.Error("LastSyncedAt not stamped")
	}
	if updated.DisplayName != "Creator" {
		t.Errorf("profile not merged, DisplayName = %q", updated.DisplayName)
	}
	if updated.LockToken != "" {
		t.Errorf("lock not released, token = %q", updated.LockToken)
	}

	// Successful jobs leave no trace.
	if got, _ := env.jobs.GetByID(context.Background(), job.ID); got != nil {
		t.Error("completed job still in the queue")
	}
}

func TestRunRefreshUpdatesWithoutCreating(t *testing.T) {
	adapter := &fakeAdapter{
		platform: models.PlatformInstagram,
		refresh: []models.NormalizedContent{
			video("known-1", 5000),
		},
	}
	env := newTestEnv(t, adapter)
	account := env.addAccount(t, &models.TrackedAccount{CreatorType: models.CreatorTypeManual, Platform: models.PlatformInstagram})

	seed := &models.ContentItem{
		ID:        "item-1",
		AccountID: account.ID,
		ProjectID: account.ProjectID,
		Platform:  account.Platform,
		NativeID:  "known-1",
		Views:     100,
		Status:    models.ContentStatusActive,
	}
	if err := env.content.CreateBatch(context.Background(), []*models.ContentItem{seed}); err != nil {
		t.Fatalf("seed content: %v", err)
	}

	job := env.enqueue(t, account.ID, "", models.StrategyProgressive)
	result, err := env.orch.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Manual accounts never discover, even on the progressive strategy.
	if adapter.discoverCalls != 0 {
		t.Errorf("discoverCalls = %d, want 0 for manual account", adapter.discoverCalls)
	}
	if result.Refreshed != 1 {
		t.Errorf("Refreshed = %d, want 1", result.Refreshed)
	}

	item, err := env.content.GetByNativeID(context.Background(), account.ID, "known-1")
	if err != nil {
		t.Fatalf("GetByNativeID: %v", err)
	}
	if item.Views != 5000 {
		t.Errorf("Views = %d, want 5000 after refresh", item.Views)
	}

	snaps, err := env.content.ListSnapshots(context.Background(), item.ID, 0)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}
	if snaps[0].Reason != models.SnapshotReasonManualRefresh {
		t.Errorf("snapshot reason = %s, want manual_refresh", snaps[0].Reason)
	}
}

func TestRunRefreshOnlyStrategySkipsDiscovery(t *testing.T) {
	adapter := &fakeAdapter{
		platform: models.PlatformTikTok,
		discovery: DiscoveryResult{
			Videos: []models.NormalizedContent{video("new-1", 10)},
		},
	}
	env := newTestEnv(t, adapter)
	account := env.addAccount(t, &models.TrackedAccount{})
	job := env.enqueue(t, account.ID, "", models.StrategyRefreshOnly)

	result, err := env.orch.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if adapter.discoverCalls != 0 {
		t.Errorf("discoverCalls = %d, want 0 for refresh_only", adapter.discoverCalls)
	}
	if result.Discovered != 0 {
		t.Errorf("Discovered = %d, want 0", result.Discovered)
	}
}

func TestRunDedupesOverlappingPhases(t *testing.T) {
	// The same native ID comes back from both phases; only the refresh copy
	// with its fresher metrics must be written.
	adapter := &fakeAdapter{
		platform: models.PlatformTikTok,
		refresh:  []models.NormalizedContent{video("v1", 9000)},
		discovery: DiscoveryResult{
			Videos: []models.NormalizedContent{
				video("v1", 100),
				video("v2", 200),
			},
		},
	}
	env := newTestEnv(t, adapter)
	account := env.addAccount(t, &models.TrackedAccount{})

	seed := &models.ContentItem{
		ID:        "item-1",
		AccountID: account.ID,
		ProjectID: account.ProjectID,
		Platform:  account.Platform,
		NativeID:  "v1",
		Views:     50,
		Status:    models.ContentStatusActive,
	}
	if err := env.content.CreateBatch(context.Background(), []*models.ContentItem{seed}); err != nil {
		t.Fatalf("seed content: %v", err)
	}
	synced := time.Now().Add(-time.Hour)
	account.LastSyncedAt = &synced
	if err := env.accounts.Store(context.Background(), account); err != nil {
		t.Fatalf("store account: %v", err)
	}

	job := env.enqueue(t, account.ID, "", models.StrategyProgressive)
	result, err := env.orch.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ItemsWritten != 2 {
		t.Errorf("ItemsWritten = %d, want 2 after dedup", result.ItemsWritten)
	}

	item, err := env.content.GetByNativeID(context.Background(), account.ID, "v1")
	if err != nil {
		t.Fatalf("GetByNativeID: %v", err)
	}
	if item.Views != 9000 {
		t.Errorf("Views = %d, want refresh value 9000", item.Views)
	}
}

func TestRunLockContentionSkipsAndDiscardsJob(t *testing.T) {
	adapter := &fakeAdapter{platform: models.PlatformTikTok}
	env := newTestEnv(t, adapter)
	account := env.addAccount(t, &models.TrackedAccount{})

	held, err := env.accounts.AcquireLock(context.Background(), account.ID, "other-holder", time.Minute)
	if err != nil || !held.Acquired {
		t.Fatalf("pre-acquire lock: %v acquired=%v", err, held.Acquired)
	}

	job := env.enqueue(t, account.ID, "", models.StrategyProgressive)
	result, err := env.orch.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Skipped {
		t.Fatal("contended run should be skipped")
	}
	if adapter.refreshCalls != 0 || adapter.discoverCalls != 0 {
		t.Error("adapter called despite lock contention")
	}
	if got, _ := env.jobs.GetByID(context.Background(), job.ID); got != nil {
		t.Error("duplicate job should be deleted, not retried")
	}
}

func TestRunOrphanedAccountDiscardsJob(t *testing.T) {
	adapter := &fakeAdapter{platform: models.PlatformTikTok}
	env := newTestEnv(t, adapter)
	job := env.enqueue(t, "gone", "", models.StrategyProgressive)

	result, err := env.orch.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Skipped {
		t.Fatal("orphaned job should be skipped")
	}
	if got, _ := env.jobs.GetByID(context.Background(), job.ID); got != nil {
		t.Error("orphaned job should be deleted")
	}
}

func TestRunAdapterFailureMarksAccountAndReports(t *testing.T) {
	adapter := &fakeAdapter{
		platform: models.PlatformYouTube,
		discErr:  errors.New("provider unreachable"),
	}
	env := newTestEnv(t, adapter)
	account := env.addAccount(t, &models.TrackedAccount{Platform: models.PlatformYouTube})
	job := env.enqueue(t, account.ID, "", models.StrategyProgressive)

	_, err := env.orch.Run(context.Background(), job)
	if err == nil {
		t.Fatal("Run should surface the adapter failure")
	}

	updated, _ := env.accounts.GetByID(context.Background(), account.ID)
	if updated.SyncStatus != models.SyncStatusError {
		t.Errorf("sync status = %s, want error", updated.SyncStatus)
	}
	if updated.LastSyncError == "" {
		t.Error("LastSyncError not recorded")
	}
	if updated.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", updated.RetryCount)
	}
	if updated.LockToken != "" {
		t.Error("lock not released after failure")
	}
	if env.reporter.count() != 1 {
		t.Errorf("reporter received %d reports, want 1", env.reporter.count())
	}
}

func TestRunReportsSessionCompletion(t *testing.T) {
	adapter := &fakeAdapter{
		platform: models.PlatformTikTok,
		discovery: DiscoveryResult{
			Videos: []models.NormalizedContent{video("v1", 10), video("v2", 20)},
		},
	}
	env := newTestEnv(t, adapter)
	account := env.addAccount(t, &models.TrackedAccount{})

	aggregator := NewSessionAggregator(env.sessions, env.notifier, testLogger())
	session, err := aggregator.StartSession(context.Background(), account.ProjectID, 1)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	job := env.enqueue(t, account.ID, session.ID, models.StrategyProgressive)
	if _, err := env.orch.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	stored, err := env.sessions.GetByID(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !stored.Closed {
		t.Error("session should be closed after its only job finished")
	}
	if stored.ItemsSynced != 2 {
		t.Errorf("ItemsSynced = %d, want 2", stored.ItemsSynced)
	}
	if env.notifier.count() != 1 {
		t.Errorf("got %d summaries, want exactly 1", env.notifier.count())
	}
}

func TestRunUnknownPlatformFails(t *testing.T) {
	adapter := &fakeAdapter{platform: models.PlatformTikTok}
	env := newTestEnv(t, adapter)
	account := env.addAccount(t, &models.TrackedAccount{Platform: models.PlatformTwitter, Username: "bird"})
	job := env.enqueue(t, account.ID, "", models.StrategyProgressive)

	if _, err := env.orch.Run(context.Background(), job); err == nil {
		t.Fatal("Run should fail when no adapter is registered for the platform")
	}
}

func TestRunSubsequentSyncPassesFullKnownSet(t *testing.T) {
	adapter := &fakeAdapter{
		platform: models.PlatformTikTok,
		refresh: []models.NormalizedContent{
			video("v1", 500),
			video("v2", 600),
		},
	}
	env := newTestEnv(t, adapter)
	account := env.addAccount(t, &models.TrackedAccount{})

	seeds := []*models.ContentItem{
		{ID: "item-1", AccountID: account.ID, ProjectID: account.ProjectID, Platform: account.Platform, NativeID: "v1", Status: models.ContentStatusActive},
		{ID: "item-2", AccountID: account.ID, ProjectID: account.ProjectID, Platform: account.Platform, NativeID: "v2", Status: models.ContentStatusActive},
	}
	if err := env.content.CreateBatch(context.Background(), seeds); err != nil {
		t.Fatalf("seed content: %v", err)
	}
	synced := time.Now().Add(-time.Hour)
	account.LastSyncedAt = &synced
	if err := env.accounts.Store(context.Background(), account); err != nil {
		t.Fatalf("store account: %v", err)
	}

	job := env.enqueue(t, account.ID, "", models.StrategyProgressive)
	if _, err := env.orch.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// A later sync hands discovery every known native ID so the adapter can
	// early-stop while paging.
	if adapter.discoverCalls != 1 {
		t.Fatalf("discoverCalls = %d, want 1", adapter.discoverCalls)
	}
	if len(adapter.lastKnownIDs) != 2 {
		t.Fatalf("discovery knownIDs = %d entries, want 2", len(adapter.lastKnownIDs))
	}
	for _, id := range []string{"v1", "v2"} {
		if _, ok := adapter.lastKnownIDs[id]; !ok {
			t.Errorf("known set missing native ID %s", id)
		}
	}
}

func TestRunDiscoveryQuotaUsesMaxVideos(t *testing.T) {
	adapter := &fakeAdapter{platform: models.PlatformTikTok}
	env := newTestEnv(t, adapter)
	account := env.addAccount(t, &models.TrackedAccount{MaxVideos: 7})
	job := env.enqueue(t, account.ID, "", models.StrategyProgressive)

	if _, err := env.orch.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if adapter.lastQuota != 7 {
		t.Errorf("discovery quota = %d, want MaxVideos 7", adapter.lastQuota)
	}
}

func TestRunDiscoveryQuotaConfigurableDefault(t *testing.T) {
	adapter := &fakeAdapter{platform: models.PlatformTikTok}
	env := newTestEnv(t, adapter)
	env.orch.SetDiscoveryQuota(25)

	account := env.addAccount(t, &models.TrackedAccount{})
	job := env.enqueue(t, account.ID, "", models.StrategyProgressive)

	if _, err := env.orch.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if adapter.lastQuota != 25 {
		t.Errorf("discovery quota = %d, want configured default 25", adapter.lastQuota)
	}

	// A per-account MaxVideos still wins over the configured default.
	capped := env.addAccount(t, &models.TrackedAccount{ID: "acc-2", Username: "capped", MaxVideos: 7})
	job = env.enqueue(t, capped.ID, "", models.StrategyProgressive)
	if _, err := env.orch.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if adapter.lastQuota != 7 {
		t.Errorf("discovery quota = %d, want MaxVideos 7 over the default", adapter.lastQuota)
	}
}
