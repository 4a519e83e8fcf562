package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

// In-memory repository implementations for testing/development. All methods
// are guarded by one mutex per repository so concurrent callers observe the
// same atomicity the Postgres conditional writes provide.

// MemoryAccountRepository implements models.AccountRepository in memory.
type MemoryAccountRepository struct {
	mu       gosync.Mutex
	accounts map[string]*models.TrackedAccount
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: make(map[string]*models.TrackedAccount)}
}

func (r *MemoryAccountRepository) Store(ctx context.Context, account *models.TrackedAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account.Username = models.NormalizeUsername(account.Username)
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	copied := *account
	r.accounts[account.ID] = &copied
	return nil
}

func (r *MemoryAccountRepository) GetByID(ctx context.Context, id string) (*models.TrackedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	copied := *account
	return &copied, nil
}

func (r *MemoryAccountRepository) GetByPlatformAndUsername(ctx context.Context, projectID string, platform models.Platform, username string) (*models.TrackedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username = models.NormalizeUsername(username)
	for _, account := range r.accounts {
		if account.ProjectID == projectID && account.Platform == platform && account.Username == username {
			copied := *account
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *MemoryAccountRepository) ListByProject(ctx context.Context, projectID string) ([]*models.TrackedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.TrackedAccount
	for _, account := range r.accounts {
		if account.ProjectID == projectID {
			copied := *account
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *MemoryAccountRepository) ListDue(ctx context.Context, now time.Time) ([]*models.TrackedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.TrackedAccount
	for _, account := range r.accounts {
		if !account.Enabled {
			continue
		}
		interval := time.Duration(account.FetchIntervalMinutes) * time.Minute
		if account.LastSyncedAt == nil || account.LastSyncedAt.Before(now.Add(-interval)) {
			copied := *account
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *MemoryAccountRepository) AcquireLock(ctx context.Context, accountID, token string, maxAge time.Duration) (models.LockResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[accountID]
	if !ok {
		return models.LockResult{Reason: "account not found"}, nil
	}

	now := time.Now()
	if account.LockToken != "" && account.LockAcquiredAt != nil {
		age := now.Sub(*account.LockAcquiredAt)
		if age < maxAge {
			return models.LockResult{Reason: "lock held by another sync", LockAge: age}, nil
		}
	}

	account.LockToken = token
	account.LockAcquiredAt = &now
	return models.LockResult{Acquired: true}, nil
}

func (r *MemoryAccountRepository) ReleaseLock(ctx context.Context, accountID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[accountID]
	if !ok || account.LockToken != token {
		return nil
	}

	account.LockToken = ""
	account.LockAcquiredAt = nil
	return nil
}

func (r *MemoryAccountRepository) UpdateSyncStatus(ctx context.Context, accountID string, status models.SyncStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if account, ok := r.accounts[accountID]; ok {
		account.SyncStatus = status
		account.UpdatedAt = time.Now()
	}
	return nil
}

func (r *MemoryAccountRepository) MarkSyncError(ctx context.Context, accountID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if account, ok := r.accounts[accountID]; ok {
		account.SyncStatus = models.SyncStatusError
		account.LastSyncError = message
		account.RetryCount++
		account.UpdatedAt = time.Now()
	}
	return nil
}

func (r *MemoryAccountRepository) UpdateProfile(ctx context.Context, accountID string, profile models.ProfileUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[accountID]
	if !ok {
		return nil
	}

	if profile.DisplayName != "" {
		account.DisplayName = profile.DisplayName
	}
	if profile.AvatarURL != "" {
		account.AvatarURL = profile.AvatarURL
	}
	if profile.FollowerCount > 0 {
		account.FollowerCount = profile.FollowerCount
	}
	account.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryAccountRepository) FinishSync(ctx context.Context, accountID string, agg models.AccountAggregates, syncedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[accountID]
	if !ok {
		return nil
	}

	account.VideoCount = agg.VideoCount
	account.ViewCount = agg.ViewCount
	account.LikeCount = agg.LikeCount
	account.CommentCount = agg.CommentCount
	account.ShareCount = agg.ShareCount
	account.SyncStatus = models.SyncStatusCompleted
	account.LastSyncError = ""
	account.RetryCount = 0
	account.LastSyncedAt = &syncedAt
	account.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryAccountRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.accounts, id)
	return nil
}

// MemoryContentRepository implements models.ContentRepository in memory.
type MemoryContentRepository struct {
	mu        gosync.Mutex
	items     map[string]*models.ContentItem            // by internal ID
	nativeIdx map[string]string                         // accountID+"/"+nativeID -> internal ID
	snapshots map[string][]*models.MetricSnapshot       // by content item ID
}

func NewMemoryContentRepository() *MemoryContentRepository {
	return &MemoryContentRepository{
		items:     make(map[string]*models.ContentItem),
		nativeIdx: make(map[string]string),
		snapshots: make(map[string][]*models.MetricSnapshot),
	}
}

func nativeKey(accountID, nativeID string) string {
	return accountID + "/" + nativeID
}

func (r *MemoryContentRepository) GetByNativeID(ctx context.Context, accountID, nativeID string) (*models.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.nativeIdx[nativeKey(accountID, nativeID)]
	if !ok {
		return nil, nil
	}
	copied := *r.items[id]
	return &copied, nil
}

func (r *MemoryContentRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.ContentItem
	for _, item := range r.items {
		if item.AccountID == accountID {
			copied := *item
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *MemoryContentRepository) ListNativeIDs(ctx context.Context, accountID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for _, item := range r.items {
		if item.AccountID == accountID {
			ids = append(ids, item.NativeID)
		}
	}
	return ids, nil
}

func (r *MemoryContentRepository) CreateBatch(ctx context.Context, items []*models.ContentItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, item := range items {
		key := nativeKey(item.AccountID, item.NativeID)
		if _, exists := r.nativeIdx[key]; exists {
			// Native ID already tracked; never recreate.
			continue
		}
		copied := *item
		if copied.CreatedAt.IsZero() {
			copied.CreatedAt = now
		}
		copied.UpdatedAt = now
		r.items[copied.ID] = &copied
		r.nativeIdx[key] = copied.ID
	}
	return nil
}

func (r *MemoryContentRepository) UpdateMetricsBatch(ctx context.Context, items []*models.ContentItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range items {
		existing, ok := r.items[item.ID]
		if !ok {
			continue
		}
		existing.Views = item.Views
		existing.Likes = item.Likes
		existing.Comments = item.Comments
		existing.Shares = item.Shares
		existing.Saves = item.Saves
		existing.CaptionText = item.CaptionText
		existing.Status = item.Status
		existing.ErrorClass = item.ErrorClass
		existing.SyncStatus = item.SyncStatus
		existing.LastRefreshedAt = item.LastRefreshedAt
		existing.UpdatedAt = time.Now()
	}
	return nil
}

func (r *MemoryContentRepository) AppendSnapshots(ctx context.Context, snapshots []*models.MetricSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, snap := range snapshots {
		copied := *snap
		r.snapshots[snap.ContentItemID] = append(r.snapshots[snap.ContentItemID], &copied)
	}
	return nil
}

func (r *MemoryContentRepository) ListSnapshots(ctx context.Context, contentItemID string, limit int) ([]*models.MetricSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snaps := r.snapshots[contentItemID]
	if limit > 0 && len(snaps) > limit {
		snaps = snaps[len(snaps)-limit:]
	}

	result := make([]*models.MetricSnapshot, 0, len(snaps))
	for _, snap := range snaps {
		copied := *snap
		result = append(result, &copied)
	}
	return result, nil
}

// MemoryQuotaRepository implements models.QuotaRepository in memory.
type MemoryQuotaRepository struct {
	mu     gosync.Mutex
	used   map[string]int
	limits map[string]int
	// DefaultLimit applies to organizations without an explicit limit.
	DefaultLimit int
}

func NewMemoryQuotaRepository(defaultLimit int) *MemoryQuotaRepository {
	return &MemoryQuotaRepository{
		used:         make(map[string]int),
		limits:       make(map[string]int),
		DefaultLimit: defaultLimit,
	}
}

// SetLimit configures an organization's tracked-content limit.
func (r *MemoryQuotaRepository) SetLimit(organizationID string, limit int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limits[organizationID] = limit
}

func (r *MemoryQuotaRepository) GetQuota(ctx context.Context, organizationID string) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	limit, ok := r.limits[organizationID]
	if !ok {
		limit = r.DefaultLimit
	}
	return r.used[organizationID], limit, nil
}

func (r *MemoryQuotaRepository) AddUsage(ctx context.Context, organizationID string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.used[organizationID] += delta
	return nil
}

// MemoryJobRepository implements models.JobRepository in memory.
type MemoryJobRepository struct {
	mu   gosync.Mutex
	jobs map[string]*models.SyncJob
}

func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{jobs: make(map[string]*models.SyncJob)}
}

func (r *MemoryJobRepository) Create(ctx context.Context, job *models.SyncJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now
	copied := *job
	r.jobs[job.ID] = &copied
	return nil
}

func (r *MemoryJobRepository) GetByID(ctx context.Context, id string) (*models.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (r *MemoryJobRepository) ClaimPending(ctx context.Context, limit int, staleAfter time.Duration) ([]*models.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var claimed []*models.SyncJob

	for _, job := range r.jobs {
		if len(claimed) >= limit {
			break
		}

		claimable := job.Status == models.JobStatusPending ||
			(job.Status == models.JobStatusRunning && job.StartedAt != nil && now.Sub(*job.StartedAt) > staleAfter)
		if !claimable {
			continue
		}

		job.Status = models.JobStatusRunning
		started := now
		job.StartedAt = &started
		job.UpdatedAt = now

		copied := *job
		claimed = append(claimed, &copied)
	}

	return claimed, nil
}

func (r *MemoryJobRepository) Requeue(ctx context.Context, id string, attempts int, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil
	}
	job.Status = models.JobStatusPending
	job.Attempts = attempts
	job.LastError = lastError
	job.StartedAt = nil
	job.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryJobRepository) MarkFailed(ctx context.Context, id string, attempts int, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil
	}
	job.Status = models.JobStatusFailed
	job.Attempts = attempts
	job.LastError = lastError
	job.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryJobRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.jobs, id)
	return nil
}

func (r *MemoryJobRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.SyncJob
	for _, job := range r.jobs {
		if job.AccountID == accountID {
			copied := *job
			result = append(result, &copied)
		}
	}
	return result, nil
}

// Size returns the number of jobs currently in the queue.
func (r *MemoryJobRepository) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// MemorySessionRepository implements models.SessionRepository in memory.
type MemorySessionRepository struct {
	mu       gosync.Mutex
	sessions map[string]*models.SyncSession
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]*models.SyncSession)}
}

func (r *MemorySessionRepository) Create(ctx context.Context, session *models.SyncSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session.CreatedAt = time.Now()
	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *MemorySessionRepository) GetByID(ctx context.Context, id string) (*models.SyncSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (r *MemorySessionRepository) ReportCompletion(ctx context.Context, sessionID string, items int64) (*models.SessionProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok || session.Closed {
		return nil, nil
	}

	session.Completed++
	session.ItemsSynced += items

	progress := &models.SessionProgress{
		Expected:    session.Expected,
		Completed:   session.Completed,
		ItemsSynced: session.ItemsSynced,
	}

	if session.Completed >= session.Expected {
		session.Closed = true
		now := time.Now()
		session.ClosedAt = &now
		progress.JustClosed = true
	}

	return progress, nil
}
