package models

import (
	"context"
	"strings"
	"time"
)

// Platform identifies one of the supported content platforms.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
	PlatformTwitter   Platform = "twitter"
)

// AllPlatforms lists every platform an account can be tracked on.
var AllPlatforms = []Platform{PlatformInstagram, PlatformTikTok, PlatformYouTube, PlatformTwitter}

// IsValid reports whether p is a known platform.
func (p Platform) IsValid() bool {
	for _, known := range AllPlatforms {
		if p == known {
			return true
		}
	}
	return false
}

// CreatorType controls whether sync may discover new content for an account.
type CreatorType string

const (
	// CreatorTypeAutomatic accounts have their content set discovered and
	// grown by the sync engine.
	CreatorTypeAutomatic CreatorType = "automatic"
	// CreatorTypeManual accounts have a user-curated content set; sync only
	// refreshes metrics.
	CreatorTypeManual CreatorType = "manual"
	// CreatorTypeStatic behaves like manual: the content set is fixed.
	CreatorTypeStatic CreatorType = "static"
)

// DiscoveryEnabled reports whether the engine may create new content items
// for accounts of this type. Manual and static accounts never discover.
func (c CreatorType) DiscoveryEnabled() bool {
	return c == CreatorTypeAutomatic
}

// SyncStatus tracks where an account (or content item) is in its sync cycle.
type SyncStatus string

const (
	SyncStatusPending   SyncStatus = "pending"
	SyncStatusSyncing   SyncStatus = "syncing"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusError     SyncStatus = "error"
)

// TrackedAccount identifies a creator on one platform. Sync-related fields
// (status, aggregates, lock) are mutated only by the orchestration engine
// while the account lock is held; profile fields may be merged without the
// lock since they are advisory.
type TrackedAccount struct {
	ID             string   `json:"id"`
	OrganizationID string   `json:"organization_id"`
	ProjectID      string   `json:"project_id"`
	Platform       Platform `json:"platform"`
	// Username is stored lowercased and is unique per platform within a project.
	Username      string      `json:"username"`
	DisplayName   string      `json:"display_name,omitempty"`
	AvatarURL     string      `json:"avatar_url,omitempty"`
	FollowerCount int64       `json:"follower_count"`
	CreatorType   CreatorType `json:"creator_type"`
	// MaxVideos bounds how many new items one discovery phase may fetch.
	MaxVideos int `json:"max_videos"`

	// Running totals, recomputed from content items after every sync.
	VideoCount   int64 `json:"video_count"`
	ViewCount    int64 `json:"view_count"`
	LikeCount    int64 `json:"like_count"`
	CommentCount int64 `json:"comment_count"`
	ShareCount   int64 `json:"share_count"`

	SyncStatus    SyncStatus `json:"sync_status"`
	LastSyncError string     `json:"last_sync_error,omitempty"`
	RetryCount    int        `json:"retry_count"`
	LastSyncedAt  *time.Time `json:"last_synced_at,omitempty"`

	// Lock field: holder token plus acquisition time. Empty token means unlocked.
	LockToken      string     `json:"-"`
	LockAcquiredAt *time.Time `json:"-"`

	FetchIntervalMinutes int       `json:"fetch_interval_minutes"`
	Enabled              bool      `json:"enabled"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// NormalizeUsername lowercases and trims a platform username for storage.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(username, "@")))
}

// LockResult reports the outcome of a lock acquisition attempt. A refused
// acquisition is an expected concurrency outcome, not an error.
type LockResult struct {
	Acquired bool          `json:"acquired"`
	Reason   string        `json:"reason,omitempty"`
	LockAge  time.Duration `json:"lock_age_seconds,omitempty"`
}

// AccountAggregates holds the recomputed running totals for an account.
type AccountAggregates struct {
	VideoCount   int64
	ViewCount    int64
	LikeCount    int64
	CommentCount int64
	ShareCount   int64
}

// ProfileUpdate carries advisory profile data returned by a platform adapter.
type ProfileUpdate struct {
	DisplayName   string `json:"display_name,omitempty"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	FollowerCount int64  `json:"follower_count,omitempty"`
}

// AccountRepository defines persistence operations for tracked accounts.
type AccountRepository interface {
	// Store creates or updates a tracked account.
	Store(ctx context.Context, account *TrackedAccount) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id string) (*TrackedAccount, error)

	// GetByPlatformAndUsername retrieves an account within a project scope.
	GetByPlatformAndUsername(ctx context.Context, projectID string, platform Platform, username string) (*TrackedAccount, error)

	// ListByProject returns all accounts for a project.
	ListByProject(ctx context.Context, projectID string) ([]*TrackedAccount, error)

	// ListDue returns enabled accounts whose fetch interval has elapsed.
	ListDue(ctx context.Context, now time.Time) ([]*TrackedAccount, error)

	// AcquireLock attempts a conditional write of the lock field. It succeeds
	// when the field is absent, or present but older than maxAge.
	AcquireLock(ctx context.Context, accountID, token string, maxAge time.Duration) (LockResult, error)

	// ReleaseLock clears the lock field only if the stored token matches.
	ReleaseLock(ctx context.Context, accountID, token string) error

	// UpdateSyncStatus sets the account's sync status.
	UpdateSyncStatus(ctx context.Context, accountID string, status SyncStatus) error

	// MarkSyncError records a failed sync: status error, message stored,
	// retry counter incremented.
	MarkSyncError(ctx context.Context, accountID, message string) error

	// UpdateProfile merges advisory profile fields without the lock.
	UpdateProfile(ctx context.Context, accountID string, profile ProfileUpdate) error

	// FinishSync writes recomputed aggregates, marks the account completed,
	// clears the error state and stamps last_synced_at.
	FinishSync(ctx context.Context, accountID string, agg AccountAggregates, syncedAt time.Time) error

	// Delete removes a tracked account.
	Delete(ctx context.Context, id string) error
}
