package models

import (
	"context"
	"time"
)

// ContentStatus marks whether a content item is healthy or errored.
type ContentStatus string

const (
	ContentStatusActive ContentStatus = "active"
	ContentStatusError  ContentStatus = "error"
)

// ContentErrorClass classifies why a single content item failed to sync.
type ContentErrorClass string

const (
	ContentErrorRestricted ContentErrorClass = "restricted"
	ContentErrorPrivate    ContentErrorClass = "private"
	ContentErrorDeleted    ContentErrorClass = "deleted"
	ContentErrorUnknown    ContentErrorClass = "unknown"
)

// ContentError is a terminal, item-level error. It is recorded on the item
// and never aborts the job it occurred in.
type ContentError struct {
	Class   ContentErrorClass `json:"class"`
	Message string            `json:"message,omitempty"`
}

func (e *ContentError) Error() string {
	if e.Message == "" {
		return string(e.Class)
	}
	return string(e.Class) + ": " + e.Message
}

// ContentItem is one piece of tracked content. Created on first discovery,
// updated on every refresh, never recreated once its native ID exists.
type ContentItem struct {
	ID        string   `json:"id"`
	AccountID string   `json:"account_id"`
	ProjectID string   `json:"project_id"`
	Platform  Platform `json:"platform"`
	// NativeID is the platform-assigned identifier, immutable and unique
	// within the account+platform scope. Existence is checked by native-ID
	// lookup, never by internal identity.
	NativeID     string `json:"native_id"`
	CaptionText  string `json:"caption_text,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`

	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
	Saves    int64 `json:"saves"`

	UploadedAt      time.Time         `json:"uploaded_at"`
	Status          ContentStatus     `json:"status"`
	ErrorClass      ContentErrorClass `json:"error_class,omitempty"`
	SyncStatus      SyncStatus        `json:"sync_status"`
	LastRefreshedAt *time.Time        `json:"last_refreshed_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// SnapshotReason tags why a metric snapshot was captured.
type SnapshotReason string

const (
	SnapshotReasonInitial          SnapshotReason = "initial"
	SnapshotReasonManualRefresh    SnapshotReason = "manual_refresh"
	SnapshotReasonScheduledRefresh SnapshotReason = "scheduled_refresh"
)

// MetricSnapshot is an immutable, append-only capture of a content item's
// metrics at one point in time. Never updated or deleted in normal operation.
type MetricSnapshot struct {
	ID            string         `json:"id"`
	ContentItemID string         `json:"content_item_id"`
	Views         int64          `json:"views"`
	Likes         int64          `json:"likes"`
	Comments      int64          `json:"comments"`
	Shares        int64          `json:"shares"`
	Saves         int64          `json:"saves"`
	Reason        SnapshotReason `json:"reason"`
	CapturedAt    time.Time      `json:"captured_at"`
}

// Origin records which sync phase produced a normalized content record.
type Origin string

const (
	OriginRefresh   Origin = "refresh"
	OriginDiscovery Origin = "discovery"
)

// NormalizedContent is the uniform record every platform adapter returns.
type NormalizedContent struct {
	NativeID     string        `json:"native_id"`
	Views        int64         `json:"views"`
	Likes        int64         `json:"likes"`
	Comments     int64         `json:"comments"`
	Shares       int64         `json:"shares"`
	Saves        int64         `json:"saves"`
	CaptionText  string        `json:"caption_text,omitempty"`
	UploadedAt   time.Time     `json:"uploaded_at"`
	ThumbnailURL string        `json:"thumbnail_url,omitempty"`
	Origin       Origin        `json:"origin"`
	Error        *ContentError `json:"error,omitempty"`
}

// ContentRepository defines persistence operations for content items and
// their metric snapshots.
type ContentRepository interface {
	// GetByNativeID looks up an item by its platform-native ID within an
	// account scope. Returns nil when absent.
	GetByNativeID(ctx context.Context, accountID, nativeID string) (*ContentItem, error)

	// ListByAccount returns every content item for an account. Used for the
	// full-scan aggregate recompute.
	ListByAccount(ctx context.Context, accountID string) ([]*ContentItem, error)

	// ListNativeIDs returns the native IDs of all items for an account.
	ListNativeIDs(ctx context.Context, accountID string) ([]string, error)

	// CreateBatch inserts new content items in one operation.
	CreateBatch(ctx context.Context, items []*ContentItem) error

	// UpdateMetricsBatch writes refreshed metric fields for existing items.
	UpdateMetricsBatch(ctx context.Context, items []*ContentItem) error

	// AppendSnapshots stores metric snapshots. Snapshots are append-only.
	AppendSnapshots(ctx context.Context, snapshots []*MetricSnapshot) error

	// ListSnapshots returns snapshots for a content item, newest first.
	ListSnapshots(ctx context.Context, contentItemID string, limit int) ([]*MetricSnapshot, error)
}

// QuotaRepository tracks the per-organization tracked-content limit. The
// counter is a soft limit: it is incremented without a lock and a small
// overshoot under heavy concurrency is tolerated.
type QuotaRepository interface {
	// GetQuota returns the used count and the limit for an organization.
	GetQuota(ctx context.Context, organizationID string) (used, limit int, err error)

	// AddUsage increments the used counter.
	AddUsage(ctx context.Context, organizationID string, delta int) error
}
