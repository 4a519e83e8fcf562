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

// DefaultBatchSize bounds how many write operations one flush may carry.
// It exists to respect the store's per-transaction operation limit, not as
// a performance knob.
const DefaultBatchSize = 500

// StorageWriter converts normalized content records into create/update
// operations against the persisted store and appends one metric snapshot
// per item per sync.
type StorageWriter struct {
	content   models.ContentRepository
	quota     models.QuotaRepository
	images    notify.ImageUploader
	logger    *slog.Logger
	batchSize int
}

// NewStorageWriter creates a writer. batchSize <= 0 falls back to the default.
func NewStorageWriter(content models.ContentRepository, quota models.QuotaRepository, images notify.ImageUploader, logger *slog.Logger, batchSize int) *StorageWriter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if images == nil {
		images = notify.NoopUploader{}
	}
	return &StorageWriter{
		content:   content,
		quota:     quota,
		images:    images,
		logger:    logger,
		batchSize: batchSize,
	}
}

// WriteResult summarizes one SaveContent call.
type WriteResult struct {
	Created      int
	Updated      int
	QuotaSkipped int
}

// Count returns the number of items written.
func (r WriteResult) Count() int {
	return r.Created + r.Updated
}

type writeBatch struct {
	creates   []*models.ContentItem
	updates   []*models.ContentItem
	snapshots []*models.MetricSnapshot
}

func (b *writeBatch) ops() int {
	return len(b.creates) + len(b.updates) + len(b.snapshots)
}

// SaveContent persists a deduplicated result list for one account.
//
// Absent items are created only for automatic accounts (hard invariant:
// manual and static accounts never grow their content set here) and only
// while the organization's content quota has headroom. Known items are
// always refreshed; refresh never consumes quota. Every written item gets
// a snapshot: `initial` on create, the sync's reason tag on refresh.
func (w *StorageWriter) SaveContent(ctx context.Context, items []models.NormalizedContent, account *models.TrackedAccount, reason models.SnapshotReason) (WriteResult, error) {
	var result WriteResult
	if len(items) == 0 {
		return result, nil
	}

	quotaUsed, quotaLimit, err := w.quota.GetQuota(ctx, account.OrganizationID)
	if err != nil {
		return result, fmt.Errorf("read content quota: %w", err)
	}

	now := time.Now().UTC()
	batch := &writeBatch{}

	for _, item := range items {
		existing, err := w.content.GetByNativeID(ctx, account.ID, item.NativeID)
		if err != nil {
			return result, fmt.Errorf("lookup content %s: %w", item.NativeID, err)
		}

		if existing != nil {
			batch.updates = append(batch.updates, w.applyRefresh(existing, item, now))
			batch.snapshots = append(batch.snapshots, newSnapshot(existing.ID, item, reason, now))
			result.Updated++
		} else {
			if !account.CreatorType.DiscoveryEnabled() {
				// Manual/static accounts have a fixed content set.
				continue
			}
			if quotaUsed+result.Created >= quotaLimit {
				// QuotaExceeded is a silent skip, not an error. Refresh
				// writes in the same job are unaffected.
				result.QuotaSkipped++
				continue
			}

			created := w.newContentItem(ctx, account, item, now)
			batch.creates = append(batch.creates, created)
			batch.snapshots = append(batch.snapshots, newSnapshot(created.ID, item, models.SnapshotReasonInitial, now))
			result.Created++
		}

		if batch.ops() >= w.batchSize {
			if err := w.flush(ctx, account.OrganizationID, batch); err != nil {
				return result, err
			}
			batch = &writeBatch{}
		}
	}

	if err := w.flush(ctx, account.OrganizationID, batch); err != nil {
		return result, err
	}

	if result.QuotaSkipped > 0 {
		w.logger.Info("content quota reached, skipped new items",
			"organization_id", account.OrganizationID,
			"account_id", account.ID,
			"skipped", result.QuotaSkipped,
		)
	}

	return result, nil
}

func (w *StorageWriter) flush(ctx context.Context, organizationID string, batch *writeBatch) error {
	if batch.ops() == 0 {
		return nil
	}

	if err := w.content.CreateBatch(ctx, batch.creates); err != nil {
		return fmt.Errorf("create content batch: %w", err)
	}
	if err := w.content.UpdateMetricsBatch(ctx, batch.updates); err != nil {
		return fmt.Errorf("update content batch: %w", err)
	}
	if err := w.content.AppendSnapshots(ctx, batch.snapshots); err != nil {
		return fmt.Errorf("append snapshot batch: %w", err)
	}

	if len(batch.creates) > 0 {
		// Unconditional increment: the quota is a soft limit and a small
		// overshoot under concurrency is tolerated.
		if err := w.quota.AddUsage(ctx, organizationID, len(batch.creates)); err != nil {
			return fmt.Errorf("increment content quota: %w", err)
		}
	}

	return nil
}

func (w *StorageWriter) newContentItem(ctx context.Context, account *models.TrackedAccount, item models.NormalizedContent, now time.Time) *models.ContentItem {
	created := &models.ContentItem{
		ID:              uuid.NewString(),
		AccountID:       account.ID,
		ProjectID:       account.ProjectID,
		Platform:        account.Platform,
		NativeID:        item.NativeID,
		CaptionText:     item.CaptionText,
		ThumbnailURL:    item.ThumbnailURL,
		Views:           item.Views,
		Likes:           item.Likes,
		Comments:        item.Comments,
		Shares:          item.Shares,
		Saves:           item.Saves,
		UploadedAt:      item.UploadedAt,
		Status:          models.ContentStatusActive,
		SyncStatus:      models.SyncStatusCompleted,
		LastRefreshedAt: &now,
	}

	if item.Error != nil {
		created.Status = models.ContentStatusError
		created.ErrorClass = item.Error.Class
	}

	if item.ThumbnailURL != "" {
		key := fmt.Sprintf("thumbnails/%s/%s", account.ID, item.NativeID)
		permanent, err := w.images.Upload(ctx, item.ThumbnailURL, key)
		if err != nil {
			// Best-effort: keep the source URL rather than failing the write.
			w.logger.Warn("thumbnail upload failed",
				"account_id", account.ID,
				"native_id", item.NativeID,
				"error", err,
			)
		} else if permanent != "" {
			created.ThumbnailURL = permanent
		}
	}

	return created
}

func (w *StorageWriter) applyRefresh(existing *models.ContentItem, item models.NormalizedContent, now time.Time) *models.ContentItem {
	existing.Views = item.Views
	existing.Likes = item.Likes
	existing.Comments = item.Comments
	existing.Shares = item.Shares
	existing.Saves = item.Saves
	if item.CaptionText != "" {
		existing.CaptionText = item.CaptionText
	}
	existing.LastRefreshedAt = &now
	existing.SyncStatus = models.SyncStatusCompleted

	if item.Error != nil {
		// Terminal item-level error: recorded on this item only.
		existing.Status = models.ContentStatusError
		existing.ErrorClass = item.Error.Class
	} else {
		existing.Status = models.ContentStatusActive
		existing.ErrorClass = ""
	}

	return existing
}

func newSnapshot(contentItemID string, item models.NormalizedContent, reason models.SnapshotReason, now time.Time) *models.MetricSnapshot {
	return &models.MetricSnapshot{
		ID:            uuid.NewString(),
		ContentItemID: contentItemID,
		Views:         item.Views,
		Likes:         item.Likes,
		Comments:      item.Comments,
		Shares:        item.Shares,
		Saves:         item.Saves,
		Reason:        reason,
		CapturedAt:    now,
	}
}
