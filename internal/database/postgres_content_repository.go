package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

// PostgresContentRepository implements models.ContentRepository. Batch
// methods run in a single transaction so one flush from the storage writer
// maps to one transaction against the store.
type PostgresContentRepository struct {
	db *sql.DB
}

func NewPostgresContentRepository(db *sql.DB) *PostgresContentRepository {
	return &PostgresContentRepository{db: db}
}

const contentColumns = `
	id, account_id, project_id, platform, native_id, caption_text,
	thumbnail_url, views, likes, comments, shares, saves, uploaded_at,
	status, error_class, sync_status, last_refreshed_at, created_at, updated_at`

func (r *PostgresContentRepository) GetByNativeID(ctx context.Context, accountID, nativeID string) (*models.ContentItem, error) {
	query := `SELECT ` + contentColumns + `
		FROM content_items
		WHERE account_id = $1 AND native_id = $2`

	item, err := scanContentItem(r.db.QueryRowContext(ctx, query, accountID, nativeID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan content item: %w", err)
	}
	return item, nil
}

func (r *PostgresContentRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.ContentItem, error) {
	query := `SELECT ` + contentColumns + `
		FROM content_items
		WHERE account_id = $1
		ORDER BY uploaded_at DESC`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan content item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *PostgresContentRepository) ListNativeIDs(ctx context.Context, accountID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT native_id FROM content_items WHERE account_id = $1`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *PostgresContentRepository) CreateBatch(ctx context.Context, items []*models.ContentItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create batch: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO content_items
		(id, account_id, project_id, platform, native_id, caption_text,
		 thumbnail_url, views, likes, comments, shares, saves, uploaded_at,
		 status, error_class, sync_status, last_refreshed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (account_id, native_id) DO NOTHING
	`

	for _, item := range items {
		_, err := tx.ExecContext(ctx, query,
			item.ID, item.AccountID, item.ProjectID, item.Platform,
			item.NativeID, item.CaptionText, item.ThumbnailURL,
			item.Views, item.Likes, item.Comments, item.Shares, item.Saves,
			item.UploadedAt, item.Status, string(item.ErrorClass),
			item.SyncStatus, item.LastRefreshedAt,
		)
		if err != nil {
			return fmt.Errorf("insert content item %s: %w", item.NativeID, err)
		}
	}

	return tx.Commit()
}

func (r *PostgresContentRepository) UpdateMetricsBatch(ctx context.Context, items []*models.ContentItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update batch: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE content_items
		SET views = $2, likes = $3, comments = $4, shares = $5, saves = $6,
		    caption_text = COALESCE(NULLIF($7, ''), caption_text),
		    status = $8, error_class = $9, sync_status = $10,
		    last_refreshed_at = $11, updated_at = NOW()
		WHERE id = $1
	`

	for _, item := range items {
		_, err := tx.ExecContext(ctx, query,
			item.ID, item.Views, item.Likes, item.Comments, item.Shares,
			item.Saves, item.CaptionText, item.Status, string(item.ErrorClass),
			item.SyncStatus, item.LastRefreshedAt,
		)
		if err != nil {
			return fmt.Errorf("update content item %s: %w", item.NativeID, err)
		}
	}

	return tx.Commit()
}

func (r *PostgresContentRepository) AppendSnapshots(ctx context.Context, snapshots []*models.MetricSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot batch: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO metric_snapshots
		(id, content_item_id, views, likes, comments, shares, saves, reason, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for _, snap := range snapshots {
		_, err := tx.ExecContext(ctx, query,
			snap.ID, snap.ContentItemID, snap.Views, snap.Likes,
			snap.Comments, snap.Shares, snap.Saves, snap.Reason, snap.CapturedAt,
		)
		if err != nil {
			return fmt.Errorf("insert snapshot for %s: %w", snap.ContentItemID, err)
		}
	}

	return tx.Commit()
}

func (r *PostgresContentRepository) ListSnapshots(ctx context.Context, contentItemID string, limit int) ([]*models.MetricSnapshot, error) {
	query := `
		SELECT id, content_item_id, views, likes, comments, shares, saves, reason, captured_at
		FROM metric_snapshots
		WHERE content_item_id = $1
		ORDER BY captured_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, contentItemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []*models.MetricSnapshot
	for rows.Next() {
		var snap models.MetricSnapshot
		err := rows.Scan(
			&snap.ID, &snap.ContentItemID, &snap.Views, &snap.Likes,
			&snap.Comments, &snap.Shares, &snap.Saves, &snap.Reason, &snap.CapturedAt,
		)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, &snap)
	}

	return snapshots, rows.Err()
}

func scanContentItem(row rowScanner) (*models.ContentItem, error) {
	var item models.ContentItem
	var captionText, thumbnailURL, errorClass sql.NullString
	var lastRefreshedAt sql.NullTime

	err := row.Scan(
		&item.ID,
		&item.AccountID,
		&item.ProjectID,
		&item.Platform,
		&item.NativeID,
		&captionText,
		&thumbnailURL,
		&item.Views,
		&item.Likes,
		&item.Comments,
		&item.Shares,
		&item.Saves,
		&item.UploadedAt,
		&item.Status,
		&errorClass,
		&item.SyncStatus,
		&lastRefreshedAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.CaptionText = captionText.String
	item.ThumbnailURL = thumbnailURL.String
	item.ErrorClass = models.ContentErrorClass(errorClass.String)
	if lastRefreshedAt.Valid {
		item.LastRefreshedAt = &lastRefreshedAt.Time
	}

	return &item, nil
}

// PostgresQuotaRepository implements models.QuotaRepository over the
// org_content_quotas table. AddUsage is a plain unconditional increment;
// the quota is a soft limit, so overshoot is acceptable.
type PostgresQuotaRepository struct {
	db           *sql.DB
	defaultLimit int
}

func NewPostgresQuotaRepository(db *sql.DB, defaultLimit int) *PostgresQuotaRepository {
	return &PostgresQuotaRepository{db: db, defaultLimit: defaultLimit}
}

func (r *PostgresQuotaRepository) GetQuota(ctx context.Context, organizationID string) (int, int, error) {
	var used, limit int
	err := r.db.QueryRowContext(ctx,
		`SELECT used_items, max_items FROM org_content_quotas WHERE organization_id = $1`,
		organizationID,
	).Scan(&used, &limit)

	if err == sql.ErrNoRows {
		return 0, r.defaultLimit, nil
	}
	if err != nil {
		return 0, 0, err
	}

	return used, limit, nil
}

func (r *PostgresQuotaRepository) AddUsage(ctx context.Context, organizationID string, delta int) error {
	query := `
		INSERT INTO org_content_quotas (organization_id, used_items, max_items)
		VALUES ($1, $2, $3)
		ON CONFLICT (organization_id)
		DO UPDATE SET used_items = org_content_quotas.used_items + $2, updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, organizationID, delta, r.defaultLimit)
	return err
}
