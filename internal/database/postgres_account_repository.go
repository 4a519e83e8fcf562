package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

// PostgresAccountRepository implements models.AccountRepository.
type PostgresAccountRepository struct {
	db *sql.DB
}

func NewPostgresAccountRepository(db *sql.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

const accountColumns = `
	id, organization_id, project_id, platform, username, display_name,
	avatar_url, follower_count, creator_type, max_videos,
	video_count, view_count, like_count, comment_count, share_count,
	sync_status, last_sync_error, retry_count, last_synced_at,
	lock_token, lock_acquired_at, fetch_interval_minutes, enabled,
	created_at, updated_at`

func (r *PostgresAccountRepository) Store(ctx context.Context, account *models.TrackedAccount) error {
	account.Username = models.NormalizeUsername(account.Username)

	if account.ID == "" {
		query := `
			INSERT INTO tracked_accounts
			(organization_id, project_id, platform, username, display_name,
			 creator_type, max_videos, sync_status, fetch_interval_minutes, enabled)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (project_id, platform, username)
			DO UPDATE SET
				display_name = EXCLUDED.display_name,
				creator_type = EXCLUDED.creator_type,
				max_videos = EXCLUDED.max_videos,
				fetch_interval_minutes = EXCLUDED.fetch_interval_minutes,
				enabled = EXCLUDED.enabled,
				updated_at = NOW()
			RETURNING id, created_at, updated_at
		`

		return r.db.QueryRowContext(ctx, query,
			account.OrganizationID,
			account.ProjectID,
			account.Platform,
			account.Username,
			account.DisplayName,
			account.CreatorType,
			account.MaxVideos,
			account.SyncStatus,
			account.FetchIntervalMinutes,
			account.Enabled,
		).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	}

	query := `
		UPDATE tracked_accounts SET
			display_name = $2,
			creator_type = $3,
			max_videos = $4,
			fetch_interval_minutes = $5,
			enabled = $6,
			updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`

	return r.db.QueryRowContext(ctx, query,
		account.ID,
		account.DisplayName,
		account.CreatorType,
		account.MaxVideos,
		account.FetchIntervalMinutes,
		account.Enabled,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
}

func (r *PostgresAccountRepository) GetByID(ctx context.Context, id string) (*models.TrackedAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM tracked_accounts WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresAccountRepository) GetByPlatformAndUsername(ctx context.Context, projectID string, platform models.Platform, username string) (*models.TrackedAccount, error) {
	query := `SELECT ` + accountColumns + `
		FROM tracked_accounts
		WHERE project_id = $1 AND platform = $2 AND username = $3`
	return r.scanOne(r.db.QueryRowContext(ctx, query, projectID, platform, models.NormalizeUsername(username)))
}

func (r *PostgresAccountRepository) ListByProject(ctx context.Context, projectID string) ([]*models.TrackedAccount, error) {
	query := `SELECT ` + accountColumns + `
		FROM tracked_accounts
		WHERE project_id = $1
		ORDER BY platform, username`

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanAccounts(rows)
}

func (r *PostgresAccountRepository) ListDue(ctx context.Context, now time.Time) ([]*models.TrackedAccount, error) {
	query := `SELECT ` + accountColumns + `
		FROM tracked_accounts
		WHERE enabled = true
		  AND (last_synced_at IS NULL
		       OR last_synced_at < $1 - (fetch_interval_minutes * INTERVAL '1 minute'))
		ORDER BY project_id, platform, username`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanAccounts(rows)
}

// AcquireLock performs the conditional lock write: it succeeds only when the
// lock field is absent or stale. The predicate and the write happen in a
// single UPDATE so two concurrent callers can never both acquire.
func (r *PostgresAccountRepository) AcquireLock(ctx context.Context, accountID, token string, maxAge time.Duration) (models.LockResult, error) {
	query := `
		UPDATE tracked_accounts
		SET lock_token = $2, lock_acquired_at = NOW(), updated_at = NOW()
		WHERE id = $1
		  AND (lock_token IS NULL
		       OR lock_acquired_at IS NULL
		       OR lock_acquired_at < NOW() - ($3::bigint * INTERVAL '1 second'))
		RETURNING id
	`

	var claimed string
	err := r.db.QueryRowContext(ctx, query, accountID, token, int64(maxAge.Seconds())).Scan(&claimed)
	if err == nil {
		return models.LockResult{Acquired: true}, nil
	}
	if err != sql.ErrNoRows {
		return models.LockResult{}, err
	}

	// Lock is held and fresh. Compute its age for the caller's report.
	var acquiredAt sql.NullTime
	ageQuery := `SELECT lock_acquired_at FROM tracked_accounts WHERE id = $1`
	if err := r.db.QueryRowContext(ctx, ageQuery, accountID).Scan(&acquiredAt); err != nil {
		if err == sql.ErrNoRows {
			return models.LockResult{Reason: "account not found"}, nil
		}
		return models.LockResult{}, err
	}

	result := models.LockResult{Reason: "lock held by another sync"}
	if acquiredAt.Valid {
		result.LockAge = time.Since(acquiredAt.Time)
	}
	return result, nil
}

// ReleaseLock clears the lock field only when the stored token still matches,
// so a late release can never clobber a newer holder.
func (r *PostgresAccountRepository) ReleaseLock(ctx context.Context, accountID, token string) error {
	query := `
		UPDATE tracked_accounts
		SET lock_token = NULL, lock_acquired_at = NULL, updated_at = NOW()
		WHERE id = $1 AND lock_token = $2
	`

	_, err := r.db.ExecContext(ctx, query, accountID, token)
	return err
}

func (r *PostgresAccountRepository) UpdateSyncStatus(ctx context.Context, accountID string, status models.SyncStatus) error {
	query := `UPDATE tracked_accounts SET sync_status = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, accountID, status)
	return err
}

func (r *PostgresAccountRepository) MarkSyncError(ctx context.Context, accountID, message string) error {
	query := `
		UPDATE tracked_accounts
		SET sync_status = $2,
		    last_sync_error = $3,
		    retry_count = retry_count + 1,
		    updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, accountID, models.SyncStatusError, message)
	return err
}

func (r *PostgresAccountRepository) UpdateProfile(ctx context.Context, accountID string, profile models.ProfileUpdate) error {
	query := `
		UPDATE tracked_accounts
		SET display_name = COALESCE(NULLIF($2, ''), display_name),
		    avatar_url = COALESCE(NULLIF($3, ''), avatar_url),
		    follower_count = CASE WHEN $4 > 0 THEN $4 ELSE follower_count END,
		    updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, accountID, profile.DisplayName, profile.AvatarURL, profile.FollowerCount)
	return err
}

func (r *PostgresAccountRepository) FinishSync(ctx context.Context, accountID string, agg models.AccountAggregates, syncedAt time.Time) error {
	query := `
		UPDATE tracked_accounts
		SET video_count = $2,
		    view_count = $3,
		    like_count = $4,
		    comment_count = $5,
		    share_count = $6,
		    sync_status = $7,
		    last_sync_error = '',
		    retry_count = 0,
		    last_synced_at = $8,
		    updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, accountID,
		agg.VideoCount, agg.ViewCount, agg.LikeCount, agg.CommentCount, agg.ShareCount,
		models.SyncStatusCompleted, syncedAt)
	return err
}

func (r *PostgresAccountRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tracked_accounts WHERE id = $1`, id)
	return err
}

func (r *PostgresAccountRepository) scanOne(row *sql.Row) (*models.TrackedAccount, error) {
	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan tracked account: %w", err)
	}
	return account, nil
}

func (r *PostgresAccountRepository) scanAccounts(rows *sql.Rows) ([]*models.TrackedAccount, error) {
	var accounts []*models.TrackedAccount

	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tracked account: %w", err)
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*models.TrackedAccount, error) {
	var account models.TrackedAccount
	var displayName, avatarURL, lastSyncError, lockToken sql.NullString
	var lastSyncedAt, lockAcquiredAt sql.NullTime

	err := row.Scan(
		&account.ID,
		&account.OrganizationID,
		&account.ProjectID,
		&account.Platform,
		&account.Username,
		&displayName,
		&avatarURL,
		&account.FollowerCount,
		&account.CreatorType,
		&account.MaxVideos,
		&account.VideoCount,
		&account.ViewCount,
		&account.LikeCount,
		&account.CommentCount,
		&account.ShareCount,
		&account.SyncStatus,
		&lastSyncError,
		&account.RetryCount,
		&lastSyncedAt,
		&lockToken,
		&lockAcquiredAt,
		&account.FetchIntervalMinutes,
		&account.Enabled,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	account.DisplayName = displayName.String
	account.AvatarURL = avatarURL.String
	account.LastSyncError = lastSyncError.String
	account.LockToken = lockToken.String
	if lastSyncedAt.Valid {
		account.LastSyncedAt = &lastSyncedAt.Time
	}
	if lockAcquiredAt.Valid {
		account.LockAcquiredAt = &lockAcquiredAt.Time
	}

	return &account, nil
}
