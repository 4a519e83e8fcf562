package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

// PostgresJobRepository implements models.JobRepository. ClaimPending uses
// FOR UPDATE SKIP LOCKED so concurrent sweepers never claim the same job.
type PostgresJobRepository struct {
	db *sql.DB
}

func NewPostgresJobRepository(db *sql.DB) *PostgresJobRepository {
	return &PostgresJobRepository{db: db}
}

const jobColumns = `
	id, account_id, project_id, session_id, strategy, trigger_kind, status,
	attempts, max_attempts, last_error, started_at, created_at, updated_at`

func (r *PostgresJobRepository) Create(ctx context.Context, job *models.SyncJob) error {
	query := `
		INSERT INTO sync_jobs
		(id, account_id, project_id, session_id, strategy, trigger_kind,
		 status, attempts, max_attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	return r.db.QueryRowContext(ctx, query,
		job.ID, job.AccountID, job.ProjectID, nullIfEmpty(job.SessionID),
		job.Strategy, job.Trigger, job.Status, job.Attempts, job.MaxAttempts,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
}

func (r *PostgresJobRepository) GetByID(ctx context.Context, id string) (*models.SyncJob, error) {
	query := `SELECT ` + jobColumns + ` FROM sync_jobs WHERE id = $1`

	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan sync job: %w", err)
	}
	return job, nil
}

func (r *PostgresJobRepository) ClaimPending(ctx context.Context, limit int, staleAfter time.Duration) ([]*models.SyncJob, error) {
	query := `
		UPDATE sync_jobs
		SET status = $3, started_at = NOW(), updated_at = NOW()
		WHERE id IN (
			SELECT id FROM sync_jobs
			WHERE status = $4
			   OR (status = $3 AND started_at < NOW() - ($2::bigint * INTERVAL '1 second'))
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	rows, err := r.db.QueryContext(ctx, query,
		limit, int64(staleAfter.Seconds()), models.JobStatusRunning, models.JobStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.SyncJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claimed job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

func (r *PostgresJobRepository) Requeue(ctx context.Context, id string, attempts int, lastError string) error {
	query := `
		UPDATE sync_jobs
		SET status = $2, attempts = $3, last_error = $4,
		    started_at = NULL, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, models.JobStatusPending, attempts, lastError)
	return err
}

func (r *PostgresJobRepository) MarkFailed(ctx context.Context, id string, attempts int, lastError string) error {
	query := `
		UPDATE sync_jobs
		SET status = $2, attempts = $3, last_error = $4, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, models.JobStatusFailed, attempts, lastError)
	return err
}

func (r *PostgresJobRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_jobs WHERE id = $1`, id)
	return err
}

func (r *PostgresJobRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.SyncJob, error) {
	query := `SELECT ` + jobColumns + `
		FROM sync_jobs
		WHERE account_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.SyncJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

func scanJob(row rowScanner) (*models.SyncJob, error) {
	var job models.SyncJob
	var sessionID, lastError sql.NullString
	var startedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.AccountID,
		&job.ProjectID,
		&sessionID,
		&job.Strategy,
		&job.Trigger,
		&job.Status,
		&job.Attempts,
		&job.MaxAttempts,
		&lastError,
		&startedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.SessionID = sessionID.String
	job.LastError = lastError.String
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}

	return &job, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
