package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

// PostgresSessionRepository implements models.SessionRepository. The
// completion report is a single conditional UPDATE: the increment, the
// comparison against the expected count and the close all happen in one
// statement, so two concurrent "last" reporters can never both observe the
// close transition.
type PostgresSessionRepository struct {
	db *sql.DB
}

func NewPostgresSessionRepository(db *sql.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: db}
}

func (r *PostgresSessionRepository) Create(ctx context.Context, session *models.SyncSession) error {
	query := `
		INSERT INTO sync_sessions (id, project_id, expected, completed, items_synced, closed)
		VALUES ($1, $2, $3, 0, 0, false)
		RETURNING created_at
	`

	return r.db.QueryRowContext(ctx, query,
		session.ID, session.ProjectID, session.Expected,
	).Scan(&session.CreatedAt)
}

func (r *PostgresSessionRepository) GetByID(ctx context.Context, id string) (*models.SyncSession, error) {
	query := `
		SELECT id, project_id, expected, completed, items_synced, closed, created_at, closed_at
		FROM sync_sessions
		WHERE id = $1
	`

	var session models.SyncSession
	var closedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.ProjectID,
		&session.Expected,
		&session.Completed,
		&session.ItemsSynced,
		&session.Closed,
		&session.CreatedAt,
		&closedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan sync session: %w", err)
	}

	if closedAt.Valid {
		session.ClosedAt = &closedAt.Time
	}

	return &session, nil
}

func (r *PostgresSessionRepository) ReportCompletion(ctx context.Context, sessionID string, items int64) (*models.SessionProgress, error) {
	query := `
		UPDATE sync_sessions
		SET completed = completed + 1,
		    items_synced = items_synced + $2,
		    closed = (completed + 1 >= expected),
		    closed_at = CASE WHEN completed + 1 >= expected THEN NOW() ELSE closed_at END
		WHERE id = $1 AND closed = false
		RETURNING expected, completed, items_synced, closed
	`

	var progress models.SessionProgress
	err := r.db.QueryRowContext(ctx, query, sessionID, items).Scan(
		&progress.Expected,
		&progress.Completed,
		&progress.ItemsSynced,
		&progress.JustClosed,
	)
	if err == sql.ErrNoRows {
		// Closed or unknown session: reports are no-ops.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &progress, nil
}
