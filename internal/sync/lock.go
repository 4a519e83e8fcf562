package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

// DefaultLockMaxAge bounds how long a crashed worker can keep an account
// unavailable. Staleness recovery is the sole cleanup mechanism for
// abandoned syncs, so this must comfortably exceed the slowest full sync.
const DefaultLockMaxAge = 10 * time.Minute

// LockService provides the short-lived per-account mutex stored as a field
// on the account's persisted record. It is optimistic single-record locking,
// not distributed consensus: a stale lock is taken over after MaxAge, which
// bounds the worst case to MaxAge of lost availability, never to double
// processing beyond that window.
type LockService struct {
	accounts models.AccountRepository
	maxAge   time.Duration
	logger   *slog.Logger
}

// NewLockService creates a lock service. maxAge <= 0 falls back to the default.
func NewLockService(accounts models.AccountRepository, maxAge time.Duration, logger *slog.Logger) *LockService {
	if maxAge <= 0 {
		maxAge = DefaultLockMaxAge
	}
	return &LockService{
		accounts: accounts,
		maxAge:   maxAge,
		logger:   logger,
	}
}

// Acquire attempts to take the account lock for the given holder token.
// A refused acquisition is a legitimate "someone else is syncing" outcome:
// the caller must short-circuit and discard its job, not treat it as an error.
func (s *LockService) Acquire(ctx context.Context, accountID, token string) (models.LockResult, error) {
	result, err := s.accounts.AcquireLock(ctx, accountID, token, s.maxAge)
	if err != nil {
		return models.LockResult{}, err
	}

	if !result.Acquired {
		s.logger.Info("lock contention",
			"account_id", accountID,
			"reason", result.Reason,
			"lock_age", result.LockAge,
		)
	}

	return result, nil
}

// Release clears the lock if the token still matches the stored holder. A
// late release after a stale takeover is a silent no-op.
func (s *LockService) Release(ctx context.Context, accountID, token string) {
	if err := s.accounts.ReleaseLock(ctx, accountID, token); err != nil {
		// The lock will expire via staleness recovery; log and move on.
		s.logger.Error("failed to release account lock",
			"account_id", accountID,
			"error", err,
		)
	}
}

// MaxAge returns the configured staleness threshold.
func (s *LockService) MaxAge() time.Duration {
	return s.maxAge
}
