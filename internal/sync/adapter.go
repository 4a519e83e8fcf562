package sync

import (
	"context"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

// DiscoveryResult is what one discovery phase yields: newly found content up
// to the quota, plus an optional advisory profile update.
type DiscoveryResult struct {
	Videos  []models.NormalizedContent
	Profile *models.ProfileUpdate
}

// PlatformAdapter is the uniform contract every content platform implements.
// The orchestrator selects one per account from a registry; it never
// branches on the platform itself.
type PlatformAdapter interface {
	// Platform returns which platform this adapter serves.
	Platform() models.Platform

	// Refresh re-fetches metrics for the given set of known native IDs.
	Refresh(ctx context.Context, account *models.TrackedAccount, knownIDs map[string]struct{}) ([]models.NormalizedContent, error)

	// Discover fetches content not yet known, bounded by quota. An empty
	// knownIDs set means a first-time sync: fetch as much as the quota
	// allows. A populated set lets the adapter early-stop at the first
	// already-known item when paging.
	Discover(ctx context.Context, account *models.TrackedAccount, knownIDs map[string]struct{}, quota int) (DiscoveryResult, error)

	// GetProfile fetches the public profile for a username. Returns nil
	// when the profile is unavailable.
	GetProfile(ctx context.Context, username string) (*models.ProfileUpdate, error)
}

// AdapterRegistry maps platforms to their adapters.
type AdapterRegistry map[models.Platform]PlatformAdapter

// ForAccount returns the adapter for the account's platform.
func (r AdapterRegistry) ForAccount(account *models.TrackedAccount) (PlatformAdapter, bool) {
	adapter, ok := r[account.Platform]
	return adapter, ok
}
