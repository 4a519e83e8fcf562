package platform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/creatorpulse/creatorpulse/internal/models"
	"github.com/creatorpulse/creatorpulse/internal/sync"
)

// refreshChunkSize bounds how many native IDs one lookup call carries.
const refreshChunkSize = 50

// defaultPageSize is the page size used while paging discovery.
const defaultPageSize = 25

// normalizeFunc maps one provider post into the engine's uniform record.
type normalizeFunc func(post ProviderPost) models.NormalizedContent

// adapter is the shared implementation behind all four platform adapters.
// Platforms differ only in their counter-key mapping; paging, chunking,
// retry and error classification are identical.
type adapter struct {
	platform  models.Platform
	client    ProviderClient
	normalize normalizeFunc
	retry     sync.RetryPolicy
	pageSize  int
	logger    *slog.Logger
}

func newAdapter(platform models.Platform, client ProviderClient, normalize normalizeFunc, logger *slog.Logger) *adapter {
	return &adapter{
		platform:  platform,
		client:    client,
		normalize: normalize,
		retry:     sync.DefaultRetryPolicy(),
		pageSize:  defaultPageSize,
		logger:    logger,
	}
}

func (a *adapter) Platform() models.Platform {
	return a.platform
}

// Refresh fetches fresh metrics for every known native ID, in chunks. An
// unavailable post becomes an item-level error record, never a phase error.
func (a *adapter) Refresh(ctx context.Context, account *models.TrackedAccount, knownIDs map[string]struct{}) ([]models.NormalizedContent, error) {
	ids := make([]string, 0, len(knownIDs))
	for id := range knownIDs {
		ids = append(ids, id)
	}

	results := make([]models.NormalizedContent, 0, len(ids))

	for start := 0; start < len(ids); start += refreshChunkSize {
		end := start + refreshChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		var posts []ProviderPost
		err := sync.Retry(ctx, a.retry, func() error {
			var fetchErr error
			posts, fetchErr = a.client.FetchPostsByID(ctx, a.platform, account.Username, chunk)
			return fetchErr
		})
		if err != nil {
			return nil, fmt.Errorf("%s refresh lookup: %w", a.platform, err)
		}

		for _, post := range posts {
			results = append(results, a.toContent(post, models.OriginRefresh))
		}
	}

	return results, nil
}

// Discover pages through the profile's posts newest-first until the quota is
// filled, the listing ends, or an already-known item appears. The early stop
// bounds paging cost on platforms without date-range filtering.
func (a *adapter) Discover(ctx context.Context, account *models.TrackedAccount, knownIDs map[string]struct{}, quota int) (sync.DiscoveryResult, error) {
	var result sync.DiscoveryResult

	cursor := ""
	for len(result.Videos) < quota {
		limit := a.pageSize
		if remaining := quota - len(result.Videos); remaining < limit {
			limit = remaining
		}

		var page ProviderPage
		err := sync.Retry(ctx, a.retry, func() error {
			var fetchErr error
			page, fetchErr = a.client.FetchPosts(ctx, a.platform, account.Username, cursor, limit)
			return fetchErr
		})
		if err != nil {
			return sync.DiscoveryResult{}, fmt.Errorf("%s discovery page: %w", a.platform, err)
		}

		for _, post := range page.Posts {
			if _, known := knownIDs[post.ID]; known {
				// Everything older is already tracked.
				a.attachProfile(ctx, account, &result)
				return result, nil
			}
			result.Videos = append(result.Videos, a.toContent(post, models.OriginDiscovery))
			if len(result.Videos) >= quota {
				break
			}
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	a.attachProfile(ctx, account, &result)
	return result, nil
}

func (a *adapter) GetProfile(ctx context.Context, username string) (*models.ProfileUpdate, error) {
	profile, err := a.client.FetchProfile(ctx, a.platform, username)
	if err != nil {
		return nil, fmt.Errorf("%s profile fetch: %w", a.platform, err)
	}
	if profile == nil {
		return nil, nil
	}

	return &models.ProfileUpdate{
		DisplayName:   profile.DisplayName,
		AvatarURL:     profile.AvatarURL,
		FollowerCount: profile.Followers,
	}, nil
}

// attachProfile adds the advisory profile update to a discovery result.
// Profile fetch failures are logged and skipped; they must never abort the
// sync, unlike content-fetch failures.
func (a *adapter) attachProfile(ctx context.Context, account *models.TrackedAccount, result *sync.DiscoveryResult) {
	profile, err := a.GetProfile(ctx, account.Username)
	if err != nil {
		a.logger.Warn("profile fetch failed during discovery",
			"platform", a.platform,
			"username", account.Username,
			"error", err,
		)
		return
	}
	result.Profile = profile
}

func (a *adapter) toContent(post ProviderPost, origin models.Origin) models.NormalizedContent {
	content := a.normalize(post)
	content.Origin = origin

	if post.Unavailable != "" {
		content.Error = &models.ContentError{
			Class: classifyUnavailable(post.Unavailable),
		}
	}

	return content
}

func classifyUnavailable(marker string) models.ContentErrorClass {
	switch marker {
	case "restricted":
		return models.ContentErrorRestricted
	case "private":
		return models.ContentErrorPrivate
	case "deleted":
		return models.ContentErrorDeleted
	default:
		return models.ContentErrorUnknown
	}
}

// NewRegistry builds the adapter lookup table for all supported platforms.
func NewRegistry(client ProviderClient, logger *slog.Logger) sync.AdapterRegistry {
	return sync.AdapterRegistry{
		models.PlatformInstagram: NewInstagramAdapter(client, logger),
		models.PlatformTikTok:    NewTikTokAdapter(client, logger),
		models.PlatformYouTube:   NewYouTubeAdapter(client, logger),
		models.PlatformTwitter:   NewTwitterAdapter(client, logger),
	}
}
