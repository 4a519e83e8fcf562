package platform

import (
	"log/slog"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

// NewTwitterAdapter builds the adapter for X/Twitter posts. Impressions map
// to views, retweets plus quotes to shares, bookmarks to saves.
func NewTwitterAdapter(client ProviderClient, logger *slog.Logger) *adapter {
	return newAdapter(models.PlatformTwitter, client, normalizeTwitter, logger)
}

func normalizeTwitter(post ProviderPost) models.NormalizedContent {
	return models.NormalizedContent{
		NativeID:     post.ID,
		Views:        post.Counters["impression_count"],
		Likes:        post.Counters["like_count"],
		Comments:     post.Counters["reply_count"],
		Shares:       post.Counters["retweet_count"] + post.Counters["quote_count"],
		Saves:        post.Counters["bookmark_count"],
		CaptionText:  post.Text,
		UploadedAt:   post.PostedAt,
		ThumbnailURL: post.ThumbnailURL,
	}
}
