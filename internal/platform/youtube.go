package platform

import (
	"log/slog"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

// NewYouTubeAdapter builds the adapter for YouTube videos and shorts.
// YouTube exposes no share or save counters through the provider, so those
// stay zero.
func NewYouTubeAdapter(client ProviderClient, logger *slog.Logger) *adapter {
	return newAdapter(models.PlatformYouTube, client, normalizeYouTube, logger)
}

func normalizeYouTube(post ProviderPost) models.NormalizedContent {
	return models.NormalizedContent{
		NativeID:     post.ID,
		Views:        post.Counters["view_count"],
		Likes:        post.Counters["like_count"],
		Comments:     post.Counters["comment_count"],
		CaptionText:  post.Text,
		UploadedAt:   post.PostedAt,
		ThumbnailURL: post.ThumbnailURL,
	}
}
