package platform

import (
	"log/slog"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

// NewInstagramAdapter builds the adapter for Instagram reels and posts.
// Instagram exposes plays for video content, a separate save counter, and
// reshare counts on reels.
func NewInstagramAdapter(client ProviderClient, logger *slog.Logger) *adapter {
	return newAdapter(models.PlatformInstagram, client, normalizeInstagram, logger)
}

func normalizeInstagram(post ProviderPost) models.NormalizedContent {
	views := post.Counters["video_view_count"]
	if views == 0 {
		views = post.Counters["play_count"]
	}

	return models.NormalizedContent{
		NativeID:     post.ID,
		Views:        views,
		Likes:        post.Counters["like_count"],
		Comments:     post.Counters["comment_count"],
		Shares:       post.Counters["reshare_count"],
		Saves:        post.Counters["save_count"],
		CaptionText:  post.Text,
		UploadedAt:   post.PostedAt,
		ThumbnailURL: post.ThumbnailURL,
	}
}
