package platform

import (
	"log/slog"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

// NewTikTokAdapter builds the adapter for TikTok videos. TikTok counts
// likes as diggs and collects (bookmarks) as saves.
func NewTikTokAdapter(client ProviderClient, logger *slog.Logger) *adapter {
	return newAdapter(models.PlatformTikTok, client, normalizeTikTok, logger)
}

func normalizeTikTok(post ProviderPost) models.NormalizedContent {
	return models.NormalizedContent{
		NativeID:     post.ID,
		Views:        post.Counters["play_count"],
		Likes:        post.Counters["digg_count"],
		Comments:     post.Counters["comment_count"],
		Shares:       post.Counters["share_count"],
		Saves:        post.Counters["collect_count"],
		CaptionText:  post.Text,
		UploadedAt:   post.PostedAt,
		ThumbnailURL: post.ThumbnailURL,
	}
}
