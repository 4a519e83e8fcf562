package platform

import (
	"testing"
	"time"
)

func TestNormalizeInstagram(t *testing.T) {
	posted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	got := normalizeInstagram(ProviderPost{
		ID:           "ig-1",
		Text:         "reel caption",
		ThumbnailURL: "https://cdn/ig-1.jpg",
		PostedAt:     posted,
		Counters: map[string]int64{
			"video_view_count": 5000,
			"play_count":       4800,
			"like_count":       300,
			"comment_count":    40,
			"reshare_count":    12,
			"save_count":       25,
		},
	})

	if got.NativeID != "ig-1" || got.Views != 5000 || got.Likes != 300 || got.Comments != 40 || got.Shares != 12 || got.Saves != 25 {
		t.Errorf("normalized = %+v", got)
	}
	if got.CaptionText != "reel caption" || got.ThumbnailURL != "https://cdn/ig-1.jpg" || !got.UploadedAt.Equal(posted) {
		t.Errorf("metadata not carried: %+v", got)
	}
}

func TestNormalizeInstagramFallsBackToPlayCount(t *testing.T) {
	got := normalizeInstagram(ProviderPost{
		ID:       "ig-2",
		Counters: map[string]int64{"play_count": 900},
	})
	if got.Views != 900 {
		t.Errorf("Views = %d, want play_count fallback 900", got.Views)
	}
}

func TestNormalizeTikTok(t *testing.T) {
	got := normalizeTikTok(ProviderPost{
		ID: "tt-1",
		Counters: map[string]int64{
			"play_count":    10000,
			"digg_count":    800,
			"comment_count": 90,
			"share_count":   45,
			"collect_count": 30,
		},
	})

	if got.Views != 10000 || got.Likes != 800 || got.Comments != 90 || got.Shares != 45 || got.Saves != 30 {
		t.Errorf("normalized = %+v", got)
	}
}

func TestNormalizeYouTube(t *testing.T) {
	got := normalizeYouTube(ProviderPost{
		ID: "yt-1",
		Counters: map[string]int64{
			"view_count":    20000,
			"like_count":    1500,
			"comment_count": 200,
			// The provider exposes no share or save counters for YouTube.
			"share_count": 999,
		},
	})

	if got.Views != 20000 || got.Likes != 1500 || got.Comments != 200 {
		t.Errorf("normalized = %+v", got)
	}
	if got.Shares != 0 || got.Saves != 0 {
		t.Errorf("shares/saves = %d/%d, want 0/0 for youtube", got.Shares, got.Saves)
	}
}

func TestNormalizeTwitter(t *testing.T) {
	got := normalizeTwitter(ProviderPost{
		ID: "tw-1",
		Counters: map[string]int64{
			"impression_count": 30000,
			"like_count":       2500,
			"reply_count":      120,
			"retweet_count":    80,
			"quote_count":      20,
			"bookmark_count":   60,
		},
	})

	if got.Views != 30000 {
		t.Errorf("Views = %d, want impressions 30000", got.Views)
	}
	if got.Shares != 100 {
		t.Errorf("Shares = %d, want retweets+quotes 100", got.Shares)
	}
	if got.Likes != 2500 || got.Comments != 120 || got.Saves != 60 {
		t.Errorf("normalized = %+v", got)
	}
}

func TestNormalizeMissingCountersDefaultZero(t *testing.T) {
	for name, fn := range map[string]normalizeFunc{
		"instagram": normalizeInstagram,
		"tiktok":    normalizeTikTok,
		"youtube":   normalizeYouTube,
		"twitter":   normalizeTwitter,
	} {
		got := fn(ProviderPost{ID: "bare"})
		if got.Views != 0 || got.Likes != 0 || got.Comments != 0 || got.Shares != 0 || got.Saves != 0 {
			t.Errorf("%s: counters from empty post = %+v, want all zero", name, got)
		}
		if got.NativeID != "bare" {
			t.Errorf("%s: NativeID = %q", name, got.NativeID)
		}
	}
}
