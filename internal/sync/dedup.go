package sync

import (
	"log/slog"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

// DedupStats tracks the outcome of one deduplication pass.
type DedupStats struct {
	TotalProcessed int
	Duplicates     int
	Unique         int
}

// Deduplicator merges a job's combined refresh+discovery result list into
// one set keyed by platform-native content ID.
type Deduplicator struct {
	logger *slog.Logger
	stats  DedupStats
}

func NewDeduplicator(logger *slog.Logger) *Deduplicator {
	return &Deduplicator{logger: logger}
}

// Dedupe collapses duplicate native IDs. Tie-break, in order:
//
//  1. If exactly one of two colliding entries came from the refresh phase,
//     keep it: refresh carries authoritative fresh metrics, whereas a
//     duplicate discovery hit is redundant.
//  2. Otherwise keep the first-seen entry and log the collision.
//
// Without this the storage writer would apply two writes for one logical
// item, doubling aggregate increments. Dedupe is idempotent: running it on
// its own output returns the same set.
func (d *Deduplicator) Dedupe(items []models.NormalizedContent) []models.NormalizedContent {
	result := make([]models.NormalizedContent, 0, len(items))
	index := make(map[string]int, len(items))

	for _, item := range items {
		d.stats.TotalProcessed++

		pos, seen := index[item.NativeID]
		if !seen {
			index[item.NativeID] = len(result)
			result = append(result, item)
			d.stats.Unique++
			continue
		}

		d.stats.Duplicates++
		kept := result[pos]

		if item.Origin == models.OriginRefresh && kept.Origin != models.OriginRefresh {
			result[pos] = item
			continue
		}

		if item.Origin == kept.Origin {
			d.logger.Warn("duplicate native ID in sync results",
				"native_id", item.NativeID,
				"origin", item.Origin,
			)
		}
	}

	return result
}

// Stats returns counters accumulated across Dedupe calls.
func (d *Deduplicator) Stats() DedupStats {
	return d.stats
}
