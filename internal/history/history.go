// Package history maintains the append-only review log attached to an item.
package history

import (
	"time"

	"github.com/starford/incremental/internal/models"
)

// Append returns a copy of item with one more entry at the end of its history.
// The input item is left untouched and the returned history never shares a
// backing array with it.
func Append(item models.Item, reviewedAt, scheduledFor time.Time) models.Item {
	out := item
	out.History = make([]models.HistoryEntry, len(item.History), len(item.History)+1)
	copy(out.History, item.History)
	out.History = append(out.History, models.HistoryEntry{
		ReviewedAt:   reviewedAt,
		ScheduledFor: scheduledFor,
	})
	return out
}

// Last returns the most recent entry, if any.
func Last(item models.Item) (models.HistoryEntry, bool) {
	if len(item.History) == 0 {
		return models.HistoryEntry{}, false
	}
	return item.History[len(item.History)-1], true
}

// Drift returns how far each review landed from its scheduled date.
// Positive values mean the review happened late.
func Drift(item models.Item) []time.Duration {
	out := make([]time.Duration, len(item.History))
	for i, e := range item.History {
		out[i] = e.ReviewedAt.Sub(e.ScheduledFor)
	}
	return out
}
