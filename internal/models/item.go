// Package models defines the domain types for incremental review scheduling.
package models

import (
	"slices"
	"strings"
	"time"
)

// Item is a note flagged for recurring, priority-driven review.
type Item struct {
	ID           string         `json:"id"`
	Priority     float64        `json:"priority"`
	NextReviewAt time.Time      `json:"next_review_at"`
	History      []HistoryEntry `json:"history"`
}

// HistoryEntry records one review: when it happened and what had been scheduled.
type HistoryEntry struct {
	ReviewedAt   time.Time `json:"reviewed_at"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// Clone returns a copy of the item that shares no backing storage with it.
func (i Item) Clone() Item {
	i.History = slices.Clone(i.History)
	if i.History == nil {
		i.History = []HistoryEntry{}
	}
	return i
}

// Equal reports whether two items carry the same scheduling state.
func (i Item) Equal(o Item) bool {
	if i.ID != o.ID || i.Priority != o.Priority || !i.NextReviewAt.Equal(o.NextReviewAt) {
		return false
	}
	return slices.EqualFunc(i.History, o.History, func(a, b HistoryEntry) bool {
		return a.ReviewedAt.Equal(b.ReviewedAt) && a.ScheduledFor.Equal(b.ScheduledFor)
	})
}

// IsDue reports whether the item should be reviewed at now.
func (i Item) IsDue(now time.Time) bool {
	return !i.NextReviewAt.After(now)
}

// SortForReview orders items by priority, then next review, then id.
func SortForReview(items []Item) {
	slices.SortStableFunc(items, func(a, b Item) int {
		switch {
		case a.Priority < b.Priority:
			return -1
		case a.Priority > b.Priority:
			return 1
		}
		if c := a.NextReviewAt.Compare(b.NextReviewAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
