package scheduler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/starford/incremental/internal/interval"
	"github.com/starford/incremental/internal/models"
	"github.com/starford/incremental/internal/vault"
)

// Frontmatter slots written under the schedule tag.
const (
	SlotPriority     = "priority"
	SlotNextReviewAt = "next_review_at"
	SlotNextReview   = "next_review"
	SlotHistory      = "history"
)

// ItemFromNote reads the scheduling state stored on note. ok is false when
// the note is not tagged or has no priority yet.
func ItemFromNote(note *vault.Note, tag string) (item models.Item, ok bool, err error) {
	if !note.HasTag(tag) {
		return models.Item{}, false, nil
	}
	raw, found := note.TaggedProperty(tag, SlotPriority)
	if !found {
		return models.Item{}, false, nil
	}
	priority, err := toFloat(raw)
	if err != nil {
		return models.Item{}, false, fmt.Errorf("%s: priority: %w", note.ID, err)
	}
	if err := interval.Validate(priority); err != nil {
		return models.Item{}, false, fmt.Errorf("%s: %w", note.ID, err)
	}

	item = models.Item{ID: note.ID, Priority: priority, History: []models.HistoryEntry{}}
	if v, found := note.TaggedProperty(tag, SlotNextReviewAt); found {
		if item.NextReviewAt, err = toTime(v); err != nil {
			return models.Item{}, false, fmt.Errorf("%s: next review: %w", note.ID, err)
		}
	}
	if v, found := note.TaggedProperty(tag, SlotHistory); found {
		if item.History, err = decodeHistory(v); err != nil {
			return models.Item{}, false, fmt.Errorf("%s: history: %w", note.ID, err)
		}
	}
	return item, true, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func encodeHistory(entries []models.HistoryEntry) []any {
	out := make([]any, len(entries))
	for i, e := range entries {
		out[i] = map[string]any{
			"reviewed_at":   formatTime(e.ReviewedAt),
			"scheduled_for": formatTime(e.ScheduledFor),
		}
	}
	return out
}

func decodeHistory(v any) ([]models.HistoryEntry, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	out := make([]models.HistoryEntry, 0, len(list))
	for i, raw := range list {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("entry %d: expected a mapping, got %T", i, raw)
		}
		reviewed, err := toTime(m["reviewed_at"])
		if err != nil {
			return nil, fmt.Errorf("entry %d: reviewed_at: %w", i, err)
		}
		scheduled, err := toTime(m["scheduled_for"])
		if err != nil {
			return nil, fmt.Errorf("entry %d: scheduled_for: %w", i, err)
		}
		out = append(out, models.HistoryEntry{ReviewedAt: reviewed, ScheduledFor: scheduled})
	}
	return out, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("unsupported value %v (%T)", v, v)
	}
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return time.Parse(time.RFC3339Nano, t)
	default:
		return time.Time{}, fmt.Errorf("unsupported value %v (%T)", v, v)
	}
}
