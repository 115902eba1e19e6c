package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/incremental/internal/apperr"
	"github.com/starford/incremental/internal/interval"
	"github.com/starford/incremental/internal/models"
)

// Change describes what Resync did to the store.
type Change int

const (
	Unchanged Change = iota
	Upserted
	Removed
)

func (c Change) String() string {
	switch c {
	case Upserted:
		return "upserted"
	case Removed:
		return "removed"
	default:
		return "unchanged"
	}
}

// ReconcileStats summarises a full reconciliation pass.
type ReconcileStats struct {
	Upserted int `json:"upserted"`
	Removed  int `json:"removed"`
	Skipped  int `json:"skipped"`
}

// Items returns every stored item in review order.
func (e *Engine) Items(ctx context.Context) ([]models.Item, error) {
	items, err := e.items.Load(ctx)
	if err != nil {
		return nil, err
	}
	models.SortForReview(items)
	return items, nil
}

// Due returns the items whose next review is at or before now, in review order.
func (e *Engine) Due(ctx context.Context, now time.Time) ([]models.Item, error) {
	items, err := e.items.Load(ctx)
	if err != nil {
		return nil, err
	}
	due := items[:0]
	for _, it := range items {
		if it.IsDue(now) {
			due = append(due, it)
		}
	}
	models.SortForReview(due)
	return due, nil
}

// Preview reports what SetPriority would schedule right now.
func (e *Engine) Preview(priority float64) (interval.Preview, error) {
	return interval.PreviewAt(priority, e.now())
}

// Resync rebuilds the stored item for id from its note: scheduled notes are
// upserted, untagged or deleted notes are removed.
func (e *Engine) Resync(ctx context.Context, id string) (Change, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	stored, had, err := e.items.Get(ctx, id)
	if err != nil {
		return Unchanged, err
	}

	note, err := e.notes.FindNote(ctx, id)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return Unchanged, fmt.Errorf("scheduler: resync %s: %w", id, err)
	}

	var (
		item      models.Item
		scheduled bool
	)
	if note != nil {
		if err := note.FrontmatterErr(); err != nil {
			return Unchanged, fmt.Errorf("scheduler: resync: %w", err)
		}
		item, scheduled, err = ItemFromNote(note, e.tag)
		if err != nil {
			return Unchanged, fmt.Errorf("scheduler: resync: %w", err)
		}
	}

	switch {
	case !scheduled && had:
		if err := e.items.Remove(ctx, id); err != nil {
			return Unchanged, err
		}
		e.publish(EventRemoved, models.Item{ID: id})
		return Removed, nil
	case scheduled && (!had || !stored.Equal(item)):
		if err := e.items.Upsert(ctx, item); err != nil {
			return Unchanged, err
		}
		e.publish(EventSynced, item)
		return Upserted, nil
	}
	return Unchanged, nil
}

// Reconcile brings the store in line with the tagged notes in the vault.
// Notes whose scheduling state or frontmatter cannot be parsed are skipped
// and logged; their stored items are kept.
func (e *Engine) Reconcile(ctx context.Context) (ReconcileStats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var stats ReconcileStats

	notes, err := e.notes.ListTagged(ctx, e.tag)
	if err != nil {
		return stats, fmt.Errorf("scheduler: reconcile: %w", err)
	}
	stored, err := e.items.Load(ctx)
	if err != nil {
		return stats, err
	}
	byID := make(map[string]models.Item, len(stored))
	for _, it := range stored {
		byID[it.ID] = it
	}

	live := make(map[string]struct{}, len(notes))
	for _, n := range notes {
		item, ok, err := ItemFromNote(n, e.tag)
		if err != nil {
			stats.Skipped++
			live[n.ID] = struct{}{}
			e.logger.Warn("reconcile: unreadable schedule", slog.String("id", n.ID), slog.String("error", err.Error()))
			continue
		}
		if !ok {
			continue
		}
		live[n.ID] = struct{}{}
		if prev, had := byID[n.ID]; had && prev.Equal(item) {
			continue
		}
		if err := e.items.Upsert(ctx, item); err != nil {
			return stats, err
		}
		stats.Upserted++
		e.publish(EventSynced, item)
	}

	for id := range byID {
		if _, ok := live[id]; ok {
			continue
		}
		if e.malformed(ctx, id) {
			stats.Skipped++
			continue
		}
		if err := e.items.Remove(ctx, id); err != nil {
			return stats, err
		}
		stats.Removed++
		e.publish(EventRemoved, models.Item{ID: id})
	}

	e.logger.Info("reconcile finished",
		slog.Int("upserted", stats.Upserted),
		slog.Int("removed", stats.Removed),
		slog.Int("skipped", stats.Skipped))
	return stats, nil
}

// malformed reports whether id still exists with frontmatter that cannot be
// read. Its tag is unknown, so the stored item is left alone.
func (e *Engine) malformed(ctx context.Context, id string) bool {
	n, err := e.notes.FindNote(ctx, id)
	if err != nil {
		return false
	}
	if ferr := n.FrontmatterErr(); ferr != nil {
		e.logger.Warn("reconcile: malformed note kept", slog.String("id", id), slog.String("error", ferr.Error()))
		return true
	}
	return false
}
