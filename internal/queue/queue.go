// Package queue holds the review session: the due items in review order and
// the card currently shown.
package queue

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/starford/incremental/internal/models"
)

// Source lists the stored items.
type Source interface {
	Load(ctx context.Context) ([]models.Item, error)
}

// Queue is an in-memory review session.
type Queue struct {
	mu       sync.Mutex
	src      Source
	pending  []models.Item
	finished map[string]struct{}
}

// New creates an empty queue fed from src.
func New(src Source) *Queue {
	return &Queue{src: src, finished: make(map[string]struct{})}
}

// Refresh reloads the items due at now. Items completed during this session
// are not brought back.
func (q *Queue) Refresh(ctx context.Context, now time.Time) error {
	items, err := q.src.Load(ctx)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	due := make([]models.Item, 0, len(items))
	for _, it := range items {
		if _, done := q.finished[it.ID]; done {
			continue
		}
		if it.IsDue(now) {
			due = append(due, it)
		}
	}
	models.SortForReview(due)
	q.pending = due
	return nil
}

// Current returns the card under review.
func (q *Queue) Current() (models.Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return models.Item{}, false
	}
	return q.pending[0], true
}

// Len returns the number of cards left.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// AdvancePastCurrent takes id out of the session after it was acted on. When
// id is the current card the next one becomes current; otherwise id is
// dropped from wherever it waits and the current card stays. An empty id
// means the current card. completed keeps id out of later refreshes.
func (q *Queue) AdvancePastCurrent(_ context.Context, id string, completed bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if id == "" {
		if len(q.pending) == 0 {
			return nil
		}
		id = q.pending[0].ID
	}
	q.pending = slices.DeleteFunc(q.pending, func(it models.Item) bool { return it.ID == id })
	if completed {
		q.finished[id] = struct{}{}
	}
	return nil
}
