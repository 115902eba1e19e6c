// Package scheduler implements the state transitions of incremental items:
// setting a priority, choosing a custom interval, and marking an item done.
//
// Every transition receives the id of the item it acts on and runs under the
// engine's lock, so at most one transition touches the store at a time. A
// transition either completes or leaves the previously persisted note and
// store state in place.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/incremental/internal/apperr"
	"github.com/starford/incremental/internal/history"
	"github.com/starford/incremental/internal/interval"
	"github.com/starford/incremental/internal/models"
	"github.com/starford/incremental/internal/vault"
)

// DefaultTag marks notes that take part in incremental review.
const DefaultTag = "incremental"

// MaxCustomDays bounds a custom interval.
const MaxCustomDays = 3650

// Event kinds passed to the Publisher.
const (
	EventScheduled   = "item.scheduled"
	EventRescheduled = "item.rescheduled"
	EventDone        = "item.done"
	EventSynced      = "item.synced"
	EventRemoved     = "item.removed"
)

// Notes is the note/tag surface.
type Notes interface {
	FindNote(ctx context.Context, id string) (*vault.Note, error)
	SaveNote(ctx context.Context, n *vault.Note) error
	Restore(ctx context.Context, n *vault.Note) error
	ListTagged(ctx context.Context, tag string) ([]*vault.Note, error)
}

// Items is the scheduled item store.
type Items interface {
	Load(ctx context.Context) ([]models.Item, error)
	Get(ctx context.Context, id string) (models.Item, bool, error)
	Upsert(ctx context.Context, item models.Item) error
	Remove(ctx context.Context, id string) error
}

// Dates resolves an instant to the host's day reference. EnsureDay creates
// the referenced day once a transition has committed.
type Dates interface {
	DayRef(t time.Time) string
	EnsureDay(ctx context.Context, t time.Time) error
}

// Queue is the review flow the engine advances after a review. id is the
// item the transition acted on, which need not be the current card.
type Queue interface {
	AdvancePastCurrent(ctx context.Context, id string, completed bool) error
}

// Publisher is notified after every committed change. Events that drop an
// item carry only its ID.
type Publisher interface {
	PublishItemEvent(kind string, item models.Item)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTag sets the frontmatter tag that flags incremental notes.
func WithTag(tag string) Option {
	return func(e *Engine) { e.tag = tag }
}

// WithQueue sets the review queue advanced after reviews.
func WithQueue(q Queue) Option {
	return func(e *Engine) { e.queue = q }
}

// WithPublisher sets the change publisher.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.pub = p }
}

// Engine ties external events to item state.
type Engine struct {
	mu     sync.Mutex
	notes  Notes
	items  Items
	dates  Dates
	queue  Queue
	pub    Publisher
	tag    string
	now    func() time.Time
	logger *slog.Logger
}

// New creates an Engine over the given collaborators.
func New(notes Notes, items Items, dates Dates, opts ...Option) *Engine {
	e := &Engine{
		notes:  notes,
		items:  items,
		dates:  dates,
		tag:    DefaultTag,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tag returns the tag flagging incremental notes.
func (e *Engine) Tag() string { return e.tag }

// SetPriority schedules id from priority, creating the item if needed.
// Any previous custom interval is discarded; history is kept.
func (e *Engine) SetPriority(ctx context.Context, id string, priority float64) (models.Item, error) {
	days, err := interval.Days(priority)
	if err != nil {
		return models.Item{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	note, err := e.notes.FindNote(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return models.Item{}, fmt.Errorf("scheduler: set priority %s: %w", id, apperr.ErrItemNotFound)
	}
	if err != nil {
		return models.Item{}, fmt.Errorf("scheduler: set priority %s: %w", id, err)
	}
	if err := note.FrontmatterErr(); err != nil {
		return models.Item{}, fmt.Errorf("scheduler: set priority: %w", err)
	}

	now := e.now()
	next := interval.Next(now, days)
	ref := e.dates.DayRef(next)

	before := note.Snapshot()
	note.SetTaggedProperty(e.tag, SlotPriority, priority)
	note.SetTaggedProperty(e.tag, SlotNextReviewAt, formatTime(next))
	note.SetTaggedProperty(e.tag, SlotNextReview, ref)
	if err := e.notes.SaveNote(ctx, note); err != nil {
		return models.Item{}, fmt.Errorf("scheduler: save note %s: %w", id, err)
	}

	item, _, err := ItemFromNote(note, e.tag)
	if err != nil {
		e.restoreNote(ctx, before)
		return models.Item{}, fmt.Errorf("scheduler: rebuild %s: %w", id, err)
	}
	if err := e.items.Upsert(ctx, item); err != nil {
		e.restoreNote(ctx, before)
		return models.Item{}, err
	}

	e.logger.Info("item scheduled",
		slog.String("id", id),
		slog.Float64("priority", priority),
		slog.Float64("days", days),
		slog.Time("next_review_at", next))
	e.ensureDay(ctx, next)
	e.publish(EventScheduled, item)
	return item, nil
}

// ChooseInterval reschedules id days from now, bypassing the priority curve,
// and records the review in the item's history. A note that no longer exists
// or is not scheduled leaves nothing to update: the call returns nil, nil.
func (e *Engine) ChooseInterval(ctx context.Context, id string, days int) (*models.Item, error) {
	if err := ValidateDays(days); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	note, err := e.notes.FindNote(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		e.logger.Debug("custom interval skipped: note missing", slog.String("id", id))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scheduler: choose interval %s: %w", id, err)
	}
	if err := note.FrontmatterErr(); err != nil {
		return nil, fmt.Errorf("scheduler: choose interval: %w", err)
	}
	current, ok, err := ItemFromNote(note, e.tag)
	if err != nil {
		return nil, fmt.Errorf("scheduler: choose interval %s: %w", id, err)
	}
	if !ok {
		e.logger.Debug("custom interval skipped: note not scheduled", slog.String("id", id))
		return nil, nil
	}

	now := e.now()
	updated := history.Append(current, now, current.NextReviewAt)
	updated.NextReviewAt = now.Add(time.Duration(days) * interval.Day)

	ref := e.dates.DayRef(updated.NextReviewAt)

	before := note.Snapshot()
	note.SetTaggedProperty(e.tag, SlotNextReviewAt, formatTime(updated.NextReviewAt))
	note.SetTaggedProperty(e.tag, SlotNextReview, ref)
	note.SetTaggedProperty(e.tag, SlotHistory, encodeHistory(updated.History))
	if err := e.notes.SaveNote(ctx, note); err != nil {
		return nil, fmt.Errorf("scheduler: save note %s: %w", id, err)
	}
	if err := e.items.Upsert(ctx, updated); err != nil {
		e.restoreNote(ctx, before)
		return nil, err
	}

	e.logger.Info("item rescheduled",
		slog.String("id", id),
		slog.Int("days", days),
		slog.Time("scheduled_for", current.NextReviewAt),
		slog.Time("next_review_at", updated.NextReviewAt))
	e.ensureDay(ctx, updated.NextReviewAt)
	e.advance(ctx, id, false)
	e.publish(EventRescheduled, updated)
	return &updated, nil
}

// MarkDone removes id from the store and untags its note. The note itself is
// kept; setting a priority again brings it back.
func (e *Engine) MarkDone(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	note, err := e.notes.FindNote(ctx, id)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		note = nil
	case err != nil:
		return fmt.Errorf("scheduler: mark done %s: %w", id, err)
	default:
		if err := note.FrontmatterErr(); err != nil {
			return fmt.Errorf("scheduler: mark done: %w", err)
		}
	}

	prev, had, err := e.items.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := e.items.Remove(ctx, id); err != nil {
		return err
	}

	if note == nil {
		e.logger.Debug("done: note already gone", slog.String("id", id))
	} else {
		note.RemoveTag(e.tag)
		if err := e.notes.SaveNote(ctx, note); err != nil {
			e.restoreItem(ctx, prev, had)
			return fmt.Errorf("scheduler: untag %s: %w", id, err)
		}
	}

	e.logger.Info("item done", slog.String("id", id))
	e.advance(ctx, id, true)
	e.publish(EventDone, models.Item{ID: id})
	return nil
}

// ValidateDays checks a custom interval.
func ValidateDays(days int) error {
	if err := validation.Validate(days, validation.Min(1), validation.Max(MaxCustomDays)); err != nil {
		return fmt.Errorf("%w: %d: %v", apperr.ErrInvalidInterval, days, err)
	}
	return nil
}

func (e *Engine) advance(ctx context.Context, id string, completed bool) {
	if e.queue == nil {
		return
	}
	if err := e.queue.AdvancePastCurrent(ctx, id, completed); err != nil {
		e.logger.Warn("queue advance failed", slog.String("id", id), slog.String("error", err.Error()))
	}
}

// ensureDay creates the daily note a committed transition points at. The
// link in the note is already valid text, so a failure is only logged.
func (e *Engine) ensureDay(ctx context.Context, t time.Time) {
	if err := e.dates.EnsureDay(ctx, t); err != nil {
		e.logger.Warn("daily note not created", slog.Time("day", t), slog.String("error", err.Error()))
	}
}

func (e *Engine) publish(kind string, item models.Item) {
	if e.pub != nil {
		e.pub.PublishItemEvent(kind, item)
	}
}

func (e *Engine) restoreNote(ctx context.Context, before *vault.Note) {
	if err := e.notes.Restore(ctx, before); err != nil {
		e.logger.Error("note rollback failed", slog.String("id", before.ID), slog.String("error", err.Error()))
	}
}

func (e *Engine) restoreItem(ctx context.Context, item models.Item, had bool) {
	if !had {
		return
	}
	if err := e.items.Upsert(ctx, item); err != nil {
		e.logger.Error("item rollback failed", slog.String("id", item.ID), slog.String("error", err.Error()))
	}
}
