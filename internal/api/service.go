package api

import (
	"context"
	"net/http"
	"time"

	"github.com/starford/incremental/internal/interval"
	"github.com/starford/incremental/internal/models"
)

// Scheduler is the subset of the scheduling engine the API drives.
type Scheduler interface {
	SetPriority(ctx context.Context, id string, priority float64) (models.Item, error)
	ChooseInterval(ctx context.Context, id string, days int) (*models.Item, error)
	MarkDone(ctx context.Context, id string) error
	Items(ctx context.Context) ([]models.Item, error)
	Due(ctx context.Context, now time.Time) ([]models.Item, error)
	Preview(priority float64) (interval.Preview, error)
}

// Reviews is the review session queue.
type Reviews interface {
	Refresh(ctx context.Context, now time.Time) error
	Current() (models.Item, bool)
	Len() int
	AdvancePastCurrent(ctx context.Context, id string, completed bool) error
}

// Deps bundles what the router needs.
type Deps struct {
	Scheduler Scheduler
	Reviews   Reviews
	// CustomIntervals are the day counts offered next to the presets.
	CustomIntervals []int
	AuthEnabled     bool
	Token           string
	// Events, if set, is mounted at GET /events.
	Events http.Handler
	Now    func() time.Time
}
