package api

import (
	"github.com/starford/incremental/internal/interval"
	"github.com/starford/incremental/internal/models"
)

// PriorityRequest is the body of POST /items/priority.
type PriorityRequest struct {
	ID       string   `json:"id" example:"topics/go.md"`
	Priority *float64 `json:"priority" example:"33"`
}

// IntervalRequest is the body of POST /items/interval.
type IntervalRequest struct {
	ID   string `json:"id" example:"topics/go.md"`
	Days int    `json:"days" example:"7"`
}

// DoneRequest is the body of POST /items/done.
type DoneRequest struct {
	ID string `json:"id" example:"topics/go.md"`
}

// AdvanceRequest is the body of POST /queue/advance.
type AdvanceRequest struct {
	ID        string `json:"id,omitempty"`
	Completed bool   `json:"completed"`
}

// ItemListResponse wraps item listings.
type ItemListResponse struct {
	Items []models.Item `json:"items"`
	Total int           `json:"total"`
}

// PresetsResponse lists the priority presets and custom interval choices.
type PresetsResponse struct {
	Presets         []interval.Preset `json:"presets"`
	CustomIntervals []int             `json:"custom_intervals"`
}

// QueueResponse describes the review session.
type QueueResponse struct {
	Current   *models.Item `json:"current"`
	Remaining int          `json:"remaining"`
}
