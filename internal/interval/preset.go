package interval

import "time"

// Preset is one of the priority choices offered when flagging a note.
type Preset struct {
	Name        string  `json:"name"`
	Priority    float64 `json:"priority"`
	Description string  `json:"description"`
}

// Preview describes the outcome of scheduling with a given priority.
type Preview struct {
	Priority     float64   `json:"priority"`
	Days         float64   `json:"days"`
	Label        string    `json:"label"`
	NextReviewAt time.Time `json:"next_review_at"`
}

// Presets returns the standard priority choices.
func Presets() []Preset {
	return []Preset{
		{Name: "critical", Priority: 0, Description: "review within 1-3 days"},
		{Name: "important", Priority: 33, Description: "review within 3-6 days"},
		{Name: "minor", Priority: 66, Description: "review within 6-9 days"},
	}
}

// PreviewAt computes the preview for priority relative to now.
func PreviewAt(priority float64, now time.Time) (Preview, error) {
	days, err := Days(priority)
	if err != nil {
		return Preview{}, err
	}
	return Preview{
		Priority:     priority,
		Days:         days,
		Label:        FormatDays(days),
		NextReviewAt: Next(now, days),
	}, nil
}
