// Package interval maps a priority in [0, 100] to a review interval in days.
//
// The curve is piecewise-linear through fixed control points:
//
//	priority   0 ->  2.0 days
//	priority  33 ->  4.5 days
//	priority  66 ->  7.5 days
//	priority 100 -> 12.0 days
//
// Between two neighbouring points the interval is interpolated linearly, so the
// mapping is continuous and strictly increasing over the whole domain.
package interval

import (
	"fmt"
	"math"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/incremental/internal/apperr"
)

// Domain bounds for priority values.
const (
	MinPriority = 0.0
	MaxPriority = 100.0
)

// Day is the length of one interval day.
const Day = 24 * time.Hour

type point struct {
	priority float64
	days     float64
}

var curve = []point{
	{0, 2},
	{33, 4.5},
	{66, 7.5},
	{100, 12},
}

// Validate checks that priority is a finite number in [MinPriority, MaxPriority].
func Validate(priority float64) error {
	if math.IsNaN(priority) || math.IsInf(priority, 0) {
		return fmt.Errorf("%w: %v is not a finite number", apperr.ErrInvalidPriority, priority)
	}
	err := validation.Validate(priority,
		validation.Min(MinPriority),
		validation.Max(MaxPriority),
	)
	if err != nil {
		return fmt.Errorf("%w: %v: %v", apperr.ErrInvalidPriority, priority, err)
	}
	return nil
}

// Days returns the review interval in days for priority.
func Days(priority float64) (float64, error) {
	if err := Validate(priority); err != nil {
		return 0, err
	}
	for i := 1; i < len(curve); i++ {
		lo, hi := curve[i-1], curve[i]
		if priority > hi.priority {
			continue
		}
		frac := (priority - lo.priority) / (hi.priority - lo.priority)
		return lo.days + frac*(hi.days-lo.days), nil
	}
	return curve[len(curve)-1].days, nil
}

// Duration converts a fractional day count to a time.Duration.
func Duration(days float64) time.Duration {
	return time.Duration(days * float64(Day))
}

// Next returns the instant days after now.
func Next(now time.Time, days float64) time.Time {
	return now.Add(Duration(days))
}

// Label renders the interval for priority the way the priority picker shows it.
func Label(priority float64) (string, error) {
	days, err := Days(priority)
	if err != nil {
		return "", err
	}
	return FormatDays(days), nil
}

// FormatDays rounds days to one decimal place.
func FormatDays(days float64) string {
	rounded := math.Round(days*10) / 10
	return fmt.Sprintf("%s days", trimFloat(rounded))
}

func trimFloat(f float64) string {
	if f == math.Trunc(f) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%.1f", f)
}
