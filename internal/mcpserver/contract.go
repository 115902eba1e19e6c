package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/incremental/internal/interval"
)

// PriorityGuideURI is the resource describing how priorities map to intervals.
const PriorityGuideURI = "incremental://priority-guide"

const guideIntro = `# Incremental Review Priority Guide

Every scheduled note carries a priority between 0 and 100. Lower numbers
come back sooner. The next review is placed the interpolated number of days
after the moment the priority is set.

`

const guideRules = `
## Rules

1. ` + "`set_priority`" + ` always recomputes the next review from the priority and
   discards any earlier custom interval. Review history is kept.
2. ` + "`choose_interval`" + ` sets the next review a whole number of days from now and
   appends one history entry. It does nothing for notes that are not scheduled.
3. ` + "`mark_done`" + ` retires the note from review. The note is kept, only its
   scheduling tag and properties are removed.
`

// PriorityGuide renders the guide with the current preset table.
func PriorityGuide() string {
	var b strings.Builder
	b.WriteString(guideIntro)
	b.WriteString("## Presets\n\n| Name | Priority | Interval |\n|---|---|---|\n")
	for _, p := range interval.Presets() {
		label, _ := interval.Label(p.Priority)
		fmt.Fprintf(&b, "| %s | %g | %s |\n", p.Name, p.Priority, label)
	}
	b.WriteString("\nAnchors: 0 → 2 days, 33 → 4.5 days, 66 → 7.5 days, 100 → 12 days.\n")
	b.WriteString(guideRules)
	return b.String()
}
