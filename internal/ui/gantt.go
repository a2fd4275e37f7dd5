package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/papapumpkin/parsec/internal/timeline"
)

// Gantt draws one bar per task across the project span. Critical tasks are
// drawn in the danger color, completed tasks in the success color.
type Gantt struct {
	// Width is the available terminal width in columns.
	Width int

	// Critical is the set of task IDs on the critical path.
	Critical map[string]bool
}

// ganttMaxRows is the number of tasks above which rows are elided.
const ganttMaxRows = 40

const (
	labelWidth = 16
	minTrack   = 10
)

// Render returns the chart, or "" when there is nothing to draw.
func (g Gantt) Render(tasks []timeline.Task, st styles) string {
	if len(tasks) == 0 {
		return ""
	}
	start, end := tasks[0].Start, tasks[0].End
	for _, t := range tasks[1:] {
		if t.Start.Before(start) {
			start = t.Start
		}
		if t.End.After(end) {
			end = t.End
		}
	}
	span := end.Sub(start)
	if span <= 0 {
		return ""
	}

	width := g.Width
	if width <= 0 {
		width = 80
	}
	track := width - labelWidth - 4
	if track < minTrack {
		track = minTrack
	}

	var sb strings.Builder
	sb.WriteString(st.muted.Render(fmt.Sprintf("%*s%s%s", labelWidth+2, "", start.Format("Jan 02"),
		padLeft(end.Format("Jan 02"), track-6))))
	sb.WriteByte('\n')

	for i, t := range tasks {
		if i == ganttMaxRows {
			sb.WriteString(st.muted.Render(fmt.Sprintf("  … %d more", len(tasks)-ganttMaxRows)))
			sb.WriteByte('\n')
			break
		}
		from := column(t.Start.Sub(start), span, track)
		to := column(t.End.Sub(start), span, track)
		if to <= from {
			to = from + 1
		}
		if to > track {
			to = track
			if from >= to {
				from = to - 1
			}
		}
		bar := strings.Repeat("█", to-from)
		style := st.active
		switch {
		case g.Critical[t.ID]:
			style = st.critical
		case t.Status == timeline.StatusCompleted:
			style = st.success
		case t.Status == timeline.StatusBlocked:
			style = st.warning
		}
		fmt.Fprintf(&sb, "  %-*s%s%s%s│\n", labelWidth, truncate(t.ID, labelWidth-1),
			strings.Repeat(" ", from), style.Render(bar), strings.Repeat(" ", track-to))
	}
	return sb.String()
}

// column maps an offset within span onto [0, track].
func column(offset, span time.Duration, track int) int {
	c := int(float64(offset) / float64(span) * float64(track))
	if c < 0 {
		return 0
	}
	if c > track {
		return track
	}
	return c
}

func padLeft(s string, width int) string {
	if gap := width - lipgloss.Width(s); gap > 0 {
		return strings.Repeat(" ", gap) + s
	}
	return s
}
