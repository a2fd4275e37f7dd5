// Package window buckets tasks and events into fixed-size time windows for
// rollup views.
package window

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/papapumpkin/parsec/internal/timeline"
)

// MaxWindows bounds how many windows a single aggregation may produce.
const MaxWindows = 100_000

var (
	// ErrInvalidWindowSize is returned for a non-positive window size.
	ErrInvalidWindowSize = errors.New("window size must be positive")
	// ErrTooManyWindows is returned when the task span divided by the
	// window size exceeds MaxWindows.
	ErrTooManyWindows = errors.New("too many windows")
)

// Window is one half-open slice of the timeline.
type Window struct {
	Start               time.Time      `json:"start" yaml:"start"`
	End                 time.Time      `json:"end" yaml:"end"`
	TaskCount           int            `json:"task_count" yaml:"task_count"`
	TaskIDs             []string       `json:"task_ids" yaml:"task_ids"`
	ResourceUtilization map[string]int `json:"resource_utilization" yaml:"resource_utilization"`
	CriticalTaskIDs     []string       `json:"critical_task_ids,omitempty" yaml:"critical_task_ids,omitempty"`
	EventIDs            []string       `json:"event_ids,omitempty" yaml:"event_ids,omitempty"`
}

// Clone returns a deep copy.
func (w Window) Clone() Window {
	c := w
	c.TaskIDs = append([]string(nil), w.TaskIDs...)
	c.CriticalTaskIDs = append([]string(nil), w.CriticalTaskIDs...)
	c.EventIDs = append([]string(nil), w.EventIDs...)
	c.ResourceUtilization = make(map[string]int, len(w.ResourceUtilization))
	for k, v := range w.ResourceUtilization {
		c.ResourceUtilization[k] = v
	}
	return c
}

// Aggregate divides the span from the earliest task start to the latest
// task end into consecutive windows of the given size. Each window lists
// the tasks overlapping it, the events inside it, a task count per
// resource and the tasks in critical. Windows with neither tasks nor
// events are dropped.
func Aggregate(tasks []timeline.Task, events []timeline.Event, critical map[string]bool, size time.Duration) ([]Window, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWindowSize, size)
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	spanStart, spanEnd := tasks[0].Start, tasks[0].End
	for _, t := range tasks[1:] {
		if t.Start.Before(spanStart) {
			spanStart = t.Start
		}
		if t.End.After(spanEnd) {
			spanEnd = t.End
		}
	}
	count := int64(spanEnd.Sub(spanStart) / size)
	if spanEnd.Sub(spanStart)%size != 0 || count == 0 {
		count++
	}
	if count > MaxWindows {
		return nil, fmt.Errorf("%w: %d windows of %s", ErrTooManyWindows, count, size)
	}

	sortedTasks := make([]timeline.Task, len(tasks))
	copy(sortedTasks, tasks)
	sort.SliceStable(sortedTasks, func(i, j int) bool { return sortedTasks[i].ID < sortedTasks[j].ID })
	sortedEvents := make([]timeline.Event, len(events))
	copy(sortedEvents, events)
	sort.SliceStable(sortedEvents, func(i, j int) bool { return sortedEvents[i].ID < sortedEvents[j].ID })

	var out []Window
	for i := int64(0); i < count; i++ {
		iv := timeline.Interval{
			Start: spanStart.Add(time.Duration(i) * size),
			End:   spanStart.Add(time.Duration(i+1) * size),
		}
		w := Window{Start: iv.Start, End: iv.End, ResourceUtilization: map[string]int{}}
		for _, t := range sortedTasks {
			if !overlapsWindow(t, iv) {
				continue
			}
			w.TaskIDs = append(w.TaskIDs, t.ID)
			if t.Resource != "" {
				w.ResourceUtilization[t.Resource]++
			}
			if critical[t.ID] {
				w.CriticalTaskIDs = append(w.CriticalTaskIDs, t.ID)
			}
		}
		for _, e := range sortedEvents {
			if iv.Contains(e.Timestamp) {
				w.EventIDs = append(w.EventIDs, e.ID)
			}
		}
		w.TaskCount = len(w.TaskIDs)
		if w.TaskCount == 0 && len(w.EventIDs) == 0 {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

// overlapsWindow treats a zero-duration task as an instant inside the
// window that contains it.
func overlapsWindow(t timeline.Task, iv timeline.Interval) bool {
	if t.Start.Equal(t.End) {
		return iv.Contains(t.Start)
	}
	return t.Interval().Overlaps(iv)
}
