// Package leveler assigns resource allocation percentages with a greedy,
// priority-first resource leveling pass. When a task lands on an already
// busy resource it tries a bounded set of nearby slots before accepting
// the contention.
package leveler

import (
	"sort"
	"time"

	"github.com/papapumpkin/parsec/internal/cpm"
	"github.com/papapumpkin/parsec/internal/timeline"
)

const (
	// RescheduleThreshold is the conflict level above which an
	// alternative slot is searched for.
	RescheduleThreshold = 0.8
	// AcceptThreshold is the conflict level an alternative slot must stay
	// below to be taken.
	AcceptThreshold = 0.5
	// searchSteps is the number of quarter-duration steps tried on each
	// side of the original start, i.e. up to ±1×duration.
	searchSteps = 4
)

// Allocation is the share of a resource given to one task.
type Allocation struct {
	ResourceID    string    `json:"resource_id" yaml:"resource_id"`
	TaskID        string    `json:"task_id" yaml:"task_id"`
	Percentage    float64   `json:"percentage" yaml:"percentage"`         // 0–100
	ConflictLevel float64   `json:"conflict_level" yaml:"conflict_level"` // 0.0–1.0
	Start         time.Time `json:"start" yaml:"start"`                   // proposed slot
	End           time.Time `json:"end" yaml:"end"`
	Rescheduled   bool      `json:"rescheduled" yaml:"rescheduled"`
}

type booking struct {
	slot     timeline.Interval
	fraction float64
}

// Optimize walks tasks in priority order (critical first, then earliest
// start, then id) and books each one onto its resource. The conflict level
// of a slot is the sum of the allocation fractions already booked on
// overlapping slots; resource capacity does not scale it. Above
// RescheduleThreshold, candidate starts are tried at quarter-duration steps
// within ±1×duration, in ascending time order; the first one below
// AcceptThreshold wins, otherwise the original slot is kept.
//
// sched may be nil, in which case declared starts are used. Tasks are never
// modified; the proposed slot is reported on the Allocation.
func Optimize(tasks []timeline.Task, _ []timeline.Resource, sched *cpm.Schedule) []Allocation {
	type item struct {
		task  timeline.Task
		start time.Time
	}
	var queue []item
	for _, t := range tasks {
		if t.Resource == "" {
			continue
		}
		start := t.Start
		if n, ok := sched.Node(t.ID); ok {
			start = n.EarliestStart
		}
		queue = append(queue, item{task: t, start: start})
	}
	sort.SliceStable(queue, func(i, j int) bool {
		ri, rj := queue[i].task.Priority.Rank(), queue[j].task.Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		if !queue[i].start.Equal(queue[j].start) {
			return queue[i].start.Before(queue[j].start)
		}
		return queue[i].task.ID < queue[j].task.ID
	})

	bookings := make(map[string][]booking)
	allocs := make([]Allocation, 0, len(queue))
	for _, it := range queue {
		res := it.task.Resource
		dur := it.task.Duration()
		slot := timeline.Interval{Start: it.start, End: it.start.Add(dur)}

		level := conflictLevel(bookings[res], slot)
		rescheduled := false
		if level > RescheduleThreshold && dur > 0 {
			if alt, altLevel, ok := findSlot(bookings[res], slot); ok {
				slot, level, rescheduled = alt, altLevel, true
			}
		}

		pct := Percentage(level)
		bookings[res] = append(bookings[res], booking{slot: slot, fraction: pct / 100})
		allocs = append(allocs, Allocation{
			ResourceID:    res,
			TaskID:        it.task.ID,
			Percentage:    pct,
			ConflictLevel: clamp(level, 0, 1),
			Start:         slot.Start,
			End:           slot.End,
			Rescheduled:   rescheduled,
		})
	}
	return allocs
}

// findSlot searches the bounded window around slot for the first start
// whose conflict level drops below AcceptThreshold.
func findSlot(booked []booking, slot timeline.Interval) (timeline.Interval, float64, bool) {
	dur := slot.Duration()
	step := dur / searchSteps
	if step <= 0 {
		return slot, 0, false
	}
	for k := -searchSteps; k <= searchSteps; k++ {
		if k == 0 {
			continue
		}
		shift := time.Duration(k) * step
		cand := timeline.Interval{Start: slot.Start.Add(shift), End: slot.End.Add(shift)}
		if level := conflictLevel(booked, cand); level < AcceptThreshold {
			return cand, level, true
		}
	}
	return slot, 0, false
}

func conflictLevel(booked []booking, slot timeline.Interval) float64 {
	var sum float64
	for _, b := range booked {
		if b.slot.Overlaps(slot) {
			sum += b.fraction
		}
	}
	return sum
}

// Percentage maps a conflict level to an allocation percentage:
// 100 − level×50, clamped to [0,100].
func Percentage(level float64) float64 {
	return clamp(100-level*50, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
