// Package conflict scans a validated task set for scheduling conflicts:
// resource overallocation, pairwise schedule overlap on a shared resource,
// dependency violations and late milestones.
package conflict

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/papapumpkin/parsec/internal/timeline"
)

// CostUnit is the abstract cost of one day of schedule impact.
const CostUnit = 1000.0

// Type classifies a conflict.
type Type string

const (
	ResourceOverallocation Type = "resource_overallocation"
	ScheduleOverlap        Type = "schedule_overlap"
	DependencyViolation    Type = "dependency_violation"
	MilestoneDelay         Type = "milestone_delay"
)

// Severity ranks how urgently a conflict needs attention.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns a numeric weight where higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Impact estimates what a conflict costs if left alone.
type Impact struct {
	ScheduleDelayDays int     `json:"schedule_delay_days" yaml:"schedule_delay_days"`
	ResourceWastePct  float64 `json:"resource_waste_pct" yaml:"resource_waste_pct"`
	Cost              float64 `json:"cost" yaml:"cost"`
}

// Conflict is a single detected problem.
type Conflict struct {
	ID          string   `json:"id" yaml:"id"`
	Type        Type     `json:"type" yaml:"type"`
	Severity    Severity `json:"severity" yaml:"severity"`
	TaskIDs     []string `json:"task_ids" yaml:"task_ids"`
	Description string   `json:"description" yaml:"description"`
	Resolution  string   `json:"resolution" yaml:"resolution"`
	Impact      Impact   `json:"impact" yaml:"impact"`
}

// Clone returns a deep copy.
func (c Conflict) Clone() Conflict {
	cp := c
	cp.TaskIDs = append([]string(nil), c.TaskIDs...)
	return cp
}

// Detect runs the four scans and returns their merged results sorted by
// severity, most severe first. Conflicts of equal severity keep detection
// order: overallocation, overlap, dependency, milestone.
func Detect(tasks []timeline.Task, resources []timeline.Resource, events []timeline.Event) []Conflict {
	byRes := groupByResource(tasks)
	resIdx := timeline.IndexResources(resources)

	var out []Conflict
	out = append(out, overallocations(byRes, resIdx)...)
	out = append(out, overlaps(byRes)...)
	out = append(out, dependencyViolations(tasks)...)
	out = append(out, milestoneDelays(tasks, events)...)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Rank() > out[j].Severity.Rank()
	})
	return out
}

// groupByResource buckets tasks per resource, each bucket sorted by start
// then ID.
func groupByResource(tasks []timeline.Task) map[string][]timeline.Task {
	byRes := make(map[string][]timeline.Task)
	for _, t := range tasks {
		if t.Resource != "" {
			byRes[t.Resource] = append(byRes[t.Resource], t)
		}
	}
	for _, list := range byRes {
		sort.SliceStable(list, func(i, j int) bool {
			if !list[i].Start.Equal(list[j].Start) {
				return list[i].Start.Before(list[j].Start)
			}
			return list[i].ID < list[j].ID
		})
	}
	return byRes
}

func sortedResourceIDs(byRes map[string][]timeline.Task) []string {
	ids := make([]string, 0, len(byRes))
	for id := range byRes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func overallocations(byRes map[string][]timeline.Task, resIdx map[string]timeline.Resource) []Conflict {
	var out []Conflict
	for _, res := range sortedResourceIDs(byRes) {
		group, common := maxOverlapSet(byRes[res])
		capacity := timeline.CapacityOf(resIdx, res)
		n := len(group)
		if n <= 1 {
			continue
		}

		sev := SeverityMedium
		ids := make([]string, n)
		for i, t := range group {
			ids[i] = t.ID
			switch t.Priority {
			case timeline.PriorityCritical:
				sev = SeverityCritical
			case timeline.PriorityHigh:
				if sev != SeverityCritical {
					sev = SeverityHigh
				}
			}
		}
		sort.Strings(ids)

		out = append(out, Conflict{
			ID:       fmt.Sprintf("%s-%d", ResourceOverallocation, len(out)+1),
			Type:     ResourceOverallocation,
			Severity: sev,
			TaskIDs:  ids,
			Description: fmt.Sprintf("resource %s is booked by %d overlapping tasks (capacity %d): %s",
				res, n, capacity, strings.Join(ids, ", ")),
			Resolution: "stagger the overlapping tasks or assign additional capacity",
			Impact: Impact{
				ScheduleDelayDays: ceilDays(common.Duration()) * (n - 1),
				ResourceWastePct:  math.Max(0, float64(n-capacity)/float64(n)*100),
				Cost:              float64(n) * CostUnit,
			},
		})
	}
	return out
}

// maxOverlapSet sweeps task intervals and returns the largest set of tasks
// that are all active at one instant, plus the interval they share. Ends
// are processed before starts at the same instant since intervals are
// half-open.
func maxOverlapSet(tasks []timeline.Task) ([]timeline.Task, timeline.Interval) {
	type edge struct {
		at    time.Time
		start bool
		idx   int
	}
	edges := make([]edge, 0, 2*len(tasks))
	for i, t := range tasks {
		if !t.Start.Before(t.End) {
			continue
		}
		edges = append(edges, edge{at: t.Start, start: true, idx: i}, edge{at: t.End, idx: i})
	}
	sort.SliceStable(edges, func(i, j int) bool {
		if !edges[i].at.Equal(edges[j].at) {
			return edges[i].at.Before(edges[j].at)
		}
		return !edges[i].start && edges[j].start
	})

	active := make(map[int]bool)
	var best []int
	for _, e := range edges {
		if !e.start {
			delete(active, e.idx)
			continue
		}
		active[e.idx] = true
		if len(active) > len(best) {
			best = best[:0]
			for idx := range active {
				best = append(best, idx)
			}
		}
	}
	sort.Ints(best)

	group := make([]timeline.Task, len(best))
	var common timeline.Interval
	for i, idx := range best {
		t := tasks[idx]
		group[i] = t
		if i == 0 || t.Start.After(common.Start) {
			common.Start = t.Start
		}
		if i == 0 || t.End.Before(common.End) {
			common.End = t.End
		}
	}
	return group, common
}

func overlaps(byRes map[string][]timeline.Task) []Conflict {
	var out []Conflict
	for _, res := range sortedResourceIDs(byRes) {
		list := byRes[res]
		for i := 0; i < len(list); i++ {
			for j := i + 1; j < len(list); j++ {
				a, b := list[i], list[j]
				if !b.Start.Before(a.End) {
					// Sorted by start: nothing later can overlap a.
					break
				}
				if !a.Interval().Overlaps(b.Interval()) {
					continue
				}
				shared := a.Interval().Overlap(b.Interval())
				sev := SeverityMedium
				if a.Priority == timeline.PriorityCritical || b.Priority == timeline.PriorityCritical {
					sev = SeverityHigh
				}
				shorter := a.Duration()
				if b.Duration() < shorter {
					shorter = b.Duration()
				}
				delay := ceilDays(shared)
				out = append(out, Conflict{
					ID:          fmt.Sprintf("%s-%d", ScheduleOverlap, len(out)+1),
					Type:        ScheduleOverlap,
					Severity:    sev,
					TaskIDs:     []string{a.ID, b.ID},
					Description: fmt.Sprintf("tasks %s and %s overlap on resource %s for %s", a.ID, b.ID, res, shared),
					Resolution:  fmt.Sprintf("start %s after %s finishes or move one task to another resource", b.ID, a.ID),
					Impact: Impact{
						ScheduleDelayDays: delay,
						ResourceWastePct:  float64(shared) / float64(shorter) * 100,
						Cost:              float64(delay) * CostUnit / 2,
					},
				})
			}
		}
	}
	return out
}

func dependencyViolations(tasks []timeline.Task) []Conflict {
	byID := make(map[string]timeline.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	var out []Conflict
	for _, t := range tasks {
		for _, predID := range t.Predecessors {
			pred, ok := byID[predID]
			if !ok || !t.Start.Before(pred.End) {
				continue
			}
			delay := ceilDays(pred.End.Sub(t.Start))
			out = append(out, Conflict{
				ID:          fmt.Sprintf("%s-%d", DependencyViolation, len(out)+1),
				Type:        DependencyViolation,
				Severity:    SeverityHigh,
				TaskIDs:     []string{pred.ID, t.ID},
				Description: fmt.Sprintf("task %s starts before its predecessor %s finishes", t.ID, pred.ID),
				Resolution:  fmt.Sprintf("delay %s by %d day(s) or shorten %s", t.ID, delay, pred.ID),
				Impact: Impact{
					ScheduleDelayDays: delay,
					Cost:              float64(delay) * CostUnit,
				},
			})
		}
	}
	return out
}

func milestoneDelays(tasks []timeline.Task, events []timeline.Event) []Conflict {
	byID := make(map[string]timeline.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	var out []Conflict
	for _, e := range events {
		if e.Type != timeline.EventMilestone {
			continue
		}
		var late []string
		var worst time.Duration
		for _, id := range e.RelatedTasks {
			t, ok := byID[id]
			if !ok || !t.End.After(e.Timestamp) {
				continue
			}
			late = append(late, t.ID)
			if over := t.End.Sub(e.Timestamp); over > worst {
				worst = over
			}
		}
		if len(late) == 0 {
			continue
		}
		delay := ceilDays(worst)
		out = append(out, Conflict{
			ID:          fmt.Sprintf("%s-%d", MilestoneDelay, len(out)+1),
			Type:        MilestoneDelay,
			Severity:    SeverityCritical,
			TaskIDs:     late,
			Description: fmt.Sprintf("milestone %s at %s is missed by %s", e.ID, e.Timestamp.Format(time.RFC3339), strings.Join(late, ", ")),
			Resolution:  "compress or re-sequence the late tasks, or move the milestone",
			Impact: Impact{
				ScheduleDelayDays: delay,
				Cost:              float64(delay) * CostUnit * 2,
			},
		})
	}
	return out
}

// ceilDays rounds a positive duration up to whole days.
func ceilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours() / 24))
}
