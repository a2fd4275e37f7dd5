// Package bottleneck flags the tasks and resources that most constrain
// schedule throughput: over-demanded resources, tasks with many direct
// dependents and statistical duration outliers.
package bottleneck

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/papapumpkin/parsec/internal/dag"
	"github.com/papapumpkin/parsec/internal/timeline"
)

// Detection thresholds.
const (
	// DemandFactor is the demand/capacity ratio above which a resource is
	// a bottleneck.
	DemandFactor = 1.2
	// MinDependents is the number of direct successors that makes a task a
	// dependency bottleneck.
	MinDependents = 3
	// OutlierSigma is the number of standard deviations above the mean a
	// duration must exceed to be an outlier.
	OutlierSigma = 2.0
)

// CostUnit is the abstract cost of one day of delay.
const CostUnit = 1000.0

// Type classifies a bottleneck.
type Type string

const (
	TypeResource   Type = "resource"
	TypeDependency Type = "dependency"
	TypeDuration   Type = "duration"
)

// Effort is how much work a mitigation takes.
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// Impact estimates the cost of leaving a bottleneck in place.
type Impact struct {
	DelayDays     float64  `json:"delay_days" yaml:"delay_days"`
	AffectedTasks []string `json:"affected_tasks" yaml:"affected_tasks"`
	CostIncrease  float64  `json:"cost_increase" yaml:"cost_increase"`
	// Centrality is the dependency graph impact score of the task in
	// [0, 1]; set for dependency bottlenecks only.
	Centrality float64 `json:"centrality,omitempty" yaml:"centrality,omitempty"`
}

// Mitigation is a suggested remedy.
type Mitigation struct {
	Strategy      string  `json:"strategy" yaml:"strategy"`
	Effort        Effort  `json:"effort" yaml:"effort"`
	Effectiveness float64 `json:"effectiveness" yaml:"effectiveness"` // 0–1
}

// Bottleneck is a single flagged constraint.
type Bottleneck struct {
	TaskID     string     `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	ResourceID string     `json:"resource_id,omitempty" yaml:"resource_id,omitempty"`
	Type       Type       `json:"type" yaml:"type"`
	Severity   float64    `json:"severity" yaml:"severity"` // 0–1
	Impact     Impact     `json:"impact" yaml:"impact"`
	Mitigation Mitigation `json:"mitigation" yaml:"mitigation"`
}

// Clone returns a deep copy.
func (b Bottleneck) Clone() Bottleneck {
	c := b
	c.Impact.AffectedTasks = append([]string(nil), b.Impact.AffectedTasks...)
	return c
}

// Analyze runs the three detectors and merges their output, most severe
// first. Equal severities keep detection order (resource, dependency,
// duration; each in ID order).
func Analyze(tasks []timeline.Task, resources []timeline.Resource, g *dag.DAG) []Bottleneck {
	var out []Bottleneck
	out = append(out, resourceBottlenecks(tasks, resources)...)
	out = append(out, dependencyBottlenecks(tasks, g)...)
	out = append(out, durationBottlenecks(tasks)...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity > out[j].Severity
	})
	return out
}

// resourceBottlenecks flags resources whose demand, the number of tasks
// assigned to them, exceeds DemandFactor × capacity.
func resourceBottlenecks(tasks []timeline.Task, resources []timeline.Resource) []Bottleneck {
	assigned := make(map[string][]timeline.Task)
	for _, t := range tasks {
		if t.Resource != "" {
			assigned[t.Resource] = append(assigned[t.Resource], t)
		}
	}
	resIDs := make([]string, 0, len(assigned))
	for id := range assigned {
		resIDs = append(resIDs, id)
	}
	sort.Strings(resIDs)
	resIdx := timeline.IndexResources(resources)

	var out []Bottleneck
	for _, res := range resIDs {
		list := assigned[res]
		capacity := float64(timeline.CapacityOf(resIdx, res))
		demand := float64(len(list))
		if demand <= DemandFactor*capacity {
			continue
		}

		ids := make([]string, len(list))
		var total time.Duration
		for i, t := range list {
			ids[i] = t.ID
			total += t.Duration()
		}
		sort.Strings(ids)
		excess := demand - capacity
		delay := timeline.Days(total) / demand * excess

		mit := Mitigation{
			Strategy:      fmt.Sprintf("add capacity to %s or move tasks to an equivalent resource", res),
			Effort:        EffortMedium,
			Effectiveness: 0.8,
		}
		if demand > 2*capacity {
			mit.Effort = EffortHigh
			mit.Effectiveness = 0.7
		}

		out = append(out, Bottleneck{
			ResourceID: res,
			Type:       TypeResource,
			Severity:   math.Min(1, demand/(2*capacity)),
			Impact: Impact{
				DelayDays:     delay,
				AffectedTasks: ids,
				CostIncrease:  delay * CostUnit,
			},
			Mitigation: mit,
		})
	}
	return out
}

// dependencyBottlenecks flags tasks that are a direct predecessor of at
// least MinDependents other tasks. Everything downstream is affected.
func dependencyBottlenecks(tasks []timeline.Task, g *dag.DAG) []Bottleneck {
	if g == nil {
		return nil
	}
	byID := make(map[string]timeline.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	var (
		out    []Bottleneck
		impact map[string]float64
	)
	for _, id := range g.Nodes() {
		succ := g.Successors(id)
		if len(succ) < MinDependents {
			continue
		}
		if impact == nil {
			impact = g.Impact(dag.DefaultImpactOptions())
		}
		delay := timeline.Days(byID[id].Duration())
		out = append(out, Bottleneck{
			TaskID:   id,
			Type:     TypeDependency,
			Severity: math.Min(1, float64(len(succ))/10),
			Impact: Impact{
				DelayDays:     delay,
				AffectedTasks: g.Descendants(id),
				CostIncrease:  delay * CostUnit * float64(len(succ)),
				Centrality:    impact[id],
			},
			Mitigation: Mitigation{
				Strategy:      fmt.Sprintf("split %s so dependents can start on partial results", id),
				Effort:        EffortMedium,
				Effectiveness: 0.6,
			},
		})
	}
	return out
}

// durationBottlenecks flags tasks longer than mean + OutlierSigma·σ of all
// task durations (population σ). Severity runs linearly from 0.5 at 2σ to
// 1 at 3σ and above.
func durationBottlenecks(tasks []timeline.Task) []Bottleneck {
	if len(tasks) < 2 {
		return nil
	}
	mean, sigma := durationStats(tasks)
	if sigma == 0 {
		return nil
	}
	limit := mean + OutlierSigma*sigma

	sorted := make([]timeline.Task, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var out []Bottleneck
	for _, t := range sorted {
		d := timeline.Days(t.Duration())
		if d <= limit {
			continue
		}
		z := (d - mean) / sigma
		excess := d - mean
		out = append(out, Bottleneck{
			TaskID:   t.ID,
			Type:     TypeDuration,
			Severity: 0.5 + 0.5*math.Min(1, z-OutlierSigma),
			Impact: Impact{
				DelayDays:     excess,
				AffectedTasks: []string{t.ID},
				CostIncrease:  excess * CostUnit,
			},
			Mitigation: Mitigation{
				Strategy:      fmt.Sprintf("break %s into smaller tasks that can run in parallel", t.ID),
				Effort:        EffortLow,
				Effectiveness: 0.5,
			},
		})
	}
	return out
}

// durationStats returns the mean and population standard deviation of
// task durations, in days.
func durationStats(tasks []timeline.Task) (mean, sigma float64) {
	n := float64(len(tasks))
	for _, t := range tasks {
		mean += timeline.Days(t.Duration())
	}
	mean /= n
	var variance float64
	for _, t := range tasks {
		diff := timeline.Days(t.Duration()) - mean
		variance += diff * diff
	}
	return mean, math.Sqrt(variance / n)
}
