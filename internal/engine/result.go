package engine

import (
	"time"

	"github.com/papapumpkin/parsec/internal/bottleneck"
	"github.com/papapumpkin/parsec/internal/conflict"
	"github.com/papapumpkin/parsec/internal/cpm"
	"github.com/papapumpkin/parsec/internal/leveler"
	"github.com/papapumpkin/parsec/internal/progress"
	"github.com/papapumpkin/parsec/internal/timeline"
	"github.com/papapumpkin/parsec/internal/window"
)

// Stage names, used for timings, spans and telemetry.
const (
	StageValidate     = "validate"
	StageGraph        = "graph"
	StageCriticalPath = "critical_path"
	StageAllocation   = "allocation"
	StageConflicts    = "conflicts"
	StageBottlenecks  = "bottlenecks"
	StageTimeWindows  = "time_windows"
	StageProgress     = "progress"
	StageBaseline     = "baseline"
)

// WarningKind classifies a non-fatal condition.
type WarningKind string

const (
	WarnDanglingReference      WarningKind = "dangling_reference"
	WarnProcessingTimeExceeded WarningKind = "processing_time_exceeded"
	WarnTaskCountExceeded      WarningKind = "task_count_exceeded"
)

// Warning is a condition that was logged but did not stop the run.
type Warning struct {
	Kind    WarningKind `json:"kind" yaml:"kind"`
	TaskID  string      `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	Message string      `json:"message" yaml:"message"`
}

// StageTiming records how long one pipeline stage took.
type StageTiming struct {
	Stage    string        `json:"stage" yaml:"stage"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Statistics summarizes a run.
type Statistics struct {
	TaskCount           int                   `json:"task_count" yaml:"task_count"`
	ResourceCount       int                   `json:"resource_count" yaml:"resource_count"`
	EventCount          int                   `json:"event_count" yaml:"event_count"`
	CompletedTasks      int                   `json:"completed_tasks" yaml:"completed_tasks"`
	BlockedTasks        int                   `json:"blocked_tasks" yaml:"blocked_tasks"`
	CriticalTasks       int                   `json:"critical_tasks" yaml:"critical_tasks"`
	ConflictCount       int                   `json:"conflict_count" yaml:"conflict_count"`
	ConflictsByType     map[conflict.Type]int `json:"conflicts_by_type" yaml:"conflicts_by_type"`
	BottleneckCount     int                   `json:"bottleneck_count" yaml:"bottleneck_count"`
	DanglingReferences  int                   `json:"dangling_references" yaml:"dangling_references"`
	Workstreams         int                   `json:"workstreams" yaml:"workstreams"`
	AverageTaskDuration time.Duration         `json:"average_task_duration" yaml:"average_task_duration"`
	ProjectStart        time.Time             `json:"project_start" yaml:"project_start"`
	ProjectFinish       time.Time             `json:"project_finish" yaml:"project_finish"`
	ProcessingTime      time.Duration         `json:"processing_time" yaml:"processing_time"`
	Stages              []StageTiming         `json:"stages" yaml:"stages"`
}

// Clone returns a deep copy.
func (s Statistics) Clone() Statistics {
	c := s
	c.Stages = append([]StageTiming(nil), s.Stages...)
	if s.ConflictsByType != nil {
		c.ConflictsByType = make(map[conflict.Type]int, len(s.ConflictsByType))
		for k, v := range s.ConflictsByType {
			c.ConflictsByType[k] = v
		}
	}
	return c
}

// ProjectDuration is the span from the first start to the last finish.
func (s Statistics) ProjectDuration() time.Duration {
	return s.ProjectFinish.Sub(s.ProjectStart)
}

// Result is everything one run produces. Stages that were disabled leave
// their fields empty.
type Result struct {
	Tasks        []timeline.Task         `json:"tasks" yaml:"tasks"`
	CriticalPath *cpm.Schedule           `json:"critical_path,omitempty" yaml:"critical_path,omitempty"`
	Allocations  []leveler.Allocation    `json:"allocations,omitempty" yaml:"allocations,omitempty"`
	Conflicts    []conflict.Conflict     `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
	Bottlenecks  []bottleneck.Bottleneck `json:"bottlenecks,omitempty" yaml:"bottlenecks,omitempty"`
	TimeWindows  []window.Window         `json:"time_windows,omitempty" yaml:"time_windows,omitempty"`
	Progress     progress.Metrics        `json:"progress" yaml:"progress"`
	Statistics   Statistics              `json:"statistics" yaml:"statistics"`
	Warnings     []Warning               `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Baseline     []BaselineVariance      `json:"baseline,omitempty" yaml:"baseline,omitempty"`
}

// Clone returns a deep copy of the result.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	c := &Result{
		Tasks:        timeline.CloneTasks(r.Tasks),
		CriticalPath: r.CriticalPath.Clone(),
		Allocations:  append([]leveler.Allocation(nil), r.Allocations...),
		Conflicts:    cloneConflicts(r.Conflicts),
		Bottlenecks:  cloneBottlenecks(r.Bottlenecks),
		Progress:     r.Progress,
		Statistics:   r.Statistics.Clone(),
		Warnings:     append([]Warning(nil), r.Warnings...),
		Baseline:     append([]BaselineVariance(nil), r.Baseline...),
	}
	if r.TimeWindows != nil {
		c.TimeWindows = make([]window.Window, len(r.TimeWindows))
		for i, w := range r.TimeWindows {
			c.TimeWindows[i] = w.Clone()
		}
	}
	return c
}

func cloneConflicts(cs []conflict.Conflict) []conflict.Conflict {
	if cs == nil {
		return nil
	}
	out := make([]conflict.Conflict, len(cs))
	for i, c := range cs {
		out[i] = c.Clone()
	}
	return out
}

func cloneBottlenecks(bs []bottleneck.Bottleneck) []bottleneck.Bottleneck {
	if bs == nil {
		return nil
	}
	out := make([]bottleneck.Bottleneck, len(bs))
	for i, b := range bs {
		out[i] = b.Clone()
	}
	return out
}
