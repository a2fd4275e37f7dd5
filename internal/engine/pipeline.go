// Package engine runs the timeline analysis pipeline: validation, dependency
// graph construction, critical path, resource leveling, conflict and
// bottleneck detection, time-window aggregation and progress metrics.
//
// Run is a pure function of its input. Each call builds its own runContext
// and shares nothing with other calls, so independent runs may execute
// concurrently. Processor wraps Run and keeps the last successful result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/papapumpkin/parsec/internal/bottleneck"
	"github.com/papapumpkin/parsec/internal/conflict"
	"github.com/papapumpkin/parsec/internal/cpm"
	"github.com/papapumpkin/parsec/internal/dag"
	"github.com/papapumpkin/parsec/internal/leveler"
	"github.com/papapumpkin/parsec/internal/progress"
	"github.com/papapumpkin/parsec/internal/timeline"
	"github.com/papapumpkin/parsec/internal/window"
)

// TracerName is the instrumentation scope of engine spans.
const TracerName = "github.com/papapumpkin/parsec/internal/engine"

// Input is the raw record set handed to a run. It is never modified.
type Input struct {
	Tasks     []timeline.Task     `json:"tasks" yaml:"tasks"`
	Resources []timeline.Resource `json:"resources" yaml:"resources"`
	Events    []timeline.Event    `json:"events" yaml:"events"`
}

// runContext is the per-call state threaded through the stages.
type runContext struct {
	in     Input
	opts   Options
	logger *slog.Logger

	snap     timeline.Snapshot
	graph    *dag.DAG
	dangling int
	result   *Result
}

func (rc *runContext) warn(ctx context.Context, w Warning) {
	rc.result.Warnings = append(rc.result.Warnings, w)
	rc.logger.WarnContext(ctx, w.Message, "kind", string(w.Kind), "task", w.TaskID)
}

type stage struct {
	name    string
	enabled func(Options) bool
	run     func(context.Context, *runContext) error
}

func always(Options) bool { return true }

// pipeline lists the stages in execution order. Each stage reads the
// validated snapshot and the fields earlier stages put on the result.
var pipeline = []stage{
	{StageValidate, always, validateStage},
	{StageGraph, always, graphStage},
	{StageCriticalPath, func(o Options) bool { return o.CalculateCriticalPath }, criticalPathStage},
	{StageAllocation, func(o Options) bool { return o.OptimizeResources }, allocationStage},
	{StageConflicts, func(o Options) bool { return o.DetectConflicts }, conflictStage},
	{StageBottlenecks, func(o Options) bool { return o.PerformBottleneckAnalysis }, bottleneckStage},
	{StageTimeWindows, func(o Options) bool { return o.AggregateByTimeWindow }, windowStage},
	{StageProgress, always, progressStage},
	{StageBaseline, func(o Options) bool { return o.CompareBaseline }, baselineStage},
}

// Run analyzes in with the default logger and the global tracer provider.
// ctx only carries trace spans; the run cannot be cancelled.
func Run(ctx context.Context, in Input, opts Options) (*Result, error) {
	return run(ctx, in, opts, slog.Default().With("component", "engine"), otel.Tracer(TracerName))
}

func run(ctx context.Context, in Input, opts Options, logger *slog.Logger, tracer trace.Tracer) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "parsec.analyze", trace.WithAttributes(
		attribute.Int("parsec.tasks", len(in.Tasks)),
		attribute.Int("parsec.resources", len(in.Resources)),
		attribute.Int("parsec.events", len(in.Events)),
	))
	defer span.End()

	began := time.Now()
	rc := &runContext{in: in, opts: opts, logger: logger, result: &Result{}}
	for _, st := range pipeline {
		if !st.enabled(opts) {
			continue
		}
		if err := runStage(ctx, tracer, rc, st); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.ErrorContext(ctx, "analysis failed", "stage", st.name, "error", err)
			return nil, err
		}
	}

	elapsed := time.Since(began)
	if limit := opts.Thresholds.MaxProcessingTime; limit > 0 && elapsed > limit {
		rc.warn(ctx, Warning{
			Kind:    WarnProcessingTimeExceeded,
			Message: fmt.Sprintf("processing took %s, over the %s threshold", elapsed.Round(time.Millisecond), limit),
		})
	}
	rc.result.Statistics = statistics(rc, elapsed)

	st := rc.result.Statistics
	span.SetAttributes(
		attribute.Int("parsec.critical_tasks", st.CriticalTasks),
		attribute.Int("parsec.conflicts", st.ConflictCount),
		attribute.Int("parsec.bottlenecks", st.BottleneckCount),
	)
	logger.InfoContext(ctx, "analysis complete",
		"tasks", st.TaskCount,
		"critical", st.CriticalTasks,
		"conflicts", st.ConflictCount,
		"bottlenecks", st.BottleneckCount,
		"warnings", len(rc.result.Warnings),
		"elapsed", elapsed,
	)
	return rc.result, nil
}

func runStage(ctx context.Context, tracer trace.Tracer, rc *runContext, st stage) error {
	ctx, span := tracer.Start(ctx, "parsec.stage."+st.name)
	defer span.End()

	began := time.Now()
	err := st.run(ctx, rc)
	took := time.Since(began)
	rc.result.Statistics.Stages = append(rc.result.Statistics.Stages, StageTiming{Stage: st.name, Duration: took})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	rc.logger.DebugContext(ctx, "stage done", "stage", st.name, "took", took)
	return nil
}

func validateStage(ctx context.Context, rc *runContext) error {
	snap, err := timeline.Validate(rc.in.Tasks, rc.in.Resources, rc.in.Events)
	if err != nil {
		return err
	}
	rc.snap = snap
	rc.result.Tasks = timeline.CloneTasks(snap.Tasks)
	if limit := rc.opts.Thresholds.MaxTaskCount; limit > 0 && len(snap.Tasks) > limit {
		rc.warn(ctx, Warning{
			Kind:    WarnTaskCountExceeded,
			Message: fmt.Sprintf("%d tasks exceeds the threshold of %d", len(snap.Tasks), limit),
		})
	}
	return nil
}

// graphStage builds the dependency graph. Dangling predecessors are
// warnings. With ValidateDependencies off the cycle check is skipped, but
// the critical path stage still rejects a cyclic graph.
func graphStage(ctx context.Context, rc *runContext) error {
	g, dangling, err := dag.FromTasks(rc.snap.Tasks)
	if err != nil {
		return fmt.Errorf("building dependency graph: %w", err)
	}
	for _, d := range dangling {
		rc.warn(ctx, Warning{
			Kind:    WarnDanglingReference,
			TaskID:  d.TaskID,
			Message: fmt.Sprintf("task %s references unknown predecessor %s; ignored", d.TaskID, d.Missing),
		})
	}
	rc.dangling = len(dangling)
	if rc.opts.ValidateDependencies {
		if err := g.DetectCycle(); err != nil {
			return err
		}
	}
	rc.graph = g
	return nil
}

func criticalPathStage(_ context.Context, rc *runContext) error {
	sched, err := cpm.Analyze(rc.snap.Tasks, rc.graph)
	if err != nil {
		return fmt.Errorf("critical path: %w", err)
	}
	rc.result.CriticalPath = sched
	return nil
}

func allocationStage(_ context.Context, rc *runContext) error {
	rc.result.Allocations = leveler.Optimize(rc.snap.Tasks, rc.snap.Resources, rc.result.CriticalPath)
	return nil
}

func conflictStage(_ context.Context, rc *runContext) error {
	rc.result.Conflicts = conflict.Detect(rc.snap.Tasks, rc.snap.Resources, rc.snap.Events)
	return nil
}

func bottleneckStage(_ context.Context, rc *runContext) error {
	rc.result.Bottlenecks = bottleneck.Analyze(rc.snap.Tasks, rc.snap.Resources, rc.graph)
	return nil
}

func windowStage(_ context.Context, rc *runContext) error {
	windows, err := window.Aggregate(rc.snap.Tasks, rc.snap.Events, rc.result.CriticalPath.CriticalSet(), rc.opts.WindowDuration())
	if err != nil {
		if errors.Is(err, window.ErrTooManyWindows) || errors.Is(err, window.ErrInvalidWindowSize) {
			return &ConfigurationError{Option: "time_window_size", Value: rc.opts.TimeWindowSize, Err: err}
		}
		return fmt.Errorf("time windows: %w", err)
	}
	rc.result.TimeWindows = windows
	return nil
}

func progressStage(_ context.Context, rc *runContext) error {
	rc.result.Progress = progress.Calculate(rc.snap.Tasks)
	return nil
}

func statistics(rc *runContext, elapsed time.Duration) Statistics {
	st := rc.result.Statistics
	tasks := rc.snap.Tasks
	st.TaskCount = len(tasks)
	st.ResourceCount = len(rc.snap.Resources)
	st.EventCount = len(rc.snap.Events)
	st.DanglingReferences = rc.dangling
	st.ProcessingTime = elapsed

	var total time.Duration
	for i, t := range tasks {
		switch t.Status {
		case timeline.StatusCompleted:
			st.CompletedTasks++
		case timeline.StatusBlocked:
			st.BlockedTasks++
		}
		total += t.Duration()
		if i == 0 || t.Start.Before(st.ProjectStart) {
			st.ProjectStart = t.Start
		}
		if i == 0 || t.End.After(st.ProjectFinish) {
			st.ProjectFinish = t.End
		}
	}
	if len(tasks) > 0 {
		st.AverageTaskDuration = total / time.Duration(len(tasks))
	}
	if sched := rc.result.CriticalPath; sched != nil {
		st.CriticalTasks = len(sched.Path)
		if sched.ProjectFinish.After(st.ProjectFinish) {
			st.ProjectFinish = sched.ProjectFinish
		}
	}

	st.ConflictCount = len(rc.result.Conflicts)
	st.ConflictsByType = make(map[conflict.Type]int)
	for _, c := range rc.result.Conflicts {
		st.ConflictsByType[c.Type]++
	}
	st.BottleneckCount = len(rc.result.Bottlenecks)

	// A cyclic graph only gets this far with dependency validation off.
	if streams, err := rc.graph.Workstreams(); err == nil {
		st.Workstreams = len(streams)
	}
	return st
}
