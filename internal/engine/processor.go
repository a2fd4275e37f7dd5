package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/papapumpkin/parsec/internal/bottleneck"
	"github.com/papapumpkin/parsec/internal/conflict"
	"github.com/papapumpkin/parsec/internal/cpm"
	"github.com/papapumpkin/parsec/internal/timeline"
)

// Processor runs analyses and keeps the last successful result. Accessors
// return copies, so callers may modify what they get back. A failed run
// leaves the previous result in place.
//
// The working task set starts as the last processed set and is edited by
// AddTask, UpdateTask and RemoveTask. Edits do not re-run the analysis;
// call Reprocess for that.
type Processor struct {
	logger *slog.Logger
	tracer trace.Tracer

	mu        sync.RWMutex
	last      *Result
	input     Input // last successfully processed input
	tasks     []timeline.Task
	hasResult bool
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger used for warnings and stage timings.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// WithTracer sets the tracer used for run and stage spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Processor) { p.tracer = t }
}

// New creates a Processor.
func New(opts ...Option) *Processor {
	p := &Processor{
		logger: slog.Default().With("component", "engine"),
		tracer: otel.Tracer(TracerName),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process runs the pipeline over the given records. On success the result
// is stored and a copy returned; on failure nothing stored changes.
func (p *Processor) Process(ctx context.Context, tasks []timeline.Task, resources []timeline.Resource, events []timeline.Event, opts Options) (*Result, error) {
	in := Input{Tasks: tasks, Resources: resources, Events: events}
	res, err := run(ctx, in, opts, p.logger, p.tracer)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = res
	p.input = Input{
		Tasks:     timeline.CloneTasks(res.Tasks),
		Resources: cloneResources(resources),
		Events:    cloneEvents(events),
	}
	p.tasks = timeline.CloneTasks(res.Tasks)
	p.hasResult = true
	return res.Clone(), nil
}

// Reprocess runs the pipeline over the working task set and the resources
// and events of the last successful run.
func (p *Processor) Reprocess(ctx context.Context, opts Options) (*Result, error) {
	p.mu.RLock()
	if !p.hasResult {
		p.mu.RUnlock()
		return nil, ErrNoData
	}
	tasks := timeline.CloneTasks(p.tasks)
	resources, events := p.input.Resources, p.input.Events
	p.mu.RUnlock()
	return p.Process(ctx, tasks, resources, events, opts)
}

// Result returns a copy of the last successful result, or nil.
func (p *Processor) Result() *Result {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last.Clone()
}

// Tasks returns a copy of the working task set.
func (p *Processor) Tasks() []timeline.Task {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return timeline.CloneTasks(p.tasks)
}

// CriticalPath returns a copy of the last critical path schedule, or nil.
func (p *Processor) CriticalPath() *cpm.Schedule {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return nil
	}
	return p.last.CriticalPath.Clone()
}

// Conflicts returns a copy of the last detected conflicts.
func (p *Processor) Conflicts() []conflict.Conflict {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return nil
	}
	return cloneConflicts(p.last.Conflicts)
}

// Bottlenecks returns a copy of the last detected bottlenecks.
func (p *Processor) Bottlenecks() []bottleneck.Bottleneck {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return nil
	}
	return cloneBottlenecks(p.last.Bottlenecks)
}

// Statistics returns a copy of the last run's statistics.
func (p *Processor) Statistics() Statistics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return Statistics{}
	}
	return p.last.Statistics.Clone()
}

// AddTask validates t and appends it to the working set.
func (p *Processor) AddTask(t timeline.Task) error {
	clean, err := timeline.ValidateTask(t)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.indexOf(clean.ID) >= 0 {
		return &timeline.ValidationError{Kind: timeline.KindTask, Index: len(p.tasks), ID: clean.ID, Field: "id", Err: timeline.ErrDuplicateID}
	}
	p.tasks = append(p.tasks, clean)
	p.logger.Debug("task added", "task", clean.ID)
	return nil
}

// UpdateTask validates t and replaces the working task with the same ID.
func (p *Processor) UpdateTask(t timeline.Task) error {
	clean, err := timeline.ValidateTask(t)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.indexOf(clean.ID)
	if i < 0 {
		return fmt.Errorf("updating task: %w: %s", ErrTaskNotFound, clean.ID)
	}
	p.tasks[i] = clean
	p.logger.Debug("task updated", "task", clean.ID)
	return nil
}

// RemoveTask deletes a task from the working set and strips its ID from
// every other task's predecessor list.
func (p *Processor) RemoveTask(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.indexOf(id)
	if i < 0 {
		return fmt.Errorf("removing task: %w: %s", ErrTaskNotFound, id)
	}

	kept := make([]timeline.Task, 0, len(p.tasks)-1)
	kept = append(kept, p.tasks[:i]...)
	kept = append(kept, p.tasks[i+1:]...)
	for j := range kept {
		kept[j].Predecessors = without(kept[j].Predecessors, id)
	}
	p.tasks = kept
	p.logger.Debug("task removed", "task", id)
	return nil
}

// CompressTimeline returns the working tasks with every duration scaled
// by factor, which must lie in (0, 1). Stored state is not changed.
func (p *Processor) CompressTimeline(factor float64) ([]timeline.Task, error) {
	return Compress(p.Tasks(), factor)
}

// ExpandTimeline returns the working tasks with every duration scaled by
// factor, which must be greater than 1. Stored state is not changed.
func (p *Processor) ExpandTimeline(factor float64) ([]timeline.Task, error) {
	return Expand(p.Tasks(), factor)
}

// Compress scales task durations by a factor in (0, 1). Start dates are
// kept; end = start + duration·factor.
func Compress(tasks []timeline.Task, factor float64) ([]timeline.Task, error) {
	if math.IsNaN(factor) || factor <= 0 || factor >= 1 {
		return nil, &ConfigurationError{Option: "compression factor", Value: factor, Err: ErrInvalidFactor}
	}
	return scale(tasks, factor), nil
}

// Expand scales task durations by a factor above 1.
func Expand(tasks []timeline.Task, factor float64) ([]timeline.Task, error) {
	if math.IsNaN(factor) || math.IsInf(factor, 0) || factor <= 1 {
		return nil, &ConfigurationError{Option: "expansion factor", Value: factor, Err: ErrInvalidFactor}
	}
	return scale(tasks, factor), nil
}

func scale(tasks []timeline.Task, factor float64) []timeline.Task {
	out := timeline.CloneTasks(tasks)
	for i := range out {
		d := float64(out[i].Duration()) * factor
		out[i].End = out[i].Start.Add(time.Duration(math.Round(d)))
	}
	return out
}

func (p *Processor) indexOf(id string) int {
	for i, t := range p.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func without(ids []string, id string) []string {
	if len(ids) == 0 {
		return ids
	}
	out := ids[:0:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func cloneResources(rs []timeline.Resource) []timeline.Resource {
	if rs == nil {
		return nil
	}
	out := make([]timeline.Resource, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}

func cloneEvents(es []timeline.Event) []timeline.Event {
	if es == nil {
		return nil
	}
	out := make([]timeline.Event, len(es))
	for i, e := range es {
		out[i] = e.Clone()
	}
	return out
}
