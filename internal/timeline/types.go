// Package timeline defines the mission timeline records consumed by the
// analysis engine (tasks, resources, events) and validates them before any
// analysis stage runs.
package timeline

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus maps a textual status to a Status. An empty string yields
// StatusPending. Underscores are accepted in place of hyphens.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "", "pending":
		return StatusPending, nil
	case "in-progress", "in_progress":
		return StatusInProgress, nil
	case "completed":
		return StatusCompleted, nil
	case "blocked":
		return StatusBlocked, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("%w: status %q", ErrInvalidEnum, s)
}

// Priority orders tasks for resource leveling.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority maps a textual priority to a Priority. An empty string
// yields PriorityMedium.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "", "medium":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	}
	return "", fmt.Errorf("%w: priority %q", ErrInvalidEnum, s)
}

// Rank returns a numeric weight where higher means more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// EventType classifies a timeline event.
type EventType string

const (
	EventMilestone  EventType = "milestone"
	EventAlert      EventType = "alert"
	EventCommand    EventType = "command"
	EventTelemetry  EventType = "telemetry"
	EventAnnotation EventType = "annotation"
)

// ParseEventType maps a textual event type to an EventType.
func ParseEventType(s string) (EventType, error) {
	switch EventType(s) {
	case EventMilestone, EventAlert, EventCommand, EventTelemetry, EventAnnotation:
		return EventType(s), nil
	}
	return "", fmt.Errorf("%w: event type %q", ErrInvalidEnum, s)
}

// Severity is the optional severity attached to an event.
type Severity string

const (
	SeverityNone     Severity = ""
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// ParseSeverity maps a textual severity to a Severity. Empty is allowed.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityNone, SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return Severity(s), nil
	}
	return "", fmt.Errorf("%w: severity %q", ErrInvalidEnum, s)
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether two half-open intervals share any instant.
// Touching endpoints do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether t falls inside [Start, End).
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Overlap returns the duration shared by both intervals, or zero.
func (iv Interval) Overlap(other Interval) time.Duration {
	start := iv.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := iv.End
	if other.End.Before(end) {
		end = other.End
	}
	if !start.Before(end) {
		return 0
	}
	return end.Sub(start)
}

// Task is a unit of scheduled work on the mission timeline.
type Task struct {
	ID           string            `json:"id" yaml:"id"`
	Name         string            `json:"name" yaml:"name"`
	Start        time.Time         `json:"start" yaml:"start"`
	End          time.Time         `json:"end" yaml:"end"`
	Progress     float64           `json:"progress" yaml:"progress"`
	Status       Status            `json:"status" yaml:"status"`
	Priority     Priority          `json:"priority" yaml:"priority"`
	Resource     string            `json:"resource,omitempty" yaml:"resource,omitempty"`
	Predecessors []string          `json:"predecessors,omitempty" yaml:"predecessors,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Duration returns the declared duration End - Start.
func (t Task) Duration() time.Duration {
	return t.End.Sub(t.Start)
}

// Interval returns the declared [Start, End) of the task.
func (t Task) Interval() Interval {
	return Interval{Start: t.Start, End: t.End}
}

// Clone returns a deep copy so callers never share slices or maps.
func (t Task) Clone() Task {
	c := t
	if t.Predecessors != nil {
		c.Predecessors = append([]string(nil), t.Predecessors...)
	}
	if t.Metadata != nil {
		c.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}

// Resource is a shared asset tasks are assigned to (a rover, an antenna,
// a crew member).
type Resource struct {
	ID           string     `json:"id" yaml:"id"`
	Name         string     `json:"name" yaml:"name"`
	Type         string     `json:"type,omitempty" yaml:"type,omitempty"`
	Capacity     int        `json:"capacity" yaml:"capacity"`
	Availability []Interval `json:"availability,omitempty" yaml:"availability,omitempty"`
}

// EffectiveCapacity returns Capacity, treating unset values as 1.
func (r Resource) EffectiveCapacity() int {
	if r.Capacity <= 0 {
		return 1
	}
	return r.Capacity
}

// CapacityOf returns the effective capacity of resource id, or 1 when the
// resource is not in idx.
func CapacityOf(idx map[string]Resource, id string) int {
	if r, ok := idx[id]; ok {
		return r.EffectiveCapacity()
	}
	return 1
}

// Clone returns a deep copy of the resource.
func (r Resource) Clone() Resource {
	c := r
	if r.Availability != nil {
		c.Availability = append([]Interval(nil), r.Availability...)
	}
	return c
}

// Event is a point-in-time occurrence on the timeline.
type Event struct {
	ID           string    `json:"id" yaml:"id"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp"`
	Type         EventType `json:"type" yaml:"type"`
	Severity     Severity  `json:"severity,omitempty" yaml:"severity,omitempty"`
	RelatedTasks []string  `json:"related_tasks,omitempty" yaml:"related_tasks,omitempty"`
}

// Clone returns a deep copy of the event.
func (e Event) Clone() Event {
	c := e
	if e.RelatedTasks != nil {
		c.RelatedTasks = append([]string(nil), e.RelatedTasks...)
	}
	return c
}

// Snapshot is an immutable, validated set of timeline records. Every
// analysis stage reads from a Snapshot and never writes to it.
type Snapshot struct {
	Tasks     []Task
	Resources []Resource
	Events    []Event
}

// TaskIndex returns a map from task ID to task.
func (s Snapshot) TaskIndex() map[string]Task {
	idx := make(map[string]Task, len(s.Tasks))
	for _, t := range s.Tasks {
		idx[t.ID] = t
	}
	return idx
}

// ResourceIndex returns a map from resource ID to resource.
func (s Snapshot) ResourceIndex() map[string]Resource {
	return IndexResources(s.Resources)
}

// IndexResources returns a map from resource ID to resource.
func IndexResources(resources []Resource) map[string]Resource {
	idx := make(map[string]Resource, len(resources))
	for _, r := range resources {
		idx[r.ID] = r
	}
	return idx
}

// CloneTasks deep-copies a task slice.
func CloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}

// Days converts a duration to fractional days.
func Days(d time.Duration) float64 {
	return d.Hours() / 24
}
