package timeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Validate checks raw tasks, resources and events and returns sanitized deep
// copies. The first problem found is returned as a *ValidationError; no
// partial snapshot is returned alongside an error.
//
// Sanitizing is limited to silent corrections: ids and names are trimmed,
// progress is clamped into [0,100], a zero capacity becomes 1 and empty
// status/priority take their defaults.
func Validate(tasks []Task, resources []Resource, events []Event) (Snapshot, error) {
	snap := Snapshot{
		Tasks:     make([]Task, 0, len(tasks)),
		Resources: make([]Resource, 0, len(resources)),
		Events:    make([]Event, 0, len(events)),
	}

	seen := make(map[string]bool, len(tasks))
	for i, t := range tasks {
		clean, err := sanitizeTask(t)
		if err != nil {
			err.Index = i
			return Snapshot{}, err
		}
		if seen[clean.ID] {
			return Snapshot{}, &ValidationError{Kind: KindTask, Index: i, ID: clean.ID, Field: "id", Err: ErrDuplicateID}
		}
		seen[clean.ID] = true
		snap.Tasks = append(snap.Tasks, clean)
	}

	seen = make(map[string]bool, len(resources))
	for i, r := range resources {
		clean, err := sanitizeResource(r)
		if err != nil {
			err.Index = i
			return Snapshot{}, err
		}
		if seen[clean.ID] {
			return Snapshot{}, &ValidationError{Kind: KindResource, Index: i, ID: clean.ID, Field: "id", Err: ErrDuplicateID}
		}
		seen[clean.ID] = true
		snap.Resources = append(snap.Resources, clean)
	}

	seen = make(map[string]bool, len(events))
	for i, e := range events {
		clean, err := sanitizeEvent(e)
		if err != nil {
			err.Index = i
			return Snapshot{}, err
		}
		if seen[clean.ID] {
			return Snapshot{}, &ValidationError{Kind: KindEvent, Index: i, ID: clean.ID, Field: "id", Err: ErrDuplicateID}
		}
		seen[clean.ID] = true
		snap.Events = append(snap.Events, clean)
	}

	return snap, nil
}

// ValidateTask validates and sanitizes a single task record. Uniqueness is
// the caller's concern.
func ValidateTask(t Task) (Task, error) {
	clean, err := sanitizeTask(t)
	if err != nil {
		return Task{}, err
	}
	return clean, nil
}

func sanitizeTask(t Task) (Task, *ValidationError) {
	c := t.Clone()
	c.ID = strings.TrimSpace(c.ID)
	c.Name = strings.TrimSpace(c.Name)

	if c.ID == "" {
		return Task{}, &ValidationError{Kind: KindTask, Field: "id", Err: ErrMissingField}
	}
	fail := func(field string, err error) *ValidationError {
		return &ValidationError{Kind: KindTask, ID: c.ID, Field: field, Err: err}
	}
	if c.Name == "" {
		return Task{}, fail("name", ErrMissingField)
	}
	if !finite(c.Start) {
		return Task{}, fail("start", ErrInvalidTimestamp)
	}
	if !finite(c.End) {
		return Task{}, fail("end", ErrInvalidTimestamp)
	}
	if !c.Start.Before(c.End) {
		return Task{}, fail("end", ErrInvalidRange)
	}

	status, err := ParseStatus(string(c.Status))
	if err != nil {
		return Task{}, fail("status", err)
	}
	c.Status = status
	priority, err := ParsePriority(string(c.Priority))
	if err != nil {
		return Task{}, fail("priority", err)
	}
	c.Priority = priority

	c.Progress = ClampProgress(c.Progress)
	c.Resource = strings.TrimSpace(c.Resource)

	for i, p := range c.Predecessors {
		p = strings.TrimSpace(p)
		if p == "" {
			return Task{}, fail(fmt.Sprintf("predecessors[%d]", i), ErrMissingField)
		}
		c.Predecessors[i] = p
	}
	return c, nil
}

func sanitizeResource(r Resource) (Resource, *ValidationError) {
	c := r.Clone()
	c.ID = strings.TrimSpace(c.ID)
	c.Name = strings.TrimSpace(c.Name)

	if c.ID == "" {
		return Resource{}, &ValidationError{Kind: KindResource, Field: "id", Err: ErrMissingField}
	}
	if c.Name == "" {
		return Resource{}, &ValidationError{Kind: KindResource, ID: c.ID, Field: "name", Err: ErrMissingField}
	}
	if c.Capacity < 0 {
		return Resource{}, &ValidationError{
			Kind: KindResource, ID: c.ID, Field: "capacity",
			Err: fmt.Errorf("%w: %d", ErrInvalidCapacity, c.Capacity),
		}
	}
	if c.Capacity == 0 {
		c.Capacity = 1
	}
	for i, w := range c.Availability {
		if !finite(w.Start) || !finite(w.End) {
			return Resource{}, &ValidationError{
				Kind: KindResource, ID: c.ID, Field: fmt.Sprintf("availability[%d]", i), Err: ErrInvalidTimestamp,
			}
		}
		if !w.Start.Before(w.End) {
			return Resource{}, &ValidationError{
				Kind: KindResource, ID: c.ID, Field: fmt.Sprintf("availability[%d]", i), Err: ErrInvalidRange,
			}
		}
	}
	return c, nil
}

func sanitizeEvent(e Event) (Event, *ValidationError) {
	c := e.Clone()
	c.ID = strings.TrimSpace(c.ID)

	if c.ID == "" {
		return Event{}, &ValidationError{Kind: KindEvent, Field: "id", Err: ErrMissingField}
	}
	fail := func(field string, err error) *ValidationError {
		return &ValidationError{Kind: KindEvent, ID: c.ID, Field: field, Err: err}
	}
	if !finite(c.Timestamp) {
		return Event{}, fail("timestamp", ErrInvalidTimestamp)
	}
	typ, err := ParseEventType(string(c.Type))
	if err != nil {
		return Event{}, fail("type", err)
	}
	c.Type = typ
	sev, err := ParseSeverity(string(c.Severity))
	if err != nil {
		return Event{}, fail("severity", err)
	}
	c.Severity = sev
	return c, nil
}

// ClampProgress forces a progress percentage into [0,100]. NaN becomes 0.
func ClampProgress(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// finite reports whether t is a usable instant: set, and within the years
// representable by RFC 3339.
func finite(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	y := t.Year()
	return y >= 1 && y <= 9999
}

var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseInstant parses a timestamp string. RFC 3339 (with or without
// fractional seconds), zone-less date-times and plain dates are accepted,
// as are integer Unix milliseconds. Zone-less values are read as UTC.
func ParseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidTimestamp)
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		t := time.UnixMilli(ms).UTC()
		if finite(t) {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}
