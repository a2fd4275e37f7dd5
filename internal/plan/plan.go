// Package plan reads and writes mission plan files. A plan file lists the
// tasks, resources and events of one timeline in TOML, YAML or JSON, with
// timestamps written as strings.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/papapumpkin/parsec/internal/engine"
	"github.com/papapumpkin/parsec/internal/timeline"
)

// ErrUnknownFormat is returned for a file extension or format name that is
// not one of toml, yaml or json.
var ErrUnknownFormat = errors.New("unknown plan format")

// Format is a plan file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
}

// Document is the on-disk shape of a plan.
type Document struct {
	Schema    string           `toml:"schema" yaml:"schema" json:"schema"`
	Name      string           `toml:"name" yaml:"name" json:"name"`
	Tasks     []TaskRecord     `toml:"tasks" yaml:"tasks" json:"tasks"`
	Resources []ResourceRecord `toml:"resources,omitempty" yaml:"resources,omitempty" json:"resources,omitempty"`
	Events    []EventRecord    `toml:"events,omitempty" yaml:"events,omitempty" json:"events,omitempty"`
}

// TaskRecord is a task as written in a plan file.
type TaskRecord struct {
	ID           string            `toml:"id" yaml:"id" json:"id"`
	Name         string            `toml:"name" yaml:"name" json:"name"`
	Start        string            `toml:"start" yaml:"start" json:"start"`
	End          string            `toml:"end" yaml:"end" json:"end"`
	Progress     float64           `toml:"progress,omitempty" yaml:"progress,omitempty" json:"progress,omitempty"`
	Status       string            `toml:"status,omitempty" yaml:"status,omitempty" json:"status,omitempty"`
	Priority     string            `toml:"priority,omitempty" yaml:"priority,omitempty" json:"priority,omitempty"`
	Resource     string            `toml:"resource,omitempty" yaml:"resource,omitempty" json:"resource,omitempty"`
	Predecessors []string          `toml:"predecessors,omitempty" yaml:"predecessors,omitempty" json:"predecessors,omitempty"`
	Metadata     map[string]string `toml:"metadata,omitempty" yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// ResourceRecord is a resource as written in a plan file.
type ResourceRecord struct {
	ID           string           `toml:"id" yaml:"id" json:"id"`
	Name         string           `toml:"name" yaml:"name" json:"name"`
	Type         string           `toml:"type,omitempty" yaml:"type,omitempty" json:"type,omitempty"`
	Capacity     int              `toml:"capacity,omitempty" yaml:"capacity,omitempty" json:"capacity,omitempty"`
	Availability []IntervalRecord `toml:"availability,omitempty" yaml:"availability,omitempty" json:"availability,omitempty"`
}

// IntervalRecord is an availability window.
type IntervalRecord struct {
	Start string `toml:"start" yaml:"start" json:"start"`
	End   string `toml:"end" yaml:"end" json:"end"`
}

// EventRecord is an event as written in a plan file.
type EventRecord struct {
	ID           string   `toml:"id" yaml:"id" json:"id"`
	Timestamp    string   `toml:"timestamp" yaml:"timestamp" json:"timestamp"`
	Type         string   `toml:"type" yaml:"type" json:"type"`
	Severity     string   `toml:"severity,omitempty" yaml:"severity,omitempty" json:"severity,omitempty"`
	RelatedTasks []string `toml:"related_tasks,omitempty" yaml:"related_tasks,omitempty" json:"related_tasks,omitempty"`
}

// Plan is a decoded plan file. Records are converted but not validated;
// validation is the engine's first stage.
type Plan struct {
	Name      string
	Schema    *semver.Version
	Tasks     []timeline.Task
	Resources []timeline.Resource
	Events    []timeline.Event
}

// Input returns the plan as engine input.
func (p *Plan) Input() engine.Input {
	return engine.Input{Tasks: p.Tasks, Resources: p.Resources, Events: p.Events}
}

// Load reads and decodes the plan file at path.
func Load(path string) (*Plan, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plan: reading %s: %w", path, err)
	}
	p, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("plan: %s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

// Decode parses plan data in the given format.
func Decode(data []byte, format Format) (*Plan, error) {
	var doc Document
	var err error
	switch format {
	case FormatTOML:
		err = toml.Unmarshal(data, &doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", format, err)
	}
	return doc.Plan()
}

// Plan converts the document, parsing its timestamps and checking the
// schema version.
func (d Document) Plan() (*Plan, error) {
	v, err := CheckSchema(d.Schema)
	if err != nil {
		return nil, err
	}
	p := &Plan{Name: d.Name, Schema: v}

	for i, r := range d.Tasks {
		start, err := parseTime(r.Start, "tasks", i, "start")
		if err != nil {
			return nil, err
		}
		end, err := parseTime(r.End, "tasks", i, "end")
		if err != nil {
			return nil, err
		}
		p.Tasks = append(p.Tasks, timeline.Task{
			ID:           r.ID,
			Name:         r.Name,
			Start:        start,
			End:          end,
			Progress:     r.Progress,
			Status:       timeline.Status(r.Status),
			Priority:     timeline.Priority(r.Priority),
			Resource:     r.Resource,
			Predecessors: r.Predecessors,
			Metadata:     r.Metadata,
		})
	}

	for i, r := range d.Resources {
		res := timeline.Resource{ID: r.ID, Name: r.Name, Type: r.Type, Capacity: r.Capacity}
		for j, a := range r.Availability {
			start, err := parseTime(a.Start, "resources", i, fmt.Sprintf("availability[%d].start", j))
			if err != nil {
				return nil, err
			}
			end, err := parseTime(a.End, "resources", i, fmt.Sprintf("availability[%d].end", j))
			if err != nil {
				return nil, err
			}
			res.Availability = append(res.Availability, timeline.Interval{Start: start, End: end})
		}
		p.Resources = append(p.Resources, res)
	}

	for i, r := range d.Events {
		ts, err := parseTime(r.Timestamp, "events", i, "timestamp")
		if err != nil {
			return nil, err
		}
		p.Events = append(p.Events, timeline.Event{
			ID:           r.ID,
			Timestamp:    ts,
			Type:         timeline.EventType(r.Type),
			Severity:     timeline.Severity(r.Severity),
			RelatedTasks: r.RelatedTasks,
		})
	}
	return p, nil
}

// parseTime leaves an empty value as the zero time so that the validator
// reports the missing timestamp against the record.
func parseTime(s, section string, i int, field string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	t, err := timeline.ParseInstant(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s[%d].%s: %w", section, i, field, err)
	}
	return t, nil
}

// FromTimeline builds a document from timeline records, writing
// timestamps as RFC 3339.
func FromTimeline(name string, tasks []timeline.Task, resources []timeline.Resource, events []timeline.Event) Document {
	doc := Document{Schema: CurrentSchema, Name: name}
	for _, t := range tasks {
		doc.Tasks = append(doc.Tasks, TaskRecord{
			ID:           t.ID,
			Name:         t.Name,
			Start:        formatTime(t.Start),
			End:          formatTime(t.End),
			Progress:     t.Progress,
			Status:       string(t.Status),
			Priority:     string(t.Priority),
			Resource:     t.Resource,
			Predecessors: t.Predecessors,
			Metadata:     t.Metadata,
		})
	}
	for _, r := range resources {
		rec := ResourceRecord{ID: r.ID, Name: r.Name, Type: r.Type, Capacity: r.Capacity}
		for _, a := range r.Availability {
			rec.Availability = append(rec.Availability, IntervalRecord{Start: formatTime(a.Start), End: formatTime(a.End)})
		}
		doc.Resources = append(doc.Resources, rec)
	}
	for _, e := range events {
		doc.Events = append(doc.Events, EventRecord{
			ID:           e.ID,
			Timestamp:    formatTime(e.Timestamp),
			Type:         string(e.Type),
			Severity:     string(e.Severity),
			RelatedTasks: e.RelatedTasks,
		})
	}
	return doc
}

// Encode writes the document in the given format.
func (d Document) Encode(format Format) ([]byte, error) {
	switch format {
	case FormatTOML:
		return toml.Marshal(d)
	case FormatYAML:
		return yaml.Marshal(d)
	case FormatJSON:
		return json.MarshalIndent(d, "", "  ")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
