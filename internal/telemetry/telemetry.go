// Package telemetry provides a JSONL event stream for analysis runs. Every
// run start, pipeline stage, warning and outcome is recorded as a structured
// JSON event so that runs can be audited and compared after the fact.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/papapumpkin/parsec/internal/engine"
)

// Event kinds identify the type of telemetry event.
const (
	KindRunStart     = "run_start"
	KindStageDone    = "stage_done"
	KindWarning      = "warning"
	KindRunDone      = "run_done"
	KindRunFailed    = "run_failed"
	KindPlanReloaded = "plan_reloaded"
)

// Event represents a single telemetry record. Each event carries a timestamp,
// a kind tag, and optional context identifiers (run, stage, task) along with
// arbitrary structured data.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	RunID     string    `json:"run,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	TaskID    string    `json:"task,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// RunSummary is the payload of a run_done event.
type RunSummary struct {
	Tasks        int     `json:"tasks"`
	CriticalPath int     `json:"critical_path"`
	Conflicts    int     `json:"conflicts"`
	Bottlenecks  int     `json:"bottlenecks"`
	Warnings     int     `json:"warnings"`
	Progress     float64 `json:"progress"`
	ElapsedMS    int64   `json:"elapsed_ms"`
}

// Emitter writes telemetry events to a JSONL file. It is safe for concurrent
// use by multiple goroutines. A nil *Emitter is a valid no-op emitter.
type Emitter struct {
	file *os.File
	enc  *json.Encoder
	mu   sync.Mutex
	now  func() time.Time
}

// NewEmitter creates a new Emitter that writes JSONL events to the file at
// path. The file is created if it does not exist, or appended to if it does.
func NewEmitter(path string) (*Emitter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	return &Emitter{
		file: f,
		enc:  json.NewEncoder(f),
		now:  time.Now,
	}, nil
}

// Emit writes a single event to the JSONL file. A zero timestamp is set to
// the current time. Calling Emit on a nil Emitter is a no-op.
func (e *Emitter) Emit(evt Event) error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if evt.Timestamp.IsZero() {
		evt.Timestamp = e.now().UTC()
	}
	if err := e.enc.Encode(evt); err != nil {
		return fmt.Errorf("telemetry: encode event: %w", err)
	}
	return nil
}

// RunStarted records the start of a run over the named plan.
func (e *Emitter) RunStarted(runID, planName string, tasks int) error {
	return e.Emit(Event{
		Kind:  KindRunStart,
		RunID: runID,
		Data:  map[string]any{"plan": planName, "tasks": tasks},
	})
}

// RunFinished records one stage_done event per executed stage, one warning
// event per warning and a closing run_done summary.
func (e *Emitter) RunFinished(runID string, res *engine.Result) error {
	if e == nil || res == nil {
		return nil
	}
	for _, st := range res.Statistics.Stages {
		if err := e.Emit(Event{
			Kind:  KindStageDone,
			RunID: runID,
			Stage: st.Stage,
			Data:  map[string]int64{"elapsed_us": st.Duration.Microseconds()},
		}); err != nil {
			return err
		}
	}
	for _, w := range res.Warnings {
		if err := e.Emit(Event{
			Kind:   KindWarning,
			RunID:  runID,
			TaskID: w.TaskID,
			Data:   map[string]string{"kind": string(w.Kind), "message": w.Message},
		}); err != nil {
			return err
		}
	}
	summary := RunSummary{
		Tasks:       res.Statistics.TaskCount,
		Conflicts:   res.Statistics.ConflictCount,
		Bottlenecks: res.Statistics.BottleneckCount,
		Warnings:    len(res.Warnings),
		Progress:    res.Progress.OverallProgress,
		ElapsedMS:   res.Statistics.ProcessingTime.Milliseconds(),
	}
	if res.CriticalPath != nil {
		summary.CriticalPath = len(res.CriticalPath.Path)
	}
	return e.Emit(Event{Kind: KindRunDone, RunID: runID, Data: summary})
}

// RunFailed records a run that ended with err.
func (e *Emitter) RunFailed(runID string, err error) error {
	return e.Emit(Event{
		Kind:  KindRunFailed,
		RunID: runID,
		Data:  map[string]string{"error": err.Error()},
	})
}

// Close flushes and closes the underlying file. Calling Close on a nil
// Emitter is a no-op.
func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.file.Close(); err != nil {
		return fmt.Errorf("telemetry: close: %w", err)
	}
	return nil
}
