package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/papapumpkin/parsec/internal/config"
	"github.com/papapumpkin/parsec/internal/dag"
	"github.com/papapumpkin/parsec/internal/engine"
	"github.com/papapumpkin/parsec/internal/history"
	"github.com/papapumpkin/parsec/internal/plan"
	"github.com/papapumpkin/parsec/internal/telemetry"
	"github.com/papapumpkin/parsec/internal/ui"
)

const missionPlan = `
name = "eva"

[[tasks]]
id = "prep"
name = "Suit prep"
start = "2025-05-01"
end = "2025-05-02"
resource = "airlock"

[[tasks]]
id = "egress"
name = "Egress"
start = "2025-05-02"
end = "2025-05-04"
resource = "airlock"
predecessors = ["prep"]

[[resources]]
id = "airlock"
name = "Airlock"
capacity = 1
`

const cyclicPlan = `
name = "loop"

[[tasks]]
id = "a"
name = "A"
start = "2025-05-01"
end = "2025-05-02"
predecessors = ["b"]

[[tasks]]
id = "b"
name = "B"
start = "2025-05-01"
end = "2025-05-02"
predecessors = ["a"]
`

func writePlan(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	return path
}

func testConfig(t *testing.T, format string) config.Config {
	t.Helper()
	return config.Config{
		Analysis: config.AnalysisConfig{
			CriticalPath:         true,
			ValidateDependencies: true,
			OptimizeResources:    true,
			DetectConflicts:      true,
			Bottlenecks:          true,
			TimeWindows:          true,
			TimeWindowHours:      engine.DefaultTimeWindowHours,
		},
		Performance: config.PerformanceConfig{
			MaxProcessingTime: engine.DefaultMaxProcessingTime,
			MaxTaskCount:      engine.DefaultMaxTaskCount,
		},
		History: config.HistoryConfig{Path: filepath.Join(t.TempDir(), "history.db")},
		Output:  config.OutputConfig{Format: format},
	}
}

func TestAnalyze_JSON(t *testing.T) {
	cfg := testConfig(t, config.FormatJSON)
	var buf bytes.Buffer
	err := analyze(context.Background(), &buf, ui.New(&buf, false), cfg, analyzeRequest{PlanPath: writePlan(t, "eva.toml", missionPlan)})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	var res engine.Result
	if err := json.Unmarshal(buf.Bytes(), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if res.CriticalPath == nil || strings.Join(res.CriticalPath.Path, ",") != "prep,egress" {
		t.Errorf("critical path = %+v, want prep,egress", res.CriticalPath)
	}
	if res.Statistics.TaskCount != 2 {
		t.Errorf("task count = %d, want 2", res.Statistics.TaskCount)
	}
}

func TestAnalyze_TextWithBaseline(t *testing.T) {
	cfg := testConfig(t, config.FormatText)
	baseline := strings.Replace(missionPlan, `end = "2025-05-04"`, `end = "2025-05-03"`, 1)

	var buf bytes.Buffer
	err := analyze(context.Background(), &buf, ui.New(&buf, false), cfg, analyzeRequest{
		PlanPath:     writePlan(t, "eva.toml", missionPlan),
		BaselinePath: writePlan(t, "base.toml", baseline),
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"parsec: eva", "Critical Path", "Baseline Variance (1)", "egress"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAnalyze_RecordAndTelemetry(t *testing.T) {
	cfg := testConfig(t, config.FormatYAML)
	telemetryPath := filepath.Join(t.TempDir(), "events.jsonl")

	var buf bytes.Buffer
	err := analyze(context.Background(), &buf, ui.New(&buf, false), cfg, analyzeRequest{
		PlanPath:  writePlan(t, "eva.yaml", "name: eva\ntasks:\n  - id: a\n    name: A\n    start: \"2025-05-01\"\n    end: \"2025-05-02\"\n"),
		Record:    true,
		Telemetry: telemetryPath,
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(buf.String(), "task_count: 1") {
		t.Errorf("yaml output missing statistics:\n%s", buf.String())
	}

	store, err := history.Open(context.Background(), cfg.History.Path)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer store.Close()
	runs, err := store.List(context.Background(), "eva", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 1 || runs[0].Tasks != 1 {
		t.Errorf("runs = %+v, want one run with one task", runs)
	}

	data, err := os.ReadFile(telemetryPath)
	if err != nil {
		t.Fatalf("read telemetry: %v", err)
	}
	if !strings.Contains(string(data), `"kind":"run_start"`) || !strings.Contains(string(data), `"kind":"run_done"`) {
		t.Errorf("telemetry missing lifecycle events:\n%s", data)
	}
}

func TestAnalyze_CycleFails(t *testing.T) {
	cyclic := cyclicPlan
	cfg := testConfig(t, config.FormatText)
	telemetryPath := filepath.Join(t.TempDir(), "events.jsonl")
	var buf bytes.Buffer
	err := analyze(context.Background(), &buf, ui.New(&buf, false), cfg, analyzeRequest{
		PlanPath:  writePlan(t, "loop.toml", cyclic),
		Telemetry: telemetryPath,
	})
	if !errors.Is(err, dag.ErrCycle) {
		t.Fatalf("err = %v, want dag.ErrCycle", err)
	}
	data, _ := os.ReadFile(telemetryPath)
	if !strings.Contains(string(data), `"kind":"run_failed"`) {
		t.Errorf("telemetry missing run_failed:\n%s", data)
	}

	p, err := plan.Load(writePlan(t, "loop.toml", cyclic))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := validatePlan(context.Background(), p); !errors.Is(err, dag.ErrCycle) {
		t.Errorf("validatePlan err = %v, want dag.ErrCycle", err)
	}
}

func TestWatchSession_RunIDsPerReload(t *testing.T) {
	cfg := testConfig(t, config.FormatText)
	telemetryPath := filepath.Join(t.TempDir(), "events.jsonl")
	em, err := telemetry.NewEmitter(telemetryPath)
	if err != nil {
		t.Fatalf("NewEmitter: %v", err)
	}

	var buf bytes.Buffer
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := &watchSession{
		cfg:     cfg,
		printer: ui.New(&buf, false),
		proc:    engine.New(engine.WithLogger(quiet)),
		emitter: em,
		logger:  quiet,
	}

	good, err := plan.Load(writePlan(t, "eva.toml", missionPlan))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	broken, err := plan.Load(writePlan(t, "loop.toml", cyclicPlan))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s.analyze(context.Background(), good)
	s.analyze(context.Background(), good)
	s.analyze(context.Background(), broken)
	if err := em.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(telemetryPath)
	if err != nil {
		t.Fatalf("read telemetry: %v", err)
	}
	var starts []string
	kinds := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var evt telemetry.Event
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			t.Fatalf("bad event %q: %v", line, err)
		}
		if evt.RunID == "" || evt.RunID == good.Name || evt.RunID == broken.Name {
			t.Errorf("%s event has run id %q, want a generated id", evt.Kind, evt.RunID)
		}
		switch evt.Kind {
		case telemetry.KindRunStart:
			starts = append(starts, evt.RunID)
		case telemetry.KindRunDone, telemetry.KindRunFailed:
			kinds[evt.RunID] = evt.Kind
		}
	}

	if len(starts) != 3 || starts[0] == starts[1] || starts[1] == starts[2] {
		t.Fatalf("run_start ids = %v, want three distinct ids", starts)
	}
	want := []string{telemetry.KindRunDone, telemetry.KindRunDone, telemetry.KindRunFailed}
	for i, id := range starts {
		if kinds[id] != want[i] {
			t.Errorf("run %d (%s) ended with %q, want %q", i, id, kinds[id], want[i])
		}
	}
	if got := strings.Count(buf.String(), "parsec: eva"); got != 2 {
		t.Errorf("printed %d reports, want 2", got)
	}
}

func TestScalePlan(t *testing.T) {
	path := writePlan(t, "eva.toml", missionPlan)

	var buf bytes.Buffer
	if err := scalePlan(&buf, path, 0.5, engine.Compress); err != nil {
		t.Fatalf("scalePlan: %v", err)
	}
	p, err := plan.Decode(buf.Bytes(), plan.FormatTOML)
	if err != nil {
		t.Fatalf("output is not a TOML plan: %v\n%s", err, buf.String())
	}
	if got := p.Tasks[1].End.Sub(p.Tasks[1].Start); got != 24*time.Hour {
		t.Errorf("egress duration = %v, want 24h", got)
	}
	if p.Name != "eva" || len(p.Resources) != 1 {
		t.Errorf("plan metadata lost: %+v", p)
	}

	err = scalePlan(&buf, path, 0.5, engine.Expand)
	var cfgErr *engine.ConfigurationError
	if !errors.As(err, &cfgErr) || !errors.Is(err, engine.ErrInvalidFactor) {
		t.Errorf("expand by 0.5: err = %v, want ConfigurationError", err)
	}
}

func TestPrintEvent(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{
			name: "stage event",
			line: `{"ts":"2025-05-01T10:11:12Z","kind":"stage_done","run":"r1","stage":"critical_path","data":{"elapsed_us":12}}`,
			want: "[10:11:12] stage_done run=r1 stage=critical_path elapsed_us=12",
		},
		{
			name: "non-map data",
			line: `{"ts":"2025-05-01T10:11:12Z","kind":"warning","task":"a","data":[1,2]}`,
			want: "[10:11:12] warning task=a [1,2]",
		},
		{
			name: "garbage",
			line: `not json`,
			want: "??? not json",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printEvent(&buf, tt.line)
			if got := strings.TrimSpace(buf.String()); got != tt.want {
				t.Errorf("printEvent = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTail_HoldsPartialLine(t *testing.T) {
	var out bytes.Buffer
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()

	tl := &tail{w: &out, reader: bufio.NewReader(r)}
	first := `{"ts":"2025-05-01T00:00:00Z","kind":"run_start"}` + "\n" + `{"ts":"2025-05-01T00:00:01Z","ki`
	if _, err := w.Write([]byte(first)); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.Close()

	if err := tl.drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if got := strings.Count(out.String(), "\n"); got != 1 {
		t.Fatalf("printed %d lines before the partial one completed:\n%s", got, out.String())
	}
	if tl.pending == "" {
		t.Error("partial line was dropped")
	}
}
