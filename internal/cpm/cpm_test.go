package cpm

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/papapumpkin/parsec/internal/dag"
	"github.com/papapumpkin/parsec/internal/timeline"
)

func jan(d int) time.Time {
	return time.Date(2025, time.January, d, 0, 0, 0, 0, time.UTC)
}

func mkTask(id string, start, end int, preds ...string) timeline.Task {
	return timeline.Task{ID: id, Name: id, Start: jan(start), End: jan(end), Predecessors: preds}
}

func analyze(t *testing.T, tasks ...timeline.Task) *Schedule {
	t.Helper()
	g, _, err := dag.FromTasks(tasks)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	s, err := Analyze(tasks, g)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	return s
}

func assertNode(t *testing.T, s *Schedule, id string, es, ef, ls, lf int, slackDays int, critical bool) {
	t.Helper()
	n, ok := s.Node(id)
	if !ok {
		t.Fatalf("task %s: missing from schedule", id)
	}
	if !n.EarliestStart.Equal(jan(es)) {
		t.Errorf("task %s: ES = %v, want Jan %d", id, n.EarliestStart, es)
	}
	if !n.EarliestFinish.Equal(jan(ef)) {
		t.Errorf("task %s: EF = %v, want Jan %d", id, n.EarliestFinish, ef)
	}
	if !n.LatestStart.Equal(jan(ls)) {
		t.Errorf("task %s: LS = %v, want Jan %d", id, n.LatestStart, ls)
	}
	if !n.LatestFinish.Equal(jan(lf)) {
		t.Errorf("task %s: LF = %v, want Jan %d", id, n.LatestFinish, lf)
	}
	if n.TotalSlackDays() != slackDays {
		t.Errorf("task %s: total slack = %d days, want %d", id, n.TotalSlackDays(), slackDays)
	}
	if n.IsCritical != critical {
		t.Errorf("task %s: critical = %v, want %v", id, n.IsCritical, critical)
	}
}

func TestAnalyze_StrictChain(t *testing.T) {
	t.Parallel()
	s := analyze(t,
		mkTask("a", 1, 5),
		mkTask("b", 5, 10, "a"),
		mkTask("c", 10, 15, "b"),
	)

	assertNode(t, s, "a", 1, 5, 1, 5, 0, true)
	assertNode(t, s, "b", 5, 10, 5, 10, 0, true)
	assertNode(t, s, "c", 10, 15, 10, 15, 0, true)

	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(s.Path, want) {
		t.Errorf("Path = %v, want %v", s.Path, want)
	}
	if !s.ProjectStart.Equal(jan(1)) || !s.ProjectFinish.Equal(jan(15)) {
		t.Errorf("project span = %v..%v, want Jan 1..Jan 15", s.ProjectStart, s.ProjectFinish)
	}
}

func TestAnalyze_SlackOnShorterBranch(t *testing.T) {
	t.Parallel()
	// a (4 days) and b (2 days) both feed c.
	s := analyze(t,
		mkTask("a", 1, 5),
		mkTask("b", 1, 3),
		mkTask("c", 10, 12, "a", "b"),
	)

	// c starts as soon as its latest predecessor finishes.
	assertNode(t, s, "c", 5, 7, 5, 7, 0, true)
	assertNode(t, s, "a", 1, 5, 1, 5, 0, true)
	assertNode(t, s, "b", 1, 3, 3, 5, 2, false)

	// Difference between the finish-to-c-start offsets of a and b.
	aOffset := jan(10).Sub(jan(5))
	bOffset := jan(10).Sub(jan(3))
	b, _ := s.Node("b")
	if b.TotalSlack != bOffset-aOffset {
		t.Errorf("b total slack = %v, want %v", b.TotalSlack, bOffset-aOffset)
	}
	if b.FreeSlackDays() != 2 {
		t.Errorf("b free slack = %d days, want 2", b.FreeSlackDays())
	}
	if s.IsCritical("b") {
		t.Error("b reported critical")
	}
}

func TestAnalyze_DeclaredGapCollapses(t *testing.T) {
	t.Parallel()
	// b is declared to start on Jan 5 but only waits on a.
	s := analyze(t,
		mkTask("a", 1, 2),
		mkTask("b", 5, 6, "a"),
	)
	assertNode(t, s, "b", 2, 3, 2, 3, 0, true)
}

func TestAnalyze_IndependentSinksAreCritical(t *testing.T) {
	t.Parallel()
	// Every task without successors closes at its own earliest finish.
	s := analyze(t,
		mkTask("long", 1, 10),
		mkTask("short", 1, 2),
	)
	assertNode(t, s, "long", 1, 10, 1, 10, 0, true)
	assertNode(t, s, "short", 1, 2, 1, 2, 0, true)
}

func TestAnalyze_FreeSlackUsesEarliestSuccessor(t *testing.T) {
	t.Parallel()
	//   a ─┬─> b ─> d
	//      └──────> c (c also waits on x)
	s := analyze(t,
		mkTask("a", 1, 2),
		mkTask("x", 1, 4),
		mkTask("b", 2, 3, "a"),
		mkTask("c", 4, 5, "a", "x"),
		mkTask("d", 3, 8, "b"),
	)
	a, _ := s.Node("a")
	// Successors b (ES Jan 2) and c (ES Jan 4): the earliest is b.
	if a.FreeSlack != 0 {
		t.Errorf("a free slack = %v, want 0", a.FreeSlack)
	}
	if !reflect.DeepEqual(a.Successors, []string{"b", "c"}) {
		t.Errorf("a successors = %v", a.Successors)
	}
	c, _ := s.Node("c")
	if !reflect.DeepEqual(c.Predecessors, []string{"a", "x"}) {
		t.Errorf("c predecessors = %v", c.Predecessors)
	}
}

func TestAnalyze_ZeroDuration(t *testing.T) {
	t.Parallel()
	gate := timeline.Task{ID: "gate", Name: "gate", Start: jan(3), End: jan(3), Predecessors: []string{"a"}}
	s := analyze(t, mkTask("a", 1, 3), gate, mkTask("b", 3, 4, "gate"))

	n, _ := s.Node("gate")
	if n.Duration != 0 || !n.EarliestStart.Equal(n.EarliestFinish) {
		t.Errorf("gate ES/EF = %v/%v, want equal", n.EarliestStart, n.EarliestFinish)
	}
	if !n.IsCritical || n.TotalSlack != 0 {
		t.Errorf("gate critical=%v slack=%v, want critical with no slack", n.IsCritical, n.TotalSlack)
	}
}

func TestAnalyze_Cycle(t *testing.T) {
	t.Parallel()
	tasks := []timeline.Task{mkTask("a", 1, 2, "b"), mkTask("b", 1, 2, "a")}
	g, _, err := dag.FromTasks(tasks)
	if err != nil {
		t.Fatalf("FromTasks: %v", err)
	}
	if _, err := Analyze(tasks, g); !errors.Is(err, dag.ErrCycle) {
		t.Errorf("Analyze err = %v, want ErrCycle", err)
	}
}

func TestAnalyze_TaskMissingFromGraph(t *testing.T) {
	t.Parallel()
	g, _, _ := dag.FromTasks([]timeline.Task{mkTask("a", 1, 2)})
	_, err := Analyze([]timeline.Task{mkTask("a", 1, 2), mkTask("b", 1, 2)}, g)
	if !errors.Is(err, dag.ErrNodeNotFound) {
		t.Errorf("Analyze err = %v, want ErrNodeNotFound", err)
	}
}

func TestSchedule_Clone(t *testing.T) {
	t.Parallel()
	s := analyze(t, mkTask("a", 1, 2), mkTask("b", 2, 3, "a"))
	c := s.Clone()
	c.Nodes[0].Successors[0] = "mutated"
	c.Path[0] = "mutated"

	a, _ := s.Node("a")
	if a.Successors[0] != "b" || s.Path[0] != "a" {
		t.Error("Clone shares slices with the original")
	}
	if _, ok := c.Node("b"); !ok {
		t.Error("clone lost its index")
	}
	var nilSched *Schedule
	if nilSched.Clone() != nil || nilSched.IsCritical("a") {
		t.Error("nil schedule should clone to nil and have no critical tasks")
	}
}
