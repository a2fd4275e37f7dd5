package conflict

import (
	"reflect"
	"testing"
	"time"

	"github.com/papapumpkin/parsec/internal/timeline"
)

func jan(d int) time.Time {
	return time.Date(2025, time.January, d, 0, 0, 0, 0, time.UTC)
}

func tk(id, res string, start, end time.Time) timeline.Task {
	return timeline.Task{ID: id, Name: id, Start: start, End: end, Resource: res, Priority: timeline.PriorityMedium}
}

func ofType(cs []Conflict, typ Type) []Conflict {
	var out []Conflict
	for _, c := range cs {
		if c.Type == typ {
			out = append(out, c)
		}
	}
	return out
}

func TestDetect_HalfOverlappingPair(t *testing.T) {
	t.Parallel()
	cs := Detect([]timeline.Task{
		tk("a", "r1", jan(1), jan(5)),
		tk("b", "r1", jan(3), jan(7)),
	}, nil, nil)

	over := ofType(cs, ResourceOverallocation)
	if len(over) != 1 {
		t.Fatalf("got %d overallocation conflicts, want 1: %+v", len(over), cs)
	}
	if !reflect.DeepEqual(over[0].TaskIDs, []string{"a", "b"}) {
		t.Errorf("overallocation TaskIDs = %v, want [a b]", over[0].TaskIDs)
	}
	if over[0].Severity != SeverityMedium {
		t.Errorf("severity = %s, want medium", over[0].Severity)
	}
	if over[0].Impact.ScheduleDelayDays != 2 {
		t.Errorf("delay = %d, want 2", over[0].Impact.ScheduleDelayDays)
	}

	pairs := ofType(cs, ScheduleOverlap)
	if len(pairs) != 1 {
		t.Fatalf("got %d overlap conflicts, want 1", len(pairs))
	}
	if !reflect.DeepEqual(pairs[0].TaskIDs, []string{"a", "b"}) {
		t.Errorf("overlap TaskIDs = %v", pairs[0].TaskIDs)
	}
	if pairs[0].Impact.ResourceWastePct != 50 {
		t.Errorf("waste = %v, want 50", pairs[0].Impact.ResourceWastePct)
	}
}

func TestDetect_TouchingIntervalsDoNotConflict(t *testing.T) {
	t.Parallel()
	cs := Detect([]timeline.Task{
		tk("a", "r1", jan(1), jan(3)),
		tk("b", "r1", jan(3), jan(5)),
		tk("c", "r2", jan(1), jan(5)),
	}, nil, nil)
	if len(cs) != 0 {
		t.Errorf("got %d conflicts, want none: %+v", len(cs), cs)
	}
}

func TestDetect_OverallocationSeverity(t *testing.T) {
	t.Parallel()

	crit := tk("crit", "r1", jan(1), jan(4))
	crit.Priority = timeline.PriorityCritical
	high := tk("high", "r2", jan(1), jan(4))
	high.Priority = timeline.PriorityHigh

	cs := Detect([]timeline.Task{
		crit, tk("x", "r1", jan(2), jan(5)),
		high, tk("y", "r2", jan(2), jan(5)),
		tk("p", "r3", jan(1), jan(4)), tk("q", "r3", jan(2), jan(5)),
	}, []timeline.Resource{{ID: "r3", Name: "Pair", Capacity: 2}}, nil)

	over := ofType(cs, ResourceOverallocation)
	if len(over) != 3 {
		t.Fatalf("got %d overallocations, want one per resource", len(over))
	}
	got := map[string]Severity{}
	waste := map[string]float64{}
	for _, c := range over {
		got[c.TaskIDs[0]] = c.Severity
		waste[c.TaskIDs[0]] = c.Impact.ResourceWastePct
	}
	if got["p"] != SeverityMedium {
		t.Errorf("r3 severity = %s, want medium", got["p"])
	}
	if waste["p"] != 0 || waste["crit"] != 50 {
		t.Errorf("waste = %v, want 0 for r3 (within capacity) and 50 for r1", waste)
	}
	if got["crit"] != SeverityCritical {
		t.Errorf("r1 severity = %s, want critical", got["crit"])
	}
	if got["high"] != SeverityHigh {
		t.Errorf("r2 severity = %s, want high", got["high"])
	}
	if n := len(ofType(cs, ScheduleOverlap)); n != 3 {
		t.Errorf("got %d pairwise overlaps, want 3", n)
	}
}

func TestDetect_LargestOverlapGroup(t *testing.T) {
	t.Parallel()
	cs := Detect([]timeline.Task{
		tk("long", "r", jan(1), jan(10)),
		tk("b", "r", jan(2), jan(4)),
		tk("c", "r", jan(3), jan(6)),
		tk("d", "r", jan(7), jan(8)),
	}, nil, nil)

	over := ofType(cs, ResourceOverallocation)
	if len(over) != 1 {
		t.Fatalf("got %d overallocations, want 1", len(over))
	}
	if want := []string{"b", "c", "long"}; !reflect.DeepEqual(over[0].TaskIDs, want) {
		t.Errorf("TaskIDs = %v, want %v", over[0].TaskIDs, want)
	}
	// Shared window Jan 3..Jan 4 (1 day) × (3-1).
	if over[0].Impact.ScheduleDelayDays != 2 {
		t.Errorf("delay = %d, want 2", over[0].Impact.ScheduleDelayDays)
	}
	if n := len(ofType(cs, ScheduleOverlap)); n != 4 {
		t.Errorf("got %d pairwise overlaps, want 4", n)
	}
}

func TestDetect_DependencyViolation(t *testing.T) {
	t.Parallel()
	y := tk("y", "", jan(1), jan(5).Add(12*time.Hour))
	x := tk("x", "", jan(3), jan(8))
	x.Predecessors = []string{"y", "ghost"}

	cs := Detect([]timeline.Task{y, x}, nil, nil)
	deps := ofType(cs, DependencyViolation)
	if len(deps) != 1 {
		t.Fatalf("got %d dependency violations, want 1", len(deps))
	}
	c := deps[0]
	if c.Severity != SeverityHigh {
		t.Errorf("severity = %s, want high", c.Severity)
	}
	if !reflect.DeepEqual(c.TaskIDs, []string{"y", "x"}) {
		t.Errorf("TaskIDs = %v, want [y x]", c.TaskIDs)
	}
	// 2.5 days of overlap rounds up.
	if c.Impact.ScheduleDelayDays != 3 {
		t.Errorf("delay = %d, want 3", c.Impact.ScheduleDelayDays)
	}
}

func TestDetect_MilestoneDelay(t *testing.T) {
	t.Parallel()
	tasks := []timeline.Task{
		tk("early", "", jan(1), jan(4)),
		tk("late", "", jan(2), jan(7)),
		tk("later", "", jan(3), jan(8).Add(time.Hour)),
		tk("unrelated", "", jan(1), jan(20)),
	}
	events := []timeline.Event{
		{ID: "ms", Type: timeline.EventMilestone, Timestamp: jan(5), RelatedTasks: []string{"early", "late", "later", "missing"}},
		{ID: "alert", Type: timeline.EventAlert, Timestamp: jan(2), RelatedTasks: []string{"unrelated"}},
	}

	cs := Detect(tasks, nil, events)
	if len(cs) != 1 {
		t.Fatalf("got %d conflicts, want 1: %+v", len(cs), cs)
	}
	c := cs[0]
	if c.Type != MilestoneDelay || c.Severity != SeverityCritical {
		t.Errorf("type/severity = %s/%s", c.Type, c.Severity)
	}
	if !reflect.DeepEqual(c.TaskIDs, []string{"late", "later"}) {
		t.Errorf("TaskIDs = %v", c.TaskIDs)
	}
	if c.Impact.ScheduleDelayDays != 4 {
		t.Errorf("delay = %d, want 4 (3 days 1 hour rounds up)", c.Impact.ScheduleDelayDays)
	}
}

func TestDetect_SortedBySeverity(t *testing.T) {
	t.Parallel()
	y := tk("y", "", jan(1), jan(5))
	x := tk("x", "", jan(3), jan(8))
	x.Predecessors = []string{"y"}

	cs := Detect([]timeline.Task{
		tk("a", "r", jan(1), jan(3)), tk("b", "r", jan(2), jan(4)),
		y, x,
	}, nil, []timeline.Event{{ID: "m", Type: timeline.EventMilestone, Timestamp: jan(6), RelatedTasks: []string{"x"}}})

	for i := 1; i < len(cs); i++ {
		if cs[i].Severity.Rank() > cs[i-1].Severity.Rank() {
			t.Fatalf("conflicts not sorted by severity: %s after %s", cs[i].Severity, cs[i-1].Severity)
		}
	}
	if cs[0].Type != MilestoneDelay {
		t.Errorf("first conflict = %s, want milestone_delay", cs[0].Type)
	}
	// Equal severities keep detection order.
	if cs[len(cs)-2].Type != ResourceOverallocation || cs[len(cs)-1].Type != ScheduleOverlap {
		t.Errorf("medium conflicts out of detection order: %s, %s", cs[len(cs)-2].Type, cs[len(cs)-1].Type)
	}
}

func TestDetect_Deterministic(t *testing.T) {
	t.Parallel()
	tasks := []timeline.Task{
		tk("a", "r1", jan(1), jan(5)), tk("b", "r1", jan(2), jan(6)), tk("c", "r1", jan(3), jan(7)),
		tk("d", "r2", jan(1), jan(5)), tk("e", "r2", jan(2), jan(6)),
	}
	first := Detect(tasks, nil, nil)
	for i := 0; i < 10; i++ {
		if got := Detect(tasks, nil, nil); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs from first run", i)
		}
	}
}
