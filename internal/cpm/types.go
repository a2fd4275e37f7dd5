package cpm

import "time"

// CriticalEpsilon absorbs rounding noise: a task whose total slack is at
// most this long is on the critical path.
const CriticalEpsilon = time.Second

const day = 24 * time.Hour

// Node holds the computed schedule for a single task.
type Node struct {
	TaskID         string        `json:"task_id" yaml:"task_id"`
	Duration       time.Duration `json:"duration" yaml:"duration"`
	EarliestStart  time.Time     `json:"earliest_start" yaml:"earliest_start"`
	EarliestFinish time.Time     `json:"earliest_finish" yaml:"earliest_finish"`
	LatestStart    time.Time     `json:"latest_start" yaml:"latest_start"`
	LatestFinish   time.Time     `json:"latest_finish" yaml:"latest_finish"`
	TotalSlack     time.Duration `json:"total_slack" yaml:"total_slack"` // never negative
	FreeSlack      time.Duration `json:"free_slack" yaml:"free_slack"`   // never negative
	IsCritical     bool          `json:"is_critical" yaml:"is_critical"`
	Predecessors   []string      `json:"predecessors,omitempty" yaml:"predecessors,omitempty"`
	Successors     []string      `json:"successors,omitempty" yaml:"successors,omitempty"`
}

// TotalSlackDays returns total slack in whole days.
func (n Node) TotalSlackDays() int {
	return int(n.TotalSlack / day)
}

// FreeSlackDays returns free slack in whole days.
func (n Node) FreeSlackDays() int {
	return int(n.FreeSlack / day)
}

func (n Node) clone() Node {
	c := n
	c.Predecessors = append([]string(nil), n.Predecessors...)
	c.Successors = append([]string(nil), n.Successors...)
	return c
}

// Schedule is the result of a critical path analysis.
type Schedule struct {
	Nodes         []Node    `json:"nodes" yaml:"nodes"` // topological order
	Path          []string  `json:"path" yaml:"path"`   // critical task IDs, topological order
	ProjectStart  time.Time `json:"project_start" yaml:"project_start"`
	ProjectFinish time.Time `json:"project_finish" yaml:"project_finish"`

	index map[string]int
}

// Node returns the schedule for a task.
func (s *Schedule) Node(id string) (Node, bool) {
	if s == nil {
		return Node{}, false
	}
	i, ok := s.lookup()[id]
	if !ok {
		return Node{}, false
	}
	return s.Nodes[i], true
}

// IsCritical reports whether id is on the critical path. A nil schedule
// has no critical tasks.
func (s *Schedule) IsCritical(id string) bool {
	n, ok := s.Node(id)
	return ok && n.IsCritical
}

// CriticalSet returns the critical task IDs as a set.
func (s *Schedule) CriticalSet() map[string]bool {
	set := make(map[string]bool)
	if s == nil {
		return set
	}
	for _, id := range s.Path {
		set[id] = true
	}
	return set
}

// Clone returns a deep copy of the schedule.
func (s *Schedule) Clone() *Schedule {
	if s == nil {
		return nil
	}
	c := &Schedule{
		Nodes:         make([]Node, len(s.Nodes)),
		Path:          append([]string(nil), s.Path...),
		ProjectStart:  s.ProjectStart,
		ProjectFinish: s.ProjectFinish,
	}
	for i, n := range s.Nodes {
		c.Nodes[i] = n.clone()
	}
	c.index = buildIndex(c.Nodes)
	return c
}

// lookup returns the id → position index. Schedules decoded from JSON have
// no index yet, so one is built on the fly without caching it.
func (s *Schedule) lookup() map[string]int {
	if s.index != nil {
		return s.index
	}
	return buildIndex(s.Nodes)
}

func buildIndex(nodes []Node) map[string]int {
	idx := make(map[string]int, len(nodes))
	for i, n := range nodes {
		idx[n.TaskID] = i
	}
	return idx
}
