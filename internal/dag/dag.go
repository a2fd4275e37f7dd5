// Package dag builds the task dependency graph for timeline analysis. It
// supports cycle detection with a named offending task, priority-aware
// topological sorting, transitive dependency queries and partitioning into
// independent workstreams.
package dag

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/papapumpkin/parsec/internal/timeline"
)

// ErrCycle is returned when the graph contains a dependency cycle.
var ErrCycle = errors.New("cycle detected")

// ErrNodeNotFound is returned when an operation references a non-existent node.
var ErrNodeNotFound = errors.New("node not found")

// ErrDuplicateNode is returned when adding a node that already exists.
var ErrDuplicateNode = errors.New("duplicate node")

// CycleError names one task that sits on a dependency cycle together with
// the cycle itself, starting and ending at that task.
type CycleError struct {
	TaskID string
	Path   []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: task %s (%s)", ErrCycle, e.TaskID, strings.Join(e.Path, " → "))
}

// Unwrap returns ErrCycle so callers can match with errors.Is.
func (e *CycleError) Unwrap() error {
	return ErrCycle
}

// DanglingRef is a predecessor reference to a task that is not in the set.
// It is a warning: the missing predecessor imposes no constraint.
type DanglingRef struct {
	TaskID  string
	Missing string
}

// Node is a task in the dependency graph.
type Node struct {
	ID       string
	Priority int // higher value = higher priority
}

// DAG is a task dependency graph. Edges point from a task to its
// predecessors: if B lists A as a predecessor, there is an edge B → A and
// A's successor set contains B.
//
// Cycles are not rejected on insertion; call DetectCycle after building.
type DAG struct {
	nodes map[string]*Node
	// adjacency maps nodeID → set of predecessor IDs (forward edges).
	adjacency map[string]map[string]bool
	// reverse maps nodeID → set of successor IDs (backward edges).
	reverse map[string]map[string]bool
}

// New creates an empty DAG.
func New() *DAG {
	return &DAG{
		nodes:     make(map[string]*Node),
		adjacency: make(map[string]map[string]bool),
		reverse:   make(map[string]map[string]bool),
	}
}

// FromTasks builds a graph from task predecessor lists. Predecessor ids that
// do not name a task in the set are returned as dangling references and left
// out of the graph. Duplicate task ids return ErrDuplicateNode.
func FromTasks(tasks []timeline.Task) (*DAG, []DanglingRef, error) {
	d := New()
	for _, t := range tasks {
		if err := d.AddNode(t.ID, t.Priority.Rank()); err != nil {
			return nil, nil, err
		}
	}

	var dangling []DanglingRef
	for _, t := range tasks {
		for _, pred := range t.Predecessors {
			if _, ok := d.nodes[pred]; !ok {
				dangling = append(dangling, DanglingRef{TaskID: t.ID, Missing: pred})
				continue
			}
			if err := d.AddEdge(t.ID, pred); err != nil {
				return nil, nil, err
			}
		}
	}
	return d, dangling, nil
}

// AddNode adds a node with the given ID and priority. Returns
// ErrDuplicateNode if a node with that ID already exists.
func (d *DAG) AddNode(id string, priority int) error {
	if _, exists := d.nodes[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, id)
	}
	d.nodes[id] = &Node{ID: id, Priority: priority}
	d.adjacency[id] = make(map[string]bool)
	d.reverse[id] = make(map[string]bool)
	return nil
}

// AddEdge records that task from depends on task to. Both nodes must
// already exist. Duplicate edges are ignored.
func (d *DAG) AddEdge(from, to string) error {
	if _, ok := d.nodes[from]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, from)
	}
	if _, ok := d.nodes[to]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, to)
	}
	d.adjacency[from][to] = true
	d.reverse[to][from] = true
	return nil
}

// Remove removes a node and all its associated edges from the DAG.
// Returns ErrNodeNotFound if the node does not exist.
func (d *DAG) Remove(id string) error {
	if _, ok := d.nodes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	for pred := range d.adjacency[id] {
		delete(d.reverse[pred], id)
	}
	delete(d.adjacency, id)

	for succ := range d.reverse[id] {
		delete(d.adjacency[succ], id)
	}
	delete(d.reverse, id)

	delete(d.nodes, id)
	return nil
}

// Node returns the node with the given ID, or nil if not found.
func (d *DAG) Node(id string) *Node {
	return d.nodes[id]
}

// Nodes returns all node IDs in the DAG, sorted alphabetically.
func (d *DAG) Nodes() []string {
	ids := make([]string, 0, len(d.nodes))
	for id := range d.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of nodes in the DAG.
func (d *DAG) Len() int {
	return len(d.nodes)
}

// Predecessors returns the direct predecessors of id, sorted.
func (d *DAG) Predecessors(id string) []string {
	return sortedKeys(d.adjacency[id])
}

// Successors returns the direct successors of id (the tasks that list id
// as a predecessor), sorted.
func (d *DAG) Successors(id string) []string {
	return sortedKeys(d.reverse[id])
}

// Roots returns the tasks with no predecessors, sorted.
func (d *DAG) Roots() []string {
	var roots []string
	for _, id := range d.Nodes() {
		if len(d.adjacency[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Sinks returns the tasks with no successors, sorted.
func (d *DAG) Sinks() []string {
	var sinks []string
	for _, id := range d.Nodes() {
		if len(d.reverse[id]) == 0 {
			sinks = append(sinks, id)
		}
	}
	return sinks
}

// DetectCycle walks the graph depth-first along predecessor edges, keeping
// the current recursion stack. The first back edge found is reported as a
// *CycleError. Traversal order is alphabetical so the reported task is
// stable across runs.
func (d *DAG) DetectCycle() error {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int, len(d.nodes))
	var stack []string

	var visit func(id string) *CycleError
	visit = func(id string) *CycleError {
		state[id] = onStack
		stack = append(stack, id)
		for _, pred := range d.Predecessors(id) {
			switch state[pred] {
			case onStack:
				return cycleFrom(stack, pred)
			case unvisited:
				if cerr := visit(pred); cerr != nil {
					return cerr
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	for _, id := range d.Nodes() {
		if state[id] != unvisited {
			continue
		}
		if cerr := visit(id); cerr != nil {
			return cerr
		}
	}
	return nil
}

// cycleFrom extracts the cycle closing at id from the recursion stack.
func cycleFrom(stack []string, id string) *CycleError {
	start := 0
	for i, s := range stack {
		if s == id {
			start = i
			break
		}
	}
	path := append([]string(nil), stack[start:]...)
	path = append(path, id)
	return &CycleError{TaskID: id, Path: path}
}

// TopologicalSort returns node IDs in a valid topological order
// (predecessors come before successors). Among nodes that become ready at
// the same time, higher-priority nodes appear first. Returns ErrCycle if
// the graph contains a cycle.
func (d *DAG) TopologicalSort() ([]string, error) {
	inDegree := make(map[string]int, len(d.nodes))
	for id := range d.nodes {
		inDegree[id] = len(d.adjacency[id])
	}

	queue := d.prioritySorted(d.zeroDegreeNodes(inDegree))

	sorted := make([]string, 0, len(d.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)

		var freed []string
		for succ := range d.reverse[id] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				freed = append(freed, succ)
			}
		}
		if len(freed) > 0 {
			queue = append(queue, d.prioritySorted(freed)...)
		}
	}

	if len(sorted) != len(d.nodes) {
		return nil, fmt.Errorf("%w: not all nodes could be ordered (%d of %d)",
			ErrCycle, len(sorted), len(d.nodes))
	}
	return sorted, nil
}

// Ancestors returns all transitive predecessors of the given node, sorted
// alphabetically. Returns nil if the node does not exist.
func (d *DAG) Ancestors(id string) []string {
	if _, ok := d.nodes[id]; !ok {
		return nil
	}
	return sortedKeys(d.walk(id, d.adjacency))
}

// Descendants returns all transitive successors of the given node, i.e.
// every task whose start can slip when this one slips. Sorted
// alphabetically; nil if the node does not exist.
func (d *DAG) Descendants(id string) []string {
	if _, ok := d.nodes[id]; !ok {
		return nil
	}
	return sortedKeys(d.walk(id, d.reverse))
}

// walk collects every node reachable from id over edges, breadth-first.
func (d *DAG) walk(id string, edges map[string]map[string]bool) map[string]bool {
	visited := make(map[string]bool)
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for next := range edges[cur] {
			if next == id || visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, next)
		}
	}
	return visited
}

// zeroDegreeNodes returns IDs from the in-degree map that have zero value.
func (d *DAG) zeroDegreeNodes(inDegree map[string]int) []string {
	var result []string
	for id, deg := range inDegree {
		if deg == 0 {
			result = append(result, id)
		}
	}
	return result
}

// prioritySorted returns a copy of ids sorted by node priority descending,
// with alphabetical ID as tiebreaker.
func (d *DAG) prioritySorted(ids []string) []string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		pi := d.nodes[sorted[i]].Priority
		pj := d.nodes[sorted[j]].Priority
		if pi != pj {
			return pi > pj
		}
		return sorted[i] < sorted[j]
	})
	return sorted
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
