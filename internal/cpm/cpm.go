// Package cpm implements the Critical Path Method over a task dependency
// graph: a forward pass for earliest times, a backward pass for latest
// times, total and free slack, and critical path membership.
package cpm

import (
	"fmt"
	"time"

	"github.com/papapumpkin/parsec/internal/dag"
	"github.com/papapumpkin/parsec/internal/timeline"
)

// Analyze computes the critical path schedule for tasks over graph g. The
// graph must be acyclic and contain every task; predecessors outside the
// task set must already have been dropped (dag.FromTasks does this).
//
// A task's duration is always End - Start of its declared record. Only the
// start offset moves: a task with predecessors starts at the latest
// earliest-finish among them, a task without predecessors at its declared
// start.
func Analyze(tasks []timeline.Task, g *dag.DAG) (*Schedule, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	byID := make(map[string]timeline.Task, len(tasks))
	for _, t := range tasks {
		if g.Node(t.ID) == nil {
			return nil, fmt.Errorf("cpm: %w: %s", dag.ErrNodeNotFound, t.ID)
		}
		byID[t.ID] = t
	}
	if len(byID) != len(order) {
		return nil, fmt.Errorf("cpm: graph has %d nodes but %d tasks were given", len(order), len(byID))
	}

	sched := &Schedule{
		Nodes: make([]Node, len(order)),
		index: make(map[string]int, len(order)),
	}
	for i, id := range order {
		sched.index[id] = i
		sched.Nodes[i] = Node{
			TaskID:       id,
			Duration:     byID[id].Duration(),
			Predecessors: g.Predecessors(id),
			Successors:   g.Successors(id),
		}
	}

	forwardPass(sched, byID)
	backwardPass(sched)
	computeSlack(sched)

	for i, n := range sched.Nodes {
		if i == 0 || n.EarliestStart.Before(sched.ProjectStart) {
			sched.ProjectStart = n.EarliestStart
		}
		if n.EarliestFinish.After(sched.ProjectFinish) {
			sched.ProjectFinish = n.EarliestFinish
		}
		if n.IsCritical {
			sched.Path = append(sched.Path, n.TaskID)
		}
	}
	return sched, nil
}

// forwardPass fills EarliestStart/EarliestFinish in topological order.
// ES = max EF over all predecessors, or the declared start with none.
func forwardPass(s *Schedule, byID map[string]timeline.Task) {
	for i := range s.Nodes {
		n := &s.Nodes[i]
		if len(n.Predecessors) == 0 {
			n.EarliestStart = byID[n.TaskID].Start
		} else {
			for j, pred := range n.Predecessors {
				ef := s.Nodes[s.index[pred]].EarliestFinish
				if j == 0 || ef.After(n.EarliestStart) {
					n.EarliestStart = ef
				}
			}
		}
		n.EarliestFinish = n.EarliestStart.Add(n.Duration)
	}
}

// backwardPass fills LatestStart/LatestFinish in reverse topological order.
// Tasks without successors finish no later than their own earliest finish;
// everyone else must finish by the earliest latest-start of its successors.
func backwardPass(s *Schedule) {
	for i := len(s.Nodes) - 1; i >= 0; i-- {
		n := &s.Nodes[i]
		if len(n.Successors) == 0 {
			n.LatestFinish = n.EarliestFinish
		} else {
			for j, succ := range n.Successors {
				ls := s.Nodes[s.index[succ]].LatestStart
				if j == 0 || ls.Before(n.LatestFinish) {
					n.LatestFinish = ls
				}
			}
		}
		n.LatestStart = n.LatestFinish.Add(-n.Duration)
	}
}

// computeSlack derives total and free slack and criticality.
func computeSlack(s *Schedule) {
	for i := range s.Nodes {
		n := &s.Nodes[i]
		n.TotalSlack = nonNegative(n.LatestStart.Sub(n.EarliestStart))

		if len(n.Successors) == 0 {
			n.FreeSlack = n.TotalSlack
		} else {
			var earliest time.Time
			for j, succ := range n.Successors {
				es := s.Nodes[s.index[succ]].EarliestStart
				if j == 0 || es.Before(earliest) {
					earliest = es
				}
			}
			n.FreeSlack = nonNegative(earliest.Sub(n.EarliestFinish))
		}

		n.IsCritical = n.TotalSlack <= CriticalEpsilon
	}
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
