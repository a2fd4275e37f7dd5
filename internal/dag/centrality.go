package dag

import "math"

// ImpactOptions configures the composite impact score.
type ImpactOptions struct {
	// Alpha weights PageRank against betweenness: impact is
	// Alpha·PageRank + (1-Alpha)·Betweenness. Must be in [0, 1].
	Alpha float64

	Damping       float64 // PageRank damping factor
	Epsilon       float64 // PageRank convergence threshold
	MaxIterations int
}

// DefaultImpactOptions returns alpha 0.6, damping 0.85, epsilon 1e-6 and
// at most 100 PageRank iterations.
func DefaultImpactOptions() ImpactOptions {
	return ImpactOptions{
		Alpha:         0.6,
		Damping:       0.85,
		Epsilon:       1e-6,
		MaxIterations: 100,
	}
}

// Impact scores every task in [0, 1] by how much of the plan hangs off it.
// PageRank (normalized by its maximum) measures how many tasks depend on a
// task, transitively; betweenness measures how many dependency chains run
// through it. Iteration is in sorted ID order so results are reproducible.
func (d *DAG) Impact(opts ImpactOptions) map[string]float64 {
	out := make(map[string]float64, len(d.nodes))
	if len(d.nodes) == 0 {
		return out
	}

	pr := d.PageRank(opts.Damping, opts.Epsilon, opts.MaxIterations)
	bc := d.Betweenness()

	maxPR := 0.0
	for _, v := range pr {
		maxPR = math.Max(maxPR, v)
	}
	for id := range d.nodes {
		p := pr[id]
		if maxPR > 0 {
			p /= maxPR
		}
		out[id] = opts.Alpha*p + (1-opts.Alpha)*bc[id]
	}
	return out
}

// PageRank computes PageRank with importance flowing from a task to its
// predecessors. Tasks without predecessors redistribute their rank
// uniformly. Scores sum to approximately 1.
func (d *DAG) PageRank(damping, epsilon float64, maxIterations int) map[string]float64 {
	ids := d.Nodes()
	n := float64(len(ids))
	rank := make(map[string]float64, len(ids))
	if len(ids) == 0 {
		return rank
	}
	for _, id := range ids {
		rank[id] = 1 / n
	}
	succ := make(map[string][]string, len(ids))
	for _, id := range ids {
		succ[id] = d.Successors(id)
	}

	base := (1 - damping) / n
	for iter := 0; iter < maxIterations; iter++ {
		var dangling float64
		for _, id := range ids {
			if len(d.adjacency[id]) == 0 {
				dangling += rank[id]
			}
		}
		share := damping * dangling / n

		next := make(map[string]float64, len(ids))
		maxDelta := 0.0
		for _, v := range ids {
			var sum float64
			for _, u := range succ[v] {
				sum += rank[u] / float64(len(d.adjacency[u]))
			}
			next[v] = base + damping*sum + share
			maxDelta = math.Max(maxDelta, math.Abs(next[v]-rank[v]))
		}
		rank = next
		if maxDelta < epsilon {
			break
		}
	}
	return rank
}

// Betweenness computes directed betweenness centrality with Brandes'
// algorithm over execution-order edges (predecessor to successor),
// normalized to [0, 1] by (n-1)(n-2).
func (d *DAG) Betweenness() map[string]float64 {
	ids := d.Nodes()
	cb := make(map[string]float64, len(ids))
	for _, id := range ids {
		cb[id] = 0
	}
	n := len(ids)
	if n < 3 {
		return cb
	}

	succ := make(map[string][]string, n)
	for _, id := range ids {
		succ[id] = d.Successors(id)
	}

	for _, s := range ids {
		stack, sigma, pred := brandesBFS(s, ids, succ)

		delta := make(map[string]float64, n)
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range pred[w] {
				delta[v] += (sigma[v] / sigma[w]) * (1 + delta[w])
			}
			if w != s {
				cb[w] += delta[w]
			}
		}
	}

	norm := float64((n - 1) * (n - 2))
	for id := range cb {
		cb[id] /= norm
	}
	return cb
}

// brandesBFS returns the visit order, shortest-path counts and shortest-path
// predecessors from source s.
func brandesBFS(s string, ids []string, succ map[string][]string) ([]string, map[string]float64, map[string][]string) {
	stack := make([]string, 0, len(ids))
	pred := make(map[string][]string, len(ids))
	sigma := make(map[string]float64, len(ids))
	dist := make(map[string]int, len(ids))
	for _, id := range ids {
		dist[id] = -1
	}
	sigma[s] = 1
	dist[s] = 0

	queue := []string{s}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		stack = append(stack, v)
		for _, w := range succ[v] {
			if dist[w] < 0 {
				dist[w] = dist[v] + 1
				queue = append(queue, w)
			}
			if dist[w] == dist[v]+1 {
				sigma[w] += sigma[v]
				pred[w] = append(pred[w], v)
			}
		}
	}
	return stack, sigma, pred
}
