package dag

import "sort"

// Workstream is a set of tasks connected through dependencies. Tasks in
// different workstreams share no predecessors or successors, so their
// schedules can only interact through shared resources.
type Workstream struct {
	ID      int
	TaskIDs []string // topological order
}

// Workstreams partitions the graph into weakly connected components using a
// disjoint-set forest. Workstreams are ordered by size descending, then by
// first task ID. Returns ErrCycle if the graph is not acyclic.
func (d *DAG) Workstreams() ([]Workstream, error) {
	if len(d.nodes) == 0 {
		return nil, nil
	}
	order, err := d.TopologicalSort()
	if err != nil {
		return nil, err
	}
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}

	ds := newDisjointSet(order)
	for from, preds := range d.adjacency {
		for to := range preds {
			ds.union(from, to)
		}
	}

	groups := make(map[string][]string)
	for _, id := range order {
		root := ds.find(id)
		groups[root] = append(groups[root], id)
	}

	streams := make([]Workstream, 0, len(groups))
	for _, members := range groups {
		sort.Slice(members, func(i, j int) bool { return pos[members[i]] < pos[members[j]] })
		streams = append(streams, Workstream{TaskIDs: members})
	}
	sort.Slice(streams, func(i, j int) bool {
		if len(streams[i].TaskIDs) != len(streams[j].TaskIDs) {
			return len(streams[i].TaskIDs) > len(streams[j].TaskIDs)
		}
		return minID(streams[i].TaskIDs) < minID(streams[j].TaskIDs)
	})
	for i := range streams {
		streams[i].ID = i
	}
	return streams, nil
}

func minID(ids []string) string {
	m := ids[0]
	for _, id := range ids[1:] {
		if id < m {
			m = id
		}
	}
	return m
}

// disjointSet is a union-find forest with path compression and union by
// rank.
type disjointSet struct {
	parent map[string]string
	rank   map[string]int
}

func newDisjointSet(ids []string) *disjointSet {
	ds := &disjointSet{
		parent: make(map[string]string, len(ids)),
		rank:   make(map[string]int, len(ids)),
	}
	for _, id := range ids {
		ds.parent[id] = id
	}
	return ds
}

func (ds *disjointSet) find(x string) string {
	if ds.parent[x] != x {
		ds.parent[x] = ds.find(ds.parent[x])
	}
	return ds.parent[x]
}

func (ds *disjointSet) union(x, y string) {
	rx, ry := ds.find(x), ds.find(y)
	if rx == ry {
		return
	}
	switch {
	case ds.rank[rx] < ds.rank[ry]:
		ds.parent[rx] = ry
	case ds.rank[rx] > ds.rank[ry]:
		ds.parent[ry] = rx
	default:
		ds.parent[ry] = rx
		ds.rank[rx]++
	}
}
