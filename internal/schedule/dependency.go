package schedule

import "github.com/harmonize-run/harmonize/api"

// dependencyGraph is the flattened per-SystemId DAG D produced by
// Builder.Build: virtual SetStart/SetEnd nodes have been removed, and
// only direct SystemId -> SystemId edges remain.
type dependencyGraph struct {
	successors map[api.SystemId]map[api.SystemId]bool
	incoming   map[api.SystemId]int
}

func newDependencyGraph() *dependencyGraph {
	return &dependencyGraph{
		successors: make(map[api.SystemId]map[api.SystemId]bool),
		incoming:   make(map[api.SystemId]int),
	}
}

func (d *dependencyGraph) addEdge(from, to api.SystemId) {
	if from == to {
		return
	}
	set, ok := d.successors[from]
	if !ok {
		set = make(map[api.SystemId]bool)
		d.successors[from] = set
	}
	if set[to] {
		return
	}
	set[to] = true
	d.incoming[to]++
}

func (d *dependencyGraph) hasIncoming(id api.SystemId) bool {
	return d.incoming[id] > 0
}

// Successors returns the systems id directly precedes in D.
func (d *dependencyGraph) Successors(id api.SystemId) []api.SystemId {
	set := d.successors[id]
	if len(set) == 0 {
		return nil
	}
	out := make([]api.SystemId, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// Edges returns every (from, to) pair in D, primarily for tests that
// assert on the flattened edge set (spec.md §8's Testable Properties).
func (d *dependencyGraph) Edges() [][2]api.SystemId {
	var out [][2]api.SystemId
	for from, tos := range d.successors {
		for to := range tos {
			out = append(out, [2]api.SystemId{from, to})
		}
	}
	return out
}
