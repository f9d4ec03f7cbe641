// Package schedule implements the Schedule Compiler (spec.md §4.2, §4.3):
// lowering constraints to a construction graph, detecting cycles with
// Tarjan's algorithm, and flattening the result to a per-SystemId
// dependency DAG ready for the tick driver.
package schedule

import "github.com/harmonize-run/harmonize/api"

// nodeKind discriminates the three node shapes the construction graph
// uses, per spec.md §4.2.1.
type nodeKind uint8

const (
	nodeSystem nodeKind = iota
	nodeSetStart
	nodeSetEnd
)

// nodeKey identifies one node in the construction graph. Only the field
// matching kind is meaningful: system for nodeSystem, set for
// nodeSetStart/nodeSetEnd.
type nodeKey struct {
	kind   nodeKind
	system api.SystemId
	set    int
}

func systemNode(id api.SystemId) nodeKey { return nodeKey{kind: nodeSystem, system: id} }
func setStartNode(idx int) nodeKey       { return nodeKey{kind: nodeSetStart, set: idx} }
func setEndNode(idx int) nodeKey         { return nodeKey{kind: nodeSetEnd, set: idx} }

// nodeRegistry assigns a dense, first-seen-order int64 id to every
// distinct nodeKey, the id space gonum's graph package requires. Node
// indices being first-seen order is required by spec.md §4.2.4
// (determinism).
type nodeRegistry struct {
	ids  map[nodeKey]int64
	keys []nodeKey
}

func newNodeRegistry() *nodeRegistry {
	return &nodeRegistry{ids: make(map[nodeKey]int64)}
}

// idFor returns the id for k, assigning a fresh one on first reference.
func (r *nodeRegistry) idFor(k nodeKey) int64 {
	if id, ok := r.ids[k]; ok {
		return id
	}
	id := int64(len(r.keys))
	r.ids[k] = id
	r.keys = append(r.keys, k)
	return id
}

func (r *nodeRegistry) keyFor(id int64) nodeKey { return r.keys[id] }
