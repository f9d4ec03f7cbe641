package schedule

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/harmonize-run/harmonize/api"
)

// systemDecl records one System{id, params} declaration contributed by a
// schedule, along with the index of the feature that contributed it.
// Builder accumulates these across every AddSchedule call and merges
// them only once, at Build time, mirroring the two-pass shape of
// original_source/crates/bevy_harmonize/src/mods/loaded/schedule.rs
// (constraints are lowered first, params are merged in a second pass).
type systemDecl struct {
	id            api.SystemId
	params        []api.Param
	originFeature uint32
}

// Builder lowers one schedule label's worth of constraints, contributed
// by any number of Schedules, into a flattened per-SystemId dependency
// DAG (spec.md §4.2).
type Builder struct {
	graph *simple.DirectedGraph
	nodes *nodeRegistry
	sets  *setsTable
	decls []systemDecl
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		graph: simple.NewDirectedGraph(),
		nodes: newNodeRegistry(),
		sets:  newSetsTable(),
	}
}

// AddSchedule lowers one Schedule's constraints into the construction
// graph and records its systems' declared params for the later merge
// pass. originFeature identifies which FeatureDescriptor this schedule
// came from, recorded verbatim on the resulting Entry.
func (b *Builder) AddSchedule(sched *api.Schedule, originFeature uint32) error {
	for _, c := range sched.Constraints {
		if err := b.addConstraint(c); err != nil {
			return err
		}
	}
	for _, sys := range sched.Systems {
		b.decls = append(b.decls, systemDecl{id: sys.Id, params: sys.Params, originFeature: originFeature})
	}
	return nil
}

func (b *Builder) addConstraint(c api.Constraint) error {
	switch c.Kind {
	case api.ConstraintOrder:
		_, beforeEnd, err := b.populateSetNodes(c.Before)
		if err != nil {
			return err
		}
		afterStart, _, err := b.populateSetNodes(c.After)
		if err != nil {
			return err
		}
		b.addEdge(beforeEnd, afterStart)

	case api.ConstraintIncludes:
		parentStart, parentEnd := b.populateNamedSetNodes(c.Parent)
		childStart, childEnd, err := b.populateSetNodes(c.Child)
		if err != nil {
			return err
		}
		b.addEdge(parentStart, childStart)
		b.addEdge(childEnd, parentEnd)

	case api.ConstraintCondition:
		pred := systemNode(c.Predicate)
		b.ensureNode(pred)
		setStart, _, err := b.populateSetNodes(c.Set)
		if err != nil {
			return err
		}
		b.addEdge(pred, setStart)
	}
	return nil
}

// populateSetNodes resolves the start and end construction-graph nodes
// for an arbitrary SystemSet, per spec.md §4.2.1 and §4.2.2's "start(S)
// and end(S)".
func (b *Builder) populateSetNodes(set api.SystemSet) (start, end nodeKey, err error) {
	switch set.Kind {
	case api.SystemSetAnonymous:
		return b.populateAnonymousSetNodes(set.Members)
	case api.SystemSetNamed:
		start, end = b.populateNamedSetNodes(set.Name)
		return start, end, nil
	default:
		return nodeKey{}, nodeKey{}, api.ErrEmptyAnonymousSet
	}
}

func (b *Builder) populateAnonymousSetNodes(members []api.SystemId) (start, end nodeKey, err error) {
	if len(members) == 0 {
		return nodeKey{}, nodeKey{}, api.ErrEmptyAnonymousSet
	}
	if len(members) == 1 {
		// A single-member set collapses onto the member itself: no
		// virtual nodes, so a unary set can never introduce false
		// ordering (spec.md §4.2.1).
		n := systemNode(members[0])
		b.ensureNode(n)
		return n, n, nil
	}

	idx, firstSeen, unique := b.sets.anonIndex(members)
	start = setStartNode(idx)
	end = setEndNode(idx)
	if firstSeen {
		b.ensureNode(start)
		b.ensureNode(end)
		for _, sys := range unique {
			sysNode := systemNode(sys)
			b.ensureNode(sysNode)
			b.addEdge(start, sysNode)
			b.addEdge(sysNode, end)
		}
	}
	return start, end, nil
}

func (b *Builder) populateNamedSetNodes(name api.StableId) (start, end nodeKey) {
	idx, firstSeen := b.sets.namedIndex(name)
	start, end = setStartNode(idx), setEndNode(idx)
	if firstSeen {
		// A named set receives no member edges until Includes declares
		// its membership; it may never gain any, if it is only ever
		// used as an Order/Condition anchor.
		b.ensureNode(start)
		b.ensureNode(end)
	}
	return start, end
}

func (b *Builder) ensureNode(k nodeKey) {
	id := b.nodes.idFor(k)
	if b.graph.Node(id) == nil {
		b.graph.AddNode(simple.Node(id))
	}
}

func (b *Builder) addEdge(from, to nodeKey) {
	fromID := b.nodes.idFor(from)
	toID := b.nodes.idFor(to)
	if fromID == toID {
		return
	}
	// simple.DirectedGraph.SetEdge adds either endpoint that doesn't
	// already exist, so no separate ensureNode call is required here.
	b.graph.SetEdge(simple.Edge{F: simple.Node(fromID), T: simple.Node(toID)})
}

// Build validates the construction graph (cycle detection) and, if
// acyclic, flattens it into a Loaded schedule over SystemId only
// (spec.md §4.2.3).
func (b *Builder) Build() (*Loaded, error) {
	if cycles := b.detectCycles(); len(cycles) > 0 {
		return nil, api.NewCyclesError(cycles)
	}

	dependency := newDependencyGraph()
	for id, key := range b.nodes.keys {
		if key.kind != nodeSystem {
			continue
		}
		b.flatten(int64(id), key.system, dependency, make(map[int64]bool))
	}

	entries, err := b.mergeSystems(dependency)
	if err != nil {
		return nil, err
	}

	return &Loaded{Systems: entries, Dependency: dependency}, nil
}

// detectCycles runs Tarjan's SCC algorithm over the construction graph
// and reports every SCC of size >= 2 (or a size-1 SCC with a self-loop)
// that contains at least one System node, per spec.md §4.2.3 step 1.
func (b *Builder) detectCycles() []api.Cycle {
	var cycles []api.Cycle
	for _, scc := range topo.TarjanSCC(b.graph) {
		if len(scc) == 1 && !b.hasSelfLoop(scc[0]) {
			continue
		}
		cycle := sccSystems(b.nodes, scc)
		if len(cycle) > 0 {
			cycles = append(cycles, cycle)
		}
	}
	return cycles
}

func (b *Builder) hasSelfLoop(n graph.Node) bool {
	return b.graph.HasEdgeFromTo(n.ID(), n.ID())
}

func sccSystems(nodes *nodeRegistry, scc []graph.Node) api.Cycle {
	var cycle api.Cycle
	for _, n := range scc {
		key := nodes.keyFor(n.ID())
		if key.kind == nodeSystem {
			cycle = append(cycle, key.system)
		}
	}
	return cycle
}

// flatten performs the restart-safe depth-first walk of spec.md §4.2.3
// step 3: starting from a System node, it follows every outgoing edge,
// recursing through virtual SetStart/SetEnd nodes until System nodes are
// reached, and records a direct edge origin -> reached in dependency.
func (b *Builder) flatten(nodeID int64, origin api.SystemId, dependency *dependencyGraph, visited map[int64]bool) {
	if visited[nodeID] {
		return
	}
	visited[nodeID] = true

	to := b.graph.From(nodeID)
	for to.Next() {
		child := to.Node()
		key := b.nodes.keyFor(child.ID())
		if key.kind == nodeSystem {
			dependency.addEdge(origin, key.system)
		} else {
			b.flatten(child.ID(), origin, dependency, visited)
		}
	}
}

// mergeSystems implements spec.md §4.2.3 step 5: every System{id, params}
// declared by any input schedule contributes an Entry, conflicting params
// for the same id across descriptors is a SystemDeclaredTwice error, and
// is_dependent is computed purely from the flattened dependency graph.
func (b *Builder) mergeSystems(dependency *dependencyGraph) (map[api.SystemId]Entry, error) {
	entries := make(map[api.SystemId]Entry)
	declaredBy := make(map[api.SystemId]int) // index into b.decls of the first declaration seen

	for i, decl := range b.decls {
		if first, ok := declaredBy[decl.id]; ok {
			if !paramsEqual(b.decls[first].params, decl.params) {
				return nil, api.NewSystemDeclaredTwiceError(decl.id)
			}
			continue
		}
		declaredBy[decl.id] = i
		entries[decl.id] = Entry{
			IsDependent:   dependency.hasIncoming(decl.id),
			Params:        decl.params,
			OriginFeature: decl.originFeature,
		}
	}
	return entries, nil
}

func paramsEqual(a, b []api.Param) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
