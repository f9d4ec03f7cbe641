package schedule

import "github.com/harmonize-run/harmonize/api"

// Entry is the per-system record of a flattened schedule: spec.md §3's
// "{ is_dependent: bool, params: [Param], origin_feature: u32 }".
type Entry struct {
	// IsDependent is true iff this system has at least one incoming edge
	// in the flattened dependency DAG. The tick driver uses this to seed
	// its ready queue without scanning for predecessors (spec.md §4.2.3
	// step 4).
	IsDependent bool
	// Params are the dependency descriptors declared for this system.
	Params []api.Param
	// OriginFeature is the index of the FeatureDescriptor that
	// contributed this system, within its owning mod.
	OriginFeature uint32
}

// Loaded is the flattened, validated schedule for one schedule label
// (spec.md §3's LoadedSchedule): every system that was declared by any
// contributing descriptor, and the dependency DAG over SystemId with all
// virtual set nodes removed.
type Loaded struct {
	Systems    map[api.SystemId]Entry
	Dependency *dependencyGraph
}

// Successors returns the systems id directly precedes in the flattened
// dependency DAG.
func (l *Loaded) Successors(id api.SystemId) []api.SystemId {
	return l.Dependency.Successors(id)
}

// Edges returns every (from, to) pair in the flattened dependency DAG.
func (l *Loaded) Edges() [][2]api.SystemId {
	return l.Dependency.Edges()
}

// ReadySystems returns every system with IsDependent == false: the set
// the tick driver may invoke first (spec.md §4.6 step 1).
func (l *Loaded) ReadySystems() []api.SystemId {
	var ready []api.SystemId
	for id, entry := range l.Systems {
		if !entry.IsDependent {
			ready = append(ready, id)
		}
	}
	return ready
}
