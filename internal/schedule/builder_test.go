package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonize-run/harmonize/api"
)

const (
	sysA api.SystemId = iota + 1
	sysB
	sysC
)

func buildSingle(t *testing.T, sched *api.Schedule) *Loaded {
	t.Helper()
	b := NewBuilder()
	require.NoError(t, b.AddSchedule(sched, 0))
	loaded, err := b.Build()
	require.NoError(t, err)
	return loaded
}

func hasEdge(edges [][2]api.SystemId, from, to api.SystemId) bool {
	for _, e := range edges {
		if e[0] == from && e[1] == to {
			return true
		}
	}
	return false
}

// S1. Chain of three systems.
func TestChainOfThreeSystems(t *testing.T) {
	sched := &api.Schedule{
		Systems: []api.System{{Id: sysA}, {Id: sysB}, {Id: sysC}},
		Constraints: []api.Constraint{
			api.Order(api.Anonymous(sysA), api.Anonymous(sysB)),
			api.Order(api.Anonymous(sysB), api.Anonymous(sysC)),
		},
	}
	loaded := buildSingle(t, sched)

	edges := loaded.Edges()
	assert.Len(t, edges, 2)
	assert.True(t, hasEdge(edges, sysA, sysB))
	assert.True(t, hasEdge(edges, sysB, sysC))

	assert.False(t, loaded.Systems[sysA].IsDependent)
	assert.True(t, loaded.Systems[sysB].IsDependent)
	assert.True(t, loaded.Systems[sysC].IsDependent)
}

// S2. Single-system schedule.
func TestSingleSystemSchedule(t *testing.T) {
	sched := &api.Schedule{Systems: []api.System{{Id: sysA}}}
	loaded := buildSingle(t, sched)

	require.Contains(t, loaded.Systems, sysA)
	assert.False(t, loaded.Systems[sysA].IsDependent)
	assert.Empty(t, loaded.Edges())
}

// S3. Named set with two members.
func TestNamedSetWithTwoMembers(t *testing.T) {
	named := api.StableId{CrateName: "test", Version: "v1", Name: "N"}
	sched := &api.Schedule{
		Systems: []api.System{{Id: sysA}, {Id: sysB}, {Id: sysC}},
		Constraints: []api.Constraint{
			api.Includes(named, api.Anonymous(sysA, sysB)),
			api.Order(api.Anonymous(sysC), api.Named(named)),
		},
	}
	loaded := buildSingle(t, sched)

	edges := loaded.Edges()
	assert.True(t, hasEdge(edges, sysC, sysA))
	assert.True(t, hasEdge(edges, sysC, sysB))
	assert.False(t, hasEdge(edges, sysA, sysB))
	assert.False(t, hasEdge(edges, sysB, sysA))
}

// S4. Cycle detection.
func TestCycleDetection(t *testing.T) {
	sched := &api.Schedule{
		Systems: []api.System{{Id: sysA}, {Id: sysB}, {Id: sysC}},
		Constraints: []api.Constraint{
			api.Order(api.Anonymous(sysA), api.Anonymous(sysB)),
			api.Order(api.Anonymous(sysB), api.Anonymous(sysC)),
			api.Order(api.Anonymous(sysC), api.Anonymous(sysA)),
		},
	}
	b := NewBuilder()
	require.NoError(t, b.AddSchedule(sched, 0))
	_, err := b.Build()
	require.Error(t, err)

	var schedErr *api.SchedulingError
	require.ErrorAs(t, err, &schedErr)
	require.Equal(t, api.SchedulingErrorCycles, schedErr.Kind)
	require.Len(t, schedErr.Cycles, 1)
	assert.ElementsMatch(t, []api.SystemId{sysA, sysB, sysC}, schedErr.Cycles[0])
}

// S5. Parameter conflict.
func TestParameterConflictIsSystemDeclaredTwice(t *testing.T) {
	resID := api.StableId{CrateName: "test", Version: "v1", Name: "X"}
	sched := &api.Schedule{
		Systems: []api.System{
			{Id: sysA, Params: []api.Param{api.CommandParam()}},
			{Id: sysA, Params: []api.Param{api.ResParam(true, resID)}},
		},
	}
	b := NewBuilder()
	require.NoError(t, b.AddSchedule(sched, 0))
	_, err := b.Build()
	require.Error(t, err)

	var schedErr *api.SchedulingError
	require.ErrorAs(t, err, &schedErr)
	assert.Equal(t, api.SchedulingErrorSystemDeclaredTwice, schedErr.Kind)
	assert.Equal(t, sysA, schedErr.System)
}

// Testable property 9: unary-set collapse introduces no extra edges.
func TestUnarySetCollapseAddsNoEdges(t *testing.T) {
	sched := &api.Schedule{
		Systems: []api.System{{Id: sysA}, {Id: sysB}},
		Constraints: []api.Constraint{
			api.Order(api.Anonymous(sysA), api.Anonymous(sysB)),
		},
	}
	loaded := buildSingle(t, sched)
	assert.Len(t, loaded.Edges(), 1)
}

// Testable property: EmptyAnonymousSet is rejected.
func TestEmptyAnonymousSetRejected(t *testing.T) {
	sched := &api.Schedule{
		Constraints: []api.Constraint{
			api.Order(api.SystemSet{Kind: api.SystemSetAnonymous}, api.Anonymous(sysA)),
		},
	}
	b := NewBuilder()
	err := b.AddSchedule(sched, 0)
	require.Error(t, err)
	var schedErr *api.SchedulingError
	require.ErrorAs(t, err, &schedErr)
	assert.Equal(t, api.SchedulingErrorEmptyAnonymousSet, schedErr.Kind)
}

// Testable property 10: permuting descriptor order yields identical
// flattened edge sets.
func TestPermutationStability(t *testing.T) {
	named := api.StableId{CrateName: "test", Version: "v1", Name: "N"}
	descriptorA := api.ScheduleDescriptor{
		Label: api.LabelUpdate,
		Schedule: api.Schedule{
			Systems:     []api.System{{Id: sysA}, {Id: sysB}},
			Constraints: []api.Constraint{api.Includes(named, api.Anonymous(sysA, sysB))},
		},
	}
	descriptorB := api.ScheduleDescriptor{
		Label: api.LabelUpdate,
		Schedule: api.Schedule{
			Systems:     []api.System{{Id: sysC}},
			Constraints: []api.Constraint{api.Order(api.Anonymous(sysC), api.Named(named))},
		},
	}

	run := func(contribs []Contribution) [][2]api.SystemId {
		reg := NewRegistry(api.LabelUpdate)
		loaded, err := reg.Compile(contribs)
		require.NoError(t, err)
		return loaded[api.LabelUpdate].Edges()
	}

	order1 := run([]Contribution{{Descriptor: descriptorA}, {Descriptor: descriptorB}})
	order2 := run([]Contribution{{Descriptor: descriptorB}, {Descriptor: descriptorA}})

	assert.ElementsMatch(t, order1, order2)
}
