package api

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ConstraintKind discriminates Constraint's three variants.
type ConstraintKind uint8

const (
	// ConstraintOrder requires every system in Before to run, through
	// some chain of edges, before every system in After begins.
	ConstraintOrder ConstraintKind = iota
	// ConstraintIncludes nests Child inside the named set Parent.
	ConstraintIncludes
	// ConstraintCondition gates Set behind a predicate system. Retained
	// for forward compatibility per spec.md §9 — the source never
	// produces one, and no current scenario exercises it.
	ConstraintCondition
)

// Constraint is a declarative relation between sets, lowered to edges in
// the construction graph by internal/schedule (spec.md §4.2.2).
type Constraint struct {
	Kind ConstraintKind

	// ConstraintOrder
	Before SystemSet
	After  SystemSet

	// ConstraintIncludes
	Parent StableId
	Child  SystemSet

	// ConstraintCondition
	Set       SystemSet
	Predicate SystemId
}

// Order returns a Constraint requiring before to run ahead of after.
func Order(before, after SystemSet) Constraint {
	return Constraint{Kind: ConstraintOrder, Before: before, After: after}
}

// Includes returns a Constraint nesting child inside the named set parent.
func Includes(parent StableId, child SystemSet) Constraint {
	return Constraint{Kind: ConstraintIncludes, Parent: parent, Child: child}
}

// Condition returns a Constraint gating set behind predicate.
func Condition(set SystemSet, predicate SystemId) Constraint {
	return Constraint{Kind: ConstraintCondition, Set: set, Predicate: predicate}
}

type cborConstraint struct {
	_         struct{} `cbor:",toarray"`
	Kind      ConstraintKind
	Before    SystemSet
	After     SystemSet
	Parent    StableId
	Child     SystemSet
	Set       SystemSet
	Predicate SystemId
}

// MarshalCBOR implements cbor.Marshaler.
func (c Constraint) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cborConstraint{
		Kind: c.Kind, Before: c.Before, After: c.After,
		Parent: c.Parent, Child: c.Child,
		Set: c.Set, Predicate: c.Predicate,
	})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (c *Constraint) UnmarshalCBOR(data []byte) error {
	var wire cborConstraint
	if err := cbor.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch wire.Kind {
	case ConstraintOrder, ConstraintIncludes, ConstraintCondition:
	default:
		return fmt.Errorf("api: unknown Constraint discriminant %d", wire.Kind)
	}
	*c = Constraint{
		Kind: wire.Kind, Before: wire.Before, After: wire.After,
		Parent: wire.Parent, Child: wire.Child,
		Set: wire.Set, Predicate: wire.Predicate,
	}
	return nil
}

// Schedule is the set of systems and ordering constraints contributed by
// one ScheduleDescriptor.
type Schedule struct {
	Systems     []System     `cbor:"0,keyasint"`
	Constraints []Constraint `cbor:"1,keyasint"`
}

// ScheduleDescriptor attaches a Schedule to a schedule label. Multiple
// descriptors across features and mods may share a Label; they are
// grouped and compiled together by internal/schedule.Registry.
type ScheduleDescriptor struct {
	Label    StableId `cbor:"0,keyasint"`
	Schedule Schedule `cbor:"1,keyasint"`
}
