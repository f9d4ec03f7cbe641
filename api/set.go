package api

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// SystemSetKind discriminates SystemSet's two variants.
type SystemSetKind uint8

const (
	// SystemSetAnonymous is an unnamed group of one or more systems,
	// referenced only by the constraint that created it.
	SystemSetAnonymous SystemSetKind = iota
	// SystemSetNamed is a set referenced by StableId, potentially shared
	// by descriptors contributed by different features.
	SystemSetNamed
)

// SystemSet is a grouping of systems used for ordering and membership: an
// Anonymous([]SystemId) naming its members directly, or a Named(StableId)
// naming a set other constraints populate.
type SystemSet struct {
	Kind    SystemSetKind
	Members []SystemId
	Name    StableId
}

// Anonymous returns a SystemSet naming the given systems directly. Per
// spec.md §4.2.1, a zero-member anonymous set is a schedule error
// (EmptyAnonymousSet), caught by the builder, not here.
func Anonymous(systems ...SystemId) SystemSet {
	return SystemSet{Kind: SystemSetAnonymous, Members: systems}
}

// Named returns a SystemSet referencing the named set id.
func Named(id StableId) SystemSet {
	return SystemSet{Kind: SystemSetNamed, Name: id}
}

type cborSystemSet struct {
	_       struct{} `cbor:",toarray"`
	Kind    SystemSetKind
	Members []SystemId
	Name    StableId
}

// MarshalCBOR implements cbor.Marshaler.
func (s SystemSet) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cborSystemSet{Kind: s.Kind, Members: s.Members, Name: s.Name})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (s *SystemSet) UnmarshalCBOR(data []byte) error {
	var wire cborSystemSet
	if err := cbor.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Kind != SystemSetAnonymous && wire.Kind != SystemSetNamed {
		return fmt.Errorf("api: unknown SystemSet discriminant %d", wire.Kind)
	}
	s.Kind = wire.Kind
	s.Members = wire.Members
	s.Name = wire.Name
	return nil
}
