package api

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ParamKind discriminates the variants of Param. The tag set is
// intentionally small and extensible per spec.md §3 ("Extensible tag
// set"): adding a variant means adding a case here, in Param.Equal, and
// in Param.UnmarshalCBOR's discriminant check; nothing else in the
// schedule compiler needs to change, since C2 only copies Param values
// around and compares them with Param.Equal.
type ParamKind uint8

const (
	// ParamCommand marks a system as holding a mutation queue (entity
	// spawns, component writes) rather than a direct resource reference.
	ParamCommand ParamKind = iota
	// ParamRes marks a system as reading or writing a single resource,
	// identified by StableId.
	ParamRes
)

// Param describes one thing a system reads or writes. It is a tagged
// union: Kind selects which of the remaining fields is meaningful.
//
//   - ParamCommand: no other field is used.
//   - ParamRes: Mutable and ResourceId are used.
type Param struct {
	Kind       ParamKind
	Mutable    bool
	ResourceId StableId
}

// CommandParam returns a Param describing a command-queue dependency.
func CommandParam() Param { return Param{Kind: ParamCommand} }

// ResParam returns a Param describing a resource reference.
func ResParam(mutable bool, id StableId) Param {
	return Param{Kind: ParamRes, Mutable: mutable, ResourceId: id}
}

// Equal reports whether two Params describe the same dependency. Used by
// the schedule builder to detect SystemDeclaredTwice (spec.md §4.2.3.5).
func (p Param) Equal(o Param) bool {
	if p.Kind != o.Kind {
		return false
	}
	switch p.Kind {
	case ParamCommand:
		return true
	case ParamRes:
		return p.Mutable == o.Mutable && p.ResourceId == o.ResourceId
	default:
		return false
	}
}

// cborParam is the on-the-wire shape: a discriminant followed by its
// variant payload, exactly as spec.md §4.1 requires ("Enums are encoded
// as a discriminant index followed by the selected variant's payload").
type cborParam struct {
	_         struct{} `cbor:",toarray"`
	Kind      ParamKind
	Mutable   bool
	ResourceId StableId
}

// MarshalCBOR implements cbor.Marshaler.
func (p Param) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cborParam{Kind: p.Kind, Mutable: p.Mutable, ResourceId: p.ResourceId})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (p *Param) UnmarshalCBOR(data []byte) error {
	var wire cborParam
	if err := cbor.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Kind != ParamCommand && wire.Kind != ParamRes {
		return fmt.Errorf("api: unknown Param discriminant %d", wire.Kind)
	}
	p.Kind = wire.Kind
	p.Mutable = wire.Mutable
	p.ResourceId = wire.ResourceId
	return nil
}

// System is a callable unit of work: a stable identity, a human-readable
// name (diagnostics only — never used for equality), and the params it
// declares.
type System struct {
	Id     SystemId `cbor:"0,keyasint"`
	Name   string   `cbor:"1,keyasint"`
	Params []Param  `cbor:"2,keyasint"`
}
