// Package api defines the wire-stable data model shared by the host and
// guest halves of the mod runtime: identifiers, schedule descriptors, the
// manifest envelope mods submit, and the closed error taxonomy the rest of
// the runtime returns.
//
// Everything here is a plain value type. Nothing in this package touches
// WebAssembly, a filesystem, or a clock — those live in internal/ffi,
// internal/loader, and cmd/harmonize respectively.
package api

import "fmt"

// StableId identifies a user-defined type (a resource, a schedule label, a
// named system set, ...) across independently-built mods and across
// rebuilds of the same mod. Equality and hashing are always the full
// triple — crate name, version, and type name — never a pointer or a
// locally-interned handle.
//
// Go has no borrow checker, so unlike the owned/borrowed split in the
// source this spec was distilled from, StableId only ever owns its
// strings. The loader keeps the decoded manifest (and the []byte it came
// from) alive for the life of the LoadedMod instead of threading
// lifetimes through StableId itself; see LoadedMod in internal/loader.
type StableId struct {
	CrateName string `cbor:"0,keyasint"`
	Version   string `cbor:"1,keyasint"`
	Name      string `cbor:"2,keyasint"`
}

// String renders a StableId the way it appears in log lines and error
// messages: "crate@version::name".
func (id StableId) String() string {
	return fmt.Sprintf("%s@%s::%s", id.CrateName, id.Version, id.Name)
}

// IsZero reports whether id is the zero StableId.
func (id StableId) IsZero() bool {
	return id == StableId{}
}

// Reserved schedule labels the host always registers, per spec.md §6.
var (
	// LabelStart is the schedule that runs once, before the first Update.
	LabelStart = StableId{CrateName: "core", Version: "v0.0.0", Name: "Start"}
	// LabelUpdate is the schedule that runs once per tick.
	LabelUpdate = StableId{CrateName: "core", Version: "v0.0.0", Name: "Update"}
)

// FileHash is the first 16 bytes of a SHA-256 digest: used both as a mod's
// wasm content hash (recorded in ModManifest.WasmHash) and as its manifest
// identity hash (LoadedMod.ManifestHash). 16 bytes is enough to make
// accidental collision between co-loaded mods practically impossible
// while keeping hashes cheap to log and compare.
type FileHash [16]byte

// String renders a FileHash as lowercase hex.
func (h FileHash) String() string {
	return fmt.Sprintf("%x", [16]byte(h))
}

// IsZero reports whether h is the zero FileHash (never a valid content
// hash in practice, so useful as a "not yet computed" sentinel).
func (h FileHash) IsZero() bool {
	return h == FileHash{}
}

// SystemId is an opaque, collision-resistant identifier for a system
// function, produced host-side from the guest's declared fully-qualified
// type path. It carries no structure of its own — two SystemIds are
// either equal or they name different systems.
type SystemId uint64
