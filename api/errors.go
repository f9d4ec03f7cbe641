package api

import (
	"errors"
	"fmt"
)

// The mod loader's error taxonomy is closed: every failure mode spec.md
// §7 names has a concrete Go type or sentinel below, and nothing else in
// this repository returns a bare errors.New from core packages. A failing
// mod load is always local to that mod (spec.md §7 "Propagation") — none
// of these types carry any way to reach into another mod's state.

// Sentinel errors that need no payload.
var (
	// ErrInvalidManifest is returned when decoding a manifest fails, or
	// when trailing bytes remain after a structurally valid decode.
	ErrInvalidManifest = errors.New("harmonize: invalid manifest")

	// ErrMismatchingDependencies is returned when a manifest's recorded
	// WasmHash disagrees with the SHA-256-16 of the wasm bytes loaded
	// alongside it.
	ErrMismatchingDependencies = errors.New("harmonize: manifest wasm hash does not match the loaded wasm")
)

// InvalidWasmError wraps a compilation failure from the wasm engine.
type InvalidWasmError struct {
	Err error
}

func (e *InvalidWasmError) Error() string { return fmt.Sprintf("harmonize: invalid wasm: %v", e.Err) }
func (e *InvalidWasmError) Unwrap() error { return e.Err }

// InvalidScheduleError is returned when a ScheduleDescriptor names a
// schedule label the host has not registered.
type InvalidScheduleError struct {
	Label StableId
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("harmonize: unregistered schedule label %s", e.Label)
}

// FileNotFoundError is raised only by the external loader's I/O and
// re-surfaced verbatim, per spec.md §7.
type FileNotFoundError struct {
	Path string
	Err  error
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("harmonize: file not found: %s: %v", e.Path, e.Err)
}
func (e *FileNotFoundError) Unwrap() error { return e.Err }

// SchedulingErrorKind discriminates the concrete scheduling failures the
// graph builder can return.
type SchedulingErrorKind uint8

const (
	// SchedulingErrorCycles indicates one or more SCCs of size >= 2
	// contain at least one System node.
	SchedulingErrorCycles SchedulingErrorKind = iota
	// SchedulingErrorSystemDeclaredTwice indicates the same SystemId was
	// declared with conflicting Param sets across descriptors.
	SchedulingErrorSystemDeclaredTwice
	// SchedulingErrorEmptyAnonymousSet indicates an anonymous set with
	// zero members was referenced by a constraint.
	SchedulingErrorEmptyAnonymousSet
)

// Cycle lists the SystemIds in one strongly-connected component,
// reported in the order the Tarjan walk discovered them. The order is not
// itself meaningful — it is "some rotation" of the cycle, per spec.md §8
// scenario S4.
type Cycle []SystemId

// SchedulingError is returned by internal/schedule when a set of
// schedules cannot be compiled into a valid flattened DAG.
type SchedulingError struct {
	Kind SchedulingErrorKind

	// SchedulingErrorCycles
	Cycles []Cycle

	// SchedulingErrorSystemDeclaredTwice
	System SystemId
}

func (e *SchedulingError) Error() string {
	switch e.Kind {
	case SchedulingErrorCycles:
		return fmt.Sprintf("harmonize: schedule contains %d cycle(s)", len(e.Cycles))
	case SchedulingErrorSystemDeclaredTwice:
		return fmt.Sprintf("harmonize: system %d declared twice with different params", e.System)
	case SchedulingErrorEmptyAnonymousSet:
		return "harmonize: anonymous set with no members referenced by a constraint"
	default:
		return "harmonize: scheduling error"
	}
}

// NewCyclesError returns a SchedulingError reporting the given cycles.
func NewCyclesError(cycles []Cycle) *SchedulingError {
	return &SchedulingError{Kind: SchedulingErrorCycles, Cycles: cycles}
}

// NewSystemDeclaredTwiceError returns a SchedulingError for id.
func NewSystemDeclaredTwiceError(id SystemId) *SchedulingError {
	return &SchedulingError{Kind: SchedulingErrorSystemDeclaredTwice, System: id}
}

// ErrEmptyAnonymousSet is returned when a constraint references an
// anonymous set with zero members.
var ErrEmptyAnonymousSet = &SchedulingError{Kind: SchedulingErrorEmptyAnonymousSet}
