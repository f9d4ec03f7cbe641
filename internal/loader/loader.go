// Package loader implements the mod loader state machine (spec.md §4.4):
// hash-verified pairing of a manifest and its compiled wasm module,
// decode, schedule-label validation, and idempotent registration.
package loader

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	wazeroapi "github.com/tetratelabs/wazero/api"

	"github.com/harmonize-run/harmonize/api"
	"github.com/harmonize-run/harmonize/internal/manifest"
	"github.com/harmonize-run/harmonize/internal/schedule"
)

// LoadedFeature is one FeatureDescriptor after loading, still holding its
// raw resource bytes and schedule descriptors for the registry rebuild
// (spec.md §3's LoadedMod.features).
type LoadedFeature struct {
	Name      string
	Resources []api.ResourceValue
	Schedules []api.ScheduleDescriptor
}

// LoadedMod is a successfully verified, compiled mod (spec.md §3).
// Equality is by ManifestHash alone, per the spec's invariant that a mod
// load is identified by its manifest's content hash, independent of the
// wasm module or feature slice it decoded to.
type LoadedMod struct {
	ManifestHash api.FileHash
	Module       wazero.CompiledModule
	Features     []LoadedFeature

	manifestBytes []byte // retained per spec.md §4.1 ("the loader owns that buffer")
}

// Equal reports whether two LoadedMods share the same manifest hash.
func (m *LoadedMod) Equal(o *LoadedMod) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.ManifestHash == o.ManifestHash
}

// Contributions flattens every ScheduleDescriptor this mod contributes,
// tagged with its owning feature's index, for handoff to
// schedule.Registry.Compile.
func (m *LoadedMod) Contributions() []schedule.Contribution {
	var out []schedule.Contribution
	for i, f := range m.Features {
		for _, sd := range f.Schedules {
			out = append(out, schedule.Contribution{OriginFeature: uint32(i), Descriptor: sd})
		}
	}
	return out
}

// Loader is the mod loader state machine: C4. It owns the wazero
// runtime used to compile guest modules, the process-global component-id
// counter (spec.md §9's single-owner design note), and a dedup cache
// keyed by manifest hash for idempotent reloads.
type Loader struct {
	runtime  wazero.Runtime
	registry *schedule.Registry
	cache    *cache
	log      logrus.FieldLogger

	nextComponentID uint32
}

// New returns a Loader that compiles guest modules with runtime and
// validates schedule labels against registry.
func New(runtime wazero.Runtime, registry *schedule.Registry, log logrus.FieldLogger) *Loader {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Loader{
		runtime:         runtime,
		registry:        registry,
		cache:           newCache(),
		log:             log,
		nextComponentID: 1,
	}
}

// ReserveComponentID returns a fresh, process-unique component id,
// implementing the reserve_component_id host import (spec.md §4.5). The
// counter starts at 1 and is single-threaded, matching spec.md §5's
// "writes need no synchronization" — callers must not invoke this
// concurrently from multiple goroutines without external locking.
func (l *Loader) ReserveComponentID() uint32 {
	id := l.nextComponentID
	l.nextComponentID++
	return id
}

// Load runs the five-step loading procedure of spec.md §4.4. If
// manifestBytes hashes to a mod already in the cache, the existing
// LoadedMod is returned unchanged and a warning is logged — the
// idempotent-reload requirement of spec.md §4.4 and Testable Property 4.
func (l *Loader) Load(ctx context.Context, manifestBytes, wasmBytes []byte) (*LoadedMod, error) {
	manifestHash := manifest.HashBytes(manifestBytes)
	if existing, ok := l.cache.get(manifestHash); ok {
		l.log.WithField("manifest_hash", manifestHash).Warn("mod already loaded; skipping duplicate load")
		return existing, nil
	}

	m, err := manifest.Decode(manifestBytes)
	if err != nil {
		return nil, err
	}

	wasmHash := manifest.HashBytes(wasmBytes)
	if wasmHash != m.WasmHash {
		return nil, api.ErrMismatchingDependencies
	}

	if err := l.validateScheduleLabels(m); err != nil {
		return nil, err
	}

	compiled, err := l.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, &api.InvalidWasmError{Err: err}
	}

	loaded := &LoadedMod{
		ManifestHash:  manifestHash,
		Module:        compiled,
		Features:      toLoadedFeatures(m.Features),
		manifestBytes: manifestBytes,
	}
	l.cache.put(manifestHash, loaded)
	return loaded, nil
}

func (l *Loader) validateScheduleLabels(m *api.ModManifest) error {
	for _, f := range m.Features {
		for _, sd := range f.Schedules {
			if !l.registry.IsRegistered(sd.Label) {
				return &api.InvalidScheduleError{Label: sd.Label}
			}
		}
	}
	return nil
}

func toLoadedFeatures(features []api.FeatureDescriptor) []LoadedFeature {
	out := make([]LoadedFeature, len(features))
	for i, f := range features {
		out[i] = LoadedFeature{Name: f.Name, Resources: f.Resources, Schedules: f.Schedules}
	}
	return out
}

// Unload removes mod from the dedup cache and releases its compiled
// module. It does not rebuild any schedule; the caller (the host
// application facade) is responsible for calling RebuildSchedules
// afterward.
func (l *Loader) Unload(ctx context.Context, mod *LoadedMod) error {
	l.cache.delete(mod.ManifestHash)
	return mod.Module.Close(ctx)
}

// InstantiateForManifestGeneration instantiates compiled in manifest
// generation mode and invokes harmony_mod_generate_manifest, returning
// the bytes the guest passed to submit_manifest. sink receives the host
// imports the guest calls during this phase (spec.md §4.5).
func InstantiateForManifestGeneration(ctx context.Context, runtime wazero.Runtime, compiled wazero.CompiledModule, sink GenerationSink) ([]byte, error) {
	inst, err := instantiateWithGenerationImports(ctx, runtime, compiled, sink)
	if err != nil {
		return nil, &api.InvalidWasmError{Err: err}
	}
	defer inst.Close(ctx)

	generate := inst.ExportedFunction("harmony_mod_generate_manifest")
	if generate == nil {
		return nil, &api.InvalidWasmError{Err: fmt.Errorf("missing export harmony_mod_generate_manifest")}
	}
	if _, err := generate.Call(ctx); err != nil {
		return nil, &api.InvalidWasmError{Err: err}
	}
	return sink.Submitted(), nil
}

// GenerationSink receives the manifest bytes a guest submits during the
// generation phase, and fresh component ids it reserves.
type GenerationSink interface {
	// Submit is called once, from submit_manifest, with a copy of the
	// guest's manifest bytes.
	Submit(data []byte)
	// Submitted returns the bytes most recently passed to Submit.
	Submitted() []byte
	// ReserveComponentID implements reserve_component_id.
	ReserveComponentID() uint32
}

func instantiateWithGenerationImports(ctx context.Context, runtime wazero.Runtime, compiled wazero.CompiledModule, sink GenerationSink) (wazeroapi.Module, error) {
	_, err := runtime.NewHostModuleBuilder("harmony_mod").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m wazeroapi.Module, ptrLen uint64) {
			offset, length := decodePtrLen(ptrLen)
			buf, ok := m.Memory().Read(offset, length)
			if !ok {
				return
			}
			cp := make([]byte, len(buf))
			copy(cp, buf)
			sink.Submit(cp)
		}).
		Export("submit_manifest").
		NewFunctionBuilder().
		WithFunc(func() uint32 { return sink.ReserveComponentID() }).
		Export("reserve_component_id").
		Instantiate(ctx)
	if err != nil {
		return nil, err
	}
	return runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
}

// decodePtrLen splits a wasm pointer-length pair as specified in
// spec.md §4.5: the low 32 bits are the linear-memory offset, the high 32
// bits are the length in bytes.
func decodePtrLen(v uint64) (offset, length uint32) {
	return uint32(v), uint32(v >> 32)
}

// EncodePtrLen is the inverse of decodePtrLen, exposed for tests that
// construct wasm pointer-length pairs.
func EncodePtrLen(offset, length uint32) uint64 {
	return uint64(offset) | uint64(length)<<32
}
