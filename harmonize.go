// Package harmonize is the host application facade described in
// spec.md §6: it owns the wazero runtime, the set of loaded mods, and
// the compiled schedule for each registered label, and exposes the
// three operations a host game loop needs — load a mod, rebuild
// schedules, and run one tick.
package harmonize

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"

	"github.com/harmonize-run/harmonize/api"
	"github.com/harmonize-run/harmonize/internal/loader"
	"github.com/harmonize-run/harmonize/internal/schedule"
	"github.com/harmonize-run/harmonize/internal/tick"
)

// Config configures a Runtime, adapted from the teacher's own
// wazero.RuntimeConfig pattern: a small set of options resolved once at
// construction rather than threaded through every call.
type Config struct {
	// Labels are schedule labels the host accepts mods contributing to,
	// in addition to Start and Update, which New always registers
	// (spec.md §3 names them as the defaults); a host embedding
	// additional labels registers them here.
	Labels []api.StableId
	// Logger receives structured log output for load/rebuild/tick
	// lifecycle events. Defaults to logrus.StandardLogger().
	Logger logrus.FieldLogger
	// WazeroConfig customizes the underlying wazero.Runtime, e.g. to pick
	// the compiler or interpreter engine. Defaults to
	// wazero.NewRuntimeConfig().
	WazeroConfig wazero.RuntimeConfig
}

// Runtime is the host-facing entry point: load mods, rebuild their
// combined schedules, and tick a label.
type Runtime struct {
	mu sync.Mutex

	wazero   wazero.Runtime
	loader   *loader.Loader
	registry *schedule.Registry
	log      logrus.FieldLogger

	mods      []*loader.LoadedMod
	schedules map[api.StableId]*schedule.Loaded
}

// New constructs a Runtime from cfg. It owns the returned wazero.Runtime
// for the lifetime of the Runtime; call Close to release it.
func New(ctx context.Context, cfg Config) *Runtime {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	wazeroCfg := cfg.WazeroConfig
	if wazeroCfg == nil {
		wazeroCfg = wazero.NewRuntimeConfig()
	}

	wz := wazero.NewRuntimeWithConfig(ctx, wazeroCfg)
	// Start and Update are always accepted; cfg.Labels adds to them.
	registry := schedule.NewRegistry(append([]api.StableId{api.LabelStart, api.LabelUpdate}, cfg.Labels...)...)

	return &Runtime{
		wazero:    wz,
		loader:    loader.New(wz, registry, log),
		registry:  registry,
		log:       log,
		schedules: make(map[api.StableId]*schedule.Loaded),
	}
}

// Close releases the underlying wazero runtime and every compiled
// module it holds.
func (r *Runtime) Close(ctx context.Context) error {
	return r.wazero.Close(ctx)
}

// LoadMod validates and compiles a mod from its manifest and wasm bytes
// (spec.md §4.4), adding it to the active set. It does not rebuild
// schedules; call RebuildSchedules afterward so that a batch of mods can
// be loaded before paying the rebuild cost once.
func (r *Runtime) LoadMod(ctx context.Context, manifestBytes, wasmBytes []byte) (*loader.LoadedMod, error) {
	mod, err := r.loader.Load(ctx, manifestBytes, wasmBytes)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.mods {
		if existing.Equal(mod) {
			return mod, nil
		}
	}
	r.mods = append(r.mods, mod)
	r.log.WithField("manifest_hash", mod.ManifestHash).Info("mod loaded")
	return mod, nil
}

// UnloadMod removes mod from the active set and closes its compiled
// module. Callers must call RebuildSchedules afterward.
func (r *Runtime) UnloadMod(ctx context.Context, mod *loader.LoadedMod) error {
	r.mu.Lock()
	for i, m := range r.mods {
		if m.Equal(mod) {
			r.mods = append(r.mods[:i], r.mods[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	return r.loader.Unload(ctx, mod)
}

// RebuildSchedules recompiles every registered label's schedule from the
// current active set's contributions, replacing the previous result
// wholesale on success (spec.md §3: a LoadedSchedule is never mutated in
// place). On failure the previous schedules are left untouched, so a
// single bad mod cannot corrupt a tick already in flight.
func (r *Runtime) RebuildSchedules() error {
	r.mu.Lock()
	var contributions []schedule.Contribution
	for _, mod := range r.mods {
		contributions = append(contributions, mod.Contributions()...)
	}
	r.mu.Unlock()

	compiled, err := r.registry.Compile(contributions)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.schedules = compiled
	r.mu.Unlock()
	r.log.WithField("labels", len(compiled)).Info("schedules rebuilt")
	return nil
}

// Tick runs one invocation of every system registered under label, in
// dependency order, using invoke to run each system (spec.md §4.6).
func (r *Runtime) Tick(ctx context.Context, label api.StableId, invoke tick.Invoker) error {
	r.mu.Lock()
	loaded, ok := r.schedules[label]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("harmonize: no compiled schedule for label %s; call RebuildSchedules after registering it", label)
	}
	return tick.New(invoke).Run(ctx, loaded)
}

// Mods returns the currently active set of loaded mods.
func (r *Runtime) Mods() []*loader.LoadedMod {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*loader.LoadedMod, len(r.mods))
	copy(out, r.mods)
	return out
}
