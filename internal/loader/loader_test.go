package loader

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"

	"github.com/harmonize-run/harmonize/api"
	"github.com/harmonize-run/harmonize/internal/manifest"
	"github.com/harmonize-run/harmonize/internal/schedule"
)

// minimalWasm is the smallest valid wasm binary: the 8-byte header with
// no sections. wazero compiles it successfully since it declares nothing.
var minimalWasm = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func sampleManifestBytes(t *testing.T, wasmHash api.FileHash) []byte {
	t.Helper()
	m := &api.ModManifest{
		WasmHash: wasmHash,
		Features: []api.FeatureDescriptor{
			{
				Name: "core",
				Schedules: []api.ScheduleDescriptor{
					{Label: api.LabelUpdate, Schedule: api.Schedule{
						Systems: []api.System{{Id: 1, Name: "noop"}},
					}},
				},
			},
		},
	}
	encoded, err := manifest.Encode(m)
	require.NoError(t, err)
	return encoded
}

func newTestLoader(t *testing.T) (*Loader, wazero.Runtime, *test.Hook) {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })

	reg := schedule.NewRegistry(api.LabelStart, api.LabelUpdate)
	log, hook := test.NewNullLogger()
	l := New(rt, reg, log)
	return l, rt, hook
}

// Testable property 3: mismatching manifest/wasm hashes are rejected.
func TestLoadRejectsMismatchingHash(t *testing.T) {
	l, _, _ := newTestLoader(t)
	wrongHash := api.FileHash{0xff}
	manifestBytes := sampleManifestBytes(t, wrongHash)

	_, err := l.Load(context.Background(), manifestBytes, minimalWasm)
	require.ErrorIs(t, err, api.ErrMismatchingDependencies)
}

func TestLoadRejectsUnregisteredLabel(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	reg := schedule.NewRegistry(api.LabelStart) // Update not registered
	l := New(rt, reg, logrus.New())

	wasmHash := manifest.HashBytes(minimalWasm)
	manifestBytes := sampleManifestBytes(t, wasmHash)

	_, err := l.Load(ctx, manifestBytes, minimalWasm)
	require.Error(t, err)
	var scheduleErr *api.InvalidScheduleError
	require.ErrorAs(t, err, &scheduleErr)
}

func TestLoadSucceedsWithMatchingHash(t *testing.T) {
	l, _, _ := newTestLoader(t)
	wasmHash := manifest.HashBytes(minimalWasm)
	manifestBytes := sampleManifestBytes(t, wasmHash)

	mod, err := l.Load(context.Background(), manifestBytes, minimalWasm)
	require.NoError(t, err)
	assert.Equal(t, manifest.HashBytes(manifestBytes), mod.ManifestHash)
	require.Len(t, mod.Features, 1)
	assert.Equal(t, "core", mod.Features[0].Name)
}

// Testable property 4: reloading the same manifest bytes is idempotent
// and returns the identical LoadedMod rather than recompiling.
func TestLoadIsIdempotent(t *testing.T) {
	l, _, hook := newTestLoader(t)
	wasmHash := manifest.HashBytes(minimalWasm)
	manifestBytes := sampleManifestBytes(t, wasmHash)

	first, err := l.Load(context.Background(), manifestBytes, minimalWasm)
	require.NoError(t, err)

	second, err := l.Load(context.Background(), manifestBytes, minimalWasm)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.NotEmpty(t, hook.AllEntries())
}

func TestReserveComponentIDIncrements(t *testing.T) {
	l, _, _ := newTestLoader(t)
	first := l.ReserveComponentID()
	second := l.ReserveComponentID()
	assert.Equal(t, first+1, second)
}

func TestEncodeDecodePtrLenRoundTrip(t *testing.T) {
	v := EncodePtrLen(0x1234, 0x5678)
	off, ln := decodePtrLen(v)
	assert.Equal(t, uint32(0x1234), off)
	assert.Equal(t, uint32(0x5678), ln)
}
