package harmonize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonize-run/harmonize/api"
	"github.com/harmonize-run/harmonize/internal/manifest"
)

var minimalWasm = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func buildManifest(t *testing.T, sysID api.SystemId) []byte {
	t.Helper()
	m := &api.ModManifest{
		WasmHash: manifest.HashBytes(minimalWasm),
		Features: []api.FeatureDescriptor{
			{
				Name: "core",
				Schedules: []api.ScheduleDescriptor{
					{Label: api.LabelUpdate, Schedule: api.Schedule{
						Systems: []api.System{{Id: sysID, Name: "noop"}},
					}},
				},
			},
		},
	}
	encoded, err := manifest.Encode(m)
	require.NoError(t, err)
	return encoded
}

func TestLoadModThenRebuildThenTick(t *testing.T) {
	ctx := context.Background()
	rt := New(ctx, Config{Labels: []api.StableId{api.LabelStart, api.LabelUpdate}})
	defer rt.Close(ctx)

	_, err := rt.LoadMod(ctx, buildManifest(t, 1), minimalWasm)
	require.NoError(t, err)
	require.NoError(t, rt.RebuildSchedules())

	var invoked []api.SystemId
	err = rt.Tick(ctx, api.LabelUpdate, func(ctx context.Context, sys api.SystemId) error {
		invoked = append(invoked, sys)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []api.SystemId{1}, invoked)
}

func TestTickWithoutRebuildFails(t *testing.T) {
	ctx := context.Background()
	rt := New(ctx, Config{Labels: []api.StableId{api.LabelUpdate}})
	defer rt.Close(ctx)

	err := rt.Tick(ctx, api.LabelUpdate, func(ctx context.Context, sys api.SystemId) error { return nil })
	require.Error(t, err)
}

func TestLoadModIsIdempotentAcrossRuntime(t *testing.T) {
	ctx := context.Background()
	rt := New(ctx, Config{Labels: []api.StableId{api.LabelUpdate}})
	defer rt.Close(ctx)

	manifestBytes := buildManifest(t, 7)
	first, err := rt.LoadMod(ctx, manifestBytes, minimalWasm)
	require.NoError(t, err)
	second, err := rt.LoadMod(ctx, manifestBytes, minimalWasm)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Len(t, rt.Mods(), 1)
}
