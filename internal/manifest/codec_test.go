package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonize-run/harmonize/api"
)

func sampleManifest() *api.ModManifest {
	resID := api.StableId{CrateName: "mymod", Version: "0.1.0", Name: "Position"}
	sysID := api.StableId{CrateName: "mymod", Version: "0.1.0", Name: "move_system"}
	return &api.ModManifest{
		WasmHash: api.FileHash{1, 2, 3, 4},
		Features: []api.FeatureDescriptor{
			{
				Name:      "movement",
				Resources: []api.ResourceValue{{Id: resID, Value: []byte{9, 9, 9}}},
				Schedules: []api.ScheduleDescriptor{
					{
						Label: api.LabelUpdate,
						Schedule: api.Schedule{
							Systems: []api.System{
								{Id: 1, Name: "move_system", Params: []api.Param{
									api.CommandParam(),
									api.ResParam(true, resID),
								}},
							},
							Constraints: []api.Constraint{
								api.Order(api.Anonymous(1), api.Anonymous(1)),
								api.Includes(resID, api.Named(sysID)),
								api.Condition(api.Anonymous(2), 3),
							},
						},
					},
				},
			},
		},
	}
}

// Testable property 1: codec round-trip.
func TestRoundTrip(t *testing.T) {
	m := sampleManifest()
	encoded, err := Encode(m)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
}

// Testable property 2: reject trailing bytes.
func TestRejectTrailingBytes(t *testing.T) {
	encoded, err := Encode(sampleManifest())
	require.NoError(t, err)

	_, err = Decode(append(encoded, 0xFF))
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrInvalidManifest)
}

func TestDecodeGarbageIsInvalidManifest(t *testing.T) {
	_, err := Decode([]byte{0xFF, 0xFF, 0xFF})
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrInvalidManifest)
}

func TestHashBytesIsDeterministic(t *testing.T) {
	data := []byte("wasm bytes go here")
	assert.Equal(t, HashBytes(data), HashBytes(data))
	assert.NotEqual(t, HashBytes(data), HashBytes([]byte("different")))
}
