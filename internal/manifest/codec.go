// Package manifest implements the length-prefixed binary codec mods use
// to submit a ModManifest across the FFI boundary (spec.md §4.1), on top
// of CBOR (github.com/fxamacker/cbor/v2): a real, schema-less,
// length/discriminant-prefixed binary format, rather than a hand-rolled
// framing scheme.
package manifest

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/harmonize-run/harmonize/api"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// Canonical encoding gives deterministic byte output for the same
	// ModManifest value, which Testable Property 1 (round-trip) and the
	// manifest-hash-based dedup in internal/loader both depend on.
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("manifest: building canonical CBOR encoder: %v", err))
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("manifest: building CBOR decoder: %v", err))
	}
}

// Encode serializes a ModManifest to its wire form.
func Encode(m *api.ModManifest) ([]byte, error) {
	return encMode.Marshal(m)
}

// Decode parses the wire form of a ModManifest produced by Encode.
//
// Per spec.md §4.1, decoding must reject trailing bytes: after the outer
// object is parsed, the remaining input must be empty. cbor.Unmarshal
// alone tolerates trailing bytes (it only requires a well-formed prefix),
// so Decode instead drives a cbor.Decoder directly over the input and
// checks NumBytesRead against len(data).
func Decode(data []byte) (*api.ModManifest, error) {
	dec := decMode.NewDecoder(bytes.NewReader(data))
	var m api.ModManifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrInvalidManifest, err)
	}
	if dec.NumBytesRead() != len(data) {
		return nil, fmt.Errorf("%w: %d trailing byte(s)", api.ErrInvalidManifest, len(data)-dec.NumBytesRead())
	}
	return &m, nil
}

// HashBytes computes the FileHash (first 16 bytes of SHA-256) of an
// arbitrary byte slice. Used for both the manifest's own identity hash
// and the wasm content hash it must match (spec.md §3 Invariants).
func HashBytes(data []byte) api.FileHash {
	sum := sha256.Sum256(data)
	var h api.FileHash
	copy(h[:], sum[:16])
	return h
}
