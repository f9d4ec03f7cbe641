package api

// ResourceValue pairs a resource's type identity with its default,
// bitcode-encoded value, as contributed by one FeatureDescriptor.
type ResourceValue struct {
	Id    StableId `cbor:"0,keyasint"`
	Value []byte   `cbor:"1,keyasint"`
}

// FeatureDescriptor is a named group of schedules and resources
// contributed by one mod. A mod may declare several features; each is
// compiled independently for the purposes of manifest structure, but its
// schedules are merged with every other feature's (across every loaded
// mod) sharing the same schedule label.
type FeatureDescriptor struct {
	Name      string              `cbor:"0,keyasint"`
	Resources []ResourceValue     `cbor:"1,keyasint"`
	Schedules []ScheduleDescriptor `cbor:"2,keyasint"`
}

// ModManifest is the self-describing summary a mod submits to the host
// during the manifest-generation phase (spec.md §4.5). It is decoded once
// per mod load and is immutable thereafter.
type ModManifest struct {
	WasmHash FileHash            `cbor:"0,keyasint"`
	Features []FeatureDescriptor `cbor:"1,keyasint"`
}
