package api

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// CommandKind discriminates the batched ECS mutations a guest can submit
// through a single initiate() call (spec.md §4.5), mirroring the
// unbatched spawn_empty/set_component/set_resource imports one-for-one so
// that a runtime-mode guest can choose either calling convention.
type CommandKind uint8

const (
	// CommandSpawnEmpty allocates a new entity with no components.
	CommandSpawnEmpty CommandKind = iota
	// CommandSetComponent attaches a component, identified by a StableId
	// pair, to an existing entity.
	CommandSetComponent
	// CommandSetResource replaces the value of a resource, identified by
	// a previously-interned local type id (see get_local_type_id).
	CommandSetResource
)

// Command is one entry in a batch submitted via initiate(). Which fields
// are meaningful depends on Kind, exactly like Param and SystemSet.
type Command struct {
	Kind CommandKind

	// CommandSpawnEmpty: no fields.

	// CommandSetComponent
	Entity    uint32
	Component StableId

	// CommandSetResource
	LocalTypeId uint32

	// CommandSetComponent and CommandSetResource
	Payload []byte
}

type cborCommand struct {
	_           struct{} `cbor:",toarray"`
	Kind        CommandKind
	Entity      uint32
	Component   StableId
	LocalTypeId uint32
	Payload     []byte
}

// MarshalCBOR implements cbor.Marshaler.
func (c Command) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cborCommand{
		Kind: c.Kind, Entity: c.Entity, Component: c.Component,
		LocalTypeId: c.LocalTypeId, Payload: c.Payload,
	})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (c *Command) UnmarshalCBOR(data []byte) error {
	var wire cborCommand
	if err := cbor.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch wire.Kind {
	case CommandSpawnEmpty, CommandSetComponent, CommandSetResource:
	default:
		return fmt.Errorf("api: unknown Command discriminant %d", wire.Kind)
	}
	*c = Command{
		Kind: wire.Kind, Entity: wire.Entity, Component: wire.Component,
		LocalTypeId: wire.LocalTypeId, Payload: wire.Payload,
	}
	return nil
}

// CommandBatch is the payload of one initiate() call: a flat list of
// Commands executed in order against the ECS world.
type CommandBatch struct {
	Commands []Command `cbor:"0,keyasint"`
}

// CommandResultKind discriminates CommandResult's variants.
type CommandResultKind uint8

const (
	// CommandResultOk indicates every command in the batch applied
	// cleanly; SpawnedEntities holds the ids spawn_empty-equivalent
	// commands produced, in submission order.
	CommandResultOk CommandResultKind = iota
	// CommandResultErr indicates the batch was rejected before any
	// command in it was applied to the world.
	CommandResultErr
)

// CommandResult is the response a guest receives from one initiate()
// call, surfaced to the host via consume_result_buffer.
type CommandResult struct {
	Kind            CommandResultKind
	SpawnedEntities []uint32
	Message         string
}

type cborCommandResult struct {
	_               struct{} `cbor:",toarray"`
	Kind            CommandResultKind
	SpawnedEntities []uint32
	Message         string
}

// MarshalCBOR implements cbor.Marshaler.
func (r CommandResult) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cborCommandResult{Kind: r.Kind, SpawnedEntities: r.SpawnedEntities, Message: r.Message})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (r *CommandResult) UnmarshalCBOR(data []byte) error {
	var wire cborCommandResult
	if err := cbor.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = CommandResult{Kind: wire.Kind, SpawnedEntities: wire.SpawnedEntities, Message: wire.Message}
	return nil
}
