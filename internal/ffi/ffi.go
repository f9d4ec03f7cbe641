// Package ffi implements the runtime-mode host/guest boundary (C5,
// spec.md §4.5): the harmony_mod host imports a running system sees, and
// the harmony_mod_init / initiate exports the host calls to drive a tick.
package ffi

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/tetratelabs/wazero"
	wazeroapi "github.com/tetratelabs/wazero/api"

	"github.com/harmonize-run/harmonize/api"
)

// CommandSink receives the CommandBatch a guest passes to
// populate_command_buffer, and the single commands behind spawn_empty and
// set_component, and returns a CommandResult for each. Only spawn_empty
// uses that result; it is not relayed to the guest through
// consume_result_buffer.
type CommandSink interface {
	// Submit delivers the decoded CommandBatch a system produced.
	Submit(batch api.CommandBatch) api.CommandResult
}

// ResourceStore is the host-side resource table a running system reads
// and writes through get_local_type_id / set_resource / buffer_resource.
type ResourceStore interface {
	LocalTypeID(id api.StableId) (uint32, bool)
	Resource(localTypeID uint32) ([]byte, bool)
	SetResource(localTypeID uint32, value []byte)
}

// Instance wraps one instantiated guest module in runtime mode, along
// with the host-side state its imports close over.
type Instance struct {
	module wazeroapi.Module
	sink   CommandSink
	store  ResourceStore

	bufferedResource []byte // staged by buffer_resource, consumed by write_buffer_to
}

// Instantiate instantiates compiled with the harmony_mod runtime-mode
// import set bound to sink and store, then calls its harmony_mod_init
// export once (spec.md §4.5's init phase, e.g. registering startup
// resources).
func Instantiate(ctx context.Context, runtime wazero.Runtime, compiled wazero.CompiledModule, sink CommandSink, store ResourceStore) (*Instance, error) {
	inst := &Instance{sink: sink, store: store}

	builder := runtime.NewHostModuleBuilder("harmony_mod")
	inst.registerImports(builder)
	if _, err := builder.Instantiate(ctx); err != nil {
		return nil, &api.InvalidWasmError{Err: err}
	}

	mod, err := runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		return nil, &api.InvalidWasmError{Err: err}
	}
	inst.module = mod

	if initFn := mod.ExportedFunction("harmony_mod_init"); initFn != nil {
		if _, err := initFn.Call(ctx); err != nil {
			return nil, &api.InvalidWasmError{Err: err}
		}
	}
	return inst, nil
}

// Close releases the underlying wazero module instance.
func (i *Instance) Close(ctx context.Context) error {
	return i.module.Close(ctx)
}

// Invoke runs one system by calling the guest's "initiate" export with
// the given SystemId as its argument, implementing the tick driver's
// per-system invocation step (spec.md §4.6). A CommandBatch the guest
// passes to populate_command_buffer during that call is decoded and
// handed to the sink; the sink's CommandResult is not written back to
// the guest.
func (i *Instance) Invoke(ctx context.Context, sys api.SystemId) error {
	initiate := i.module.ExportedFunction("initiate")
	if initiate == nil {
		return &api.InvalidWasmError{Err: fmt.Errorf("missing export initiate")}
	}
	_, err := initiate.Call(ctx, uint64(sys))
	if err != nil {
		return &api.InvalidWasmError{Err: err}
	}
	return nil
}

func (i *Instance) registerImports(builder wazero.HostModuleBuilder) {
	builder.
		NewFunctionBuilder().
		WithFunc(i.spawnEmpty).
		Export("spawn_empty").
		NewFunctionBuilder().
		WithFunc(i.setComponent).
		Export("set_component").
		NewFunctionBuilder().
		WithFunc(i.getLocalTypeID).
		Export("get_local_type_id").
		NewFunctionBuilder().
		WithFunc(i.setResource).
		Export("set_resource").
		NewFunctionBuilder().
		WithFunc(i.bufferResource).
		Export("buffer_resource").
		NewFunctionBuilder().
		WithFunc(i.writeBufferTo).
		Export("write_buffer_to").
		NewFunctionBuilder().
		WithFunc(i.populateCommandBuffer).
		Export("populate_command_buffer").
		NewFunctionBuilder().
		WithFunc(i.consumeResultBuffer).
		Export("consume_result_buffer")
}

// spawnEmpty routes entity creation through the same CommandSink as any
// other world mutation, since entity allocation is owned by the ECS
// world (out of scope per spec.md §1) and the sink is this package's
// only seam into it. It returns the entity id reported in the sink's
// CommandResult, or 0 if the command failed.
func (i *Instance) spawnEmpty(ctx context.Context, m wazeroapi.Module) uint32 {
	result := i.sink.Submit(api.CommandBatch{Commands: []api.Command{{Kind: api.CommandSpawnEmpty}}})
	if result.Kind != api.CommandResultOk || len(result.SpawnedEntities) == 0 {
		return 0
	}
	return result.SpawnedEntities[0]
}

func (i *Instance) setComponent(ctx context.Context, m wazeroapi.Module, entity uint32, componentPtrLen uint64, payloadPtrLen uint64) {
	// Component writes route through the same CommandSink as any other
	// mutation, keeping a single serialization point for world writes.
	componentBytes, ok := readMemory(m, componentPtrLen)
	if !ok {
		return
	}
	payload, ok := readMemory(m, payloadPtrLen)
	if !ok {
		return
	}
	var stableID api.StableId
	if err := decodeStableID(componentBytes, &stableID); err != nil {
		return
	}
	i.sink.Submit(api.CommandBatch{Commands: []api.Command{{
		Kind:      api.CommandSetComponent,
		Entity:    entity,
		Component: stableID,
		Payload:   payload,
	}}})
}

func (i *Instance) getLocalTypeID(ctx context.Context, m wazeroapi.Module, stableIDPtrLen uint64) uint32 {
	raw, ok := readMemory(m, stableIDPtrLen)
	if !ok {
		return 0
	}
	var stableID api.StableId
	if err := decodeStableID(raw, &stableID); err != nil {
		return 0
	}
	id, ok := i.store.LocalTypeID(stableID)
	if !ok {
		return 0
	}
	return id
}

func (i *Instance) setResource(ctx context.Context, m wazeroapi.Module, localTypeID uint32, payloadPtrLen uint64) {
	payload, ok := readMemory(m, payloadPtrLen)
	if !ok {
		return
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	i.store.SetResource(localTypeID, cp)
}

func (i *Instance) bufferResource(ctx context.Context, m wazeroapi.Module, localTypeID uint32) uint32 {
	value, ok := i.store.Resource(localTypeID)
	if !ok {
		i.bufferedResource = nil
		return 0
	}
	i.bufferedResource = value
	return uint32(len(value))
}

func (i *Instance) writeBufferTo(ctx context.Context, m wazeroapi.Module, destOffset uint32) {
	if i.bufferedResource == nil {
		return
	}
	m.Memory().Write(destOffset, i.bufferedResource)
	i.bufferedResource = nil
}

func (i *Instance) populateCommandBuffer(ctx context.Context, m wazeroapi.Module, batchPtrLen uint64) {
	raw, ok := readMemory(m, batchPtrLen)
	if !ok {
		return
	}
	var batch api.CommandBatch
	if err := decodeCommandBatch(raw, &batch); err != nil {
		return
	}
	i.sink.Submit(batch)
}

func (i *Instance) consumeResultBuffer(ctx context.Context, m wazeroapi.Module, resultPtrLen uint64) {
	// The referenced range is read and discarded: no CommandResult is
	// written into the guest's result buffer, and the result Submit
	// returns in populateCommandBuffer is dropped.
	_, _ = readMemory(m, resultPtrLen)
}

// readMemory decodes a wasm pointer-length pair (low 32 bits offset, high
// 32 bits length, spec.md §4.5) and reads the referenced guest memory.
func readMemory(m wazeroapi.Module, ptrLen uint64) ([]byte, bool) {
	off := uint32(ptrLen)
	ln := uint32(ptrLen >> 32)
	return m.Memory().Read(off, ln)
}

func decodeStableID(data []byte, out *api.StableId) error {
	return cbor.Unmarshal(data, out)
}

func decodeCommandBatch(data []byte, out *api.CommandBatch) error {
	return cbor.Unmarshal(data, out)
}
