// Package tick implements the tick driver (C6, spec.md §4.6): topological
// invocation of a flattened schedule's systems, one schedule label at a
// time, with cooperative shutdown between systems.
package tick

import (
	"context"
	"fmt"

	"github.com/harmonize-run/harmonize/api"
	"github.com/harmonize-run/harmonize/internal/schedule"
)

// Invoker runs one system and reports whether it, and in turn the whole
// tick, should continue. Host code supplies this — internal/ffi's
// Instance.Invoke is the real implementation; tests inject a fake.
type Invoker func(ctx context.Context, sys api.SystemId) error

// Driver runs a flattened schedule to completion for a single tick,
// invoking each system exactly once in an order consistent with the
// schedule's dependency DAG.
type Driver struct {
	invoke Invoker
}

// New returns a Driver that calls invoke for every system it visits.
func New(invoke Invoker) *Driver {
	return &Driver{invoke: invoke}
}

// Run walks loaded in dependency order: it seeds a ready queue from
// loaded.ReadySystems(), invokes each ready system, and enqueues any
// successor whose remaining in-degree reaches zero, continuing until
// every system has run exactly once or ctx is canceled (spec.md §4.6
// steps 1-4). It returns ctx.Err() if canceled mid-tick, leaving
// remaining systems uninvoked for this tick — the caller decides whether
// to retry on the next tick boundary.
func (d *Driver) Run(ctx context.Context, loaded *schedule.Loaded) error {
	remaining := make(map[api.SystemId]int, len(loaded.Systems))
	for id := range loaded.Systems {
		remaining[id] = 0
	}
	for _, edges := range loaded.Edges() {
		remaining[edges[1]]++
	}

	queue := loaded.ReadySystems()
	visited := make(map[api.SystemId]bool, len(loaded.Systems))

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		sys := queue[0]
		queue = queue[1:]
		if visited[sys] {
			continue
		}
		visited[sys] = true

		if err := d.invoke(ctx, sys); err != nil {
			return fmt.Errorf("system %d: %w", sys, err)
		}

		for _, succ := range loaded.Successors(sys) {
			remaining[succ]--
			if remaining[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}

	if len(visited) != len(loaded.Systems) {
		return fmt.Errorf("tick: %d of %d systems unreachable from ready set; schedule graph is disconnected from a cycle-free root", len(loaded.Systems)-len(visited), len(loaded.Systems))
	}
	return nil
}
