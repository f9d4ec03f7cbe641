package tick

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonize-run/harmonize/api"
	"github.com/harmonize-run/harmonize/internal/schedule"
)

const (
	sysA api.SystemId = iota + 1
	sysB
	sysC
)

func compile(t *testing.T, sched *api.Schedule) *schedule.Loaded {
	t.Helper()
	b := schedule.NewBuilder()
	require.NoError(t, b.AddSchedule(sched, 0))
	loaded, err := b.Build()
	require.NoError(t, err)
	return loaded
}

func TestRunVisitsInDependencyOrder(t *testing.T) {
	sched := &api.Schedule{
		Systems: []api.System{{Id: sysA}, {Id: sysB}, {Id: sysC}},
		Constraints: []api.Constraint{
			api.Order(api.Anonymous(sysA), api.Anonymous(sysB)),
			api.Order(api.Anonymous(sysB), api.Anonymous(sysC)),
		},
	}
	loaded := compile(t, sched)

	var order []api.SystemId
	position := make(map[api.SystemId]int)
	driver := New(func(ctx context.Context, sys api.SystemId) error {
		position[sys] = len(order)
		order = append(order, sys)
		return nil
	})

	require.NoError(t, driver.Run(context.Background(), loaded))
	assert.Len(t, order, 3)
	assert.Less(t, position[sysA], position[sysB])
	assert.Less(t, position[sysB], position[sysC])
}

func TestRunStopsOnInvokerError(t *testing.T) {
	sched := &api.Schedule{Systems: []api.System{{Id: sysA}, {Id: sysB}}}
	loaded := compile(t, sched)

	driver := New(func(ctx context.Context, sys api.SystemId) error {
		if sys == sysA {
			return assert.AnError
		}
		return nil
	})

	err := driver.Run(context.Background(), loaded)
	require.Error(t, err)
}

func TestRunRespectsCancellation(t *testing.T) {
	sched := &api.Schedule{
		Systems: []api.System{{Id: sysA}, {Id: sysB}},
		Constraints: []api.Constraint{
			api.Order(api.Anonymous(sysA), api.Anonymous(sysB)),
		},
	}
	loaded := compile(t, sched)

	ctx, cancel := context.WithCancel(context.Background())
	driver := New(func(ctx context.Context, sys api.SystemId) error {
		cancel()
		return nil
	})

	err := driver.Run(ctx, loaded)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
