package agents

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/model"
)

func TestConfigProviderReserve(t *testing.T) {
	ctx := context.Background()
	p := NewConfigProvider(1, 2)

	snap, err := p.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.AvailabilitySnapshot{SeniorSlots: 1, RegularSlots: 2}, snap)

	require.NoError(t, p.Reserve(ctx, model.HandlerSenior))
	require.NoError(t, p.Reserve(ctx, model.HandlerRegular))

	snap, err = p.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.AvailabilitySnapshot{SeniorSlots: 0, RegularSlots: 1}, snap)
}

func TestConfigProviderNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	p := NewConfigProvider(0, 0)

	require.NoError(t, p.Reserve(ctx, model.HandlerSenior))
	require.NoError(t, p.Reserve(ctx, model.HandlerRegular))
	require.NoError(t, p.Reserve(ctx, model.HandlerAutomated))

	snap, err := p.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.AvailabilitySnapshot{}, snap)
}

func TestConfigProviderConcurrentReserve(t *testing.T) {
	ctx := context.Background()
	p := NewConfigProvider(100, 0)

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Reserve(ctx, model.HandlerSenior)
		}()
	}
	wg.Wait()

	snap, err := p.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.SeniorSlots)
}
