package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDriver_RejectsBadSchedule(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := NewDriver(h.orc, DriverConfig{Schedule: "every now and then"})
	assert.Error(t, err)
}

func TestDriver_SingleModeRunsUntilDrained(t *testing.T) {
	h := newHarness(t, Config{Policy: NewModePolicy(ModeSingle, 0, []string{})})
	h.orc.Start()
	require.NoError(t, h.orc.AddTask("Implement: X", 0))

	var (
		mu    sync.Mutex
		ticks []TickResult
	)
	d, err := NewDriver(h.orc, DriverConfig{
		Schedule: "@every 1s",
		OnTick: func(r TickResult) {
			mu.Lock()
			ticks = append(ticks, r)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, d.Run(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, ticks, 2)
	assert.Equal(t, "ENGINEER", ticks[0].Assigned[0].Agent)
	assert.Equal(t, "QA_LEAD", ticks[1].Assigned[0].Agent)
	assert.Empty(t, h.orc.Queue())
}

func TestDriver_ReturnsStalled(t *testing.T) {
	h := newHarness(t, Config{})
	h.orc.Start()
	require.NoError(t, h.orc.AddTask("water the plants", 0))

	d, err := NewDriver(h.orc, DriverConfig{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.ErrorIs(t, d.Run(ctx), ErrQueueStalled)
}

func TestDriver_StopsAtMaxIterations(t *testing.T) {
	h := newHarness(t, Config{Policy: NewModePolicy(ModeAutonomous, 1, nil)})
	h.orc.Start()

	d, err := NewDriver(h.orc, DriverConfig{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Run(ctx))
	assert.Equal(t, 1, h.orc.IterationCount())
}

func TestDriver_HonoursContext(t *testing.T) {
	h := newHarness(t, Config{})
	h.orc.Start()

	d, err := NewDriver(h.orc, DriverConfig{Schedule: "@every 1s"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Run(ctx), context.DeadlineExceeded)
}

func TestDriver_NotRunningReturnsImmediately(t *testing.T) {
	h := newHarness(t, Config{})
	d, err := NewDriver(h.orc, DriverConfig{})
	require.NoError(t, err)
	assert.NoError(t, d.Run(context.Background()))
	assert.Equal(t, 0, h.orc.IterationCount())
}

func TestDriver_KeepAliveIgnoresStall(t *testing.T) {
	h := newHarness(t, Config{})
	h.orc.Start()
	require.NoError(t, h.orc.AddTask("water the plants", 0))

	d, err := NewDriver(h.orc, DriverConfig{Schedule: "@every 1s", KeepAlive: true})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Run(ctx), context.DeadlineExceeded)
	assert.GreaterOrEqual(t, h.orc.IterationCount(), 2)
}
