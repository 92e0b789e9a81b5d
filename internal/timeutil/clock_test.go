package timeutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClockAfterAdvances(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	got := <-c.After(200 * time.Millisecond)
	assert.Equal(t, start.Add(200*time.Millisecond), got)
	assert.Equal(t, start.Add(200*time.Millisecond), c.Now())
	assert.Equal(t, []time.Duration{200 * time.Millisecond}, c.Waits())

	c.Advance(time.Second)
	assert.Equal(t, 1200*time.Millisecond, c.Since(start))
}

func TestMockClockSet(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	later := start.Add(90 * time.Minute)
	c.Set(later)
	assert.Equal(t, later, c.Now())
	assert.Equal(t, 90*time.Minute, c.Since(start))

	// Moving backwards is allowed.
	c.Set(start)
	assert.Equal(t, time.Duration(0), c.Since(start))
	assert.Empty(t, c.Waits())
}

func TestWaitZeroDurationDoesNotWait(t *testing.T) {
	c := NewMockClock(time.Now())
	require.NoError(t, Wait(context.Background(), c, 0))
	assert.Empty(t, c.Waits())
}

func TestWaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Wait(ctx, RealClock{}, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitRealClock(t *testing.T) {
	start := time.Now()
	require.NoError(t, Wait(context.Background(), RealClock{}, 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
