package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountdownNeverLeavesBounds(t *testing.T) {
	c := NewCountdown("question", nil, nil, nil, nil)
	c.Reset(5)

	for i := 0; i < 10; i++ {
		c.Tick()
		assert.GreaterOrEqual(t, c.Remaining(), 0)
		assert.LessOrEqual(t, c.Remaining(), 5)
	}
	assert.Equal(t, 0, c.Remaining())
}

func TestCountdownZeroFiresExactlyOnce(t *testing.T) {
	fired := 0
	c := NewCountdown("question", nil, nil, nil, func() { fired++ })
	c.Reset(2)

	c.Tick()
	require.Equal(t, 0, fired)
	c.Tick()
	require.Equal(t, 1, fired)
	c.Tick()
	c.Tick()
	require.Equal(t, 1, fired, "at-zero callback must not repeat")
}

func TestCountdownThresholdFiresAtMostOncePerAttempt(t *testing.T) {
	var marks []int
	c := NewCountdown("quiz", []int{3}, nil, func(mark int) { marks = append(marks, mark) }, nil)
	c.Reset(5)

	for i := 0; i < 5; i++ {
		c.Tick()
	}
	require.Equal(t, []int{3}, marks)

	// Re-arming the budget must not replay the warning: the latch is per
	// attempt, not per value.
	c.Reset(5)
	for i := 0; i < 5; i++ {
		c.Tick()
	}
	require.Equal(t, []int{3}, marks)
}

func TestCountdownThresholdSurvivesMissedTicks(t *testing.T) {
	var marks []int
	c := NewCountdown("quiz", []int{60}, nil, func(mark int) { marks = append(marks, mark) }, nil)
	c.Reset(100)

	// Jump straight past the mark, as a delayed tick after a resync would.
	c.Sync(58)
	c.Tick()
	require.Equal(t, []int{60}, marks, "crossing the mark without hitting it exactly still warns once")
}

func TestCountdownSuspendedHoldsTicks(t *testing.T) {
	suspended := true
	c := NewCountdown("question", nil, func() bool { return suspended }, nil, nil)
	c.Reset(3)

	c.Tick()
	c.Tick()
	assert.Equal(t, 3, c.Remaining())

	suspended = false
	c.Tick()
	assert.Equal(t, 2, c.Remaining())
}

func TestCountdownSyncToZeroFiresDeadlineWhileSuspended(t *testing.T) {
	fired := 0
	suspended := true
	c := NewCountdown("quiz", nil, func() bool { return suspended }, nil, func() { fired++ })
	c.Reset(600)

	// Ticks are held while a submission is in flight, but the wall clock
	// keeps moving past the deadline.
	c.Tick()
	c.Tick()
	require.Equal(t, 600, c.Remaining())

	c.Sync(0)
	require.Equal(t, 1, fired, "countdown at zero must trigger finalize-by-timeout")

	suspended = false
	for i := 0; i < 5; i++ {
		c.Tick()
	}
	require.Equal(t, 1, fired, "deadline fires once")
	assert.Equal(t, 0, c.Remaining())
}

func TestCountdownRestartAfterStopDoesNotPanic(t *testing.T) {
	c := NewCountdown("question", nil, nil, nil, nil)
	c.Reset(3)
	c.Start()
	c.Stop()

	require.NotPanics(t, func() {
		c.Start()
		c.Stop()
	})
}

func TestCountdownSyncClampsToBudget(t *testing.T) {
	c := NewCountdown("quiz", nil, nil, nil, nil)
	c.Reset(10)

	c.Sync(50)
	assert.Equal(t, 10, c.Remaining())
	c.Sync(-4)
	assert.Equal(t, 0, c.Remaining())
}

func TestCountdownStopIsFinal(t *testing.T) {
	fired := 0
	c := NewCountdown("question", nil, nil, nil, func() { fired++ })
	c.Reset(1)
	c.Stop()
	c.Tick()
	assert.Equal(t, 0, fired)
	assert.Equal(t, 1, c.Remaining())

	c.Stop() // idempotent
}
