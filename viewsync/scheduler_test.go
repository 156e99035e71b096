package viewsync

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const (
	timeout = time.Second
	tick    = 5 * time.Millisecond
)

func TestManualScheduler_TickRunsInOrder(t *testing.T) {
	var s ManualScheduler
	var got []int
	s.Defer(func() { got = append(got, 1) })
	s.Defer(func() { got = append(got, 2) })

	assert.Equal(t, 2, s.Pending())
	assert.Equal(t, 2, s.Tick())
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, 0, s.Tick())
}

func TestManualScheduler_Cancel(t *testing.T) {
	var s ManualScheduler
	ran := false
	cancel := s.Defer(func() { ran = true })

	assert.True(t, cancel())
	assert.False(t, cancel())
	assert.Equal(t, 0, s.Tick())
	assert.False(t, ran)
}

func TestManualScheduler_CancelDuringTick(t *testing.T) {
	var s ManualScheduler
	var cancelSecond func() bool
	secondRan := false
	s.Defer(func() { cancelSecond() })
	cancelSecond = s.Defer(func() { secondRan = true })

	assert.Equal(t, 1, s.Tick())
	assert.False(t, secondRan)
}

func TestManualScheduler_DeferDuringTickWaits(t *testing.T) {
	var s ManualScheduler
	nested := false
	s.Defer(func() {
		s.Defer(func() { nested = true })
	})

	s.Tick()
	assert.False(t, nested)
	assert.Equal(t, 1, s.Pending())
	s.Tick()
	assert.True(t, nested)
}

func TestTimerScheduler(t *testing.T) {
	var ran atomic.Bool
	TimerScheduler{}.Defer(func() { ran.Store(true) })
	assert.Eventually(t, ran.Load, timeout, tick)
}
