package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)

func TestPost_RunsInOrder(t *testing.T) {
	loop, _ := NewManualLoop(epoch)

	var got []int
	for i := 0; i < 3; i++ {
		i := i
		loop.Post(func() { got = append(got, i) })
	}
	loop.Drain()

	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestAfter_FiresAtDeadline(t *testing.T) {
	loop, clock := NewManualLoop(epoch)

	var firedAt time.Time
	loop.After(3*time.Second, func() { firedAt = clock.Now() })

	loop.Advance(2 * time.Second)
	assert.True(t, firedAt.IsZero(), "timer fired early")

	loop.Advance(time.Second)
	assert.Equal(t, epoch.Add(3*time.Second), firedAt)
}

func TestAdvance_FiresInDeadlineOrder(t *testing.T) {
	loop, _ := NewManualLoop(epoch)

	var order []string
	loop.After(5*time.Second, func() { order = append(order, "c") })
	loop.After(1*time.Second, func() { order = append(order, "a") })
	loop.After(3*time.Second, func() { order = append(order, "b") })

	loop.Advance(10 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestAdvance_TimerScheduledByTimer(t *testing.T) {
	loop, clock := NewManualLoop(epoch)

	var second time.Time
	loop.After(time.Second, func() {
		loop.After(time.Second, func() { second = clock.Now() })
	})

	loop.Advance(5 * time.Second)
	assert.Equal(t, epoch.Add(2*time.Second), second)
	assert.Equal(t, epoch.Add(5*time.Second), clock.Now())
}

func TestCancel(t *testing.T) {
	loop, _ := NewManualLoop(epoch)

	fired := false
	id := loop.After(time.Second, func() { fired = true })

	assert.True(t, loop.Pending(id))
	assert.True(t, loop.Cancel(id))
	assert.False(t, loop.Cancel(id), "second cancel must report false")

	loop.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestCancel_AfterFire(t *testing.T) {
	loop, _ := NewManualLoop(epoch)

	id := loop.After(time.Second, func() {})
	loop.Advance(time.Second)

	assert.False(t, loop.Pending(id))
	assert.False(t, loop.Cancel(id))
	assert.False(t, loop.Cancel(0))
}

func TestDebounce_CancelAndReschedule(t *testing.T) {
	loop, clock := NewManualLoop(epoch)

	var runs []time.Time
	var pending TimerID
	trigger := func() {
		loop.Cancel(pending)
		pending = loop.After(3*time.Second, func() { runs = append(runs, clock.Now()) })
	}

	trigger()
	loop.Advance(2 * time.Second)
	trigger()
	loop.Advance(2 * time.Second)
	trigger()
	loop.Advance(5 * time.Second)

	require.Len(t, runs, 1)
	assert.Equal(t, epoch.Add(7*time.Second), runs[0])
}

func TestEvery(t *testing.T) {
	loop, _ := NewManualLoop(epoch)

	count := 0
	id := loop.Every(10*time.Second, func() { count++ })

	loop.Advance(35 * time.Second)
	assert.Equal(t, 3, count)

	assert.True(t, loop.Cancel(id))
	loop.Advance(time.Minute)
	assert.Equal(t, 3, count)
}

func TestEvery_CancelFromCallback(t *testing.T) {
	loop, _ := NewManualLoop(epoch)

	count := 0
	var id TimerID
	id = loop.Every(time.Second, func() {
		count++
		if count == 2 {
			loop.Cancel(id)
		}
	})

	loop.Advance(10 * time.Second)
	assert.Equal(t, 2, count)
}

func TestInvoke_RecoversPanic(t *testing.T) {
	loop, _ := NewManualLoop(epoch)

	after := false
	loop.Post(func() { panic("boom") })
	loop.Post(func() { after = true })
	loop.Drain()

	assert.True(t, after, "loop must keep running after a panicking task")
}

func TestRun_SystemClock(t *testing.T) {
	loop := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	var fired atomic.Int32
	loop.Post(func() {
		loop.After(20*time.Millisecond, func() { fired.Add(1) })
	})

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	err := <-done
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRun_AlreadyRunning(t *testing.T) {
	loop := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	go func() {
		loop.Post(func() { close(started) })
		_ = loop.Run(ctx)
	}()
	<-started

	err := loop.Run(ctx)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestManualClock(t *testing.T) {
	clock := NewManualClock(epoch)
	clock.Add(time.Minute)
	assert.Equal(t, epoch.Add(time.Minute), clock.Now())

	clock.Set(epoch)
	assert.Equal(t, epoch, clock.Now())
}
