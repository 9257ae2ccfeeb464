package dispatch

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"
)

// TimerID identifies a scheduled callback. The zero value never refers to
// a live timer.
type TimerID uint64

// Scheduler is the timer surface the heating components depend on.
type Scheduler interface {
	After(d time.Duration, fn func()) TimerID
	Every(d time.Duration, fn func()) TimerID
	Cancel(id TimerID) bool
	Now() time.Time
}

// Poster queues work for execution on the loop goroutine.
type Poster interface {
	Post(fn func())
}

// Logger is the logging interface used by the loop.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type timer struct {
	id       TimerID
	deadline time.Time
	period   time.Duration
	fn       func()
	index    int
}

// Loop is a single-threaded task queue with a timer heap.
type Loop struct {
	clock  Clock
	logger Logger

	mu     sync.Mutex
	tasks  []func()
	timers timerHeap
	byID   map[TimerID]*timer
	nextID TimerID

	wake    chan struct{}
	running bool
}

// New creates a Loop driven by the system clock.
func New() *Loop {
	return newLoop(systemClock{})
}

// NewManualLoop creates a Loop driven by a ManualClock set to start.
// The loop is meant to be driven with Drain and Advance rather than Run.
func NewManualLoop(start time.Time) (*Loop, *ManualClock) {
	clock := NewManualClock(start)
	return newLoop(clock), clock
}

func newLoop(clock Clock) *Loop {
	return &Loop{
		clock:  clock,
		logger: noopLogger{},
		byID:   make(map[TimerID]*timer),
		wake:   make(chan struct{}, 1),
	}
}

// SetLogger sets the logger used to report recovered panics.
func (l *Loop) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	l.logger = logger
}

// Now returns the loop clock's current time.
func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

// Post queues fn to run on the loop goroutine. Safe for concurrent use.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
	l.signal()
}

// After schedules fn to run once, d from now.
func (l *Loop) After(d time.Duration, fn func()) TimerID {
	return l.schedule(d, 0, fn)
}

// Every schedules fn to run every d, first firing d from now.
// A non-positive d is treated as one second.
func (l *Loop) Every(d time.Duration, fn func()) TimerID {
	if d <= 0 {
		d = time.Second
	}
	return l.schedule(d, d, fn)
}

func (l *Loop) schedule(d, period time.Duration, fn func()) TimerID {
	if d < 0 {
		d = 0
	}
	l.mu.Lock()
	l.nextID++
	t := &timer{
		id:       l.nextID,
		deadline: l.clock.Now().Add(d),
		period:   period,
		fn:       fn,
	}
	heap.Push(&l.timers, t)
	l.byID[t.id] = t
	l.mu.Unlock()
	l.signal()
	return t.id
}

// Cancel stops a pending timer. It returns false when the timer already
// fired or does not exist.
func (l *Loop) Cancel(id TimerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.byID[id]
	if !ok {
		return false
	}
	delete(l.byID, id)
	heap.Remove(&l.timers, t.index)
	return true
}

// Pending reports whether the timer is still scheduled.
func (l *Loop) Pending(id TimerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.byID[id]
	return ok
}

// Run executes queued tasks and timers until ctx is cancelled.
// It must be called from exactly one goroutine.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrAlreadyRunning
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	idle := time.NewTimer(time.Hour)
	defer idle.Stop()

	for {
		l.Drain()

		wait := time.Hour
		l.mu.Lock()
		if len(l.timers) > 0 {
			wait = l.timers[0].deadline.Sub(l.clock.Now())
		}
		l.mu.Unlock()
		if wait < 0 {
			wait = 0
		}

		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		case <-idle.C:
		}
	}
}

// Drain runs queued tasks and every timer due at the current clock time
// until nothing is left to do.
func (l *Loop) Drain() {
	for {
		ran := false
		for _, fn := range l.takeTasks() {
			l.invoke(fn)
			ran = true
		}
		if fn := l.popDue(l.clock.Now()); fn != nil {
			l.invoke(fn)
			ran = true
		}
		if !ran {
			return
		}
	}
}

// Advance moves a ManualClock forward by d, firing due timers in deadline
// order with the clock set to each timer's deadline. Queued tasks are
// drained after every timer.
func (l *Loop) Advance(d time.Duration) {
	clock, ok := l.clock.(*ManualClock)
	if !ok {
		panic("dispatch: Advance requires a ManualClock")
	}

	target := clock.Now().Add(d)
	l.Drain()
	for {
		l.mu.Lock()
		if len(l.timers) == 0 || l.timers[0].deadline.After(target) {
			l.mu.Unlock()
			break
		}
		next := l.timers[0].deadline
		l.mu.Unlock()

		if next.After(clock.Now()) {
			clock.Set(next)
		}
		l.Drain()
	}
	clock.Set(target)
	l.Drain()
}

func (l *Loop) takeTasks() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	tasks := l.tasks
	l.tasks = nil
	return tasks
}

// popDue removes the earliest timer if it is due and returns its callback.
// Periodic timers are rescheduled before the callback runs so the callback
// may cancel itself.
func (l *Loop) popDue(now time.Time) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.timers) == 0 || l.timers[0].deadline.After(now) {
		return nil
	}

	t := l.timers[0]
	if t.period > 0 {
		t.deadline = t.deadline.Add(t.period)
		if !t.deadline.After(now) {
			t.deadline = now.Add(t.period)
		}
		heap.Fix(&l.timers, 0)
	} else {
		heap.Pop(&l.timers)
		delete(l.byID, t.id)
	}
	return t.fn
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("dispatch task panicked", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// timerHeap orders timers by deadline, then by scheduling order.
type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].id < h[j].id
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*timer) //nolint:forcetypeassert // heap only holds *timer
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
