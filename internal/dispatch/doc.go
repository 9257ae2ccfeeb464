// Package dispatch provides the single-threaded event loop that every
// heating component runs on.
//
// All entity changes, host events and timer callbacks are posted to one
// Loop and executed to completion, one at a time, on the goroutine that
// calls Run. Handlers therefore never need locks: a debounce timer can be
// cancelled and rescheduled without racing the callback it replaces.
//
// Other goroutines (the MQTT client, the HTTP API) interact with the loop
// only through Post, which is safe for concurrent use.
//
// # Timers
//
// After schedules a one-shot callback, Every a periodic one. Both return a
// TimerID that can be passed to Cancel. Cancelling a timer that already
// fired (or was never scheduled) returns false and is otherwise a no-op.
//
// # Testing
//
// NewManualLoop returns a loop driven by a ManualClock. Tests call Drain to
// run queued work and Advance to move time forward, firing due timers in
// deadline order:
//
//	loop, clock := dispatch.NewManualLoop(start)
//	loop.After(3*time.Second, evaluate)
//	loop.Advance(3 * time.Second) // evaluate has run
//	_ = clock.Now()               // start + 3s
package dispatch
