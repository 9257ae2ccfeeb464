package heating

import (
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-heating/internal/dispatch"
	"github.com/nerrad567/gray-logic-heating/internal/entity"
)

// monday 08:00 UTC.
var testStart = time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)

type write struct {
	key   string
	state string
}

type countingWriter struct {
	writes []write
}

func (w *countingWriter) WriteEntity(key, state string, _ map[string]any) error {
	w.writes = append(w.writes, write{key: key, state: state})
	return nil
}

func (w *countingWriter) count(key string) int {
	n := 0
	for _, wr := range w.writes {
		if wr.key == key {
			n++
		}
	}
	return n
}

type harness struct {
	t      *testing.T
	loop   *dispatch.Loop
	clock  *dispatch.ManualClock
	store  *entity.Store
	writer *countingWriter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	loop, clock := dispatch.NewManualLoop(testStart)
	store := entity.NewStore(loop, clock)
	w := &countingWriter{}
	store.SetWriter(w)
	return &harness{t: t, loop: loop, clock: clock, store: store, writer: w}
}

// seed applies host-side states without counting them as writes.
func (h *harness) seed(states map[string]string) {
	for k, v := range states {
		h.store.ApplyState(k, v)
	}
	h.loop.Drain()
}

func (h *harness) apply(key, state string) {
	h.store.ApplyState(key, state)
	h.loop.Drain()
}

func (h *harness) applyAttr(key, attr string, v any) {
	h.store.ApplyAttribute(key, attr, v)
	h.loop.Drain()
}

func (h *harness) state(key string) string {
	s, _ := h.store.State(key)
	return s
}

type recordingZoneObserver struct {
	snaps []ZoneSnapshot
}

func (o *recordingZoneObserver) ZoneEvaluated(s ZoneSnapshot) { o.snaps = append(o.snaps, s) }

type recordingSupplyObserver struct {
	snaps  []SupplySnapshot
	events []SupplyEvent
}

func (o *recordingSupplyObserver) SupplyEvaluated(s SupplySnapshot) { o.snaps = append(o.snaps, s) }
func (o *recordingSupplyObserver) SupplyEvent(e SupplyEvent)        { o.events = append(o.events, e) }

func (o *recordingSupplyObserver) kinds() []EventKind {
	out := make([]EventKind, 0, len(o.events))
	for _, e := range o.events {
		out = append(out, e.Kind)
	}
	return out
}

type notification struct {
	target, title, message string
	silent                 bool
}

type recordingNotifier struct {
	sent []notification
}

func (n *recordingNotifier) Notify(target, title, message string, silent bool) error {
	n.sent = append(n.sent, notification{target, title, message, silent})
	return nil
}

type staticRules struct {
	rules WeekRules
	err   error
	calls []string
}

func (s *staticRules) FetchSchedule(id string, cb func(WeekRules, error)) {
	s.calls = append(s.calls, id)
	cb(s.rules, s.err)
}
