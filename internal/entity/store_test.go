package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-heating/internal/dispatch"
)

type recordingWriter struct {
	writes []State
	err    error
}

func (w *recordingWriter) WriteEntity(key, state string, attrs map[string]any) error {
	w.writes = append(w.writes, State{Key: key, Value: state, Attributes: attrs})
	return w.err
}

func newTestStore(t *testing.T) (*Store, *dispatch.Loop) {
	t.Helper()
	loop, clock := dispatch.NewManualLoop(time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC))
	return NewStore(loop, clock), loop
}

func TestStore_ApplyAndRead(t *testing.T) {
	s, _ := newTestStore(t)

	_, ok := s.State("sensor.bad_temp")
	assert.False(t, ok)
	assert.False(t, s.Exists("sensor.bad_temp"))

	s.ApplyState("sensor.bad_temp", "19.5")
	s.ApplyAttribute("sensor.bad_temp", "unit_of_measurement", "°C")

	got, ok := s.State("sensor.bad_temp")
	require.True(t, ok)
	assert.Equal(t, "19.5", got)

	unit, ok := s.Attribute("sensor.bad_temp", "unit_of_measurement")
	require.True(t, ok)
	assert.Equal(t, "°C", unit)

	f, ok := Float(s, "sensor.bad_temp")
	require.True(t, ok)
	assert.InDelta(t, 19.5, f, 1e-9)
}

func TestStore_StateSubscription(t *testing.T) {
	s, loop := newTestStore(t)

	var got []Change
	s.Subscribe("input_boolean.heating_claim_bad", StateAttribute, func(c Change) { got = append(got, c) })

	s.ApplyState("input_boolean.heating_claim_bad", "off")
	s.ApplyState("input_boolean.heating_claim_bad", "off")
	s.ApplyState("input_boolean.heating_claim_bad", "on")

	assert.Empty(t, got, "handlers must not run inline")
	loop.Drain()

	require.Len(t, got, 2)
	assert.Equal(t, "", got[0].OldString())
	assert.Equal(t, "off", got[0].NewString())
	assert.Equal(t, "off", got[1].OldString())
	assert.Equal(t, "on", got[1].NewString())
}

func TestStore_AttributeSubscription(t *testing.T) {
	s, loop := newTestStore(t)

	var temps []any
	var all int
	s.Subscribe("schedule.standard_bad", "temp", func(c Change) { temps = append(temps, c.New) })
	s.Subscribe("schedule.standard_bad", AllAttributes, func(Change) { all++ })

	s.ApplyState("schedule.standard_bad", "on")
	s.ApplyAttribute("schedule.standard_bad", "temp", 21.5)
	s.ApplyAttribute("schedule.standard_bad", "temp", 21.5)
	s.ApplyAttribute("schedule.standard_bad", "next_event", "2025-01-06T22:00:00+01:00")
	loop.Drain()

	assert.Equal(t, []any{21.5}, temps)
	assert.Equal(t, 3, all, "all-subscriber sees one notification per effective update")
}

func TestStore_SetForwardsEveryWrite(t *testing.T) {
	s, loop := newTestStore(t)
	w := &recordingWriter{}
	s.SetWriter(w)

	changes := 0
	s.Subscribe("number.flow", StateAttribute, func(Change) { changes++ })

	require.NoError(t, s.Set("number.flow", "38.5", nil))
	require.NoError(t, s.Set("number.flow", "38.5", nil))
	loop.Drain()

	assert.Len(t, w.writes, 2, "writes are forwarded even when unchanged")
	assert.Equal(t, 1, changes)
}

func TestStore_SetWriterErrorLeavesMirror(t *testing.T) {
	s, loop := newTestStore(t)
	s.ApplyState("input_number.target_flow_temp", "34")
	loop.Drain()

	calls := 0
	s.Subscribe("input_number.target_flow_temp", StateAttribute, func(Change) { calls++ })

	boom := errors.New("outbox full")
	w := &recordingWriter{err: boom}
	s.SetWriter(w)

	err := s.Set("input_number.target_flow_temp", "40", map[string]any{"unit": "°C"})
	assert.ErrorIs(t, err, boom)
	loop.Drain()

	got, _ := s.State("input_number.target_flow_temp")
	assert.Equal(t, "34", got, "failed write must not reach the mirror")
	_, ok := s.Attribute("input_number.target_flow_temp", "unit")
	assert.False(t, ok)
	assert.Zero(t, calls)

	w.err = nil
	require.NoError(t, s.Set("input_number.target_flow_temp", "40", nil))
	loop.Drain()
	got, _ = s.State("input_number.target_flow_temp")
	assert.Equal(t, "40", got)
	assert.Equal(t, 1, calls)
}

func TestStore_SetMergesAttributes(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Set("binary_sensor.boost_status_bad", "on", map[string]any{"boost": 2.5, "icon": "mdi:fire-alert"}))
	require.NoError(t, s.Set("binary_sensor.boost_status_bad", "on", map[string]any{"boost": 3.0}))

	st, ok := s.Get("binary_sensor.boost_status_bad")
	require.True(t, ok)
	assert.Equal(t, 3.0, st.Attributes["boost"])
	assert.Equal(t, "mdi:fire-alert", st.Attributes["icon"])
}

func TestStore_Unsubscribe(t *testing.T) {
	s, loop := newTestStore(t)

	calls := 0
	id := s.Subscribe("sensor.x", StateAttribute, func(Change) { calls++ })
	s.Unsubscribe(id)
	s.Unsubscribe(999)

	s.ApplyState("sensor.x", "1")
	loop.Drain()
	assert.Zero(t, calls)
}

func TestStore_Events(t *testing.T) {
	s, loop := newTestStore(t)

	var names []string
	s.ListenEvent("HEATING_FORCE_EVALUATION", func(name string, data map[string]any) {
		names = append(names, name)
	})

	s.FireEvent("OTHER", nil)
	s.FireEvent("HEATING_FORCE_EVALUATION", map[string]any{"source": "test"})
	loop.Drain()

	assert.Equal(t, []string{"HEATING_FORCE_EVALUATION"}, names)
}

func TestStore_OnChange(t *testing.T) {
	s, loop := newTestStore(t)

	var seen []string
	s.OnChange(func(c Change) { seen = append(seen, c.Key) })

	s.ApplyState("sensor.a", "1")
	s.ApplyState("sensor.b", "2")
	loop.Drain()

	assert.Equal(t, []string{"sensor.a", "sensor.b"}, seen)
}

func TestStore_Snapshot(t *testing.T) {
	s, _ := newTestStore(t)
	s.ApplyState("sensor.b", "2")
	s.ApplyState("sensor.a", "1")

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "sensor.a", snap[0].Key)
	assert.Equal(t, "sensor.b", snap[1].Key)
}
