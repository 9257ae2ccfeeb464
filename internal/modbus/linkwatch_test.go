package modbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linkSensor = "binary_sensor.froeling_modbus_status"

func TestLinkWatch_DownAndRestored(t *testing.T) {
	f := newFixture(t, map[string]string{linkSensor: "on"})
	w := NewLinkWatch(linkSensor, "telegram", f.store, f.notifier)
	w.Start()
	f.loop.Drain()
	assert.Empty(t, f.notifier.sent)
	assert.True(t, w.Up())

	f.store.ApplyState(linkSensor, "off")
	f.loop.Drain()
	assert.False(t, w.Up())

	f.store.ApplyState(linkSensor, "on")
	f.loop.Drain()
	assert.True(t, w.Up())

	require.Len(t, f.notifier.sent, 2)
	assert.Equal(t, "Boiler Modbus Down", f.notifier.sent[0].title)
	assert.Equal(t, "ESP32 lost link to boiler.", f.notifier.sent[0].message)
	assert.Equal(t, "Boiler Modbus Restored", f.notifier.sent[1].title)
}

func TestLinkWatch_DownAtBoot(t *testing.T) {
	f := newFixture(t, map[string]string{linkSensor: "off"})
	w := NewLinkWatch(linkSensor, "telegram", f.store, f.notifier)
	w.Start()

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "Boiler Modbus Down", f.notifier.sent[0].title)
	assert.False(t, w.Up())
}

func TestLinkWatch_UnavailableToOnIsSilent(t *testing.T) {
	f := newFixture(t, map[string]string{linkSensor: "unavailable"})
	w := NewLinkWatch(linkSensor, "telegram", f.store, f.notifier)
	w.Start()

	f.store.ApplyState(linkSensor, "on")
	f.loop.Drain()

	assert.Empty(t, f.notifier.sent)
	assert.True(t, w.Up())
}

func TestLinkWatch_NoTargetNoNotification(t *testing.T) {
	f := newFixture(t, map[string]string{linkSensor: "on"})
	w := NewLinkWatch(linkSensor, "", f.store, f.notifier)
	w.Start()

	f.store.ApplyState(linkSensor, "off")
	f.loop.Drain()

	assert.Empty(t, f.notifier.sent)
	assert.False(t, w.Up())
}
