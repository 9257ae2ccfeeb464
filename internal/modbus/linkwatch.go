package modbus

import (
	"github.com/nerrad567/gray-logic-heating/internal/entity"
	"github.com/nerrad567/gray-logic-heating/internal/heating"
)

// LinkWatch reports when the ESP32 gateway loses or regains its Modbus
// link to the boiler.
type LinkWatch struct {
	sensor   string
	target   string
	port     entity.Port
	notifier heating.Notifier
	logger   Logger

	up bool
}

// NewLinkWatch watches the given binary sensor. Notifications go to target.
func NewLinkWatch(sensor, target string, port entity.Port, notifier heating.Notifier) *LinkWatch {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &LinkWatch{
		sensor:   sensor,
		target:   target,
		port:     port,
		notifier: notifier,
		logger:   noopLogger{},
		up:       true,
	}
}

// SetLogger sets the link watch logger.
func (w *LinkWatch) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	w.logger = logger
}

// Up reports whether the link was last seen up.
func (w *LinkWatch) Up() bool { return w.up }

// Start subscribes to the link sensor. A link that is already down is
// reported right away.
func (w *LinkWatch) Start() {
	w.port.Subscribe(w.sensor, entity.StateAttribute, w.onChange)
	w.logger.Info("modbus link watch active", "sensor", w.sensor)

	if state, _ := w.port.State(w.sensor); state == "off" {
		w.onChange(entity.Change{Key: w.sensor, New: "off"})
	}
}

func (w *LinkWatch) onChange(c entity.Change) {
	switch {
	case c.NewString() == "off":
		w.up = false
		w.logger.Error("modbus link down", "sensor", w.sensor)
		w.notify("Boiler Modbus Down", "ESP32 lost link to boiler.")
	case c.NewString() == "on" && c.OldString() == "off":
		w.up = true
		w.logger.Info("modbus link restored", "sensor", w.sensor)
		w.notify("Boiler Modbus Restored", "Modbus connection established.")
	case c.NewString() == "on":
		w.up = true
	}
}

func (w *LinkWatch) notify(title, message string) {
	if w.target == "" {
		return
	}
	if err := w.notifier.Notify(w.target, title, message, true); err != nil {
		w.logger.Warn("notification failed", "title", title, "error", err)
	}
}
