package modbus

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-heating/internal/dispatch"
	"github.com/nerrad567/gray-logic-heating/internal/entity"
	"github.com/nerrad567/gray-logic-heating/internal/heating"
)

// Keep-alive defaults.
const (
	DefaultKeepAliveInterval    = 110 * time.Second
	DefaultIdleGrace            = 130 * time.Second
	DefaultStartupRetryInterval = 30 * time.Second
	DefaultPumpEnableOption     = "ein"
	DefaultAutomaticOption      = "automatik"
)

// Config configures the KeepAlive.
type Config struct {
	// FlowEntity is the boiler's external flow setpoint register.
	FlowEntity string

	// PumpEnableEntity is the circuit pump clearance select.
	PumpEnableEntity string
	PumpEnableOption string

	// OperatingModeEntity is reset to AutomaticOption when the boiler sits
	// in another mode without being written to.
	OperatingModeEntity string
	AutomaticOption     string

	// FlowTargetHelper is the setpoint produced by the supply arbitrator.
	// Defaults to heating.FlowTargetEntity.
	FlowTargetHelper string

	KeepAliveInterval    time.Duration
	IdleGrace            time.Duration
	StartupRetryInterval time.Duration

	// NotifyTarget receives notifications; empty disables them.
	NotifyTarget string
}

// Status describes the keep-alive for the API and metrics.
type Status struct {
	Active     bool      `json:"active"`
	LastWrite  time.Time `json:"last_write"`
	LastTarget float64   `json:"last_target"`
	Writes     uint64    `json:"writes"`
	Resets     uint64    `json:"automatic_resets"`
}

// KeepAlive mirrors the flow setpoint onto the boiler's Modbus registers.
//
// The boiler drops an external setpoint that is not refreshed, so a
// positive target is rewritten on every heartbeat. A zero target is never
// written; the boiler is left to time out instead. All methods must be
// called on the dispatch loop.
type KeepAlive struct {
	cfg      Config
	port     entity.Port
	sched    dispatch.Scheduler
	notifier heating.Notifier
	logger   Logger

	active     bool
	lastWrite  time.Time
	lastTarget float64
	writes     uint64
	resets     uint64
	heartbeat  dispatch.TimerID

	onStatus func(Status)
}

// NewKeepAlive creates a keep-alive. Call Start to begin health polling.
func NewKeepAlive(cfg Config, port entity.Port, sched dispatch.Scheduler) *KeepAlive {
	if cfg.FlowTargetHelper == "" {
		cfg.FlowTargetHelper = heating.FlowTargetEntity
	}
	if cfg.PumpEnableOption == "" {
		cfg.PumpEnableOption = DefaultPumpEnableOption
	}
	if cfg.AutomaticOption == "" {
		cfg.AutomaticOption = DefaultAutomaticOption
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if cfg.IdleGrace <= 0 {
		cfg.IdleGrace = DefaultIdleGrace
	}
	if cfg.StartupRetryInterval <= 0 {
		cfg.StartupRetryInterval = DefaultStartupRetryInterval
	}

	return &KeepAlive{
		cfg:       cfg,
		port:      port,
		sched:     sched,
		notifier:  noopNotifier{},
		logger:    noopLogger{},
		lastWrite: sched.Now(),
	}
}

// SetLogger sets the keep-alive logger.
func (k *KeepAlive) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	k.logger = logger
}

// SetNotifier sets the notification port.
func (k *KeepAlive) SetNotifier(n heating.Notifier) {
	if n == nil {
		n = noopNotifier{}
	}
	k.notifier = n
}

// SetOnStatus registers a callback run on the loop whenever the status
// changes (activation, writes, resets).
func (k *KeepAlive) SetOnStatus(fn func(Status)) {
	k.onStatus = fn
}

func (k *KeepAlive) publishStatus() {
	if k.onStatus != nil {
		k.onStatus(k.Status())
	}
}

// Status returns the keep-alive counters.
func (k *KeepAlive) Status() Status {
	return Status{
		Active:     k.active,
		LastWrite:  k.lastWrite,
		LastTarget: k.lastTarget,
		Writes:     k.writes,
		Resets:     k.resets,
	}
}

// Start runs the health check; failures are retried on a fixed interval.
func (k *KeepAlive) Start() {
	if k.active {
		return
	}
	if err := k.CheckHealth(); err != nil {
		if errors.Is(err, heating.ErrMissingEntity) {
			k.logger.Error("critical: modbus entities missing", "error", err)
		} else {
			k.logger.Warn("modbus startup delayed", "error", err)
		}
		k.sched.After(k.cfg.StartupRetryInterval, k.Start)
		return
	}

	k.active = true
	k.logger.Info("modbus interface healthy, registering listeners")
	k.publishStatus()

	k.port.Subscribe(k.cfg.FlowTargetHelper, entity.StateAttribute, func(entity.Change) { k.Evaluate() })
	k.port.Subscribe(k.cfg.OperatingModeEntity, entity.StateAttribute, k.onOperatingMode)
	k.heartbeat = k.sched.Every(k.cfg.KeepAliveInterval, k.tick)

	k.Evaluate()
}

// Stop cancels the heartbeat.
func (k *KeepAlive) Stop() {
	k.sched.Cancel(k.heartbeat)
	k.heartbeat = 0
}

// CheckHealth verifies the Modbus entities and the flow helper. The
// operating mode may report unknown while the boiler is heating.
func (k *KeepAlive) CheckHealth() error {
	var missing, unavailable []string

	for _, key := range []string{
		k.cfg.FlowEntity,
		k.cfg.PumpEnableEntity,
		k.cfg.OperatingModeEntity,
		k.cfg.FlowTargetHelper,
	} {
		state, ok := k.port.State(key)
		if !ok {
			missing = append(missing, key)
			continue
		}
		if key == k.cfg.OperatingModeEntity && state == "unknown" {
			continue
		}
		if !entity.IsValid(state) {
			unavailable = append(unavailable, fmt.Sprintf("%s (%s)", key, state))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", heating.ErrMissingEntity, strings.Join(missing, ", "))
	}
	if len(unavailable) > 0 {
		return fmt.Errorf("%w: %s", heating.ErrNotReady, strings.Join(unavailable, ", "))
	}
	return nil
}

// Evaluate writes a positive flow target to the boiler and makes sure the
// circuit pump is cleared.
func (k *KeepAlive) Evaluate() {
	target := entity.FloatOr(k.port, k.cfg.FlowTargetHelper, 0)
	if target <= 0 {
		return
	}

	if err := k.port.Set(k.cfg.FlowEntity, formatNumber(target), nil); err != nil {
		k.logger.Warn("writing modbus flow target failed", "entity", k.cfg.FlowEntity, "error", err)
		return
	}
	k.lastWrite = k.sched.Now()
	k.lastTarget = target
	k.writes++
	k.logger.Debug("modbus flow target refreshed", "flow_target", target)
	k.publishStatus()

	pump, _ := k.port.State(k.cfg.PumpEnableEntity)
	if pump == k.cfg.PumpEnableOption {
		return
	}
	k.logger.Info("enabling heating pump", "was", pump)
	if err := k.port.Set(k.cfg.PumpEnableEntity, k.cfg.PumpEnableOption, nil); err != nil {
		k.logger.Warn("enabling heating pump failed", "error", err)
		return
	}
	k.notify("Heating Active", fmt.Sprintf("Pump enabled.\nFlow Target: %s°C", formatNumber(target)))
}

// tick is the heartbeat. The idle check also runs here so a boiler that
// settles in a manual mode without further mode changes is still reset.
func (k *KeepAlive) tick() {
	k.Evaluate()
	mode, _ := k.port.State(k.cfg.OperatingModeEntity)
	k.revertIfIdle(mode)
}

func (k *KeepAlive) onOperatingMode(c entity.Change) {
	k.revertIfIdle(c.NewString())
}

// revertIfIdle returns the boiler to automatic once nothing has been
// written for IdleGrace.
func (k *KeepAlive) revertIfIdle(mode string) {
	if mode == k.cfg.AutomaticOption || mode == "unknown" || !entity.IsValid(mode) {
		return
	}

	idle := k.sched.Now().Sub(k.lastWrite)
	if idle < k.cfg.IdleGrace {
		return
	}

	k.logger.Info("heating idle, resetting operating mode",
		"idle", idle.Truncate(time.Second).String(), "mode", mode, "option", k.cfg.AutomaticOption)
	if err := k.port.Set(k.cfg.OperatingModeEntity, k.cfg.AutomaticOption, nil); err != nil {
		k.logger.Warn("resetting operating mode failed", "error", err)
		return
	}
	k.resets++
	k.publishStatus()
}

func (k *KeepAlive) notify(title, message string) {
	if k.cfg.NotifyTarget == "" {
		return
	}
	if err := k.notifier.Notify(k.cfg.NotifyTarget, title, message, true); err != nil {
		k.logger.Warn("notification failed", "title", title, "error", err)
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
