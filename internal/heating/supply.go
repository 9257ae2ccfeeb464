package heating

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-heating/internal/dispatch"
	"github.com/nerrad567/gray-logic-heating/internal/entity"
)

// Supply defaults.
const (
	DefaultSupplyDebounce       = 3 * time.Second
	DefaultStartupRetryInterval = 30 * time.Second
	DefaultPartyValveThreshold  = 20.0
	DefaultFlowRoundingStep     = 0.5
)

// SupplyConfig configures the SupplyArbitrator.
type SupplyConfig struct {
	// Zones are the managed zone locations.
	Zones []string

	// ValveSensors maps a zone location to its valve-position sensor (percent).
	ValveSensors map[string]string

	// OutdoorSensors is the outdoor temperature failover list, highest priority first.
	OutdoorSensors []string

	Tunables Tunables

	// RoundingStep is the flow setpoint granularity (0.5 or 1.0).
	RoundingStep float64

	// PartyValveThreshold ends party mode when every valve is below it.
	PartyValveThreshold float64

	Debounce             time.Duration
	StartupRetryInterval time.Duration

	// NotifyTarget receives notifications; empty disables them.
	NotifyTarget string
}

// FlowInputs are the values a flow setpoint is computed from.
type FlowInputs struct {
	OutdoorTemp     float64
	BaselineAdjust  float64
	BaselineZeroDeg float64

	// Boosts holds one boost contribution per active zone.
	Boosts []float64

	MultiRoomOffset float64
	RoundingStep    float64
	MaxFlowTemp     float64
}

// FlowResult is a computed flow setpoint and its components.
type FlowResult struct {
	Baseline       float64
	MaxBoost       float64
	MultiRoomBoost float64
	Target         float64
}

// ComputeFlow derives the flow setpoint: an outdoor-compensated baseline,
// plus the largest zone boost, plus a per-extra-zone offset, rounded to
// RoundingStep and clamped to [0, MaxFlowTemp].
func ComputeFlow(in FlowInputs) FlowResult {
	r := FlowResult{
		Baseline: -in.BaselineAdjust*in.OutdoorTemp + in.BaselineZeroDeg,
	}
	for _, b := range in.Boosts {
		if b > r.MaxBoost {
			r.MaxBoost = b
		}
	}
	if n := len(in.Boosts); n > 1 {
		r.MultiRoomBoost = float64(n-1) * in.MultiRoomOffset
	}

	target := roundStep(r.Baseline+r.MaxBoost+r.MultiRoomBoost, in.RoundingStep)
	if target > in.MaxFlowTemp {
		target = in.MaxFlowTemp
	}
	if target < 0 {
		target = 0
	}
	r.Target = target
	return r
}

// Arbitrator aggregates zone claims into the boiler flow setpoint and
// arbitrates the global heating mode.
//
// It starts in StartupPending and polls its required entities until they
// are healthy, then becomes Active once and registers its listeners.
// All methods must be called on the dispatch loop.
type Arbitrator struct {
	cfg      SupplyConfig
	port     entity.Port
	sched    dispatch.Scheduler
	notifier Notifier
	observer SupplyObserver
	logger   Logger

	state         SupplyState
	claims        *ClaimRegistry
	debounceTimer dispatch.TimerID
	retryTimer    dispatch.TimerID
	maturityTimer dispatch.TimerID
	last          SupplySnapshot
}

// NewArbitrator creates an arbitrator. Call Start to begin health polling.
func NewArbitrator(cfg SupplyConfig, port entity.Port, sched dispatch.Scheduler) *Arbitrator {
	if cfg.RoundingStep <= 0 {
		cfg.RoundingStep = DefaultFlowRoundingStep
	}
	if cfg.PartyValveThreshold <= 0 {
		cfg.PartyValveThreshold = DefaultPartyValveThreshold
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultSupplyDebounce
	}
	if cfg.StartupRetryInterval <= 0 {
		cfg.StartupRetryInterval = DefaultStartupRetryInterval
	}

	return &Arbitrator{
		cfg:      cfg,
		port:     port,
		sched:    sched,
		notifier: noopNotifier{},
		observer: SupplyObservers(nil),
		logger:   noopLogger{},
		claims:   NewClaimRegistry(),
		last:     SupplySnapshot{State: StartupPending},
	}
}

// SetLogger sets the arbitrator logger.
func (a *Arbitrator) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	a.logger = logger
}

// SetNotifier sets the notification port.
func (a *Arbitrator) SetNotifier(n Notifier) {
	if n == nil {
		n = noopNotifier{}
	}
	a.notifier = n
}

// SetObserver sets the receiver of evaluations and decisions.
func (a *Arbitrator) SetObserver(o SupplyObserver) {
	if o == nil {
		o = SupplyObservers(nil)
	}
	a.observer = o
}

// State returns the lifecycle state.
func (a *Arbitrator) State() SupplyState { return a.state }

// Snapshot returns the latest evaluation result.
func (a *Arbitrator) Snapshot() SupplySnapshot { return a.last }

// Start runs the first health check; failures are retried on a fixed interval.
func (a *Arbitrator) Start() {
	a.tryStartup()
}

func (a *Arbitrator) tryStartup() {
	a.retryTimer = 0
	if a.state == Active {
		return
	}

	if err := a.CheckHealth(); err != nil {
		if errors.Is(err, ErrMissingEntity) {
			a.logger.Error("critical: required entities missing", "error", err)
		} else {
			a.logger.Warn("startup delayed", "error", err)
		}
		a.retryTimer = a.sched.After(a.cfg.StartupRetryInterval, a.tryStartup)
		return
	}

	a.state = Active
	a.logger.Info("supply healthy, registering listeners", "zones", len(a.cfg.Zones))
	a.bootUp()
}

// CheckHealth verifies that the flow helper and mode select exist and
// hold valid values, and that at least one outdoor sensor reports a
// temperature. Missing entities wrap ErrMissingEntity; invalid values
// wrap ErrNotReady.
func (a *Arbitrator) CheckHealth() error {
	var missing, unavailable []string

	for _, key := range []string{FlowTargetEntity, MasterModeEntity} {
		state, ok := a.port.State(key)
		if !ok {
			missing = append(missing, key)
			continue
		}
		if !entity.IsValid(state) {
			unavailable = append(unavailable, fmt.Sprintf("%s (%s)", key, state))
		}
	}
	if _, _, ok := a.outdoorTemp(); !ok {
		unavailable = append(unavailable, "any valid outdoor temperature sensor")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingEntity, strings.Join(missing, ", "))
	}
	if len(unavailable) > 0 {
		return fmt.Errorf("%w: %s", ErrNotReady, strings.Join(unavailable, ", "))
	}
	return nil
}

func (a *Arbitrator) bootUp() {
	p := a.port
	for _, zone := range a.cfg.Zones {
		p.Subscribe(ClaimEntity(zone), entity.StateAttribute, func(c entity.Change) {
			a.onClaimChange(zone, c)
		})
		p.Subscribe(BoostStatusEntity(zone), entity.AllAttributes, a.onTrigger)
	}
	for _, sensor := range a.cfg.OutdoorSensors {
		p.Subscribe(sensor, entity.StateAttribute, a.onTrigger)
	}
	for _, helper := range []string{
		BaselineZeroDegEntity,
		BaselineAdjustEntity,
		MaxFlowTempEntity,
		BoostFactorEntity,
		BoostThresholdEntity,
		ClaimDurationEntity,
		MultiRoomOffsetEntity,
	} {
		p.Subscribe(helper, entity.StateAttribute, a.onTrigger)
	}
	p.Subscribe(MasterModeEntity, entity.StateAttribute, a.onModeChange)

	a.emit(SupplyEvent{Kind: EventStartupComplete, Mode: a.mode()})
	a.Evaluate()
}

func (a *Arbitrator) onTrigger(entity.Change) {
	a.debounce()
}

// onClaimChange tracks the claim the moment it flips, in every mode, so
// an off transition always clears its start time.
func (a *Arbitrator) onClaimChange(zone string, c entity.Change) {
	a.claims.Update(zone, c.NewString() == "on", a.sched.Now())
	a.debounce()
}

// debounce coalesces triggers into one evaluation after cfg.Debounce.
func (a *Arbitrator) debounce() {
	a.sched.Cancel(a.debounceTimer)
	a.debounceTimer = a.sched.After(a.cfg.Debounce, func() {
		a.debounceTimer = 0
		a.Evaluate()
	})
}

func (a *Arbitrator) onModeChange(c entity.Change) {
	next := Mode(c.NewString())
	prev := Mode(c.OldString())
	a.logger.Info("mode changed", "from", prev, "to", next)
	a.emit(SupplyEvent{Kind: EventModeChanged, Mode: next, PreviousMode: prev})

	if next == ModeOff {
		a.setFlowTarget(0)
		return
	}
	if prev == ModeHeating && next == ModeAuto {
		a.resetClaims()
	}
	a.debounce()
}

// Evaluate recomputes the flow setpoint and arbitrates the mode.
func (a *Arbitrator) Evaluate() {
	now := a.sched.Now()
	mode := a.mode()
	snap := SupplySnapshot{State: a.state, Mode: mode, EvaluatedAt: now}

	for _, zone := range a.cfg.Zones {
		state, _ := a.port.State(ClaimEntity(zone))
		a.claims.Update(zone, state == "on", now)
	}

	if mode == ModeOff {
		a.sched.Cancel(a.maturityTimer)
		a.maturityTimer = 0
		a.setFlowTarget(0)
		snap.ClaimingZones = a.claims.Claiming()
		a.publish(snap)
		return
	}

	duration := claimDuration(entity.FloatOr(a.port, ClaimDurationEntity, a.cfg.Tunables.ClaimDuration))
	active := a.claims.Active(now, duration)
	snap.ActiveZones = active
	snap.ClaimingZones = a.claims.Claiming()
	a.scheduleMaturity(now, duration)

	heat := false
	switch {
	case mode == ModeParty:
		maxValve, found := a.maxValve()
		if found && maxValve < a.cfg.PartyValveThreshold {
			msg := fmt.Sprintf("Valves are closed (%s%%).", formatNumber(maxValve))
			a.logger.Info("party mode ended", "max_valve", maxValve)
			a.selectMode(ModeAuto)
			a.notify("Party Mode Ended", msg)
			a.emit(SupplyEvent{Kind: EventPartyEnded, Mode: ModeAuto, PreviousMode: ModeParty, Details: msg})
			a.publish(snap)
			return
		}
		heat = true
	case len(active) > 0:
		heat = true
	default:
		a.setFlowTarget(0)
		if mode == ModeHeating {
			a.selectMode(ModeAuto)
		}
	}

	if heat {
		outdoor, sensor, ok := a.outdoorTemp()
		if ok {
			snap.OutdoorTemp = &outdoor
			snap.OutdoorSensor = sensor
		} else {
			a.logger.Warn("no valid outdoor temperature, assuming 0")
		}

		boosts := make([]float64, 0, len(active))
		for _, zone := range active {
			b, _ := entity.AttrFloat(a.port, BoostStatusEntity(zone), "boost")
			boosts = append(boosts, b)
		}

		t := a.cfg.Tunables
		res := ComputeFlow(FlowInputs{
			OutdoorTemp:     outdoor,
			BaselineAdjust:  entity.FloatOr(a.port, BaselineAdjustEntity, t.BaselineAdjust),
			BaselineZeroDeg: entity.FloatOr(a.port, BaselineZeroDegEntity, t.BaselineZeroDeg),
			Boosts:          boosts,
			MultiRoomOffset: entity.FloatOr(a.port, MultiRoomOffsetEntity, t.MultiRoomOffset),
			RoundingStep:    a.cfg.RoundingStep,
			MaxFlowTemp:     entity.FloatOr(a.port, MaxFlowTempEntity, t.MaxFlowTemp),
		})
		snap.Baseline = res.Baseline
		snap.MaxBoost = res.MaxBoost
		snap.MultiRoomBoost = res.MultiRoomBoost

		a.setFlowTarget(res.Target)
		if mode != ModeHeating && mode != ModeParty {
			a.selectMode(ModeHeating)
		}
	}

	snap.Heating = heat
	a.publish(snap)
}

// scheduleMaturity re-evaluates when the next pending claim matures, so a
// new claim is counted without waiting for an unrelated trigger.
func (a *Arbitrator) scheduleMaturity(now time.Time, d time.Duration) {
	a.sched.Cancel(a.maturityTimer)
	a.maturityTimer = 0
	if next, ok := a.claims.NextMaturity(now, d); ok {
		a.maturityTimer = a.sched.After(next, func() {
			a.maturityTimer = 0
			a.Evaluate()
		})
	}
}

func (a *Arbitrator) publish(snap SupplySnapshot) {
	snap.FlowTarget = entity.FloatOr(a.port, FlowTargetEntity, 0)
	a.last = snap
	a.observer.SupplyEvaluated(snap)
}

func (a *Arbitrator) emit(e SupplyEvent) {
	e.Time = a.sched.Now()
	e.FlowTarget = entity.FloatOr(a.port, FlowTargetEntity, 0)
	if e.ActiveZones == nil {
		e.ActiveZones = a.claims.Active(e.Time, claimDuration(entity.FloatOr(a.port, ClaimDurationEntity, a.cfg.Tunables.ClaimDuration)))
	}
	if out, _, ok := a.outdoorTemp(); ok {
		e.OutdoorTemp = &out
	}
	a.observer.SupplyEvent(e)
}

func (a *Arbitrator) mode() Mode {
	state, _ := a.port.State(MasterModeEntity)
	if m, ok := ParseMode(state); ok {
		return m
	}
	return ModeAuto
}

func (a *Arbitrator) selectMode(m Mode) {
	if state, _ := a.port.State(MasterModeEntity); state == string(m) {
		return
	}
	if err := a.port.Set(MasterModeEntity, string(m), nil); err != nil {
		a.logger.Warn("selecting mode failed", "mode", m, "error", err)
	}
}

// setFlowTarget writes the setpoint unless it is unchanged.
func (a *Arbitrator) setFlowTarget(v float64) {
	prev, _ := entity.Float(a.port, FlowTargetEntity)
	written, err := writeNumberIfChanged(a.port, FlowTargetEntity, v)
	if err != nil {
		a.logger.Warn("writing flow target failed", "flow_target", v, "error", err)
		return
	}
	if !written {
		return
	}
	a.logger.Info("flow target written", "flow_target", v, "previous", prev)
	a.emit(SupplyEvent{
		Kind:    EventFlowTarget,
		Mode:    a.mode(),
		Details: fmt.Sprintf("%s -> %s", formatNumber(prev), formatNumber(v)),
	})
}

func (a *Arbitrator) resetClaims() {
	var reset []string
	for _, zone := range a.cfg.Zones {
		key := ClaimEntity(zone)
		if state, _ := a.port.State(key); state != "on" {
			continue
		}
		if err := a.port.Set(key, "off", nil); err != nil {
			a.logger.Warn("resetting claim failed", "zone", zone, "error", err)
			continue
		}
		reset = append(reset, zone)
	}
	if len(reset) > 0 {
		a.logger.Info("claims reset", "zones", reset)
		a.emit(SupplyEvent{Kind: EventClaimsReset, Mode: ModeAuto, Details: strings.Join(reset, ",")})
	}
}

// outdoorTemp returns the first numeric reading in priority order.
func (a *Arbitrator) outdoorTemp() (float64, string, bool) {
	for _, sensor := range a.cfg.OutdoorSensors {
		if v, ok := entity.Float(a.port, sensor); ok {
			return v, sensor, true
		}
	}
	return 0, "", false
}

// maxValve returns the largest valve opening among existing valve sensors.
func (a *Arbitrator) maxValve() (float64, bool) {
	maxOpen := 0.0
	found := false
	for _, zone := range a.cfg.Zones {
		sensor, ok := a.cfg.ValveSensors[zone]
		if !ok || sensor == "" || !a.port.Exists(sensor) {
			continue
		}
		found = true
		if v, ok := entity.Float(a.port, sensor); ok && v > maxOpen {
			maxOpen = v
		}
	}
	return maxOpen, found
}

func (a *Arbitrator) notify(title, message string) {
	if a.cfg.NotifyTarget == "" {
		return
	}
	if err := a.notifier.Notify(a.cfg.NotifyTarget, title, message, true); err != nil {
		a.logger.Warn("notification failed", "title", title, "error", err)
	}
}
