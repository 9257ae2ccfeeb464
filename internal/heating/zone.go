package heating

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-heating/internal/dispatch"
	"github.com/nerrad567/gray-logic-heating/internal/entity"
)

// Zone timing defaults.
const (
	DefaultScheduleDebounce     = 3 * time.Second
	DefaultAttributeDebounce    = 1 * time.Second
	DefaultFirstEvaluationDelay = 5 * time.Second

	unloadedRetryDelay = 5 * time.Second
	unloadedRetries    = 2
	dashboardDelay     = 1 * time.Second
)

// ZoneConfig configures one ZoneDemandEngine.
type ZoneConfig struct {
	Location   string
	TempSensor string

	// Solar is nil for zones without sun compensation.
	Solar *SolarConfig

	Tunables Tunables

	ScheduleDebounce     time.Duration
	AttributeDebounce    time.Duration
	FirstEvaluationDelay time.Duration

	// TimeZone is used to render dashboard times. Defaults to time.Local.
	TimeZone *time.Location
}

// Zone computes the target, claim and boost of a single room.
//
// All methods must be called on the dispatch loop.
type Zone struct {
	cfg       ZoneConfig
	names     ZoneNames
	schedules []string

	port     entity.Port
	sched    dispatch.Scheduler
	rules    RuleSource
	observer ZoneObserver
	logger   Logger

	delayTimer dispatch.TimerID
	dashTimer  dispatch.TimerID
	last       ZoneSnapshot
}

// NewZone creates a zone engine. Call Start to register its listeners.
func NewZone(cfg ZoneConfig, port entity.Port, sched dispatch.Scheduler) *Zone {
	if cfg.ScheduleDebounce <= 0 {
		cfg.ScheduleDebounce = DefaultScheduleDebounce
	}
	if cfg.AttributeDebounce <= 0 {
		cfg.AttributeDebounce = DefaultAttributeDebounce
	}
	if cfg.FirstEvaluationDelay <= 0 {
		cfg.FirstEvaluationDelay = DefaultFirstEvaluationDelay
	}
	if cfg.TimeZone == nil {
		cfg.TimeZone = time.Local
	}
	if cfg.Solar != nil {
		solar := *cfg.Solar
		if solar.Activation == 0 && solar.Peak == 0 {
			solar.Activation, solar.Peak = DefaultSolarActivation, DefaultSolarPeak
		}
		cfg.Solar = &solar
	}

	z := &Zone{
		cfg:      cfg,
		names:    NewZoneNames(cfg.Location),
		port:     port,
		sched:    sched,
		logger:   noopLogger{},
		observer: ZoneObservers(nil),
	}
	for _, suffix := range AllScheduleSuffixes() {
		z.schedules = append(z.schedules, ScheduleEntity(cfg.Location, suffix))
	}
	z.last.Location = cfg.Location
	return z
}

// SetLogger sets the zone logger.
func (z *Zone) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	z.logger = logger
}

// SetObserver sets the receiver of evaluation snapshots.
func (z *Zone) SetObserver(o ZoneObserver) {
	if o == nil {
		o = ZoneObservers(nil)
	}
	z.observer = o
}

// SetRuleSource enables the "next event" dashboard text.
func (z *Zone) SetRuleSource(r RuleSource) {
	z.rules = r
}

// Location returns the zone's location name.
func (z *Zone) Location() string { return z.cfg.Location }

// Names returns the zone's entity ids.
func (z *Zone) Names() ZoneNames { return z.names }

// Snapshot returns the result of the latest evaluation.
func (z *Zone) Snapshot() ZoneSnapshot { return z.last }

// Start registers the zone's listeners and schedules its first evaluation.
func (z *Zone) Start() {
	p := z.port

	for _, s := range z.schedules {
		p.Subscribe(s, entity.StateAttribute, z.onDebounced)
		p.Subscribe(s, "temp", z.onDebounced)
		p.Subscribe(s, "next_event", z.onDebounced)
	}
	p.Subscribe(z.names.ScheduleSelect, entity.StateAttribute, z.onDebounced)
	p.Subscribe(z.names.DeltaTemp, entity.StateAttribute, z.onDebounced)
	p.Subscribe(z.names.BaseTemp, entity.StateAttribute, z.onDebounced)
	p.Subscribe(z.names.HeatTemp, entity.StateAttribute, z.onDebounced)

	immediate := []string{
		z.cfg.TempSensor,
		z.names.TargetTemp,
		z.names.BoostEnabled,
		MarginEntity,
		BoostThresholdEntity,
		BoostFactorEntity,
	}
	if z.cfg.Solar != nil {
		immediate = append(immediate, z.cfg.Solar.Sensor, z.names.SunHelper)
	}
	for _, key := range immediate {
		p.Subscribe(key, entity.StateAttribute, z.onImmediate)
	}

	p.Subscribe(MasterModeEntity, entity.StateAttribute, z.onMasterMode)
	p.ListenEvent(ForceEvaluationEvent, z.onForceEvaluation)
	p.ListenEvent(EntityRegistryUpdatedEvent, z.onRegistryUpdated)

	z.delayTimer = z.sched.After(z.cfg.FirstEvaluationDelay, func() { z.runEvaluation(0) })
	z.logger.Info("zone started", "zone", z.cfg.Location, "solar", z.cfg.Solar != nil)
}

// onDebounced coalesces schedule-related triggers into one evaluation.
// A schedule turning on waits longer so its attributes can settle.
func (z *Zone) onDebounced(c entity.Change) {
	z.writeDashboard(CalculatingMessage)

	z.sched.Cancel(z.delayTimer)
	delay := z.cfg.AttributeDebounce
	if strings.HasPrefix(c.Key, "schedule.") && c.Attribute == entity.StateAttribute && c.NewString() == "on" {
		delay = z.cfg.ScheduleDebounce
	}
	z.delayTimer = z.sched.After(delay, func() { z.runEvaluation(0) })
}

func (z *Zone) onImmediate(entity.Change) {
	z.EvaluateClaim(false)
}

func (z *Zone) onMasterMode(c entity.Change) {
	forceStart := c.NewString() == string(ModeHeating) && c.OldString() != string(ModeHeating)
	z.EvaluateClaim(forceStart)
}

func (z *Zone) onForceEvaluation(string, map[string]any) {
	z.logger.Info("forced evaluation", "zone", z.cfg.Location)
	z.writeClaim(false)
	z.Recompute(true)
}

func (z *Zone) onRegistryUpdated(_ string, data map[string]any) {
	id, _ := data["entity_id"].(string)
	if slices.Contains(z.schedules, id) {
		z.prepareDashboard()
	}
}

// runEvaluation is the debounced evaluation. A schedule that is on but has
// neither temp nor next_event has not finished loading; it is retried a
// few times before being evaluated as is.
func (z *Zone) runEvaluation(retry int) {
	z.delayTimer = 0

	sched := z.currentSchedule()
	if z.scheduleActive(sched) && !z.scheduleLoaded(sched) && retry < unloadedRetries {
		z.logger.Warn("schedule active but unloaded, retrying", "zone", z.cfg.Location, "schedule", sched, "retry", retry+1)
		z.delayTimer = z.sched.After(unloadedRetryDelay, func() { z.runEvaluation(retry + 1) })
		return
	}

	z.Recompute(false)
	z.prepareDashboard()
}

// Recompute resolves the active schedule, writes the zone target and
// re-evaluates the claim. forceReset ignores the previous claim.
func (z *Zone) Recompute(forceReset bool) {
	sched := z.currentSchedule()

	if sched == ScheduleEntity(z.cfg.Location, SuffixOff) {
		z.setTarget(z.cfg.Tunables.OffTemp)
		z.suppress(sched, z.cfg.Tunables.OffTemp)
		return
	}

	var target float64
	if z.scheduleActive(sched) {
		t, ok := entity.AttrFloat(z.port, sched, "temp")
		if !ok {
			t = entity.FloatOr(z.port, z.names.HeatTemp, z.cfg.Tunables.HeatTemp)
		}
		target = t
	} else {
		target = entity.FloatOr(z.port, z.names.BaseTemp, z.cfg.Tunables.BaseTemp)
	}
	z.setTarget(target)

	z.evaluateClaim(claimOptions{target: &target, forceReset: forceReset})
}

// EvaluateClaim re-evaluates the claim against the stored target.
// forceStart claims heat anywhere below the upper bound.
func (z *Zone) EvaluateClaim(forceStart bool) {
	z.evaluateClaim(claimOptions{forceStart: forceStart})
}

type claimOptions struct {
	// target is the uncompensated target; nil reads the target helper.
	target     *float64
	forceReset bool
	forceStart bool
}

func (z *Zone) evaluateClaim(opts claimOptions) {
	sched := z.currentSchedule()

	target := z.cfg.Tunables.OffTemp
	if opts.target != nil {
		target = *opts.target
	} else if t, ok := entity.Float(z.port, z.names.TargetTemp); ok {
		target = t
	}

	if z.masterMode() == ModeOff || sched == ScheduleEntity(z.cfg.Location, SuffixOff) {
		z.suppress(sched, target)
		return
	}

	current, ok := entity.Float(z.port, z.cfg.TempSensor)
	if !ok {
		z.logger.Debug("no current temperature, claim unchanged", "zone", z.cfg.Location, "sensor", z.cfg.TempSensor)
		return
	}

	offset := z.sunOffset()
	z.publishSun(offset)
	effective := target - offset

	prior := false
	if !opts.forceReset {
		state, _ := z.port.State(z.names.Claim)
		prior = state == "on"
	}

	margin := entity.FloatOr(z.port, MarginEntity, z.cfg.Tunables.Margin)
	delta := entity.FloatOr(z.port, z.names.DeltaTemp, z.cfg.Tunables.Delta)
	claim := ClaimDecision(current, effective, margin, delta, prior, opts.forceStart)
	z.writeClaim(claim)

	enabled := z.boostEnabled()
	factor := entity.FloatOr(z.port, BoostFactorEntity, z.cfg.Tunables.BoostFactor)
	threshold := entity.FloatOr(z.port, BoostThresholdEntity, z.cfg.Tunables.BoostThreshold)
	boost := BoostContribution(effective, current, factor, threshold, enabled == "on")
	z.publishBoost(boost, enabled)

	z.finish(ZoneSnapshot{
		Schedule:        sched,
		ScheduleActive:  z.scheduleActive(sched),
		CurrentTemp:     &current,
		Target:          target,
		EffectiveTarget: effective,
		SunOffset:       offset,
		Claim:           claim,
		Boost:           boost,
		BoostEnabled:    enabled == "on",
	})
}

// suppress drops the claim and zeroes boost and sun compensation.
func (z *Zone) suppress(sched string, target float64) {
	z.writeClaim(false)
	z.publishBoost(0, z.boostEnabled())
	z.publishSun(0)

	snap := ZoneSnapshot{
		Schedule:        sched,
		ScheduleActive:  z.scheduleActive(sched),
		Target:          target,
		EffectiveTarget: target,
	}
	if cur, ok := entity.Float(z.port, z.cfg.TempSensor); ok {
		snap.CurrentTemp = &cur
	}
	z.finish(snap)
}

func (z *Zone) finish(s ZoneSnapshot) {
	s.Location = z.cfg.Location
	s.EvaluatedAt = z.sched.Now()
	if msg, ok := z.port.State(z.names.NextEvent); ok {
		s.NextEvent = msg
	}
	z.last = s
	z.observer.ZoneEvaluated(s)
}

// ClaimDecision applies the claim hysteresis. Below target-delta the zone
// claims heat; at or above target-margin it releases; in between the prior
// claim holds unless forceStart is set.
func ClaimDecision(current, target, margin, delta float64, prior, forceStart bool) bool {
	upper := target - margin
	lower := target - delta

	switch {
	case current >= upper:
		return false
	case current < lower:
		return true
	case forceStart:
		return true
	default:
		return prior
	}
}

// BoostContribution returns the extra flow temperature a zone requests
// when its deficit reaches threshold.
func BoostContribution(target, current, factor, threshold float64, enabled bool) float64 {
	deficit := target - current
	if !enabled || deficit < threshold {
		return 0
	}
	return roundTo(math.Max(0, deficit*factor), 1)
}

func (z *Zone) currentSchedule() string {
	option, _ := z.port.State(z.names.ScheduleSelect)
	return ScheduleEntity(z.cfg.Location, ScheduleSuffix(option))
}

func (z *Zone) scheduleActive(sched string) bool {
	state, _ := z.port.State(sched)
	return state == "on"
}

// scheduleLoaded reports whether a schedule carries temp or next_event.
func (z *Zone) scheduleLoaded(sched string) bool {
	if v, ok := z.port.Attribute(sched, "temp"); ok && v != nil {
		return true
	}
	if v, ok := z.port.Attribute(sched, "next_event"); ok && v != nil {
		if s, isStr := v.(string); !isStr || entity.IsValid(s) {
			return true
		}
	}
	return false
}

func (z *Zone) masterMode() Mode {
	state, _ := z.port.State(MasterModeEntity)
	if m, ok := ParseMode(state); ok {
		return m
	}
	return ModeAuto
}

func (z *Zone) boostEnabled() string {
	state, ok := z.port.State(z.names.BoostEnabled)
	if !ok || (state != "on" && state != "off") {
		return "off"
	}
	return state
}

func (z *Zone) sunOffset() float64 {
	solar := z.cfg.Solar
	if solar == nil || !z.port.Exists(z.names.SunHelper) {
		return 0
	}
	maxComp := entity.FloatOr(z.port, z.names.SunHelper, 0)

	var reading *float64
	if r, ok := entity.Float(z.port, solar.Sensor); ok {
		reading = &r
	}
	return SolarOffset(reading, maxComp, solar.Activation, solar.Peak)
}

func (z *Zone) setTarget(target float64) {
	if _, err := writeNumberIfChanged(z.port, z.names.TargetTemp, target); err != nil {
		z.logger.Warn("writing zone target failed", "zone", z.cfg.Location, "error", err)
	}
}

func (z *Zone) writeClaim(claim bool) {
	state := "off"
	if claim {
		state = "on"
	}
	if cur, ok := z.port.State(z.names.Claim); ok && cur == state {
		return
	}
	if err := z.port.Set(z.names.Claim, state, nil); err != nil {
		z.logger.Warn("writing claim failed", "zone", z.cfg.Location, "error", err)
		return
	}
	z.logger.Info("claim changed", "zone", z.cfg.Location, "claim", claim)
}

func (z *Zone) publishBoost(boost float64, enabled string) {
	state, icon := "off", "mdi:fire"
	if boost > 0 {
		state, icon = "on", "mdi:fire-alert"
	}
	if enabled == "off" {
		icon = "mdi:fire-off"
	}

	_, err := writeIfChanged(z.port, z.names.BoostStatus, state, map[string]any{
		"friendly_name": "Boost Status " + displayName(z.cfg.Location),
		"boost":         boost,
		"raw_boost":     boost,
		"boost_enabled": enabled,
		"icon":          icon,
	})
	if err != nil {
		z.logger.Warn("writing boost status failed", "zone", z.cfg.Location, "error", err)
	}
}

func (z *Zone) publishSun(offset float64) {
	if z.cfg.Solar == nil {
		return
	}
	state, icon := "off", "mdi:weather-sunny"
	if offset > 0 {
		state, icon = "on", "mdi:weather-sunny-alert"
	}

	var reading any
	if raw, ok := z.port.State(z.cfg.Solar.Sensor); ok {
		reading = raw
	}

	_, err := writeIfChanged(z.port, z.names.SunIndicator, state, map[string]any{
		"friendly_name": "Sun Compensation " + displayName(z.cfg.Location),
		"compensation":  offset,
		"garten_temp":   reading,
		"icon":          icon,
	})
	if err != nil {
		z.logger.Warn("writing sun indicator failed", "zone", z.cfg.Location, "error", err)
	}
}

func (z *Zone) writeDashboard(msg string) {
	if _, err := writeIfChanged(z.port, z.names.NextEvent, msg, nil); err != nil {
		z.logger.Warn("writing next event failed", "zone", z.cfg.Location, "error", err)
	}
}

// prepareDashboard fetches the schedule's rules and renders the next event
// text shortly after they arrive.
func (z *Zone) prepareDashboard() {
	if z.rules == nil {
		return
	}
	sched := z.currentSchedule()
	z.rules.FetchSchedule(sched, func(rules WeekRules, err error) {
		if err != nil {
			z.logger.Warn("schedule lookup failed", "zone", z.cfg.Location, "schedule", sched, "error", err)
			return
		}
		z.sched.Cancel(z.dashTimer)
		z.dashTimer = z.sched.After(dashboardDelay, func() {
			z.dashTimer = 0
			z.renderDashboard(sched, rules)
		})
	})
}

func (z *Zone) renderDashboard(sched string, rules WeekRules) {
	// A pending evaluation will fetch fresh rules.
	if z.delayTimer != 0 {
		return
	}

	var next string
	if v, ok := z.port.Attribute(sched, "next_event"); ok {
		next, _ = v.(string)
	}

	msg, err := NextEventMessage(z.scheduleActive(z.currentSchedule()), next, rules, z.sched.Now(), z.cfg.TimeZone)
	if err != nil {
		z.logger.Warn("next event evaluation failed", "zone", z.cfg.Location, "error", err)
		return
	}
	z.writeDashboard(msg)
	z.last.NextEvent = msg
}

// displayName capitalises a location for friendly names.
func displayName(location string) string {
	if location == "" {
		return location
	}
	return strings.ToUpper(location[:1]) + location[1:]
}
