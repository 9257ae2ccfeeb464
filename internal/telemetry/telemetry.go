// Package telemetry writes zone and supply evaluations to InfluxDB.
//
// One zone_demand point is written per zone evaluation (tag zone) and one
// heat_supply point per supply evaluation (tag mode). Writes go through the
// InfluxDB client's non-blocking batch API, so the recorder can observe the
// dispatch loop directly.
package telemetry

import (
	"time"

	"github.com/nerrad567/gray-logic-heating/internal/heating"
)

// Writer is the subset of the InfluxDB client used by the recorder.
type Writer interface {
	WriteZoneDemand(zone string, fields map[string]any, ts time.Time)
	WriteHeatSupply(mode string, fields map[string]any, ts time.Time)
}

// Recorder implements heating.ZoneObserver and heating.SupplyObserver.
type Recorder struct {
	w Writer
}

// NewRecorder creates a recorder writing to w.
func NewRecorder(w Writer) *Recorder {
	return &Recorder{w: w}
}

// ZoneEvaluated implements heating.ZoneObserver.
func (r *Recorder) ZoneEvaluated(s heating.ZoneSnapshot) {
	fields := map[string]any{
		"target":           s.Target,
		"effective_target": s.EffectiveTarget,
		"sun_offset":       s.SunOffset,
		"claim":            s.Claim,
		"boost":            s.Boost,
		"schedule_active":  s.ScheduleActive,
	}
	if s.CurrentTemp != nil {
		fields["current"] = *s.CurrentTemp
	}
	r.w.WriteZoneDemand(s.Location, fields, s.EvaluatedAt)
}

// SupplyEvaluated implements heating.SupplyObserver. Evaluations made
// before startup completes are skipped.
func (r *Recorder) SupplyEvaluated(s heating.SupplySnapshot) {
	if s.State != heating.Active {
		return
	}
	fields := map[string]any{
		"flow_target":      s.FlowTarget,
		"heating":          s.Heating,
		"active_zones":     len(s.ActiveZones),
		"claiming_zones":   len(s.ClaimingZones),
		"baseline":         s.Baseline,
		"max_boost":        s.MaxBoost,
		"multi_room_boost": s.MultiRoomBoost,
	}
	if s.OutdoorTemp != nil {
		fields["outdoor"] = *s.OutdoorTemp
	}
	r.w.WriteHeatSupply(s.Mode.String(), fields, s.EvaluatedAt)
}

// SupplyEvent implements heating.SupplyObserver. Discrete events are kept
// in the SQLite history, not in InfluxDB.
func (r *Recorder) SupplyEvent(heating.SupplyEvent) {}
