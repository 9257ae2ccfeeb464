package heating

import "time"

// ZoneSnapshot is the outcome of a zone evaluation.
type ZoneSnapshot struct {
	Location        string    `json:"location"`
	Schedule        string    `json:"schedule"`
	ScheduleActive  bool      `json:"schedule_active"`
	CurrentTemp     *float64  `json:"current_temp,omitempty"`
	Target          float64   `json:"target"`
	EffectiveTarget float64   `json:"effective_target"`
	SunOffset       float64   `json:"sun_offset"`
	Claim           bool      `json:"claim"`
	Boost           float64   `json:"boost"`
	BoostEnabled    bool      `json:"boost_enabled"`
	NextEvent       string    `json:"next_event,omitempty"`
	EvaluatedAt     time.Time `json:"evaluated_at"`
}

// SupplyState is the arbitrator's lifecycle state.
type SupplyState int

// Arbitrator lifecycle states.
const (
	StartupPending SupplyState = iota
	Active
)

// String returns the state name.
func (s SupplyState) String() string {
	switch s {
	case StartupPending:
		return "startup_pending"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s SupplyState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SupplySnapshot is the outcome of a supply evaluation.
type SupplySnapshot struct {
	State          SupplyState `json:"state"`
	Mode           Mode        `json:"mode"`
	FlowTarget     float64     `json:"flow_target"`
	Heating        bool        `json:"heating"`
	ActiveZones    []string    `json:"active_zones"`
	ClaimingZones  []string    `json:"claiming_zones"`
	OutdoorTemp    *float64    `json:"outdoor_temp,omitempty"`
	OutdoorSensor  string      `json:"outdoor_sensor,omitempty"`
	Baseline       float64     `json:"baseline"`
	MaxBoost       float64     `json:"max_boost"`
	MultiRoomBoost float64     `json:"multi_room_boost"`
	EvaluatedAt    time.Time   `json:"evaluated_at"`
}

// EventKind classifies supply decisions worth recording.
type EventKind string

// Supply event kinds.
const (
	EventStartupComplete EventKind = "startup_complete"
	EventFlowTarget      EventKind = "flow_target"
	EventModeChanged     EventKind = "mode_changed"
	EventPartyEnded      EventKind = "party_ended"
	EventClaimsReset     EventKind = "claims_reset"
)

// SupplyEvent is a discrete supply decision.
type SupplyEvent struct {
	Kind         EventKind `json:"kind"`
	Mode         Mode      `json:"mode"`
	PreviousMode Mode      `json:"previous_mode,omitempty"`
	FlowTarget   float64   `json:"flow_target"`
	ActiveZones  []string  `json:"active_zones,omitempty"`
	OutdoorTemp  *float64  `json:"outdoor_temp,omitempty"`
	Details      string    `json:"details,omitempty"`
	Time         time.Time `json:"time"`
}

// ZoneObserver receives zone evaluation results.
type ZoneObserver interface {
	ZoneEvaluated(ZoneSnapshot)
}

// SupplyObserver receives supply evaluation results and decisions.
type SupplyObserver interface {
	SupplyEvaluated(SupplySnapshot)
	SupplyEvent(SupplyEvent)
}

// ZoneObservers fans a zone result out to several observers.
type ZoneObservers []ZoneObserver

// ZoneEvaluated implements ZoneObserver.
func (o ZoneObservers) ZoneEvaluated(s ZoneSnapshot) {
	for _, obs := range o {
		obs.ZoneEvaluated(s)
	}
}

// SupplyObservers fans supply results out to several observers.
type SupplyObservers []SupplyObserver

// SupplyEvaluated implements SupplyObserver.
func (o SupplyObservers) SupplyEvaluated(s SupplySnapshot) {
	for _, obs := range o {
		obs.SupplyEvaluated(s)
	}
}

// SupplyEvent implements SupplyObserver.
func (o SupplyObservers) SupplyEvent(e SupplyEvent) {
	for _, obs := range o {
		obs.SupplyEvent(e)
	}
}
