package heating

import "fmt"

// Global entities shared by every zone and the supply arbitrator.
const (
	MasterModeEntity      = "input_select.heating_mode"
	FlowTargetEntity      = "input_number.target_flow_temp"
	MarginEntity          = "input_number.heating_margin"
	BoostFactorEntity     = "input_number.heating_boost_factor"
	BoostThresholdEntity  = "input_number.heating_boost_threshold"
	BaselineZeroDegEntity = "input_number.heating_baseline_0_deg"
	BaselineAdjustEntity  = "input_number.baseline_adjustment"
	MaxFlowTempEntity     = "input_number.max_flow_temp"
	ClaimDurationEntity   = "input_number.heating_claim_duration"
	MultiRoomOffsetEntity = "input_number.flow_temp_multi_room_offset"
)

// Host events.
const (
	ForceEvaluationEvent       = "HEATING_FORCE_EVALUATION"
	EntityRegistryUpdatedEvent = "entity_registry_updated"
)

// Dashboard texts.
const (
	CalculatingMessage = "Calculating next event..."
	NoHeatingMessage   = "No heating scheduled."
	PowerCutMessage    = "Heating stops at next power cut."
)

// ZoneNames holds the entity ids derived from a zone's location.
type ZoneNames struct {
	ScheduleSelect string
	TargetTemp     string
	BaseTemp       string
	HeatTemp       string
	DeltaTemp      string
	Claim          string
	NextEvent      string
	BoostEnabled   string
	BoostStatus    string
	SunHelper      string
	SunIndicator   string
}

// NewZoneNames derives a zone's entity ids.
func NewZoneNames(location string) ZoneNames {
	return ZoneNames{
		ScheduleSelect: "input_select.heating_schedule_" + location,
		TargetTemp:     "input_number.target_temp_" + location,
		BaseTemp:       "input_number.base_temp_" + location,
		HeatTemp:       "input_number.heat_temp_" + location,
		DeltaTemp:      "input_number.delta_temp_" + location,
		Claim:          ClaimEntity(location),
		NextEvent:      "input_text.next_event_" + location,
		BoostEnabled:   "input_boolean.boost_enabled_" + location,
		BoostStatus:    BoostStatusEntity(location),
		SunHelper:      "input_number.sun_compensation_" + location,
		SunIndicator:   "binary_sensor.sun_compensation_" + location,
	}
}

// ScheduleEntity returns the schedule entity for a location and suffix.
func ScheduleEntity(location, suffix string) string {
	return fmt.Sprintf("schedule.%s_%s", suffix, location)
}

// ClaimEntity returns a zone's claim boolean.
func ClaimEntity(location string) string {
	return "input_boolean.heating_claim_" + location
}

// BoostStatusEntity returns a zone's boost indicator.
func BoostStatusEntity(location string) string {
	return "binary_sensor.boost_status_" + location
}
