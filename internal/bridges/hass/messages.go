package hass

import (
	"strings"

	"github.com/nerrad567/gray-logic-heating/internal/entity"
	"github.com/nerrad567/gray-logic-heating/internal/heating"
)

// Command asks the host to write an entity.
type Command struct {
	EntityID   string         `json:"entity_id"`
	Service    string         `json:"service"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// ScheduleService is the host service returning a schedule's rules.
const ScheduleService = "schedule.get_schedule"

// Request asks the host to call a service and answer on the response topic.
type Request struct {
	ID       string `json:"id"`
	Service  string `json:"service"`
	EntityID string `json:"entity_id"`
}

// Response answers a Request. Response is keyed by entity ID.
type Response struct {
	ID       string                       `json:"id"`
	Response map[string]heating.WeekRules `json:"response,omitempty"`
	Error    string                       `json:"error,omitempty"`
}

// NewCommand builds the command for writing state to entityID, choosing
// the service from the entity's domain.
func NewCommand(entityID, state string, attrs map[string]any) Command {
	return Command{
		EntityID:   entityID,
		Service:    ServiceFor(entityID, state),
		State:      state,
		Attributes: attrs,
	}
}

// ServiceFor returns the host service that sets state on entityID.
// Domains without a setter service (sensors, binary sensors) get
// set_state, which the host applies directly to the state machine.
func ServiceFor(entityID, state string) string {
	switch entity.Domain(entityID) {
	case "input_number", "number", "input_text":
		return "set_value"
	case "input_select", "select":
		return "select_option"
	case "input_boolean":
		if strings.EqualFold(state, "on") {
			return "turn_on"
		}
		return "turn_off"
	default:
		return "set_state"
	}
}
