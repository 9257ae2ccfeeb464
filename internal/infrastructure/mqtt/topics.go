package mqtt

import "fmt"

// DefaultPrefix is the base of every topic the heating controller owns.
const DefaultPrefix = "graylogic/heating"

// Topics builds the controller's MQTT topics under a common prefix.
//
//	topics := mqtt.NewTopics("graylogic/heating")
//	topics.Command("input_number.target_flow_temp")
//	// Returns: "graylogic/heating/command/input_number.target_flow_temp"
type Topics struct {
	Prefix string
}

// NewTopics returns a topic builder. An empty prefix uses DefaultPrefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) base() string {
	if t.Prefix == "" {
		return DefaultPrefix
	}
	return t.Prefix
}

// Command returns the topic an entity write is published on.
//
// Example: graylogic/heating/command/input_boolean.heating_claim_bad
func (t Topics) Command(entityID string) string {
	return fmt.Sprintf("%s/command/%s", t.base(), entityID)
}

// Event returns the topic a host event arrives on.
//
// Example: graylogic/heating/event/HEATING_FORCE_EVALUATION
func (t Topics) Event(name string) string {
	return fmt.Sprintf("%s/event/%s", t.base(), name)
}

// Request returns the topic a host service request is published on.
//
// Example: graylogic/heating/request/6f1c...
func (t Topics) Request(id string) string {
	return fmt.Sprintf("%s/request/%s", t.base(), id)
}

// Response returns the topic the host answers a request on.
//
// Example: graylogic/heating/response/6f1c...
func (t Topics) Response(id string) string {
	return fmt.Sprintf("%s/response/%s", t.base(), id)
}

// Notify returns the topic a push notification is published on.
//
// Example: graylogic/heating/notify/telegram
func (t Topics) Notify(target string) string {
	return fmt.Sprintf("%s/notify/%s", t.base(), target)
}

// Health returns the retained health topic.
//
// Example: graylogic/heating/health
func (t Topics) Health() string {
	return t.base() + "/health"
}

// Status returns the retained online/offline topic used for the LWT.
//
// Example: graylogic/heating/status
func (t Topics) Status() string {
	return t.base() + "/status"
}

// AllEvents matches every inbound host event.
//
// Pattern: graylogic/heating/event/+
func (t Topics) AllEvents() string {
	return t.base() + "/event/+"
}

// AllResponses matches every request response.
//
// Pattern: graylogic/heating/response/+
func (t Topics) AllResponses() string {
	return t.base() + "/response/+"
}

// Statestream returns the wildcard for a host state stream rooted at prefix.
//
// Pattern: homeassistant/statestream/#
func Statestream(prefix string) string {
	return prefix + "/#"
}
