// Package hass connects the entity store to a Home Assistant instance over
// MQTT.
//
// Inbound, it consumes the mqtt_statestream integration (with
// publish_attributes enabled):
//
//	homeassistant/statestream/sensor/temp_bad/state          19.5
//	homeassistant/statestream/sensor/temp_bad/unit_of_measurement  "°C"
//
// and host events published by a small automation on the host:
//
//	graylogic/heating/event/HEATING_FORCE_EVALUATION  {}
//
// Everything inbound is posted to the dispatch loop, so the heating
// components only ever see the store change on the loop goroutine.
//
// Outbound, entity writes become command messages that the host applies
// with the matching service call:
//
//	graylogic/heating/command/input_number.target_flow_temp
//	{"entity_id":"input_number.target_flow_temp","service":"set_value","state":"37.5"}
//
// Schedule rule lookups use a request/response pair correlated by ID and
// bounded by a timeout on the loop scheduler. All outbound traffic goes
// through an Outbox so the loop never waits on the broker.
package hass
