// Package heartbeat reports that the heating controller is alive.
//
// Two independent signals are produced:
//
//   - Pulse sets a host entity (input_boolean.graylogic_heating_running)
//     on every interval with a last_heartbeat attribute. An automation on
//     the host alarms when the timestamp goes stale.
//   - Reporter publishes a retained health document to
//     graylogic/heating/health, built from the registered component checks.
package heartbeat
