// Package notify delivers push notifications over MQTT.
//
// A notification for target "telegram" is published as
//
//	graylogic/heating/notify/telegram
//	{"title":"Heating Active","message":"Pump enabled.","disable_notification":false}
//
// and forwarded by the home automation host to the matching notify service.
// Each target has its own token bucket so a flapping sensor cannot flood
// the phone.
package notify
