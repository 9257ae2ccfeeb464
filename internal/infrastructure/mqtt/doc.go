// Package mqtt provides the broker connection shared by the hass bridge,
// the notifier and the health reporter.
//
// The home automation host mirrors its entities onto MQTT through its
// state stream and executes the controller's commands from the command
// topics, so the broker is the controller's only link to the house:
//
//	graylogic-heating ↔ Mosquitto ↔ Home Assistant
//
// The client reconnects automatically, restores its subscriptions, and
// keeps a retained online/offline status (with an LWT) on
// graylogic/heating/status.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.NewTopics(cfg.Hass.CommandPrefix))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Statestream("homeassistant/statestream"), 1,
//	    func(topic string, payload []byte) error {
//	        return bridge.HandleState(topic, payload)
//	    })
package mqtt
