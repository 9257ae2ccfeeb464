// Package influxdb provides InfluxDB connectivity for heating telemetry.
//
// It wraps the official influxdb-client-go v2 library. Every zone and
// supply evaluation becomes one point, which lets the dashboards plot
// targets, claims, boosts and the boiler flow setpoint over time:
//
//	zone_demand,zone=bad  target=21,current=19.4,claim=true,boost=0
//	heat_supply,mode=Auto flow_target=34,outdoor=5,active_zones=1
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry switched off
//	}
//	defer client.Close()
//
//	client.WriteHeatSupply("Auto", map[string]any{"flow_target": 34.0}, time.Now())
package influxdb
