package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the heating controller.
const (
	MeasurementZoneDemand = "zone_demand"
	MeasurementHeatSupply = "heat_supply"
)

// WriteZoneDemand records one zone evaluation, tagged by zone.
//
//	client.WriteZoneDemand("bad", map[string]any{"target": 21.0, "claim": true}, now)
func (c *Client) WriteZoneDemand(zone string, fields map[string]any, ts time.Time) {
	c.WritePointWithTime(MeasurementZoneDemand, map[string]string{"zone": zone}, fields, ts)
}

// WriteHeatSupply records one supply evaluation, tagged by heating mode.
func (c *Client) WriteHeatSupply(mode string, fields map[string]any, ts time.Time) {
	c.WritePointWithTime(MeasurementHeatSupply, map[string]string{"mode": mode}, fields, ts)
}

// WritePoint writes a point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp. Points
// without fields are dropped; InfluxDB rejects them.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
