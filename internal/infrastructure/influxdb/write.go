package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// ClimateMetric carries the numeric fields recorded for a pair's composite
// state. Pointer fields are omitted from the point when nil, so a pair whose
// upstreams never reported humidity produces no humidity series.
type ClimateMetric struct {
	CurrentTemperature *float64
	TargetTemperature  *float64
	Humidity           *float64
	HVACMode           string
	MatterAvailable    bool
	GoogleAvailable    bool
}

// WriteClimateState writes a composite state sample for a thermostat pair.
//
// This is the primary method for recording climate telemetry. The write is
// non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - pairID: The pair identifier (e.g., "pair-living-room")
//   - metric: The sampled fields; nil pointers are skipped
//
// Example:
//
//	temp := 21.5
//	client.WriteClimateState("pair-living-room", influxdb.ClimateMetric{
//	    CurrentTemperature: &temp,
//	    HVACMode:           "heat",
//	    MatterAvailable:    true,
//	    GoogleAvailable:    true,
//	})
func (c *Client) WriteClimateState(pairID string, metric ClimateMetric) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"matter_available": boolToInt(metric.MatterAvailable),
		"google_available": boolToInt(metric.GoogleAvailable),
	}
	if metric.CurrentTemperature != nil {
		fields["current_temperature"] = *metric.CurrentTemperature
	}
	if metric.TargetTemperature != nil {
		fields["target_temperature"] = *metric.TargetTemperature
	}
	if metric.Humidity != nil {
		fields["humidity"] = *metric.Humidity
	}

	tags := map[string]string{
		"pair_id": pairID,
	}
	if metric.HVACMode != "" {
		tags["hvac_mode"] = metric.HVACMode
	}

	point := write.NewPoint("climate_state", tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WriteSourceAvailability records an availability transition for one upstream
// source of a pair. Written on every flip so dashboards can graph outages.
//
// Parameters:
//   - pairID: The pair identifier
//   - source: The source kind ("matter" or "google")
//   - available: Whether the source is currently reachable
func (c *Client) WriteSourceAvailability(pairID string, source string, available bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"source_availability",
		map[string]string{
			"pair_id": pairID,
			"source":  source,
		},
		map[string]interface{}{
			"up": boolToInt(available),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "core-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}

// boolToInt converts availability flags to 0/1 for numeric series.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
