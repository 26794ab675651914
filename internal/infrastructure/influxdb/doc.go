// Package influxdb provides InfluxDB connectivity for nestunify.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, metric writing, and health monitoring tailored to the service.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Composite climate state samples per thermostat pair
//   - Upstream source availability transitions
//   - Ad-hoc service metrics via WritePoint
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "nestunify",
//	    Bucket: "metrics",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	temp := 21.5
//	client.WriteClimateState("pair-living-room", influxdb.ClimateMetric{
//	    CurrentTemperature: &temp,
//	    HVACMode:           "heat",
//	})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This reduces network overhead for high-frequency telemetry data.
package influxdb
