// Package pairing manages thermostat pair records: which Matter entity and
// which Google Nest entity refer to the same physical device.
//
// A pair is the unit of aggregation. The package provides a Repository
// interface with a SQLite implementation, validation of entity references,
// and convention-based discovery of candidate pairs from entities observed
// on the bus.
//
// # Thread Safety
//
// SQLiteRepository is safe for concurrent use from multiple goroutines
// (SQLite WAL mode + connection pooling).
package pairing
