// Package entitybus connects the aggregation core to upstream thermostat
// entities over MQTT.
//
// Upstream adapters (the Matter bridge and the Nest cloud bridge) publish
// entity state to the bus and accept commands from it. This package owns
// both directions: it parses state publications into source events for the
// aggregators, and it implements the command transport with per-command
// correlation and timeout.
//
// # Architecture
//
//	┌────────────────────┐   state    ┌────────────────────┐
//	│  Upstream adapters │───────────▶│                    │
//	│  (matter / nest)   │            │       Bridge       │──▶ watchers
//	│                    │◀───────────│                    │    (aggregators)
//	└────────────────────┘  command   └────────────────────┘
//	          │                                  ▲
//	          │            result                │
//	          └──────────────────────────────────┘
//
// # Topics
//
//	nestunify/entity/state/{entity_id}    state publications (retained)
//	nestunify/entity/command/{entity_id}  outgoing commands
//	nestunify/entity/result/{command_id}  command results
//
// # Concurrency
//
// All exported methods are safe for concurrent use. Incoming messages are
// handled on broker goroutines; watcher callbacks must hand work off
// rather than block.
package entitybus
