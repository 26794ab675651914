// Package climate provides the state aggregation and routing engine for
// Nest Unify Core.
//
// A Nest thermostat is reachable through two independent upstream entities:
// a local Matter entity (fast temperature reads and writes, no cloud rate
// limits) and a Google Nest cloud entity (full feature set: HVAC modes, fan
// control, humidity). This package merges the two into one logical climate
// endpoint, routing each capability to whichever source is best suited and
// failing over automatically when a source drops off.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────────┐
//	│                        Aggregation Engine                            │
//	│                                                                      │
//	│  ┌──────────────┐   ┌──────────────┐   ┌──────────────────────────┐  │
//	│  │    Router    │   │    Policy    │   │        Aggregator        │  │
//	│  │ (routing.go) │──▶│ (failover.go)│──▶│     (aggregator.go)      │  │
//	│  │              │   │              │   │                          │  │
//	│  │ capability → │   │ availability │   │ • serialized event loop  │  │
//	│  │ (preferred,  │   │ → active     │   │ • composite snapshot     │  │
//	│  │  alternate)  │   │   source     │   │ • observer notifications │  │
//	│  └──────────────┘   └──────────────┘   └──────────────────────────┘  │
//	│          │                  │                      │                 │
//	│          ▼                  ▼                      ▼                 │
//	│  ┌─────────────────────────────────┐   ┌──────────────────────────┐  │
//	│  │           Dispatcher            │   │      Source Handles      │  │
//	│  │         (dispatcher.go)         │──▶│       (source.go)        │  │
//	│  │ commands + one fallback hop     │   │ snapshot + availability  │  │
//	│  └─────────────────────────────────┘   └──────────────────────────┘  │
//	└──────────────────────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - Aggregator: ingests source events, recomputes the composite state
//   - Dispatcher: routes outgoing commands with bounded failover
//   - CompositeState: immutable merged snapshot handed to observers
//   - Capability: one logical thermostat function (temperature_read, ...)
//   - SourceKind: which upstream entity backs a capability (matter/google)
//
// # Concurrency
//
// Each Aggregator owns its two source handles exclusively. All state
// mutation happens on a single event-loop goroutine (Run); concurrent
// upstream events are queued and drained one at a time. Reads via
// CurrentState are lock-free snapshot reads of an immutable structure and
// never observe a torn mix of fields. Multiple thermostat pairs are fully
// independent Aggregator instances tracked by a Manager.
package climate
