package mqtt

import "fmt"

// Topic prefixes for the nestunify MQTT namespace.
//
// Entity bus traffic (upstream adapter state and commands) lives under
// nestunify/entity and is built by the entitybus package. The helpers here
// cover everything the core itself publishes.
const (
	// TopicPrefix is the base for all nestunify topics.
	TopicPrefix = "nestunify"

	// TopicPrefixClimate is the base for composite climate state topics.
	TopicPrefixClimate = "nestunify/climate"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "nestunify/system"
)

// Topics provides builders for nestunify MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.ClimateState("pair-living-room")
//	// Returns: "nestunify/climate/pair-living-room/state"
type Topics struct{}

// ClimateState returns the topic for a pair's composite state. Published
// retained so late subscribers see the current snapshot immediately.
//
// Example: nestunify/climate/pair-living-room/state
func (Topics) ClimateState(pairID string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixClimate, pairID)
}

// ClimateSources returns the topic for a pair's per-capability source
// labels, for dashboards that only care about routing diagnostics.
//
// Example: nestunify/climate/pair-living-room/sources
func (Topics) ClimateSources(pairID string) string {
	return fmt.Sprintf("%s/%s/sources", TopicPrefixClimate, pairID)
}

// Event returns the topic for service events.
//
// Example: nestunify/event/pair_created
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, eventType)
}

// SystemStatus returns the system status topic. Carries the LWT.
//
// Example: nestunify/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllClimateStates returns a pattern matching all composite state topics.
//
// Pattern: nestunify/climate/+/state
func (Topics) AllClimateStates() string {
	return fmt.Sprintf("%s/+/state", TopicPrefixClimate)
}

// AllEvents returns a pattern matching all service events.
//
// Pattern: nestunify/event/+
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefix)
}

// AllTopics returns a pattern matching all nestunify topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: nestunify/#
func (Topics) AllTopics() string {
	return "nestunify/#"
}
