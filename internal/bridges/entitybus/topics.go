package entitybus

import "fmt"

// TopicPrefix is the base for all entity bus topics.
const TopicPrefix = "nestunify/entity"

// Topics provides builders for entity bus MQTT topics. Entity IDs contain
// no slashes, so each occupies a single topic level.
type Topics struct{}

// State returns the state publication topic for an entity.
//
// Example: nestunify/entity/state/climate.living_room
func (Topics) State(entityID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, entityID)
}

// Command returns the command topic for an entity.
//
// Example: nestunify/entity/command/climate.living_room
func (Topics) Command(entityID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, entityID)
}

// Result returns the command result topic for a command ID.
//
// Example: nestunify/entity/result/6f1cd0de-6ab1-4a3c-9d5d-9a7f6a3a1f20
func (Topics) Result(commandID string) string {
	return fmt.Sprintf("%s/result/%s", TopicPrefix, commandID)
}

// AllStates returns a pattern matching all entity state publications.
//
// Pattern: nestunify/entity/state/+
func (Topics) AllStates() string {
	return TopicPrefix + "/state/+"
}

// AllResults returns a pattern matching all command results.
//
// Pattern: nestunify/entity/result/+
func (Topics) AllResults() string {
	return TopicPrefix + "/result/+"
}
