package entitybus

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nerrad567/nest-unify/internal/climate"
)

// Entity states that mean the entity itself is unreachable rather than
// reporting a thermostat mode.
const (
	stateUnavailable = "unavailable"
	stateUnknown     = "unknown"
)

// stateMessage is one entity state publication. The shape mirrors what the
// upstream adapters emit: a primary state string (the HVAC mode, or
// "unavailable") plus an attribute map.
type stateMessage struct {
	EntityID   string          `json:"entity_id"`
	State      string          `json:"state"`
	Attributes stateAttributes `json:"attributes"`
}

// stateAttributes holds the optional per-entity attributes. Pointer fields
// distinguish "not reported" from zero values.
type stateAttributes struct {
	FriendlyName       string   `json:"friendly_name,omitempty"`
	CurrentTemperature *float64 `json:"current_temperature,omitempty"`
	Temperature        *float64 `json:"temperature,omitempty"`
	MinTemp            *float64 `json:"min_temp,omitempty"`
	MaxTemp            *float64 `json:"max_temp,omitempty"`
	CurrentHumidity    *float64 `json:"current_humidity,omitempty"`
	FanMode            *string  `json:"fan_mode,omitempty"`
	HVACModes          []string `json:"hvac_modes,omitempty"`
	FanModes           []string `json:"fan_modes,omitempty"`
}

// commandMessage is one outgoing command publication.
type commandMessage struct {
	ID          string   `json:"id"`
	EntityID    string   `json:"entity_id"`
	Op          string   `json:"op"`
	Temperature *float64 `json:"temperature,omitempty"`
	Mode        string   `json:"mode,omitempty"`
}

// resultMessage is one command result publication from an upstream adapter.
type resultMessage struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// parseStateMessage decodes a state publication. The entity ID from the
// topic wins over any embedded one so a misbehaving adapter cannot spoof
// another entity's state.
func parseStateMessage(topicEntityID string, payload []byte) (stateMessage, error) {
	var msg stateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return stateMessage{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	msg.EntityID = topicEntityID
	if msg.State == "" {
		return stateMessage{}, fmt.Errorf("%w: missing state", ErrInvalidMessage)
	}
	return msg, nil
}

// parseResultMessage decodes a command result publication.
func parseResultMessage(payload []byte) (resultMessage, error) {
	var msg resultMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return resultMessage{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if msg.ID == "" {
		return resultMessage{}, fmt.Errorf("%w: missing result id", ErrInvalidMessage)
	}
	return msg, nil
}

// toSourceEvent converts a state publication into a source event for the
// aggregation core. An "unavailable" or "unknown" primary state flips the
// availability flag; attributes are ignored in that case.
func (m stateMessage) toSourceEvent() climate.SourceEvent {
	if m.State == stateUnavailable || m.State == stateUnknown {
		return climate.SourceEvent{EntityID: m.EntityID, Available: false}
	}

	mode := m.State
	return climate.SourceEvent{
		EntityID:           m.EntityID,
		Available:          true,
		CurrentTemperature: m.Attributes.CurrentTemperature,
		TargetTemperature:  m.Attributes.Temperature,
		HVACMode:           &mode,
		FanMode:            m.Attributes.FanMode,
		Humidity:           m.Attributes.CurrentHumidity,
		MinTemp:            m.Attributes.MinTemp,
		MaxTemp:            m.Attributes.MaxTemp,
		HVACModes:          m.Attributes.HVACModes,
		FanModes:           m.Attributes.FanModes,
	}
}

// entityIDFromTopic extracts the trailing entity ID from a state or result
// topic. Returns "" for topics outside the entity bus scheme.
func entityIDFromTopic(topic string) string {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 || idx == len(topic)-1 {
		return ""
	}
	if !strings.HasPrefix(topic, TopicPrefix+"/") {
		return ""
	}
	return topic[idx+1:]
}
