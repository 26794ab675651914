package climate

import "time"

// SourceKind identifies which upstream entity backs a capability.
type SourceKind string

// Source kinds. The values double as diagnostic label stems.
const (
	// SourceMatter is the local Matter entity: fast reads/writes, no cloud
	// rate limits, but temperature control only.
	SourceMatter SourceKind = "matter"

	// SourceGoogle is the Google Nest cloud entity: full feature set
	// (HVAC modes, fan control, humidity) but rate-limited.
	SourceGoogle SourceKind = "google"
)

// Capability represents one logical thermostat function. Each capability is
// routed to exactly one active source at a time.
type Capability string

// Capability constants.
const (
	CapTemperatureRead  Capability = "temperature_read"
	CapTemperatureWrite Capability = "temperature_write"
	CapHVACMode         Capability = "hvac_mode"
	CapFanMode          Capability = "fan_mode"
	CapHumidityRead     Capability = "humidity_read"
	CapPower            Capability = "power"
)

// AllCapabilities returns all routed capability values.
func AllCapabilities() []Capability {
	return []Capability{
		CapTemperatureRead, CapTemperatureWrite, CapHVACMode,
		CapFanMode, CapHumidityRead, CapPower,
	}
}

// SourceEvent is one state-change notification from an upstream entity.
//
// Pointer fields are nil when the entity did not report that attribute.
// When Available is false the remaining fields are ignored: an outage never
// erases the last-known snapshot.
type SourceEvent struct {
	EntityID           string
	Available          bool
	CurrentTemperature *float64
	TargetTemperature  *float64
	HVACMode           *string
	FanMode            *string
	Humidity           *float64
	MinTemp            *float64
	MaxTemp            *float64
	HVACModes          []string
	FanModes           []string
}

// Snapshot is the last-known state of one upstream entity. Fields are nil
// until the entity first reports them.
type Snapshot struct {
	CurrentTemperature *float64
	TargetTemperature  *float64
	HVACMode           *string
	FanMode            *string
	Humidity           *float64
	MinTemp            *float64
	MaxTemp            *float64
	HVACModes          []string
	FanModes           []string
}

// Command operations understood by upstream entities.
const (
	OpSetTemperature = "set_temperature"
	OpSetHVACMode    = "set_hvac_mode"
	OpSetFanMode     = "set_fan_mode"
	OpTurnOn         = "turn_on"
	OpTurnOff        = "turn_off"
)

// Command is one outgoing write operation for an upstream entity.
type Command struct {
	// ID is the correlation id for downstream attribution. The transport
	// generates one when empty.
	ID string `json:"id,omitempty"`

	// Op is one of the Op* constants.
	Op string `json:"op"`

	// Temperature is the target setpoint for OpSetTemperature.
	Temperature *float64 `json:"temperature,omitempty"`

	// Mode is the HVAC or fan mode value for OpSetHVACMode / OpSetFanMode.
	Mode string `json:"mode,omitempty"`
}

// Feature is one entry of the advertised supported-feature set.
type Feature string

// Feature constants. Temperature control and power are always advertised
// (both sources nominally support thermostatic control); fan control is
// advertised only while its sole provider is available.
const (
	FeatureTargetTemperature Feature = "target_temperature"
	FeatureFanMode           Feature = "fan_mode"
	FeatureTurnOn            Feature = "turn_on"
	FeatureTurnOff           Feature = "turn_off"
)

// Default target temperature bounds, used until the fast source reports its
// own limits.
const (
	defaultMinTemp = 7.0
	defaultMaxTemp = 35.0
)

// CompositeState is the derived, observer-visible snapshot combining both
// sources. It is recomputed in full on every ingested change and exposed as
// an immutable value: slices and maps are never shared with aggregator
// internals.
type CompositeState struct {
	// Available is true iff at least one source is available.
	Available bool `json:"available"`

	CurrentTemperature *float64 `json:"current_temperature,omitempty"`
	TargetTemperature  *float64 `json:"target_temperature,omitempty"`
	HVACMode           *string  `json:"hvac_mode,omitempty"`
	FanMode            *string  `json:"fan_mode,omitempty"`
	Humidity           *float64 `json:"humidity,omitempty"`

	MinTemp float64 `json:"min_temp"`
	MaxTemp float64 `json:"max_temp"`

	HVACModes []string `json:"hvac_modes,omitempty"`
	FanModes  []string `json:"fan_modes,omitempty"`

	// Features is the currently advertised supported-feature set. It shrinks
	// when a capability's sole provider goes away and grows back on recovery.
	Features []Feature `json:"features"`

	// Sources holds the per-capability active-source diagnostic label:
	// "matter", "google", "<kind> (fallback)" or "unavailable".
	Sources map[Capability]string `json:"sources"`

	UpdatedAt time.Time `json:"updated_at"`
}

// cloneFloat returns an independent copy of v so composite snapshots never
// alias aggregator-owned memory.
func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// cloneString returns an independent copy of v.
func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// cloneStrings returns an independent copy of the slice.
func cloneStrings(vs []string) []string {
	if vs == nil {
		return nil
	}
	c := make([]string, len(vs))
	copy(c, vs)
	return c
}

// floatEqual compares two optional floats by value.
func floatEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// stringEqual compares two optional strings by value.
func stringEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// stringsEqual compares two string slices element-wise.
func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
