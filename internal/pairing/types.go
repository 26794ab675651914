package pairing

import (
	"fmt"
	"strings"
	"time"
)

// Validation constants.
const (
	maxNameLength = 100

	// entityPrefix is the required namespace for thermostat entity IDs.
	entityPrefix = "climate."
)

// Pair links the two upstream entities that represent one physical
// thermostat.
type Pair struct {
	// ID is the unique pair identifier (UUID).
	ID string `json:"id"`

	// Name is the display name shown in the API and logs.
	Name string `json:"name"`

	// MatterEntity is the local Matter entity reference.
	MatterEntity string `json:"matter_entity"`

	// GoogleEntity is the cloud Nest entity reference.
	GoogleEntity string `json:"google_entity"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidateName checks a pair display name.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateEntityID checks a single entity reference.
func ValidateEntityID(entityID string) error {
	if !strings.HasPrefix(entityID, entityPrefix) {
		return fmt.Errorf("%w: %q must start with %q", ErrInvalidEntity, entityID, entityPrefix)
	}
	if len(entityID) == len(entityPrefix) {
		return fmt.Errorf("%w: %q has no object id", ErrInvalidEntity, entityID)
	}
	if strings.ContainsAny(entityID, " /#+") {
		return fmt.Errorf("%w: %q contains reserved characters", ErrInvalidEntity, entityID)
	}
	return nil
}

// Validate checks a pair before persistence.
func (p *Pair) Validate() error {
	if err := ValidateName(p.Name); err != nil {
		return err
	}
	if err := ValidateEntityID(p.MatterEntity); err != nil {
		return err
	}
	if err := ValidateEntityID(p.GoogleEntity); err != nil {
		return err
	}
	if p.MatterEntity == p.GoogleEntity {
		return fmt.Errorf("%w: matter and google entities must differ", ErrInvalidEntity)
	}
	return nil
}
