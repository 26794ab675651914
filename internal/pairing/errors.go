package pairing

import "errors"

var (
	// ErrPairNotFound is returned when a pair ID does not exist.
	ErrPairNotFound = errors.New("pair not found")

	// ErrDuplicatePair is returned when one of the entities is already part
	// of another pair.
	ErrDuplicatePair = errors.New("entity already paired")

	// ErrInvalidName is returned for an unacceptable display name.
	ErrInvalidName = errors.New("invalid pair name")

	// ErrInvalidEntity is returned for a malformed entity reference.
	ErrInvalidEntity = errors.New("invalid entity id")
)
