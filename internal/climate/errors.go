package climate

import "errors"

// Domain errors for the climate package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, climate.ErrAllSourcesUnavailable) {
//	    // surface a 503 to the caller
//	}
var (
	// ErrSourceUnavailable is returned when a command targets a source whose
	// availability flag is false. Checked before the upstream call to avoid
	// an unnecessary round-trip.
	ErrSourceUnavailable = errors.New("climate: source unavailable")

	// ErrCommandRejected is returned when the upstream call itself failed.
	ErrCommandRejected = errors.New("climate: command rejected")

	// ErrAllSourcesUnavailable is returned when both the preferred and the
	// alternate provider for a capability are down.
	ErrAllSourcesUnavailable = errors.New("climate: all sources unavailable")

	// ErrUnknownCapability indicates a capability missing from the routing
	// table. This is a programming error, not an operational condition.
	ErrUnknownCapability = errors.New("climate: unknown capability")

	// ErrInstanceExists is returned when registering a pair instance with an
	// ID that is already tracked.
	ErrInstanceExists = errors.New("climate: pair instance already exists")

	// ErrInstanceNotFound is returned when a pair instance ID is not tracked.
	ErrInstanceNotFound = errors.New("climate: pair instance not found")
)
