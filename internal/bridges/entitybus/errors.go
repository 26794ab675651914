package entitybus

import "errors"

var (
	// ErrCommandTimeout is returned when no result arrives for a command
	// within the configured timeout.
	ErrCommandTimeout = errors.New("entitybus: command timed out")

	// ErrNotConnected is returned when the MQTT client reports no broker
	// connection at publish time.
	ErrNotConnected = errors.New("entitybus: not connected to broker")

	// ErrInvalidMessage indicates a payload that could not be parsed.
	ErrInvalidMessage = errors.New("entitybus: invalid message")

	// ErrCommandFailed is returned when the upstream adapter reports a
	// failed command.
	ErrCommandFailed = errors.New("entitybus: command failed")
)
