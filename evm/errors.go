package evm

import "errors"

var (
	// ErrNotStarted is returned when Execute or an introspection call is
	// made before Start.
	ErrNotStarted = errors.New("evm: virtual machine not started")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("evm: virtual machine already started")

	// ErrStopped is returned when the virtual machine is used after Stop.
	// Stopped is terminal; there is no restart.
	ErrStopped = errors.New("evm: virtual machine stopped")

	// ErrUnknownBackend is returned when no factory is registered under
	// the requested name.
	ErrUnknownBackend = errors.New("evm: unknown backend")

	// ErrTooManyTopics is returned by EmitLog for more than four topics.
	ErrTooManyTopics = errors.New("evm: log entry exceeds four topics")
)
