package evm

import "context"

// Capabilities is a bitmask of the code formats and features a backend
// supports.
type Capabilities uint32

const (
	// CapEVM1 marks support for classic EVM byte-code.
	CapEVM1 Capabilities = 1 << 0
	// CapEWASM marks support for ewasm byte-code.
	CapEWASM Capabilities = 1 << 1
	// CapPrecompiles marks backends that execute precompiled contracts
	// themselves instead of delegating them to the host.
	CapPrecompiles Capabilities = 1 << 2
)

// Has reports whether every capability in want is present.
func (c Capabilities) Has(want Capabilities) bool {
	return c&want == want
}

// VMBackend is a pluggable byte-code interpreter. The bridge treats all
// backends interchangeably: swapping one for another must not change
// observable protocol semantics, only performance and feature support.
type VMBackend interface {
	// SetOption applies a configuration option before the first Execute.
	// Recognized names and their effect are entirely backend-defined; an
	// unrecognized name is answered with an error.
	SetOption(name, value string) error

	// Version returns a human-readable backend version string.
	Version() string

	// Capabilities returns the backend's capability bitmask.
	Capabilities() Capabilities

	// Execute interprets code under the semantics of the given revision,
	// invoking host for any access outside the frame. The returned error
	// is reserved for backend malfunction; outcomes of the executed code,
	// including failures, travel in the Result status.
	Execute(ctx context.Context, host HostContext, rev Revision, msg *Message, code []byte) (Result, error)

	// Close releases backend resources. No Execute may be in flight.
	Close() error
}

// BackendFactory constructs a fresh backend instance. Factories registered
// with RegisterBackend are looked up by name at dispatcher construction.
type BackendFactory func() (VMBackend, error)
