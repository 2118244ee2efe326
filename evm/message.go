package evm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// CallKind identifies the kind of a call frame. The numeric values are
// wire-stable and shared with every backend, so they must never be
// reordered.
type CallKind int

const (
	Call         CallKind = 0
	DelegateCall CallKind = 1
	CallCode     CallKind = 2
	Create       CallKind = 3
	Create2      CallKind = 4
)

// String returns a short human identifier for the call kind.
func (k CallKind) String() string {
	switch k {
	case Call:
		return "call"
	case DelegateCall:
		return "delegatecall"
	case CallCode:
		return "callcode"
	case Create:
		return "create"
	case Create2:
		return "create2"
	}
	return "unknown"
}

// Flags is a bitfield of message flags forwarded to the backend.
type Flags uint32

// StaticFlag marks a frame as read-only: any state modification attempted
// under it must be answered with StatusStaticModeViolation by the backend.
const StaticFlag Flags = 1

// MaxCallDepth is the maximum nesting level of call frames within one
// top-level execution. A nested call that would exceed it is answered with
// StatusCallDepthExceeded before any state is touched.
const MaxCallDepth = 1024

// Message describes a single execution frame handed to a VM backend. It is
// immutable once constructed; nested calls derive a fresh Message with the
// depth incremented rather than mutating the parent's.
//
// For DelegateCall and CallCode frames, Destination is the account whose
// storage and balance the frame operates on while CodeAddress names the
// account whose code is executed. For every other kind CodeAddress equals
// Destination. For Create and Create2 frames Input carries the init code
// and Destination is left to be derived by the host.
type Message struct {
	Kind        CallKind
	Flags       Flags
	Depth       int
	Gas         int64
	Destination common.Address
	CodeAddress common.Address
	Sender      common.Address
	Input       []byte
	Value       *uint256.Int
	Salt        common.Hash // only meaningful for Create2
}

// IsStatic reports whether the frame runs in read-only mode.
func (m *Message) IsStatic() bool {
	return m.Flags&StaticFlag != 0
}

// IsCreate reports whether the message describes contract creation.
func (m *Message) IsCreate() bool {
	return m.Kind == Create || m.Kind == Create2
}

// ValueOrZero returns the transferred value, treating nil as zero so that
// callers never have to guard the pointer.
func (m *Message) ValueOrZero() *uint256.Int {
	if m.Value == nil {
		return new(uint256.Int)
	}
	return m.Value
}
