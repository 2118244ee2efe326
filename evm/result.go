package evm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// StatusCode reports the outcome of a frame's execution. The numeric values
// are wire-stable across backends; negative codes signal problems inside
// the bridge or the backend rather than in the executed code.
type StatusCode int

const (
	StatusSuccess                    StatusCode = 0
	StatusFailure                    StatusCode = 1
	StatusRevert                     StatusCode = 2
	StatusOutOfGas                   StatusCode = 3
	StatusInvalidInstruction         StatusCode = 4
	StatusUndefinedInstruction       StatusCode = 5
	StatusStackOverflow              StatusCode = 6
	StatusStackUnderflow             StatusCode = 7
	StatusBadJumpDestination         StatusCode = 8
	StatusInvalidMemoryAccess        StatusCode = 9
	StatusCallDepthExceeded          StatusCode = 10
	StatusStaticModeViolation        StatusCode = 11
	StatusPrecompileFailure          StatusCode = 12
	StatusContractValidationFailure  StatusCode = 13
	StatusArgumentOutOfRange         StatusCode = 14
	StatusWasmUnreachableInstruction StatusCode = 15
	StatusWasmTrap                   StatusCode = 16

	StatusInternalError StatusCode = -1
	StatusRejected      StatusCode = -2
	StatusOutOfMemory   StatusCode = -3
)

var statusNames = map[StatusCode]string{
	StatusSuccess:                    "success",
	StatusFailure:                    "failure",
	StatusRevert:                     "revert",
	StatusOutOfGas:                   "out_of_gas",
	StatusInvalidInstruction:         "invalid_instruction",
	StatusUndefinedInstruction:       "undefined_instruction",
	StatusStackOverflow:              "stack_overflow",
	StatusStackUnderflow:             "stack_underflow",
	StatusBadJumpDestination:         "bad_jump_destination",
	StatusInvalidMemoryAccess:        "invalid_memory_access",
	StatusCallDepthExceeded:          "call_depth_exceeded",
	StatusStaticModeViolation:        "static_mode_violation",
	StatusPrecompileFailure:          "precompile_failure",
	StatusContractValidationFailure:  "contract_validation_failure",
	StatusArgumentOutOfRange:         "argument_out_of_range",
	StatusWasmUnreachableInstruction: "wasm_unreachable_instruction",
	StatusWasmTrap:                   "wasm_trap",
	StatusInternalError:              "internal_error",
	StatusRejected:                   "rejected",
	StatusOutOfMemory:                "out_of_memory",
}

// StatusCodeFromInt maps a numeric code received from a backend to its
// StatusCode. A value outside the defined set is a configuration error and
// must not be defaulted away, so the lookup fails instead.
func StatusCodeFromInt(code int) (StatusCode, error) {
	s := StatusCode(code)
	if _, ok := statusNames[s]; !ok {
		return 0, fmt.Errorf("evm: unknown status code %d", code)
	}
	return s, nil
}

// Valid reports whether the status code is a member of the defined set.
func (s StatusCode) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

func (s StatusCode) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Result is the outcome of one frame. GasLeft keeps whatever sign the
// backend reported: a negative value means the frame over-charged and
// callers rely on the sign to detect that, so it is never clamped here.
type Result struct {
	Status         StatusCode
	GasLeft        int64
	Output         []byte
	CreatedAddress common.Address // only meaningful for Create/Create2 frames
	Host           HostContext    // the host context the frame ran against
}
