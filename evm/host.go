package evm

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// StorageStatus describes the effect of a SetStorage call on the slot in
// the context of the current execution. Backends only strictly need the
// change / no-change distinction for gas-refund accounting, the finer
// taxonomy is advisory.
type StorageStatus int

const (
	// StorageUnchanged means the new value equals the current one; nothing
	// was written.
	StorageUnchanged StorageStatus = iota
	// StorageAdded means a previously unset slot received a non-zero value.
	StorageAdded
	// StorageModified means an existing value was replaced by a different
	// non-zero value.
	StorageModified
	// StorageDeleted means an existing value was set to zero.
	StorageDeleted
	// StorageRestored means a dirty slot was set back to its committed
	// value.
	StorageRestored
)

// Changed reports whether the write altered the slot at all.
func (s StorageStatus) Changed() bool {
	return s != StorageUnchanged
}

func (s StorageStatus) String() string {
	switch s {
	case StorageUnchanged:
		return "unchanged"
	case StorageAdded:
		return "added"
	case StorageModified:
		return "modified"
	case StorageDeleted:
		return "deleted"
	case StorageRestored:
		return "restored"
	}
	return "unknown"
}

// Log is a single log entry emitted during execution.
type Log struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

// TxContext carries the transaction- and block-level fields a backend may
// expose to the executed code.
type TxContext struct {
	GasPrice    *uint256.Int
	Origin      common.Address
	Coinbase    common.Address
	BlockNumber uint64
	Timestamp   int64
	GasLimit    uint64
	Difficulty  *uint256.Int
	ChainID     *uint256.Int
}

// HostContext is the callback surface a VM backend uses to touch anything
// outside its own frame: chain state, nested calls and log emission. One
// instance is bound to one top-level execution and shared with the nested
// frames it spawns; it is exclusively owned by that call tree and never by
// concurrent executions.
//
// Every method that can reach the backing repository takes a Context
// because the repository access may be I/O bound; callers must treat each
// callback as a possible suspension point. A non-nil error means the host
// could not answer consistently — the frame must then fail with
// StatusInternalError rather than interpret garbage.
type HostContext interface {
	// AccountExists reports whether the account has any recorded presence
	// (balance, code or nonce) as of this frame's view.
	AccountExists(ctx context.Context, addr common.Address) (bool, error)

	// GetStorage returns the value stored at key, or the zero value if the
	// slot is unset or the account does not exist. Writes made earlier in
	// the same frame or by completed nested calls are visible.
	GetStorage(ctx context.Context, addr common.Address, key common.Hash) (common.Hash, error)

	// SetStorage writes value at key for addr and reports the effect. The
	// address is the frame's own destination account by caller discipline;
	// the host does not police it.
	SetStorage(ctx context.Context, addr common.Address, key, value common.Hash) (StorageStatus, error)

	// GetBalance returns the account balance, zero for absent accounts.
	GetBalance(ctx context.Context, addr common.Address) (*uint256.Int, error)

	// GetCodeSize returns the size of the account code, zero for absent or
	// codeless accounts.
	GetCodeSize(ctx context.Context, addr common.Address) (int, error)

	// GetCodeHash returns the hash of the account code: the empty-input
	// hash for codeless accounts and the zero hash for absent ones.
	GetCodeHash(ctx context.Context, addr common.Address) (common.Hash, error)

	// GetCode returns the full code of the account, empty if none.
	GetCode(ctx context.Context, addr common.Address) ([]byte, error)

	// SelfDestruct transfers the remaining balance of addr to beneficiary
	// and schedules addr for removal. It does not halt interpretation; the
	// backend decides when to stop.
	SelfDestruct(ctx context.Context, addr, beneficiary common.Address) error

	// Call runs a nested frame. The message carries the calling frame's
	// depth; the child is dispatched at depth+1. State changes of a child
	// that does not end with StatusSuccess are rolled back before Call
	// returns.
	Call(ctx context.Context, msg *Message) (Result, error)

	// GetTxContext returns the transaction/block context of the execution.
	GetTxContext(ctx context.Context) (TxContext, error)

	// GetBlockHash returns the hash of the given block, or the zero hash
	// if it is unavailable (pruned, future or out of range).
	GetBlockHash(ctx context.Context, number uint64) (common.Hash, error)

	// EmitLog records a log entry. At most four topics are allowed.
	EmitLog(addr common.Address, topics []common.Hash, data []byte) error
}
