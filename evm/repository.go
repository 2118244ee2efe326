package evm

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/pinges/incubator-tuweni/tracing"
)

// Repository is the read surface the execution bridge requires from the
// chain state layer. Implementations are external collaborators; the only
// obligations here are that absent accounts answer with zero values rather
// than errors, and that an error really means the backing store failed.
//
// All methods take a Context because the repository may be disk or network
// backed. Implementations that serve concurrent top-level executions must
// provide snapshot or overlay isolation themselves — the bridge never
// writes through this interface during execution.
type Repository interface {
	AccountExists(ctx context.Context, addr common.Address) (bool, error)
	GetBalance(ctx context.Context, addr common.Address) (*uint256.Int, error)
	GetNonce(ctx context.Context, addr common.Address) (uint64, error)
	GetCode(ctx context.Context, addr common.Address) ([]byte, error)
	GetCodeHash(ctx context.Context, addr common.Address) (common.Hash, error)
	GetStorage(ctx context.Context, addr common.Address, key common.Hash) (common.Hash, error)
	GetBlockHash(ctx context.Context, number uint64) (common.Hash, error)
}

// BalanceChange is a final balance recorded by an execution, together with
// the reason it last changed.
type BalanceChange struct {
	Balance *uint256.Int
	Reason  tracing.BalanceChangeReason
}

// NonceChange is a final nonce recorded by an execution.
type NonceChange struct {
	Nonce  uint64
	Reason tracing.NonceChangeReason
}

// ChangeSet is the net effect of a successful top-level execution: the
// final values the embedder should write back to its repository, plus the
// logs to attach to the receipt. It is a value snapshot, detached from the
// host that produced it.
type ChangeSet struct {
	Balances  map[common.Address]BalanceChange
	Nonces    map[common.Address]NonceChange
	Code      map[common.Address][]byte
	Storage   map[common.Address]map[common.Hash]common.Hash
	Logs      []Log
	Destructs []common.Address
}

// Empty reports whether the change set carries no effects at all.
func (cs *ChangeSet) Empty() bool {
	return len(cs.Balances) == 0 && len(cs.Nonces) == 0 && len(cs.Code) == 0 &&
		len(cs.Storage) == 0 && len(cs.Logs) == 0 && len(cs.Destructs) == 0
}
