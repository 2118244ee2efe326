// Package state provides Repository implementations for the execution
// bridge: an in-memory store for tests and light embedders, and a
// LevelDB-backed store for persistent state.
package state

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/pinges/incubator-tuweni/evm"
)

var emptyCodeHash = crypto.Keccak256Hash(nil)

type account struct {
	balance *uint256.Int
	nonce   uint64
	code    []byte
}

// MemoryRepository is a map-backed evm.Repository. It is safe for
// concurrent readers and writers; reads during an in-flight ApplyChanges
// see either the old or the new state of each key, never a torn record.
type MemoryRepository struct {
	mu          sync.RWMutex
	accounts    map[common.Address]*account
	storage     map[common.Address]map[common.Hash]common.Hash
	blockHashes map[uint64]common.Hash
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts:    make(map[common.Address]*account),
		storage:     make(map[common.Address]map[common.Hash]common.Hash),
		blockHashes: make(map[uint64]common.Hash),
	}
}

func (r *MemoryRepository) account(addr common.Address) *account {
	acc, ok := r.accounts[addr]
	if !ok {
		acc = &account{balance: new(uint256.Int)}
		r.accounts[addr] = acc
	}
	return acc
}

// SetBalance creates the account if needed and sets its balance.
func (r *MemoryRepository) SetBalance(addr common.Address, balance *uint256.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.account(addr).balance = balance.Clone()
}

// SetNonce creates the account if needed and sets its nonce.
func (r *MemoryRepository) SetNonce(addr common.Address, nonce uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.account(addr).nonce = nonce
}

// SetCode creates the account if needed and installs its code.
func (r *MemoryRepository) SetCode(addr common.Address, code []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.account(addr).code = append([]byte(nil), code...)
}

// SetStorage writes one storage slot. A zero value clears the slot.
func (r *MemoryRepository) SetStorage(addr common.Address, key, value common.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slots := r.storage[addr]
	if slots == nil {
		slots = make(map[common.Hash]common.Hash)
		r.storage[addr] = slots
	}
	if value == (common.Hash{}) {
		delete(slots, key)
		return
	}
	slots[key] = value
}

// SetBlockHash records the hash of a block for GetBlockHash lookups.
func (r *MemoryRepository) SetBlockHash(number uint64, hash common.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blockHashes[number] = hash
}

func (r *MemoryRepository) AccountExists(ctx context.Context, addr common.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.accounts[addr]
	return ok, nil
}

func (r *MemoryRepository) GetBalance(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if acc, ok := r.accounts[addr]; ok {
		return acc.balance.Clone(), nil
	}
	return new(uint256.Int), nil
}

func (r *MemoryRepository) GetNonce(ctx context.Context, addr common.Address) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if acc, ok := r.accounts[addr]; ok {
		return acc.nonce, nil
	}
	return 0, nil
}

func (r *MemoryRepository) GetCode(ctx context.Context, addr common.Address) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if acc, ok := r.accounts[addr]; ok {
		return append([]byte(nil), acc.code...), nil
	}
	return nil, nil
}

func (r *MemoryRepository) GetCodeHash(ctx context.Context, addr common.Address) (common.Hash, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.accounts[addr]
	if !ok {
		return common.Hash{}, nil
	}
	if len(acc.code) == 0 {
		return emptyCodeHash, nil
	}
	return crypto.Keccak256Hash(acc.code), nil
}

func (r *MemoryRepository) GetStorage(ctx context.Context, addr common.Address, key common.Hash) (common.Hash, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if slots, ok := r.storage[addr]; ok {
		return slots[key], nil
	}
	return common.Hash{}, nil
}

func (r *MemoryRepository) GetBlockHash(ctx context.Context, number uint64) (common.Hash, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.blockHashes[number], nil
}

// ApplyChanges folds the net effect of a successful execution into the
// repository. Destructed accounts are removed last, so a destruct in the
// same change set wins over any recorded balance for that address.
func (r *MemoryRepository) ApplyChanges(cs *evm.ChangeSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for addr, bc := range cs.Balances {
		r.account(addr).balance = bc.Balance.Clone()
	}
	for addr, nc := range cs.Nonces {
		r.account(addr).nonce = nc.Nonce
	}
	for addr, code := range cs.Code {
		r.account(addr).code = append([]byte(nil), code...)
	}
	for addr, slots := range cs.Storage {
		for k, v := range slots {
			dst := r.storage[addr]
			if dst == nil {
				dst = make(map[common.Hash]common.Hash)
				r.storage[addr] = dst
			}
			if v == (common.Hash{}) {
				delete(dst, k)
				continue
			}
			dst[k] = v
		}
	}
	for _, addr := range cs.Destructs {
		delete(r.accounts, addr)
		delete(r.storage, addr)
	}
}

// Copy returns a deep copy, useful for forking fixtures between tests.
func (r *MemoryRepository) Copy() *MemoryRepository {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := NewMemoryRepository()
	for addr, acc := range r.accounts {
		cp.accounts[addr] = &account{
			balance: acc.balance.Clone(),
			nonce:   acc.nonce,
			code:    append([]byte(nil), acc.code...),
		}
	}
	for addr, slots := range r.storage {
		dst := make(map[common.Hash]common.Hash, len(slots))
		for k, v := range slots {
			dst[k] = v
		}
		cp.storage[addr] = dst
	}
	for n, h := range r.blockHashes {
		cp.blockHashes[n] = h
	}
	return cp
}

var _ evm.Repository = (*MemoryRepository)(nil)
