package state

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/pinges/incubator-tuweni/evm"
)

// Key schema, one byte of prefix per table:
//
//	a + address          -> RLP(accountRecord)
//	c + address          -> contract code
//	s + address + slot   -> storage value (32 bytes)
//	h + block number(BE) -> block hash
const (
	accountPrefix   = 'a'
	codePrefix      = 'c'
	storagePrefix   = 's'
	blockHashPrefix = 'h'
)

type accountRecord struct {
	Nonce    uint64
	Balance  *uint256.Int
	CodeHash common.Hash
}

func accountKey(addr common.Address) []byte {
	return append([]byte{accountPrefix}, addr[:]...)
}

func codeKey(addr common.Address) []byte {
	return append([]byte{codePrefix}, addr[:]...)
}

func storageKey(addr common.Address, slot common.Hash) []byte {
	key := make([]byte, 0, 1+common.AddressLength+common.HashLength)
	key = append(key, storagePrefix)
	key = append(key, addr[:]...)
	return append(key, slot[:]...)
}

func storageRange(addr common.Address) *util.Range {
	return util.BytesPrefix(append([]byte{storagePrefix}, addr[:]...))
}

func blockHashKey(number uint64) []byte {
	key := make([]byte, 9)
	key[0] = blockHashPrefix
	binary.BigEndian.PutUint64(key[1:], number)
	return key
}

// LevelDBRepository is a persistent evm.Repository on top of goleveldb.
// It stores flat key/value records, no trie: it serves the bridge's read
// callbacks and ApplyChanges write-back, not state-root computation.
type LevelDBRepository struct {
	db *leveldb.DB
}

// OpenLevelDB opens (or creates) a repository at the given path.
func OpenLevelDB(path string) (*LevelDBRepository, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("state: open leveldb at %s: %w", path, err)
	}
	return &LevelDBRepository{db: db}, nil
}

// NewLevelDBRepository wraps an already opened database. The caller keeps
// ownership of db only until Close.
func NewLevelDBRepository(db *leveldb.DB) *LevelDBRepository {
	return &LevelDBRepository{db: db}
}

func (r *LevelDBRepository) Close() error {
	return r.db.Close()
}

func (r *LevelDBRepository) readAccount(addr common.Address) (*accountRecord, error) {
	data, err := r.db.Get(accountKey(addr), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec accountRecord
	if err := rlp.DecodeBytes(data, &rec); err != nil {
		return nil, fmt.Errorf("state: corrupt account record for %s: %w", addr, err)
	}
	return &rec, nil
}

func (r *LevelDBRepository) writeAccount(batch *leveldb.Batch, addr common.Address, rec *accountRecord) error {
	if rec.Balance == nil {
		rec.Balance = new(uint256.Int)
	}
	data, err := rlp.EncodeToBytes(rec)
	if err != nil {
		return err
	}
	batch.Put(accountKey(addr), data)
	return nil
}

func (r *LevelDBRepository) AccountExists(ctx context.Context, addr common.Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return r.db.Has(accountKey(addr), nil)
}

func (r *LevelDBRepository) GetBalance(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := r.readAccount(addr)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return new(uint256.Int), nil
	}
	return rec.Balance, nil
}

func (r *LevelDBRepository) GetNonce(ctx context.Context, addr common.Address) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rec, err := r.readAccount(addr)
	if err != nil || rec == nil {
		return 0, err
	}
	return rec.Nonce, nil
}

func (r *LevelDBRepository) GetCode(ctx context.Context, addr common.Address) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	code, err := r.db.Get(codeKey(addr), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	return code, err
}

func (r *LevelDBRepository) GetCodeHash(ctx context.Context, addr common.Address) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	rec, err := r.readAccount(addr)
	if err != nil || rec == nil {
		return common.Hash{}, err
	}
	return rec.CodeHash, nil
}

func (r *LevelDBRepository) GetStorage(ctx context.Context, addr common.Address, key common.Hash) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	data, err := r.db.Get(storageKey(addr, key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return common.Hash{}, nil
	}
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(data), nil
}

func (r *LevelDBRepository) GetBlockHash(ctx context.Context, number uint64) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	data, err := r.db.Get(blockHashKey(number), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return common.Hash{}, nil
	}
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(data), nil
}

// PutAccount seeds or updates an account's nonce and balance, keeping any
// code already stored.
func (r *LevelDBRepository) PutAccount(addr common.Address, nonce uint64, balance *uint256.Int) error {
	rec, err := r.readAccount(addr)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &accountRecord{CodeHash: emptyCodeHash}
	}
	rec.Nonce = nonce
	rec.Balance = balance.Clone()
	batch := new(leveldb.Batch)
	if err := r.writeAccount(batch, addr, rec); err != nil {
		return err
	}
	return r.db.Write(batch, nil)
}

// PutCode installs code for an account, creating the account record if it
// does not exist yet.
func (r *LevelDBRepository) PutCode(addr common.Address, code []byte) error {
	rec, err := r.readAccount(addr)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &accountRecord{}
	}
	if len(code) == 0 {
		rec.CodeHash = emptyCodeHash
	} else {
		rec.CodeHash = crypto.Keccak256Hash(code)
	}
	batch := new(leveldb.Batch)
	if err := r.writeAccount(batch, addr, rec); err != nil {
		return err
	}
	batch.Put(codeKey(addr), code)
	return r.db.Write(batch, nil)
}

// PutStorage writes one storage slot. A zero value deletes the record.
func (r *LevelDBRepository) PutStorage(addr common.Address, key, value common.Hash) error {
	if value == (common.Hash{}) {
		return r.db.Delete(storageKey(addr, key), nil)
	}
	return r.db.Put(storageKey(addr, key), value[:], nil)
}

// PutBlockHash records a block hash for GetBlockHash lookups.
func (r *LevelDBRepository) PutBlockHash(number uint64, hash common.Hash) error {
	return r.db.Put(blockHashKey(number), hash[:], nil)
}

// ApplyChanges writes the net effect of a successful execution in a single
// atomic batch. Accounts destructed by the change set are dropped entirely,
// including storage written earlier in the same execution.
func (r *LevelDBRepository) ApplyChanges(ctx context.Context, cs *evm.ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	destructed := make(map[common.Address]bool, len(cs.Destructs))
	for _, addr := range cs.Destructs {
		destructed[addr] = true
	}

	touched := make(map[common.Address]bool)
	for addr := range cs.Balances {
		touched[addr] = true
	}
	for addr := range cs.Nonces {
		touched[addr] = true
	}
	for addr := range cs.Code {
		touched[addr] = true
	}

	batch := new(leveldb.Batch)
	for addr := range touched {
		if destructed[addr] {
			continue
		}
		rec, err := r.readAccount(addr)
		if err != nil {
			return err
		}
		if rec == nil {
			rec = &accountRecord{CodeHash: emptyCodeHash}
		}
		if bc, ok := cs.Balances[addr]; ok {
			rec.Balance = bc.Balance.Clone()
		}
		if nc, ok := cs.Nonces[addr]; ok {
			rec.Nonce = nc.Nonce
		}
		if code, ok := cs.Code[addr]; ok {
			if len(code) == 0 {
				rec.CodeHash = emptyCodeHash
			} else {
				rec.CodeHash = crypto.Keccak256Hash(code)
			}
			batch.Put(codeKey(addr), code)
		}
		if err := r.writeAccount(batch, addr, rec); err != nil {
			return err
		}
	}
	for addr, slots := range cs.Storage {
		if destructed[addr] {
			continue
		}
		for k, v := range slots {
			if v == (common.Hash{}) {
				batch.Delete(storageKey(addr, k))
				continue
			}
			batch.Put(storageKey(addr, k), v[:])
		}
	}
	for _, addr := range cs.Destructs {
		batch.Delete(accountKey(addr))
		batch.Delete(codeKey(addr))
		it := r.db.NewIterator(storageRange(addr), nil)
		for it.Next() {
			batch.Delete(append([]byte(nil), it.Key()...))
		}
		it.Release()
		if err := it.Error(); err != nil {
			return err
		}
	}
	return r.db.Write(batch, nil)
}

var _ evm.Repository = (*LevelDBRepository)(nil)
