package evm

import (
	"bytes"
	"context"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/uint256"

	"github.com/pinges/incubator-tuweni/tracing"
)

// emptyCodeHash is the hash reported for accounts that exist but carry no
// code.
var emptyCodeHash = crypto.Keccak256Hash(nil)

// codeCacheSize bounds the per-execution cache of repository code lookups.
const codeCacheSize = 256

// frameRunner re-enters the dispatcher for nested frames. Implemented by
// VirtualMachine; kept as an interface so the host never holds the
// dispatcher's lifecycle.
type frameRunner interface {
	runFrame(ctx context.Context, host HostContext, rev Revision, msg *Message, code []byte) (Result, error)
}

// BatchKey identifies an (address, storage slot) tuple to be prefetched
// into the host's caches. An all-zero Slot primes only the account code.
type BatchKey struct {
	Address common.Address
	Slot    common.Hash
}

// accountDelta holds the overlay view of one account. Each field carries
// its own presence flag so that the undo log can restore "never touched"
// exactly.
type accountDelta struct {
	balance       *uint256.Int
	balanceReason tracing.BalanceChangeReason
	hasBalance    bool

	nonce       uint64
	nonceReason tracing.NonceChangeReason
	hasNonce    bool

	code    []byte
	hasCode bool
}

// TransactionalHost is the state-backed HostContext implementation. It
// keeps every write of one top-level execution in an overlay journal on
// top of a read-only Repository: reads consult the overlay first
// (read-your-writes), nested frames share the same journal, and frames
// that do not finish with StatusSuccess are rolled back through an undo
// log. Nothing is written to the repository; on success the embedder
// collects the net effect via Changes.
//
// A TransactionalHost is exclusively owned by one call tree and is not
// safe for concurrent use.
type TransactionalHost struct {
	repo   Repository
	runner frameRunner
	rev    Revision
	txctx  TxContext

	accounts  map[common.Address]*accountDelta
	storage   map[common.Address]map[common.Hash]common.Hash
	committed map[common.Address]map[common.Hash]common.Hash
	logs      []Log
	destructs mapset.Set[common.Address]
	undo      []undoEntry
	codeCache *lru.Cache
}

func newTransactionalHost(repo Repository, runner frameRunner, rev Revision, txctx TxContext) *TransactionalHost {
	cache, _ := lru.New(codeCacheSize)
	return &TransactionalHost{
		repo:      repo,
		runner:    runner,
		rev:       rev,
		txctx:     txctx,
		accounts:  make(map[common.Address]*accountDelta),
		storage:   make(map[common.Address]map[common.Hash]common.Hash),
		committed: make(map[common.Address]map[common.Hash]common.Hash),
		destructs: mapset.NewThreadUnsafeSet[common.Address](),
		codeCache: cache,
	}
}

// ----------------------------------------------------------------------------
// Undo log
// ----------------------------------------------------------------------------

type undoEntry interface {
	revert(h *TransactionalHost)
}

type storageUndo struct {
	addr common.Address
	key  common.Hash
	prev common.Hash
	had  bool
}

func (u storageUndo) revert(h *TransactionalHost) {
	slots := h.storage[u.addr]
	if u.had {
		slots[u.key] = u.prev
	} else {
		delete(slots, u.key)
	}
}

type balanceUndo struct {
	addr       common.Address
	prev       *uint256.Int
	prevReason tracing.BalanceChangeReason
	had        bool
}

func (u balanceUndo) revert(h *TransactionalHost) {
	d := h.accounts[u.addr]
	d.balance = u.prev
	d.balanceReason = u.prevReason
	d.hasBalance = u.had
}

type nonceUndo struct {
	addr       common.Address
	prev       uint64
	prevReason tracing.NonceChangeReason
	had        bool
}

func (u nonceUndo) revert(h *TransactionalHost) {
	d := h.accounts[u.addr]
	d.nonce = u.prev
	d.nonceReason = u.prevReason
	d.hasNonce = u.had
}

type codeUndo struct {
	addr common.Address
	prev []byte
	had  bool
}

func (u codeUndo) revert(h *TransactionalHost) {
	d := h.accounts[u.addr]
	d.code = u.prev
	d.hasCode = u.had
}

type logUndo struct{}

func (logUndo) revert(h *TransactionalHost) {
	h.logs = h.logs[:len(h.logs)-1]
}

type destructUndo struct {
	addr common.Address
}

func (u destructUndo) revert(h *TransactionalHost) {
	h.destructs.Remove(u.addr)
}

func (h *TransactionalHost) snapshot() int {
	return len(h.undo)
}

func (h *TransactionalHost) revertTo(snap int) {
	for i := len(h.undo) - 1; i >= snap; i-- {
		h.undo[i].revert(h)
	}
	h.undo = h.undo[:snap]
}

// ----------------------------------------------------------------------------
// Overlay accessors
// ----------------------------------------------------------------------------

func (h *TransactionalHost) delta(addr common.Address) *accountDelta {
	d, ok := h.accounts[addr]
	if !ok {
		d = &accountDelta{}
		h.accounts[addr] = d
	}
	return d
}

func (h *TransactionalHost) balance(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	if d, ok := h.accounts[addr]; ok && d.hasBalance {
		return d.balance.Clone(), nil
	}
	bal, err := h.repo.GetBalance(ctx, addr)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		bal = new(uint256.Int)
	}
	return bal, nil
}

func (h *TransactionalHost) nonce(ctx context.Context, addr common.Address) (uint64, error) {
	if d, ok := h.accounts[addr]; ok && d.hasNonce {
		return d.nonce, nil
	}
	return h.repo.GetNonce(ctx, addr)
}

func (h *TransactionalHost) code(ctx context.Context, addr common.Address) ([]byte, error) {
	if d, ok := h.accounts[addr]; ok && d.hasCode {
		return d.code, nil
	}
	if v, ok := h.codeCache.Get(addr); ok {
		return v.([]byte), nil
	}
	code, err := h.repo.GetCode(ctx, addr)
	if err != nil {
		return nil, err
	}
	h.codeCache.Add(addr, code)
	return code, nil
}

func (h *TransactionalHost) setBalance(addr common.Address, v *uint256.Int, reason tracing.BalanceChangeReason) {
	d := h.delta(addr)
	h.undo = append(h.undo, balanceUndo{addr: addr, prev: d.balance, prevReason: d.balanceReason, had: d.hasBalance})
	d.balance = v.Clone()
	d.balanceReason = reason
	d.hasBalance = true
}

func (h *TransactionalHost) setNonce(addr common.Address, nonce uint64, reason tracing.NonceChangeReason) {
	d := h.delta(addr)
	h.undo = append(h.undo, nonceUndo{addr: addr, prev: d.nonce, prevReason: d.nonceReason, had: d.hasNonce})
	d.nonce = nonce
	d.nonceReason = reason
	d.hasNonce = true
}

func (h *TransactionalHost) setCode(addr common.Address, code []byte) {
	d := h.delta(addr)
	h.undo = append(h.undo, codeUndo{addr: addr, prev: d.code, had: d.hasCode})
	d.code = append([]byte(nil), code...)
	d.hasCode = true
}

func (h *TransactionalHost) transfer(ctx context.Context, from, to common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) error {
	// A transfer to self is a no-op; debiting and crediting from the same
	// pre-read balance would credit without the debit.
	if from == to {
		return nil
	}
	fromBal, err := h.balance(ctx, from)
	if err != nil {
		return err
	}
	toBal, err := h.balance(ctx, to)
	if err != nil {
		return err
	}
	h.setBalance(from, new(uint256.Int).Sub(fromBal, amount), reason)
	h.setBalance(to, new(uint256.Int).Add(toBal, amount), reason)
	return nil
}

// committedValue returns the repository value of the slot, caching the
// first observation for the lifetime of the execution. The cache survives
// reverts because it mirrors state the execution cannot change.
func (h *TransactionalHost) committedValue(ctx context.Context, addr common.Address, key common.Hash) (common.Hash, error) {
	if slots, ok := h.committed[addr]; ok {
		if v, ok := slots[key]; ok {
			return v, nil
		}
	}
	v, err := h.repo.GetStorage(ctx, addr, key)
	if err != nil {
		return common.Hash{}, err
	}
	slots := h.committed[addr]
	if slots == nil {
		slots = make(map[common.Hash]common.Hash)
		h.committed[addr] = slots
	}
	slots[key] = v
	return v, nil
}

func (h *TransactionalHost) storageValue(ctx context.Context, addr common.Address, key common.Hash) (common.Hash, error) {
	if slots, ok := h.storage[addr]; ok {
		if v, ok := slots[key]; ok {
			return v, nil
		}
	}
	return h.committedValue(ctx, addr, key)
}

func (h *TransactionalHost) writeStorage(addr common.Address, key, value common.Hash) {
	slots := h.storage[addr]
	if slots == nil {
		slots = make(map[common.Hash]common.Hash)
		h.storage[addr] = slots
	}
	prev, had := slots[key]
	h.undo = append(h.undo, storageUndo{addr: addr, key: key, prev: prev, had: had})
	slots[key] = value
}

func (h *TransactionalHost) hostError(err error) (Result, error) {
	hostErrorMeter.Mark(1)
	return Result{Status: StatusInternalError}, err
}

// ----------------------------------------------------------------------------
// HostContext implementation
// ----------------------------------------------------------------------------

func (h *TransactionalHost) AccountExists(ctx context.Context, addr common.Address) (bool, error) {
	if d, ok := h.accounts[addr]; ok {
		if d.hasNonce && d.nonce != 0 {
			return true, nil
		}
		if d.hasBalance && !d.balance.IsZero() {
			return true, nil
		}
		if d.hasCode && len(d.code) != 0 {
			return true, nil
		}
	}
	return h.repo.AccountExists(ctx, addr)
}

func (h *TransactionalHost) GetStorage(ctx context.Context, addr common.Address, key common.Hash) (common.Hash, error) {
	return h.storageValue(ctx, addr, key)
}

func (h *TransactionalHost) SetStorage(ctx context.Context, addr common.Address, key, value common.Hash) (StorageStatus, error) {
	current, err := h.storageValue(ctx, addr, key)
	if err != nil {
		return StorageUnchanged, err
	}
	if current == value {
		return StorageUnchanged, nil
	}
	orig, err := h.committedValue(ctx, addr, key)
	if err != nil {
		return StorageUnchanged, err
	}
	h.writeStorage(addr, key, value)

	zero := common.Hash{}
	switch {
	case orig == current && orig == zero:
		return StorageAdded, nil
	case orig == current && value == zero:
		return StorageDeleted, nil
	case orig != current && value == orig:
		return StorageRestored, nil
	default:
		return StorageModified, nil
	}
}

func (h *TransactionalHost) GetBalance(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	return h.balance(ctx, addr)
}

func (h *TransactionalHost) GetCodeSize(ctx context.Context, addr common.Address) (int, error) {
	code, err := h.code(ctx, addr)
	if err != nil {
		return 0, err
	}
	return len(code), nil
}

func (h *TransactionalHost) GetCodeHash(ctx context.Context, addr common.Address) (common.Hash, error) {
	if d, ok := h.accounts[addr]; ok && d.hasCode {
		if len(d.code) == 0 {
			return emptyCodeHash, nil
		}
		return crypto.Keccak256Hash(d.code), nil
	}
	return h.repo.GetCodeHash(ctx, addr)
}

func (h *TransactionalHost) GetCode(ctx context.Context, addr common.Address) ([]byte, error) {
	code, err := h.code(ctx, addr)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), code...), nil
}

func (h *TransactionalHost) SelfDestruct(ctx context.Context, addr, beneficiary common.Address) error {
	bal, err := h.balance(ctx, addr)
	if err != nil {
		return err
	}
	if !bal.IsZero() {
		benBal, err := h.balance(ctx, beneficiary)
		if err != nil {
			return err
		}
		h.setBalance(beneficiary, new(uint256.Int).Add(benBal, bal), tracing.BalanceChangeSelfDestructPayout)
		h.setBalance(addr, new(uint256.Int), tracing.BalanceChangeSelfDestruct)
	}
	if !h.destructs.Contains(addr) {
		h.undo = append(h.undo, destructUndo{addr: addr})
		h.destructs.Add(addr)
	}
	return nil
}

func (h *TransactionalHost) GetTxContext(ctx context.Context) (TxContext, error) {
	return h.txctx, nil
}

func (h *TransactionalHost) GetBlockHash(ctx context.Context, number uint64) (common.Hash, error) {
	return h.repo.GetBlockHash(ctx, number)
}

func (h *TransactionalHost) EmitLog(addr common.Address, topics []common.Hash, data []byte) error {
	if len(topics) > 4 {
		return ErrTooManyTopics
	}
	h.undo = append(h.undo, logUndo{})
	h.logs = append(h.logs, Log{
		Address: addr,
		Topics:  append([]common.Hash(nil), topics...),
		Data:    append([]byte(nil), data...),
	})
	return nil
}

// Call runs a nested frame through the dispatcher. The incoming message
// carries the calling frame's depth; the child executes at depth+1. Value
// transfer follows the call kind: CALL moves value to the destination,
// CALLCODE only stakes it against the sender's balance, DELEGATECALL
// carries the parent's value without moving funds, CREATE/CREATE2 endow
// the freshly derived account. Any outcome other than StatusSuccess rolls
// the child's effects back, logs included.
func (h *TransactionalHost) Call(ctx context.Context, msg *Message) (Result, error) {
	nestedCallMeter.Mark(1)

	child := *msg
	child.Depth = msg.Depth + 1
	if child.Depth > MaxCallDepth {
		depthLimitMeter.Mark(1)
		return Result{Status: StatusCallDepthExceeded}, nil
	}

	value := child.ValueOrZero()
	if child.Kind != DelegateCall && !value.IsZero() {
		bal, err := h.balance(ctx, child.Sender)
		if err != nil {
			return h.hostError(err)
		}
		if bal.Cmp(value) < 0 {
			return Result{Status: StatusFailure, GasLeft: child.Gas}, nil
		}
	}

	snap := h.snapshot()

	var (
		code        []byte
		createdAddr common.Address
		err         error
	)
	switch child.Kind {
	case Create, Create2:
		code = child.Input
		child.Input = nil

		nonce, nerr := h.nonce(ctx, child.Sender)
		if nerr != nil {
			return h.hostError(nerr)
		}
		if child.Kind == Create {
			createdAddr = crypto.CreateAddress(child.Sender, nonce)
		} else {
			createdAddr = crypto.CreateAddress2(child.Sender, child.Salt, crypto.Keccak256(code))
		}
		h.setNonce(child.Sender, nonce+1, tracing.NonceChangeCreateBump)
		// The sender's nonce bump survives a failed or reverted create,
		// matching consensus behaviour, so the rollback point sits after it.
		snap = h.snapshot()

		// Deployment to an occupied address fails the frame.
		destNonce, nerr := h.nonce(ctx, createdAddr)
		if nerr != nil {
			h.revertTo(snap)
			return h.hostError(nerr)
		}
		destCode, cerr := h.code(ctx, createdAddr)
		if cerr != nil {
			h.revertTo(snap)
			return h.hostError(cerr)
		}
		if destNonce != 0 || len(destCode) != 0 {
			return Result{Status: StatusFailure}, nil
		}

		child.Destination = createdAddr
		child.CodeAddress = createdAddr
		h.setNonce(createdAddr, 1, tracing.NonceChangeNewContract)
		if !value.IsZero() {
			if terr := h.transfer(ctx, child.Sender, createdAddr, value, tracing.BalanceChangeCreateEndowment); terr != nil {
				h.revertTo(snap)
				return h.hostError(terr)
			}
		}

	case DelegateCall, CallCode:
		code, err = h.code(ctx, child.CodeAddress)
		if err != nil {
			return h.hostError(err)
		}

	default: // Call
		child.CodeAddress = child.Destination
		code, err = h.code(ctx, child.CodeAddress)
		if err != nil {
			return h.hostError(err)
		}
		if !value.IsZero() {
			if terr := h.transfer(ctx, child.Sender, child.Destination, value, tracing.BalanceChangeCallTransfer); terr != nil {
				h.revertTo(snap)
				return h.hostError(terr)
			}
		}
	}

	res, err := h.runner.runFrame(ctx, h, h.rev, &child, code)
	if err != nil {
		h.revertTo(snap)
		return res, err
	}
	if res.Status != StatusSuccess {
		h.revertTo(snap)
		return res, nil
	}
	if child.IsCreate() {
		h.setCode(createdAddr, res.Output)
		res.CreatedAddress = createdAddr
	}
	return res, nil
}

// ----------------------------------------------------------------------------
// Embedder surface
// ----------------------------------------------------------------------------

// Prefetch warms the host caches for the given account/slot keys so that
// execution can resolve them without further repository round-trips. It is
// best effort: lookup failures are ignored.
func (h *TransactionalHost) Prefetch(ctx context.Context, keys []BatchKey) {
	for _, k := range keys {
		if k.Slot == (common.Hash{}) {
			h.code(ctx, k.Address)
			continue
		}
		h.committedValue(ctx, k.Address, k.Slot)
	}
}

// Logs returns the log entries accumulated so far, in emission order.
func (h *TransactionalHost) Logs() []Log {
	return append([]Log(nil), h.logs...)
}

// Changes snapshots the net effect of the execution for the embedder to
// apply to its repository. Only call it after the top-level frame finished
// with StatusSuccess; for any other outcome the overlay has already been
// rolled back and the change set is empty or partial by design.
func (h *TransactionalHost) Changes() *ChangeSet {
	cs := &ChangeSet{
		Balances: make(map[common.Address]BalanceChange),
		Nonces:   make(map[common.Address]NonceChange),
		Code:     make(map[common.Address][]byte),
		Storage:  make(map[common.Address]map[common.Hash]common.Hash),
	}
	for addr, d := range h.accounts {
		if d.hasBalance {
			cs.Balances[addr] = BalanceChange{Balance: d.balance.Clone(), Reason: d.balanceReason}
		}
		if d.hasNonce {
			cs.Nonces[addr] = NonceChange{Nonce: d.nonce, Reason: d.nonceReason}
		}
		if d.hasCode {
			cs.Code[addr] = append([]byte(nil), d.code...)
		}
	}
	for addr, slots := range h.storage {
		if len(slots) == 0 {
			continue
		}
		out := make(map[common.Hash]common.Hash, len(slots))
		for k, v := range slots {
			out[k] = v
		}
		cs.Storage[addr] = out
	}
	cs.Logs = h.Logs()
	cs.Destructs = h.destructs.ToSlice()
	sort.Slice(cs.Destructs, func(i, j int) bool {
		return bytes.Compare(cs.Destructs[i][:], cs.Destructs[j][:]) < 0
	})
	return cs
}

var _ HostContext = (*TransactionalHost)(nil)
