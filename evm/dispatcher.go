package evm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

type vmState int

const (
	stateNew vmState = iota
	stateStarted
	stateStopped
)

// VirtualMachine is the execution dispatcher: it owns the lifecycle of one
// VM backend, builds the per-call host context and message, and forwards
// them to the backend. It performs no gas pre-charging and no depth
// enforcement itself — those belong to the backend and the host adapter.
//
// The backend instance is shared by all Execute calls made while started;
// Start and Stop must not race with an in-flight Execute.
type VirtualMachine struct {
	repo    Repository
	factory BackendFactory
	options map[string]string

	mu      sync.Mutex
	state   vmState
	backend VMBackend
}

// NewVirtualMachine wires a dispatcher to the given state repository and
// backend factory. The options map is applied to the backend at Start;
// recognized keys are entirely backend-defined.
func NewVirtualMachine(repo Repository, factory BackendFactory, options map[string]string) *VirtualMachine {
	return &VirtualMachine{
		repo:    repo,
		factory: factory,
		options: options,
	}
}

// NewVirtualMachineByName is like NewVirtualMachine but resolves the
// backend through the registry at Start time.
func NewVirtualMachineByName(repo Repository, name string, options map[string]string) *VirtualMachine {
	return NewVirtualMachine(repo, func() (VMBackend, error) { return NewBackend(name) }, options)
}

// Start constructs the backend and applies the configured options to it.
// It must be called exactly once before any Execute; an option the backend
// rejects fails the whole start.
func (vm *VirtualMachine) Start() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	switch vm.state {
	case stateStarted:
		return ErrAlreadyStarted
	case stateStopped:
		return ErrStopped
	}

	backend, err := vm.factory()
	if err != nil {
		return fmt.Errorf("evm: backend construction failed: %w", err)
	}

	// Apply options in a stable order so that a failure is reproducible.
	names := make([]string, 0, len(vm.options))
	for name := range vm.options {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := backend.SetOption(name, vm.options[name]); err != nil {
			backend.Close()
			return fmt.Errorf("evm: option %q rejected by backend: %w", name, err)
		}
	}

	vm.backend = backend
	vm.state = stateStarted
	log.Info("VM backend started", "version", backend.Version(), "capabilities", uint32(backend.Capabilities()))
	return nil
}

// Stop releases the backend. The stopped state is terminal: the virtual
// machine cannot be restarted and any later Execute fails. Calling Stop
// again is a safe no-op.
func (vm *VirtualMachine) Stop() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	switch vm.state {
	case stateNew:
		return ErrNotStarted
	case stateStopped:
		return nil
	}

	err := vm.backend.Close()
	vm.backend = nil
	vm.state = stateStopped
	if err != nil {
		return fmt.Errorf("evm: backend close failed: %w", err)
	}
	log.Info("VM backend stopped")
	return nil
}

// Version reports the backend version string.
func (vm *VirtualMachine) Version() (string, error) {
	backend, err := vm.running()
	if err != nil {
		return "", err
	}
	return backend.Version(), nil
}

// Capabilities reports the backend capability bitmask.
func (vm *VirtualMachine) Capabilities() (Capabilities, error) {
	backend, err := vm.running()
	if err != nil {
		return 0, err
	}
	return backend.Capabilities(), nil
}

func (vm *VirtualMachine) running() (VMBackend, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	switch vm.state {
	case stateNew:
		return nil, ErrNotStarted
	case stateStopped:
		return nil, ErrStopped
	}
	return vm.backend, nil
}

// CallParams describes one top-level execution request. Zero values are
// meaningful defaults for Kind (Call) and Depth (0); Revision must be set
// explicitly — use Latest unless replaying historic blocks.
type CallParams struct {
	Kind     CallKind
	Revision Revision
	Static   bool
	Depth    int

	Sender      common.Address
	Destination common.Address
	Value       *uint256.Int
	Code        []byte
	Input       []byte
	Gas         int64
	Salt        common.Hash

	GasPrice    *uint256.Int
	Coinbase    common.Address
	BlockNumber uint64
	Timestamp   int64
	GasLimit    uint64
	Difficulty  *uint256.Int
	ChainID     *uint256.Int
}

// Execute builds a host context bound to the call's block and transaction
// context plus a message, and hands both to the backend. The caller's
// depth travels into the message unchanged. The returned Result carries
// the host context; on SUCCESS the embedder reads the accumulated changes
// from it and applies them to its repository.
func (vm *VirtualMachine) Execute(ctx context.Context, params CallParams) (Result, error) {
	if _, err := vm.running(); err != nil {
		return Result{}, err
	}

	txctx := TxContext{
		GasPrice:    params.GasPrice,
		Origin:      params.Sender,
		Coinbase:    params.Coinbase,
		BlockNumber: params.BlockNumber,
		Timestamp:   params.Timestamp,
		GasLimit:    params.GasLimit,
		Difficulty:  params.Difficulty,
		ChainID:     params.ChainID,
	}
	host := newTransactionalHost(vm.repo, vm, params.Revision, txctx)

	var flags Flags
	if params.Static {
		flags |= StaticFlag
	}
	msg := &Message{
		Kind:        params.Kind,
		Flags:       flags,
		Depth:       params.Depth,
		Gas:         params.Gas,
		Destination: params.Destination,
		CodeAddress: params.Destination,
		Sender:      params.Sender,
		Input:       params.Input,
		Value:       params.Value,
		Salt:        params.Salt,
	}

	start := time.Now()
	res, err := vm.runFrame(ctx, host, params.Revision, msg, params.Code)
	executeTimer.UpdateSince(start)
	res.Host = host
	if err != nil {
		return res, err
	}

	log.Debug("Executed frame", "kind", msg.Kind, "depth", msg.Depth,
		"status", res.Status, "gasLeft", res.GasLeft)
	return res, nil
}

// runFrame forwards one frame to the backend and validates the outcome.
// It is shared by top-level Execute and nested calls re-entering through
// the host.
func (vm *VirtualMachine) runFrame(ctx context.Context, host HostContext, rev Revision, msg *Message, code []byte) (Result, error) {
	backend, err := vm.running()
	if err != nil {
		return Result{Status: StatusInternalError}, err
	}

	res, err := backend.Execute(ctx, host, rev, msg, code)
	if err != nil {
		return Result{Status: StatusInternalError}, fmt.Errorf("evm: backend execution failed: %w", err)
	}
	// An out-of-range status is a protocol error between bridge and
	// backend, never something to default away.
	if !res.Status.Valid() {
		return Result{Status: StatusInternalError}, fmt.Errorf("evm: backend returned unknown status code %d", int(res.Status))
	}
	return res, nil
}
