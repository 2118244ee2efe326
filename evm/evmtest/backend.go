// Package evmtest provides a scriptable VM backend for exercising the
// execution bridge without a real interpreter. Tests install a RunFn that
// plays the role of contract code: it can read and write state through the
// HostContext and spawn nested calls, which is all the bridge semantics
// depend on.
package evmtest

import (
	"context"
	"fmt"

	"github.com/pinges/incubator-tuweni/evm"
)

// RunFn is the body of a scripted frame.
type RunFn func(ctx context.Context, host evm.HostContext, rev evm.Revision, msg *evm.Message, code []byte) (evm.Result, error)

// Backend is a configurable evm.VMBackend. The zero value is usable: it
// reports success and returns the frame's gas untouched.
type Backend struct {
	VersionString string
	Caps          evm.Capabilities
	Run           RunFn

	// FailOption makes SetOption reject that key.
	FailOption string
	// CloseErr is returned by Close.
	CloseErr error

	Options    map[string]string
	Applied    []string // option names in application order
	Executions int
	Closes     int
}

func New() *Backend {
	return &Backend{
		VersionString: "scripted/1.0",
		Caps:          evm.CapEVM1,
		Options:       make(map[string]string),
	}
}

// Factory wraps the backend for dispatcher construction.
func (b *Backend) Factory() evm.BackendFactory {
	return func() (evm.VMBackend, error) { return b, nil }
}

func (b *Backend) SetOption(name, value string) error {
	if name == b.FailOption && name != "" {
		return fmt.Errorf("unsupported option %q", name)
	}
	if b.Options == nil {
		b.Options = make(map[string]string)
	}
	b.Options[name] = value
	b.Applied = append(b.Applied, name)
	return nil
}

func (b *Backend) Version() string {
	if b.VersionString == "" {
		return "scripted/1.0"
	}
	return b.VersionString
}

func (b *Backend) Capabilities() evm.Capabilities {
	if b.Caps == 0 {
		return evm.CapEVM1
	}
	return b.Caps
}

func (b *Backend) Execute(ctx context.Context, host evm.HostContext, rev evm.Revision, msg *evm.Message, code []byte) (evm.Result, error) {
	b.Executions++
	if b.Run != nil {
		return b.Run(ctx, host, rev, msg, code)
	}
	return evm.Result{Status: evm.StatusSuccess, GasLeft: msg.Gas}, nil
}

func (b *Backend) Close() error {
	b.Closes++
	return b.CloseErr
}

var _ evm.VMBackend = (*Backend)(nil)
