package evm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

type nopBackend struct{}

func (nopBackend) SetOption(name, value string) error { return nil }
func (nopBackend) Version() string                    { return "nop/0" }
func (nopBackend) Capabilities() Capabilities         { return CapEVM1 }
func (nopBackend) Execute(ctx context.Context, host HostContext, rev Revision, msg *Message, code []byte) (Result, error) {
	return Result{Status: StatusSuccess, GasLeft: msg.Gas}, nil
}
func (nopBackend) Close() error { return nil }

func nopFactory() (VMBackend, error) { return nopBackend{}, nil }

func TestRegisterAndConstruct(t *testing.T) {
	const name = "registry-test-construct"
	if err := RegisterBackend(name, nopFactory); err != nil {
		t.Fatalf("register: %v", err)
	}
	b, err := NewBackend(name)
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if b.Version() != "nop/0" {
		t.Fatalf("unexpected backend %q", b.Version())
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	const name = "registry-test-dup"
	if err := RegisterBackend(name, nopFactory); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := RegisterBackend(name, nopFactory); err == nil {
		t.Fatal("second register should fail")
	}
}

func TestRegisterRejectsNilFactory(t *testing.T) {
	if err := RegisterBackend("registry-test-nil", nil); err == nil {
		t.Fatal("nil factory should be rejected")
	}
}

func TestNewBackendUnknown(t *testing.T) {
	_, err := NewBackend("registry-test-missing")
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("err = %v, want ErrUnknownBackend", err)
	}
}

func TestBackendsListsRegistered(t *testing.T) {
	const name = "registry-test-list"
	if err := RegisterBackend(name, nopFactory); err != nil {
		t.Fatalf("register: %v", err)
	}
	found := false
	prev := ""
	for _, n := range Backends() {
		if n <= prev && prev != "" {
			t.Fatalf("names not sorted: %q after %q", n, prev)
		}
		prev = n
		if n == name {
			found = true
		}
	}
	if !found {
		t.Fatalf("%q not listed", name)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("registry-test-race-%d", i)
			if err := RegisterBackend(name, nopFactory); err != nil {
				t.Errorf("register %s: %v", name, err)
				return
			}
			if _, err := NewBackend(name); err != nil {
				t.Errorf("construct %s: %v", name, err)
			}
			Backends()
		}(i)
	}
	wg.Wait()
}
