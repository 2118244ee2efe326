package evm

import (
	"fmt"
	"sort"
	"sync"
)

// backendRegistry keeps the global registry of named backend factories so
// that embedders can select an engine at runtime. The zero value is ready
// to use.
var backendRegistry sync.Map // map[string]BackendFactory

// RegisterBackend makes a backend factory available under the given name,
// typically from an init function of the backend package. Registering the
// same name twice is a programming error.
func RegisterBackend(name string, factory BackendFactory) error {
	if factory == nil {
		return fmt.Errorf("evm: nil factory for backend %q", name)
	}
	if _, loaded := backendRegistry.LoadOrStore(name, factory); loaded {
		return fmt.Errorf("evm: backend %q already registered", name)
	}
	return nil
}

// NewBackend constructs a fresh instance of the named backend.
func NewBackend(name string) (VMBackend, error) {
	v, ok := backendRegistry.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return v.(BackendFactory)()
}

// Backends returns the sorted names of all registered backends.
func Backends() []string {
	var names []string
	backendRegistry.Range(func(key, _ any) bool {
		names = append(names, key.(string))
		return true
	})
	sort.Strings(names)
	return names
}
