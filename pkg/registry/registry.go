package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/cadence/pkg/domain"
)

// Function defines the signature for a host function callable from
// conditions. It receives evaluated arguments and returns a single value.
type Function func(args []domain.Value) (domain.Value, error)

// ErrFunctionNotFound is wrapped by Call when no function is registered under a name.
var ErrFunctionNotFound = errors.New("function not found")

// Registry manages the available host functions.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		funcs: make(map[string]Function),
	}
}

// Register adds a function to the registry.
// If a function with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn Function) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Has reports whether a function is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[name]
	return ok
}

// Names returns the registered function names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.funcs))
	for k := range r.funcs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Call looks up a function by name and executes it.
func (r *Registry) Call(name string, args []domain.Value) (domain.Value, error) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()

	if !ok {
		return domain.Value{}, fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}

	return fn(args)
}
