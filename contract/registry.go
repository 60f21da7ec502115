package contract

import (
	"sync"
)

// Registry maps contract names to contracts. One registry belongs to each
// execution context; concurrent registration is last writer wins.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Contract
}

// NewRegistry returns a registry seeded with the builtin contracts.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]Contract)}
	for _, c := range Builtins() {
		r.byName[c.Name()] = c
	}
	return r
}

// Builtins lists the primitive contracts plus Any and CodeElement.
func Builtins() []Contract {
	return []Contract{
		Integer, Real, String, Boolean, Void, Array, Object,
		Function, Error, Future, Meta, Any, CodeElement,
	}
}

// Register binds name to c, replacing any earlier binding.
func (r *Registry) Register(name string, c Contract) {
	r.mu.Lock()
	r.byName[name] = c
	r.mu.Unlock()
}

// Lookup returns the contract registered under name.
func (r *Registry) Lookup(name string) (Contract, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

// Len returns the number of registered names.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
