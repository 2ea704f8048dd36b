// Package blockproc is the downstream side of the guardian gate: it resolves
// services by logical name and records blocks proven through the gate.
package blockproc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ServiceName is the logical name the gate resolves to find the block
// processor.
const ServiceName = "block_processor"

// ErrServiceNotFound is returned when no service is registered under a name.
var ErrServiceNotFound = errors.New("service not found")

// BlockProver accepts a proof for a block.
type BlockProver interface {
	ProveBlock(ctx context.Context, blockID uint64, payload []byte) error
}

// Resolver maps a logical service name to the current implementation.
type Resolver interface {
	Resolve(name string) (BlockProver, error)
}

// Registry is a mutable name -> BlockProver table.
type Registry struct {
	mu       sync.RWMutex
	services map[string]BlockProver
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]BlockProver)}
}

// Register binds name to svc, replacing any earlier binding. A nil svc
// removes the binding.
func (r *Registry) Register(name string, svc BlockProver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if svc == nil {
		delete(r.services, name)
		return
	}
	r.services[name] = svc
}

// Resolve returns the service bound to name.
func (r *Registry) Resolve(name string) (BlockProver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrServiceNotFound, name)
	}
	return svc, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for n := range r.services {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ProverFunc adapts a function to BlockProver.
type ProverFunc func(ctx context.Context, blockID uint64, payload []byte) error

// ProveBlock calls f.
func (f ProverFunc) ProveBlock(ctx context.Context, blockID uint64, payload []byte) error {
	return f(ctx, blockID, payload)
}
