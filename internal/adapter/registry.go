// Package adapter implements the adapter registry: resolution of bare
// adapter names and escalation-stage-qualified names, per spec §4.4.
package adapter

import (
	"fmt"
	"sync"

	"github.com/coregraph/taskgraph/contracts"
)

type registry struct {
	mu       sync.RWMutex
	adapters map[string]contracts.Adapter
}

// NewRegistry returns an empty, concurrency-safe AdapterRegistry.
func NewRegistry() contracts.AdapterRegistry {
	return &registry{adapters: make(map[string]contracts.Adapter)}
}

func (r *registry) Register(name string, a contracts.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[name] = a
}

func (r *registry) Resolve(name string) (contracts.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// ResolveStage resolves an escalation stage token against a base adapter
// name. It tries the bare token first ("gpt-4-full"), then the
// base-qualified form ("gpt-4:gpt-4-full"), matching spec §4.4's two-step
// lookup. The second return value is the name actually resolved, useful for
// audit logging.
func (r *registry) ResolveStage(base, stageToken string) (contracts.Adapter, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a, ok := r.adapters[stageToken]; ok {
		return a, stageToken, true
	}
	qualified := fmt.Sprintf("%s:%s", base, stageToken)
	if a, ok := r.adapters[qualified]; ok {
		return a, qualified, true
	}
	return nil, "", false
}
