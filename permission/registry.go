package permission

import (
	"errors"
	"sync"
)

// MaxBits is the number of (resource, action) pairs a [Registry] can hold.
const MaxBits = 128

// Registry maps (resource, action) pairs to bit positions within a [Mask].
type Registry struct {
	mu        sync.RWMutex
	pairToBit map[pair]int
	bitToPair map[int]pair
	frozen    bool
}

type pair struct {
	resource Resource
	action   Action
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		pairToBit: make(map[pair]int),
		bitToPair: make(map[int]pair),
	}
}

// Register assigns the next available bit to the pair, or returns the bit it
// already holds. Must be called before [Registry.Freeze].
func (r *Registry) Register(resource Resource, action Action) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}
	if resource == "" || action == "" {
		return -1, errors.New("resource and action must be non-empty")
	}

	p := pair{resource: resource, action: action}
	if bit, ok := r.pairToBit[p]; ok {
		return bit, nil
	}

	next := len(r.pairToBit)
	if next >= MaxBits {
		return -1, errors.New("permission limit exceeded")
	}

	r.pairToBit[p] = next
	r.bitToPair[next] = p
	return next, nil
}

// Bit returns the bit for the pair, or false if it was never registered.
func (r *Registry) Bit(resource Resource, action Action) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.pairToBit[pair{resource: resource, action: action}]
	return bit, ok
}

// Pair returns the (resource, action) pair held by bit.
func (r *Registry) Pair(bit int) (Resource, Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.bitToPair[bit]
	return p.resource, p.action, ok
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered pairs.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pairToBit)
}
