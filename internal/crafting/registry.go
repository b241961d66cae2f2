package crafting

import (
	"fmt"
	"sync"

	"github.com/golang/groupcache/lru"

	"github.com/cory-johannsen/autohtn/internal/rules"
)

// DefaultCacheSize is the Registry capacity used when none is given.
const DefaultCacheSize = 64

// Registry indexes compiled Domains by rulebook digest so a rulebook is compiled
// once and shared by every search over it. It holds at most its capacity of
// Domains, evicting the least recently used.
//
// Invariant: a digest maps to at most one Domain at a time. Safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	opts     Options
	capacity int
	domains  *lru.Cache
}

// NewRegistry returns an empty Registry compiling with opts and holding at most
// capacity Domains.
//
// Postcondition: capacity < 1 selects DefaultCacheSize.
func NewRegistry(opts Options, capacity int) *Registry {
	if capacity < 1 {
		capacity = DefaultCacheSize
	}
	return &Registry{opts: opts, capacity: capacity, domains: lru.New(capacity)}
}

// Register compiles rb and stores the Domain under rb.Digest.
//
// Precondition: rb must carry a Digest.
// Postcondition: returns error on digest collision or compile failure.
func (r *Registry) Register(rb *rules.Rulebook) (*Domain, error) {
	if rb == nil || rb.Digest == "" {
		return nil, fmt.Errorf("crafting.Registry: rulebook must carry a digest")
	}
	d, err := Compile(rb, r.opts)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.domains.Get(rb.Digest); exists {
		return nil, fmt.Errorf("crafting.Registry: rulebook %q already registered", rb.Digest)
	}
	r.domains.Add(rb.Digest, d)
	return d, nil
}

// DomainFor returns the Domain for digest, or false if not registered. A hit marks
// the Domain as recently used.
func (r *Registry) DomainFor(digest string) (*Domain, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.domains.Get(digest)
	if !ok {
		return nil, false
	}
	return v.(*Domain), true
}

// GetOrCompile returns the cached Domain for rb.Digest, compiling it on first use.
//
// Postcondition: cached reports whether the Domain was already registered.
func (r *Registry) GetOrCompile(rb *rules.Rulebook) (d *Domain, cached bool, err error) {
	if rb == nil {
		return nil, false, fmt.Errorf("crafting.Registry: rulebook must not be nil")
	}
	if d, ok := r.DomainFor(rb.Digest); ok {
		return d, true, nil
	}
	d, err = r.Register(rb)
	if err != nil {
		// Lost a race with another compile of the same rulebook.
		if existing, ok := r.DomainFor(rb.Digest); ok {
			return existing, true, nil
		}
		return nil, false, err
	}
	return d, false, nil
}

// Len returns the number of registered domains.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.domains.Len()
}

// Capacity returns the maximum number of domains held.
func (r *Registry) Capacity() int {
	return r.capacity
}
