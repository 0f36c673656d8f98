package tcr

import (
	cmap "github.com/orcaman/concurrent-map"
)

// DefaultRegistry holds every live ConnectionPool in the process.
var DefaultRegistry = NewRegistry()

// Registry maps pool IDs to live pools. Connection requests keep the ID
// instead of the pool, so a destroyed pool can't be reached from callbacks
// that arrive after teardown.
type Registry struct {
	pools cmap.ConcurrentMap
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{pools: cmap.New()}
}

// Register adds the pool under its ID.
func (r *Registry) Register(cp *ConnectionPool) {
	r.pools.Set(cp.id, cp)
}

// Lookup finds a live pool by ID.
func (r *Registry) Lookup(id string) (*ConnectionPool, bool) {
	item, ok := r.pools.Get(id)
	if !ok {
		return nil, false
	}

	cp, ok := item.(*ConnectionPool)
	return cp, ok
}

// Unregister removes the pool with the given ID.
func (r *Registry) Unregister(id string) {
	r.pools.Remove(id)
}

// Count is the number of registered pools.
func (r *Registry) Count() int {
	return r.pools.Count()
}

// IDs lists the registered pool IDs.
func (r *Registry) IDs() []string {
	return r.pools.Keys()
}
