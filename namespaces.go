package nscache

import (
	"sort"
	"sync"
)

// Namespaces keeps at most one cache instance per namespace name. Every
// instance derived through WithNamespace shares its source's registry, so all
// callers asking for a name observe the same object and configuration.
//
// A registry is an explicit value: tests and independent subsystems create
// their own instead of sharing hidden global state.
type Namespaces[V any] struct {
	mu sync.Mutex
	m  map[string]Cache[V]
}

func NewNamespaces[V any]() *Namespaces[V] {
	return &Namespaces[V]{m: make(map[string]Cache[V])}
}

func (n *Namespaces[V]) Lookup(name string) (Cache[V], bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	c, ok := n.m[name]
	return c, ok
}

// Store registers c under name, replacing any previous instance.
func (n *Namespaces[V]) Store(name string, c Cache[V]) {
	n.mu.Lock()
	n.m[name] = c
	n.mu.Unlock()
}

// LoadOrCreate returns the instance registered under name, or registers the
// result of create. create runs under the registry lock and must not call back
// into this registry. Nothing is registered when create fails.
func (n *Namespaces[V]) LoadOrCreate(name string, create func() (Cache[V], error)) (Cache[V], error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if c, ok := n.m[name]; ok {
		return c, nil
	}
	c, err := create()
	if err != nil {
		return nil, err
	}
	n.m[name] = c
	return c, nil
}

// Names lists registered namespaces in sorted order.
func (n *Namespaces[V]) Names() []string {
	n.mu.Lock()
	out := make([]string, 0, len(n.m))
	for name := range n.m {
		out = append(out, name)
	}
	n.mu.Unlock()
	sort.Strings(out)
	return out
}

// Reset forgets every registered instance.
func (n *Namespaces[V]) Reset() {
	n.mu.Lock()
	n.m = make(map[string]Cache[V])
	n.mu.Unlock()
}
