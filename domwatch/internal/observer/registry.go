package observer

import (
	"runtime"
	"sync"
	"weak"

	"golang.org/x/net/html"
)

// Registry assigns page-scoped integer handles to nodes. A node's handle is
// its first-seen index: repeated lookups return the same handle and handles
// are never reused. The registry holds weak references only, so it never
// keeps a detached node alive; the entry of a collected node is dropped by
// a runtime cleanup.
type Registry struct {
	mu   sync.Mutex
	ids  map[weak.Pointer[html.Node]]int
	next int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[weak.Pointer[html.Node]]int)}
}

// ID returns the handle of n, assigning the next one on first sight.
// A nil node has handle -1.
func (r *Registry) ID(n *html.Node) int {
	if n == nil {
		return -1
	}
	wp := weak.Make(n)

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[wp]; ok {
		return id
	}
	id := r.next
	r.next++
	r.ids[wp] = id
	runtime.AddCleanup(n, r.forget, wp)
	return id
}

// Lookup returns the handle of n without assigning one.
func (r *Registry) Lookup(n *html.Node) (int, bool) {
	if n == nil {
		return -1, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.ids[weak.Make(n)]
	return id, ok
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

// Assigned returns how many handles were ever handed out.
func (r *Registry) Assigned() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}

func (r *Registry) forget(wp weak.Pointer[html.Node]) {
	r.mu.Lock()
	delete(r.ids, wp)
	r.mu.Unlock()
}
