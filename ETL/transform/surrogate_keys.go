package transform

import (
	"sort"
)

// keyRegistry assigns surrogate keys for one dimension. Existing keys are
// reused as-is; new natural keys get max(existing)+1, +2, ... in sorted
// natural-key order, so the result does not depend on record arrival order.
type keyRegistry struct {
	keys    map[string]int64
	max     int64
	pending map[string]bool
}

func newKeyRegistry() *keyRegistry {
	return &keyRegistry{
		keys:    make(map[string]int64),
		pending: make(map[string]bool),
	}
}

// seed records a stored member
func (r *keyRegistry) seed(naturalKey string, key int64) {
	r.keys[naturalKey] = key
	if key > r.max {
		r.max = key
	}
}

// want marks a natural key as referenced by this run
func (r *keyRegistry) want(naturalKey string) {
	if _, ok := r.keys[naturalKey]; !ok {
		r.pending[naturalKey] = true
	}
}

// exists reports whether the natural key was already stored
func (r *keyRegistry) exists(naturalKey string) bool {
	_, ok := r.keys[naturalKey]
	return ok
}

// assign hands out keys to every pending natural key and returns them in
// assignment order
func (r *keyRegistry) assign() []string {
	fresh := make([]string, 0, len(r.pending))
	for nk := range r.pending {
		fresh = append(fresh, nk)
	}
	sort.Strings(fresh)

	for _, nk := range fresh {
		r.max++
		r.keys[nk] = r.max
	}
	r.pending = make(map[string]bool)
	return fresh
}

func (r *keyRegistry) lookup() map[string]int64 {
	out := make(map[string]int64, len(r.keys))
	for nk, key := range r.keys {
		out[nk] = key
	}
	return out
}
