package domain

import (
	"strconv"
	"sync"
)

// CollisionResolver assigns a unique physical name to every occurrence of a
// logical filename within one run. Numbering depends on call order, so
// callers must invoke Resolve in a single well-defined traversal order.
type CollisionResolver struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewCollisionResolver creates a resolver with an empty occurrence counter.
func NewCollisionResolver() *CollisionResolver {
	return &CollisionResolver{counts: make(map[string]int)}
}

// Resolve returns the logical name unchanged on its first occurrence and
// "<base> (k).<ext>" on the k-th repeat.
func (r *CollisionResolver) Resolve(logical string) string {
	r.mu.Lock()
	k := r.counts[logical]
	r.counts[logical] = k + 1
	r.mu.Unlock()

	if k == 0 {
		return logical
	}
	base, ext := SplitExt(logical)
	name := base + " (" + strconv.Itoa(k) + ")"
	if ext != "" {
		name += "." + ext
	}
	return name
}

// Seen reports how many times a logical name has been resolved.
func (r *CollisionResolver) Seen(logical string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[logical]
}
