package inflight

import "sync"

// Registry tracks operations currently in flight by an explicit identity
// key, so duplicate concurrent invocations collapse instead of running
// twice. Keys are chosen by the caller, e.g. "submit:tpl-3:10.0.0.9".
type Registry struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{keys: map[string]struct{}{}}
}

// Begin claims the key. It returns false when an operation with the same
// identity is already running; the caller should refuse the duplicate.
func (r *Registry) Begin(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.keys[key]; busy {
		return false
	}
	r.keys[key] = struct{}{}
	return true
}

// Done releases the key. Releasing an unclaimed key is a no-op.
func (r *Registry) Done(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.keys, key)
}

func (r *Registry) IsInFlight(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, busy := r.keys[key]
	return busy
}
