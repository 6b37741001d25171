package notify

import (
	"slices"
	"sync"
)

// Registry holds listeners for values of type T. The zero value is ready to use.
type Registry[T any] struct {
	mu     sync.Mutex
	nextID uint64
	fns    map[uint64]func(T)
}

// Add registers fn and returns its id plus the listener count after adding.
func (r *Registry[T]) Add(fn func(T)) (uint64, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fns == nil {
		r.fns = make(map[uint64]func(T))
	}
	r.nextID++
	id := r.nextID
	r.fns[id] = fn
	return id, len(r.fns)
}

// Remove drops the listener with id. removed is false when id was already
// gone; remaining is the listener count afterwards.
func (r *Registry[T]) Remove(id uint64) (removed bool, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.fns[id]; !ok {
		return false, len(r.fns)
	}
	delete(r.fns, id)
	return true, len(r.fns)
}

// Len returns the current listener count.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fns)
}

// Emit calls every registered listener with v, in registration order, outside
// the registry lock.
func (r *Registry[T]) Emit(v T) {
	for _, fn := range r.snapshot() {
		fn(v)
	}
}

// Subscribe is Add plus an idempotent remove func.
func (r *Registry[T]) Subscribe(fn func(T)) func() {
	id, _ := r.Add(fn)
	var once sync.Once
	return func() {
		once.Do(func() { r.Remove(id) })
	}
}

func (r *Registry[T]) snapshot() []func(T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.fns) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(r.fns))
	for id := range r.fns {
		ids = append(ids, id)
	}
	// ids are monotonic, so sorting restores registration order.
	slices.Sort(ids)
	out := make([]func(T), 0, len(ids))
	for _, id := range ids {
		out = append(out, r.fns[id])
	}
	return out
}
