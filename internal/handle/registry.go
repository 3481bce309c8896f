// Package handle provides a generation-checked registry that maps opaque
// integer handles to owned objects.
//
// A Handle packs a slot index and the slot's generation. Removing an object
// bumps the generation of its slot, so handles that outlive their object are
// rejected instead of resolving to whatever reuses the slot.
package handle

import (
	"errors"
	"sync"
)

var (
	// ErrInvalid is returned for the zero handle or an index that was never issued.
	ErrInvalid = errors.New("invalid handle")

	// ErrStale is returned for a handle whose object was already removed.
	ErrStale = errors.New("stale handle")
)

// Handle identifies an object in a Registry. The zero value is never valid.
type Handle uint64

func makeHandle(index, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(index+1))
}

func (h Handle) index() (uint32, bool) {
	lo := uint32(h)
	if lo == 0 {
		return 0, false
	}
	return lo - 1, true
}

func (h Handle) generation() uint32 { return uint32(h >> 32) }

type slot[T any] struct {
	gen   uint32
	live  bool
	value T
}

// Registry owns objects addressed by Handles. It is safe for concurrent use.
type Registry[T any] struct {
	mu    sync.RWMutex
	slots []slot[T]
	free  []uint32
	count int
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Insert stores v and returns its handle.
func (r *Registry[T]) Insert(v T) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot[T]{gen: 1})
		idx = uint32(len(r.slots) - 1)
	}
	s := &r.slots[idx]
	s.live = true
	s.value = v
	r.count++
	return makeHandle(idx, s.gen)
}

// Get resolves h.
func (r *Registry[T]) Get(h Handle) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, err := r.lookup(h)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.value, nil
}

// Remove deletes the object behind h and returns it. Removing twice yields
// ErrStale.
func (r *Registry[T]) Remove(h Handle) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	s, err := r.lookup(h)
	if err != nil {
		return zero, err
	}
	v := s.value
	s.value = zero
	s.live = false
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	idx, _ := h.index()
	r.free = append(r.free, idx)
	r.count--
	return v, nil
}

// Len returns the number of live objects.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Drain removes every live object and returns them.
func (r *Registry[T]) Drain() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []T
	var zero T
	for i := range r.slots {
		s := &r.slots[i]
		if !s.live {
			continue
		}
		out = append(out, s.value)
		s.value = zero
		s.live = false
		s.gen++
		if s.gen == 0 {
			s.gen = 1
		}
		r.free = append(r.free, uint32(i))
	}
	r.count = 0
	return out
}

func (r *Registry[T]) lookup(h Handle) (*slot[T], error) {
	idx, ok := h.index()
	if !ok || int(idx) >= len(r.slots) {
		return nil, ErrInvalid
	}
	s := &r.slots[idx]
	if !s.live || s.gen != h.generation() {
		return nil, ErrStale
	}
	return s, nil
}
