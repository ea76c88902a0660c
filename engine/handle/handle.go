// Package handle provides a generation-tagged slot table for GPU-resident
// resources. Handles remain stable while the underlying slot storage grows or
// is recycled, and a freed-then-reused slot never resolves through a stale
// handle because the generation counter no longer matches.
package handle

// Handle identifies one live entry in a Table. The zero Handle is never valid.
type Handle struct {
	// Index is the slot position inside the table.
	Index uint32

	// Generation is incremented every time the slot is freed, invalidating
	// all handles issued for previous occupants.
	Generation uint32
}

// Nil is the zero handle, used to mark unset references.
var Nil = Handle{}

// Valid reports whether the handle has ever been issued by a table.
// It does not check liveness; use Table.Get for that.
func (h Handle) Valid() bool {
	return h.Generation != 0
}

type slot[T any] struct {
	value      T
	generation uint32
	live       bool
}

// Table is a generation-tagged slot allocator. The zero value is ready to use.
// Table is not safe for concurrent use; callers synchronize externally.
type Table[T any] struct {
	slots []slot[T]
	free  []uint32
	live  int
}

// Alloc stores a value and returns a stable handle to it.
// Freed slots are reused in LIFO order with a bumped generation.
//
// Parameters:
//   - value: the value to store
//
// Returns:
//   - Handle: a handle that resolves to the stored value until Free is called
func (t *Table[T]) Alloc(value T) Handle {
	t.live++
	if n := len(t.free); n > 0 {
		idx := t.free[n-1]
		t.free = t.free[:n-1]
		s := &t.slots[idx]
		s.value = value
		s.live = true
		return Handle{Index: idx, Generation: s.generation}
	}
	t.slots = append(t.slots, slot[T]{value: value, generation: 1, live: true})
	return Handle{Index: uint32(len(t.slots) - 1), Generation: 1}
}

// Get resolves a handle to a pointer at the stored value.
// Stale handles (freed or outlived by a new occupant) resolve to (nil, false).
//
// Parameters:
//   - h: the handle to resolve
//
// Returns:
//   - *T: pointer to the stored value, or nil
//   - bool: true if the handle is live
func (t *Table[T]) Get(h Handle) (*T, bool) {
	if int(h.Index) >= len(t.slots) {
		return nil, false
	}
	s := &t.slots[h.Index]
	if !s.live || s.generation != h.Generation {
		return nil, false
	}
	return &s.value, true
}

// Free releases the slot referenced by the handle, bumping its generation so
// outstanding copies of the handle go stale. Freeing an already-stale handle
// is a no-op.
//
// Parameters:
//   - h: the handle to release
//
// Returns:
//   - bool: true if a live entry was freed
func (t *Table[T]) Free(h Handle) bool {
	if int(h.Index) >= len(t.slots) {
		return false
	}
	s := &t.slots[h.Index]
	if !s.live || s.generation != h.Generation {
		return false
	}
	var zero T
	s.value = zero
	s.live = false
	s.generation++
	t.free = append(t.free, h.Index)
	t.live--
	return true
}

// Live returns the number of live entries. Used by resize and shutdown
// accounting to detect leaked GPU resources.
func (t *Table[T]) Live() int {
	return t.live
}

// Each calls fn for every live entry. The table must not be mutated during
// iteration.
func (t *Table[T]) Each(fn func(Handle, *T)) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.live {
			fn(Handle{Index: uint32(i), Generation: s.generation}, &s.value)
		}
	}
}
