// Package frame owns the N frame-in-flight slots: each slot carries its own
// completion fence, command-recording context, and per-frame uniform write
// ring, so the CPU can record frame i+1 while the GPU still executes frame i.
package frame

import (
	"errors"
	"fmt"
)

// ErrRingFull is returned when a per-frame uniform allocation does not fit.
// Running out of required per-frame memory is fatal for the frame; callers
// propagate it rather than retrying.
var ErrRingFull = errors.New("frame: uniform ring exhausted")

// DefaultRingAlignment matches the common minUniformBufferOffsetAlignment
// limit, so every returned offset is valid for dynamic uniform binding.
const DefaultRingAlignment = 256

// Ring is a bump allocator over one slot's mapped per-frame uniform buffer.
// Allocations are valid until the slot's fence proves the GPU finished the
// frame and the ring is reset for reuse. Not safe for concurrent use; all
// per-frame recording happens on the submission thread.
type Ring struct {
	data   []byte
	cursor int
	align  int
}

// NewRing creates a ring of the given byte capacity. Alignment <= 0 uses
// DefaultRingAlignment.
func NewRing(capacity, alignment int) *Ring {
	if alignment <= 0 {
		alignment = DefaultRingAlignment
	}
	return &Ring{
		data:  make([]byte, capacity),
		align: alignment,
	}
}

// Alloc reserves size bytes and returns the aligned buffer offset plus a
// scratch slice the caller writes uniform data into. The slice aliases the
// ring's backing store, which the backend uploads (or keeps persistently
// mapped) once per frame.
//
// Parameters:
//   - size: byte count to reserve
//
// Returns:
//   - int: the aligned offset into the per-frame buffer
//   - []byte: a size-length slice to write into
//   - error: ErrRingFull if the reservation does not fit
func (r *Ring) Alloc(size int) (int, []byte, error) {
	offset := (r.cursor + r.align - 1) / r.align * r.align
	if offset+size > len(r.data) {
		return 0, nil, fmt.Errorf("%w: need %d bytes at offset %d, capacity %d", ErrRingFull, size, offset, len(r.data))
	}
	r.cursor = offset + size
	return offset, r.data[offset : offset+size], nil
}

// Reset rewinds the write cursor. Called by Manager.Acquire once the slot's
// fence proves the GPU no longer reads the previous frame's contents.
func (r *Ring) Reset() {
	r.cursor = 0
}

// Used returns the number of bytes consumed this frame, including alignment
// padding.
func (r *Ring) Used() int {
	return r.cursor
}

// Capacity returns the total byte capacity.
func (r *Ring) Capacity() int {
	return len(r.data)
}

// Bytes exposes the backing store for the backend's once-per-frame upload.
func (r *Ring) Bytes() []byte {
	return r.data
}
