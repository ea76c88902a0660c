package particle

import (
	"sync"
)

// Pool tracks CPU-side accounting for one frame slot's GPU particle buffer.
// The simulation compute pass owns the particle data itself; the pool only
// tracks how many slots are live so spawn requests never overflow the buffer
// and the draw pass knows its instance count.
//
// One Pool exists per frame slot so the compute pass for frame N never races
// the draw pass still reading frame N-1's count.
type Pool struct {
	mu sync.Mutex

	capacity int
	alive    int

	// expiry is a ring of spawn batches with their remaining lifetime, used
	// to retire counts as particles age out. The GPU pass compacts the real
	// buffer; this mirrors the count only.
	expiry []expiryBatch
}

type expiryBatch struct {
	count     int
	remaining float32
}

// NewPool creates a particle pool with the given GPU buffer capacity.
//
// Parameters:
//   - capacity: the number of particle slots in the GPU buffer
//
// Returns:
//   - *Pool: the new pool
func NewPool(capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultPoolCapacity
	}
	return &Pool{capacity: capacity}
}

// Capacity returns the pool's GPU buffer capacity.
func (p *Pool) Capacity() int {
	return p.capacity
}

// Alive returns the current live particle count.
func (p *Pool) Alive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

// Spawn requests count new particles with the given lifetime. Returns the
// number actually granted, clamped to remaining capacity. Spawns beyond
// capacity are dropped, never wrapped onto live particles.
//
// Parameters:
//   - count: the requested particle count
//   - lifetime: the particles' lifetime in seconds
//
// Returns:
//   - int: the granted count
func (p *Pool) Spawn(count int, lifetime float32) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if count <= 0 || lifetime <= 0 {
		return 0
	}
	free := p.capacity - p.alive
	if count > free {
		count = free
	}
	if count == 0 {
		return 0
	}
	p.alive += count
	p.expiry = append(p.expiry, expiryBatch{count: count, remaining: lifetime})
	return count
}

// Advance ages all live particles by dt, retiring batches whose lifetime has
// elapsed. Mirrors the retirement the GPU simulation pass performs.
//
// Parameters:
//   - dt: elapsed time in seconds
func (p *Pool) Advance(dt float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	live := p.expiry[:0]
	for _, b := range p.expiry {
		b.remaining -= dt
		if b.remaining <= 0 {
			p.alive -= b.count
			continue
		}
		live = append(live, b)
	}
	p.expiry = live
}

// Reset drops all live particles. Used when the pool's GPU buffer is
// recreated after a resize or device loss.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive = 0
	p.expiry = p.expiry[:0]
}
