package frame

import (
	"errors"
	"fmt"
	"time"
)

// DefaultSlotCount is the default number of frames in flight.
const DefaultSlotCount = 2

// MaxSlotCount bounds the frames-in-flight configuration; more than three
// slots only adds latency without hiding any additional GPU work.
const MaxSlotCount = 3

// DefaultFenceTimeout is the effectively-infinite fence wait. A wait that
// actually reaches it means the device is lost or the stream deadlocked, and
// that is fatal, never retried.
const DefaultFenceTimeout = 10 * time.Second

// ErrFenceTimeout reports a completion fence that never signaled. Treated as
// device loss by the engine loop.
var ErrFenceTimeout = errors.New("frame: completion fence timed out")

// ErrAdvanceWithoutAcquire reports a Manager.Advance call with no acquired
// slot. This is a frame-lifecycle programming error, not a runtime condition.
var ErrAdvanceWithoutAcquire = errors.New("frame: advance called without an acquired slot")

// Fence is the CPU-visible completion primitive of one slot's GPU submission.
// The Vulkan backend wraps vk.Fence; tests substitute mock fences.
type Fence interface {
	// Wait blocks until the fence signals or the timeout elapses.
	// A timeout returns an error wrapping ErrFenceTimeout.
	Wait(timeout time.Duration) error

	// Reset returns the fence to the unsignaled state for the next submission.
	Reset() error
}

// CommandContext is one slot's command-recording context. Resetting it
// recycles all command memory recorded for the slot's previous frame.
type CommandContext interface {
	Reset() error
}

// Slot is one frame-in-flight: a completion fence, a command context, and
// the per-frame uniform write ring. Its GPU resources are allocated once at
// engine start and only destroyed/recreated on surface resize, never
// mid-frame. At most one recorded command stream is outstanding per slot.
type Slot struct {
	index    int
	fence    Fence
	commands CommandContext
	uniforms *Ring
}

// NewSlot assembles a slot from backend-provisioned resources.
func NewSlot(index int, fence Fence, commands CommandContext, uniforms *Ring) *Slot {
	return &Slot{
		index:    index,
		fence:    fence,
		commands: commands,
		uniforms: uniforms,
	}
}

// Index returns the slot's position in the round-robin ring. Backends use it
// to select per-slot semaphores, buffers, and render-target sets.
func (s *Slot) Index() int {
	return s.index
}

// Uniforms returns the slot's per-frame uniform write ring.
func (s *Slot) Uniforms() *Ring {
	return s.uniforms
}

// Manager owns the frame-in-flight slots and enforces the reuse invariant:
// slot i mod N is never recorded into while its previous submission's fence
// is unsignaled.
type Manager struct {
	slots        []*Slot
	current      int
	acquired     bool
	fenceTimeout time.Duration
}

// ManagerBuilderOption is a functional option for configuring a Manager.
type ManagerBuilderOption func(*Manager)

// WithFenceTimeout overrides the effectively-infinite fence wait used by
// Acquire. Intended for tests; production keeps the default.
//
// Parameters:
//   - timeout: the maximum fence wait
//
// Returns:
//   - ManagerBuilderOption: option function to apply
func WithFenceTimeout(timeout time.Duration) ManagerBuilderOption {
	return func(m *Manager) {
		if timeout > 0 {
			m.fenceTimeout = timeout
		}
	}
}

// NewManager creates a Manager over backend-provisioned slots.
//
// Parameters:
//   - slots: the frame slots, in round-robin order (2 or 3)
//   - options: variadic list of ManagerBuilderOption functions
//
// Returns:
//   - *Manager: the manager, starting at slot 0
//   - error: error if the slot count is out of range
func NewManager(slots []*Slot, options ...ManagerBuilderOption) (*Manager, error) {
	if len(slots) < 1 || len(slots) > MaxSlotCount {
		return nil, fmt.Errorf("frame: slot count must be 1..%d, got %d", MaxSlotCount, len(slots))
	}
	m := &Manager{
		slots:        slots,
		fenceTimeout: DefaultFenceTimeout,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Count returns the number of frames in flight.
func (m *Manager) Count() int {
	return len(m.slots)
}

// Acquire blocks until the current slot's previous submission has completed,
// then resets the fence, the command context, and the uniform ring cursor
// for reuse. A fence timeout is fatal (device lost or deadlock) and is
// propagated, never retried.
//
// Returns:
//   - *Slot: the slot ready for recording
//   - error: a fatal error wrapping ErrFenceTimeout, or a reset failure
func (m *Manager) Acquire() (*Slot, error) {
	if m.acquired {
		return nil, fmt.Errorf("frame: slot %d acquired twice without advance", m.current)
	}
	slot := m.slots[m.current]

	if err := slot.fence.Wait(m.fenceTimeout); err != nil {
		return nil, fmt.Errorf("frame: slot %d: %w", slot.index, err)
	}
	if err := slot.fence.Reset(); err != nil {
		return nil, fmt.Errorf("frame: slot %d fence reset: %w", slot.index, err)
	}
	if err := slot.commands.Reset(); err != nil {
		return nil, fmt.Errorf("frame: slot %d command reset: %w", slot.index, err)
	}
	if slot.uniforms != nil {
		slot.uniforms.Reset()
	}

	m.acquired = true
	return slot, nil
}

// Advance moves the round-robin index to (i+1) mod N. Must be called exactly
// once per completed frame, after presentation is enqueued.
//
// Returns:
//   - error: ErrAdvanceWithoutAcquire when no slot is outstanding
func (m *Manager) Advance() error {
	if !m.acquired {
		return ErrAdvanceWithoutAcquire
	}
	m.acquired = false
	m.current = (m.current + 1) % len(m.slots)
	return nil
}

// Abort releases the acquired slot without advancing, used when frame
// recording stops before submission (e.g. swapchain out-of-date on acquire).
// Acquire already reset the slot's fence, so the caller must re-signal it
// (the backend issues an empty queue submission) before the slot is acquired
// again, or the next Acquire would wait forever.
func (m *Manager) Abort() {
	m.acquired = false
}

// Each visits every slot, e.g. for resize-time resource recreation.
func (m *Manager) Each(fn func(*Slot)) {
	for _, s := range m.slots {
		fn(s)
	}
}
