package frame

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockFence simulates a GPU completion fence. It starts signaled, matching
// the backend's create-signaled convention for first-frame acquisition.
type mockFence struct {
	mu       sync.Mutex
	cond     *sync.Cond
	signaled bool

	waits  int
	resets int
}

func newMockFence() *mockFence {
	f := &mockFence{signaled: true}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *mockFence) Wait(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits++
	for !f.signaled {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w after %v", ErrFenceTimeout, timeout)
		}
		// Poll under timeout; good enough for tests.
		f.mu.Unlock()
		time.Sleep(time.Millisecond)
		f.mu.Lock()
	}
	return nil
}

func (f *mockFence) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signaled = false
	f.resets++
	return nil
}

// Signal marks GPU completion of the slot's submission.
func (f *mockFence) Signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signaled = true
	f.cond.Broadcast()
}

func (f *mockFence) isSignaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}

type mockCommands struct {
	resets int
}

func (c *mockCommands) Reset() error {
	c.resets++
	return nil
}

func newTestManager(t *testing.T, n int, opts ...ManagerBuilderOption) (*Manager, []*mockFence, []*mockCommands) {
	t.Helper()
	fences := make([]*mockFence, n)
	cmds := make([]*mockCommands, n)
	slots := make([]*Slot, n)
	for i := 0; i < n; i++ {
		fences[i] = newMockFence()
		cmds[i] = &mockCommands{}
		slots[i] = NewSlot(i, fences[i], cmds[i], NewRing(1024, 0))
	}
	m, err := NewManager(slots, opts...)
	require.NoError(t, err)
	return m, fences, cmds
}

func TestAcquireResetsSlotState(t *testing.T) {
	m, fences, cmds := newTestManager(t, 2)

	slot, err := m.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 0, slot.Index())
	assert.Equal(t, 1, fences[0].resets)
	assert.Equal(t, 1, cmds[0].resets)

	// The ring cursor rewinds on acquire.
	_, _, err = slot.Uniforms().Alloc(256)
	require.NoError(t, err)
	assert.NotZero(t, slot.Uniforms().Used())
	fences[0].Signal()
	require.NoError(t, m.Advance())
	fences[1].Signal()
	_, err = m.Acquire()
	require.NoError(t, err)
	require.NoError(t, m.Advance())
	slot, err = m.Acquire()
	require.NoError(t, err)
	assert.Zero(t, slot.Uniforms().Used())
}

func TestAdvanceRoundRobin(t *testing.T) {
	m, fences, _ := newTestManager(t, 3)

	for i := 0; i < 7; i++ {
		slot, err := m.Acquire()
		require.NoError(t, err)
		assert.Equal(t, i%3, slot.Index())
		fences[slot.Index()].Signal()
		require.NoError(t, m.Advance())
	}
}

func TestAdvanceWithoutAcquireFails(t *testing.T) {
	m, _, _ := newTestManager(t, 2)
	assert.ErrorIs(t, m.Advance(), ErrAdvanceWithoutAcquire)
}

func TestDoubleAcquireFails(t *testing.T) {
	m, _, _ := newTestManager(t, 2)
	_, err := m.Acquire()
	require.NoError(t, err)
	_, err = m.Acquire()
	assert.Error(t, err)
}

func TestFenceTimeoutIsFatal(t *testing.T) {
	m, _, _ := newTestManager(t, 2, WithFenceTimeout(10*time.Millisecond))

	_, err := m.Acquire()
	require.NoError(t, err)
	require.NoError(t, m.Advance())

	// Neither slot's submission ever completes; wrap around so the second
	// acquire of slot 0 blocks on its still-unsignaled fence.
	_, err = m.Acquire()
	require.NoError(t, err)
	require.NoError(t, m.Advance())

	_, err = m.Acquire()
	assert.ErrorIs(t, err, ErrFenceTimeout)
}

// TestSlotExclusivityUnderPressure submits frames faster than the simulated
// GPU completes them and verifies a slot is never handed out while its
// previous submission's fence is unsignaled.
func TestSlotExclusivityUnderPressure(t *testing.T) {
	const slots = 2
	const frames = 200

	m, fences, _ := newTestManager(t, slots)

	// Simulated GPU: completes submissions with a small delay, in order.
	pending := make(chan int, frames)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for idx := range pending {
			time.Sleep(100 * time.Microsecond)
			fences[idx].Signal()
		}
	}()

	for i := 0; i < frames; i++ {
		slot, err := m.Acquire()
		require.NoError(t, err)

		// The contract: acquisition implies the previous submission retired.
		// After Acquire the fence must be in the reset (unsignaled) state and
		// the wait count must equal the acquisition count for this slot.
		require.False(t, fences[slot.Index()].isSignaled(),
			"slot %d handed out with stale signaled fence", slot.Index())

		pending <- slot.Index()
		require.NoError(t, m.Advance())
	}
	close(pending)
	<-done

	for i, f := range fences {
		assert.Equal(t, f.waits, f.resets, "slot %d wait/reset pairing", i)
	}
}

func TestNewManagerValidatesSlotCount(t *testing.T) {
	_, err := NewManager(nil)
	assert.Error(t, err)

	slots := make([]*Slot, MaxSlotCount+1)
	for i := range slots {
		slots[i] = NewSlot(i, newMockFence(), &mockCommands{}, nil)
	}
	_, err = NewManager(slots)
	assert.Error(t, err)
}

func TestRingAlignmentAndExhaustion(t *testing.T) {
	r := NewRing(1024, 0)

	off, buf, err := r.Alloc(16)
	require.NoError(t, err)
	assert.Equal(t, 0, off)
	assert.Len(t, buf, 16)

	// Next allocation lands on the alignment boundary, not at byte 16.
	off, _, err = r.Alloc(16)
	require.NoError(t, err)
	assert.Equal(t, DefaultRingAlignment, off)

	// Exhaustion is an error, not a wraparound: the GPU may still read the
	// earlier bytes this frame.
	_, _, err = r.Alloc(1024)
	assert.ErrorIs(t, err, ErrRingFull)

	r.Reset()
	off, _, err = r.Alloc(32)
	require.NoError(t, err)
	assert.Equal(t, 0, off)
}
