package pass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, s *Sequencer, k Kind) {
	t.Helper()
	require.NoError(t, s.Begin(k), "begin %v", k)
	require.NoError(t, s.End(k), "end %v", k)
}

func TestFullFrameOrder(t *testing.T) {
	s := NewSequencer()

	run(t, s, Culling)
	// One spot light plus one point light: 1 + 6 shadow sub-passes.
	for i := 0; i < 7; i++ {
		run(t, s, Shadow)
	}
	run(t, s, DepthPrepass)
	run(t, s, GBuffer)
	run(t, s, Ambient)
	run(t, s, Lighting)
	run(t, s, Particles)
	run(t, s, Transparent)
	run(t, s, PostProcess)
	run(t, s, UI)
	run(t, s, Present)

	assert.Equal(t, Idle, s.Current(), "present returns the machine to idle")
}

func TestZeroShadowFrameSkipsShadowPasses(t *testing.T) {
	s := NewSequencer()
	run(t, s, Culling)
	assert.NoError(t, s.Begin(DepthPrepass))
}

func TestOutOfOrderRejected(t *testing.T) {
	s := NewSequencer()

	assert.ErrorIs(t, s.Begin(GBuffer), ErrOutOfOrder, "frame must start with culling")

	run(t, s, Culling)
	run(t, s, DepthPrepass)
	assert.ErrorIs(t, s.Begin(Lighting), ErrOutOfOrder, "lighting cannot precede the G-buffer fill")
	assert.ErrorIs(t, s.Begin(Shadow), ErrOutOfOrder, "shadow passes come before the depth pre-pass")
}

func TestNestedBeginRejected(t *testing.T) {
	s := NewSequencer()
	require.NoError(t, s.Begin(Culling))
	assert.ErrorIs(t, s.Begin(Shadow), ErrOutOfOrder)
}

func TestMismatchedEndRejected(t *testing.T) {
	s := NewSequencer()
	require.NoError(t, s.Begin(Culling))
	assert.ErrorIs(t, s.End(GBuffer), ErrOutOfOrder)
	assert.ErrorIs(t, NewSequencer().End(Culling), ErrOutOfOrder)
}

func TestValidationPanics(t *testing.T) {
	s := NewSequencer(WithValidation())
	assert.Panics(t, func() { _ = s.Begin(Present) })
}

func TestResetAbandonsFrame(t *testing.T) {
	s := NewSequencer()
	run(t, s, Culling)
	require.NoError(t, s.Begin(Shadow))

	s.Reset()
	assert.Equal(t, Idle, s.Current())
	assert.False(t, s.InPass())
	assert.NoError(t, s.Begin(Culling), "a fresh frame may begin after reset")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "GBuffer", GBuffer.String())
	assert.Equal(t, "Kind(99)", Kind(99).String())
}
