package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hucancode/mjolnir/engine/handle"
	"github.com/hucancode/mjolnir/engine/light"
)

// countingFactory allocates handles from a real table so the tests can
// account for live images the same way the renderer's shutdown check does.
type countingFactory struct {
	images  handle.Table[string]
	created int
}

func (f *countingFactory) alloc(kind string) (handle.Handle, error) {
	f.created++
	return f.images.Alloc(kind), nil
}

func (f *countingFactory) CreateColorTarget(w, h int) (handle.Handle, error) {
	return f.alloc("color")
}

func (f *countingFactory) CreateDepthTarget(w, h int) (handle.Handle, error) {
	return f.alloc("depth")
}

func (f *countingFactory) CreateShadowMap(res int) (handle.Handle, error) {
	return f.alloc("shadow2d")
}

func (f *countingFactory) CreateShadowCube(res int) (handle.Handle, error) {
	return f.alloc("shadowcube")
}

func (f *countingFactory) DestroyTarget(h handle.Handle) {
	f.images.Free(h)
}

type countingInvalidator struct{ resets int }

func (c *countingInvalidator) Reset() { c.resets++ }

func TestNewManagerAllocatesShadowTargets(t *testing.T) {
	f := &countingFactory{}
	m, err := NewManager(f, 2)
	require.NoError(t, err)

	// 2 slots x MaxShadowMaps x (2D + cube).
	assert.Equal(t, 2*light.MaxShadowMaps*2, f.images.Live())

	w, h := m.Extent()
	assert.Zero(t, w)
	assert.Zero(t, h)
}

func TestResizeCreatesSizedTargets(t *testing.T) {
	f := &countingFactory{}
	m, err := NewManager(f, 2)
	require.NoError(t, err)
	shadowCount := f.images.Live()

	require.NoError(t, m.Resize(1280, 720))

	// Per slot: 5 G-buffer channels + depth + final + ping.
	sized := 2 * (int(ChannelCount) + 3)
	assert.Equal(t, shadowCount+sized, f.images.Live())

	set := m.Set(0)
	for c := Channel(0); c < ChannelCount; c++ {
		_, ok := f.images.Get(set.GBuffer[c])
		assert.True(t, ok, "channel %s live", c)
	}
	_, ok := f.images.Get(set.Depth)
	assert.True(t, ok)
}

func TestResizeIsIdempotentForSameExtent(t *testing.T) {
	f := &countingFactory{}
	inv := &countingInvalidator{}
	m, err := NewManager(f, 3, WithInvalidator(inv))
	require.NoError(t, err)

	require.NoError(t, m.Resize(800, 600))
	created := f.created
	live := f.images.Live()
	resets := inv.resets

	require.NoError(t, m.Resize(800, 600))
	assert.Equal(t, created, f.created, "same extent allocates nothing")
	assert.Equal(t, live, f.images.Live())
	assert.Equal(t, resets, inv.resets, "tracker untouched on no-op resize")
}

func TestResizeRecreatesWithoutLeaks(t *testing.T) {
	f := &countingFactory{}
	inv := &countingInvalidator{}
	m, err := NewManager(f, 2, WithInvalidator(inv))
	require.NoError(t, err)

	require.NoError(t, m.Resize(800, 600))
	live := f.images.Live()
	oldDepth := m.Set(0).Depth

	for _, extent := range [][2]int{{1024, 768}, {1920, 1080}, {640, 480}} {
		require.NoError(t, m.Resize(extent[0], extent[1]))
		assert.Equal(t, live, f.images.Live(), "live count stable across resizes")
	}
	assert.Equal(t, 3, inv.resets, "tracker reset once per recreate")

	_, ok := f.images.Get(oldDepth)
	assert.False(t, ok, "pre-resize handles are stale")
}

func TestResizeRejectsInvalidExtent(t *testing.T) {
	f := &countingFactory{}
	m, err := NewManager(f, 1)
	require.NoError(t, err)
	assert.Error(t, m.Resize(0, 600))
	assert.Error(t, m.Resize(800, -1))
}

func TestDestroyReleasesEverything(t *testing.T) {
	f := &countingFactory{}
	m, err := NewManager(f, 2)
	require.NoError(t, err)
	require.NoError(t, m.Resize(800, 600))

	m.Destroy()
	assert.Equal(t, 0, f.images.Live())
}
