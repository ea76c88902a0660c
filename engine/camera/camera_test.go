package camera

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hucancode/mjolnir/common"
)

func TestNewCameraDefaults(t *testing.T) {
	c := NewCamera()
	assert.InDelta(t, mgl32.DegToRad(45), c.Fov(), 1e-6)
	assert.Equal(t, float32(1), c.Aspect())
	assert.Equal(t, float32(0.1), c.Near())
	assert.Equal(t, float32(100), c.Far())
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, c.Up())
}

func TestCameraFrustumTracksMatrices(t *testing.T) {
	c := NewCamera(
		WithPosition(mgl32.Vec3{0, 0, 10}),
		WithTarget(mgl32.Vec3{0, 0, 0}),
		WithFov(mgl32.DegToRad(60)),
		WithAspect(16.0/9.0),
		WithFar(200),
	)

	inView := common.NewAABB(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})
	require.True(t, c.Frustum().IntersectsAABB(inView))

	behind := common.NewAABB(mgl32.Vec3{-1, -1, 19}, mgl32.Vec3{1, 1, 21})
	assert.False(t, c.Frustum().IntersectsAABB(behind))

	// Turning the camera around flips which box is visible.
	c.SetTarget(mgl32.Vec3{0, 0, 20})
	assert.True(t, c.Frustum().IntersectsAABB(behind))
	assert.False(t, c.Frustum().IntersectsAABB(inView))
}

func TestCameraSetAspectRecomputesProjection(t *testing.T) {
	c := NewCamera(WithPosition(mgl32.Vec3{0, 0, 5}), WithTarget(mgl32.Vec3{}))
	before := c.ProjectionMatrix()
	c.SetAspect(2)
	after := c.ProjectionMatrix()
	assert.NotEqual(t, before, after)
	assert.InDelta(t, before[0]/2, after[0], 1e-6, "x scale halves when aspect doubles")
}

func TestGPUCameraUniform(t *testing.T) {
	c := NewCamera(WithPosition(mgl32.Vec3{1, 2, 3}), WithTarget(mgl32.Vec3{}))
	u := ToGPUCameraUniform(c)
	assert.Equal(t, [3]float32{1, 2, 3}, u.CameraPosition)
	assert.Equal(t, 80, u.Size())

	vp := c.ViewProjectionMatrix()
	assert.Equal(t, vp[0], u.ViewProj[0])
	assert.Len(t, u.Marshal(), 80)
}
