package light

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hucancode/mjolnir/common"
	"github.com/hucancode/mjolnir/engine/handle"
)

func TestViewSlotInjectiveOverFullGrid(t *testing.T) {
	seen := make(map[int]struct{}, MaxShadowMaps*CubeFaces)
	for lightIndex := 0; lightIndex < MaxShadowMaps; lightIndex++ {
		for face := 0; face < CubeFaces; face++ {
			slot, err := ViewSlot(lightIndex, face)
			require.NoError(t, err)
			assert.NotEqual(t, MainCameraSlot, slot, "light slots must not collide with the main camera")
			assert.GreaterOrEqual(t, slot, 1)
			assert.Less(t, slot, ViewSlotCount)
			_, dup := seen[slot]
			assert.False(t, dup, "slot %d assigned twice (light %d face %d)", slot, lightIndex, face)
			seen[slot] = struct{}{}
		}
	}
	// Every slot above the camera slot is reachable.
	assert.Len(t, seen, ViewSlotCount-1)
}

func TestViewSlotRejectsOutOfRange(t *testing.T) {
	cases := []struct{ light, face int }{
		{-1, 0},
		{MaxShadowMaps, 0},
		{0, -1},
		{0, CubeFaces},
	}
	for _, tc := range cases {
		_, err := ViewSlot(tc.light, tc.face)
		assert.Error(t, err, "light=%d face=%d", tc.light, tc.face)
	}
}

func TestBuildRecordPointLightCubeFaces(t *testing.T) {
	pos := mgl32.Vec3{3, 2, -5}
	l := NewLight(LightTypePoint, WithPosition(pos), WithRange(25), WithShadows())
	rec := BuildRecord(l, 0, handle.Handle{Index: 1, Generation: 1}, mgl32.Vec3{})

	require.Equal(t, CubeFaces, rec.ViewCount)
	assert.True(t, rec.CastsShadows())

	// A probe straight down each face axis lies inside exactly that face's
	// frustum. Probes on the 45 degree diagonals are ambiguous, so stay on
	// the axes.
	probes := [CubeFaces]mgl32.Vec3{
		pos.Add(mgl32.Vec3{10, 0, 0}),
		pos.Add(mgl32.Vec3{-10, 0, 0}),
		pos.Add(mgl32.Vec3{0, 10, 0}),
		pos.Add(mgl32.Vec3{0, -10, 0}),
		pos.Add(mgl32.Vec3{0, 0, 10}),
		pos.Add(mgl32.Vec3{0, 0, -10}),
	}
	for face := 0; face < CubeFaces; face++ {
		frustum := common.FrustumFromMatrix(rec.Views[face])
		for probeFace, probe := range probes {
			box := common.NewAABB(probe.Sub(mgl32.Vec3{0.1, 0.1, 0.1}), probe.Add(mgl32.Vec3{0.1, 0.1, 0.1}))
			inside := frustum.IntersectsAABB(box)
			if probeFace == face {
				assert.True(t, inside, "face %d should see its own axis probe", face)
			} else {
				assert.False(t, inside, "face %d should not see face %d's probe", face, probeFace)
			}
		}
	}
}

func TestBuildRecordSpotConeCoverage(t *testing.T) {
	l := NewLight(LightTypeSpot,
		WithPosition(mgl32.Vec3{0, 5, 0}),
		WithDirection(mgl32.Vec3{0, -1, 0}),
		WithSpotCone(20, 30),
		WithRange(50),
		WithShadows(),
	)
	rec := BuildRecord(l, 1, handle.Handle{Index: 2, Generation: 1}, mgl32.Vec3{})
	require.Equal(t, 1, rec.ViewCount)

	frustum := common.FrustumFromMatrix(rec.Views[0])

	onAxis := common.NewAABB(mgl32.Vec3{-0.1, -0.1, -0.1}, mgl32.Vec3{0.1, 0.1, 0.1})
	assert.True(t, frustum.IntersectsAABB(onAxis), "point on the cone axis is lit")

	behind := common.NewAABB(mgl32.Vec3{-0.1, 9.9, -0.1}, mgl32.Vec3{0.1, 10.1, 0.1})
	assert.False(t, frustum.IntersectsAABB(behind), "point behind the light is not lit")

	// 45 degrees off-axis, well outside the 30 degree outer cone.
	offAxis := common.NewAABB(mgl32.Vec3{4.9, -0.1, -0.1}, mgl32.Vec3{5.1, 0.1, 0.1})
	assert.False(t, frustum.IntersectsAABB(offAxis))
}

func TestBuildRecordDirectionalCentersOnFocus(t *testing.T) {
	focus := mgl32.Vec3{10, 0, -20}
	l := NewLight(LightTypeDirectional, WithDirection(mgl32.Vec3{0, -1, 0.2}), WithShadows())
	rec := BuildRecord(l, 2, handle.Handle{Index: 3, Generation: 1}, focus)
	require.Equal(t, 1, rec.ViewCount)

	frustum := common.FrustumFromMatrix(rec.Views[0])
	aroundFocus := common.NewAABB(focus.Sub(mgl32.Vec3{1, 1, 1}), focus.Add(mgl32.Vec3{1, 1, 1}))
	assert.True(t, frustum.IntersectsAABB(aroundFocus))

	farAway := focus.Add(mgl32.Vec3{DefaultShadowHalfExtent * 4, 0, 0})
	outside := common.NewAABB(farAway.Sub(mgl32.Vec3{1, 1, 1}), farAway.Add(mgl32.Vec3{1, 1, 1}))
	assert.False(t, frustum.IntersectsAABB(outside))
}

func TestBuildRecordUnshadowedLight(t *testing.T) {
	l := NewLight(LightTypePoint, WithPosition(mgl32.Vec3{1, 1, 1}), WithRange(10))
	rec := BuildRecord(l, -1, handle.Nil, mgl32.Vec3{})
	assert.False(t, rec.CastsShadows())
	assert.Equal(t, handle.Nil, rec.ShadowMap)
	// Views are still derived so the culling stage can use them.
	assert.Equal(t, CubeFaces, rec.ViewCount)
}

func TestGPUStructSizes(t *testing.T) {
	assert.Equal(t, 64, (&GPULight{}).Size())
	assert.Equal(t, 16, (&GPULightHeader{}).Size())
	assert.Equal(t, 96, (&GPUViewUniform{}).Size())
	assert.GreaterOrEqual(t, GPUViewUniformStride, (&GPUViewUniform{}).Size())
}

func TestToGPULightShadowSlot(t *testing.T) {
	shadowed := NewLight(LightTypeSpot, WithShadows())
	gpu := ToGPULight(shadowed, 2)
	assert.Equal(t, uint32(1), gpu.CastsShadows)
	assert.Equal(t, uint32(3), gpu.ShadowSlot, "slot is 1 + shadow index")

	overBudget := ToGPULight(shadowed, -1)
	assert.Equal(t, uint32(0), overBudget.CastsShadows, "budget exhaustion overrides the flag")
	assert.Equal(t, uint32(0), overBudget.ShadowSlot)

	plain := NewLight(LightTypePoint)
	assert.Equal(t, uint32(0), ToGPULight(plain, 0).CastsShadows)
}

func TestMarshalLightBufferSkipsDisabled(t *testing.T) {
	a := NewLight(LightTypeDirectional, WithIntensity(2))
	b := NewLight(LightTypePoint, WithPosition(mgl32.Vec3{7, 0, 0}), WithRange(12))
	b.SetEnabled(false)
	c := NewLight(LightTypeSpot, WithIntensity(5), WithShadows())

	records := []Record{
		{Source: a, ShadowIndex: -1},
		{Source: b, ShadowIndex: -1},
		{Source: c, ShadowIndex: 0},
	}
	buf := MarshalLightBuffer(records, mgl32.Vec3{0.1, 0.2, 0.3})

	headerSize := (&GPULightHeader{}).Size()
	lightSize := (&GPULight{}).Size()
	require.Equal(t, headerSize+2*lightSize, len(buf))

	count := binary.LittleEndian.Uint32(buf[12:16])
	assert.Equal(t, uint32(2), count)

	ambientR := math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4]))
	assert.InDelta(t, 0.1, ambientR, 1e-6)

	// The second marshaled light is the spot light with shadow slot 1.
	second := buf[headerSize+lightSize : headerSize+2*lightSize]
	assert.Equal(t, uint32(LightTypeSpot), binary.LittleEndian.Uint32(second[12:16]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(second[56:60]))
}

func TestGPUViewUniformMarshal(t *testing.T) {
	viewProj := mgl32.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 100)
	u := ToGPUViewUniform(viewProj, mgl32.Vec3{1, 2, 3}, 100, ShadowMapResolution)

	assert.InDelta(t, 1.0/ShadowMapResolution, u.TexelSize[0], 1e-9)
	assert.Equal(t, DefaultShadowBias, u.Bias)

	buf := u.Marshal()
	require.Len(t, buf, 96)
	m00 := math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4]))
	assert.InDelta(t, viewProj[0], m00, 1e-6)
	far := math.Float32frombits(binary.LittleEndian.Uint32(buf[76:80]))
	assert.InDelta(t, 100, far, 1e-6)
}
