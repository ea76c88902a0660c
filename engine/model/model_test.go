package model

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGPUVertexMarshalLayout(t *testing.T) {
	v := GPUVertex{
		Position: [3]float32{1, 2, 3},
		Normal:   [3]float32{0, 1, 0},
		TexCoord: [2]float32{0.5, 0.25},
		Color:    [4]float32{1, 0, 0, 1},
		Tangent:  [4]float32{0, 0, 1, -1},
	}
	buf := v.Marshal()
	require.Len(t, buf, 64)
	assert.Equal(t, 64, v.Size())

	at := func(offset int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(buf[offset:]))
	}
	assert.Equal(t, float32(1), at(0))
	assert.Equal(t, float32(3), at(8))
	assert.Equal(t, float32(1), at(16))
	assert.Equal(t, float32(0.25), at(28))
	assert.Equal(t, float32(1), at(32))
	assert.Equal(t, float32(-1), at(60))
}

func TestMarshalVerticesAndIndices(t *testing.T) {
	vertices := []GPUVertex{{}, {}, {}}
	assert.Len(t, MarshalVertices(vertices), 3*64)

	buf := MarshalIndices([]uint32{0, 1, 2})
	require.Len(t, buf, 12)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(buf[8:]))
}

func TestComputeBounds(t *testing.T) {
	assert.Equal(t, mgl32.Vec3{}, ComputeBounds(nil).Min)

	vertices := []GPUVertex{
		{Position: [3]float32{-1, 5, 0}},
		{Position: [3]float32{2, -3, 1}},
		{Position: [3]float32{0, 0, -4}},
	}
	b := ComputeBounds(vertices)
	assert.Equal(t, mgl32.Vec3{-1, -3, -4}, b.Min)
	assert.Equal(t, mgl32.Vec3{2, 5, 1}, b.Max)
}

func TestNewMeshComputesBoundsAndSerializes(t *testing.T) {
	m := NewMesh(
		WithName("tri"),
		WithVertices([]GPUVertex{
			{Position: [3]float32{0, 0, 0}},
			{Position: [3]float32{1, 0, 0}},
			{Position: [3]float32{0, 1, 0}},
		}),
		WithIndices([]uint32{0, 1, 2}),
	)
	assert.Equal(t, "tri", m.Name())
	assert.Equal(t, 3, m.IndexCount())
	assert.Len(t, m.VertexData(), 3*64)
	assert.Len(t, m.IndexData(), 12)
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, m.Bounds().Max)
}

func assertValidTopology(t *testing.T, m Mesh) {
	t.Helper()
	indices := m.Indices()
	require.NotEmpty(t, indices)
	require.Zero(t, len(indices)%3)
	for _, idx := range indices {
		assert.Less(t, int(idx), len(m.Vertices()))
	}
}

func TestPrimitives(t *testing.T) {
	cube := NewCube(2)
	assertValidTopology(t, cube)
	assert.Len(t, cube.Vertices(), 24)
	assert.Equal(t, 36, cube.IndexCount())
	assert.Equal(t, mgl32.Vec3{-1, -1, -1}, cube.Bounds().Min)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, cube.Bounds().Max)

	plane := NewPlane(4)
	assertValidTopology(t, plane)
	assert.Equal(t, mgl32.Vec3{2, 0, 2}, plane.Bounds().Max)

	sphere := NewUVSphere(1, 8, 16)
	assertValidTopology(t, sphere)
	for _, v := range sphere.Vertices() {
		r := math.Sqrt(float64(v.Position[0]*v.Position[0] + v.Position[1]*v.Position[1] + v.Position[2]*v.Position[2]))
		assert.InDelta(t, 1.0, r, 1e-5)
	}
}
