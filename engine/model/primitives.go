package model

import "math"

// NewCube creates an axis-aligned cube mesh centered at the origin.
// Each face has its own four vertices so normals and tangents stay flat.
//
// Parameters:
//   - size: full edge length
//
// Returns:
//   - Mesh: cube with 24 vertices and 36 indices
func NewCube(size float32) Mesh {
	h := size / 2
	faces := []struct {
		normal  [3]float32
		tangent [3]float32
		corners [4][3]float32
	}{
		{[3]float32{0, 0, 1}, [3]float32{1, 0, 0}, [4][3]float32{{-h, -h, h}, {h, -h, h}, {h, h, h}, {-h, h, h}}},
		{[3]float32{0, 0, -1}, [3]float32{-1, 0, 0}, [4][3]float32{{h, -h, -h}, {-h, -h, -h}, {-h, h, -h}, {h, h, -h}}},
		{[3]float32{1, 0, 0}, [3]float32{0, 0, -1}, [4][3]float32{{h, -h, h}, {h, -h, -h}, {h, h, -h}, {h, h, h}}},
		{[3]float32{-1, 0, 0}, [3]float32{0, 0, 1}, [4][3]float32{{-h, -h, -h}, {-h, -h, h}, {-h, h, h}, {-h, h, -h}}},
		{[3]float32{0, 1, 0}, [3]float32{1, 0, 0}, [4][3]float32{{-h, h, h}, {h, h, h}, {h, h, -h}, {-h, h, -h}}},
		{[3]float32{0, -1, 0}, [3]float32{1, 0, 0}, [4][3]float32{{-h, -h, -h}, {h, -h, -h}, {h, -h, h}, {-h, -h, h}}},
	}
	uvs := [4][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

	vertices := make([]GPUVertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(vertices))
		for i, c := range f.corners {
			vertices = append(vertices, GPUVertex{
				Position: c,
				Normal:   f.normal,
				TexCoord: uvs[i],
				Color:    [4]float32{1, 1, 1, 1},
				Tangent:  [4]float32{f.tangent[0], f.tangent[1], f.tangent[2], 1},
			})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return NewMesh(WithName("cube"), WithVertices(vertices), WithIndices(indices))
}

// NewPlane creates a flat quad in the XZ plane facing +Y, centered at the origin.
//
// Parameters:
//   - size: full edge length
//
// Returns:
//   - Mesh: plane with 4 vertices and 6 indices
func NewPlane(size float32) Mesh {
	h := size / 2
	vertices := []GPUVertex{
		{Position: [3]float32{-h, 0, h}, Normal: [3]float32{0, 1, 0}, TexCoord: [2]float32{0, 1}, Color: [4]float32{1, 1, 1, 1}, Tangent: [4]float32{1, 0, 0, 1}},
		{Position: [3]float32{h, 0, h}, Normal: [3]float32{0, 1, 0}, TexCoord: [2]float32{1, 1}, Color: [4]float32{1, 1, 1, 1}, Tangent: [4]float32{1, 0, 0, 1}},
		{Position: [3]float32{h, 0, -h}, Normal: [3]float32{0, 1, 0}, TexCoord: [2]float32{1, 0}, Color: [4]float32{1, 1, 1, 1}, Tangent: [4]float32{1, 0, 0, 1}},
		{Position: [3]float32{-h, 0, -h}, Normal: [3]float32{0, 1, 0}, TexCoord: [2]float32{0, 0}, Color: [4]float32{1, 1, 1, 1}, Tangent: [4]float32{1, 0, 0, 1}},
	}
	indices := []uint32{0, 1, 2, 0, 2, 3}
	return NewMesh(WithName("plane"), WithVertices(vertices), WithIndices(indices))
}

// NewUVSphere creates a latitude/longitude sphere centered at the origin.
//
// Parameters:
//   - radius: sphere radius
//   - rings: number of latitude bands (minimum 3)
//   - segments: number of longitude bands (minimum 3)
//
// Returns:
//   - Mesh: sphere with (rings+1)*(segments+1) vertices
func NewUVSphere(radius float32, rings, segments int) Mesh {
	if rings < 3 {
		rings = 3
	}
	if segments < 3 {
		segments = 3
	}
	vertices := make([]GPUVertex, 0, (rings+1)*(segments+1))
	for r := 0; r <= rings; r++ {
		phi := math.Pi * float64(r) / float64(rings)
		y := float32(math.Cos(phi))
		ringRadius := float32(math.Sin(phi))
		for s := 0; s <= segments; s++ {
			theta := 2 * math.Pi * float64(s) / float64(segments)
			x := ringRadius * float32(math.Cos(theta))
			z := ringRadius * float32(math.Sin(theta))
			// tangent points along increasing longitude
			tx := float32(-math.Sin(theta))
			tz := float32(math.Cos(theta))
			vertices = append(vertices, GPUVertex{
				Position: [3]float32{x * radius, y * radius, z * radius},
				Normal:   [3]float32{x, y, z},
				TexCoord: [2]float32{float32(s) / float32(segments), float32(r) / float32(rings)},
				Color:    [4]float32{1, 1, 1, 1},
				Tangent:  [4]float32{tx, 0, tz, 1},
			})
		}
	}
	indices := make([]uint32, 0, rings*segments*6)
	stride := uint32(segments + 1)
	for r := 0; r < rings; r++ {
		for s := 0; s < segments; s++ {
			a := uint32(r)*stride + uint32(s)
			b := a + stride
			indices = append(indices, a, b, a+1, a+1, b, b+1)
		}
	}
	return NewMesh(WithName("sphere"), WithVertices(vertices), WithIndices(indices))
}
