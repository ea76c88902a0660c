package model

import (
	"github.com/hucancode/mjolnir/common"
)

// mesh implements the Mesh interface.
type mesh struct {
	name     string      // human-readable identifier for logs
	vertices []GPUVertex // model-space vertex data
	indices  []uint32    // triangle indices into vertices
	bounds   common.AABB // model-space bounding box, computed at build time
}

// Mesh is an immutable CPU-side mesh: vertex and index data plus the
// model-space bounds used for visibility culling. Upload it with the
// renderer's CreateMesh using VertexData, IndexData, and IndexCount.
type Mesh interface {
	// Name returns the mesh's human-readable identifier.
	//
	// Returns:
	//   - string: the mesh name
	Name() string

	// Vertices returns the model-space vertex data.
	//
	// Returns:
	//   - []GPUVertex: the vertex slice (not a copy)
	Vertices() []GPUVertex

	// Indices returns the triangle index data.
	//
	// Returns:
	//   - []uint32: the index slice (not a copy)
	Indices() []uint32

	// Bounds returns the model-space axis-aligned bounding box.
	//
	// Returns:
	//   - common.AABB: the bounding box computed from the vertices
	Bounds() common.AABB

	// VertexData returns the vertex data serialized for GPU upload.
	//
	// Returns:
	//   - []byte: 64 bytes per vertex, little endian
	VertexData() []byte

	// IndexData returns the index data serialized for GPU upload.
	//
	// Returns:
	//   - []byte: 4 bytes per index, little endian
	IndexData() []byte

	// IndexCount returns the number of indices.
	//
	// Returns:
	//   - int: the index count
	IndexCount() int
}

var _ Mesh = &mesh{}

// NewMesh creates a Mesh with the provided options and computes its bounds.
//
// Parameters:
//   - options: functional options for mesh configuration
//
// Returns:
//   - Mesh: the newly created mesh
func NewMesh(options ...MeshBuilderOption) Mesh {
	m := &mesh{}
	for _, opt := range options {
		opt(m)
	}
	m.bounds = ComputeBounds(m.vertices)
	return m
}

func (m *mesh) Name() string {
	return m.name
}

func (m *mesh) Vertices() []GPUVertex {
	return m.vertices
}

func (m *mesh) Indices() []uint32 {
	return m.indices
}

func (m *mesh) Bounds() common.AABB {
	return m.bounds
}

func (m *mesh) VertexData() []byte {
	return MarshalVertices(m.vertices)
}

func (m *mesh) IndexData() []byte {
	return MarshalIndices(m.indices)
}

func (m *mesh) IndexCount() int {
	return len(m.indices)
}
