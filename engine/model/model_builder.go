package model

// MeshBuilderOption is a functional option for configuring a Mesh.
// Use the With* functions to create options that are applied directly to the mesh instance.
type MeshBuilderOption func(*mesh)

// WithName sets the mesh's human-readable identifier.
//
// Parameters:
//   - name: the mesh name
//
// Returns:
//   - MeshBuilderOption: option function to apply
func WithName(name string) MeshBuilderOption {
	return func(m *mesh) {
		m.name = name
	}
}

// WithVertices sets the mesh's model-space vertex data.
//
// Parameters:
//   - vertices: the vertex data (retained, not copied)
//
// Returns:
//   - MeshBuilderOption: option function to apply
func WithVertices(vertices []GPUVertex) MeshBuilderOption {
	return func(m *mesh) {
		m.vertices = vertices
	}
}

// WithIndices sets the mesh's triangle index data.
//
// Parameters:
//   - indices: the index data (retained, not copied)
//
// Returns:
//   - MeshBuilderOption: option function to apply
func WithIndices(indices []uint32) MeshBuilderOption {
	return func(m *mesh) {
		m.indices = indices
	}
}
