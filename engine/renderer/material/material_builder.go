package material

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/hucancode/mjolnir/engine/handle"
)

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithBaseColor sets the albedo RGBA factor of the material.
//
// Parameters:
//   - c: the base color as RGBA values
//
// Returns:
//   - MaterialBuilderOption: a function that sets the base color
func WithBaseColor(c mgl32.Vec4) MaterialBuilderOption {
	return func(m *material) {
		m.baseColor = c
	}
}

// WithMetallic sets the metallic factor of the material.
//
// Parameters:
//   - metallic: the metallic factor in [0, 1]
//
// Returns:
//   - MaterialBuilderOption: a function that sets the metallic factor
func WithMetallic(metallic float32) MaterialBuilderOption {
	return func(m *material) {
		m.metallic = metallic
	}
}

// WithRoughness sets the roughness factor of the material.
//
// Parameters:
//   - roughness: the roughness factor in [0, 1]
//
// Returns:
//   - MaterialBuilderOption: a function that sets the roughness factor
func WithRoughness(roughness float32) MaterialBuilderOption {
	return func(m *material) {
		m.roughness = roughness
	}
}

// WithEmissive sets the emissive RGB factor of the material.
//
// Parameters:
//   - e: the emissive color
//
// Returns:
//   - MaterialBuilderOption: a function that sets the emissive factor
func WithEmissive(e mgl32.Vec3) MaterialBuilderOption {
	return func(m *material) {
		m.emissive = e
	}
}

// WithAlbedoTexture sets the albedo texture handle.
//
// Parameters:
//   - h: the texture handle
//
// Returns:
//   - MaterialBuilderOption: a function that sets the albedo texture
func WithAlbedoTexture(h handle.Handle) MaterialBuilderOption {
	return func(m *material) {
		m.albedoTexture = h
	}
}

// WithNormalTexture sets the normal map handle.
//
// Parameters:
//   - h: the texture handle
//
// Returns:
//   - MaterialBuilderOption: a function that sets the normal map
func WithNormalTexture(h handle.Handle) MaterialBuilderOption {
	return func(m *material) {
		m.normalTexture = h
	}
}

// WithMetallicRoughnessTexture sets the packed metallic-roughness texture handle.
//
// Parameters:
//   - h: the texture handle
//
// Returns:
//   - MaterialBuilderOption: a function that sets the metallic-roughness texture
func WithMetallicRoughnessTexture(h handle.Handle) MaterialBuilderOption {
	return func(m *material) {
		m.metallicRoughnessTexture = h
	}
}

// WithEmissiveTexture sets the emissive texture handle.
//
// Parameters:
//   - h: the texture handle
//
// Returns:
//   - MaterialBuilderOption: a function that sets the emissive texture
func WithEmissiveTexture(h handle.Handle) MaterialBuilderOption {
	return func(m *material) {
		m.emissiveTexture = h
	}
}
