package material

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/hucancode/mjolnir/engine/handle"
)

// Feature is a bitmask of optional material inputs. The feature set selects
// the pipeline variant used to draw geometry carrying this material.
type Feature uint32

const (
	// FeatureAlbedoTexture samples base color from a texture instead of the
	// constant factor.
	FeatureAlbedoTexture Feature = 1 << iota

	// FeatureNormalMap perturbs the G-buffer normal with a tangent-space map.
	FeatureNormalMap

	// FeatureMetallicRoughnessTexture samples metallic and roughness from a
	// packed texture.
	FeatureMetallicRoughnessTexture

	// FeatureEmissiveTexture samples emissive color from a texture.
	FeatureEmissiveTexture
)

// Has reports whether every bit in want is set.
//
// Parameters:
//   - want: the feature bits to test
//
// Returns:
//   - bool: true if all bits in want are present
func (f Feature) Has(want Feature) bool {
	return f&want == want
}

// String returns a stable pipe-separated name for the feature set, used in
// pipeline keys and log lines.
func (f Feature) String() string {
	if f == 0 {
		return "none"
	}
	parts := make([]string, 0, 4)
	if f.Has(FeatureAlbedoTexture) {
		parts = append(parts, "albedo_tex")
	}
	if f.Has(FeatureNormalMap) {
		parts = append(parts, "normal_map")
	}
	if f.Has(FeatureMetallicRoughnessTexture) {
		parts = append(parts, "mr_tex")
	}
	if f.Has(FeatureEmissiveTexture) {
		parts = append(parts, "emissive_tex")
	}
	return strings.Join(parts, "|")
}

// material is the implementation of the Material interface.
type material struct {
	name      string
	baseColor mgl32.Vec4
	metallic  float32
	roughness float32
	emissive  mgl32.Vec3

	albedoTexture            handle.Handle
	normalTexture            handle.Handle
	metallicRoughnessTexture handle.Handle
	emissiveTexture          handle.Handle
}

// Material defines the interface for a render material: PBR surface factors
// plus texture handles. The feature bitmask derived from which textures are
// set selects the geometry pipeline variant.
//
// Surface properties are set at construction and read-only afterwards;
// materials are shared between instances and must not change mid-frame.
type Material interface {
	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// BaseColor retrieves the albedo RGBA factor of the material.
	//
	// Returns:
	//   - mgl32.Vec4: the base color as RGBA values
	BaseColor() mgl32.Vec4

	// Metallic retrieves the metallic factor of the material.
	// A value of 0.0 represents a dielectric surface, 1.0 a fully metallic surface.
	//
	// Returns:
	//   - float32: the metallic factor
	Metallic() float32

	// Roughness retrieves the roughness factor of the material.
	// A value of 0.0 represents a perfectly smooth surface, 1.0 a fully rough surface.
	//
	// Returns:
	//   - float32: the roughness factor
	Roughness() float32

	// Emissive retrieves the emissive RGB factor of the material.
	//
	// Returns:
	//   - mgl32.Vec3: the emissive color
	Emissive() mgl32.Vec3

	// AlbedoTexture retrieves the albedo texture handle, or handle.Nil if unset.
	//
	// Returns:
	//   - handle.Handle: the albedo texture handle
	AlbedoTexture() handle.Handle

	// NormalTexture retrieves the normal map handle, or handle.Nil if unset.
	//
	// Returns:
	//   - handle.Handle: the normal map handle
	NormalTexture() handle.Handle

	// MetallicRoughnessTexture retrieves the packed metallic-roughness
	// texture handle, or handle.Nil if unset.
	//
	// Returns:
	//   - handle.Handle: the metallic-roughness texture handle
	MetallicRoughnessTexture() handle.Handle

	// EmissiveTexture retrieves the emissive texture handle, or handle.Nil if unset.
	//
	// Returns:
	//   - handle.Handle: the emissive texture handle
	EmissiveTexture() handle.Handle

	// Features derives the feature bitmask from which textures are set.
	//
	// Returns:
	//   - Feature: the pipeline variant feature bits
	Features() Feature
}

var _ Material = &material{}

// NewMaterial creates a new Material with the given name. Defaults to a
// white dielectric with 0.5 roughness and no textures.
//
// Parameters:
//   - name: the material identifier
//   - options: functional options to configure the material
//
// Returns:
//   - Material: the newly created material
func NewMaterial(name string, options ...MaterialBuilderOption) Material {
	m := &material{
		name:      name,
		baseColor: mgl32.Vec4{1, 1, 1, 1},
		roughness: 0.5,
	}
	for _, option := range options {
		option(m)
	}
	return m
}

func (m *material) Name() string {
	return m.name
}

func (m *material) BaseColor() mgl32.Vec4 {
	return m.baseColor
}

func (m *material) Metallic() float32 {
	return m.metallic
}

func (m *material) Roughness() float32 {
	return m.roughness
}

func (m *material) Emissive() mgl32.Vec3 {
	return m.emissive
}

func (m *material) AlbedoTexture() handle.Handle {
	return m.albedoTexture
}

func (m *material) NormalTexture() handle.Handle {
	return m.normalTexture
}

func (m *material) MetallicRoughnessTexture() handle.Handle {
	return m.metallicRoughnessTexture
}

func (m *material) EmissiveTexture() handle.Handle {
	return m.emissiveTexture
}

func (m *material) Features() Feature {
	var f Feature
	if m.albedoTexture.Valid() {
		f |= FeatureAlbedoTexture
	}
	if m.normalTexture.Valid() {
		f |= FeatureNormalMap
	}
	if m.metallicRoughnessTexture.Valid() {
		f |= FeatureMetallicRoughnessTexture
	}
	if m.emissiveTexture.Valid() {
		f |= FeatureEmissiveTexture
	}
	return f
}
