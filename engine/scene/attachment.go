package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/hucancode/mjolnir/common"
	"github.com/hucancode/mjolnir/engine/handle"
	"github.com/hucancode/mjolnir/engine/light"
	"github.com/hucancode/mjolnir/engine/particle"
)

// AttachmentKind identifies the concrete variant of an Attachment. The set
// is closed; traversal code switches exhaustively over it.
type AttachmentKind uint8

const (
	// AttachmentMesh is a drawable mesh with a material.
	AttachmentMesh AttachmentKind = iota

	// AttachmentLightPoint is an omnidirectional light source.
	AttachmentLightPoint

	// AttachmentLightSpot is a cone-shaped light source.
	AttachmentLightSpot

	// AttachmentLightDirectional is an infinite-distance light source.
	AttachmentLightDirectional

	// AttachmentEmitter is a particle emitter.
	AttachmentEmitter

	// AttachmentForceField is a particle force field.
	AttachmentForceField
)

// Attachment is one capability attached to a scene node. The variant set is
// closed: only the types in this package implement it, so a switch over
// Kind() covering every constant handles every possible attachment.
type Attachment interface {
	// Kind returns the attachment's variant tag.
	Kind() AttachmentKind

	isAttachment()
}

// MeshAttachment makes a node drawable. The mesh and material handles refer
// to GPU resources owned by the renderer; a stale or nil handle skips the
// draw at batch-build time rather than failing the frame.
type MeshAttachment struct {
	// Mesh is the handle of the GPU mesh to draw.
	Mesh handle.Handle

	// Material is the handle of the material controlling the pipeline
	// variant and textures.
	Material handle.Handle

	// CastShadow includes this mesh in shadow passes.
	CastShadow bool

	// ReceiveShadow samples shadow maps in the lighting pass.
	ReceiveShadow bool

	// Transparent routes this mesh to the blended pass after lighting
	// instead of the G-buffer pass.
	Transparent bool

	// Bounds is the mesh's local-space bounding box, transformed by the
	// node transform at cull time.
	Bounds common.AABB
}

// Kind returns AttachmentMesh.
func (MeshAttachment) Kind() AttachmentKind { return AttachmentMesh }
func (MeshAttachment) isAttachment()        {}

// LightAttachment makes a node a light source. The variant tag follows the
// light's type so traversal code can dispatch without inspecting the light.
type LightAttachment struct {
	// Source is the light's parameters and state.
	Source light.Light
}

// Kind returns the light variant matching the source's type.
func (a LightAttachment) Kind() AttachmentKind {
	switch a.Source.Type() {
	case light.LightTypePoint:
		return AttachmentLightPoint
	case light.LightTypeSpot:
		return AttachmentLightSpot
	default:
		return AttachmentLightDirectional
	}
}
func (LightAttachment) isAttachment() {}

// EmitterAttachment makes a node a particle source. The emitter's position
// follows the node transform each frame.
type EmitterAttachment struct {
	// Source is the emitter's parameters and spawn accumulator.
	Source particle.Emitter
}

// Kind returns AttachmentEmitter.
func (EmitterAttachment) Kind() AttachmentKind { return AttachmentEmitter }
func (EmitterAttachment) isAttachment()        {}

// ForceFieldAttachment makes a node a particle force field. The field's
// position follows the node transform each frame.
type ForceFieldAttachment struct {
	// Source is the field's parameters.
	Source particle.ForceField
}

// Kind returns AttachmentForceField.
func (ForceFieldAttachment) Kind() AttachmentKind { return AttachmentForceField }
func (ForceFieldAttachment) isAttachment()        {}

// Instance is one drawable resolved from a node's mesh attachment during
// traversal: the node transform combined with the mesh's handles and flags.
// Instances are value types rebuilt every frame and never persist.
type Instance struct {
	// NodeID is the owning node's scene ID.
	NodeID uint64

	// Transform is the node's world transform.
	Transform mgl32.Mat4

	// Mesh is the GPU mesh handle.
	Mesh handle.Handle

	// Material is the material handle.
	Material handle.Handle

	// CastShadow includes the instance in shadow passes.
	CastShadow bool

	// ReceiveShadow samples shadow maps in the lighting pass.
	ReceiveShadow bool

	// Transparent routes the instance to the blended pass.
	Transparent bool

	// Bounds is the instance's world-space bounding box.
	Bounds common.AABB
}
