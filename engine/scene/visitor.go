package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/hucancode/mjolnir/engine/light"
	"github.com/hucancode/mjolnir/engine/particle"
)

// LightVisitor receives every light attachment during light collection.
// Implementations derive per-frame light records and assign shadow budget.
type LightVisitor interface {
	// VisitLight is called once per light attachment with the owning node's
	// world transform. The light's position has already been synced to the
	// transform's translation.
	//
	// Parameters:
	//   - transform: the owning node's world transform
	//   - l: the light source
	VisitLight(transform mgl32.Mat4, l light.Light)
}

// DrawVisitor receives every drawable instance during draw submission.
// Implementations build the frame's render batches.
type DrawVisitor interface {
	// VisitDraw is called once per mesh attachment with the resolved
	// instance.
	//
	// Parameters:
	//   - inst: the resolved drawable instance
	VisitDraw(inst Instance)
}

// ShadowVisitor receives shadow-casting instances during shadow submission.
// Only instances whose mesh attachment has CastShadow set are visited.
type ShadowVisitor interface {
	// VisitShadowCaster is called once per shadow-casting instance.
	//
	// Parameters:
	//   - inst: the resolved shadow-casting instance
	VisitShadowCaster(inst Instance)
}

// ParticleVisitor receives emitter and force-field attachments during the
// particle collection traversal.
type ParticleVisitor interface {
	// VisitEmitter is called once per emitter attachment. The emitter's
	// position has already been synced to the owning node's transform.
	//
	// Parameters:
	//   - e: the particle emitter
	VisitEmitter(e particle.Emitter)

	// VisitForceField is called once per force-field attachment.
	//
	// Parameters:
	//   - f: the force field
	VisitForceField(f particle.ForceField)
}
