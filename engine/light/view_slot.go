package light

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/hucancode/mjolnir/engine/handle"
)

// MaxShadowMaps is the maximum number of shadow-casting lights per frame.
// Lights beyond this budget render unshadowed.
const MaxShadowMaps = 4

// CubeFaces is the number of cube-map faces a point light renders into.
const CubeFaces = 6

// ViewSlotCount is the capacity of the shared per-frame light-view uniform
// array: one slot for the main camera plus six face slots per shadow map.
// Every offset computed by ViewSlot is strictly below this bound.
const ViewSlotCount = 1 + CubeFaces*MaxShadowMaps

// MainCameraSlot is the view-uniform slot reserved for the main camera.
const MainCameraSlot = 0

// ViewSlot maps a shadow light and cube face to its slot in the shared
// light-view uniform array. Slot 0 is reserved for the main camera, so the
// mapping is 1 + lightIndex*6 + faceIndex. The formula is injective over
// lightIndex ∈ [0, MaxShadowMaps) × faceIndex ∈ [0, CubeFaces); lights with
// a single view (directional, spot) use face 0.
//
// Parameters:
//   - lightIndex: the shadow-map index of the light
//   - faceIndex: the cube face, 0 for non-point lights
//
// Returns:
//   - int: the uniform array slot
//   - error: error if either index is out of range
func ViewSlot(lightIndex, faceIndex int) (int, error) {
	if lightIndex < 0 || lightIndex >= MaxShadowMaps {
		return 0, fmt.Errorf("light: shadow index %d out of range [0,%d)", lightIndex, MaxShadowMaps)
	}
	if faceIndex < 0 || faceIndex >= CubeFaces {
		return 0, fmt.Errorf("light: cube face %d out of range [0,%d)", faceIndex, CubeFaces)
	}
	return 1 + lightIndex*CubeFaces + faceIndex, nil
}

// Record is the per-frame derivation of one light: its view-projection
// matrices and the shadow map it renders into. Records are rebuilt from the
// scene every frame and never persist across frames.
type Record struct {
	// Source is the scene light this record was derived from.
	Source Light

	// ShadowIndex is the light's index into the shadow-map budget, or -1
	// when the light does not cast shadows this frame.
	ShadowIndex int

	// Views holds one view-projection matrix per culling viewpoint: six for
	// point lights, one (in Views[0]) for directional and spot lights.
	Views [CubeFaces]mgl32.Mat4

	// ViewCount is the number of valid entries in Views.
	ViewCount int

	// ShadowMap is the depth image the shadow passes render into: a cube
	// image for point lights, a 2D image otherwise. Nil when ShadowIndex < 0.
	ShadowMap handle.Handle
}

// CastsShadows reports whether this record holds a shadow-map budget slot.
func (r *Record) CastsShadows() bool {
	return r.ShadowIndex >= 0
}

// cube-face basis per Vulkan cube map convention: +X -X +Y -Y +Z -Z.
var cubeFaceTargets = [CubeFaces]mgl32.Vec3{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

var cubeFaceUps = [CubeFaces]mgl32.Vec3{
	{0, -1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
	{0, -1, 0}, {0, -1, 0},
}

// BuildRecord derives the per-frame view matrices for one light.
//
// Point lights produce six 90° perspective views, one per cube face, each a
// fully independent culling viewpoint. Spot lights produce one perspective
// view along the cone axis with the fov matching the outer cone. Directional
// lights produce one orthographic view centered on the given focus point.
//
// Parameters:
//   - l: the source light
//   - shadowIndex: the light's shadow budget slot, or -1 if unshadowed
//   - shadowMap: the depth image handle for shadow passes (handle.Nil if unshadowed)
//   - focus: the world-space point directional shadows center on
//
// Returns:
//   - Record: the derived record
func BuildRecord(l Light, shadowIndex int, shadowMap handle.Handle, focus mgl32.Vec3) Record {
	rec := Record{
		Source:      l,
		ShadowIndex: shadowIndex,
		ShadowMap:   shadowMap,
	}

	switch l.Type() {
	case LightTypePoint:
		rec.ViewCount = CubeFaces
		proj := mgl32.Perspective(mgl32.DegToRad(90), 1, DefaultShadowNear, max(l.Range(), DefaultShadowNear*2))
		pos := l.Position()
		for face := 0; face < CubeFaces; face++ {
			view := mgl32.LookAtV(pos, pos.Add(cubeFaceTargets[face]), cubeFaceUps[face])
			rec.Views[face] = proj.Mul4(view)
		}

	case LightTypeSpot:
		rec.ViewCount = 1
		// Cover the full outer cone: fov = 2 * acos(outerCone).
		fov := 2 * acos32(l.OuterCone())
		proj := mgl32.Perspective(fov, 1, DefaultShadowNear, max(l.Range(), DefaultShadowNear*2))
		view := mgl32.LookAtV(l.Position(), l.Position().Add(l.Direction()), upFor(l.Direction()))
		rec.Views[0] = proj.Mul4(view)

	case LightTypeDirectional:
		rec.ViewCount = 1
		he := DefaultShadowHalfExtent
		proj := mgl32.Ortho(-he, he, -he, he, DefaultShadowNear, DefaultShadowFar)
		eye := focus.Sub(l.Direction().Mul(DefaultShadowFar * 0.5))
		view := mgl32.LookAtV(eye, focus, upFor(l.Direction()))
		rec.Views[0] = proj.Mul4(view)
	}

	return rec
}

// upFor picks an up vector that is not collinear with the view direction.
func upFor(dir mgl32.Vec3) mgl32.Vec3 {
	up := mgl32.Vec3{0, 1, 0}
	if abs32(dir.Dot(up)) > 0.999 {
		up = mgl32.Vec3{0, 0, 1}
	}
	return up
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func acos32(v float32) float32 {
	switch {
	case v <= -1:
		return mgl32.DegToRad(180)
	case v >= 1:
		return 0
	}
	return float32(math.Acos(float64(v)))
}
