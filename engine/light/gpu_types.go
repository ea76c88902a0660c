package light

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxGPULights is the maximum number of lights marshaled into the GPU
// storage buffer per frame. The CPU-side light list is unbounded; this cap
// controls only how many lights the additive lighting pass evaluates.
const MaxGPULights = 1024

// GPULight is the GPU-aligned representation of a single light source as
// consumed by the deferred lighting shader.
// Size: 64 bytes (std430 aligned).
type GPULight struct {
	Position     [3]float32 // offset  0: world-space position (point/spot) or unused (directional)
	LightType    uint32     // offset 12: 0 = directional, 1 = point, 2 = spot
	Color        [3]float32 // offset 16: RGB color
	Intensity    float32    // offset 28: scalar multiplier
	Direction    [3]float32 // offset 32: normalized direction (directional/spot) or unused (point)
	LightRange   float32    // offset 44: attenuation cutoff distance
	InnerCone    float32    // offset 48: cos(inner half-angle) for spot
	OuterCone    float32    // offset 52: cos(outer half-angle) for spot
	ShadowSlot   uint32     // offset 56: 1 + shadow map index, 0 = unshadowed
	CastsShadows uint32     // offset 60: 1 = casts shadows, 0 = does not
}

// Size returns the size of the GPULight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (g *GPULight) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULight struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func (g *GPULight) Marshal() []byte {
	buf := make([]byte, 64)
	putF32 := func(off int, v float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
	}
	putF32(0, g.Position[0])
	putF32(4, g.Position[1])
	putF32(8, g.Position[2])
	binary.LittleEndian.PutUint32(buf[12:16], g.LightType)
	putF32(16, g.Color[0])
	putF32(20, g.Color[1])
	putF32(24, g.Color[2])
	putF32(28, g.Intensity)
	putF32(32, g.Direction[0])
	putF32(36, g.Direction[1])
	putF32(40, g.Direction[2])
	putF32(44, g.LightRange)
	putF32(48, g.InnerCone)
	putF32(52, g.OuterCone)
	binary.LittleEndian.PutUint32(buf[56:60], g.ShadowSlot)
	binary.LittleEndian.PutUint32(buf[60:64], g.CastsShadows)
	return buf
}

// GPULightHeader is the header prepended to the light storage buffer.
// Contains the ambient color and the active light count.
// Size: 16 bytes (vec3 + u32, std430 aligned).
type GPULightHeader struct {
	AmbientColor [3]float32 // offset 0: scene ambient RGB
	LightCount   uint32     // offset 12: number of active lights following the header
}

// Size returns the size of the GPULightHeader struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (h *GPULightHeader) Size() int {
	return int(unsafe.Sizeof(*h))
}

// Marshal serializes the GPULightHeader into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (h *GPULightHeader) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(h.AmbientColor[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(h.AmbientColor[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(h.AmbientColor[2]))
	binary.LittleEndian.PutUint32(buf[12:16], h.LightCount)
	return buf
}

// GPUViewUniform is one slot of the shared per-frame view uniform array,
// indexed by the ViewSlot mapping: the main camera at slot 0 followed by six
// face slots per shadow map. Shadow sub-passes and the depth/geometry passes
// bind this array with a dynamic offset of slot * GPUViewUniformStride.
// Size: 96 bytes.
type GPUViewUniform struct {
	ViewProj   [16]float32 // offset  0: combined view-projection for the viewpoint
	ViewPos    [3]float32  // offset 64: world-space viewpoint origin
	FarPlane   float32     // offset 76: depth normalization for cube shadows
	TexelSize  [2]float32  // offset 80: 1.0 / shadow map resolution for PCF offsets
	Bias       float32     // offset 88: depth comparison bias to reduce shadow acne
	NormalBias float32     // offset 92: world-space normal-offset distance
}

// GPUViewUniformStride is the aligned stride between view uniform slots,
// honoring the 256-byte minUniformBufferOffsetAlignment limit common to
// desktop GPUs when binding with dynamic offsets.
const GPUViewUniformStride = 256

// Size returns the size of the GPUViewUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (96)
func (u *GPUViewUniform) Size() int {
	return int(unsafe.Sizeof(*u))
}

// Marshal serializes the GPUViewUniform into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 96-byte buffer ready for GPU upload
func (u *GPUViewUniform) Marshal() []byte {
	buf := make([]byte, 96)
	for i, v := range u.ViewProj {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	binary.LittleEndian.PutUint32(buf[64:68], math.Float32bits(u.ViewPos[0]))
	binary.LittleEndian.PutUint32(buf[68:72], math.Float32bits(u.ViewPos[1]))
	binary.LittleEndian.PutUint32(buf[72:76], math.Float32bits(u.ViewPos[2]))
	binary.LittleEndian.PutUint32(buf[76:80], math.Float32bits(u.FarPlane))
	binary.LittleEndian.PutUint32(buf[80:84], math.Float32bits(u.TexelSize[0]))
	binary.LittleEndian.PutUint32(buf[84:88], math.Float32bits(u.TexelSize[1]))
	binary.LittleEndian.PutUint32(buf[88:92], math.Float32bits(u.Bias))
	binary.LittleEndian.PutUint32(buf[92:96], math.Float32bits(u.NormalBias))
	return buf
}

// ToGPUViewUniform fills one view uniform slot from a viewpoint's matrices.
//
// Parameters:
//   - viewProj: the viewpoint's combined view-projection matrix
//   - viewPos: the viewpoint origin in world space
//   - farPlane: the viewpoint far plane
//   - resolution: the render target resolution in texels
//
// Returns:
//   - GPUViewUniform: the filled slot
func ToGPUViewUniform(viewProj mgl32.Mat4, viewPos mgl32.Vec3, farPlane float32, resolution int) GPUViewUniform {
	u := GPUViewUniform{
		ViewPos:    viewPos,
		FarPlane:   farPlane,
		Bias:       DefaultShadowBias,
		NormalBias: DefaultShadowNormalBiasScale * (2 * DefaultShadowHalfExtent / float32(ShadowMapResolution)),
	}
	copy(u.ViewProj[:], viewProj[:])
	if resolution > 0 {
		u.TexelSize = [2]float32{1 / float32(resolution), 1 / float32(resolution)}
	}
	return u
}

// ToGPULight converts a Light and its shadow budget slot to the GPU layout.
//
// Parameters:
//   - l: the source light
//   - shadowIndex: the light's shadow map index, or -1 if unshadowed
//
// Returns:
//   - GPULight: the GPU-aligned representation
func ToGPULight(l Light, shadowIndex int) GPULight {
	shadowVal := uint32(0)
	slot := uint32(0)
	if l.CastsShadows() && shadowIndex >= 0 {
		shadowVal = 1
		slot = uint32(shadowIndex) + 1
	}
	return GPULight{
		Position:     l.Position(),
		LightType:    uint32(l.Type()),
		Color:        l.Color(),
		Intensity:    l.Intensity(),
		Direction:    l.Direction(),
		LightRange:   l.Range(),
		InnerCone:    l.InnerCone(),
		OuterCone:    l.OuterCone(),
		ShadowSlot:   slot,
		CastsShadows: shadowVal,
	}
}

// MarshalLightBuffer marshals the frame's light records into a byte buffer
// suitable for GPU upload. The buffer layout is:
//
//	[GPULightHeader (16 bytes)] [GPULight x count (64 bytes each)]
//
// Only enabled lights are included, up to MaxGPULights. Lights beyond the
// budget are silently dropped; callers should pre-sort by priority if
// truncation is expected.
//
// Parameters:
//   - records: the frame's derived light records
//   - ambient: the scene ambient color as RGB
//
// Returns:
//   - []byte: the marshaled buffer ready for GPU upload
func MarshalLightBuffer(records []Record, ambient mgl32.Vec3) []byte {
	headerSize := (&GPULightHeader{}).Size()
	lightSize := (&GPULight{}).Size()

	enabledCount := 0
	for i := range records {
		if records[i].Source.Enabled() {
			enabledCount++
			if enabledCount == MaxGPULights {
				break
			}
		}
	}

	buf := make([]byte, headerSize+enabledCount*lightSize)

	header := GPULightHeader{AmbientColor: ambient, LightCount: uint32(enabledCount)}
	copy(buf[:headerSize], header.Marshal())

	offset := headerSize
	written := 0
	for i := range records {
		rec := &records[i]
		if !rec.Source.Enabled() {
			continue
		}
		if written == enabledCount {
			break
		}
		gpu := ToGPULight(rec.Source, rec.ShadowIndex)
		copy(buf[offset:offset+lightSize], gpu.Marshal())
		offset += lightSize
		written++
	}

	return buf
}
