package material

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUMaterial is the GPU-aligned material factor block bound to the G-buffer
// fragment shader. Texture inputs are bound separately via descriptor sets;
// this block carries only the constant factors.
// Size: 48 bytes (std140 aligned).
type GPUMaterial struct {
	BaseColor [4]float32 // offset  0: albedo RGBA factor
	Emissive  [3]float32 // offset 16: emissive RGB factor
	Metallic  float32    // offset 28: metallic factor
	Roughness float32    // offset 32: roughness factor
	Features  uint32     // offset 36: feature bitmask (mirrors the pipeline variant)
	_pad      [2]float32 // offset 40: padding to 48 bytes
}

// Size returns the size of the GPUMaterial struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (48)
func (g *GPUMaterial) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUMaterial struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 48-byte buffer ready for GPU upload
func (g *GPUMaterial) Marshal() []byte {
	buf := make([]byte, 48)
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.BaseColor[i]))
	}
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(g.Emissive[i]))
	}
	binary.LittleEndian.PutUint32(buf[28:], math.Float32bits(g.Metallic))
	binary.LittleEndian.PutUint32(buf[32:], math.Float32bits(g.Roughness))
	binary.LittleEndian.PutUint32(buf[36:], g.Features)
	binary.LittleEndian.PutUint32(buf[40:], 0)
	binary.LittleEndian.PutUint32(buf[44:], 0)
	return buf
}

// ToGPUMaterial fills the factor block from a material.
//
// Parameters:
//   - m: the material to read from
//
// Returns:
//   - GPUMaterial: the filled factor block
func ToGPUMaterial(m Material) GPUMaterial {
	return GPUMaterial{
		BaseColor: m.BaseColor(),
		Emissive:  m.Emissive(),
		Metallic:  m.Metallic(),
		Roughness: m.Roughness(),
		Features:  uint32(m.Features()),
	}
}
