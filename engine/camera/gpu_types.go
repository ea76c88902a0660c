package camera

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUCameraUniform is the GPU-aligned representation of the main camera
// uniform consumed by the geometry and lighting shaders.
// Size: 80 bytes (std140 aligned).
type GPUCameraUniform struct {
	ViewProj       [16]float32 // offset  0: combined view-projection matrix
	CameraPosition [3]float32  // offset 64: world-space camera position
	_pad           float32     // offset 76: padding to 80 bytes
}

// Size returns the size of the GPUCameraUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (g *GPUCameraUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUCameraUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUCameraUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.ViewProj[i]))
	}
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(g.CameraPosition[i]))
	}
	binary.LittleEndian.PutUint32(buf[76:], 0) // _pad
	return buf
}

// ToGPUCameraUniform fills the camera uniform from the camera's current state.
//
// Parameters:
//   - c: the camera to read from
//
// Returns:
//   - GPUCameraUniform: the filled uniform
func ToGPUCameraUniform(c Camera) GPUCameraUniform {
	u := GPUCameraUniform{CameraPosition: c.Position()}
	vp := c.ViewProjectionMatrix()
	copy(u.ViewProj[:], vp[:])
	return u
}
