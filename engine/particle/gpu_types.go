package particle

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// MaxGPUForceFields is the maximum number of force fields uploaded to the
// simulation pass per frame.
const MaxGPUForceFields = 16

// GPUParticle is the GPU-side particle layout in the simulation storage
// buffer. The compute pass owns every field; the CPU never reads it back.
// Size: 48 bytes (std430 aligned).
type GPUParticle struct {
	Position [3]float32 // offset  0: world-space position
	Life     float32    // offset 12: remaining lifetime in seconds, <= 0 is dead
	Velocity [3]float32 // offset 16: world-space velocity
	QuadSize float32    // offset 28: quad size in world units
	Color    [4]float32 // offset 32: RGBA tint
}

// Size returns the size of the GPUParticle struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (48)
func (g *GPUParticle) Size() int {
	return int(unsafe.Sizeof(*g))
}

// GPUForceField is the GPU-aligned force field layout.
// Size: 32 bytes (std430 aligned).
type GPUForceField struct {
	Position [3]float32 // offset  0: world-space center
	Strength float32    // offset 12: force magnitude, positive attracts
	Radius   float32    // offset 16: influence radius
	_pad     [3]float32 // offset 20: padding to 32 bytes
}

// Size returns the size of the GPUForceField struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (g *GPUForceField) Size() int {
	return int(unsafe.Sizeof(*g))
}

// GPUSimParams is the uniform block driving one simulation dispatch.
// Size: 32 bytes.
type GPUSimParams struct {
	DeltaTime  float32    // offset  0: frame delta in seconds
	AliveCount uint32     // offset  4: live particles to simulate
	FieldCount uint32     // offset  8: force fields in the field buffer
	Capacity   uint32     // offset 12: particle buffer capacity
	Gravity    [3]float32 // offset 16: constant acceleration
	_pad       float32    // offset 28: padding to 32 bytes
}

// Size returns the size of the GPUSimParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (g *GPUSimParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUSimParams into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (g *GPUSimParams) Marshal() []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(g.DeltaTime))
	binary.LittleEndian.PutUint32(buf[4:8], g.AliveCount)
	binary.LittleEndian.PutUint32(buf[8:12], g.FieldCount)
	binary.LittleEndian.PutUint32(buf[12:16], g.Capacity)
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(g.Gravity[0]))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(g.Gravity[1]))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(g.Gravity[2]))
	binary.LittleEndian.PutUint32(buf[28:32], 0) // _pad
	return buf
}

// MarshalForceFields marshals up to MaxGPUForceFields fields into a byte
// buffer suitable for GPU upload. Fields beyond the budget are dropped.
//
// Parameters:
//   - fields: the frame's force fields
//
// Returns:
//   - []byte: the marshaled buffer
//   - int: the number of fields written
func MarshalForceFields(fields []ForceField) ([]byte, int) {
	n := len(fields)
	if n > MaxGPUForceFields {
		n = MaxGPUForceFields
	}
	fieldSize := (&GPUForceField{}).Size()
	buf := make([]byte, n*fieldSize)
	for i := 0; i < n; i++ {
		off := i * fieldSize
		pos := fields[i].Position()
		binary.LittleEndian.PutUint32(buf[off+0:], math.Float32bits(pos[0]))
		binary.LittleEndian.PutUint32(buf[off+4:], math.Float32bits(pos[1]))
		binary.LittleEndian.PutUint32(buf[off+8:], math.Float32bits(pos[2]))
		binary.LittleEndian.PutUint32(buf[off+12:], math.Float32bits(fields[i].Strength()))
		binary.LittleEndian.PutUint32(buf[off+16:], math.Float32bits(fields[i].Radius()))
	}
	return buf, n
}
