package particle

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// DefaultPoolCapacity is the default number of particle slots in the GPU pool.
const DefaultPoolCapacity = 65536

type emitterImpl struct {
	mu *sync.Mutex

	position       mgl32.Vec3
	direction      mgl32.Vec3
	spawnRate      float32
	lifetime       float32
	initialSpeed   float32
	velocitySpread float32
	size           float32
	color          mgl32.Vec4
	enabled        bool

	// accumulator carries fractional spawn debt between frames so low spawn
	// rates still emit.
	accumulator float32
}

// Emitter describes a continuous particle source. Emitters are scene
// attachments; each frame the simulation pass spawns
// floor(spawnRate * dt + accumulator) particles into the pool.
type Emitter interface {
	// Position returns the emitter's world-space origin.
	Position() mgl32.Vec3

	// Direction returns the mean emission direction.
	Direction() mgl32.Vec3

	// SpawnRate returns the emission rate in particles per second.
	SpawnRate() float32

	// Lifetime returns each particle's lifetime in seconds.
	Lifetime() float32

	// InitialSpeed returns the mean initial speed in units per second.
	InitialSpeed() float32

	// VelocitySpread returns the half-angle of the emission cone in radians.
	VelocitySpread() float32

	// Size returns the particle quad size in world units.
	Size() float32

	// Color returns the particle tint as RGBA.
	Color() mgl32.Vec4

	// Enabled returns whether the emitter spawns particles.
	Enabled() bool

	// SetPosition sets the emitter's world-space origin.
	//
	// Parameters:
	//   - p: the new position
	SetPosition(p mgl32.Vec3)

	// SetSpawnRate sets the emission rate in particles per second.
	//
	// Parameters:
	//   - rate: particles per second
	SetSpawnRate(rate float32)

	// SetEnabled toggles particle spawning.
	//
	// Parameters:
	//   - enabled: whether the emitter spawns particles
	SetEnabled(enabled bool)

	// Accumulate advances the emitter's spawn accumulator by dt and returns
	// the whole number of particles to spawn this frame. The fractional
	// remainder is carried into the next frame.
	//
	// Parameters:
	//   - dt: elapsed time in seconds
	//
	// Returns:
	//   - int: the number of particles to spawn
	Accumulate(dt float32) int
}

var _ Emitter = &emitterImpl{}

// NewEmitter creates a new particle emitter with sane defaults: 100
// particles per second, 2 second lifetime, emitting upward.
//
// Parameters:
//   - options: functional options to configure the emitter
//
// Returns:
//   - Emitter: the newly created emitter
func NewEmitter(options ...EmitterBuilderOption) Emitter {
	e := &emitterImpl{
		mu:             &sync.Mutex{},
		direction:      mgl32.Vec3{0, 1, 0},
		spawnRate:      100,
		lifetime:       2,
		initialSpeed:   1,
		velocitySpread: mgl32.DegToRad(15),
		size:           0.1,
		color:          mgl32.Vec4{1, 1, 1, 1},
		enabled:        true,
	}
	for _, option := range options {
		option(e)
	}
	return e
}

func (e *emitterImpl) Position() mgl32.Vec3 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

func (e *emitterImpl) Direction() mgl32.Vec3 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.direction
}

func (e *emitterImpl) SpawnRate() float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spawnRate
}

func (e *emitterImpl) Lifetime() float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lifetime
}

func (e *emitterImpl) InitialSpeed() float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialSpeed
}

func (e *emitterImpl) VelocitySpread() float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.velocitySpread
}

func (e *emitterImpl) Size() float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.size
}

func (e *emitterImpl) Color() mgl32.Vec4 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.color
}

func (e *emitterImpl) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

func (e *emitterImpl) SetPosition(p mgl32.Vec3) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.position = p
}

func (e *emitterImpl) SetSpawnRate(rate float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spawnRate = rate
}

func (e *emitterImpl) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
}

func (e *emitterImpl) Accumulate(dt float32) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.enabled || dt <= 0 {
		return 0
	}
	e.accumulator += e.spawnRate * dt
	n := int(e.accumulator)
	e.accumulator -= float32(n)
	return n
}

type forceFieldImpl struct {
	mu *sync.Mutex

	position mgl32.Vec3
	strength float32
	radius   float32
}

// ForceField describes a point attractor or repulsor applied to every live
// particle during the simulation pass. Positive strength attracts, negative
// repels; influence falls off linearly to zero at the field's radius.
type ForceField interface {
	// Position returns the field's world-space center.
	Position() mgl32.Vec3

	// Strength returns the force magnitude. Positive attracts, negative repels.
	Strength() float32

	// Radius returns the influence radius in world units.
	Radius() float32

	// SetPosition sets the field's world-space center.
	//
	// Parameters:
	//   - p: the new position
	SetPosition(p mgl32.Vec3)

	// SetStrength sets the force magnitude.
	//
	// Parameters:
	//   - strength: the force magnitude, positive attracts
	SetStrength(strength float32)
}

var _ ForceField = &forceFieldImpl{}

// NewForceField creates a new force field.
//
// Parameters:
//   - options: functional options to configure the field
//
// Returns:
//   - ForceField: the newly created force field
func NewForceField(options ...ForceFieldBuilderOption) ForceField {
	f := &forceFieldImpl{
		mu:       &sync.Mutex{},
		strength: 1,
		radius:   10,
	}
	for _, option := range options {
		option(f)
	}
	return f
}

func (f *forceFieldImpl) Position() mgl32.Vec3 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *forceFieldImpl) Strength() float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.strength
}

func (f *forceFieldImpl) Radius() float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.radius
}

func (f *forceFieldImpl) SetPosition(p mgl32.Vec3) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = p
}

func (f *forceFieldImpl) SetStrength(strength float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strength = strength
}
