package particle

import (
	"github.com/go-gl/mathgl/mgl32"
)

type EmitterBuilderOption func(*emitterImpl)

// WithEmitterPosition sets the emitter's world-space origin.
//
// Parameters:
//   - p: the position to set
//
// Returns:
//   - EmitterBuilderOption: a function that sets the emitter's position
func WithEmitterPosition(p mgl32.Vec3) EmitterBuilderOption {
	return func(e *emitterImpl) {
		e.position = p
	}
}

// WithEmitterDirection sets the mean emission direction.
//
// Parameters:
//   - d: the direction to set
//
// Returns:
//   - EmitterBuilderOption: a function that sets the emission direction
func WithEmitterDirection(d mgl32.Vec3) EmitterBuilderOption {
	return func(e *emitterImpl) {
		if d.Len() > 0 {
			e.direction = d.Normalize()
		}
	}
}

// WithSpawnRate sets the emission rate in particles per second.
//
// Parameters:
//   - rate: particles per second
//
// Returns:
//   - EmitterBuilderOption: a function that sets the spawn rate
func WithSpawnRate(rate float32) EmitterBuilderOption {
	return func(e *emitterImpl) {
		e.spawnRate = rate
	}
}

// WithLifetime sets each particle's lifetime in seconds.
//
// Parameters:
//   - lifetime: lifetime in seconds
//
// Returns:
//   - EmitterBuilderOption: a function that sets the particle lifetime
func WithLifetime(lifetime float32) EmitterBuilderOption {
	return func(e *emitterImpl) {
		e.lifetime = lifetime
	}
}

// WithInitialSpeed sets the mean initial speed in units per second.
//
// Parameters:
//   - speed: units per second
//
// Returns:
//   - EmitterBuilderOption: a function that sets the initial speed
func WithInitialSpeed(speed float32) EmitterBuilderOption {
	return func(e *emitterImpl) {
		e.initialSpeed = speed
	}
}

// WithVelocitySpread sets the half-angle of the emission cone in radians.
//
// Parameters:
//   - spread: cone half-angle in radians
//
// Returns:
//   - EmitterBuilderOption: a function that sets the velocity spread
func WithVelocitySpread(spread float32) EmitterBuilderOption {
	return func(e *emitterImpl) {
		e.velocitySpread = spread
	}
}

// WithParticleSize sets the particle quad size in world units.
//
// Parameters:
//   - size: quad size in world units
//
// Returns:
//   - EmitterBuilderOption: a function that sets the particle size
func WithParticleSize(size float32) EmitterBuilderOption {
	return func(e *emitterImpl) {
		e.size = size
	}
}

// WithParticleColor sets the particle tint as RGBA.
//
// Parameters:
//   - c: the RGBA color
//
// Returns:
//   - EmitterBuilderOption: a function that sets the particle color
func WithParticleColor(c mgl32.Vec4) EmitterBuilderOption {
	return func(e *emitterImpl) {
		e.color = c
	}
}

type ForceFieldBuilderOption func(*forceFieldImpl)

// WithFieldPosition sets the field's world-space center.
//
// Parameters:
//   - p: the position to set
//
// Returns:
//   - ForceFieldBuilderOption: a function that sets the field's position
func WithFieldPosition(p mgl32.Vec3) ForceFieldBuilderOption {
	return func(f *forceFieldImpl) {
		f.position = p
	}
}

// WithFieldStrength sets the force magnitude. Positive attracts, negative repels.
//
// Parameters:
//   - strength: the force magnitude
//
// Returns:
//   - ForceFieldBuilderOption: a function that sets the field strength
func WithFieldStrength(strength float32) ForceFieldBuilderOption {
	return func(f *forceFieldImpl) {
		f.strength = strength
	}
}

// WithFieldRadius sets the influence radius in world units.
//
// Parameters:
//   - radius: the influence radius
//
// Returns:
//   - ForceFieldBuilderOption: a function that sets the field radius
func WithFieldRadius(radius float32) ForceFieldBuilderOption {
	return func(f *forceFieldImpl) {
		f.radius = radius
	}
}
