package particle

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitterAccumulatorCarriesFraction(t *testing.T) {
	e := NewEmitter(WithSpawnRate(10))

	// 10/s at 60fps is a fraction per frame; six frames accumulate one whole
	// particle.
	total := 0
	for range 6 {
		total += e.Accumulate(1.0 / 60.0)
	}
	assert.Equal(t, 1, total)

	// A full second emits the rate exactly (within one particle of carry).
	total = 0
	for range 60 {
		total += e.Accumulate(1.0 / 60.0)
	}
	assert.InDelta(t, 10, total, 1)
}

func TestEmitterDisabledSpawnsNothing(t *testing.T) {
	e := NewEmitter(WithSpawnRate(1000))
	e.SetEnabled(false)
	assert.Equal(t, 0, e.Accumulate(1))
	e.SetEnabled(true)
	assert.Equal(t, 1000, e.Accumulate(1))
}

func TestPoolSpawnClampsToCapacity(t *testing.T) {
	p := NewPool(100)
	granted := p.Spawn(80, 1)
	assert.Equal(t, 80, granted)
	assert.Equal(t, 80, p.Alive())

	granted = p.Spawn(50, 1)
	assert.Equal(t, 20, granted, "spawn clamps to free capacity")
	assert.Equal(t, 100, p.Alive())

	assert.Equal(t, 0, p.Spawn(1, 1), "full pool grants nothing")
}

func TestPoolAdvanceRetiresExpiredBatches(t *testing.T) {
	p := NewPool(1000)
	p.Spawn(10, 0.5)
	p.Spawn(20, 1.5)
	require.Equal(t, 30, p.Alive())

	p.Advance(1)
	assert.Equal(t, 20, p.Alive(), "short-lived batch retired")

	p.Advance(1)
	assert.Equal(t, 0, p.Alive())
}

func TestPoolReset(t *testing.T) {
	p := NewPool(1000)
	p.Spawn(500, 10)
	p.Reset()
	assert.Equal(t, 0, p.Alive())
	assert.Equal(t, 500, p.Spawn(500, 10), "capacity fully reclaimed")
}

func TestGPULayoutSizes(t *testing.T) {
	assert.Equal(t, 48, (&GPUParticle{}).Size())
	assert.Equal(t, 32, (&GPUForceField{}).Size())
	assert.Equal(t, 32, (&GPUSimParams{}).Size())
	assert.Len(t, (&GPUSimParams{}).Marshal(), 32)
}

func TestMarshalForceFieldsBudget(t *testing.T) {
	fields := make([]ForceField, MaxGPUForceFields+4)
	for i := range fields {
		fields[i] = NewForceField(
			WithFieldPosition(mgl32.Vec3{float32(i), 0, 0}),
			WithFieldStrength(2),
			WithFieldRadius(5),
		)
	}
	buf, n := MarshalForceFields(fields)
	assert.Equal(t, MaxGPUForceFields, n)
	assert.Len(t, buf, MaxGPUForceFields*(&GPUForceField{}).Size())
}
