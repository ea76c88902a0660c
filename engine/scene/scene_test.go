package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hucancode/mjolnir/common"
	"github.com/hucancode/mjolnir/engine/camera"
	"github.com/hucancode/mjolnir/engine/handle"
	"github.com/hucancode/mjolnir/engine/light"
	"github.com/hucancode/mjolnir/engine/particle"
)

type collectingVisitor struct {
	lights    []light.Light
	draws     []Instance
	shadows   []Instance
	emitters  []particle.Emitter
	fields    []particle.ForceField
	lightPos  []mgl32.Mat4
}

func (c *collectingVisitor) VisitLight(transform mgl32.Mat4, l light.Light) {
	c.lightPos = append(c.lightPos, transform)
	c.lights = append(c.lights, l)
}
func (c *collectingVisitor) VisitDraw(inst Instance)          { c.draws = append(c.draws, inst) }
func (c *collectingVisitor) VisitShadowCaster(inst Instance)  { c.shadows = append(c.shadows, inst) }
func (c *collectingVisitor) VisitEmitter(e particle.Emitter)  { c.emitters = append(c.emitters, e) }
func (c *collectingVisitor) VisitForceField(f particle.ForceField) {
	c.fields = append(c.fields, f)
}

func unitMesh() MeshAttachment {
	return MeshAttachment{
		Mesh:          handle.Handle{Index: 1, Generation: 1},
		Material:      handle.Handle{Index: 2, Generation: 1},
		CastShadow:    true,
		ReceiveShadow: true,
		Bounds:        common.NewAABB(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}),
	}
}

func TestSpawnAndTraversalOrder(t *testing.T) {
	s := NewScene("test", camera.NewCamera())

	a := s.Spawn(mgl32.Translate3D(1, 0, 0), unitMesh())
	b := s.Spawn(mgl32.Translate3D(2, 0, 0), unitMesh())
	require.Equal(t, 2, s.Count())

	v := &collectingVisitor{}
	s.EachDraw(v)
	require.Len(t, v.draws, 2)
	assert.Equal(t, a, v.draws[0].NodeID)
	assert.Equal(t, b, v.draws[1].NodeID)
}

func TestAttachmentKindDispatch(t *testing.T) {
	s := NewScene("test", camera.NewCamera())

	s.Spawn(mgl32.Ident4(), unitMesh())
	s.Spawn(mgl32.Translate3D(0, 5, 0),
		LightAttachment{Source: light.NewLight(light.LightTypePoint, light.WithRange(10))},
	)
	s.Spawn(mgl32.Ident4(),
		LightAttachment{Source: light.NewLight(light.LightTypeDirectional)},
		EmitterAttachment{Source: particle.NewEmitter()},
	)
	s.Spawn(mgl32.Ident4(), ForceFieldAttachment{Source: particle.NewForceField()})

	v := &collectingVisitor{}
	s.EachLight(v)
	s.EachDraw(v)
	s.EachParticle(v)

	assert.Len(t, v.lights, 2)
	assert.Len(t, v.draws, 1)
	assert.Len(t, v.emitters, 1)
	assert.Len(t, v.fields, 1)
}

func TestLightAttachmentKindFollowsLightType(t *testing.T) {
	point := LightAttachment{Source: light.NewLight(light.LightTypePoint)}
	spot := LightAttachment{Source: light.NewLight(light.LightTypeSpot)}
	dir := LightAttachment{Source: light.NewLight(light.LightTypeDirectional)}
	assert.Equal(t, AttachmentLightPoint, point.Kind())
	assert.Equal(t, AttachmentLightSpot, spot.Kind())
	assert.Equal(t, AttachmentLightDirectional, dir.Kind())
}

func TestShadowTraversalSkipsNonCasters(t *testing.T) {
	s := NewScene("test", camera.NewCamera())

	caster := unitMesh()
	s.Spawn(mgl32.Ident4(), caster)

	noShadow := unitMesh()
	noShadow.CastShadow = false
	s.Spawn(mgl32.Ident4(), noShadow)

	transparent := unitMesh()
	transparent.Transparent = true
	s.Spawn(mgl32.Ident4(), transparent)

	v := &collectingVisitor{}
	s.EachShadowCaster(v)
	assert.Len(t, v.shadows, 1)

	v2 := &collectingVisitor{}
	s.EachDraw(v2)
	assert.Len(t, v2.draws, 3, "all meshes still draw")
}

func TestInstanceBoundsAreWorldSpace(t *testing.T) {
	s := NewScene("test", camera.NewCamera())
	s.Spawn(mgl32.Translate3D(10, 0, 0), unitMesh())

	v := &collectingVisitor{}
	s.EachDraw(v)
	require.Len(t, v.draws, 1)
	assert.InDelta(t, 9, v.draws[0].Bounds.Min.X(), 1e-5)
	assert.InDelta(t, 11, v.draws[0].Bounds.Max.X(), 1e-5)
}

func TestRemoveSwapKeepsLookupsConsistent(t *testing.T) {
	s := NewScene("test", camera.NewCamera())
	a := s.Spawn(mgl32.Translate3D(1, 0, 0), unitMesh())
	b := s.Spawn(mgl32.Translate3D(2, 0, 0), unitMesh())
	c := s.Spawn(mgl32.Translate3D(3, 0, 0), unitMesh())

	s.Remove(a)
	assert.Equal(t, 2, s.Count())

	_, ok := s.Transform(a)
	assert.False(t, ok)

	mb, ok := s.Transform(b)
	require.True(t, ok)
	assert.Equal(t, float32(2), mb[12])

	mc, ok := s.Transform(c)
	require.True(t, ok)
	assert.Equal(t, float32(3), mc[12])

	// Removing twice is a no-op.
	s.Remove(a)
	assert.Equal(t, 2, s.Count())
}

func TestEachParticleSyncsPositions(t *testing.T) {
	s := NewScene("test", camera.NewCamera())
	e := particle.NewEmitter()
	id := s.Spawn(mgl32.Translate3D(4, 5, 6), EmitterAttachment{Source: e})

	v := &collectingVisitor{}
	s.EachParticle(v)
	require.Len(t, v.emitters, 1)
	assert.Equal(t, mgl32.Vec3{4, 5, 6}, e.Position())

	s.SetTransform(id, mgl32.Translate3D(7, 8, 9))
	s.EachParticle(&collectingVisitor{})
	assert.Equal(t, mgl32.Vec3{7, 8, 9}, e.Position())
}
