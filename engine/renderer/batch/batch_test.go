package batch

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hucancode/mjolnir/engine/handle"
	"github.com/hucancode/mjolnir/engine/renderer/cull"
	"github.com/hucancode/mjolnir/engine/renderer/material"
	"github.com/hucancode/mjolnir/engine/renderer/pass"
	"github.com/hucancode/mjolnir/engine/scene"
)

// tableResolver backs the Resolver with real handle tables, matching how the
// renderer wires it.
type tableResolver struct {
	materials *handle.Table[material.Material]
	meshes    *handle.Table[struct{}]
}

func newTableResolver() *tableResolver {
	return &tableResolver{
		materials: &handle.Table[material.Material]{},
		meshes:    &handle.Table[struct{}]{},
	}
}

func (r *tableResolver) Material(h handle.Handle) (material.Material, bool) {
	m, ok := r.materials.Get(h)
	if !ok {
		return nil, false
	}
	return *m, true
}

func (r *tableResolver) MeshLive(h handle.Handle) bool {
	_, ok := r.meshes.Get(h)
	return ok
}

func instanceWith(id uint64, mesh, mat handle.Handle) scene.Instance {
	return scene.Instance{
		NodeID:    id,
		Transform: mgl32.Translate3D(float32(id), 0, 0),
		Mesh:      mesh,
		Material:  mat,
	}
}

func TestBuildGroupsByMaterial(t *testing.T) {
	r := newTableResolver()
	matA := r.materials.Alloc(material.NewMaterial("a"))
	matB := r.materials.Alloc(material.NewMaterial("b"))
	mesh := r.meshes.Alloc(struct{}{})

	instances := []scene.Instance{
		instanceWith(1, mesh, matA),
		instanceWith(2, mesh, matB),
		instanceWith(3, mesh, matA),
	}

	b := NewBuilder(r)
	groups := b.Build(pass.GBuffer, instances, nil)
	require.Len(t, groups, 2)

	assert.Equal(t, matA, groups[0].Material, "first-seen order preserved")
	assert.Len(t, groups[0].Draws, 2)
	assert.Equal(t, matB, groups[1].Material)
	assert.Len(t, groups[1].Draws, 1)
	assert.Equal(t, 0, b.Skipped())
}

func TestBuildHonorsVisibility(t *testing.T) {
	r := newTableResolver()
	mat := r.materials.Alloc(material.NewMaterial("m"))
	mesh := r.meshes.Alloc(struct{}{})

	instances := []scene.Instance{
		instanceWith(1, mesh, mat),
		instanceWith(2, mesh, mat),
		instanceWith(3, mesh, mat),
	}

	vis := cull.NewResult(3)
	vis.SetVisible(0)
	vis.SetVisible(2)

	b := NewBuilder(r)
	groups := b.Build(pass.GBuffer, instances, vis)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Draws, 2)
	assert.Equal(t, float32(1), groups[0].Draws[0].Transform[12])
	assert.Equal(t, float32(3), groups[0].Draws[1].Transform[12])
}

func TestBuildSkipsUnresolvableHandles(t *testing.T) {
	r := newTableResolver()
	mat := r.materials.Alloc(material.NewMaterial("m"))
	mesh := r.meshes.Alloc(struct{}{})

	stale := r.meshes.Alloc(struct{}{})
	r.meshes.Free(stale)

	instances := []scene.Instance{
		instanceWith(1, mesh, mat),
		instanceWith(2, stale, mat),          // dead mesh
		instanceWith(3, mesh, handle.Nil),    // nil material
		instanceWith(4, handle.Nil, mat),     // nil mesh
	}

	b := NewBuilder(r)
	groups := b.Build(pass.GBuffer, instances, nil)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Draws, 1)
	assert.Equal(t, 3, b.Skipped())
}

func TestBuildRoutesTransparency(t *testing.T) {
	r := newTableResolver()
	mat := r.materials.Alloc(material.NewMaterial("m"))
	mesh := r.meshes.Alloc(struct{}{})

	opaque := instanceWith(1, mesh, mat)
	blended := instanceWith(2, mesh, mat)
	blended.Transparent = true
	instances := []scene.Instance{opaque, blended}

	b := NewBuilder(r)

	gbuffer := b.Build(pass.GBuffer, instances, nil)
	require.Len(t, gbuffer, 1)
	require.Len(t, gbuffer[0].Draws, 1)
	assert.Equal(t, float32(1), gbuffer[0].Draws[0].Transform[12], "only the opaque instance")

	transparent := b.Build(pass.Transparent, instances, nil)
	require.Len(t, transparent, 1)
	assert.Len(t, transparent[0].Draws, 1)
}

func TestBuildReusesBackingSlices(t *testing.T) {
	r := newTableResolver()
	mat := r.materials.Alloc(material.NewMaterial("m"))
	mesh := r.meshes.Alloc(struct{}{})

	instances := []scene.Instance{instanceWith(1, mesh, mat), instanceWith(2, mesh, mat)}

	b := NewBuilder(r)
	first := b.Build(pass.GBuffer, instances, nil)
	require.Len(t, first, 1)
	firstCap := cap(first[0].Draws)

	second := b.Build(pass.GBuffer, instances, nil)
	require.Len(t, second, 1)
	assert.Len(t, second[0].Draws, 2)
	assert.Equal(t, firstCap, cap(second[0].Draws), "draw slice recycled across frames")
}
