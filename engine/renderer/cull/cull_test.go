package cull

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hucancode/mjolnir/common"
)

// testFrustum returns a frustum for a camera at the origin looking down -Z.
func testFrustum() common.Frustum {
	proj := mgl32.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	return common.FrustumFromMatrix(proj.Mul4(view))
}

func boxAt(center mgl32.Vec3, half float32) common.AABB {
	h := mgl32.Vec3{half, half, half}
	return common.AABB{Min: center.Sub(h), Max: center.Add(h)}
}

func TestContainedBoxVisible(t *testing.T) {
	f := testFrustum()
	assert.True(t, f.IntersectsAABB(boxAt(mgl32.Vec3{0, 0, -10}, 1)))
}

func TestFarOutsideBoxCulled(t *testing.T) {
	f := testFrustum()
	assert.False(t, f.IntersectsAABB(boxAt(mgl32.Vec3{0, 0, 50}, 1)), "behind the camera")
	assert.False(t, f.IntersectsAABB(boxAt(mgl32.Vec3{0, 0, -500}, 1)), "beyond the far plane")
	assert.False(t, f.IntersectsAABB(boxAt(mgl32.Vec3{-500, 0, -10}, 1)), "far off to the left")
}

// TestStraddlingBoxesConservativelyVisible builds one box per frustum plane,
// centered on the plane itself, and requires each to be marked visible: no
// false negatives are permitted.
func TestStraddlingBoxesConservativelyVisible(t *testing.T) {
	f := testFrustum()

	// A point well inside the frustum, projected onto each plane, gives a
	// point on that plane; a box centered there straddles it.
	inside := mgl32.Vec3{0, 0, -10}
	for i := range f.Planes {
		p := f.Planes[i]
		dist := p.DistanceTo(inside)
		onPlane := inside.Sub(p.Normal.Mul(dist))
		box := boxAt(onPlane, 0.5)
		assert.True(t, f.IntersectsAABB(box), "box straddling plane %d must stay visible", i)
	}
}

func TestCPUCullFillsBitmap(t *testing.T) {
	stage := NewStage(2, 1, WithCullWorkers(2))

	bounds := []common.AABB{
		boxAt(mgl32.Vec3{0, 0, -10}, 1),   // visible
		boxAt(mgl32.Vec3{0, 0, 50}, 1),    // behind camera
		boxAt(mgl32.Vec3{2, 1, -20}, 1),   // visible
		boxAt(mgl32.Vec3{900, 0, -10}, 1), // outside
	}

	res, err := stage.Cull(0, 0, testFrustum(), bounds)
	require.NoError(t, err)
	assert.True(t, res.Visible(0))
	assert.False(t, res.Visible(1))
	assert.True(t, res.Visible(2))
	assert.False(t, res.Visible(3))
	assert.Equal(t, 2, res.VisibleCount())
}

// mockDispatcher stands in for the GPU compute path; it reproduces the
// shader's plane test so the cross-validation property is meaningful.
type mockDispatcher struct {
	calls int
	fail  error
}

func (m *mockDispatcher) Dispatch(slotIndex, viewSlot int, frustum common.Frustum, bounds []common.AABB, out *Result) error {
	m.calls++
	if m.fail != nil {
		return m.fail
	}
	for i := range bounds {
		if frustum.IntersectsAABB(bounds[i]) {
			out.SetVisible(i)
		}
	}
	return nil
}

// TestGPUAndCPUPathsAgree cross-validates the two culling paths over
// randomized boxes: GPU-path visibility must be a superset of the CPU
// conservative test, and for this shader model they agree exactly.
func TestGPUAndCPUPathsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	f := testFrustum()

	bounds := make([]common.AABB, 500)
	for i := range bounds {
		center := mgl32.Vec3{
			rng.Float32()*200 - 100,
			rng.Float32()*200 - 100,
			rng.Float32()*200 - 100,
		}
		bounds[i] = boxAt(center, rng.Float32()*5+0.1)
	}

	gpuStage := NewStage(1, 1, WithDispatcher(&mockDispatcher{}))
	cpuStage := NewStage(1, 1, WithCullWorkers(4))

	gpuRes, err := gpuStage.Cull(0, 0, f, bounds)
	require.NoError(t, err)
	cpuRes, err := cpuStage.Cull(0, 0, f, bounds)
	require.NoError(t, err)

	for i := range bounds {
		if cpuRes.Visible(i) {
			assert.True(t, gpuRes.Visible(i), "instance %d: GPU path dropped a CPU-visible instance", i)
		}
		assert.Equal(t, cpuRes.Visible(i), gpuRes.Visible(i), "instance %d", i)
	}
}

func TestComputeDisabledFallsBackToCPU(t *testing.T) {
	d := &mockDispatcher{}
	stage := NewStage(1, 1, WithDispatcher(d), WithComputeDisabled())

	_, err := stage.Cull(0, 0, testFrustum(), []common.AABB{boxAt(mgl32.Vec3{0, 0, -5}, 1)})
	require.NoError(t, err)
	assert.Zero(t, d.calls, "compute disabled must not touch the dispatcher")
}

func TestResultsDoubleBufferedPerSlot(t *testing.T) {
	stage := NewStage(2, 3)
	a := stage.Result(0, 1)
	b := stage.Result(1, 1)
	assert.NotSame(t, a, b, "frame slots must not share visibility buffers")
}

func TestLargeSceneWordPartitioning(t *testing.T) {
	stage := NewStage(1, 1, WithCullWorkers(4))
	f := testFrustum()

	// Enough instances to force the parallel path; even indices visible.
	bounds := make([]common.AABB, 5000)
	for i := range bounds {
		if i%2 == 0 {
			bounds[i] = boxAt(mgl32.Vec3{0, 0, -10}, 1)
		} else {
			bounds[i] = boxAt(mgl32.Vec3{0, 0, 100}, 1)
		}
	}

	res, err := stage.Cull(0, 0, f, bounds)
	require.NoError(t, err)
	assert.Equal(t, 2500, res.VisibleCount())
	for i := 0; i < len(bounds); i += 499 {
		assert.Equal(t, i%2 == 0, res.Visible(i), "instance %d", i)
	}
}

func TestResultBitmapEdges(t *testing.T) {
	r := NewResult(33)
	r.MarkAll()
	assert.Equal(t, 33, r.VisibleCount())
	assert.False(t, r.Visible(33), "out of range index")
	assert.False(t, r.Visible(-1))

	r.Clear()
	assert.Zero(t, r.VisibleCount())
	r.SetVisible(32)
	assert.True(t, r.Visible(32))
	assert.Equal(t, 1, r.VisibleCount())
}
