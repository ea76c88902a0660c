package renderer

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hucancode/mjolnir/common"
	"github.com/hucancode/mjolnir/engine/camera"
	"github.com/hucancode/mjolnir/engine/handle"
	"github.com/hucancode/mjolnir/engine/light"
	"github.com/hucancode/mjolnir/engine/particle"
	"github.com/hucancode/mjolnir/engine/renderer/barrier"
	"github.com/hucancode/mjolnir/engine/renderer/batch"
	"github.com/hucancode/mjolnir/engine/renderer/cull"
	"github.com/hucancode/mjolnir/engine/renderer/frame"
	"github.com/hucancode/mjolnir/engine/renderer/material"
	"github.com/hucancode/mjolnir/engine/renderer/pass"
	"github.com/hucancode/mjolnir/engine/renderer/pipeline"
	"github.com/hucancode/mjolnir/engine/renderer/target"
	"github.com/hucancode/mjolnir/engine/scene"
)

type mockFence struct {
	signaled bool
}

func (f *mockFence) Wait(timeout time.Duration) error {
	if !f.signaled {
		return frame.ErrFenceTimeout
	}
	return nil
}

func (f *mockFence) Reset() error {
	f.signaled = false
	return nil
}

type mockCommands struct {
	resets int
}

func (c *mockCommands) Reset() error {
	c.resets++
	return nil
}

type mockRecorder struct {
	barriers int
}

func (m *mockRecorder) PipelineBarrier(src, dst barrier.Stage, images []barrier.ImageTransition, buffers []barrier.BufferTransition) {
	m.barriers++
}

type mockFactory struct {
	images handle.Table[string]
}

func (f *mockFactory) CreateColorTarget(width, height int) (handle.Handle, error) {
	return f.images.Alloc("color"), nil
}

func (f *mockFactory) CreateDepthTarget(width, height int) (handle.Handle, error) {
	return f.images.Alloc("depth"), nil
}

func (f *mockFactory) CreateShadowMap(resolution int) (handle.Handle, error) {
	return f.images.Alloc("shadow2d"), nil
}

func (f *mockFactory) CreateShadowCube(resolution int) (handle.Handle, error) {
	return f.images.Alloc("shadowcube"), nil
}

func (f *mockFactory) DestroyTarget(h handle.Handle) {
	f.images.Free(h)
}

// mockBackend simulates a GPU that completes every submission instantly:
// Submit re-signals the slot's fence, so Acquire never blocks.
type mockBackend struct {
	fences    []*mockFence
	commands  []*mockCommands
	recorder  *mockRecorder
	factory   *mockFactory
	meshes    handle.Table[int]
	pipelines handle.Table[string]

	acquireErr error // returned by the next AcquireImage, then cleared
	presentErr error // returned by the next Present, then cleared

	passCounts map[pass.Kind]int
	draws      int
	instances  int
	dispatches int
	blits      int
	submits    int
	presents   int
	rearms     int
	uploads    int
}

func newMockBackend(slots int) *mockBackend {
	b := &mockBackend{
		recorder:   &mockRecorder{},
		factory:    &mockFactory{},
		passCounts: make(map[pass.Kind]int),
	}
	for i := 0; i < slots; i++ {
		b.fences = append(b.fences, &mockFence{signaled: true})
		b.commands = append(b.commands, &mockCommands{})
	}
	return b
}

func (b *mockBackend) SlotCount() int                         { return len(b.fences) }
func (b *mockBackend) Fence(slot int) frame.Fence             { return b.fences[slot] }
func (b *mockBackend) Commands(slot int) frame.CommandContext { return b.commands[slot] }
func (b *mockBackend) CullDispatcher() cull.Dispatcher        { return nil }
func (b *mockBackend) TargetFactory() target.Factory          { return b.factory }

func (b *mockBackend) RearmSlot(slot int) error {
	b.rearms++
	b.fences[slot].signaled = true
	return nil
}

func (b *mockBackend) AcquireImage(slot int) (uint32, error) {
	if err := b.acquireErr; err != nil {
		b.acquireErr = nil
		return 0, err
	}
	return uint32(slot), nil
}

func (b *mockBackend) BeginCommands(slot int) (barrier.Recorder, error) {
	return b.recorder, nil
}

func (b *mockBackend) BeginPass(slot int, kind pass.Kind, viewSlot int, imageIndex uint32, targets *target.Set, tgt handle.Handle) error {
	b.passCounts[kind]++
	return nil
}

func (b *mockBackend) RegisterPipelines(cache pipeline.Cache) error {
	for _, kind := range []pass.Kind{pass.Shadow, pass.DepthPrepass, pass.GBuffer, pass.Transparent} {
		key := pipeline.Key{Pass: kind}.Normalize()
		cache.Register(key, b.pipelines.Alloc(key.String()))
	}
	return nil
}

func (b *mockBackend) Draw(slot int, p handle.Handle, group batch.Group) error {
	b.draws++
	b.instances += len(group.Draws)
	return nil
}

func (b *mockBackend) DispatchParticleSim(slot int, params particle.GPUSimParams, fields []byte) error {
	b.dispatches++
	return nil
}

func (b *mockBackend) DrawParticles(slot int, alive int) error { return nil }

func (b *mockBackend) RecordEffect(slot int, effect Effect, src, dst handle.Handle) error {
	return nil
}

func (b *mockBackend) EndPass(slot int) error { return nil }

func (b *mockBackend) BlitToSwapchain(slot int, src handle.Handle, imageIndex uint32) error {
	b.blits++
	return nil
}

func (b *mockBackend) UploadUniforms(slot int, data []byte) error {
	b.uploads = len(data)
	return nil
}

func (b *mockBackend) Submit(slot int, imageIndex uint32) error {
	b.submits++
	b.fences[slot].signaled = true
	return nil
}

func (b *mockBackend) Present(slot int, imageIndex uint32) error {
	b.presents++
	if err := b.presentErr; err != nil {
		b.presentErr = nil
		return err
	}
	return nil
}

func (b *mockBackend) RecreateSwapchain(width, height int) (int, int, error) {
	return width, height, nil
}

func (b *mockBackend) CreateMesh(vertexData, indexData []byte, indexCount int) (handle.Handle, error) {
	return b.meshes.Alloc(indexCount), nil
}

func (b *mockBackend) DestroyMesh(h handle.Handle) { b.meshes.Free(h) }

func (b *mockBackend) MeshLive(h handle.Handle) bool {
	_, ok := b.meshes.Get(h)
	return ok
}

func (b *mockBackend) LiveMeshes() int { return b.meshes.Live() }
func (b *mockBackend) WaitIdle() error { return nil }
func (b *mockBackend) Destroy()        {}

func newTestRenderer(t *testing.T, backend *mockBackend) Renderer {
	t.Helper()
	r, err := NewRenderer(backend, 800, 600,
		WithFenceTimeout(time.Second),
		WithShadowResolution(256),
		WithCullWorkers(2))
	require.NoError(t, err)
	return r
}

func buildTestScene(t *testing.T, r Renderer, instanceCount int) (scene.Scene, handle.Handle) {
	t.Helper()
	cam := camera.NewCamera(
		camera.WithPosition(mgl32.Vec3{0, 8, 14}),
		camera.WithTarget(mgl32.Vec3{0, 0, -8}),
		camera.WithAspect(800.0/600.0),
		camera.WithFar(200))
	sc := scene.NewScene("test", cam)

	mesh, err := r.CreateMesh(make([]byte, 64), make([]byte, 24), 6)
	require.NoError(t, err)
	mat := r.CreateMaterial(material.NewMaterial("gray",
		material.WithBaseColor(mgl32.Vec4{0.6, 0.6, 0.6, 1})))

	bounds := common.NewAABB(mgl32.Vec3{-0.5, -0.5, -0.5}, mgl32.Vec3{0.5, 0.5, 0.5})
	for i := 0; i < instanceCount; i++ {
		tf := mgl32.Translate3D(float32(i%10)*2-9, 0.5, -float32(i/10)*2-4)
		sc.Spawn(tf, scene.MeshAttachment{
			Mesh:          mesh,
			Material:      mat,
			CastShadow:    true,
			ReceiveShadow: true,
			Bounds:        bounds,
		})
	}

	sc.Spawn(mgl32.Ident4(), scene.LightAttachment{
		Source: light.NewLight(light.LightTypeDirectional,
			light.WithDirection(mgl32.Vec3{-0.4, -1, -0.3}),
			light.WithIntensity(2)),
	})
	sc.Spawn(mgl32.Translate3D(0, 6, -8), scene.LightAttachment{
		Source: light.NewLight(light.LightTypePoint,
			light.WithRange(40),
			light.WithIntensity(30),
			light.WithShadows()),
	})
	return sc, mesh
}

func TestRenderFrameEndToEnd(t *testing.T) {
	backend := newMockBackend(2)
	r := newTestRenderer(t, backend)
	defer r.Destroy()

	sc, _ := buildTestScene(t, r, 50)

	const frames = 120
	meshBaseline := backend.LiveMeshes()
	for i := 0; i < frames; i++ {
		err := r.RenderFrame(sc, 1.0/60.0)
		require.NoError(t, err, "frame %d", i)
		assert.False(t, IsFatal(err))
		assert.Equal(t, meshBaseline, backend.LiveMeshes(), "frame %d leaked meshes", i)
	}

	stats := r.Stats()
	assert.Equal(t, uint64(frames), stats.FrameIndex)
	assert.Equal(t, 1, stats.ShadowCasters)
	assert.Zero(t, stats.SkippedDraws)
	assert.Zero(t, stats.SkippedGroups)

	assert.Equal(t, frames, backend.submits)
	assert.Equal(t, frames, backend.presents)
	assert.Equal(t, frames, backend.blits)
	assert.Equal(t, frames, backend.dispatches)
	assert.Zero(t, backend.rearms)

	// one point light renders all six cube faces every frame
	assert.Equal(t, frames*light.CubeFaces, backend.passCounts[pass.Shadow])
	assert.Equal(t, frames, backend.passCounts[pass.GBuffer])
	assert.Equal(t, frames, backend.passCounts[pass.Lighting])
	assert.Positive(t, backend.instances)
}

func TestRenderFrameSkipsMissingMesh(t *testing.T) {
	backend := newMockBackend(2)
	r := newTestRenderer(t, backend)
	defer r.Destroy()

	sc, _ := buildTestScene(t, r, 3)

	stale, err := r.CreateMesh(make([]byte, 64), make([]byte, 24), 6)
	require.NoError(t, err)
	r.DestroyMesh(stale)
	sc.Spawn(mgl32.Translate3D(0, 0.5, -6), scene.MeshAttachment{
		Mesh:   stale,
		Bounds: common.NewAABB(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}),
	})

	require.NoError(t, r.RenderFrame(sc, 1.0/60.0))
	assert.Positive(t, r.Stats().SkippedDraws)
}

func TestRenderFrameAbortsOnSwapchainOutOfDate(t *testing.T) {
	backend := newMockBackend(2)
	r := newTestRenderer(t, backend)
	defer r.Destroy()

	sc, _ := buildTestScene(t, r, 5)

	backend.acquireErr = ErrSwapchainOutOfDate
	err := r.RenderFrame(sc, 1.0/60.0)
	require.ErrorIs(t, err, ErrSwapchainOutOfDate)
	assert.True(t, IsRecoverable(err))
	assert.False(t, IsFatal(err))
	assert.Equal(t, 1, backend.rearms, "aborted slot must be re-armed")
	assert.Zero(t, backend.submits)

	require.NoError(t, r.Resize(1024, 768))
	require.NoError(t, r.RenderFrame(sc, 1.0/60.0))
	assert.Equal(t, uint64(1), r.Stats().FrameIndex)
}

func TestRenderFramePresentSuboptimalStillAdvances(t *testing.T) {
	backend := newMockBackend(2)
	r := newTestRenderer(t, backend)
	defer r.Destroy()

	sc, _ := buildTestScene(t, r, 5)

	backend.presentErr = ErrSwapchainSuboptimal
	err := r.RenderFrame(sc, 1.0/60.0)
	require.ErrorIs(t, err, ErrSwapchainSuboptimal)
	assert.True(t, IsRecoverable(err))
	assert.Equal(t, uint64(1), r.Stats().FrameIndex, "suboptimal present still completes the frame")

	require.NoError(t, r.RenderFrame(sc, 1.0/60.0))
	assert.Equal(t, uint64(2), r.Stats().FrameIndex)
}

func TestRenderFrameSimulatesParticles(t *testing.T) {
	backend := newMockBackend(2)
	r := newTestRenderer(t, backend)
	defer r.Destroy()

	sc, _ := buildTestScene(t, r, 5)
	sc.Spawn(mgl32.Translate3D(0, 1, -6), scene.EmitterAttachment{
		Source: particle.NewEmitter(
			particle.WithSpawnRate(600),
			particle.WithLifetime(5)),
	})
	sc.Spawn(mgl32.Translate3D(2, 1, -6), scene.ForceFieldAttachment{
		Source: particle.NewForceField(
			particle.WithFieldStrength(-4),
			particle.WithFieldRadius(3)),
	})

	for i := 0; i < 10; i++ {
		require.NoError(t, r.RenderFrame(sc, 1.0/60.0))
	}
	assert.Positive(t, r.Stats().ParticlesAlive)
	assert.Equal(t, 10, backend.dispatches)
}

func TestRenderFrameMaterialLifecycle(t *testing.T) {
	backend := newMockBackend(2)
	r := newTestRenderer(t, backend)
	defer r.Destroy()

	m := material.NewMaterial("temp")
	h := r.CreateMaterial(m)
	got, ok := r.Material(h)
	require.True(t, ok)
	assert.Equal(t, "temp", got.Name())
	assert.Equal(t, 1, r.Stats().LiveMaterials)

	r.DestroyMaterial(h)
	_, ok = r.Material(h)
	assert.False(t, ok)
	assert.Zero(t, r.Stats().LiveMaterials)
}

func TestNewRendererRequiresBackend(t *testing.T) {
	_, err := NewRenderer(nil, 800, 600)
	require.Error(t, err)
}
