package renderer

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"

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

// DefaultUniformRingCapacity sizes each frame slot's uniform ring. The camera
// block, every view-slot block, and the light buffer together stay well under
// 64 KiB; the default leaves generous headroom for future per-frame data.
const DefaultUniformRingCapacity = 1 << 16

// defaultGravity is the constant acceleration applied by the particle
// simulation, in world units per second squared.
var defaultGravity = [3]float32{0, -9.8, 0}

// target states the pass schedule moves resources between.
var (
	stateDepthWrite = barrier.State{
		Stage:  barrier.StageEarlyFragmentTests,
		Access: barrier.AccessDepthStencilWrite,
		Layout: barrier.LayoutDepthStencilAttachment,
	}
	stateColorWrite = barrier.State{
		Stage:  barrier.StageColorAttachmentOutput,
		Access: barrier.AccessColorAttachmentWrite,
		Layout: barrier.LayoutColorAttachment,
	}
	stateShaderRead = barrier.State{
		Stage:  barrier.StageFragmentShader,
		Access: barrier.AccessShaderRead,
		Layout: barrier.LayoutShaderReadOnly,
	}
	stateTransferSrc = barrier.State{
		Stage:  barrier.StageTransfer,
		Access: barrier.AccessTransferRead,
		Layout: barrier.LayoutTransferSrc,
	}
)

// Stats is a per-frame snapshot of renderer counters, exposed for the
// profiler overlay and for tests.
type Stats struct {
	// FrameIndex is the number of frames fully submitted and advanced.
	FrameIndex uint64

	// SkippedDraws counts instances dropped in the last frame because a mesh
	// or material handle did not resolve.
	SkippedDraws int

	// SkippedGroups counts batch groups dropped in the last frame because no
	// pipeline variant was registered for their key.
	SkippedGroups int

	// ShadowCasters is the number of lights granted a shadow budget slot in
	// the last frame.
	ShadowCasters int

	// ParticlesAlive is the live particle count of the last recorded slot.
	ParticlesAlive int

	// LiveMeshes and LiveMaterials are the current resource table sizes.
	LiveMeshes    int
	LiveMaterials int
}

// rendererImpl is the implementation of the Renderer interface.
type rendererImpl struct {
	mu *sync.Mutex

	backend   RendererBackend
	frames    *frame.Manager
	sequencer *pass.Sequencer
	tracker   *barrier.Tracker
	cullStage *cull.Stage
	targets   *target.Manager
	pipelines pipeline.Cache

	materials handle.Table[material.Material]

	// per-slot recording state, indexed by frame slot
	builders []*batch.Builder
	pools    []*particle.Pool

	effects []Effect
	ui      UIRecorder

	// pre-construction config collected from builder options
	fenceTimeout     time.Duration
	ringCapacity     int
	shadowResolution int
	poolCapacity     int
	cullDisabled     bool
	cullWorkers      int

	// per-frame collection scratch, reused across frames
	instances    []scene.Instance
	bounds       []common.AABB
	casters      []scene.Instance
	casterBounds []common.AABB
	records      []light.Record
	emitters     []particle.Emitter
	fields       []particle.ForceField

	// collection context, valid only while RenderFrame runs
	curSet        *target.Set
	focus         mgl32.Vec3
	cameraFrustum common.Frustum
	shadowCount   int

	frameIndex    uint64
	skippedDraws  int
	skippedGroups int
	lastAlive     int
}

// Renderer orchestrates one frame of the deferred pipeline: frame slot
// acquisition, scene collection, visibility culling, the fixed pass schedule,
// and submission. It owns the CPU-side resource tables and drives the GPU
// exclusively through a RendererBackend.
type Renderer interface {
	// RenderFrame records and submits one complete frame of the given scene.
	//
	// A recoverable error (swapchain out-of-date or suboptimal) leaves the
	// renderer consistent; the caller recreates the swapchain via Resize and
	// continues. Errors satisfying IsFatal mean the device is unusable.
	//
	// Parameters:
	//   - s: the scene to render
	//   - dt: seconds elapsed since the previous frame
	//
	// Returns:
	//   - error: nil on success, a recoverable or fatal error otherwise
	RenderFrame(s scene.Scene, dt float32) error

	// Resize recreates the swapchain and all size-dependent render targets
	// at the new surface extent. The GPU is drained first.
	//
	// Parameters:
	//   - width: the new surface width in pixels
	//   - height: the new surface height in pixels
	//
	// Returns:
	//   - error: error if swapchain or target recreation fails
	Resize(width, height int) error

	// CreateMesh uploads vertex and index data to the GPU.
	//
	// Parameters:
	//   - vertexData: raw vertex bytes
	//   - indexData: raw index bytes
	//   - indexCount: the number of indices for draw calls
	//
	// Returns:
	//   - handle.Handle: the mesh handle
	//   - error: error if the upload fails
	CreateMesh(vertexData, indexData []byte, indexCount int) (handle.Handle, error)

	// DestroyMesh releases a mesh's GPU buffers. Stale handles are a no-op.
	//
	// Parameters:
	//   - h: the mesh handle
	DestroyMesh(h handle.Handle)

	// CreateMaterial registers a material and returns its handle.
	//
	// Parameters:
	//   - m: the material (must not be nil)
	//
	// Returns:
	//   - handle.Handle: the material handle
	CreateMaterial(m material.Material) handle.Handle

	// DestroyMaterial releases a material handle. Stale handles are a no-op.
	//
	// Parameters:
	//   - h: the material handle
	DestroyMaterial(h handle.Handle)

	// Material resolves a material handle.
	//
	// Parameters:
	//   - h: the material handle
	//
	// Returns:
	//   - material.Material: the material
	//   - bool: false if the handle is stale or nil
	Material(h handle.Handle) (material.Material, bool)

	// MeshLive reports whether a mesh handle resolves to live GPU buffers.
	//
	// Parameters:
	//   - h: the mesh handle
	//
	// Returns:
	//   - bool: true if the mesh is live
	MeshLive(h handle.Handle) bool

	// Pipelines returns the pipeline variant cache. Variants are registered
	// by the backend at construction; additional variants may be registered
	// at any time between frames.
	//
	// Returns:
	//   - pipeline.Cache: the variant cache
	Pipelines() pipeline.Cache

	// Stats returns the most recent frame's counters.
	//
	// Returns:
	//   - Stats: the counter snapshot
	Stats() Stats

	// Backend returns the GPU backend the renderer drives.
	//
	// Returns:
	//   - RendererBackend: the backend
	Backend() RendererBackend

	// Destroy drains the GPU and releases every renderer-owned resource,
	// then destroys the backend. The renderer must not be used afterwards.
	Destroy()
}

var _ Renderer = &rendererImpl{}
var _ batch.Resolver = &rendererImpl{}
var _ scene.LightVisitor = &rendererImpl{}
var _ scene.DrawVisitor = &rendererImpl{}
var _ scene.ShadowVisitor = &rendererImpl{}
var _ scene.ParticleVisitor = &rendererImpl{}

// NewRenderer creates a Renderer over an initialized backend and allocates
// all per-slot recording state: frame slots, uniform rings, render target
// sets, batch builders, and particle pools.
//
// Parameters:
//   - backend: the initialized GPU backend (must not be nil)
//   - width: the initial surface width in pixels
//   - height: the initial surface height in pixels
//   - options: variadic list of RendererBuilderOption functions
//
// Returns:
//   - Renderer: the configured renderer
//   - error: error if any construction step fails
func NewRenderer(backend RendererBackend, width, height int, options ...RendererBuilderOption) (Renderer, error) {
	if backend == nil {
		return nil, errors.New("renderer: backend must not be nil")
	}

	r := &rendererImpl{
		mu:               &sync.Mutex{},
		backend:          backend,
		sequencer:        pass.NewSequencer(),
		tracker:          barrier.NewTracker(),
		pipelines:        pipeline.NewCache(),
		effects:          []Effect{EffectTonemap},
		ringCapacity:     DefaultUniformRingCapacity,
		shadowResolution: light.ShadowMapResolution,
		poolCapacity:     particle.DefaultPoolCapacity,
	}
	for _, opt := range options {
		opt(r)
	}
	if n := len(r.effects); n == 0 || r.effects[n-1] != EffectTonemap {
		r.effects = append(r.effects, EffectTonemap)
	}

	slotCount := backend.SlotCount()
	slots := make([]*frame.Slot, slotCount)
	for i := range slots {
		slots[i] = frame.NewSlot(i, backend.Fence(i), backend.Commands(i), frame.NewRing(r.ringCapacity, 0))
	}
	var frameOpts []frame.ManagerBuilderOption
	if r.fenceTimeout > 0 {
		frameOpts = append(frameOpts, frame.WithFenceTimeout(r.fenceTimeout))
	}
	frames, err := frame.NewManager(slots, frameOpts...)
	if err != nil {
		return nil, err
	}
	r.frames = frames

	cullOpts := []cull.StageBuilderOption{cull.WithDispatcher(backend.CullDispatcher())}
	if r.cullDisabled {
		cullOpts = append(cullOpts, cull.WithComputeDisabled())
	}
	if r.cullWorkers > 0 {
		cullOpts = append(cullOpts, cull.WithCullWorkers(r.cullWorkers))
	}
	r.cullStage = cull.NewStage(slotCount, light.ViewSlotCount, cullOpts...)

	targets, err := target.NewManager(backend.TargetFactory(), slotCount,
		target.WithInvalidator(r.tracker),
		target.WithShadowResolution(r.shadowResolution))
	if err != nil {
		return nil, err
	}
	r.targets = targets
	if err := r.targets.Resize(width, height); err != nil {
		r.targets.Destroy()
		return nil, err
	}

	r.builders = make([]*batch.Builder, slotCount)
	r.pools = make([]*particle.Pool, slotCount)
	for i := 0; i < slotCount; i++ {
		r.builders[i] = batch.NewBuilder(r)
		r.pools[i] = particle.NewPool(r.poolCapacity)
	}

	if err := backend.RegisterPipelines(r.pipelines); err != nil {
		r.targets.Destroy()
		return nil, fmt.Errorf("renderer: pipeline registration: %w", err)
	}
	return r, nil
}

func (r *rendererImpl) RenderFrame(s scene.Scene, dt float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, err := r.frames.Acquire()
	if err != nil {
		return err
	}
	idx := slot.Index()

	imageIndex, err := r.backend.AcquireImage(idx)
	if err != nil {
		return r.abortFrame(idx, err)
	}
	rec, err := r.backend.BeginCommands(idx)
	if err != nil {
		return r.abortFrame(idx, err)
	}

	r.collect(s, idx, dt)

	if err := r.uploadUniforms(slot, s); err != nil {
		return r.abortFrame(idx, err)
	}

	if err := r.recordFrame(idx, imageIndex, rec, dt); err != nil {
		return r.abortFrame(idx, err)
	}

	if err := r.backend.UploadUniforms(idx, slot.Uniforms().Bytes()[:slot.Uniforms().Used()]); err != nil {
		return r.abortFrame(idx, err)
	}
	if err := r.backend.Submit(idx, imageIndex); err != nil {
		return r.abortFrame(idx, err)
	}

	// Present outcomes are reported after the slot advances: a suboptimal or
	// out-of-date swapchain still presented (or consumed) this frame's work,
	// so the round-robin must move on either way.
	presentErr := r.backend.Present(idx, imageIndex)
	r.frameIndex++
	r.lastAlive = r.pools[idx].Alive()
	if err := r.frames.Advance(); err != nil {
		return err
	}
	return presentErr
}

// collect gathers the frame's instances, shadow casters, light records, and
// particle sources from the scene into reused scratch slices.
func (r *rendererImpl) collect(s scene.Scene, idx int, dt float32) {
	r.instances = r.instances[:0]
	r.bounds = r.bounds[:0]
	r.casters = r.casters[:0]
	r.casterBounds = r.casterBounds[:0]
	r.records = r.records[:0]
	r.emitters = r.emitters[:0]
	r.fields = r.fields[:0]
	r.shadowCount = 0
	r.skippedDraws = 0
	r.skippedGroups = 0

	r.curSet = r.targets.Set(idx)
	r.focus = s.Camera().Target()
	r.cameraFrustum = s.Camera().Frustum()

	s.EachDraw(r)
	s.EachShadowCaster(r)
	s.EachLight(r)
	s.EachParticle(r)

	pool := r.pools[idx]
	pool.Advance(dt)
	for _, e := range r.emitters {
		if n := e.Accumulate(dt); n > 0 {
			pool.Spawn(n, e.Lifetime())
		}
	}
}

func (r *rendererImpl) VisitDraw(inst scene.Instance) {
	r.instances = append(r.instances, inst)
	r.bounds = append(r.bounds, inst.Bounds)
}

func (r *rendererImpl) VisitShadowCaster(inst scene.Instance) {
	r.casters = append(r.casters, inst)
	r.casterBounds = append(r.casterBounds, inst.Bounds)
}

func (r *rendererImpl) VisitLight(_ mgl32.Mat4, l light.Light) {
	if !l.Enabled() {
		return
	}
	shadowIndex := -1
	shadowMap := handle.Nil
	if l.CastsShadows() && r.shadowCount < light.MaxShadowMaps {
		shadowIndex = r.shadowCount
		if l.Type() == light.LightTypePoint {
			shadowMap = r.curSet.ShadowCubes[shadowIndex]
		} else {
			shadowMap = r.curSet.ShadowMaps[shadowIndex]
		}
		r.shadowCount++
	}
	r.records = append(r.records, light.BuildRecord(l, shadowIndex, shadowMap, r.focus))
}

func (r *rendererImpl) VisitEmitter(e particle.Emitter) {
	r.emitters = append(r.emitters, e)
}

func (r *rendererImpl) VisitForceField(f particle.ForceField) {
	r.fields = append(r.fields, f)
}

// uploadUniforms writes the frame's uniform data into the slot's ring in the
// fixed layout the backend binds with dynamic offsets: the camera block
// first, then one view block per view slot (main camera at slot 0, shadow
// faces after), then the light buffer.
func (r *rendererImpl) uploadUniforms(slot *frame.Slot, s scene.Scene) error {
	ring := slot.Uniforms()
	cam := s.Camera()

	camU := camera.ToGPUCameraUniform(cam)
	_, buf, err := ring.Alloc(camU.Size())
	if err != nil {
		return err
	}
	copy(buf, camU.Marshal())

	var views [light.ViewSlotCount]light.GPUViewUniform
	w, _ := r.targets.Extent()
	views[light.MainCameraSlot] = light.ToGPUViewUniform(
		cam.ViewProjectionMatrix(), cam.Position(), cam.Far(), w)

	for i := range r.records {
		lr := &r.records[i]
		if !lr.CastsShadows() {
			continue
		}
		far := lr.Source.Range()
		if lr.Source.Type() == light.LightTypeDirectional {
			far = light.DefaultShadowFar
		}
		for f := 0; f < lr.ViewCount; f++ {
			vs, err := light.ViewSlot(lr.ShadowIndex, f)
			if err != nil {
				return err
			}
			views[vs] = light.ToGPUViewUniform(lr.Views[f], lr.Source.Position(), far, r.shadowResolution)
		}
	}
	for i := range views {
		_, buf, err := ring.Alloc(views[i].Size())
		if err != nil {
			return err
		}
		copy(buf, views[i].Marshal())
	}

	lightData := light.MarshalLightBuffer(r.records, s.AmbientColor())
	_, buf, err = ring.Alloc(len(lightData))
	if err != nil {
		return err
	}
	copy(buf, lightData)
	return nil
}

// recordFrame drives the fixed pass schedule for one frame slot, pairing
// every pass with the resource transitions it requires.
func (r *rendererImpl) recordFrame(idx int, imageIndex uint32, rec barrier.Recorder, dt float32) error {
	set := r.curSet

	// Culling has no GPU pass of its own on the CPU path; the compute path
	// submits inside the dispatcher.
	if err := r.sequencer.Begin(pass.Culling); err != nil {
		return err
	}
	camVis, err := r.cullStage.Cull(idx, light.MainCameraSlot, r.cameraFrustum, r.bounds)
	if err != nil {
		return err
	}
	for i := range r.records {
		lr := &r.records[i]
		if !lr.CastsShadows() {
			continue
		}
		for f := 0; f < lr.ViewCount; f++ {
			vs, err := light.ViewSlot(lr.ShadowIndex, f)
			if err != nil {
				return err
			}
			fr := common.FrustumFromMatrix(lr.Views[f])
			if _, err := r.cullStage.Cull(idx, vs, fr, r.casterBounds); err != nil {
				return err
			}
		}
	}
	if err := r.sequencer.End(pass.Culling); err != nil {
		return err
	}

	// Shadow passes, one per shadow-casting light face.
	for i := range r.records {
		lr := &r.records[i]
		if !lr.CastsShadows() {
			continue
		}
		for f := 0; f < lr.ViewCount; f++ {
			vs, err := light.ViewSlot(lr.ShadowIndex, f)
			if err != nil {
				return err
			}
			r.tracker.Transition(rec, imageRes(lr.ShadowMap), stateDepthWrite)
			err = r.rasterPass(idx, pass.Shadow, vs, imageIndex, lr.ShadowMap, func() error {
				return r.drawGroups(idx, pass.Shadow, r.casters, r.cullStage.Result(idx, vs))
			})
			if err != nil {
				return err
			}
		}
	}

	// Depth prepass fills the scene depth buffer from the main camera.
	r.tracker.Transition(rec, imageRes(set.Depth), stateDepthWrite)
	err = r.rasterPass(idx, pass.DepthPrepass, light.MainCameraSlot, imageIndex, handle.Nil, func() error {
		return r.drawGroups(idx, pass.DepthPrepass, r.instances, camVis)
	})
	if err != nil {
		return err
	}

	// Geometry pass writes all five G-buffer channels.
	r.tracker.TransitionBatch(rec, gbufferResources(set), stateColorWrite)
	err = r.rasterPass(idx, pass.GBuffer, light.MainCameraSlot, imageIndex, handle.Nil, func() error {
		return r.drawGroups(idx, pass.GBuffer, r.instances, camVis)
	})
	if err != nil {
		return err
	}

	// Ambient reads the G-buffer and starts composing into the final target.
	r.tracker.TransitionBatch(rec, gbufferResources(set), stateShaderRead)
	r.tracker.Transition(rec, imageRes(set.FinalColor), stateColorWrite)
	if err := r.rasterPass(idx, pass.Ambient, light.MainCameraSlot, imageIndex, handle.Nil, nil); err != nil {
		return err
	}

	// Lighting samples the shadow maps bound this frame.
	for i := range r.records {
		lr := &r.records[i]
		if lr.CastsShadows() {
			r.tracker.Transition(rec, imageRes(lr.ShadowMap), stateShaderRead)
		}
	}
	if err := r.rasterPass(idx, pass.Lighting, light.MainCameraSlot, imageIndex, handle.Nil, nil); err != nil {
		return err
	}

	// Particle simulation runs on the compute queue timeline between the
	// lighting and transparent passes; buffer hazards are backend-internal.
	if err := r.sequencer.Begin(pass.Particles); err != nil {
		return err
	}
	fieldData, fieldCount := particle.MarshalForceFields(r.fields)
	pool := r.pools[idx]
	params := particle.GPUSimParams{
		DeltaTime:  dt,
		AliveCount: uint32(pool.Alive()),
		FieldCount: uint32(fieldCount),
		Capacity:   uint32(pool.Capacity()),
		Gravity:    defaultGravity,
	}
	if err := r.backend.DispatchParticleSim(idx, params, fieldData); err != nil {
		return err
	}
	if err := r.sequencer.End(pass.Particles); err != nil {
		return err
	}

	// Transparent geometry and particle billboards blend over the lit image.
	err = r.rasterPass(idx, pass.Transparent, light.MainCameraSlot, imageIndex, handle.Nil, func() error {
		if err := r.drawGroups(idx, pass.Transparent, r.instances, camVis); err != nil {
			return err
		}
		if pool.Alive() > 0 {
			return r.backend.DrawParticles(idx, pool.Alive())
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Post-process chain ping-pongs between the final target and its twin.
	cur, other := set.FinalColor, set.PostPing
	if err := r.sequencer.Begin(pass.PostProcess); err != nil {
		return err
	}
	for _, effect := range r.effects {
		r.tracker.Transition(rec, imageRes(cur), stateShaderRead)
		r.tracker.Transition(rec, imageRes(other), stateColorWrite)
		if err := r.backend.RecordEffect(idx, effect, cur, other); err != nil {
			return err
		}
		cur, other = other, cur
	}
	if err := r.sequencer.End(pass.PostProcess); err != nil {
		return err
	}

	// UI overlays straight onto the finished image.
	err = r.rasterPass(idx, pass.UI, light.MainCameraSlot, imageIndex, cur, func() error {
		if r.ui != nil {
			return r.ui.RecordUI(idx, cur)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Present copies the finished image into the acquired swapchain image.
	if err := r.sequencer.Begin(pass.Present); err != nil {
		return err
	}
	r.tracker.Transition(rec, imageRes(cur), stateTransferSrc)
	if err := r.backend.BlitToSwapchain(idx, cur, imageIndex); err != nil {
		return err
	}
	return r.sequencer.End(pass.Present)
}

// rasterPass brackets one raster pass with sequencer and backend begin/end.
// tgt is the explicit output image for passes whose output the target set
// alone does not determine, handle.Nil otherwise.
func (r *rendererImpl) rasterPass(idx int, kind pass.Kind, viewSlot int, imageIndex uint32, tgt handle.Handle, body func() error) error {
	if err := r.sequencer.Begin(kind); err != nil {
		return err
	}
	if err := r.backend.BeginPass(idx, kind, viewSlot, imageIndex, r.curSet, tgt); err != nil {
		return err
	}
	if body != nil {
		if err := body(); err != nil {
			return err
		}
	}
	if err := r.backend.EndPass(idx); err != nil {
		return err
	}
	return r.sequencer.End(kind)
}

// drawGroups builds this viewpoint's batches and records them. Groups whose
// pipeline variant is unregistered are skipped with a log line; a missing
// pipeline never aborts the frame.
func (r *rendererImpl) drawGroups(idx int, kind pass.Kind, instances []scene.Instance, vis *cull.Result) error {
	builder := r.builders[idx]
	for _, g := range builder.Build(kind, instances, vis) {
		ph, ok := r.pipelines.Lookup(g.Key)
		if !ok {
			log.Printf("[Renderer] no pipeline registered for variant %s, dropping %d draws", g.Key, len(g.Draws))
			r.skippedGroups++
			continue
		}
		if err := r.backend.Draw(idx, ph, g); err != nil {
			return err
		}
	}
	r.skippedDraws += builder.Skipped()
	return nil
}

// abortFrame abandons a partially recorded frame: the sequencer returns to
// Idle, the slot is released without advancing, and its fence is re-signaled
// with an empty submission so the next Acquire does not wait forever.
func (r *rendererImpl) abortFrame(idx int, cause error) error {
	r.sequencer.Reset()
	r.frames.Abort()
	if err := r.backend.RearmSlot(idx); err != nil {
		return errors.Join(cause, fmt.Errorf("renderer: rearm slot %d: %w", idx, err))
	}
	return cause
}

func (r *rendererImpl) Resize(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.backend.WaitIdle(); err != nil {
		return err
	}
	w, h, err := r.backend.RecreateSwapchain(width, height)
	if err != nil {
		return err
	}
	return r.targets.Resize(w, h)
}

func (r *rendererImpl) CreateMesh(vertexData, indexData []byte, indexCount int) (handle.Handle, error) {
	return r.backend.CreateMesh(vertexData, indexData, indexCount)
}

func (r *rendererImpl) DestroyMesh(h handle.Handle) {
	r.backend.DestroyMesh(h)
}

func (r *rendererImpl) CreateMaterial(m material.Material) handle.Handle {
	if m == nil {
		return handle.Nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.materials.Alloc(m)
}

func (r *rendererImpl) DestroyMaterial(h handle.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.materials.Free(h)
}

func (r *rendererImpl) Material(h handle.Handle) (material.Material, bool) {
	m, ok := r.materials.Get(h)
	if !ok || *m == nil {
		return nil, false
	}
	return *m, true
}

func (r *rendererImpl) MeshLive(h handle.Handle) bool {
	return r.backend.MeshLive(h)
}

func (r *rendererImpl) Pipelines() pipeline.Cache {
	return r.pipelines
}

func (r *rendererImpl) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		FrameIndex:     r.frameIndex,
		SkippedDraws:   r.skippedDraws,
		SkippedGroups:  r.skippedGroups,
		ShadowCasters:  r.shadowCount,
		ParticlesAlive: r.lastAlive,
		LiveMeshes:     r.backend.LiveMeshes(),
		LiveMaterials:  r.materials.Live(),
	}
}

func (r *rendererImpl) Backend() RendererBackend {
	return r.backend
}

func (r *rendererImpl) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.backend.WaitIdle(); err != nil {
		log.Printf("[Renderer] wait idle during destroy: %v", err)
	}
	r.targets.Destroy()
	r.backend.Destroy()
}

func imageRes(h handle.Handle) barrier.Resource {
	return barrier.Resource{ID: h, Kind: barrier.KindImage}
}

// gbufferResources lists the five geometry attachments of one target set for
// batched transitions.
func gbufferResources(set *target.Set) []barrier.Resource {
	res := make([]barrier.Resource, 0, target.ChannelCount)
	for _, h := range set.GBuffer {
		res = append(res, barrier.Resource{ID: h, Kind: barrier.KindImage})
	}
	return res
}
