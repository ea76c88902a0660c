package renderer

import (
	"github.com/hucancode/mjolnir/engine/handle"
	"github.com/hucancode/mjolnir/engine/particle"
	"github.com/hucancode/mjolnir/engine/renderer/barrier"
	"github.com/hucancode/mjolnir/engine/renderer/batch"
	"github.com/hucancode/mjolnir/engine/renderer/cull"
	"github.com/hucancode/mjolnir/engine/renderer/frame"
	"github.com/hucancode/mjolnir/engine/renderer/pass"
	"github.com/hucancode/mjolnir/engine/renderer/pipeline"
	"github.com/hucancode/mjolnir/engine/renderer/target"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeVulkan selects the Vulkan rendering backend.
	BackendTypeVulkan RendererBackendType = iota
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// Effect identifies one post-process chain link.
type Effect int

const (
	// EffectTonemap maps HDR lighting output to display range. Always the
	// last link in the chain.
	EffectTonemap Effect = iota

	// EffectFog applies depth-based distance fog.
	EffectFog

	// EffectBloom adds a bright-pass blur on top of the lit image.
	EffectBloom
)

// UIRecorder records UI draw commands into the final color target during the
// UI pass. The application supplies one via WithUIRecorder; rendering
// proceeds without a UI overlay when absent.
type UIRecorder interface {
	// RecordUI records the overlay into the given target.
	//
	// Parameters:
	//   - slot: the frame slot being recorded
	//   - tgt: the final color target handle
	//
	// Returns:
	//   - error: error if recording fails
	RecordUI(slot int, tgt handle.Handle) error
}

// RendererBackend is the narrow seam between the frame orchestration logic
// and the GPU API. The Vulkan implementation lives in
// vulkan_renderer_backend.go; tests substitute a mock. All slot indices refer
// to frame-in-flight slots provisioned by the backend at construction.
type RendererBackend interface {
	// SlotCount returns the number of frame-in-flight slots provisioned.
	SlotCount() int

	// Fence returns slot i's submission completion fence.
	Fence(slot int) frame.Fence

	// Commands returns slot i's command recording context.
	Commands(slot int) frame.CommandContext

	// RearmSlot re-signals slot i's fence with an empty queue submission,
	// used after an aborted frame so the next Acquire does not deadlock.
	RearmSlot(slot int) error

	// AcquireImage acquires the next swapchain image for this frame.
	// Returns ErrSwapchainOutOfDate when the swapchain must be recreated.
	AcquireImage(slot int) (uint32, error)

	// BeginCommands starts command recording for the slot and returns the
	// recorder the barrier tracker lowers transitions through.
	BeginCommands(slot int) (barrier.Recorder, error)

	// BeginPass begins recording one pass against the slot's target set.
	// For shadow passes viewSlot selects the light-view target; other
	// passes ignore it. imageIndex is the acquired swapchain image.
	// tgt names the pass's output image where the target set alone is
	// ambiguous: the shadow map being rendered for Shadow, the post-process
	// chain's current image for UI. It is handle.Nil for every other pass.
	BeginPass(slot int, kind pass.Kind, viewSlot int, imageIndex uint32, targets *target.Set, tgt handle.Handle) error

	// RegisterPipelines compiles the backend's pipeline variants and
	// registers their handles in the cache, keyed by normalized variant.
	// Called once during renderer construction.
	RegisterPipelines(cache pipeline.Cache) error

	// Draw records one batch group: pipeline bind, material descriptor bind,
	// then the group's draws.
	Draw(slot int, pipeline handle.Handle, group batch.Group) error

	// DispatchParticleSim records the particle simulation compute dispatch.
	DispatchParticleSim(slot int, params particle.GPUSimParams, fields []byte) error

	// DrawParticles records the instanced billboard draw for live particles.
	DrawParticles(slot int, alive int) error

	// RecordEffect records one post-process link reading src into dst.
	RecordEffect(slot int, effect Effect, src, dst handle.Handle) error

	// EndPass ends the current pass.
	EndPass(slot int) error

	// BlitToSwapchain records the copy of the finished color target into the
	// acquired swapchain image. Recorded inside the Present pass.
	BlitToSwapchain(slot int, src handle.Handle, imageIndex uint32) error

	// UploadUniforms copies the slot's uniform ring content to GPU-visible
	// memory before submission.
	UploadUniforms(slot int, data []byte) error

	// Submit ends command recording and submits the slot's commands: waits
	// for the image-acquired semaphore at color attachment output, signals
	// the render-complete semaphore and the slot's fence.
	Submit(slot int, imageIndex uint32) error

	// Present enqueues presentation of the image after render-complete.
	// Returns ErrSwapchainOutOfDate or ErrSwapchainSuboptimal as observed.
	Present(slot int, imageIndex uint32) error

	// RecreateSwapchain rebuilds the swapchain at the new extent, returning
	// the actual extent granted by the surface.
	RecreateSwapchain(width, height int) (int, int, error)

	// CullDispatcher returns the GPU compute culling dispatcher, or nil when
	// the device lacks compute support (the cull stage falls back to CPU).
	CullDispatcher() cull.Dispatcher

	// TargetFactory returns the factory the target manager allocates render
	// target images from.
	TargetFactory() target.Factory

	// CreateMesh uploads vertex and index data and returns a mesh handle.
	CreateMesh(vertexData, indexData []byte, indexCount int) (handle.Handle, error)

	// DestroyMesh releases a mesh's GPU buffers. Stale handles are a no-op.
	DestroyMesh(h handle.Handle)

	// MeshLive reports whether a mesh handle resolves to live GPU buffers.
	MeshLive(h handle.Handle) bool

	// LiveMeshes returns the number of live mesh allocations.
	LiveMeshes() int

	// WaitIdle blocks until the GPU has drained all submitted work.
	WaitIdle() error

	// Destroy releases all backend resources. WaitIdle first.
	Destroy()
}
