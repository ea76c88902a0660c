package renderer

import "time"

// RendererBuilderOption is a functional option for configuring a Renderer.
type RendererBuilderOption func(*rendererImpl)

// WithFenceTimeout overrides the frame manager's fence wait. Intended for
// tests; production keeps the effectively-infinite default.
//
// Parameters:
//   - timeout: the maximum fence wait
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithFenceTimeout(timeout time.Duration) RendererBuilderOption {
	return func(r *rendererImpl) {
		if timeout > 0 {
			r.fenceTimeout = timeout
		}
	}
}

// WithUniformRingCapacity sets the byte capacity of each slot's per-frame
// uniform ring. Values <= 0 keep the default.
//
// Parameters:
//   - capacity: the ring capacity in bytes
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithUniformRingCapacity(capacity int) RendererBuilderOption {
	return func(r *rendererImpl) {
		if capacity > 0 {
			r.ringCapacity = capacity
		}
	}
}

// WithShadowResolution sets the shadow map extent in texels. Values <= 0
// keep the default.
//
// Parameters:
//   - resolution: the per-face shadow map extent
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithShadowResolution(resolution int) RendererBuilderOption {
	return func(r *rendererImpl) {
		if resolution > 0 {
			r.shadowResolution = resolution
		}
	}
}

// WithParticleCapacity sets each frame slot's particle pool capacity.
// Values <= 0 keep the default.
//
// Parameters:
//   - capacity: the maximum live particles per slot
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithParticleCapacity(capacity int) RendererBuilderOption {
	return func(r *rendererImpl) {
		if capacity > 0 {
			r.poolCapacity = capacity
		}
	}
}

// WithEffects sets the post-process chain. Tonemapping is appended when
// absent from the tail, since presentation always expects display-range
// output.
//
// Parameters:
//   - effects: the chain links in application order
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithEffects(effects ...Effect) RendererBuilderOption {
	return func(r *rendererImpl) {
		r.effects = append(r.effects[:0], effects...)
	}
}

// WithUIRecorder sets the collaborator that records the UI overlay during
// the UI pass. Rendering proceeds without an overlay when absent.
//
// Parameters:
//   - ui: the UI recorder
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithUIRecorder(ui UIRecorder) RendererBuilderOption {
	return func(r *rendererImpl) {
		r.ui = ui
	}
}

// WithComputeCullingDisabled forces CPU visibility culling even when the
// backend offers a compute dispatcher.
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithComputeCullingDisabled() RendererBuilderOption {
	return func(r *rendererImpl) {
		r.cullDisabled = true
	}
}

// WithCullWorkers sets the goroutine count for the CPU culling fan-out.
// Values <= 0 keep the default.
//
// Parameters:
//   - n: worker goroutine count
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithCullWorkers(n int) RendererBuilderOption {
	return func(r *rendererImpl) {
		if n > 0 {
			r.cullWorkers = n
		}
	}
}
