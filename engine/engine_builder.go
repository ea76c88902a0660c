package engine

import (
	"time"

	"github.com/hucancode/mjolnir/engine/renderer"
	"github.com/hucancode/mjolnir/engine/scene"
	"github.com/hucancode/mjolnir/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets the engine tick rate in frames per second.
// The tick callback will be called at this rate for game logic updates.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Second / time.Duration(fps)
	}
}

// WithWindow sets a custom configured window for the engine to use rather than allowing the engine
// to create and manage one internally.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithRenderer injects a pre-built renderer instead of letting the engine
// create the default Vulkan one. The engine takes ownership and destroys
// it when Run returns.
//
// Parameters:
//   - r: a pre-configured Renderer instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderer(r renderer.Renderer) EngineBuilderOption {
	return func(e *engine) {
		e.renderer = r
	}
}

// WithRendererOptions forwards options to the default renderer. Ignored when
// WithRenderer injects one.
//
// Parameters:
//   - options: renderer options such as renderer.WithShadowResolution
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRendererOptions(options ...renderer.RendererBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.rendererOptions = append(e.rendererOptions, options...)
	}
}

// WithBackendOptions forwards options to the default Vulkan backend. Ignored
// when WithRenderer injects a renderer.
//
// Parameters:
//   - options: backend options such as renderer.WithShaderDirectory
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithBackendOptions(options ...renderer.VulkanBackendOption) EngineBuilderOption {
	return func(e *engine) {
		e.backendOptions = append(e.backendOptions, options...)
	}
}

// WithFrameSlots sets the number of frames in flight for the default Vulkan
// backend. Clamped to the backend's supported range. Ignored when
// WithRenderer injects a renderer.
//
// Parameters:
//   - n: frames in flight (default frame.DefaultSlotCount)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFrameSlots(n int) EngineBuilderOption {
	return func(e *engine) {
		if n > 0 {
			e.slotCount = n
		}
	}
}

// WithErrorThreshold sets how many consecutive non-fatal render errors the
// render loop tolerates before shutting down.
//
// Parameters:
//   - n: the threshold (values <= 0 keep the default)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithErrorThreshold(n int) EngineBuilderOption {
	return func(e *engine) {
		if n > 0 {
			e.errorThreshold = n
		}
	}
}

// WithScene sets the scene rendered each frame during engine construction.
//
// Parameters:
//   - s: the Scene to render
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScene(s scene.Scene) EngineBuilderOption {
	return func(e *engine) {
		e.scene = s
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Second / time.Duration(fps)
	}
}
