package renderer

import (
	"errors"

	"github.com/hucancode/mjolnir/engine/renderer/frame"
)

// ErrDeviceLost reports an unrecoverable GPU failure. The engine loop counts
// it as fatal and shuts the renderer down.
var ErrDeviceLost = errors.New("renderer: device lost")

// ErrSwapchainOutOfDate reports a swapchain no longer matching the surface.
// Recoverable: the caller recreates the swapchain-dependent resources via
// Resize and retries on the next frame. The frame that observed it was not
// presented.
var ErrSwapchainOutOfDate = errors.New("renderer: swapchain out of date")

// ErrSwapchainSuboptimal reports a swapchain that still presents but no
// longer matches the surface optimally. Recoverable: the frame was presented;
// the caller should recreate at the next opportunity.
var ErrSwapchainSuboptimal = errors.New("renderer: swapchain suboptimal")

// IsFatal reports whether err ends the render loop: device loss or a
// completion fence that never signaled.
//
// Parameters:
//   - err: the error returned by RenderFrame
//
// Returns:
//   - bool: true if the error is unrecoverable
func IsFatal(err error) bool {
	return errors.Is(err, ErrDeviceLost) || errors.Is(err, frame.ErrFenceTimeout)
}

// IsRecoverable reports whether err is cured by recreating the swapchain.
//
// Parameters:
//   - err: the error returned by RenderFrame
//
// Returns:
//   - bool: true if a Resize retry should follow
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrSwapchainOutOfDate) || errors.Is(err, ErrSwapchainSuboptimal)
}
