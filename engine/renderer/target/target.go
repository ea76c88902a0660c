package target

import (
	"fmt"

	"github.com/hucancode/mjolnir/engine/handle"
	"github.com/hucancode/mjolnir/engine/light"
)

// Channel identifies one G-buffer attachment.
type Channel int

const (
	// ChannelPosition is the world-space position attachment.
	ChannelPosition Channel = iota

	// ChannelNormal is the world-space normal attachment.
	ChannelNormal

	// ChannelAlbedo is the base color attachment.
	ChannelAlbedo

	// ChannelMetallicRoughness is the packed metallic-roughness attachment.
	ChannelMetallicRoughness

	// ChannelEmissive is the emissive color attachment.
	ChannelEmissive

	// ChannelCount is the number of G-buffer channels.
	ChannelCount
)

var channelNames = [...]string{
	ChannelPosition:          "position",
	ChannelNormal:            "normal",
	ChannelAlbedo:            "albedo",
	ChannelMetallicRoughness: "metallic_roughness",
	ChannelEmissive:          "emissive",
}

func (c Channel) String() string {
	if int(c) < len(channelNames) {
		return channelNames[c]
	}
	return fmt.Sprintf("Channel(%d)", int(c))
}

// Factory creates and destroys the GPU images behind render targets. The
// renderer backend implements it; tests substitute a counting mock.
type Factory interface {
	// CreateColorTarget creates a color-renderable, sampleable image.
	//
	// Parameters:
	//   - width, height: the extent in texels
	//
	// Returns:
	//   - handle.Handle: the image handle
	//   - error: error if allocation fails
	CreateColorTarget(width, height int) (handle.Handle, error)

	// CreateDepthTarget creates a depth attachment image.
	//
	// Parameters:
	//   - width, height: the extent in texels
	//
	// Returns:
	//   - handle.Handle: the image handle
	//   - error: error if allocation fails
	CreateDepthTarget(width, height int) (handle.Handle, error)

	// CreateShadowMap creates a square 2D depth image sampled with
	// comparison filtering.
	//
	// Parameters:
	//   - resolution: the extent in texels
	//
	// Returns:
	//   - handle.Handle: the image handle
	//   - error: error if allocation fails
	CreateShadowMap(resolution int) (handle.Handle, error)

	// CreateShadowCube creates a cube depth image for point light shadows.
	//
	// Parameters:
	//   - resolution: the per-face extent in texels
	//
	// Returns:
	//   - handle.Handle: the image handle
	//   - error: error if allocation fails
	CreateShadowCube(resolution int) (handle.Handle, error)

	// DestroyTarget releases an image created by this factory. Destroying
	// handle.Nil is a no-op.
	//
	// Parameters:
	//   - h: the image handle
	DestroyTarget(h handle.Handle)
}

// Set holds one frame slot's render targets. Passes for frame slot i render
// only into set i, so a slot's targets are never written while a previous
// frame still reads them.
type Set struct {
	// GBuffer holds the five geometry attachments, indexed by Channel.
	GBuffer [ChannelCount]handle.Handle

	// Depth is the scene depth attachment shared by the prepass and the
	// geometry passes.
	Depth handle.Handle

	// FinalColor is the target the lighting and later passes compose into.
	FinalColor handle.Handle

	// PostPing is the second color target the post-process chain ping-pongs
	// against FinalColor.
	PostPing handle.Handle

	// ShadowMaps are the 2D depth images for directional and spot shadow
	// slots, indexed by shadow budget index.
	ShadowMaps [light.MaxShadowMaps]handle.Handle

	// ShadowCubes are the cube depth images for point light shadow slots.
	ShadowCubes [light.MaxShadowMaps]handle.Handle
}
