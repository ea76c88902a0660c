// Package barrier tracks the last-known GPU execution state of every image
// and buffer touched by the frame and emits the minimal pipeline barrier set
// between consecutive passes. The types here are backend-agnostic mirrors of
// the Vulkan stage/access/layout vocabulary; the Vulkan backend lowers them
// to vk.CmdPipelineBarrier calls and test backends record them directly.
package barrier

import (
	"github.com/hucancode/mjolnir/engine/handle"
)

// Stage is a pipeline stage bitmask. Values mirror VkPipelineStageFlagBits.
type Stage uint32

const (
	StageTopOfPipe Stage = 1 << iota
	StageDrawIndirect
	StageVertexInput
	StageVertexShader
	StageEarlyFragmentTests
	StageFragmentShader
	StageLateFragmentTests
	StageColorAttachmentOutput
	StageComputeShader
	StageTransfer
	StageBottomOfPipe
)

// Access is a memory access bitmask. Values mirror VkAccessFlagBits.
type Access uint32

const (
	AccessNone Access = 0

	AccessIndirectCommandRead Access = 1 << iota
	AccessIndexRead
	AccessVertexAttributeRead
	AccessUniformRead
	AccessShaderRead
	AccessShaderWrite
	AccessColorAttachmentRead
	AccessColorAttachmentWrite
	AccessDepthStencilRead
	AccessDepthStencilWrite
	AccessTransferRead
	AccessTransferWrite
)

// writeMask covers every access bit that makes a resource's contents dirty.
// Transitions away from a state containing one of these bits are hazards
// (read-after-write / write-after-write) and always require a barrier.
const writeMask = AccessShaderWrite | AccessColorAttachmentWrite | AccessDepthStencilWrite | AccessTransferWrite

// Layout is an image layout. Buffers always use LayoutUndefined.
// Values mirror VkImageLayout.
type Layout uint8

const (
	LayoutUndefined Layout = iota
	LayoutGeneral
	LayoutColorAttachment
	LayoutDepthStencilAttachment
	LayoutDepthStencilReadOnly
	LayoutShaderReadOnly
	LayoutTransferSrc
	LayoutTransferDst
	LayoutPresentSrc
)

// Kind distinguishes image resources (which carry a layout) from buffers.
type Kind uint8

const (
	KindImage Kind = iota
	KindBuffer
)

// Resource identifies one tracked GPU resource. The ID comes from the
// owning handle table; the orchestrator never holds raw backend pointers
// across a frame boundary.
type Resource struct {
	ID   handle.Handle
	Kind Kind
}

// State is the recorded execution state of one resource: the stage of its
// last use, the access mask of that use, and (for images) the layout it was
// left in. The recorded state must always equal the GPU-observable state at
// the current point in the command stream.
type State struct {
	Stage  Stage
	Access Access
	Layout Layout
}

// Initial is the implicit state of a freshly created or recreated resource.
// The Undefined layout tells the GPU there is no prior content to preserve.
var Initial = State{Stage: StageTopOfPipe, Access: AccessNone, Layout: LayoutUndefined}

// ImageTransition describes one image layout/access change inside a barrier.
type ImageTransition struct {
	Resource  Resource
	SrcAccess Access
	DstAccess Access
	OldLayout Layout
	NewLayout Layout
}

// BufferTransition describes one buffer memory dependency inside a barrier.
type BufferTransition struct {
	Resource  Resource
	SrcAccess Access
	DstAccess Access
}

// Recorder receives computed barriers in command-stream order.
// The Vulkan backend implementation lowers each call to exactly one
// vkCmdPipelineBarrier; test recorders capture the calls for assertions.
type Recorder interface {
	PipelineBarrier(src, dst Stage, images []ImageTransition, buffers []BufferTransition)
}
