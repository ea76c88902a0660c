package renderer

import (
	"log"

	vk "github.com/goki/vulkan"

	"github.com/hucancode/mjolnir/engine/renderer/barrier"
)

// vulkanRecorder lowers tracker barriers onto a command buffer. One
// PipelineBarrier call becomes exactly one vkCmdPipelineBarrier.
type vulkanRecorder struct {
	backend *vulkanRendererBackendImpl
	buffer  vk.CommandBuffer
}

var _ barrier.Recorder = &vulkanRecorder{}

func (r *vulkanRecorder) PipelineBarrier(src, dst barrier.Stage, images []barrier.ImageTransition, buffers []barrier.BufferTransition) {
	var imageBarriers []vk.ImageMemoryBarrier
	for _, t := range images {
		img, ok := r.backend.images.Get(t.Resource.ID)
		if !ok {
			log.Printf("[Vulkan] barrier names unknown image %v, skipping", t.Resource.ID)
			continue
		}
		aspect := vk.ImageAspectColorBit
		if img.depth {
			aspect = vk.ImageAspectDepthBit
		}
		imageBarriers = append(imageBarriers, vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       toVkAccess(t.SrcAccess),
			DstAccessMask:       toVkAccess(t.DstAccess),
			OldLayout:           toVkLayout(t.OldLayout),
			NewLayout:           toVkLayout(t.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               img.image,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(aspect),
				LevelCount: 1,
				LayerCount: uint32(img.layers),
			},
		})
	}

	// tracked buffers are not backed by a backend table; a global memory
	// barrier covers their dependencies
	var memoryBarriers []vk.MemoryBarrier
	if len(buffers) > 0 {
		var srcAccess, dstAccess barrier.Access
		for _, t := range buffers {
			srcAccess |= t.SrcAccess
			dstAccess |= t.DstAccess
		}
		memoryBarriers = append(memoryBarriers, vk.MemoryBarrier{
			SType:         vk.StructureTypeMemoryBarrier,
			SrcAccessMask: toVkAccess(srcAccess),
			DstAccessMask: toVkAccess(dstAccess),
		})
	}
	if len(imageBarriers) == 0 && len(memoryBarriers) == 0 {
		return
	}

	vk.CmdPipelineBarrier(r.buffer,
		toVkStages(src), toVkStages(dst), 0,
		uint32(len(memoryBarriers)), memoryBarriers,
		0, nil,
		uint32(len(imageBarriers)), imageBarriers)
}

var stageLowering = []struct {
	from barrier.Stage
	to   vk.PipelineStageFlagBits
}{
	{barrier.StageTopOfPipe, vk.PipelineStageTopOfPipeBit},
	{barrier.StageDrawIndirect, vk.PipelineStageDrawIndirectBit},
	{barrier.StageVertexInput, vk.PipelineStageVertexInputBit},
	{barrier.StageVertexShader, vk.PipelineStageVertexShaderBit},
	{barrier.StageEarlyFragmentTests, vk.PipelineStageEarlyFragmentTestsBit},
	{barrier.StageFragmentShader, vk.PipelineStageFragmentShaderBit},
	{barrier.StageLateFragmentTests, vk.PipelineStageLateFragmentTestsBit},
	{barrier.StageColorAttachmentOutput, vk.PipelineStageColorAttachmentOutputBit},
	{barrier.StageComputeShader, vk.PipelineStageComputeShaderBit},
	{barrier.StageTransfer, vk.PipelineStageTransferBit},
	{barrier.StageBottomOfPipe, vk.PipelineStageBottomOfPipeBit},
}

func toVkStages(s barrier.Stage) vk.PipelineStageFlags {
	var flags vk.PipelineStageFlagBits
	for _, m := range stageLowering {
		if s&m.from != 0 {
			flags |= m.to
		}
	}
	if flags == 0 {
		flags = vk.PipelineStageTopOfPipeBit
	}
	return vk.PipelineStageFlags(flags)
}

var accessLowering = []struct {
	from barrier.Access
	to   vk.AccessFlagBits
}{
	{barrier.AccessIndirectCommandRead, vk.AccessIndirectCommandReadBit},
	{barrier.AccessIndexRead, vk.AccessIndexReadBit},
	{barrier.AccessVertexAttributeRead, vk.AccessVertexAttributeReadBit},
	{barrier.AccessUniformRead, vk.AccessUniformReadBit},
	{barrier.AccessShaderRead, vk.AccessShaderReadBit},
	{barrier.AccessShaderWrite, vk.AccessShaderWriteBit},
	{barrier.AccessColorAttachmentRead, vk.AccessColorAttachmentReadBit},
	{barrier.AccessColorAttachmentWrite, vk.AccessColorAttachmentWriteBit},
	{barrier.AccessDepthStencilRead, vk.AccessDepthStencilAttachmentReadBit},
	{barrier.AccessDepthStencilWrite, vk.AccessDepthStencilAttachmentWriteBit},
	{barrier.AccessTransferRead, vk.AccessTransferReadBit},
	{barrier.AccessTransferWrite, vk.AccessTransferWriteBit},
}

func toVkAccess(a barrier.Access) vk.AccessFlags {
	var flags vk.AccessFlagBits
	for _, m := range accessLowering {
		if a&m.from != 0 {
			flags |= m.to
		}
	}
	return vk.AccessFlags(flags)
}

func toVkLayout(l barrier.Layout) vk.ImageLayout {
	switch l {
	case barrier.LayoutGeneral:
		return vk.ImageLayoutGeneral
	case barrier.LayoutColorAttachment:
		return vk.ImageLayoutColorAttachmentOptimal
	case barrier.LayoutDepthStencilAttachment:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case barrier.LayoutDepthStencilReadOnly:
		return vk.ImageLayoutDepthStencilReadOnlyOptimal
	case barrier.LayoutShaderReadOnly:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case barrier.LayoutTransferSrc:
		return vk.ImageLayoutTransferSrcOptimal
	case barrier.LayoutTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	case barrier.LayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	default:
		return vk.ImageLayoutUndefined
	}
}
