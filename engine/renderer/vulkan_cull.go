package renderer

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/hucancode/mjolnir/common"
	"github.com/hucancode/mjolnir/engine/renderer/cull"
)

// cullLocalSize matches the workgroup size declared in cull.comp.
const cullLocalSize = 64

// cullPushConstants mirrors the compute shader's push constant block: six
// inward-facing frustum planes and the instance count.
type cullPushConstants struct {
	Planes [6][4]float32
	Count  uint32
	_pad   [3]uint32
}

// vulkanCullDispatcher runs the frustum-test compute shader and reads the
// packed visibility words back. Each invocation is one submit-and-wait round
// trip on the shared queue; the stage documents that trade.
type vulkanCullDispatcher struct {
	mu      sync.Mutex
	backend *vulkanRendererBackendImpl

	layout     vk.DescriptorSetLayout
	pipeLayout vk.PipelineLayout
	pipe       vk.Pipeline
	set        vk.DescriptorSet
	fence      vk.Fence

	bounds     vulkanBuffer
	visibility vulkanBuffer
	capacity   int
}

var _ cull.Dispatcher = &vulkanCullDispatcher{}

func newVulkanCullDispatcher(b *vulkanRendererBackendImpl) (*vulkanCullDispatcher, error) {
	dev := b.ctx.Device
	d := &vulkanCullDispatcher{backend: b}

	bindings := []vk.DescriptorSetLayoutBinding{
		{Binding: 0, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
		{Binding: 1, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
	}
	ret := vk.CreateDescriptorSetLayout(dev, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}, nil, &d.layout)
	if ret != vk.Success {
		return nil, mapDeviceResult(ret)
	}
	ret = vk.CreatePipelineLayout(dev, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{d.layout},
		PushConstantRangeCount: 1,
		PPushConstantRanges: []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit),
			Size:       uint32(unsafe.Sizeof(cullPushConstants{})),
		}},
	}, nil, &d.pipeLayout)
	if ret != vk.Success {
		d.destroy()
		return nil, mapDeviceResult(ret)
	}

	pipe, err := b.createComputePipeline("cull", d.pipeLayout)
	if err != nil {
		d.destroy()
		return nil, err
	}
	d.pipe = pipe

	sets := make([]vk.DescriptorSet, 1)
	ret = vk.AllocateDescriptorSets(dev, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     b.ctx.DescriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{d.layout},
	}, &sets[0])
	if ret != vk.Success {
		d.destroy()
		return nil, mapDeviceResult(ret)
	}
	d.set = sets[0]

	ret = vk.CreateFence(dev, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}, nil, &d.fence)
	if ret != vk.Success {
		d.destroy()
		return nil, mapDeviceResult(ret)
	}
	return d, nil
}

// ensureCapacity grows the bounds and visibility buffers and rebinds the
// descriptor set when the instance count exceeds the current capacity.
func (d *vulkanCullDispatcher) ensureCapacity(instances int) error {
	if instances <= d.capacity && d.bounds.buffer != vk.NullBuffer {
		return nil
	}
	capacity := max(instances, 1024)

	d.backend.destroyBuffer(&d.bounds)
	d.backend.destroyBuffer(&d.visibility)

	var err error
	// two vec4 per instance: min.xyz pad, max.xyz pad
	d.bounds, err = d.backend.createBuffer(capacity*32,
		vk.BufferUsageStorageBufferBit,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		return err
	}
	wordCount := (capacity + 31) / 32
	d.visibility, err = d.backend.createBuffer(wordCount*4,
		vk.BufferUsageStorageBufferBit,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		return err
	}
	d.capacity = capacity

	writes := []vk.WriteDescriptorSet{
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          d.set,
			DstBinding:      0,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			DescriptorCount: 1,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: d.bounds.buffer,
				Range:  vk.DeviceSize(d.bounds.size),
			}},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          d.set,
			DstBinding:      1,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			DescriptorCount: 1,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: d.visibility.buffer,
				Range:  vk.DeviceSize(d.visibility.size),
			}},
		},
	}
	vk.UpdateDescriptorSets(d.backend.ctx.Device, uint32(len(writes)), writes, 0, nil)
	return nil
}

func (d *vulkanCullDispatcher) Dispatch(slotIndex, viewSlot int, frustum common.Frustum, bounds []common.AABB, out *cull.Result) error {
	if len(bounds) == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureCapacity(len(bounds)); err != nil {
		return err
	}

	// upload bounds as std430 vec4 pairs
	upload := make([]float32, 0, len(bounds)*8)
	for _, box := range bounds {
		upload = append(upload,
			box.Min.X(), box.Min.Y(), box.Min.Z(), 0,
			box.Max.X(), box.Max.Y(), box.Max.Z(), 0)
	}
	vk.Memcopy(d.bounds.mapped, common.SliceToBytes(upload))

	var constants cullPushConstants
	for i, p := range frustum.Planes {
		constants.Planes[i] = [4]float32{p.Normal.X(), p.Normal.Y(), p.Normal.Z(), p.Distance}
	}
	constants.Count = uint32(len(bounds))

	err := d.submitAndWait(func(buf vk.CommandBuffer) {
		vk.CmdBindPipeline(buf, vk.PipelineBindPointCompute, d.pipe)
		vk.CmdBindDescriptorSets(buf, vk.PipelineBindPointCompute, d.pipeLayout,
			0, 1, []vk.DescriptorSet{d.set}, 0, nil)
		vk.CmdPushConstants(buf, d.pipeLayout,
			vk.ShaderStageFlags(vk.ShaderStageComputeBit),
			0, uint32(unsafe.Sizeof(constants)), unsafe.Pointer(&constants))
		groups := (uint32(len(bounds)) + cullLocalSize - 1) / cullLocalSize
		vk.CmdDispatch(buf, groups, 1, 1)
		vk.CmdPipelineBarrier(buf,
			vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
			vk.PipelineStageFlags(vk.PipelineStageHostBit),
			0, 1, []vk.MemoryBarrier{{
				SType:         vk.StructureTypeMemoryBarrier,
				SrcAccessMask: vk.AccessFlags(vk.AccessShaderWriteBit),
				DstAccessMask: vk.AccessFlags(vk.AccessHostReadBit),
			}}, 0, nil, 0, nil)
	})
	if err != nil {
		return err
	}

	words := out.Words()
	gpuWords := unsafe.Slice((*uint32)(d.visibility.mapped), len(words))
	copy(words, gpuWords)
	return nil
}

// submitAndWait records a transient command buffer, submits it, and blocks
// on the dispatcher's fence.
func (d *vulkanCullDispatcher) submitAndWait(record func(vk.CommandBuffer)) error {
	b := d.backend
	dev := b.ctx.Device
	bufs := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(dev, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        b.ctx.CommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, bufs)
	if ret != vk.Success {
		return mapDeviceResult(ret)
	}
	defer vk.FreeCommandBuffers(dev, b.ctx.CommandPool, 1, bufs)

	buf := bufs[0]
	ret = vk.BeginCommandBuffer(buf, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if ret != vk.Success {
		return mapDeviceResult(ret)
	}
	record(buf)
	if ret := vk.EndCommandBuffer(buf); ret != vk.Success {
		return mapDeviceResult(ret)
	}

	if ret := vk.ResetFences(dev, 1, []vk.Fence{d.fence}); ret != vk.Success {
		return mapDeviceResult(ret)
	}
	ret = vk.QueueSubmit(b.ctx.Queue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    bufs,
	}}, d.fence)
	if ret != vk.Success {
		return mapDeviceResult(ret)
	}
	ret = vk.WaitForFences(dev, 1, []vk.Fence{d.fence}, vk.True, vk.MaxUint64)
	if ret != vk.Success {
		return fmt.Errorf("renderer: cull fence wait: %s", vk.Error(ret))
	}
	return nil
}

func (d *vulkanCullDispatcher) destroy() {
	dev := d.backend.ctx.Device
	d.backend.destroyBuffer(&d.bounds)
	d.backend.destroyBuffer(&d.visibility)
	if d.fence != vk.NullFence {
		vk.DestroyFence(dev, d.fence, nil)
		d.fence = vk.NullFence
	}
	if d.pipe != vk.NullPipeline {
		vk.DestroyPipeline(dev, d.pipe, nil)
		d.pipe = vk.NullPipeline
	}
	if d.pipeLayout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(dev, d.pipeLayout, nil)
		d.pipeLayout = vk.NullPipelineLayout
	}
	if d.layout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(dev, d.layout, nil)
		d.layout = vk.NullDescriptorSetLayout
	}
}
