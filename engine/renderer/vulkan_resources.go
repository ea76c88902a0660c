package renderer

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"

	"github.com/hucancode/mjolnir/engine/handle"
	"github.com/hucancode/mjolnir/engine/light"
	"github.com/hucancode/mjolnir/engine/particle"
)

// createBuffer creates a buffer and binds fresh device memory with the
// requested properties. Host-visible buffers are persistently mapped.
func (b *vulkanRendererBackendImpl) createBuffer(size int, usage vk.BufferUsageFlagBits, props vk.MemoryPropertyFlagBits) (vulkanBuffer, error) {
	dev := b.ctx.Device
	var buffer vk.Buffer
	ret := vk.CreateBuffer(dev, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buffer)
	if ret != vk.Success {
		return vulkanBuffer{}, mapDeviceResult(ret)
	}

	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dev, buffer, &memReqs)
	memReqs.Deref()

	typeIndex, ok := b.ctx.FindMemoryType(memReqs.MemoryTypeBits, props)
	if !ok {
		vk.DestroyBuffer(dev, buffer, nil)
		return vulkanBuffer{}, errors.New("renderer: no suitable memory type for buffer")
	}
	var memory vk.DeviceMemory
	ret = vk.AllocateMemory(dev, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: typeIndex,
	}, nil, &memory)
	if ret != vk.Success {
		vk.DestroyBuffer(dev, buffer, nil)
		return vulkanBuffer{}, mapDeviceResult(ret)
	}
	vk.BindBufferMemory(dev, buffer, memory, 0)

	out := vulkanBuffer{buffer: buffer, memory: memory, size: size}
	if props&vk.MemoryPropertyHostVisibleBit != 0 {
		var ptr unsafe.Pointer
		ret = vk.MapMemory(dev, memory, 0, vk.DeviceSize(size), 0, &ptr)
		if ret != vk.Success {
			b.destroyBuffer(&out)
			return vulkanBuffer{}, mapDeviceResult(ret)
		}
		out.mapped = ptr
	}
	return out, nil
}

// createDeviceLocalBuffer uploads data into a new device-local buffer through
// a staging buffer and a one-time transfer submission.
func (b *vulkanRendererBackendImpl) createDeviceLocalBuffer(data []byte, usage vk.BufferUsageFlagBits) (vulkanBuffer, error) {
	if len(data) == 0 {
		return vulkanBuffer{}, fmt.Errorf("renderer: empty buffer upload")
	}
	staging, err := b.createBuffer(len(data), vk.BufferUsageTransferSrcBit,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		return vulkanBuffer{}, err
	}
	defer b.destroyBuffer(&staging)
	vk.Memcopy(staging.mapped, data)

	local, err := b.createBuffer(len(data), usage|vk.BufferUsageTransferDstBit,
		vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return vulkanBuffer{}, err
	}
	err = b.oneTimeCommands(func(buf vk.CommandBuffer) {
		vk.CmdCopyBuffer(buf, staging.buffer, local.buffer, 1, []vk.BufferCopy{
			{Size: vk.DeviceSize(len(data))},
		})
	})
	if err != nil {
		b.destroyBuffer(&local)
		return vulkanBuffer{}, err
	}
	return local, nil
}

func (b *vulkanRendererBackendImpl) destroyBuffer(buf *vulkanBuffer) {
	dev := b.ctx.Device
	if buf.mapped != nil {
		vk.UnmapMemory(dev, buf.memory)
		buf.mapped = nil
	}
	if buf.buffer != vk.NullBuffer {
		vk.DestroyBuffer(dev, buf.buffer, nil)
		buf.buffer = vk.NullBuffer
	}
	if buf.memory != vk.NullDeviceMemory {
		vk.FreeMemory(dev, buf.memory, nil)
		buf.memory = vk.NullDeviceMemory
	}
}

// oneTimeCommands records and synchronously submits a transient command
// buffer on the shared queue. Used for uploads, never per frame.
func (b *vulkanRendererBackendImpl) oneTimeCommands(record func(vk.CommandBuffer)) error {
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

	b.mu.Lock()
	defer b.mu.Unlock()
	ret = vk.QueueSubmit(b.ctx.Queue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    bufs,
	}}, vk.NullFence)
	if ret != vk.Success {
		return mapDeviceResult(ret)
	}
	if ret := vk.QueueWaitIdle(b.ctx.Queue); ret != vk.Success {
		return mapDeviceResult(ret)
	}
	return nil
}

// createImage allocates an image, binds memory, and creates its sampled view.
// Cube images additionally get one depth-attachment view per face.
func (b *vulkanRendererBackendImpl) createImage(width, height, layers int, format vk.Format, usage vk.ImageUsageFlagBits, cube bool) (vulkanImage, error) {
	dev := b.ctx.Device
	var flags vk.ImageCreateFlags
	if cube {
		flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}
	var image vk.Image
	ret := vk.CreateImage(dev, &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		Flags:     flags,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  uint32(width),
			Height: uint32(height),
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   uint32(layers),
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &image)
	if ret != vk.Success {
		return vulkanImage{}, mapDeviceResult(ret)
	}

	var memReqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(dev, image, &memReqs)
	memReqs.Deref()
	typeIndex, ok := b.ctx.FindMemoryType(memReqs.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit)
	if !ok {
		vk.DestroyImage(dev, image, nil)
		return vulkanImage{}, errors.New("renderer: no suitable memory type for image")
	}
	var memory vk.DeviceMemory
	ret = vk.AllocateMemory(dev, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: typeIndex,
	}, nil, &memory)
	if ret != vk.Success {
		vk.DestroyImage(dev, image, nil)
		return vulkanImage{}, mapDeviceResult(ret)
	}
	vk.BindImageMemory(dev, image, memory, 0)

	depth := format == depthTargetFormat
	aspect := vk.ImageAspectColorBit
	if depth {
		aspect = vk.ImageAspectDepthBit
	}
	viewType := vk.ImageViewType2d
	if cube {
		viewType = vk.ImageViewTypeCube
	}

	img := vulkanImage{
		image:  image,
		memory: memory,
		format: format,
		width:  width,
		height: height,
		layers: layers,
		depth:  depth,
	}
	var err error
	img.view, err = b.createView(image, viewType, format, aspect, 0, layers)
	if err != nil {
		b.destroyImage(&img)
		return vulkanImage{}, err
	}
	if cube {
		img.layerViews = make([]vk.ImageView, layers)
		for face := 0; face < layers; face++ {
			img.layerViews[face], err = b.createView(image, vk.ImageViewType2d, format, aspect, face, 1)
			if err != nil {
				b.destroyImage(&img)
				return vulkanImage{}, err
			}
		}
	}
	return img, nil
}

func (b *vulkanRendererBackendImpl) createView(image vk.Image, viewType vk.ImageViewType, format vk.Format, aspect vk.ImageAspectFlagBits, baseLayer, layers int) (vk.ImageView, error) {
	var view vk.ImageView
	ret := vk.CreateImageView(b.ctx.Device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: viewType,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(aspect),
			LevelCount:     1,
			BaseArrayLayer: uint32(baseLayer),
			LayerCount:     uint32(layers),
		},
	}, nil, &view)
	if ret != vk.Success {
		return vk.NullImageView, mapDeviceResult(ret)
	}
	return view, nil
}

func (b *vulkanRendererBackendImpl) destroyImage(img *vulkanImage) {
	dev := b.ctx.Device
	for _, v := range img.layerViews {
		if v != vk.NullImageView {
			vk.DestroyImageView(dev, v, nil)
		}
	}
	img.layerViews = nil
	if img.view != vk.NullImageView {
		vk.DestroyImageView(dev, img.view, nil)
		img.view = vk.NullImageView
	}
	if img.image != vk.NullImage {
		vk.DestroyImage(dev, img.image, nil)
		img.image = vk.NullImage
	}
	if img.memory != vk.NullDeviceMemory {
		vk.FreeMemory(dev, img.memory, nil)
		img.memory = vk.NullDeviceMemory
	}
}

func (b *vulkanRendererBackendImpl) CreateColorTarget(width, height int) (handle.Handle, error) {
	img, err := b.createImage(width, height, 1, colorTargetFormat,
		vk.ImageUsageColorAttachmentBit|vk.ImageUsageSampledBit|vk.ImageUsageTransferSrcBit, false)
	if err != nil {
		return handle.Nil, err
	}
	return b.images.Alloc(img), nil
}

func (b *vulkanRendererBackendImpl) CreateDepthTarget(width, height int) (handle.Handle, error) {
	img, err := b.createImage(width, height, 1, depthTargetFormat,
		vk.ImageUsageDepthStencilAttachmentBit|vk.ImageUsageSampledBit, false)
	if err != nil {
		return handle.Nil, err
	}
	return b.images.Alloc(img), nil
}

func (b *vulkanRendererBackendImpl) CreateShadowMap(resolution int) (handle.Handle, error) {
	return b.CreateDepthTarget(resolution, resolution)
}

func (b *vulkanRendererBackendImpl) CreateShadowCube(resolution int) (handle.Handle, error) {
	img, err := b.createImage(resolution, resolution, light.CubeFaces, depthTargetFormat,
		vk.ImageUsageDepthStencilAttachmentBit|vk.ImageUsageSampledBit, true)
	if err != nil {
		return handle.Nil, err
	}
	return b.images.Alloc(img), nil
}

func (b *vulkanRendererBackendImpl) DestroyTarget(h handle.Handle) {
	img, ok := b.images.Get(h)
	if !ok {
		return
	}
	// framebuffers referencing the dying views must go first
	b.pruneFramebuffers(img)
	b.destroyImage(img)
	b.images.Free(h)
}

// pruneFramebuffers destroys cached framebuffers that reference any view of
// the given image.
func (b *vulkanRendererBackendImpl) pruneFramebuffers(img *vulkanImage) {
	uses := func(view vk.ImageView) bool {
		if view == img.view {
			return true
		}
		for _, lv := range img.layerViews {
			if view == lv {
				return true
			}
		}
		return false
	}
	for key, fb := range b.framebuffers {
		for _, att := range key.attachments {
			if att != vk.NullImageView && uses(att) {
				vk.DestroyFramebuffer(b.ctx.Device, fb, nil)
				delete(b.framebuffers, key)
				break
			}
		}
	}
}

func (b *vulkanRendererBackendImpl) destroyFramebuffers() {
	for key, fb := range b.framebuffers {
		vk.DestroyFramebuffer(b.ctx.Device, fb, nil)
		delete(b.framebuffers, key)
	}
}

// initFallbackImages creates the 1x1 images bound in descriptor array entries
// that have no real target this frame. Sampling them yields neutral values.
func (b *vulkanRendererBackendImpl) initFallbackImages() error {
	var err error
	if b.fallbackColor, err = b.CreateColorTarget(1, 1); err != nil {
		return err
	}
	if b.fallbackDepth, err = b.CreateDepthTarget(1, 1); err != nil {
		return err
	}
	if b.fallbackShadow, err = b.CreateShadowMap(1); err != nil {
		return err
	}
	if b.fallbackCube, err = b.CreateShadowCube(1); err != nil {
		return err
	}
	// fallbacks are sampled but never rendered to, so move them out of
	// LayoutUndefined once here
	return b.oneTimeCommands(func(buf vk.CommandBuffer) {
		for _, h := range []handle.Handle{b.fallbackColor, b.fallbackDepth, b.fallbackShadow, b.fallbackCube} {
			img, _ := b.images.Get(h)
			aspect := vk.ImageAspectColorBit
			if img.depth {
				aspect = vk.ImageAspectDepthBit
			}
			vk.CmdPipelineBarrier(buf,
				vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
				vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
				0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
					SType:               vk.StructureTypeImageMemoryBarrier,
					DstAccessMask:       vk.AccessFlags(vk.AccessShaderReadBit),
					OldLayout:           vk.ImageLayoutUndefined,
					NewLayout:           vk.ImageLayoutShaderReadOnlyOptimal,
					SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
					DstQueueFamilyIndex: vk.QueueFamilyIgnored,
					Image:               img.image,
					SubresourceRange: vk.ImageSubresourceRange{
						AspectMask: vk.ImageAspectFlags(aspect),
						LevelCount: 1,
						LayerCount: uint32(img.layers),
					},
				}})
		}
	})
}

// initSlots creates per-slot fences (signaled so the first Acquire does not
// block), command buffers, semaphores, buffers, and descriptor sets.
func (b *vulkanRendererBackendImpl) initSlots(slotCount int) error {
	dev := b.ctx.Device

	cmdBufs := make([]vk.CommandBuffer, slotCount)
	ret := vk.AllocateCommandBuffers(dev, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        b.ctx.CommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(slotCount),
	}, cmdBufs)
	if ret != vk.Success {
		return mapDeviceResult(ret)
	}

	for i := 0; i < slotCount; i++ {
		var fence vk.Fence
		ret = vk.CreateFence(dev, &vk.FenceCreateInfo{
			SType: vk.StructureTypeFenceCreateInfo,
			Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
		}, nil, &fence)
		if ret != vk.Success {
			return mapDeviceResult(ret)
		}

		s := &vulkanSlot{
			fence:    &vulkanFence{device: dev, fence: fence},
			commands: &vulkanCommands{buffer: cmdBufs[i]},
		}
		semInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
		if ret = vk.CreateSemaphore(dev, &semInfo, nil, &s.imageAcquired); ret != vk.Success {
			return mapDeviceResult(ret)
		}
		if ret = vk.CreateSemaphore(dev, &semInfo, nil, &s.renderComplete); ret != vk.Success {
			return mapDeviceResult(ret)
		}

		var err error
		s.uniforms, err = b.createBuffer(DefaultUniformRingCapacity,
			vk.BufferUsageUniformBufferBit|vk.BufferUsageStorageBufferBit,
			vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
		if err != nil {
			return err
		}
		var sim particle.GPUParticle
		s.particles, err = b.createBuffer(particle.DefaultPoolCapacity*sim.Size(),
			vk.BufferUsageStorageBufferBit|vk.BufferUsageVertexBufferBit,
			vk.MemoryPropertyDeviceLocalBit)
		if err != nil {
			return err
		}
		var field particle.GPUForceField
		s.fields, err = b.createBuffer(particle.MaxGPUForceFields*field.Size(),
			vk.BufferUsageStorageBufferBit,
			vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
		if err != nil {
			return err
		}
		if err := b.allocateSlotDescriptors(s); err != nil {
			return err
		}
		b.slots = append(b.slots, s)
	}
	return nil
}

// imageView resolves a target handle to its sampled/attachment view.
func (b *vulkanRendererBackendImpl) imageView(h handle.Handle) (vk.ImageView, error) {
	img, ok := b.images.Get(h)
	if !ok {
		return vk.NullImageView, fmt.Errorf("renderer: image handle %v does not resolve", h)
	}
	return img.view, nil
}

// shadowFaceView resolves the attachment view for one face of a shadow
// target: the per-face layer view for cubes, the whole view for 2D maps.
// The second return is the target's square resolution.
func (b *vulkanRendererBackendImpl) shadowFaceView(h handle.Handle, face int) (vk.ImageView, int, error) {
	img, ok := b.images.Get(h)
	if !ok {
		return vk.NullImageView, 0, fmt.Errorf("renderer: shadow target %v does not resolve", h)
	}
	if len(img.layerViews) > 0 {
		if face < 0 || face >= len(img.layerViews) {
			return vk.NullImageView, 0, fmt.Errorf("renderer: cube face %d out of range", face)
		}
		return img.layerViews[face], img.width, nil
	}
	return img.view, img.width, nil
}

func depthClear() vk.ClearValue {
	var cv vk.ClearValue
	cv.SetDepthStencil(1, 0)
	return cv
}

func colorClear() vk.ClearValue {
	var cv vk.ClearValue
	cv.SetColor([]float32{0, 0, 0, 1})
	return cv
}

// copyMat4 writes a column-major matrix into a push constant block.
func copyMat4(dst []byte, m mgl32.Mat4) {
	copy(dst, unsafe.Slice((*byte)(unsafe.Pointer(&m[0])), 64))
}

// transitionSwapchainImage records a layout transition for a swapchain image.
// Swapchain images never enter the barrier tracker; the backend owns their
// lifecycle between acquire and present.
func transitionSwapchainImage(buf vk.CommandBuffer, image vk.Image, oldLayout, newLayout vk.ImageLayout, srcAccess, dstAccess vk.AccessFlags) {
	vk.CmdPipelineBarrier(buf,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit|vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit|vk.PipelineStageBottomOfPipeBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       srcAccess,
			DstAccessMask:       dstAccess,
			OldLayout:           oldLayout,
			NewLayout:           newLayout,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               image,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}})
}
