package renderer

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

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
)

// DefaultShaderDirectory is where the backend looks for compiled SPIR-V
// shader binaries, relative to the working directory.
const DefaultShaderDirectory = "shaders"

// colorTargetFormat is the format of every renderer-owned color target; HDR
// range is needed up to the tonemap link.
const colorTargetFormat = vk.FormatR16g16b16a16Sfloat

// depthTargetFormat is the format of depth and shadow targets.
const depthTargetFormat = vk.FormatD32Sfloat

// pushConstantSize is the per-draw push constant block: a 64-byte model
// matrix followed by the material constants (base color, metallic/roughness/
// features, emissive).
const pushConstantSize = 128

// vulkanFence adapts a vk.Fence to the frame.Fence seam.
type vulkanFence struct {
	device vk.Device
	fence  vk.Fence
}

func (f *vulkanFence) Wait(timeout time.Duration) error {
	ret := vk.WaitForFences(f.device, 1, []vk.Fence{f.fence}, vk.True, uint64(timeout.Nanoseconds()))
	switch ret {
	case vk.Success:
		return nil
	case vk.Timeout:
		return frame.ErrFenceTimeout
	default:
		return fmt.Errorf("renderer: fence wait: %s", vk.Error(ret))
	}
}

func (f *vulkanFence) Reset() error {
	if ret := vk.ResetFences(f.device, 1, []vk.Fence{f.fence}); ret != vk.Success {
		return fmt.Errorf("renderer: fence reset: %s", vk.Error(ret))
	}
	return nil
}

// vulkanCommands adapts a slot's primary command buffer to the
// frame.CommandContext seam.
type vulkanCommands struct {
	buffer vk.CommandBuffer
}

func (c *vulkanCommands) Reset() error {
	if ret := vk.ResetCommandBuffer(c.buffer, 0); ret != vk.Success {
		return fmt.Errorf("renderer: command buffer reset: %s", vk.Error(ret))
	}
	return nil
}

// vulkanImage is one backend-owned image: render target, shadow map, or the
// internal fallbacks bound in unused descriptor array slots.
type vulkanImage struct {
	image  vk.Image
	memory vk.DeviceMemory
	view   vk.ImageView

	// layerViews are per-face depth views for cube shadow maps, used as
	// framebuffer attachments; nil for 2D images.
	layerViews []vk.ImageView

	format vk.Format
	width  int
	height int
	layers int
	depth  bool
}

type vulkanBuffer struct {
	buffer vk.Buffer
	memory vk.DeviceMemory
	size   int

	// mapped is non-nil for persistently mapped host-visible buffers.
	mapped unsafe.Pointer
}

type vulkanMesh struct {
	vertex     vulkanBuffer
	index      vulkanBuffer
	indexCount int
}

// vulkanSlot carries one frame-in-flight's GPU objects.
type vulkanSlot struct {
	fence    *vulkanFence
	commands *vulkanCommands

	imageAcquired  vk.Semaphore
	renderComplete vk.Semaphore

	uniforms  vulkanBuffer
	particles vulkanBuffer
	fields    vulkanBuffer

	descriptorSet vk.DescriptorSet
	computeSet    vk.DescriptorSet

	// pingImages are the post-process sources bound in the descriptor array
	// this frame, in binding order.
	pingImages [2]handle.Handle
}

type framebufferKey struct {
	renderPass  vk.RenderPass
	attachments [6]vk.ImageView
	width       int
	height      int
}

type vulkanRendererBackendImpl struct {
	mu  *sync.Mutex
	ctx *GraphicsContext

	slots []*vulkanSlot

	swapchain       vk.Swapchain
	swapchainImages []vk.Image
	swapchainExtent vk.Extent2D
	presentMode     PresentMode

	// render pass objects, one per attachment topology; pipelines must be
	// created against a compatible one.
	depthOnlyPass  vk.RenderPass
	gbufferPass    vk.RenderPass
	colorClearPass vk.RenderPass
	colorLoadPass  vk.RenderPass
	colorDepthPass vk.RenderPass

	framebuffers map[framebufferKey]vk.Framebuffer

	images handle.Table[vulkanImage]
	meshes handle.Table[vulkanMesh]

	descriptorLayout vk.DescriptorSetLayout
	pipelineLayout   vk.PipelineLayout
	sampler          vk.Sampler
	shadowSampler    vk.Sampler

	// fallback images bound in unused descriptor array entries
	fallbackColor  handle.Handle
	fallbackDepth  handle.Handle
	fallbackShadow handle.Handle
	fallbackCube   handle.Handle

	graphicsPipelines handle.Table[vk.Pipeline]
	ambientPipe       vk.Pipeline
	lightingPipe      vk.Pipeline
	particleDrawPipe  vk.Pipeline
	effectPipes       map[Effect]vk.Pipeline

	computeLayout     vk.DescriptorSetLayout
	computePipeLayout vk.PipelineLayout
	particleSimPipe   vk.Pipeline

	cullDispatcher *vulkanCullDispatcher

	shaderDir string

	// recording state for the slot currently being recorded
	curPass     vk.RenderPass
	curBuffer   vk.CommandBuffer
	curPipeline vk.Pipeline
}

// VulkanBackendOption is a functional option for configuring the Vulkan
// backend.
type VulkanBackendOption func(*vulkanRendererBackendImpl)

// WithShaderDirectory sets the directory SPIR-V shader binaries are loaded
// from at construction.
//
// Parameters:
//   - dir: the shader directory path
//
// Returns:
//   - VulkanBackendOption: option function to apply
func WithShaderDirectory(dir string) VulkanBackendOption {
	return func(b *vulkanRendererBackendImpl) {
		if dir != "" {
			b.shaderDir = dir
		}
	}
}

// WithPresentMode selects the swapchain present mode.
//
// Parameters:
//   - mode: the present mode
//
// Returns:
//   - VulkanBackendOption: option function to apply
func WithPresentMode(mode PresentMode) VulkanBackendOption {
	return func(b *vulkanRendererBackendImpl) {
		b.presentMode = mode
	}
}

var _ RendererBackend = &vulkanRendererBackendImpl{}
var _ target.Factory = &vulkanRendererBackendImpl{}

// NewVulkanRendererBackend initializes the Vulkan backend for a window:
// device-level context, swapchain, per-slot sync and buffer objects, render
// passes, samplers, descriptor layouts, and the internal (non-variant)
// pipelines.
//
// Parameters:
//   - window: the window to present to
//   - slotCount: frames in flight (clamped to 1..frame.MaxSlotCount)
//   - options: variadic list of VulkanBackendOption functions
//
// Returns:
//   - RendererBackend: the initialized backend
//   - error: error if any Vulkan object cannot be created
func NewVulkanRendererBackend(window *glfw.Window, slotCount int, options ...VulkanBackendOption) (RendererBackend, error) {
	if slotCount < 1 {
		slotCount = frame.DefaultSlotCount
	}
	if slotCount > frame.MaxSlotCount {
		slotCount = frame.MaxSlotCount
	}

	ctx, err := NewGraphicsContext(window, "mjolnir")
	if err != nil {
		return nil, err
	}

	b := &vulkanRendererBackendImpl{
		mu:           &sync.Mutex{},
		ctx:          ctx,
		framebuffers: make(map[framebufferKey]vk.Framebuffer),
		effectPipes:  make(map[Effect]vk.Pipeline),
		shaderDir:    DefaultShaderDirectory,
		presentMode:  PresentModeVSync,
	}
	for _, opt := range options {
		opt(b)
	}

	width, height := window.GetFramebufferSize()
	if err := b.initSwapchain(width, height); err != nil {
		ctx.Destroy()
		return nil, err
	}
	if err := b.initRenderPasses(); err != nil {
		b.Destroy()
		return nil, err
	}
	if err := b.initSamplers(); err != nil {
		b.Destroy()
		return nil, err
	}
	if err := b.initDescriptorLayouts(); err != nil {
		b.Destroy()
		return nil, err
	}
	if err := b.initFallbackImages(); err != nil {
		b.Destroy()
		return nil, err
	}
	if err := b.initSlots(slotCount); err != nil {
		b.Destroy()
		return nil, err
	}
	if err := b.initInternalPipelines(); err != nil {
		b.Destroy()
		return nil, err
	}
	if ctx.HasCompute {
		d, err := newVulkanCullDispatcher(b)
		if err != nil {
			log.Printf("[Vulkan] compute culling unavailable, using CPU path: %v", err)
		} else {
			b.cullDispatcher = d
		}
	}
	return b, nil
}

func (b *vulkanRendererBackendImpl) SlotCount() int {
	return len(b.slots)
}

func (b *vulkanRendererBackendImpl) Fence(slot int) frame.Fence {
	return b.slots[slot].fence
}

func (b *vulkanRendererBackendImpl) Commands(slot int) frame.CommandContext {
	return b.slots[slot].commands
}

func (b *vulkanRendererBackendImpl) CullDispatcher() cull.Dispatcher {
	if b.cullDispatcher == nil {
		return nil
	}
	return b.cullDispatcher
}

func (b *vulkanRendererBackendImpl) TargetFactory() target.Factory {
	return b
}

// RearmSlot submits an empty batch signaling only the slot's fence, undoing
// the fence reset performed by an aborted Acquire.
func (b *vulkanRendererBackendImpl) RearmSlot(slot int) error {
	ret := vk.QueueSubmit(b.ctx.Queue, 0, nil, b.slots[slot].fence.fence)
	if ret != vk.Success {
		return mapDeviceResult(ret)
	}
	return nil
}

func (b *vulkanRendererBackendImpl) AcquireImage(slot int) (uint32, error) {
	var idx uint32
	ret := vk.AcquireNextImage(b.ctx.Device, b.swapchain, vk.MaxUint64,
		b.slots[slot].imageAcquired, vk.NullFence, &idx)
	switch ret {
	case vk.Success:
		return idx, nil
	case vk.Suboptimal:
		// the image is still usable; the present result reports suboptimal
		return idx, nil
	case vk.ErrorOutOfDate:
		return 0, ErrSwapchainOutOfDate
	default:
		return 0, mapDeviceResult(ret)
	}
}

func (b *vulkanRendererBackendImpl) BeginCommands(slot int) (barrier.Recorder, error) {
	buf := b.slots[slot].commands.buffer
	ret := vk.BeginCommandBuffer(buf, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if ret != vk.Success {
		return nil, mapDeviceResult(ret)
	}
	b.curBuffer = buf
	b.curPipeline = vk.NullPipeline
	return &vulkanRecorder{backend: b, buffer: buf}, nil
}

func (b *vulkanRendererBackendImpl) BeginPass(slot int, kind pass.Kind, viewSlot int, imageIndex uint32, targets *target.Set, tgt handle.Handle) error {
	buf := b.slots[slot].commands.buffer
	b.curPipeline = vk.NullPipeline

	var rp vk.RenderPass
	var attachments []vk.ImageView
	var clears []vk.ClearValue
	width, height := int(b.swapchainExtent.Width), int(b.swapchainExtent.Height)

	switch kind {
	case pass.Shadow:
		face := (viewSlot - 1) % light.CubeFaces
		view, res, err := b.shadowFaceView(tgt, face)
		if err != nil {
			return err
		}
		rp = b.depthOnlyPass
		attachments = []vk.ImageView{view}
		clears = []vk.ClearValue{depthClear()}
		width, height = res, res
	case pass.DepthPrepass:
		depth, err := b.imageView(targets.Depth)
		if err != nil {
			return err
		}
		rp = b.depthOnlyPass
		attachments = []vk.ImageView{depth}
		clears = []vk.ClearValue{depthClear()}
	case pass.GBuffer:
		rp = b.gbufferPass
		for _, h := range targets.GBuffer {
			view, err := b.imageView(h)
			if err != nil {
				return err
			}
			attachments = append(attachments, view)
			clears = append(clears, colorClear())
		}
		depth, err := b.imageView(targets.Depth)
		if err != nil {
			return err
		}
		attachments = append(attachments, depth)
		clears = append(clears, vk.ClearValue{})
	case pass.Ambient:
		if err := b.updateFrameDescriptors(slot, targets); err != nil {
			return err
		}
		final, err := b.imageView(targets.FinalColor)
		if err != nil {
			return err
		}
		rp = b.colorClearPass
		attachments = []vk.ImageView{final}
		clears = []vk.ClearValue{colorClear()}
	case pass.Lighting:
		final, err := b.imageView(targets.FinalColor)
		if err != nil {
			return err
		}
		rp = b.colorLoadPass
		attachments = []vk.ImageView{final}
	case pass.Transparent:
		final, err := b.imageView(targets.FinalColor)
		if err != nil {
			return err
		}
		depth, err := b.imageView(targets.Depth)
		if err != nil {
			return err
		}
		rp = b.colorDepthPass
		attachments = []vk.ImageView{final, depth}
	case pass.UI:
		// tgt is whichever ping image the post-process chain finished in
		final, err := b.imageView(tgt)
		if err != nil {
			return err
		}
		rp = b.colorLoadPass
		attachments = []vk.ImageView{final}
	default:
		return fmt.Errorf("renderer: pass %v has no render pass object", kind)
	}

	fb, err := b.framebufferFor(rp, attachments, width, height)
	if err != nil {
		return err
	}

	vk.CmdBeginRenderPass(buf, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp,
		Framebuffer: fb,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: uint32(width), Height: uint32(height)},
		},
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}, vk.SubpassContentsInline)
	b.curPass = rp
	b.setViewport(buf, width, height)

	descOffset := uint32(viewSlot) * light.GPUViewUniformStride
	vk.CmdBindDescriptorSets(buf, vk.PipelineBindPointGraphics, b.pipelineLayout,
		0, 1, []vk.DescriptorSet{b.slots[slot].descriptorSet}, 1, []uint32{descOffset})

	switch kind {
	case pass.Ambient:
		b.recordFullscreen(buf, b.ambientPipe)
	case pass.Lighting:
		b.recordFullscreen(buf, b.lightingPipe)
	}
	return nil
}

func (b *vulkanRendererBackendImpl) RegisterPipelines(cache pipeline.Cache) error {
	type variant struct {
		kind pass.Kind
		base string
		rp   vk.RenderPass
		// colorCount is the number of color attachments to blend
		colorCount int
		depthWrite bool
		blend      bool
	}
	variants := []variant{
		{kind: pass.Shadow, base: "shadow", rp: b.depthOnlyPass, depthWrite: true},
		{kind: pass.DepthPrepass, base: "depth_prepass", rp: b.depthOnlyPass, depthWrite: true},
		{kind: pass.GBuffer, base: "gbuffer", rp: b.gbufferPass, colorCount: int(target.ChannelCount), depthWrite: false},
		{kind: pass.Transparent, base: "transparent", rp: b.colorDepthPass, colorCount: 1, blend: true},
	}

	maxFeatures := material.FeatureAlbedoTexture | material.FeatureNormalMap |
		material.FeatureMetallicRoughnessTexture | material.FeatureEmissiveTexture
	registered := 0
	for _, v := range variants {
		for features := material.Feature(0); features <= maxFeatures; features++ {
			key := pipeline.Key{Pass: v.kind, Features: features}
			if key.Normalize() != key {
				continue
			}
			name := v.base
			if features != 0 {
				name = fmt.Sprintf("%s_f%d", v.base, uint32(features))
			}
			p, err := b.createGraphicsPipeline(name, v.rp, v.colorCount, v.depthWrite, v.blend, true)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					continue
				}
				return err
			}
			cache.Register(key, b.graphicsPipelines.Alloc(p))
			registered++
		}
	}
	if registered == 0 {
		return fmt.Errorf("renderer: no pipeline shaders found in %q", b.shaderDir)
	}
	log.Printf("[Vulkan] registered %d pipeline variants", registered)
	return nil
}

func (b *vulkanRendererBackendImpl) Draw(slot int, p handle.Handle, group batch.Group) error {
	buf := b.slots[slot].commands.buffer
	pipe, ok := b.graphicsPipelines.Get(p)
	if !ok {
		return fmt.Errorf("renderer: pipeline handle %v does not resolve", p)
	}
	if *pipe != b.curPipeline {
		vk.CmdBindPipeline(buf, vk.PipelineBindPointGraphics, *pipe)
		b.curPipeline = *pipe
	}

	for _, draw := range group.Draws {
		mesh, ok := b.meshes.Get(draw.Mesh)
		if !ok {
			continue
		}
		var constants [pushConstantSize]byte
		copyMat4(constants[:64], draw.Transform)
		vk.CmdPushConstants(buf, b.pipelineLayout,
			vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit),
			0, pushConstantSize, unsafe.Pointer(&constants[0]))

		vk.CmdBindVertexBuffers(buf, 0, 1, []vk.Buffer{mesh.vertex.buffer}, []vk.DeviceSize{0})
		vk.CmdBindIndexBuffer(buf, mesh.index.buffer, 0, vk.IndexTypeUint32)
		vk.CmdDrawIndexed(buf, uint32(mesh.indexCount), 1, 0, 0, 0)
	}
	return nil
}

func (b *vulkanRendererBackendImpl) DispatchParticleSim(slot int, params particle.GPUSimParams, fields []byte) error {
	if b.particleSimPipe == vk.NullPipeline {
		return nil
	}
	s := b.slots[slot]
	if len(fields) > 0 && s.fields.mapped != nil {
		vk.Memcopy(s.fields.mapped, fields)
	}

	buf := s.commands.buffer
	vk.CmdBindPipeline(buf, vk.PipelineBindPointCompute, b.particleSimPipe)
	vk.CmdBindDescriptorSets(buf, vk.PipelineBindPointCompute, b.computePipeLayout,
		0, 1, []vk.DescriptorSet{s.computeSet}, 0, nil)
	data := params.Marshal()
	vk.CmdPushConstants(buf, b.computePipeLayout,
		vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0, uint32(len(data)), unsafe.Pointer(&data[0]))

	const localSize = 256
	groups := (params.Capacity + localSize - 1) / localSize
	vk.CmdDispatch(buf, groups, 1, 1)

	// the transparent pass reads particle positions as vertex input
	vk.CmdPipelineBarrier(buf,
		vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
		vk.PipelineStageFlags(vk.PipelineStageVertexShaderBit),
		0, 1, []vk.MemoryBarrier{{
			SType:         vk.StructureTypeMemoryBarrier,
			SrcAccessMask: vk.AccessFlags(vk.AccessShaderWriteBit),
			DstAccessMask: vk.AccessFlags(vk.AccessShaderReadBit),
		}}, 0, nil, 0, nil)
	return nil
}

func (b *vulkanRendererBackendImpl) DrawParticles(slot int, alive int) error {
	if b.particleDrawPipe == vk.NullPipeline || alive <= 0 {
		return nil
	}
	buf := b.slots[slot].commands.buffer
	vk.CmdBindPipeline(buf, vk.PipelineBindPointGraphics, b.particleDrawPipe)
	b.curPipeline = b.particleDrawPipe
	vk.CmdDraw(buf, 6, uint32(alive), 0, 0)
	return nil
}

func (b *vulkanRendererBackendImpl) RecordEffect(slot int, effect Effect, src, dst handle.Handle) error {
	pipe, ok := b.effectPipes[effect]
	if !ok {
		return fmt.Errorf("renderer: effect %d has no pipeline", effect)
	}
	buf := b.slots[slot].commands.buffer

	dstView, err := b.imageView(dst)
	if err != nil {
		return err
	}
	// both ping images are bound; the shader selects the source by index
	var srcIndex uint32
	if src == b.slots[slot].pingImages[1] {
		srcIndex = 1
	}
	width, height := int(b.swapchainExtent.Width), int(b.swapchainExtent.Height)
	fb, err := b.framebufferFor(b.colorLoadPass, []vk.ImageView{dstView}, width, height)
	if err != nil {
		return err
	}
	vk.CmdBeginRenderPass(buf, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  b.colorLoadPass,
		Framebuffer: fb,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: uint32(width), Height: uint32(height)},
		},
	}, vk.SubpassContentsInline)
	b.setViewport(buf, width, height)
	vk.CmdBindDescriptorSets(buf, vk.PipelineBindPointGraphics, b.pipelineLayout,
		0, 1, []vk.DescriptorSet{b.slots[slot].descriptorSet}, 1, []uint32{0})
	vk.CmdPushConstants(buf, b.pipelineLayout,
		vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit),
		0, 4, unsafe.Pointer(&srcIndex))
	b.recordFullscreen(buf, pipe)
	vk.CmdEndRenderPass(buf)
	return nil
}

func (b *vulkanRendererBackendImpl) EndPass(slot int) error {
	vk.CmdEndRenderPass(b.slots[slot].commands.buffer)
	b.curPass = vk.NullRenderPass
	return nil
}

func (b *vulkanRendererBackendImpl) BlitToSwapchain(slot int, src handle.Handle, imageIndex uint32) error {
	img, ok := b.images.Get(src)
	if !ok {
		return fmt.Errorf("renderer: blit source %v does not resolve", src)
	}
	buf := b.slots[slot].commands.buffer
	swapImage := b.swapchainImages[imageIndex]

	transitionSwapchainImage(buf, swapImage,
		vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal,
		0, vk.AccessFlags(vk.AccessTransferWriteBit))

	vk.CmdBlitImage(buf,
		img.image, vk.ImageLayoutTransferSrcOptimal,
		swapImage, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageBlit{{
			SrcSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LayerCount: 1,
			},
			SrcOffsets: [2]vk.Offset3D{
				{},
				{X: int32(img.width), Y: int32(img.height), Z: 1},
			},
			DstSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LayerCount: 1,
			},
			DstOffsets: [2]vk.Offset3D{
				{},
				{X: int32(b.swapchainExtent.Width), Y: int32(b.swapchainExtent.Height), Z: 1},
			},
		}}, vk.FilterLinear)

	transitionSwapchainImage(buf, swapImage,
		vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutPresentSrc,
		vk.AccessFlags(vk.AccessTransferWriteBit), 0)
	return nil
}

func (b *vulkanRendererBackendImpl) UploadUniforms(slot int, data []byte) error {
	s := b.slots[slot]
	if len(data) > s.uniforms.size {
		return fmt.Errorf("renderer: uniform upload %d exceeds buffer %d", len(data), s.uniforms.size)
	}
	if len(data) > 0 && s.uniforms.mapped != nil {
		vk.Memcopy(s.uniforms.mapped, data)
	}
	return nil
}

func (b *vulkanRendererBackendImpl) Submit(slot int, imageIndex uint32) error {
	s := b.slots[slot]
	if ret := vk.EndCommandBuffer(s.commands.buffer); ret != vk.Success {
		return mapDeviceResult(ret)
	}
	ret := vk.QueueSubmit(b.ctx.Queue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{s.imageAcquired},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{s.commands.buffer},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{s.renderComplete},
	}}, s.fence.fence)
	if ret != vk.Success {
		return mapDeviceResult(ret)
	}
	return nil
}

func (b *vulkanRendererBackendImpl) Present(slot int, imageIndex uint32) error {
	s := b.slots[slot]
	ret := vk.QueuePresent(b.ctx.Queue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{s.renderComplete},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{b.swapchain},
		PImageIndices:      []uint32{imageIndex},
	})
	switch ret {
	case vk.Success:
		return nil
	case vk.Suboptimal:
		return ErrSwapchainSuboptimal
	case vk.ErrorOutOfDate:
		return ErrSwapchainOutOfDate
	default:
		return mapDeviceResult(ret)
	}
}

func (b *vulkanRendererBackendImpl) RecreateSwapchain(width, height int) (int, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ctx.WaitIdle(); err != nil {
		return 0, 0, err
	}
	b.destroyFramebuffers()
	if err := b.initSwapchain(width, height); err != nil {
		return 0, 0, err
	}
	return int(b.swapchainExtent.Width), int(b.swapchainExtent.Height), nil
}

func (b *vulkanRendererBackendImpl) CreateMesh(vertexData, indexData []byte, indexCount int) (handle.Handle, error) {
	vertex, err := b.createDeviceLocalBuffer(vertexData, vk.BufferUsageVertexBufferBit)
	if err != nil {
		return handle.Nil, err
	}
	index, err := b.createDeviceLocalBuffer(indexData, vk.BufferUsageIndexBufferBit)
	if err != nil {
		b.destroyBuffer(&vertex)
		return handle.Nil, err
	}
	return b.meshes.Alloc(vulkanMesh{vertex: vertex, index: index, indexCount: indexCount}), nil
}

func (b *vulkanRendererBackendImpl) DestroyMesh(h handle.Handle) {
	mesh, ok := b.meshes.Get(h)
	if !ok {
		return
	}
	b.destroyBuffer(&mesh.vertex)
	b.destroyBuffer(&mesh.index)
	b.meshes.Free(h)
}

func (b *vulkanRendererBackendImpl) MeshLive(h handle.Handle) bool {
	_, ok := b.meshes.Get(h)
	return ok
}

func (b *vulkanRendererBackendImpl) LiveMeshes() int {
	return b.meshes.Live()
}

func (b *vulkanRendererBackendImpl) WaitIdle() error {
	return b.ctx.WaitIdle()
}

func (b *vulkanRendererBackendImpl) Destroy() {
	if b.ctx == nil || b.ctx.Device == nil {
		return
	}
	vk.DeviceWaitIdle(b.ctx.Device)

	b.meshes.Each(func(h handle.Handle, m *vulkanMesh) {
		b.destroyBuffer(&m.vertex)
		b.destroyBuffer(&m.index)
	})
	b.images.Each(func(h handle.Handle, img *vulkanImage) {
		b.destroyImage(img)
	})
	b.destroyFramebuffers()

	dev := b.ctx.Device
	b.graphicsPipelines.Each(func(h handle.Handle, p *vk.Pipeline) {
		vk.DestroyPipeline(dev, *p, nil)
	})
	for _, p := range []vk.Pipeline{b.ambientPipe, b.lightingPipe, b.particleDrawPipe, b.particleSimPipe} {
		if p != vk.NullPipeline {
			vk.DestroyPipeline(dev, p, nil)
		}
	}
	for _, p := range b.effectPipes {
		vk.DestroyPipeline(dev, p, nil)
	}
	if b.cullDispatcher != nil {
		b.cullDispatcher.destroy()
	}

	for _, s := range b.slots {
		vk.DestroyFence(dev, s.fence.fence, nil)
		vk.DestroySemaphore(dev, s.imageAcquired, nil)
		vk.DestroySemaphore(dev, s.renderComplete, nil)
		b.destroyBuffer(&s.uniforms)
		b.destroyBuffer(&s.particles)
		b.destroyBuffer(&s.fields)
	}
	b.slots = nil

	for _, rp := range []vk.RenderPass{b.depthOnlyPass, b.gbufferPass, b.colorClearPass, b.colorLoadPass, b.colorDepthPass} {
		if rp != vk.NullRenderPass {
			vk.DestroyRenderPass(dev, rp, nil)
		}
	}
	if b.pipelineLayout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(dev, b.pipelineLayout, nil)
	}
	if b.computePipeLayout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(dev, b.computePipeLayout, nil)
	}
	if b.descriptorLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(dev, b.descriptorLayout, nil)
	}
	if b.computeLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(dev, b.computeLayout, nil)
	}
	if b.sampler != vk.NullSampler {
		vk.DestroySampler(dev, b.sampler, nil)
	}
	if b.shadowSampler != vk.NullSampler {
		vk.DestroySampler(dev, b.shadowSampler, nil)
	}
	if b.swapchain != vk.NullSwapchain {
		vk.DestroySwapchain(dev, b.swapchain, nil)
	}
	b.ctx.Destroy()
}

// mapDeviceResult converts a Vulkan error result into the renderer's error
// taxonomy: device loss maps to the fatal sentinel, everything else stays a
// wrapped driver error.
func mapDeviceResult(ret vk.Result) error {
	if ret == vk.ErrorDeviceLost {
		return ErrDeviceLost
	}
	return fmt.Errorf("renderer: vulkan: %s", vk.Error(ret))
}
