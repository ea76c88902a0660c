package renderer

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	vk "github.com/goki/vulkan"

	"github.com/hucancode/mjolnir/engine/handle"
	"github.com/hucancode/mjolnir/engine/light"
	"github.com/hucancode/mjolnir/engine/model"
	"github.com/hucancode/mjolnir/engine/particle"
	"github.com/hucancode/mjolnir/engine/renderer/target"
)

// Descriptor set bindings shared by every graphics pipeline. The uniform
// buffer is laid out as one camera block, then light.ViewSlotCount view
// blocks bound through the dynamic offset, then the light buffer.
const (
	bindingCamera = iota
	bindingViews
	bindingLights
	bindingGBuffer
	bindingDepth
	bindingShadowMaps
	bindingShadowCubes
	bindingPostSources
	bindingParticles
)

const (
	uniformViewsOffset  = light.GPUViewUniformStride
	uniformLightsOffset = light.GPUViewUniformStride * (1 + light.ViewSlotCount)
)

func (b *vulkanRendererBackendImpl) initSwapchain(width, height int) error {
	gpu, dev := b.ctx.PhysicalDevice, b.ctx.Device

	var caps vk.SurfaceCapabilities
	if ret := vk.GetPhysicalDeviceSurfaceCapabilities(gpu, b.ctx.Surface, &caps); ret != vk.Success {
		return mapDeviceResult(ret)
	}
	caps.Deref()
	caps.CurrentExtent.Deref()

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(gpu, b.ctx.Surface, &formatCount, nil)
	if formatCount == 0 {
		return fmt.Errorf("renderer: surface reports no pixel formats")
	}
	formats := make([]vk.SurfaceFormat, formatCount)
	vk.GetPhysicalDeviceSurfaceFormats(gpu, b.ctx.Surface, &formatCount, formats)
	formats[0].Deref()
	format := formats[0]
	if format.Format == vk.FormatUndefined {
		format.Format = vk.FormatB8g8r8a8Unorm
	}

	extent := caps.CurrentExtent
	if extent.Width == vk.MaxUint32 {
		extent = vk.Extent2D{Width: uint32(width), Height: uint32(height)}
	}

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	preTransform := caps.CurrentTransform
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&vk.SurfaceTransformIdentityBit != 0 {
		preTransform = vk.SurfaceTransformIdentityBit
	}

	old := b.swapchain
	var swapchain vk.Swapchain
	ret := vk.CreateSwapchain(dev, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          b.ctx.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage: vk.ImageUsageFlags(
			vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     preTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      b.pickPresentMode(),
		Clipped:          vk.True,
		OldSwapchain:     old,
	}, nil, &swapchain)
	if ret != vk.Success {
		return mapDeviceResult(ret)
	}
	if old != vk.NullSwapchain {
		vk.DestroySwapchain(dev, old, nil)
	}
	b.swapchain = swapchain
	b.swapchainExtent = extent

	var count uint32
	vk.GetSwapchainImages(dev, swapchain, &count, nil)
	b.swapchainImages = make([]vk.Image, count)
	vk.GetSwapchainImages(dev, swapchain, &count, b.swapchainImages)
	return nil
}

// pickPresentMode maps the configured present mode to a supported Vulkan
// mode. FIFO is the only mode Vulkan guarantees, so it is the fallback.
func (b *vulkanRendererBackendImpl) pickPresentMode() vk.PresentMode {
	if b.presentMode == PresentModeVSync {
		return vk.PresentModeFifo
	}
	var count uint32
	vk.GetPhysicalDeviceSurfacePresentModes(b.ctx.PhysicalDevice, b.ctx.Surface, &count, nil)
	modes := make([]vk.PresentMode, count)
	vk.GetPhysicalDeviceSurfacePresentModes(b.ctx.PhysicalDevice, b.ctx.Surface, &count, modes)
	for _, want := range []vk.PresentMode{vk.PresentModeMailbox, vk.PresentModeImmediate} {
		for _, m := range modes {
			if m == want {
				return m
			}
		}
	}
	return vk.PresentModeFifo
}

// initRenderPasses creates the attachment topologies the frame uses. Initial
// and final layouts match the attachment-optimal layout on both sides; the
// barrier tracker owns every layout transition, render passes never change
// layouts behind its back.
func (b *vulkanRendererBackendImpl) initRenderPasses() error {
	depthAttachment := func(load vk.AttachmentLoadOp) vk.AttachmentDescription {
		return vk.AttachmentDescription{
			Format:         depthTargetFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         load,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutDepthStencilAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
	}
	colorAttachment := func(load vk.AttachmentLoadOp) vk.AttachmentDescription {
		return vk.AttachmentDescription{
			Format:         colorTargetFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         load,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutColorAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
		}
	}
	create := func(attachments []vk.AttachmentDescription, colorCount int, depth bool) (vk.RenderPass, error) {
		var colorRefs []vk.AttachmentReference
		for i := 0; i < colorCount; i++ {
			colorRefs = append(colorRefs, vk.AttachmentReference{
				Attachment: uint32(i),
				Layout:     vk.ImageLayoutColorAttachmentOptimal,
			})
		}
		subpass := vk.SubpassDescription{
			PipelineBindPoint:    vk.PipelineBindPointGraphics,
			ColorAttachmentCount: uint32(len(colorRefs)),
			PColorAttachments:    colorRefs,
		}
		if depth {
			subpass.PDepthStencilAttachment = &vk.AttachmentReference{
				Attachment: uint32(colorCount),
				Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
			}
		}
		var rp vk.RenderPass
		ret := vk.CreateRenderPass(b.ctx.Device, &vk.RenderPassCreateInfo{
			SType:           vk.StructureTypeRenderPassCreateInfo,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
			SubpassCount:    1,
			PSubpasses:      []vk.SubpassDescription{subpass},
		}, nil, &rp)
		if ret != vk.Success {
			return vk.NullRenderPass, mapDeviceResult(ret)
		}
		return rp, nil
	}

	var err error
	if b.depthOnlyPass, err = create(
		[]vk.AttachmentDescription{depthAttachment(vk.AttachmentLoadOpClear)}, 0, true); err != nil {
		return err
	}
	gbufferAttachments := make([]vk.AttachmentDescription, 0, int(target.ChannelCount)+1)
	for i := 0; i < int(target.ChannelCount); i++ {
		gbufferAttachments = append(gbufferAttachments, colorAttachment(vk.AttachmentLoadOpClear))
	}
	gbufferAttachments = append(gbufferAttachments, depthAttachment(vk.AttachmentLoadOpLoad))
	if b.gbufferPass, err = create(gbufferAttachments, int(target.ChannelCount), true); err != nil {
		return err
	}
	if b.colorClearPass, err = create(
		[]vk.AttachmentDescription{colorAttachment(vk.AttachmentLoadOpClear)}, 1, false); err != nil {
		return err
	}
	if b.colorLoadPass, err = create(
		[]vk.AttachmentDescription{colorAttachment(vk.AttachmentLoadOpLoad)}, 1, false); err != nil {
		return err
	}
	b.colorDepthPass, err = create([]vk.AttachmentDescription{
		colorAttachment(vk.AttachmentLoadOpLoad),
		depthAttachment(vk.AttachmentLoadOpLoad),
	}, 1, true)
	return err
}

func (b *vulkanRendererBackendImpl) initSamplers() error {
	var sampler vk.Sampler
	ret := vk.CreateSampler(b.ctx.Device, &vk.SamplerCreateInfo{
		SType:         vk.StructureTypeSamplerCreateInfo,
		MagFilter:     vk.FilterLinear,
		MinFilter:     vk.FilterLinear,
		MipmapMode:    vk.SamplerMipmapModeNearest,
		AddressModeU:  vk.SamplerAddressModeClampToEdge,
		AddressModeV:  vk.SamplerAddressModeClampToEdge,
		AddressModeW:  vk.SamplerAddressModeClampToEdge,
		MaxAnisotropy: 1,
	}, nil, &sampler)
	if ret != vk.Success {
		return mapDeviceResult(ret)
	}
	b.sampler = sampler

	ret = vk.CreateSampler(b.ctx.Device, &vk.SamplerCreateInfo{
		SType:         vk.StructureTypeSamplerCreateInfo,
		MagFilter:     vk.FilterLinear,
		MinFilter:     vk.FilterLinear,
		MipmapMode:    vk.SamplerMipmapModeNearest,
		AddressModeU:  vk.SamplerAddressModeClampToBorder,
		AddressModeV:  vk.SamplerAddressModeClampToBorder,
		AddressModeW:  vk.SamplerAddressModeClampToBorder,
		MaxAnisotropy: 1,
		CompareEnable: vk.True,
		CompareOp:     vk.CompareOpLessOrEqual,
		BorderColor:   vk.BorderColorFloatOpaqueWhite,
	}, nil, &b.shadowSampler)
	if ret != vk.Success {
		return mapDeviceResult(ret)
	}
	return nil
}

func (b *vulkanRendererBackendImpl) initDescriptorLayouts() error {
	dev := b.ctx.Device
	fragment := vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	vertexFragment := vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)

	bindings := []vk.DescriptorSetLayoutBinding{
		{Binding: bindingCamera, DescriptorType: vk.DescriptorTypeUniformBuffer, DescriptorCount: 1, StageFlags: vertexFragment},
		{Binding: bindingViews, DescriptorType: vk.DescriptorTypeUniformBufferDynamic, DescriptorCount: 1, StageFlags: vertexFragment},
		{Binding: bindingLights, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: fragment},
		{Binding: bindingGBuffer, DescriptorType: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: uint32(target.ChannelCount), StageFlags: fragment},
		{Binding: bindingDepth, DescriptorType: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 1, StageFlags: fragment},
		{Binding: bindingShadowMaps, DescriptorType: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: light.MaxShadowMaps, StageFlags: fragment},
		{Binding: bindingShadowCubes, DescriptorType: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: light.MaxShadowMaps, StageFlags: fragment},
		{Binding: bindingPostSources, DescriptorType: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 2, StageFlags: fragment},
		{Binding: bindingParticles, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit)},
	}
	ret := vk.CreateDescriptorSetLayout(dev, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}, nil, &b.descriptorLayout)
	if ret != vk.Success {
		return mapDeviceResult(ret)
	}

	ret = vk.CreatePipelineLayout(dev, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{b.descriptorLayout},
		PushConstantRangeCount: 1,
		PPushConstantRanges: []vk.PushConstantRange{{
			StageFlags: vertexFragment,
			Size:       pushConstantSize,
		}},
	}, nil, &b.pipelineLayout)
	if ret != vk.Success {
		return mapDeviceResult(ret)
	}

	computeBindings := []vk.DescriptorSetLayoutBinding{
		{Binding: 0, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
		{Binding: 1, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
	}
	ret = vk.CreateDescriptorSetLayout(dev, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(computeBindings)),
		PBindings:    computeBindings,
	}, nil, &b.computeLayout)
	if ret != vk.Success {
		return mapDeviceResult(ret)
	}

	var sim particle.GPUSimParams
	ret = vk.CreatePipelineLayout(dev, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{b.computeLayout},
		PushConstantRangeCount: 1,
		PPushConstantRanges: []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit),
			Size:       uint32(sim.Size()),
		}},
	}, nil, &b.computePipeLayout)
	if ret != vk.Success {
		return mapDeviceResult(ret)
	}
	return nil
}

// allocateSlotDescriptors allocates and writes the slot's graphics and
// compute descriptor sets. Buffer bindings never change; image bindings are
// rewritten per frame by updateFrameDescriptors.
func (b *vulkanRendererBackendImpl) allocateSlotDescriptors(s *vulkanSlot) error {
	dev := b.ctx.Device
	sets := make([]vk.DescriptorSet, 1)
	ret := vk.AllocateDescriptorSets(dev, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     b.ctx.DescriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{b.descriptorLayout},
	}, &sets[0])
	if ret != vk.Success {
		return mapDeviceResult(ret)
	}
	s.descriptorSet = sets[0]

	ret = vk.AllocateDescriptorSets(dev, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     b.ctx.DescriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{b.computeLayout},
	}, &sets[0])
	if ret != vk.Success {
		return mapDeviceResult(ret)
	}
	s.computeSet = sets[0]

	writes := []vk.WriteDescriptorSet{
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s.descriptorSet,
			DstBinding:      bindingCamera,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: s.uniforms.buffer,
				Range:  light.GPUViewUniformStride,
			}},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s.descriptorSet,
			DstBinding:      bindingViews,
			DescriptorType:  vk.DescriptorTypeUniformBufferDynamic,
			DescriptorCount: 1,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: s.uniforms.buffer,
				Offset: uniformViewsOffset,
				Range:  light.GPUViewUniformStride,
			}},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s.descriptorSet,
			DstBinding:      bindingLights,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			DescriptorCount: 1,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: s.uniforms.buffer,
				Offset: uniformLightsOffset,
				Range:  vk.DeviceSize(s.uniforms.size - uniformLightsOffset),
			}},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s.descriptorSet,
			DstBinding:      bindingParticles,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			DescriptorCount: 1,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: s.particles.buffer,
				Range:  vk.DeviceSize(s.particles.size),
			}},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s.computeSet,
			DstBinding:      0,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			DescriptorCount: 1,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: s.particles.buffer,
				Range:  vk.DeviceSize(s.particles.size),
			}},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s.computeSet,
			DstBinding:      1,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			DescriptorCount: 1,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: s.fields.buffer,
				Range:  vk.DeviceSize(s.fields.size),
			}},
		},
	}
	vk.UpdateDescriptorSets(dev, uint32(len(writes)), writes, 0, nil)
	return nil
}

// updateFrameDescriptors rewrites the slot's image bindings from the current
// target set. Called once per frame before the first pass that samples them;
// the slot's fence guarantees no submitted work still reads the old views.
func (b *vulkanRendererBackendImpl) updateFrameDescriptors(slot int, targets *target.Set) error {
	s := b.slots[slot]

	samplerInfo := func(h handle.Handle, fallback handle.Handle) (vk.DescriptorImageInfo, error) {
		if h == handle.Nil {
			h = fallback
		}
		view, err := b.imageView(h)
		if err != nil {
			return vk.DescriptorImageInfo{}, err
		}
		return vk.DescriptorImageInfo{
			Sampler:     b.sampler,
			ImageView:   view,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}, nil
	}

	var gbuffer []vk.DescriptorImageInfo
	for _, h := range targets.GBuffer {
		info, err := samplerInfo(h, b.fallbackColor)
		if err != nil {
			return err
		}
		gbuffer = append(gbuffer, info)
	}
	depthInfo, err := samplerInfo(targets.Depth, b.fallbackDepth)
	if err != nil {
		return err
	}

	var shadowMaps, shadowCubes []vk.DescriptorImageInfo
	for i := 0; i < light.MaxShadowMaps; i++ {
		info, err := samplerInfo(targets.ShadowMaps[i], b.fallbackShadow)
		if err != nil {
			return err
		}
		info.Sampler = b.shadowSampler
		shadowMaps = append(shadowMaps, info)

		cubeInfo, err := samplerInfo(targets.ShadowCubes[i], b.fallbackCube)
		if err != nil {
			return err
		}
		cubeInfo.Sampler = b.shadowSampler
		shadowCubes = append(shadowCubes, cubeInfo)
	}

	s.pingImages = [2]handle.Handle{targets.FinalColor, targets.PostPing}
	var pings []vk.DescriptorImageInfo
	for _, h := range s.pingImages {
		info, err := samplerInfo(h, b.fallbackColor)
		if err != nil {
			return err
		}
		pings = append(pings, info)
	}

	writes := []vk.WriteDescriptorSet{
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s.descriptorSet,
			DstBinding:      bindingGBuffer,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: uint32(len(gbuffer)),
			PImageInfo:      gbuffer,
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s.descriptorSet,
			DstBinding:      bindingDepth,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			PImageInfo:      []vk.DescriptorImageInfo{depthInfo},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s.descriptorSet,
			DstBinding:      bindingShadowMaps,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: uint32(len(shadowMaps)),
			PImageInfo:      shadowMaps,
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s.descriptorSet,
			DstBinding:      bindingShadowCubes,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: uint32(len(shadowCubes)),
			PImageInfo:      shadowCubes,
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s.descriptorSet,
			DstBinding:      bindingPostSources,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: uint32(len(pings)),
			PImageInfo:      pings,
		},
	}
	vk.UpdateDescriptorSets(b.ctx.Device, uint32(len(writes)), writes, 0, nil)
	return nil
}

// loadShaderModule reads <name>.spv from the shader directory and wraps it
// in a shader module. Missing files return os.ErrNotExist so callers can
// treat absent pipeline variants as skippable.
func (b *vulkanRendererBackendImpl) loadShaderModule(name string) (vk.ShaderModule, error) {
	code, err := os.ReadFile(filepath.Join(b.shaderDir, name+".spv"))
	if err != nil {
		return vk.NullShaderModule, err
	}
	if len(code)%4 != 0 {
		return vk.NullShaderModule, fmt.Errorf("renderer: shader %s is not SPIR-V", name)
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(b.ctx.Device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    words,
	}, nil, &module)
	if ret != vk.Success {
		return vk.NullShaderModule, mapDeviceResult(ret)
	}
	return module, nil
}

// createGraphicsPipeline builds one pipeline from <name>.vert.spv and
// <name>.frag.spv (vertex-only when no fragment shader exists, for depth
// passes). Viewport and scissor are dynamic so pipelines survive resizes.
func (b *vulkanRendererBackendImpl) createGraphicsPipeline(name string, rp vk.RenderPass, colorCount int, depthWrite, blend, vertexInput bool) (vk.Pipeline, error) {
	dev := b.ctx.Device
	vert, err := b.loadShaderModule(name + ".vert")
	if err != nil {
		return vk.NullPipeline, err
	}
	defer vk.DestroyShaderModule(dev, vert, nil)

	stages := []vk.PipelineShaderStageCreateInfo{{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageVertexBit,
		Module: vert,
		PName:  "main\x00",
	}}
	frag, err := b.loadShaderModule(name + ".frag")
	if err == nil {
		defer vk.DestroyShaderModule(dev, frag, nil)
		stages = append(stages, vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: frag,
			PName:  "main\x00",
		})
	} else if !os.IsNotExist(err) {
		return vk.NullPipeline, err
	}

	vertexState := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if vertexInput {
		var v model.GPUVertex
		vertexState.VertexBindingDescriptionCount = 1
		vertexState.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    uint32(v.Size()),
			InputRate: vk.VertexInputRateVertex,
		}}
		attrs := []vk.VertexInputAttributeDescription{
			{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
			{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 12},
			{Location: 2, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: 24},
			{Location: 3, Binding: 0, Format: vk.FormatR32g32b32a32Sfloat, Offset: 32},
			{Location: 4, Binding: 0, Format: vk.FormatR32g32b32a32Sfloat, Offset: 48},
		}
		vertexState.VertexAttributeDescriptionCount = uint32(len(attrs))
		vertexState.PVertexAttributeDescriptions = attrs
	}

	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, colorCount)
	for i := range blendAttachments {
		blendAttachments[i] = vk.PipelineColorBlendAttachmentState{
			ColorWriteMask: vk.ColorComponentFlags(
				vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
		}
		if blend {
			blendAttachments[i].BlendEnable = vk.True
			blendAttachments[i].SrcColorBlendFactor = vk.BlendFactorSrcAlpha
			blendAttachments[i].DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
			blendAttachments[i].ColorBlendOp = vk.BlendOpAdd
			blendAttachments[i].SrcAlphaBlendFactor = vk.BlendFactorOne
			blendAttachments[i].DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
			blendAttachments[i].AlphaBlendOp = vk.BlendOpAdd
		}
	}

	depthWriteFlag := vk.Bool32(vk.False)
	if depthWrite {
		depthWriteFlag = vk.True
	}

	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateGraphicsPipelines(dev, b.ctx.PipelineCache, 1, []vk.GraphicsPipelineCreateInfo{{
		SType:             vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:        uint32(len(stages)),
		PStages:           stages,
		PVertexInputState: &vertexState,
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: vk.PrimitiveTopologyTriangleList,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    vk.CullModeFlags(vk.CullModeBackBit),
			FrontFace:   vk.FrontFaceCounterClockwise,
			LineWidth:   1,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
		},
		PDepthStencilState: &vk.PipelineDepthStencilStateCreateInfo{
			SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:  vk.True,
			DepthWriteEnable: depthWriteFlag,
			DepthCompareOp:   vk.CompareOpLessOrEqual,
			MaxDepthBounds:   1,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: uint32(len(blendAttachments)),
			PAttachments:    blendAttachments,
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: 2,
			PDynamicStates:    []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor},
		},
		Layout:     b.pipelineLayout,
		RenderPass: rp,
	}}, nil, pipelines)
	if ret != vk.Success {
		return vk.NullPipeline, mapDeviceResult(ret)
	}
	return pipelines[0], nil
}

// createFullscreenPipeline builds a composition pipeline: a shared
// fullscreen-triangle vertex shader, no vertex input, no depth.
func (b *vulkanRendererBackendImpl) createFullscreenPipeline(fragName string, rp vk.RenderPass) (vk.Pipeline, error) {
	dev := b.ctx.Device
	vert, err := b.loadShaderModule("fullscreen.vert")
	if err != nil {
		return vk.NullPipeline, err
	}
	defer vk.DestroyShaderModule(dev, vert, nil)
	frag, err := b.loadShaderModule(fragName + ".frag")
	if err != nil {
		return vk.NullPipeline, err
	}
	defer vk.DestroyShaderModule(dev, frag, nil)

	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateGraphicsPipelines(dev, b.ctx.PipelineCache, 1, []vk.GraphicsPipelineCreateInfo{{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: 2,
		PStages: []vk.PipelineShaderStageCreateInfo{
			{
				SType:  vk.StructureTypePipelineShaderStageCreateInfo,
				Stage:  vk.ShaderStageVertexBit,
				Module: vert,
				PName:  "main\x00",
			},
			{
				SType:  vk.StructureTypePipelineShaderStageCreateInfo,
				Stage:  vk.ShaderStageFragmentBit,
				Module: frag,
				PName:  "main\x00",
			},
		},
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: vk.PrimitiveTopologyTriangleList,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    vk.CullModeFlags(vk.CullModeNone),
			FrontFace:   vk.FrontFaceCounterClockwise,
			LineWidth:   1,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: 1,
			PAttachments: []vk.PipelineColorBlendAttachmentState{{
				ColorWriteMask: vk.ColorComponentFlags(
					vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
			}},
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: 2,
			PDynamicStates:    []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor},
		},
		Layout:     b.pipelineLayout,
		RenderPass: rp,
	}}, nil, pipelines)
	if ret != vk.Success {
		return vk.NullPipeline, mapDeviceResult(ret)
	}
	return pipelines[0], nil
}

// initInternalPipelines creates the pipelines the backend drives itself:
// composition, post-process effects, particle draw, and particle simulation.
func (b *vulkanRendererBackendImpl) initInternalPipelines() error {
	var err error
	if b.ambientPipe, err = b.createFullscreenPipeline("ambient", b.colorClearPass); err != nil {
		return err
	}
	if b.lightingPipe, err = b.createFullscreenPipeline("lighting", b.colorLoadPass); err != nil {
		return err
	}
	for effect, name := range map[Effect]string{
		EffectTonemap: "tonemap",
		EffectFog:     "fog",
		EffectBloom:   "bloom",
	} {
		p, err := b.createFullscreenPipeline(name, b.colorLoadPass)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		b.effectPipes[effect] = p
	}
	b.particleDrawPipe, err = b.createGraphicsPipeline("particles", b.colorDepthPass, 1, false, true, false)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		b.particleDrawPipe = vk.NullPipeline
	}
	if b.ctx.HasCompute {
		b.particleSimPipe, err = b.createComputePipeline("particle_sim", b.computePipeLayout)
		if err != nil {
			if !os.IsNotExist(err) {
				return err
			}
			b.particleSimPipe = vk.NullPipeline
		}
	}
	return nil
}

func (b *vulkanRendererBackendImpl) createComputePipeline(name string, layout vk.PipelineLayout) (vk.Pipeline, error) {
	module, err := b.loadShaderModule(name + ".comp")
	if err != nil {
		return vk.NullPipeline, err
	}
	defer vk.DestroyShaderModule(b.ctx.Device, module, nil)

	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateComputePipelines(b.ctx.Device, b.ctx.PipelineCache, 1, []vk.ComputePipelineCreateInfo{{
		SType: vk.StructureTypeComputePipelineCreateInfo,
		Stage: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageComputeBit,
			Module: module,
			PName:  "main\x00",
		},
		Layout: layout,
	}}, nil, pipelines)
	if ret != vk.Success {
		return vk.NullPipeline, mapDeviceResult(ret)
	}
	return pipelines[0], nil
}

// framebufferFor returns the cached framebuffer for a render pass and
// attachment list, creating it on first use.
func (b *vulkanRendererBackendImpl) framebufferFor(rp vk.RenderPass, attachments []vk.ImageView, width, height int) (vk.Framebuffer, error) {
	key := framebufferKey{renderPass: rp, width: width, height: height}
	if len(attachments) > len(key.attachments) {
		return vk.NullFramebuffer, fmt.Errorf("renderer: %d attachments exceeds framebuffer key capacity", len(attachments))
	}
	copy(key.attachments[:], attachments)
	if fb, ok := b.framebuffers[key]; ok {
		return fb, nil
	}
	var fb vk.Framebuffer
	ret := vk.CreateFramebuffer(b.ctx.Device, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           uint32(width),
		Height:          uint32(height),
		Layers:          1,
	}, nil, &fb)
	if ret != vk.Success {
		return vk.NullFramebuffer, mapDeviceResult(ret)
	}
	b.framebuffers[key] = fb
	return fb, nil
}

func (b *vulkanRendererBackendImpl) setViewport(buf vk.CommandBuffer, width, height int) {
	vk.CmdSetViewport(buf, 0, 1, []vk.Viewport{{
		Width:    float32(width),
		Height:   float32(height),
		MaxDepth: 1,
	}})
	vk.CmdSetScissor(buf, 0, 1, []vk.Rect2D{{
		Extent: vk.Extent2D{Width: uint32(width), Height: uint32(height)},
	}})
}

// recordFullscreen draws the fullscreen triangle with the given pipeline.
func (b *vulkanRendererBackendImpl) recordFullscreen(buf vk.CommandBuffer, pipe vk.Pipeline) {
	vk.CmdBindPipeline(buf, vk.PipelineBindPointGraphics, pipe)
	b.curPipeline = pipe
	vk.CmdDraw(buf, 3, 1, 0, 0)
}
