package renderer

import (
	"errors"
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
)

// GraphicsContext owns the device-level Vulkan objects every backend
// resource hangs off: the instance, the chosen physical device, the logical
// device with its graphics queue, and the shared command, descriptor, and
// pipeline-cache pools. One context is created per window and lives until
// the backend is destroyed.
type GraphicsContext struct {
	Instance vk.Instance
	Surface  vk.Surface

	// PhysicalDevice is the selected GPU; MemoryProps caches its memory
	// heap layout for allocation-type lookups.
	PhysicalDevice vk.PhysicalDevice
	MemoryProps    vk.PhysicalDeviceMemoryProperties

	Device     vk.Device
	QueueIndex uint32
	Queue      vk.Queue

	CommandPool    vk.CommandPool
	DescriptorPool vk.DescriptorPool
	PipelineCache  vk.PipelineCache

	// HasCompute reports whether the graphics queue family also supports
	// compute dispatch, which the culling and particle paths require.
	HasCompute bool
}

var deviceExtensions = []string{
	"VK_KHR_swapchain\x00",
}

// NewGraphicsContext initializes Vulkan for the given window: loads the
// loader through GLFW, creates the instance with the window system's
// required extensions, creates the window surface, picks a physical device
// with a graphics+present queue family, and builds the logical device and
// shared pools.
//
// Parameters:
//   - window: the GLFW window to present to (must be created with ClientAPI NoAPI)
//   - appName: the application name reported to the driver
//
// Returns:
//   - *GraphicsContext: the initialized context
//   - error: error if any Vulkan object cannot be created
func NewGraphicsContext(window *glfw.Window, appName string) (*GraphicsContext, error) {
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("renderer: vulkan loader: %w", err)
	}

	ctx := &GraphicsContext{}

	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   appName + "\x00",
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        "mjolnir\x00",
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.MakeVersion(1, 1, 0),
	}
	extensions := window.GetRequiredInstanceExtensions()
	var instance vk.Instance
	if ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}, nil, &instance); ret != vk.Success {
		return nil, fmt.Errorf("renderer: create instance: %s", vk.Error(ret))
	}
	ctx.Instance = instance
	vk.InitInstance(instance)

	surfPtr, err := window.CreateWindowSurface(instance, nil)
	if err != nil {
		ctx.Destroy()
		return nil, fmt.Errorf("renderer: create window surface: %w", err)
	}
	ctx.Surface = vk.SurfaceFromPointer(surfPtr)

	if err := ctx.pickPhysicalDevice(); err != nil {
		ctx.Destroy()
		return nil, err
	}
	if err := ctx.makeDevice(); err != nil {
		ctx.Destroy()
		return nil, err
	}
	if err := ctx.makePools(); err != nil {
		ctx.Destroy()
		return nil, err
	}
	return ctx, nil
}

// pickPhysicalDevice selects the first GPU exposing a queue family with
// graphics support and presentation to the surface.
func (ctx *GraphicsContext) pickPhysicalDevice() error {
	var gpuCount uint32
	if ret := vk.EnumeratePhysicalDevices(ctx.Instance, &gpuCount, nil); ret != vk.Success || gpuCount == 0 {
		return errors.New("renderer: no vulkan-capable GPU found")
	}
	gpus := make([]vk.PhysicalDevice, gpuCount)
	vk.EnumeratePhysicalDevices(ctx.Instance, &gpuCount, gpus)

	for _, gpu := range gpus {
		var queueCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &queueCount, nil)
		props := make([]vk.QueueFamilyProperties, queueCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &queueCount, props)

		for i := uint32(0); i < queueCount; i++ {
			props[i].Deref()
			if props[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
				continue
			}
			var supportsPresent vk.Bool32
			vk.GetPhysicalDeviceSurfaceSupport(gpu, i, ctx.Surface, &supportsPresent)
			if !supportsPresent.B() {
				continue
			}
			ctx.PhysicalDevice = gpu
			ctx.QueueIndex = i
			ctx.HasCompute = props[i].QueueFlags&vk.QueueFlags(vk.QueueComputeBit) != 0
			vk.GetPhysicalDeviceMemoryProperties(gpu, &ctx.MemoryProps)
			ctx.MemoryProps.Deref()
			return nil
		}
	}
	return errors.New("renderer: no queue family with graphics and present support")
}

func (ctx *GraphicsContext) makeDevice() error {
	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: ctx.QueueIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}
	var device vk.Device
	if ret := vk.CreateDevice(ctx.PhysicalDevice, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(deviceExtensions)),
		PpEnabledExtensionNames: deviceExtensions,
		PEnabledFeatures: []vk.PhysicalDeviceFeatures{{
			SamplerAnisotropy: vk.True,
		}},
	}, nil, &device); ret != vk.Success {
		return fmt.Errorf("renderer: create device: %s", vk.Error(ret))
	}
	ctx.Device = device

	var queue vk.Queue
	vk.GetDeviceQueue(device, ctx.QueueIndex, 0, &queue)
	ctx.Queue = queue
	return nil
}

func (ctx *GraphicsContext) makePools() error {
	var pool vk.CommandPool
	if ret := vk.CreateCommandPool(ctx.Device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: ctx.QueueIndex,
	}, nil, &pool); ret != vk.Success {
		return fmt.Errorf("renderer: create command pool: %s", vk.Error(ret))
	}
	ctx.CommandPool = pool

	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: 64},
		{Type: vk.DescriptorTypeUniformBufferDynamic, DescriptorCount: 64},
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: 64},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 256},
	}
	var descPool vk.DescriptorPool
	if ret := vk.CreateDescriptorPool(ctx.Device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       128,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}, nil, &descPool); ret != vk.Success {
		return fmt.Errorf("renderer: create descriptor pool: %s", vk.Error(ret))
	}
	ctx.DescriptorPool = descPool

	var cache vk.PipelineCache
	if ret := vk.CreatePipelineCache(ctx.Device, &vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}, nil, &cache); ret != vk.Success {
		return fmt.Errorf("renderer: create pipeline cache: %s", vk.Error(ret))
	}
	ctx.PipelineCache = cache
	return nil
}

// FindMemoryType returns the index of a memory type satisfying both the
// resource's type bits and the requested property flags.
//
// Parameters:
//   - typeBits: the resource's MemoryTypeBits requirement
//   - props: the required memory property flags
//
// Returns:
//   - uint32: the memory type index
//   - bool: false if no type satisfies the request
func (ctx *GraphicsContext) FindMemoryType(typeBits uint32, props vk.MemoryPropertyFlagBits) (uint32, bool) {
	for i := uint32(0); i < vk.MaxMemoryTypes; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		ctx.MemoryProps.MemoryTypes[i].Deref()
		if ctx.MemoryProps.MemoryTypes[i].PropertyFlags&vk.MemoryPropertyFlags(props) == vk.MemoryPropertyFlags(props) {
			return i, true
		}
	}
	return 0, false
}

// WaitIdle blocks until the device drains all submitted work.
func (ctx *GraphicsContext) WaitIdle() error {
	if ret := vk.DeviceWaitIdle(ctx.Device); ret != vk.Success {
		return fmt.Errorf("renderer: device wait idle: %s", vk.Error(ret))
	}
	return nil
}

// Destroy releases the context's Vulkan objects in reverse creation order.
// Safe to call on a partially initialized context.
func (ctx *GraphicsContext) Destroy() {
	if ctx.Device != nil {
		vk.DeviceWaitIdle(ctx.Device)
		if ctx.PipelineCache != vk.NullPipelineCache {
			vk.DestroyPipelineCache(ctx.Device, ctx.PipelineCache, nil)
			ctx.PipelineCache = vk.NullPipelineCache
		}
		if ctx.DescriptorPool != vk.NullDescriptorPool {
			vk.DestroyDescriptorPool(ctx.Device, ctx.DescriptorPool, nil)
			ctx.DescriptorPool = vk.NullDescriptorPool
		}
		if ctx.CommandPool != vk.NullCommandPool {
			vk.DestroyCommandPool(ctx.Device, ctx.CommandPool, nil)
			ctx.CommandPool = vk.NullCommandPool
		}
		vk.DestroyDevice(ctx.Device, nil)
		ctx.Device = nil
	}
	if ctx.Instance != nil {
		if ctx.Surface != vk.NullSurface {
			vk.DestroySurface(ctx.Instance, ctx.Surface, nil)
			ctx.Surface = vk.NullSurface
		}
		vk.DestroyInstance(ctx.Instance, nil)
		ctx.Instance = nil
	}
}
