package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vent/engine/core"
	"github.com/spaghettifunk/vent/engine/renderer/metadata"
)

// Descriptor sets per frame in flight the pool is sized for.
const DefaultMaxDescriptorSets uint32 = 1024

type Options struct {
	AppName        string
	FramesInFlight uint32
	// Maximum number of live descriptor sets per frame in flight.
	MaxDescriptorSets uint32
	// Enables the Khronos validation layer when it is installed.
	Debug bool
}

// VulkanResourceContext implements metadata.ResourceContext on a Vulkan
// device. It is safe for concurrent use.
type VulkanResourceContext struct {
	context        *VulkanContext
	framesInFlight uint32
	layout         vk.DescriptorSetLayout
	pool           vk.DescriptorPool
	lights         []*metadata.Buffer
}

var _ metadata.ResourceContext = (*VulkanResourceContext)(nil)

func New(opts Options) (*VulkanResourceContext, error) {
	if opts.FramesInFlight == 0 {
		opts.FramesInFlight = core.DefaultFramesInFlight
	}
	if opts.MaxDescriptorSets == 0 {
		opts.MaxDescriptorSets = DefaultMaxDescriptorSets
	}

	rc := &VulkanResourceContext{
		context: &VulkanContext{
			Device: &VulkanDevice{},
			Locks:  NewVulkanLockPool(),
		},
		framesInFlight: opts.FramesInFlight,
	}

	if err := rc.context.createInstance(opts.AppName, opts.Debug); err != nil {
		rc.Destroy()
		return nil, err
	}
	requirements := VulkanPhysicalDeviceRequirements{
		Graphics: true,
		Transfer: true,
	}
	if err := DeviceCreate(rc.context, requirements); err != nil {
		rc.Destroy()
		return nil, err
	}

	layout, err := createDescriptorSetLayout(rc.context)
	if err != nil {
		rc.Destroy()
		return nil, err
	}
	rc.layout = layout

	pool, err := createDescriptorPool(rc.context, opts.MaxDescriptorSets*opts.FramesInFlight)
	if err != nil {
		rc.Destroy()
		return nil, err
	}
	rc.pool = pool

	light := metadata.DefaultLight().Bytes()
	for i := uint32(0); i < rc.framesInFlight; i++ {
		buf, err := rc.AllocateBuffer(metadata.LightUniformSize, metadata.BufferUsageUniform, light)
		if err != nil {
			rc.Destroy()
			return nil, err
		}
		rc.lights = append(rc.lights, buf)
	}

	core.LogInfo("Vulkan resource context created (%d frames in flight).", rc.framesInFlight)
	return rc, nil
}

func (rc *VulkanResourceContext) FramesInFlight() uint32 {
	return rc.framesInFlight
}

func (rc *VulkanResourceContext) AllocateBuffer(size uint64, usage metadata.BufferUsage, data []byte) (*metadata.Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("%w: zero sized buffer", core.ErrAllocation)
	}
	if uint64(len(data)) > size {
		return nil, fmt.Errorf("%w: %d bytes do not fit a %d byte buffer", core.ErrAllocation, len(data), size)
	}

	properties := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	if hostVisible(usage) {
		properties = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	}

	var buffer *VulkanBuffer
	err := rc.context.Locks.SafeCall(BufferManagement, func() error {
		var err error
		buffer, err = createBuffer(rc.context, size, bufferUsageFlags(usage), properties)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(data) > 0 {
		if buffer.Mapped != nil {
			buffer.write(data)
		} else if err := uploadBuffer(rc.context, buffer, data); err != nil {
			rc.destroyBuffer(buffer)
			return nil, err
		}
	}

	return &metadata.Buffer{
		Size:         size,
		Usage:        usage,
		InternalData: buffer,
	}, nil
}

func (rc *VulkanResourceContext) AllocateImageFromPixels(width, height uint32, rgba []byte, sampler metadata.SamplerInfo) (*metadata.Image, error) {
	want := uint64(width) * uint64(height) * metadata.ImageChannelCount
	if want == 0 || uint64(len(rgba)) != want {
		return nil, fmt.Errorf("%w: %d bytes of pixels for a %dx%d image", core.ErrAllocation, len(rgba), width, height)
	}

	image, err := createImage(rc.context, width, height, rgba, sampler)
	if err != nil {
		return nil, err
	}
	return &metadata.Image{
		Width:        width,
		Height:       height,
		Sampler:      sampler,
		InternalData: image,
	}, nil
}

func (rc *VulkanResourceContext) AllocateImageFromColor(rgba [4]uint8, width, height uint32) (*metadata.Image, error) {
	pixels := make([]byte, uint64(width)*uint64(height)*metadata.ImageChannelCount)
	for i := 0; i < len(pixels); i += metadata.ImageChannelCount {
		copy(pixels[i:], rgba[:])
	}
	return rc.AllocateImageFromPixels(width, height, pixels, metadata.DefaultSamplerInfo())
}

func (rc *VulkanResourceContext) AllocateDescriptorSets(count uint32) ([]*metadata.DescriptorSet, error) {
	if count == 0 {
		return nil, nil
	}
	layouts := make([]vk.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = rc.layout
	}
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     rc.pool,
		DescriptorSetCount: count,
		PSetLayouts:        layouts,
	}

	handles := make([]vk.DescriptorSet, count)
	err := rc.context.Locks.SafeCall(DescriptorManagement, func() error {
		if res := vk.AllocateDescriptorSets(rc.context.Device.LogicalDevice, &allocInfo, &handles[0]); res != vk.Success {
			return resultError("vkAllocateDescriptorSets", res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sets := make([]*metadata.DescriptorSet, count)
	for i, h := range handles {
		sets[i] = &metadata.DescriptorSet{InternalData: &VulkanDescriptorSet{Handle: h}}
	}
	return sets, nil
}

func (rc *VulkanResourceContext) UpdateDescriptorSet(set *metadata.DescriptorSet, writes []metadata.DescriptorWrite) error {
	vs, ok := set.InternalData.(*VulkanDescriptorSet)
	if !ok || vs.Handle == nil {
		return fmt.Errorf("%w: descriptor set is not live", core.ErrAllocation)
	}

	vkWrites := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		if err := validateWrite(w); err != nil {
			return err
		}
		vkWrites = append(vkWrites, descriptorWrite(vs.Handle, w))
	}

	return rc.context.Locks.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(rc.context.Device.LogicalDevice, uint32(len(vkWrites)), vkWrites, 0, nil)
		return nil
	})
}

func validateWrite(w metadata.DescriptorWrite) error {
	for _, b := range metadata.MeshDescriptorLayout {
		if b.Binding != w.Binding {
			continue
		}
		if b.Type != w.Type {
			return fmt.Errorf("binding %d expects descriptor type %d, got %d", w.Binding, b.Type, w.Type)
		}
		switch w.Type {
		case metadata.DescriptorTypeUniformBuffer:
			if w.Buffer == nil {
				return fmt.Errorf("binding %d: missing buffer", w.Binding)
			}
			if _, ok := w.Buffer.InternalData.(*VulkanBuffer); !ok {
				return fmt.Errorf("binding %d: buffer is not a Vulkan buffer", w.Binding)
			}
		case metadata.DescriptorTypeCombinedImageSampler:
			if w.Image == nil {
				return fmt.Errorf("binding %d: missing image", w.Binding)
			}
			if _, ok := w.Image.InternalData.(*VulkanImage); !ok {
				return fmt.Errorf("binding %d: image is not a Vulkan image", w.Binding)
			}
		}
		return nil
	}
	return fmt.Errorf("binding %d is not part of the mesh layout", w.Binding)
}

func (rc *VulkanResourceContext) LightBuffer(frame uint32) *metadata.Buffer {
	if int(frame) >= len(rc.lights) {
		return nil
	}
	return rc.lights[frame]
}

// SetLight overwrites the light uniform of one frame.
func (rc *VulkanResourceContext) SetLight(frame uint32, light metadata.LightUniform) {
	if buf := rc.LightBuffer(frame); buf != nil {
		buf.InternalData.(*VulkanBuffer).write(light.Bytes())
	}
}

func (rc *VulkanResourceContext) destroyBuffer(buffer *VulkanBuffer) {
	_ = rc.context.Locks.SafeCall(BufferManagement, func() error {
		destroyBuffer(rc.context, buffer)
		return nil
	})
}

func (rc *VulkanResourceContext) FreeBuffer(buffer *metadata.Buffer) {
	if buffer == nil {
		return
	}
	if vb, ok := buffer.InternalData.(*VulkanBuffer); ok {
		rc.destroyBuffer(vb)
	}
	buffer.InternalData = nil
}

func (rc *VulkanResourceContext) FreeImage(image *metadata.Image) {
	if image == nil {
		return
	}
	if vi, ok := image.InternalData.(*VulkanImage); ok {
		_ = rc.context.Locks.SafeCall(ImageManagement, func() error {
			destroyImage(rc.context, vi)
			return nil
		})
	}
	image.InternalData = nil
}

func (rc *VulkanResourceContext) FreeDescriptorSets(sets []*metadata.DescriptorSet) {
	handles := make([]vk.DescriptorSet, 0, len(sets))
	for _, s := range sets {
		if vs, ok := s.InternalData.(*VulkanDescriptorSet); ok && vs.Handle != nil {
			handles = append(handles, vs.Handle)
			vs.Handle = nil
		}
	}
	if len(handles) == 0 {
		return
	}
	_ = rc.context.Locks.SafeCall(DescriptorManagement, func() error {
		if res := vk.FreeDescriptorSets(rc.context.Device.LogicalDevice, rc.pool, uint32(len(handles)), &handles[0]); res != vk.Success {
			core.LogWarn("vkFreeDescriptorSets failed: %s", VulkanResultString(res, false))
		}
		return nil
	})
}

// Destroy waits for the device to go idle and releases everything the context owns.
func (rc *VulkanResourceContext) Destroy() {
	device := rc.context.Device
	if device.LogicalDevice != nil {
		vk.DeviceWaitIdle(device.LogicalDevice)
		for _, buf := range rc.lights {
			rc.FreeBuffer(buf)
		}
		rc.lights = nil
		if rc.pool != nil {
			vk.DestroyDescriptorPool(device.LogicalDevice, rc.pool, rc.context.Allocator)
			rc.pool = nil
		}
		if rc.layout != nil {
			vk.DestroyDescriptorSetLayout(device.LogicalDevice, rc.layout, rc.context.Allocator)
			rc.layout = nil
		}
	}
	DeviceDestroy(rc.context)
	rc.context.destroyInstance()
	core.LogInfo("Vulkan resource context destroyed.")
}
