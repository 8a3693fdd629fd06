package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vent/engine/core"
	"github.com/spaghettifunk/vent/engine/renderer/metadata"
)

// Every sampled image is RGBA8 in the sRGB colour space.
const imageFormat = vk.FormatR8g8b8a8Srgb

type VulkanImage struct {
	Handle  vk.Image
	Memory  vk.DeviceMemory
	View    vk.ImageView
	Sampler vk.Sampler
	Width   uint32
	Height  uint32
}

var vulkanFilters = map[metadata.TextureFilter]vk.Filter{
	metadata.TextureFilterModeNearest: vk.FilterNearest,
	metadata.TextureFilterModeLinear:  vk.FilterLinear,
}

var vulkanMipmapModes = map[metadata.MipmapMode]vk.SamplerMipmapMode{
	metadata.MipmapModeNearest: vk.SamplerMipmapModeNearest,
	metadata.MipmapModeLinear:  vk.SamplerMipmapModeLinear,
}

var vulkanAddressModes = map[metadata.TextureRepeat]vk.SamplerAddressMode{
	metadata.TextureRepeatRepeat:         vk.SamplerAddressModeRepeat,
	metadata.TextureRepeatMirroredRepeat: vk.SamplerAddressModeMirroredRepeat,
	metadata.TextureRepeatClampToEdge:    vk.SamplerAddressModeClampToEdge,
	metadata.TextureRepeatClampToBorder:  vk.SamplerAddressModeClampToBorder,
}

// createImage creates a device local image, uploads rgba into it and leaves
// it in the shader read only layout, together with its view and sampler.
func createImage(context *VulkanContext, width, height uint32, rgba []byte, info metadata.SamplerInfo) (image *VulkanImage, err error) {
	device := context.Device.LogicalDevice
	image = &VulkanImage{Width: width, Height: height}
	defer func() {
		if err != nil {
			destroyImage(context, image)
			image = nil
		}
	}()

	imageInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        imageFormat,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit),
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}
	var handle vk.Image
	if res := vk.CreateImage(device, &imageInfo, context.Allocator, &handle); res != vk.Success {
		return image, resultError("vkCreateImage", res)
	}
	image.Handle = handle

	var memRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, image.Handle, &memRequirements)
	memRequirements.Deref()

	memoryIndex := context.FindMemoryIndex(memRequirements.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if memoryIndex < 0 {
		return image, fmt.Errorf("%w: no memory type for a %dx%d image", core.ErrAllocation, width, height)
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(device, &allocInfo, context.Allocator, &memory); res != vk.Success {
		return image, resultError("vkAllocateMemory", res)
	}
	image.Memory = memory
	if res := vk.BindImageMemory(device, image.Handle, image.Memory, 0); res != vk.Success {
		return image, resultError("vkBindImageMemory", res)
	}

	if err := uploadImage(context, image, rgba); err != nil {
		return image, err
	}

	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   imageFormat,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(device, &viewInfo, context.Allocator, &view); res != vk.Success {
		return image, resultError("vkCreateImageView", res)
	}
	image.View = view

	sampler, err := createSampler(context, info)
	if err != nil {
		return image, err
	}
	image.Sampler = sampler
	return image, nil
}

func uploadImage(context *VulkanContext, image *VulkanImage, rgba []byte) error {
	staging, err := stage(context, rgba)
	if err != nil {
		return err
	}
	defer destroyBuffer(context, staging)

	return SingleUse(context, func(cmd vk.CommandBuffer) {
		transitionLayout(cmd, image.Handle, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
		region := vk.BufferImageCopy{
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LayerCount: 1,
			},
			ImageExtent: vk.Extent3D{
				Width:  image.Width,
				Height: image.Height,
				Depth:  1,
			},
		}
		vk.CmdCopyBufferToImage(cmd, staging.Handle, image.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
		transitionLayout(cmd, image.Handle, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	})
}

// transitionLayout records the barrier for the two transitions an upload needs.
func transitionLayout(cmd vk.CommandBuffer, image vk.Image, oldLayout, newLayout vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
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
	}

	var sourceStage, destinationStage vk.PipelineStageFlags
	if oldLayout == vk.ImageLayoutUndefined {
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		sourceStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		destinationStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	} else {
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		sourceStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		destinationStage = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	}

	vk.CmdPipelineBarrier(cmd, sourceStage, destinationStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

func createSampler(context *VulkanContext, info metadata.SamplerInfo) (vk.Sampler, error) {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vulkanFilters[info.MagFilter],
		MinFilter:               vulkanFilters[info.MinFilter],
		MipmapMode:              vulkanMipmapModes[info.MipmapMode],
		AddressModeU:            vulkanAddressModes[info.AddressModeU],
		AddressModeV:            vulkanAddressModes[info.AddressModeV],
		AddressModeW:            vk.SamplerAddressModeRepeat,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
	}
	if context.Device.MaxSamplerAnisotropy > 0 {
		samplerInfo.AnisotropyEnable = vk.True
		samplerInfo.MaxAnisotropy = context.Device.MaxSamplerAnisotropy
	}

	var sampler vk.Sampler
	err := context.Locks.SafeCall(SamplerManagement, func() error {
		if res := vk.CreateSampler(context.Device.LogicalDevice, &samplerInfo, context.Allocator, &sampler); res != vk.Success {
			return resultError("vkCreateSampler", res)
		}
		return nil
	})
	return sampler, err
}

func destroyImage(context *VulkanContext, image *VulkanImage) {
	device := context.Device.LogicalDevice
	if image.Sampler != nil {
		vk.DestroySampler(device, image.Sampler, context.Allocator)
		image.Sampler = nil
	}
	if image.View != nil {
		vk.DestroyImageView(device, image.View, context.Allocator)
		image.View = nil
	}
	if image.Handle != nil {
		vk.DestroyImage(device, image.Handle, context.Allocator)
		image.Handle = nil
	}
	if image.Memory != nil {
		vk.FreeMemory(device, image.Memory, context.Allocator)
		image.Memory = nil
	}
}
