package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vent/engine/core"
	"github.com/spaghettifunk/vent/engine/renderer/metadata"
)

type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	// Set for host visible buffers, which stay mapped for their whole life.
	Mapped unsafe.Pointer
}

func bufferUsageFlags(usage metadata.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if usage&metadata.BufferUsageVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit | vk.BufferUsageTransferDstBit
	}
	if usage&metadata.BufferUsageIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit | vk.BufferUsageTransferDstBit
	}
	if usage&metadata.BufferUsageUniform != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	if usage&metadata.BufferUsageTransferSrc != 0 {
		flags |= vk.BufferUsageTransferSrcBit
	}
	return vk.BufferUsageFlags(flags)
}

// hostVisible reports whether a buffer is written by the host after creation.
// Everything else lives in device local memory and is filled through a staging buffer.
func hostVisible(usage metadata.BufferUsage) bool {
	return usage&(metadata.BufferUsageUniform|metadata.BufferUsageTransferSrc) != 0
}

func createBuffer(context *VulkanContext, size uint64, usage vk.BufferUsageFlags, properties vk.MemoryPropertyFlags) (*VulkanBuffer, error) {
	device := context.Device.LogicalDevice
	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}

	buffer := &VulkanBuffer{}
	var handle vk.Buffer
	if res := vk.CreateBuffer(device, &bufferInfo, context.Allocator, &handle); res != vk.Success {
		return nil, resultError("vkCreateBuffer", res)
	}
	buffer.Handle = handle

	var memRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, buffer.Handle, &memRequirements)
	memRequirements.Deref()

	memoryIndex := context.FindMemoryIndex(memRequirements.MemoryTypeBits, properties)
	if memoryIndex < 0 {
		destroyBuffer(context, buffer)
		return nil, fmt.Errorf("%w: no memory type for a %d byte buffer", core.ErrAllocation, size)
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(device, &allocInfo, context.Allocator, &memory); res != vk.Success {
		destroyBuffer(context, buffer)
		return nil, resultError("vkAllocateMemory", res)
	}
	buffer.Memory = memory

	if res := vk.BindBufferMemory(device, buffer.Handle, buffer.Memory, 0); res != vk.Success {
		destroyBuffer(context, buffer)
		return nil, resultError("vkBindBufferMemory", res)
	}

	if properties&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) != 0 {
		var data unsafe.Pointer
		if res := vk.MapMemory(device, buffer.Memory, 0, vk.DeviceSize(size), 0, &data); res != vk.Success {
			destroyBuffer(context, buffer)
			return nil, resultError("vkMapMemory", res)
		}
		buffer.Mapped = data
	}
	return buffer, nil
}

func destroyBuffer(context *VulkanContext, buffer *VulkanBuffer) {
	device := context.Device.LogicalDevice
	if buffer.Mapped != nil {
		vk.UnmapMemory(device, buffer.Memory)
		buffer.Mapped = nil
	}
	if buffer.Handle != nil {
		vk.DestroyBuffer(device, buffer.Handle, context.Allocator)
		buffer.Handle = nil
	}
	if buffer.Memory != nil {
		vk.FreeMemory(device, buffer.Memory, context.Allocator)
		buffer.Memory = nil
	}
}

// write copies data to the start of a mapped buffer.
func (b *VulkanBuffer) write(data []byte) {
	if b.Mapped == nil || len(data) == 0 {
		return
	}
	vk.Memcopy(b.Mapped, data)
}

// stage creates a host visible transfer source holding data.
func stage(context *VulkanContext, data []byte) (*VulkanBuffer, error) {
	staging, err := createBuffer(context, uint64(len(data)),
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, err
	}
	staging.write(data)
	return staging, nil
}

// uploadBuffer fills a device local buffer through a staging buffer.
func uploadBuffer(context *VulkanContext, dst *VulkanBuffer, data []byte) error {
	staging, err := stage(context, data)
	if err != nil {
		return err
	}
	defer destroyBuffer(context, staging)

	return SingleUse(context, func(cmd vk.CommandBuffer) {
		vk.CmdCopyBuffer(cmd, staging.Handle, dst.Handle, 1, []vk.BufferCopy{{Size: vk.DeviceSize(len(data))}})
	})
}
