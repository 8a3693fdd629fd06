package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vent/engine/renderer/metadata"
)

type VulkanDescriptorSet struct {
	Handle vk.DescriptorSet
}

var vulkanDescriptorTypes = map[metadata.DescriptorType]vk.DescriptorType{
	metadata.DescriptorTypeUniformBuffer:        vk.DescriptorTypeUniformBuffer,
	metadata.DescriptorTypeCombinedImageSampler: vk.DescriptorTypeCombinedImageSampler,
}

var vulkanShaderStages = map[metadata.ShaderStage]vk.ShaderStageFlagBits{
	metadata.ShaderStageVertex:   vk.ShaderStageVertexBit,
	metadata.ShaderStageFragment: vk.ShaderStageFragmentBit,
}

// layoutBindings translates a backend independent layout.
func layoutBindings(layout []metadata.DescriptorBinding) []vk.DescriptorSetLayoutBinding {
	bindings := make([]vk.DescriptorSetLayoutBinding, len(layout))
	for i, b := range layout {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorCount: 1,
			DescriptorType:  vulkanDescriptorTypes[b.Type],
			StageFlags:      vk.ShaderStageFlags(vulkanShaderStages[b.Stage]),
		}
	}
	return bindings
}

// poolSizes returns the descriptor counts maxSets sets of layout need.
func poolSizes(layout []metadata.DescriptorBinding, maxSets uint32) []vk.DescriptorPoolSize {
	counts := map[vk.DescriptorType]uint32{}
	var order []vk.DescriptorType
	for _, b := range layout {
		t := vulkanDescriptorTypes[b.Type]
		if _, ok := counts[t]; !ok {
			order = append(order, t)
		}
		counts[t] += maxSets
	}
	sizes := make([]vk.DescriptorPoolSize, len(order))
	for i, t := range order {
		sizes[i] = vk.DescriptorPoolSize{Type: t, DescriptorCount: counts[t]}
	}
	return sizes
}

func createDescriptorSetLayout(context *VulkanContext) (vk.DescriptorSetLayout, error) {
	bindings := layoutBindings(metadata.MeshDescriptorLayout)
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}

	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &layoutInfo, context.Allocator, &layout); res != vk.Success {
		return nil, resultError("vkCreateDescriptorSetLayout", res)
	}
	return layout, nil
}

func createDescriptorPool(context *VulkanContext, maxSets uint32) (vk.DescriptorPool, error) {
	sizes := poolSizes(metadata.MeshDescriptorLayout, maxSets)
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
		MaxSets:       maxSets,
	}

	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &poolInfo, context.Allocator, &pool); res != vk.Success {
		return nil, resultError("vkCreateDescriptorPool", res)
	}
	return pool, nil
}

// descriptorWrite translates one binding write. Buffers are bound whole.
func descriptorWrite(set vk.DescriptorSet, w metadata.DescriptorWrite) vk.WriteDescriptorSet {
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      w.Binding,
		DescriptorType:  vulkanDescriptorTypes[w.Type],
		DescriptorCount: 1,
	}
	switch w.Type {
	case metadata.DescriptorTypeUniformBuffer:
		buffer := w.Buffer.InternalData.(*VulkanBuffer)
		write.PBufferInfo = []vk.DescriptorBufferInfo{{
			Buffer: buffer.Handle,
			Range:  vk.DeviceSize(w.Buffer.Size),
		}}
	case metadata.DescriptorTypeCombinedImageSampler:
		image := w.Image.InternalData.(*VulkanImage)
		write.PImageInfo = []vk.DescriptorImageInfo{{
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			ImageView:   image.View,
			Sampler:     image.Sampler,
		}}
	}
	return write
}
