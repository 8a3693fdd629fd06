package metadata

/** @brief How a buffer is going to be bound. */
type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageTransferSrc
)

/**
 * @brief A GPU buffer. InternalData holds the backend specific handles.
 */
type Buffer struct {
	/** @brief Size of the buffer, in bytes. */
	Size uint64
	/** @brief What the buffer is bound as. */
	Usage        BufferUsage
	InternalData interface{}
}

/**
 * @brief A sampled 2D GPU image in RGBA8 sRGB format.
 */
type Image struct {
	Width        uint32
	Height       uint32
	Sampler      SamplerInfo
	InternalData interface{}
}

/**
 * @brief An opaque group of shader visible bindings.
 */
type DescriptorSet struct {
	InternalData interface{}
}

type DescriptorType int

const (
	DescriptorTypeUniformBuffer DescriptorType = iota
	DescriptorTypeCombinedImageSampler
)

type ShaderStage int

const (
	ShaderStageVertex ShaderStage = iota
	ShaderStageFragment
)

/** @brief Describes one binding of the mesh descriptor set layout. */
type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Stage   ShaderStage
}

// Bindings of the per-frame mesh descriptor set.
const (
	BindingMaterialVertex   uint32 = 0
	BindingMaterialFragment uint32 = 1
	BindingLight            uint32 = 2
	BindingDiffuse          uint32 = 3
)

// MeshDescriptorLayout is the layout every mesh descriptor set is allocated with.
var MeshDescriptorLayout = []DescriptorBinding{
	{Binding: BindingMaterialVertex, Type: DescriptorTypeUniformBuffer, Stage: ShaderStageVertex},
	{Binding: BindingMaterialFragment, Type: DescriptorTypeUniformBuffer, Stage: ShaderStageFragment},
	{Binding: BindingLight, Type: DescriptorTypeUniformBuffer, Stage: ShaderStageFragment},
	{Binding: BindingDiffuse, Type: DescriptorTypeCombinedImageSampler, Stage: ShaderStageFragment},
}

/**
 * @brief One resource written into a descriptor set binding.
 * Buffer is set for uniform buffers, Image for combined image samplers.
 */
type DescriptorWrite struct {
	Binding uint32
	Type    DescriptorType
	Buffer  *Buffer
	Image   *Image
}

/**
 * @brief The allocation surface the asset loaders build GPU resources with.
 * Implementations must be safe for concurrent use: the mesh assembler calls
 * them from one goroutine per primitive.
 */
type ResourceContext interface {
	// Number of concurrently rendered frames. Per-frame resources are replicated this many times.
	FramesInFlight() uint32
	// Creates a buffer of size bytes and uploads data (when non-nil) into it.
	AllocateBuffer(size uint64, usage BufferUsage, data []byte) (*Buffer, error)
	// Creates a sampled image from tightly packed RGBA8 pixels.
	AllocateImageFromPixels(width, height uint32, rgba []byte, sampler SamplerInfo) (*Image, error)
	// Creates a sampled image filled with a single colour.
	AllocateImageFromColor(rgba [4]uint8, width, height uint32) (*Image, error)
	// Allocates count descriptor sets with the MeshDescriptorLayout.
	AllocateDescriptorSets(count uint32) ([]*DescriptorSet, error)
	UpdateDescriptorSet(set *DescriptorSet, writes []DescriptorWrite) error
	// The light uniform buffer of the given frame, owned by the context.
	LightBuffer(frame uint32) *Buffer
	FreeBuffer(buffer *Buffer)
	FreeImage(image *Image)
	FreeDescriptorSets(sets []*DescriptorSet)
}
