package metadata

/** @brief Represents supported texture filtering modes. */
type TextureFilter int

const (
	/** @brief Nearest-neighbor filtering. */
	TextureFilterModeNearest TextureFilter = 0x0
	/** @brief Linear (i.e. bilinear) filtering.*/
	TextureFilterModeLinear TextureFilter = 0x1
)

/** @brief The filter used when a sampler does not declare one. */
const DefaultTextureFilter = TextureFilterModeLinear

/** @brief How samples are blended between mip levels. */
type MipmapMode int

const (
	MipmapModeNearest MipmapMode = 0x0
	MipmapModeLinear  MipmapMode = 0x1
)

const DefaultMipmapMode = MipmapModeLinear

type TextureRepeat int

const (
	TextureRepeatRepeat         TextureRepeat = 0x1
	TextureRepeatMirroredRepeat TextureRepeat = 0x2
	TextureRepeatClampToEdge    TextureRepeat = 0x3
	TextureRepeatClampToBorder  TextureRepeat = 0x4
)

/**
 * @brief Backend independent sampler description.
 */
type SamplerInfo struct {
	MagFilter    TextureFilter
	MinFilter    TextureFilter
	MipmapMode   MipmapMode
	AddressModeU TextureRepeat
	AddressModeV TextureRepeat
}

// DefaultSamplerInfo is used for placeholder images and textures without a sampler.
func DefaultSamplerInfo() SamplerInfo {
	return SamplerInfo{
		MagFilter:    DefaultTextureFilter,
		MinFilter:    DefaultTextureFilter,
		MipmapMode:   DefaultMipmapMode,
		AddressModeU: TextureRepeatRepeat,
		AddressModeV: TextureRepeatRepeat,
	}
}
