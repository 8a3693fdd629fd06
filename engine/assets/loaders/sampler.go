package loaders

import (
	"github.com/qmuntal/gltf"
	"github.com/spaghettifunk/vent/engine/renderer/metadata"
)

type minFilter struct {
	filter metadata.TextureFilter
	mipmap metadata.MipmapMode
}

var magFilters = map[gltf.MagFilter]metadata.TextureFilter{
	gltf.MagNearest: metadata.TextureFilterModeNearest,
	gltf.MagLinear:  metadata.TextureFilterModeLinear,
}

var minFilters = map[gltf.MinFilter]minFilter{
	gltf.MinNearest:              {metadata.TextureFilterModeNearest, metadata.MipmapModeNearest},
	gltf.MinLinear:               {metadata.TextureFilterModeLinear, metadata.MipmapModeNearest},
	gltf.MinNearestMipMapNearest: {metadata.TextureFilterModeNearest, metadata.MipmapModeNearest},
	gltf.MinLinearMipMapNearest:  {metadata.TextureFilterModeLinear, metadata.MipmapModeNearest},
	gltf.MinNearestMipMapLinear:  {metadata.TextureFilterModeNearest, metadata.MipmapModeLinear},
	gltf.MinLinearMipMapLinear:   {metadata.TextureFilterModeLinear, metadata.MipmapModeLinear},
}

var wrapModes = map[gltf.WrappingMode]metadata.TextureRepeat{
	gltf.WrapClampToEdge:    metadata.TextureRepeatClampToEdge,
	gltf.WrapMirroredRepeat: metadata.TextureRepeatMirroredRepeat,
	gltf.WrapRepeat:         metadata.TextureRepeatRepeat,
}

// ConvertSampler translates a document sampler. A nil sampler, undefined
// filters and unknown values all fall back to the engine defaults.
func ConvertSampler(s *gltf.Sampler) metadata.SamplerInfo {
	info := metadata.DefaultSamplerInfo()
	if s == nil {
		return info
	}
	if f, ok := magFilters[s.MagFilter]; ok {
		info.MagFilter = f
	}
	if f, ok := minFilters[s.MinFilter]; ok {
		info.MinFilter = f.filter
		info.MipmapMode = f.mipmap
	}
	if w, ok := wrapModes[s.WrapS]; ok {
		info.AddressModeU = w
	}
	if w, ok := wrapModes[s.WrapT]; ok {
		info.AddressModeV = w
	}
	return info
}
