package loaders

import (
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/spaghettifunk/vent/engine/core"
	"github.com/spaghettifunk/vent/engine/math"
	"github.com/spaghettifunk/vent/engine/renderer/metadata"
)

// Side of the solid white image bound when a material has no base colour texture.
const PlaceholderTextureSize uint32 = 128

var placeholderColour = [4]uint8{255, 255, 255, 255}

// loadMaterial resolves the material at index (nil means the default opaque
// white material) and builds its diffuse image, per-frame uniform buffers and
// per-frame descriptor sets. On error nothing allocated here is left behind.
func loadMaterial(ctx metadata.ResourceContext, doc *Document, index *int) (mat *metadata.Material, err error) {
	mat = &metadata.Material{
		Name:       metadata.DefaultMaterialName,
		BaseColour: math.NewVec4(1, 1, 1, 1),
	}

	var pbr *gltf.PBRMetallicRoughness
	if index != nil {
		if *index < 0 || *index >= len(doc.Materials) || doc.Materials[*index] == nil {
			return nil, fmt.Errorf("%w: material %d out of range", core.ErrParse, *index)
		}
		m := doc.Materials[*index]
		if m.Name != "" {
			mat.Name = m.Name
		}
		pbr = m.PBRMetallicRoughness
		if pbr != nil && pbr.BaseColorFactor != nil {
			bc := pbr.BaseColorFactor
			mat.BaseColour = math.NewVec4(float32(bc[0]), float32(bc[1]), float32(bc[2]), float32(bc[3]))
		}
	}

	defer func() {
		if err != nil {
			mat.Destroy(ctx)
			mat = nil
		}
	}()

	if pbr != nil && pbr.BaseColorTexture != nil {
		img, sampler, err := decodeTexture(doc, pbr.BaseColorTexture.Index)
		if err != nil {
			return mat, fmt.Errorf("material %q: %w", mat.Name, err)
		}
		if mat.Diffuse, err = ctx.AllocateImageFromPixels(img.Width, img.Height, img.Pixels, sampler); err != nil {
			return mat, fmt.Errorf("material %q diffuse: %w", mat.Name, err)
		}
	} else {
		if mat.Diffuse, err = ctx.AllocateImageFromColor(placeholderColour, PlaceholderTextureSize, PlaceholderTextureSize); err != nil {
			return mat, fmt.Errorf("material %q placeholder: %w", mat.Name, err)
		}
	}

	frames := ctx.FramesInFlight()
	uniform := metadata.MaterialUniform{BaseColour: mat.BaseColour}.Bytes()
	for i := uint32(0); i < frames; i++ {
		buf, err := ctx.AllocateBuffer(metadata.MaterialUniformSize, metadata.BufferUsageUniform, uniform)
		if err != nil {
			return mat, fmt.Errorf("material %q uniform buffer %d: %w", mat.Name, i, err)
		}
		mat.UniformBuffers = append(mat.UniformBuffers, buf)
	}

	if mat.DescriptorSets, err = ctx.AllocateDescriptorSets(frames); err != nil {
		return mat, fmt.Errorf("material %q descriptor sets: %w", mat.Name, err)
	}
	for i, set := range mat.DescriptorSets {
		if err = ctx.UpdateDescriptorSet(set, descriptorWrites(mat, ctx.LightBuffer(uint32(i)), i)); err != nil {
			return mat, fmt.Errorf("material %q descriptor set %d: %w", mat.Name, i, err)
		}
	}
	return mat, nil
}

// descriptorWrites is the binding batch of the descriptor set of one frame.
func descriptorWrites(mat *metadata.Material, light *metadata.Buffer, frame int) []metadata.DescriptorWrite {
	uniform := mat.UniformBuffers[frame]
	return []metadata.DescriptorWrite{
		{Binding: metadata.BindingMaterialVertex, Type: metadata.DescriptorTypeUniformBuffer, Buffer: uniform},
		{Binding: metadata.BindingMaterialFragment, Type: metadata.DescriptorTypeUniformBuffer, Buffer: uniform},
		{Binding: metadata.BindingLight, Type: metadata.DescriptorTypeUniformBuffer, Buffer: light},
		{Binding: metadata.BindingDiffuse, Type: metadata.DescriptorTypeCombinedImageSampler, Image: mat.Diffuse},
	}
}

// decodeTexture decodes the image of a texture and translates its sampler.
// Embedded images need a declared MIME type. URI images use the declared type,
// else the one sniffed from the content, else the one implied by the extension.
func decodeTexture(doc *Document, index int) (*metadata.ImageResourceData, metadata.SamplerInfo, error) {
	var sampler metadata.SamplerInfo
	if index < 0 || index >= len(doc.Textures) || doc.Textures[index] == nil {
		return nil, sampler, fmt.Errorf("%w: texture %d out of range", core.ErrParse, index)
	}
	tex := doc.Textures[index]

	var docSampler *gltf.Sampler
	if tex.Sampler != nil {
		if *tex.Sampler < 0 || *tex.Sampler >= len(doc.Samplers) {
			return nil, sampler, fmt.Errorf("%w: sampler %d out of range", core.ErrParse, *tex.Sampler)
		}
		docSampler = doc.Samplers[*tex.Sampler]
	}
	sampler = ConvertSampler(docSampler)

	if tex.Source == nil || *tex.Source < 0 || *tex.Source >= len(doc.Images) || doc.Images[*tex.Source] == nil {
		return nil, sampler, fmt.Errorf("%w: texture %d has no valid image source", core.ErrParse, index)
	}
	source := doc.Images[*tex.Source]

	var data []byte
	mimeType := source.MimeType
	switch {
	case source.BufferView != nil:
		if mimeType == "" {
			return nil, sampler, fmt.Errorf("%w: embedded image %d has no MIME type", core.ErrUnsupportedFormat, *tex.Source)
		}
		view, err := doc.BufferViewData(*source.BufferView)
		if err != nil {
			return nil, sampler, err
		}
		data = view
	case source.URI != "":
		uriData, uriMime, err := doc.ReadImageURI(source)
		if err != nil {
			return nil, sampler, err
		}
		data = uriData
		if mimeType == "" {
			mimeType = uriMime
		}
		if mimeType == "" {
			mimeType = SniffMimeType(data)
		}
		if mimeType == "" {
			mimeType = MimeTypeFromExtension(source.URI)
		}
	default:
		return nil, sampler, fmt.Errorf("%w: image %d has neither URI nor buffer view", core.ErrParse, *tex.Source)
	}

	img, err := DecodeImage(data, mimeType)
	if err != nil {
		return nil, sampler, fmt.Errorf("image %d: %w", *tex.Source, err)
	}
	return img, sampler, nil
}
