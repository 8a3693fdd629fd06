package metadata

import "github.com/spaghettifunk/vent/engine/math"

/** @brief The name of the default material. */
const DefaultMaterialName string = "default"

/** @brief Size in bytes of a MaterialUniform on the GPU. */
const MaterialUniformSize = 16

/** @brief Size in bytes of a LightUniform on the GPU. */
const LightUniformSize = 32

/**
 * @brief Per-material uniform data, bound at BindingMaterialVertex and BindingMaterialFragment.
 */
type MaterialUniform struct {
	BaseColour math.Vec4
}

func (u MaterialUniform) Bytes() []byte {
	return math.Float32sToBytes(u.BaseColour.X, u.BaseColour.Y, u.BaseColour.Z, u.BaseColour.W)
}

/**
 * @brief Light uniform data, bound at BindingLight. Each vec3 is padded to 16 bytes.
 */
type LightUniform struct {
	Position math.Vec3
	Colour   math.Vec3
}

func (u LightUniform) Bytes() []byte {
	return math.Float32sToBytes(
		u.Position.X, u.Position.Y, u.Position.Z, 0,
		u.Colour.X, u.Colour.Y, u.Colour.Z, 0,
	)
}

// DefaultLight sits above the origin and is white.
func DefaultLight() LightUniform {
	return LightUniform{
		Position: math.NewVec3(0, 10, 0),
		Colour:   math.NewVec3(1, 1, 1),
	}
}

/**
 * @brief A material resolved for one primitive, with its GPU resources.
 * UniformBuffers and DescriptorSets hold one entry per frame in flight.
 */
type Material struct {
	/** @brief The material name. */
	Name string
	/** @brief The base colour factor. */
	BaseColour math.Vec4
	/** @brief The diffuse texture and its sampler. */
	Diffuse        *Image
	UniformBuffers []*Buffer
	DescriptorSets []*DescriptorSet
}

// Destroy releases every GPU resource of the material. Safe on partially built materials.
func (m *Material) Destroy(ctx ResourceContext) {
	if m == nil {
		return
	}
	if len(m.DescriptorSets) > 0 {
		ctx.FreeDescriptorSets(m.DescriptorSets)
		m.DescriptorSets = nil
	}
	for _, b := range m.UniformBuffers {
		if b != nil {
			ctx.FreeBuffer(b)
		}
	}
	m.UniformBuffers = nil
	if m.Diffuse != nil {
		ctx.FreeImage(m.Diffuse)
		m.Diffuse = nil
	}
}
