package math

import (
	"encoding/binary"
	m "math"
)

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

func NewVec2(x, y float32) Vec2 {
	return Vec2{X: x, Y: y}
}

func NewVec3(x, y, z float32) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func NewVec4(x, y, z, w float32) Vec4 {
	return Vec4{X: x, Y: y, Z: z, W: w}
}

// Elements returns the vector as an array, in X, Y, Z, W order.
func (v Vec4) Elements() [4]float32 {
	return [4]float32{v.X, v.Y, v.Z, v.W}
}

/** @brief Size in bytes of a Vertex3D once laid out for the GPU. */
const Vertex3DSize = 32

/**
 * @brief Represents a single vertex in 3D space.
 * The GPU layout is position, texcoord, normal; tightly packed, little endian.
 */
type Vertex3D struct {
	/** @brief The position of the vertex */
	Position Vec3
	/** @brief The texture coordinate of the vertex. */
	Texcoord Vec2
	/** @brief The normal of the vertex. */
	Normal Vec3
}

// AppendBytes appends the GPU representation of v to b.
func (v Vertex3D) AppendBytes(b []byte) []byte {
	for _, f := range [8]float32{
		v.Position.X, v.Position.Y, v.Position.Z,
		v.Texcoord.X, v.Texcoord.Y,
		v.Normal.X, v.Normal.Y, v.Normal.Z,
	} {
		b = binary.LittleEndian.AppendUint32(b, m.Float32bits(f))
	}
	return b
}

// VerticesToBytes lays out vertices for upload into a vertex buffer.
func VerticesToBytes(vertices []Vertex3D) []byte {
	b := make([]byte, 0, len(vertices)*Vertex3DSize)
	for _, v := range vertices {
		b = v.AppendBytes(b)
	}
	return b
}

// IndicesToBytes lays out 32-bit indices for upload into an index buffer.
func IndicesToBytes(indices []uint32) []byte {
	b := make([]byte, 0, len(indices)*4)
	for _, i := range indices {
		b = binary.LittleEndian.AppendUint32(b, i)
	}
	return b
}

// Float32sToBytes lays out a uniform record made of float32 fields.
func Float32sToBytes(values ...float32) []byte {
	b := make([]byte, 0, len(values)*4)
	for _, f := range values {
		b = binary.LittleEndian.AppendUint32(b, m.Float32bits(f))
	}
	return b
}
