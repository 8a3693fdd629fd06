package metadata

import (
	"github.com/google/uuid"
)

/**
 * @brief A GPU resident primitive: vertex and index buffers plus the
 * material descriptor sets used to draw it. Immutable once built.
 */
type Mesh struct {
	ID uuid.UUID
	/** @brief Name of the glTF mesh the primitive belongs to, may be empty. */
	Name         string
	VertexBuffer *Buffer
	IndexBuffer  *Buffer
	VertexCount  uint32
	IndexCount   uint32
	Material     *Material
}

// Destroy releases the GPU resources of the mesh.
func (m *Mesh) Destroy(ctx ResourceContext) {
	if m == nil {
		return
	}
	m.Material.Destroy(ctx)
	if m.VertexBuffer != nil {
		ctx.FreeBuffer(m.VertexBuffer)
		m.VertexBuffer = nil
	}
	if m.IndexBuffer != nil {
		ctx.FreeBuffer(m.IndexBuffer)
		m.IndexBuffer = nil
	}
}

/**
 * @brief A loaded scene: a flat list of meshes. The order follows scene
 * traversal, but meshes of the same glTF mesh are in completion order.
 */
type Model struct {
	ID     uuid.UUID
	Name   string
	Path   string
	Meshes []*Mesh
}

// Destroy releases every mesh of the model.
func (m *Model) Destroy(ctx ResourceContext) {
	if m == nil {
		return
	}
	for _, mesh := range m.Meshes {
		mesh.Destroy(ctx)
	}
	m.Meshes = nil
}
