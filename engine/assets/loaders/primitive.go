package loaders

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/qmuntal/gltf"
	"github.com/spaghettifunk/vent/engine/core"
	"github.com/spaghettifunk/vent/engine/math"
	"github.com/spaghettifunk/vent/engine/renderer/metadata"
)

// readGeometry assembles the vertices of a primitive from its POSITION accessor,
// overlaying NORMAL and TEXCOORD_0 by index when present, and reads its indices.
func readGeometry(doc *Document, prim *gltf.Primitive) ([]math.Vertex3D, []uint32, error) {
	if prim == nil {
		return nil, nil, fmt.Errorf("%w: null primitive", core.ErrParse)
	}
	positionIndex, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", core.ErrMissingAttribute, gltf.POSITION)
	}
	if prim.Indices == nil {
		return nil, nil, fmt.Errorf("%w: indices", core.ErrMissingAttribute)
	}

	positions, err := doc.ReadPositions(positionIndex)
	if err != nil {
		return nil, nil, fmt.Errorf("positions: %w", err)
	}
	vertices := make([]math.Vertex3D, len(positions))
	for i, p := range positions {
		vertices[i].Position = math.NewVec3(p[0], p[1], p[2])
	}

	if normalIndex, ok := prim.Attributes[gltf.NORMAL]; ok {
		normals, err := doc.ReadNormals(normalIndex)
		if err != nil {
			return nil, nil, fmt.Errorf("normals: %w", err)
		}
		for i := 0; i < len(normals) && i < len(vertices); i++ {
			vertices[i].Normal = math.NewVec3(normals[i][0], normals[i][1], normals[i][2])
		}
	}

	if texcoordIndex, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		texcoords, err := doc.ReadTexcoords(texcoordIndex)
		if err != nil {
			return nil, nil, fmt.Errorf("texcoords: %w", err)
		}
		for i := 0; i < len(texcoords) && i < len(vertices); i++ {
			vertices[i].Texcoord = math.NewVec2(texcoords[i][0], texcoords[i][1])
		}
	}

	indices, err := doc.ReadIndices(*prim.Indices)
	if err != nil {
		return nil, nil, fmt.Errorf("indices: %w", err)
	}
	for _, idx := range indices {
		if int(idx) >= len(vertices) {
			return nil, nil, fmt.Errorf("%w: index %d out of %d vertices", core.ErrParse, idx, len(vertices))
		}
	}
	return vertices, indices, nil
}

// loadPrimitive builds one GPU resident mesh out of a primitive. Geometry is
// read and validated before anything is allocated.
func loadPrimitive(ctx metadata.ResourceContext, doc *Document, meshName string, prim *gltf.Primitive) (mesh *metadata.Mesh, err error) {
	vertices, indices, err := readGeometry(doc, prim)
	if err != nil {
		return nil, err
	}

	mesh = &metadata.Mesh{
		ID:          uuid.New(),
		Name:        meshName,
		VertexCount: uint32(len(vertices)),
		IndexCount:  uint32(len(indices)),
	}
	defer func() {
		if err != nil {
			mesh.Destroy(ctx)
			mesh = nil
		}
	}()

	if mesh.Material, err = loadMaterial(ctx, doc, prim.Material); err != nil {
		return mesh, err
	}

	vertexData := math.VerticesToBytes(vertices)
	if mesh.VertexBuffer, err = ctx.AllocateBuffer(uint64(len(vertexData)), metadata.BufferUsageVertex, vertexData); err != nil {
		return mesh, fmt.Errorf("vertex buffer: %w", err)
	}

	indexData := math.IndicesToBytes(indices)
	if mesh.IndexBuffer, err = ctx.AllocateBuffer(uint64(len(indexData)), metadata.BufferUsageIndex, indexData); err != nil {
		return mesh, fmt.Errorf("index buffer: %w", err)
	}
	return mesh, nil
}
