package loaders

import (
	"errors"
	"fmt"
	"sync"

	"github.com/qmuntal/gltf"
	"github.com/spaghettifunk/vent/engine/core"
	"github.com/spaghettifunk/vent/engine/renderer/metadata"
)

type primitiveResult struct {
	mesh *metadata.Mesh
	err  error
}

// assembleMesh loads every primitive of a glTF mesh on its own goroutine and
// returns one mesh per primitive. The result order is completion order, not
// declaration order. If any primitive fails, the meshes built by the others
// are destroyed and all failures are returned joined.
func assembleMesh(ctx metadata.ResourceContext, doc *Document, meshIndex int) ([]*metadata.Mesh, error) {
	if meshIndex < 0 || meshIndex >= len(doc.Meshes) {
		return nil, fmt.Errorf("%w: mesh %d out of range", core.ErrParse, meshIndex)
	}
	m := doc.Meshes[meshIndex]
	if m == nil {
		return nil, fmt.Errorf("%w: mesh %d is null", core.ErrParse, meshIndex)
	}
	count := len(m.Primitives)

	// Sized to the primitive count so no worker ever blocks on send.
	results := make(chan primitiveResult, count)
	var wg sync.WaitGroup
	for i := range m.Primitives {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mesh, err := loadPrimitiveRecover(ctx, doc, m.Name, m.Primitives[i])
			if err != nil {
				err = fmt.Errorf("mesh %q primitive %d: %w", m.Name, i, err)
			}
			results <- primitiveResult{mesh: mesh, err: err}
		}(i)
	}

	meshes := make([]*metadata.Mesh, 0, count)
	var errs []error
	for i := 0; i < count; i++ {
		r := <-results
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		meshes = append(meshes, r.mesh)
	}
	wg.Wait()

	if len(errs) > 0 {
		for _, mesh := range meshes {
			mesh.Destroy(ctx)
		}
		return nil, errors.Join(errs...)
	}
	return meshes, nil
}

func loadPrimitiveRecover(ctx metadata.ResourceContext, doc *Document, meshName string, prim *gltf.Primitive) (mesh *metadata.Mesh, err error) {
	defer func() {
		if r := recover(); r != nil {
			mesh = nil
			err = fmt.Errorf("%w: primitive loader panicked: %v", core.ErrUnknown, r)
		}
	}()
	return loadPrimitive(ctx, doc, meshName, prim)
}
