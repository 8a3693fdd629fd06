package loaders

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spaghettifunk/vent/engine/core"
	"github.com/spaghettifunk/vent/engine/renderer/metadata"
)

// GLTFLoader turns glTF scene documents into GPU resident models.
type GLTFLoader struct {
	ctx metadata.ResourceContext
}

func NewGLTFLoader(ctx metadata.ResourceContext) *GLTFLoader {
	return &GLTFLoader{ctx: ctx}
}

// LoadModel parses the document at path and builds every mesh reachable from
// any scene root. No partial model is returned on error.
func (gl *GLTFLoader) LoadModel(path string) (*metadata.Model, error) {
	doc, err := ParseDocument(path)
	if err != nil {
		return nil, err
	}
	return gl.build(doc, modelName(path), path)
}

// LoadModelReader is LoadModel for documents that do not live on disk.
// External URIs resolve against baseDir.
func (gl *GLTFLoader) LoadModelReader(name string, r io.Reader, baseDir string) (*metadata.Model, error) {
	doc, err := DecodeDocument(r, baseDir)
	if err != nil {
		return nil, err
	}
	return gl.build(doc, name, "")
}

func (gl *GLTFLoader) build(doc *Document, name, path string) (*metadata.Model, error) {
	model := &metadata.Model{
		ID:   uuid.New(),
		Name: name,
		Path: path,
	}

	for sceneIndex, roots := range doc.SceneRoots() {
		for _, root := range roots {
			if err := gl.walk(doc, root, model, make(map[int]bool)); err != nil {
				model.Destroy(gl.ctx)
				return nil, fmt.Errorf("model %q scene %d: %w", name, sceneIndex, err)
			}
		}
	}

	core.LogDebug("loaded model %s: %d meshes", name, len(model.Meshes))
	return model, nil
}

// walk visits node depth-first, children in declaration order.
func (gl *GLTFLoader) walk(doc *Document, nodeIndex int, model *metadata.Model, path map[int]bool) error {
	if nodeIndex < 0 || nodeIndex >= len(doc.Nodes) {
		return fmt.Errorf("%w: node %d out of range", core.ErrParse, nodeIndex)
	}
	if path[nodeIndex] {
		return fmt.Errorf("%w: node %d is its own ancestor", core.ErrParse, nodeIndex)
	}
	path[nodeIndex] = true
	defer delete(path, nodeIndex)

	node := doc.Nodes[nodeIndex]
	if node == nil {
		return fmt.Errorf("%w: node %d is null", core.ErrParse, nodeIndex)
	}
	if node.Mesh != nil {
		meshes, err := assembleMesh(gl.ctx, doc, *node.Mesh)
		if err != nil {
			return err
		}
		model.Meshes = append(model.Meshes, meshes...)
	}

	for _, child := range node.Children {
		if err := gl.walk(doc, child, model, path); err != nil {
			return err
		}
	}
	return nil
}

func (gl *GLTFLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	model, err := gl.LoadModel(path)
	if err != nil {
		return nil, err
	}
	return &metadata.Resource{
		Name:     model.Name,
		FullPath: path,
		Type:     metadata.ResourceTypeModel,
		DataSize: uint64(len(model.Meshes)),
		Data:     model,
	}, nil
}

func (gl *GLTFLoader) Unload(res *metadata.Resource) error {
	model, ok := res.Data.(*metadata.Model)
	if !ok {
		return fmt.Errorf("resource %q does not hold a model", res.Name)
	}
	model.Destroy(gl.ctx)
	return nil
}

func modelName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
