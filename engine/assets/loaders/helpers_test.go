package loaders

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	stdmath "math"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/spaghettifunk/vent/engine/math"
	"github.com/spaghettifunk/vent/engine/renderer/headless"
	"github.com/spaghettifunk/vent/engine/renderer/metadata"
	"github.com/stretchr/testify/require"
)

// docBuilder assembles small glTF documents whose single buffer is embedded as a data URI.
type docBuilder struct {
	doc gltf.Document
	bin []byte
}

func newDocBuilder() *docBuilder {
	return &docBuilder{doc: gltf.Document{Asset: gltf.Asset{Version: "2.0"}}}
}

func (b *docBuilder) addView(data []byte) int {
	for len(b.bin)%4 != 0 {
		b.bin = append(b.bin, 0)
	}
	b.doc.BufferViews = append(b.doc.BufferViews, &gltf.BufferView{
		Buffer:     0,
		ByteOffset: len(b.bin),
		ByteLength: len(data),
	})
	b.bin = append(b.bin, data...)
	return len(b.doc.BufferViews) - 1
}

func (b *docBuilder) addAccessor(data []byte, componentType gltf.ComponentType, accessorType gltf.AccessorType, count int) int {
	view := b.addView(data)
	b.doc.Accessors = append(b.doc.Accessors, &gltf.Accessor{
		BufferView:    gltf.Index(view),
		ComponentType: componentType,
		Count:         count,
		Type:          accessorType,
	})
	return len(b.doc.Accessors) - 1
}

func (b *docBuilder) vec3s(values ...[3]float32) int {
	var data []byte
	for _, v := range values {
		for _, f := range v {
			data = binary.LittleEndian.AppendUint32(data, stdmath.Float32bits(f))
		}
	}
	return b.addAccessor(data, gltf.ComponentFloat, gltf.AccessorVec3, len(values))
}

func (b *docBuilder) vec2s(values ...[2]float32) int {
	var data []byte
	for _, v := range values {
		for _, f := range v {
			data = binary.LittleEndian.AppendUint32(data, stdmath.Float32bits(f))
		}
	}
	return b.addAccessor(data, gltf.ComponentFloat, gltf.AccessorVec2, len(values))
}

func (b *docBuilder) indices(values ...uint16) int {
	var data []byte
	for _, v := range values {
		data = binary.LittleEndian.AppendUint16(data, v)
	}
	return b.addAccessor(data, gltf.ComponentUshort, gltf.AccessorScalar, len(values))
}

// triangle returns a primitive with three positions and indices 0, 1, 2.
func (b *docBuilder) triangle(material *int) *gltf.Primitive {
	pos := b.vec3s([3]float32{0, 0, 0}, [3]float32{1, 0, 0}, [3]float32{0, 1, 0})
	return &gltf.Primitive{
		Attributes: map[string]int{gltf.POSITION: pos},
		Indices:    gltf.Index(b.indices(0, 1, 2)),
		Material:   material,
	}
}

func (b *docBuilder) addMesh(name string, primitives ...*gltf.Primitive) int {
	b.doc.Meshes = append(b.doc.Meshes, &gltf.Mesh{Name: name, Primitives: primitives})
	return len(b.doc.Meshes) - 1
}

func (b *docBuilder) addNode(mesh *int, children ...int) int {
	b.doc.Nodes = append(b.doc.Nodes, &gltf.Node{Mesh: mesh, Children: children})
	return len(b.doc.Nodes) - 1
}

func (b *docBuilder) addScene(roots ...int) {
	b.doc.Scenes = append(b.doc.Scenes, &gltf.Scene{Nodes: roots})
}

func (b *docBuilder) addMaterial(m *gltf.Material) int {
	b.doc.Materials = append(b.doc.Materials, m)
	return len(b.doc.Materials) - 1
}

// addEmbeddedTexture stores data in a buffer view and returns the texture index.
func (b *docBuilder) addEmbeddedTexture(data []byte, mimeType string, sampler *gltf.Sampler) int {
	view := b.addView(data)
	b.doc.Images = append(b.doc.Images, &gltf.Image{BufferView: gltf.Index(view), MimeType: mimeType})
	return b.addTexture(len(b.doc.Images)-1, sampler)
}

func (b *docBuilder) addURITexture(uri, mimeType string, sampler *gltf.Sampler) int {
	b.doc.Images = append(b.doc.Images, &gltf.Image{URI: uri, MimeType: mimeType})
	return b.addTexture(len(b.doc.Images)-1, sampler)
}

func (b *docBuilder) addTexture(image int, sampler *gltf.Sampler) int {
	tex := &gltf.Texture{Source: gltf.Index(image)}
	if sampler != nil {
		b.doc.Samplers = append(b.doc.Samplers, sampler)
		tex.Sampler = gltf.Index(len(b.doc.Samplers) - 1)
	}
	b.doc.Textures = append(b.doc.Textures, tex)
	return len(b.doc.Textures) - 1
}

// finish returns the document with its buffer attached as a data URI.
func (b *docBuilder) finish() *gltf.Document {
	doc := b.doc
	if len(b.bin) > 0 {
		doc.Buffers = []*gltf.Buffer{{
			URI:        "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(b.bin),
			ByteLength: len(b.bin),
			Data:       b.bin,
		}}
	}
	return &doc
}

func encodeJSON(t *testing.T, doc *gltf.Document) []byte {
	t.Helper()
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return raw
}

func (b *docBuilder) json(t *testing.T) []byte {
	t.Helper()
	return encodeJSON(t, b.finish())
}

func (b *docBuilder) load(t *testing.T, ctx metadata.ResourceContext, baseDir string) (*metadata.Model, error) {
	t.Helper()
	return NewGLTFLoader(ctx).LoadModelReader("test", bytes.NewReader(b.json(t)), baseDir)
}

func newContext(t *testing.T, frames uint32) *headless.Context {
	t.Helper()
	ctx, err := headless.New(headless.Options{FramesInFlight: frames})
	require.NoError(t, err)
	return ctx
}

func pngBytes(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeVertices(data []byte) []math.Vertex3D {
	f := func(i int) float32 { return stdmath.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])) }
	out := make([]math.Vertex3D, len(data)/math.Vertex3DSize)
	for i := range out {
		o := i * 8
		out[i] = math.Vertex3D{
			Position: math.NewVec3(f(o), f(o+1), f(o+2)),
			Texcoord: math.NewVec2(f(o+3), f(o+4)),
			Normal:   math.NewVec3(f(o+5), f(o+6), f(o+7)),
		}
	}
	return out
}
