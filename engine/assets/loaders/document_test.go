package loaders

import (
	"bytes"
	"encoding/binary"
	stdmath "math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/spaghettifunk/vent/engine/core"
	"github.com/spaghettifunk/vent/engine/math"
	"github.com/spaghettifunk/vent/engine/renderer/headless"
	"github.com/spaghettifunk/vent/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triangleDoc() *docBuilder {
	b := newDocBuilder()
	b.addScene(b.addNode(gltf.Index(b.addMesh("tri", b.triangle(nil)))))
	return b
}

func TestDecodeDocumentReadsAccessors(t *testing.T) {
	doc, err := DecodeDocument(bytes.NewReader(triangleDoc().json(t)), "")
	require.NoError(t, err)

	positions, err := doc.ReadPositions(0)
	require.NoError(t, err)
	assert.Equal(t, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}, positions)

	indices, err := doc.ReadIndices(1)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2}, indices)
	assert.Equal(t, [][]int{{0}}, doc.SceneRoots())

	// wrong layouts and indices out of range
	_, err = doc.ReadPositions(1)
	assert.ErrorIs(t, err, core.ErrParse)
	_, err = doc.ReadIndices(0)
	assert.ErrorIs(t, err, core.ErrParse)
	_, err = doc.ReadTexcoords(9)
	assert.ErrorIs(t, err, core.ErrParse)
	_, err = doc.BufferViewData(-1)
	assert.ErrorIs(t, err, core.ErrParse)
}

func TestParseDocumentWithExternalBuffer(t *testing.T) {
	b := triangleDoc()
	doc := b.finish()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tri.bin"), b.bin, 0o644))
	doc.Buffers[0].URI = "tri.bin"
	doc.Buffers[0].Data = nil
	path := filepath.Join(dir, "tri.gltf")
	require.NoError(t, os.WriteFile(path, encodeJSON(t, doc), 0o644))

	parsed, err := ParseDocument(path)
	require.NoError(t, err)
	assert.Equal(t, dir, parsed.Dir)
	assert.Len(t, parsed.Buffers[0].Data, len(b.bin))

	require.NoError(t, os.Remove(filepath.Join(dir, "tri.bin")))
	_, err = ParseDocument(path)
	assert.Error(t, err)

	_, err = ParseDocument(filepath.Join(dir, "missing.gltf"))
	assert.ErrorIs(t, err, core.ErrIO)
}

func TestParseGLBContainer(t *testing.T) {
	b := triangleDoc()
	doc := b.finish()
	doc.Buffers[0].URI = ""
	doc.Buffers[0].Data = nil
	jsonData := encodeJSON(t, doc)
	for len(jsonData)%4 != 0 {
		jsonData = append(jsonData, ' ')
	}
	bin := append([]byte(nil), b.bin...)
	for len(bin)%4 != 0 {
		bin = append(bin, 0)
	}

	var glb bytes.Buffer
	le := binary.LittleEndian
	total := 12 + 8 + len(jsonData) + 8 + len(bin)
	require.NoError(t, binary.Write(&glb, le, []uint32{0x46546C67, 2, uint32(total)}))
	require.NoError(t, binary.Write(&glb, le, []uint32{uint32(len(jsonData)), 0x4E4F534A}))
	glb.Write(jsonData)
	require.NoError(t, binary.Write(&glb, le, []uint32{uint32(len(bin)), 0x004E4942}))
	glb.Write(bin)

	dir := t.TempDir()
	path := filepath.Join(dir, "tri.glb")
	require.NoError(t, os.WriteFile(path, glb.Bytes(), 0o644))

	ctx := newContext(t, 1)
	model, err := NewGLTFLoader(ctx).LoadModel(path)
	require.NoError(t, err)
	require.Len(t, model.Meshes, 1)
	assert.Equal(t, uint32(3), model.Meshes[0].VertexCount)

	// truncated container
	_, err = DecodeDocument(bytes.NewReader(glb.Bytes()[:30]), "")
	assert.ErrorIs(t, err, core.ErrParse)
}

func TestDecodeDocumentRejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		"version 1":  `{"asset":{"version":"1.0"}}`,
		"truncated":  `{"asset":`,
		"short data": `{"asset":{"version":"2.0"},"buffers":[{"uri":"data:application/octet-stream;base64,AQI=","byteLength":4}]}`,
		"sparse": `{"asset":{"version":"2.0"},
			"buffers":[{"uri":"data:application/octet-stream;base64,AAAAAA==","byteLength":4}],
			"bufferViews":[{"buffer":0,"byteLength":4}],
			"accessors":[{"bufferView":0,"componentType":5123,"count":2,"type":"SCALAR",
				"sparse":{"count":1,"indices":{"bufferView":0,"componentType":5123},"values":{"bufferView":0}}}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeDocument(strings.NewReader(raw), "")
			assert.ErrorIs(t, err, core.ErrParse)
		})
	}
}

func TestNegativeByteRangesAreParseErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(doc *gltf.Document)
	}{
		{"buffer length", func(doc *gltf.Document) { doc.Buffers[0].ByteLength = -1 }},
		{"view offset", func(doc *gltf.Document) { doc.BufferViews[0].ByteOffset = -4 }},
		{"view length", func(doc *gltf.Document) { doc.BufferViews[1].ByteLength = -6 }},
		{"view past buffer", func(doc *gltf.Document) { doc.BufferViews[1].ByteLength = 1 << 40 }},
		{"view buffer", func(doc *gltf.Document) { doc.BufferViews[0].Buffer = -1 }},
		{"stride", func(doc *gltf.Document) { doc.BufferViews[0].ByteStride = -12 }},
		{"accessor offset", func(doc *gltf.Document) { doc.Accessors[0].ByteOffset = -12 }},
		{"accessor count", func(doc *gltf.Document) { doc.Accessors[0].Count = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := triangleDoc().finish()
			tc.mutate(doc)

			ctx := newContext(t, 1)
			var err error
			require.NotPanics(t, func() {
				_, err = NewGLTFLoader(ctx).LoadModelReader("bad", bytes.NewReader(encodeJSON(t, doc)), "")
			})
			assert.ErrorIs(t, err, core.ErrParse)
			assert.Equal(t, headless.Stats{BytesInUse: metadata.LightUniformSize}, ctx.Stats())
		})
	}
}

func TestAccessorCountIsBoundedByItsView(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(doc *gltf.Document)
	}{
		{"huge count", func(doc *gltf.Document) { doc.Accessors[0].Count = 1 << 60 }},
		{"one element too many", func(doc *gltf.Document) { doc.Accessors[0].Count = 4 }},
		{"offset past view", func(doc *gltf.Document) { doc.Accessors[1].ByteOffset = 6 }},
		{"no buffer view", func(doc *gltf.Document) {
			doc.Accessors[0].BufferView = nil
			doc.Accessors[0].Count = 1 << 60
		}},
		{"stride shorter than element", func(doc *gltf.Document) { doc.BufferViews[0].ByteStride = 4 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := triangleDoc().finish()
			tc.mutate(doc)

			var err error
			require.NotPanics(t, func() {
				_, err = DecodeDocument(bytes.NewReader(encodeJSON(t, doc)), "")
			})
			assert.ErrorIs(t, err, core.ErrParse)
		})
	}
}

func TestInterleavedAccessorsHonourStride(t *testing.T) {
	// position (vec3) + texcoord (vec2) per vertex, stride 20
	var data []byte
	for _, f := range []float32{0, 0, 0, 0.5, 0.25, 1, 0, 0, 0.75, 1, 0, 1, 0, 0, 0} {
		data = binary.LittleEndian.AppendUint32(data, stdmath.Float32bits(f))
	}
	b := newDocBuilder()
	view := b.addView(data)
	b.doc.BufferViews[view].ByteStride = 20
	b.doc.Accessors = append(b.doc.Accessors,
		&gltf.Accessor{BufferView: gltf.Index(view), ComponentType: gltf.ComponentFloat, Count: 3, Type: gltf.AccessorVec3},
		&gltf.Accessor{BufferView: gltf.Index(view), ByteOffset: 12, ComponentType: gltf.ComponentFloat, Count: 3, Type: gltf.AccessorVec2},
	)
	prim := &gltf.Primitive{
		Attributes: map[string]int{gltf.POSITION: 0, gltf.TEXCOORD_0: 1},
		Indices:    gltf.Index(b.indices(0, 1, 2)),
	}
	b.addScene(b.addNode(gltf.Index(b.addMesh("interleaved", prim))))

	ctx := newContext(t, 1)
	model, err := b.load(t, ctx, "")
	require.NoError(t, err)
	vertices := decodeVertices(ctx.BufferBytes(model.Meshes[0].VertexBuffer))
	require.Len(t, vertices, 3)
	assert.Equal(t, math.NewVec3(1, 0, 0), vertices[1].Position)
	assert.Equal(t, math.NewVec2(0.75, 1), vertices[1].Texcoord)
	assert.Equal(t, math.NewVec2(0, 0), vertices[2].Texcoord)
}

func TestNormalizedIntegerTexcoordsAreConvertedToFloat(t *testing.T) {
	cases := []struct {
		name          string
		componentType gltf.ComponentType
		data          []byte
	}{
		{"unsigned short", gltf.ComponentUshort, []byte{
			0x00, 0x00, 0x00, 0x00,
			0xff, 0xff, 0x00, 0x00,
			0x00, 0x00, 0xff, 0xff,
		}},
		{"unsigned byte", gltf.ComponentUbyte, []byte{
			0x00, 0x00, 0, 0,
			0xff, 0x00, 0, 0,
			0x00, 0xff, 0, 0,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newDocBuilder()
			pos := b.vec3s([3]float32{0, 0, 0}, [3]float32{1, 0, 0}, [3]float32{0, 1, 0})
			view := b.addView(tc.data)
			if tc.componentType == gltf.ComponentUbyte {
				// vertex attributes are aligned to four bytes
				b.doc.BufferViews[view].ByteStride = 4
			}
			b.doc.Accessors = append(b.doc.Accessors, &gltf.Accessor{
				BufferView:    gltf.Index(view),
				ComponentType: tc.componentType,
				Normalized:    true,
				Count:         3,
				Type:          gltf.AccessorVec2,
			})
			uv := len(b.doc.Accessors) - 1
			prim := &gltf.Primitive{
				Attributes: map[string]int{gltf.POSITION: pos, gltf.TEXCOORD_0: uv},
				Indices:    gltf.Index(b.indices(0, 1, 2)),
			}
			b.addScene(b.addNode(gltf.Index(b.addMesh("uv", prim))))

			ctx := newContext(t, 1)
			model, err := b.load(t, ctx, "")
			require.NoError(t, err)
			vertices := decodeVertices(ctx.BufferBytes(model.Meshes[0].VertexBuffer))
			require.Len(t, vertices, 3)
			assert.Equal(t, math.NewVec2(0, 0), vertices[0].Texcoord)
			assert.Equal(t, math.NewVec2(1, 0), vertices[1].Texcoord)
			assert.Equal(t, math.NewVec2(0, 1), vertices[2].Texcoord)
		})
	}
}

// panickingContext fails hard on the first buffer allocation.
type panickingContext struct {
	*headless.Context
}

func (panickingContext) AllocateBuffer(uint64, metadata.BufferUsage, []byte) (*metadata.Buffer, error) {
	panic("device lost")
}

func TestPrimitivePanicBecomesUnknownError(t *testing.T) {
	ctx := panickingContext{newContext(t, 1)}
	b := newDocBuilder()
	b.addScene(b.addNode(gltf.Index(b.addMesh("m", b.triangle(nil), b.triangle(nil)))))

	var (
		model *metadata.Model
		err   error
	)
	require.NotPanics(t, func() {
		model, err = b.load(t, ctx, "")
	})
	assert.Nil(t, model)
	assert.ErrorIs(t, err, core.ErrUnknown)
	assert.Contains(t, err.Error(), "device lost")
}
